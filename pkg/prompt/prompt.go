// Package prompt implements the interactive yes/no collaborator the
// conflict resolver delegates to. Prompts are time-bounded and always
// resolve, so a deployment can never hang on user input.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/arthur-debert/claupack/pkg/logging"
)

// CI environment signals that force the non-interactive path.
var ciEnvVars = []string{"CI", "CONTINUOUS_INTEGRATION", "GITHUB_ACTIONS"}

// Terminal prompts on an io.Reader/io.Writer pair, normally
// stdin/stdout.
type Terminal struct {
	in          io.Reader
	out         io.Writer
	interactive func() bool
}

// NewTerminal creates a prompter attached to stdin/stdout.
func NewTerminal() *Terminal {
	return &Terminal{
		in:  os.Stdin,
		out: os.Stdout,
		interactive: func() bool {
			return isatty.IsTerminal(os.Stdin.Fd()) && !isCI()
		},
	}
}

// NewTerminalWithIO creates a prompter with custom input/output and
// interactivity check (for testing).
func NewTerminalWithIO(in io.Reader, out io.Writer, interactive func() bool) *Terminal {
	return &Terminal{in: in, out: out, interactive: interactive}
}

// AskYesNo asks the user a yes/no question. It returns def when no
// interactive terminal is attached, when a CI environment signal is
// present, or when the timeout elapses without an answer.
func (t *Terminal) AskYesNo(message string, def bool, timeout time.Duration) bool {
	logger := logging.GetLogger("prompt")

	if t.interactive == nil || !t.interactive() {
		logger.Debug().Bool("default", def).Msg("not interactive, using default answer")
		return def
	}

	suffix := "[y/N]"
	if def {
		suffix = "[Y/n]"
	}
	_, _ = fmt.Fprintf(t.out, "%s %s ", message, suffix)

	answers := make(chan bool, 1)
	go func() {
		reader := bufio.NewReader(t.in)
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			answers <- def
			return
		}
		answers <- parseAnswer(line, def)
	}()

	select {
	case answer := <-answers:
		return answer
	case <-time.After(timeout):
		_, _ = fmt.Fprintln(t.out)
		logger.Debug().Dur("timeout", timeout).Bool("default", def).Msg("prompt timed out, using default answer")
		return def
	}
}

func parseAnswer(line string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	case "n", "no":
		return false
	default:
		return def
	}
}

func isCI() bool {
	for _, name := range ciEnvVars {
		if v := os.Getenv(name); v != "" && v != "false" {
			return true
		}
	}
	return false
}
