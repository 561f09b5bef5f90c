package prompt_test

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/arthur-debert/claupack/pkg/prompt"
)

func interactive() bool    { return true }
func notInteractive() bool { return false }

func TestAskYesNo_Answers(t *testing.T) {
	tests := []struct {
		name  string
		input string
		def   bool
		want  bool
	}{
		{"yes", "y\n", false, true},
		{"yes_word", "yes\n", false, true},
		{"no", "n\n", true, false},
		{"no_word", "no\n", true, false},
		{"empty_uses_default_false", "\n", false, false},
		{"empty_uses_default_true", "\n", true, true},
		{"garbage_uses_default", "maybe\n", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			p := prompt.NewTerminalWithIO(strings.NewReader(tt.input), &out, interactive)

			got := p.AskYesNo("Overwrite?", tt.def, time.Second)

			assert.Equal(t, tt.want, got)
			assert.Contains(t, out.String(), "Overwrite?")
		})
	}
}

func TestAskYesNo_NotInteractiveShortCircuits(t *testing.T) {
	var out bytes.Buffer
	p := prompt.NewTerminalWithIO(strings.NewReader("y\n"), &out, notInteractive)

	assert.False(t, p.AskYesNo("Overwrite?", false, time.Second))
	assert.True(t, p.AskYesNo("Overwrite?", true, time.Second))
	// Nothing is printed when the prompt short-circuits.
	assert.Empty(t, out.String())
}

func TestAskYesNo_TimeoutUsesDefault(t *testing.T) {
	// A pipe with no writer never yields input.
	r, w := io.Pipe()
	defer func() {
		_ = w.Close()
		_ = r.Close()
	}()

	var out bytes.Buffer
	p := prompt.NewTerminalWithIO(r, &out, interactive)

	start := time.Now()
	got := p.AskYesNo("Overwrite?", false, 50*time.Millisecond)

	assert.False(t, got)
	assert.Less(t, time.Since(start), time.Second, "prompt must resolve at the timeout, not hang")
}

func TestAskYesNo_DefaultShownInSuffix(t *testing.T) {
	var out bytes.Buffer
	p := prompt.NewTerminalWithIO(strings.NewReader("\n"), &out, interactive)

	p.AskYesNo("Overwrite?", false, time.Second)
	assert.Contains(t, out.String(), "[y/N]")

	out.Reset()
	p = prompt.NewTerminalWithIO(strings.NewReader("\n"), &out, interactive)
	p.AskYesNo("Overwrite?", true, time.Second)
	assert.Contains(t, out.String(), "[Y/n]")
}
