package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/claupack/pkg/errors"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")

	require.NoError(t, err)
	assert.Empty(t, cfg.ExtensionDir)
	assert.Equal(t, "overwrite", cfg.Deploy.Strategy)
	assert.Equal(t, 10, cfg.Lock.Retries)
	assert.Equal(t, 100*time.Millisecond, cfg.Lock.Delay())
	assert.Equal(t, 5*time.Second, cfg.Cache.TTL())
	assert.Equal(t, 30*time.Second, cfg.Prompt.Timeout())
}

func TestLoad_MissingFileMeansDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))

	require.NoError(t, err)
	assert.Equal(t, "overwrite", cfg.Deploy.Strategy)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "claupack.toml")
	content := `
extension-dir = "/custom/ext"

[deploy]
strategy = "skip"

[lock]
retries = 3
delay-ms = 25
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "/custom/ext", cfg.ExtensionDir)
	assert.Equal(t, "skip", cfg.Deploy.Strategy)
	assert.Equal(t, 3, cfg.Lock.Retries)
	assert.Equal(t, 25*time.Millisecond, cfg.Lock.Delay())
	// Sections the file does not mention keep their defaults.
	assert.Equal(t, 5*time.Second, cfg.Cache.TTL())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "claupack.toml")
	require.NoError(t, os.WriteFile(path, []byte("[deploy]\nstrategy = \"overwrite\"\n"), 0644))
	t.Setenv("CLAUPACK_DEPLOY_STRATEGY", "skip")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "skip", cfg.Deploy.Strategy)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad_strategy", "[deploy]\nstrategy = \"merge\"\n"},
		{"zero_retries", "[lock]\nretries = 0\n"},
		{"negative_delay", "[lock]\ndelay-ms = -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "claupack.toml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			_, err := Load(path)

			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrInvalidInput))
		})
	}
}

func TestLoad_UnparseableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "claupack.toml")
	require.NoError(t, os.WriteFile(path, []byte("not toml ==="), 0644))

	_, err := Load(path)

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfigParse))
}

func TestGetDefaultConfigContent(t *testing.T) {
	content := GetDefaultConfigContent()
	assert.Contains(t, content, "[deploy]")
	assert.Contains(t, content, "strategy")
}
