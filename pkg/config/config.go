// Package config loads claupack's layered configuration: embedded
// defaults, then the user config file, then CLAUPACK_* environment
// variables.
package config

import (
	_ "embed"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	cperrors "github.com/arthur-debert/claupack/pkg/errors"
)

//go:embed embedded/defaults.toml
var defaultConfig []byte

// GetDefaultConfigContent returns the content of the built-in default
// configuration, used by the CLI to generate a starting config file.
func GetDefaultConfigContent() string {
	return string(defaultConfig)
}

// rawBytesProvider implements koanf provider for raw bytes
type rawBytesProvider struct{ bytes []byte }

func (r *rawBytesProvider) ReadBytes() ([]byte, error) { return r.bytes, nil }
func (r *rawBytesProvider) Read() (map[string]interface{}, error) {
	return nil, errors.New("not implemented")
}

// Config is the resolved claupack configuration.
type Config struct {
	// ExtensionDir overrides the deployment target root when non-empty.
	ExtensionDir string `koanf:"extension-dir"`

	Deploy DeployConfig `koanf:"deploy"`
	Lock   LockConfig   `koanf:"lock"`
	Cache  CacheConfig  `koanf:"cache"`
	Prompt PromptConfig `koanf:"prompt"`
}

// DeployConfig controls the deployment engine.
type DeployConfig struct {
	// Strategy is the non-interactive conflict strategy: "overwrite"
	// or "skip".
	Strategy string `koanf:"strategy"`
}

// LockConfig tunes state file lock acquisition.
type LockConfig struct {
	Retries int `koanf:"retries"`
	DelayMS int `koanf:"delay-ms"`
}

// Delay returns the retry delay as a duration.
func (l LockConfig) Delay() time.Duration {
	return time.Duration(l.DelayMS) * time.Millisecond
}

// CacheConfig tunes the tracker's read cache.
type CacheConfig struct {
	TTLSeconds int `koanf:"ttl-seconds"`
}

// TTL returns the cache TTL as a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// PromptConfig tunes interactive confirmation.
type PromptConfig struct {
	TimeoutSeconds int `koanf:"timeout-seconds"`
}

// Timeout returns the prompt timeout as a duration.
func (p PromptConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// Load resolves the configuration. configFilePath may be empty or
// point at a file that does not exist; both mean defaults plus env.
func Load(configFilePath string) (*Config, error) {
	k := koanf.New(".")

	// 1. Embedded defaults
	if err := k.Load(&rawBytesProvider{bytes: defaultConfig}, toml.Parser()); err != nil {
		return nil, cperrors.Wrap(err, cperrors.ErrConfigParse, "failed to load default configuration")
	}

	// 2. User config file, when present
	if configFilePath != "" {
		if _, err := os.Stat(configFilePath); err == nil {
			if err := k.Load(file.Provider(configFilePath), toml.Parser()); err != nil {
				return nil, cperrors.Wrapf(err, cperrors.ErrConfigParse, "failed to load config from %s", configFilePath)
			}
		}
	}

	// 3. Environment variables: CLAUPACK_DEPLOY_STRATEGY -> deploy.strategy
	if err := k.Load(env.Provider("CLAUPACK_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "CLAUPACK_")), "_", ".")
	}), nil); err != nil {
		return nil, cperrors.Wrap(err, cperrors.ErrConfigLoad, "failed to load environment variables")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, cperrors.Wrap(err, cperrors.ErrConfigParse, "failed to unmarshal configuration")
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	switch cfg.Deploy.Strategy {
	case "overwrite", "skip":
	default:
		return cperrors.Newf(cperrors.ErrInvalidInput, "invalid deploy strategy %q (want overwrite or skip)", cfg.Deploy.Strategy)
	}
	if cfg.Lock.Retries < 1 {
		return cperrors.New(cperrors.ErrInvalidInput, "lock.retries must be at least 1")
	}
	if cfg.Lock.DelayMS < 0 {
		return cperrors.New(cperrors.ErrInvalidInput, "lock.delay-ms must not be negative")
	}
	return nil
}
