package commands

import (
	"github.com/arthur-debert/claupack/pkg/config"
	"github.com/arthur-debert/claupack/pkg/conflict"
	"github.com/arthur-debert/claupack/pkg/deploy"
	"github.com/arthur-debert/claupack/pkg/filesystem"
	"github.com/arthur-debert/claupack/pkg/git"
	"github.com/arthur-debert/claupack/pkg/migration"
	"github.com/arthur-debert/claupack/pkg/paths"
	"github.com/arthur-debert/claupack/pkg/prompt"
	"github.com/arthur-debert/claupack/pkg/recovery"
	"github.com/arthur-debert/claupack/pkg/registry"
	"github.com/arthur-debert/claupack/pkg/state"
	"github.com/arthur-debert/claupack/pkg/types"
)

// appContext wires the components together once per invocation. There
// is deliberately no ambient global state: every component receives
// its collaborators explicitly.
type appContext struct {
	cfg      *config.Config
	fs       types.FS
	paths    paths.Paths
	store    *state.Store
	tracker  *state.Tracker
	registry *registry.Registry
	engine   *deploy.Engine
	migrator *migration.Migrator
	recovery *recovery.Coordinator
	git      types.SourceControl
}

// newAppContext resolves configuration and constructs the component
// graph.
func newAppContext() (*appContext, error) {
	fs := filesystem.NewOS()

	p, err := paths.New("")
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(p.ConfigFilePath())
	if err != nil {
		return nil, err
	}
	if cfg.ExtensionDir != "" {
		if p, err = paths.New(cfg.ExtensionDir); err != nil {
			return nil, err
		}
	}

	store := state.NewStore(fs, p).WithLockRetry(cfg.Lock.Retries, cfg.Lock.Delay())
	tracker := state.NewTracker(store, p).WithCacheTTL(cfg.Cache.TTL())
	engine := deploy.New(fs, p, prompt.NewTerminal(), conflict.Strategy(cfg.Deploy.Strategy)).
		WithPromptTimeout(cfg.Prompt.Timeout())

	return &appContext{
		cfg:      cfg,
		fs:       fs,
		paths:    p,
		store:    store,
		tracker:  tracker,
		registry: registry.New(store, tracker),
		engine:   engine,
		migrator: migration.New(fs, p, store),
		recovery: recovery.NewCoordinator(fs, p, store),
		git:      git.NewClient(),
	}, nil
}
