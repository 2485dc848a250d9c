package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/santelocale/healthlog/internal/config"
	"github.com/santelocale/healthlog/internal/keys"
	"github.com/santelocale/healthlog/internal/observability"
	"github.com/santelocale/healthlog/internal/prefs"
	"github.com/santelocale/healthlog/internal/repository"
	"github.com/santelocale/healthlog/internal/seed"
	"github.com/santelocale/healthlog/internal/store"
)

// app is the object graph behind one command: config, key manager,
// store provider and repository. Nothing touches disk beyond the prefs
// file until a command asks the provider for the store.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	prefs    *prefs.Store
	wrapper  *keys.AEADWrapper
	keys     *keys.Manager
	provider *store.Provider
	repo     *repository.Repository
	loader   *seed.Loader

	metricsFile string
}

// getenv is swapped in tests.
var getenv = os.Getenv

func openApp(opts *RootOptions, cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(opts.ConfigPath, getenv)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.DataDir != "" {
		cfg.DataDir = opts.DataDir
	}
	if opts.Keyring != "" {
		cfg.Keyring = opts.Keyring
	}
	if err := cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}
	level, _ := cfg.Level()
	logger := opts.newLogger(cmd, level)
	slog.SetDefault(logger)

	p, err := prefs.Open(cfg.PrefsPath())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open preferences", err)
	}
	installID, err := p.InstallID()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read install id", err)
	}

	var secrets keys.SecretStore
	switch cfg.Keyring {
	case config.KeyringFile:
		secrets = keys.FileStore{Dir: cfg.SecretsDir()}
	default:
		secrets = keys.KeyringStore{Service: cfg.KeyringService()}
	}
	wrapper := keys.NewAEADWrapper(secrets, fmt.Sprintf("%s-%s", cfg.KeyAlias, installID))
	manager := keys.NewManager(p, wrapper, keys.WithLogger(logger))

	loader := seed.NewLoader(seed.WithLogger(logger), seed.WithAssetFile(cfg.SeedAsset))
	provider := store.NewProvider(cfg.DatabasePath(), manager,
		store.WithLogger(logger),
		store.WithSeeder(loader.Seed),
	)

	logger.Debug("app ready", "data_dir", cfg.DataDir, "keyring", cfg.Keyring, "alias", wrapper.Alias())
	return &app{
		cfg:         cfg,
		logger:      logger,
		prefs:       p,
		wrapper:     wrapper,
		keys:        manager,
		provider:    provider,
		repo:        repository.New(provider),
		loader:      loader,
		metricsFile: opts.MetricsFile,
	}, nil
}

// Close closes the store and writes metrics if requested.
func (a *app) Close() {
	if err := a.provider.Close(); err != nil {
		a.logger.Error("error closing database", "error", err)
	}
	if a.metricsFile != "" {
		if err := observability.WriteTextfile(a.metricsFile); err != nil {
			a.logger.Warn("metrics not written", "path", a.metricsFile, "error", err)
		}
	}
}

// withApp runs fn with an opened app and closes it afterwards.
func withApp(opts *RootOptions, cmd *cobra.Command, fn func(a *app) error) error {
	a, err := openApp(opts, cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

// settings reads user settings. Until the user picks a unit, the
// configured glucose_unit applies.
func (a *app) settings() (prefs.Settings, error) {
	s, err := a.prefs.LoadSettings()
	if err != nil {
		return prefs.Settings{}, err
	}
	set, err := a.prefs.Contains(prefs.KeyGlucoseUnit)
	if err != nil {
		return prefs.Settings{}, err
	}
	if !set {
		s.GlucoseUnit = a.cfg.GlucoseUnit
	}
	return s, nil
}
