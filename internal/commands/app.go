package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/fintrack-dev/fintrack/internal/config"
	"github.com/fintrack-dev/fintrack/internal/importer"
	"github.com/fintrack-dev/fintrack/internal/importlog"
	"github.com/fintrack-dev/fintrack/internal/ledger"
	"github.com/fintrack-dev/fintrack/internal/ledger/pgledger"
	"github.com/fintrack-dev/fintrack/internal/staging"
)

// app is the wired import pipeline for one workspace.
type app struct {
	root    string
	cfg     *config.Config
	presets *importer.Registry
	staged  *staging.Cache
	service *importer.Service
	closers []func()
}

// appOptions tweaks how the pipeline is wired.
type appOptions struct {
	ttl       time.Duration
	commitLog bool
}

// loadConfig reads <root>/fintrack.yaml, falling back to defaults when the
// file does not exist, then applies environment overrides and validates.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = config.Default()
	} else if err != nil {
		return nil, err
	}

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// newApp wires storage, staging and the import service for root.
func newApp(ctx context.Context, root string, cfg *config.Config, logger zerolog.Logger, opts appOptions) (*app, error) {
	a := &app{root: root, cfg: cfg}

	repo, err := a.openRepository(ctx, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	presets, err := presetRegistry(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.presets = presets

	a.staged = staging.NewCache(opts.ttl, logger)
	a.closers = append(a.closers, a.staged.Close)

	svcOpts := []importer.Option{importer.WithSampleSize(cfg.Staging.SampleSize)}
	if opts.commitLog {
		svcOpts = append(svcOpts, importer.WithCommitLog(importlog.New(root)))
	}
	a.service = importer.NewService(a.staged, repo, svcOpts...)
	return a, nil
}

func (a *app) openRepository(ctx context.Context, logger zerolog.Logger) (importer.Repository, error) {
	switch a.cfg.Storage.Driver {
	case config.DriverPostgres:
		pool, err := pgxpool.New(ctx, a.cfg.Storage.DSN)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		a.closers = append(a.closers, pool.Close)

		if err := pool.Ping(ctx); err != nil {
			return nil, fmt.Errorf("pinging database: %w", err)
		}
		store := pgledger.NewStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		logger.Info().Str("driver", config.DriverPostgres).Msg("ledger opened")
		return store, nil

	default:
		dir := a.cfg.Storage.Dir
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(a.root, dir)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating ledger dir: %w", err)
		}
		logger.Info().Str("driver", config.DriverCSV).Str("dir", dir).Msg("ledger opened")
		return ledger.NewStore(dir), nil
	}
}

// Close releases everything newApp opened, in reverse order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// presetRegistry returns the built-in presets plus those defined in cfg.
func presetRegistry(cfg *config.Config) (*importer.Registry, error) {
	r := importer.DefaultRegistry()

	names := make([]string, 0, len(cfg.Presets))
	for name := range cfg.Presets {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if r.Get(name) != nil {
			return nil, fmt.Errorf("preset %q is already defined", name)
		}
		r.Register(importer.Preset{Name: name, Description: "from " + config.FileName, Mapping: cfg.Presets[name]})
	}
	return r, nil
}
