package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/teamcache/teamcache/internal/backup"
	"github.com/teamcache/teamcache/internal/connectivity"
	"github.com/teamcache/teamcache/internal/logging"
	"github.com/teamcache/teamcache/internal/remote/postgres"
	"github.com/teamcache/teamcache/internal/store"
	tcsync "github.com/teamcache/teamcache/internal/sync"
	"github.com/teamcache/teamcache/internal/teams"
)

// app holds the components a command needs. main attaches an empty app to
// the command context; everything is opened on first use and closed once by
// close.
type app struct {
	logger   *zap.Logger
	closeLog func() error

	provider *store.Provider
	store    *store.Store
	teams    *teams.Service
	backup   *backup.Service

	remote *postgres.Store
	engine *tcsync.Engine
}

type appKey struct{}

// withApp returns a copy of ctx carrying a.
func withApp(ctx context.Context, a *app) context.Context {
	return context.WithValue(ctx, appKey{}, a)
}

// appFrom returns the app attached to ctx.
func appFrom(ctx context.Context) (*app, error) {
	a, ok := ctx.Value(appKey{}).(*app)
	if !ok || a == nil {
		return nil, errors.New("command context carries no app")
	}
	return a, nil
}

// local opens the logger and the local store.
func local(ctx context.Context) (*app, error) {
	a, err := appFrom(ctx)
	if err != nil {
		return nil, err
	}
	if a.store != nil {
		return a, nil
	}

	logger, closeLog, err := logging.New(logging.Options{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		File:        cfg.Log.File,
		Development: !cfg.IsProduction(),
	})
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		_ = closeLog()
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	provider := store.NewProvider(cfg.StorePath())
	st, err := provider.Open(ctx)
	if err != nil {
		_ = closeLog()
		return nil, err
	}

	svc := teams.New(st, logger.Named("teams"))
	a.logger = logger
	a.closeLog = closeLog
	a.provider = provider
	a.store = st
	a.teams = svc
	a.backup = backup.New(st, svc, logger.Named("backup"))
	return a, nil
}

// withRemote additionally opens the remote store and builds the sync
// engine. An unreachable remote is not an error here; each cycle probes
// connectivity and is skipped while the remote is down.
func withRemote(ctx context.Context) (*app, error) {
	a, err := local(ctx)
	if err != nil {
		return nil, err
	}
	if a.engine != nil {
		return a, nil
	}
	if cfg.Remote.DSN == "" {
		return nil, errors.New("no remote configured; set remote.dsn or TEAMCACHE_REMOTE_DSN")
	}

	rs, err := postgres.Open(ctx, cfg.Remote.DSN, a.logger.Named("remote"))
	if err != nil {
		return nil, err
	}
	a.remote = rs

	prober := connectivity.NewProber(rs, cfg.Remote.PingTimeout, cfg.Remote.PingCache, a.logger.Named("connectivity"))
	a.engine = tcsync.NewEngine(
		tcsync.NewProcessor(a.store, rs, prober, a.logger.Named("push")),
		tcsync.NewPuller(a.store, rs, a.logger.Named("pull")),
		prober,
		tcsync.Config{CycleTimeout: cfg.Sync.CycleTimeout},
		a.logger.Named("sync"),
	)
	return a, nil
}

// requireOwner returns the configured owner id.
func requireOwner() (string, error) {
	if cfg.OwnerID == "" {
		return "", errors.New("no owner configured; pass --owner or set owner_id")
	}
	return cfg.OwnerID, nil
}

// close releases whatever local and withRemote opened. It is safe on an
// app that was never opened.
func (a *app) close() error {
	if a.remote != nil {
		a.remote.Close()
		a.remote = nil
	}
	if a.provider == nil {
		return nil
	}
	err := multierr.Append(a.provider.Close(), a.closeLog())
	a.provider = nil
	a.store = nil
	return err
}
