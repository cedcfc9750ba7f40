// Package app assembles the long-lived services from configuration and runs
// the HTTP server, progress hub and maintenance loop.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/pubsub"
	gstorage "cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/mbazhenov/scoutbot/internal/api"
	"github.com/mbazhenov/scoutbot/internal/clock/system"
	"github.com/mbazhenov/scoutbot/internal/commands"
	"github.com/mbazhenov/scoutbot/internal/config"
	uuidgen "github.com/mbazhenov/scoutbot/internal/id/uuid"
	"github.com/mbazhenov/scoutbot/internal/logrouter"
	"github.com/mbazhenov/scoutbot/internal/maintenance"
	"github.com/mbazhenov/scoutbot/internal/paginate"
	"github.com/mbazhenov/scoutbot/internal/permission"
	"github.com/mbazhenov/scoutbot/internal/progress"
	"github.com/mbazhenov/scoutbot/internal/progress/sinks"
	"github.com/mbazhenov/scoutbot/internal/report"
	scannercli "github.com/mbazhenov/scoutbot/internal/scanner/cli"
	scannermem "github.com/mbazhenov/scoutbot/internal/scanner/memory"
	"github.com/mbazhenov/scoutbot/internal/scheduler"
	"github.com/mbazhenov/scoutbot/internal/scout"
	"github.com/mbazhenov/scoutbot/internal/storage/gcs"
	"github.com/mbazhenov/scoutbot/internal/storage/local"
	storagemem "github.com/mbazhenov/scoutbot/internal/storage/memory"
	storemem "github.com/mbazhenov/scoutbot/internal/store/memory"
	"github.com/mbazhenov/scoutbot/internal/store/postgres"
	"github.com/mbazhenov/scoutbot/internal/store/sqlite"
)

// App holds the assembled services.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	version string

	store   scout.RecordStore
	hub     *progress.Hub
	sweeper *maintenance.Sweeper
	server  *api.Server

	closers []func()
}

// New builds the App from configuration. It fails fast: any provider that
// cannot be initialized aborts startup.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, version string) (*App, error) {
	a := &App{cfg: cfg, logger: logger, version: version}

	clock := system.New()
	idGen := uuidgen.NewGenerator()

	store, err := a.newRecordStore(ctx)
	if err != nil {
		return nil, err
	}
	a.store = store

	blobs, err := a.newBlobStore(ctx)
	if err != nil {
		return nil, err
	}

	scanner, err := a.newScanner()
	if err != nil {
		return nil, err
	}

	sender, err := a.newSender(ctx)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	promSink, err := sinks.NewPrometheusSink(registry)
	if err != nil {
		return nil, fmt.Errorf("register search metrics: %w", err)
	}

	a.hub = progress.NewHub(progress.Config{Logger: logger},
		sinks.NewLogSink(logger),
		promSink,
		sinks.NewHistorySink(store, logger),
	)

	queue := scheduler.New(scanner, clock, idGen, a.hub, scheduler.Config{
		Limits:      cfg.Limits(),
		MaxDuration: time.Duration(cfg.Search.MaxDurationSeconds) * time.Second,
	}, logger)

	router := logrouter.New(store, sender, clock, logrouter.Config{
		FileDir: cfg.Maintenance.LogDir,
	}, logger)

	arena := paginate.NewArena(clock,
		time.Duration(cfg.Pagination.TTLMinutes)*time.Minute,
		cfg.Pagination.MaxSessions,
	)

	a.sweeper = maintenance.New(maintenance.Config{
		Schedule:     cfg.Maintenance.Schedule,
		LogDir:       cfg.Maintenance.LogDir,
		LogRetention: time.Duration(cfg.Maintenance.LogRetentionDays) * 24 * time.Hour,
	}, clock, arena, logger)

	svc := commands.New(commands.Deps{
		Gate:     permission.NewGate(cfg.Owners, store, logger),
		Queue:    queue,
		Store:    store,
		Router:   router,
		Writer:   report.NewWriter(),
		Blobs:    blobs,
		Arena:    arena,
		Scanner:  scanner,
		Sweeper:  a.sweeper,
		Clock:    clock,
		IDGen:    idGen,
		Logger:   logger,
		Defaults: cfg.Defaults(),
		Limits:   cfg.Limits(),
		PerPage:  cfg.Pagination.PerPage,
		Version:  version,
	})

	apiCfg := api.Config{
		RequestTimeout: time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
	}
	if cfg.Auth.Enabled {
		apiCfg.APIKey = cfg.Auth.APIKey
	}
	a.server = api.NewServer(svc, arena, registry, apiCfg, logger)

	return a, nil
}

// Run starts the maintenance loop and the HTTP server, then blocks until ctx
// is cancelled and everything has shut down.
func (a *App) Run(ctx context.Context) error {
	if err := a.sweeper.Start(); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("http shutdown", zap.Error(err))
	}

	a.sweeper.Stop()
	if err := a.hub.Close(shutdownCtx); err != nil {
		a.logger.Warn("progress hub close", zap.Error(err))
	}
	for _, closer := range a.closers {
		closer()
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("record store close", zap.Error(err))
	}
	return nil
}

func (a *App) newRecordStore(ctx context.Context) (scout.RecordStore, error) {
	switch a.cfg.Store.Provider {
	case "sqlite":
		a.logger.Info("using sqlite record store", zap.String("data_dir", a.cfg.Store.DataDir))
		store, err := sqlite.Open(a.cfg.Store.DataDir)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, nil
	case "postgres":
		a.logger.Info("using postgres record store")
		store, err := postgres.New(ctx, postgres.Config{
			DSN:      a.cfg.Store.DSN,
			MaxConns: a.cfg.Store.MaxConns,
			MinConns: a.cfg.Store.MinConns,
		})
		if err != nil {
			return nil, fmt.Errorf("connect postgres store: %w", err)
		}
		return store, nil
	case "memory":
		a.logger.Info("using in-memory record store; data will not survive restarts")
		return storemem.NewRecordStore(), nil
	default:
		return nil, fmt.Errorf("unknown store.provider %q", a.cfg.Store.Provider)
	}
}

func (a *App) newBlobStore(ctx context.Context) (scout.BlobStore, error) {
	switch a.cfg.Storage.Provider {
	case "local":
		a.logger.Info("using local blob store", zap.String("base_dir", a.cfg.Storage.BaseDir))
		blobs, err := local.New(local.Config{BaseDir: a.cfg.Storage.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("init local blob store: %w", err)
		}
		return blobs, nil
	case "gcs":
		a.logger.Info("using gcs blob store", zap.String("bucket", a.cfg.Storage.GCSBucket))
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		blobs, err := gcs.New(client, gcs.Config{Bucket: a.cfg.Storage.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("init gcs blob store: %w", err)
		}
		return blobs, nil
	case "memory":
		a.logger.Info("using in-memory blob store; artifacts will not survive restarts")
		return storagemem.NewBlobStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage.provider %q", a.cfg.Storage.Provider)
	}
}

func (a *App) newScanner() (scout.Scanner, error) {
	switch a.cfg.Scanner.Provider {
	case "cli":
		a.logger.Info("using cli scan engine", zap.String("binary", a.cfg.Scanner.Binary))
		return scannercli.New(scannercli.Config{
			Binary:     a.cfg.Scanner.Binary,
			ExtraArgs:  a.cfg.Scanner.ExtraArgs,
			ReloadArgs: a.cfg.Scanner.ReloadArgs,
		}, a.logger)
	case "memory":
		a.logger.Info("using synthetic scan engine")
		return scannermem.New(scannermem.Config{StepDelay: 100 * time.Millisecond}), nil
	default:
		return nil, fmt.Errorf("unknown scanner.provider %q", a.cfg.Scanner.Provider)
	}
}

func (a *App) newSender(ctx context.Context) (logrouter.Sender, error) {
	if a.cfg.PubSub.ProjectID == "" {
		a.logger.Info("no pubsub project configured; routed messages stay in memory")
		return logrouter.NewMemorySender(), nil
	}
	a.logger.Info("using pubsub sender", zap.String("project", a.cfg.PubSub.ProjectID))
	client, err := pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	sender, err := logrouter.NewPubSubSender(client)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, sender.Close)
	a.closers = append(a.closers, func() { _ = client.Close() })
	return sender, nil
}
