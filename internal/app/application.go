// Package app wires the server's components together in dependency order:
// store → directory → identity → registry → websocket → api → http.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"boardsync/internal/api"
	"boardsync/internal/config"
	"boardsync/internal/directory"
	"boardsync/internal/identity"
	"boardsync/internal/registry"
	"boardsync/internal/store"
	"boardsync/internal/websocket"
	"boardsync/pkg/interfaces"
)

type Application struct {
	cfg        *config.Config
	log        *zap.Logger
	store      interfaces.BoardStore
	registry   *registry.Registry
	httpServer *http.Server
}

func NewApplication(cfg *config.Config, log *zap.Logger) (*Application, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	boardStore, err := newStore(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("initialize board store: %w", err)
	}

	dir, err := newDirectory(cfg)
	if err != nil {
		_ = boardStore.Close()
		return nil, fmt.Errorf("initialize directory: %w", err)
	}

	idp := identity.NewJWTProvider(cfg.Auth.Secret)

	reg := registry.New(boardStore, dir, registry.Options{
		PersistDelay:  cfg.Room.PersistDelay,
		FlushInterval: cfg.Room.FlushInterval,
	}, log)

	wsHandler := websocket.NewHandler(reg, idp, log)
	apiServer := api.NewServer(reg, boardStore, wsHandler, log)

	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      apiServer,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		cfg:        cfg,
		log:        log,
		store:      boardStore,
		registry:   reg,
		httpServer: httpServer,
	}, nil
}

func newStore(cfg *config.Config, log *zap.Logger) (interfaces.BoardStore, error) {
	switch cfg.Store.Backend {
	case "sqlite":
		return store.NewSQLiteStore(cfg.Store.Path, log)
	case "redis":
		return store.NewRedisStore(cfg.Store.RedisAddr)
	case "memory":
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func newDirectory(cfg *config.Config) (interfaces.Directory, error) {
	switch cfg.Directory.Backend {
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		dir, err := directory.NewPostgresDirectory(ctx, cfg.Directory.DSN)
		if err != nil {
			return nil, err
		}
		if err := dir.Migrate(ctx); err != nil {
			dir.Close()
			return nil, err
		}
		return dir, nil
	case "static":
		return directory.NewStatic(), nil
	default:
		return nil, fmt.Errorf("unknown directory backend %q", cfg.Directory.Backend)
	}
}

// Start begins serving. It returns once the listener is accepting or has
// failed to bind.
func (a *Application) Start(ctx context.Context) error {
	a.log.Info("starting boardsync", zap.String("addr", a.httpServer.Addr))

	errCh := make(chan error, 1)
	go func() {
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-time.After(100 * time.Millisecond):
		a.log.Info("boardsync started")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop shuts components down in reverse order: HTTP → rooms → store.
func (a *Application) Stop(ctx context.Context) error {
	a.log.Info("shutting down boardsync")

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.log.Error("http shutdown", zap.Error(err))
	}
	a.registry.Shutdown()
	if err := a.store.Close(); err != nil {
		a.log.Error("store shutdown", zap.Error(err))
	}

	a.log.Info("shutdown complete")
	return nil
}

// Addr returns the configured listen address.
func (a *Application) Addr() string {
	return a.httpServer.Addr
}
