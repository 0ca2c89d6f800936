package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/cospace/cospace-server/internal/auth"
	"github.com/cospace/cospace-server/internal/authz"
	"github.com/cospace/cospace-server/internal/config"
	"github.com/cospace/cospace-server/internal/core"
	"github.com/cospace/cospace-server/internal/store"
	"github.com/cospace/cospace-server/internal/store/sqlite"
	transporthttp "github.com/cospace/cospace-server/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	engine          *core.Engine
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	jwtConfig := &auth.Config{
		Secret:   []byte(cfg.JWT.Secret),
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
	}

	oracle := authz.NewStoreOracle(st)
	gate := authz.NewGate(oracle, cfg.Authz.CacheTTL, logger)

	engine := core.NewEngine(gate, st, core.Options{
		LockTTL:     cfg.Engine.LockTTL,
		LockSweep:   cfg.Engine.LockSweep,
		TypingTTL:   cfg.Engine.TypingTTL,
		TypingSweep: cfg.Engine.TypingSweep,
	}, logger)

	server := transporthttp.NewServer(engine, gate, st, jwtConfig, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		engine:          engine,
		store:           st,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go a.engine.Run(ctx)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
