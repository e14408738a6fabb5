package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/bdt-io/bdt/internal/app"
	"github.com/bdt-io/bdt/internal/config"
	"github.com/bdt-io/bdt/internal/logger"
	"github.com/bdt-io/bdt/internal/version"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config"
	}
	loadErr := config.Load(configPath)
	cfg := config.Get()

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format).With().Str("service", "bdt-server").Logger()
	if loadErr != nil {
		log.Warn().Err(loadErr).Str("path", configPath).Msg("configuration file ignored, using defaults and environment")
	}

	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error().Err(err).Msg("shutdown cleanup failed")
		}
	}()

	runnerCtx, stopRunner := context.WithCancel(ctx)
	defer stopRunner()
	if cfg.Runner.Enabled {
		r := a.Runner()
		go func() {
			if err := r.Start(runnerCtx); err != nil {
				log.Error().Err(err).Msg("task runner failed")
			}
		}()
	}

	srv := a.Server()
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version.String()).Msg("starting bdt server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	stopRunner()
	return srv.Shutdown(shutdownCtx)
}
