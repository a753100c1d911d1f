package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"hotel_inventory/internal/adapters/observability"
	"hotel_inventory/internal/app"
	"hotel_inventory/internal/bootstrap"
	"hotel_inventory/internal/shared"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	log.Info().
		Int("workers", cfg.SweepWorkers).
		Dur("interval", cfg.SweepInterval).
		Bool("auto_no_show", cfg.SweepNoShow).
		Msg("sweeper starting")

	if cfg.Store == "memory" {
		log.Fatal().Msg("sweeper needs a shared store; set STORE=mysql")
	}

	deps, err := bootstrap.Build(ctx, cfg, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("bootstrap failed")
	}
	if !deps.Locks.Shared() {
		deps.Close()
		log.Fatal().Str("lock_backend", cfg.LockBackend).Msg("sweeper runs beside the api; set LOCK_BACKEND=redis")
	}
	observability.Serve(cfg.MetricsAddr, observability.InitRegistry())
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := deps.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("audit drain incomplete")
		}
	}()

	sw := app.NewSweeper(deps.Engine(cfg, log.Logger), cfg.SweepWorkers, cfg.SweepNoShow, log.Logger)
	tick := time.NewTicker(cfg.SweepInterval)
	defer tick.Stop()

	for {
		start := time.Now()
		rep, err := sw.Sweep(ctx)
		if err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("sweep failed")
		} else {
			log.Info().
				Int("rooms", rep.Rooms).
				Int("refreshed", rep.Refreshed).
				Int("no_shows", rep.NoShows).
				Int("failed", rep.Failed).
				Dur("took", time.Since(start)).
				Msg("sweep completed")
		}

		select {
		case <-ctx.Done():
			log.Info().Msg("sweeper stopped")
			return
		case <-tick.C:
		}
	}
}
