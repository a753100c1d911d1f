package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	server "hotel_inventory/internal/adapters/http_server"
	"hotel_inventory/internal/adapters/observability"
	"hotel_inventory/internal/app"
	"hotel_inventory/internal/bootstrap"
	"hotel_inventory/internal/domain"
	"hotel_inventory/internal/shared"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	deps, err := bootstrap.Build(ctx, cfg, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("bootstrap failed")
	}
	eng := deps.Engine(cfg, log.Logger)
	q := app.NewQueryService(deps.Repo, eng, deps.Cache, cfg.CacheTTL)

	if cfg.SeedDemo {
		seedDemo(ctx, eng)
	}

	// http
	srv := server.New()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{E: eng, Q: q})

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := deps.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("audit drain incomplete")
	}
}

var demoRooms = []domain.Room{
	{Number: "101", Building: "A", Floor: 1, Capacity: 1, Type: domain.RoomSingle, NightlyRate: 80},
	{Number: "102", Building: "A", Floor: 1, Capacity: 2, Type: domain.RoomDouble, NightlyRate: 110},
	{Number: "201", Building: "A", Floor: 2, Capacity: 2, Type: domain.RoomDoubleWithBalcony, NightlyRate: 135, Amenities: []string{"balcony"}},
	{Number: "202", Building: "A", Floor: 2, Capacity: 4, Type: domain.RoomFamily, NightlyRate: 180},
	{Number: "301", Building: "B", Floor: 3, Capacity: 2, Type: domain.RoomLuxury, NightlyRate: 260, Amenities: []string{"minibar", "sea view"}},
	{Number: "302", Building: "B", Floor: 3, Capacity: 4, Type: domain.RoomLuxury2x, NightlyRate: 420, Amenities: []string{"minibar", "sea view", "jacuzzi"}},
}

func seedDemo(ctx context.Context, eng *app.Engine) {
	ctx = app.WithActor(ctx, "seed")
	for _, r := range demoRooms {
		room, err := eng.ProvisionRoom(ctx, r)
		if rej, ok := domain.AsRejection(err); ok && rej.Reason == domain.ReasonRoomExists {
			continue
		}
		if err != nil {
			log.Warn().Err(err).Str("number", r.Number).Msg("seed room failed")
			continue
		}
		log.Info().Str("id", room.ID).Str("number", room.Number).Msg("seeded room")
	}
}
