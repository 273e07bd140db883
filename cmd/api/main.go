package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urmzd/devicehub/pkg/api"
	"github.com/urmzd/devicehub/pkg/app"
	"github.com/urmzd/devicehub/pkg/config"

	_ "github.com/urmzd/devicehub/docs"
)

// @title           DeviceHub API
// @version         1.0
// @description     REST API for registering and controlling IoT devices

// @host      localhost:8080
// @BasePath  /api/v1
// @schemes   http https

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (defaults apply when missing)")
	dbPath := flag.String("db", "", "Path to database file (default: ~/.config/devicehub/devicehub.db)")
	storeKind := flag.String("store", app.StoreSQLite, "Device store: sqlite or file")
	storePath := flag.String("store-path", "", "Path to the JSON device file when -store=file")
	profile := flag.String("profile", "", "Profile to activate (created when missing); empty keeps the active profile")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logs := config.SetupLogging(cfg.Logging, os.Stderr)
	defer logs.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub, err := app.Build(ctx, app.Options{
		Store:     *storeKind,
		DBPath:    *dbPath,
		StorePath: *storePath,
		Profile:   *profile,
		Config:    cfg,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise device hub")
	}
	hub.Start(ctx)

	deps := api.Dependencies{
		Service: hub.Service,
		Hue:     hub.Hue,
	}
	if hub.MQTT != nil {
		deps.Broker = hub.MQTT
	}
	router := api.NewRouter(deps)

	srv := &http.Server{
		Addr:              hub.ListenAddress(),
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("address", srv.Addr).Msg("Starting API server")
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down...")
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to stop API server")
	}
	if err := hub.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to shut down cleanly")
	}
}
