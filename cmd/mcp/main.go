package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urmzd/devicehub/pkg/app"
	"github.com/urmzd/devicehub/pkg/config"
	hubmcp "github.com/urmzd/devicehub/pkg/mcp"
)

const version = "1.0.0"

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
	// stdout is the MCP transport; logs go to stderr only.
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
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := hub.Close(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Failed to shut down cleanly")
		}
	}()

	deps := hubmcp.Dependencies{
		Service: hub.Service,
		Hue:     hub.Hue,
		Nest:    hub.Nest,
		Ring:    hub.Ring,
		Kasa:    hub.Kasa,
	}
	if hub.MQTT != nil {
		deps.MQTT = hub.MQTT
	}
	server := hubmcp.NewServer(deps, version)

	log.Info().Strs("tools", server.Tools()).Msg("Starting MCP server on stdio")

	// ServeStdio handles SIGINT/SIGTERM itself and returns.
	if err := server.ServeStdio(); err != nil {
		log.Error().Err(err).Msg("MCP server failed")
	}
}
