package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/lovza/sumo-server/internal/server"
)

var CLI struct {
	Config    string `short:"c" long:"config" default:"sumo-server.hcl" help:"Path to HCL configuration file"`
	Addr      string `short:"a" long:"addr" help:"Address to bind to (overrides config)"`
	LogLevel  string `short:"l" long:"log-level" help:"Log level (overrides config)"`
	Seed      int64  `long:"seed" help:"RNG seed; 0 derives one from the clock"`
	BotToken  string `env:"BOT_TOKEN" help:"Chat-bot integration token; empty disables the integration"`
	WebAppURL string `env:"WEBAPP_URL" help:"Web-app origin used for lobby deep links"`
}

func main() {
	// Optional .env for local development; missing file is fine.
	_ = godotenv.Load()

	kctx := kong.Parse(&CLI)

	cfg, err := server.LoadConfig(CLI.Config)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		kctx.Exit(1)
	}

	// Apply command line overrides
	if CLI.Addr != "" {
		cfg.Server.Addr = CLI.Addr
	}
	if CLI.LogLevel != "" {
		cfg.Server.LogLevel = CLI.LogLevel
	}

	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		kctx.Exit(1)
	}

	// Setup logging
	logger := log.New(os.Stderr)
	switch cfg.Server.LogLevel {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "info":
		logger.SetLevel(log.InfoLevel)
	case "warn":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}

	seed := CLI.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	logger.Info("Starting sumo server",
		"addr", cfg.Server.Addr,
		"botRoomsMin", cfg.BotRooms.Min,
		"botRoomsMax", cfg.BotRooms.Max,
		"chatBot", CLI.BotToken != "")

	clock := quartz.NewReal()
	registry := server.NewRegistry(logger, seed)
	srv := server.NewServer(cfg.Server.Addr, CLI.WebAppURL, registry, clock, logger)
	supervisor := server.NewBotRoomSupervisor(
		registry, srv, clock, logger, seed+1,
		cfg.BotRooms.Min, cfg.BotRooms.Max, cfg.SupervisorInterval(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Start(ctx) })
	g.Go(func() error { return supervisor.Run(ctx) })

	if err := g.Wait(); err != nil {
		logger.Error("Server failed", "error", err)
		kctx.Exit(1)
	}
	logger.Info("Shutdown complete")
}
