package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thewriterben/wildcam-mesh/internal/api"
	"github.com/thewriterben/wildcam-mesh/internal/mesh"
	"github.com/thewriterben/wildcam-mesh/internal/storage"
	"github.com/thewriterben/wildcam-mesh/internal/transport"
	"github.com/thewriterben/wildcam-mesh/pkg/utils"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML config file (optional)")
		dbPath     = flag.String("db", "", "Database file path (overrides config)")
		radioBind  = flag.String("radio-bind", "", "UDP bind address for the mesh radio link (overrides config)")
		logLevel   = flag.String("log-level", "", "Log level (DEBUG, INFO, WARN, ERROR)")
	)

	flag.Parse()

	cfg, err := utils.LoadConfig(*configPath)
	if err != nil {
		utils.Fatal("Failed to load configuration: %v", err)
	}
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}
	if *radioBind != "" {
		cfg.RadioBindAddr = *radioBind
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	utils.SetDefaultLogLevel(cfg.GetLogLevel())

	utils.Info("Starting WildCAM mesh coordinator")
	utils.Info("Database: %s", cfg.DatabasePath)
	utils.Info("Radio link: %s", cfg.RadioBindAddr)
	utils.Info("API server: %s", cfg.GetHTTPAddress())
	utils.Info("Failure timeout: %v", cfg.FailureTimeout)

	// Initialize storage
	store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
	if err != nil {
		utils.Fatal("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	// Bind the radio link
	radio, err := transport.NewUDPTransport(cfg.RadioBindAddr, cfg.InboxCapacity, utils.NewLogger("radio", cfg.GetLogLevel()))
	if err != nil {
		utils.Fatal("Failed to bind radio transport: %v", err)
	}

	// Create the coordinator core
	coordinator := mesh.NewCoordinator(radio, radio.Inbox(), store, mesh.Options{
		FailureTimeout:       cfg.FailureTimeout,
		TaskTimeout:          cfg.TaskTimeout,
		PendingRetryInterval: cfg.PendingRetryInterval,
		FaultLogCapacity:     cfg.FaultLogCapacity,
		Logger:               utils.NewLogger("coordinator", cfg.GetLogLevel()),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	radio.Start(ctx)
	go coordinator.Run(ctx, cfg.SweepInterval, store)

	// Create API server
	apiServer := api.NewServer(store, coordinator, cfg.GetHTTPAddress())

	go func() {
		if err := apiServer.Start(); err != nil {
			utils.Error("API server error: %v", err)
		}
	}()

	utils.Info("Coordinator started successfully")

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	utils.Info("Received shutdown signal")

	// Graceful shutdown
	utils.Info("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		utils.Error("API server shutdown error: %v", err)
	}

	cancel()
	radio.Close()

	utils.Info("Shutdown complete")
}
