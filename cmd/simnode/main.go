package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thewriterben/wildcam-mesh/internal/models"
	"github.com/thewriterben/wildcam-mesh/internal/peer"
	"github.com/thewriterben/wildcam-mesh/pkg/utils"
)

func main() {
	var (
		nodeID         = flag.Uint("id", 0, "Node ID (required, nonzero)")
		coordinator    = flag.String("coordinator", "127.0.0.1:9999", "Coordinator radio address")
		statusInterval = flag.Duration("status-interval", 10*time.Second, "Status report interval")
		battery        = flag.Int("battery", 100, "Starting battery level (0-100)")
		signalDBm      = flag.Int("signal", -60, "Base signal strength in dBm")
		accelerated    = flag.Bool("accelerated", false, "Report the accelerated-processing capability")
		logLevel       = flag.String("log-level", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")
	)

	flag.Parse()

	if *nodeID == 0 {
		fmt.Println("Error: node ID is required")
		fmt.Println("Usage: simnode -id <node-id> [options]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	utils.SetDefaultLogLevel(utils.ParseLevel(*logLevel))

	config := peer.Config{
		NodeID:          models.NodeID(*nodeID),
		CoordinatorAddr: *coordinator,
		StatusInterval:  *statusInterval,
		BatteryLevel:    *battery,
		SignalStrength:  *signalDBm,
		Accelerated:     *accelerated,
	}

	p, err := peer.NewPeer(config)
	if err != nil {
		utils.Fatal("Failed to create peer: %v", err)
	}

	utils.Info("Starting simulated node %d", *nodeID)
	utils.Info("Coordinator: %s", *coordinator)
	utils.Info("Status interval: %v", *statusInterval)

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		utils.Info("Received shutdown signal")
		cancel()
	}()

	p.Run(ctx)
}
