package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"comment-thread/internal/logging"
	"comment-thread/simulator"
)

func main() {
	config := simulator.DefaultSimConfig("http://localhost:8080")

	var logLevel string
	flag.StringVar(&config.EngineURL, "url", config.EngineURL, "Base URL of the comment-thread server.")
	flag.IntVar(&config.NumSessions, "sessions", config.NumSessions, "Number of concurrent sessions.")
	flag.DurationVar(&config.SimulationTime, "duration", config.SimulationTime, "How long to generate traffic.")
	flag.DurationVar(&config.ActionInterval, "interval", config.ActionInterval, "Pause between two actions of a session.")
	flag.Float64Var(&config.ZipfS, "zipf", config.ZipfS, "Skew of target selection, must be > 1.")
	flag.Int64Var(&config.Seed, "seed", 0, "Random seed, 0 uses the clock.")
	flag.StringVar(&logLevel, "log", "info", "Log level: debug, info, warn, error.")
	flag.Parse()

	logging.Setup(logLevel, "text")

	log.Infof("Starting simulation with configuration:")
	log.Infof("- Engine URL: %s", config.EngineURL)
	log.Infof("- Sessions: %d", config.NumSessions)
	log.Infof("- Simulation time: %v", config.SimulationTime)
	log.Infof("- Action interval: %v", config.ActionInterval)
	log.Infof("- Zipf parameter: %.2f", config.ZipfS)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sim := simulator.NewSimulator(config)
	err := sim.Run(ctx)

	metrics := sim.GetMetrics()
	log.Infof("Simulation completed. Final metrics:")
	log.Infof("- Sessions: %d", metrics.TotalSessions)
	log.Infof("- Comments: %d, replies: %d", metrics.TotalComments, metrics.TotalReplies)
	log.Infof("- Edits: %d, deletes: %d, votes: %d", metrics.TotalEdits, metrics.TotalDeletes, metrics.TotalVotes)
	log.Infof("- Average latency: %v (%.1f req/s)", metrics.AverageLatency, metrics.RequestsPerSecond)
	log.Infof("- Error count: %d", metrics.ErrorCount)

	if err != nil {
		log.Fatalf("Simulation failed: %v", err)
	}
}
