package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"vcprobe/internal/config"
	"vcprobe/internal/probe"

	"go.uber.org/zap"
)

const (
	AppName    = "VeloCloud API Probe"
	AppVersion = "1.0.0"
)

func main() {
	// Parse command line flags
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("probe setup failed: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger. Logs go to stderr; stdout is reserved for the
	// monitoring host.
	logger, err := newLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting probe",
		zap.String("app", AppName),
		zap.String("version", AppVersion),
		zap.String("host", cfg.VCO.Host),
	)

	outcome, err := probe.Run(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Probe setup failed", zap.Error(err))
		fmt.Printf("probe setup failed: %v\n", err)
		os.Exit(1)
	}

	if outcome.Success {
		fmt.Printf("system.categories=%s\n", probe.Category)
	} else {
		fmt.Println(outcome.Diagnostic)
	}
}

// newLogger builds a zap logger per the log configuration.
func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zc.Encoding = "console"
	}
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	zc.Level = level
	return zc.Build()
}
