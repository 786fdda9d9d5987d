// Package main implements the entry point for the streamcep pipeline.
// It loads trip records from a CSV source, shapes the load with a
// pattern-aware admission controller, evaluates a Kleene-closure
// sequence pattern over the admitted stream, and publishes completed
// matches to the configured sinks.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/c360/streamcep/config"
	"github.com/c360/streamcep/engine"
	"github.com/c360/streamcep/metric"
)

const (
	Version = "0.1.0"
	appName = "streamcep"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("application failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printHelp()
		return nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	cfg, err := loadConfiguration(cliCfg)
	if err != nil {
		return err
	}

	if cliCfg.WriteConfig != "" {
		if err := cfg.SaveToFile(cliCfg.WriteConfig); err != nil {
			return err
		}
		logger.Info("configuration written", "path", cliCfg.WriteConfig)
		return nil
	}
	if cliCfg.Validate {
		logger.Info("configuration is valid")
		return nil
	}

	logger.Info("starting streamcep",
		"version", Version,
		"pattern", cfg.Pattern.Name,
		"input", cfg.Input.Path)

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry, metricsServer := setupMetrics(cfg, logger)

	e, err := engine.New(cfg, logger, registry)
	if err != nil {
		return err
	}

	runErr := e.Run(ctx)

	if metricsServer != nil {
		if err := metricsServer.Stop(); err != nil {
			logger.Warn("metrics server stop failed", "error", err)
		}
	}
	return runErr
}

// loadConfiguration layers defaults, the optional config file,
// environment overrides, and the --input flag.
func loadConfiguration(cliCfg *CLIConfig) (*config.Config, error) {
	loader := config.NewLoader()
	if cliCfg.InputPath != "" {
		// The flag beats file and env, so validate after applying it.
		loader.EnableValidation(false)
	}

	cfg, err := loader.Load(cliCfg.ConfigPath)
	if err != nil {
		return nil, err
	}

	if cliCfg.InputPath != "" {
		cfg.Input.Path = cliCfg.InputPath
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// setupMetrics starts the Prometheus endpoint when enabled. The server
// runs until Stop; a listen failure is logged, not fatal, so a busy
// metrics port never takes down a batch run.
func setupMetrics(cfg *config.Config, logger *slog.Logger) (*metric.MetricsRegistry, *metric.Server) {
	if !cfg.Metrics.Enabled {
		return nil, nil
	}

	registry := metric.NewMetricsRegistry()
	server := metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry)
	go func() {
		if err := server.Start(); err != nil {
			logger.Warn("metrics server failed", "error", err)
		}
	}()
	logger.Info("metrics endpoint started", "address", server.Address())
	return registry, server
}
