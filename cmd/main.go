package main

import (
	"context"
	"errors"
	"os"

	"github.com/desertthunder/cadence/internal/services"
	"github.com/desertthunder/cadence/internal/shared"
	"github.com/urfave/cli/v3"
)

const defaultConfigPath = "config.toml"

func main() {
	logger := shared.NewLogger(nil)

	configPath := os.Getenv("CADENCE_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	config := shared.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		if loadedConfig, err := shared.LoadConfig(configPath); err == nil {
			config = loadedConfig
		} else {
			logger.Warn("failed to load config, using defaults", "path", configPath, "error", err)
		}
	}

	var catalog services.Catalog
	if svc, err := services.NewCatalogService(context.Background(), config.Catalog, nil, logger); err == nil {
		catalog = services.NewCoalescer(svc)
	} else {
		logger.Warn("catalog unavailable", "error", err)
	}

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		Catalog:    catalog,
		Logger:     logger,
	})

	app := &cli.Command{
		Name:     "cadence",
		Usage:    "Build and play goal-driven therapeutic playlists",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		if errors.Is(err, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		}
		logger.Fatalf("application error: %v", err)
	}
}
