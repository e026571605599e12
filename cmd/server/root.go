package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/iliyamo/book-ratings-api/internal/config"
	"github.com/iliyamo/book-ratings-api/internal/logger"
)

// rootCmd runs the API server when no subcommand is given.
var rootCmd = &cobra.Command{
	Use:          "book-ratings-api",
	Short:        "Book catalogue and ratings API",
	SilenceUsage: true,
	RunE:         runServe,
}

// bootstrap loads configuration and builds the process logger.
func bootstrap() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, nil, err
	}
	log := logger.New(logger.Config{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		Production: cfg.IsProduction(),
	})
	slog.SetDefault(log)
	return cfg, log, nil
}
