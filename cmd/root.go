package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cwbudde/holefill/internal/config"
	"github.com/cwbudde/holefill/internal/parallel"
)

var (
	logLevel   string
	configPath string
	workers    int
	logger     *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "holefill",
	Short: "Exemplar-based hole filling with PatchMatch",
	Long: `Holefill replaces a masked region of an image with content synthesised
from the rest of the image. Patch correspondences are found with PatchMatch
on a coarse-to-fine pyramid and blended by weighted voting.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		var level slog.Level
		switch logLevel {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		default:
			level = slog.LevelInfo
		}

		opts := &slog.HandlerOptions{Level: level}
		handler := slog.NewJSONHandler(os.Stdout, opts)
		logger = slog.New(handler)
		slog.SetDefault(logger)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "holefill.yaml", "Configuration file; missing files use defaults")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0, "Solver goroutines (0 = from config, 1 = serial and reproducible)")
}

// loadConfig reads --config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	slog.Debug("Configuration loaded", "path", configPath)
	return cfg, nil
}

// newExecutor returns the executor for the --workers flag, falling back to
// the configured count. The returned func releases the workers.
func newExecutor(cfg *config.Config) (parallel.Executor, func()) {
	n := workers
	if n == 0 {
		n = cfg.Runtime.Workers
	}
	if n == 1 {
		return parallel.Serial{}, func() {}
	}
	pool := parallel.NewPool(n)
	slog.Debug("Worker pool started", "workers", pool.NumWorkers())
	return pool, pool.Close
}
