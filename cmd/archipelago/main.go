// Command archipelago runs the island city-building game server and its
// maintenance tools.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/talgya/archipelago/internal/config"
)

var (
	configFile string
	dbOverride string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "archipelago",
		Short: "Archipelago city-building game server",
		Long: `Runs a persistent island city-building game: production, build and
recruitment queues, research, combat and a resource market, served over
HTTP with a websocket event stream.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&dbOverride, "db", "", "SQLite database path (overrides config)")

	rootCmd.AddCommand(serveCmd(), statusCmd(), exportCmd(), importCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and installs the default logger.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return cfg, err
	}
	if dbOverride != "" {
		cfg.DBPath = dbOverride
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)
	return cfg, nil
}
