package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/huddle/internal/config"
	"github.com/BioHazard786/huddle/internal/logging"
	"github.com/BioHazard786/huddle/internal/server"
	"github.com/BioHazard786/huddle/internal/version"
)

var (
	flagConfig string
	flagAddr   string
)

var rootCmd = &cobra.Command{
	Use:     "huddle-server",
	Short:   "Signaling relay for huddle voice rooms and direct calls",
	Version: version.Version,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadServer(flagConfig)
		if err != nil {
			return err
		}
		if flagAddr != "" {
			cfg.HTTP.Address = flagAddr
		}

		log := logging.Setup(cfg.Log.Level, cfg.Log.Format, slog.LevelInfo)
		log.Info("relay configured",
			"version", version.Version,
			"addr", cfg.HTTP.Address,
			"notify_unavailable", cfg.Relay.NotifyUnavailable,
		)

		return server.New(cfg, log).ListenAndServe(cmd.Context())
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.Flags().StringVarP(&flagConfig, "config", "c", "", "YAML config file")
	rootCmd.Flags().StringVar(&flagAddr, "addr", "", "Listen address, overrides the config file")
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("relay stopped", "err", err)
		stop()
		os.Exit(1)
	}
}
