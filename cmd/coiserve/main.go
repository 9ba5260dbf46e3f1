// coiserve serves the directory it lives in over HTTP with the headers
// browsers need for cross-origin isolation.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Kush-Singh-26/coiserve/internal/config"
	"github.com/Kush-Singh-26/coiserve/internal/server"
)

var rootCmd = &cobra.Command{
	Use:           "coiserve",
	Short:         "Local static file server with cross-origin isolation headers",
	Long:          "Serves the executable's directory on port 8000, maps .wasm to application/wasm and sends COEP/COOP on every response.",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := config.ExecutableDir()
		if err != nil {
			return err
		}
		cfg, err := config.Load(dir)
		if err != nil {
			return err
		}

		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))
		slog.SetDefault(logger)

		return server.New(cfg, logger, cmd.OutOrStdout()).Run(cmd.Context())
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("coiserve failed", "error", err)
		stop()
		os.Exit(1)
	}
}
