package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"FinFactor/internal/di"
	"FinFactor/pkg/config"
	applogger "FinFactor/pkg/logger"
	"FinFactor/pkg/server"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// .env is optional
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "finfactor",
		Short:         "RSI factor builder and returns analysis",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "config file path")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Build the factor once and print the returns tear sheet",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withApp(cmd.Context(), configPath, func(app *server.App) error {
					return app.RunOnce(cmd.Context(), cmd.OutOrStdout())
				})
			},
		},
		&cobra.Command{
			Use:   "serve",
			Short: "Serve the factor API over HTTP",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withApp(cmd.Context(), configPath, func(app *server.App) error {
					return app.Serve(cmd.Context())
				})
			},
		},
	)
	return root
}

func withApp(ctx context.Context, configPath string, fn func(*server.App) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}
	app, cleanup, err := di.InitializeApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("app initialization failed: %w", err)
	}
	defer cleanup()

	if err := fn(app); err != nil {
		app.Logger().Error("app error", applogger.Error(err))
		return err
	}
	return nil
}
