package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/atmx/paper-engine/internal/app"
	"github.com/atmx/paper-engine/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "paperctl",
	Short: "Operate paper trading accounts from the command line",
	Long: `paperctl runs the paper trading engine directly against the configured
account store and price oracle, without going through the HTTP service.

Configuration is read from the environment (and an optional .env file),
exactly as the server reads it. Every command prints JSON.

Examples:
  paperctl account --user user_1
  paperctl order buy AAPL 10 --user user_1
  paperctl order sell AAPL 5 --limit 195.50 --user user_1
  paperctl orders --user user_1
  paperctl reset --user user_1`,
	SilenceUsage:      true,
	PersistentPreRunE: openApp,
}

var (
	userID   string
	logLevel string

	engineApp *app.App
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Finalizers run even when a command fails, unlike PersistentPostRunE.
	cobra.OnFinalize(closeApp)

	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "user_1", "account user id")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error); logs go to stderr")
}

func openApp(cmd *cobra.Command, _ []string) error {
	slog.SetDefault(config.NewLoggerTo(cmd.ErrOrStderr(), logLevel))

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a, err := app.Build(cmd.Context(), cfg, nil)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	engineApp = a
	return nil
}

func closeApp() {
	if engineApp != nil {
		engineApp.Close()
		engineApp = nil
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
