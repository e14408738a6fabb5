// Command bdt administers a bdt installation: migrations, reference data,
// cleanup and password resets run against the database, and `bdt ticket`
// talks to a running server through the Go SDK.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bdt-io/bdt/internal/app"
	"github.com/bdt-io/bdt/internal/config"
	"github.com/bdt-io/bdt/internal/logger"
	"github.com/bdt-io/bdt/internal/version"
)

var (
	configPathFlag string
	logLevelFlag   string
)

var rootCmd = &cobra.Command{
	Use:   "bdt",
	Short: "bdt CLI - work order helpdesk management tool",
	Long: `bdt Command Line Interface

Operator commands for a bdt installation. Database commands read the
same configuration as the server (config.yaml and BDT_* variables).`,
	Version:       version.String(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPathFlag, "config", envOr("CONFIG_PATH", "config"), "Directory holding config.yaml")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "warn", "Log level of database commands")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(synthesizeCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(resetPasswordCmd)
	rootCmd.AddCommand(ticketCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadConfig reads the configuration and returns a logger for it.
func loadConfig() (*config.Config, zerolog.Logger) {
	loadErr := config.Load(configPathFlag)
	cfg := config.Get()
	log := logger.NewWithWriter(os.Stderr, logLevelFlag, "console").With().Str("service", "bdt-cli").Logger()
	if loadErr != nil {
		log.Warn().Err(loadErr).Str("path", configPathFlag).Msg("configuration file ignored, using defaults and environment")
	}
	return cfg, log
}

// withApp opens the database and runs fn with the wired services.
func withApp(ctx context.Context, fn func(a *app.App) error) error {
	cfg, log := loadConfig()
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error().Err(err).Msg("close failed")
		}
	}()
	return fn(a)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		info := version.GetInfo()
		fmt.Fprintf(cmd.OutOrStdout(), "bdt %s\n  commit: %s\n  built:  %s\n  go:     %s\n",
			info.Version, info.GitCommit, info.BuildDate, info.GoVersion)
	},
}
