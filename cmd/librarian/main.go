// Package main provides the librarian command: the web server plus
// maintenance commands for the local backend.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/librarydesk/librarian/internal/config"
	"github.com/librarydesk/librarian/internal/logger"
)

// Global flags
var overrides config.Overrides

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "librarian",
	Short: "Library management front end",
	Long: `librarian serves the library dashboard and task board over a
backend-as-a-service, either a remote PostgREST/GoTrue project or the
built-in SQLite backend.

Configuration comes from flags, then environment variables, then a .env
file, then defaults.`,
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&overrides.EnvFile, "env-file", "", "path to a .env file (default .env)")
	flags.StringVar(&overrides.Environment, "env", "", "environment: development, staging or production")
	flags.StringVar(&overrides.LogLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.StringVar(&overrides.BackendMode, "backend", "", "backend mode: local or remote")
	flags.StringVar(&overrides.BackendURL, "backend-url", "", "remote backend base URL")
	flags.StringVar(&overrides.DataPath, "data", "", "data directory (default ~/.librarian)")

	rootCmd.AddCommand(serveCmd, migrateCmd, userCmd, seedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig resolves configuration from the global flags.
func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.LoadConfig(overrides)
	if err != nil {
		return nil, nil, err
	}
	log := logger.New(logger.Config{
		Writer:      os.Stderr,
		Level:       logger.ParseLevel(cfg.Logger.Level),
		Environment: cfg.App.Environment,
	})
	return cfg, log, nil
}
