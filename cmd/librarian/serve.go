package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/librarydesk/librarian/internal/di"
	"github.com/librarydesk/librarian/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	serveCmd.Flags().StringVar(&overrides.Port, "port", "", "HTTP port (default 8080)")
	serveCmd.Flags().StringVar(&overrides.TemplateDir, "templates", "", "serve templates from this directory and reload them on change")
}

func runServe() error {
	injector := di.NewContainer(overrides)

	if err := di.Bootstrap(injector); err != nil {
		return err
	}

	log := do.MustInvoke[*logger.Logger](injector)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server gracefully...")

	// The container shuts services down in reverse dependency order:
	// HTTP server, gate, SSE manager, session store, backend.
	if err := injector.Shutdown(); err != nil {
		log.Error("Shutdown error", "error", err)
	}

	log.Info("Server stopped")
	return nil
}
