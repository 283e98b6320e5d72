// Package providers contains dependency injection providers for the librarian server.
package providers

import (
	"time"

	"github.com/samber/do/v2"

	"github.com/librarydesk/librarian/internal/config"
	"github.com/librarydesk/librarian/internal/logger"
)

// shutdownTimeout bounds the graceful shutdown of each service.
const shutdownTimeout = 30 * time.Second

// ProvideConfig provides the application configuration. Command-line
// overrides are registered as a value before the container is used.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	overrides, err := do.Invoke[config.Overrides](i)
	if err != nil {
		overrides = config.Overrides{}
	}
	return config.LoadConfig(overrides)
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.IsDevelopment(),
		Environment: cfg.App.Environment,
	})

	log.Info("Starting librarian",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"backend", cfg.Backend.Mode,
		"data_path", cfg.Data.Path,
	)

	return log, nil
}
