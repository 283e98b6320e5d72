// Package di provides dependency injection configuration for the librarian server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/librarydesk/librarian/internal/api"
	"github.com/librarydesk/librarian/internal/auth"
	"github.com/librarydesk/librarian/internal/backend"
	"github.com/librarydesk/librarian/internal/config"
	"github.com/librarydesk/librarian/internal/di/providers"
	"github.com/librarydesk/librarian/internal/logger"
	"github.com/librarydesk/librarian/internal/service"
	"github.com/librarydesk/librarian/internal/workspace"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer(overrides config.Overrides) *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.ProvideValue(injector, overrides)
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideAuthKey)

	// Auth layer
	do.Provide(injector, providers.ProvideTokenService)
	do.Provide(injector, providers.ProvideCookieSealer)

	// Backend layer
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideTransport)
	do.Provide(injector, providers.ProvideBackendClient)
	do.Provide(injector, providers.ProvideSessionStore)

	// Business services
	do.Provide(injector, providers.ProvideValidator)
	do.Provide(injector, providers.ProvideBookService)
	do.Provide(injector, providers.ProvideCategoryService)
	do.Provide(injector, providers.ProvideTaskService)

	// Visitors
	do.Provide(injector, providers.ProvideGate)
	do.Provide(injector, providers.ProvideWorkspaces)
	do.Provide(injector, providers.ProvideSignInLimiter)

	// Server
	do.Provide(injector, providers.ProvideAPIServer)
	do.Provide(injector, providers.ProvideWebServer)
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and starts the HTTP server.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.AuthKey](injector)
	_ = do.MustInvoke[*auth.CookieSealer](injector)
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)
	_ = do.MustInvoke[*providers.TransportHandle](injector)
	_ = do.MustInvoke[*backend.Client](injector)
	_ = do.MustInvoke[*providers.SessionStoreHandle](injector)

	// Business services
	_ = do.MustInvoke[*service.BookService](injector)
	_ = do.MustInvoke[*service.CategoryService](injector)
	_ = do.MustInvoke[*service.TaskService](injector)

	// Visitors
	_ = do.MustInvoke[*providers.GateHandle](injector)
	_ = do.MustInvoke[*workspace.Registry](injector)
	_ = do.MustInvoke[*providers.SignInLimiterHandle](injector)

	// Server
	_ = do.MustInvoke[*api.Server](injector)
	_ = do.MustInvoke[*providers.WebServerHandle](injector)
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
