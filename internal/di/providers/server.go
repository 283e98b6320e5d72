package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/librarydesk/librarian/internal/api"
	"github.com/librarydesk/librarian/internal/auth"
	"github.com/librarydesk/librarian/internal/backend"
	"github.com/librarydesk/librarian/internal/config"
	"github.com/librarydesk/librarian/internal/logger"
	"github.com/librarydesk/librarian/internal/service"
	"github.com/librarydesk/librarian/internal/web"
	"github.com/librarydesk/librarian/internal/workspace"
)

// ProvideAPIServer provides the JSON API handler.
func ProvideAPIServer(i do.Injector) (*api.Server, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	client := do.MustInvoke[*backend.Client](i)
	limiter := do.MustInvoke[*SignInLimiterHandle](i)

	services := api.Services{
		Books:      do.MustInvoke[*service.BookService](i),
		Categories: do.MustInvoke[*service.CategoryService](i),
		Tasks:      do.MustInvoke[*service.TaskService](i),
	}

	return api.NewServer(client, services, limiter.KeyedRateLimiter, cfg.Server.CORSOrigins, log), nil
}

// WebServerHandle wraps the web server with shutdown capability.
type WebServerHandle struct {
	*web.Server
}

// Shutdown implements do.Shutdownable.
func (h *WebServerHandle) Shutdown() error {
	return h.Close()
}

// ProvideWebServer provides the page server with the API mounted under /api.
func ProvideWebServer(i do.Injector) (*WebServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	gateHandle := do.MustInvoke[*GateHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	limiter := do.MustInvoke[*SignInLimiterHandle](i)

	s, err := web.NewServer(web.Deps{
		Gate:          gateHandle.Gate,
		Workspaces:    do.MustInvoke[*workspace.Registry](i),
		Sealer:        do.MustInvoke[*auth.CookieSealer](i),
		SSE:           sseHandle.Manager,
		SignInLimiter: limiter.KeyedRateLimiter,
		API:           do.MustInvoke[*api.Server](i),
		Logger:        log,
	}, web.Options{
		CookieName:   cfg.Session.CookieName,
		SecureCookie: cfg.Session.SecureCookie,
		TemplateDir:  cfg.Server.TemplateDir,
	})
	if err != nil {
		return nil, err
	}

	if err := s.Start(context.Background()); err != nil {
		log.WithError(err).Warn("Template hot reload unavailable")
	}

	return &WebServerHandle{Server: s}, nil
}

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server and starts listening.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	handler := do.MustInvoke[*WebServerHandle](i)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Server running", "addr", srv.Addr)

	return &HTTPServerHandle{Server: srv}, nil
}
