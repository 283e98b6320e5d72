// Package web serves the librarian pages: login and sign-up, the
// access-denied view, the librarian dashboard and the personal task board.
// Every browser is identified by a sealed visitor cookie; the gate decides
// which view it sees and pushes view changes over SSE.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/librarydesk/librarian/internal/auth"
	"github.com/librarydesk/librarian/internal/gate"
	"github.com/librarydesk/librarian/internal/logger"
	"github.com/librarydesk/librarian/internal/ratelimit"
	"github.com/librarydesk/librarian/internal/sse"
	"github.com/librarydesk/librarian/internal/workspace"
)

// Deps are the collaborators of the web server.
type Deps struct {
	Gate          *gate.Gate
	Workspaces    *workspace.Registry
	Sealer        *auth.CookieSealer
	SSE           *sse.Manager
	SignInLimiter *ratelimit.KeyedRateLimiter
	// API, when set, is mounted under /api/.
	API    http.Handler
	Logger *logger.Logger
}

// Options tune the web server.
type Options struct {
	CookieName   string
	SecureCookie bool
	// TemplateDir serves templates from disk instead of the embedded set.
	TemplateDir string
}

// Server holds dependencies for page handlers.
type Server struct {
	deps   Deps
	opts   Options
	router chi.Router
	views  *renderer
	logger *logger.Logger
}

// NewServer creates the web server with all routes configured.
func NewServer(deps Deps, opts Options) (*Server, error) {
	if deps.Logger == nil {
		deps.Logger = logger.Discard()
	}
	if opts.CookieName == "" {
		opts.CookieName = "librarian_visitor"
	}
	log := deps.Logger.WithComponent("web")

	views, err := newRenderer(opts.TemplateDir, log)
	if err != nil {
		return nil, err
	}

	s := &Server{
		deps:   deps,
		opts:   opts,
		router: chi.NewRouter(),
		views:  views,
		logger: log,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start begins template hot reload when a template directory is configured.
func (s *Server) Start(ctx context.Context) error {
	return s.views.watch(ctx)
}

// Close stops template hot reload.
func (s *Server) Close() error {
	return s.views.close()
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	if s.deps.API != nil {
		s.router.Handle("/api/*", s.deps.API)
	}

	s.router.Group(func(r chi.Router) {
		r.Use(middleware.NoCache)
		r.Use(s.visitorCookie)

		r.Get("/", s.handleIndex)
		r.Get("/events", sse.NewHandler(s.deps.SSE, visitorFromRequest, s.deps.Logger).ServeHTTP)

		r.With(s.rateLimitSignIn).Post("/login", s.handleLogin)
		r.With(s.rateLimitSignIn).Post("/signup", s.handleSignUp)
		r.Post("/logout", s.handleLogout)

		r.Post("/books", s.handleAddBook)
		r.Post("/categories", s.handleAddCategory)
		r.Post("/dashboard/reload", s.handleReloadDashboard)

		r.Get("/tasks", s.handleTasks)
		r.Post("/tasks", s.handleCreateTask)
		r.Route("/tasks/{id}", func(r chi.Router) {
			r.Post("/edit", s.handleEditTask)
			r.Post("/save", s.handleSaveTask)
			r.Post("/cancel", s.handleCancelEdit)
			r.Post("/delete", s.handleDeleteTask)
		})
	})
}

// requestLogger logs one line per request through the application logger.
func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// redirect sends the browser to path after a form post.
func redirect(w http.ResponseWriter, r *http.Request, path string) {
	http.Redirect(w, r, path, http.StatusSeeOther)
}
