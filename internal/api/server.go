// Package api provides the versioned JSON API under /api/v1. Callers
// authenticate with a backend access token as a Bearer token and every
// catalog and task operation runs as that caller.
package api

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/librarydesk/librarian/internal/backend"
	"github.com/librarydesk/librarian/internal/logger"
	"github.com/librarydesk/librarian/internal/ratelimit"
	"github.com/librarydesk/librarian/internal/service"
)

// Services groups the services the API exposes.
type Services struct {
	Books      *service.BookService
	Categories *service.CategoryService
	Tasks      *service.TaskService
}

// Server holds dependencies for API handlers.
type Server struct {
	client        *backend.Client
	services      Services
	router        chi.Router
	api           huma.API
	logger        *logger.Logger
	signInLimiter *ratelimit.KeyedRateLimiter
}

// NewServer creates the API with all routes registered. An empty
// corsOrigins allows any origin.
func NewServer(client *backend.Client, services Services, signInLimiter *ratelimit.KeyedRateLimiter, corsOrigins []string, log *logger.Logger) *Server {
	router := chi.NewRouter()

	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	router.Use(authMiddleware(client))

	humaConfig := huma.DefaultConfig("Librarian API", "1.0.0")
	humaConfig.OpenAPIPath = "/api/v1/openapi"
	humaConfig.DocsPath = "/api/v1/docs"
	humaConfig.SchemasPath = "/api/v1/schemas"
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "backend access token",
		},
	}
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)

	api := humachi.New(router, humaConfig)
	RegisterErrorHandler()

	s := &Server{
		client:        client,
		services:      services,
		router:        router,
		api:           api,
		logger:        log.WithComponent("api"),
		signInLimiter: signInLimiter,
	}

	s.registerHealthRoutes()
	s.registerAuthRoutes()
	s.registerBookRoutes()
	s.registerCategoryRoutes()
	s.registerTaskRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// bearer is the security requirement shared by authenticated operations.
var bearer = []map[string][]string{{"bearer": {}}}
