package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/librarydesk/librarian/internal/domain"
	domainerrors "github.com/librarydesk/librarian/internal/errors"
)

const backendProbeTimeout = 5 * time.Second

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/api/v1/health",
		Summary:     "Health check",
		Description: "Reports whether the backend answers an anonymous catalog read",
		Tags:        []string{"Health"},
	}, s.handleHealthCheck)
}

// BackendProbe is the result of one backend round trip.
type BackendProbe struct {
	Reachable bool   `json:"reachable"`
	LatencyMS int64  `json:"latency_ms"`
	Code      string `json:"code,omitempty" doc:"Error code when unreachable"`
}

// HealthResponse is the body of the health check.
type HealthResponse struct {
	Status    string       `json:"status" enum:"ok,degraded"`
	Backend   BackendProbe `json:"backend"`
	CheckedAt time.Time    `json:"checked_at"`
}

// HealthOutput wraps the health response for Huma.
type HealthOutput struct {
	Body HealthResponse
}

func (s *Server) handleHealthCheck(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	probe := s.probeBackend(ctx)
	status := "ok"
	if !probe.Reachable {
		status = "degraded"
	}
	return &HealthOutput{Body: HealthResponse{Status: status, Backend: probe, CheckedAt: time.Now().UTC()}}, nil
}

// probeBackend reads category ids anonymously; every backend policy allows that.
func (s *Server) probeBackend(ctx context.Context) BackendProbe {
	ctx, cancel := context.WithTimeout(ctx, backendProbeTimeout)
	defer cancel()

	start := time.Now()
	_, err := s.client.From(domain.TableCategories).Select("id").Execute(ctx)
	probe := BackendProbe{Reachable: err == nil, LatencyMS: time.Since(start).Milliseconds()}
	if err != nil {
		s.logger.WithError(err).Warn("Backend health probe failed")
		probe.Code = string(domainerrors.CodeOf(err))
	}
	return probe
}
