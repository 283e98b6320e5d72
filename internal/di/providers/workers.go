package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/librarydesk/librarian/internal/backend"
	"github.com/librarydesk/librarian/internal/config"
	"github.com/librarydesk/librarian/internal/gate"
	"github.com/librarydesk/librarian/internal/logger"
	"github.com/librarydesk/librarian/internal/ratelimit"
	"github.com/librarydesk/librarian/internal/service"
	"github.com/librarydesk/librarian/internal/workspace"
)

// GateHandle wraps the visitor gate with its sweep loop.
type GateHandle struct {
	*gate.Gate
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *GateHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Gate.Shutdown(ctx)
}

// ProvideGate provides the visitor gate and starts its idle sweep.
func ProvideGate(i do.Injector) (*GateHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	client := do.MustInvoke[*backend.Client](i)
	sessions := do.MustInvoke[*SessionStoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)

	g := gate.New(client, sessions.Store, sseHandle.Manager, log, gate.Options{
		IdleTimeout:   cfg.Session.TTL,
		SweepInterval: cfg.Session.SweepInterval,
	})

	ctx, cancel := context.WithCancel(context.Background())
	g.Start(ctx)

	log.Info("Visitor gate started", "sweep_interval", cfg.Session.SweepInterval)

	return &GateHandle{Gate: g, cancel: cancel}, nil
}

// ProvideWorkspaces provides the per-visitor workspace registry. Workspaces
// are dropped together with their gate visitor.
func ProvideWorkspaces(i do.Injector) (*workspace.Registry, error) {
	log := do.MustInvoke[*logger.Logger](i)
	gateHandle := do.MustInvoke[*GateHandle](i)

	registry := workspace.NewRegistry(workspace.Services{
		Books:      do.MustInvoke[*service.BookService](i),
		Categories: do.MustInvoke[*service.CategoryService](i),
		Tasks:      do.MustInvoke[*service.TaskService](i),
	}, log)
	gateHandle.OnForget(registry.Forget)

	return registry, nil
}

// SignInLimiterHandle wraps the sign-in rate limiter with shutdown capability.
type SignInLimiterHandle struct {
	*ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *SignInLimiterHandle) Shutdown() error {
	h.Stop()
	return nil
}

// ProvideSignInLimiter provides the per-IP sign-in limiter shared by the
// web pages and the JSON API.
func ProvideSignInLimiter(i do.Injector) (*SignInLimiterHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)

	return &SignInLimiterHandle{
		KeyedRateLimiter: ratelimit.PerMinute(cfg.RateLimit.SignInPerMinute, cfg.RateLimit.SignInBurst),
	}, nil
}
