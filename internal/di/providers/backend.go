package providers

import (
	"context"
	"fmt"

	"github.com/samber/do/v2"

	"github.com/librarydesk/librarian/internal/auth"
	"github.com/librarydesk/librarian/internal/backend"
	"github.com/librarydesk/librarian/internal/backend/local"
	"github.com/librarydesk/librarian/internal/backend/rest"
	"github.com/librarydesk/librarian/internal/config"
	"github.com/librarydesk/librarian/internal/logger"
	"github.com/librarydesk/librarian/internal/sse"
	"github.com/librarydesk/librarian/internal/store"
)

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the server-sent events manager.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(log)

	ctx, cancel := context.WithCancel(context.Background())
	manager.Start(ctx)

	log.Info("SSE manager started")

	return &SSEManagerHandle{
		Manager: manager,
		cancel:  cancel,
	}, nil
}

// TransportHandle wraps the backend transport selected by configuration.
type TransportHandle struct {
	backend.Transport
	// Local is set in local mode.
	Local *local.Backend
	close func() error
}

// Shutdown implements do.Shutdownable.
func (h *TransportHandle) Shutdown() error {
	return h.close()
}

// ProvideTransport provides the local SQLite backend or the remote REST
// transport.
func ProvideTransport(i do.Injector) (*TransportHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	switch cfg.Backend.Mode {
	case config.BackendRemote:
		t, err := rest.New(cfg.Backend.URL, cfg.Backend.AnonKey, log.WithComponent("backend"))
		if err != nil {
			return nil, err
		}
		log.Info("Using remote backend", "url", cfg.Backend.URL)
		return &TransportHandle{Transport: t, close: func() error { t.Close(); return nil }}, nil

	case config.BackendLocal:
		tokens := do.MustInvoke[*auth.TokenService](i)
		lb, err := local.Open(context.Background(), cfg.Data.DatabasePath(), tokens, log.WithComponent("backend"))
		if err != nil {
			return nil, err
		}
		log.Info("Using local backend", "path", cfg.Data.DatabasePath())
		return &TransportHandle{Transport: lb, Local: lb, close: lb.Close}, nil

	default:
		return nil, fmt.Errorf("unknown backend mode %q", cfg.Backend.Mode)
	}
}

// ProvideBackendClient provides the backend client.
func ProvideBackendClient(i do.Injector) (*backend.Client, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	transport := do.MustInvoke[*TransportHandle](i)

	return backend.New(transport.Transport,
		backend.WithTimeout(cfg.Backend.Timeout),
		backend.WithLogger(log.WithComponent("backend")),
	), nil
}

// SessionStoreHandle wraps the visitor session store with shutdown capability.
type SessionStoreHandle struct {
	*store.Store
}

// Shutdown implements do.Shutdownable.
func (h *SessionStoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideSessionStore provides the Badger visitor session store.
func ProvideSessionStore(i do.Injector) (*SessionStoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	s, err := store.New(cfg.Data.SessionsPath(), cfg.Session.TTL, log)
	if err != nil {
		return nil, err
	}

	log.Info("Session store initialized", "path", cfg.Data.SessionsPath())

	return &SessionStoreHandle{Store: s}, nil
}
