package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/librarydesk/librarian/internal/logger"
)

const (
	keepAliveEvery = 25 * time.Second
	writeGrace     = time.Minute
)

// VisitorResolver returns the visitor key of the request, if any.
type VisitorResolver func(r *http.Request) (string, bool)

// Handler serves a visitor's event stream.
type Handler struct {
	manager   *Manager
	visitorOf VisitorResolver
	logger    *logger.Logger
	keepAlive time.Duration
}

// NewHandler returns a handler streaming manager's events to the visitor
// that visitorOf resolves.
func NewHandler(manager *Manager, visitorOf VisitorResolver, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{
		manager:   manager,
		visitorOf: visitorOf,
		logger:    log.WithComponent("sse"),
		keepAlive: keepAliveEvery,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	key, ok := h.visitorOf(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")

	out := &stream{w: w, rc: http.NewResponseController(w)}
	if err := out.flush(); err != nil {
		h.logger.WithError(err).Error("Streaming unsupported")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	client, err := h.manager.Connect(key)
	if err != nil {
		h.logger.WithError(err).Error("Failed to open event stream")
		return
	}
	defer h.manager.Disconnect(client)
	log := h.logger.WithVisitor(key).With(slog.String("client_id", client.ID))

	if err := out.event(EventConnected, map[string]string{"client_id": client.ID}); err != nil {
		log.Debug("Stream closed before hello", slog.String("error", err.Error()))
		return
	}

	tick := time.NewTicker(h.keepAlive)
	defer tick.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-client.Done:
			return
		case <-tick.C:
			if err := out.ping(); err != nil {
				log.Debug("Keep-alive failed", slog.String("error", err.Error()))
				return
			}
		case ev, ok := <-client.Events:
			if !ok {
				return
			}
			if err := out.event(ev.Type, ev); err != nil {
				log.Debug("Event write failed", slog.String("error", err.Error()))
				return
			}
		}
	}
}

// stream writes text/event-stream frames, pushing the write deadline past
// each one so the server's WriteTimeout does not cut long-lived streams.
type stream struct {
	w  io.Writer
	rc *http.ResponseController
}

func (s *stream) event(name EventType, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", name, err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	return s.flush()
}

// ping writes a comment line, which EventSource ignores.
func (s *stream) ping() error {
	if _, err := io.WriteString(s.w, ": ping\n\n"); err != nil {
		return err
	}
	return s.flush()
}

func (s *stream) flush() error {
	if err := s.rc.Flush(); err != nil {
		return err
	}
	// Recorders and some wrappers lack deadlines.
	_ = s.rc.SetWriteDeadline(time.Now().Add(writeGrace))
	return nil
}
