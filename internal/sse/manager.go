package sse

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/librarydesk/librarian/internal/id"
	"github.com/librarydesk/librarian/internal/logger"
)

const (
	queueSize  = 256
	streamSize = 32
)

// Client is one open event stream. A visitor has one per browser tab.
type Client struct {
	ID         string
	VisitorKey string
	Opened     time.Time

	// Events is closed together with Done when the stream is dropped.
	Events chan Event
	Done   chan struct{}
}

func (c *Client) close() {
	close(c.Done)
	close(c.Events)
}

// Manager fans events out to the streams of the visitor they address.
type Manager struct {
	logger *logger.Logger
	queue  chan Event
	loop   sync.WaitGroup

	mu       sync.RWMutex
	visitors map[string]map[string]*Client
	streams  int

	// stateMu guards started and stopped. Emit sends on queue while holding
	// it for reading, so Shutdown may close queue under the write lock.
	stateMu sync.RWMutex
	started bool
	stopped bool
}

// NewManager returns a manager. Call Start before emitting.
func NewManager(log *logger.Logger) *Manager {
	if log == nil {
		log = logger.Discard()
	}
	return &Manager{
		logger:   log.WithComponent("sse"),
		queue:    make(chan Event, queueSize),
		visitors: make(map[string]map[string]*Client),
	}
}

// Start runs the delivery loop in the background until ctx ends or
// Shutdown is called. Repeated calls are ignored.
func (m *Manager) Start(ctx context.Context) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	if m.started || m.stopped {
		return
	}
	m.started = true
	m.loop.Add(1)
	go m.deliver(ctx)
}

func (m *Manager) deliver(ctx context.Context) {
	defer m.loop.Done()
	defer m.dropAll()

	m.logger.Debug("Event delivery started")
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-m.queue:
			if !ok {
				return
			}
			m.route(event)
		}
	}
}

// route hands event to every stream of its visitor, or to all streams when
// it is unaddressed. Full streams lose the event.
func (m *Manager) route(event Event) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var targets []map[string]*Client
	if event.VisitorKey == "" {
		for _, tabs := range m.visitors {
			targets = append(targets, tabs)
		}
	} else if tabs, ok := m.visitors[event.VisitorKey]; ok {
		targets = append(targets, tabs)
	}

	sent := 0
	for _, tabs := range targets {
		for _, c := range tabs {
			select {
			case c.Events <- event:
				sent++
			default:
				m.logger.Warn("Stream is full, event lost",
					slog.String("client_id", c.ID),
					slog.String("event_type", string(event.Type)))
			}
		}
	}
	m.logger.Debug("Event routed",
		slog.String("event_type", string(event.Type)),
		slog.Int("streams", sent))
}

// Connect opens a stream for visitorKey.
func (m *Manager) Connect(visitorKey string) (*Client, error) {
	clientID, err := id.Generate("sse")
	if err != nil {
		return nil, err
	}
	c := &Client{
		ID:         clientID,
		VisitorKey: visitorKey,
		Opened:     time.Now(),
		Events:     make(chan Event, streamSize),
		Done:       make(chan struct{}),
	}

	m.mu.Lock()
	tabs, ok := m.visitors[visitorKey]
	if !ok {
		tabs = make(map[string]*Client)
		m.visitors[visitorKey] = tabs
	}
	tabs[c.ID] = c
	m.streams++
	open := m.streams
	m.mu.Unlock()

	m.logger.WithVisitor(visitorKey).Info("Event stream opened",
		slog.String("client_id", c.ID),
		slog.Int("open_streams", open))
	return c, nil
}

// Disconnect drops one stream. Unknown clients are ignored.
func (m *Manager) Disconnect(c *Client) {
	m.mu.Lock()
	tabs := m.visitors[c.VisitorKey]
	if _, ok := tabs[c.ID]; !ok {
		m.mu.Unlock()
		return
	}
	delete(tabs, c.ID)
	if len(tabs) == 0 {
		delete(m.visitors, c.VisitorKey)
	}
	m.streams--
	m.mu.Unlock()

	c.close()
	m.logger.WithVisitor(c.VisitorKey).Info("Event stream closed",
		slog.String("client_id", c.ID),
		slog.Duration("open_for", time.Since(c.Opened)))
}

func (m *Manager) dropAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tabs := range m.visitors {
		for _, c := range tabs {
			c.close()
		}
	}
	m.visitors = make(map[string]map[string]*Client)
	m.streams = 0
}

// Shutdown stops accepting events, waits for queued ones to be routed and
// closes every stream.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.stateMu.Lock()
	if m.stopped {
		m.stateMu.Unlock()
		return nil
	}
	m.stopped = true
	close(m.queue)
	started := m.started
	m.stateMu.Unlock()

	if !started {
		m.dropAll()
		return nil
	}

	drained := make(chan struct{})
	go func() {
		m.loop.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		m.logger.Info("Event streams closed")
		return nil
	case <-ctx.Done():
		m.logger.Warn("Timed out draining events")
		return ctx.Err()
	}
}

// Emit queues event. It is dropped after Shutdown or when the queue is full.
func (m *Manager) Emit(event Event) {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	if m.stopped {
		return
	}
	select {
	case m.queue <- event:
	default:
		m.logger.Error("Event queue full", slog.String("event_type", string(event.Type)))
	}
}

// EmitView tells the visitor's open pages to switch to view.
func (m *Manager) EmitView(visitorKey, view, email string) {
	m.Emit(NewViewEvent(visitorKey, view, email))
}

// EmitNotice shows a message on the visitor's open pages.
func (m *Manager) EmitNotice(visitorKey, level, message string) {
	m.Emit(NewNoticeEvent(visitorKey, level, message))
}

// ClientCount reports the number of open streams.
func (m *Manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.streams
}

// VisitorStreams reports how many streams visitorKey has open.
func (m *Manager) VisitorStreams(visitorKey string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.visitors[visitorKey])
}
