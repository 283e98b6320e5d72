// Package workspace holds the per-visitor UI state of the librarian pages:
// the dashboard lists and forms, the task board with its edit drafts, and
// pending notices. Each visitor's state is guarded by its own mutex so
// requests from one browser apply in order.
package workspace

import (
	"sync"
	"time"

	"github.com/librarydesk/librarian/internal/logger"
	"github.com/librarydesk/librarian/internal/service"
)

// Notice levels.
const (
	LevelInfo  = "info"
	LevelError = "error"
)

// Notice is a non-blocking message shown once on the next render.
type Notice struct {
	Level   string
	Message string
}

// Services are the operations a workspace drives.
type Services struct {
	Books      *service.BookService
	Categories *service.CategoryService
	Tasks      *service.TaskService
}

// Workspace is one visitor's UI state.
type Workspace struct {
	mu       sync.Mutex
	svc      Services
	logger   *logger.Logger
	now      func() time.Time
	notices  []Notice
	dash     dashboard
	board    taskBoard
	bookBusy bool
	// user is the account the state belongs to; empty until first bound.
	user string
}

func newWorkspace(svc Services, log *logger.Logger, now func() time.Time) *Workspace {
	ws := &Workspace{svc: svc, logger: log, now: now}
	ws.dash.reset(now())
	ws.board.reset()
	return ws
}

// Bind ties the workspace to userID. When a different user signs in on
// the same browser, the dashboard, the task board and pending notices of
// the previous user are discarded.
func (ws *Workspace) Bind(userID string) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.user == userID {
		return
	}
	if ws.user != "" {
		ws.logger.Debug("workspace changed hands", "from", ws.user, "to", userID)
		ws.dash.reset(ws.now())
		ws.board.reset()
		ws.notices = nil
	}
	ws.user = userID
}

// Notices returns and clears pending notices.
func (ws *Workspace) Notices() []Notice {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	out := ws.notices
	ws.notices = nil
	return out
}

// notify must be called with ws.mu held.
func (ws *Workspace) notify(level, msg string) {
	ws.notices = append(ws.notices, Notice{Level: level, Message: msg})
}

// Registry maps visitor keys to workspaces.
type Registry struct {
	svc    Services
	logger *logger.Logger
	now    func() time.Time

	mu     sync.Mutex
	spaces map[string]*Workspace
}

// NewRegistry creates an empty registry.
func NewRegistry(svc Services, log *logger.Logger) *Registry {
	if log == nil {
		log = logger.Discard()
	}
	return &Registry{
		svc:    svc,
		logger: log.WithComponent("workspace"),
		now:    time.Now,
		spaces: make(map[string]*Workspace),
	}
}

// Get returns the workspace of visitorKey, creating it on first use.
func (r *Registry) Get(visitorKey string) *Workspace {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.spaces[visitorKey]
	if !ok {
		ws = newWorkspace(r.svc, r.logger.WithVisitor(visitorKey), r.now)
		r.spaces[visitorKey] = ws
	}
	return ws
}

// Forget drops the workspace of visitorKey.
func (r *Registry) Forget(visitorKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.spaces, visitorKey)
}

// Len returns the number of live workspaces.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.spaces)
}
