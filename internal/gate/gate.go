// Package gate owns the authentication state of every browser visitor.
//
// Each visitor gets its own backend.AuthSession. The gate subscribes to the
// session's auth events and, on every event, re-resolves whether the user
// is a librarian, persists or forgets the session and tells the visitor's
// open pages which view to show.
package gate

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/librarydesk/librarian/internal/backend"
	"github.com/librarydesk/librarian/internal/domain"
	domainerrors "github.com/librarydesk/librarian/internal/errors"
	"github.com/librarydesk/librarian/internal/logger"
	"github.com/librarydesk/librarian/internal/sse"
	"github.com/librarydesk/librarian/internal/store"
)

// ViewNotifier pushes view changes to a visitor's open pages.
type ViewNotifier interface {
	EmitView(visitorKey, view, email string)
}

// Options tunes visitor bookkeeping.
type Options struct {
	// IdleTimeout drops in-memory visitors not seen for this long.
	// Their stored session survives and is restored on the next visit.
	IdleTimeout   time.Duration
	SweepInterval time.Duration
}

// Gate tracks visitors and their resolved auth state.
type Gate struct {
	client   *backend.Client
	sessions store.SessionStore
	notifier ViewNotifier
	logger   *logger.Logger
	opts     Options
	now      func() time.Time

	// ctx bounds backend calls made from auth callbacks.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	visitors map[string]*Visitor
	forget   []func(visitorKey string)
	closed   bool

	loopMu  sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// New creates a gate. notifier may be nil.
func New(client *backend.Client, sessions store.SessionStore, notifier ViewNotifier, log *logger.Logger, opts Options) *Gate {
	if log == nil {
		log = logger.Discard()
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 30 * time.Minute
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = 5 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Gate{
		client:   client,
		sessions: sessions,
		notifier: notifier,
		logger:   log.WithComponent("gate"),
		opts:     opts,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		visitors: make(map[string]*Visitor),
		stop:     make(chan struct{}),
	}
}

var (
	// ErrClosed is returned once the gate has shut down.
	ErrClosed = errors.New("gate is shut down")
	// ErrSignedOut is returned by Visitor.Context when nobody is signed in.
	ErrSignedOut = domainerrors.Unauthorized("sign in required")
)

// Visitor returns the visitor for key, restoring its stored session on
// first contact.
func (g *Gate) Visitor(ctx context.Context, key string) (*Visitor, error) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil, ErrClosed
	}
	if v, ok := g.visitors[key]; ok {
		g.mu.Unlock()
		v.touch(g.now())
		return v, nil
	}
	g.mu.Unlock()

	v, err := g.open(ctx, key)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		v.close()
		return nil, ErrClosed
	}
	if existing, ok := g.visitors[key]; ok {
		// Lost a race with a concurrent first request.
		g.mu.Unlock()
		v.close()
		existing.touch(g.now())
		return existing, nil
	}
	g.visitors[key] = v
	g.mu.Unlock()

	return v, nil
}

func (g *Gate) open(ctx context.Context, key string) (*Visitor, error) {
	stored, err := g.sessions.Load(ctx, key)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		g.logger.WithError(err).Warn("failed to restore visitor session", "visitor", key)
	}

	v := &Visitor{key: key, lastSeen: g.now()}
	v.auth = g.client.NewAuthSession(stored)

	// Bring a restored session up to date before anyone listens, so the
	// initial resolution sees a usable token. A rejected refresh yields nil.
	if stored != nil {
		if _, err := v.auth.GetSession(ctx); err != nil {
			g.logger.WithError(err).Warn("failed to refresh restored session", "visitor", key)
		}
	}

	v.sub = v.auth.OnAuthStateChange(func(event backend.AuthEvent, session *backend.Session) {
		g.handleAuthChange(v, event, session)
	})

	return v, nil
}

// handleAuthChange runs on the goroutine that caused the change. Events of
// one visitor are handled one at a time, and a result resolved for a
// session that has since been replaced is dropped; the replacing event
// brings its own.
func (g *Gate) handleAuthChange(v *Visitor, event backend.AuthEvent, session *backend.Session) {
	v.events.Lock()
	defer v.events.Unlock()

	ctx := g.ctx
	state := g.resolve(ctx, session)
	if v.auth.Current() != session {
		g.logger.Debug("dropping stale auth event", "visitor", v.key, "event", string(event))
		return
	}
	v.setState(state)

	var err error
	if session == nil {
		err = g.sessions.Delete(ctx, v.key)
	} else {
		err = g.sessions.Save(ctx, v.key, session)
	}
	if err != nil {
		g.logger.WithError(err).Error("failed to persist visitor session", "visitor", v.key, "event", string(event))
	}

	g.logger.Debug("auth state changed",
		"visitor", v.key,
		"event", string(event),
		"authenticated", state.Authenticated,
		"librarian", state.Librarian,
	)

	if event != backend.EventInitialSession && g.notifier != nil {
		g.notifier.EmitView(v.key, state.View(), state.Email)
	}
}

// resolve asks the backend who owns session. Any failure or a role other
// than "librarian" yields a non-librarian state; it never fails.
func (g *Gate) resolve(ctx context.Context, session *backend.Session) State {
	if session == nil {
		return State{}
	}
	state := State{
		Authenticated: true,
		UserID:        session.User.ID,
		Email:         session.User.Email,
	}

	user, err := g.client.GetUser(ctx, session.AccessToken)
	if err != nil {
		g.logger.WithError(err).Warn("role lookup failed", "user_id", session.User.ID)
		return state
	}
	if user.ID != "" {
		state.UserID = user.ID
	}
	if user.Email != "" {
		state.Email = user.Email
	}
	state.Librarian = domain.IsLibrarian(user.AppRole())
	return state
}

// SignIn signs the visitor in with email and password.
func (g *Gate) SignIn(ctx context.Context, key string, creds backend.Credentials) (State, error) {
	v, err := g.Visitor(ctx, key)
	if err != nil {
		return State{}, err
	}
	if _, err := v.auth.SignInWithPassword(ctx, creds); err != nil {
		return v.State(), err
	}
	return v.State(), nil
}

// SignUp registers a new account. When the backend signs the user in
// right away the visitor becomes authenticated; otherwise the state is
// unchanged and the caller should ask the user to confirm their email.
func (g *Gate) SignUp(ctx context.Context, key string, creds backend.Credentials) (State, error) {
	v, err := g.Visitor(ctx, key)
	if err != nil {
		return State{}, err
	}
	if _, err := v.auth.SignUp(ctx, creds); err != nil {
		return v.State(), err
	}
	return v.State(), nil
}

// SignOut clears the visitor's session. A backend failure is logged; the
// local session is cleared either way.
func (g *Gate) SignOut(ctx context.Context, key string) {
	v, err := g.Visitor(ctx, key)
	if err != nil {
		return
	}
	if err := v.auth.SignOut(ctx); err != nil {
		g.logger.WithError(err).Warn("backend sign-out failed", "visitor", key)
	}
}

// OnForget registers fn to run when a visitor is dropped from memory.
func (g *Gate) OnForget(fn func(visitorKey string)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.forget = append(g.forget, fn)
}

// Len returns the number of visitors held in memory.
func (g *Gate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.visitors)
}

// Sweep drops visitors idle since before now-IdleTimeout and returns how
// many it dropped.
func (g *Gate) Sweep(now time.Time) int {
	cutoff := now.Add(-g.opts.IdleTimeout)

	g.mu.Lock()
	var idle []*Visitor
	for key, v := range g.visitors {
		if v.seen().Before(cutoff) {
			idle = append(idle, v)
			delete(g.visitors, key)
		}
	}
	hooks := append([]func(string){}, g.forget...)
	g.mu.Unlock()

	for _, v := range idle {
		v.close()
		for _, fn := range hooks {
			fn(v.key)
		}
	}
	if len(idle) > 0 {
		g.logger.Debug("swept idle visitors", "count", len(idle))
	}
	return len(idle)
}

// Start runs the idle sweep every SweepInterval until ctx is done or the
// gate shuts down.
func (g *Gate) Start(ctx context.Context) {
	g.loopMu.Lock()
	defer g.loopMu.Unlock()
	if g.running {
		return
	}
	g.running = true

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		ticker := time.NewTicker(g.opts.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				g.Sweep(g.now())
			case <-g.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Shutdown stops the sweep loop and unsubscribes every visitor. Stored
// sessions are kept so visitors stay signed in across restarts.
func (g *Gate) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	visitors := g.visitors
	g.visitors = make(map[string]*Visitor)
	g.mu.Unlock()

	close(g.stop)
	g.cancel()

	for _, v := range visitors {
		v.close()
	}

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	g.logger.Info("gate shut down", "visitors", len(visitors))
	return nil
}

var _ ViewNotifier = (*sse.Manager)(nil)
