package backend

import (
	"context"
	"slices"
	"sync"

	domainerrors "github.com/librarydesk/librarian/internal/errors"
)

// AuthEvent names a change in an AuthSession.
type AuthEvent string

// Auth events.
const (
	EventInitialSession AuthEvent = "INITIAL_SESSION"
	EventSignedIn       AuthEvent = "SIGNED_IN"
	EventSignedOut      AuthEvent = "SIGNED_OUT"
	EventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
)

// AuthChangeFunc receives auth events. session is nil after sign-out.
type AuthChangeFunc func(event AuthEvent, session *Session)

// Subscription is returned by OnAuthStateChange.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Unsubscribe stops delivery. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
}

// AuthSession tracks one client's session and notifies subscribers when
// it changes. Listeners run synchronously on the goroutine that caused the
// change, after the session lock is released.
type AuthSession struct {
	client *Client

	mu        sync.Mutex
	session   *Session
	listeners map[uint64]AuthChangeFunc
	nextID    uint64
}

// NewAuthSession creates an auth session, optionally restoring initial.
func (c *Client) NewAuthSession(initial *Session) *AuthSession {
	return &AuthSession{
		client:    c,
		session:   initial,
		listeners: make(map[uint64]AuthChangeFunc),
	}
}

// OnAuthStateChange registers fn for every subsequent auth event. fn is
// called once with INITIAL_SESSION and the current session (possibly nil)
// before OnAuthStateChange returns.
func (a *AuthSession) OnAuthStateChange(fn AuthChangeFunc) *Subscription {
	a.mu.Lock()
	a.nextID++
	subID := a.nextID
	a.listeners[subID] = fn
	current := a.session
	a.mu.Unlock()

	fn(EventInitialSession, current)

	return &Subscription{cancel: func() {
		a.mu.Lock()
		delete(a.listeners, subID)
		a.mu.Unlock()
	}}
}

// Listeners returns the number of active subscriptions.
func (a *AuthSession) Listeners() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.listeners)
}

// Current returns the tracked session without refreshing it.
func (a *AuthSession) Current() *Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}

// GetSession returns the current session, refreshing it first when the
// access token is about to expire. It returns nil, nil when signed out.
// A refresh the backend rejects signs the session out.
func (a *AuthSession) GetSession(ctx context.Context) (*Session, error) {
	current := a.Current()
	if current == nil {
		return nil, nil
	}
	if !current.ExpiresWithin(a.client.now(), a.client.refreshMargin) {
		return current, nil
	}
	return a.refresh(ctx, current)
}

func (a *AuthSession) refresh(ctx context.Context, current *Session) (*Session, error) {
	ctx, cancel := a.client.bound(ctx)
	defer cancel()

	next, err := a.client.transport.RefreshSession(ctx, current.RefreshToken)
	if err != nil {
		switch domainerrors.CodeOf(err) {
		case domainerrors.CodeUnauthorized, domainerrors.CodeSessionExpired,
			domainerrors.CodeInvalidCredentials, domainerrors.CodeNotFound, domainerrors.CodeValidation:
			a.client.logger.Info("session refresh rejected, signing out", "user_id", current.User.ID)
			a.set(current, nil, EventSignedOut)
			return nil, nil
		}
		return nil, err
	}

	if !a.set(current, next, EventTokenRefreshed) {
		// Another caller replaced the session while we were refreshing.
		return a.Current(), nil
	}
	return next, nil
}

// SignInWithPassword signs in and tracks the new session.
func (a *AuthSession) SignInWithPassword(ctx context.Context, creds Credentials) (*Session, error) {
	ctx, cancel := a.client.bound(ctx)
	defer cancel()

	session, err := a.client.transport.SignInWithPassword(ctx, creds)
	if err != nil {
		return nil, err
	}
	a.replace(session, EventSignedIn)
	return session, nil
}

// SignUp registers a user. When the backend returns a session it is
// tracked like a sign-in.
func (a *AuthSession) SignUp(ctx context.Context, creds Credentials) (*Session, error) {
	ctx, cancel := a.client.bound(ctx)
	defer cancel()

	session, err := a.client.transport.SignUp(ctx, creds)
	if err != nil {
		return nil, err
	}
	if session != nil {
		a.replace(session, EventSignedIn)
	}
	return session, nil
}

// SignOut drops the local session, notifies subscribers, then revokes the
// session on the backend. The local session is cleared even when the
// backend call fails; that failure is returned.
func (a *AuthSession) SignOut(ctx context.Context) error {
	current := a.Current()
	if current == nil {
		return nil
	}
	a.set(current, nil, EventSignedOut)

	ctx, cancel := a.client.bound(ctx)
	defer cancel()
	return a.client.transport.SignOut(ctx, current.AccessToken)
}

// GetUser returns the user owning the current session.
func (a *AuthSession) GetUser(ctx context.Context) (*User, error) {
	session, err := a.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domainerrors.Unauthorized("no active session")
	}
	return a.client.GetUser(ctx, session.AccessToken)
}

// Close removes every listener.
func (a *AuthSession) Close() {
	a.mu.Lock()
	clear(a.listeners)
	a.mu.Unlock()
}

func (a *AuthSession) replace(next *Session, event AuthEvent) {
	a.mu.Lock()
	a.session = next
	fns := a.snapshot()
	a.mu.Unlock()

	notify(fns, event, next)
}

// set swaps expected for next and notifies, unless the session changed
// underneath. It reports whether the swap happened.
func (a *AuthSession) set(expected, next *Session, event AuthEvent) bool {
	a.mu.Lock()
	if a.session != expected {
		a.mu.Unlock()
		return false
	}
	a.session = next
	fns := a.snapshot()
	a.mu.Unlock()

	notify(fns, event, next)
	return true
}

// snapshot must be called with a.mu held.
func (a *AuthSession) snapshot() []AuthChangeFunc {
	ids := make([]uint64, 0, len(a.listeners))
	for subID := range a.listeners {
		ids = append(ids, subID)
	}
	slices.Sort(ids)

	fns := make([]AuthChangeFunc, len(ids))
	for i, subID := range ids {
		fns[i] = a.listeners[subID]
	}
	return fns
}

func notify(fns []AuthChangeFunc, event AuthEvent, session *Session) {
	for _, fn := range fns {
		fn(event, session)
	}
}
