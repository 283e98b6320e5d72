package gate

import (
	"context"
	"sync"
	"time"

	"github.com/librarydesk/librarian/internal/backend"
	"github.com/librarydesk/librarian/internal/sse"
)

// State is what the gate knows about a visitor. Only two booleans drive
// routing; the rest is for display and scoping.
type State struct {
	Authenticated bool
	Librarian     bool
	UserID        string
	Email         string
}

// View returns the page the visitor should see.
func (s State) View() string {
	switch {
	case !s.Authenticated:
		return sse.ViewLogin
	case !s.Librarian:
		return sse.ViewDenied
	default:
		return sse.ViewDashboard
	}
}

// Visitor is one browser's auth state.
type Visitor struct {
	key  string
	auth *backend.AuthSession
	sub  *backend.Subscription

	// events serialises auth event handling.
	events sync.Mutex

	mu       sync.Mutex
	state    State
	lastSeen time.Time
}

// Key returns the visitor key.
func (v *Visitor) Key() string { return v.key }

// State returns the last resolved state.
func (v *Visitor) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Session returns the current backend session, refreshing it if needed.
// It returns nil, nil when signed out.
func (v *Visitor) Session(ctx context.Context) (*backend.Session, error) {
	return v.auth.GetSession(ctx)
}

// Context returns ctx carrying the visitor's access token, together with
// the signed-in user's id.
func (v *Visitor) Context(ctx context.Context) (context.Context, string, error) {
	session, err := v.auth.GetSession(ctx)
	if err != nil {
		return nil, "", err
	}
	if session == nil {
		return nil, "", ErrSignedOut
	}
	return backend.WithAccessToken(ctx, session.AccessToken), session.User.ID, nil
}

func (v *Visitor) setState(s State) {
	v.mu.Lock()
	v.state = s
	v.mu.Unlock()
}

func (v *Visitor) touch(now time.Time) {
	v.mu.Lock()
	if now.After(v.lastSeen) {
		v.lastSeen = now
	}
	v.mu.Unlock()
}

func (v *Visitor) seen() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastSeen
}

func (v *Visitor) close() {
	v.sub.Unsubscribe()
	v.auth.Close()
}
