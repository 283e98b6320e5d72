// Package backend is the client for the backend-as-a-service that owns all
// persistence, authentication and authorization. It exposes a table query
// builder (select, insert, update, delete with eq and order) and per-visitor
// auth sessions with change notifications. Wire details live in Transport
// implementations.
package backend

import (
	"context"
	"encoding/json"
	"time"

	"github.com/librarydesk/librarian/internal/logger"
)

// Transport carries client calls to a concrete backend.
type Transport interface {
	// Execute runs a table request and returns the rows as a JSON array.
	Execute(ctx context.Context, req Request) (json.RawMessage, error)

	SignInWithPassword(ctx context.Context, creds Credentials) (*Session, error)
	// SignUp may return a nil session when the backend requires confirmation.
	SignUp(ctx context.Context, creds Credentials) (*Session, error)
	RefreshSession(ctx context.Context, refreshToken string) (*Session, error)
	GetUser(ctx context.Context, accessToken string) (*User, error)
	SignOut(ctx context.Context, accessToken string) error
}

// Credentials identify a user signing in or up.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Client is the entry point for table queries and auth sessions.
type Client struct {
	transport     Transport
	logger        *logger.Logger
	timeout       time.Duration
	refreshMargin time.Duration
	now           func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for request tracing.
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTimeout bounds every backend call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a client over t.
func New(t Transport, opts ...Option) *Client {
	c := &Client{
		transport:     t,
		logger:        logger.Discard(),
		refreshMargin: time.Minute,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Transport returns the underlying transport.
func (c *Client) Transport() Transport {
	return c.transport
}

// GetUser looks up the user owning accessToken.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*User, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	return c.transport.GetUser(ctx, accessToken)
}

// SignInWithPassword exchanges credentials for a session without tracking it.
func (c *Client) SignInWithPassword(ctx context.Context, creds Credentials) (*Session, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	return c.transport.SignInWithPassword(ctx, creds)
}

func (c *Client) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

type accessTokenKey struct{}

// WithAccessToken returns a context whose queries run as the owner of token.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, accessTokenKey{}, token)
}

// AccessToken returns the token stored by WithAccessToken, or "".
func AccessToken(ctx context.Context) string {
	token, _ := ctx.Value(accessTokenKey{}).(string)
	return token
}
