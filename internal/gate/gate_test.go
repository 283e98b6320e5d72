package gate

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"aidanwoods.dev/go-paseto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/librarydesk/librarian/internal/auth"
	"github.com/librarydesk/librarian/internal/backend"
	"github.com/librarydesk/librarian/internal/backend/local"
	domainerrors "github.com/librarydesk/librarian/internal/errors"
	"github.com/librarydesk/librarian/internal/logger"
	"github.com/librarydesk/librarian/internal/sse"
	"github.com/librarydesk/librarian/internal/store"
)

type viewRecorder struct {
	mu    sync.Mutex
	views map[string][]string
}

func (r *viewRecorder) EmitView(visitorKey, view, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.views == nil {
		r.views = make(map[string][]string)
	}
	r.views[visitorKey] = append(r.views[visitorKey], view)
}

func (r *viewRecorder) of(visitorKey string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.views[visitorKey]...)
}

type fixture struct {
	local    *local.Backend
	client   *backend.Client
	sessions *store.Memory
	views    *viewRecorder
	gate     *Gate
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, nil)
}

// newFixtureWith lets a test wrap the local backend before the gate sees it.
func newFixtureWith(t *testing.T, wrap func(backend.Transport) backend.Transport) *fixture {
	t.Helper()
	tokens := auth.NewTokenService(paseto.NewV4SymmetricKey(), time.Hour, 24*time.Hour)
	lb, err := local.Open(context.Background(), filepath.Join(t.TempDir(), "backend.db"), tokens, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { lb.Close() })

	var transport backend.Transport = lb
	if wrap != nil {
		transport = wrap(lb)
	}
	f := &fixture{
		local:    lb,
		client:   backend.New(transport),
		sessions: store.NewMemory(),
		views:    &viewRecorder{},
	}
	f.gate = New(f.client, f.sessions, f.views, logger.Discard(), Options{IdleTimeout: time.Minute})
	t.Cleanup(func() { _ = f.gate.Shutdown(context.Background()) })
	return f
}

func (f *fixture) user(t *testing.T, email, role string) backend.Credentials {
	t.Helper()
	creds := backend.Credentials{Email: email, Password: "correct-horse-battery"}
	_, err := f.local.CreateUser(context.Background(), creds, role)
	require.NoError(t, err)
	return creds
}

func TestGate_NewVisitorIsUnauthenticated(t *testing.T) {
	f := newFixture(t)

	v, err := f.gate.Visitor(context.Background(), "vis-1")
	require.NoError(t, err)

	assert.Equal(t, State{}, v.State())
	assert.Equal(t, sse.ViewLogin, v.State().View())
	assert.Empty(t, f.views.of("vis-1"))

	_, _, err = v.Context(context.Background())
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)
}

func TestGate_SignInRoutesByRole(t *testing.T) {
	tests := []struct {
		name string
		role string
		view string
	}{
		{"librarian", "librarian", sse.ViewDashboard},
		{"member", "member", sse.ViewDenied},
		{"no role", "", sse.ViewDenied},
		{"wrong case", "Librarian", sse.ViewDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			creds := f.user(t, "reader@example.com", tt.role)

			state, err := f.gate.SignIn(context.Background(), "vis-1", creds)
			require.NoError(t, err)

			assert.True(t, state.Authenticated)
			assert.Equal(t, "reader@example.com", state.Email)
			assert.Equal(t, tt.view, state.View())
			assert.Equal(t, []string{tt.view}, f.views.of("vis-1"))
		})
	}
}

func TestGate_WrongPasswordKeepsLoginView(t *testing.T) {
	f := newFixture(t)
	creds := f.user(t, "ada@example.com", "librarian")
	creds.Password = "nope-nope-nope"

	state, err := f.gate.SignIn(context.Background(), "vis-1", creds)
	require.Error(t, err)
	assert.Equal(t, domainerrors.CodeInvalidCredentials, domainerrors.CodeOf(err))
	assert.False(t, state.Authenticated)
	assert.Empty(t, f.views.of("vis-1"))
}

func TestGate_SignOutFromDeniedView(t *testing.T) {
	f := newFixture(t)
	creds := f.user(t, "member@example.com", "")
	ctx := context.Background()

	_, err := f.gate.SignIn(ctx, "vis-1", creds)
	require.NoError(t, err)
	_, err = f.sessions.Load(ctx, "vis-1")
	require.NoError(t, err)

	f.gate.SignOut(ctx, "vis-1")

	v, err := f.gate.Visitor(ctx, "vis-1")
	require.NoError(t, err)
	current, err := v.Session(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)
	assert.Equal(t, sse.ViewLogin, v.State().View())
	assert.Equal(t, []string{sse.ViewDenied, sse.ViewLogin}, f.views.of("vis-1"))

	_, err = f.sessions.Load(ctx, "vis-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGate_RoleChangeIsPickedUpOnNextEvent(t *testing.T) {
	f := newFixture(t)
	creds := f.user(t, "ada@example.com", "")
	ctx := context.Background()

	state, err := f.gate.SignIn(ctx, "vis-1", creds)
	require.NoError(t, err)
	assert.False(t, state.Librarian)

	require.NoError(t, f.local.SetRole(ctx, creds.Email, "librarian"))

	f.gate.SignOut(ctx, "vis-1")
	state, err = f.gate.SignIn(ctx, "vis-1", creds)
	require.NoError(t, err)
	assert.True(t, state.Librarian)
}

func TestGate_RestoresStoredSession(t *testing.T) {
	f := newFixture(t)
	creds := f.user(t, "ada@example.com", "librarian")
	ctx := context.Background()

	_, err := f.gate.SignIn(ctx, "vis-1", creds)
	require.NoError(t, err)
	require.NoError(t, f.gate.Shutdown(ctx))

	// A fresh gate over the same store, as after a restart.
	restarted := New(f.client, f.sessions, f.views, nil, Options{})
	defer restarted.Shutdown(ctx)

	v, err := restarted.Visitor(ctx, "vis-1")
	require.NoError(t, err)
	assert.True(t, v.State().Librarian)

	tokenCtx, userID, err := v.Context(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, backend.AccessToken(tokenCtx))
	assert.NotEmpty(t, userID)
}

func TestGate_SignUpSignsIn(t *testing.T) {
	f := newFixture(t)

	state, err := f.gate.SignUp(context.Background(), "vis-1", backend.Credentials{
		Email:    "new@example.com",
		Password: "a-long-enough-password",
	})
	require.NoError(t, err)
	assert.True(t, state.Authenticated)
	assert.False(t, state.Librarian)
}

func TestGate_SweepDropsIdleVisitors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var forgotten []string
	f.gate.OnForget(func(key string) { forgotten = append(forgotten, key) })

	base := time.Now()
	f.gate.now = func() time.Time { return base }
	_, err := f.gate.Visitor(ctx, "vis-old")
	require.NoError(t, err)

	f.gate.now = func() time.Time { return base.Add(50 * time.Second) }
	_, err = f.gate.Visitor(ctx, "vis-new")
	require.NoError(t, err)
	assert.Equal(t, 2, f.gate.Len())

	dropped := f.gate.Sweep(base.Add(90 * time.Second))
	assert.Equal(t, 1, dropped)
	assert.Equal(t, []string{"vis-old"}, forgotten)
	assert.Equal(t, 1, f.gate.Len())
}

func TestGate_ShutdownReleasesEverything(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	f := newFixture(t)
	creds := f.user(t, "ada@example.com", "librarian")
	ctx := context.Background()

	f.gate.Start(ctx)
	v, err := f.gate.SignIn(ctx, "vis-1", creds)
	require.NoError(t, err)
	require.True(t, v.Librarian)

	visitor, err := f.gate.Visitor(ctx, "vis-1")
	require.NoError(t, err)

	require.NoError(t, f.gate.Shutdown(ctx))
	require.NoError(t, f.gate.Shutdown(ctx))

	assert.Zero(t, f.gate.Len())
	assert.Zero(t, visitor.auth.Listeners())

	_, err = f.gate.Visitor(ctx, "vis-2")
	assert.ErrorIs(t, err, ErrClosed)

	// Stored sessions outlive the process.
	_, err = f.sessions.Load(ctx, "vis-1")
	assert.NoError(t, err)
}

// stallingTransport parks the first GetUser call until release is closed.
type stallingTransport struct {
	backend.Transport
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (s *stallingTransport) GetUser(ctx context.Context, accessToken string) (*backend.User, error) {
	first := false
	s.once.Do(func() { first = true })
	if first {
		close(s.entered)
		<-s.release
	}
	return s.Transport.GetUser(ctx, accessToken)
}

func TestGate_SignOutWinsOverSlowRoleLookup(t *testing.T) {
	stall := &stallingTransport{entered: make(chan struct{}), release: make(chan struct{})}
	f := newFixtureWith(t, func(tr backend.Transport) backend.Transport {
		stall.Transport = tr
		return stall
	})
	creds := f.user(t, "ada@example.com", "librarian")
	ctx := context.Background()

	v, err := f.gate.Visitor(ctx, "vis-1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = f.gate.SignIn(ctx, "vis-1", creds)
	}()

	select {
	case <-stall.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("role lookup never started")
	}

	go func() {
		defer wg.Done()
		f.gate.SignOut(ctx, "vis-1")
	}()
	require.Eventually(t, func() bool {
		current, err := v.Session(ctx)
		return err == nil && current == nil
	}, 5*time.Second, 10*time.Millisecond)

	close(stall.release)
	wg.Wait()

	assert.Equal(t, State{}, v.State())
	assert.Equal(t, []string{sse.ViewLogin}, f.views.of("vis-1"))
	_, err = f.sessions.Load(ctx, "vis-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
