package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"aidanwoods.dev/go-paseto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librarydesk/librarian/internal/auth"
	"github.com/librarydesk/librarian/internal/backend"
	"github.com/librarydesk/librarian/internal/backend/local"
	"github.com/librarydesk/librarian/internal/gate"
	"github.com/librarydesk/librarian/internal/logger"
	"github.com/librarydesk/librarian/internal/ratelimit"
	"github.com/librarydesk/librarian/internal/service"
	"github.com/librarydesk/librarian/internal/sse"
	"github.com/librarydesk/librarian/internal/store"
	"github.com/librarydesk/librarian/internal/validation"
	"github.com/librarydesk/librarian/internal/workspace"
)

const password = "correct-horse-battery"

type fixture struct {
	local  *local.Backend
	server *httptest.Server
}

func newFixture(t *testing.T, limiter *ratelimit.KeyedRateLimiter) *fixture {
	t.Helper()
	log := logger.Discard()
	key := paseto.NewV4SymmetricKey()

	tokens := auth.NewTokenService(key, time.Hour, 24*time.Hour)
	lb, err := local.Open(context.Background(), filepath.Join(t.TempDir(), "backend.db"), tokens, log)
	require.NoError(t, err)
	t.Cleanup(func() { lb.Close() })

	client := backend.New(lb)
	v := validation.New()

	manager := sse.NewManager(log)
	ctx, cancel := context.WithCancel(context.Background())
	manager.Start(ctx)
	t.Cleanup(func() {
		cancel()
		_ = manager.Shutdown(context.Background())
	})

	g := gate.New(client, store.NewMemory(), manager, log, gate.Options{IdleTimeout: time.Minute})
	t.Cleanup(func() { _ = g.Shutdown(context.Background()) })

	registry := workspace.NewRegistry(workspace.Services{
		Books:      service.NewBookService(client, v, log),
		Categories: service.NewCategoryService(client, v, log),
		Tasks:      service.NewTaskService(client, v, log),
	}, log)
	g.OnForget(registry.Forget)

	if limiter == nil {
		limiter = ratelimit.PerMinute(600, 100)
	}
	t.Cleanup(limiter.Stop)

	s, err := NewServer(Deps{
		Gate:          g,
		Workspaces:    registry,
		Sealer:        auth.NewCookieSealer(key, time.Hour),
		SSE:           manager,
		SignInLimiter: limiter,
		Logger:        log,
	}, Options{})
	require.NoError(t, err)

	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)
	return &fixture{local: lb, server: srv}
}

func (f *fixture) user(t *testing.T, email, role string) {
	t.Helper()
	_, err := f.local.CreateUser(context.Background(), backend.Credentials{Email: email, Password: password}, role)
	require.NoError(t, err)
}

// browser is an HTTP client with its own cookie jar, like one browser tab.
type browser struct {
	t      *testing.T
	base   string
	client *http.Client
}

func (f *fixture) browser(t *testing.T) *browser {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{t: t, base: f.server.URL, client: &http.Client{Jar: jar}}
}

// get returns the status and body of path, following redirects.
func (b *browser) get(path string) (int, string) {
	b.t.Helper()
	resp, err := b.client.Get(b.base + path)
	require.NoError(b.t, err)
	return readResponse(b.t, resp)
}

// post submits form to path and follows the 303 back to a page.
func (b *browser) post(path string, form url.Values) (int, string) {
	b.t.Helper()
	resp, err := b.client.PostForm(b.base+path, form)
	require.NoError(b.t, err)
	return readResponse(b.t, resp)
}

func (b *browser) signIn(email string) (int, string) {
	b.t.Helper()
	return b.post("/login", url.Values{"email": {email}, "password": {password}})
}

func readResponse(t *testing.T, resp *http.Response) (int, string) {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestIndex_NewVisitorSeesLogin(t *testing.T) {
	f := newFixture(t, nil)
	b := f.browser(t)

	status, body := b.get("/")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `data-view="login"`)
	assert.Contains(t, body, "Sign In")

	u, err := url.Parse(f.server.URL)
	require.NoError(t, err)
	cookies := b.client.Jar.Cookies(u)
	require.Len(t, cookies, 1)
	assert.Equal(t, "librarian_visitor", cookies[0].Name)
}

func TestLogin_LibrarianSeesDashboard(t *testing.T) {
	f := newFixture(t, nil)
	f.user(t, "ada@example.com", "librarian")
	b := f.browser(t)

	status, body := b.signIn("ada@example.com")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `data-view="dashboard"`)
	assert.Contains(t, body, "Librarian Dashboard")
	assert.Contains(t, body, "ada@example.com")
}

func TestLogin_MemberSeesAccessDenied(t *testing.T) {
	f := newFixture(t, nil)
	f.user(t, "bob@example.com", "member")
	b := f.browser(t)

	status, body := b.signIn("bob@example.com")
	assert.Equal(t, http.StatusForbidden, status)
	assert.Contains(t, body, "Access Denied")
	assert.Contains(t, body, "bob@example.com")

	status, _ = b.post("/books", url.Values{"title": {"Sneaky"}})
	assert.Equal(t, http.StatusForbidden, status, "denied visitor is bounced back to the denied page")
}

func TestLogin_WrongPassword(t *testing.T) {
	f := newFixture(t, nil)
	f.user(t, "ada@example.com", "librarian")
	b := f.browser(t)

	status, body := b.post("/login", url.Values{"email": {"ada@example.com"}, "password": {"nope-nope-nope"}})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, body, "Invalid login credentials")
	assert.Contains(t, body, `value="ada@example.com"`)
	assert.NotContains(t, body, "nope-nope-nope")
}

func TestLogin_MissingFields(t *testing.T) {
	f := newFixture(t, nil)
	b := f.browser(t)

	status, body := b.post("/login", url.Values{"email": {"ada@example.com"}})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Contains(t, body, `data-view="login"`)
}

func TestSignUp_CreatesAccountWithoutRole(t *testing.T) {
	f := newFixture(t, nil)
	b := f.browser(t)

	status, body := b.post("/signup", url.Values{"email": {"new@example.com"}, "password": {password}})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Contains(t, body, "Access Denied")

	other := f.browser(t)
	status, body = other.post("/signup", url.Values{"email": {"new@example.com"}, "password": {password}})
	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, body, "User already registered")
}

func TestLogout_ReturnsToLogin(t *testing.T) {
	f := newFixture(t, nil)
	f.user(t, "ada@example.com", "librarian")
	b := f.browser(t)
	b.signIn("ada@example.com")

	status, body := b.post("/logout", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `data-view="login"`)

	_, body = b.get("/")
	assert.Contains(t, body, `data-view="login"`)
}

func TestSession_SurvivesAcrossRequests(t *testing.T) {
	f := newFixture(t, nil)
	f.user(t, "ada@example.com", "librarian")
	b := f.browser(t)
	b.signIn("ada@example.com")

	_, body := b.get("/")
	assert.Contains(t, body, `data-view="dashboard"`)

	other := f.browser(t)
	_, body = other.get("/")
	assert.Contains(t, body, `data-view="login"`, "sessions are per browser")
}

func TestDashboard_AddBook(t *testing.T) {
	f := newFixture(t, nil)
	f.user(t, "ada@example.com", "librarian")
	b := f.browser(t)
	b.signIn("ada@example.com")

	status, body := b.post("/books", url.Values{
		"title":            {"Middlemarch"},
		"isbn":             {"978-0141439549"},
		"publication_year": {"1871"},
		"total_copies":     {"3"},
		"available_copies": {"2"},
	})
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "<strong>Middlemarch</strong>")
	assert.Contains(t, body, "Year: 1871")
	assert.Contains(t, body, "Copies: 2 / 3")
	assert.NotContains(t, body, "window.alert")
}

func TestDashboard_AddBookInvalidKeepsForm(t *testing.T) {
	f := newFixture(t, nil)
	f.user(t, "ada@example.com", "librarian")
	b := f.browser(t)
	b.signIn("ada@example.com")

	_, body := b.post("/books", url.Values{
		"title":            {"Half a book"},
		"publication_year": {"not a year"},
		"total_copies":     {"1"},
		"available_copies": {"1"},
	})
	assert.Contains(t, body, `value="Half a book"`)
	assert.Contains(t, body, "field-error")
	assert.Contains(t, body, "No books yet.")
}

func TestDashboard_CategoriesTab(t *testing.T) {
	f := newFixture(t, nil)
	f.user(t, "ada@example.com", "librarian")
	b := f.browser(t)
	b.signIn("ada@example.com")

	_, body := b.get("/?tab=categories")
	assert.Contains(t, body, "Add New Category")
	assert.NotContains(t, body, "Add New Book")

	b.post("/categories", url.Values{"name": {"History"}})
	_, body = b.post("/categories", url.Values{"name": {"Art"}})
	assert.Contains(t, body, "Add New Category", "category submit stays on its tab")
	assert.Less(t, strings.Index(body, "<strong>Art</strong>"), strings.Index(body, "<strong>History</strong>"))

	status, _ := b.get("/?tab=loans")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestDashboard_ReloadSeesOtherLibrariansBooks(t *testing.T) {
	f := newFixture(t, nil)
	f.user(t, "ada@example.com", "librarian")
	f.user(t, "grace@example.com", "librarian")

	ada := f.browser(t)
	ada.signIn("ada@example.com")
	grace := f.browser(t)
	grace.signIn("grace@example.com")

	grace.post("/books", url.Values{
		"title":            {"Persuasion"},
		"publication_year": {"1817"},
		"total_copies":     {"1"},
		"available_copies": {"1"},
	})

	_, body := ada.get("/")
	assert.NotContains(t, body, "Persuasion", "mounted lists are not refetched on every render")

	_, body = ada.post("/dashboard/reload", nil)
	assert.Contains(t, body, "Persuasion")
}

func TestTasks_Lifecycle(t *testing.T) {
	f := newFixture(t, nil)
	f.user(t, "bob@example.com", "member")
	b := f.browser(t)
	b.signIn("bob@example.com")

	status, body := b.get("/tasks")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "No tasks yet.")

	_, body = b.post("/tasks", url.Values{"title": {"Shelve returns"}, "description": {"Cart B"}})
	assert.Contains(t, body, "<strong>Shelve returns</strong>")

	id := taskID(t, body)

	_, body = b.post("/tasks/"+id+"/edit", nil)
	assert.Contains(t, body, `action="/tasks/`+id+`/save"`)
	assert.Contains(t, body, `value="Shelve returns"`)

	_, body = b.post("/tasks/"+id+"/save", url.Values{"title": {"Shelve all returns"}, "description": {"Cart B"}})
	assert.Contains(t, body, "<strong>Shelve all returns</strong>")
	assert.NotContains(t, body, `/save"`)

	_, body = b.post("/tasks/"+id+"/delete", nil)
	assert.Contains(t, body, "No tasks yet.")
}

func TestTasks_CancelEditDiscardsDraft(t *testing.T) {
	f := newFixture(t, nil)
	f.user(t, "bob@example.com", "member")
	b := f.browser(t)
	b.signIn("bob@example.com")

	_, body := b.post("/tasks", url.Values{"title": {"Dust shelves"}})
	id := taskID(t, body)

	b.post("/tasks/"+id+"/edit", nil)
	_, body = b.post("/tasks/"+id+"/cancel", url.Values{"title": {"Never saved"}})
	assert.Contains(t, body, "<strong>Dust shelves</strong>")
	assert.NotContains(t, body, "Never saved")
}

func TestTasks_AreScopedToTheirOwner(t *testing.T) {
	f := newFixture(t, nil)
	f.user(t, "bob@example.com", "member")
	f.user(t, "eve@example.com", "member")

	bob := f.browser(t)
	bob.signIn("bob@example.com")
	_, body := bob.post("/tasks", url.Values{"title": {"Bob's task"}})
	id := taskID(t, body)

	eve := f.browser(t)
	eve.signIn("eve@example.com")
	_, body = eve.get("/tasks")
	assert.NotContains(t, body, "Bob&#39;s task")

	eve.post("/tasks/"+id+"/delete", nil)
	_, body = bob.get("/tasks")
	assert.Contains(t, body, "Bob&#39;s task")
}

func TestTasks_RequireSignIn(t *testing.T) {
	f := newFixture(t, nil)
	b := f.browser(t)

	_, body := b.get("/tasks")
	assert.Contains(t, body, `data-view="login"`)

	_, body = b.post("/tasks", url.Values{"title": {"x"}})
	assert.Contains(t, body, `data-view="login"`)
}

func TestLogin_RateLimited(t *testing.T) {
	f := newFixture(t, ratelimit.PerMinute(1, 2))
	b := f.browser(t)

	bad := url.Values{"email": {"nobody@example.com"}, "password": {"whatever-pass"}}
	for range 2 {
		status, _ := b.post("/login", bad)
		assert.Equal(t, http.StatusUnauthorized, status)
	}

	status, body := b.post("/login", bad)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Contains(t, body, "RATE_LIMITED")
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)
	f.browser(t).get("/")

	resp, err := http.Get(f.server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var envelope struct {
		Success bool           `json:"success"`
		Data    HealthResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.True(t, envelope.Success)
	assert.Equal(t, "ok", envelope.Data.Status)
	assert.Equal(t, 1, envelope.Data.Visitors)
	assert.Equal(t, 1, envelope.Data.Workspaces)
}

// taskID extracts the id of the first task row from the task board.
func taskID(t *testing.T, body string) string {
	t.Helper()
	const marker = `action="/tasks/`
	i := strings.Index(body, marker)
	require.GreaterOrEqual(t, i, 0, "no task row in page")
	rest := body[i+len(marker):]
	end := strings.Index(rest, "/")
	require.Positive(t, end)
	return rest[:end]
}
