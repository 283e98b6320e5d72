package sse

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/librarydesk/librarian/internal/logger"
)

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case ev := <-c.Events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestManager_RoutesEventsByVisitor(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := NewManager(logger.Discard())
	m.Start(context.Background())

	alice, err := m.Connect("vis-alice")
	require.NoError(t, err)
	bob, err := m.Connect("vis-bob")
	require.NoError(t, err)
	assert.Equal(t, 2, m.ClientCount())

	m.EmitView("vis-alice", ViewDenied, "alice@example.com")
	m.EmitNotice("vis-bob", "error", "could not load books")

	ev := receive(t, alice)
	assert.Equal(t, EventView, ev.Type)
	assert.Equal(t, ViewEventData{View: ViewDenied, Email: "alice@example.com"}, ev.Data)

	ev = receive(t, bob)
	assert.Equal(t, EventNotice, ev.Type)

	select {
	case ev := <-alice.Events:
		t.Fatalf("alice received %s addressed to bob", ev.Type)
	default:
	}

	m.Disconnect(bob)
	assert.Equal(t, 1, m.ClientCount())

	require.NoError(t, m.Shutdown(context.Background()))
	assert.Zero(t, m.ClientCount())

	_, open := <-alice.Done
	assert.False(t, open)
}

func TestManager_EmitAfterShutdownIsDropped(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := NewManager(nil)
	m.Start(context.Background())
	require.NoError(t, m.Shutdown(context.Background()))
	require.NoError(t, m.Shutdown(context.Background()))

	assert.NotPanics(t, func() { m.EmitView("vis-1", ViewLogin, "") })
}

func TestManager_ShutdownWithoutStart(t *testing.T) {
	m := NewManager(nil)
	_, err := m.Connect("vis-1")
	require.NoError(t, err)

	require.NoError(t, m.Shutdown(context.Background()))
	assert.Zero(t, m.ClientCount())
}

func TestHandler_RejectsMissingVisitor(t *testing.T) {
	h := NewHandler(NewManager(nil), func(*http.Request) (string, bool) { return "", false }, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandler_StreamsViewEvents(t *testing.T) {
	m := NewManager(logger.Discard())
	m.Start(context.Background())
	h := NewHandler(m, func(*http.Request) (string, bool) { return "vis-1", true }, nil)

	server := httptest.NewServer(h)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	resp, err := server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: connected\n", line)

	require.Eventually(t, func() bool { return m.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
	m.EmitView("vis-1", ViewLogin, "")

	var got []string
	for len(got) < 2 {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "event: view") || strings.HasPrefix(line, "data: {\"timestamp\"") {
			got = append(got, line)
		}
	}
	assert.Equal(t, "event: view\n", got[0])
	assert.Contains(t, got[1], `"view":"login"`)

	cancel()
	require.NoError(t, m.Shutdown(context.Background()))
}

func TestManager_VisitorTabsShareEvents(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := NewManager(nil)
	m.Start(context.Background())

	first, err := m.Connect("vis-1")
	require.NoError(t, err)
	second, err := m.Connect("vis-1")
	require.NoError(t, err)
	assert.Equal(t, 2, m.VisitorStreams("vis-1"))

	m.EmitNotice("vis-1", "info", "saved")
	assert.Equal(t, EventNotice, receive(t, first).Type)
	assert.Equal(t, EventNotice, receive(t, second).Type)

	m.Disconnect(first)
	m.Disconnect(first)
	assert.Equal(t, 1, m.VisitorStreams("vis-1"))
	assert.Zero(t, m.VisitorStreams("vis-2"))

	require.NoError(t, m.Shutdown(context.Background()))
}
