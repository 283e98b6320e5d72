package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/librarydesk/librarian/internal/logger"
)

func startWatcher(t *testing.T, dir string, opts Options) *Watcher {
	t.Helper()
	w, err := New(logger.Discard(), opts)
	require.NoError(t, err)
	require.NoError(t, w.Watch(dir))

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	t.Cleanup(func() {
		cancel()
		_ = w.Stop()
	})
	return w
}

func nextEvent(t *testing.T, w *Watcher, within time.Duration) Event {
	t.Helper()
	select {
	case event := <-w.Events():
		return event
	case err := <-w.Errors():
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(within):
		t.Fatal("timeout waiting for event")
	}
	return Event{}
}

func TestWatcher_StopIsIdempotentAndLeakFree(t *testing.T) {
	defer goleak.VerifyNone(t)

	w, err := New(nil, Options{})
	require.NoError(t, err)
	require.NoError(t, w.Watch(t.TempDir()))
	w.Start(context.Background())

	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())

	_, open := <-w.Events()
	assert.False(t, open)
}

func TestWatcher_WriteSettlesIntoOneEvent(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir, Options{SettleDelay: 50 * time.Millisecond})

	page := filepath.Join(dir, "dashboard.html")
	for i := range 3 {
		require.NoError(t, os.WriteFile(page, []byte{byte('a' + i)}, 0o644))
	}

	event := nextEvent(t, w, time.Second)
	assert.Equal(t, EventModified, event.Type)
	assert.Equal(t, page, event.Path)

	select {
	case extra := <-w.Events():
		t.Fatalf("burst produced a second event: %+v", extra)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcher_FileDeletion(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "login.html")
	require.NoError(t, os.WriteFile(page, []byte("x"), 0o644))

	w := startWatcher(t, dir, Options{})
	require.NoError(t, os.Remove(page))

	event := nextEvent(t, w, time.Second)
	assert.Equal(t, EventRemoved, event.Type)
	assert.Equal(t, page, event.Path)
}

func TestWatcher_IgnoresEditorLeftovers(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir, Options{SettleDelay: 30 * time.Millisecond})

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".tasks.html.swp"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tasks.html~"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tasks.html"), []byte("x"), 0o644))

	event := nextEvent(t, w, time.Second)
	assert.Equal(t, filepath.Join(dir, "tasks.html"), event.Path)
}

func TestOptions_ShouldIgnore(t *testing.T) {
	opts := Options{}
	opts.setDefaults()

	assert.True(t, opts.shouldIgnore("/srv/templates/.git/HEAD"))
	assert.True(t, opts.shouldIgnore("/srv/templates/page.html.swp"))
	assert.False(t, opts.shouldIgnore("/srv/templates/page.html"))

	explicit := Options{IgnorePatterns: []string{}}
	explicit.setDefaults()
	assert.False(t, explicit.shouldIgnore("/srv/templates/.hidden"))
}
