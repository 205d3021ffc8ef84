package watcher_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/tabfetch/internal/pubsub"
	"github.com/zjrosen/tabfetch/internal/watcher"
)

func startWatcher(t *testing.T, content string) (string, <-chan pubsub.Event[watcher.Reload]) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	w, err := watcher.New(watcher.Config{
		Path:        path,
		DebounceDur: 50 * time.Millisecond,
	})
	require.NoError(t, err, "failed to create watcher")
	t.Cleanup(func() { _ = w.Stop() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	events := w.Broker().Subscribe(ctx)

	require.NoError(t, w.Start(), "failed to start watcher")
	return path, events
}

func TestWatcher_PublishesReloadedConfig(t *testing.T) {
	path, events := startWatcher(t, "fetch:\n  page_delay: 4s\n")

	require.NoError(t, os.WriteFile(path, []byte("fetch:\n  page_delay: 10ms\n"), 0o600))

	select {
	case ev := <-events:
		require.Equal(t, pubsub.UpdatedEvent, ev.Type)
		require.NoError(t, ev.Payload.Err)
		require.Equal(t, path, ev.Payload.Path)
		require.Equal(t, 10*time.Millisecond, ev.Payload.Config.Fetch.PageDelay)
	case <-time.After(2 * time.Second):
		t.Fatal("expected reload but got timeout")
	}
}

func TestWatcher_DebounceMultipleWrites(t *testing.T) {
	path, events := startWatcher(t, "debug: false\n")

	// Rapid writes should coalesce into single reload
	for i := range 10 {
		content := fmt.Sprintf("fetch:\n  page_delay: %dms\n", i+1)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case ev := <-events:
		require.NoError(t, ev.Payload.Err)
		require.Equal(t, 10*time.Millisecond, ev.Payload.Config.Fetch.PageDelay)
	case <-time.After(2 * time.Second):
		t.Fatal("expected reload but got timeout")
	}

	select {
	case <-events:
		t.Fatal("unexpected second reload")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcher_InvalidConfigReportsError(t *testing.T) {
	path, events := startWatcher(t, "debug: false\n")

	require.NoError(t, os.WriteFile(path, []byte("fetch:\n  timeout: -1s\n"), 0o600))

	select {
	case ev := <-events:
		require.Error(t, ev.Payload.Err)
		require.Contains(t, ev.Payload.Err.Error(), "fetch.timeout")
	case <-time.After(2 * time.Second):
		t.Fatal("expected reload error but got timeout")
	}
}

func TestWatcher_AtomicRenameSave(t *testing.T) {
	path, events := startWatcher(t, "debug: false\n")

	tmp := filepath.Join(filepath.Dir(path), ".config.yaml.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte("ui:\n  log_lines: 7\n"), 0o600))
	require.NoError(t, os.Rename(tmp, path))

	select {
	case ev := <-events:
		require.NoError(t, ev.Payload.Err)
		require.Equal(t, 7, ev.Payload.Config.UI.LogLines)
	case <-time.After(2 * time.Second):
		t.Fatal("expected reload after rename")
	}
}

func TestWatcher_IgnoresIrrelevantFiles(t *testing.T) {
	path, events := startWatcher(t, "debug: false\n")
	otherPath := filepath.Join(filepath.Dir(path), "other.txt")
	require.NoError(t, os.WriteFile(otherPath, []byte("other content"), 0o600))

	select {
	case <-events:
		t.Fatal("should not reload for unrelated files")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcher_Stop(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("debug: false\n"), 0o600))

	w, err := watcher.New(watcher.DefaultConfig(path))
	require.NoError(t, err, "failed to create watcher")
	events := w.Broker().Subscribe(context.Background())
	require.NoError(t, w.Start(), "failed to start watcher")

	done := make(chan struct{})
	go func() {
		assert.NoError(t, w.Stop(), "Stop returned error")
		assert.NoError(t, w.Stop(), "second Stop returned error")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("Stop() timed out - possible deadlock")
	}

	_, ok := <-events
	require.False(t, ok, "subscription should close with the watcher")
}

func TestWatcher_StartMissingDirectory(t *testing.T) {
	w, err := watcher.New(watcher.DefaultConfig(filepath.Join(t.TempDir(), "absent", "config.yaml")))
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	require.Error(t, w.Start())
}

func TestDefaultConfig(t *testing.T) {
	cfg := watcher.DefaultConfig("/etc/tabfetch/config.yaml")

	assert.Equal(t, "/etc/tabfetch/config.yaml", cfg.Path)
	assert.Equal(t, 250*time.Millisecond, cfg.DebounceDur)
}
