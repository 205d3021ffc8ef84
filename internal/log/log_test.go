package log

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInit_WritesFormattedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	cleanup, err := Init(path, 10)
	require.NoError(t, err)

	Info(CatFetch, "request done", "status", 200, "url", "http://example.com")
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))
	require.Contains(t, line, "[INFO] [fetch] request done")
	require.Contains(t, line, "status=200")
	require.Contains(t, line, "url=http://example.com")
}

func TestLog_OddFieldCount(t *testing.T) {
	var buf bytes.Buffer
	defer InitWriter(&buf, 10)()

	Warn(CatJob, "odd", "orphan")
	require.Contains(t, buf.String(), "orphan=<missing>")
}

func TestErrorErr_NilError(t *testing.T) {
	var buf bytes.Buffer
	defer InitWriter(&buf, 10)()

	ErrorErr(CatLoop, "boom", nil)
	require.Contains(t, buf.String(), "error=<nil>")
}

func TestSetMinLevel_FiltersLowerLevels(t *testing.T) {
	var buf bytes.Buffer
	defer InitWriter(&buf, 10)()

	SetMinLevel(LevelWarn)
	Debug(CatUI, "hidden")
	Error(CatUI, "shown")

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "shown")
}

func TestSetEnabled_False(t *testing.T) {
	var buf bytes.Buffer
	defer InitWriter(&buf, 10)()

	SetEnabled(false)
	Error(CatUI, "nothing")
	require.Empty(t, buf.String())
}

func TestEntries_RingBuffer(t *testing.T) {
	var buf bytes.Buffer
	defer InitWriter(&buf, 3)()

	for _, msg := range []string{"a", "b", "c", "d", "e"} {
		Info(CatLoop, msg)
	}

	entries := Entries(LevelDebug)
	require.Len(t, entries, 3)
	require.True(t, strings.HasSuffix(entries[0].Line, "c"))
	require.True(t, strings.HasSuffix(entries[2].Line, "e"))

	ClearBuffer()
	require.Empty(t, Entries(LevelDebug))
}

func TestEntries_MinLevel(t *testing.T) {
	var buf bytes.Buffer
	defer InitWriter(&buf, 10)()

	Debug(CatLoop, "debug")
	Error(CatLoop, "error")

	entries := Entries(LevelError)
	require.Len(t, entries, 1)
	require.Equal(t, LevelError, entries[0].Level)
}

func TestNoLogger_IsSafe(t *testing.T) {
	install(nil)
	require.NotPanics(t, func() {
		Info(CatLoop, "dropped")
		SetEnabled(true)
		SetMinLevel(LevelDebug)
		ClearBuffer()
	})
	require.Nil(t, Entries(LevelDebug))
	require.Nil(t, NewListener(context.Background()))
}

func TestNewListener_ReceivesEntries(t *testing.T) {
	var buf bytes.Buffer
	defer InitWriter(&buf, 10)()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listener := NewListener(ctx)
	require.NotNil(t, listener)

	Info(CatBridge, "published")

	done := make(chan LogEvent, 1)
	go func() {
		if ev, ok := listener.Listen()().(LogEvent); ok {
			done <- ev
		}
	}()

	select {
	case ev := <-done:
		require.Contains(t, ev.Payload, "published")
	case <-time.After(time.Second):
		require.Fail(t, "timeout waiting for log event")
	}
}
