package jobs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/zjrosen/tabfetch/internal/browser"
	"github.com/zjrosen/tabfetch/internal/fetch"
	"github.com/zjrosen/tabfetch/internal/session"
	"github.com/zjrosen/tabfetch/internal/tracing"
)

type fakeFetcher struct {
	favicon  []byte
	page     string
	pageErr  error
	panicMsg string

	mu      sync.Mutex
	favURLs []string
}

func (f *fakeFetcher) FetchFavicon(ctx context.Context, base string) []byte {
	f.mu.Lock()
	f.favURLs = append(f.favURLs, base)
	f.mu.Unlock()
	if ctx.Err() != nil {
		return []byte{}
	}
	return f.favicon
}

func (f *fakeFetcher) FetchPage(ctx context.Context, url string) (string, error) {
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.page, f.pageErr
}

var noDelay = WithSettings(Settings{})

// drain collects every event sent before the runner finished.
func drain(t *testing.T, r *Runner, bridge *browser.Bridge) []browser.Event {
	t.Helper()
	r.Wait()
	bridge.Close()

	var out []browser.Event
	for {
		ev, ok := bridge.Recv(context.Background())
		if !ok {
			return out
		}
		out = append(out, ev)
	}
}

func logTexts(events []browser.Event) []string {
	var out []string
	for _, ev := range events {
		if m, ok := ev.(browser.LogMessage); ok {
			out = append(out, m.Text)
		}
	}
	return out
}

func indexOf(t *testing.T, events []browser.Event, match func(browser.Event) bool) int {
	t.Helper()
	for i, ev := range events {
		if match(ev) {
			return i
		}
	}
	t.Fatalf("event not found in %v", events)
	return -1
}

func TestRunner_Spawn_SuccessEvents(t *testing.T) {
	bridge := browser.NewBridge()
	f := &fakeFetcher{favicon: []byte{1, 2}, page: "hello"}
	r := NewRunner(f, bridge, noDelay)
	id := session.NewID()

	r.Spawn(id, "http://example.com")
	events := drain(t, r, bridge)

	require.Len(t, events, 4)
	require.Contains(t, events, browser.Event(browser.FaviconLoaded{ID: id, Data: []byte{1, 2}}))
	require.Contains(t, events, browser.Event(browser.PageLoaded{ID: id, Text: "hello"}))
	require.ElementsMatch(t, []string{
		fmt.Sprintf("[%s] Loading favicon", id),
		fmt.Sprintf("[%s] Loading URL: http://example.com", id),
	}, logTexts(events))
	require.Equal(t, []string{"http://example.com"}, f.favURLs)
}

func TestRunner_StartedMessagePrecedesTerminalEvent(t *testing.T) {
	for range 20 {
		bridge := browser.NewBridge()
		r := NewRunner(&fakeFetcher{favicon: []byte{1}, page: "p"}, bridge, noDelay)
		id := session.NewID()

		r.Spawn(id, "http://a")
		events := drain(t, r, bridge)

		favStarted := indexOf(t, events, func(ev browser.Event) bool {
			m, ok := ev.(browser.LogMessage)
			return ok && strings.HasSuffix(m.Text, "Loading favicon")
		})
		favDone := indexOf(t, events, func(ev browser.Event) bool {
			_, ok := ev.(browser.FaviconLoaded)
			return ok
		})
		pageStarted := indexOf(t, events, func(ev browser.Event) bool {
			m, ok := ev.(browser.LogMessage)
			return ok && strings.Contains(m.Text, "Loading URL")
		})
		pageDone := indexOf(t, events, func(ev browser.Event) bool {
			_, ok := ev.(browser.PageLoaded)
			return ok
		})

		require.Less(t, favStarted, favDone)
		require.Less(t, pageStarted, pageDone)
	}
}

func TestRunner_FaviconFailureSendsEmptyPayload(t *testing.T) {
	bridge := browser.NewBridge()
	r := NewRunner(&fakeFetcher{favicon: []byte{}, page: "x"}, bridge, noDelay)
	id := session.NewID()

	r.Spawn(id, "http://a")
	events := drain(t, r, bridge)

	i := indexOf(t, events, func(ev browser.Event) bool {
		_, ok := ev.(browser.FaviconLoaded)
		return ok
	})
	fav := events[i].(browser.FaviconLoaded)
	require.Equal(t, id, fav.ID)
	require.Empty(t, fav.Data)
}

func TestRunner_PageTransportErrorIsLogOnly(t *testing.T) {
	bridge := browser.NewBridge()
	r := NewRunner(&fakeFetcher{pageErr: errors.New("connection refused")}, bridge, noDelay)
	id := session.NewID()

	r.Spawn(id, "http://a")
	events := drain(t, r, bridge)

	for _, ev := range events {
		_, isPage := ev.(browser.PageLoaded)
		require.False(t, isPage)
	}
	require.Contains(t, logTexts(events), fmt.Sprintf("[%s] Failed to load URL: connection refused", id))
}

func TestRunner_PageNotTextIsLogOnly(t *testing.T) {
	bridge := browser.NewBridge()
	notText := fmt.Errorf("decoding: %w", fetch.ErrNotText)
	r := NewRunner(&fakeFetcher{pageErr: notText}, bridge, noDelay)
	id := session.NewID()

	r.Spawn(id, "http://a")
	events := drain(t, r, bridge)

	require.Contains(t, logTexts(events), fmt.Sprintf("[%s] URL returned non-text content", id))
	for _, ev := range events {
		_, isPage := ev.(browser.PageLoaded)
		require.False(t, isPage)
	}
}

func TestRunner_PanicBecomesLogMessage(t *testing.T) {
	bridge := browser.NewBridge()
	r := NewRunner(&fakeFetcher{favicon: []byte{1}, panicMsg: "kaboom"}, bridge, noDelay)
	id := session.NewID()

	require.NotPanics(t, func() {
		r.Spawn(id, "http://a")
		r.Wait()
	})
	events := drain(t, r, bridge)

	found := false
	for _, text := range logTexts(events) {
		if strings.Contains(text, "crashed: kaboom") {
			found = true
		}
	}
	require.True(t, found, "expected crash message in %v", logTexts(events))
	require.Contains(t, events, browser.Event(browser.FaviconLoaded{ID: id, Data: []byte{1}}))
}

func TestRunner_DelaysAreHonoured(t *testing.T) {
	bridge := browser.NewBridge()
	r := NewRunner(&fakeFetcher{favicon: []byte{1}, page: "p"}, bridge,
		WithSettings(Settings{FaviconDelay: 30 * time.Millisecond, PageDelay: 60 * time.Millisecond}))

	start := time.Now()
	r.Spawn(session.NewID(), "http://a")
	r.Wait()
	require.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestRunner_CloseCancelsDelays(t *testing.T) {
	bridge := browser.NewBridge()
	r := NewRunner(&fakeFetcher{favicon: []byte{1}, page: "p"}, bridge,
		WithSettings(Settings{FaviconDelay: time.Hour, PageDelay: time.Hour}))
	id := session.NewID()

	r.Spawn(id, "http://a")

	done := make(chan struct{})
	go func() {
		r.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not cancel delayed jobs")
	}

	events := drain(t, r, bridge)
	// The favicon job still reports exactly one terminal event.
	require.Contains(t, events, browser.Event(browser.FaviconLoaded{ID: id, Data: []byte{}}))
}

func TestRunner_SpawnAfterCloseIgnored(t *testing.T) {
	bridge := browser.NewBridge()
	f := &fakeFetcher{favicon: []byte{1}}
	r := NewRunner(f, bridge, noDelay)

	r.Close()
	r.Spawn(session.NewID(), "http://a")
	r.Wait()

	require.Equal(t, 0, bridge.Len())
	require.Empty(t, f.favURLs)
}

func TestRunner_ClosedBridgeDoesNotBreakJobs(t *testing.T) {
	bridge := browser.NewBridge()
	bridge.Close()
	r := NewRunner(&fakeFetcher{favicon: []byte{1}, page: "p"}, bridge, noDelay)

	require.NotPanics(t, func() {
		r.Spawn(session.NewID(), "http://a")
		r.Wait()
	})
}

func TestRunner_Configure(t *testing.T) {
	r := NewRunner(&fakeFetcher{}, browser.NewBridge())
	require.Equal(t, DefaultSettings(), r.Settings())

	r.Configure(Settings{FaviconDelay: time.Second})
	require.Equal(t, Settings{FaviconDelay: time.Second}, r.Settings())
}

func TestRunner_RecordsSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	bridge := browser.NewBridge()
	r := NewRunner(&fakeFetcher{favicon: []byte{}, page: "hello"}, bridge, noDelay, WithTracer(tp.Tracer("test")))
	id := session.NewID()

	r.Spawn(id, "http://a")
	r.Wait()

	outcomes := map[string]attribute.KeyValue{}
	for _, span := range rec.Ended() {
		require.Contains(t, span.Attributes(), attribute.String(tracing.AttrSessionID, id.String()))
		for _, kv := range span.Attributes() {
			if kv.Key == tracing.AttrOutcome {
				outcomes[span.Name()] = kv
			}
		}
	}
	require.Equal(t, tracing.OutcomeFailed, outcomes[tracing.SpanJobFavicon].Value.AsString())
	require.Equal(t, tracing.OutcomeLoaded, outcomes[tracing.SpanJobPage].Value.AsString())
}

func TestRunner_WithHTTPClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/favicon.ico":
			_, _ = w.Write([]byte{0xAA, 0xBB})
		default:
			_, _ = w.Write([]byte("<html>ok</html>"))
		}
	}))
	defer srv.Close()

	bridge := browser.NewBridge()
	r := NewRunner(fetch.NewClient(fetch.Options{}), bridge, noDelay)
	id := session.NewID()

	r.Spawn(id, srv.URL)
	events := drain(t, r, bridge)

	require.Contains(t, events, browser.Event(browser.FaviconLoaded{ID: id, Data: []byte{0xAA, 0xBB}}))
	require.Contains(t, events, browser.Event(browser.PageLoaded{ID: id, Text: "<html>ok</html>"}))
}
