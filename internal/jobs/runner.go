// Package jobs runs the fetch jobs for a session on worker goroutines and
// reports their results over the bridge.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/tabfetch/internal/browser"
	"github.com/zjrosen/tabfetch/internal/fetch"
	"github.com/zjrosen/tabfetch/internal/log"
	"github.com/zjrosen/tabfetch/internal/pubsub"
	"github.com/zjrosen/tabfetch/internal/session"
	"github.com/zjrosen/tabfetch/internal/tracing"
)

const (
	DefaultFaviconDelay = 2 * time.Second
	DefaultPageDelay    = 4 * time.Second
)

// Fetcher is the network collaborator. *fetch.Client implements it.
type Fetcher interface {
	FetchFavicon(ctx context.Context, base string) []byte
	FetchPage(ctx context.Context, url string) (string, error)
}

// Settings are the tunables that may change while jobs run.
type Settings struct {
	// FaviconDelay and PageDelay are waited before each fetch. Zero
	// disables the wait.
	FaviconDelay time.Duration
	PageDelay    time.Duration
}

// DefaultSettings returns the standard delays.
func DefaultSettings() Settings {
	return Settings{FaviconDelay: DefaultFaviconDelay, PageDelay: DefaultPageDelay}
}

// Runner spawns fetch jobs. It implements browser.Spawner.
//
// Jobs are never cancelled when their session closes; results for closed
// sessions are dropped by the loop. Close cancels everything and is meant
// for process shutdown.
type Runner struct {
	fetcher  Fetcher
	events   pubsub.Sender[browser.Event]
	tracer   trace.Tracer
	settings atomic.Pointer[Settings]

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     conc.WaitGroup
}

var _ browser.Spawner = (*Runner)(nil)

// Option configures a Runner.
type Option func(*Runner)

// WithTracer records a span per job.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Runner) {
		if tracer != nil {
			r.tracer = tracer
		}
	}
}

// WithSettings overrides DefaultSettings.
func WithSettings(s Settings) Option {
	return func(r *Runner) {
		r.settings.Store(&s)
	}
}

// NewRunner creates a Runner that sends results to events.
func NewRunner(fetcher Fetcher, events pubsub.Sender[browser.Event], opts ...Option) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		fetcher: fetcher,
		events:  events,
		tracer:  noop.NewTracerProvider().Tracer("noop"),
		ctx:     ctx,
		cancel:  cancel,
	}
	defaults := DefaultSettings()
	r.settings.Store(&defaults)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Configure replaces the settings used by jobs started afterwards.
func (r *Runner) Configure(s Settings) {
	r.settings.Store(&s)
	log.Info(log.CatJob, "Job settings updated",
		"favicon_delay", s.FaviconDelay,
		"page_delay", s.PageDelay)
}

// Settings returns the current settings.
func (r *Runner) Settings() Settings {
	return *r.settings.Load()
}

// Spawn starts the favicon job and the page job for id. Neither waits on the
// other.
func (r *Runner) Spawn(id session.ID, url string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		log.Warn(log.CatJob, "Spawn after close ignored", "session", id)
		return
	}

	settings := r.Settings()
	r.wg.Go(func() { r.run(id, url, tracing.SpanJobFavicon, settings.FaviconDelay, r.faviconJob) })
	r.wg.Go(func() { r.run(id, url, tracing.SpanJobPage, settings.PageDelay, r.pageJob) })
}

// Wait blocks until every spawned job has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Close cancels in-flight jobs and waits for them. Further Spawn calls are
// ignored.
func (r *Runner) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
}

type jobFunc func(ctx context.Context, span trace.Span, id session.ID, url string, delay time.Duration) string

// run executes job inside a span and converts a panic into a status line.
func (r *Runner) run(id session.ID, url, spanName string, delay time.Duration, job jobFunc) {
	ctx, span := tracing.StartJob(r.ctx, r.tracer, spanName, id.String(), url)

	var outcome string
	var pc panics.Catcher
	pc.Try(func() {
		outcome = job(ctx, span, id, url, delay)
	})

	if rec := pc.Recovered(); rec != nil {
		log.Error(log.CatJob, "Job panicked",
			"job", spanName,
			"session", id,
			"panic", rec.Value,
			"stack", string(rec.Stack))
		r.send(LogMessagef(id, "%s crashed: %v", spanName, rec.Value))
		tracing.EndJob(span, tracing.OutcomePanicked, rec.AsError())
		return
	}

	tracing.EndJob(span, outcome, nil)
}

func (r *Runner) faviconJob(ctx context.Context, span trace.Span, id session.ID, url string, delay time.Duration) string {
	r.send(LogMessagef(id, "Loading favicon"))
	r.sleep(ctx, span, delay)

	data := r.fetcher.FetchFavicon(ctx, url)
	span.SetAttributes(attribute.Int(tracing.AttrBytes, len(data)))
	r.send(browser.FaviconLoaded{ID: id, Data: data})

	if len(data) == 0 {
		return tracing.OutcomeFailed
	}
	return tracing.OutcomeLoaded
}

func (r *Runner) pageJob(ctx context.Context, span trace.Span, id session.ID, url string, delay time.Duration) string {
	r.send(LogMessagef(id, "Loading URL: %s", url))
	r.sleep(ctx, span, delay)

	text, err := r.fetcher.FetchPage(ctx, url)
	switch {
	case errors.Is(err, fetch.ErrNotText):
		log.Warn(log.CatJob, "Page is not text", "session", id, "url", url)
		r.send(LogMessagef(id, "URL returned non-text content"))
		return tracing.OutcomeNotText
	case err != nil:
		log.Debug(log.CatJob, "Page fetch failed", "session", id, "url", url, "error", err)
		r.send(LogMessagef(id, "Failed to load URL: %v", err))
		if ctx.Err() != nil {
			return tracing.OutcomeCancelled
		}
		return tracing.OutcomeFailed
	}

	span.SetAttributes(attribute.Int(tracing.AttrBytes, len(text)))
	r.send(browser.PageLoaded{ID: id, Text: text})
	return tracing.OutcomeLoaded
}

// sleep waits for delay or until ctx is done.
func (r *Runner) sleep(ctx context.Context, span trace.Span, delay time.Duration) {
	if delay <= 0 {
		return
	}
	span.SetAttributes(attribute.Int64(tracing.AttrDelayMs, delay.Milliseconds()))

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		span.AddEvent(tracing.EventDelayElapsed)
	case <-ctx.Done():
	}
}

func (r *Runner) send(ev browser.Event) {
	if err := r.events.Send(ev); err != nil {
		log.Debug(log.CatBridge, "Event not delivered", "type", fmt.Sprintf("%T", ev), "error", err)
	}
}

// LogMessagef builds a status line prefixed with the session id.
func LogMessagef(id session.ID, format string, args ...any) browser.LogMessage {
	return browser.LogMessage{Text: fmt.Sprintf("[%s] ", id) + fmt.Sprintf(format, args...)}
}
