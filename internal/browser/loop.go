package browser

import (
	"bytes"
	"context"
	"fmt"

	"github.com/zjrosen/tabfetch/internal/log"
	"github.com/zjrosen/tabfetch/internal/session"
)

// Loop applies bridge events to the registry and the presenter. It is not
// safe for concurrent use: exactly one goroutine may call Handle or Run.
type Loop struct {
	registry  *session.Registry
	presenter Presenter
	spawner   Spawner
}

// NewLoop creates a Loop over the given collaborators.
func NewLoop(registry *session.Registry, presenter Presenter, spawner Spawner) *Loop {
	return &Loop{
		registry:  registry,
		presenter: presenter,
		spawner:   spawner,
	}
}

// Registry returns the registry the loop writes to.
func (l *Loop) Registry() *session.Registry {
	return l.registry
}

// Run handles events from bridge until it is closed and drained (returning
// nil) or ctx is cancelled (returning ctx.Err()).
func (l *Loop) Run(ctx context.Context, bridge *Bridge) error {
	for {
		ev, ok := bridge.Recv(ctx)
		if !ok {
			if err := ctx.Err(); err != nil {
				return err
			}
			log.Debug(log.CatBridge, "Bridge drained")
			return nil
		}
		l.Handle(ev)
	}
}

// Handle applies a single event.
func (l *Loop) Handle(ev Event) {
	switch e := ev.(type) {
	case SessionOpenRequested:
		l.open(e)
	case FaviconLoaded:
		l.faviconLoaded(e)
	case PageLoaded:
		l.pageLoaded(e)
	case LogMessage:
		l.presenter.AppendLogLine(e.Text)
	case SessionCloseRequested:
		l.close(e)
	case SessionReloadRequested:
		l.reload(e)
	default:
		log.Warn(log.CatLoop, "Unhandled event", "type", fmt.Sprintf("%T", ev))
	}
}

func (l *Loop) status(id session.ID, format string, args ...any) {
	text := fmt.Sprintf("[%s] ", id) + fmt.Sprintf(format, args...)
	log.Info(log.CatLoop, text)
	l.presenter.AppendLogLine(text)
}

func (l *Loop) open(e SessionOpenRequested) {
	if _, exists := l.registry.Lookup(e.ID); exists {
		l.status(e.ID, "Tab already open")
		return
	}

	info := session.NewInfo(e.ID, e.URL)
	pos := l.presenter.CreateTab(session.NoPosition, labelFor(info), placeholder(e.URL))
	if !l.registry.Create(info, pos) {
		// Only the loop writes the registry, so this means a bug elsewhere.
		log.Error(log.CatLoop, "Session appeared during open", "session", e.ID)
		l.presenter.RemoveTab(pos)
		return
	}

	l.status(e.ID, "Opened new tab to load: %s", e.URL)
	l.spawner.Spawn(e.ID, e.URL)
}

func (l *Loop) faviconLoaded(e FaviconLoaded) {
	info, ok := l.registry.Lookup(e.ID)
	if !ok {
		log.Debug(log.CatLoop, "Dropping favicon for closed session", "session", e.ID)
		return
	}

	if len(e.Data) == 0 {
		l.status(e.ID, "Favicon failed to load")
	} else {
		info.Favicon = bytes.Clone(e.Data)
		l.status(e.ID, "Favicon loaded (%d bytes)", len(e.Data))
	}
	info.FaviconDone = true
	l.registry.Update(e.ID, info)

	l.refreshLabel(e.ID)
}

func (l *Loop) pageLoaded(e PageLoaded) {
	info, ok := l.registry.Lookup(e.ID)
	if !ok {
		log.Debug(log.CatLoop, "Dropping page for closed session", "session", e.ID)
		return
	}

	l.status(e.ID, "URL loaded (%d bytes)", len(e.Text))
	info.Content = e.Text
	info.PageDone = true
	l.registry.Update(e.ID, info)

	pos := l.refreshLabel(e.ID)
	newPos := l.presenter.ReplaceTabContent(pos, Content{URL: info.URL, Text: e.Text})
	l.registry.SetPosition(e.ID, newPos)
}

// refreshLabel re-reads the session and redraws its tab header, returning
// the tab's position.
func (l *Loop) refreshLabel(id session.ID) int {
	info, _ := l.registry.Lookup(id)
	pos, _ := l.registry.PositionOf(id)
	l.presenter.SetTabLabel(pos, labelFor(info))
	return pos
}

func (l *Loop) close(e SessionCloseRequested) {
	pos, ok := l.registry.PositionOf(e.ID)
	if !ok {
		log.Debug(log.CatLoop, "Close for unknown session", "session", e.ID)
		return
	}

	l.presenter.RemoveTab(pos)
	l.registry.Remove(e.ID)
	l.status(e.ID, "Tab closed")
}

func (l *Loop) reload(e SessionReloadRequested) {
	info, ok := l.registry.Lookup(e.ID)
	if !ok {
		log.Debug(log.CatLoop, "Reload for unknown session", "session", e.ID)
		return
	}
	pos, _ := l.registry.PositionOf(e.ID)

	fresh := session.NewInfo(e.ID, info.URL)
	l.registry.Put(fresh, pos)
	l.presenter.SetTabLabel(pos, labelFor(fresh))
	l.registry.SetPosition(e.ID, l.presenter.ReplaceTabContent(pos, placeholder(info.URL)))

	l.status(e.ID, "Reloading: %s", info.URL)
	l.spawner.Spawn(e.ID, info.URL)
}
