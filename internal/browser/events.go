// Package browser holds the event loop that owns the session registry and
// every UI mutation. Fetch jobs on worker goroutines send Events over the
// Bridge; the loop consumes them one at a time on the UI goroutine.
package browser

import (
	"github.com/zjrosen/tabfetch/internal/pubsub"
	"github.com/zjrosen/tabfetch/internal/session"
)

// Event is one message on the bridge. The set of variants is closed.
type Event interface {
	isEvent()
}

// FaviconLoaded carries the result of a favicon fetch. Empty Data means the
// fetch failed.
type FaviconLoaded struct {
	ID   session.ID
	Data []byte
}

// PageLoaded carries the decoded body of a page fetch.
type PageLoaded struct {
	ID   session.ID
	Text string
}

// LogMessage is a status line with no session attached.
type LogMessage struct {
	Text string
}

// SessionOpenRequested asks the loop to open a tab for URL under ID.
type SessionOpenRequested struct {
	ID  session.ID
	URL string
}

// SessionCloseRequested asks the loop to close the tab for ID.
type SessionCloseRequested struct {
	ID session.ID
}

// SessionReloadRequested asks the loop to fetch ID's URL again.
type SessionReloadRequested struct {
	ID session.ID
}

func (FaviconLoaded) isEvent()          {}
func (PageLoaded) isEvent()             {}
func (LogMessage) isEvent()             {}
func (SessionOpenRequested) isEvent()   {}
func (SessionCloseRequested) isEvent()  {}
func (SessionReloadRequested) isEvent() {}

// Bridge is the many-producer, single-consumer channel into the loop.
type Bridge = pubsub.Queue[Event]

// NewBridge creates an empty, open bridge.
func NewBridge() *Bridge {
	return pubsub.NewQueue[Event]()
}
