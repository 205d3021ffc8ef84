// Package session defines tab session identity and per-session state, and the
// Registry that correlates a session with its position in the tab container.
package session

import (
	"bytes"

	"github.com/google/uuid"
)

// ID uniquely identifies a session (one browser tab).
// It is a random 128-bit UUID in its canonical string form and is never
// reused.
type ID string

// NewID generates a new unique ID using UUID v4.
func NewID() ID {
	return ID(uuid.New().String())
}

// String returns the string representation of the ID.
func (id ID) String() string {
	return string(id)
}

// Short returns the first UUID group, used in status lines.
func (id ID) Short() string {
	if len(id) >= 8 {
		return string(id[:8])
	}
	return string(id)
}

// IsValid returns true if the ID is a valid UUID.
func (id ID) IsValid() bool {
	if id == "" {
		return false
	}
	_, err := uuid.Parse(string(id))
	return err == nil
}

// NoPosition is returned where a position is requested for a session that
// has none.
const NoPosition = -1

// State is the derived load state of a session.
type State string

const (
	StateLoading         State = "loading"
	StatePartiallyLoaded State = "partially_loaded"
	StateLoaded          State = "loaded"
)

// Info is the per-session record. The registry hands out copies; writing a
// copy back with Registry.Update is the only way to change it.
type Info struct {
	ID  ID
	URL string
	// Title defaults to URL.
	Title   string
	Favicon []byte
	// Content is the fetched page text.
	Content string

	PageDone    bool
	FaviconDone bool
}

// NewInfo returns the record for a freshly opened session.
func NewInfo(id ID, url string) Info {
	return Info{
		ID:    id,
		URL:   url,
		Title: url,
	}
}

// Clone returns a deep copy.
func (i Info) Clone() Info {
	out := i
	if i.Favicon != nil {
		out.Favicon = bytes.Clone(i.Favicon)
	}
	return out
}

// HasFavicon reports whether favicon bytes are stored.
func (i Info) HasFavicon() bool {
	return len(i.Favicon) > 0
}

// State derives the load state from which terminal events have arrived.
func (i Info) State() State {
	switch {
	case i.PageDone:
		return StateLoaded
	case i.FaviconDone:
		return StatePartiallyLoaded
	default:
		return StateLoading
	}
}
