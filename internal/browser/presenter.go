package browser

import "github.com/zjrosen/tabfetch/internal/session"

// Label is what a tab header shows.
type Label struct {
	Title string
	// Icon holds raw favicon bytes; empty means no icon.
	Icon    []byte
	Loading bool
}

// Content is what a tab body shows.
type Content struct {
	URL  string
	Text string
}

// Presenter is the UI surface the loop drives. Implementations are called
// only from the loop's goroutine.
type Presenter interface {
	// CreateTab inserts a tab at hint (appending when hint < 0) and returns
	// its position.
	CreateTab(hint int, label Label, content Content) int
	// ReplaceTabContent swaps the body of the tab at pos. The returned
	// position is authoritative and may differ from pos.
	ReplaceTabContent(pos int, content Content) int
	SetTabLabel(pos int, label Label)
	// RemoveTab deletes the tab at pos; later tabs shift down by one.
	RemoveTab(pos int)
	AppendLogLine(text string)
}

// Spawner starts the fetch jobs for a session.
type Spawner interface {
	Spawn(id session.ID, url string)
}

// PlaceholderText is shown in a tab until its page arrives.
func PlaceholderText(url string) string {
	return "This page contains " + url
}

func placeholder(url string) Content {
	return Content{URL: url, Text: PlaceholderText(url)}
}

func labelFor(info session.Info) Label {
	return Label{
		Title:   info.Title,
		Icon:    info.Favicon,
		Loading: info.State() == session.StateLoading,
	}
}
