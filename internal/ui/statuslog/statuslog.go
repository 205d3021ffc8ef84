// Package statuslog renders the status line history shown under the tabs,
// and optionally the buffered debug log.
package statuslog

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/zjrosen/tabfetch/internal/log"
	"github.com/zjrosen/tabfetch/internal/ui/styles"
)

const (
	// SeedLine is the first status line.
	SeedLine = "Ready for action..."

	DefaultMaxLines = 200
)

// Source selects what the panel shows.
type Source int

const (
	SourceStatus Source = iota
	SourceDebug
)

// Model is the status log state. Methods with pointer receivers mutate it
// and must be called from the Update goroutine.
type Model struct {
	lines    []string
	maxLines int

	visible  bool
	source   Source
	minLevel log.Level

	width    int
	height   int
	viewport viewport.Model
}

// New returns a visible log seeded with SeedLine that keeps at most maxLines
// lines.
func New(maxLines int) Model {
	if maxLines <= 0 {
		maxLines = DefaultMaxLines
	}
	return Model{
		lines:    []string{SeedLine},
		maxLines: maxLines,
		visible:  true,
		minLevel: log.LevelDebug,
	}
}

// Append adds a status line, dropping the oldest past the cap. The view
// follows the tail unless the user has scrolled up.
func (m *Model) Append(text string) {
	follow := m.viewport.AtBottom()

	m.lines = append(m.lines, strings.TrimRight(text, "\n"))
	if over := len(m.lines) - m.maxLines; over > 0 {
		m.lines = append(m.lines[:0], m.lines[over:]...)
	}

	if m.source == SourceStatus {
		m.refresh(follow)
	}
}

// Lines returns a copy of the status lines, oldest first.
func (m Model) Lines() []string {
	out := make([]string, len(m.lines))
	copy(out, m.lines)
	return out
}

// Last returns the most recent status line.
func (m Model) Last() string {
	if len(m.lines) == 0 {
		return ""
	}
	return m.lines[len(m.lines)-1]
}

// SetMaxLines changes the cap, trimming if needed.
func (m *Model) SetMaxLines(n int) {
	if n <= 0 {
		n = DefaultMaxLines
	}
	m.maxLines = n
	if over := len(m.lines) - n; over > 0 {
		m.lines = append(m.lines[:0], m.lines[over:]...)
	}
	m.refresh(true)
}

// SetSize sets the outer panel size including its border.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport = viewport.New(max(width-2, 1), max(height-2, 1))
	m.refresh(true)
}

// Visible reports whether the panel is shown.
func (m Model) Visible() bool {
	return m.visible
}

// SetVisible shows or hides the panel.
func (m *Model) SetVisible(visible bool) {
	m.visible = visible
}

// Toggle flips visibility.
func (m *Model) Toggle() {
	m.visible = !m.visible
	if m.visible {
		m.refresh(true)
	}
}

// Source returns the active source.
func (m Model) Source() Source {
	return m.source
}

// ToggleDebug switches between status lines and the debug log.
func (m *Model) ToggleDebug() {
	if m.source == SourceStatus {
		m.source = SourceDebug
	} else {
		m.source = SourceStatus
	}
	m.refresh(true)
}

// RefreshDebug reloads debug entries; a no-op while showing status lines.
func (m *Model) RefreshDebug() {
	if m.source == SourceDebug {
		m.refresh(m.viewport.AtBottom())
	}
}

// Update handles keys for the debug view: level filters and scrolling.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.visible || m.source != SourceDebug {
		return m, nil
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch keyMsg.String() {
	case "c":
		log.ClearBuffer()
	case "d":
		m.minLevel = log.LevelDebug
	case "i":
		m.minLevel = log.LevelInfo
	case "w":
		m.minLevel = log.LevelWarn
	case "e":
		m.minLevel = log.LevelError
	case "j", "down":
		m.viewport.ScrollDown(1)
		return m, nil
	case "k", "up":
		m.viewport.ScrollUp(1)
		return m, nil
	case "g":
		m.viewport.GotoTop()
		return m, nil
	case "G":
		m.viewport.GotoBottom()
		return m, nil
	default:
		return m, nil
	}
	m.refresh(true)
	return m, nil
}

// View renders the panel, or "" when hidden.
func (m Model) View() string {
	if !m.visible || m.width <= 0 || m.height <= 0 {
		return ""
	}
	title := "Status"
	if m.source == SourceDebug {
		title = "Debug log (" + m.minLevel.String() + "+)  c clear  d/i/w/e level"
	}
	return styles.RenderPanel(m.viewport.View(), title, m.width, m.height, false)
}

func (m *Model) refresh(follow bool) {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	m.viewport.SetContent(m.content())
	if follow {
		m.viewport.GotoBottom()
	}
}

func (m Model) content() string {
	width := max(m.width-2, 1)
	if m.source == SourceStatus {
		out := make([]string, len(m.lines))
		for i, line := range m.lines {
			out[i] = ansi.Truncate(line, width, "…")
		}
		return strings.Join(out, "\n")
	}

	entries := log.Entries(m.minLevel)
	if len(entries) == 0 {
		return lipgloss.NewStyle().Foreground(styles.TextMutedColor).Italic(true).Render("No logs to display")
	}
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = colorize(e, width)
	}
	return strings.Join(out, "\n")
}

func colorize(e log.Entry, width int) string {
	line := ansi.Truncate(e.Line, width, "…")

	var color lipgloss.TerminalColor
	switch e.Level {
	case log.LevelError:
		color = styles.StatusErrorColor
	case log.LevelWarn:
		color = styles.StatusWarningColor
	case log.LevelInfo:
		color = styles.StatusInfoColor
	default:
		color = styles.TextMutedColor
	}
	return lipgloss.NewStyle().Foreground(color).Render(line)
}
