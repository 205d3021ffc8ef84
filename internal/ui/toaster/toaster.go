// Package toaster shows short-lived notifications over the tab view.
package toaster

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/zjrosen/tabfetch/internal/ui/styles"
)

// DefaultDuration is how long a toast stays up.
const DefaultDuration = 3 * time.Second

// Kind determines the visual appearance of the toast.
type Kind int

const (
	KindSuccess Kind = iota
	KindError
	KindInfo
)

// Model holds the toaster state.
type Model struct {
	message string
	kind    Kind
	seq     int
	visible bool
}

// New creates a hidden toaster.
func New() Model {
	return Model{}
}

// DismissMsg hides the toast it was scheduled for. A newer toast is left
// alone.
type DismissMsg struct {
	Seq int
}

// Show displays message and returns the command that dismisses it after d.
func (m Model) Show(message string, kind Kind, d time.Duration) (Model, tea.Cmd) {
	m.seq++
	m.message = message
	m.kind = kind
	m.visible = true

	seq := m.seq
	return m, tea.Tick(d, func(time.Time) tea.Msg {
		return DismissMsg{Seq: seq}
	})
}

// Update handles DismissMsg.
func (m Model) Update(msg DismissMsg) Model {
	if msg.Seq == m.seq {
		m.visible = false
		m.message = ""
	}
	return m
}

// Visible returns whether the toast is currently showing.
func (m Model) Visible() bool {
	return m.visible
}

// View renders the toast box.
func (m Model) View() string {
	if !m.visible || m.message == "" {
		return ""
	}

	style := lipgloss.NewStyle().
		Padding(0, 1).
		Border(lipgloss.RoundedBorder())

	var glyph string
	switch m.kind {
	case KindError:
		style = style.BorderForeground(styles.StatusErrorColor)
		glyph = "✗"
	case KindInfo:
		style = style.BorderForeground(styles.StatusInfoColor)
		glyph = "i"
	default:
		style = style.BorderForeground(styles.StatusSuccessColor)
		glyph = "✓"
	}
	return style.Render(glyph + " " + m.message)
}

// Overlay draws the toast in the top-right corner of bg, top rows below
// the first. bg is returned unchanged when no toast is showing.
func (m Model) Overlay(bg string, width, top int) string {
	fg := m.View()
	if fg == "" {
		return bg
	}
	x := max(width-lipgloss.Width(fg)-1, 0)
	return place(fg, bg, x, top)
}

// place writes fg over bg with its top-left corner at (x, y), keeping the
// styling on both sides of the cut.
func place(fg, bg string, x, y int) string {
	bgLines := strings.Split(bg, "\n")
	for i, fgLine := range strings.Split(fg, "\n") {
		row := y + i
		if row >= len(bgLines) {
			break
		}

		line := bgLines[row]
		left := ansi.Truncate(line, x, "")
		if w := ansi.StringWidth(left); w < x {
			left += strings.Repeat(" ", x-w)
		}

		var right string
		if end := x + ansi.StringWidth(fgLine); end < ansi.StringWidth(line) {
			right = ansi.TruncateLeft(line, end, "")
		}
		bgLines[row] = left + fgLine + right
	}
	return strings.Join(bgLines, "\n")
}
