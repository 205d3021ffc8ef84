// Package tabs is the tab strip and content pane. Its Model implements the
// tab half of browser.Presenter and must only be touched from the Bubble Tea
// Update goroutine.
package tabs

import (
	"bytes"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"

	"github.com/zjrosen/tabfetch/internal/browser"
	"github.com/zjrosen/tabfetch/internal/log"
	"github.com/zjrosen/tabfetch/internal/ui/markdown"
	"github.com/zjrosen/tabfetch/internal/ui/styles"
)

type tab struct {
	label   browser.Label
	content browser.Content
	icon    string // rendered icon cell, cached per label.Icon

	rendered      string
	renderedWidth int
}

// Model holds the open tabs in display order.
type Model struct {
	tabs   []*tab
	active int

	width  int
	height int

	spinner  spinner.Model
	ticking  bool
	viewport viewport.Model

	markdownStyle string
	md            *markdown.Renderer

	zonePrefix string
}

// New creates an empty tab container. markdownStyle is a glamour style name
// used for markdown pages.
func New(markdownStyle string) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = lipgloss.NewStyle().Foreground(styles.SpinnerColor)

	return &Model{
		spinner:       sp,
		markdownStyle: markdownStyle,
		zonePrefix:    zone.NewPrefix(),
	}
}

// Len returns the number of open tabs.
func (m *Model) Len() int {
	return len(m.tabs)
}

// Active returns the active tab position, or -1 when there are no tabs.
func (m *Model) Active() int {
	if len(m.tabs) == 0 {
		return -1
	}
	return m.active
}

// SetActive focuses the tab at pos.
func (m *Model) SetActive(pos int) {
	if pos < 0 || pos >= len(m.tabs) || pos == m.active {
		return
	}
	m.active = pos
	m.syncViewport(true)
}

// Next focuses the tab after the active one, wrapping around.
func (m *Model) Next() {
	if len(m.tabs) > 1 {
		m.SetActive((m.active + 1) % len(m.tabs))
	}
}

// Prev focuses the tab before the active one, wrapping around.
func (m *Model) Prev() {
	if len(m.tabs) > 1 {
		m.SetActive((m.active - 1 + len(m.tabs)) % len(m.tabs))
	}
}

// LabelAt returns the label of the tab at pos.
func (m *Model) LabelAt(pos int) (browser.Label, bool) {
	if !m.valid(pos) {
		return browser.Label{}, false
	}
	return m.tabs[pos].label, true
}

// ContentAt returns the content of the tab at pos.
func (m *Model) ContentAt(pos int) (browser.Content, bool) {
	if !m.valid(pos) {
		return browser.Content{}, false
	}
	return m.tabs[pos].content, true
}

// SetSize sets the area available to the strip and the content pane.
func (m *Model) SetSize(width, height int) {
	if width == m.width && height == m.height {
		return
	}
	m.width = width
	m.height = height

	innerW, innerH := m.innerSize()
	m.viewport = viewport.New(innerW, innerH)
	if m.md != nil && m.md.Width() != innerW {
		m.md = nil
	}
	m.syncViewport(true)
}

// CreateTab inserts a tab at hint, or appends when hint is out of range,
// and focuses it.
func (m *Model) CreateTab(hint int, label browser.Label, content browser.Content) int {
	t := &tab{content: content}
	m.applyLabel(t, label)

	pos := hint
	if hint < 0 || hint > len(m.tabs) {
		pos = len(m.tabs)
		m.tabs = append(m.tabs, t)
	} else {
		m.tabs = append(m.tabs[:hint], append([]*tab{t}, m.tabs[hint:]...)...)
	}

	m.active = pos
	m.syncViewport(true)
	return pos
}

// ReplaceTabContent swaps the content of the tab at pos in place.
func (m *Model) ReplaceTabContent(pos int, content browser.Content) int {
	if !m.valid(pos) {
		log.Warn(log.CatUI, "Replace content at invalid position", "pos", pos, "tabs", len(m.tabs))
		return pos
	}
	t := m.tabs[pos]
	t.content = content
	t.rendered = ""
	if pos == m.active {
		m.syncViewport(true)
	}
	return pos
}

// SetTabLabel redraws the header of the tab at pos.
func (m *Model) SetTabLabel(pos int, label browser.Label) {
	if !m.valid(pos) {
		log.Warn(log.CatUI, "Set label at invalid position", "pos", pos, "tabs", len(m.tabs))
		return
	}
	m.applyLabel(m.tabs[pos], label)
}

// RemoveTab deletes the tab at pos. Later tabs shift down by one.
func (m *Model) RemoveTab(pos int) {
	if !m.valid(pos) {
		log.Warn(log.CatUI, "Remove at invalid position", "pos", pos, "tabs", len(m.tabs))
		return
	}
	m.tabs = append(m.tabs[:pos], m.tabs[pos+1:]...)

	switch {
	case len(m.tabs) == 0:
		m.active = 0
	case m.active > pos, m.active >= len(m.tabs):
		m.active--
	}
	m.syncViewport(true)
}

func (m *Model) applyLabel(t *tab, label browser.Label) {
	if t.icon == "" || !bytes.Equal(t.label.Icon, label.Icon) {
		t.icon = renderIcon(label.Icon)
	}
	label.Icon = bytes.Clone(label.Icon)
	t.label = label
}

func (m *Model) valid(pos int) bool {
	return pos >= 0 && pos < len(m.tabs)
}

// Loading reports whether any tab shows the loading spinner.
func (m *Model) Loading() bool {
	for _, t := range m.tabs {
		if t.label.Loading {
			return true
		}
	}
	return false
}

// StartSpinner returns the first spinner tick if a tab is loading and the
// spinner is idle.
func (m *Model) StartSpinner() tea.Cmd {
	if m.ticking || !m.Loading() {
		return nil
	}
	m.ticking = true
	return m.spinner.Tick
}

// Update advances the spinner and scrolls the content pane.
func (m *Model) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if !m.Loading() {
			m.ticking = false
			return nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return cmd
	case tea.KeyMsg, tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	}
	return nil
}

// ScrollDown scrolls the content pane by n lines.
func (m *Model) ScrollDown(n int) { m.viewport.ScrollDown(n) }

// ScrollUp scrolls the content pane by n lines.
func (m *Model) ScrollUp(n int) { m.viewport.ScrollUp(n) }

// PageDown scrolls the content pane by one page.
func (m *Model) PageDown() { m.viewport.PageDown() }

// PageUp scrolls the content pane by one page.
func (m *Model) PageUp() { m.viewport.PageUp() }

// HitKind is the result of a mouse hit test.
type HitKind int

const (
	HitNone HitKind = iota
	HitSelect
	HitClose
)

// Hit identifies the tab under a click.
type Hit struct {
	Kind HitKind
	Pos  int
}

// HitTest maps a left click to a tab or its close button. Zones are only
// known after the app's View has been passed through zone.Scan.
func (m *Model) HitTest(msg tea.MouseMsg) Hit {
	if msg.Action != tea.MouseActionPress || msg.Button != tea.MouseButtonLeft {
		return Hit{}
	}
	for i := range m.tabs {
		if z := zone.Get(m.closeZone(i)); z != nil && z.InBounds(msg) {
			return Hit{Kind: HitClose, Pos: i}
		}
	}
	for i := range m.tabs {
		if z := zone.Get(m.tabZone(i)); z != nil && z.InBounds(msg) {
			return Hit{Kind: HitSelect, Pos: i}
		}
	}
	return Hit{}
}

func (m *Model) tabZone(i int) string   { return fmt.Sprintf("%stab-%d", m.zonePrefix, i) }
func (m *Model) closeZone(i int) string { return fmt.Sprintf("%sclose-%d", m.zonePrefix, i) }
