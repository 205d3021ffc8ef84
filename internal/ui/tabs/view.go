package tabs

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/reflow/wrap"

	"github.com/zjrosen/tabfetch/internal/browser"
	"github.com/zjrosen/tabfetch/internal/log"
	"github.com/zjrosen/tabfetch/internal/ui/markdown"
	"github.com/zjrosen/tabfetch/internal/ui/styles"
)

const (
	maxTitleWidth = 24
	closeGlyph    = "×"

	// EmptyHint is shown when no tab is open.
	EmptyHint = "No tabs open. Press ctrl+l and enter a URL."
)

// innerSize is the viewport size inside the content panel border, below the
// one-line tab strip.
func (m *Model) innerSize() (int, int) {
	return max(m.width-2, 1), max(m.height-3, 1)
}

// syncViewport loads the active tab into the viewport.
func (m *Model) syncViewport(top bool) {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	if len(m.tabs) == 0 {
		m.viewport.SetContent("")
		return
	}

	innerW, _ := m.innerSize()
	t := m.tabs[m.active]
	if t.rendered == "" || t.renderedWidth != innerW {
		t.rendered = m.renderContent(t.content, innerW)
		t.renderedWidth = innerW
	}
	m.viewport.SetContent(t.rendered)
	if top {
		m.viewport.GotoTop()
	}
}

func (m *Model) renderContent(c browser.Content, width int) string {
	if c.Text == browser.PlaceholderText(c.URL) {
		return styles.PlaceholderStyle.Render(wordwrap.String(c.Text, width))
	}

	if markdown.IsMarkdownURL(c.URL) {
		if out, ok := m.renderMarkdown(c.Text, width); ok {
			return out
		}
	}

	text := strings.ReplaceAll(c.Text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\t", "    ")
	return wrap.String(wordwrap.String(text, width), width)
}

func (m *Model) renderMarkdown(text string, width int) (string, bool) {
	if m.md == nil || m.md.Width() != width {
		md, err := markdown.New(width, m.markdownStyle)
		if err != nil {
			log.Warn(log.CatUI, "Markdown renderer unavailable", "style", m.markdownStyle, "error", err)
			return "", false
		}
		m.md = md
	}
	out, err := m.md.Render(text)
	if err != nil {
		log.Debug(log.CatUI, "Markdown render failed, showing plain text", "error", err)
		return "", false
	}
	return out, true
}

// View renders the tab strip above the active tab's content.
func (m *Model) View() string {
	if m.width <= 0 || m.height <= 0 {
		return ""
	}
	if len(m.tabs) == 0 {
		hint := styles.PlaceholderStyle.Render(EmptyHint)
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, hint)
	}

	active := m.tabs[m.active]
	panel := styles.RenderPanel(m.viewport.View(), active.content.URL, m.width, m.height-1, true)
	return lipgloss.JoinVertical(lipgloss.Left, m.renderStrip(), panel)
}

func (m *Model) renderStrip() string {
	cells := make([]string, len(m.tabs))
	for i, t := range m.tabs {
		style := styles.TabInactiveStyle
		if i == m.active {
			style = styles.TabActiveStyle
		}

		icon := t.icon
		if t.label.Loading {
			icon = m.spinner.View()
		}
		title := runewidth.Truncate(t.label.Title, maxTitleWidth, "…")
		closeBtn := zone.Mark(m.closeZone(i), styles.TabCloseStyle.Render(closeGlyph))

		cells[i] = zone.Mark(m.tabZone(i), style.Render(icon+" "+title+" ")+closeBtn)
	}

	strip := strings.Join(cells, " ")
	if lipgloss.Width(strip) > m.width {
		strip = m.clipStrip(cells)
	}
	return strip
}

// clipStrip drops tabs from the left until the active tab fits.
func (m *Model) clipStrip(cells []string) string {
	first := 0
	for first < m.active {
		if lipgloss.Width(strings.Join(cells[first:m.active+1], " ")) <= m.width {
			break
		}
		first++
	}
	var b strings.Builder
	width := 0
	for i := first; i < len(cells); i++ {
		w := lipgloss.Width(cells[i])
		if i > first {
			w++
		}
		if width+w > m.width && i > m.active {
			break
		}
		if i > first {
			b.WriteString(" ")
		}
		b.WriteString(cells[i])
		width += w
	}
	return b.String()
}
