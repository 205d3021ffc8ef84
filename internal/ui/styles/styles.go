// Package styles contains Lip Gloss style definitions.
package styles

import "github.com/charmbracelet/lipgloss"

var (
	// Text hierarchy
	TextPrimaryColor     = lipgloss.AdaptiveColor{Light: "#1F1F1F", Dark: "#CCCCCC"}
	TextSecondaryColor   = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#BBBBBB"}
	TextMutedColor       = lipgloss.AdaptiveColor{Light: "#999999", Dark: "#696969"}
	TextPlaceholderColor = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#777777"}

	BorderDefaultColor = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#696969"}
	BorderFocusColor   = lipgloss.AdaptiveColor{Light: "#54A0FF", Dark: "#54A0FF"}

	StatusSuccessColor = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	StatusWarningColor = lipgloss.AdaptiveColor{Light: "#FECA57", Dark: "#FECA57"}
	StatusErrorColor   = lipgloss.AdaptiveColor{Light: "#FF6B6B", Dark: "#FF8787"}
	StatusInfoColor    = lipgloss.AdaptiveColor{Light: "#54A0FF", Dark: "#54A0FF"}

	// Tabs
	TabActiveFgColor   = lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#FFFFFF"}
	TabActiveBgColor   = lipgloss.AdaptiveColor{Light: "#1A5276", Dark: "#1A5276"}
	TabInactiveFgColor = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#AAAAAA"}
	TabInactiveBgColor = lipgloss.AdaptiveColor{Light: "#E5E5E5", Dark: "#2D3436"}
	TabCloseColor      = lipgloss.AdaptiveColor{Light: "#922B21", Dark: "#E74C3C"}

	SpinnerColor = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#FFF"}

	baseTabStyle = lipgloss.NewStyle().Padding(0, 1)

	TabActiveStyle = baseTabStyle.
			Foreground(TabActiveFgColor).
			Background(TabActiveBgColor).
			Bold(true)

	TabInactiveStyle = baseTabStyle.
				Foreground(TabInactiveFgColor).
				Background(TabInactiveBgColor)

	TabCloseStyle = lipgloss.NewStyle().Foreground(TabCloseColor).Bold(true)

	AddressLabelStyle = lipgloss.NewStyle().Foreground(TextSecondaryColor).Bold(true)

	PlaceholderStyle = lipgloss.NewStyle().Foreground(TextPlaceholderColor).Italic(true)

	StatusBarStyle = lipgloss.NewStyle().
			Foreground(TextSecondaryColor).
			Padding(0, 1)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(StatusErrorColor).
			Bold(true)
)

// ApplyTheme overrides the accent colors. Empty strings keep the defaults.
func ApplyTheme(accent, muted string) {
	if accent != "" {
		BorderFocusColor = lipgloss.AdaptiveColor{Light: accent, Dark: accent}
		TabActiveBgColor = lipgloss.AdaptiveColor{Light: accent, Dark: accent}
		TabActiveStyle = TabActiveStyle.Background(TabActiveBgColor)
	}
	if muted != "" {
		TextMutedColor = lipgloss.AdaptiveColor{Light: muted, Dark: muted}
		BorderDefaultColor = lipgloss.AdaptiveColor{Light: muted, Dark: muted}
	}
}
