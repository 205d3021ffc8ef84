package toaster

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	m := New()

	assert.False(t, m.Visible())
	assert.Empty(t, m.View())
}

func TestShow(t *testing.T) {
	m, cmd := New().Show("Config reloaded", KindSuccess, time.Millisecond)

	require.NotNil(t, cmd)
	assert.True(t, m.Visible())
	view := m.View()
	assert.Contains(t, view, "✓ Config reloaded")
	assert.Contains(t, view, "╭")
}

func TestShow_Kinds(t *testing.T) {
	m, _ := New().Show("boom", KindError, time.Second)
	assert.Contains(t, m.View(), "✗ boom")

	m, _ = m.Show("note", KindInfo, time.Second)
	assert.Contains(t, m.View(), "i note")
	assert.NotContains(t, m.View(), "boom")
}

func TestDismiss_FiresAfterDuration(t *testing.T) {
	m, cmd := New().Show("hello", KindInfo, time.Millisecond)

	msg := cmd()
	dismiss, ok := msg.(DismissMsg)
	require.True(t, ok, "expected DismissMsg, got %T", msg)

	m = m.Update(dismiss)
	assert.False(t, m.Visible())
	assert.Empty(t, m.View())
}

func TestDismiss_StaleTimerKeepsNewerToast(t *testing.T) {
	m, first := New().Show("first", KindInfo, time.Millisecond)
	m, _ = m.Show("second", KindInfo, time.Second)

	m = m.Update(first().(DismissMsg))

	assert.True(t, m.Visible())
	assert.Contains(t, m.View(), "second")
}

func TestOverlay_HiddenReturnsBackground(t *testing.T) {
	bg := "line one\nline two"
	assert.Equal(t, bg, New().Overlay(bg, 20, 0))
}

func TestOverlay_PlacesTopRight(t *testing.T) {
	bg := strings.Repeat(strings.Repeat(".", 40)+"\n", 6)
	bg = strings.TrimSuffix(bg, "\n")

	m, _ := New().Show("ok", KindSuccess, time.Second)
	out := strings.Split(ansi.Strip(m.Overlay(bg, 40, 1)), "\n")

	require.Len(t, out, 6)
	assert.Equal(t, strings.Repeat(".", 40), out[0], "rows above top untouched")
	assert.Contains(t, out[2], "✓ ok")
	assert.True(t, strings.HasPrefix(out[2], "...."), "left of the toast keeps the background")
	assert.True(t, strings.HasSuffix(out[2], "."), "one column of background stays on the right")
	for _, line := range out {
		assert.Equal(t, 40, ansi.StringWidth(line))
	}
}

func TestPlace_ClipsAtBottom(t *testing.T) {
	out := place("a\nb\nc", "xxxx\nxxxx", 1, 1)
	assert.Equal(t, "xxxx\nxaxx", out)
}

func TestPlace_PadsShortBackground(t *testing.T) {
	out := place("ab", "x", 3, 0)
	assert.Equal(t, "x  ab", out)
}
