package app

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"github.com/charmbracelet/x/exp/teatest"
	zone "github.com/lrstanley/bubblezone"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/tabfetch/internal/browser"
	"github.com/zjrosen/tabfetch/internal/config"
	"github.com/zjrosen/tabfetch/internal/jobs"
	"github.com/zjrosen/tabfetch/internal/pubsub"
	"github.com/zjrosen/tabfetch/internal/session"
	"github.com/zjrosen/tabfetch/internal/watcher"
)

func TestMain(m *testing.M) {
	zone.NewGlobal()
	os.Exit(m.Run())
}

type spawn struct {
	id  session.ID
	url string
}

// fakeJobs records spawns. When bridge is set it answers every spawn with
// a failed favicon and the given page text, like an instant fetch.
type fakeJobs struct {
	mu       sync.Mutex
	spawned  []spawn
	settings []jobs.Settings

	bridge *browser.Bridge
	page   string
}

func (f *fakeJobs) Spawn(id session.ID, url string) {
	f.mu.Lock()
	f.spawned = append(f.spawned, spawn{id: id, url: url})
	f.mu.Unlock()

	if f.bridge != nil {
		_ = f.bridge.Send(browser.FaviconLoaded{ID: id, Data: []byte{}})
		_ = f.bridge.Send(browser.PageLoaded{ID: id, Text: f.page})
	}
}

func (f *fakeJobs) Configure(s jobs.Settings) {
	f.mu.Lock()
	f.settings = append(f.settings, s)
	f.mu.Unlock()
}

func (f *fakeJobs) spawns() []spawn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]spawn(nil), f.spawned...)
}

func newTestModel(t *testing.T, opts Options) (*Model, *browser.Bridge, *fakeJobs) {
	t.Helper()
	bridge := browser.NewBridge()
	fj := &fakeJobs{}
	if opts.Config == (config.Config{}) {
		opts.Config = config.Defaults()
	}
	opts.Bridge = bridge
	opts.Jobs = fj

	m := New(opts)
	t.Cleanup(m.Close)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return m, bridge, fj
}

// pump hands every queued bridge event to Update, as the listener would.
func pump(m *Model, bridge *browser.Bridge) {
	for {
		ev, ok := bridge.TryRecv()
		if !ok {
			return
		}
		m.Update(ev)
	}
}

func typeText(m *Model, s string) {
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func openURL(t *testing.T, m *Model, bridge *browser.Bridge, raw string) session.ID {
	t.Helper()
	if !m.address.Focused() {
		m.Update(tea.KeyMsg{Type: tea.KeyCtrlL})
	}
	typeText(m, raw)
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	pump(m, bridge)

	id, ok := m.Registry().IDAt(m.Registry().Len() - 1)
	require.True(t, ok)
	return id
}

func statusContains(m *Model, substr string) bool {
	for _, line := range m.status.Lines() {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

func TestOpen_SendsRequestAndCreatesTab(t *testing.T) {
	m, bridge, fj := newTestModel(t, Options{})

	id := openURL(t, m, bridge, "example.com")

	require.Equal(t, []spawn{{id: id, url: "https://example.com"}}, fj.spawns())
	require.Equal(t, 1, m.tabs.Len())
	require.False(t, m.address.Focused())
	require.Empty(t, m.address.Value())

	require.True(t, statusContains(m, "Opening https://example.com"))
	require.True(t, statusContains(m, "["+string(id)+"] Opened new tab to load: https://example.com"))

	view := ansi.Strip(m.View())
	require.Contains(t, view, "This page contains https://example.com")
}

func TestEvents_UpdateTheActiveTab(t *testing.T) {
	m, bridge, _ := newTestModel(t, Options{})
	id := openURL(t, m, bridge, "https://example.com/page")

	require.NoError(t, bridge.Send(browser.PageLoaded{ID: id, Text: "hello from the page"}))
	require.NoError(t, bridge.Send(browser.FaviconLoaded{ID: id, Data: []byte{}}))
	pump(m, bridge)

	require.Contains(t, ansi.Strip(m.View()), "hello from the page")
	require.True(t, statusContains(m, "URL loaded (19 bytes)"))
	require.True(t, statusContains(m, "Favicon failed to load"))

	info, ok := m.Registry().Lookup(id)
	require.True(t, ok)
	require.Equal(t, session.StateLoaded, info.State())
}

func TestLogMessage_AppendsStatusLine(t *testing.T) {
	m, _, _ := newTestModel(t, Options{})
	m.Update(browser.LogMessage{Text: "[x] Loading favicon"})
	require.Equal(t, "[x] Loading favicon", m.status.Last())
}

func TestCloseKey_ClosesActiveTab(t *testing.T) {
	m, bridge, _ := newTestModel(t, Options{})
	first := openURL(t, m, bridge, "a.test")
	second := openURL(t, m, bridge, "b.test")
	require.Equal(t, 1, m.tabs.Active())

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlW})
	pump(m, bridge)

	require.Equal(t, 1, m.Registry().Len())
	_, ok := m.Registry().Lookup(second)
	require.False(t, ok)
	pos, ok := m.Registry().PositionOf(first)
	require.True(t, ok)
	require.Zero(t, pos)
	require.True(t, statusContains(m, "["+string(second)+"] Tab closed"))
}

func TestCloseKey_NoTabsIsNoop(t *testing.T) {
	m, bridge, _ := newTestModel(t, Options{})
	m.Update(tea.KeyMsg{Type: tea.KeyCtrlW})
	require.Zero(t, bridge.Len())
}

func TestReloadKey_RespawnsJobs(t *testing.T) {
	m, bridge, fj := newTestModel(t, Options{})
	id := openURL(t, m, bridge, "a.test")
	require.NoError(t, bridge.Send(browser.PageLoaded{ID: id, Text: "old body"}))
	pump(m, bridge)

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	pump(m, bridge)

	require.Len(t, fj.spawns(), 2)
	require.True(t, statusContains(m, "Reloading: https://a.test"))
	view := ansi.Strip(m.View())
	require.NotContains(t, view, "old body")
	require.Contains(t, view, "This page contains https://a.test")
}

func TestTabKeys_CycleActive(t *testing.T) {
	m, bridge, _ := newTestModel(t, Options{})
	openURL(t, m, bridge, "a.test")
	openURL(t, m, bridge, "b.test")

	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, 0, m.tabs.Active())
	m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	require.Equal(t, 1, m.tabs.Active())
}

func TestOpen_InvalidURL(t *testing.T) {
	m, bridge, fj := newTestModel(t, Options{})
	typeText(m, "https://")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	require.Zero(t, bridge.Len())
	require.Empty(t, fj.spawns())
	require.Equal(t, "Invalid URL: https://", m.status.Last())
	require.True(t, m.address.Focused())
	require.True(t, m.toast.Visible())
	require.Contains(t, ansi.Strip(m.View()), "✗ Invalid URL")
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "example.com", want: "https://example.com"},
		{in: "example.com/docs/README.md", want: "https://example.com/docs/README.md"},
		{in: "http://localhost:8080/x", want: "http://localhost:8080/x"},
		{in: "https://", wantErr: true},
		{in: "http://%zz", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeURL(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestConfigReload_ConfiguresJobs(t *testing.T) {
	m, _, fj := newTestModel(t, Options{})

	cfg := config.Defaults()
	cfg.Fetch.PageDelay = time.Millisecond
	cfg.UI.LogLines = 3
	m.Update(pubsub.Event[watcher.Reload]{Type: pubsub.UpdatedEvent, Payload: watcher.Reload{Config: cfg}})

	require.Equal(t, []jobs.Settings{cfg.Fetch.JobSettings()}, fj.settings)
	require.Equal(t, "Config reloaded", m.status.Last())
	require.Contains(t, ansi.Strip(m.View()), "✓ Config reloaded")

	for range 5 {
		m.Update(browser.LogMessage{Text: "line"})
	}
	require.Len(t, m.status.Lines(), 3)
}

func TestConfigReload_ErrorIsReported(t *testing.T) {
	m, _, fj := newTestModel(t, Options{})

	m.Update(pubsub.Event[watcher.Reload]{Payload: watcher.Reload{Err: os.ErrNotExist}})

	require.Empty(t, fj.settings)
	require.Contains(t, m.status.Last(), "Config reload failed")
}

func TestToggleLog_HidesPanelAndSaves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, config.WriteDefaultConfig(path))

	m, _, _ := newTestModel(t, Options{ConfigPath: path})
	require.Contains(t, ansi.Strip(m.View()), "Status")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlX})
	require.False(t, m.status.Visible())
	require.NotContains(t, ansi.Strip(m.View()), "Ready for action")

	require.NotNil(t, cmd)
	m.Update(cmd())
	require.False(t, m.toast.Visible())

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.False(t, cfg.UI.ShowLog)
}

func TestConfigReload_OwnSaveIsQuiet(t *testing.T) {
	m, _, fj := newTestModel(t, Options{})
	before := m.status.Last()

	// Saving the ui section rewrites the watched file; the reload carries the
	// same fetch settings and log cap.
	cfg := config.Defaults()
	cfg.UI.ShowLog = false
	m.Update(pubsub.Event[watcher.Reload]{Type: pubsub.UpdatedEvent, Payload: watcher.Reload{Config: cfg}})

	require.Empty(t, fj.settings)
	require.Equal(t, before, m.status.Last())
	require.False(t, m.toast.Visible())
}

func TestToggleLog_SaveFailureShowsToast(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	m, _, _ := newTestModel(t, Options{ConfigPath: filepath.Join(blocker, "config.yaml")})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlX})
	require.NotNil(t, cmd)

	m.Update(cmd())
	require.True(t, m.toast.Visible())
	require.Contains(t, ansi.Strip(m.View()), "Could not save settings")
}

func TestDebugLog_RequiresDebugMode(t *testing.T) {
	m, _, _ := newTestModel(t, Options{})
	m.Update(tea.KeyMsg{Type: tea.KeyCtrlD})
	require.Contains(t, ansi.Strip(m.View()), "Status")

	dm, _, _ := newTestModel(t, Options{DebugMode: true})
	dm.Update(tea.KeyMsg{Type: tea.KeyCtrlD})
	require.Contains(t, ansi.Strip(dm.View()), "Debug log")
}

func TestHelpKey_TogglesFullHelp(t *testing.T) {
	m, bridge, _ := newTestModel(t, Options{})
	openURL(t, m, bridge, "a.test")

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'?'}})
	require.True(t, m.help.ShowAll)
	require.Contains(t, ansi.Strip(m.View()), "previous tab")
}

func TestMouse_CloseButton(t *testing.T) {
	m, bridge, _ := newTestModel(t, Options{})
	openURL(t, m, bridge, "a.test")
	second := openURL(t, m, bridge, "b.test")

	lines := strings.Split(ansi.Strip(m.View()), "\n")
	strip := lines[1]
	idx := strings.LastIndex(strip, "×")
	require.GreaterOrEqual(t, idx, 0)
	press := tea.MouseMsg{
		X:      ansi.StringWidth(strip[:idx]),
		Y:      1,
		Action: tea.MouseActionPress,
		Button: tea.MouseButtonLeft,
	}

	// Zones are recorded asynchronously after View.
	var got browser.Event
	require.Eventually(t, func() bool {
		_ = m.View()
		m.Update(press)
		ev, ok := bridge.TryRecv()
		if ok {
			got = ev
		}
		return ok
	}, time.Second, 10*time.Millisecond)
	require.Equal(t, browser.SessionCloseRequested{ID: second}, got)
}

func TestProgram_OpenAndLoad(t *testing.T) {
	bridge := browser.NewBridge()
	fj := &fakeJobs{bridge: bridge, page: "Example body text"}
	m := New(Options{Config: config.Defaults(), Bridge: bridge, Jobs: fj})
	t.Cleanup(m.Close)

	tm := teatest.NewTestModel(t, m, teatest.WithInitialTermSize(120, 40))
	tm.Type("example.test")
	tm.Send(tea.KeyMsg{Type: tea.KeyEnter})

	teatest.WaitFor(t, tm.Output(), func(out []byte) bool {
		return strings.Contains(string(out), "Example body text")
	}, teatest.WithDuration(3*time.Second), teatest.WithCheckInterval(20*time.Millisecond))

	tm.Send(tea.KeyMsg{Type: tea.KeyCtrlC})
	tm.WaitFinished(t, teatest.WithFinalTimeout(2*time.Second))

	final := tm.FinalModel(t).(*Model)
	require.Equal(t, 1, final.Registry().Len())
	id, _ := final.Registry().IDAt(0)
	info, _ := final.Registry().Lookup(id)
	require.Equal(t, "https://example.test", info.URL)
	require.Equal(t, session.StateLoaded, info.State())
}
