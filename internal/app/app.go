// Package app contains the root application model.
package app

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"

	"github.com/zjrosen/tabfetch/internal/browser"
	"github.com/zjrosen/tabfetch/internal/config"
	"github.com/zjrosen/tabfetch/internal/jobs"
	"github.com/zjrosen/tabfetch/internal/keys"
	"github.com/zjrosen/tabfetch/internal/log"
	"github.com/zjrosen/tabfetch/internal/pubsub"
	"github.com/zjrosen/tabfetch/internal/session"
	"github.com/zjrosen/tabfetch/internal/ui/statuslog"
	"github.com/zjrosen/tabfetch/internal/ui/styles"
	"github.com/zjrosen/tabfetch/internal/ui/tabs"
	"github.com/zjrosen/tabfetch/internal/ui/toaster"
	"github.com/zjrosen/tabfetch/internal/watcher"
)

const addressLabel = "URL "

// Jobs starts fetch jobs for new sessions and takes new delays on config
// reload. Implemented by *jobs.Runner.
type Jobs interface {
	browser.Spawner
	Configure(jobs.Settings)
}

// Options wires the model to its collaborators.
type Options struct {
	Config     config.Config
	ConfigPath string // where ui changes are saved; empty disables saving
	Bridge     *browser.Bridge
	Jobs       Jobs
	Watcher    *watcher.Watcher // optional hot reload source
	DebugMode  bool             // enables the debug log view (ctrl+d)
}

// presenter routes tab calls to the tab container and status lines to the
// status log.
type presenter struct {
	*tabs.Model
	status *statuslog.Model
}

func (p presenter) AppendLogLine(text string) {
	p.status.Append(text)
}

// Model is the root application state. It must be used through a pointer:
// the event loop holds references into it.
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc

	cfg        config.Config
	configPath string
	debugMode  bool

	keys    keys.KeyMap
	help    help.Model
	address textinput.Model
	tabs    *tabs.Model
	status  statuslog.Model
	toast   toaster.Model

	bridge *browser.Bridge
	loop   *browser.Loop
	jobs   Jobs

	bridgeListener  *pubsub.QueueListener[browser.Event]
	logListener     *log.LogListener
	watcherListener *pubsub.ContinuousListener[watcher.Reload]

	zonePrefix string
	width      int
	height     int
}

// New creates the root model. The bridge is consumed only by this model's
// Update loop.
func New(opts Options) *Model {
	ctx, cancel := context.WithCancel(context.Background())

	input := textinput.New()
	input.Prompt = ""
	input.Placeholder = "Enter a URL and press enter"
	input.Focus()

	m := &Model{
		ctx:        ctx,
		cancel:     cancel,
		cfg:        opts.Config,
		configPath: opts.ConfigPath,
		debugMode:  opts.DebugMode,
		keys:       keys.DefaultKeyMap(),
		help:       help.New(),
		address:    input,
		tabs:       tabs.New(opts.Config.UI.MarkdownStyle),
		status:     statuslog.New(opts.Config.UI.LogLines),
		toast:      toaster.New(),
		bridge:     opts.Bridge,
		jobs:       opts.Jobs,
		zonePrefix: zone.NewPrefix(),
	}
	m.status.SetVisible(opts.Config.UI.ShowLog)

	m.loop = browser.NewLoop(session.NewRegistry(), presenter{Model: m.tabs, status: &m.status}, opts.Jobs)
	m.bridgeListener = pubsub.NewQueueListener(ctx, opts.Bridge)

	if opts.Watcher != nil {
		m.watcherListener = pubsub.NewContinuousListener(ctx, opts.Watcher.Broker())
	}
	if opts.DebugMode {
		m.logListener = log.NewListener(ctx)
	}
	return m
}

// Registry exposes the session registry owned by the loop.
func (m *Model) Registry() *session.Registry {
	return m.loop.Registry()
}

// Close stops the model's listeners.
func (m *Model) Close() {
	m.cancel()
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.bridgeListener.Listen()}
	if m.watcherListener != nil {
		cmds = append(cmds, m.watcherListener.Listen())
	}
	if m.logListener != nil {
		cmds = append(cmds, m.logListener.Listen())
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case browser.Event:
		m.loop.Handle(msg)
		return m, tea.Batch(m.bridgeListener.Listen(), m.tabs.StartSpinner())

	case spinner.TickMsg:
		return m, m.tabs.Update(msg)

	case log.LogEvent:
		m.status.RefreshDebug()
		if m.logListener == nil {
			return m, nil
		}
		return m, m.logListener.Listen()

	case pubsub.Event[watcher.Reload]:
		cmd := m.applyReload(msg.Payload)
		if m.watcherListener == nil {
			return m, cmd
		}
		return m, tea.Batch(cmd, m.watcherListener.Listen())

	case uiSavedMsg:
		if msg.err != nil {
			return m, m.showToast("Could not save settings: "+msg.err.Error(), toaster.KindError)
		}
		return m, nil

	case toaster.DismissMsg:
		m.toast = m.toast.Update(msg)
		return m, nil

	case tea.MouseMsg:
		return m, m.handleMouse(msg)

	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.address, cmd = m.address.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit
	case key.Matches(msg, m.keys.CloseTab):
		m.requestForActive(func(id session.ID) browser.Event { return browser.SessionCloseRequested{ID: id} })
		return nil
	case key.Matches(msg, m.keys.Reload):
		m.requestForActive(func(id session.ID) browser.Event { return browser.SessionReloadRequested{ID: id} })
		return nil
	case key.Matches(msg, m.keys.NextTab):
		m.tabs.Next()
		return nil
	case key.Matches(msg, m.keys.PrevTab):
		m.tabs.Prev()
		return nil
	case key.Matches(msg, m.keys.ToggleLog):
		m.status.Toggle()
		m.layout()
		return m.saveUI()
	case key.Matches(msg, m.keys.DebugLog) && m.debugMode:
		m.status.ToggleDebug()
		if !m.status.Visible() {
			m.status.SetVisible(true)
			m.layout()
		}
		return nil
	}

	if m.address.Focused() {
		switch {
		case key.Matches(msg, m.keys.Open):
			return m.openAddress()
		case key.Matches(msg, m.keys.Blur):
			if m.tabs.Len() > 0 {
				m.address.Blur()
			}
			return nil
		}
		var cmd tea.Cmd
		m.address, cmd = m.address.Update(msg)
		return cmd
	}

	if m.status.Visible() && m.status.Source() == statuslog.SourceDebug {
		var cmd tea.Cmd
		m.status, cmd = m.status.Update(msg)
		return cmd
	}

	switch {
	case key.Matches(msg, m.keys.FocusAddress):
		m.address.SetValue("")
		return m.address.Focus()
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.layout()
	case key.Matches(msg, m.keys.ScrollDown):
		m.tabs.ScrollDown(1)
	case key.Matches(msg, m.keys.ScrollUp):
		m.tabs.ScrollUp(1)
	case key.Matches(msg, m.keys.PageDown):
		m.tabs.PageDown()
	case key.Matches(msg, m.keys.PageUp):
		m.tabs.PageUp()
	}
	return nil
}

func (m *Model) handleMouse(msg tea.MouseMsg) tea.Cmd {
	if msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft {
		if zone.Get(m.addressZone()).InBounds(msg) {
			return m.address.Focus()
		}
	}

	switch hit := m.tabs.HitTest(msg); hit.Kind {
	case tabs.HitSelect:
		m.tabs.SetActive(hit.Pos)
		m.address.Blur()
		return nil
	case tabs.HitClose:
		if id, ok := m.Registry().IDAt(hit.Pos); ok {
			m.send(browser.SessionCloseRequested{ID: id})
		}
		return nil
	}

	if tea.MouseEvent(msg).IsWheel() {
		return m.tabs.Update(msg)
	}
	return nil
}

// openAddress turns the address bar into an open request on the bridge.
func (m *Model) openAddress() tea.Cmd {
	raw := strings.TrimSpace(m.address.Value())
	if raw == "" {
		return nil
	}

	target, err := NormalizeURL(raw)
	if err != nil {
		m.status.Append("Invalid URL: " + raw)
		log.Debug(log.CatUI, "Rejected address", "input", raw, "error", err)
		return m.showToast("Invalid URL", toaster.KindError)
	}

	id := session.NewID()
	m.send(browser.LogMessage{Text: "Opening " + target})
	m.send(browser.SessionOpenRequested{ID: id, URL: target})

	m.address.Reset()
	m.address.Blur()
	return nil
}

func (m *Model) requestForActive(build func(session.ID) browser.Event) {
	pos := m.tabs.Active()
	if pos < 0 {
		return
	}
	id, ok := m.Registry().IDAt(pos)
	if !ok {
		log.Warn(log.CatUI, "No session at active tab", "pos", pos)
		return
	}
	m.send(build(id))
}

func (m *Model) send(ev browser.Event) {
	if err := m.bridge.Send(ev); err != nil {
		log.Warn(log.CatBridge, "Dropped UI event", "error", err)
	}
}

func (m *Model) applyReload(r watcher.Reload) tea.Cmd {
	if r.Err != nil {
		m.status.Append("Config reload failed: " + r.Err.Error())
		return m.showToast("Config reload failed", toaster.KindError)
	}
	if r.Config.Fetch == m.cfg.Fetch && r.Config.UI.LogLines == m.cfg.UI.LogLines {
		// Our own ui save rewrites the file; nothing reloadable moved.
		log.Debug(log.CatConfig, "Config reload without changes", "path", r.Path)
		return nil
	}
	m.jobs.Configure(r.Config.Fetch.JobSettings())
	m.status.SetMaxLines(r.Config.UI.LogLines)
	m.cfg.Fetch = r.Config.Fetch
	m.cfg.UI.LogLines = r.Config.UI.LogLines
	m.status.Append("Config reloaded")
	return m.showToast("Config reloaded", toaster.KindSuccess)
}

func (m *Model) showToast(text string, kind toaster.Kind) tea.Cmd {
	var cmd tea.Cmd
	m.toast, cmd = m.toast.Show(text, kind, toaster.DefaultDuration)
	return cmd
}

// uiSavedMsg reports the outcome of saveUI.
type uiSavedMsg struct {
	err error
}

// saveUI persists the ui section off the Update goroutine.
func (m *Model) saveUI() tea.Cmd {
	if m.configPath == "" {
		return nil
	}
	m.cfg.UI.ShowLog = m.status.Visible()
	path, ui := m.configPath, m.cfg.UI
	return func() tea.Msg {
		err := config.SaveUI(path, ui)
		if err != nil {
			log.Warn(log.CatConfig, "Failed to save ui settings", "path", path, "error", err)
		}
		return uiSavedMsg{err: err}
	}
}

// layout splits the screen: address bar, tabs, status log, help.
func (m *Model) layout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	m.help.Width = m.width
	m.address.Width = max(m.width-lipgloss.Width(addressLabel)-1, 1)

	logH := 0
	if m.status.Visible() {
		logH = min(max(m.height/4, 4), 10)
		m.status.SetSize(m.width, logH)
	}
	helpH := lipgloss.Height(m.help.View(m.keys))
	m.tabs.SetSize(m.width, max(m.height-1-logH-helpH, 3))
}

func (m *Model) addressZone() string { return m.zonePrefix + "address" }

// View implements tea.Model.
func (m *Model) View() string {
	if m.width <= 0 || m.height <= 0 {
		return ""
	}

	address := zone.Mark(m.addressZone(), styles.AddressLabelStyle.Render(addressLabel)+m.address.View())
	parts := []string{address, m.tabs.View()}
	if m.status.Visible() {
		parts = append(parts, m.status.View())
	}
	parts = append(parts, m.help.View(m.keys))

	view := zone.Scan(lipgloss.JoinVertical(lipgloss.Left, parts...))
	// Below the address bar and tab strip.
	return m.toast.Overlay(view, m.width, 2)
}

// NormalizeURL defaults the scheme to https and requires a host.
func NormalizeURL(raw string) (string, error) {
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host in %q", raw)
	}
	return u.String(), nil
}
