package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/wfunc/boomberg/commands"
	"github.com/wfunc/boomberg/logger"
	"github.com/wfunc/boomberg/models"
	"github.com/wfunc/boomberg/terminal"
	"github.com/wfunc/boomberg/view"
)

const reconnectDelay = 2 * time.Second

var (
	accent    = lipgloss.Color("#50E3C2")
	muted     = lipgloss.Color("#8CA1AE")
	warnColor = lipgloss.Color("#F6AE2D")
	errColor  = lipgloss.Color("#FF6B6B")
	barBG     = lipgloss.Color("#0D141A")
)

type styles struct {
	plain, html, warn, err, loading lipgloss.Style
	cursor                          lipgloss.Style
	tab, activeTab                  lipgloss.Style
	bar                             lipgloss.Style
	title, up, down                 lipgloss.Style
}

func newStyles() styles {
	return styles{
		plain:     lipgloss.NewStyle(),
		html:      lipgloss.NewStyle().Foreground(accent),
		warn:      lipgloss.NewStyle().Foreground(warnColor),
		err:       lipgloss.NewStyle().Foreground(errColor).Bold(true),
		loading:   lipgloss.NewStyle().Foreground(muted).Italic(true),
		cursor:    lipgloss.NewStyle().Reverse(true),
		tab:       lipgloss.NewStyle().Foreground(muted).Padding(0, 1),
		activeTab: lipgloss.NewStyle().Foreground(accent).Bold(true).Padding(0, 1),
		bar:       lipgloss.NewStyle().Background(barBG).Foreground(muted),
		title:     lipgloss.NewStyle().Foreground(accent).Bold(true),
		up:        lipgloss.NewStyle().Foreground(accent),
		down:      lipgloss.NewStyle().Foreground(errColor),
	}
}

func (s styles) row(r terminal.Row) lipgloss.Style {
	switch r.Kind {
	case terminal.RowHTML:
		return s.html
	case terminal.RowWarn:
		return s.warn
	case terminal.RowError:
		return s.err
	case terminal.RowLoading:
		return s.loading
	default:
		return s.plain
	}
}

// viewEventMsg is an async result for one terminal view.
type viewEventMsg struct {
	viewID int
	event  terminal.Event
}

type serverEventMsg struct {
	event models.UserEvent
}

type streamEndedMsg struct {
	err error
}

type reconnectMsg struct{}

// EventSource is the server's event stream. *api.Client implements it.
type EventSource interface {
	Events(ctx context.Context, fn func(models.UserEvent)) error
}

type model struct {
	me       *commands.Identity
	registry *terminal.Registry
	views    *view.Manager
	events   EventSource
	ctx      context.Context
	send     func(tea.Msg)
	styles   styles

	pendingViews []models.ViewRequest
	roster       []models.Participant
	connected    bool
	status       string
	width        int
	height       int
}

// newModel opens the first terminal. send must deliver messages to the
// running program; it is only called from other goroutines.
func newModel(ctx context.Context, client commands.API, events EventSource, me *commands.Identity, send func(tea.Msg)) *model {
	m := &model{
		me:       me,
		registry: commands.New(client, me),
		events:   events,
		ctx:      ctx,
		send:     send,
		styles:   newStyles(),
		width:    80,
		height:   24,
	}
	m.views = view.NewManager(m)
	if _, err := m.views.Open(models.TerminalViewRequest{}); err != nil {
		logger.Log.Errorf("open terminal: %v", err)
	}
	return m
}

// NewEngine implements view.EngineFactory.
func (m *model) NewEngine(viewID int) *terminal.Engine {
	return terminal.NewEngine(m.registry, terminal.PromptFor(m.me.Name),
		terminal.WithWelcome(terminal.DefaultWelcome()...),
		terminal.WithPost(func(ev terminal.Event) {
			m.send(viewEventMsg{viewID: viewID, event: ev})
		}),
		terminal.WithViewHandler(func(req models.ViewRequest) {
			m.pendingViews = append(m.pendingViews, req)
		}),
	)
}

func (m *model) Init() tea.Cmd {
	return m.listen()
}

func (m *model) listen() tea.Cmd {
	if m.events == nil {
		return nil
	}
	m.connected = true
	m.status = "connected"
	return func() tea.Msg {
		err := m.events.Events(m.ctx, func(ev models.UserEvent) {
			m.send(serverEventMsg{event: ev})
		})
		return streamEndedMsg{err: err}
	}
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case tea.KeyMsg:
		cmd = m.handleKey(msg)
	case viewEventMsg:
		m.views.Deliver(msg.viewID, msg.event)
	case serverEventMsg:
		if joined, ok := msg.event.(models.UserJoinedEvent); ok {
			m.roster = joined.Users
		}
		m.views.Broadcast(terminal.NotifyEvent{Event: msg.event})
	case streamEndedMsg:
		m.connected = false
		if m.ctx.Err() != nil {
			return m, nil
		}
		m.status = "disconnected, retrying"
		logger.Log.Warnf("event stream ended: %v", msg.err)
		cmd = tea.Tick(reconnectDelay, func(time.Time) tea.Msg { return reconnectMsg{} })
	case reconnectMsg:
		cmd = m.listen()
	}

	m.openPendingViews()
	return m, cmd
}

func (m *model) handleKey(k tea.KeyMsg) tea.Cmd {
	switch k.Type {
	case tea.KeyCtrlQ:
		return tea.Quit
	case tea.KeyTab:
		m.views.FocusNext(1)
		return nil
	case tea.KeyShiftTab:
		m.views.FocusNext(-1)
		return nil
	}

	focused := m.views.Focused()
	if focused == nil {
		return nil
	}
	if focused.Kind == view.KindStonk {
		if k.Type == tea.KeyEsc || (k.Type == tea.KeyRunes && string(k.Runes) == "q") {
			m.closeView(focused.ID)
		}
		return nil
	}
	for _, ev := range keyEvents(k) {
		m.views.Deliver(focused.ID, ev)
	}
	return nil
}

// openPendingViews applies view requests made by commands during this update.
func (m *model) openPendingViews() {
	reqs := m.pendingViews
	m.pendingViews = nil
	for _, req := range reqs {
		if _, err := m.views.Open(req); err != nil {
			m.status = err.Error()
		}
	}
}

func (m *model) closeView(id int) {
	if err := m.views.Close(id); err != nil {
		m.status = err.Error()
	}
}

func (m *model) View() string {
	header := m.renderTabs()
	footer := m.renderStatusBar()
	height := max(m.height-lipgloss.Height(header)-lipgloss.Height(footer), 1)

	var body string
	if v := m.views.Focused(); v != nil {
		switch v.Kind {
		case view.KindTerminal:
			body = m.renderTerminal(v.Engine, height)
		case view.KindStonk:
			body = m.renderStonk(v)
		}
	}
	body = lipgloss.NewStyle().Height(height).MaxHeight(height).Render(body)
	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m *model) renderTabs() string {
	focused := m.views.Focused()
	tabs := make([]string, 0, m.views.Len())
	for i, v := range m.views.Views() {
		label := fmt.Sprintf("%d:%s", i+1, v.Title)
		if focused != nil && v.ID == focused.ID {
			tabs = append(tabs, m.styles.activeTab.Render(label))
		} else {
			tabs = append(tabs, m.styles.tab.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m *model) renderTerminal(e *terminal.Engine, height int) string {
	rows := e.Rows()
	if len(rows) > height {
		rows = rows[len(rows)-height:]
	}

	lines := make([]string, len(rows))
	for i, r := range rows {
		lines[i] = m.styles.row(r).Render(r.Text)
	}
	if !e.Blocked() && len(rows) > 0 {
		lines[len(lines)-1] = m.withCursor(rows[len(rows)-1].Text, e.Cursor())
	}
	return strings.Join(lines, "\n")
}

func (m *model) withCursor(text string, cursor int) string {
	runes := []rune(text)
	if cursor >= len(runes) {
		return text + m.styles.cursor.Render(" ")
	}
	return string(runes[:cursor]) + m.styles.cursor.Render(string(runes[cursor])) + string(runes[cursor+1:])
}

func (m *model) renderStonk(v *view.View) string {
	s := v.Stonk
	change := s.Change()
	arrow := m.styles.up.Render(fmt.Sprintf("▲ %.2f%%", change*100))
	if change < 0 {
		arrow = m.styles.down.Render(fmt.Sprintf("▼ %.2f%%", -change*100))
	}
	return strings.Join([]string{
		m.styles.title.Render("$"+v.Ticker) + fmt.Sprintf("  %.2f  ", s.Last()) + arrow,
		"",
		s.Sparkline(max(m.width-2, 10)),
		"",
		fmt.Sprintf("low %.2f  high %.2f", s.Min, s.Max),
		m.styles.loading.Render("q to close, tab to switch views"),
	}, "\n")
}

func (m *model) renderStatusBar() string {
	left := fmt.Sprintf("%s (id %d)", m.me.Name, m.me.ID)

	center := ""
	if len(m.roster) > 0 {
		names := make([]string, len(m.roster))
		for i, p := range m.roster {
			names[i] = p.Name
		}
		center = "lobby: " + strings.Join(names, ", ")
	}

	right := m.status
	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(center)-lipgloss.Width(right), 2)
	pad := strings.Repeat(" ", gap/2)
	line := left + pad + center + pad + strings.Repeat(" ", gap%2) + right
	return m.styles.bar.Width(m.width).Render(line)
}
