package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"stockdesk/internal/app"
	"stockdesk/internal/archive"
	"stockdesk/internal/chart"
	"stockdesk/internal/chat"
	"stockdesk/internal/market"
	"stockdesk/internal/session"
	"stockdesk/internal/view"
	"stockdesk/internal/watchlist"
)

// Styles.
var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4"))
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	cardStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
	gainStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	lossStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	selStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("208"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	userStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	botStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	loginStyle   = lipgloss.NewStyle().Border(lipgloss.DoubleBorder()).BorderForeground(lipgloss.Color("4")).Padding(1, 3)
)

// Focus targets. focusNone means keys navigate the dashboard.
type focus int

const (
	focusNone focus = iota
	focusUsername
	focusPassword
	focusWatchlist
	focusChat
)

// Messages.
type viewChangedMsg view.Event

type opDoneMsg struct {
	op  string
	err error
}

type components struct {
	app       *app.App
	views     *view.Registry
	session   *session.Store
	market    *market.Panel
	charts    *chart.Manager
	watchlist *watchlist.Controller
	chat      *chat.Controller
	exportDir string
}

// Model.
type model struct {
	components
	ctx    context.Context
	events <-chan view.Event
	logger *slog.Logger

	inputs map[focus]*textinput.Model
	mounts map[focus]view.Mount
	focus  focus

	viewport      viewport.Model
	ready         bool
	width, height int
}

func newInput(placeholder string, limit int) *textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = limit
	return &ti
}

func initialModel(ctx context.Context, c components, events <-chan view.Event, logger *slog.Logger) model {
	password := newInput("password", 128)
	password.EchoMode = textinput.EchoPassword
	m := model{
		components: c,
		ctx:        ctx,
		events:     events,
		logger:     logger,
		inputs: map[focus]*textinput.Model{
			focusUsername:  newInput("username", 64),
			focusPassword:  password,
			focusWatchlist: newInput("add symbol", 16),
			focusChat:      newInput("ask the advisor...", 500),
		},
		mounts: map[focus]view.Mount{
			focusUsername:  view.UsernameInput,
			focusPassword:  view.PasswordInput,
			focusWatchlist: view.WatchlistInput,
			focusChat:      view.ChatInput,
		},
	}
	return m
}

func waitForEvent(ch <-chan view.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return viewChangedMsg(ev)
	}
}

// run executes fn off the UI goroutine and reports completion.
func (m model) run(op string, fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return opDoneMsg{op: op, err: fn(ctx)}
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		waitForEvent(m.events),
		m.run("start", m.app.Start),
		textinput.Blink,
	)
}

func (m *model) setFocus(f focus) {
	for k, ti := range m.inputs {
		if k == f {
			ti.Focus()
		} else {
			ti.Blur()
		}
	}
	m.focus = f
}

// syncInputs copies registry values into the text inputs, picking up
// clears made by the controllers.
func (m *model) syncInputs() {
	for f, ti := range m.inputs {
		if v := m.views.Value(m.mounts[f]); v != ti.Value() {
			ti.SetValue(v)
		}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.views.Visible(view.LoginSurface) {
			return m.updateLogin(msg)
		}
		if m.focus != focusNone {
			return m.updateInput(msg)
		}
		return m.updateDashboard(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		headerH := 1
		footerH := 2
		vpHeight := m.height - headerH - footerH
		if vpHeight < 1 {
			vpHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.viewport.MouseWheelEnabled = true
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}
		m.viewport.SetContent(m.renderContent())
		return m, nil

	case viewChangedMsg:
		m.syncInputs()
		onLogin := m.focus == focusUsername || m.focus == focusPassword
		if m.views.Visible(view.LoginSurface) && !onLogin {
			m.setFocus(focusUsername)
		} else if m.views.Visible(view.AppSurface) && onLogin {
			m.setFocus(focusNone)
		}
		if m.ready {
			m.viewport.SetContent(m.renderContent())
			if msg.Mount == view.ChatTranscript && m.views.Region(view.ChatTranscript).ScrollToEnd {
				m.viewport.GotoBottom()
			}
		}
		return m, waitForEvent(m.events)

	case opDoneMsg:
		if msg.err != nil {
			m.logger.Warn("operation failed", "op", msg.op, "error", msg.err)
		} else {
			m.logger.Debug("operation done", "op", msg.op)
		}
		return m, nil
	}

	if m.ready {
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

func (m model) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return m, tea.Quit
	case "tab", "shift+tab", "up", "down":
		if m.focus == focusUsername {
			m.setFocus(focusPassword)
		} else {
			m.setFocus(focusUsername)
		}
		return m, nil
	case "enter":
		return m, m.run("login", m.app.Login)
	case "ctrl+r":
		return m, m.run("register", m.app.Register)
	}
	return m.typeInto(msg)
}

func (m model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.setFocus(focusNone)
		return m, nil
	case "tab":
		if m.focus == focusWatchlist {
			m.setFocus(focusChat)
		} else {
			m.setFocus(focusNone)
		}
		return m, nil
	case "enter":
		switch m.focus {
		case focusWatchlist:
			return m, m.run("watchlist add", m.watchlist.Add)
		case focusChat:
			return m, m.run("chat", func(ctx context.Context) error {
				return m.chat.HandleKey(ctx, "enter")
			})
		}
	}
	return m.typeInto(msg)
}

// typeInto forwards a key to the focused input and mirrors its value into
// the registry.
func (m model) typeInto(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ti, ok := m.inputs[m.focus]
	if !ok {
		return m, nil
	}
	updated, cmd := ti.Update(msg)
	*ti = updated
	m.views.SetValue(m.mounts[m.focus], ti.Value())
	return m, cmd
}

func (m model) updateDashboard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "tab", "w":
		m.setFocus(focusWatchlist)
		return m, nil
	case "c", "/":
		m.setFocus(focusChat)
		return m, nil
	case "r":
		region := cycle(m.market.Regions(), m.app.Region(), 1)
		return m, m.run("region "+region, func(ctx context.Context) error {
			return m.market.SelectRegion(ctx, region)
		})
	case "[", "]":
		step := 1
		if msg.String() == "[" {
			step = -1
		}
		var symbols []string
		for _, el := range m.views.Elements(view.ChartSymbol) {
			symbols = append(symbols, el.Value)
		}
		symbol := cycle(symbols, m.views.Value(view.ChartSymbol), step)
		if symbol == "" {
			return m, nil
		}
		return m, m.run("chart "+symbol, func(ctx context.Context) error {
			return m.market.SelectSymbol(ctx, symbol)
		})
	case "g":
		return m, m.run("refresh", func(ctx context.Context) error {
			return m.app.ShowApp(ctx)
		})
	case "e":
		return m, m.run("export", m.exportChart)
	case "L":
		m.setFocus(focusUsername)
		return m, m.run("logout", m.app.Logout)
	}

	var cmd tea.Cmd
	if m.ready {
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

func (m model) exportChart(ctx context.Context) error {
	symbol, series := m.charts.Series()
	if symbol == "" {
		m.views.SetValue(view.Status, "No chart to export")
		return nil
	}
	path := archive.FilePath(m.exportDir, symbol)
	if err := archive.WriteSeries(path, symbol, series); err != nil {
		m.views.SetValue(view.Status, "Export failed for "+symbol)
		return err
	}
	m.logger.Info("chart exported", "symbol", symbol, "path", path, "points", len(series))
	m.views.SetValue(view.Status, fmt.Sprintf("Exported %s to %s", symbol, path))
	return nil
}

// cycle returns the element step positions away from cur, wrapping around.
func cycle(items []string, cur string, step int) string {
	if len(items) == 0 {
		return ""
	}
	idx := 0
	for i, it := range items {
		if it == cur {
			idx = i
			break
		}
	}
	idx = (idx + step + len(items)) % len(items)
	return items[idx]
}

func (m model) View() string {
	if !m.ready {
		return "Loading..."
	}

	if m.views.Visible(view.LoginSurface) {
		return m.renderLogin()
	}

	title := " stockdesk"
	if sub := m.session.Subject(); sub != "" {
		title += "  " + sub
	}
	headerText := fmt.Sprintf("%s    region: %s    chart: %s ", title, m.app.Region(), m.charts.Current())
	headerBar := headerStyle.Render(padOrTrunc(headerText, m.width))

	status := m.views.Value(view.Status)
	if status != "" {
		status = errStyle.Render(padOrTrunc(" "+status, m.width))
	}
	help := " r region  [/] chart  g refresh  e export  w watchlist  c chat  L logout  q quit"
	if m.focus != focusNone {
		help = " enter submit  tab next  esc back"
	}
	footer := status + "\n" + footerStyle.Render(padOrTrunc(help, m.width))

	return headerBar + "\n" + m.viewport.View() + "\n" + footer
}

func (m model) renderLogin() string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render("Stock Advisor") + "\n\n")
	b.WriteString(m.inputs[focusUsername].View() + "\n")
	b.WriteString(m.inputs[focusPassword].View() + "\n\n")
	if msg := m.views.Value(view.AuthError); msg != "" {
		b.WriteString(errStyle.Render(msg) + "\n\n")
	}
	b.WriteString(dimStyle.Render("enter login  ctrl+r register  tab switch  esc quit"))
	box := loginStyle.Render(b.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func (m model) renderContent() string {
	if !m.views.Visible(view.AppSurface) {
		return ""
	}
	var b strings.Builder

	// Index cards.
	b.WriteString(sectionStyle.Render("Market") + "\n")
	var cards []string
	for _, el := range m.views.Elements(view.IndexGrid) {
		lines := strings.Split(el.Text, "\n")
		if len(lines) == 3 {
			st := gainStyle
			if strings.HasSuffix(el.Class, "down") {
				st = lossStyle
			}
			lines[2] = st.Render(lines[2])
		}
		cards = append(cards, cardStyle.Render(strings.Join(lines, "\n")))
	}
	if len(cards) == 0 {
		b.WriteString(dimStyle.Render("  no data") + "\n")
	} else {
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cards...) + "\n")
	}

	// Chart.
	b.WriteString("\n" + sectionStyle.Render("Chart") + "  ")
	selected := m.views.Value(view.ChartSymbol)
	for _, el := range m.views.Elements(view.ChartSymbol) {
		if el.Value == selected {
			b.WriteString(selStyle.Render("["+el.Text+"]") + " ")
		} else {
			b.WriteString(dimStyle.Render(el.Text) + " ")
		}
	}
	b.WriteString("\n")
	if canvas := m.views.Value(view.ChartCanvas); canvas != "" {
		b.WriteString(canvas + "\n")
	}

	// Watchlist.
	b.WriteString("\n" + sectionStyle.Render("Watchlist") + "\n")
	for _, el := range m.views.Elements(view.WatchlistList) {
		b.WriteString("  " + el.Text + "\n")
	}
	b.WriteString("  " + m.inputs[focusWatchlist].View() + "\n")

	// Chat.
	b.WriteString("\n" + sectionStyle.Render("Advisor") + "\n")
	for _, el := range m.views.Elements(view.ChatTranscript) {
		text := el.Text
		if el.Markup {
			text = strings.ReplaceAll(text, "<br>", "\n")
		}
		if strings.HasSuffix(el.Class, "user") {
			b.WriteString(userStyle.Render("you: ") + text + "\n")
		} else {
			b.WriteString(botStyle.Render("advisor: ") + text + "\n")
		}
	}
	b.WriteString("  " + m.inputs[focusChat].View() + "\n")

	return b.String()
}

// padOrTrunc pads s with spaces or truncates it to exactly width runes.
func padOrTrunc(s string, width int) string {
	r := []rune(s)
	if len(r) >= width {
		return string(r[:width])
	}
	return s + strings.Repeat(" ", width-len(r))
}
