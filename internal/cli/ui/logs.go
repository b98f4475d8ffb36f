package ui

import (
	"fmt"
	"strings"
	"time"

	"eggmanager/pkg/sdk"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"
)

var (
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	closedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("160")).Bold(true)
)

type logModel struct {
	sub       <-chan sdk.ConsoleEvent
	conn      *websocket.Conn
	viewport  viewport.Model
	textInput textinput.Model
	err       error
	ready     bool
	server    sdk.Server
	session   string
	closed    bool
	content   strings.Builder
	quitting  bool
	back      bool
	client    *sdk.Client
	width     int
	height    int
}

func initialLogModel(server sdk.Server, conn *websocket.Conn, sub <-chan sdk.ConsoleEvent, client *sdk.Client) *logModel {
	ti := textinput.New()
	ti.Placeholder = "Type a command..."
	ti.Focus()
	ti.CharLimit = 256
	ti.Width = 20

	return &logModel{
		sub:       sub,
		conn:      conn,
		textInput: ti,
		server:    server,
		client:    client,
		session:   "requesting",
	}
}

func (m *logModel) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		waitForEvent(m.sub),
		tickCmd(),
	)
}

type consoleEventMsg sdk.ConsoleEvent
type consoleClosedMsg struct{}
type serverStateMsg string
type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForEvent(sub <-chan sdk.ConsoleEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-sub
		if !ok {
			return consoleClosedMsg{}
		}
		return consoleEventMsg(ev)
	}
}

func fetchState(client *sdk.Client, server sdk.Server) tea.Cmd {
	return func() tea.Msg {
		states, err := client.ServerStates()
		if err != nil {
			return nil
		}
		for _, s := range states {
			if s.ID == server.ID && s.OwnerID == server.OwnerID {
				return serverStateMsg(s.State)
			}
		}
		return nil
	}
}

// formatEvent renders one console event as a viewport line. State changes
// only update the header and produce no line.
func formatEvent(ev sdk.ConsoleEvent) (string, bool) {
	switch ev.Type {
	case "log":
		return ev.Line, true
	case "notice":
		return noticeStyle.Render("* " + ev.Message), true
	case "closed":
		text := "console closed"
		if ev.Message != "" {
			text += ": " + ev.Message
		}
		if ev.Reason != "" && ev.Reason != "closed" {
			text += " (" + ev.Reason + ")"
		}
		return closedStyle.Render(text), true
	}
	return "", false
}

func (m *logModel) apply(ev sdk.ConsoleEvent) {
	switch ev.Type {
	case "state":
		m.session = ev.State
	case "status":
		m.server.State = ev.State
	case "closed":
		m.session = ev.State
		m.closed = true
	}
	if line, ok := formatEvent(ev); ok {
		m.content.WriteString(line)
		m.content.WriteByte('\n')
	}
}

func (m *logModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEsc:
			m.back = true
			return m, tea.Quit
		case tea.KeyEnter:
			if cmd := strings.TrimSpace(m.textInput.Value()); cmd != "" && !m.closed {
				m.textInput.SetValue("")
				frame := map[string]any{"event": "send command", "args": []string{cmd}}
				if err := m.conn.WriteJSON(frame); err != nil {
					m.err = err
				}
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 12
		contentWidth := msg.Width - 6

		if !m.ready {
			m.viewport = viewport.New(contentWidth, msg.Height-headerHeight)
			m.viewport.YPosition = headerHeight
			m.ready = true
		} else {
			m.viewport.Width = contentWidth
			m.viewport.Height = msg.Height - headerHeight
		}
		m.viewport.SetContent(m.content.String())

	case consoleEventMsg:
		m.apply(sdk.ConsoleEvent(msg))
		m.viewport.SetContent(m.content.String())
		m.viewport.GotoBottom()
		return m, waitForEvent(m.sub)

	case consoleClosedMsg:
		m.closed = true

	case serverStateMsg:
		m.server.State = string(msg)

	case tickMsg:
		if m.closed {
			return m, nil
		}
		return m, tea.Batch(fetchState(m.client, m.server), tickCmd())
	}

	m.textInput, tiCmd = m.textInput.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd)
}

func (m *logModel) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}

	title := headerStyle.Width(m.width).Render("SERVER CONSOLE")

	serverInfo := fmt.Sprintf(
		"Server: %s %s  •  ID: %s  •  Owner: %s\nState: %s  •  Console: %s",
		stateIcon(m.server.State),
		m.server.Name,
		m.server.ID,
		m.server.OwnerName,
		m.server.State,
		m.session,
	)
	if m.err != nil {
		serverInfo += "\n" + closedStyle.Render(m.err.Error())
	}

	headerBox := baseStyle.
		Width(m.width-4).
		Align(lipgloss.Center).
		Padding(0, 1).
		Render(serverInfo)

	console := baseStyle.
		Width(m.width - 4).
		Render(m.viewport.View())

	keys := []string{
		keyStyle.Render("esc") + descStyle.Render(": back"),
		keyStyle.Render("ctrl+c") + descStyle.Render(": quit"),
	}
	sep := lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render(" • ")
	helpLine := lipgloss.NewStyle().
		Width(m.width - 6).
		Align(lipgloss.Center).
		Render(strings.Join(keys, sep))

	inputLine := fmt.Sprintf("→ %s", m.textInput.View())
	if m.closed {
		inputLine = descStyle.Render("console closed, press esc to go back")
	}

	footerBox := footerStyle.
		Width(m.width - 4).
		Align(lipgloss.Left).
		Render(lipgloss.JoinVertical(lipgloss.Left, inputLine, "", helpLine))

	return lipgloss.JoinVertical(lipgloss.Center,
		title,
		headerBox,
		console,
		footerBox,
	)
}

func readEvents(conn *websocket.Conn) <-chan sdk.ConsoleEvent {
	sub := make(chan sdk.ConsoleEvent)
	go func() {
		defer close(sub)
		for {
			var ev sdk.ConsoleEvent
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			sub <- ev
		}
	}()
	return sub
}

// RunLogs opens the server's console. It reports whether the user asked to
// go back to the server list.
func RunLogs(client *sdk.Client, server sdk.Server) (bool, error) {
	wsURL, err := client.ConsoleURL(server.ID, server.OwnerID)
	if err != nil {
		return false, err
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return false, fmt.Errorf("connecting to console: %w", err)
	}
	defer conn.Close()

	p := tea.NewProgram(
		initialLogModel(server, conn, readEvents(conn), client),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	m, err := p.Run()
	if err != nil {
		return false, err
	}
	if lm, ok := m.(*logModel); ok {
		return lm.back, nil
	}
	return false, nil
}
