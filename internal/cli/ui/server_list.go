package ui

import (
	"fmt"

	"eggmanager/pkg/sdk"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	docStyle    = lipgloss.NewStyle().Margin(1, 2)
	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#04B575"})
)

type item struct {
	server sdk.Server
}

func stateIcon(state string) string {
	switch state {
	case "running":
		return "🟢"
	case "starting":
		return "🟡"
	case "stopping":
		return "🟠"
	case "offline":
		return "🔴"
	}
	return "⚪"
}

func (i item) Title() string { return i.server.Name }
func (i item) Description() string {
	return fmt.Sprintf("%s %s | ID: %s | Owner: %s | Node: %s",
		stateIcon(i.server.State), i.server.State, i.server.ID, i.server.OwnerName, i.server.Node)
}
func (i item) FilterValue() string { return i.server.Name + " " + i.server.OwnerName + " " + i.server.State }

type listKeyMap struct {
	start   key.Binding
	stop    key.Binding
	restart key.Binding
	refresh key.Binding
}

func newListKeyMap() *listKeyMap {
	return &listKeyMap{
		start: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "start"),
		),
		stop: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "stop"),
		),
		restart: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "restart"),
		),
		refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
	}
}

type listModel struct {
	list   list.Model
	client *sdk.Client
	keys   *listKeyMap
	choice *sdk.Server
}

func (m listModel) Init() tea.Cmd {
	return nil
}

type statusMsg string
type serverListMsg []sdk.Server

func sendPower(client *sdk.Client, srv sdk.Server, signal string) tea.Cmd {
	return func() tea.Msg {
		res, err := client.Power(srv.ID, srv.OwnerID, signal)
		if err != nil {
			return statusMsg(fmt.Sprintf("Error sending %s to %s: %v", signal, srv.Name, err))
		}
		if !res.Success {
			return statusMsg(fmt.Sprintf("Panel refused %s for %s: %s", signal, srv.Name, res.Message))
		}
		return statusMsg(fmt.Sprintf("%s signal sent to %s", signal, srv.Name))
	}
}

func (m listModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}
		signal := ""
		switch {
		case key.Matches(msg, m.keys.start):
			signal = "start"
		case key.Matches(msg, m.keys.stop):
			signal = "stop"
		case key.Matches(msg, m.keys.restart):
			signal = "restart"
		case key.Matches(msg, m.keys.refresh):
			return m, refreshList(m.client)
		case msg.String() == "enter":
			i, ok := m.list.SelectedItem().(item)
			if ok {
				m.choice = &i.server
				return m, tea.Quit
			}
		}
		if signal != "" {
			if i, ok := m.list.SelectedItem().(item); ok {
				return m, tea.Batch(
					sendPower(m.client, i.server, signal),
					m.list.NewStatusMessage(statusStyle.Render(fmt.Sprintf("Sending %s to %s...", signal, i.server.Name))),
				)
			}
		}
	case statusMsg:
		cmd := m.list.NewStatusMessage(statusStyle.Render(string(msg)))
		return m, tea.Batch(cmd, refreshList(m.client))
	case serverListMsg:
		cmd := m.list.SetItems(toItems(msg))
		return m, cmd
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		m.list.SetSize(msg.Width-h, msg.Height-v)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m listModel) View() string {
	return docStyle.Render(m.list.View())
}

func toItems(servers []sdk.Server) []list.Item {
	items := make([]list.Item, 0, len(servers))
	for _, s := range servers {
		items = append(items, item{server: s})
	}
	return items
}

func refreshList(client *sdk.Client) tea.Cmd {
	return func() tea.Msg {
		servers, err := client.ListServers()
		if err != nil {
			return statusMsg(fmt.Sprintf("Error refreshing: %v", err))
		}
		return serverListMsg(servers)
	}
}

// RunServerList shows every visible server. Enter returns the selection;
// quitting returns nil.
func RunServerList(client *sdk.Client) (*sdk.Server, error) {
	servers, err := client.ListServers()
	if err != nil {
		return nil, err
	}

	keys := newListKeyMap()
	delegate := list.NewDefaultDelegate()

	l := list.New(toItems(servers), delegate, 0, 0)
	l.Title = "Servers"
	l.AdditionalShortHelpKeys = func() []key.Binding {
		return []key.Binding{keys.start, keys.stop, keys.restart, keys.refresh}
	}
	l.AdditionalFullHelpKeys = func() []key.Binding {
		return []key.Binding{keys.start, keys.stop, keys.restart, keys.refresh}
	}

	m := listModel{
		list:   l,
		client: client,
		keys:   keys,
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return nil, err
	}
	if m, ok := finalModel.(listModel); ok {
		return m.choice, nil
	}
	return nil, nil
}
