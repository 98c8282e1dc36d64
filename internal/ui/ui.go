package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/vidmark/internal/formatter"
	"github.com/desertthunder/vidmark/internal/models"
)

// updateMsg wraps a state change from the realtime client.
type updateMsg models.Update

// streamClosedMsg signals that the client closed the subscription.
type streamClosedMsg struct{}

// Model represents the dashboard state.
type Model struct {
	updates <-chan models.Update
	cancel  func()

	state  models.Update
	bars   map[string]progress.Model
	width  int
	height int
	help   help.Model
	keys   keyMap
}

// keyMap defines the key bindings for the dashboard.
type keyMap struct {
	quit key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp returns the key bindings shown in the help line.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

// FullHelp returns all key bindings.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.quit}}
}

// NewModel creates a dashboard consuming the given update stream. The cancel
// func is invoked on quit to unsubscribe from the client.
func NewModel(updates <-chan models.Update, cancel func()) *Model {
	return &Model{
		updates: updates,
		cancel:  cancel,
		bars:    make(map[string]progress.Model),
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Init starts listening for client updates.
func (m *Model) Init() tea.Cmd {
	return m.waitForUpdate()
}

// waitForUpdate blocks on the subscription channel and converts the next
// state change into a message.
func (m *Model) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		u, ok := <-m.updates
		if !ok {
			return streamClosedMsg{}
		}
		return updateMsg(u)
	}
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.quit) {
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
		return m, nil

	case updateMsg:
		m.state = models.Update(msg)
		for id := range m.state.Jobs {
			if _, ok := m.bars[id]; !ok {
				m.bars[id] = progress.New(progress.WithDefaultGradient(), progress.WithWidth(30))
			}
		}
		for id := range m.bars {
			if _, ok := m.state.Jobs[id]; !ok {
				delete(m.bars, id) // evicted by the TTL sweep
			}
		}
		return m, m.waitForUpdate()

	case streamClosedMsg:
		return m, tea.Quit
	}

	return m, nil
}

// View renders the dashboard.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(styles.title.Render("vidmark — job progress"))
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n\n")

	jobs := formatter.SortJobs(m.state.Jobs)
	if len(jobs) == 0 {
		b.WriteString(styles.help.Render("No jobs observed yet. Start an import and progress will appear here."))
		b.WriteString("\n")
	}

	for _, ev := range jobs {
		bar, ok := m.bars[ev.JobID]
		if !ok {
			bar = progress.New(progress.WithDefaultGradient(), progress.WithWidth(30))
		}

		b.WriteString(fmt.Sprintf("%s  %s  %s  %d/%d\n",
			styles.title.UnsetMarginBottom().Render(ev.JobID),
			m.statusBadge(ev.Status),
			bar.ViewAs(float64(ev.Progress)/100.0),
			ev.CurrentVideo, ev.TotalVideos,
		))
		if ev.Message != "" {
			b.WriteString(styles.help.Render("  " + ev.Message))
			b.WriteString("\n")
		}
	}

	if m.state.HistoryErr != nil {
		b.WriteString("\n")
		b.WriteString(styles.warn.Render(fmt.Sprintf("⚠ %v", m.state.HistoryErr)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

// statusLine renders the connection and auth state of the push channel.
func (m *Model) statusLine() string {
	var conn string
	switch m.state.Connection {
	case models.ConnectionOpen:
		conn = styles.ok.Render("● connected")
	case models.ConnectionConnecting:
		conn = styles.warn.Render("◌ connecting")
	default:
		conn = styles.err.Render("○ disconnected")
	}

	var auth string
	switch m.state.Auth {
	case models.AuthAuthenticated:
		auth = styles.ok.Render("authenticated")
	case models.AuthFailed:
		auth = styles.err.Render("auth failed")
	default:
		auth = styles.warn.Render("auth pending")
	}

	return fmt.Sprintf("%s  %s", conn, auth)
}

// statusBadge paints a job status with the palette color for its kind.
func (m *Model) statusBadge(s models.JobStatus) string {
	switch s {
	case models.StatusCompleted:
		return styles.ok.Render(string(s))
	case models.StatusFailed:
		return styles.err.Render(string(s))
	case models.StatusCompletedWithErrors:
		return styles.warn.Render(string(s))
	default:
		return styles.help.Render(string(s))
	}
}
