// Package watch is the live session dashboard. It polls the registry and
// sender metrics on a fixed cadence and renders the roster with health
// scores.
package watch

import (
	"sort"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/parcoord/parcoord/internal/registry"
	"github.com/parcoord/parcoord/internal/sender"
)

// refreshInterval is the polling cadence.
const refreshInterval = 2 * time.Second

// DataSource supplies the dashboard's data. *coord.Coordinator satisfies
// it.
type DataSource interface {
	QueryAll() map[string]registry.Session
	Metrics() sender.MetricsSnapshot
}

// Model is the bubbletea model for the watch dashboard.
type Model struct {
	source DataSource

	sessions []registry.Session
	metrics  sender.MetricsSnapshot
	now      time.Time

	cursor   int
	keys     KeyMap
	help     help.Model
	showHelp bool
	width    int
	height   int
}

// New creates a dashboard model over a data source.
func New(source DataSource) *Model {
	return &Model{
		source: source,
		keys:   DefaultKeyMap(),
		help:   help.New(),
	}
}

// Init starts the refresh cycle.
func (m *Model) Init() tea.Cmd {
	return m.fetch
}

// refreshMsg carries one polled snapshot.
type refreshMsg struct {
	sessions []registry.Session
	metrics  sender.MetricsSnapshot
	now      time.Time
}

// fetch polls the data source.
func (m *Model) fetch() tea.Msg {
	all := m.source.QueryAll()
	sessions := make([]registry.Session, 0, len(all))
	for _, s := range all {
		sessions = append(sessions, s)
	}
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].ProjectID != sessions[j].ProjectID {
			return sessions[i].ProjectID < sessions[j].ProjectID
		}
		return sessions[i].Name < sessions[j].Name
	})
	return refreshMsg{sessions: sessions, metrics: m.source.Metrics(), now: time.Now()}
}

// scheduleRefresh arms the next poll.
func scheduleRefresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

type tickMsg struct{}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case refreshMsg:
		m.sessions = msg.sessions
		m.metrics = msg.metrics
		m.now = msg.now
		if max := len(m.sessions) - 1; m.cursor > max && max >= 0 {
			m.cursor = max
		}
		return m, scheduleRefresh()

	case tickMsg:
		return m, m.fetch

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
			return m, nil

		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil

		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(m.sessions)-1 {
				m.cursor++
			}
			return m, nil

		case key.Matches(msg, m.keys.Top):
			m.cursor = 0
			return m, nil

		case key.Matches(msg, m.keys.Bottom):
			if len(m.sessions) > 0 {
				m.cursor = len(m.sessions) - 1
			}
			return m, nil

		case key.Matches(msg, m.keys.Refresh):
			return m, m.fetch
		}
	}

	return m, nil
}
