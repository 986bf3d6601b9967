package watch

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/parcoord/parcoord/internal/registry"
	"github.com/parcoord/parcoord/internal/style"
)

// View renders the dashboard.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var sections []string
	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderSessions())
	sections = append(sections, m.renderMetrics())
	if m.showHelp {
		sections = append(sections, m.help.View(m.keys))
	} else {
		sections = append(sections, style.Dim.Render("? for help"))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderHeader renders the title bar with summary counts.
func (m *Model) renderHeader() string {
	title := style.Title.Render("Parcoord Watch")

	masters, children := 0, 0
	for _, s := range m.sessions {
		switch s.Role.String() {
		case "master":
			masters++
		case "child":
			children++
		}
	}
	stats := style.Dim.Render(fmt.Sprintf("%d masters · %d children", masters, children))

	gap := m.width - lipgloss.Width(title) - lipgloss.Width(stats)
	if gap < 1 {
		gap = 1
	}
	return title + strings.Repeat(" ", gap) + stats
}

// renderSessions renders the roster table.
func (m *Model) renderSessions() string {
	if len(m.sessions) == 0 {
		return style.Dim.Render("\n  no sessions\n")
	}

	table := style.NewTable(
		style.Column{Name: "SESSION", Width: 40},
		style.Column{Name: "ROLE", Width: 6},
		style.Column{Name: "STATUS", Width: 10},
		style.Column{Name: "PROG", Width: 4, Align: style.AlignRight},
		style.Column{Name: "HEALTH", Width: 6, Align: style.AlignRight},
		style.Column{Name: "TMUX", Width: 4},
		style.Column{Name: "AGE", Width: 6, Align: style.AlignRight},
	)

	for i, s := range m.sessions {
		name := s.Name
		if i == m.cursor {
			name = style.Bold.Render("> " + name)
		} else {
			name = "  " + name
		}
		table.AddRow(
			name,
			s.Role.String(),
			style.Status(string(s.Status)),
			fmt.Sprintf("%d%%", s.Progress),
			style.Health(s.HealthScore(m.now)),
			presence(s),
			age(m.now, s.LastUpdate),
		)
	}
	return "\n" + table.Render()
}

// renderMetrics renders the sender counters line.
func (m *Model) renderMetrics() string {
	sm := m.metrics
	return style.Dim.Render(fmt.Sprintf(
		"sends: %d queued · %d done · %d failed · %d cancelled · breaker %s",
		sm.QueueDepth, sm.Completed, sm.Failed, sm.Cancelled, sm.BreakerState))
}

// presence marks tmux liveness.
func presence(s registry.Session) string {
	if s.TmuxPresent {
		return style.Good.Render("●")
	}
	return style.Bad.Render("○")
}

// age formats time since the last update.
func age(now, last time.Time) string {
	if last.IsZero() {
		return "-"
	}
	d := now.Sub(last)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
}
