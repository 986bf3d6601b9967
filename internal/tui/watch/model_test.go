package watch

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/parcoord/parcoord/internal/names"
	"github.com/parcoord/parcoord/internal/registry"
	"github.com/parcoord/parcoord/internal/sender"
)

type fakeSource struct {
	sessions map[string]registry.Session
	metrics  sender.MetricsSnapshot
}

func (f *fakeSource) QueryAll() map[string]registry.Session { return f.sessions }
func (f *fakeSource) Metrics() sender.MetricsSnapshot       { return f.metrics }

func testSource() *fakeSource {
	return &fakeSource{
		sessions: map[string]registry.Session{
			"parallel_P_task_master": {
				Name: "parallel_P_task_master", Role: names.RoleMaster, ProjectID: "P",
				Status: registry.StatusStarted, LastUpdate: time.Now(), TmuxPresent: true,
			},
			"parallel_P_task_child_T1": {
				Name: "parallel_P_task_child_T1", Role: names.RoleChild, ProjectID: "P", TaskID: "T1",
				Status: registry.StatusWorking, Progress: 40, LastUpdate: time.Now(), TmuxPresent: true,
			},
		},
		metrics: sender.MetricsSnapshot{BreakerState: "closed"},
	}
}

func refreshed(t *testing.T, m *Model) *Model {
	t.Helper()
	msg := m.fetch()
	updated, _ := m.Update(msg)
	updated2, _ := updated.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return updated2.(*Model)
}

func TestViewShowsRoster(t *testing.T) {
	m := refreshed(t, New(testSource()))

	out := m.View()
	if !strings.Contains(out, "parallel_P_task_master") ||
		!strings.Contains(out, "parallel_P_task_child_T1") {
		t.Errorf("view missing sessions:\n%s", out)
	}
	if !strings.Contains(out, "1 masters · 1 children") {
		t.Errorf("view missing summary:\n%s", out)
	}
	if !strings.Contains(out, "breaker closed") {
		t.Errorf("view missing metrics:\n%s", out)
	}
}

func TestCursorNavigation(t *testing.T) {
	m := refreshed(t, New(testSource()))

	down := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}}
	updated, _ := m.Update(down)
	m = updated.(*Model)
	if m.cursor != 1 {
		t.Errorf("cursor = %d, want 1", m.cursor)
	}
	updated, _ = m.Update(down)
	m = updated.(*Model)
	if m.cursor != 1 {
		t.Errorf("cursor moved past the last row: %d", m.cursor)
	}

	up := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'k'}}
	updated, _ = m.Update(up)
	if got := updated.(*Model).cursor; got != 0 {
		t.Errorf("cursor = %d, want 0", got)
	}
}

func TestQuitKey(t *testing.T) {
	m := refreshed(t, New(testSource()))
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("quit produced no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("quit key did not quit")
	}
}

func TestEmptyRoster(t *testing.T) {
	m := refreshed(t, New(&fakeSource{sessions: map[string]registry.Session{}}))
	if out := m.View(); !strings.Contains(out, "no sessions") {
		t.Errorf("view = %q", out)
	}
}
