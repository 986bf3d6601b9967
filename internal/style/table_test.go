package style

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestTableRender(t *testing.T) {
	table := NewTable(
		Column{Name: "SESSION", Width: 12},
		Column{Name: "HEALTH", Width: 6, Align: AlignRight},
	)
	table.AddRow("demo", "1.00")
	table.AddRow("other", "0.20")

	out := table.Render()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 4 { // header, separator, two rows
		t.Fatalf("got %d lines:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[0], "SESSION") || !strings.Contains(lines[0], "HEALTH") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasSuffix(lines[2], "1.00") {
		t.Errorf("right-aligned cell = %q", lines[2])
	}
}

func TestTableTruncates(t *testing.T) {
	table := NewTable(Column{Name: "N", Width: 8})
	table.AddRow("averylongvalue")

	out := table.Render()
	if !strings.Contains(out, "avery...") {
		t.Errorf("output = %q", out)
	}
	for _, line := range strings.Split(out, "\n") {
		if lipgloss.Width(line) > 11 {
			t.Errorf("line too wide: %q", line)
		}
	}
}

func TestTablePadsShortRows(t *testing.T) {
	table := NewTable(Column{Name: "A", Width: 3}, Column{Name: "B", Width: 3})
	table.AddRow("x")

	if out := table.Render(); !strings.Contains(out, "x") {
		t.Errorf("output = %q", out)
	}
}
