package style

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Column defines a table column with name and width.
type Column struct {
	Name  string
	Width int
	Align Alignment
	Style lipgloss.Style
}

// Alignment specifies column text alignment.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignRight
	AlignCenter
)

// Table provides styled table rendering.
type Table struct {
	columns     []Column
	rows        [][]string
	headerSep   bool
	indent      string
	headerStyle lipgloss.Style
}

// NewTable creates a new table with the given columns.
func NewTable(columns ...Column) *Table {
	return &Table{
		columns:     columns,
		headerSep:   true,
		indent:      "  ",
		headerStyle: Bold,
	}
}

// SetIndent sets the left indent for the table.
func (t *Table) SetIndent(indent string) *Table {
	t.indent = indent
	return t
}

// SetHeaderSeparator enables/disables the header separator line.
func (t *Table) SetHeaderSeparator(enabled bool) *Table {
	t.headerSep = enabled
	return t
}

// AddRow adds a row of values to the table.
func (t *Table) AddRow(values ...string) *Table {
	for len(values) < len(t.columns) {
		values = append(values, "")
	}
	t.rows = append(t.rows, values)
	return t
}

// Render returns the formatted table string.
func (t *Table) Render() string {
	if len(t.columns) == 0 {
		return ""
	}

	var sb strings.Builder

	sb.WriteString(t.indent)
	for i, col := range t.columns {
		sb.WriteString(pad(t.headerStyle.Render(col.Name), col.Width, col.Align))
		if i < len(t.columns)-1 {
			sb.WriteString(" ")
		}
	}
	sb.WriteString("\n")

	if t.headerSep {
		sb.WriteString(t.indent)
		totalWidth := 0
		for i, col := range t.columns {
			totalWidth += col.Width
			if i < len(t.columns)-1 {
				totalWidth++ // space between columns
			}
		}
		sb.WriteString(Dim.Render(strings.Repeat("─", totalWidth)))
		sb.WriteString("\n")
	}

	for _, row := range t.rows {
		sb.WriteString(t.indent)
		for i, col := range t.columns {
			val := ""
			if i < len(row) {
				val = row[i]
			}
			if lipgloss.Width(val) > col.Width && col.Width > 3 {
				val = truncate(val, col.Width-3) + "..."
			}
			if col.Style.Value() != "" {
				val = col.Style.Render(val)
			}
			sb.WriteString(pad(val, col.Width, col.Align))
			if i < len(t.columns)-1 {
				sb.WriteString(" ")
			}
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// pad pads styled text to width, measuring display width so ANSI escape
// sequences do not count.
func pad(text string, width int, align Alignment) string {
	padding := width - lipgloss.Width(text)
	if padding <= 0 {
		return text
	}

	switch align {
	case AlignRight:
		return strings.Repeat(" ", padding) + text
	case AlignCenter:
		left := padding / 2
		right := padding - left
		return strings.Repeat(" ", left) + text + strings.Repeat(" ", right)
	default: // AlignLeft
		return text + strings.Repeat(" ", padding)
	}
}

// truncate cuts text to at most width display columns.
func truncate(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		if lipgloss.Width(b.String()+string(r)) > width {
			break
		}
		b.WriteRune(r)
	}
	return b.String()
}
