// internal/ui/report/table.go
package report

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Column – колонка таблицы. Width 0 означает ширину по содержимому.
type Column struct {
	Header string
	Width  int
	Align  lipgloss.Position
}

type row struct {
	cells []string
	style *lipgloss.Style
}

// Table – статическая таблица для вывода в терминал.
type Table struct {
	columns []Column
	rows    []row

	headerStyle lipgloss.Style
	rowStyle    lipgloss.Style
	borderStyle lipgloss.Style
	showBorder  bool
}

// NewTable создаёт таблицу с колонками columns.
func NewTable(columns ...Column) *Table {
	palette := DefaultPalette()

	return &Table{
		columns: columns,

		headerStyle: lipgloss.NewStyle().
			Foreground(palette.Secondary).
			Bold(true).
			Padding(0, 1),

		rowStyle: lipgloss.NewStyle().
			Foreground(palette.Text).
			Padding(0, 1),

		borderStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(palette.TextMuted),

		showBorder: true,
	}
}

// AddRow добавляет строку. Лишние ячейки отбрасываются, недостающие пусты.
func (t *Table) AddRow(cells ...string) *Table {
	t.rows = append(t.rows, row{cells: cells})
	return t
}

// AddStyledRow добавляет строку со своим цветом текста.
func (t *Table) AddStyledRow(color lipgloss.Color, cells ...string) *Table {
	style := t.rowStyle.Foreground(color)
	t.rows = append(t.rows, row{cells: cells, style: &style})
	return t
}

func (t *Table) SetShowBorder(show bool) *Table {
	t.showBorder = show
	return t
}

// RowCount возвращает число строк.
func (t *Table) RowCount() int {
	return len(t.rows)
}

// View отрисовывает таблицу.
func (t *Table) View() string {
	if len(t.columns) == 0 {
		return "No columns defined"
	}
	widths := t.columnWidths()

	var content strings.Builder
	for i, col := range t.columns {
		content.WriteString(renderCell(col.Header, widths[i], col.Align, t.headerStyle))
		if i < len(t.columns)-1 {
			content.WriteString("│")
		}
	}
	content.WriteString("\n")
	for i := range t.columns {
		// +2 на padding ячейки
		content.WriteString(strings.Repeat("─", widths[i]+2))
		if i < len(t.columns)-1 {
			content.WriteString("┼")
		}
	}

	for _, r := range t.rows {
		content.WriteString("\n")
		style := t.rowStyle
		if r.style != nil {
			style = *r.style
		}
		for i, col := range t.columns {
			cell := ""
			if i < len(r.cells) {
				cell = r.cells[i]
			}
			content.WriteString(renderCell(cell, widths[i], col.Align, style))
			if i < len(t.columns)-1 {
				content.WriteString("│")
			}
		}
	}

	result := content.String()
	if t.showBorder {
		result = t.borderStyle.Render(result)
	}
	return result
}

// columnWidths: явная ширина колонки или максимум по заголовку и ячейкам.
func (t *Table) columnWidths() []int {
	widths := make([]int, len(t.columns))
	for i, col := range t.columns {
		if col.Width > 0 {
			widths[i] = col.Width
			continue
		}
		w := lipgloss.Width(col.Header)
		for _, r := range t.rows {
			if i < len(r.cells) && lipgloss.Width(r.cells[i]) > w {
				w = lipgloss.Width(r.cells[i])
			}
		}
		widths[i] = w
	}
	return widths
}

func renderCell(content string, width int, align lipgloss.Position, style lipgloss.Style) string {
	if len(content) > width {
		if width > 3 {
			content = content[:width-3] + "..."
		} else {
			content = content[:width]
		}
	}
	// Width в lipgloss включает padding
	return style.Width(width + 2).Align(align).Render(content)
}
