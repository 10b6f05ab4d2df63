// internal/render/render.go
package render

import (
	"fmt"
	"libracat/internal/catalog"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Columns are the catalog table headings, shared with the TUI.
var Columns = []string{"ID", "Title", "Author", "Page Count", "Year", "Type", "Popularity"}

const barRune = "█"

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	barStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// Row formats one item. Book-only cells stay empty for plain items.
func Row(it *catalog.Item) []string {
	row := []string{strconv.FormatInt(it.ID, 10), it.Title, "", "", "", strconv.Itoa(it.Type), ""}
	if it.IsBook() {
		row[2] = it.Author
		row[3] = strconv.Itoa(it.PageCount)
		row[4] = strconv.Itoa(it.Year)
		row[6] = strconv.Itoa(it.Popularity)
	}
	return row
}

// Table renders items as a bordered table in catalog order.
func Table(items []*catalog.Item) string {
	if len(items) == 0 {
		return mutedStyle.Render("catalog is empty")
	}

	rows := make([][]string, len(items))
	for i, it := range items {
		rows[i] = Row(it)
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(Columns...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	return t.String()
}

// Chart renders popularity as horizontal bars. The longest bar is width
// cells; every title with views gets at least one cell.
func Chart(entries []catalog.PopularityEntry, width int) string {
	if len(entries) == 0 {
		return mutedStyle.Render("no books viewed yet")
	}
	if width < 1 {
		width = 40
	}

	maxViews, labelWidth := 0, 0
	for _, e := range entries {
		if e.Views > maxViews {
			maxViews = e.Views
		}
		if w := lipgloss.Width(e.Title); w > labelWidth {
			labelWidth = w
		}
	}

	var b strings.Builder
	for i, e := range entries {
		n := 0
		if maxViews > 0 && e.Views > 0 {
			n = e.Views * width / maxViews
			if n == 0 {
				n = 1
			}
		}
		label := e.Title + strings.Repeat(" ", labelWidth-lipgloss.Width(e.Title))
		fmt.Fprintf(&b, "%s │ %s %d", label, barStyle.Render(strings.Repeat(barRune, n)), e.Views)
		if i < len(entries)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
