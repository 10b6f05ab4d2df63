package render

import (
	"libracat/internal/catalog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowLeavesBookCellsEmptyForItems(t *testing.T) {
	item := &catalog.Item{ID: 4, Kind: catalog.KindItem, Title: "Globe", Type: 2}
	assert.Equal(t, []string{"4", "Globe", "", "", "", "2", ""}, Row(item))

	book := &catalog.Item{ID: 5, Kind: catalog.KindBook, Title: "Dune", Author: "Frank Herbert", PageCount: 412, Year: 1965, Popularity: 3}
	assert.Equal(t, []string{"5", "Dune", "Frank Herbert", "412", "1965", "0", "3"}, Row(book))
	assert.Len(t, Row(book), len(Columns))
}

func TestTable(t *testing.T) {
	out := Table([]*catalog.Item{
		{ID: 1, Kind: catalog.KindBook, Title: "Dune", Author: "Frank Herbert", PageCount: 412, Year: 1965},
		{ID: 2, Kind: catalog.KindItem, Title: "Globe"},
	})
	for _, want := range []string{"ID", "Page Count", "Popularity", "Dune", "Frank Herbert", "412", "Globe"} {
		assert.Contains(t, out, want)
	}
	assert.Less(t, strings.Index(out, "Dune"), strings.Index(out, "Globe"), "rows keep catalog order")
}

func TestTableEmpty(t *testing.T) {
	assert.Contains(t, Table(nil), "empty")
}

func TestChartScalesBars(t *testing.T) {
	out := Chart([]catalog.PopularityEntry{
		{Title: "Dune", Views: 10},
		{Title: "Kindred", Views: 5},
		{Title: "Rare", Views: 1},
	}, 20)

	lines := strings.Split(out, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, 20, strings.Count(lines[0], barRune))
	assert.Equal(t, 10, strings.Count(lines[1], barRune))
	assert.Equal(t, 2, strings.Count(lines[2], barRune))
	assert.True(t, strings.HasSuffix(lines[1], " 5"))
}

func TestChartMinimumBar(t *testing.T) {
	out := Chart([]catalog.PopularityEntry{{Title: "A", Views: 1000}, {Title: "B", Views: 1}}, 10)
	lines := strings.Split(out, "\n")
	assert.Equal(t, 1, strings.Count(lines[1], barRune))
}

func TestChartEmpty(t *testing.T) {
	assert.Contains(t, Chart(nil, 10), "no books")
}
