package flatfile

import (
	"bytes"
	"errors"
	"libracat/internal/catalog"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestDecodeBothShapes(t *testing.T) {
	input := "1, Atlas of Rivers, 3\n" +
		"2, Dune, Frank Herbert, 412, 1965, 0\n"

	items, err := Decode(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, catalog.Item{ID: 1, Kind: catalog.KindItem, Title: "Atlas of Rivers", Type: 3}, items[0])
	assert.Equal(t, catalog.Item{
		ID: 2, Kind: catalog.KindBook, Title: "Dune", Author: "Frank Herbert",
		PageCount: 412, Year: 1965, Type: 0,
	}, items[1])
}

func TestDecodeTrimsAndSkipsBlankLines(t *testing.T) {
	input := "\n   7 ,  Spaced Title  ,2  \n\n"

	items, err := Decode(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(7), items[0].ID)
	assert.Equal(t, "Spaced Title", items[0].Title)
	assert.Equal(t, 2, items[0].Type)
}

func TestDecodeKeepsRecordsBeforeFailure(t *testing.T) {
	input := "1, First, 0\n" +
		"2, Second, x\n" +
		"3, Third, 0\n"

	items, err := Decode(strings.NewReader(input))
	require.Error(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "First", items[0].Title)

	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 2, pe.Line)
	assert.Equal(t, "type", pe.Field)

	var numErr *strconv.NumError
	assert.True(t, errors.As(err, &numErr))
}

func TestDecodeRejectsUnknownShape(t *testing.T) {
	// A comma inside a title shifts the field count.
	input := "1, Hello, World, 0\n"

	items, err := Decode(strings.NewReader(input))
	assert.Empty(t, items)

	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 1, pe.Line)
	assert.Contains(t, err.Error(), "got 4")
}

func TestEncodeFormat(t *testing.T) {
	items := []catalog.Item{
		{ID: 1, Kind: catalog.KindItem, Title: "Atlas", Type: 3},
		{ID: 2, Kind: catalog.KindBook, Title: "Dune", Author: "Frank Herbert", PageCount: 412, Year: 1965, Popularity: 9},
	}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, items))
	assert.Equal(t, "1, Atlas, 3\n2, Dune, Frank Herbert, 412, 1965, 0\n", buf.String())
}

func TestEncodeRejectsSeparators(t *testing.T) {
	cases := []catalog.Item{
		{ID: 1, Kind: catalog.KindItem, Title: "Hello, World"},
		{ID: 2, Kind: catalog.KindBook, Title: "Ok", Author: "Doe,\nJane"},
		{ID: 3, Kind: catalog.KindItem, Title: "two\rlines"},
	}
	for _, it := range cases {
		var buf bytes.Buffer
		err := Encode(&buf, []catalog.Item{{ID: 9, Title: "fine"}, it})
		assert.ErrorIs(t, err, ErrUnencodable)
		assert.Zero(t, buf.Len(), "nothing may be written for item %d", it.ID)
	}
}

func TestEncodeAllowsCommaFreeAuthorOnPlainItems(t *testing.T) {
	// Plain items never write the author field, so its content is irrelevant.
	var buf bytes.Buffer
	err := Encode(&buf, []catalog.Item{{ID: 1, Kind: catalog.KindItem, Title: "Map", Author: "x,y"}})
	require.NoError(t, err)
	assert.Equal(t, "1, Map, 0\n", buf.String())
}

func textGen() *rapid.Generator[string] {
	return rapid.Custom(func(t *rapid.T) string {
		s := rapid.StringMatching(`[A-Za-z0-9 .'!?-]{0,24}`).Draw(t, "text")
		return strings.TrimSpace(s)
	})
}

func itemGen() *rapid.Generator[catalog.Item] {
	return rapid.Custom(func(t *rapid.T) catalog.Item {
		it := catalog.Item{
			ID:    rapid.Int64Range(1, 1<<40).Draw(t, "id"),
			Title: textGen().Draw(t, "title"),
			Type:  rapid.IntRange(-100, 100).Draw(t, "type"),
		}
		if rapid.Bool().Draw(t, "book") {
			it.Kind = catalog.KindBook
			it.Author = textGen().Draw(t, "author")
			it.PageCount = rapid.IntRange(-10, 5000).Draw(t, "pages")
			it.Year = rapid.IntRange(-3000, 3000).Draw(t, "year")
		}
		return it
	})
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		items := rapid.SliceOfN(itemGen(), 0, 20).Draw(t, "items")

		var buf bytes.Buffer
		if err := Encode(&buf, items); err != nil {
			t.Fatalf("encode: %v", err)
		}
		got, err := Decode(&buf)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(got) != len(items) {
			t.Fatalf("got %d items, want %d", len(got), len(items))
		}
		for i := range items {
			if got[i] != items[i] {
				t.Fatalf("item %d: got %+v, want %+v", i, got[i], items[i])
			}
		}
	})
}
