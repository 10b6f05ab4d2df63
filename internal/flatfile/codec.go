// Package flatfile reads and writes the catalog's comma-separated line
// format.
//
// Each line is one record with fields separated by commas and trimmed of
// surrounding whitespace:
//
//	id, title, type                          plain item
//	id, title, author, pageCount, year, type book
//
// There is no header, no quoting and no escaping. Text containing a
// comma or a line break cannot be represented and is rejected on write.
// Popularity counters are not part of the format.
package flatfile

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"libracat/internal/catalog"
	"strconv"
	"strings"
)

const (
	itemFields = 3
	bookFields = 6
	separator  = ", "
)

// ErrUnencodable marks text holding a separator. It is the catalog's
// sentinel so callers above the store can match it without importing
// this package.
var ErrUnencodable = catalog.ErrUnencodable

// ParseError reports the line a record could not be read from.
type ParseError struct {
	Line  int
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d: field %s: %v", e.Line, e.Field, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Decode reads records until EOF or the first malformed line. On error
// it returns the records read before the failure together with the error.
func Decode(r io.Reader) ([]catalog.Item, error) {
	var items []catalog.Item
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}

		item, err := decodeLine(text)
		if err != nil {
			var pe *ParseError
			if errors.As(err, &pe) {
				pe.Line = line
				return items, pe
			}
			return items, &ParseError{Line: line, Err: err}
		}
		items = append(items, item)
	}
	if err := scanner.Err(); err != nil {
		return items, fmt.Errorf("read catalog: %w", err)
	}
	return items, nil
}

func decodeLine(text string) (catalog.Item, error) {
	parts := strings.Split(text, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	switch len(parts) {
	case itemFields:
		id, err := parseInt(parts[0], "id")
		if err != nil {
			return catalog.Item{}, err
		}
		typeTag, err := parseInt(parts[2], "type")
		if err != nil {
			return catalog.Item{}, err
		}
		return catalog.Item{
			ID:    int64(id),
			Kind:  catalog.KindItem,
			Title: parts[1],
			Type:  typeTag,
		}, nil

	case bookFields:
		id, err := parseInt(parts[0], "id")
		if err != nil {
			return catalog.Item{}, err
		}
		pages, err := parseInt(parts[3], "pageCount")
		if err != nil {
			return catalog.Item{}, err
		}
		year, err := parseInt(parts[4], "year")
		if err != nil {
			return catalog.Item{}, err
		}
		typeTag, err := parseInt(parts[5], "type")
		if err != nil {
			return catalog.Item{}, err
		}
		return catalog.Item{
			ID:        int64(id),
			Kind:      catalog.KindBook,
			Title:     parts[1],
			Author:    parts[2],
			PageCount: pages,
			Year:      year,
			Type:      typeTag,
		}, nil

	default:
		return catalog.Item{}, fmt.Errorf("expected %d or %d fields, got %d", itemFields, bookFields, len(parts))
	}
}

func parseInt(s, field string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &ParseError{Field: field, Err: err}
	}
	return n, nil
}

// Encode writes one line per item. Nothing is written if any item holds
// text the format cannot carry.
func Encode(w io.Writer, items []catalog.Item) error {
	var buf bytes.Buffer
	for _, it := range items {
		if err := checkText(it.ID, "title", it.Title); err != nil {
			return err
		}

		fields := []string{strconv.FormatInt(it.ID, 10), it.Title}
		if it.IsBook() {
			if err := checkText(it.ID, "author", it.Author); err != nil {
				return err
			}
			fields = append(fields, it.Author, strconv.Itoa(it.PageCount), strconv.Itoa(it.Year))
		}
		fields = append(fields, strconv.Itoa(it.Type))

		buf.WriteString(strings.Join(fields, separator))
		buf.WriteByte('\n')
	}

	_, err := w.Write(buf.Bytes())
	return err
}

func checkText(id int64, field, value string) error {
	if strings.ContainsAny(value, ",\r\n") {
		return fmt.Errorf("item %d %s %q: %w", id, field, value, ErrUnencodable)
	}
	return nil
}
