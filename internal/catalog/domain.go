// internal/catalog/domain.go
package catalog

import (
	"errors"
	"fmt"
)

var (
	ErrItemNotFound   = errors.New("item not found")
	ErrNotABook       = errors.New("item is not a book")
	ErrTitleRequired  = errors.New("title is required")
	ErrAuthorRequired = errors.New("author is required")

	// ErrUnencodable is returned by stores that cannot represent a field,
	// such as a comma in a flat-file title.
	ErrUnencodable = errors.New("field cannot be stored")
)

// Kind tells plain items and books apart.
type Kind int

const (
	KindItem Kind = iota
	KindBook
)

func (k Kind) String() string {
	switch k {
	case KindItem:
		return "item"
	case KindBook:
		return "book"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	if k != KindItem && k != KindBook {
		return nil, fmt.Errorf("unknown item kind %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "item", "":
		*k = KindItem
	case "book":
		*k = KindBook
	default:
		return fmt.Errorf("unknown item kind %q", text)
	}
	return nil
}

// Item represents a library item. Books carry the author, page count,
// year and popularity fields; for plain items they stay zero.
type Item struct {
	ID         int64  `json:"id"`
	Kind       Kind   `json:"kind"`
	Title      string `json:"title"`
	Type       int    `json:"type"`
	Author     string `json:"author,omitempty"`
	PageCount  int    `json:"page_count,omitempty"`
	Year       int    `json:"year,omitempty"`
	Popularity int    `json:"popularity,omitempty"`
}

func (it *Item) IsBook() bool {
	return it.Kind == KindBook
}

// BookInput holds the fields needed to add a book.
type BookInput struct {
	Title     string `json:"title"`
	Author    string `json:"author"`
	Type      int    `json:"type"`
	PageCount int    `json:"page_count"`
	Year      int    `json:"year"`
}

// BookEdit holds the fields an edit overwrites. The type tag and the
// popularity counter are left alone.
type BookEdit struct {
	Title     string `json:"title"`
	Author    string `json:"author"`
	PageCount int    `json:"page_count"`
	Year      int    `json:"year"`
}

// PopularityEntry is one bar of the popularity chart.
type PopularityEntry struct {
	Title string `json:"title"`
	Views int    `json:"views"`
}

// Journal event types.
const (
	EventItemAdded   = "ItemAdded"
	EventBookEdited  = "BookEdited"
	EventItemDeleted = "ItemDeleted"
	EventBookViewed  = "BookViewed"
)

// ItemAddedEvent is journaled when an item or book is added.
type ItemAddedEvent struct {
	ID     int64  `json:"id"`
	Kind   Kind   `json:"kind"`
	Title  string `json:"title"`
	Author string `json:"author,omitempty"`
}

// BookEditedEvent is journaled when a book's fields are overwritten.
type BookEditedEvent struct {
	ID       int64  `json:"id"`
	OldTitle string `json:"old_title"`
	NewTitle string `json:"new_title"`
	Author   string `json:"author"`
}

// ItemDeletedEvent is journaled when the first title match is removed.
type ItemDeletedEvent struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// BookViewedEvent is journaled on every view.
type BookViewedEvent struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	Popularity int    `json:"popularity"`
	TitleViews int    `json:"title_views"`
}
