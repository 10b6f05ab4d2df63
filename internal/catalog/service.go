// internal/catalog/service.go
package catalog

import "context"

// Service defines the catalog operations every front end works against.
type Service interface {
	AddItem(ctx context.Context, title string, typeTag int) (*Item, error)
	AddBook(ctx context.Context, in BookInput) (*Item, error)
	GetItem(ctx context.Context, id int64) (*Item, error)
	FindByTitle(ctx context.Context, title string) (*Item, error)
	FindBook(ctx context.Context, title string) (*Item, error)
	ListItems(ctx context.Context) ([]*Item, error)
	EditBook(ctx context.Context, id int64, edit BookEdit) (*Item, error)
	DeleteByTitle(ctx context.Context, title string) (*Item, error)
	ViewBook(ctx context.Context, id int64) (*Item, error)
	Popularity(ctx context.Context) ([]PopularityEntry, error)
}

// Store persists the whole catalog. Save always rewrites everything.
type Store interface {
	Load(ctx context.Context) ([]Item, error)
	Save(ctx context.Context, items []Item) error
}
