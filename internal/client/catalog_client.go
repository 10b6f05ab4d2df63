// internal/client/catalog_client.go
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"libracat/internal/catalog"
	"libracat/internal/journal"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrUnauthorized is returned when the server rejects the admin token.
var ErrUnauthorized = errors.New("unauthorized")

// CatalogClient talks to a libracat server and satisfies catalog.Service,
// so front ends work the same against a local or a remote catalog.
type CatalogClient struct {
	baseURL string
	token   string
	http    *http.Client
}

var _ catalog.Service = (*CatalogClient)(nil)

type Option func(*CatalogClient)

// WithToken sends token as a bearer token on every request.
func WithToken(token string) Option {
	return func(c *CatalogClient) { c.token = token }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *CatalogClient) { c.http = hc }
}

func NewCatalogClient(baseURL string, opts ...Option) *CatalogClient {
	c := &CatalogClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CatalogClient) AddItem(ctx context.Context, title string, typeTag int) (*catalog.Item, error) {
	req := catalog.AddRequest{Kind: catalog.KindItem, Title: title, Type: typeTag}
	var item catalog.Item
	if err := c.do(ctx, http.MethodPost, "/items", nil, req, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *CatalogClient) AddBook(ctx context.Context, in catalog.BookInput) (*catalog.Item, error) {
	req := catalog.AddRequest{
		Kind:      catalog.KindBook,
		Title:     in.Title,
		Author:    in.Author,
		Type:      in.Type,
		PageCount: in.PageCount,
		Year:      in.Year,
	}
	var item catalog.Item
	if err := c.do(ctx, http.MethodPost, "/items", nil, req, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *CatalogClient) GetItem(ctx context.Context, id int64) (*catalog.Item, error) {
	var item catalog.Item
	if err := c.do(ctx, http.MethodGet, itemPath(id), nil, nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *CatalogClient) FindByTitle(ctx context.Context, title string) (*catalog.Item, error) {
	return c.search(ctx, title, "")
}

func (c *CatalogClient) FindBook(ctx context.Context, title string) (*catalog.Item, error) {
	return c.search(ctx, title, "book")
}

func (c *CatalogClient) search(ctx context.Context, title, kind string) (*catalog.Item, error) {
	q := url.Values{"title": {title}}
	if kind != "" {
		q.Set("kind", kind)
	}
	var item catalog.Item
	if err := c.do(ctx, http.MethodGet, "/search", q, nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *CatalogClient) ListItems(ctx context.Context) ([]*catalog.Item, error) {
	var items []*catalog.Item
	if err := c.do(ctx, http.MethodGet, "/items", nil, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *CatalogClient) EditBook(ctx context.Context, id int64, edit catalog.BookEdit) (*catalog.Item, error) {
	var item catalog.Item
	if err := c.do(ctx, http.MethodPut, itemPath(id), nil, edit, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *CatalogClient) DeleteByTitle(ctx context.Context, title string) (*catalog.Item, error) {
	var item catalog.Item
	if err := c.do(ctx, http.MethodDelete, "/items", url.Values{"title": {title}}, nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *CatalogClient) ViewBook(ctx context.Context, id int64) (*catalog.Item, error) {
	var item catalog.Item
	if err := c.do(ctx, http.MethodPost, itemPath(id)+"/views", nil, nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *CatalogClient) Popularity(ctx context.Context) ([]catalog.PopularityEntry, error) {
	var entries []catalog.PopularityEntry
	if err := c.do(ctx, http.MethodGet, "/popularity", nil, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Events reads the server's journal after the given sequence number.
func (c *CatalogClient) Events(ctx context.Context, afterSeq int64, limit int) ([]journal.Event, error) {
	q := url.Values{
		"after": {strconv.FormatInt(afterSeq, 10)},
		"limit": {strconv.Itoa(limit)},
	}
	var events []journal.Event
	if err := c.do(ctx, http.MethodGet, "/events", q, nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (c *CatalogClient) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// statusError turns an error response back into the catalog sentinel the
// server started from.
func statusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(data))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	var sentinel error
	switch resp.StatusCode {
	case http.StatusNotFound:
		sentinel = catalog.ErrItemNotFound
	case http.StatusConflict:
		sentinel = catalog.ErrNotABook
	case http.StatusUnprocessableEntity:
		sentinel = catalog.ErrUnencodable
	case http.StatusUnauthorized:
		sentinel = ErrUnauthorized
	case http.StatusBadRequest:
		switch msg {
		case catalog.ErrTitleRequired.Error():
			return catalog.ErrTitleRequired
		case catalog.ErrAuthorRequired.Error():
			return catalog.ErrAuthorRequired
		}
	}
	if sentinel != nil {
		return fmt.Errorf("%s: %w", msg, sentinel)
	}
	return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, msg)
}

func itemPath(id int64) string {
	return "/items/" + strconv.FormatInt(id, 10)
}
