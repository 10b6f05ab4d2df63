// internal/catalog/handler.go
package catalog

import (
	"encoding/json"
	"errors"
	"libracat/internal/journal"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	service Service
	journal journal.Journal
	logger  *zap.Logger
}

// NewHandler serves service over HTTP. j may be nil, in which case the
// events endpoint returns an empty list.
func NewHandler(service Service, j journal.Journal, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, journal: j, logger: logger}
}

// ReadRoutes registers the routes that never change the catalog.
func (h *Handler) ReadRoutes(r chi.Router) {
	r.Get("/items", h.handleListItems)
	r.Get("/items/{id}", h.handleGetItem)
	r.Get("/search", h.handleSearch)
	r.Get("/popularity", h.handlePopularity)
	r.Get("/events", h.handleEvents)
}

// WriteRoutes registers the mutating routes.
func (h *Handler) WriteRoutes(r chi.Router) {
	r.Post("/items", h.handleAddItem)
	r.Put("/items/{id}", h.handleEditBook)
	r.Post("/items/{id}/views", h.handleViewBook)
	r.Delete("/items", h.handleDeleteItem)
}

// AddRequest is the body of POST /items. Author, page count and year are
// only read for books.
type AddRequest struct {
	Kind      Kind   `json:"kind"`
	Title     string `json:"title"`
	Author    string `json:"author,omitempty"`
	Type      int    `json:"type"`
	PageCount int    `json:"page_count,omitempty"`
	Year      int    `json:"year,omitempty"`
}

func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req AddRequest
	if !h.decode(w, r, &req) {
		return
	}

	var (
		item *Item
		err  error
	)
	if req.Kind == KindBook {
		item, err = h.service.AddBook(r.Context(), BookInput{
			Title:     req.Title,
			Author:    req.Author,
			Type:      req.Type,
			PageCount: req.PageCount,
			Year:      req.Year,
		})
	} else {
		item, err = h.service.AddItem(r.Context(), req.Title, req.Type)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, item)
}

func (h *Handler) handleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListItems(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if items == nil {
		items = []*Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleGetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	item, err := h.service.GetItem(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *Handler) handleEditBook(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var edit BookEdit
	if !h.decode(w, r, &edit) {
		return
	}

	item, err := h.service.EditBook(r.Context(), id, edit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *Handler) handleViewBook(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	item, err := h.service.ViewBook(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *Handler) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	title := r.URL.Query().Get("title")
	if title == "" {
		http.Error(w, "missing title", http.StatusBadRequest)
		return
	}

	item, err := h.service.DeleteByTitle(r.Context(), title)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	title := query.Get("title")
	if title == "" {
		http.Error(w, "missing title", http.StatusBadRequest)
		return
	}

	var (
		item *Item
		err  error
	)
	switch query.Get("kind") {
	case "", "item":
		item, err = h.service.FindByTitle(r.Context(), title)
	case "book":
		item, err = h.service.FindBook(r.Context(), title)
	default:
		http.Error(w, "kind must be item or book", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *Handler) handlePopularity(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.Popularity(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []PopularityEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	after, err := queryInt(query.Get("after"))
	if err != nil {
		http.Error(w, "after must be an integer", http.StatusBadRequest)
		return
	}
	limit, err := queryInt(query.Get("limit"))
	if err != nil || limit < 0 {
		http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
		return
	}

	events := []journal.Event{}
	if h.journal != nil {
		if limit == 0 {
			limit = 100
		}
		stream, err := h.journal.Stream(r.Context(), after, int(limit))
		if err != nil {
			h.fail(w, r, err)
			return
		}
		events = append(events, stream...)
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// fail writes the status matching err. Unexpected errors are logged and
// reported without detail.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		http.Error(w, "internal error", status)
		return
	}
	http.Error(w, err.Error(), status)
}

// StatusFor maps catalog errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrTitleRequired), errors.Is(err, ErrAuthorRequired):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotABook):
		return http.StatusConflict
	case errors.Is(err, ErrUnencodable):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid item ID", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func queryInt(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
