package dto

// Pagination bounds shared by every paginated listing.
const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// Page is the paginated list contract.
type Page[T any] struct {
	Total   int `json:"total"`
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Pages   int `json:"pages"`
	Items   []T `json:"items"`
}

// NewPage builds a page and computes the page count.
func NewPage[T any](items []T, total, page, perPage int) Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if perPage > 0 {
		pages = (total + perPage - 1) / perPage
	}
	return Page[T]{Total: total, Page: page, PerPage: perPage, Pages: pages, Items: items}
}

// List is an unpaginated collection.
type List[T any] struct {
	Total int `json:"total"`
	Items []T `json:"items"`
}

// NewList wraps items.
func NewList[T any](items []T) List[T] {
	if items == nil {
		items = []T{}
	}
	return List[T]{Total: len(items), Items: items}
}

// Normalize raises page to at least 1. A perPage outside 1..MaxPerPage
// falls back to DefaultPerPage rather than being clamped.
func Normalize(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > MaxPerPage {
		perPage = DefaultPerPage
	}
	return page, perPage
}

// Slice returns the window of items for page/perPage.
func Slice[T any](items []T, page, perPage int) []T {
	start := (page - 1) * perPage
	if start >= len(items) || start < 0 {
		return []T{}
	}
	end := start + perPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// Message is a bare acknowledgement.
type Message struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message"`
}
