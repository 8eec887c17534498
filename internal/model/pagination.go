package model

import "fmt"

// Pagination is the page position reported by the server. It is read-only
// from the UI's perspective except for the requested page.
type Pagination struct {
	CurrentPage  int `json:"current_page"`
	TotalPages   int `json:"total_pages"`
	TotalRecords int `json:"total_records"`
	Limit        int `json:"limit,omitempty"`
}

// HasPrev reports whether a previous page exists.
func (p Pagination) HasPrev() bool {
	return p.CurrentPage > 1
}

// HasNext reports whether a next page exists.
func (p Pagination) HasNext() bool {
	return p.CurrentPage < p.TotalPages
}

// Label renders the pager caption, e.g. "Page 2 of 5".
func (p Pagination) Label() string {
	current, total := p.CurrentPage, p.TotalPages
	if current < 1 {
		current = 1
	}
	if total < current {
		total = current
	}
	return fmt.Sprintf("Page %d of %d", current, total)
}

// Stats holds aggregate counts for a collection's summary cards.
type Stats struct {
	Total      int            `json:"total"`
	ByStatus   map[string]int `json:"by_status"`
	ByCategory map[string]int `json:"by_category,omitempty"`
}
