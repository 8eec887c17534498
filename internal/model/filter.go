package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Reserved criteria keys. Every other key is a field filter.
const (
	KeyPage   = "page"
	KeyLimit  = "limit"
	KeySearch = "search"
)

// DefaultLimit is the page size used when a screen does not configure one.
const DefaultLimit = 10

// FilterCriteria is the set of user-chosen constraints narrowing a
// collection view. An empty filter value means "no constraint".
type FilterCriteria struct {
	Search  string            `json:"search,omitempty"`
	Filters map[string]string `json:"filters,omitempty"`
	Page    int               `json:"page"`
	Limit   int               `json:"limit"`
}

// NewFilterCriteria returns criteria on page 1 with the given page size.
func NewFilterCriteria(limit int) FilterCriteria {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return FilterCriteria{Filters: map[string]string{}, Page: 1, Limit: limit}
}

// Clone returns a copy that shares no map with c.
func (c FilterCriteria) Clone() FilterCriteria {
	out := c
	out.Filters = make(map[string]string, len(c.Filters))
	for k, v := range c.Filters {
		out.Filters[k] = v
	}
	return out
}

// With returns a copy of c with key set to value. Changing anything other
// than the page resets the page to 1.
func (c FilterCriteria) With(key, value string) (FilterCriteria, error) {
	out := c.Clone()
	switch key {
	case KeyPage:
		n, err := parsePositive(key, value)
		if err != nil {
			return c, err
		}
		out.Page = n
		return out, nil
	case KeyLimit:
		n, err := parsePositive(key, value)
		if err != nil {
			return c, err
		}
		out.Limit = n
	case KeySearch:
		out.Search = value
	case "":
		return c, fmt.Errorf("filter key is required")
	default:
		if value == "" {
			delete(out.Filters, key)
		} else {
			out.Filters[key] = value
		}
	}
	out.Page = 1
	return out, nil
}

// WithPage returns a copy of c positioned on page n.
func (c FilterCriteria) WithPage(n int) FilterCriteria {
	out := c.Clone()
	if n < 1 {
		n = 1
	}
	out.Page = n
	return out
}

// Active returns the field filters that constrain the view, trimmed, with
// empty values dropped.
func (c FilterCriteria) Active() map[string]string {
	out := make(map[string]string, len(c.Filters))
	for k, v := range c.Filters {
		if v = strings.TrimSpace(v); v != "" {
			out[k] = v
		}
	}
	return out
}

// Validate checks the pagination bounds a collection request requires.
func (c FilterCriteria) Validate() error {
	if c.Page < 1 {
		return fmt.Errorf("page must be >= 1, got %d", c.Page)
	}
	if c.Limit <= 0 {
		return fmt.Errorf("limit must be > 0, got %d", c.Limit)
	}
	return nil
}

func parsePositive(key, value string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, value)
	}
	return n, nil
}
