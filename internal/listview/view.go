package listview

import (
	"fmt"
	"strings"

	"github.com/alfredjeanlab/portal/internal/model"
)

// State is a read-only snapshot of a screen, derived entirely from the
// controller. Renderers take a State and never call back into the
// controller.
type State struct {
	Resource    *model.Resource
	Items       []model.Record
	Pagination  model.Pagination
	Criteria    model.FilterCriteria
	Sort        model.SortSpec
	Mode        Mode
	SelectedID  string
	Selected    model.Record
	Draft       model.Record
	Expanded    string
	Banner      string
	FieldErrors map[string][]string
	Loaded      bool
}

// Pager is the pagination control row.
type Pager struct {
	Label       string
	PrevEnabled bool
	NextEnabled bool
}

// PagerFor derives the pager from pagination: Previous is disabled only on
// the first page and Next only on the last.
func PagerFor(p model.Pagination) Pager {
	return Pager{
		Label:       p.Label(),
		PrevEnabled: p.HasPrev(),
		NextEnabled: p.HasNext(),
	}
}

// Pager returns the pager for the snapshot.
func (s State) Pager() Pager { return PagerFor(s.Pagination) }

// HasError reports whether the error banner is shown.
func (s State) HasError() bool { return s.Banner != "" }

// IsEmpty reports whether the explicit empty-state view is shown: a
// successful load with nothing to display. An error is never an empty state.
func (s State) IsEmpty() bool {
	return s.Loaded && !s.HasError() && len(s.Items) == 0
}

// Filtered reports whether any search or filter constrains the view.
func (s State) Filtered() bool {
	return strings.TrimSpace(s.Criteria.Search) != "" || len(s.Criteria.Active()) > 0
}

// EmptyMessage is the text of the empty-state view.
func (s State) EmptyMessage() string {
	name := strings.ToLower(s.Resource.Title)
	if s.Filtered() {
		return fmt.Sprintf("No %s match the current filters.", name)
	}
	return fmt.Sprintf("No %s yet.", name)
}

// SortIndicator returns the arrow shown next to column key, or "".
func (s State) SortIndicator(key string) string {
	if s.Sort.Key != key {
		return ""
	}
	if s.Sort.Desc() {
		return "▼"
	}
	return "▲"
}

// FieldError returns the joined messages for field, or "".
func (s State) FieldError(field string) string {
	return strings.Join(s.FieldErrors[field], "; ")
}
