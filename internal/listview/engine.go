// Package listview implements the list-management core shared by every
// "manage records" screen: a pure filter/sort engine, a last-request-wins
// fetcher, a mutation dispatcher, a selection state machine and the
// controller that ties them to one resource.
package listview

import (
	"cmp"
	"sort"
	"strings"

	"github.com/alfredjeanlab/portal/internal/model"
)

// Apply filters items by criteria and orders the result by spec. The input
// slice is not modified. A zero spec keeps the input order.
func Apply(items []model.Record, criteria model.FilterCriteria, spec model.SortSpec, res *model.Resource) []model.Record {
	return Sort(Filter(items, criteria, res), spec)
}

// Filter returns the items matching every active criterion, in input order.
func Filter(items []model.Record, criteria model.FilterCriteria, res *model.Resource) []model.Record {
	out := make([]model.Record, 0, len(items))
	active := criteria.Active()
	search := strings.ToLower(strings.TrimSpace(criteria.Search))
	for _, rec := range items {
		if matches(rec, active, search, res) {
			out = append(out, rec)
		}
	}
	return out
}

// Matches reports whether rec satisfies criteria.
func Matches(rec model.Record, criteria model.FilterCriteria, res *model.Resource) bool {
	return matches(rec, criteria.Active(), strings.ToLower(strings.TrimSpace(criteria.Search)), res)
}

func matches(rec model.Record, active map[string]string, search string, res *model.Resource) bool {
	if search != "" && !searchMatches(rec, search, res.SearchFields) {
		return false
	}
	for key, want := range active {
		got := model.FormatValue(rec[key])
		if res.IsCategorical(key) {
			if got != want {
				return false
			}
			continue
		}
		if !strings.Contains(strings.ToLower(got), strings.ToLower(want)) {
			return false
		}
	}
	return true
}

// searchMatches reports whether the lowercased term appears in any of fields.
func searchMatches(rec model.Record, term string, fields []string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(model.FormatValue(rec[f])), term) {
			return true
		}
	}
	return false
}

// Sort returns a copy of items ordered by spec. The sort is stable in both
// directions: records with equal keys keep their input order.
func Sort(items []model.Record, spec model.SortSpec) []model.Record {
	out := make([]model.Record, len(items))
	copy(out, items)
	if spec.IsZero() {
		return out
	}
	desc := spec.Desc()
	sort.SliceStable(out, func(i, j int) bool {
		c := Compare(out[i][spec.Key], out[j][spec.Key])
		if desc {
			return c > 0
		}
		return c < 0
	})
	return out
}

// Compare orders two decoded field values: numbers numerically, strings
// lexically, false before true. A missing value compares equal to anything,
// and values of different kinds compare by their rendered text.
func Compare(a, b any) int {
	if a == nil || b == nil {
		return 0
	}
	switch x := a.(type) {
	case float64:
		if y, ok := b.(float64); ok {
			return cmp.Compare(x, y)
		}
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			default:
				return 1
			}
		}
	}
	return strings.Compare(model.FormatValue(a), model.FormatValue(b))
}

// Page slices one page out of a fully loaded collection.
func Page(items []model.Record, page, limit int) []model.Record {
	if limit <= 0 {
		return items
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * limit
	if start >= len(items) {
		return []model.Record{}
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
