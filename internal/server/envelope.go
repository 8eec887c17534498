package server

import (
	"sort"
	"strings"

	"github.com/alfredjeanlab/portal/internal/model"
)

// The production API grew one response shape per endpoint family. The dev
// backend reproduces each so the clients are exercised against all of them.

// listEnvelope wraps one page of records in the collection's envelope.
func listEnvelope(res *model.Resource, items []model.Record, c model.FilterCriteria, total int) any {
	totalPages := 0
	if c.Limit > 0 {
		totalPages = (total + c.Limit - 1) / c.Limit
	}
	switch res.Envelope {
	case model.EnvelopeArray:
		return items
	case model.EnvelopeFlattened:
		return map[string]any{
			"success": true,
			"data": map[string]any{
				"data":        items,
				"currentPage": c.Page,
				"totalPages":  totalPages,
				"total":       total,
			},
		}
	default:
		return map[string]any{
			"success": true,
			"data": map[string]any{
				res.ItemsKey: items,
				"pagination": map[string]any{
					"currentPage":  c.Page,
					"totalPages":   totalPages,
					"totalRecords": total,
					"limit":        c.Limit,
				},
			},
		}
	}
}

// recordEnvelope wraps a single record.
func recordEnvelope(res *model.Resource, rec model.Record) any {
	switch res.Envelope {
	case model.EnvelopeArray:
		return rec
	case model.EnvelopeFlattened:
		return map[string]any{"success": true, "data": rec}
	default:
		return map[string]any{"success": true, "data": map[string]any{singular(res): rec}}
	}
}

// statsEnvelope wraps aggregate counts. The array family reports grouped
// rows rather than maps.
func statsEnvelope(res *model.Resource, st *model.Stats) any {
	switch res.Envelope {
	case model.EnvelopeArray:
		return map[string]any{
			"total":      st.Total,
			"byStatus":   countRows(st.ByStatus, "status"),
			"byCategory": countRows(st.ByCategory, "category"),
		}
	case model.EnvelopeFlattened:
		return map[string]any{"success": true, "data": map[string]any{"stats": st}}
	default:
		return map[string]any{"success": true, "data": st}
	}
}

func countRows(counts map[string]int, key string) []map[string]any {
	rows := make([]map[string]any, 0, len(counts))
	for k, n := range counts {
		rows = append(rows, map[string]any{key: k, "count": n})
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i][key].(string) < rows[j][key].(string)
	})
	return rows
}

func singular(res *model.Resource) string {
	return strings.TrimSuffix(res.ItemsKey, "s")
}
