package client

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/portal/internal/model"
)

// Every response-shape guess lives in this file. The backend's collection
// endpoints disagree on envelopes:
//
//	[ {...}, {...} ]                                                  bare array
//	{"success": true, "data": {"feedbacks": [...], "pagination": {...}}}   nested
//	{"success": true, "data": {"data": [...], "currentPage": 2, ...}}      flattened
//	{"success": true, "data": [...], "total": 47, "page": 2}              data array
//
// Callers only ever see ListResponse, model.Record and model.Stats.

// Key variants seen for each pagination field, in lookup order.
var (
	currentPageKeys = []string{"currentPage", "current_page", "page"}
	totalPagesKeys  = []string{"totalPages", "total_pages", "pages", "pageCount"}
	totalKeys       = []string{"totalRecords", "total_records", "total", "totalCount", "total_count", "totalItems", "count"}
	limitKeys       = []string{"limit", "perPage", "per_page", "pageSize", "page_size"}
)

// NormalizeList decodes a collection response body into items and
// pagination. requested is the criteria the request was sent with; it fills
// pagination fields the server left out.
func NormalizeList(body []byte, res *model.Resource, requested model.FilterCriteria) (*ListResponse, error) {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", res.Name, err)
	}
	return normalizeListValue(raw, res, requested)
}

func normalizeListValue(raw any, res *model.Resource, requested model.FilterCriteria) (*ListResponse, error) {
	switch v := raw.(type) {
	case []any:
		return flatPage(toRecords(v), requested), nil
	case map[string]any:
		if err := checkSuccess(v); err != nil {
			return nil, err
		}
		var (
			items   []any
			found   bool
			sources []map[string]any
		)
		switch d := v["data"].(type) {
		case []any:
			items, found = d, true
			sources = []map[string]any{asMap(v["pagination"]), asMap(v["meta"]), v}
		case map[string]any:
			items, found = findItems(d, res)
			sources = []map[string]any{asMap(d["pagination"]), asMap(d["meta"]), d, asMap(v["pagination"]), v}
		default:
			items, found = findItems(v, res)
			sources = []map[string]any{asMap(v["pagination"]), asMap(v["meta"]), v}
		}
		if !found {
			return nil, fmt.Errorf("unrecognized %s response shape", res.Name)
		}
		records := toRecords(items)
		p, ok := readPagination(sources...)
		if !ok {
			return flatPage(records, requested), nil
		}
		return &ListResponse{Items: records, Pagination: completePagination(p, requested, len(records))}, nil
	default:
		return nil, fmt.Errorf("unrecognized %s response shape", res.Name)
	}
}

// findItems locates the record array inside an envelope object.
func findItems(m map[string]any, res *model.Resource) ([]any, bool) {
	for _, k := range []string{"data", res.ItemsKey, "items", "records", "results", res.Name} {
		if arr, ok := m[k].([]any); ok {
			return arr, true
		}
	}
	// Fall back to the only array-valued key, if there is exactly one.
	var (
		only  []any
		count int
	)
	for _, v := range m {
		if arr, ok := v.([]any); ok {
			only = arr
			count++
		}
	}
	return only, count == 1
}

// flatPage derives pagination for a bare array. An array no longer than the
// limit is taken as the requested page, and a full page suggests another one
// follows. A longer array means the backend ignored paging.
func flatPage(items []model.Record, requested model.FilterCriteria) *ListResponse {
	page, limit := requested.Page, requested.Limit
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = model.DefaultLimit
	}
	n := len(items)
	if n > limit {
		return &ListResponse{
			Items: items,
			Pagination: model.Pagination{
				CurrentPage:  page,
				TotalPages:   ceilDiv(n, limit),
				TotalRecords: n,
				Limit:        limit,
			},
			Unpaged: true,
		}
	}
	totalPages := page
	if n == limit {
		totalPages = page + 1
	}
	return &ListResponse{
		Items: items,
		Pagination: model.Pagination{
			CurrentPage:  page,
			TotalPages:   totalPages,
			TotalRecords: (page-1)*limit + n,
			Limit:        limit,
		},
	}
}

// readPagination looks for pagination fields in each source in order. A
// field is taken from the first source that has it.
func readPagination(sources ...map[string]any) (model.Pagination, bool) {
	var (
		p     model.Pagination
		found bool
	)
	pick := func(keys []string, dst *int) {
		for _, src := range sources {
			if src == nil {
				continue
			}
			for _, k := range keys {
				if n, ok := intOf(src[k]); ok {
					*dst = n
					found = true
					return
				}
			}
		}
	}
	pick(currentPageKeys, &p.CurrentPage)
	pick(totalPagesKeys, &p.TotalPages)
	pick(totalKeys, &p.TotalRecords)
	pick(limitKeys, &p.Limit)
	return p, found
}

func completePagination(p model.Pagination, requested model.FilterCriteria, n int) model.Pagination {
	if p.CurrentPage < 1 {
		p.CurrentPage = requested.Page
		if p.CurrentPage < 1 {
			p.CurrentPage = 1
		}
	}
	if p.Limit <= 0 {
		p.Limit = requested.Limit
		if p.Limit <= 0 {
			p.Limit = model.DefaultLimit
		}
	}
	if p.TotalRecords == 0 && n > 0 {
		p.TotalRecords = (p.CurrentPage-1)*p.Limit + n
	}
	if p.TotalPages == 0 && p.TotalRecords > 0 {
		p.TotalPages = ceilDiv(p.TotalRecords, p.Limit)
	}
	return p
}

// NormalizeRecord decodes a single-record response. It accepts the record
// itself, {"data": record} and {"data": {"<singular>": record}}. A
// confirmation without a record body yields an empty Record.
func NormalizeRecord(body []byte, res *model.Resource) (model.Record, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return model.Record{}, nil
	}
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decoding %s record: %w", res.Name, err)
	}
	return normalizeRecordValue(raw, res)
}

func normalizeRecordValue(raw any, res *model.Resource) (model.Record, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unrecognized %s record shape", res.Name)
	}
	if err := checkSuccess(m); err != nil {
		return nil, err
	}
	candidate := m
	if d, ok := m["data"].(map[string]any); ok {
		candidate = d
	}
	if _, ok := candidate[res.IDField]; !ok {
		for _, k := range []string{singular(res), "record", "item", res.Name} {
			if inner, ok := candidate[k].(map[string]any); ok {
				candidate = inner
				break
			}
		}
	}
	if _, ok := candidate[res.IDField]; !ok {
		// Bare confirmations such as {"success": true, "message": "updated"}.
		if _, isEnvelope := m["success"]; isEnvelope {
			return model.Record{}, nil
		}
	}
	return model.Record(candidate), nil
}

// NormalizeStats decodes a stats response. Counts may be grouped under
// by_status/byStatus as a map or as [{"status": "x", "count": n}] rows;
// ungrouped numeric keys other than the total are taken as status counts.
func NormalizeStats(body []byte, res *model.Resource) (*model.Stats, error) {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decoding %s stats: %w", res.Name, err)
	}
	return normalizeStatsValue(raw, res)
}

func normalizeStatsValue(raw any, res *model.Resource) (*model.Stats, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unrecognized %s stats shape", res.Name)
	}
	if err := checkSuccess(m); err != nil {
		return nil, err
	}
	if d, ok := m["data"].(map[string]any); ok {
		m = d
	}
	if s, ok := m["stats"].(map[string]any); ok {
		m = s
	}

	st := &model.Stats{ByStatus: map[string]int{}}
	for _, k := range []string{"total", "totalCount", "total_records", "count"} {
		if n, ok := intOf(m[k]); ok {
			st.Total = n
			break
		}
	}
	if byStatus, ok := countsOf(firstOf(m, "by_status", "byStatus", "statuses"), "status"); ok {
		st.ByStatus = byStatus
	} else {
		for k, v := range m {
			if n, ok := intOf(v); ok && k != "total" && k != "totalCount" && k != "total_records" && k != "count" {
				st.ByStatus[k] = n
			}
		}
	}
	if byCategory, ok := countsOf(firstOf(m, "by_category", "byCategory", "categories"), "category"); ok {
		st.ByCategory = byCategory
	}
	if st.Total == 0 {
		for _, n := range st.ByStatus {
			st.Total += n
		}
	}
	return st, nil
}

func countsOf(v any, groupKey string) (map[string]int, bool) {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]int, len(t))
		for k, e := range t {
			if n, ok := intOf(e); ok {
				out[k] = n
			}
		}
		return out, true
	case []any:
		out := make(map[string]int, len(t))
		for _, e := range t {
			row, ok := e.(map[string]any)
			if !ok {
				continue
			}
			key := model.FormatValue(row[groupKey])
			if key == "" {
				key = model.FormatValue(row["_id"])
			}
			if n, ok := intOf(row["count"]); ok && key != "" {
				out[key] = n
			}
		}
		return out, true
	}
	return nil, false
}

// checkSuccess turns {"success": false, ...} into an APIError even when the
// HTTP status was 2xx.
func checkSuccess(m map[string]any) error {
	if ok, present := m["success"].(bool); present && !ok {
		msg := serverMessage(m)
		if msg == "" {
			msg = fallbackMessage
		}
		return &APIError{StatusCode: http.StatusOK, Message: msg, Fields: serverFieldErrors(m)}
	}
	return nil
}

func toRecords(items []any) []model.Record {
	out := make([]model.Record, 0, len(items))
	for _, it := range items {
		if m, ok := it.(map[string]any); ok {
			out = append(out, model.Record(m))
		}
	}
	return out
}

func singular(res *model.Resource) string {
	return strings.TrimSuffix(res.ItemsKey, "s")
}

func firstOf(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v
		}
	}
	return nil
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func intOf(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, false
		}
		return int(t), true
	case int:
		return t, true
	case int64:
		return int(t), true
	case json.Number:
		n, err := t.Int64()
		return int(n), err == nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		return n, err == nil
	}
	return 0, false
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
