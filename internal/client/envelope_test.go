package client

import (
	"errors"
	"testing"

	"github.com/alfredjeanlab/portal/internal/model"
)

func criteria(page, limit int) model.FilterCriteria {
	return model.NewFilterCriteria(limit).WithPage(page)
}

func TestNormalizeList_Shapes(t *testing.T) {
	tests := []struct {
		name    string
		res     *model.Resource
		body    string
		want    model.Pagination
		wantIDs []string
	}{
		{
			name: "nested items key with pagination object",
			res:  &model.Feedback,
			body: `{"success":true,"data":{"feedbacks":[{"feedback_id":"fb-1"},{"feedback_id":"fb-2"}],
				"pagination":{"currentPage":2,"totalPages":5,"totalRecords":47,"limit":10}}}`,
			want:    model.Pagination{CurrentPage: 2, TotalPages: 5, TotalRecords: 47, Limit: 10},
			wantIDs: []string{"fb-1", "fb-2"},
		},
		{
			name: "flattened data.data with siblings",
			res:  &model.Contacts,
			body: `{"success":true,"data":{"data":[{"id":1},{"id":2},{"id":3}],"currentPage":1,"totalPages":3,"total":23}}`,
			want:    model.Pagination{CurrentPage: 1, TotalPages: 3, TotalRecords: 23, Limit: 10},
			wantIDs: []string{"1", "2", "3"},
		},
		{
			name: "data.data with pagination at the top level",
			res:  &model.Contacts,
			body: `{"success":true,"data":{"data":[{"id":7}]},"current_page":4,"total_pages":4,"total":31}`,
			want:    model.Pagination{CurrentPage: 4, TotalPages: 4, TotalRecords: 31, Limit: 10},
			wantIDs: []string{"7"},
		},
		{
			name:    "data array with total only derives total pages",
			res:     &model.Documents,
			body:    `{"success":true,"data":[{"id":"doc-1"}],"total":21,"page":"3"}`,
			want:    model.Pagination{CurrentPage: 3, TotalPages: 3, TotalRecords: 21, Limit: 10},
			wantIDs: []string{"doc-1"},
		},
		{
			name:    "items and total without envelope",
			res:     &model.Tickets,
			body:    `{"items":[{"support_ticket_id":"tk-1"}],"total":1}`,
			want:    model.Pagination{CurrentPage: 1, TotalPages: 1, TotalRecords: 1, Limit: 10},
			wantIDs: []string{"tk-1"},
		},
		{
			name:    "nested without pagination falls back to page heuristic",
			res:     &model.Documents,
			body:    `{"success":true,"data":{"documents":[{"id":"a"},{"id":"b"}]}}`,
			want:    model.Pagination{CurrentPage: 1, TotalPages: 1, TotalRecords: 2, Limit: 10},
			wantIDs: []string{"a", "b"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeList([]byte(tt.body), tt.res, criteria(1, 10))
			if err != nil {
				t.Fatalf("NormalizeList: %v", err)
			}
			if got.Pagination != tt.want {
				t.Errorf("pagination = %+v, want %+v", got.Pagination, tt.want)
			}
			if len(got.Items) != len(tt.wantIDs) {
				t.Fatalf("got %d items, want %d", len(got.Items), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if got.Items[i].ID(tt.res.IDField) != id {
					t.Errorf("item[%d] id = %q, want %q", i, got.Items[i].ID(tt.res.IDField), id)
				}
			}
		})
	}
}

func TestNormalizeList_FlatArray(t *testing.T) {
	full := `[{"support_ticket_id":"a"},{"support_ticket_id":"b"}]`

	// A full page suggests another page follows.
	got, err := NormalizeList([]byte(full), &model.Tickets, criteria(3, 2))
	if err != nil {
		t.Fatal(err)
	}
	want := model.Pagination{CurrentPage: 3, TotalPages: 4, TotalRecords: 6, Limit: 2}
	if got.Pagination != want || got.Unpaged {
		t.Errorf("full page: %+v unpaged=%v, want %+v", got.Pagination, got.Unpaged, want)
	}

	// A short page is the last page.
	got, err = NormalizeList([]byte(full), &model.Tickets, criteria(2, 10))
	if err != nil {
		t.Fatal(err)
	}
	want = model.Pagination{CurrentPage: 2, TotalPages: 2, TotalRecords: 12, Limit: 10}
	if got.Pagination != want {
		t.Errorf("short page: %+v, want %+v", got.Pagination, want)
	}

	// More records than the limit: the backend ignored paging.
	got, err = NormalizeList([]byte(`[{"support_ticket_id":"a"},{"support_ticket_id":"b"},{"support_ticket_id":"c"}]`),
		&model.Tickets, criteria(1, 2))
	if err != nil {
		t.Fatal(err)
	}
	if !got.Unpaged || got.Pagination.TotalPages != 2 || got.Pagination.TotalRecords != 3 {
		t.Errorf("unpaged: %+v unpaged=%v", got.Pagination, got.Unpaged)
	}
}

func TestNormalizeList_Empty(t *testing.T) {
	got, err := NormalizeList([]byte(`{"success":true,"data":{"feedbacks":[],"pagination":{"currentPage":1,"totalPages":0,"totalRecords":0}}}`),
		&model.Feedback, criteria(1, 10))
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Items) != 0 {
		t.Errorf("items = %v, want none", got.Items)
	}
	if got.Pagination.HasNext() || got.Pagination.HasPrev() {
		t.Errorf("empty result should disable both pager controls: %+v", got.Pagination)
	}
}

func TestNormalizeList_Errors(t *testing.T) {
	_, err := NormalizeList([]byte(`{"success":false,"message":"Not allowed"}`), &model.Feedback, criteria(1, 10))
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "Not allowed" {
		t.Errorf("success=false: err = %v", err)
	}

	for _, body := range []string{`"hello"`, `{"success":true,"data":{"count":3}}`, `not json`} {
		if _, err := NormalizeList([]byte(body), &model.Feedback, criteria(1, 10)); err == nil {
			t.Errorf("NormalizeList(%s) expected error", body)
		}
	}
}

func TestNormalizeRecord(t *testing.T) {
	tests := []struct {
		name   string
		res    *model.Resource
		body   string
		wantID string
	}{
		{"bare record", &model.Contacts, `{"id":5,"name":"Ann"}`, "5"},
		{"data record", &model.Feedback, `{"success":true,"data":{"feedback_id":"fb-1","status":"resolved"}}`, "fb-1"},
		{"data singular", &model.Tickets, `{"success":true,"data":{"ticket":{"support_ticket_id":"tk-9"}}}`, "tk-9"},
		{"bare confirmation", &model.Contacts, `{"success":true,"message":"Updated"}`, ""},
		{"empty body", &model.Contacts, ``, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := NormalizeRecord([]byte(tt.body), tt.res)
			if err != nil {
				t.Fatalf("NormalizeRecord: %v", err)
			}
			if got := rec.ID(tt.res.IDField); got != tt.wantID {
				t.Errorf("id = %q, want %q", got, tt.wantID)
			}
		})
	}
}

func TestNormalizeStats(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		total      int
		byStatus   map[string]int
		byCategory map[string]int
	}{
		{
			name:     "grouped maps",
			body:     `{"success":true,"data":{"total":10,"by_status":{"pending":4,"resolved":6},"by_category":{"course":3}}}`,
			total:    10,
			byStatus: map[string]int{"pending": 4, "resolved": 6}, byCategory: map[string]int{"course": 3},
		},
		{
			name:     "aggregation rows",
			body:     `{"data":{"byStatus":[{"_id":"open","count":2},{"status":"closed","count":5}]}}`,
			total:    7,
			byStatus: map[string]int{"open": 2, "closed": 5},
		},
		{
			name:     "flat counters",
			body:     `{"success":true,"data":{"total":9,"new":3,"read":6}}`,
			total:    9,
			byStatus: map[string]int{"new": 3, "read": 6},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := NormalizeStats([]byte(tt.body), &model.Feedback)
			if err != nil {
				t.Fatal(err)
			}
			if st.Total != tt.total {
				t.Errorf("total = %d, want %d", st.Total, tt.total)
			}
			if !equalCounts(st.ByStatus, tt.byStatus) {
				t.Errorf("by_status = %v, want %v", st.ByStatus, tt.byStatus)
			}
			if tt.byCategory != nil && !equalCounts(st.ByCategory, tt.byCategory) {
				t.Errorf("by_category = %v, want %v", st.ByCategory, tt.byCategory)
			}
		})
	}
}

func equalCounts(a, b map[string]int) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
