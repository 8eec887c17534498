package listview

import (
	"context"
	"sync"

	"github.com/alfredjeanlab/portal/internal/client"
	"github.com/alfredjeanlab/portal/internal/model"
)

// mockClient is an in-memory CollectionClient that records every call.
type mockClient struct {
	mu sync.Mutex

	items      []model.Record
	pagination model.Pagination
	unpaged    bool

	// Optional overrides.
	listFn   func(ctx context.Context, req *client.ListRequest) (*client.ListResponse, error)
	listErr  error
	writeErr error

	listCalls   []client.ListRequest
	updates     []map[string]any
	statusCalls []string
	deletes     []string
	creates     []map[string]any
}

func (m *mockClient) List(ctx context.Context, res *model.Resource, req *client.ListRequest) (*client.ListResponse, error) {
	m.mu.Lock()
	m.listCalls = append(m.listCalls, *req)
	fn, err := m.listFn, m.listErr
	items := make([]model.Record, len(m.items))
	for i, rec := range m.items {
		items[i] = rec.Clone()
	}
	p, unpaged := m.pagination, m.unpaged
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	if p == (model.Pagination{}) {
		p = model.Pagination{CurrentPage: req.Criteria.Page, TotalPages: 1, TotalRecords: len(items), Limit: req.Criteria.Limit}
	}
	return &client.ListResponse{Items: items, Pagination: p, Unpaged: unpaged}, nil
}

func (m *mockClient) Stats(ctx context.Context, res *model.Resource) (*model.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := &model.Stats{ByStatus: map[string]int{}}
	for _, rec := range m.items {
		st.Total++
		st.ByStatus[rec.String("status")]++
	}
	return st, nil
}

func (m *mockClient) Get(ctx context.Context, res *model.Resource, id string) (model.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.items {
		if rec.ID(res.IDField) == id {
			return rec.Clone(), nil
		}
	}
	return nil, &client.APIError{StatusCode: 404, Message: "not found"}
}

func (m *mockClient) Create(ctx context.Context, res *model.Resource, fields map[string]any) (model.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates = append(m.creates, fields)
	if m.writeErr != nil {
		return nil, m.writeErr
	}
	rec := model.Record{}.Merge(fields)
	rec[res.IDField] = "new-1"
	m.items = append(m.items, rec)
	return rec.Clone(), nil
}

func (m *mockClient) Update(ctx context.Context, res *model.Resource, id string, fields map[string]any) (model.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, fields)
	if m.writeErr != nil {
		return nil, m.writeErr
	}
	return m.patchLocked(res, id, fields), nil
}

func (m *mockClient) UpdateStatus(ctx context.Context, res *model.Resource, id, status, notes string) (model.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusCalls = append(m.statusCalls, id+"="+status)
	if m.writeErr != nil {
		return nil, m.writeErr
	}
	fields := map[string]any{"status": status}
	if notes != "" {
		fields["notes"] = notes
	}
	return m.patchLocked(res, id, fields), nil
}

func (m *mockClient) Delete(ctx context.Context, res *model.Resource, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, id)
	if m.writeErr != nil {
		return m.writeErr
	}
	for i, rec := range m.items {
		if rec.ID(res.IDField) == id {
			m.items = append(m.items[:i:i], m.items[i+1:]...)
			break
		}
	}
	return nil
}

func (m *mockClient) Health(ctx context.Context) (string, error) { return "ok", nil }

func (m *mockClient) Close() error { return nil }

func (m *mockClient) patchLocked(res *model.Resource, id string, fields map[string]any) model.Record {
	for i, rec := range m.items {
		if rec.ID(res.IDField) == id {
			m.items[i] = rec.Merge(fields)
			return m.items[i].Clone()
		}
	}
	return model.Record{}
}

func (m *mockClient) listCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listCalls)
}

func (m *mockClient) lastList() client.ListRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls[len(m.listCalls)-1]
}

// feedbackItems is the three-record fixture used across controller tests.
func feedbackItems() []model.Record {
	return []model.Record{
		{"feedback_id": "1", "status": "pending", "name": "Ada", "email": "ada@example.com", "message": "Course page is broken", "rating": float64(4)},
		{"feedback_id": "2", "status": "resolved", "name": "Grace", "email": "grace@example.com", "message": "Great service overall", "rating": float64(5)},
		{"feedback_id": "3", "status": "pending", "name": "Linus", "email": "linus@example.com", "message": "Website search is slow", "rating": float64(2)},
	}
}

func ids(items []model.Record, field string) []string {
	out := make([]string, len(items))
	for i, rec := range items {
		out[i] = rec.ID(field)
	}
	return out
}
