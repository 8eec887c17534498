// Package memory implements store.Store in process memory. It backs the
// development server when no database URL is configured and the server
// tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/alfredjeanlab/portal/internal/listview"
	"github.com/alfredjeanlab/portal/internal/model"
	"github.com/alfredjeanlab/portal/internal/store"
)

// Store keeps each resource's records in insertion order.
type Store struct {
	mu      sync.RWMutex
	records map[string][]model.Record
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{records: make(map[string][]model.Record)}
}

// ListRecords filters and sorts with the same engine the screens use, then
// cuts the requested page.
func (s *Store) ListRecords(ctx context.Context, res *model.Resource, q store.Query) ([]model.Record, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	matched := listview.Apply(s.records[res.Name], q.Criteria, q.Sort, res)
	s.mu.RUnlock()

	total := len(matched)
	if q.Criteria.Limit > 0 {
		matched = listview.Page(matched, max(q.Criteria.Page, 1), q.Criteria.Limit)
	}
	out := make([]model.Record, len(matched))
	for i, rec := range matched {
		out[i] = rec.Clone()
	}
	return out, total, nil
}

func (s *Store) GetRecord(ctx context.Context, res *model.Resource, id string) (model.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexLocked(res, id)
	if i < 0 {
		return nil, store.ErrNotFound
	}
	return s.records[res.Name][i].Clone(), nil
}

func (s *Store) CreateRecord(ctx context.Context, res *model.Resource, rec model.Record) error {
	id := rec.ID(res.IDField)
	if id == "" {
		return fmt.Errorf("create %s: missing %s", res.Name, res.IDField)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexLocked(res, id) >= 0 {
		return fmt.Errorf("create %s: duplicate id %q", res.Name, id)
	}
	s.records[res.Name] = append(s.records[res.Name], rec.Clone())
	return nil
}

// UpdateRecord merges fields into the record. The identifier field cannot
// be changed.
func (s *Store) UpdateRecord(ctx context.Context, res *model.Resource, id string, fields map[string]any) (model.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(res, id)
	if i < 0 {
		return nil, store.ErrNotFound
	}
	cur := s.records[res.Name][i]
	next := cur.Merge(fields)
	next[res.IDField] = cur[res.IDField]
	s.records[res.Name][i] = next
	return next.Clone(), nil
}

func (s *Store) DeleteRecord(ctx context.Context, res *model.Resource, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(res, id)
	if i < 0 {
		return store.ErrNotFound
	}
	recs := s.records[res.Name]
	s.records[res.Name] = append(recs[:i:i], recs[i+1:]...)
	return nil
}

func (s *Store) RecordStats(ctx context.Context, res *model.Resource) (*model.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := &model.Stats{ByStatus: map[string]int{}, ByCategory: map[string]int{}}
	for _, rec := range s.records[res.Name] {
		st.Total++
		if v := rec.String("status"); v != "" {
			st.ByStatus[v]++
		}
		if v := rec.String("category"); v != "" {
			st.ByCategory[v]++
		}
	}
	return st, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

func (s *Store) indexLocked(res *model.Resource, id string) int {
	for i, rec := range s.records[res.Name] {
		if rec.ID(res.IDField) == id {
			return i
		}
	}
	return -1
}
