// Package store defines the persistence interface used by the development
// backend. Records of every resource share one table; the resource name and
// identifier form the key.
package store

import (
	"context"
	"database/sql"

	"github.com/alfredjeanlab/portal/internal/model"
)

// ErrNotFound is returned when a record does not exist. It is sql.ErrNoRows
// so callers can match either.
var ErrNotFound = sql.ErrNoRows

// Query selects one page of a collection. A Criteria.Limit of 0 returns
// every matching record.
type Query struct {
	Criteria model.FilterCriteria
	Sort     model.SortSpec
}

// Offset returns the number of records skipped before the page.
func (q Query) Offset() int {
	if q.Criteria.Limit <= 0 || q.Criteria.Page <= 1 {
		return 0
	}
	return (q.Criteria.Page - 1) * q.Criteria.Limit
}

// Store defines the persistence interface for portal records.
type Store interface {
	// ListRecords returns one page of matching records and the total number
	// of matches across all pages.
	ListRecords(ctx context.Context, res *model.Resource, q Query) ([]model.Record, int, error)
	GetRecord(ctx context.Context, res *model.Resource, id string) (model.Record, error)
	// CreateRecord inserts rec, which must already carry its identifier and
	// timestamps.
	CreateRecord(ctx context.Context, res *model.Resource, rec model.Record) error
	// UpdateRecord merges fields into the stored record and returns the result.
	UpdateRecord(ctx context.Context, res *model.Resource, id string, fields map[string]any) (model.Record, error)
	DeleteRecord(ctx context.Context, res *model.Resource, id string) error
	RecordStats(ctx context.Context, res *model.Resource) (*model.Stats, error)

	// Lifecycle
	Close() error
}
