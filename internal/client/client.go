// Package client provides a transport-agnostic interface for the portal's
// record collections and HTTP/JSON and gRPC implementations of it.
package client

import (
	"context"

	"github.com/alfredjeanlab/portal/internal/model"
)

// CollectionClient is the interface every list screen and CLI command uses
// to reach the portal backend. It is implemented by HTTPClient (default) and
// GRPCClient.
type CollectionClient interface {
	// Collection reads
	List(ctx context.Context, res *model.Resource, req *ListRequest) (*ListResponse, error)
	Stats(ctx context.Context, res *model.Resource) (*model.Stats, error)

	// Single-record endpoints
	Get(ctx context.Context, res *model.Resource, id string) (model.Record, error)
	Create(ctx context.Context, res *model.Resource, fields map[string]any) (model.Record, error)
	Update(ctx context.Context, res *model.Resource, id string, fields map[string]any) (model.Record, error)
	UpdateStatus(ctx context.Context, res *model.Resource, id, status, notes string) (model.Record, error)
	Delete(ctx context.Context, res *model.Resource, id string) error

	// Health
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}

// Session identifies the signed-in user. It is passed explicitly to the
// client rather than read from ambient storage.
type Session struct {
	Token string     `json:"token,omitempty"`
	User  string     `json:"user,omitempty"`
	Role  model.Role `json:"role,omitempty"`
}

// ListRequest holds parameters for a collection read. Sort is sent to the
// backend only when set; screens that sort locally leave it zero.
type ListRequest struct {
	Criteria model.FilterCriteria
	Sort     model.SortSpec
}

// ListResponse is the normalized result of a collection read.
type ListResponse struct {
	Items      []model.Record   `json:"items"`
	Pagination model.Pagination `json:"pagination"`

	// Unpaged is set when the backend ignored page/limit and returned the
	// whole collection as a bare array. Items then holds every record.
	Unpaged bool `json:"-"`
}
