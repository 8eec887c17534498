// Package server is the portal development backend. It serves every record
// collection over HTTP/JSON, in the response envelope the production API
// uses for that collection, and over the gRPC Collections service.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alfredjeanlab/portal/internal/events"
	"github.com/alfredjeanlab/portal/internal/idgen"
	"github.com/alfredjeanlab/portal/internal/model"
	"github.com/alfredjeanlab/portal/internal/presence"
	"github.com/alfredjeanlab/portal/internal/store"
)

// Timestamp fields the server maintains on every record.
const (
	fieldCreatedAt = "created_at"
	fieldUpdatedAt = "updated_at"
)

// PortalServer implements the collection endpoints for both transports.
type PortalServer struct {
	store     store.Store
	publisher events.Publisher
	feed      *changeFeed
	presence  *presence.Tracker
	resources map[string]*model.Resource
	order     []*model.Resource

	now func() time.Time
}

// NewPortalServer returns a server for resources backed by the given store
// and publisher. A nil publisher disables change events.
func NewPortalServer(s store.Store, p events.Publisher, resources []*model.Resource) *PortalServer {
	if p == nil {
		p = &events.NoopPublisher{}
	}
	srv := &PortalServer{
		store:     s,
		publisher: p,
		feed:      newChangeFeed(),
		presence:  presence.New(),
		resources: make(map[string]*model.Resource, len(resources)),
		order:     resources,
		now:       time.Now,
	}
	for _, r := range resources {
		srv.resources[r.Name] = r
	}
	return srv
}

// inputError indicates invalid user input.
// Transport layers map this to 400 / InvalidArgument.
type inputError string

func (e inputError) Error() string { return string(e) }

// errForbidden is returned when the caller's role may not open a resource.
var errForbidden = errors.New("this role may not access the collection")

// caller identifies who made a request, from the session headers or
// metadata the clients send.
type caller struct {
	User string
	Role model.Role
}

// Presence returns the roster of users seen by this server.
func (s *PortalServer) Presence() *presence.Tracker { return s.presence }

// touch records an authorized request on the presence roster.
func (s *PortalServer) touch(res *model.Resource, c caller, action string) {
	s.presence.Record(presence.Activity{User: c.User, Role: c.Role, Resource: res.Name, Action: action})
}

// resource resolves a collection by name.
func (s *PortalServer) resource(name string) (*model.Resource, error) {
	r, ok := s.resources[name]
	if !ok {
		return nil, inputError(fmt.Sprintf("unknown resource %q", name))
	}
	return r, nil
}

// authorize checks role access. An empty role is not checked so plain
// curl requests keep working.
func authorize(res *model.Resource, c caller) error {
	if c.Role == "" || res.AllowedFor(c.Role) {
		return nil
	}
	return errForbidden
}

func (s *PortalServer) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

func (s *PortalServer) listRecords(ctx context.Context, res *model.Resource, q store.Query) ([]model.Record, int, error) {
	if q.Sort.IsZero() {
		q.Sort = res.DefaultSort
	}
	items, total, err := s.store.ListRecords(ctx, res, q)
	if err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", res.Name, err)
	}
	if items == nil {
		items = []model.Record{}
	}
	return items, total, nil
}

// createRecord validates fields, assigns the identifier, default status and
// timestamps, stores the record and announces it.
func (s *PortalServer) createRecord(ctx context.Context, res *model.Resource, fields map[string]any, c caller) (model.Record, error) {
	if fields == nil {
		fields = map[string]any{}
	}
	delete(fields, res.IDField)
	if err := model.ValidateCreate(res, fields); err != nil {
		return nil, err
	}

	id, err := idgen.ForResource(res.Name)
	if err != nil {
		return nil, fmt.Errorf("generate id: %w", err)
	}
	rec := model.Record{}.Merge(fields)
	rec[res.IDField] = id
	if _, ok := rec["status"]; !ok && len(res.Statuses) > 0 {
		rec["status"] = res.Statuses[0]
	}
	now := s.timestamp()
	rec[fieldCreatedAt] = now
	rec[fieldUpdatedAt] = now

	if err := s.store.CreateRecord(ctx, res, rec); err != nil {
		return nil, fmt.Errorf("create %s: %w", res.Name, err)
	}
	s.announce(ctx, events.RecordChanged{
		Resource: res.Name,
		Action:   events.ActionCreated,
		ID:       id,
		Record:   rec,
		Actor:    c.User,
	})
	return rec, nil
}

// updateRecord applies a partial update. A payload carrying status runs the
// status-change rules as well; the identifier is never overwritten.
func (s *PortalServer) updateRecord(ctx context.Context, res *model.Resource, id string, fields map[string]any, c caller) (model.Record, error) {
	if id == "" {
		return nil, inputError("id is required")
	}
	delete(fields, res.IDField)
	delete(fields, fieldCreatedAt)
	if len(fields) == 0 {
		return nil, inputError("no fields to update")
	}

	if st, ok := fields["status"]; ok {
		status, _ := st.(string)
		notes, _ := fields["notes"].(string)
		if err := model.ValidateStatusChange(res, status, notes); err != nil {
			return nil, err
		}
	}
	if err := model.ValidateUpdate(res, fields); err != nil {
		return nil, err
	}

	changes := model.Record(fields).Clone()
	fields[fieldUpdatedAt] = s.timestamp()
	rec, err := s.store.UpdateRecord(ctx, res, id, fields)
	if err != nil {
		return nil, err
	}
	s.announce(ctx, events.RecordChanged{
		Resource: res.Name,
		Action:   events.ActionUpdated,
		ID:       id,
		Record:   rec,
		Changes:  changes,
		Actor:    c.User,
	})
	return rec, nil
}

func (s *PortalServer) deleteRecord(ctx context.Context, res *model.Resource, id string, c caller) error {
	if id == "" {
		return inputError("id is required")
	}
	if err := s.store.DeleteRecord(ctx, res, id); err != nil {
		return err
	}
	s.announce(ctx, events.RecordChanged{
		Resource: res.Name,
		Action:   events.ActionDeleted,
		ID:       id,
		Actor:    c.User,
	})
	return nil
}

// announce publishes a change event and fans it out to SSE clients. Both
// are best-effort; failures are logged but do not fail the request.
func (s *PortalServer) announce(ctx context.Context, e events.RecordChanged) {
	if e.At.IsZero() {
		e.At = s.now().UTC()
	}
	if err := events.PublishChange(ctx, s.publisher, e); err != nil {
		slog.Warn("failed to publish event", "topic", e.Topic(), "id", e.ID, "error", err)
	}
	s.streamChange(e)
}

// Seed loads sample records into every empty collection.
func (s *PortalServer) Seed(ctx context.Context) error {
	seedCaller := caller{User: "seed"}
	for _, res := range s.order {
		_, total, err := s.store.ListRecords(ctx, res, store.Query{Criteria: model.FilterCriteria{Page: 1, Limit: 1}})
		if err != nil {
			return fmt.Errorf("seed %s: %w", res.Name, err)
		}
		if total > 0 {
			continue
		}
		for _, fields := range sampleRecords[res.Name] {
			if _, err := s.createRecord(ctx, res, model.Record(fields).Clone(), seedCaller); err != nil {
				return fmt.Errorf("seed %s: %w", res.Name, err)
			}
		}
		slog.Info("seeded collection", "resource", res.Name, "records", len(sampleRecords[res.Name]))
	}
	return nil
}

// isNotFound reports whether err means the record does not exist.
func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

// trimmed returns the non-empty, whitespace-trimmed elements of parts.
func trimmed(parts []string) []string {
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
