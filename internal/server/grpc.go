package server

import (
	"context"
	"errors"
	"path"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/portal/internal/model"
	"github.com/alfredjeanlab/portal/internal/rpc"
	"github.com/alfredjeanlab/portal/internal/store"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// NewGRPCServer creates a gRPC server with standard interceptors,
// registers the Collections service, reflection, and returns the server
// ready to serve.
func NewGRPCServer(portal *PortalServer, authToken string) *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RecoveryInterceptor,
			LoggingInterceptor,
			SessionInterceptor(authToken),
		),
	)

	rpc.RegisterCollectionsServer(srv, portal)
	reflection.Register(srv)

	return srv
}

var _ rpc.CollectionsServer = (*PortalServer)(nil)

// List returns one page of a collection as {items, pagination}.
func (s *PortalServer) List(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := in.AsMap()
	res, _, err := s.rpcTarget(ctx, req)
	if err != nil {
		return nil, err
	}

	limit := res.Limit
	if n, ok := intField(req, "limit"); ok {
		limit = n
	}
	crit := model.NewFilterCriteria(limit)
	if search, ok := req["search"].(string); ok {
		crit.Search = search
	}
	if filters, ok := req["filters"].(map[string]any); ok {
		for k, v := range filters {
			if str := model.FormatValue(v); str != "" {
				crit.Filters[k] = str
			}
		}
	}
	if n, ok := intField(req, "page"); ok {
		crit.Page = n
	}
	if err := crit.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	q := store.Query{Criteria: crit}
	if key, _ := req["sort_by"].(string); key != "" {
		q.Sort = model.SortSpec{Key: key, Direction: model.Ascending}
		if dir, _ := req["sort_order"].(string); strings.EqualFold(dir, string(model.Descending)) {
			q.Sort.Direction = model.Descending
		}
	}

	items, total, err := s.listRecords(ctx, res, q)
	if err != nil {
		return nil, toStatus(err)
	}
	rows := make([]any, len(items))
	for i, rec := range items {
		rows[i] = map[string]any(rec)
	}
	totalPages := (total + crit.Limit - 1) / crit.Limit
	return newStruct(map[string]any{
		"items": rows,
		"pagination": map[string]any{
			"currentPage":  crit.Page,
			"totalPages":   totalPages,
			"totalRecords": total,
			"limit":        crit.Limit,
		},
	})
}

// Get returns {record}.
func (s *PortalServer) Get(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := in.AsMap()
	res, _, err := s.rpcTarget(ctx, req)
	if err != nil {
		return nil, err
	}
	id, _ := req["id"].(string)
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	rec, err := s.store.GetRecord(ctx, res, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return recordStruct(rec)
}

// Create validates and stores fields as a new record.
func (s *PortalServer) Create(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := in.AsMap()
	res, c, err := s.rpcTarget(ctx, req)
	if err != nil {
		return nil, err
	}
	fields, _ := req["fields"].(map[string]any)
	rec, err := s.createRecord(ctx, res, fields, c)
	if err != nil {
		return nil, toStatus(err)
	}
	return recordStruct(rec)
}

// Update merges fields into an existing record.
func (s *PortalServer) Update(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := in.AsMap()
	res, c, err := s.rpcTarget(ctx, req)
	if err != nil {
		return nil, err
	}
	id, _ := req["id"].(string)
	fields, _ := req["fields"].(map[string]any)
	if fields == nil {
		fields = map[string]any{}
	}
	rec, err := s.updateRecord(ctx, res, id, fields, c)
	if err != nil {
		return nil, toStatus(err)
	}
	return recordStruct(rec)
}

// UpdateStatus changes a record's status, with optional notes.
func (s *PortalServer) UpdateStatus(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := in.AsMap()
	res, c, err := s.rpcTarget(ctx, req)
	if err != nil {
		return nil, err
	}
	id, _ := req["id"].(string)
	fields := map[string]any{"status": req["status"]}
	if notes, ok := req["notes"].(string); ok && notes != "" {
		fields["notes"] = notes
	}
	rec, err := s.updateRecord(ctx, res, id, fields, c)
	if err != nil {
		return nil, toStatus(err)
	}
	return recordStruct(rec)
}

// Delete removes a record.
func (s *PortalServer) Delete(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := in.AsMap()
	res, c, err := s.rpcTarget(ctx, req)
	if err != nil {
		return nil, err
	}
	id, _ := req["id"].(string)
	if err := s.deleteRecord(ctx, res, id, c); err != nil {
		return nil, toStatus(err)
	}
	return newStruct(map[string]any{"success": true})
}

// Stats returns {total, by_status, by_category}.
func (s *PortalServer) Stats(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	res, _, err := s.rpcTarget(ctx, in.AsMap())
	if err != nil {
		return nil, err
	}
	st, err := s.store.RecordStats(ctx, res)
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(map[string]any{
		"total":       st.Total,
		"by_status":   countsMap(st.ByStatus),
		"by_category": countsMap(st.ByCategory),
	})
}

// Health returns the service health status.
func (s *PortalServer) Health(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return newStruct(map[string]any{"status": "ok"})
}

// rpcTarget resolves the request's resource and checks the caller's role.
func (s *PortalServer) rpcTarget(ctx context.Context, req map[string]any) (*model.Resource, caller, error) {
	name, _ := req["resource"].(string)
	if name == "" {
		return nil, caller{}, status.Error(codes.InvalidArgument, "resource is required")
	}
	res, err := s.resource(name)
	if err != nil {
		return nil, caller{}, toStatus(err)
	}
	c := callerFromMetadata(ctx)
	if err := authorize(res, c); err != nil {
		return nil, caller{}, toStatus(err)
	}
	if method, ok := grpc.Method(ctx); ok {
		s.touch(res, c, strings.ToLower(path.Base(method)))
	}
	return res, c, nil
}

func callerFromMetadata(ctx context.Context) caller {
	return caller{
		User: metadataValue(ctx, "x-portal-user"),
		Role: model.Role(strings.ToLower(metadataValue(ctx, "x-portal-role"))),
	}
}

// metadataValue returns the first incoming value for key, or "".
func metadataValue(ctx context.Context, key string) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(key); len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

// toStatus maps errors from the server core to gRPC status codes.
func toStatus(err error) error {
	var (
		ve *model.ValidationError
		ie inputError
	)
	switch {
	case errors.As(err, &ve):
		return status.Error(codes.InvalidArgument, ve.Error())
	case errors.As(err, &ie):
		return status.Error(codes.InvalidArgument, ie.Error())
	case isNotFound(err):
		return status.Error(codes.NotFound, "record not found")
	case errors.Is(err, errForbidden):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Errorf(codes.Internal, "%v", err)
	}
}

func recordStruct(rec model.Record) (*structpb.Struct, error) {
	return newStruct(map[string]any{"record": map[string]any(rec)})
}

func newStruct(m map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding response: %v", err)
	}
	return out, nil
}

func countsMap(counts map[string]int) map[string]any {
	out := make(map[string]any, len(counts))
	for k, n := range counts {
		out[k] = n
	}
	return out
}

func intField(m map[string]any, key string) (int, bool) {
	switch v := m[key].(type) {
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	}
	return 0, false
}
