package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/alfredjeanlab/portal/internal/model"
	"github.com/alfredjeanlab/portal/internal/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// GRPCClient implements CollectionClient using the gRPC transport.
type GRPCClient struct {
	conn    *grpc.ClientConn
	client  *rpc.CollectionsClient
	session Session
}

// NewGRPCClient connects to the given gRPC address and returns a client.
func NewGRPCClient(addr string, session Session, opts ...grpc.DialOption) (*GRPCClient, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return &GRPCClient{
		conn:    conn,
		client:  rpc.NewCollectionsClient(conn),
		session: session,
	}, nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

// --- Collection reads ---

func (c *GRPCClient) List(ctx context.Context, res *model.Resource, req *ListRequest) (*ListResponse, error) {
	if err := req.Criteria.Validate(); err != nil {
		return nil, err
	}
	filters := map[string]any{}
	for k, v := range req.Criteria.Active() {
		filters[k] = v
	}
	in := map[string]any{
		"resource": res.Name,
		"page":     req.Criteria.Page,
		"limit":    req.Criteria.Limit,
		"filters":  filters,
	}
	if s := strings.TrimSpace(req.Criteria.Search); s != "" {
		in["search"] = s
	}
	if !req.Sort.IsZero() {
		in["sort_by"] = req.Sort.Key
		in["sort_order"] = string(req.Sort.Direction)
	}
	out, err := c.call(ctx, rpc.MethodList, in)
	if err != nil {
		return nil, err
	}
	return normalizeListValue(out, res, req.Criteria)
}

func (c *GRPCClient) Stats(ctx context.Context, res *model.Resource) (*model.Stats, error) {
	out, err := c.call(ctx, rpc.MethodStats, map[string]any{"resource": res.Name})
	if err != nil {
		return nil, err
	}
	return normalizeStatsValue(out, res)
}

// --- Single-record endpoints ---

func (c *GRPCClient) Get(ctx context.Context, res *model.Resource, id string) (model.Record, error) {
	return c.record(ctx, res, rpc.MethodGet, map[string]any{"resource": res.Name, "id": id})
}

func (c *GRPCClient) Create(ctx context.Context, res *model.Resource, fields map[string]any) (model.Record, error) {
	return c.record(ctx, res, rpc.MethodCreate, map[string]any{"resource": res.Name, "fields": fields})
}

func (c *GRPCClient) Update(ctx context.Context, res *model.Resource, id string, fields map[string]any) (model.Record, error) {
	return c.record(ctx, res, rpc.MethodUpdate, map[string]any{"resource": res.Name, "id": id, "fields": fields})
}

func (c *GRPCClient) UpdateStatus(ctx context.Context, res *model.Resource, id, status, notes string) (model.Record, error) {
	in := map[string]any{"resource": res.Name, "id": id, "status": status}
	if notes != "" {
		in["notes"] = notes
	}
	return c.record(ctx, res, rpc.MethodUpdateStatus, in)
}

func (c *GRPCClient) Delete(ctx context.Context, res *model.Resource, id string) error {
	_, err := c.call(ctx, rpc.MethodDelete, map[string]any{"resource": res.Name, "id": id})
	return err
}

// --- Health ---

func (c *GRPCClient) Health(ctx context.Context) (string, error) {
	out, err := c.call(ctx, rpc.MethodHealth, map[string]any{})
	if err != nil {
		return "", err
	}
	s, _ := out["status"].(string)
	return s, nil
}

// --- internal helpers ---

func (c *GRPCClient) record(ctx context.Context, res *model.Resource, method string, in map[string]any) (model.Record, error) {
	out, err := c.call(ctx, method, in)
	if err != nil {
		return nil, err
	}
	if rec, ok := out["record"]; ok {
		return normalizeRecordValue(rec, res)
	}
	return normalizeRecordValue(out, res)
}

// call converts in to a Struct, attaches the session as metadata and
// returns the response as a plain map.
func (c *GRPCClient) call(ctx context.Context, method string, in map[string]any) (map[string]any, error) {
	req, err := structpb.NewStruct(in)
	if err != nil {
		return nil, fmt.Errorf("encoding %s request: %w", method, err)
	}
	out, err := c.client.Call(c.outgoing(ctx), method, req)
	if err != nil {
		return nil, fromStatus(method, err)
	}
	return out.AsMap(), nil
}

func (c *GRPCClient) outgoing(ctx context.Context) context.Context {
	var kv []string
	if c.session.Token != "" {
		kv = append(kv, "authorization", "Bearer "+c.session.Token)
	}
	if c.session.User != "" {
		kv = append(kv, "x-portal-user", c.session.User)
	}
	if c.session.Role != "" {
		kv = append(kv, "x-portal-role", string(c.session.Role))
	}
	if len(kv) == 0 {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, kv...)
}

// fromStatus maps a gRPC status onto the same error types the HTTP client
// returns, so callers handle one taxonomy.
func fromStatus(method string, err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return &NetworkError{Op: method, Err: err}
	}
	switch st.Code() {
	case codes.Canceled:
		return context.Canceled
	case codes.Unavailable, codes.DeadlineExceeded:
		return &NetworkError{Op: method, Err: err}
	}
	return &APIError{StatusCode: httpStatus(st.Code()), Message: st.Message()}
}

func httpStatus(code codes.Code) int {
	switch code {
	case codes.InvalidArgument, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists, codes.Aborted:
		return http.StatusConflict
	case codes.FailedPrecondition:
		return http.StatusPreconditionFailed
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Unimplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}
