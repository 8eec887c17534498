package server

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alfredjeanlab/portal/internal/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func okHandler(context.Context, any) (any, error) { return "ok", nil }

var listInfo = &grpc.UnaryServerInfo{FullMethod: rpc.FullMethod(rpc.MethodList)}

func TestCheckBearer(t *testing.T) {
	for _, tc := range []struct {
		header, token string
		want          error
	}{
		{"", "", nil},
		{"Bearer anything", "", nil},
		{"", "secret", errNoCredentials},
		{"Basic secret", "secret", errBadScheme},
		{"Bearer wrong", "secret", errBadToken},
		{"Bearer secret", "secret", nil},
	} {
		if got := checkBearer(tc.header, tc.token); got != tc.want {
			t.Errorf("checkBearer(%q, %q) = %v, want %v", tc.header, tc.token, got, tc.want)
		}
	}
}

func TestSessionInterceptor(t *testing.T) {
	for _, tc := range []struct {
		name  string
		token string
		md    metadata.MD
		info  *grpc.UnaryServerInfo
		want  codes.Code
	}{
		{"auth disabled", "", nil, listInfo, codes.OK},
		{"health exempt", "secret", nil, &grpc.UnaryServerInfo{FullMethod: rpc.FullMethod(rpc.MethodHealth)}, codes.OK},
		{"no metadata", "secret", nil, listInfo, codes.Unauthenticated},
		{"no authorization", "secret", metadata.Pairs("x-portal-role", "admin"), listInfo, codes.Unauthenticated},
		{"wrong token", "secret", metadata.Pairs("authorization", "Bearer wrong"), listInfo, codes.Unauthenticated},
		{"wrong scheme", "secret", metadata.Pairs("authorization", "Basic secret"), listInfo, codes.Unauthenticated},
		{"valid token", "secret", metadata.Pairs("authorization", "Bearer secret"), listInfo, codes.OK},
		{"student session", "secret", metadata.Pairs("authorization", "Bearer secret", "x-portal-role", "Student"), listInfo, codes.OK},
		{"unknown role", "", metadata.Pairs("x-portal-role", "guest"), listInfo, codes.PermissionDenied},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			if tc.md != nil {
				ctx = metadata.NewIncomingContext(ctx, tc.md)
			}
			resp, err := SessionInterceptor(tc.token)(ctx, nil, tc.info, okHandler)
			if got := status.Code(err); got != tc.want {
				t.Fatalf("code = %v, want %v (err %v)", got, tc.want, err)
			}
			if tc.want == codes.OK && resp != "ok" {
				t.Fatalf("resp = %v, handler not called", resp)
			}
		})
	}
}

func TestSessionMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	for _, tc := range []struct {
		name   string
		token  string
		target string
		header map[string]string
		want   int
	}{
		{"auth disabled", "", "/v1/feedback", nil, http.StatusOK},
		{"health exempt", "secret", "/v1/health", nil, http.StatusOK},
		{"no header", "secret", "/v1/feedback", nil, http.StatusUnauthorized},
		{"wrong token", "secret", "/v1/feedback", map[string]string{"Authorization": "Bearer wrong"}, http.StatusUnauthorized},
		{"wrong scheme", "secret", "/v1/feedback", map[string]string{"Authorization": "Basic secret"}, http.StatusUnauthorized},
		{"valid token", "secret", "/v1/feedback", map[string]string{"Authorization": "Bearer secret"}, http.StatusOK},
		{"client session", "", "/v1/documents", map[string]string{headerRole: "client"}, http.StatusOK},
		{"unknown role", "", "/v1/documents", map[string]string{headerRole: "guest"}, http.StatusForbidden},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.target, nil)
			for k, v := range tc.header {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			SessionMiddleware(tc.token, next).ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d; body: %s", rec.Code, tc.want, rec.Body.String())
			}
		})
	}
}

// captureLog routes the default logger to a buffer for the test.
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestLoggingInterceptor_RecordsSession(t *testing.T) {
	logs := captureLog(t)

	req, err := structpb.NewStruct(map[string]any{"resource": "tickets"})
	if err != nil {
		t.Fatal(err)
	}
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-portal-user", "alice", "x-portal-role", "client"))
	_, _ = LoggingInterceptor(ctx, req, listInfo, func(context.Context, any) (any, error) {
		return nil, status.Error(codes.PermissionDenied, "forbidden")
	})

	out := logs.String()
	for _, want := range []string{"level=WARN", "resource=tickets", "user=alice", "role=client", "code=PermissionDenied"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %s: %s", want, out)
		}
	}
}

func TestRequestLogger_RecoversPanics(t *testing.T) {
	logs := captureLog(t)
	handler := RequestLogger(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/feedback", nil)
	req.Header.Set(headerUser, "bob")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(logs.String(), "user=bob") {
		t.Errorf("request log has no session: %s", logs.String())
	}
}

func TestRecoveryInterceptor(t *testing.T) {
	_, err := RecoveryInterceptor(context.Background(), nil, listInfo,
		func(context.Context, any) (any, error) { panic("boom") })
	if status.Code(err) != codes.Internal {
		t.Fatalf("code = %v, want Internal", status.Code(err))
	}
}
