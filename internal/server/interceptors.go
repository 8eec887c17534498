package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/alfredjeanlab/portal/internal/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Session failures shared by both transports.
var (
	errNoCredentials = errors.New("missing authorization header")
	errBadScheme     = errors.New("invalid authorization scheme")
	errBadToken      = errors.New("invalid token")
)

// checkBearer validates an Authorization value against token. An empty
// token disables the check.
func checkBearer(header, token string) error {
	if token == "" {
		return nil
	}
	if header == "" {
		return errNoCredentials
	}
	provided, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return errBadScheme
	}
	if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
		return errBadToken
	}
	return nil
}

// checkSession rejects a bad token or a role the portal does not know. An
// absent role is allowed; it means an unrestricted session.
func checkSession(authHeader, token string, c caller) (codes.Code, error) {
	if err := checkBearer(authHeader, token); err != nil {
		return codes.Unauthenticated, err
	}
	if c.Role != "" && !c.Role.IsValid() {
		return codes.PermissionDenied, fmt.Errorf("unknown role %q", c.Role)
	}
	return codes.OK, nil
}

// SessionInterceptor checks the bearer token and the session role sent as
// metadata on every RPC except Health.
func SessionInterceptor(token string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if info.FullMethod == rpc.FullMethod(rpc.MethodHealth) {
			return handler(ctx, req)
		}
		if code, err := checkSession(metadataValue(ctx, "authorization"), token, callerFromMetadata(ctx)); err != nil {
			return nil, status.Error(code, err.Error())
		}
		return handler(ctx, req)
	}
}

// SessionMiddleware is SessionInterceptor for HTTP. GET /v1/health is
// exempt.
func SessionMiddleware(token string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && r.URL.Path == "/v1/health" {
			next.ServeHTTP(w, r)
			return
		}
		code, err := checkSession(r.Header.Get("Authorization"), token, callerFrom(r))
		switch code {
		case codes.OK:
			next.ServeHTTP(w, r)
		case codes.Unauthenticated:
			writeError(w, http.StatusUnauthorized, err.Error())
		default:
			writeError(w, http.StatusForbidden, err.Error())
		}
	})
}

// LoggingInterceptor logs each RPC with the collection it addressed, the
// session, and the resulting status code.
func LoggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	c := callerFromMetadata(ctx)
	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelWarn
		if status.Code(err) == codes.Internal {
			level = slog.LevelError
		}
	}
	slog.Log(ctx, level, "rpc completed",
		"method", info.FullMethod,
		"resource", requestResource(req),
		"user", c.User,
		"role", c.Role,
		"code", status.Code(err),
		"duration", time.Since(start),
	)
	return resp, err
}

func requestResource(req any) string {
	if s, ok := req.(*structpb.Struct); ok {
		return s.GetFields()["resource"].GetStringValue()
	}
	return ""
}

// RecoveryInterceptor turns a handler panic into codes.Internal.
func RecoveryInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("panic recovered in gRPC handler",
				"method", info.FullMethod,
				"panic", fmt.Sprint(p),
				"stack", string(debug.Stack()),
			)
			err = status.Error(codes.Internal, "internal server error")
		}
	}()
	return handler(ctx, req)
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush passes through so the event stream keeps working behind the logger.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// RequestLogger logs every HTTP request with its session and status, and
// turns handler panics into a 500.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			if p := recover(); p != nil {
				slog.Error("panic recovered in HTTP handler",
					"method", r.Method,
					"path", r.URL.Path,
					"panic", fmt.Sprint(p),
					"stack", string(debug.Stack()),
				)
				writeError(rec, http.StatusInternalServerError, "internal server error")
			}
			level := slog.LevelInfo
			switch {
			case rec.status >= http.StatusInternalServerError:
				level = slog.LevelError
			case rec.status >= http.StatusBadRequest:
				level = slog.LevelWarn
			}
			c := callerFrom(r)
			slog.Log(r.Context(), level, "request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"user", c.User,
				"role", c.Role,
				"status", rec.status,
				"duration", time.Since(start),
			)
		}()
		next.ServeHTTP(rec, r)
	})
}
