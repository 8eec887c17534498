package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/alfredjeanlab/portal/internal/model"
)

// Banner texts used when the server gives no usable message.
const (
	networkMessage   = "Unable to reach the server. Check your connection and refresh to try again."
	fallbackMessage  = "Something went wrong. Please try again."
	cancelledMessage = "The request was cancelled."
)

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string

	// Fields carries per-field messages when the server rejected a payload.
	Fields []model.FieldError
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// NotFound reports whether the server answered 404.
func (e *APIError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// NetworkError is returned when a request got no response at all.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.NotFound()
}

// UserMessage converts any error from this package into the human-readable
// text shown in an error banner.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var (
		ve     *model.ValidationError
		netErr *NetworkError
		apiErr *APIError
	)
	switch {
	case errors.As(err, &ve):
		fields := make([]string, 0, len(ve.Errors))
		seen := map[string]bool{}
		for _, fe := range ve.Errors {
			if !seen[fe.Field] {
				seen[fe.Field] = true
				fields = append(fields, fe.Field)
			}
		}
		return "Please correct the highlighted fields: " + strings.Join(fields, ", ")
	case errors.As(err, &netErr):
		return networkMessage
	case errors.As(err, &apiErr):
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return fallbackMessage
	case errors.Is(err, context.Canceled):
		return cancelledMessage
	case errors.Is(err, context.DeadlineExceeded):
		return networkMessage
	default:
		return err.Error()
	}
}

// serverMessage extracts the error message from a decoded error body. The
// backend uses {"error": "..."}, {"message": "..."} and {"error": {"message": "..."}}
// depending on the route.
func serverMessage(body map[string]any) string {
	if s, ok := body["error"].(string); ok && s != "" {
		return s
	}
	if m, ok := body["error"].(map[string]any); ok {
		if s, ok := m["message"].(string); ok && s != "" {
			return s
		}
	}
	if s, ok := body["message"].(string); ok && s != "" {
		return s
	}
	if s, ok := body["msg"].(string); ok && s != "" {
		return s
	}
	return ""
}

// serverFieldErrors extracts field-level messages from a rejected payload:
// either {"errors": {"field": "message"}} or {"errors": [{"field", "message"}]}.
func serverFieldErrors(body map[string]any) []model.FieldError {
	var out []model.FieldError
	switch errs := body["errors"].(type) {
	case map[string]any:
		for field, v := range errs {
			switch m := v.(type) {
			case string:
				out = append(out, model.FieldError{Field: field, Message: m})
			case []any:
				for _, e := range m {
					out = append(out, model.FieldError{Field: field, Message: model.FormatValue(e)})
				}
			}
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	case []any:
		for _, e := range errs {
			m, ok := e.(map[string]any)
			if !ok {
				continue
			}
			field := model.FormatValue(m["field"])
			if field == "" {
				field = model.FormatValue(m["path"])
			}
			msg := model.FormatValue(m["message"])
			if msg == "" {
				msg = model.FormatValue(m["msg"])
			}
			out = append(out, model.FieldError{Field: field, Message: msg})
		}
	}
	return out
}
