package model

import (
	"fmt"
	"strconv"
	"time"
)

// Record is one row of a collection (a feedback submission, a contact
// message, a document, a support ticket) as decoded from JSON. Values are
// strings, float64 numbers, booleans, nil, nested map[string]any or []any.
type Record map[string]any

// ID returns the record's identifier rendered as a string. The field holding
// the identifier differs per resource ("id", "feedback_id", ...).
func (r Record) ID(field string) string {
	return FormatValue(r[field])
}

// String returns the value of field rendered as a string ("" when absent).
func (r Record) String(field string) string {
	return FormatValue(r[field])
}

// Has reports whether field is present and non-nil.
func (r Record) Has(field string) bool {
	v, ok := r[field]
	return ok && v != nil
}

// Clone returns a deep copy of the record. Nested objects and arrays are
// copied so the clone can be staged and edited independently.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

// Merge returns a clone of r with fields overwritten by the given values.
func (r Record) Merge(fields map[string]any) Record {
	out := r.Clone()
	if out == nil {
		out = make(Record, len(fields))
	}
	for k, v := range fields {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = cloneValue(e)
		}
		return m
	case Record:
		return t.Clone()
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = cloneValue(e)
		}
		return s
	default:
		return v
	}
}

// FormatValue renders a decoded JSON value for display and comparison.
// Whole numbers drop their fractional part so an id of 1 renders as "1".
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}
