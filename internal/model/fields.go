package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FieldType identifies the value type of an editable field.
type FieldType string

const (
	FieldTypeString    FieldType = "string"
	FieldTypeInteger   FieldType = "integer"
	FieldTypeFloat     FieldType = "float"
	FieldTypeBoolean   FieldType = "boolean"
	FieldTypeTimestamp FieldType = "timestamp"
	FieldTypeEnum      FieldType = "enum"
	FieldTypeEmail     FieldType = "email"
	FieldTypeURL       FieldType = "url"
)

// FieldDef describes a single editable field of a resource.
type FieldDef struct {
	Name      string    `json:"name"`
	Type      FieldType `json:"type"`
	Required  bool      `json:"required,omitempty"`
	MaxLength int       `json:"max_length,omitempty"`
	Values    []string  `json:"values,omitempty"` // allowed values for enum
}

// ParseFieldValue converts raw user input into the typed value the field
// holds, so staged drafts carry numbers and booleans rather than strings.
// An empty raw value clears the field (nil).
func ParseFieldValue(d FieldDef, raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	switch d.Type {
	case FieldTypeInteger:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: must be an integer", d.Name)
		}
		return float64(n), nil
	case FieldTypeFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: must be a number", d.Name)
		}
		return f, nil
	case FieldTypeBoolean:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: must be true or false", d.Name)
		}
		return b, nil
	case FieldTypeTimestamp:
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("%s: must be an RFC 3339 timestamp", d.Name)
		}
		return t.UTC().Format(time.RFC3339), nil
	case FieldTypeEnum:
		if !contains(d.Values, raw) {
			return nil, fmt.Errorf("%s: must be one of %v", d.Name, d.Values)
		}
		return raw, nil
	case FieldTypeString, FieldTypeEmail, FieldTypeURL:
		return raw, nil
	default:
		return nil, fmt.Errorf("%s: unknown field type %q", d.Name, d.Type)
	}
}

// ParseAssignments parses "key=value" pairs against the resource's field
// definitions.
func ParseAssignments(r *Resource, pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid assignment %q (expected key=value)", p)
		}
		d, known := r.Field(k)
		if !known {
			return nil, fmt.Errorf("unknown field %q for %s", k, r.Name)
		}
		val, err := ParseFieldValue(d, v)
		if err != nil {
			return nil, err
		}
		out[k] = val
	}
	return out, nil
}

func contains(slice []string, val string) bool {
	for _, s := range slice {
		if s == val {
			return true
		}
	}
	return false
}
