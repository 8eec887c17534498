package model

import (
	"fmt"
	"sort"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// SchemaMode selects which constraints a generated schema enforces.
type SchemaMode int

const (
	// SchemaCreate requires every required field.
	SchemaCreate SchemaMode = iota
	// SchemaUpdate validates only the fields present (partial update).
	SchemaUpdate
)

var (
	schemaMu    sync.Mutex
	schemaCache = map[string]*gojsonschema.Schema{}
)

// SchemaDocument builds the JSON Schema for a resource's editable fields.
func SchemaDocument(r *Resource, mode SchemaMode) map[string]any {
	props := make(map[string]any, len(r.Fields))
	var required []string
	for _, d := range r.Fields {
		props[d.Name] = fieldSchema(d)
		if d.Required && mode == SchemaCreate {
			required = append(required, d.Name)
		}
	}
	sort.Strings(required)
	doc := map[string]any{
		"$schema":              "http://json-schema.org/draft-07/schema#",
		"title":                r.Title,
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	return doc
}

func fieldSchema(d FieldDef) map[string]any {
	s := map[string]any{}
	nullable := !d.Required
	typ := func(t string) any {
		if nullable {
			return []any{t, "null"}
		}
		return t
	}
	switch d.Type {
	case FieldTypeInteger:
		s["type"] = typ("integer")
	case FieldTypeFloat:
		s["type"] = typ("number")
	case FieldTypeBoolean:
		s["type"] = typ("boolean")
	case FieldTypeTimestamp:
		s["type"] = typ("string")
		s["format"] = "date-time"
	case FieldTypeEnum:
		vals := make([]any, 0, len(d.Values)+1)
		for _, v := range d.Values {
			vals = append(vals, v)
		}
		if nullable {
			vals = append(vals, nil)
		}
		s["enum"] = vals
	case FieldTypeEmail:
		s["type"] = typ("string")
		s["format"] = "email"
	case FieldTypeURL:
		s["type"] = typ("string")
		s["format"] = "uri"
	default:
		s["type"] = typ("string")
		if d.Required {
			s["minLength"] = 1
		}
	}
	if d.MaxLength > 0 {
		s["maxLength"] = d.MaxLength
	}
	return s
}

func compiledSchema(r *Resource, mode SchemaMode) (*gojsonschema.Schema, error) {
	key := fmt.Sprintf("%s/%d", r.Name, mode)
	schemaMu.Lock()
	defer schemaMu.Unlock()
	if s, ok := schemaCache[key]; ok {
		return s, nil
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(SchemaDocument(r, mode)))
	if err != nil {
		return nil, fmt.Errorf("compile %s schema: %w", r.Name, err)
	}
	schemaCache[key] = s
	return s, nil
}

// validateSchema checks payload against the resource schema and returns the
// failures as field errors keyed by field name.
func validateSchema(r *Resource, payload map[string]any, mode SchemaMode) ([]FieldError, error) {
	s, err := compiledSchema(r, mode)
	if err != nil {
		return nil, err
	}
	result, err := s.Validate(gojsonschema.NewGoLoader(payload))
	if err != nil {
		return nil, fmt.Errorf("validate %s payload: %w", r.Name, err)
	}
	if result.Valid() {
		return nil, nil
	}
	errs := make([]FieldError, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		field := re.Field()
		if field == "(root)" {
			if p, ok := re.Details()["property"].(string); ok {
				field = p
			}
		}
		errs = append(errs, FieldError{Field: field, Message: re.Description()})
	}
	return errs, nil
}
