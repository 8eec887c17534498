package model

import (
	"strings"
	"testing"
)

// validFeedback returns a payload that passes the create pipeline.
func validFeedback() map[string]any {
	return map[string]any{
		"name":     "Ada Lovelace",
		"email":    "ada@example.com",
		"message":  "The course schedule page is out of date.",
		"category": "course",
		"rating":   float64(4),
	}
}

// fieldErrors extracts a *ValidationError from err or fails the test.
func fieldErrors(t *testing.T, err error) []FieldError {
	t.Helper()
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T: %v", err, err)
	}
	return ve.Errors
}

// hasFieldError reports whether the error list contains an error for the given field.
func hasFieldError(errs []FieldError, field string) bool {
	for _, fe := range errs {
		if fe.Field == field {
			return true
		}
	}
	return false
}

func TestValidateCreate_Valid(t *testing.T) {
	if err := ValidateCreate(&Feedback, validFeedback()); err != nil {
		t.Fatalf("ValidateCreate() = %v, want nil", err)
	}
}

func TestValidateCreate_RequiredFields(t *testing.T) {
	p := validFeedback()
	delete(p, "name")
	delete(p, "email")
	errs := fieldErrors(t, ValidateCreate(&Feedback, p))
	if !hasFieldError(errs, "name") {
		t.Errorf("expected error on name, got %v", errs)
	}
	if !hasFieldError(errs, "email") {
		t.Errorf("expected error on email, got %v", errs)
	}
}

func TestValidateCreate_WhitespaceOnly(t *testing.T) {
	p := validFeedback()
	p["name"] = "   \t "
	errs := fieldErrors(t, ValidateCreate(&Feedback, p))
	if !hasFieldError(errs, "name") {
		t.Errorf("expected error on name for whitespace-only value, got %v", errs)
	}
}

func TestValidateCreate_SchemaTypes(t *testing.T) {
	for _, tc := range []struct {
		name  string
		field string
		value any
	}{
		{"rating not integer", "rating", 3.5},
		{"rating string", "rating", "five"},
		{"category not in enum", "category", "gossip"},
		{"message too long", "message", strings.Repeat("x", 5001)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p := validFeedback()
			p[tc.field] = tc.value
			errs := fieldErrors(t, ValidateCreate(&Feedback, p))
			if !hasFieldError(errs, tc.field) {
				t.Errorf("expected error on %s, got %v", tc.field, errs)
			}
		})
	}
}

func TestValidateCreate_UnknownField(t *testing.T) {
	p := validFeedback()
	p["secret"] = "x"
	errs := fieldErrors(t, ValidateCreate(&Feedback, p))
	if !hasFieldError(errs, "secret") {
		t.Errorf("expected error on unknown field, got %v", errs)
	}
}

func TestValidateCreate_ManualRules(t *testing.T) {
	for _, tc := range []struct {
		name  string
		field string
		value any
	}{
		{"rating below range", "rating", float64(0)},
		{"rating above range", "rating", float64(6)},
		{"message too short", "message", "too short"},
		{"email unparseable", "email", "not an email"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p := validFeedback()
			p[tc.field] = tc.value
			errs := fieldErrors(t, ValidateCreate(&Feedback, p))
			if !hasFieldError(errs, tc.field) {
				t.Errorf("expected error on %s, got %v", tc.field, errs)
			}
		})
	}
}

func TestValidateUpdate_Partial(t *testing.T) {
	if err := ValidateUpdate(&Feedback, map[string]any{"notes": "called back"}); err != nil {
		t.Errorf("partial update should not require name/email: %v", err)
	}
	if err := ValidateUpdate(&Feedback, map[string]any{"rating": nil}); err != nil {
		t.Errorf("clearing an optional field should be valid: %v", err)
	}
	errs := fieldErrors(t, ValidateUpdate(&Feedback, map[string]any{"name": ""}))
	if !hasFieldError(errs, "name") {
		t.Errorf("expected error clearing required name, got %v", errs)
	}
}

func TestValidateStatusChange(t *testing.T) {
	if err := ValidateStatusChange(&Feedback, "resolved", ""); err != nil {
		t.Errorf("feedback resolve = %v, want nil", err)
	}
	errs := fieldErrors(t, ValidateStatusChange(&Feedback, "bogus", ""))
	if !hasFieldError(errs, "status") {
		t.Errorf("expected status error, got %v", errs)
	}
	errs = fieldErrors(t, ValidateStatusChange(&Tickets, "closed", " "))
	if !hasFieldError(errs, "notes") {
		t.Errorf("expected notes error when closing a ticket, got %v", errs)
	}
	if err := ValidateStatusChange(&Tickets, "resolved", "refund issued"); err != nil {
		t.Errorf("ticket resolve with notes = %v", err)
	}
}

func TestValidationError_ByField(t *testing.T) {
	ve := &ValidationError{Errors: []FieldError{
		{Field: "email", Message: "is required"},
		{Field: "email", Message: "must be a valid email address"},
		{Field: "name", Message: "is required"},
	}}
	got := ve.ByField()
	if len(got["email"]) != 2 || len(got["name"]) != 1 {
		t.Errorf("ByField() = %v", got)
	}
	if !strings.HasPrefix(ve.Error(), "validation failed: email: is required") {
		t.Errorf("Error() = %q", ve.Error())
	}
}

func TestSchemaDocument_RequiredOnlyOnCreate(t *testing.T) {
	create := SchemaDocument(&Contacts, SchemaCreate)
	req, ok := create["required"].([]string)
	if !ok || len(req) == 0 {
		t.Fatalf("create schema required = %#v", create["required"])
	}
	update := SchemaDocument(&Contacts, SchemaUpdate)
	if _, ok := update["required"]; ok {
		t.Errorf("update schema should not list required fields: %#v", update["required"])
	}
}
