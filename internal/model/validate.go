package model

import (
	"fmt"
	"net/mail"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// ByField groups the messages by field name for rendering next to inputs.
func (e *ValidationError) ByField() map[string][]string {
	out := make(map[string][]string, len(e.Errors))
	for _, fe := range e.Errors {
		out[fe.Field] = append(out[fe.Field], fe.Message)
	}
	return out
}

// ValidateCreate runs the create pipeline (schema, then manual rules) over a
// new record payload. It returns a *ValidationError if any rule fails.
func ValidateCreate(r *Resource, payload map[string]any) error {
	return validate(r, payload, SchemaCreate)
}

// ValidateUpdate runs the pipeline over a partial update; only fields
// present in the payload are checked.
func ValidateUpdate(r *Resource, payload map[string]any) error {
	return validate(r, payload, SchemaUpdate)
}

func validate(r *Resource, payload map[string]any, mode SchemaMode) error {
	errs, err := validateSchema(r, payload, mode)
	if err != nil {
		return err
	}
	var ve ValidationError
	ve.Errors = append(ve.Errors, errs...)
	ve.Errors = append(ve.Errors, manualRules(r, payload, mode)...)
	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// manualRules are the checks a JSON Schema cannot express.
func manualRules(r *Resource, p map[string]any, mode SchemaMode) []FieldError {
	var errs []FieldError

	// Required strings must carry more than whitespace.
	for _, d := range r.Fields {
		if !d.Required {
			continue
		}
		v, present := p[d.Name]
		if !present && mode == SchemaUpdate {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			errs = append(errs, FieldError{Field: d.Name, Message: "is required"})
		}
	}

	// Email addresses must parse, not just match the schema's loose format.
	for _, d := range r.Fields {
		if d.Type != FieldTypeEmail {
			continue
		}
		if s, ok := p[d.Name].(string); ok && s != "" {
			if _, err := mail.ParseAddress(s); err != nil {
				errs = append(errs, FieldError{Field: d.Name, Message: "must be a valid email address"})
			}
		}
	}

	// Ratings are whole stars from 1 to 5.
	if _, ok := r.Field("rating"); ok {
		if n, ok := p["rating"].(float64); ok && (n < 1 || n > 5) {
			errs = append(errs, FieldError{
				Field:   "rating",
				Message: fmt.Sprintf("must be between 1 and 5, got %v", FormatValue(n)),
			})
		}
	}

	// Free-text messages need enough content to act on.
	if d, ok := r.Field("message"); ok && d.Required {
		if s, ok := p["message"].(string); ok && strings.TrimSpace(s) != "" && len([]rune(strings.TrimSpace(s))) < 10 {
			errs = append(errs, FieldError{Field: "message", Message: "must be at least 10 characters"})
		}
	}

	return errs
}

// ValidateStatusChange checks a status update against the resource's status
// set. Closing a ticket requires resolution notes.
func ValidateStatusChange(r *Resource, status, notes string) error {
	var ve ValidationError
	if !r.ValidStatus(status) {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "status",
			Message: fmt.Sprintf("invalid value %q (one of %s)", status, strings.Join(r.Statuses, ", ")),
		})
	}
	if r.Name == Tickets.Name && (status == "resolved" || status == "closed") && strings.TrimSpace(notes) == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "notes", Message: "is required when resolving a ticket"})
	}
	if ve.HasErrors() {
		return &ve
	}
	return nil
}
