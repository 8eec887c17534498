package model

import (
	"fmt"
	"slices"
	"strings"
)

// Role is the portal role of the signed-in user.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStudent Role = "student"
	RoleClient  Role = "client"
)

// IsValid checks whether the role is a known value.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleStudent, RoleClient:
		return true
	}
	return false
}

// SortMode decides whether changing the sort reorders the loaded page or
// re-requests the collection with sortBy/sortOrder.
type SortMode string

const (
	SortLocal  SortMode = "local"
	SortServer SortMode = "server"
)

// Reconcile decides how the list catches up after a successful mutation.
type Reconcile string

const (
	ReconcileRefetch Reconcile = "refetch"
	ReconcilePatch   Reconcile = "patch"
)

// Envelope names the response shape a backend endpoint family uses for
// collection reads.
type Envelope string

const (
	// EnvelopeArray is a bare JSON array of records.
	EnvelopeArray Envelope = "array"
	// EnvelopeNested is {success, data: {<items_key>: [...], pagination: {...}}}.
	EnvelopeNested Envelope = "nested"
	// EnvelopeFlattened is {success, data: {data: [...], currentPage, totalPages, total}}.
	EnvelopeFlattened Envelope = "flattened"
)

// Resource is the per-screen configuration of a record collection. It is
// the only thing that differs between the feedback, contact, document and
// ticket screens.
type Resource struct {
	Name         string     `json:"name"`
	Title        string     `json:"title"`
	Path         string     `json:"path"`
	IDField      string     `json:"id_field"`
	ItemsKey     string     `json:"items_key"`
	Envelope     Envelope   `json:"envelope"`
	SearchFields []string   `json:"search_fields"`
	Categorical  []string   `json:"categorical"`
	Columns      []string   `json:"columns"`
	DefaultSort  SortSpec   `json:"default_sort"`
	SortMode     SortMode   `json:"sort_mode"`
	Reconcile    Reconcile  `json:"reconcile"`
	Limit        int        `json:"limit"`
	Roles        []Role     `json:"roles"`
	Statuses     []string   `json:"statuses"`
	Fields       []FieldDef `json:"fields"`
}

// IsCategorical reports whether field is matched by exact value equality
// rather than case-insensitive substring.
func (r *Resource) IsCategorical(field string) bool {
	return slices.Contains(r.Categorical, field)
}

// Field returns the definition of the named editable field.
func (r *Resource) Field(name string) (FieldDef, bool) {
	for _, d := range r.Fields {
		if d.Name == name {
			return d, true
		}
	}
	return FieldDef{}, false
}

// AllowedFor reports whether role may open this screen.
func (r *Resource) AllowedFor(role Role) bool {
	return slices.Contains(r.Roles, role)
}

// ValidStatus reports whether status is one of the resource's statuses.
func (r *Resource) ValidStatus(status string) bool {
	return slices.Contains(r.Statuses, status)
}

// Clone returns a copy whose slices can be overridden independently.
func (r *Resource) Clone() *Resource {
	out := *r
	out.SearchFields = slices.Clone(r.SearchFields)
	out.Categorical = slices.Clone(r.Categorical)
	out.Columns = slices.Clone(r.Columns)
	out.Roles = slices.Clone(r.Roles)
	out.Statuses = slices.Clone(r.Statuses)
	out.Fields = slices.Clone(r.Fields)
	return &out
}

var feedbackStatuses = []string{"pending", "reviewed", "resolved", "archived"}

// Feedback is the admin feedback screen.
var Feedback = Resource{
	Name:         "feedback",
	Title:        "Feedback",
	Path:         "/v1/feedback",
	IDField:      "feedback_id",
	ItemsKey:     "feedbacks",
	Envelope:     EnvelopeNested,
	SearchFields: []string{"name", "email", "message"},
	Categorical:  []string{"status", "category", "rating"},
	Columns:      []string{"feedback_id", "status", "category", "rating", "name", "message", "created_at"},
	DefaultSort:  SortSpec{Key: "created_at", Direction: Descending},
	SortMode:     SortLocal,
	Reconcile:    ReconcilePatch,
	Limit:        DefaultLimit,
	Roles:        []Role{RoleAdmin, RoleStudent},
	Statuses:     feedbackStatuses,
	Fields: []FieldDef{
		{Name: "name", Type: FieldTypeString, Required: true, MaxLength: 100},
		{Name: "email", Type: FieldTypeEmail, Required: true},
		{Name: "message", Type: FieldTypeString, Required: true, MaxLength: 5000},
		{Name: "category", Type: FieldTypeEnum, Values: []string{"general", "course", "service", "website"}},
		{Name: "rating", Type: FieldTypeInteger},
		{Name: "status", Type: FieldTypeEnum, Values: feedbackStatuses},
		{Name: "notes", Type: FieldTypeString, MaxLength: 2000},
	},
}

var contactStatuses = []string{"new", "read", "replied", "archived"}

// Contacts is the contact-message management screen.
var Contacts = Resource{
	Name:         "contacts",
	Title:        "Contacts",
	Path:         "/v1/contacts",
	IDField:      "id",
	ItemsKey:     "contacts",
	Envelope:     EnvelopeFlattened,
	SearchFields: []string{"name", "email", "subject", "message"},
	Categorical:  []string{"status"},
	Columns:      []string{"id", "status", "name", "email", "subject", "created_at"},
	DefaultSort:  SortSpec{Key: "created_at", Direction: Descending},
	SortMode:     SortLocal,
	Reconcile:    ReconcileRefetch,
	Limit:        DefaultLimit,
	Roles:        []Role{RoleAdmin},
	Statuses:     contactStatuses,
	Fields: []FieldDef{
		{Name: "name", Type: FieldTypeString, Required: true, MaxLength: 100},
		{Name: "email", Type: FieldTypeEmail, Required: true},
		{Name: "phone", Type: FieldTypeString, MaxLength: 32},
		{Name: "subject", Type: FieldTypeString, Required: true, MaxLength: 200},
		{Name: "message", Type: FieldTypeString, Required: true, MaxLength: 5000},
		{Name: "status", Type: FieldTypeEnum, Values: contactStatuses},
		{Name: "notes", Type: FieldTypeString, MaxLength: 2000},
	},
}

var documentStatuses = []string{"draft", "published", "archived"}

// Documents is the document library screen. It sorts on the server.
var Documents = Resource{
	Name:         "documents",
	Title:        "Documents",
	Path:         "/v1/documents",
	IDField:      "id",
	ItemsKey:     "documents",
	Envelope:     EnvelopeNested,
	SearchFields: []string{"title", "description", "owner"},
	Categorical:  []string{"category", "status"},
	Columns:      []string{"id", "status", "category", "title", "owner", "updated_at"},
	DefaultSort:  SortSpec{Key: "updated_at", Direction: Descending},
	SortMode:     SortServer,
	Reconcile:    ReconcileRefetch,
	Limit:        DefaultLimit,
	Roles:        []Role{RoleAdmin, RoleStudent, RoleClient},
	Statuses:     documentStatuses,
	Fields: []FieldDef{
		{Name: "title", Type: FieldTypeString, Required: true, MaxLength: 200},
		{Name: "description", Type: FieldTypeString, MaxLength: 2000},
		{Name: "owner", Type: FieldTypeString},
		{Name: "url", Type: FieldTypeURL},
		{Name: "category", Type: FieldTypeEnum, Required: true, Values: []string{"contract", "policy", "guide", "form", "other"}},
		{Name: "status", Type: FieldTypeEnum, Values: documentStatuses},
	},
}

var ticketStatuses = []string{"open", "in_progress", "resolved", "closed"}

// Tickets is the support ticket screen.
var Tickets = Resource{
	Name:         "tickets",
	Title:        "Support tickets",
	Path:         "/v1/support-tickets",
	IDField:      "support_ticket_id",
	ItemsKey:     "tickets",
	Envelope:     EnvelopeArray,
	SearchFields: []string{"subject", "description", "requester"},
	Categorical:  []string{"status", "priority", "category"},
	Columns:      []string{"support_ticket_id", "status", "priority", "category", "subject", "requester", "created_at"},
	DefaultSort:  SortSpec{Key: "created_at", Direction: Descending},
	SortMode:     SortLocal,
	Reconcile:    ReconcilePatch,
	Limit:        DefaultLimit,
	Roles:        []Role{RoleAdmin, RoleClient},
	Statuses:     ticketStatuses,
	Fields: []FieldDef{
		{Name: "subject", Type: FieldTypeString, Required: true, MaxLength: 200},
		{Name: "description", Type: FieldTypeString, Required: true, MaxLength: 5000},
		{Name: "requester", Type: FieldTypeString},
		{Name: "email", Type: FieldTypeEmail},
		{Name: "priority", Type: FieldTypeEnum, Values: []string{"low", "medium", "high", "urgent"}},
		{Name: "category", Type: FieldTypeEnum, Values: []string{"billing", "technical", "account", "course", "other"}},
		{Name: "status", Type: FieldTypeEnum, Values: ticketStatuses},
		{Name: "notes", Type: FieldTypeString, MaxLength: 2000},
	},
}

// Resources lists every screen in navigation order.
func Resources() []*Resource {
	return []*Resource{&Feedback, &Contacts, &Documents, &Tickets}
}

// LookupResource finds a resource by name. "ticket", "contact" and
// "document" are accepted for their plural screens.
func LookupResource(name string) (*Resource, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, r := range Resources() {
		if r.Name == name || r.Name == name+"s" {
			return r, nil
		}
	}
	return nil, fmt.Errorf("unknown resource %q", name)
}

// ResourcesFor returns the screens role may navigate to.
func ResourcesFor(role Role) []*Resource {
	var out []*Resource
	for _, r := range Resources() {
		if r.AllowedFor(role) {
			out = append(out, r)
		}
	}
	return out
}
