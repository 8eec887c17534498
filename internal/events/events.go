// Package events carries record change notifications between the backend
// and watching clients.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alfredjeanlab/portal/internal/model"
)

// Prefix is the root of every portal subject.
const Prefix = "portal"

// Actions
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// AllTopics matches every portal event.
const AllTopics = Prefix + ".>"

// Topic returns the subject for an action on a resource, e.g.
// "portal.tickets.updated".
func Topic(resource, action string) string {
	return fmt.Sprintf("%s.%s.%s", Prefix, resource, action)
}

// ResourceTopic matches every event of one resource.
func ResourceTopic(resource string) string {
	return fmt.Sprintf("%s.%s.>", Prefix, resource)
}

// RecordChanged is published after a record is created, updated or deleted.
type RecordChanged struct {
	Resource string         `json:"resource"`
	Action   string         `json:"action"`
	ID       string         `json:"id"`
	Record   model.Record   `json:"record,omitempty"`
	Changes  map[string]any `json:"changes,omitempty"` // field name -> new value
	Actor    string         `json:"actor,omitempty"`
	At       time.Time      `json:"at"`
}

// Topic returns the subject the event is published on.
func (e RecordChanged) Topic() string {
	return Topic(e.Resource, e.Action)
}

// Decode parses a raw event payload.
func Decode(data []byte) (RecordChanged, error) {
	var e RecordChanged
	if err := json.Unmarshal(data, &e); err != nil {
		return RecordChanged{}, fmt.Errorf("decoding event: %w", err)
	}
	return e, nil
}

// PublishChange stamps e and publishes it on its topic.
func PublishChange(ctx context.Context, pub Publisher, e RecordChanged) error {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	return pub.Publish(ctx, e)
}

// Publisher emits record changes.
type Publisher interface {
	Publish(ctx context.Context, e RecordChanged) error
	Close() error
}
