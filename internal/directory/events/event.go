// Package events publishes directory change events. Publishing is best
// effort: callers log failures and never fail a committed write because of one.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"directory/internal/directory/models"
)

// Action is what happened to an entity.
type Action string

const (
	ActionCreated     Action = "created"
	ActionUpdated     Action = "updated"
	ActionDeleted     Action = "deleted"
	ActionTransferred Action = "transferred"
)

// Event is a transport-agnostic change notification.
// Type is "directory.<kind>.<action>".
type Event struct {
	ID         uuid.UUID       `json:"id"`
	Type       string          `json:"type"`
	Kind       models.Kind     `json:"kind"`
	Action     Action          `json:"action"`
	EntityID   int64           `json:"entity_id,omitempty"`
	RequestID  string          `json:"request_id,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// New builds an event with a fresh id. payload is JSON-encoded; nil omits it.
func New(kind models.Kind, action Action, entityID int64, payload any, at time.Time) (Event, error) {
	e := Event{
		ID:         uuid.New(),
		Type:       TypeOf(kind, action),
		Kind:       kind,
		Action:     action,
		EntityID:   entityID,
		OccurredAt: at.UTC(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Event{}, fmt.Errorf("encode %s payload: %w", e.Type, err)
		}
		e.Payload = raw
	}
	return e, nil
}

// TypeOf returns the event type name for kind and action.
func TypeOf(kind models.Kind, action Action) string {
	return "directory." + string(kind) + "." + string(action)
}

// Key is the partitioning key: events of one entity stay ordered.
func (e Event) Key() string {
	if e.EntityID == 0 {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s:%d", e.Kind, e.EntityID)
}
