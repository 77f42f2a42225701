package domain

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types published after successful writes.
const (
	EventRecipeCreated     = "RecipeCreated"
	EventRecipeDeleted     = "RecipeDeleted"
	EventCategoryCreated   = "CategoryCreated"
	EventCategoryDeleted   = "CategoryDeleted"
	EventReferencesRemoved = "CategoryReferencesRemoved"
)

// Event is a fact about a change in one user's partition.
type Event struct {
	ID         string         `json:"eventId"`
	Type       string         `json:"eventType"`
	UserID     string         `json:"userId"`
	EntityIDs  []int          `json:"entityIds"`
	Data       map[string]any `json:"data,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}

// NewEvent builds an event stamped with a fresh id.
func NewEvent(eventType, userID string, at time.Time, ids ...int) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		UserID:     userID,
		EntityIDs:  ids,
		OccurredAt: at,
	}
}

// EventBus publishes domain events. Publishing is best effort; callers log failures and
// never fail the write that produced the event.
type EventBus interface {
	Publish(ctx context.Context, events ...Event) error
}

// RecordingEventBus keeps published events in memory.
type RecordingEventBus struct {
	mu     sync.Mutex
	events []Event
}

// NewRecordingEventBus creates an empty recording bus.
func NewRecordingEventBus() *RecordingEventBus {
	return &RecordingEventBus{}
}

// Publish stores the events.
func (b *RecordingEventBus) Publish(_ context.Context, events ...Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, events...)
	return nil
}

// Events returns a copy of everything published so far.
func (b *RecordingEventBus) Events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Event(nil), b.events...)
}

// Types returns the types of the published events in order.
func (b *RecordingEventBus) Types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	types := make([]string, len(b.events))
	for i, e := range b.events {
		types[i] = e.Type
	}
	return types
}
