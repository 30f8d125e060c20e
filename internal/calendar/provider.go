// Package calendar integrates with the calendar bridge service that fronts
// the agents' calendars. The orchestrator only sees the Provider interface;
// the REST client lives behind it.
package calendar

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// BusyInterval is a half-open window during which an agent is unavailable.
type BusyInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// EventInput describes a calendar event to create or update.
type EventInput struct {
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	StartTime     time.Time `json:"startTime"`
	EndTime       time.Time `json:"endTime"`
	AttendeeName  string    `json:"attendeeName,omitempty"`
	AttendeePhone string    `json:"attendeePhone,omitempty"`
	JoinURL       string    `json:"joinUrl,omitempty"`
}

// Event is a created calendar event.
type Event struct {
	ID      string `json:"id"`
	JoinURL string `json:"joinUrl,omitempty"`
}

// Provider is the calendar side of the booking sagas.
type Provider interface {
	// CheckAvailability returns the agent's busy intervals inside [from, to).
	CheckAvailability(ctx context.Context, agentID uuid.UUID, from, to time.Time) ([]BusyInterval, error)
	// CreateEvent creates an event in the agent's calendar.
	CreateEvent(ctx context.Context, agentID uuid.UUID, input EventInput) (*Event, error)
	// UpdateEvent moves or edits an existing event in place.
	UpdateEvent(ctx context.Context, agentID uuid.UUID, eventID string, input EventInput) error
	// DeleteEvent removes an event. Deleting a missing event is not an error.
	DeleteEvent(ctx context.Context, agentID uuid.UUID, eventID string) error
}
