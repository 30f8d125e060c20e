// Package video integrates with the video conferencing provider used for
// remote viewings. The orchestrator only sees the Provider interface.
package video

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MeetingInput describes a meeting to create or update.
type MeetingInput struct {
	Topic           string    `json:"topic"`
	StartTime       time.Time `json:"startTime"`
	DurationMinutes int       `json:"durationMinutes"`
}

// Meeting is a scheduled video meeting.
type Meeting struct {
	ID      string `json:"id"`
	JoinURL string `json:"joinUrl"`
	HostRef string `json:"hostRef,omitempty"`
}

// Provider is the video conferencing side of the booking sagas.
type Provider interface {
	// CreateMeeting schedules a meeting hosted by the agent.
	CreateMeeting(ctx context.Context, agentID uuid.UUID, input MeetingInput) (*Meeting, error)
	// UpdateMeeting moves or edits an existing meeting, keeping its join URL.
	UpdateMeeting(ctx context.Context, agentID uuid.UUID, meetingID string, input MeetingInput) error
	// DeleteMeeting removes a meeting. Deleting a missing meeting is not an error.
	DeleteMeeting(ctx context.Context, agentID uuid.UUID, meetingID string) error
}
