// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"estatebot_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Booking Domain Events
// =============================================================================

// AppointmentBooked is published when a viewing is fully booked: video meeting
// created, calendar event created and the appointment row persisted.
type AppointmentBooked struct {
	BaseEvent
	AppointmentID uuid.UUID `json:"appointmentId"`
	LeadID        uuid.UUID `json:"leadId"`
	AgentID       uuid.UUID `json:"agentId"`
	StartTime     time.Time `json:"startTime"`
	EndTime       time.Time `json:"endTime"`
	JoinURL       string    `json:"joinUrl,omitempty"`
}

func (e AppointmentBooked) EventName() string { return "booking.appointment.booked" }

// BookingAlternativesOffered is published when a requested time was not
// available and alternative slots were proposed to the lead instead.
type BookingAlternativesOffered struct {
	BaseEvent
	LeadID       uuid.UUID   `json:"leadId"`
	AgentID      uuid.UUID   `json:"agentId"`
	Alternatives []time.Time `json:"alternatives"`
}

func (e BookingAlternativesOffered) EventName() string { return "booking.alternatives.offered" }

// AppointmentRescheduled is published when an existing appointment moved to a
// new time with its provider resources updated in place.
type AppointmentRescheduled struct {
	BaseEvent
	AppointmentID uuid.UUID `json:"appointmentId"`
	LeadID        uuid.UUID `json:"leadId"`
	AgentID       uuid.UUID `json:"agentId"`
	OldStartTime  time.Time `json:"oldStartTime"`
	NewStartTime  time.Time `json:"newStartTime"`
}

func (e AppointmentRescheduled) EventName() string { return "booking.appointment.rescheduled" }

// AppointmentCancelled is published when an appointment is cancelled and its
// provider resources are deleted.
type AppointmentCancelled struct {
	BaseEvent
	AppointmentID uuid.UUID `json:"appointmentId"`
	LeadID        uuid.UUID `json:"leadId"`
	AgentID       uuid.UUID `json:"agentId"`
	StartTime     time.Time `json:"startTime"`
}

func (e AppointmentCancelled) EventName() string { return "booking.appointment.cancelled" }

// BookingCompensated is published when a booking attempt failed partway and
// its completed steps were rolled back.
type BookingCompensated struct {
	BaseEvent
	LeadID       uuid.UUID `json:"leadId"`
	AgentID      uuid.UUID `json:"agentId"`
	FailedStep   string    `json:"failedStep"`
	ErrorMessage string    `json:"errorMessage"`
}

func (e BookingCompensated) EventName() string { return "booking.compensated" }
