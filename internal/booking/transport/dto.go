// Package transport defines the request and response shapes of the booking
// endpoints.
package transport

import (
	"time"

	"estatebot_backend/internal/booking/repository"

	"github.com/google/uuid"
)

// Result types returned to the chat layer.
const (
	TypeBooked              = "booked"
	TypeAlternativesOffered = "alternatives_offered"
	TypeRescheduled         = "rescheduled"
	TypeCancelled           = "cancelled"
	TypeNeedsHuman          = "needs_human"
)

// BookRequest asks to resolve the lead's free-text time preference and book it.
type BookRequest struct {
	LeadID            uuid.UUID  `json:"leadId" validate:"required"`
	AgentID           *uuid.UUID `json:"agentId,omitempty"`
	UserMessage       string     `json:"userMessage" validate:"required"`
	LeadName          string     `json:"leadName,omitempty"`
	LeadPhone         string     `json:"leadPhone,omitempty"`
	ConsultationNotes string     `json:"consultationNotes,omitempty"`
}

// RescheduleRequest moves an existing appointment to a new time.
type RescheduleRequest struct {
	NewAppointmentTime time.Time `json:"newAppointmentTime" validate:"required"`
	Reason             string    `json:"reason,omitempty"`
}

// AppointmentResponse is the wire representation of an appointment.
type AppointmentResponse struct {
	ID              uuid.UUID `json:"id"`
	LeadID          uuid.UUID `json:"leadId"`
	AgentID         uuid.UUID `json:"agentId"`
	StartTime       time.Time `json:"startTime"`
	DurationMinutes int       `json:"durationMinutes"`
	Status          string    `json:"status"`
	JoinURL         string    `json:"joinUrl,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// BookingResult is the envelope every booking entry point returns.
type BookingResult struct {
	Success      bool                 `json:"success"`
	Message      string               `json:"message"`
	Type         string               `json:"type"`
	Appointment  *AppointmentResponse `json:"appointment,omitempty"`
	Alternatives []time.Time          `json:"alternatives,omitempty"`
}

// ToAppointmentResponse maps the database model to the wire shape.
func ToAppointmentResponse(appt *repository.Appointment) *AppointmentResponse {
	resp := &AppointmentResponse{
		ID:              appt.ID,
		LeadID:          appt.LeadID,
		AgentID:         appt.AgentID,
		StartTime:       appt.StartTime,
		DurationMinutes: appt.DurationMinutes,
		Status:          appt.Status,
		CreatedAt:       appt.CreatedAt,
		UpdatedAt:       appt.UpdatedAt,
	}
	if appt.VideoJoinURL != nil {
		resp.JoinURL = *appt.VideoJoinURL
	}
	if appt.Notes != nil {
		resp.Notes = *appt.Notes
	}
	return resp
}
