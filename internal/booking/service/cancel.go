package service

import (
	"context"

	"estatebot_backend/internal/booking/lifecycle"
	"estatebot_backend/internal/booking/repository"
	"estatebot_backend/internal/booking/saga"
	"estatebot_backend/internal/booking/transport"
	"estatebot_backend/internal/events"
	"estatebot_backend/internal/whatsapp"
	"estatebot_backend/platform/apperr"

	"github.com/google/uuid"
)

// Cancel deletes the appointment's provider resources and marks the row
// cancelled. It is idempotent: cancelling an already cancelled appointment
// succeeds with no further provider calls.
func (s *Service) Cancel(ctx context.Context, appointmentID uuid.UUID) (*transport.BookingResult, error) {
	appt, err := s.store.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	if appt.Status == repository.StatusCancelled {
		return &transport.BookingResult{
			Success: true,
			Type:    transport.TypeCancelled,
			Message: "This viewing was already cancelled.",
		}, nil
	}
	if appt.Status == repository.StatusCompleted {
		return nil, apperr.State("a completed viewing cannot be cancelled")
	}

	lead, err := s.store.GetLead(ctx, appt.LeadID)
	if err != nil {
		return nil, err
	}

	// Provider deletes are irreversible, so there are no compensations on
	// this path. The deletes treat "already gone" as success, which keeps a
	// partially failed cancel safe to retry.
	steps := []saga.Step{
		{
			Name: "video_meeting",
			Run: func(ctx context.Context) error {
				if appt.VideoMeetingID == nil {
					return nil
				}
				return s.withRetry(ctx, func(ctx context.Context) error {
					return s.video.DeleteMeeting(ctx, appt.AgentID, *appt.VideoMeetingID)
				})
			},
		},
		{
			Name: "calendar_event",
			Run: func(ctx context.Context) error {
				if appt.CalendarEventID == nil {
					return nil
				}
				return s.withRetry(ctx, func(ctx context.Context) error {
					return s.calendar.DeleteEvent(ctx, appt.AgentID, *appt.CalendarEventID)
				})
			},
		},
		{
			Name: "update_appointment",
			Run: func(ctx context.Context) error {
				return s.withRetry(ctx, func(ctx context.Context) error {
					return s.store.UpdateStatus(ctx, appt.ID, repository.StatusCancelled)
				})
			},
		},
		{
			Name: "lead_status",
			Run: func(ctx context.Context) error {
				return s.withRetry(ctx, func(ctx context.Context) error {
					return s.store.UpdateLeadStatus(ctx, appt.LeadID, lifecycle.LeadStatusCancelled)
				})
			},
		},
	}

	if err := s.sagas.Execute(ctx, "booking.cancel", steps); err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, events.AppointmentCancelled{
		BaseEvent:     events.NewBaseEvent(),
		AppointmentID: appt.ID,
		LeadID:        appt.LeadID,
		AgentID:       appt.AgentID,
		StartTime:     appt.StartTime,
	})
	s.notify(ctx, lead.Phone, whatsapp.CancellationNotice(lead.Name))

	return &transport.BookingResult{
		Success: true,
		Type:    transport.TypeCancelled,
		Message: "Your viewing has been cancelled.",
	}, nil
}
