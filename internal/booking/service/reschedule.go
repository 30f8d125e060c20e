package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"estatebot_backend/internal/booking/lifecycle"
	"estatebot_backend/internal/booking/repository"
	"estatebot_backend/internal/booking/saga"
	"estatebot_backend/internal/booking/transport"
	"estatebot_backend/internal/calendar"
	"estatebot_backend/internal/events"
	"estatebot_backend/internal/video"
	"estatebot_backend/internal/whatsapp"
	"estatebot_backend/platform/apperr"
	"estatebot_backend/platform/lock"

	"github.com/google/uuid"
)

// Reschedule moves an appointment to a new time. The provider resources are
// updated in place so the join URL already shared with the lead survives; on
// a mid-saga failure the original times are restored in reverse order.
func (s *Service) Reschedule(ctx context.Context, appointmentID uuid.UUID, req transport.RescheduleRequest) (*transport.BookingResult, error) {
	appt, err := s.store.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	lead, err := s.store.GetLead(ctx, appt.LeadID)
	if err != nil {
		return nil, err
	}

	active, err := s.store.GetActiveByLead(ctx, appt.LeadID)
	if err != nil {
		return nil, err
	}

	state := lifecycle.Derive(lead, active)
	if err := lifecycle.Validate(lifecycle.ActionReschedule, state); err != nil {
		return nil, err
	}
	if active == nil || active.ID != appt.ID {
		return nil, apperr.State("that appointment is no longer the active one")
	}

	newStart := req.NewAppointmentTime
	if !newStart.After(time.Now()) {
		return nil, apperr.Validation("new appointment time must be in the future")
	}
	if !s.insideWorkingHours(newStart) {
		return nil, apperr.Validation("new appointment time falls outside working hours")
	}

	// Reject before touching anything external; the original appointment
	// must be untouched on conflict.
	conflict, err := s.conflictInWindow(ctx, appt.AgentID, newStart, appt.ID)
	if err != nil {
		return nil, err
	}
	if conflict {
		return nil, apperr.Conflict("the agent already has a viewing at that time")
	}

	err = s.locker.WithSlotLock(ctx, appt.AgentID, newStart, func(ctx context.Context) error {
		// Second look under the lock.
		conflict, err := s.conflictInWindow(ctx, appt.AgentID, newStart, appt.ID)
		if err != nil {
			return err
		}
		if conflict {
			return apperr.Conflict("the agent already has a viewing at that time")
		}
		return s.runRescheduleSaga(ctx, appt, newStart)
	})
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, apperr.Conflict("that time was just taken, please pick another")
		}
		if apperr.Is(err, apperr.KindConflict) || apperr.Is(err, apperr.KindValidation) || apperr.Is(err, apperr.KindState) {
			return nil, err
		}
		s.markNeedsHuman(ctx, appt.LeadID)
		s.publishCompensated(ctx, appt.LeadID, appt.AgentID, err)
		return nil, err
	}

	oldStart := appt.StartTime
	appt.StartTime = newStart
	appt.Status = repository.StatusRescheduled

	s.bus.Publish(ctx, events.AppointmentRescheduled{
		BaseEvent:     events.NewBaseEvent(),
		AppointmentID: appt.ID,
		LeadID:        appt.LeadID,
		AgentID:       appt.AgentID,
		OldStartTime:  oldStart,
		NewStartTime:  newStart,
	})
	s.scheduleReminder(ctx, appt)
	s.notify(ctx, lead.Phone, whatsapp.RescheduleNotice(lead.Name, newStart.In(s.cfg.GetTimezone()), derefStr(appt.VideoJoinURL)))

	return &transport.BookingResult{
		Success:     true,
		Type:        transport.TypeRescheduled,
		Message:     fmt.Sprintf("Your viewing has been moved to %s.", newStart.In(s.cfg.GetTimezone()).Format("Monday 2 January at 15:04")),
		Appointment: transport.ToAppointmentResponse(appt),
	}, nil
}

// runRescheduleSaga updates both provider resources and the row in place.
func (s *Service) runRescheduleSaga(ctx context.Context, appt *repository.Appointment, newStart time.Time) error {
	duration := appt.DurationMinutes
	newEnd := newStart.Add(time.Duration(duration) * time.Minute)
	oldStart := appt.StartTime
	oldEnd := appt.EndTime()
	oldStatus := appt.Status

	meetingID := derefStr(appt.VideoMeetingID)
	eventID := derefStr(appt.CalendarEventID)
	if meetingID == "" || eventID == "" {
		return apperr.Internal("active appointment is missing provider resources")
	}

	steps := []saga.Step{
		{
			Name: "video_meeting",
			Run: func(ctx context.Context) error {
				return s.withRetry(ctx, func(ctx context.Context) error {
					return s.video.UpdateMeeting(ctx, appt.AgentID, meetingID, video.MeetingInput{
						StartTime:       newStart,
						DurationMinutes: duration,
					})
				})
			},
			Compensate: func(ctx context.Context) error {
				return s.video.UpdateMeeting(ctx, appt.AgentID, meetingID, video.MeetingInput{
					StartTime:       oldStart,
					DurationMinutes: duration,
				})
			},
		},
		{
			Name: "calendar_event",
			Run: func(ctx context.Context) error {
				return s.withRetry(ctx, func(ctx context.Context) error {
					return s.calendar.UpdateEvent(ctx, appt.AgentID, eventID, calendar.EventInput{
						StartTime: newStart,
						EndTime:   newEnd,
					})
				})
			},
			Compensate: func(ctx context.Context) error {
				return s.calendar.UpdateEvent(ctx, appt.AgentID, eventID, calendar.EventInput{
					StartTime: oldStart,
					EndTime:   oldEnd,
				})
			},
		},
		{
			Name: "update_appointment",
			Run: func(ctx context.Context) error {
				return s.withRetry(ctx, func(ctx context.Context) error {
					return s.store.UpdateSchedule(ctx, appt.ID, newStart, repository.StatusRescheduled)
				})
			},
			Compensate: func(ctx context.Context) error {
				return s.store.UpdateSchedule(ctx, appt.ID, oldStart, oldStatus)
			},
		},
	}

	return s.sagas.Execute(ctx, "booking.reschedule", steps)
}
