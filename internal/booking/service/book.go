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

// FindAndBook resolves the lead's time preference and, on an exact match,
// runs the create saga: video meeting, calendar event, appointment row and
// lead status, compensated in reverse on failure. Without an exact match it
// stores alternatives on the lead and returns them instead.
func (s *Service) FindAndBook(ctx context.Context, req transport.BookRequest) (*transport.BookingResult, error) {
	lead, err := s.store.GetLead(ctx, req.LeadID)
	if err != nil {
		return nil, err
	}

	agentID, err := resolveAgent(req, lead)
	if err != nil {
		return nil, err
	}

	active, err := s.store.GetActiveByLead(ctx, req.LeadID)
	if err != nil {
		return nil, err
	}

	state := lifecycle.Derive(lead, active)
	if err := lifecycle.Validate(lifecycle.ActionBook, state); err != nil {
		return nil, err
	}

	match := s.matcher.Match(ctx, agentID, req.UserMessage)
	if match.ExactMatch == nil {
		return s.offerAlternatives(ctx, lead, agentID, match.Alternatives)
	}

	startTime := *match.ExactMatch
	leadName := firstNonEmpty(req.LeadName, lead.Name)
	leadPhone := firstNonEmpty(req.LeadPhone, lead.Phone)

	var booked *repository.Appointment
	err = s.locker.WithSlotLock(ctx, agentID, startTime, func(ctx context.Context) error {
		conflict, err := s.conflictInWindow(ctx, agentID, startTime, uuid.Nil)
		if err != nil {
			return err
		}
		if conflict {
			return apperr.Conflict("timeslot already booked")
		}

		booked, err = s.runCreateSaga(ctx, lead, agentID, startTime, leadName, leadPhone, req.ConsultationNotes)
		return err
	})
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) || apperr.Is(err, apperr.KindConflict) {
			// Someone claimed the slot first; fall back to the other options.
			return s.offerAlternatives(ctx, lead, agentID, match.Alternatives)
		}
		s.markNeedsHuman(ctx, req.LeadID)
		s.publishCompensated(ctx, req.LeadID, agentID, err)
		return nil, err
	}

	s.bus.Publish(ctx, events.AppointmentBooked{
		BaseEvent:     events.NewBaseEvent(),
		AppointmentID: booked.ID,
		LeadID:        booked.LeadID,
		AgentID:       booked.AgentID,
		StartTime:     booked.StartTime,
		EndTime:       booked.EndTime(),
		JoinURL:       derefStr(booked.VideoJoinURL),
	})
	s.scheduleReminder(ctx, booked)
	s.notify(ctx, leadPhone, whatsapp.BookingConfirmation(leadName, booked.StartTime.In(s.cfg.GetTimezone()), derefStr(booked.VideoJoinURL)))

	return &transport.BookingResult{
		Success:     true,
		Type:        transport.TypeBooked,
		Message:     fmt.Sprintf("Your viewing is booked for %s.", booked.StartTime.In(s.cfg.GetTimezone()).Format("Monday 2 January at 15:04")),
		Appointment: transport.ToAppointmentResponse(booked),
	}, nil
}

// runCreateSaga executes the booking steps. Must run under the slot lock.
func (s *Service) runCreateSaga(ctx context.Context, lead *repository.Lead, agentID uuid.UUID, startTime time.Time, leadName, leadPhone, notes string) (*repository.Appointment, error) {
	duration := s.cfg.GetSlotDurationMinutes()
	endTime := startTime.Add(time.Duration(duration) * time.Minute)
	previousLeadStatus := lead.Status

	var meeting *video.Meeting
	var event *calendar.Event
	now := time.Now()
	appt := &repository.Appointment{
		ID:              uuid.New(),
		LeadID:          lead.ID,
		AgentID:         agentID,
		StartTime:       startTime,
		DurationMinutes: duration,
		Status:          repository.StatusScheduled,
		Notes:           strPtr(notes),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	steps := []saga.Step{
		{
			Name: "video_meeting",
			Run: func(ctx context.Context) error {
				return s.withRetry(ctx, func(ctx context.Context) error {
					created, err := s.video.CreateMeeting(ctx, agentID, video.MeetingInput{
						Topic:           fmt.Sprintf("Viewing with %s", leadName),
						StartTime:       startTime,
						DurationMinutes: duration,
					})
					if err != nil {
						return err
					}
					meeting = created
					return nil
				})
			},
			Compensate: func(ctx context.Context) error {
				return s.video.DeleteMeeting(ctx, agentID, meeting.ID)
			},
		},
		{
			Name: "calendar_event",
			Run: func(ctx context.Context) error {
				return s.withRetry(ctx, func(ctx context.Context) error {
					created, err := s.calendar.CreateEvent(ctx, agentID, calendar.EventInput{
						Title:         fmt.Sprintf("Viewing: %s", leadName),
						Description:   notes,
						StartTime:     startTime,
						EndTime:       endTime,
						AttendeeName:  leadName,
						AttendeePhone: leadPhone,
						JoinURL:       meeting.JoinURL,
					})
					if err != nil {
						return err
					}
					event = created
					return nil
				})
			},
			Compensate: func(ctx context.Context) error {
				return s.calendar.DeleteEvent(ctx, agentID, event.ID)
			},
		},
		{
			Name: "insert_appointment",
			Run: func(ctx context.Context) error {
				appt.CalendarEventID = &event.ID
				appt.VideoMeetingID = &meeting.ID
				appt.VideoJoinURL = strPtr(meeting.JoinURL)
				return s.withRetry(ctx, func(ctx context.Context) error {
					return s.store.Create(ctx, appt)
				})
			},
			Compensate: func(ctx context.Context) error {
				return s.store.Delete(ctx, appt.ID)
			},
		},
		{
			Name: "lead_status",
			Run: func(ctx context.Context) error {
				return s.withRetry(ctx, func(ctx context.Context) error {
					if err := s.store.UpdateLeadStatus(ctx, lead.ID, lifecycle.LeadStatusBooked); err != nil {
						return err
					}
					return s.store.SetBookingAlternatives(ctx, lead.ID, nil)
				})
			},
			Compensate: func(ctx context.Context) error {
				return s.store.UpdateLeadStatus(ctx, lead.ID, previousLeadStatus)
			},
		},
	}

	if err := s.sagas.Execute(ctx, "booking.create", steps); err != nil {
		return nil, err
	}
	return appt, nil
}

// offerAlternatives persists the proposed slots on the lead and returns a
// non-booking result. No provider resources are touched on this path.
func (s *Service) offerAlternatives(ctx context.Context, lead *repository.Lead, agentID uuid.UUID, alternatives []time.Time) (*transport.BookingResult, error) {
	if len(alternatives) == 0 {
		// Nothing bookable at all; a human takes over.
		s.markNeedsHuman(ctx, lead.ID)
		return &transport.BookingResult{
			Success: false,
			Type:    transport.TypeNeedsHuman,
			Message: "I couldn't find an open moment right now. A colleague will reach out to plan the viewing with you personally.",
		}, nil
	}

	if err := s.store.SetBookingAlternatives(ctx, lead.ID, alternatives); err != nil {
		return nil, err
	}
	if err := s.store.UpdateLeadStatus(ctx, lead.ID, lifecycle.LeadStatusAlternativesOffered); err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, events.BookingAlternativesOffered{
		BaseEvent:    events.NewBaseEvent(),
		LeadID:       lead.ID,
		AgentID:      agentID,
		Alternatives: alternatives,
	})

	return &transport.BookingResult{
		Success:      false,
		Type:         transport.TypeAlternativesOffered,
		Message:      fmt.Sprintf("That exact time isn't available, but these are:\n%s\nWhich one suits you?", s.formatSlots(alternatives)),
		Alternatives: alternatives,
	}, nil
}

func (s *Service) publishCompensated(ctx context.Context, leadID, agentID uuid.UUID, err error) {
	failedStep := "unknown"
	var sagaErr *saga.Error
	if errors.As(err, &sagaErr) {
		failedStep = sagaErr.Step
	}
	s.bus.Publish(ctx, events.BookingCompensated{
		BaseEvent:    events.NewBaseEvent(),
		LeadID:       leadID,
		AgentID:      agentID,
		FailedStep:   failedStep,
		ErrorMessage: err.Error(),
	})
}

func resolveAgent(req transport.BookRequest, lead *repository.Lead) (uuid.UUID, error) {
	if req.AgentID != nil {
		return *req.AgentID, nil
	}
	if lead.AssignedAgentID != nil {
		return *lead.AssignedAgentID, nil
	}
	return uuid.Nil, apperr.Validation("lead has no assigned agent")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func derefStr(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
