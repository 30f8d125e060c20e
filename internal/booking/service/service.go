// Package service implements the appointment orchestrator: it resolves a
// lead's time preference to a slot and drives the create, reschedule and
// cancel sagas across the calendar provider, the video provider and the
// database.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"estatebot_backend/internal/booking/availability"
	"estatebot_backend/internal/booking/lifecycle"
	"estatebot_backend/internal/booking/repository"
	"estatebot_backend/internal/booking/saga"
	"estatebot_backend/internal/booking/transport"
	"estatebot_backend/internal/calendar"
	"estatebot_backend/internal/events"
	"estatebot_backend/internal/scheduler"
	"estatebot_backend/internal/video"
	"estatebot_backend/platform/config"
	"estatebot_backend/platform/lock"
	"estatebot_backend/platform/logger"
	"estatebot_backend/platform/retry"

	"github.com/google/uuid"
)

// Store is the datastore surface the orchestrator needs.
type Store interface {
	Create(ctx context.Context, appt *repository.Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*repository.Appointment, error)
	GetActiveByLead(ctx context.Context, leadID uuid.UUID) (*repository.Appointment, error)
	GetActiveByAgentBetween(ctx context.Context, agentID uuid.UUID, from, to time.Time) ([]repository.Appointment, error)
	UpdateSchedule(ctx context.Context, id uuid.UUID, startTime time.Time, status string) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetLead(ctx context.Context, leadID uuid.UUID) (*repository.Lead, error)
	UpdateLeadStatus(ctx context.Context, leadID uuid.UUID, status string) error
	SetBookingAlternatives(ctx context.Context, leadID uuid.UUID, alternatives []time.Time) error
}

// Matcher resolves a free-text preference against the agent's availability.
type Matcher interface {
	Match(ctx context.Context, agentID uuid.UUID, userMessage string) availability.MatchResult
}

// Notifier delivers best-effort messages to the lead.
type Notifier interface {
	SendMessage(ctx context.Context, phone, message string) error
}

// Service orchestrates booking operations.
type Service struct {
	store     Store
	matcher   Matcher
	calendar  calendar.Provider
	video     video.Provider
	locker    lock.SlotLocker
	bus       events.Bus
	reminders scheduler.ReminderScheduler
	notifier  Notifier
	sagas     *saga.Runner
	retry     *retry.Policy
	cfg       config.BookingConfig
	log       *logger.Logger
}

// New creates the orchestrator. notifier and reminders may be nil when the
// WhatsApp gateway or the scheduler queue are not configured.
func New(
	store Store,
	matcher Matcher,
	cal calendar.Provider,
	vid video.Provider,
	locker lock.SlotLocker,
	bus events.Bus,
	reminders scheduler.ReminderScheduler,
	notifier Notifier,
	cfg config.BookingConfig,
	log *logger.Logger,
) *Service {
	return &Service{
		store:     store,
		matcher:   matcher,
		calendar:  cal,
		video:     vid,
		locker:    locker,
		bus:       bus,
		reminders: reminders,
		notifier:  notifier,
		sagas:     saga.NewRunner(log),
		retry:     retry.NewPolicy(),
		cfg:       cfg,
		log:       log,
	}
}

// GetAppointment returns a single appointment.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*transport.AppointmentResponse, error) {
	appt, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return transport.ToAppointmentResponse(appt), nil
}

// withRetry wraps an external call with the retry policy.
func (s *Service) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.retry.Do(ctx, fn)
}

// formatSlots renders slot options for a chat message.
func (s *Service) formatSlots(slots []time.Time) string {
	loc := s.cfg.GetTimezone()
	parts := make([]string, 0, len(slots))
	for i, slot := range slots {
		parts = append(parts, fmt.Sprintf("%d) %s", i+1, slot.In(loc).Format("Monday 2 January at 15:04")))
	}
	return strings.Join(parts, "\n")
}

// insideWorkingHours reports whether t starts a slot that fits the window.
func (s *Service) insideWorkingHours(t time.Time) bool {
	local := t.In(s.cfg.GetTimezone())
	startMin := local.Hour()*60 + local.Minute()
	endMin := startMin + s.cfg.GetSlotDurationMinutes()
	return startMin >= s.cfg.GetWorkingHoursStart()*60 && endMin <= s.cfg.GetWorkingHoursEnd()*60
}

// notify sends a WhatsApp message without ever failing the caller.
func (s *Service) notify(ctx context.Context, phone, message string) {
	if s.notifier == nil || phone == "" {
		return
	}
	if err := s.notifier.SendMessage(ctx, phone, message); err != nil {
		s.log.Warn("booking notification failed", "error", err.Error())
	}
}

// scheduleReminder queues the pre-viewing reminder, best effort.
func (s *Service) scheduleReminder(ctx context.Context, appt *repository.Appointment) {
	if s.reminders == nil {
		return
	}
	runAt := appt.StartTime.Add(-s.cfg.GetReminderLead())
	if !runAt.After(time.Now()) {
		return
	}
	payload := scheduler.AppointmentReminderPayload{AppointmentID: appt.ID.String()}
	if err := s.reminders.ScheduleAppointmentReminder(ctx, payload, runAt); err != nil {
		s.log.Warn("reminder scheduling failed", "appointment_id", appt.ID.String(), "error", err.Error())
	}
}

// markNeedsHuman hands the lead to a human after an unrecoverable failure.
func (s *Service) markNeedsHuman(ctx context.Context, leadID uuid.UUID) {
	if err := s.store.UpdateLeadStatus(ctx, leadID, lifecycle.LeadStatusNeedsHuman); err != nil {
		s.log.Error("failed to mark lead for human handoff", "lead_id", leadID.String(), "error", err.Error())
	}
}

// conflictInWindow reports whether the agent has another active appointment
// overlapping [start, start+duration), ignoring excludeID.
func (s *Service) conflictInWindow(ctx context.Context, agentID uuid.UUID, start time.Time, excludeID uuid.UUID) (bool, error) {
	end := start.Add(time.Duration(s.cfg.GetSlotDurationMinutes()) * time.Minute)
	existing, err := s.store.GetActiveByAgentBetween(ctx, agentID, start, end)
	if err != nil {
		return false, err
	}
	for _, other := range existing {
		if other.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func strPtr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
