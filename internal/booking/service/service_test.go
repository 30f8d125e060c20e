package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"estatebot_backend/internal/booking/availability"
	"estatebot_backend/internal/booking/lifecycle"
	"estatebot_backend/internal/booking/repository"
	"estatebot_backend/internal/booking/timeparse"
	"estatebot_backend/internal/booking/transport"
	"estatebot_backend/internal/calendar"
	"estatebot_backend/internal/events"
	"estatebot_backend/internal/scheduler"
	"estatebot_backend/internal/video"
	"estatebot_backend/platform/apperr"
	"estatebot_backend/platform/config"
	"estatebot_backend/platform/lock"
	"estatebot_backend/platform/logger"

	"github.com/google/uuid"
)

// ----------------------------------------------------------------------------
// Fakes

type fakeStore struct {
	mu             sync.Mutex
	leads          map[uuid.UUID]*repository.Lead
	appts          map[uuid.UUID]*repository.Appointment
	failCreate     bool
	failLeadStatus bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		leads: make(map[uuid.UUID]*repository.Lead),
		appts: make(map[uuid.UUID]*repository.Appointment),
	}
}

func (f *fakeStore) Create(ctx context.Context, appt *repository.Appointment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return apperr.Unavailable("database unavailable", nil)
	}
	stored := *appt
	f.appts[appt.ID] = &stored
	return nil
}

func (f *fakeStore) GetByID(ctx context.Context, id uuid.UUID) (*repository.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	appt, ok := f.appts[id]
	if !ok {
		return nil, apperr.NotFound("appointment not found")
	}
	copied := *appt
	return &copied, nil
}

func (f *fakeStore) GetActiveByLead(ctx context.Context, leadID uuid.UUID) (*repository.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, appt := range f.appts {
		if appt.LeadID == leadID && appt.IsActive() {
			copied := *appt
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetActiveByAgentBetween(ctx context.Context, agentID uuid.UUID, from, to time.Time) ([]repository.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []repository.Appointment
	for _, appt := range f.appts {
		if appt.AgentID == agentID && appt.IsActive() &&
			appt.StartTime.Before(to) && appt.EndTime().After(from) {
			result = append(result, *appt)
		}
	}
	return result, nil
}

func (f *fakeStore) UpdateSchedule(ctx context.Context, id uuid.UUID, startTime time.Time, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	appt, ok := f.appts[id]
	if !ok {
		return apperr.NotFound("appointment not found")
	}
	appt.StartTime = startTime
	appt.Status = status
	return nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	appt, ok := f.appts[id]
	if !ok {
		return apperr.NotFound("appointment not found")
	}
	appt.Status = status
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.appts, id)
	return nil
}

func (f *fakeStore) GetLead(ctx context.Context, leadID uuid.UUID) (*repository.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead, ok := f.leads[leadID]
	if !ok {
		return nil, apperr.NotFound("lead not found")
	}
	copied := *lead
	return &copied, nil
}

func (f *fakeStore) UpdateLeadStatus(ctx context.Context, leadID uuid.UUID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failLeadStatus && status == lifecycle.LeadStatusBooked {
		return apperr.Unavailable("database unavailable", nil)
	}
	lead, ok := f.leads[leadID]
	if !ok {
		return apperr.NotFound("lead not found")
	}
	lead.Status = status
	return nil
}

func (f *fakeStore) SetBookingAlternatives(ctx context.Context, leadID uuid.UUID, alternatives []time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead, ok := f.leads[leadID]
	if !ok {
		return apperr.NotFound("lead not found")
	}
	lead.BookingAlternatives = alternatives
	return nil
}

type fakeVideo struct {
	mu         sync.Mutex
	meetings   map[string]video.MeetingInput
	creates    int
	updates    int
	deletes    int
	failCreate bool
	failUpdate bool
}

func newFakeVideo() *fakeVideo {
	return &fakeVideo{meetings: make(map[string]video.MeetingInput)}
}

func (f *fakeVideo) CreateMeeting(ctx context.Context, agentID uuid.UUID, input video.MeetingInput) (*video.Meeting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.failCreate {
		return nil, apperr.Unavailable("video provider down", nil)
	}
	id := fmt.Sprintf("meet-%d", f.creates)
	f.meetings[id] = input
	return &video.Meeting{ID: id, JoinURL: "https://video.example/j/" + id}, nil
}

func (f *fakeVideo) UpdateMeeting(ctx context.Context, agentID uuid.UUID, meetingID string, input video.MeetingInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	if f.failUpdate {
		return apperr.Unavailable("video provider down", nil)
	}
	if _, ok := f.meetings[meetingID]; !ok {
		return apperr.NotFound("video meeting not found")
	}
	f.meetings[meetingID] = input
	return nil
}

func (f *fakeVideo) DeleteMeeting(ctx context.Context, agentID uuid.UUID, meetingID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	delete(f.meetings, meetingID)
	return nil
}

type fakeCal struct {
	mu         sync.Mutex
	busy       []calendar.BusyInterval
	eventsByID map[string]calendar.EventInput
	creates    int
	updates    int
	deletes    int
	failCreate bool
}

func newFakeCal() *fakeCal {
	return &fakeCal{eventsByID: make(map[string]calendar.EventInput)}
}

func (f *fakeCal) CheckAvailability(ctx context.Context, agentID uuid.UUID, from, to time.Time) ([]calendar.BusyInterval, error) {
	return f.busy, nil
}

func (f *fakeCal) CreateEvent(ctx context.Context, agentID uuid.UUID, input calendar.EventInput) (*calendar.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.failCreate {
		return nil, apperr.Unavailable("calendar down", nil)
	}
	id := fmt.Sprintf("evt-%d", f.creates)
	f.eventsByID[id] = input
	return &calendar.Event{ID: id}, nil
}

func (f *fakeCal) UpdateEvent(ctx context.Context, agentID uuid.UUID, eventID string, input calendar.EventInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	if _, ok := f.eventsByID[eventID]; !ok {
		return apperr.NotFound("calendar resource not found")
	}
	f.eventsByID[eventID] = input
	return nil
}

func (f *fakeCal) DeleteEvent(ctx context.Context, agentID uuid.UUID, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	delete(f.eventsByID, eventID)
	return nil
}

type fakeLocker struct {
	contended bool
}

func (f *fakeLocker) WithSlotLock(ctx context.Context, agentID uuid.UUID, slotStart time.Time, fn func(ctx context.Context) error) error {
	if f.contended {
		return lock.ErrNotAcquired
	}
	return fn(ctx)
}

type fakeBus struct {
	mu     sync.Mutex
	names  []string
	events []events.Event
}

func (f *fakeBus) Publish(ctx context.Context, event events.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names = append(f.names, event.EventName())
	f.events = append(f.events, event)
}

func (f *fakeBus) PublishSync(ctx context.Context, event events.Event) error {
	f.Publish(ctx, event)
	return nil
}

func (f *fakeBus) Subscribe(eventName string, handler events.Handler) {}

func (f *fakeBus) has(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.names {
		if n == name {
			return true
		}
	}
	return false
}

type fakeReminders struct {
	scheduled []scheduler.AppointmentReminderPayload
}

func (f *fakeReminders) ScheduleAppointmentReminder(ctx context.Context, payload scheduler.AppointmentReminderPayload, runAt time.Time) error {
	f.scheduled = append(f.scheduled, payload)
	return nil
}

type fakeNotifier struct {
	messages []string
}

func (f *fakeNotifier) SendMessage(ctx context.Context, phone, message string) error {
	f.messages = append(f.messages, message)
	return nil
}

// ----------------------------------------------------------------------------
// Fixture

type fixture struct {
	svc       *Service
	store     *fakeStore
	cal       *fakeCal
	vid       *fakeVideo
	locker    *fakeLocker
	bus       *fakeBus
	reminders *fakeReminders
	notifier  *fakeNotifier
	agentID   uuid.UUID
	leadID    uuid.UUID
	now       time.Time
	loc       *time.Location
}

// Clock fixed far in the future so "tomorrow at 3pm" stays ahead of the
// real wall clock used by the reschedule validation.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Amsterdam")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	now := time.Date(2030, 9, 3, 10, 0, 0, 0, loc)

	cfg := &config.Config{
		MatchTolerance:      30 * time.Minute,
		WorkingHoursStart:   8,
		WorkingHoursEnd:     22,
		SlotDurationMinutes: 60,
		SearchDays:          14,
		Timezone:            loc,
		ReminderLead:        24 * time.Hour,
	}

	store := newFakeStore()
	cal := newFakeCal()
	vid := newFakeVideo()
	locker := &fakeLocker{}
	bus := &fakeBus{}
	reminders := &fakeReminders{}
	notifier := &fakeNotifier{}

	clock := func() time.Time { return now }
	parser := timeparse.NewParser(cfg).WithClock(clock)
	finder := availability.NewFinder(cal, cfg, logger.New("development")).WithClock(clock)
	matcher := availability.NewMatcher(parser, finder, cfg.MatchTolerance)

	svc := New(store, matcher, cal, vid, locker, bus, reminders, notifier, cfg, logger.New("development"))

	agentID := uuid.New()
	leadID := uuid.New()
	store.leads[leadID] = &repository.Lead{
		ID:              leadID,
		Name:            "Jan Visser",
		Phone:           "+31612345678",
		AssignedAgentID: &agentID,
		Status:          lifecycle.LeadStatusQualified,
	}

	return &fixture{
		svc: svc, store: store, cal: cal, vid: vid, locker: locker,
		bus: bus, reminders: reminders, notifier: notifier,
		agentID: agentID, leadID: leadID, now: now, loc: loc,
	}
}

func (fx *fixture) bookRequest() transport.BookRequest {
	return transport.BookRequest{
		LeadID:      fx.leadID,
		UserMessage: "tomorrow at 3pm",
	}
}

// ----------------------------------------------------------------------------
// Create saga

func TestFindAndBookSuccess(t *testing.T) {
	fx := newFixture(t)

	result, err := fx.svc.FindAndBook(context.Background(), fx.bookRequest())
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if !result.Success || result.Type != transport.TypeBooked {
		t.Fatalf("expected booked result, got %+v", result)
	}
	if result.Appointment == nil {
		t.Fatal("expected appointment in result")
	}

	want := time.Date(2030, 9, 4, 15, 0, 0, 0, fx.loc)
	if !result.Appointment.StartTime.Equal(want) {
		t.Fatalf("expected start %v, got %v", want, result.Appointment.StartTime)
	}
	if result.Appointment.JoinURL == "" {
		t.Fatal("expected a join url")
	}

	// Both provider resources must exist and be referenced by the row.
	stored, err := fx.store.GetByID(context.Background(), result.Appointment.ID)
	if err != nil {
		t.Fatalf("expected stored appointment: %v", err)
	}
	if stored.CalendarEventID == nil || stored.VideoMeetingID == nil {
		t.Fatal("expected both provider ids on the stored appointment")
	}
	if _, ok := fx.vid.meetings[*stored.VideoMeetingID]; !ok {
		t.Fatal("video meeting missing from provider records")
	}
	if _, ok := fx.cal.eventsByID[*stored.CalendarEventID]; !ok {
		t.Fatal("calendar event missing from provider records")
	}

	lead, _ := fx.store.GetLead(context.Background(), fx.leadID)
	if lead.Status != lifecycle.LeadStatusBooked {
		t.Fatalf("expected lead status %s, got %s", lifecycle.LeadStatusBooked, lead.Status)
	}
	if len(lead.BookingAlternatives) != 0 {
		t.Fatal("expected booking alternatives cleared")
	}

	if !fx.bus.has("booking.appointment.booked") {
		t.Fatal("expected AppointmentBooked event")
	}
	if len(fx.reminders.scheduled) != 1 {
		t.Fatalf("expected 1 reminder scheduled, got %d", len(fx.reminders.scheduled))
	}
	if len(fx.notifier.messages) != 1 {
		t.Fatalf("expected 1 confirmation message, got %d", len(fx.notifier.messages))
	}
}

func TestFindAndBookOffersAlternativesWhenDayFullyBooked(t *testing.T) {
	fx := newFixture(t)
	// Tomorrow is completely blocked.
	fx.cal.busy = []calendar.BusyInterval{
		{
			Start: time.Date(2030, 9, 4, 8, 0, 0, 0, fx.loc),
			End:   time.Date(2030, 9, 4, 22, 0, 0, 0, fx.loc),
		},
	}

	result, err := fx.svc.FindAndBook(context.Background(), fx.bookRequest())
	if err != nil {
		t.Fatalf("expected alternatives result, got error %v", err)
	}
	if result.Success || result.Type != transport.TypeAlternativesOffered {
		t.Fatalf("expected alternatives_offered, got %+v", result)
	}
	if len(result.Alternatives) == 0 || len(result.Alternatives) > availability.MaxResults {
		t.Fatalf("expected 1..%d alternatives, got %d", availability.MaxResults, len(result.Alternatives))
	}

	lead, _ := fx.store.GetLead(context.Background(), fx.leadID)
	if lead.Status != lifecycle.LeadStatusAlternativesOffered {
		t.Fatalf("expected lead status %s, got %s", lifecycle.LeadStatusAlternativesOffered, lead.Status)
	}
	if len(lead.BookingAlternatives) != len(result.Alternatives) {
		t.Fatal("expected alternatives persisted on the lead")
	}

	// The alternatives path must not touch the providers.
	if fx.vid.creates != 0 || fx.cal.creates != 0 {
		t.Fatal("expected no provider mutations on the alternatives path")
	}
	if !fx.bus.has("booking.alternatives.offered") {
		t.Fatal("expected BookingAlternativesOffered event")
	}
}

func TestFindAndBookCompensatesWhenInsertFails(t *testing.T) {
	fx := newFixture(t)
	fx.store.failCreate = true

	_, err := fx.svc.FindAndBook(context.Background(), fx.bookRequest())
	if err == nil {
		t.Fatal("expected error")
	}

	// No row, and both provider resources rolled back.
	if len(fx.store.appts) != 0 {
		t.Fatalf("expected no appointment rows, got %d", len(fx.store.appts))
	}
	if len(fx.vid.meetings) != 0 {
		t.Fatalf("expected video meeting deleted, still have %d", len(fx.vid.meetings))
	}
	if len(fx.cal.eventsByID) != 0 {
		t.Fatalf("expected calendar event deleted, still have %d", len(fx.cal.eventsByID))
	}
	if fx.vid.deletes != 1 || fx.cal.deletes != 1 {
		t.Fatalf("expected one delete per provider, got video=%d calendar=%d", fx.vid.deletes, fx.cal.deletes)
	}

	lead, _ := fx.store.GetLead(context.Background(), fx.leadID)
	if lead.Status != lifecycle.LeadStatusNeedsHuman {
		t.Fatalf("expected lead handed to a human, got %s", lead.Status)
	}
	if !fx.bus.has("booking.compensated") {
		t.Fatal("expected BookingCompensated event")
	}
}

func TestFindAndBookCompensatesVideoWhenCalendarFails(t *testing.T) {
	fx := newFixture(t)
	fx.cal.failCreate = true

	_, err := fx.svc.FindAndBook(context.Background(), fx.bookRequest())
	if err == nil {
		t.Fatal("expected error")
	}

	if len(fx.vid.meetings) != 0 {
		t.Fatal("expected video meeting deleted after calendar failure")
	}
	if fx.vid.deletes != 1 {
		t.Fatalf("expected exactly one video delete, got %d", fx.vid.deletes)
	}
	// Calendar create was retried but never succeeded, so nothing of it to
	// clean up.
	if fx.cal.deletes != 0 {
		t.Fatalf("expected no calendar deletes, got %d", fx.cal.deletes)
	}
	if len(fx.store.appts) != 0 {
		t.Fatal("expected no appointment rows")
	}
}

func TestFindAndBookRejectsIllegalState(t *testing.T) {
	fx := newFixture(t)
	fx.store.leads[fx.leadID].Status = lifecycle.LeadStatusNeedsHuman

	_, err := fx.svc.FindAndBook(context.Background(), fx.bookRequest())
	if apperr.GetKind(err) != apperr.KindState {
		t.Fatalf("expected state error, got %v", err)
	}
	if fx.vid.creates != 0 || fx.cal.creates != 0 {
		t.Fatal("expected no provider calls on an illegal action")
	}
}

func TestFindAndBookLockContentionFallsBackToAlternatives(t *testing.T) {
	fx := newFixture(t)
	fx.locker.contended = true

	result, err := fx.svc.FindAndBook(context.Background(), fx.bookRequest())
	if err != nil {
		t.Fatalf("expected alternatives result, got %v", err)
	}
	if result.Type != transport.TypeAlternativesOffered {
		t.Fatalf("expected alternatives_offered on contention, got %s", result.Type)
	}
	if fx.vid.creates != 0 {
		t.Fatal("expected no provider calls when the lock is contended")
	}
}

// ----------------------------------------------------------------------------
// Reschedule saga

func (fx *fixture) bookedAppointment(t *testing.T, start time.Time) *repository.Appointment {
	t.Helper()
	meeting, err := fx.vid.CreateMeeting(context.Background(), fx.agentID, video.MeetingInput{StartTime: start, DurationMinutes: 60})
	if err != nil {
		t.Fatalf("create meeting: %v", err)
	}
	event, err := fx.cal.CreateEvent(context.Background(), fx.agentID, calendar.EventInput{StartTime: start, EndTime: start.Add(time.Hour)})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}

	appt := &repository.Appointment{
		ID:              uuid.New(),
		LeadID:          fx.leadID,
		AgentID:         fx.agentID,
		StartTime:       start,
		DurationMinutes: 60,
		Status:          repository.StatusScheduled,
		CalendarEventID: &event.ID,
		VideoMeetingID:  &meeting.ID,
		VideoJoinURL:    &meeting.JoinURL,
	}
	if err := fx.store.Create(context.Background(), appt); err != nil {
		t.Fatalf("store appointment: %v", err)
	}
	fx.store.leads[fx.leadID].Status = lifecycle.LeadStatusBooked
	return appt
}

func TestRescheduleUpdatesProvidersInPlace(t *testing.T) {
	fx := newFixture(t)
	appt := fx.bookedAppointment(t, time.Date(2030, 9, 10, 15, 0, 0, 0, fx.loc))
	originalJoinURL := *appt.VideoJoinURL

	newStart := time.Date(2030, 9, 11, 17, 0, 0, 0, fx.loc)
	result, err := fx.svc.Reschedule(context.Background(), appt.ID, transport.RescheduleRequest{
		NewAppointmentTime: newStart,
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if !result.Success || result.Type != transport.TypeRescheduled {
		t.Fatalf("expected rescheduled result, got %+v", result)
	}

	stored, _ := fx.store.GetByID(context.Background(), appt.ID)
	if !stored.StartTime.Equal(newStart) {
		t.Fatalf("expected stored start %v, got %v", newStart, stored.StartTime)
	}
	if stored.Status != repository.StatusRescheduled {
		t.Fatalf("expected status rescheduled, got %s", stored.Status)
	}

	// Same external IDs, same join URL: updated in place, not recreated.
	if *stored.VideoMeetingID != *appt.VideoMeetingID || *stored.CalendarEventID != *appt.CalendarEventID {
		t.Fatal("expected provider ids preserved")
	}
	if *stored.VideoJoinURL != originalJoinURL {
		t.Fatal("expected join url preserved")
	}
	if fx.vid.creates != 1 || fx.cal.creates != 1 {
		t.Fatal("expected no new provider resources")
	}
	if fx.vid.updates != 1 || fx.cal.updates != 1 {
		t.Fatalf("expected one update per provider, got video=%d calendar=%d", fx.vid.updates, fx.cal.updates)
	}
	if !fx.bus.has("booking.appointment.rescheduled") {
		t.Fatal("expected AppointmentRescheduled event")
	}
}

func TestRescheduleConflictLeavesAppointmentUntouched(t *testing.T) {
	fx := newFixture(t)
	apptA := fx.bookedAppointment(t, time.Date(2030, 9, 10, 15, 0, 0, 0, fx.loc))

	// Another active appointment for the same agent at the target time.
	otherLead := uuid.New()
	fx.store.leads[otherLead] = &repository.Lead{ID: otherLead, Name: "Piet", Status: lifecycle.LeadStatusBooked}
	apptB := &repository.Appointment{
		ID:              uuid.New(),
		LeadID:          otherLead,
		AgentID:         fx.agentID,
		StartTime:       time.Date(2030, 9, 10, 17, 0, 0, 0, fx.loc),
		DurationMinutes: 60,
		Status:          repository.StatusScheduled,
	}
	if err := fx.store.Create(context.Background(), apptB); err != nil {
		t.Fatalf("store appointment: %v", err)
	}

	_, err := fx.svc.Reschedule(context.Background(), apptA.ID, transport.RescheduleRequest{
		NewAppointmentTime: apptB.StartTime,
	})
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}

	stored, _ := fx.store.GetByID(context.Background(), apptA.ID)
	if !stored.StartTime.Equal(apptA.StartTime) || stored.Status != repository.StatusScheduled {
		t.Fatal("expected original appointment unchanged after conflict")
	}
	if fx.vid.updates != 0 || fx.cal.updates != 0 {
		t.Fatal("expected no provider mutations on conflict")
	}
}

func TestRescheduleCompensatesVideoWhenRowUpdateTargetInvalid(t *testing.T) {
	fx := newFixture(t)
	appt := fx.bookedAppointment(t, time.Date(2030, 9, 10, 15, 0, 0, 0, fx.loc))

	// Force the video update to fail so nothing downstream runs.
	fx.vid.failUpdate = true

	newStart := time.Date(2030, 9, 11, 17, 0, 0, 0, fx.loc)
	_, err := fx.svc.Reschedule(context.Background(), appt.ID, transport.RescheduleRequest{
		NewAppointmentTime: newStart,
	})
	if err == nil {
		t.Fatal("expected error")
	}

	stored, _ := fx.store.GetByID(context.Background(), appt.ID)
	if !stored.StartTime.Equal(appt.StartTime) {
		t.Fatal("expected stored start time unchanged")
	}
	if fx.cal.updates != 0 {
		t.Fatal("expected calendar untouched after video failure")
	}
}

func TestRescheduleRejectsPastAndOutsideHours(t *testing.T) {
	fx := newFixture(t)
	appt := fx.bookedAppointment(t, time.Date(2030, 9, 10, 15, 0, 0, 0, fx.loc))

	tests := []time.Time{
		time.Date(2001, 1, 1, 15, 0, 0, 0, fx.loc),  // past
		time.Date(2030, 9, 11, 23, 0, 0, 0, fx.loc), // after closing
		time.Date(2030, 9, 11, 7, 0, 0, 0, fx.loc),  // before opening
	}

	for _, target := range tests {
		_, err := fx.svc.Reschedule(context.Background(), appt.ID, transport.RescheduleRequest{NewAppointmentTime: target})
		if apperr.GetKind(err) != apperr.KindValidation {
			t.Fatalf("Reschedule(%v): expected validation error, got %v", target, err)
		}
	}
}

// ----------------------------------------------------------------------------
// Cancel saga

func TestCancelDeletesProvidersAndIsIdempotent(t *testing.T) {
	fx := newFixture(t)
	appt := fx.bookedAppointment(t, time.Date(2030, 9, 10, 15, 0, 0, 0, fx.loc))

	result, err := fx.svc.Cancel(context.Background(), appt.ID)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if !result.Success || result.Type != transport.TypeCancelled {
		t.Fatalf("expected cancelled result, got %+v", result)
	}

	stored, _ := fx.store.GetByID(context.Background(), appt.ID)
	if stored.Status != repository.StatusCancelled {
		t.Fatalf("expected status cancelled, got %s", stored.Status)
	}
	if len(fx.vid.meetings) != 0 || len(fx.cal.eventsByID) != 0 {
		t.Fatal("expected provider resources deleted")
	}
	if fx.vid.deletes != 1 || fx.cal.deletes != 1 {
		t.Fatalf("expected one delete per provider, got video=%d calendar=%d", fx.vid.deletes, fx.cal.deletes)
	}

	lead, _ := fx.store.GetLead(context.Background(), fx.leadID)
	if lead.Status != lifecycle.LeadStatusCancelled {
		t.Fatalf("expected lead status %s, got %s", lifecycle.LeadStatusCancelled, lead.Status)
	}
	if !fx.bus.has("booking.appointment.cancelled") {
		t.Fatal("expected AppointmentCancelled event")
	}

	// Second cancel succeeds without another provider round trip.
	again, err := fx.svc.Cancel(context.Background(), appt.ID)
	if err != nil || !again.Success {
		t.Fatalf("expected idempotent cancel, got %+v / %v", again, err)
	}
	if fx.vid.deletes != 1 || fx.cal.deletes != 1 {
		t.Fatalf("expected no further provider deletes, got video=%d calendar=%d", fx.vid.deletes, fx.cal.deletes)
	}
}
