// Package availability computes bookable slots for an agent from calendar
// busy intervals and the working-hours window, and matches a lead's parsed
// time preference against them.
package availability

import (
	"context"
	"sort"
	"time"

	"estatebot_backend/internal/calendar"
	"estatebot_backend/platform/config"
	"estatebot_backend/platform/logger"

	"github.com/google/uuid"
)

// MaxResults caps the number of slots offered in one message.
const MaxResults = 5

// Finder enumerates free slots for an agent.
type Finder struct {
	calendar calendar.Provider
	cfg      config.BookingConfig
	log      *logger.Logger
	now      func() time.Time
}

// NewFinder creates a Finder backed by the calendar provider.
func NewFinder(cal calendar.Provider, cfg config.BookingConfig, log *logger.Logger) *Finder {
	return &Finder{
		calendar: cal,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// WithClock replaces the wall clock, for tests.
func (f *Finder) WithClock(now func() time.Time) *Finder {
	f.now = now
	return f
}

// FindSlots returns up to MaxResults bookable slot start times. When
// preferred is given the results are ordered by distance to it, otherwise
// chronologically. A calendar failure yields an empty result: the caller
// treats "no slots" as "defer to a human", never as an error.
func (f *Finder) FindSlots(ctx context.Context, agentID uuid.UUID, preferred *time.Time, daysToSearch int) []time.Time {
	if daysToSearch <= 0 {
		daysToSearch = f.cfg.GetSearchDays()
	}

	loc := f.cfg.GetTimezone()
	now := f.now().In(loc)

	searchStart := f.searchStart(now, preferred)
	searchEnd := f.closingOn(searchStart.AddDate(0, 0, daysToSearch))

	busy, err := f.calendar.CheckAvailability(ctx, agentID, searchStart, searchEnd)
	if err != nil {
		f.log.Warn("availability lookup failed, offering no slots",
			"agent_id", agentID.String(),
			"error", err.Error(),
		)
		return nil
	}

	slots := f.freeSlots(now, searchStart, searchEnd, busy)

	if preferred != nil {
		target := *preferred
		sort.SliceStable(slots, func(i, j int) bool {
			return absDistance(slots[i], target) < absDistance(slots[j], target)
		})
	}

	if len(slots) > MaxResults {
		slots = slots[:MaxResults]
	}
	return slots
}

// searchStart picks where slot enumeration begins: the preferred day's
// opening hour when the preference is in the future, otherwise "now",
// rolled to the next opening when today is already closed.
func (f *Finder) searchStart(now time.Time, preferred *time.Time) time.Time {
	loc := f.cfg.GetTimezone()

	if preferred != nil && preferred.After(now) {
		p := preferred.In(loc)
		return time.Date(p.Year(), p.Month(), p.Day(), f.cfg.GetWorkingHoursStart(), 0, 0, 0, loc)
	}

	if now.Hour() >= f.cfg.GetWorkingHoursEnd() {
		next := now.AddDate(0, 0, 1)
		return time.Date(next.Year(), next.Month(), next.Day(), f.cfg.GetWorkingHoursStart(), 0, 0, 0, loc)
	}
	return now
}

func (f *Finder) closingOn(day time.Time) time.Time {
	loc := f.cfg.GetTimezone()
	d := day.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), f.cfg.GetWorkingHoursEnd(), 0, 0, 0, loc)
}

// freeSlots enumerates hourly slot starts inside working hours between
// searchStart and searchEnd and drops those in the past or overlapping a
// busy interval.
func (f *Finder) freeSlots(now, searchStart, searchEnd time.Time, busy []calendar.BusyInterval) []time.Time {
	loc := f.cfg.GetTimezone()
	duration := time.Duration(f.cfg.GetSlotDurationMinutes()) * time.Minute

	var slots []time.Time
	day := searchStart.In(loc)

	for !day.After(searchEnd) {
		for hour := f.cfg.GetWorkingHoursStart(); hour < f.cfg.GetWorkingHoursEnd(); hour++ {
			slotStart := time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, loc)
			slotEnd := slotStart.Add(duration)

			// The whole slot must fit before closing.
			if hour*60+f.cfg.GetSlotDurationMinutes() > f.cfg.GetWorkingHoursEnd()*60 {
				continue
			}
			if slotStart.Before(searchStart) || !slotStart.After(now) || slotStart.After(searchEnd) {
				continue
			}
			if overlapsAny(slotStart, slotEnd, busy) {
				continue
			}
			slots = append(slots, slotStart)
		}
		day = day.AddDate(0, 0, 1)
	}

	return slots
}

// overlapsAny tests the half-open slot window against each busy interval.
func overlapsAny(slotStart, slotEnd time.Time, busy []calendar.BusyInterval) bool {
	for _, b := range busy {
		if slotStart.Before(b.End) && slotEnd.After(b.Start) {
			return true
		}
	}
	return false
}

func absDistance(a, b time.Time) time.Duration {
	d := a.Sub(b)
	if d < 0 {
		return -d
	}
	return d
}
