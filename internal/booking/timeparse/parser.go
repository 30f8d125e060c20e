// Package timeparse extracts a single candidate future instant from a lead's
// free-text message. It deliberately recognizes only a small set of phrasings;
// anything else means "no preference parsed", never an error.
package timeparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"estatebot_backend/platform/config"
)

// Recognized forms, in priority order:
//
//	(a) today/tomorrow [at] H[:MM]am|pm   "tomorrow at 3pm"
//	(b) H[:MM]am|pm today/tomorrow        "3pm tomorrow"
//	(c) weekday [at] H[:MM]am|pm          "friday at 10:30am"
//	(d) bare H[:MM]am|pm                  "2pm"
var (
	reDayTime     = regexp.MustCompile(`(?i)\b(today|tomorrow)\s+(?:at\s+)?(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`)
	reTimeDay     = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)\s+(today|tomorrow)\b`)
	reWeekdayTime = regexp.MustCompile(`(?i)\b(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\s+(?:at\s+)?(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`)
	reBareTime    = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`)
)

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Parser resolves time phrases against a clock and a working-hours window.
type Parser struct {
	loc       *time.Location
	workStart int
	workEnd   int
	now       func() time.Time
}

// NewParser creates a parser using the configured timezone and working hours.
func NewParser(cfg config.BookingConfig) *Parser {
	return &Parser{
		loc:       cfg.GetTimezone(),
		workStart: cfg.GetWorkingHoursStart(),
		workEnd:   cfg.GetWorkingHoursEnd(),
		now:       time.Now,
	}
}

// WithClock replaces the wall clock, for tests.
func (p *Parser) WithClock(now func() time.Time) *Parser {
	p.now = now
	return p
}

// Parse returns the instant the text refers to, or nil when no recognized
// phrase yields a strictly-future instant inside working hours.
func (p *Parser) Parse(text string) *time.Time {
	now := p.now().In(p.loc)

	var candidate *time.Time
	switch {
	case reDayTime.MatchString(text):
		m := reDayTime.FindStringSubmatch(text)
		candidate = p.resolveRelativeDay(now, m[1], m[2], m[3], m[4])
	case reTimeDay.MatchString(text):
		m := reTimeDay.FindStringSubmatch(text)
		candidate = p.resolveRelativeDay(now, m[4], m[1], m[2], m[3])
	case reWeekdayTime.MatchString(text):
		m := reWeekdayTime.FindStringSubmatch(text)
		candidate = p.resolveWeekday(now, m[1], m[2], m[3], m[4])
	case reBareTime.MatchString(text):
		m := reBareTime.FindStringSubmatch(text)
		candidate = p.resolveRelativeDay(now, "today", m[1], m[2], m[3])
	}

	if candidate == nil {
		return nil
	}
	if !p.accept(now, *candidate) {
		return nil
	}
	return candidate
}

func (p *Parser) resolveRelativeDay(now time.Time, day, hourStr, minuteStr, meridiem string) *time.Time {
	hour, minute, ok := clockTime(hourStr, minuteStr, meridiem)
	if !ok {
		return nil
	}

	base := now
	if strings.EqualFold(day, "tomorrow") {
		base = base.AddDate(0, 0, 1)
	}

	t := time.Date(base.Year(), base.Month(), base.Day(), hour, minute, 0, 0, p.loc)
	return &t
}

func (p *Parser) resolveWeekday(now time.Time, dayName, hourStr, minuteStr, meridiem string) *time.Time {
	hour, minute, ok := clockTime(hourStr, minuteStr, meridiem)
	if !ok {
		return nil
	}

	target := weekdays[strings.ToLower(dayName)]
	delta := (int(target) - int(now.Weekday()) + 7) % 7
	// A bare weekday naming today means next week, not today.
	if delta == 0 {
		delta = 7
	}

	base := now.AddDate(0, 0, delta)
	t := time.Date(base.Year(), base.Month(), base.Day(), hour, minute, 0, 0, p.loc)
	return &t
}

// accept rejects instants in the past and outside working hours.
func (p *Parser) accept(now, t time.Time) bool {
	if !t.After(now) {
		return false
	}
	hour := t.Hour()
	return hour >= p.workStart && hour < p.workEnd
}

// clockTime converts a 12-hour reading to a 24-hour (hour, minute).
func clockTime(hourStr, minuteStr, meridiem string) (int, int, bool) {
	hour, err := strconv.Atoi(hourStr)
	if err != nil || hour < 1 || hour > 12 {
		return 0, 0, false
	}

	minute := 0
	if minuteStr != "" {
		minute, err = strconv.Atoi(minuteStr)
		if err != nil || minute > 59 {
			return 0, 0, false
		}
	}

	if strings.EqualFold(meridiem, "pm") {
		if hour != 12 {
			hour += 12
		}
	} else if hour == 12 {
		hour = 0
	}

	return hour, minute, true
}
