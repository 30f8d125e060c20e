package whatsapp

import (
	"fmt"
	"strings"
	"time"
)

// Message builders for the booking flow. All times are rendered in the
// timezone the appointment was booked in.

const timeFormat = "Monday 2 January at 15:04"

// BookingConfirmation is sent after a viewing is successfully booked.
func BookingConfirmation(leadName string, startTime time.Time, joinURL string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s! Your viewing is confirmed for %s.", firstName(leadName), startTime.Format(timeFormat))
	if joinURL != "" {
		fmt.Fprintf(&b, "\n\nJoin the video call here: %s", joinURL)
	}
	b.WriteString("\n\nSee you then!")
	return b.String()
}

// RescheduleNotice is sent after an appointment moved to a new time.
func RescheduleNotice(leadName string, newStartTime time.Time, joinURL string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s! Your viewing has been moved to %s.", firstName(leadName), newStartTime.Format(timeFormat))
	if joinURL != "" {
		fmt.Fprintf(&b, "\n\nThe video call link stays the same: %s", joinURL)
	}
	return b.String()
}

// CancellationNotice is sent after an appointment is cancelled.
func CancellationNotice(leadName string) string {
	return fmt.Sprintf("Hi %s, your viewing has been cancelled. Message us any time if you'd like to pick a new moment.", firstName(leadName))
}

// Reminder is sent ahead of an upcoming viewing.
func Reminder(leadName string, startTime time.Time, joinURL string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s! A quick reminder: your viewing is %s.", firstName(leadName), startTime.Format(timeFormat))
	if joinURL != "" {
		fmt.Fprintf(&b, "\n\nJoin here: %s", joinURL)
	}
	return b.String()
}

func firstName(fullName string) string {
	trimmed := strings.TrimSpace(fullName)
	if trimmed == "" {
		return "there"
	}
	if idx := strings.IndexByte(trimmed, ' '); idx > 0 {
		return trimmed[:idx]
	}
	return trimmed
}
