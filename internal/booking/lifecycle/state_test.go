package lifecycle

import (
	"testing"

	"estatebot_backend/internal/booking/repository"
	"estatebot_backend/platform/apperr"

	"github.com/google/uuid"
)

func lead(status string) *repository.Lead {
	return &repository.Lead{ID: uuid.New(), Name: "Jan Visser", Status: status}
}

func activeAppointment() *repository.Appointment {
	return &repository.Appointment{ID: uuid.New(), Status: repository.StatusScheduled}
}

func TestDerive(t *testing.T) {
	tests := []struct {
		name   string
		lead   *repository.Lead
		active *repository.Appointment
		want   State
	}{
		{"needs human wins over everything", lead(LeadStatusNeedsHuman), activeAppointment(), StateNeedsHuman},
		{"active appointment means booked", lead(LeadStatusBooked), activeAppointment(), StateBooked},
		{"active appointment while rescheduling", lead(LeadStatusRescheduling), activeAppointment(), StateRescheduling},
		{"cancelled without active appointment", lead(LeadStatusCancelled), nil, StateCancelled},
		{"alternatives offered maps to selecting time", lead(LeadStatusAlternativesOffered), nil, StateSelectingTime},
		{"selecting time", lead(LeadStatusSelectingTime), nil, StateSelectingTime},
		{"confirming", lead(LeadStatusConfirming), nil, StateConfirming},
		{"qualified", lead(LeadStatusQualified), nil, StateQualified},
		{"qualifying", lead(LeadStatusQualifying), nil, StateQualifying},
		{"new lead is initial", lead(LeadStatusNew), nil, StateInitial},
		{"unknown status is initial", lead("something_else"), nil, StateInitial},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Derive(tt.lead, tt.active); got != tt.want {
				t.Fatalf("Derive() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	legal := []struct {
		action Action
		state  State
	}{
		{ActionBook, StateQualified},
		{ActionBook, StateSelectingTime},
		{ActionBook, StateConfirming},
		{ActionSelectAlternative, StateSelectingTime},
		{ActionReschedule, StateBooked},
		{ActionCancel, StateBooked},
		{ActionCancel, StateRescheduling},
	}
	for _, tt := range legal {
		if err := Validate(tt.action, tt.state); err != nil {
			t.Fatalf("Validate(%v, %v) = %v, want nil", tt.action, tt.state, err)
		}
	}

	illegal := []struct {
		action Action
		state  State
	}{
		{ActionBook, StateBooked},
		{ActionBook, StateQualifying},
		{ActionBook, StateNeedsHuman},
		{ActionSelectAlternative, StateQualified},
		{ActionSelectAlternative, StateBooked},
		{ActionReschedule, StateQualified},
		{ActionReschedule, StateCancelled},
		{ActionCancel, StateQualified},
		{ActionCancel, StateCancelled},
	}
	for _, tt := range illegal {
		err := Validate(tt.action, tt.state)
		if err == nil {
			t.Fatalf("Validate(%v, %v) = nil, want state error", tt.action, tt.state)
		}
		if apperr.GetKind(err) != apperr.KindState {
			t.Fatalf("Validate(%v, %v) kind = %v, want KindState", tt.action, tt.state, apperr.GetKind(err))
		}
	}
}
