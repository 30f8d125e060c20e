// Package lifecycle derives the appointment lifecycle state of a lead and
// validates which booking actions are legal in it. Derivation is a pure
// function of the lead row and the active appointment; nothing here mutates.
package lifecycle

import (
	"fmt"

	"estatebot_backend/internal/booking/repository"
	"estatebot_backend/platform/apperr"
)

// Lead statuses the booking flow reads and writes. The qualification
// pipeline owns the earlier statuses; booking owns the later ones.
const (
	LeadStatusNew                 = "new"
	LeadStatusQualifying          = "qualifying"
	LeadStatusQualified           = "qualified"
	LeadStatusAlternativesOffered = "booking_alternatives_offered"
	LeadStatusSelectingTime       = "selecting_time"
	LeadStatusConfirming          = "confirming"
	LeadStatusBooked              = "appointment_booked"
	LeadStatusRescheduling        = "rescheduling"
	LeadStatusCancelled           = "appointment_cancelled"
	LeadStatusNeedsHuman          = "needs_human_handoff"
)

// State is the derived lifecycle state of a lead's booking journey.
type State int

const (
	StateInitial State = iota
	StateQualifying
	StateQualified
	StateSelectingTime
	StateConfirming
	StateBooked
	StateRescheduling
	StateCancelled
	StateNeedsHuman
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StateQualifying:
		return "qualifying"
	case StateQualified:
		return "qualified"
	case StateSelectingTime:
		return "selecting_time"
	case StateConfirming:
		return "confirming"
	case StateBooked:
		return "booked"
	case StateRescheduling:
		return "rescheduling"
	case StateCancelled:
		return "cancelled"
	case StateNeedsHuman:
		return "needs_human"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Action is a closed enumeration of the booking actions a caller may request.
type Action int

const (
	ActionBook Action = iota
	ActionSelectAlternative
	ActionReschedule
	ActionCancel
)

func (a Action) String() string {
	switch a {
	case ActionBook:
		return "book"
	case ActionSelectAlternative:
		return "select_alternative"
	case ActionReschedule:
		return "reschedule"
	case ActionCancel:
		return "cancel"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Derive computes the lifecycle state from the lead row and the lead's
// active appointment (nil when there is none).
func Derive(lead *repository.Lead, active *repository.Appointment) State {
	if lead.Status == LeadStatusNeedsHuman {
		return StateNeedsHuman
	}

	if active != nil {
		if lead.Status == LeadStatusRescheduling {
			return StateRescheduling
		}
		return StateBooked
	}

	switch lead.Status {
	case LeadStatusCancelled:
		return StateCancelled
	case LeadStatusAlternativesOffered, LeadStatusSelectingTime:
		return StateSelectingTime
	case LeadStatusConfirming:
		return StateConfirming
	case LeadStatusQualified:
		return StateQualified
	case LeadStatusQualifying:
		return StateQualifying
	default:
		return StateInitial
	}
}

// Validate rejects actions that are illegal in the given state. The returned
// error carries a clarifying message for the lead; no mutation may be
// attempted when it is non-nil.
func Validate(action Action, state State) error {
	if allowed(action, state) {
		return nil
	}
	return apperr.State(clarify(action, state))
}

// allowed is the exhaustive action-by-state legality table.
func allowed(action Action, state State) bool {
	switch action {
	case ActionBook:
		return state == StateQualified || state == StateSelectingTime || state == StateConfirming
	case ActionSelectAlternative:
		return state == StateSelectingTime
	case ActionReschedule:
		return state == StateBooked
	case ActionCancel:
		return state == StateBooked || state == StateRescheduling
	default:
		return false
	}
}

func clarify(action Action, state State) string {
	switch action {
	case ActionBook:
		if state == StateBooked || state == StateRescheduling {
			return "you already have a viewing booked, would you like to move or cancel it instead?"
		}
		return "let's finish a few quick questions before booking a viewing"
	case ActionSelectAlternative:
		return "there are no proposed times to pick from right now, tell me a time that suits you"
	case ActionReschedule:
		return "there is no booked viewing to move, shall we pick a time first?"
	case ActionCancel:
		return "there is no booked viewing to cancel"
	default:
		return "that action is not available right now"
	}
}
