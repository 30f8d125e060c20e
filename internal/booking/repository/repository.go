package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"estatebot_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Appointment statuses. Scheduled and rescheduled appointments are "active":
// they own live provider resources and block the lead from booking again.
const (
	StatusScheduled   = "scheduled"
	StatusRescheduled = "rescheduled"
	StatusCancelled   = "cancelled"
	StatusCompleted   = "completed"
)

// Appointment represents the appointment database model
type Appointment struct {
	ID              uuid.UUID `db:"id"`
	LeadID          uuid.UUID `db:"lead_id"`
	AgentID         uuid.UUID `db:"agent_id"`
	StartTime       time.Time `db:"start_time"`
	DurationMinutes int       `db:"duration_minutes"`
	Status          string    `db:"status"`
	CalendarEventID *string   `db:"calendar_event_id"`
	VideoMeetingID  *string   `db:"video_meeting_id"`
	VideoJoinURL    *string   `db:"video_join_url"`
	Notes           *string   `db:"notes"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

// EndTime returns the exclusive end of the appointment window.
func (a *Appointment) EndTime() time.Time {
	return a.StartTime.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// IsActive reports whether the appointment still owns its provider resources.
func (a *Appointment) IsActive() bool {
	return a.Status == StatusScheduled || a.Status == StatusRescheduled
}

// Repository provides database operations for appointments and the lead
// columns owned by the booking flow.
type Repository struct {
	pool *pgxpool.Pool
}

const appointmentNotFoundMsg = "appointment not found"

// New creates a new booking repository
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const appointmentColumns = `id, lead_id, agent_id, start_time, duration_minutes, status,
	calendar_event_id, video_meeting_id, video_join_url, notes, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var appt Appointment
	err := row.Scan(
		&appt.ID, &appt.LeadID, &appt.AgentID, &appt.StartTime, &appt.DurationMinutes,
		&appt.Status, &appt.CalendarEventID, &appt.VideoMeetingID, &appt.VideoJoinURL,
		&appt.Notes, &appt.CreatedAt, &appt.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &appt, nil
}

// Create inserts a new appointment. The partial unique index on active
// appointments per lead turns a double insert into a conflict.
func (r *Repository) Create(ctx context.Context, appt *Appointment) error {
	query := `
		INSERT INTO appointments (
			id, lead_id, agent_id, start_time, duration_minutes, status,
			calendar_event_id, video_meeting_id, video_join_url, notes, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)`

	_, err := r.pool.Exec(ctx, query,
		appt.ID, appt.LeadID, appt.AgentID, appt.StartTime, appt.DurationMinutes,
		appt.Status, appt.CalendarEventID, appt.VideoMeetingID, appt.VideoJoinURL,
		appt.Notes, appt.CreatedAt, appt.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflict("lead already has an active appointment")
		}
		return fmt.Errorf("failed to create appointment: %w", err)
	}

	return nil
}

// GetByID retrieves an appointment by its ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	appt, err := scanAppointment(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(appointmentNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}

	return appt, nil
}

// GetActiveByLead returns the lead's scheduled or rescheduled appointment,
// or nil when the lead has none.
func (r *Repository) GetActiveByLead(ctx context.Context, leadID uuid.UUID) (*Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments
		WHERE lead_id = $1 AND status IN ($2, $3)
		ORDER BY created_at DESC LIMIT 1`

	appt, err := scanAppointment(r.pool.QueryRow(ctx, query, leadID, StatusScheduled, StatusRescheduled))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active appointment: %w", err)
	}

	return appt, nil
}

// GetActiveByAgentBetween returns the agent's active appointments overlapping
// [from, to). Used as a second conflict net beside the calendar provider.
func (r *Repository) GetActiveByAgentBetween(ctx context.Context, agentID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments
		WHERE agent_id = $1 AND status IN ($2, $3)
		AND start_time < $5
		AND start_time + (duration_minutes || ' minutes')::interval > $4
		ORDER BY start_time`

	rows, err := r.pool.Query(ctx, query, agentID, StatusScheduled, StatusRescheduled, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list agent appointments: %w", err)
	}
	defer rows.Close()

	var appointments []Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		appointments = append(appointments, *appt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read agent appointments: %w", err)
	}

	return appointments, nil
}

// UpdateSchedule moves an appointment to a new start time and status.
func (r *Repository) UpdateSchedule(ctx context.Context, id uuid.UUID, startTime time.Time, status string) error {
	query := `UPDATE appointments SET start_time = $2, status = $3, updated_at = $4 WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, startTime, status, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update appointment schedule: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(appointmentNotFoundMsg)
	}

	return nil
}

// UpdateStatus sets the appointment status.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	query := `UPDATE appointments SET status = $2, updated_at = $3 WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, status, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update appointment status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(appointmentNotFoundMsg)
	}

	return nil
}

// Delete removes an appointment row. Only used to roll back a failed booking;
// cancelled appointments are kept with status 'cancelled'.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a postgres unique_violation.
func isUniqueViolation(err error) bool {
	type sqlState interface{ SQLState() string }
	var state sqlState
	if errors.As(err, &state) {
		return state.SQLState() == "23505"
	}
	return false
}
