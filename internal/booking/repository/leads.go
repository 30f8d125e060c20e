package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"estatebot_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Lead holds the slice of the lead row the booking flow reads and writes.
// The qualification pipeline owns the rest of the record.
type Lead struct {
	ID                  uuid.UUID   `db:"id"`
	Name                string      `db:"name"`
	Phone               string      `db:"phone"`
	AssignedAgentID     *uuid.UUID  `db:"assigned_agent_id"`
	Status              string      `db:"status"`
	BookingAlternatives []time.Time `db:"booking_alternatives"`
}

const leadNotFoundMsg = "lead not found"

// GetLead retrieves the booking view of a lead.
func (r *Repository) GetLead(ctx context.Context, leadID uuid.UUID) (*Lead, error) {
	var lead Lead
	query := `SELECT id, name, phone, assigned_agent_id, status, booking_alternatives
		FROM leads WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, leadID).Scan(
		&lead.ID, &lead.Name, &lead.Phone, &lead.AssignedAgentID, &lead.Status, &lead.BookingAlternatives,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(leadNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}

	return &lead, nil
}

// UpdateLeadStatus moves the lead to a new qualification status.
func (r *Repository) UpdateLeadStatus(ctx context.Context, leadID uuid.UUID, status string) error {
	query := `UPDATE leads SET status = $2, updated_at = $3 WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, leadID, status, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update lead status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(leadNotFoundMsg)
	}

	return nil
}

// SetBookingAlternatives stores the slot candidates last offered to the lead,
// so a follow-up message can be matched against them. Pass nil to clear.
func (r *Repository) SetBookingAlternatives(ctx context.Context, leadID uuid.UUID, alternatives []time.Time) error {
	query := `UPDATE leads SET booking_alternatives = $2, updated_at = $3 WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, leadID, alternatives, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set booking alternatives: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(leadNotFoundMsg)
	}

	return nil
}
