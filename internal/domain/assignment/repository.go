// internal/domain/assignment/repository.go
package assignment

import (
	"context"
	"time"

	"shift_reminder_bot/internal/domain/confirmation"
)

// Repository defines the assignment-store operations this core needs.
// Implementations must make MarkReminderSent and UpdateConfirmation atomic so
// that overlapping runs and racing inbound replies never clobber each other.
type Repository interface {
	// ListUpcoming returns non-terminal placements whose work date falls in
	// [from, to] (date granularity). Order across placements is irrelevant.
	ListUpcoming(ctx context.Context, from, to time.Time) ([]*Placement, error)

	// ListActiveByAssociate returns the associate's nearest upcoming
	// non-terminal placements (work date on or after onOrAfter), ordered by
	// work date then start time, capped at limit. Callers use the first two
	// entries to detect ambiguity.
	ListActiveByAssociate(ctx context.Context, associateID int64, onOrAfter time.Time, limit int) ([]*Placement, error)

	// GetByJobAndAssociate returns the nearest placement for the pair with a
	// work date on or after onOrAfter.
	GetByJobAndAssociate(ctx context.Context, jobID, associateID int64, onOrAfter time.Time) (*Placement, error)

	// MarkReminderSent stamps the class as sent and bumps last_activity_at,
	// guarded by "not already sent and not terminal" inside the same
	// statement. A placement that lost that race yields ErrReminderAlreadySent.
	MarkReminderSent(ctx context.Context, placementID int64, class ReminderClass, sentAt time.Time) error

	// UpdateConfirmation moves confirmation_status from 'from' to 'to' with an
	// optimistic-concurrency check on 'from', stamping last_activity_at and,
	// when confirmed is true, last_confirmed_at. A concurrent change yields
	// ErrStaleUpdate.
	UpdateConfirmation(ctx context.Context, placementID int64, from, to confirmation.Status, confirmed bool, at time.Time) error
}
