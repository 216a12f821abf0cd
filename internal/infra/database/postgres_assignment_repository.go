// internal/infra/database/postgres_assignment_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"shift_reminder_bot/internal/domain/assignment"
	"shift_reminder_bot/internal/domain/confirmation"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Custom errors specific to the assignment repository
var ErrPlacementNotFound = fmt.Errorf("placement not found")
var ErrReminderAlreadySent = fmt.Errorf("reminder already sent or placement terminal")
var ErrStaleUpdate = fmt.Errorf("placement confirmation status changed concurrently")
var ErrUnknownReminderClass = fmt.Errorf("unknown reminder class")

const placementColumns = `id, job_id, associate_id, work_date, start_time, confirmation_status,
        night_before_sent_at, day_of_sent_at, last_activity_at, last_confirmed_at, created_at, updated_at`

type PostgresAssignmentRepository struct {
	db *sql.DB
}

func NewPostgresAssignmentRepository(db *sql.DB) *PostgresAssignmentRepository {
	return &PostgresAssignmentRepository{db: db}
}

func (r *PostgresAssignmentRepository) ListUpcoming(ctx context.Context, from, to time.Time) ([]*assignment.Placement, error) {
	query := `SELECT ` + placementColumns + `
               FROM placements
               WHERE work_date >= $1 AND work_date <= $2
                 AND confirmation_status NOT IN ($3, $4)
               ORDER BY work_date, start_time`
	rows, err := r.db.QueryContext(ctx, query, dateOnly(from), dateOnly(to),
		confirmation.StatusConfirmed, confirmation.StatusDeclined)
	if err != nil {
		return nil, fmt.Errorf("error querying upcoming placements: %w", err)
	}
	defer rows.Close()
	return scanPlacements(rows)
}

func (r *PostgresAssignmentRepository) ListActiveByAssociate(ctx context.Context, associateID int64, onOrAfter time.Time, limit int) ([]*assignment.Placement, error) {
	query := `SELECT ` + placementColumns + `
               FROM placements
               WHERE associate_id = $1 AND work_date >= $2
                 AND confirmation_status NOT IN ($3, $4)
               ORDER BY work_date, start_time
               LIMIT $5`
	rows, err := r.db.QueryContext(ctx, query, associateID, dateOnly(onOrAfter),
		confirmation.StatusConfirmed, confirmation.StatusDeclined, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying active placements for associate %d: %w", associateID, err)
	}
	defer rows.Close()
	return scanPlacements(rows)
}

func (r *PostgresAssignmentRepository) GetByJobAndAssociate(ctx context.Context, jobID, associateID int64, onOrAfter time.Time) (*assignment.Placement, error) {
	query := `SELECT ` + placementColumns + `
               FROM placements
               WHERE job_id = $1 AND associate_id = $2 AND work_date >= $3
               ORDER BY work_date, start_time
               LIMIT 1`
	p := assignment.Placement{}
	err := r.db.QueryRowContext(ctx, query, jobID, associateID, dateOnly(onOrAfter)).Scan(
		&p.ID, &p.JobID, &p.AssociateID, &p.WorkDate, &p.StartTime, &p.ConfirmationStatus,
		&p.NightBeforeSentAt, &p.DayOfSentAt, &p.LastActivityAt, &p.LastConfirmedAt,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrPlacementNotFound
		}
		return nil, fmt.Errorf("error getting placement by job and associate: %w", err)
	}
	return &p, nil
}

// MarkReminderSent stamps a reminder class as sent. The WHERE clause carries
// the "not yet sent, not terminal" check so the read-check-write is a single
// atomic statement; losing that race surfaces as ErrReminderAlreadySent.
func (r *PostgresAssignmentRepository) MarkReminderSent(ctx context.Context, placementID int64, class assignment.ReminderClass, sentAt time.Time) error {
	column, err := sentColumn(class)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE placements
               SET %s = $1, last_activity_at = $1, updated_at = NOW()
               WHERE id = $2 AND %s IS NULL AND confirmation_status NOT IN ($3, $4)`, column, column)
	res, err := r.db.ExecContext(ctx, query, sentAt, placementID,
		confirmation.StatusConfirmed, confirmation.StatusDeclined)
	if err != nil {
		return fmt.Errorf("error marking %s reminder sent for placement %d: %w", class, placementID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading rows affected for placement %d: %w", placementID, err)
	}
	if affected == 0 {
		return ErrReminderAlreadySent
	}
	return nil
}

// UpdateConfirmation applies a state-machine transition with an optimistic
// check on the expected current status, preventing a racing inbound reply or
// reminder stamp from being silently overwritten.
func (r *PostgresAssignmentRepository) UpdateConfirmation(ctx context.Context, placementID int64, from, to confirmation.Status, confirmed bool, at time.Time) error {
	query := `UPDATE placements
               SET confirmation_status = $1,
                   last_activity_at = $2,
                   last_confirmed_at = CASE WHEN $3 THEN $2 ELSE last_confirmed_at END,
                   updated_at = NOW()
               WHERE id = $4 AND confirmation_status = $5`
	res, err := r.db.ExecContext(ctx, query, to, at, confirmed, placementID, from)
	if err != nil {
		return fmt.Errorf("error updating confirmation for placement %d: %w", placementID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading rows affected for placement %d: %w", placementID, err)
	}
	if affected == 0 {
		return ErrStaleUpdate
	}
	return nil
}

func sentColumn(class assignment.ReminderClass) (string, error) {
	switch class {
	case assignment.ClassNightBefore:
		return "night_before_sent_at", nil
	case assignment.ClassDayOf:
		return "day_of_sent_at", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownReminderClass, class)
	}
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func scanPlacements(rows *sql.Rows) ([]*assignment.Placement, error) {
	placements := make([]*assignment.Placement, 0)
	for rows.Next() {
		p := assignment.Placement{}
		if err := rows.Scan(
			&p.ID, &p.JobID, &p.AssociateID, &p.WorkDate, &p.StartTime, &p.ConfirmationStatus,
			&p.NightBeforeSentAt, &p.DayOfSentAt, &p.LastActivityAt, &p.LastConfirmedAt,
			&p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("error scanning placement row: %w", err)
		}
		placements = append(placements, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating placement rows: %w", err)
	}
	return placements, nil
}
