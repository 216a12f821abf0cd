package database

import (
	"context"
	"database/sql"
	"fmt"

	"shift_reminder_bot/internal/domain/job"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Custom errors
var ErrJobNotFound = fmt.Errorf("job not found")

type PostgresJobRepository struct {
	db *sql.DB
}

func NewPostgresJobRepository(db *sql.DB) *PostgresJobRepository {
	return &PostgresJobRepository{db: db}
}

func (r *PostgresJobRepository) GetByID(ctx context.Context, id int64) (*job.Job, error) {
	query := `SELECT id, title, customer, location, night_before_time, day_of_time, timezone, created_at, updated_at
               FROM jobs WHERE id = $1`
	j := &job.Job{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&j.ID, &j.Title, &j.Customer, &j.Location,
		&j.NightBeforeTime, &j.DayOfTime, &j.Timezone,
		&j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("error getting job by ID: %w", err)
	}
	return j, nil
}
