package database

import (
	"context"
	"database/sql"
	"fmt"

	"shift_reminder_bot/internal/domain/associate"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Custom errors
var ErrAssociateNotFound = fmt.Errorf("associate not found")

type PostgresAssociateRepository struct {
	db *sql.DB
}

func NewPostgresAssociateRepository(db *sql.DB) *PostgresAssociateRepository {
	return &PostgresAssociateRepository{db: db}
}

func (r *PostgresAssociateRepository) GetByID(ctx context.Context, id int64) (*associate.Associate, error) {
	query := `SELECT id, first_name, last_name, phone, opted_out, created_at, updated_at
               FROM associates WHERE id = $1`
	a := &associate.Associate{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&a.ID, &a.FirstName, &a.LastName, &a.Phone, &a.OptedOut, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrAssociateNotFound
		}
		return nil, fmt.Errorf("error getting associate by ID: %w", err)
	}
	return a, nil
}

func (r *PostgresAssociateRepository) GetByPhone(ctx context.Context, phone string) (*associate.Associate, error) {
	query := `SELECT id, first_name, last_name, phone, opted_out, created_at, updated_at
               FROM associates WHERE phone = $1`
	a := &associate.Associate{}
	err := r.db.QueryRowContext(ctx, query, phone).Scan(&a.ID, &a.FirstName, &a.LastName, &a.Phone, &a.OptedOut, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrAssociateNotFound
		}
		return nil, fmt.Errorf("error getting associate by phone: %w", err)
	}
	return a, nil
}

func (r *PostgresAssociateRepository) SetOptOut(ctx context.Context, id int64, optedOut bool) error {
	query := `UPDATE associates SET opted_out = $1, updated_at = NOW() WHERE id = $2`
	res, err := r.db.ExecContext(ctx, query, optedOut, id)
	if err != nil {
		return fmt.Errorf("error setting opt-out for associate %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading rows affected for associate %d: %w", id, err)
	}
	if affected == 0 {
		return ErrAssociateNotFound
	}
	return nil
}
