// internal/domain/assignment/placement.go
package assignment

import (
	"database/sql"
	"time"

	"shift_reminder_bot/internal/domain/confirmation"
)

// ReminderClass identifies which of the two scheduled reminders is meant.
type ReminderClass string

const (
	ClassNightBefore ReminderClass = "NIGHT_BEFORE"
	ClassDayOf       ReminderClass = "DAY_OF"
)

// Classes lists every reminder class in send order.
var Classes = []ReminderClass{ClassNightBefore, ClassDayOf}

// Placement pairs one associate with one scheduled job occurrence. It is the
// unit of reminder and confirmation tracking.
// Corresponds to the 'placements' table.
type Placement struct {
	ID                 int64
	JobID              int64
	AssociateID        int64
	WorkDate           time.Time // DATE in DB; local calendar date of the shift
	StartTime          string    // "HH:mm" local wall-clock start
	ConfirmationStatus confirmation.Status
	NightBeforeSentAt  sql.NullTime
	DayOfSentAt        sql.NullTime
	LastActivityAt     sql.NullTime
	LastConfirmedAt    sql.NullTime
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// SentAt returns the send stamp for the given reminder class. A valid stamp
// means that class has already been delivered for this placement.
func (p *Placement) SentAt(class ReminderClass) sql.NullTime {
	if class == ClassDayOf {
		return p.DayOfSentAt
	}
	return p.NightBeforeSentAt
}

// PlacementError records one failed placement inside a reminder run.
type PlacementError struct {
	PlacementID int64         `json:"placement_id"`
	Class       ReminderClass `json:"class,omitempty"`
	Reason      string        `json:"reason"`
}

// RunResult is the aggregate outcome of one dispatcher cycle. It exists for
// logging and metrics only and is never persisted.
type RunResult struct {
	RunID      string           `json:"run_id"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Processed  int              `json:"processed"`
	Sent       int              `json:"sent"`
	Skipped    int              `json:"skipped"`
	Failed     int              `json:"failed"`
	Errors     []PlacementError `json:"errors,omitempty"`
}
