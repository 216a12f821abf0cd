package job

import (
	"context"
	"database/sql"
	"time"
)

// Job holds the context used to compose reminder text plus per-job overrides
// of the global reminder offsets. Null overrides fall back to the configured
// defaults.
type Job struct {
	ID              int64
	Title           string
	Customer        string
	Location        string
	NightBeforeTime sql.NullString // "HH:mm" override
	DayOfTime       sql.NullString // "HH:mm" override
	Timezone        sql.NullString // IANA zone override
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Repository defines read access to jobs. Job CRUD belongs to an external
// workflow; this core only looks jobs up.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Job, error)
}
