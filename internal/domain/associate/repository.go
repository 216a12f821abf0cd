package associate

import (
	"context"
)

// Repository defines the operations for retrieving associates and mutating
// their global opt-out flag. The flag must only ever be changed through
// SetOptOut so concurrent handlers never work off a locally cached copy.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Associate, error)
	GetByPhone(ctx context.Context, phone string) (*Associate, error)
	SetOptOut(ctx context.Context, id int64, optedOut bool) error
}
