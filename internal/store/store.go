// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/codeando/internal/domain"
)

// Repository defines the interface for persisting learners and their progress.
// Lookups of missing rows return (nil, nil).
type Repository interface {
	// GetUser retrieves a user by their user ID.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates or updates a user record.
	UpsertUser(ctx context.Context, user *domain.User) error

	// UpdateLastSeen updates the last_seen_at timestamp for a user.
	UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error

	// SetTeacherMode toggles the instructor override flag for a user.
	SetTeacherMode(ctx context.Context, userID string, enabled bool) error

	// GetProgress retrieves saved playground state for one lesson or project.
	GetProgress(ctx context.Context, userID string, kind domain.ContentKind, slug string) (*domain.Progress, error)

	// ListProgress retrieves all saved state of a user for one content kind.
	ListProgress(ctx context.Context, userID string, kind domain.ContentKind) ([]*domain.Progress, error)

	// SaveProgress creates or replaces saved playground state.
	SaveProgress(ctx context.Context, p *domain.Progress) error

	// DeleteProgress removes saved playground state.
	DeleteProgress(ctx context.Context, userID string, kind domain.ContentKind, slug string) error

	// DeleteInactiveUsers removes users (and their progress) not seen within ttl.
	DeleteInactiveUsers(ctx context.Context, ttl time.Duration) (usersDeleted int64, progressDeleted int64, err error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
