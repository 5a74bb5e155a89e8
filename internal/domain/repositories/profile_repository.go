package repositories

import (
	"context"

	"github.com/google/uuid"
	"school-onboarding.backend/internal/domain/entities"
)

// ProfileRepository defines role profile operations. Each role lives in its
// own table; ids are unique across all of them.
type ProfileRepository interface {
	// Create fails with ErrAlreadyExists when an active profile already
	// exists for the account in that role.
	Create(ctx context.Context, profile *entities.Profile) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Profile, error)
	GetActiveByAccount(ctx context.Context, accountID uuid.UUID, role entities.Role) (*entities.Profile, error)
	ListActiveByAccount(ctx context.Context, accountID uuid.UUID) ([]*entities.Profile, error)
	ListPending(ctx context.Context, filter entities.PendingFilter) ([]*entities.Profile, int64, error)
	// UpdateStatus applies change only while the stored status equals
	// change.From. A lost race yields ErrConcurrentModification.
	UpdateStatus(ctx context.Context, change entities.StatusChange) (*entities.Profile, error)
}

// AuditRepository is append-only: there is no update or delete.
type AuditRepository interface {
	Append(ctx context.Context, entry *entities.AuditEntry) error
	ListByProfile(ctx context.Context, profileID uuid.UUID) ([]*entities.AuditEntry, error)
}
