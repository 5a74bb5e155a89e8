package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"school-onboarding.backend/internal/domain/entities"
)

// AccountRepository defines account data operations
type AccountRepository interface {
	// Create fails with ErrDuplicateEmail when the email is taken.
	Create(ctx context.Context, account *entities.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Account, error)
	GetByEmail(ctx context.Context, email string) (*entities.Account, error)
	// MarkEmailVerified sets the verified timestamp only if it is still unset.
	MarkEmailVerified(ctx context.Context, id uuid.UUID, at time.Time) error
	// ListUnprovisioned returns provisionable accounts that have never had a
	// profile, ordered by (created_at, id) and starting after the cursor.
	ListUnprovisioned(ctx context.Context, after entities.AccountCursor, limit int) ([]*entities.Account, error)
}

// EmailVerificationRepository defines email verification operations
type EmailVerificationRepository interface {
	Create(ctx context.Context, verification *entities.EmailVerification) error
	GetByToken(ctx context.Context, token string) (*entities.EmailVerification, error)
	MarkVerified(ctx context.Context, token string, at time.Time) error
	InvalidateForAccount(ctx context.Context, accountID uuid.UUID, at time.Time) error
}
