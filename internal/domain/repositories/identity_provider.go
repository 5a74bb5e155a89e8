package repositories

import (
	"context"

	"github.com/google/uuid"
	"school-onboarding.backend/internal/domain/entities"
)

// IdentityProvider wraps the external account/identity service.
//
// CreateAccount triggers out-of-band delivery of a verification message;
// VerifyEmail may therefore arrive seconds to hours later, or never.
type IdentityProvider interface {
	CreateAccount(ctx context.Context, email, credential string, role entities.Role, metadata entities.SignupMetadata) (*entities.AccountRef, error)
	VerifyEmail(ctx context.Context, token string) (*entities.AccountRef, error)
	CurrentAccount(ctx context.Context, sessionToken string) (*entities.AccountRef, error)
	Authenticate(ctx context.Context, email, credential string, useSession bool) (*entities.Session, error)
	ResendVerification(ctx context.Context, email string) error
	GetAccount(ctx context.Context, id uuid.UUID) (*entities.AccountRef, error)
}
