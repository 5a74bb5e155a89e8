package usecases

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"school-onboarding.backend/internal/domain/entities"
	domainerrors "school-onboarding.backend/internal/domain/errors"
	"school-onboarding.backend/internal/domain/lifecycle"
	"school-onboarding.backend/internal/domain/repositories"
	"school-onboarding.backend/pkg/logger"
)

// OnboardingUsecase is the entry point for signup, verification, login and
// the caller's own profile.
type OnboardingUsecase struct {
	identity     repositories.IdentityProvider
	profiles     repositories.ProfileRepository
	provisioning *ProvisioningUsecase
	uow          repositories.UnitOfWork
	retry        RetryPolicy
}

// NewOnboardingUsecase creates a new onboarding usecase
func NewOnboardingUsecase(
	identity repositories.IdentityProvider,
	profiles repositories.ProfileRepository,
	provisioning *ProvisioningUsecase,
	uow repositories.UnitOfWork,
	retry RetryPolicy,
) *OnboardingUsecase {
	return &OnboardingUsecase{
		identity:     identity,
		profiles:     profiles,
		provisioning: provisioning,
		uow:          uow,
		retry:        retry,
	}
}

// SignupResult is the outcome of RequestAccount
type SignupResult struct {
	Account *entities.AccountRef `json:"account"`
	Profile *entities.Profile    `json:"profile,omitempty"`
}

// ConfirmationResult is the outcome of ConfirmEmail. A provisioning failure
// does not undo the verification; it is reported alongside the account.
type ConfirmationResult struct {
	Account           *entities.AccountRef `json:"account"`
	Profile           *entities.Profile    `json:"profile,omitempty"`
	ProvisioningError *ProvisioningError   `json:"provisioningError,omitempty"`
}

// ProvisioningError describes why a verified account has no profile yet
type ProvisioningError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// RequestAccount creates a student or teacher account for a role claim.
// Admin accounts come only from BootstrapAdmin.
func (u *OnboardingUsecase) RequestAccount(ctx context.Context, input *entities.RegisterInput) (*SignupResult, error) {
	role, err := entities.ParseRole(input.Role)
	if err != nil {
		return nil, err
	}
	if role == entities.RoleAdmin {
		return nil, fmt.Errorf("%w: admin accounts are created by an operator", domainerrors.ErrForbidden)
	}

	account, err := u.identity.CreateAccount(ctx, input.Email, input.Password, role, input.Metadata)
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "Account requested",
		zap.String("account_id", account.ID.String()),
		zap.String("role", string(role)),
	)
	return &SignupResult{Account: account}, nil
}

// ConfirmEmail consumes a verification token and provisions the profile
func (u *OnboardingUsecase) ConfirmEmail(ctx context.Context, token string) (*ConfirmationResult, error) {
	account, err := u.identity.VerifyEmail(ctx, token)
	if err != nil {
		return nil, err
	}

	result := &ConfirmationResult{Account: account}
	profile, err := u.provisioning.EnsureProfileWithRetry(ctx, account)
	if err != nil {
		kind := domainerrors.KindOf(err)
		logger.Warn(ctx, "Provisioning after verification failed",
			zap.String("account_id", account.ID.String()),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		result.ProvisioningError = &ProvisioningError{
			Kind:    string(kind),
			Message: provisioningMessage(kind, err),
		}
		return result, nil
	}
	result.Profile = profile
	return result, nil
}

// IncompleteMetadata carries the missing field names, which operators need.
func provisioningMessage(kind domainerrors.Kind, err error) string {
	if kind == domainerrors.KindIncompleteMetadata {
		return err.Error()
	}
	return domainerrors.ReasonFor(kind)
}

// ResendVerification reissues a verification token
func (u *OnboardingUsecase) ResendVerification(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("%w: email is required", domainerrors.ErrInvalidInput)
	}
	return u.identity.ResendVerification(ctx, email)
}

// Login authenticates a credential
func (u *OnboardingUsecase) Login(ctx context.Context, input *entities.LoginInput) (*entities.Session, error) {
	return u.identity.Authenticate(ctx, input.Email, input.Password, input.UseSession)
}

// CurrentAccount resolves a session token, retrying transient failures
func (u *OnboardingUsecase) CurrentAccount(ctx context.Context, sessionToken string) (*entities.AccountRef, error) {
	var account *entities.AccountRef
	err := u.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		account, err = u.identity.CurrentAccount(ctx, sessionToken)
		return err
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// ResolveActor builds the caller's actor from the profile store. Role and
// status are never taken from the token.
func (u *OnboardingUsecase) ResolveActor(ctx context.Context, sessionToken string) (entities.Actor, *entities.AccountRef, error) {
	account, err := u.CurrentAccount(ctx, sessionToken)
	if err != nil {
		return entities.AnonymousActor(), nil, err
	}
	actor, err := u.ActorFor(ctx, account)
	if err != nil {
		return entities.AnonymousActor(), account, err
	}
	return actor, account, nil
}

// ActorFor builds the actor of an account from its active profile. An
// account without a profile yields an actor with no status.
func (u *OnboardingUsecase) ActorFor(ctx context.Context, account *entities.AccountRef) (entities.Actor, error) {
	profiles, err := u.profiles.ListActiveByAccount(ctx, account.ID)
	if err != nil {
		return entities.AnonymousActor(), domainerrors.Unavailable(err)
	}
	switch len(profiles) {
	case 0:
		return entities.Actor{AccountID: account.ID, Role: account.Role}, nil
	case 1:
		p := profiles[0]
		return entities.Actor{
			AccountID: account.ID,
			ProfileID: p.ID,
			Role:      p.Role,
			Status:    p.Status,
			Subjects:  p.ScopeSubjects(),
		}, nil
	default:
		logger.Error(ctx, "Account holds several active profiles",
			zap.String("account_id", account.ID.String()),
			zap.Int("profiles", len(profiles)),
		)
		return entities.AnonymousActor(), fmt.Errorf("%w: account %s holds %d active profiles", domainerrors.ErrInconsistentRecord, account.ID, len(profiles))
	}
}

// MyProfile returns the caller's active profile and lifecycle state
func (u *OnboardingUsecase) MyProfile(ctx context.Context, account *entities.AccountRef) (*entities.ProfileView, error) {
	profiles, err := u.profiles.ListActiveByAccount(ctx, account.ID)
	if err != nil {
		return nil, domainerrors.Unavailable(err)
	}
	if len(profiles) > 1 {
		return nil, fmt.Errorf("%w: account %s holds %d active profiles", domainerrors.ErrInconsistentRecord, account.ID, len(profiles))
	}
	var profile *entities.Profile
	if len(profiles) == 1 {
		profile = profiles[0]
	}
	return &entities.ProfileView{
		Profile: profile,
		State:   string(lifecycle.StateOf(account.EmailVerified, profile)),
	}, nil
}

// ProvisionAccount is the operator recovery path for a verified account
// whose profile is missing.
func (u *OnboardingUsecase) ProvisionAccount(ctx context.Context, accountID uuid.UUID) (*entities.Profile, error) {
	return u.provisioning.EnsureProfileForAccount(ctx, accountID)
}

// BootstrapAdmin creates an admin account together with its approved profile
// in one transaction.
func (u *OnboardingUsecase) BootstrapAdmin(ctx context.Context, email, password, name string) (*SignupResult, error) {
	metadata := entities.SignupMetadata{}
	if name = strings.TrimSpace(name); name != "" {
		metadata[entities.MetaName] = name
	}

	result := &SignupResult{}
	err := u.uow.Do(ctx, func(ctx context.Context) error {
		account, err := u.identity.CreateAccount(ctx, email, password, entities.RoleAdmin, metadata)
		if err != nil {
			return err
		}
		profile, err := u.provisioning.EnsureProfile(ctx, account)
		if err != nil {
			return err
		}
		result.Account = account
		result.Profile = profile
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "Admin bootstrapped", zap.String("account_id", result.Account.ID.String()))
	return result, nil
}
