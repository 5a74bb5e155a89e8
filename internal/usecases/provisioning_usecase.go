package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"

	"school-onboarding.backend/internal/domain/entities"
	domainerrors "school-onboarding.backend/internal/domain/errors"
	"school-onboarding.backend/internal/domain/lifecycle"
	"school-onboarding.backend/internal/domain/repositories"
	"school-onboarding.backend/internal/infrastructure/metrics"
	"school-onboarding.backend/pkg/logger"
)

var allRoles = []entities.Role{entities.RoleStudent, entities.RoleTeacher, entities.RoleAdmin}

// ProvisioningUsecase guarantees exactly one active role profile per
// provisionable account. It is the only code path that creates profiles.
type ProvisioningUsecase struct {
	profiles repositories.ProfileRepository
	identity repositories.IdentityProvider
	retry    RetryPolicy
	metrics  *metrics.Recorder
	now      func() time.Time
}

// NewProvisioningUsecase creates a new provisioning usecase
func NewProvisioningUsecase(
	profiles repositories.ProfileRepository,
	identity repositories.IdentityProvider,
	retry RetryPolicy,
	recorder *metrics.Recorder,
) *ProvisioningUsecase {
	return &ProvisioningUsecase{
		profiles: profiles,
		identity: identity,
		retry:    retry,
		metrics:  recorder,
		now:      time.Now,
	}
}

// EnsureProfile returns the account's active profile for its role claim,
// creating it if needed. Calling it again, or concurrently, yields the same
// profile.
func (u *ProvisioningUsecase) EnsureProfile(ctx context.Context, account *entities.AccountRef) (*entities.Profile, error) {
	if account == nil || account.ID == uuid.Nil {
		return nil, fmt.Errorf("%w: account is required", domainerrors.ErrInvalidInput)
	}
	role, err := entities.ParseRole(string(account.Role))
	if err != nil {
		u.record(account.Role, err)
		return nil, err
	}

	profile, created, err := u.ensure(ctx, account, role)
	if err != nil {
		u.record(role, err)
		return nil, err
	}
	if created {
		u.metrics.Provisioned(string(role), "created")
		logger.Info(ctx, "Profile provisioned",
			zap.String("account_id", account.ID.String()),
			zap.String("profile_id", profile.ID.String()),
			zap.String("role", string(role)),
			zap.String("status", string(profile.Status)),
		)
	} else {
		u.metrics.Provisioned(string(role), "existing")
	}
	return profile, nil
}

// EnsureProfileForAccount loads the account and ensures its profile, retrying
// transient failures.
func (u *ProvisioningUsecase) EnsureProfileForAccount(ctx context.Context, accountID uuid.UUID) (*entities.Profile, error) {
	var profile *entities.Profile
	err := u.retry.Do(ctx, func(ctx context.Context) error {
		account, err := u.identity.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		profile, err = u.EnsureProfile(ctx, account)
		return err
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// EnsureProfileWithRetry is EnsureProfile under the retry policy
func (u *ProvisioningUsecase) EnsureProfileWithRetry(ctx context.Context, account *entities.AccountRef) (*entities.Profile, error) {
	var profile *entities.Profile
	err := u.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		profile, err = u.EnsureProfile(ctx, account)
		return err
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

func (u *ProvisioningUsecase) ensure(ctx context.Context, account *entities.AccountRef, role entities.Role) (*entities.Profile, bool, error) {
	existing, err := u.activeProfile(ctx, account.ID, role)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	for _, other := range allRoles {
		if other == role {
			continue
		}
		held, err := u.activeProfile(ctx, account.ID, other)
		if err != nil {
			return nil, false, err
		}
		if held != nil {
			return nil, false, fmt.Errorf("%w: account %s holds an active %s profile", domainerrors.ErrProvisioningConflict, account.ID, other)
		}
	}

	to, err := lifecycle.Transition(lifecycle.StateOf(account.EmailVerified, nil), lifecycle.EventProvision, lifecycle.Input{Role: role})
	if err != nil {
		return nil, false, err
	}
	status, ok := lifecycle.StatusFor(to)
	if !ok {
		return nil, false, fmt.Errorf("%w: provisioning lands in %s", domainerrors.ErrIllegalTransition, to)
	}

	profile, err := buildProfile(account, role, status, u.now())
	if err != nil {
		return nil, false, err
	}

	if err := u.profiles.Create(ctx, profile); err != nil {
		if !errors.Is(err, domainerrors.ErrAlreadyExists) {
			return nil, false, domainerrors.Unavailable(err)
		}
		// lost the insert race: the winner's record is the answer
		winner, err := u.activeProfile(ctx, account.ID, role)
		if err != nil {
			return nil, false, err
		}
		if winner == nil {
			return nil, false, fmt.Errorf("%w: profile for account %s vanished after duplicate insert", domainerrors.ErrConcurrentModification, account.ID)
		}
		return winner, false, nil
	}
	return profile, true, nil
}

func (u *ProvisioningUsecase) activeProfile(ctx context.Context, accountID uuid.UUID, role entities.Role) (*entities.Profile, error) {
	p, err := u.profiles.GetActiveByAccount(ctx, accountID, role)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, nil
		}
		return nil, domainerrors.Unavailable(err)
	}
	return p, nil
}

func (u *ProvisioningUsecase) record(role entities.Role, err error) {
	u.metrics.Provisioned(string(role), string(domainerrors.KindOf(err)))
}

// buildProfile maps signup metadata onto a new profile, naming every missing
// required field at once.
func buildProfile(account *entities.AccountRef, role entities.Role, status entities.ProfileStatus, now time.Time) (*entities.Profile, error) {
	meta := account.Metadata
	if meta == nil {
		meta = entities.SignupMetadata{}
	}

	profile := &entities.Profile{
		AccountID:   account.ID,
		Role:        role,
		Status:      status,
		DisplayName: displayName(account),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var missing []string
	switch role {
	case entities.RoleStudent:
		classLevel := meta.String(entities.MetaClassLevel)
		if classLevel == "" {
			missing = append(missing, entities.MetaClassLevel)
		}
		guardian := meta.String(entities.MetaGuardianContact)
		if guardian == "" {
			missing = append(missing, entities.MetaGuardianContact)
		}
		subjects := meta.Strings(entities.MetaSubjects)
		if len(subjects) == 0 {
			missing = append(missing, entities.MetaSubjects)
		}
		profile.ClassLevel = null.StringFrom(classLevel)
		profile.GuardianContact = null.StringFrom(guardian)
		profile.Subjects = subjects

	case entities.RoleTeacher:
		expertise := meta.Strings(entities.MetaSubjectExpertise)
		if len(expertise) == 0 {
			missing = append(missing, entities.MetaSubjectExpertise)
		}
		profile.SubjectExpertise = expertise
		if years, ok := meta.Int(entities.MetaYearsOfExperience); ok && years >= 0 {
			profile.YearsOfExperience = null.IntFrom(years)
		}

	case entities.RoleAdmin:
		profile.ApproverID = null.StringFrom(account.ID.String())
		profile.ApprovedAt = null.TimeFrom(now)
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", domainerrors.ErrIncompleteMetadata, strings.Join(missing, ", "))
	}
	return profile, nil
}

func displayName(account *entities.AccountRef) string {
	if name := account.Metadata.String(entities.MetaName); name != "" {
		return name
	}
	if at := strings.IndexByte(account.Email, '@'); at > 0 {
		return account.Email[:at]
	}
	return account.Email
}
