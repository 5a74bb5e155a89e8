package repositories

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"school-onboarding.backend/internal/domain/entities"
	domainerrors "school-onboarding.backend/internal/domain/errors"
	"school-onboarding.backend/internal/infrastructure/models"
	"school-onboarding.backend/pkg/utils"
)

// AccountRepository implements account data operations
type AccountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create creates a new account. Emails are stored lower-cased so the unique
// index is case-insensitive.
func (r *AccountRepository) Create(ctx context.Context, account *entities.Account) error {
	if account.ID == uuid.Nil {
		account.ID = utils.GenerateUUIDv7()
	}
	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = account.CreatedAt
	account.Email = normalizeEmail(account.Email)

	m := &models.Account{
		ID:              account.ID,
		Email:           account.Email,
		PasswordHash:    account.PasswordHash,
		Role:            string(account.Role),
		EmailVerifiedAt: account.EmailVerifiedAt.Ptr(),
		Metadata:        datatypes.JSONMap(account.Metadata),
		CreatedAt:       account.CreatedAt,
		UpdatedAt:       account.UpdatedAt,
	}

	if err := GetDB(ctx, r.db).Create(m).Error; err != nil {
		if isDuplicateKey(err) {
			return domainerrors.ErrDuplicateEmail
		}
		return err
	}
	return nil
}

// GetByID gets an account by ID
func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Account, error) {
	var m models.Account
	if err := GetDB(ctx, r.db).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return toAccountEntity(&m)
}

// GetByEmail gets an account by email, case-insensitively
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*entities.Account, error) {
	var m models.Account
	if err := GetDB(ctx, r.db).Where("email = ?", normalizeEmail(email)).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return toAccountEntity(&m)
}

// MarkEmailVerified flips the verified timestamp exactly once. Marking an
// already verified account is a no-op.
func (r *AccountRepository) MarkEmailVerified(ctx context.Context, id uuid.UUID, at time.Time) error {
	result := GetDB(ctx, r.db).
		Model(&models.Account{}).
		Where("id = ? AND email_verified_at IS NULL", id).
		Updates(map[string]interface{}{
			"email_verified_at": at,
			"updated_at":        at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// ListUnprovisioned lists verified accounts, and admin accounts regardless of
// verification, that have no profile row in any role table. Accounts whose
// profile was deleted are deliberately excluded. Paging is keyset on
// (created_at, id) so rows that keep failing do not hide newer ones.
func (r *AccountRepository) ListUnprovisioned(ctx context.Context, after entities.AccountCursor, limit int) ([]*entities.Account, error) {
	var rows []models.Account
	query := GetDB(ctx, r.db).
		Where("(email_verified_at IS NOT NULL OR role = ?)", string(entities.RoleAdmin)).
		Where("NOT EXISTS (SELECT 1 FROM student_profiles p WHERE p.account_id = accounts.id)").
		Where("NOT EXISTS (SELECT 1 FROM teacher_profiles p WHERE p.account_id = accounts.id)").
		Where("NOT EXISTS (SELECT 1 FROM admin_profiles p WHERE p.account_id = accounts.id)")
	if !after.IsZero() {
		query = query.Where("(created_at > ? OR (created_at = ? AND id > ?))", after.CreatedAt, after.CreatedAt, after.ID)
	}
	query = query.Order("created_at ASC").Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	accounts := make([]*entities.Account, 0, len(rows))
	for i := range rows {
		a, err := toAccountEntity(&rows[i])
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, nil
}

func toAccountEntity(m *models.Account) (*entities.Account, error) {
	role, err := entities.ParseRole(m.Role)
	if err != nil {
		return nil, errors.Join(domainerrors.ErrInconsistentRecord, err)
	}
	return &entities.Account{
		ID:              m.ID,
		Email:           m.Email,
		PasswordHash:    m.PasswordHash,
		Role:            role,
		EmailVerifiedAt: null.TimeFromPtr(m.EmailVerifiedAt),
		Metadata:        entities.SignupMetadata(m.Metadata),
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EmailVerificationRepository implements email verification operations
type EmailVerificationRepository struct {
	db *gorm.DB
}

// NewEmailVerificationRepository creates a new email verification repository
func NewEmailVerificationRepository(db *gorm.DB) *EmailVerificationRepository {
	return &EmailVerificationRepository{db: db}
}

// Create stores an issued verification token
func (r *EmailVerificationRepository) Create(ctx context.Context, v *entities.EmailVerification) error {
	if v.ID == uuid.Nil {
		v.ID = utils.GenerateUUIDv7()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}
	m := &models.EmailVerification{
		ID:        v.ID,
		AccountID: v.AccountID,
		Token:     v.Token,
		ExpiresAt: v.ExpiresAt,
		CreatedAt: v.CreatedAt,
	}
	return GetDB(ctx, r.db).Create(m).Error
}

// GetByToken returns a token that has been neither used nor invalidated.
// Expired tokens are still returned so callers can tell expiry apart from
// an unknown token.
func (r *EmailVerificationRepository) GetByToken(ctx context.Context, token string) (*entities.EmailVerification, error) {
	var m models.EmailVerification
	err := GetDB(ctx, r.db).
		Where("token = ? AND verified_at IS NULL AND invalidated_at IS NULL", token).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return &entities.EmailVerification{
		ID:         m.ID,
		AccountID:  m.AccountID,
		Token:      m.Token,
		ExpiresAt:  m.ExpiresAt,
		VerifiedAt: null.TimeFromPtr(m.VerifiedAt),
		CreatedAt:  m.CreatedAt,
	}, nil
}

// MarkVerified consumes a token
func (r *EmailVerificationRepository) MarkVerified(ctx context.Context, token string, at time.Time) error {
	result := GetDB(ctx, r.db).
		Model(&models.EmailVerification{}).
		Where("token = ? AND verified_at IS NULL AND invalidated_at IS NULL", token).
		Update("verified_at", at)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

// InvalidateForAccount retires every outstanding token of an account
func (r *EmailVerificationRepository) InvalidateForAccount(ctx context.Context, accountID uuid.UUID, at time.Time) error {
	return GetDB(ctx, r.db).
		Model(&models.EmailVerification{}).
		Where("account_id = ? AND verified_at IS NULL AND invalidated_at IS NULL", accountID).
		Update("invalidated_at", at).Error
}
