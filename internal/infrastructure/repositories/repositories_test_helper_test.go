package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"
	"school-onboarding.backend/internal/domain/entities"
	"school-onboarding.backend/internal/infrastructure/repositories/sqlitetest"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return sqlitetest.NewSchemaDB(t)
}

func seedAccount(t *testing.T, db *gorm.DB, email string, role entities.Role, verified bool) *entities.Account {
	t.Helper()
	a := &entities.Account{
		Email:        email,
		PasswordHash: "hash",
		Role:         role,
		Metadata:     entities.SignupMetadata{entities.MetaName: "Test " + string(role)},
	}
	if verified {
		a.EmailVerifiedAt = null.TimeFrom(time.Now())
	}
	require.NoError(t, NewAccountRepository(db).Create(context.Background(), a))
	return a
}

func newStudentProfile(accountID uuid.UUID, status entities.ProfileStatus, subjects ...string) *entities.Profile {
	return &entities.Profile{
		AccountID:       accountID,
		Role:            entities.RoleStudent,
		Status:          status,
		DisplayName:     "Student",
		ClassLevel:      null.StringFrom("10"),
		GuardianContact: null.StringFrom("guardian@example.com"),
		Subjects:        subjects,
		CreatedAt:       time.Now(),
	}
}

func newTeacherProfile(accountID uuid.UUID, status entities.ProfileStatus, expertise ...string) *entities.Profile {
	return &entities.Profile{
		AccountID:         accountID,
		Role:              entities.RoleTeacher,
		Status:            status,
		DisplayName:       "Teacher",
		SubjectExpertise:  expertise,
		YearsOfExperience: null.IntFrom(5),
		CreatedAt:         time.Now(),
	}
}
