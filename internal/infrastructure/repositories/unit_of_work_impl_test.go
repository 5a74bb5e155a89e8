package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"school-onboarding.backend/internal/domain/entities"
	"school-onboarding.backend/internal/infrastructure/repositories/sqlitetest"
)

func TestUnitOfWork_DoCommitAndRollback(t *testing.T) {
	db := newTestDB(t)
	u := NewUnitOfWork(db)
	accounts := NewAccountRepository(db)
	ctx := context.Background()

	err := u.Do(ctx, func(ctx context.Context) error {
		return accounts.Create(ctx, &entities.Account{Email: "a@school.test", PasswordHash: "h", Role: entities.RoleStudent})
	})
	require.NoError(t, err)

	err = u.Do(ctx, func(ctx context.Context) error {
		if err := accounts.Create(ctx, &entities.Account{Email: "b@school.test", PasswordHash: "h", Role: entities.RoleStudent}); err != nil {
			return err
		}
		return errors.New("force rollback")
	})
	require.EqualError(t, err, "force rollback")

	var count int64
	require.NoError(t, db.Table("accounts").Count(&count).Error)
	require.Equal(t, int64(1), count, "second insert must be rolled back")
}

func TestUnitOfWork_NestedDoJoinsOuterTransaction(t *testing.T) {
	db := newTestDB(t)
	u := NewUnitOfWork(db)
	accounts := NewAccountRepository(db)

	err := u.Do(context.Background(), func(ctx context.Context) error {
		outer := GetDB(ctx, db)
		return u.Do(ctx, func(inner context.Context) error {
			require.Same(t, outer, GetDB(inner, db))
			if err := accounts.Create(inner, &entities.Account{Email: "n@school.test", PasswordHash: "h", Role: entities.RoleTeacher}); err != nil {
				return err
			}
			return errors.New("inner failure")
		})
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Table("accounts").Count(&count).Error)
	require.Zero(t, count)
}

func TestUnitOfWork_GetDB(t *testing.T) {
	db := newTestDB(t)
	u := &UnitOfWorkImpl{db: db}

	require.NotNil(t, u.GetDB(context.Background()))

	tx := db.Begin()
	txCtx := context.WithValue(context.Background(), txKey, tx)
	require.Same(t, tx, u.GetDB(txCtx))
	tx.Rollback()
}

func TestUnitOfWork_DoBeginFailure(t *testing.T) {
	db := sqlitetest.NewDB(t)
	u := NewUnitOfWork(db)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	err = u.Do(context.Background(), func(ctx context.Context) error { return nil })
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to begin transaction")
}

func TestUnitOfWork_DoCommitFailure_WithHook(t *testing.T) {
	db := newTestDB(t)
	u := NewUnitOfWork(db)

	origCommit := commitTx
	t.Cleanup(func() { commitTx = origCommit })
	commitTx = func(tx *gorm.DB) error {
		tx.Rollback()
		return errors.New("forced commit fail")
	}

	err := u.Do(context.Background(), func(ctx context.Context) error {
		return NewAccountRepository(db).Create(ctx, &entities.Account{Email: "c@school.test", PasswordHash: "h", Role: entities.RoleAdmin})
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to commit transaction")
}
