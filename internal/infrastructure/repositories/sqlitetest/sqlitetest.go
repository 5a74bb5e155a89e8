// Package sqlitetest opens in-memory SQLite databases carrying the
// onboarding schema. It is imported by tests only.
package sqlitetest

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Schema mirrors the postgres migrations, including the partial unique
// indexes that enforce one active profile per account and role.
var Schema = []string{
	`CREATE TABLE accounts (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		email_verified_at DATETIME,
		metadata TEXT,
		created_at DATETIME,
		updated_at DATETIME
	);`,
	`CREATE TABLE email_verifications (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		token TEXT NOT NULL UNIQUE,
		expires_at DATETIME NOT NULL,
		verified_at DATETIME,
		invalidated_at DATETIME,
		created_at DATETIME
	);`,
	profileTable("student_profiles", `
		class_level TEXT NOT NULL,
		guardian_contact TEXT NOT NULL,
		subjects TEXT,
		subject_index TEXT NOT NULL DEFAULT '',`),
	profileTable("teacher_profiles", `
		subject_expertise TEXT,
		years_of_experience INTEGER,`),
	profileTable("admin_profiles", ""),
	`CREATE UNIQUE INDEX ux_student_profiles_active ON student_profiles(account_id) WHERE status <> 'DELETED';`,
	`CREATE UNIQUE INDEX ux_teacher_profiles_active ON teacher_profiles(account_id) WHERE status <> 'DELETED';`,
	`CREATE UNIQUE INDEX ux_admin_profiles_active ON admin_profiles(account_id) WHERE status <> 'DELETED';`,
	`CREATE TABLE audit_entries (
		id TEXT PRIMARY KEY,
		profile_id TEXT NOT NULL,
		profile_role TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		actor_role TEXT NOT NULL,
		action TEXT NOT NULL,
		reason TEXT,
		from_status TEXT NOT NULL,
		to_status TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);`,
}

func profileTable(name, extra string) string {
	return fmt.Sprintf(`CREATE TABLE %s (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		status TEXT NOT NULL,
		display_name TEXT NOT NULL,
		%s
		approver_id TEXT,
		approved_at DATETIME,
		rejected_by TEXT,
		rejection_reason TEXT,
		rejected_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	);`, name, extra)
}

// NewDB opens an empty in-memory database. A single connection serializes
// statements, which keeps concurrent tests free of SQLITE_LOCKED errors.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "open sqlite")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// NewSchemaDB opens a database and creates every onboarding table.
func NewSchemaDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := NewDB(t)
	for _, stmt := range Schema {
		MustExec(t, db, stmt)
	}
	return db
}

func MustExec(t *testing.T, db *gorm.DB, q string, args ...interface{}) {
	t.Helper()
	require.NoError(t, db.Exec(q, args...).Error, "exec failed: query=%s", q)
}
