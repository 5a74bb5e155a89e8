package entities

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	domainerrors "school-onboarding.backend/internal/domain/errors"
)

// Role is the role claim declared at signup
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// ParseRole normalizes a role claim. Unknown values are rejected.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", domainerrors.ErrUnknownRole, s)
	}
}

// Signup metadata keys
const (
	MetaName              = "name"
	MetaClassLevel        = "class_level"
	MetaGuardianContact   = "guardian_contact"
	MetaSubjects          = "subjects"
	MetaSubjectExpertise  = "subject_expertise"
	MetaYearsOfExperience = "years_of_experience"
)

// SignupMetadata is the free-form data collected at signup. Values arrive as
// decoded JSON, so lists are []interface{} and numbers float64.
type SignupMetadata map[string]interface{}

// String returns a trimmed string value, or "" when absent or not a string.
func (m SignupMetadata) String(key string) string {
	v, ok := m[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

// Strings returns a list value with blank entries dropped. A single string is
// treated as a comma separated list.
func (m SignupMetadata) Strings(key string) []string {
	var out []string
	switch v := m[key].(type) {
	case []string:
		for _, s := range v {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// Int returns a whole-number value.
func (m SignupMetadata) Int(key string) (int, bool) {
	switch v := m[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int(v), true
	default:
		return 0, false
	}
}

// Account is the identity-provider record behind a login credential
type Account struct {
	ID              uuid.UUID      `json:"id"`
	Email           string         `json:"email"`
	PasswordHash    string         `json:"-"`
	Role            Role           `json:"role"`
	EmailVerifiedAt null.Time      `json:"emailVerifiedAt,omitempty"`
	Metadata        SignupMetadata `json:"metadata,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// Ref returns the view of the account handed to the core.
func (a *Account) Ref() *AccountRef {
	return &AccountRef{
		ID:            a.ID,
		Email:         a.Email,
		Role:          a.Role,
		EmailVerified: a.EmailVerifiedAt.Valid,
		Metadata:      a.Metadata,
		CreatedAt:     a.CreatedAt,
	}
}

// AccountCursor is a keyset position in accounts ordered by creation time.
// The zero cursor starts from the oldest account.
type AccountCursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// IsZero reports whether the cursor is the start position
func (c AccountCursor) IsZero() bool {
	return c.ID == uuid.Nil
}

// CursorOf returns the position just after a
func CursorOf(a *Account) AccountCursor {
	return AccountCursor{CreatedAt: a.CreatedAt, ID: a.ID}
}

// AccountRef is an account as seen by the onboarding core; it never carries
// the credential hash.
type AccountRef struct {
	ID            uuid.UUID      `json:"id"`
	Email         string         `json:"email"`
	Role          Role           `json:"role"`
	EmailVerified bool           `json:"emailVerified"`
	Metadata      SignupMetadata `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// EmailVerification is an issued verification token
type EmailVerification struct {
	ID         uuid.UUID
	AccountID  uuid.UUID
	Token      string
	ExpiresAt  time.Time
	VerifiedAt null.Time
	CreatedAt  time.Time
}

// RegisterInput represents input for requesting an account
type RegisterInput struct {
	Email    string         `json:"email" binding:"required,email"`
	Password string         `json:"password" binding:"required"`
	Role     string         `json:"role" binding:"required"`
	Metadata SignupMetadata `json:"metadata"`
}

// LoginInput represents input for login
type LoginInput struct {
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required"`
	UseSession bool   `json:"useSession"`
}

// Session is the result of a successful login
type Session struct {
	AccessToken  string      `json:"accessToken,omitempty"`
	RefreshToken string      `json:"refreshToken,omitempty"`
	SessionID    string      `json:"sessionId,omitempty"`
	Account      *AccountRef `json:"account"`
}
