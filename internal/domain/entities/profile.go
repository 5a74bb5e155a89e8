package entities

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	domainerrors "school-onboarding.backend/internal/domain/errors"
)

// ProfileStatus is the closed set of profile states persisted by the store
type ProfileStatus string

const (
	ProfileStatusPending  ProfileStatus = "PENDING"
	ProfileStatusApproved ProfileStatus = "APPROVED"
	ProfileStatusRejected ProfileStatus = "REJECTED"
	ProfileStatusDeleted  ProfileStatus = "DELETED"
)

// ParseProfileStatus normalizes a stored status value. Legacy lower-case
// values are accepted here and nowhere else; anything else is inconsistent.
func ParseProfileStatus(s string) (ProfileStatus, error) {
	switch st := ProfileStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case ProfileStatusPending, ProfileStatusApproved, ProfileStatusRejected, ProfileStatusDeleted:
		return st, nil
	default:
		return "", fmt.Errorf("%w: unknown profile status %q", domainerrors.ErrInconsistentRecord, s)
	}
}

// Profile is the role-specific application record tracking approval
type Profile struct {
	ID          uuid.UUID     `json:"id"`
	AccountID   uuid.UUID     `json:"accountId"`
	Role        Role          `json:"role"`
	Status      ProfileStatus `json:"status"`
	DisplayName string        `json:"displayName"`

	// Student
	ClassLevel      null.String `json:"classLevel,omitempty"`
	GuardianContact null.String `json:"guardianContact,omitempty"`
	Subjects        []string    `json:"subjects,omitempty"`

	// Teacher
	SubjectExpertise  []string `json:"subjectExpertise,omitempty"`
	YearsOfExperience null.Int `json:"yearsOfExperience,omitempty"`

	ApproverID      null.String `json:"approverId,omitempty"`
	ApprovedAt      null.Time   `json:"approvedAt,omitempty"`
	RejectedBy      null.String `json:"rejectedBy,omitempty"`
	RejectionReason null.String `json:"rejectionReason,omitempty"`
	RejectedAt      null.Time   `json:"rejectedAt,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// IsApproved is derived from status; there is no separate approval flag.
func (p *Profile) IsApproved() bool {
	return p != nil && p.Status == ProfileStatusApproved
}

// IsActive reports whether the profile counts toward the one-per-role limit.
func (p *Profile) IsActive() bool {
	return p != nil && p.Status != ProfileStatusDeleted
}

// ScopeSubjects returns the subjects that define approval scope: the subjects
// a student selected, or a teacher's expertise.
func (p *Profile) ScopeSubjects() []string {
	switch p.Role {
	case RoleStudent:
		return p.Subjects
	case RoleTeacher:
		return p.SubjectExpertise
	default:
		return nil
	}
}

// StatusChange is a conditional status update: it applies only while the
// stored status still equals From.
type StatusChange struct {
	ProfileID uuid.UUID
	Role      Role
	From      ProfileStatus
	To        ProfileStatus
	ActorID   uuid.UUID
	Reason    string
	At        time.Time
}

// PendingFilter narrows a pending-approval listing
type PendingFilter struct {
	Roles    []Role
	Subjects []string
	Page     int
	Limit    int
}

// NormalizeSubject is the comparison form used for subject scope checks
func NormalizeSubject(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ProfileView is a profile together with its derived lifecycle state
type ProfileView struct {
	Profile *Profile `json:"profile,omitempty"`
	State   string   `json:"state"`
}
