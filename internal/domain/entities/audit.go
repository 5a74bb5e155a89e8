package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// ApprovalAction is a status-changing request against a profile
type ApprovalAction string

const (
	ActionApprove ApprovalAction = "approve"
	ActionReject  ApprovalAction = "reject"
	ActionDelete  ApprovalAction = "delete"
)

// AuditAction is the action recorded in the audit log
type AuditAction string

const (
	AuditApprove     AuditAction = "approve"
	AuditReject      AuditAction = "reject"
	AuditBulkApprove AuditAction = "bulk_approve"
	AuditBulkReject  AuditAction = "bulk_reject"
	AuditDelete      AuditAction = "delete"
)

// AuditActionFor maps an approval action to its audit action.
func AuditActionFor(action ApprovalAction, bulk bool) AuditAction {
	switch action {
	case ActionApprove:
		if bulk {
			return AuditBulkApprove
		}
		return AuditApprove
	case ActionReject:
		if bulk {
			return AuditBulkReject
		}
		return AuditReject
	default:
		return AuditDelete
	}
}

// AuditEntry is an append-only record of one committed transition
type AuditEntry struct {
	ID          uuid.UUID     `json:"id"`
	ProfileID   uuid.UUID     `json:"profileId"`
	ProfileRole Role          `json:"profileRole"`
	ActorID     uuid.UUID     `json:"actorId"`
	ActorRole   Role          `json:"actorRole"`
	Action      AuditAction   `json:"action"`
	Reason      null.String   `json:"reason,omitempty"`
	FromStatus  ProfileStatus `json:"fromStatus"`
	ToStatus    ProfileStatus `json:"toStatus"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// Actor is the caller of an approval operation. It is rebuilt from the
// profile store on every request.
type Actor struct {
	AccountID uuid.UUID     `json:"accountId"`
	ProfileID uuid.UUID     `json:"profileId"`
	Role      Role          `json:"role"`
	Status    ProfileStatus `json:"status"`
	Subjects  []string      `json:"subjects,omitempty"`
}

// AnonymousActor is the actor for unauthenticated calls
func AnonymousActor() Actor {
	return Actor{}
}

// IsAuthenticated reports whether the actor maps to an account
func (a Actor) IsAuthenticated() bool {
	return a.AccountID != uuid.Nil
}

// IsApproved reports whether the actor's own profile is approved
func (a Actor) IsApproved() bool {
	return a.IsAuthenticated() && a.Status == ProfileStatusApproved
}

// BulkFailure is one failed target of a bulk operation
type BulkFailure struct {
	ID      uuid.UUID `json:"id"`
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
}

// BulkResult aggregates the outcome of every target in a bulk operation
type BulkResult struct {
	Succeeded []uuid.UUID   `json:"succeeded"`
	Failed    []BulkFailure `json:"failed"`
}

// BulkInput represents input for bulk approve/reject
type BulkInput struct {
	IDs    []uuid.UUID `json:"ids" binding:"required"`
	Reason string      `json:"reason"`
}
