// Package authority decides who may change whose profile. Every function is
// pure so the rules can be checked without a store.
package authority

import (
	"fmt"

	"github.com/google/uuid"

	"school-onboarding.backend/internal/domain/entities"
	domainerrors "school-onboarding.backend/internal/domain/errors"
)

// Permit is proof that an actor was authorized for an action on a target
type Permit struct {
	ActorID  uuid.UUID
	TargetID uuid.UUID
	Action   entities.ApprovalAction
	// Scope is "admin" or the subject that matched for a teacher.
	Scope string
}

// Authorize checks whether actor may perform action on target.
func Authorize(actor entities.Actor, target *entities.Profile, action entities.ApprovalAction) (Permit, error) {
	if target == nil {
		return Permit{}, fmt.Errorf("%w: no target profile", domainerrors.ErrForbidden)
	}
	if !actor.IsAuthenticated() {
		return Permit{}, fmt.Errorf("%w: unauthenticated", domainerrors.ErrForbidden)
	}
	if !actor.IsApproved() {
		return Permit{}, fmt.Errorf("%w: actor profile is %s", domainerrors.ErrForbidden, actor.Status)
	}

	permit := Permit{ActorID: actor.AccountID, TargetID: target.ID, Action: action}

	switch actor.Role {
	case entities.RoleAdmin:
		switch action {
		case entities.ActionApprove, entities.ActionReject:
			if target.Role != entities.RoleStudent && target.Role != entities.RoleTeacher {
				return Permit{}, fmt.Errorf("%w: admins review student and teacher profiles only", domainerrors.ErrForbidden)
			}
		case entities.ActionDelete:
			if target.AccountID == actor.AccountID {
				return Permit{}, fmt.Errorf("%w: admins cannot delete their own profile", domainerrors.ErrForbidden)
			}
		default:
			return Permit{}, fmt.Errorf("%w: unknown action %q", domainerrors.ErrForbidden, action)
		}
		permit.Scope = "admin"
		return permit, nil

	case entities.RoleTeacher:
		if action != entities.ActionApprove && action != entities.ActionReject {
			return Permit{}, fmt.Errorf("%w: teachers may only approve or reject", domainerrors.ErrForbidden)
		}
		if target.Role != entities.RoleStudent {
			return Permit{}, fmt.Errorf("%w: teachers review student profiles only", domainerrors.ErrForbidden)
		}
		subject, ok := SharedSubject(actor.Subjects, target.Subjects)
		if !ok {
			return Permit{}, fmt.Errorf("%w: student subjects are outside the teacher's expertise", domainerrors.ErrForbidden)
		}
		permit.Scope = "subject:" + subject
		return permit, nil

	default:
		return Permit{}, fmt.Errorf("%w: role %q cannot approve", domainerrors.ErrForbidden, actor.Role)
	}
}

// AuthorizeView checks whether actor may read the audit history of target.
// The owner may always read their own history.
func AuthorizeView(actor entities.Actor, target *entities.Profile) error {
	if target == nil || !actor.IsAuthenticated() {
		return fmt.Errorf("%w: unauthenticated", domainerrors.ErrForbidden)
	}
	if target.AccountID == actor.AccountID {
		return nil
	}
	if _, err := Authorize(actor, target, entities.ActionReject); err == nil {
		return nil
	}
	if actor.IsApproved() && actor.Role == entities.RoleAdmin {
		return nil
	}
	return fmt.Errorf("%w: history is outside the actor's scope", domainerrors.ErrForbidden)
}

// PendingScope narrows a pending listing to what actor may review.
func PendingScope(actor entities.Actor, requested entities.PendingFilter) (entities.PendingFilter, error) {
	if !actor.IsApproved() {
		return entities.PendingFilter{}, fmt.Errorf("%w: actor cannot review profiles", domainerrors.ErrForbidden)
	}
	scoped := requested
	switch actor.Role {
	case entities.RoleAdmin:
		if len(scoped.Roles) == 0 {
			scoped.Roles = []entities.Role{entities.RoleStudent, entities.RoleTeacher}
		}
		for _, r := range scoped.Roles {
			if r != entities.RoleStudent && r != entities.RoleTeacher {
				return entities.PendingFilter{}, fmt.Errorf("%w: role %q has no pending approvals", domainerrors.ErrInvalidInput, r)
			}
		}
		return scoped, nil

	case entities.RoleTeacher:
		for _, r := range scoped.Roles {
			if r != entities.RoleStudent {
				return entities.PendingFilter{}, fmt.Errorf("%w: teachers review student profiles only", domainerrors.ErrForbidden)
			}
		}
		scoped.Roles = []entities.Role{entities.RoleStudent}
		if len(requested.Subjects) == 0 {
			scoped.Subjects = actor.Subjects
			if len(scoped.Subjects) == 0 {
				return entities.PendingFilter{}, fmt.Errorf("%w: teacher has no subject expertise", domainerrors.ErrForbidden)
			}
			return scoped, nil
		}
		scoped.Subjects = nil
		for _, s := range requested.Subjects {
			if _, ok := SharedSubject(actor.Subjects, []string{s}); !ok {
				return entities.PendingFilter{}, fmt.Errorf("%w: subject %q is outside the teacher's expertise", domainerrors.ErrForbidden, s)
			}
			scoped.Subjects = append(scoped.Subjects, s)
		}
		return scoped, nil

	default:
		return entities.PendingFilter{}, fmt.Errorf("%w: role %q cannot review profiles", domainerrors.ErrForbidden, actor.Role)
	}
}

// SharedSubject returns the first subject present in both lists, compared
// case-insensitively.
func SharedSubject(a, b []string) (string, bool) {
	seen := make(map[string]struct{}, len(a))
	for _, s := range a {
		if n := entities.NormalizeSubject(s); n != "" {
			seen[n] = struct{}{}
		}
	}
	for _, s := range b {
		n := entities.NormalizeSubject(s)
		if _, ok := seen[n]; ok && n != "" {
			return n, true
		}
	}
	return "", false
}
