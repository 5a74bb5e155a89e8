// Package lifecycle defines the legal states and transitions of an
// account and its role profile. The table below is the only place these
// rules live; provisioning and approval both go through Transition before
// writing anything.
package lifecycle

import (
	"fmt"
	"strings"

	"school-onboarding.backend/internal/domain/entities"
	domainerrors "school-onboarding.backend/internal/domain/errors"
)

// State of an account+profile pair
type State string

const (
	StateSignedUp        State = "SIGNED_UP"
	StateVerified        State = "VERIFIED"
	StatePendingApproval State = "PENDING_APPROVAL"
	StateApproved        State = "APPROVED"
	StateRejected        State = "REJECTED"
	StateDeleted         State = "DELETED"
)

// Event drives a transition
type Event string

const (
	EventVerifyEmail Event = "verify_email"
	EventProvision   Event = "provision"
	EventApprove     Event = "approve"
	EventReject      Event = "reject"
	EventDelete      Event = "delete"
)

// Input carries what guards inspect
type Input struct {
	Role   entities.Role
	Reason string
}

// Guard rejects a transition that is otherwise present in the table
type Guard func(Input) error

// Row is one line of the transition table
type Row struct {
	From  State
	Event Event
	To    State
	Guard Guard
}

var table = []Row{
	{From: StateSignedUp, Event: EventVerifyEmail, To: StateVerified},
	{From: StateVerified, Event: EventProvision, To: StatePendingApproval, Guard: roleIn(entities.RoleStudent, entities.RoleTeacher)},
	{From: StateSignedUp, Event: EventProvision, To: StateApproved, Guard: roleIn(entities.RoleAdmin)},
	{From: StateVerified, Event: EventProvision, To: StateApproved, Guard: roleIn(entities.RoleAdmin)},
	{From: StatePendingApproval, Event: EventApprove, To: StateApproved},
	{From: StatePendingApproval, Event: EventReject, To: StateRejected, Guard: reasonRequired},
	{From: StateApproved, Event: EventDelete, To: StateDeleted, Guard: reasonRequired},
	{From: StatePendingApproval, Event: EventDelete, To: StateDeleted, Guard: reasonRequired},
}

// Rows returns a copy of the transition table
func Rows() []Row {
	out := make([]Row, len(table))
	copy(out, table)
	return out
}

// Transition returns the target state for event in state from, or
// ErrIllegalTransition when the table has no matching row whose guard passes.
func Transition(from State, event Event, in Input) (State, error) {
	var guardErr error
	for _, row := range table {
		if row.From != from || row.Event != event {
			continue
		}
		if row.Guard != nil {
			if err := row.Guard(in); err != nil {
				guardErr = err
				continue
			}
		}
		return row.To, nil
	}
	if guardErr != nil {
		return "", guardErr
	}
	return "", fmt.Errorf("%w: cannot %s from %s", domainerrors.ErrIllegalTransition, event, from)
}

// EventFor maps an approval action to its lifecycle event
func EventFor(action entities.ApprovalAction) Event {
	switch action {
	case entities.ActionApprove:
		return EventApprove
	case entities.ActionReject:
		return EventReject
	case entities.ActionDelete:
		return EventDelete
	default:
		return Event(action)
	}
}

// StateOf derives the lifecycle state from the account verification flag and
// its active profile, if any.
func StateOf(emailVerified bool, profile *entities.Profile) State {
	if profile != nil {
		return StateForStatus(profile.Status)
	}
	if emailVerified {
		return StateVerified
	}
	return StateSignedUp
}

// StateForStatus maps a stored profile status to its lifecycle state
func StateForStatus(status entities.ProfileStatus) State {
	switch status {
	case entities.ProfileStatusPending:
		return StatePendingApproval
	case entities.ProfileStatusApproved:
		return StateApproved
	case entities.ProfileStatusRejected:
		return StateRejected
	case entities.ProfileStatusDeleted:
		return StateDeleted
	default:
		return State("UNKNOWN")
	}
}

// StatusFor maps a lifecycle state back to the persisted profile status.
// States before provisioning have no profile status.
func StatusFor(state State) (entities.ProfileStatus, bool) {
	switch state {
	case StatePendingApproval:
		return entities.ProfileStatusPending, true
	case StateApproved:
		return entities.ProfileStatusApproved, true
	case StateRejected:
		return entities.ProfileStatusRejected, true
	case StateDeleted:
		return entities.ProfileStatusDeleted, true
	default:
		return "", false
	}
}

func roleIn(roles ...entities.Role) Guard {
	return func(in Input) error {
		for _, r := range roles {
			if in.Role == r {
				return nil
			}
		}
		return fmt.Errorf("%w: role %q not allowed", domainerrors.ErrIllegalTransition, in.Role)
	}
}

func reasonRequired(in Input) error {
	if strings.TrimSpace(in.Reason) == "" {
		return fmt.Errorf("%w: a reason is required", domainerrors.ErrIllegalTransition)
	}
	return nil
}
