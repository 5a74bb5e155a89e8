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

	"school-onboarding.backend/internal/domain/authority"
	"school-onboarding.backend/internal/domain/entities"
	domainerrors "school-onboarding.backend/internal/domain/errors"
	"school-onboarding.backend/internal/domain/lifecycle"
	"school-onboarding.backend/internal/domain/repositories"
	"school-onboarding.backend/internal/infrastructure/metrics"
	"school-onboarding.backend/pkg/logger"
)

// ApprovalUsecase applies approve, reject and delete decisions. Each decision
// re-reads the target, authorizes, checks the lifecycle, conditionally updates
// the stored status and then appends one audit entry.
type ApprovalUsecase struct {
	profiles repositories.ProfileRepository
	audit    repositories.AuditRepository
	metrics  *metrics.Recorder
	now      func() time.Time
}

// NewApprovalUsecase creates a new approval usecase
func NewApprovalUsecase(
	profiles repositories.ProfileRepository,
	audit repositories.AuditRepository,
	recorder *metrics.Recorder,
) *ApprovalUsecase {
	return &ApprovalUsecase{
		profiles: profiles,
		audit:    audit,
		metrics:  recorder,
		now:      time.Now,
	}
}

// Approve moves a PENDING profile to APPROVED
func (u *ApprovalUsecase) Approve(ctx context.Context, actor entities.Actor, profileID uuid.UUID) (*entities.Profile, error) {
	return u.apply(ctx, actor, profileID, entities.ActionApprove, "", false)
}

// Reject moves a PENDING profile to REJECTED. reason is required.
func (u *ApprovalUsecase) Reject(ctx context.Context, actor entities.Actor, profileID uuid.UUID, reason string) (*entities.Profile, error) {
	return u.apply(ctx, actor, profileID, entities.ActionReject, reason, false)
}

// Delete soft-deletes a profile. reason is required.
func (u *ApprovalUsecase) Delete(ctx context.Context, actor entities.Actor, profileID uuid.UUID, reason string) (*entities.Profile, error) {
	return u.apply(ctx, actor, profileID, entities.ActionDelete, reason, false)
}

// ListPending lists the PENDING profiles the actor may review
func (u *ApprovalUsecase) ListPending(ctx context.Context, actor entities.Actor, filter entities.PendingFilter) ([]*entities.Profile, int64, error) {
	scoped, err := authority.PendingScope(actor, filter)
	if err != nil {
		return nil, 0, err
	}
	items, total, err := u.profiles.ListPending(ctx, scoped)
	if err != nil {
		return nil, 0, domainerrors.Unavailable(err)
	}
	return items, total, nil
}

// AuditHistory returns the transitions of a profile oldest first
func (u *ApprovalUsecase) AuditHistory(ctx context.Context, actor entities.Actor, profileID uuid.UUID) ([]*entities.AuditEntry, error) {
	target, err := u.profiles.GetByID(ctx, profileID)
	if err != nil {
		return nil, domainerrors.Unavailable(err)
	}
	if err := authority.AuthorizeView(actor, target); err != nil {
		return nil, err
	}
	entries, err := u.audit.ListByProfile(ctx, profileID)
	if err != nil {
		return nil, domainerrors.Unavailable(err)
	}
	return entries, nil
}

func (u *ApprovalUsecase) apply(
	ctx context.Context,
	actor entities.Actor,
	profileID uuid.UUID,
	action entities.ApprovalAction,
	reason string,
	bulk bool,
) (*entities.Profile, error) {
	profile, err := u.decide(ctx, actor, profileID, action, strings.TrimSpace(reason), bulk)
	kind := "ok"
	if err != nil {
		kind = string(domainerrors.KindOf(err))
	}
	u.metrics.Transition(string(action), kind)
	return profile, err
}

func (u *ApprovalUsecase) decide(
	ctx context.Context,
	actor entities.Actor,
	profileID uuid.UUID,
	action entities.ApprovalAction,
	reason string,
	bulk bool,
) (*entities.Profile, error) {
	target, err := u.profiles.GetByID(ctx, profileID)
	if err != nil {
		return nil, domainerrors.Unavailable(err)
	}

	if _, err := authority.Authorize(actor, target, action); err != nil {
		return nil, err
	}

	to, err := lifecycle.Transition(
		lifecycle.StateForStatus(target.Status),
		lifecycle.EventFor(action),
		lifecycle.Input{Role: target.Role, Reason: reason},
	)
	if err != nil {
		return nil, err
	}
	toStatus, ok := lifecycle.StatusFor(to)
	if !ok {
		return nil, fmt.Errorf("%w: %s leads to %s", domainerrors.ErrIllegalTransition, action, to)
	}

	now := u.now()
	updated, err := u.profiles.UpdateStatus(ctx, entities.StatusChange{
		ProfileID: target.ID,
		Role:      target.Role,
		From:      target.Status,
		To:        toStatus,
		ActorID:   actor.AccountID,
		Reason:    reason,
		At:        now,
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrConcurrentModification) {
			logger.Info(ctx, "Profile already processed",
				zap.String("profile_id", profileID.String()),
				zap.String("action", string(action)),
			)
		}
		return nil, domainerrors.Unavailable(err)
	}

	entry := &entities.AuditEntry{
		ProfileID:   target.ID,
		ProfileRole: target.Role,
		ActorID:     actor.AccountID,
		ActorRole:   actor.Role,
		Action:      entities.AuditActionFor(action, bulk),
		FromStatus:  target.Status,
		ToStatus:    toStatus,
		CreatedAt:   now,
	}
	if reason != "" {
		entry.Reason = null.StringFrom(reason)
	}
	if err := u.audit.Append(ctx, entry); err != nil {
		u.metrics.PartialCommit()
		logger.Warn(ctx, "Audit append failed after status change",
			zap.String("profile_id", target.ID.String()),
			zap.String("from", string(target.Status)),
			zap.String("to", string(toStatus)),
			zap.String("actor_id", actor.AccountID.String()),
			zap.Error(err),
		)
		return updated, fmt.Errorf("%w: %v", domainerrors.ErrPartialCommit, err)
	}

	logger.Info(ctx, "Profile status changed",
		zap.String("profile_id", target.ID.String()),
		zap.String("action", string(entry.Action)),
		zap.String("from", string(target.Status)),
		zap.String("to", string(toStatus)),
	)
	return updated, nil
}
