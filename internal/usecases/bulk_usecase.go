package usecases

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"school-onboarding.backend/internal/domain/entities"
	domainerrors "school-onboarding.backend/internal/domain/errors"
	"school-onboarding.backend/internal/infrastructure/metrics"
	"school-onboarding.backend/pkg/logger"
	"school-onboarding.backend/pkg/utils"
)

// BulkUsecase applies one approval action to many profiles. Every distinct
// target is attempted exactly once and a failure never aborts the batch.
type BulkUsecase struct {
	approvals   *ApprovalUsecase
	metrics     *metrics.Recorder
	concurrency int
	maxTargets  int
}

// NewBulkUsecase creates a new bulk usecase
func NewBulkUsecase(approvals *ApprovalUsecase, recorder *metrics.Recorder, concurrency, maxTargets int) *BulkUsecase {
	if concurrency < 1 {
		concurrency = 1
	}
	return &BulkUsecase{
		approvals:   approvals,
		metrics:     recorder,
		concurrency: concurrency,
		maxTargets:  maxTargets,
	}
}

type bulkOutcome struct {
	id  uuid.UUID
	err error
}

// BulkApply approves or rejects every id. The result lists outcomes in input
// order; duplicates are attempted once.
func (u *BulkUsecase) BulkApply(
	ctx context.Context,
	actor entities.Actor,
	ids []uuid.UUID,
	action entities.ApprovalAction,
	reason string,
) (*entities.BulkResult, error) {
	if action != entities.ActionApprove && action != entities.ActionReject {
		return nil, fmt.Errorf("%w: bulk %q is not supported", domainerrors.ErrInvalidInput, action)
	}
	targets := utils.DedupeUUIDs(ids)
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: no profile ids given", domainerrors.ErrInvalidInput)
	}
	if u.maxTargets > 0 && len(targets) > u.maxTargets {
		return nil, fmt.Errorf("%w: at most %d ids per request", domainerrors.ErrInvalidInput, u.maxTargets)
	}

	outcomes := make([]bulkOutcome, len(targets))
	var g errgroup.Group
	g.SetLimit(u.concurrency)
	for i, id := range targets {
		i, id := i, id
		g.Go(func() error {
			_, err := u.approvals.apply(ctx, actor, id, action, reason, true)
			outcomes[i] = bulkOutcome{id: id, err: err}
			return nil
		})
	}
	_ = g.Wait()

	result := &entities.BulkResult{
		Succeeded: []uuid.UUID{},
		Failed:    []entities.BulkFailure{},
	}
	for _, o := range outcomes {
		if o.err == nil {
			result.Succeeded = append(result.Succeeded, o.id)
			u.metrics.BulkTarget(string(action), "ok")
			continue
		}
		kind := domainerrors.KindOf(o.err)
		result.Failed = append(result.Failed, entities.BulkFailure{
			ID:      o.id,
			Kind:    string(kind),
			Message: domainerrors.ReasonFor(kind),
		})
		u.metrics.BulkTarget(string(action), string(kind))
	}

	logger.Info(ctx, "Bulk operation finished",
		zap.String("action", string(action)),
		zap.Int("targets", len(targets)),
		zap.Int("succeeded", len(result.Succeeded)),
		zap.Int("failed", len(result.Failed)),
	)
	return result, nil
}
