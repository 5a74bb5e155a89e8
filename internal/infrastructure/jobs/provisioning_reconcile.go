package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"school-onboarding.backend/internal/domain/entities"
	domainerrors "school-onboarding.backend/internal/domain/errors"
	"school-onboarding.backend/pkg/logger"
)

type unprovisionedLister interface {
	ListUnprovisioned(ctx context.Context, after entities.AccountCursor, limit int) ([]*entities.Account, error)
}

type profileEnsurer interface {
	EnsureProfileWithRetry(ctx context.Context, account *entities.AccountRef) (*entities.Profile, error)
}

// ReconcileReport summarizes one reconcile pass
type ReconcileReport struct {
	Scanned     int
	Provisioned int
	Failed      map[domainerrors.Kind]int
}

// ProvisioningReconcileJob provisions verified accounts, and admin accounts,
// that never received a profile. This covers a crash or outage between email
// verification and provisioning.
type ProvisioningReconcileJob struct {
	accounts  unprovisionedLister
	ensurer   profileEnsurer
	interval  time.Duration
	batchSize int
	stop      chan struct{}
	stopOnce  sync.Once
}

func NewProvisioningReconcileJob(accounts unprovisionedLister, ensurer profileEnsurer, interval time.Duration, batchSize int) *ProvisioningReconcileJob {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &ProvisioningReconcileJob{
		accounts:  accounts,
		ensurer:   ensurer,
		interval:  interval,
		batchSize: batchSize,
		stop:      make(chan struct{}),
	}
}

// Start runs a pass every interval until ctx is done or Stop is called
func (j *ProvisioningReconcileJob) Start(ctx context.Context) {
	logger.Info(ctx, "Starting provisioning reconcile job", zap.Duration("interval", j.interval))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(context.Background(), "Provisioning reconcile job stopped (context cancelled)")
			return
		case <-j.stop:
			logger.Info(ctx, "Provisioning reconcile job stopped")
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

func (j *ProvisioningReconcileJob) Stop() {
	j.stopOnce.Do(func() { close(j.stop) })
}

// RunOnce walks the whole unprovisioned backlog in batches. Accounts whose
// metadata is incomplete stay unprovisioned and are reported each pass.
func (j *ProvisioningReconcileJob) RunOnce(ctx context.Context) ReconcileReport {
	report := ReconcileReport{Failed: map[domainerrors.Kind]int{}}

	var cursor entities.AccountCursor
	for ctx.Err() == nil {
		accounts, err := j.accounts.ListUnprovisioned(ctx, cursor, j.batchSize)
		if err != nil {
			logger.Error(ctx, "Error fetching unprovisioned accounts", zap.Error(err))
			break
		}
		if len(accounts) == 0 {
			break
		}

		logger.Info(ctx, "Reconciling unprovisioned accounts", zap.Int("count", len(accounts)))
		report.Scanned += len(accounts)
		for _, account := range accounts {
			if ctx.Err() != nil {
				break
			}
			j.reconcile(ctx, account, &report)
		}

		if len(accounts) < j.batchSize {
			break
		}
		cursor = entities.CursorOf(accounts[len(accounts)-1])
	}

	if report.Scanned > 0 {
		logger.Info(ctx, "Reconcile pass finished",
			zap.Int("scanned", report.Scanned),
			zap.Int("provisioned", report.Provisioned),
		)
	}
	return report
}

func (j *ProvisioningReconcileJob) reconcile(ctx context.Context, account *entities.Account, report *ReconcileReport) {
	_, err := j.ensurer.EnsureProfileWithRetry(ctx, account.Ref())
	if err == nil {
		report.Provisioned++
		return
	}
	kind := domainerrors.KindOf(err)
	report.Failed[kind]++
	fields := []zap.Field{
		zap.String("account_id", account.ID.String()),
		zap.String("role", string(account.Role)),
		zap.String("kind", string(kind)),
		zap.Error(err),
	}
	if kind == domainerrors.KindIncompleteMetadata {
		logger.Warn(ctx, "Account needs operator follow-up", fields...)
		return
	}
	logger.Error(ctx, "Reconcile provisioning failed", fields...)
}
