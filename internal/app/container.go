// Package app wires repositories, the identity provider and usecases into
// one graph shared by the HTTP server and the operator CLI.
package app

import (
	"gorm.io/gorm"

	"school-onboarding.backend/internal/config"
	"school-onboarding.backend/internal/domain/repositories"
	"school-onboarding.backend/internal/infrastructure/identity"
	"school-onboarding.backend/internal/infrastructure/jobs"
	"school-onboarding.backend/internal/infrastructure/metrics"
	repoimpl "school-onboarding.backend/internal/infrastructure/repositories"
	"school-onboarding.backend/internal/usecases"
	"school-onboarding.backend/pkg/jwt"
)

// Container holds the wired service graph
type Container struct {
	JWT      *jwt.JWTService
	Accounts *repoimpl.AccountRepository
	Profiles *repoimpl.ProfileRepository
	Audit    *repoimpl.AuditRepository
	UoW      repositories.UnitOfWork
	Identity *identity.LocalProvider
	Metrics  *metrics.Recorder

	Provisioning *usecases.ProvisioningUsecase
	Approvals    *usecases.ApprovalUsecase
	Bulk         *usecases.BulkUsecase
	Onboarding   *usecases.OnboardingUsecase
	Reconcile    *jobs.ProvisioningReconcileJob
}

// Options carries the optional collaborators. Nil values fall back to
// JWT-only auth, logged verification tokens and no metrics.
type Options struct {
	Sessions identity.SessionStore
	Notifier identity.Notifier
	Metrics  *metrics.Recorder
}

// NewContainer builds the graph over db
func NewContainer(cfg *config.Config, db *gorm.DB, opts Options) *Container {
	c := &Container{
		JWT:      jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiry, cfg.JWT.RefreshExpiry),
		Accounts: repoimpl.NewAccountRepository(db),
		Profiles: repoimpl.NewProfileRepository(db),
		Audit:    repoimpl.NewAuditRepository(db),
		UoW:      repoimpl.NewUnitOfWork(db),
		Metrics:  opts.Metrics,
	}

	c.Identity = identity.NewLocalProvider(
		c.Accounts,
		repoimpl.NewEmailVerificationRepository(db),
		c.UoW,
		c.JWT,
		opts.Sessions,
		opts.Notifier,
		cfg.Security.VerificationTokenTTL,
	)

	retry := usecases.NewRetryPolicy(cfg.Onboarding.RetryMaxAttempts, cfg.Onboarding.RetryBaseDelay)
	c.Provisioning = usecases.NewProvisioningUsecase(c.Profiles, c.Identity, retry, c.Metrics)
	c.Approvals = usecases.NewApprovalUsecase(c.Profiles, c.Audit, c.Metrics)
	c.Bulk = usecases.NewBulkUsecase(c.Approvals, c.Metrics, cfg.Onboarding.BulkConcurrency, cfg.Onboarding.BulkMaxTargets)
	c.Onboarding = usecases.NewOnboardingUsecase(c.Identity, c.Profiles, c.Provisioning, c.UoW, retry)
	c.Reconcile = jobs.NewProvisioningReconcileJob(c.Accounts, c.Provisioning, cfg.Onboarding.ReconcileInterval, cfg.Onboarding.ReconcileBatchSize)
	return c
}
