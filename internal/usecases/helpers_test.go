package usecases_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"

	"school-onboarding.backend/internal/domain/entities"
	domainRepos "school-onboarding.backend/internal/domain/repositories"
	"school-onboarding.backend/internal/infrastructure/identity"
	"school-onboarding.backend/internal/infrastructure/repositories"
	"school-onboarding.backend/internal/infrastructure/repositories/sqlitetest"
	"school-onboarding.backend/internal/usecases"
	"school-onboarding.backend/pkg/crypto"
)

// env wires the usecases over an in-memory database
type env struct {
	db           *gorm.DB
	accounts     *repositories.AccountRepository
	profiles     domainRepos.ProfileRepository
	audit        domainRepos.AuditRepository
	identity     *identity.LocalProvider
	notifier     *tokenNotifier
	provisioning *usecases.ProvisioningUsecase
	approvals    *usecases.ApprovalUsecase
	bulk         *usecases.BulkUsecase
	onboarding   *usecases.OnboardingUsecase
}

type envOption func(*env)

// tokenNotifier keeps the last verification token it was asked to send
type tokenNotifier struct {
	mu    sync.Mutex
	token string
}

func (n *tokenNotifier) SendVerification(_ context.Context, _, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.token = token
	return nil
}

func (n *tokenNotifier) last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.token
}

func withProfiles(wrap func(domainRepos.ProfileRepository) domainRepos.ProfileRepository) envOption {
	return func(e *env) { e.profiles = wrap(e.profiles) }
}

func newEnv(t *testing.T, opts ...envOption) *env {
	t.Helper()
	crypto.SetHashCost(4)

	db := sqlitetest.NewSchemaDB(t)
	e := &env{
		db:       db,
		accounts: repositories.NewAccountRepository(db),
		profiles: repositories.NewProfileRepository(db),
		audit:    repositories.NewAuditRepository(db),
	}
	for _, opt := range opts {
		opt(e)
	}

	uow := repositories.NewUnitOfWork(db)
	e.notifier = &tokenNotifier{}
	e.identity = identity.NewLocalProvider(e.accounts, repositories.NewEmailVerificationRepository(db), uow, nil, nil, e.notifier, time.Hour)
	retry := usecases.NewRetryPolicy(3, time.Millisecond)
	e.provisioning = usecases.NewProvisioningUsecase(e.profiles, e.identity, retry, nil)
	e.approvals = usecases.NewApprovalUsecase(e.profiles, e.audit, nil)
	e.bulk = usecases.NewBulkUsecase(e.approvals, nil, 4, 50)
	e.onboarding = usecases.NewOnboardingUsecase(e.identity, e.profiles, e.provisioning, uow, retry)
	return e
}

func (e *env) seedAccount(t *testing.T, email string, role entities.Role, verified bool, meta entities.SignupMetadata) *entities.AccountRef {
	t.Helper()
	a := &entities.Account{
		Email:        email,
		PasswordHash: "hash",
		Role:         role,
		Metadata:     meta,
	}
	if verified {
		a.EmailVerifiedAt = null.TimeFrom(time.Now())
	}
	require.NoError(t, e.accounts.Create(context.Background(), a))
	return a.Ref()
}

func studentMeta(subjects ...interface{}) entities.SignupMetadata {
	return entities.SignupMetadata{
		entities.MetaName:            "Ada Student",
		entities.MetaClassLevel:      "10",
		entities.MetaGuardianContact: "+62 811 000 000",
		entities.MetaSubjects:        subjects,
	}
}

func teacherMeta(expertise ...interface{}) entities.SignupMetadata {
	return entities.SignupMetadata{
		entities.MetaName:              "Tom Teacher",
		entities.MetaSubjectExpertise:  expertise,
		entities.MetaYearsOfExperience: float64(7),
	}
}

// pendingStudent provisions a verified student and returns its PENDING profile
func (e *env) pendingStudent(t *testing.T, email string, subjects ...interface{}) *entities.Profile {
	t.Helper()
	account := e.seedAccount(t, email, entities.RoleStudent, true, studentMeta(subjects...))
	p, err := e.provisioning.EnsureProfile(context.Background(), account)
	require.NoError(t, err)
	require.Equal(t, entities.ProfileStatusPending, p.Status)
	return p
}

func (e *env) pendingTeacher(t *testing.T, email string, expertise ...interface{}) *entities.Profile {
	t.Helper()
	account := e.seedAccount(t, email, entities.RoleTeacher, true, teacherMeta(expertise...))
	p, err := e.provisioning.EnsureProfile(context.Background(), account)
	require.NoError(t, err)
	return p
}

func (e *env) admin(t *testing.T, email string) entities.Actor {
	t.Helper()
	account := e.seedAccount(t, email, entities.RoleAdmin, false, entities.SignupMetadata{entities.MetaName: "Root"})
	_, err := e.provisioning.EnsureProfile(context.Background(), account)
	require.NoError(t, err)
	actor, err := e.onboarding.ActorFor(context.Background(), account)
	require.NoError(t, err)
	return actor
}

// approvedTeacher returns the actor of a teacher an admin has approved
func (e *env) approvedTeacher(t *testing.T, email string, expertise ...interface{}) entities.Actor {
	t.Helper()
	p := e.pendingTeacher(t, email, expertise...)
	_, err := e.approvals.Approve(context.Background(), e.admin(t, "boot-"+email), p.ID)
	require.NoError(t, err)
	account, err := e.identity.GetAccount(context.Background(), p.AccountID)
	require.NoError(t, err)
	actor, err := e.onboarding.ActorFor(context.Background(), account)
	require.NoError(t, err)
	return actor
}

// barrierProfiles, once armed, holds GetByID until n callers have read, so
// all of them decide on the same snapshot. Calls beyond n pass through.
type barrierProfiles struct {
	domainRepos.ProfileRepository
	mu      sync.Mutex
	waiting int
	release chan struct{}
}

func (b *barrierProfiles) arm(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.waiting = n
	b.release = make(chan struct{})
}

func (b *barrierProfiles) GetByID(ctx context.Context, id uuid.UUID) (*entities.Profile, error) {
	p, err := b.ProfileRepository.GetByID(ctx, id)

	b.mu.Lock()
	if b.waiting == 0 {
		b.mu.Unlock()
		return p, err
	}
	b.waiting--
	release := b.release
	if b.waiting == 0 {
		close(release)
	}
	b.mu.Unlock()

	<-release
	return p, err
}

func withBarrier(b *barrierProfiles) envOption {
	return withProfiles(func(inner domainRepos.ProfileRepository) domainRepos.ProfileRepository {
		b.ProfileRepository = inner
		return b
	})
}
