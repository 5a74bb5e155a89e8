package app

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"school-onboarding.backend/internal/config"
	"school-onboarding.backend/internal/domain/entities"
	"school-onboarding.backend/internal/infrastructure/metrics"
	"school-onboarding.backend/internal/infrastructure/repositories/sqlitetest"
	"school-onboarding.backend/pkg/crypto"
)

func testConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{Secret: "secret", AccessExpiry: time.Minute, RefreshExpiry: time.Hour},
		Security: config.SecurityConfig{
			VerificationTokenTTL: time.Hour,
		},
		Onboarding: config.OnboardingConfig{
			BulkConcurrency:    2,
			BulkMaxTargets:     10,
			RetryMaxAttempts:   2,
			RetryBaseDelay:     time.Millisecond,
			ReconcileInterval:  time.Minute,
			ReconcileBatchSize: 10,
		},
	}
}

func TestNewContainer_WiresAWorkingGraph(t *testing.T) {
	crypto.SetHashCost(4)
	db := sqlitetest.NewSchemaDB(t)
	reg := prometheus.NewRegistry()
	c := NewContainer(testConfig(), db, Options{Metrics: metrics.New(reg)})

	result, err := c.Onboarding.BootstrapAdmin(context.Background(), "root@school.test", "secret123", "Root")
	require.NoError(t, err)
	require.NotNil(t, result.Profile)
	require.Equal(t, entities.ProfileStatusApproved, result.Profile.Status)

	session, err := c.Onboarding.Login(context.Background(), &entities.LoginInput{Email: "root@school.test", Password: "secret123"})
	require.NoError(t, err)
	actor, _, err := c.Onboarding.ResolveActor(context.Background(), session.AccessToken)
	require.NoError(t, err)
	require.True(t, actor.IsApproved())
	require.Equal(t, entities.RoleAdmin, actor.Role)

	report := c.Reconcile.RunOnce(context.Background())
	require.Zero(t, report.Scanned)

	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	require.Positive(t, count)
}
