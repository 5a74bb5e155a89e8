package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"school-onboarding.backend/internal/domain/entities"
	"school-onboarding.backend/internal/infrastructure/identity"
	"school-onboarding.backend/internal/infrastructure/repositories"
	"school-onboarding.backend/internal/infrastructure/repositories/sqlitetest"
	"school-onboarding.backend/internal/interfaces/http/middleware"
	"school-onboarding.backend/internal/usecases"
	"school-onboarding.backend/pkg/crypto"
	"school-onboarding.backend/pkg/jwt"
)

type lastTokenNotifier struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (n *lastTokenNotifier) SendVerification(_ context.Context, email, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tokens[email] = token
	return nil
}

func (n *lastTokenNotifier) token(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.tokens[email]
}

type testServer struct {
	router     *gin.Engine
	jwt        *jwt.JWTService
	accounts   *repositories.AccountRepository
	profiles   *repositories.ProfileRepository
	notifier   *lastTokenNotifier
	onboarding *usecases.OnboardingUsecase
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	crypto.SetHashCost(4)

	db := sqlitetest.NewSchemaDB(t)
	s := &testServer{
		jwt:      jwt.NewJWTService("test-secret", time.Hour, 24*time.Hour),
		accounts: repositories.NewAccountRepository(db),
		profiles: repositories.NewProfileRepository(db),
		notifier: &lastTokenNotifier{tokens: map[string]string{}},
	}
	uow := repositories.NewUnitOfWork(db)
	provider := identity.NewLocalProvider(s.accounts, repositories.NewEmailVerificationRepository(db), uow, s.jwt, nil, s.notifier, time.Hour)
	retry := usecases.NewRetryPolicy(2, time.Millisecond)
	provisioning := usecases.NewProvisioningUsecase(s.profiles, provider, retry, nil)
	approvals := usecases.NewApprovalUsecase(s.profiles, repositories.NewAuditRepository(db), nil)
	bulk := usecases.NewBulkUsecase(approvals, nil, 2, 10)
	s.onboarding = usecases.NewOnboardingUsecase(provider, s.profiles, provisioning, uow, retry)

	authHandler := NewAuthHandler(s.onboarding)
	profileHandler := NewProfileHandler(s.onboarding)
	approvalHandler := NewApprovalHandler(approvals, bulk)
	adminHandler := NewAdminHandler(approvals, s.onboarding)
	authMiddleware := middleware.AuthMiddleware(s.onboarding)

	r := gin.New()
	v1 := r.Group("/api/v1")
	v1.POST("/auth/register", authHandler.Register)
	v1.POST("/auth/verify-email", authHandler.VerifyEmail)
	v1.POST("/auth/resend-verification", authHandler.ResendVerification)
	v1.POST("/auth/login", authHandler.Login)
	v1.GET("/auth/me", authMiddleware, authHandler.GetMe)
	v1.GET("/profiles/me", authMiddleware, profileHandler.GetMyProfile)

	approvalsGroup := v1.Group("/approvals", authMiddleware)
	approvalsGroup.GET("/pending", middleware.RequireReviewer(), approvalHandler.ListPending)
	approvalsGroup.POST("/bulk/approve", middleware.RequireReviewer(), approvalHandler.BulkApprove)
	approvalsGroup.POST("/bulk/reject", middleware.RequireReviewer(), approvalHandler.BulkReject)
	approvalsGroup.POST("/:id/approve", middleware.RequireReviewer(), approvalHandler.Approve)
	approvalsGroup.POST("/:id/reject", middleware.RequireReviewer(), approvalHandler.Reject)
	approvalsGroup.GET("/:id/history", approvalHandler.History)

	admin := v1.Group("/admin", authMiddleware, middleware.RequireAdmin())
	admin.DELETE("/profiles/:id", adminHandler.DeleteProfile)
	admin.POST("/accounts/:id/provision", adminHandler.ProvisionAccount)

	s.router = r
	return s
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(middleware.AuthorizationHeader, middleware.BearerPrefix+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

// signup registers and verifies a student or teacher. Admins are
// bootstrapped the way the operator CLI does it.
func (s *testServer) signup(t *testing.T, email, role string, meta map[string]interface{}) {
	t.Helper()
	if role == "admin" {
		_, err := s.onboarding.BootstrapAdmin(context.Background(), email, "secret123", "Root")
		require.NoError(t, err)
		return
	}
	rec := s.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]interface{}{
		"email":    email,
		"password": "secret123",
		"role":     role,
		"metadata": meta,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = s.do(t, http.MethodPost, "/api/v1/auth/verify-email", "", map[string]string{"token": s.notifier.token(email)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func (s *testServer) login(t *testing.T, email string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": email, "password": "secret123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var session entities.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	require.NotEmpty(t, session.AccessToken)
	return session.AccessToken
}

func (s *testServer) profileOf(t *testing.T, email string) *entities.Profile {
	t.Helper()
	account, err := s.accounts.GetByEmail(context.Background(), email)
	require.NoError(t, err)
	active, err := s.profiles.ListActiveByAccount(context.Background(), account.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	return active[0]
}

// seedVerified stores a verified account directly, bypassing signup
func (s *testServer) seedVerified(t *testing.T, email string, role entities.Role, meta entities.SignupMetadata) uuid.UUID {
	t.Helper()
	hash, err := crypto.HashPassword("secret123")
	require.NoError(t, err)
	a := &entities.Account{Email: email, PasswordHash: hash, Role: role, Metadata: meta, EmailVerifiedAt: null.TimeFrom(time.Now())}
	require.NoError(t, s.accounts.Create(context.Background(), a))
	return a.ID
}

func studentMeta(subjects ...string) map[string]interface{} {
	return map[string]interface{}{
		"name":             "Student",
		"class_level":      "11",
		"guardian_contact": "parent@example.com",
		"subjects":         subjects,
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}
