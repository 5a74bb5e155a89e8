// Package identity provides the database-backed identity provider: accounts,
// credentials, email verification tokens and login sessions.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"school-onboarding.backend/internal/domain/entities"
	domainerrors "school-onboarding.backend/internal/domain/errors"
	"school-onboarding.backend/internal/domain/repositories"
	"school-onboarding.backend/pkg/crypto"
	"school-onboarding.backend/pkg/jwt"
	"school-onboarding.backend/pkg/logger"
	"school-onboarding.backend/pkg/redis"
)

// SessionStore keeps opaque login sessions
type SessionStore interface {
	CreateSession(ctx context.Context, sessionID string, data *redis.SessionData, expiration time.Duration) error
	GetSession(ctx context.Context, sessionID string) (*redis.SessionData, error)
}

// Notifier delivers verification tokens out of band
type Notifier interface {
	SendVerification(ctx context.Context, email, token string) error
}

// LogNotifier writes verification tokens to the log instead of sending them
type LogNotifier struct{}

// SendVerification logs the token at debug level
func (LogNotifier) SendVerification(ctx context.Context, email, token string) error {
	logger.Debug(ctx, "Verification token issued", zap.String("email", email), zap.String("token", token))
	return nil
}

var (
	hashPassword  = crypto.HashPassword
	generateToken = crypto.GenerateVerificationToken
	newSessionID  = func() (string, error) { return crypto.GenerateRandomToken(32) }
)

// LocalProvider implements repositories.IdentityProvider over the account tables
type LocalProvider struct {
	accounts      repositories.AccountRepository
	verifications repositories.EmailVerificationRepository
	uow           repositories.UnitOfWork
	jwtService    *jwt.JWTService
	sessions      SessionStore
	notifier      Notifier
	tokenTTL      time.Duration
	now           func() time.Time
}

var _ repositories.IdentityProvider = (*LocalProvider)(nil)

// NewLocalProvider creates the provider. sessions may be nil, in which case
// only JWT access tokens are accepted.
func NewLocalProvider(
	accounts repositories.AccountRepository,
	verifications repositories.EmailVerificationRepository,
	uow repositories.UnitOfWork,
	jwtService *jwt.JWTService,
	sessions SessionStore,
	notifier Notifier,
	tokenTTL time.Duration,
) *LocalProvider {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &LocalProvider{
		accounts:      accounts,
		verifications: verifications,
		uow:           uow,
		jwtService:    jwtService,
		sessions:      sessions,
		notifier:      notifier,
		tokenTTL:      tokenTTL,
		now:           time.Now,
	}
}

// CreateAccount registers an account and issues its first verification token
func (p *LocalProvider) CreateAccount(ctx context.Context, email, credential string, role entities.Role, metadata entities.SignupMetadata) (*entities.AccountRef, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: email is required", domainerrors.ErrInvalidInput)
	}
	if !crypto.IsStrongPassword(credential) {
		return nil, domainerrors.ErrWeakCredential
	}

	hash, err := hashPassword(credential)
	if err != nil {
		return nil, domainerrors.Unavailable(err)
	}

	token, err := generateToken()
	if err != nil {
		return nil, domainerrors.Unavailable(err)
	}

	now := p.now()
	account := &entities.Account{
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Metadata:     metadata,
		CreatedAt:    now,
	}

	err = p.uow.Do(ctx, func(ctx context.Context) error {
		if err := p.accounts.Create(ctx, account); err != nil {
			return err
		}
		return p.verifications.Create(ctx, &entities.EmailVerification{
			AccountID: account.ID,
			Token:     token,
			ExpiresAt: now.Add(p.tokenTTL),
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, domainerrors.Unavailable(err)
	}

	p.notify(ctx, email, token)
	return account.Ref(), nil
}

// VerifyEmail consumes a token and marks its account verified
func (p *LocalProvider) VerifyEmail(ctx context.Context, token string) (*entities.AccountRef, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domainerrors.ErrInvalidToken
	}

	v, err := p.verifications.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.ErrInvalidToken
		}
		return nil, domainerrors.Unavailable(err)
	}

	now := p.now()
	if now.After(v.ExpiresAt) {
		return nil, domainerrors.ErrTokenExpired
	}

	err = p.uow.Do(ctx, func(ctx context.Context) error {
		if err := p.verifications.MarkVerified(ctx, token, now); err != nil {
			return err
		}
		return p.accounts.MarkEmailVerified(ctx, v.AccountID, now)
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.ErrInvalidToken
		}
		return nil, domainerrors.Unavailable(err)
	}

	account, err := p.accounts.GetByID(ctx, v.AccountID)
	if err != nil {
		return nil, domainerrors.Unavailable(err)
	}
	logger.Info(ctx, "Email verified", zap.String("account_id", account.ID.String()))
	return account.Ref(), nil
}

// CurrentAccount resolves a JWT access token or a session id
func (p *LocalProvider) CurrentAccount(ctx context.Context, sessionToken string) (*entities.AccountRef, error) {
	sessionToken = strings.TrimSpace(sessionToken)
	if sessionToken == "" {
		return nil, domainerrors.ErrNotAuthenticated
	}

	accessToken := sessionToken
	var sessionAccount uuid.UUID
	if !strings.Contains(sessionToken, ".") {
		if p.sessions == nil {
			return nil, domainerrors.ErrNotAuthenticated
		}
		data, err := p.sessions.GetSession(ctx, sessionToken)
		if err != nil {
			if errors.Is(err, redis.ErrSessionNotFound) {
				return nil, fmt.Errorf("%w: unknown or expired session", domainerrors.ErrNotAuthenticated)
			}
			return nil, domainerrors.Unavailable(err)
		}
		accessToken = data.AccessToken
		sessionAccount = data.AccountID
	}

	claims, err := p.jwtService.ValidateToken(accessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domainerrors.ErrNotAuthenticated, err)
	}
	if sessionAccount != uuid.Nil && sessionAccount != claims.AccountID {
		return nil, fmt.Errorf("%w: session does not match token", domainerrors.ErrNotAuthenticated)
	}

	account, err := p.accounts.GetByID(ctx, claims.AccountID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.ErrNotAuthenticated
		}
		return nil, domainerrors.Unavailable(err)
	}
	return account.Ref(), nil
}

// Authenticate checks a credential and issues a token pair, plus a session
// id when requested and a session store is configured.
func (p *LocalProvider) Authenticate(ctx context.Context, email, credential string, useSession bool) (*entities.Session, error) {
	account, err := p.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.ErrInvalidCredentials
		}
		return nil, domainerrors.Unavailable(err)
	}
	if !crypto.CheckPassword(credential, account.PasswordHash) {
		return nil, domainerrors.ErrInvalidCredentials
	}

	pair, err := p.jwtService.GenerateTokenPair(account.ID, account.Email, string(account.Role))
	if err != nil {
		return nil, domainerrors.Unavailable(err)
	}

	session := &entities.Session{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		Account:      account.Ref(),
	}
	if !useSession || p.sessions == nil {
		return session, nil
	}

	sid, err := newSessionID()
	if err != nil {
		return nil, domainerrors.Unavailable(err)
	}
	err = p.sessions.CreateSession(ctx, sid, &redis.SessionData{
		AccountID:    account.ID,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		CreatedAt:    p.now(),
	}, p.jwtService.AccessExpiry())
	if err != nil {
		return nil, domainerrors.Unavailable(err)
	}

	// session callers never see the raw tokens
	return &entities.Session{SessionID: sid, Account: account.Ref()}, nil
}

// ResendVerification retires outstanding tokens and issues a fresh one.
// Unknown and already verified emails succeed silently.
func (p *LocalProvider) ResendVerification(ctx context.Context, email string) error {
	account, err := p.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil
		}
		return domainerrors.Unavailable(err)
	}
	if account.EmailVerifiedAt.Valid {
		return nil
	}

	token, err := generateToken()
	if err != nil {
		return domainerrors.Unavailable(err)
	}

	now := p.now()
	err = p.uow.Do(ctx, func(ctx context.Context) error {
		if err := p.verifications.InvalidateForAccount(ctx, account.ID, now); err != nil {
			return err
		}
		return p.verifications.Create(ctx, &entities.EmailVerification{
			AccountID: account.ID,
			Token:     token,
			ExpiresAt: now.Add(p.tokenTTL),
			CreatedAt: now,
		})
	})
	if err != nil {
		return domainerrors.Unavailable(err)
	}

	p.notify(ctx, account.Email, token)
	return nil
}

// GetAccount loads an account by id
func (p *LocalProvider) GetAccount(ctx context.Context, id uuid.UUID) (*entities.AccountRef, error) {
	account, err := p.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, domainerrors.Unavailable(err)
	}
	return account.Ref(), nil
}

// A failed delivery is not fatal: the user can ask for a resend.
func (p *LocalProvider) notify(ctx context.Context, email, token string) {
	if err := p.notifier.SendVerification(ctx, email, token); err != nil {
		logger.Warn(ctx, "Verification delivery failed", zap.String("email", email), zap.Error(err))
	}
}
