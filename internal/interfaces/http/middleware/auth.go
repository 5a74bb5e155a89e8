package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"school-onboarding.backend/internal/domain/entities"
	domainerrors "school-onboarding.backend/internal/domain/errors"
	"school-onboarding.backend/internal/interfaces/http/response"
	"school-onboarding.backend/pkg/logger"
)

const (
	// AuthorizationHeader is the header key for authorization
	AuthorizationHeader = "Authorization"
	// BearerPrefix is the prefix for bearer tokens
	BearerPrefix = "Bearer "
	// SessionHeader carries an opaque session id instead of a bearer token
	SessionHeader = "X-Session-ID"
	// ActorKey is the context key for the resolved actor
	ActorKey = "actor"
	// AccountKey is the context key for the caller's account
	AccountKey = "account"
)

// ActorResolver turns a session token into the caller's account and its
// actor, read fresh from the profile store.
type ActorResolver interface {
	ResolveActor(ctx context.Context, sessionToken string) (entities.Actor, *entities.AccountRef, error)
}

// AuthMiddleware authenticates the request and stores the caller in the
// gin context. Role and approval status are re-read on every request.
func AuthMiddleware(resolver ActorResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c)
		if token == "" {
			logger.Debug(c.Request.Context(), "Missing credentials", zap.String("path", c.Request.URL.Path))
			response.Error(c, domainerrors.Unauthorized("Authorization header or session id is required"))
			c.Abort()
			return
		}

		actor, account, err := resolver.ResolveActor(c.Request.Context(), token)
		if err != nil {
			logger.Warn(c.Request.Context(), "Request authentication failed",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ActorKey, actor)
		c.Set(AccountKey, account)
		ctx := logger.WithAccount(c.Request.Context(), account.ID.String(), string(actor.Role))
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

func sessionToken(c *gin.Context) string {
	if sid := strings.TrimSpace(c.GetHeader(SessionHeader)); sid != "" {
		return sid
	}
	authHeader := c.GetHeader(AuthorizationHeader)
	if strings.HasPrefix(authHeader, BearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, BearerPrefix))
	}
	return ""
}

// GetActor gets the resolved actor from context
func GetActor(c *gin.Context) (entities.Actor, bool) {
	v, exists := c.Get(ActorKey)
	if !exists {
		return entities.AnonymousActor(), false
	}
	actor, ok := v.(entities.Actor)
	return actor, ok
}

// GetAccount gets the caller's account from context
func GetAccount(c *gin.Context) (*entities.AccountRef, bool) {
	v, exists := c.Get(AccountKey)
	if !exists {
		return nil, false
	}
	account, ok := v.(*entities.AccountRef)
	return account, ok && account != nil
}

// RequireApprovedRole rejects callers whose own profile is not APPROVED in
// one of roles. It only gates routes; each usecase still authorizes the
// target itself.
func RequireApprovedRole(roles ...entities.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := GetActor(c)
		if !ok || !actor.IsAuthenticated() {
			response.Error(c, domainerrors.Unauthorized("Authentication required"))
			c.Abort()
			return
		}
		if !actor.IsApproved() {
			response.Error(c, domainerrors.Forbidden("Your profile is not approved"))
			c.Abort()
			return
		}
		for _, role := range roles {
			if actor.Role == role {
				c.Next()
				return
			}
		}
		response.Error(c, domainerrors.Forbidden("Insufficient permissions"))
		c.Abort()
	}
}

// RequireAdmin requires an approved admin profile
func RequireAdmin() gin.HandlerFunc {
	return RequireApprovedRole(entities.RoleAdmin)
}

// RequireReviewer requires an approved admin or teacher profile
func RequireReviewer() gin.HandlerFunc {
	return RequireApprovedRole(entities.RoleAdmin, entities.RoleTeacher)
}
