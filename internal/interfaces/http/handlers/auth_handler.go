package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"school-onboarding.backend/internal/domain/entities"
	domainerrors "school-onboarding.backend/internal/domain/errors"
	"school-onboarding.backend/internal/interfaces/http/middleware"
	"school-onboarding.backend/internal/interfaces/http/response"
	"school-onboarding.backend/internal/usecases"
)

// AuthHandler handles signup, verification and login endpoints
type AuthHandler struct {
	onboarding *usecases.OnboardingUsecase
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(onboarding *usecases.OnboardingUsecase) *AuthHandler {
	return &AuthHandler{
		onboarding: onboarding,
	}
}

// Register handles account requests
// POST /api/v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var input entities.RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	result, err := h.onboarding.RequestAccount(c.Request.Context(), &input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"message": "Account created. Please check your email for verification.",
		"account": result.Account,
	})
}

// VerifyEmail confirms an email and provisions the role profile
// POST /api/v1/auth/verify-email
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var input struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest("Token is required"))
		return
	}

	result, err := h.onboarding.ConfirmEmail(c.Request.Context(), input.Token)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// ResendVerification issues a fresh verification token. The response does
// not reveal whether the email is registered.
// POST /api/v1/auth/resend-verification
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var input struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest("A valid email is required"))
		return
	}

	if err := h.onboarding.ResendVerification(c.Request.Context(), input.Email); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusAccepted, gin.H{
		"message": "If the account exists and is unverified, a new verification email has been sent.",
	})
}

// Login authenticates a credential
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var input entities.LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	session, err := h.onboarding.Login(c.Request.Context(), &input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, session)
}

// GetMe returns the caller's account and resolved actor
// GET /api/v1/auth/me
func (h *AuthHandler) GetMe(c *gin.Context) {
	account, ok := requireAccount(c)
	if !ok {
		return
	}
	actor, _ := middleware.GetActor(c)

	response.Success(c, http.StatusOK, gin.H{
		"account": account,
		"actor":   actor,
	})
}
