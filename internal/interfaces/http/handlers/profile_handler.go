package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"school-onboarding.backend/internal/interfaces/http/response"
	"school-onboarding.backend/internal/usecases"
)

// ProfileHandler serves the caller's own profile
type ProfileHandler struct {
	onboarding *usecases.OnboardingUsecase
}

func NewProfileHandler(onboarding *usecases.OnboardingUsecase) *ProfileHandler {
	return &ProfileHandler{onboarding: onboarding}
}

// GetMyProfile returns the caller's profile and lifecycle state
// GET /api/v1/profiles/me
func (h *ProfileHandler) GetMyProfile(c *gin.Context) {
	account, ok := requireAccount(c)
	if !ok {
		return
	}

	view, err := h.onboarding.MyProfile(c.Request.Context(), account)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, view)
}
