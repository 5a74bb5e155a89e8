package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"school-onboarding.backend/internal/interfaces/http/response"
	"school-onboarding.backend/internal/usecases"
)

// AdminHandler handles admin endpoints
type AdminHandler struct {
	approvals  *usecases.ApprovalUsecase
	onboarding *usecases.OnboardingUsecase
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(approvals *usecases.ApprovalUsecase, onboarding *usecases.OnboardingUsecase) *AdminHandler {
	return &AdminHandler{
		approvals:  approvals,
		onboarding: onboarding,
	}
}

// DeleteProfile soft-deletes a profile
// DELETE /api/v1/admin/profiles/:id
func (h *AdminHandler) DeleteProfile(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	reason, ok := bindReason(c)
	if !ok {
		return
	}

	profile, err := h.approvals.Delete(c.Request.Context(), actor, id, reason)
	writeTransition(c, profile, err)
}

// ProvisionAccount re-runs provisioning for an account stuck without a
// profile, e.g. after an outage during email confirmation.
// POST /api/v1/admin/accounts/:id/provision
func (h *AdminHandler) ProvisionAccount(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	profile, err := h.onboarding.ProvisionAccount(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"profile": profile})
}
