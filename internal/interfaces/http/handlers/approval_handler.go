package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"school-onboarding.backend/internal/domain/entities"
	domainerrors "school-onboarding.backend/internal/domain/errors"
	"school-onboarding.backend/internal/interfaces/http/response"
	"school-onboarding.backend/internal/usecases"
	"school-onboarding.backend/pkg/utils"
)

// ApprovalHandler handles review endpoints for admins and teachers
type ApprovalHandler struct {
	approvals *usecases.ApprovalUsecase
	bulk      *usecases.BulkUsecase
}

// NewApprovalHandler creates a new approval handler
func NewApprovalHandler(approvals *usecases.ApprovalUsecase, bulk *usecases.BulkUsecase) *ApprovalHandler {
	return &ApprovalHandler{
		approvals: approvals,
		bulk:      bulk,
	}
}

// ListPending lists the profiles waiting for the caller's review
// GET /api/v1/approvals/pending?role=&subject=&page=&limit=
func (h *ApprovalHandler) ListPending(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	filter := entities.PendingFilter{
		Subjects: queryList(c, "subject"),
		Page:     queryInt(c, "page"),
		Limit:    queryInt(c, "limit"),
	}
	for _, raw := range queryList(c, "role") {
		role, err := entities.ParseRole(raw)
		if err != nil {
			response.Error(c, err)
			return
		}
		filter.Roles = append(filter.Roles, role)
	}

	items, total, err := h.approvals.ListPending(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"items": items,
		"meta":  utils.CalculateMeta(total, utils.GetPaginationParams(filter.Page, filter.Limit)),
	})
}

// Approve approves a pending profile
// POST /api/v1/approvals/:id/approve
func (h *ApprovalHandler) Approve(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	profile, err := h.approvals.Approve(c.Request.Context(), actor, id)
	writeTransition(c, profile, err)
}

// Reject rejects a pending profile with a reason
// POST /api/v1/approvals/:id/reject
func (h *ApprovalHandler) Reject(c *gin.Context) {
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

	profile, err := h.approvals.Reject(c.Request.Context(), actor, id, reason)
	writeTransition(c, profile, err)
}

// BulkApprove approves many profiles
// POST /api/v1/approvals/bulk/approve
func (h *ApprovalHandler) BulkApprove(c *gin.Context) {
	h.bulkApply(c, entities.ActionApprove)
}

// BulkReject rejects many profiles with one reason
// POST /api/v1/approvals/bulk/reject
func (h *ApprovalHandler) BulkReject(c *gin.Context) {
	h.bulkApply(c, entities.ActionReject)
}

func (h *ApprovalHandler) bulkApply(c *gin.Context, action entities.ApprovalAction) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var input entities.BulkInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	result, err := h.bulk.BulkApply(c.Request.Context(), actor, input.IDs, action, input.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// History returns the audit trail of a profile
// GET /api/v1/approvals/:id/history
func (h *ApprovalHandler) History(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	entries, err := h.approvals.AuditHistory(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"entries": entries})
}

// writeTransition answers a single status change. A partial commit is not a
// failure for the caller: the change stands, but operators must restore the
// audit entry.
func writeTransition(c *gin.Context, profile *entities.Profile, err error) {
	if err == nil {
		response.Success(c, http.StatusOK, gin.H{"profile": profile})
		return
	}
	if errors.Is(err, domainerrors.ErrPartialCommit) && profile != nil {
		kind := domainerrors.KindPartialCommit
		response.Success(c, http.StatusAccepted, gin.H{
			"profile": profile,
			"code":    kind,
			"message": domainerrors.ReasonFor(kind),
		})
		return
	}
	response.Error(c, err)
}
