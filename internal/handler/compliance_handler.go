package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/org-recognition-api/internal/models"
	appErrors "github.com/noah-isme/org-recognition-api/pkg/errors"
	"github.com/noah-isme/org-recognition-api/pkg/response"
)

type complianceGate interface {
	CanSubmit(ctx context.Context, ownerID string, kind models.SubmissionKind) (*models.GateDecision, error)
}

// ComplianceHandler answers whether an owner may submit today.
type ComplianceHandler struct {
	gate complianceGate
}

// NewComplianceHandler constructs a compliance handler.
func NewComplianceHandler(gate complianceGate) *ComplianceHandler {
	return &ComplianceHandler{gate: gate}
}

// CanSubmit godoc
// @Summary Check whether an owner may open a submission
// @Tags Compliance
// @Produce json
// @Param ownerId path string true "Owner ID"
// @Param kind query string false "document (default) or event_document"
// @Success 200 {object} response.Envelope
// @Router /compliance/{ownerId} [get]
func (h *ComplianceHandler) CanSubmit(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	ownerID := c.Param("ownerId")
	if actor.Role == models.RoleOwner && actor.ID != ownerID {
		response.Error(c, appErrors.ErrForbidden)
		return
	}
	kind := models.SubmissionKind(c.DefaultQuery("kind", string(models.SubmissionKindDocument)))

	decision, err := h.gate.CanSubmit(c.Request.Context(), ownerID, kind)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, decision, nil)
}
