package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/org-recognition-api/internal/dto"
	"github.com/noah-isme/org-recognition-api/internal/models"
	"github.com/noah-isme/org-recognition-api/pkg/response"
)

type eventProposalService interface {
	Create(ctx context.Context, actor models.Actor, req dto.CreateEventProposalRequest) (*models.EventProposal, error)
	List(ctx context.Context, ownerID, termID string) ([]models.EventProposal, error)
	Summary(ctx context.Context, id string) (*models.EventProposalSummary, error)
}

// EventProposalHandler exposes event proposals and their aggregate status.
type EventProposalHandler struct {
	service eventProposalService
}

// NewEventProposalHandler constructs an event proposal handler.
func NewEventProposalHandler(svc eventProposalService) *EventProposalHandler {
	return &EventProposalHandler{service: svc}
}

// List godoc
// @Summary List event proposals of an owner
// @Tags EventProposals
// @Produce json
// @Param ownerId query string false "Owner ID, implied for owners"
// @Param termId query string false "Academic term ID"
// @Success 200 {object} response.Envelope
// @Router /event-proposals [get]
func (h *EventProposalHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	ownerID := c.Query("ownerId")
	if actor.Role == models.RoleOwner {
		ownerID = actor.ID
	}
	proposals, err := h.service.List(c.Request.Context(), ownerID, c.Query("termId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, proposals, nil)
}

// Create godoc
// @Summary Create event proposal
// @Tags EventProposals
// @Accept json
// @Produce json
// @Param payload body dto.CreateEventProposalRequest true "Event proposal"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /event-proposals [post]
func (h *EventProposalHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateEventProposalRequest
	if !bindJSON(c, &req) {
		return
	}
	proposal, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, proposal)
}

// Summary godoc
// @Summary Get event proposal with document counts and aggregate status
// @Tags EventProposals
// @Produce json
// @Param id path string true "Event proposal ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /event-proposals/{id} [get]
func (h *EventProposalHandler) Summary(c *gin.Context) {
	summary, err := h.service.Summary(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
