package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/org-recognition-api/internal/dto"
	"github.com/noah-isme/org-recognition-api/internal/models"
	"github.com/noah-isme/org-recognition-api/pkg/response"
)

type submissionService interface {
	Get(ctx context.Context, id string) (*models.SubmissionView, error)
	List(ctx context.Context, filter models.SubmissionFilter) ([]models.SubmissionView, error)
	Create(ctx context.Context, actor models.Actor, req dto.CreateSubmissionRequest) (*models.SubmissionView, error)
	AdviserDecide(ctx context.Context, id string, actor models.Actor, req dto.DecisionRequest) (*models.SubmissionView, error)
	OfficeDecide(ctx context.Context, id string, actor models.Actor, req dto.DecisionRequest) (*models.SubmissionView, error)
	SetDeadline(ctx context.Context, id string, actor models.Actor, req dto.DeadlineRequest) (*models.SubmissionView, error)
	Resubmit(ctx context.Context, id string, actor models.Actor, req dto.ResubmitRequest) (*models.SubmissionView, error)
	Delete(ctx context.Context, id string, actor models.Actor) error
}

// SubmissionHandler exposes the two-stage approval workflow.
type SubmissionHandler struct {
	service submissionService
}

// NewSubmissionHandler constructs a submission handler.
func NewSubmissionHandler(svc submissionService) *SubmissionHandler {
	return &SubmissionHandler{service: svc}
}

// List godoc
// @Summary List submissions
// @Description Owners only see their own submissions
// @Tags Submissions
// @Produce json
// @Param ownerId query string false "Owner ID"
// @Param termId query string false "Academic term ID"
// @Param eventProposalId query string false "Event proposal ID"
// @Param kind query string false "document or event_document"
// @Param status query string false "Comma separated statuses"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /submissions [get]
func (h *SubmissionHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	filter := models.SubmissionFilter{
		OwnerID:         c.Query("ownerId"),
		TermID:          c.Query("termId"),
		EventProposalID: c.Query("eventProposalId"),
		Kind:            models.SubmissionKind(c.Query("kind")),
		Limit:           queryInt(c, "limit", 20),
		Offset:          queryInt(c, "offset", 0),
	}
	if actor.Role == models.RoleOwner {
		filter.OwnerID = actor.ID
	}
	for _, status := range strings.Split(c.Query("status"), ",") {
		if status = strings.TrimSpace(status); status != "" {
			filter.Status = append(filter.Status, models.SubmissionStatus(status))
		}
	}

	views, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, views, nil, map[string]interface{}{"limit": filter.Limit, "offset": filter.Offset})
}

// Get godoc
// @Summary Get submission
// @Tags Submissions
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /submissions/{id} [get]
func (h *SubmissionHandler) Get(c *gin.Context) {
	view, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Create godoc
// @Summary Create submission
// @Tags Submissions
// @Accept json
// @Produce json
// @Param payload body dto.CreateSubmissionRequest true "Submission payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /submissions [post]
func (h *SubmissionHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateSubmissionRequest
	if !bindJSON(c, &req) {
		return
	}
	view, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, view)
}

// AdviserDecision godoc
// @Summary Adviser approves or rejects a pending submission
// @Tags Submissions
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body dto.DecisionRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /submissions/{id}/adviser-decision [post]
func (h *SubmissionHandler) AdviserDecision(c *gin.Context) {
	h.decide(c, h.service.AdviserDecide)
}

// OfficeDecision godoc
// @Summary Office approves or rejects an adviser-approved submission
// @Tags Submissions
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body dto.DecisionRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /submissions/{id}/office-decision [post]
func (h *SubmissionHandler) OfficeDecision(c *gin.Context) {
	h.decide(c, h.service.OfficeDecide)
}

func (h *SubmissionHandler) decide(c *gin.Context, fn func(context.Context, string, models.Actor, dto.DecisionRequest) (*models.SubmissionView, error)) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.DecisionRequest
	if !bindJSON(c, &req) {
		return
	}
	view, err := fn(c.Request.Context(), c.Param("id"), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Deadline godoc
// @Summary Set the resubmission deadline of a rejected submission
// @Tags Submissions
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body dto.DeadlineRequest true "Deadline"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/deadline [post]
func (h *SubmissionHandler) Deadline(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.DeadlineRequest
	if !bindJSON(c, &req) {
		return
	}
	view, err := h.service.SetDeadline(c.Request.Context(), c.Param("id"), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Resubmit godoc
// @Summary Resubmit a rejected submission with a new artifact
// @Tags Submissions
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body dto.ResubmitRequest true "Artifact"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /submissions/{id}/resubmit [post]
func (h *SubmissionHandler) Resubmit(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.ResubmitRequest
	if !bindJSON(c, &req) {
		return
	}
	view, err := h.service.Resubmit(c.Request.Context(), c.Param("id"), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Delete godoc
// @Summary Delete a submission
// @Tags Submissions
// @Param id path string true "Submission ID"
// @Success 204
// @Router /submissions/{id} [delete]
func (h *SubmissionHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), actor); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
