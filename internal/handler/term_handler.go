package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/org-recognition-api/internal/dto"
	"github.com/noah-isme/org-recognition-api/internal/models"
	"github.com/noah-isme/org-recognition-api/pkg/response"
)

type termService interface {
	List(ctx context.Context) ([]models.AcademicTerm, error)
	Get(ctx context.Context, id string) (*models.AcademicTerm, error)
	ListSemesters(ctx context.Context, termID string) ([]models.Semester, error)
	Create(ctx context.Context, req dto.CreateTermRequest) (*models.AcademicTerm, error)
	Update(ctx context.Context, id string, req dto.UpdateTermRequest) (*models.AcademicTerm, error)
}

type termArchival interface {
	OnPresidentLogin(ctx context.Context) (*models.SweepReport, error)
	OnTermArchived(ctx context.Context, termID string) (*models.PurgeResult, error)
}

// TermHandler exposes the calendar registry and the archival entry points.
type TermHandler struct {
	service  termService
	archival termArchival
}

// NewTermHandler constructs a term handler.
func NewTermHandler(svc termService, archival termArchival) *TermHandler {
	return &TermHandler{service: svc, archival: archival}
}

// List godoc
// @Summary List terms
// @Description List academic terms, most recent first, with their semesters
// @Tags Terms
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /terms [get]
func (h *TermHandler) List(c *gin.Context) {
	terms, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, terms, nil)
}

// Get godoc
// @Summary Get term
// @Tags Terms
// @Produce json
// @Param id path string true "Term ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /terms/{id} [get]
func (h *TermHandler) Get(c *gin.Context) {
	term, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, term, nil)
}

// Semesters godoc
// @Summary List semesters of a term
// @Tags Terms
// @Produce json
// @Param id path string true "Term ID"
// @Success 200 {object} response.Envelope
// @Router /terms/{id}/semesters [get]
func (h *TermHandler) Semesters(c *gin.Context) {
	semesters, err := h.service.ListSemesters(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, semesters, nil)
}

// Create godoc
// @Summary Create term
// @Tags Terms
// @Accept json
// @Produce json
// @Param payload body dto.CreateTermRequest true "Term payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /terms [post]
func (h *TermHandler) Create(c *gin.Context) {
	var req dto.CreateTermRequest
	if !bindJSON(c, &req) {
		return
	}
	term, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, term)
}

// Update godoc
// @Summary Update term
// @Description Replace a term's ranges; status may only be set to archived
// @Tags Terms
// @Accept json
// @Produce json
// @Param id path string true "Term ID"
// @Param payload body dto.UpdateTermRequest true "Term payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /terms/{id} [put]
func (h *TermHandler) Update(c *gin.Context) {
	var req dto.UpdateTermRequest
	if !bindJSON(c, &req) {
		return
	}
	term, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, term, nil)
}

// Sweep godoc
// @Summary Recompute term statuses
// @Description Runs the status sweep and cascades newly archived terms
// @Tags Terms
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /terms/sweep [post]
func (h *TermHandler) Sweep(c *gin.Context) {
	report, err := h.archival.OnPresidentLogin(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// ArchiveCascade godoc
// @Summary Run the archival cascade of a term
// @Description Idempotent; a term already cleaned is left untouched
// @Tags Terms
// @Produce json
// @Param id path string true "Term ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /terms/{id}/archive-cascade [post]
func (h *TermHandler) ArchiveCascade(c *gin.Context) {
	result, err := h.archival.OnTermArchived(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
