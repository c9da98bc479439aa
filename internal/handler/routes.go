package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/org-recognition-api/internal/middleware"
	"github.com/noah-isme/org-recognition-api/internal/models"
)

// Handlers groups the presentation adapters mounted under the API prefix.
type Handlers struct {
	Terms          *TermHandler
	Compliance     *ComplianceHandler
	Submissions    *SubmissionHandler
	EventProposals *EventProposalHandler
}

// Register mounts the workflow routes. Every route requires an actor; mutating routes
// are role-gated here and again in the services.
func Register(api *gin.RouterGroup, h Handlers, logger *zap.Logger) {
	secured := api.Group("")
	secured.Use(middleware.Actor())

	owner := middleware.RequireRoles(models.RoleOwner)
	adviser := middleware.RequireRoles(models.RoleAdviser)
	office := middleware.RequireRoles(models.RoleOffice)

	terms := secured.Group("/terms")
	terms.GET("", h.Terms.List)
	terms.POST("", office, middleware.Audit(logger, "create_term", "term"), h.Terms.Create)
	terms.POST("/sweep", middleware.RequireRoles(models.RoleOwner, models.RoleOffice), middleware.Audit(logger, "sweep_terms", "term"), h.Terms.Sweep)
	terms.GET("/:id", h.Terms.Get)
	terms.PUT("/:id", office, middleware.Audit(logger, "update_term", "term"), h.Terms.Update)
	terms.GET("/:id/semesters", h.Terms.Semesters)
	terms.POST("/:id/archive-cascade", office, middleware.Audit(logger, "archive_cascade", "term"), h.Terms.ArchiveCascade)

	secured.GET("/compliance/:ownerId", h.Compliance.CanSubmit)

	submissions := secured.Group("/submissions")
	submissions.GET("", h.Submissions.List)
	submissions.POST("", owner, middleware.Audit(logger, "create_submission", "submission"), h.Submissions.Create)
	submissions.GET("/:id", h.Submissions.Get)
	submissions.DELETE("/:id", owner, middleware.Audit(logger, "delete_submission", "submission"), h.Submissions.Delete)
	submissions.POST("/:id/adviser-decision", adviser, middleware.Audit(logger, "adviser_decision", "submission"), h.Submissions.AdviserDecision)
	submissions.POST("/:id/office-decision", office, middleware.Audit(logger, "office_decision", "submission"), h.Submissions.OfficeDecision)
	submissions.POST("/:id/deadline", office, middleware.Audit(logger, "set_deadline", "submission"), h.Submissions.Deadline)
	submissions.POST("/:id/resubmit", owner, middleware.Audit(logger, "resubmit", "submission"), h.Submissions.Resubmit)

	proposals := secured.Group("/event-proposals")
	proposals.GET("", h.EventProposals.List)
	proposals.POST("", owner, middleware.Audit(logger, "create_event_proposal", "event_proposal"), h.EventProposals.Create)
	proposals.GET("/:id", h.EventProposals.Summary)
}

// RegisterOps mounts the unauthenticated operational endpoints at the root.
func RegisterOps(r gin.IRoutes, h *MetricsHandler, metricsEnabled bool) {
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)
	if metricsEnabled {
		r.GET("/metrics", h.Prometheus)
	}
}
