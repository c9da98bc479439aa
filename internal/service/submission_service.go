package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/org-recognition-api/internal/dto"
	"github.com/noah-isme/org-recognition-api/internal/models"
	"github.com/noah-isme/org-recognition-api/internal/repository"
	appErrors "github.com/noah-isme/org-recognition-api/pkg/errors"
)

type submissionStore interface {
	RunInTx(ctx context.Context, fn func(tx repository.SubmissionTx) error) error
	GetByID(ctx context.Context, id string) (*models.Submission, error)
	List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error)
}

type submissionGate interface {
	CanSubmit(ctx context.Context, ownerID string, kind models.SubmissionKind) (*models.GateDecision, error)
	EnsureTermOpen(ctx context.Context, termID string) error
	EnsureResubmissionOpen(ctx context.Context, submission *models.Submission) error
}

type eventDispatcher interface {
	Dispatch(ctx context.Context, events ...models.NotificationEvent)
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

type artifactRemover interface {
	Delete(ref string) error
}

// SubmissionService is the approval state machine. Every mutation locks the submission row
// inside one transaction, and notifications are dispatched only after commit.
type SubmissionService struct {
	store     submissionStore
	gate      submissionGate
	events    eventDispatcher
	cache     cacheInvalidator
	artifacts artifactRemover
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       Clock
}

// SubmissionServiceOption configures the service.
type SubmissionServiceOption func(*SubmissionService)

// WithSubmissionClock overrides the clock.
func WithSubmissionClock(clock Clock) SubmissionServiceOption {
	return func(s *SubmissionService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithSubmissionCache wires aggregate cache invalidation.
func WithSubmissionCache(cache cacheInvalidator) SubmissionServiceOption {
	return func(s *SubmissionService) {
		s.cache = cache
	}
}

// WithArtifactRemover wires best-effort artifact cleanup on delete.
func WithArtifactRemover(artifacts artifactRemover) SubmissionServiceOption {
	return func(s *SubmissionService) {
		s.artifacts = artifacts
	}
}

// WithSubmissionMetrics wires transition counters.
func WithSubmissionMetrics(metrics *MetricsService) SubmissionServiceOption {
	return func(s *SubmissionService) {
		s.metrics = metrics
	}
}

// NewSubmissionService constructs the state machine.
func NewSubmissionService(store submissionStore, gate submissionGate, events eventDispatcher, validate *validator.Validate, logger *zap.Logger, opts ...SubmissionServiceOption) *SubmissionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &SubmissionService{store: store, gate: gate, events: events, validator: validate, logger: logger, now: systemClock}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Get returns a submission with its derived stage.
func (s *SubmissionService) Get(ctx context.Context, id string) (*models.SubmissionView, error) {
	sub, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "submission not found", "failed to load submission")
	}
	view, err := viewOf(*sub)
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// List returns submissions matching the filter with their derived stages.
func (s *SubmissionService) List(ctx context.Context, filter models.SubmissionFilter) ([]models.SubmissionView, error) {
	subs, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	views := make([]models.SubmissionView, 0, len(subs))
	for _, sub := range subs {
		view, err := viewOf(sub)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

// Create opens a new pending submission for the acting owner.
func (s *SubmissionService) Create(ctx context.Context, actor models.Actor, req dto.CreateSubmissionRequest) (*models.SubmissionView, error) {
	if err := requireRole(actor, models.RoleOwner); err != nil {
		return nil, s.refused("create", err)
	}
	var v appErrors.Violations
	collectStructViolations(&v, s.validator.Struct(req))
	if req.DocumentType != "" && req.Kind.Valid() {
		v.Check(req.DocumentType.AllowedFor(req.Kind), "documentType %s is not valid for kind %s", req.DocumentType, req.Kind)
	}
	if req.Kind == models.SubmissionKindDocument && req.EventProposalID != "" {
		v.Add("eventProposalId is only accepted for event documents")
	}
	if err := v.Err("invalid submission payload"); err != nil {
		return nil, s.refused("create", err)
	}

	gate, err := s.gate.CanSubmit(ctx, actor.ID, req.Kind)
	if err != nil {
		return nil, err
	}
	if !gate.Allowed {
		return nil, s.refused("create", closed(gate.Reason, "submissions are closed"))
	}
	termID := gate.TermID
	if req.AcademicTermID != "" && req.AcademicTermID != termID {
		return nil, s.refused("create", appErrors.WithDetails(appErrors.ErrValidation, "invalid submission payload", "academicTermId must reference the current term"))
	}

	now := s.now()
	sub := &models.Submission{
		OwnerID:        actor.ID,
		OwnerType:      req.OwnerType,
		Kind:           req.Kind,
		DocumentType:   req.DocumentType,
		AcademicTermID: &termID,
		ArtifactRef:    req.ArtifactRef,
		Status:         models.SubmissionStatusPending,
		SubmittedAt:    now,
	}
	if req.EventProposalID != "" {
		proposalID := req.EventProposalID
		sub.EventProposalID = &proposalID
	}

	err = s.store.RunInTx(ctx, func(tx repository.SubmissionTx) error {
		if sub.EventProposalID != nil {
			proposal, err := tx.LockEventProposal(ctx, *sub.EventProposalID)
			if err != nil {
				return storeError(err, "event proposal not found", "failed to lock event proposal")
			}
			if proposal.OwnerID != actor.ID {
				return appErrors.Clone(appErrors.ErrForbidden, "event proposal belongs to another owner")
			}
			if proposal.AcademicTermID != nil && *proposal.AcademicTermID != termID {
				return closed(models.GateReasonTermNotActive, "event proposal belongs to another term")
			}
		}
		exists, err := tx.ExistsActive(ctx, repository.ActiveSubmissionParams{
			OwnerID:         sub.OwnerID,
			DocumentType:    sub.DocumentType,
			TermID:          termID,
			EventProposalID: req.EventProposalID,
		})
		if err != nil {
			return storeError(err, "", "failed to check active submissions")
		}
		if exists {
			return duplicate(sub)
		}
		return writeError(tx.Insert(ctx, sub), sub, "", "failed to create submission")
	})
	if err != nil {
		return nil, s.refused("create", err)
	}

	s.afterCommit(ctx, sub, models.Transition{
		SubmissionID: sub.ID, OwnerID: sub.OwnerID, EventProposalID: sub.EventProposalID,
		To: models.StagePending, Actor: actor, At: now,
	})
	return viewPtr(*sub)
}

// AdviserDecide records the adviser verdict on a pending submission.
func (s *SubmissionService) AdviserDecide(ctx context.Context, id string, actor models.Actor, req dto.DecisionRequest) (*models.SubmissionView, error) {
	if err := requireRole(actor, models.RoleAdviser); err != nil {
		return nil, s.refused("adviser_decide", err)
	}
	if req.ResubmissionDeadline != nil {
		return nil, s.refused("adviser_decide", appErrors.WithDetails(appErrors.ErrValidation, "invalid decision", "only the office sets resubmission deadlines"))
	}
	return s.decide(ctx, "adviser_decide", id, actor, req, func(sub *models.Submission, at time.Time) (models.Transition, error) {
		return applyAdviserDecision(sub, actor, req.Decision, req.Reason, at)
	}, func(counts models.EventDocumentCounts, t models.Transition) models.NotificationType {
		if t.To == models.StageAdviserApproved && counts.AllAdviserApproved() {
			return models.NotificationAllSentToOffice
		}
		return ""
	})
}

// OfficeDecide records the office verdict on an adviser-approved submission.
func (s *SubmissionService) OfficeDecide(ctx context.Context, id string, actor models.Actor, req dto.DecisionRequest) (*models.SubmissionView, error) {
	if err := requireRole(actor, models.RoleOffice); err != nil {
		return nil, s.refused("office_decide", err)
	}
	return s.decide(ctx, "office_decide", id, actor, req, func(sub *models.Submission, at time.Time) (models.Transition, error) {
		return applyOfficeDecision(sub, actor, req.Decision, req.Reason, req.ResubmissionDeadline, at)
	}, func(counts models.EventDocumentCounts, t models.Transition) models.NotificationType {
		if t.To == models.StageOfficeApproved && counts.AllOfficeApproved() {
			return models.NotificationAllApproved
		}
		return ""
	})
}

func (s *SubmissionService) decide(
	ctx context.Context,
	op, id string,
	actor models.Actor,
	req dto.DecisionRequest,
	apply func(sub *models.Submission, at time.Time) (models.Transition, error),
	aggregate func(counts models.EventDocumentCounts, t models.Transition) models.NotificationType,
) (*models.SubmissionView, error) {
	var v appErrors.Violations
	collectStructViolations(&v, s.validator.Struct(req))
	if err := v.Err("invalid decision"); err != nil {
		return nil, s.refused(op, err)
	}
	if _, err := rejectionReason(req.Decision, req.Reason); err != nil {
		return nil, s.refused(op, err)
	}

	var (
		sub        *models.Submission
		transition models.Transition
		aggType    models.NotificationType
	)
	err := s.store.RunInTx(ctx, func(tx repository.SubmissionTx) error {
		var err error
		if sub, err = s.lock(ctx, tx, id); err != nil {
			return err
		}
		if err := s.gate.EnsureTermOpen(ctx, sub.TermID()); err != nil {
			return err
		}
		if transition, err = apply(sub, s.now()); err != nil {
			return err
		}
		if err := tx.Update(ctx, sub); err != nil {
			return storeError(err, "submission not found", "failed to update submission")
		}
		if sub.EventProposalID == nil {
			return nil
		}
		counts, err := tx.CountEventDocuments(ctx, *sub.EventProposalID)
		if err != nil {
			return storeError(err, "", "failed to count event documents")
		}
		aggType = aggregate(counts, transition)
		return nil
	})
	if err != nil {
		return nil, s.refused(op, err)
	}

	s.afterCommit(ctx, sub, transition)
	if aggType != "" {
		s.dispatch(ctx, AggregateEvent(aggType, *sub.EventProposalID, sub.OwnerID, actor, transition.At))
		s.metrics.RecordTransition(string(aggType))
	}
	return viewPtr(*sub)
}

// SetDeadline sets the resubmission deadline of a rejected submission.
func (s *SubmissionService) SetDeadline(ctx context.Context, id string, actor models.Actor, req dto.DeadlineRequest) (*models.SubmissionView, error) {
	if err := requireRole(actor, models.RoleOffice); err != nil {
		return nil, s.refused("set_deadline", err)
	}
	var v appErrors.Violations
	collectStructViolations(&v, s.validator.Struct(req))
	if err := v.Err("invalid deadline"); err != nil {
		return nil, s.refused("set_deadline", err)
	}

	var (
		sub        *models.Submission
		transition models.Transition
	)
	err := s.store.RunInTx(ctx, func(tx repository.SubmissionTx) error {
		var err error
		if sub, err = s.lock(ctx, tx, id); err != nil {
			return err
		}
		if err := s.gate.EnsureTermOpen(ctx, sub.TermID()); err != nil {
			return err
		}
		if transition, err = applyDeadline(sub, actor, req.Deadline, s.now()); err != nil {
			return err
		}
		return storeError(tx.Update(ctx, sub), "submission not found", "failed to update submission")
	})
	if err != nil {
		return nil, s.refused("set_deadline", err)
	}
	s.afterCommit(ctx, sub, transition)
	return viewPtr(*sub)
}

// Resubmit returns a rejected submission to pending with a new artifact.
func (s *SubmissionService) Resubmit(ctx context.Context, id string, actor models.Actor, req dto.ResubmitRequest) (*models.SubmissionView, error) {
	if err := requireRole(actor, models.RoleOwner); err != nil {
		return nil, s.refused("resubmit", err)
	}
	var v appErrors.Violations
	collectStructViolations(&v, s.validator.Struct(req))
	if err := v.Err("invalid resubmission"); err != nil {
		return nil, s.refused("resubmit", err)
	}

	var (
		sub        *models.Submission
		transition models.Transition
	)
	err := s.store.RunInTx(ctx, func(tx repository.SubmissionTx) error {
		var err error
		if sub, err = s.lock(ctx, tx, id); err != nil {
			return err
		}
		if actor.Role == models.RoleOwner && sub.OwnerID != actor.ID {
			return appErrors.Clone(appErrors.ErrForbidden, "submission belongs to another owner")
		}
		if err := s.gate.EnsureTermOpen(ctx, sub.TermID()); err != nil {
			return err
		}
		stage, err := currentStage(sub)
		if err != nil {
			return err
		}
		if !stage.IsRejected() {
			return illegal("resubmission", stage)
		}
		if err := s.gate.EnsureResubmissionOpen(ctx, sub); err != nil {
			return err
		}
		params := repository.ActiveSubmissionParams{OwnerID: sub.OwnerID, DocumentType: sub.DocumentType, TermID: sub.TermID()}
		if sub.EventProposalID != nil {
			params.EventProposalID = *sub.EventProposalID
		}
		exists, err := tx.ExistsActive(ctx, params)
		if err != nil {
			return storeError(err, "", "failed to check active submissions")
		}
		if exists {
			return duplicate(sub)
		}
		if transition, err = applyResubmit(sub, actor, req.ArtifactRef, s.now()); err != nil {
			return err
		}
		return writeError(tx.Update(ctx, sub), sub, "submission not found", "failed to update submission")
	})
	if err != nil {
		return nil, s.refused("resubmit", err)
	}
	s.afterCommit(ctx, sub, transition)
	return viewPtr(*sub)
}

// Delete removes a submission at any stage. Only its owner or an administrator may delete it.
// Deletion does not consult the calendar: it is allowed in any term status.
func (s *SubmissionService) Delete(ctx context.Context, id string, actor models.Actor) error {
	if err := requireRole(actor, models.RoleOwner); err != nil {
		return s.refused("delete", err)
	}
	var (
		sub  *models.Submission
		from models.Stage
	)
	err := s.store.RunInTx(ctx, func(tx repository.SubmissionTx) error {
		var err error
		if sub, err = s.lock(ctx, tx, id); err != nil {
			return err
		}
		if actor.Role == models.RoleOwner && sub.OwnerID != actor.ID {
			return appErrors.Clone(appErrors.ErrForbidden, "submission belongs to another owner")
		}
		if from, err = currentStage(sub); err != nil {
			// an inconsistent row may still be removed
			from = ""
		}
		return storeError(tx.Delete(ctx, sub.ID), "submission not found", "failed to delete submission")
	})
	if err != nil {
		return s.refused("delete", err)
	}

	if s.artifacts != nil && sub.ArtifactRef != "" {
		if err := s.artifacts.Delete(sub.ArtifactRef); err != nil {
			s.logger.Warn("artifact cleanup failed", zap.String("submission_id", sub.ID), zap.Error(err))
		}
	}
	s.afterCommit(ctx, sub, models.Transition{
		SubmissionID: sub.ID, OwnerID: sub.OwnerID, EventProposalID: sub.EventProposalID,
		From: from, Actor: actor, At: s.now(),
	})
	return nil
}

// lock loads the submission under a row lock and, for event documents, locks the parent proposal
// so sibling decisions observe each other's committed state.
func (s *SubmissionService) lock(ctx context.Context, tx repository.SubmissionTx, id string) (*models.Submission, error) {
	sub, err := tx.LockByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "submission not found", "failed to lock submission")
	}
	if sub.EventProposalID != nil {
		if _, err := tx.LockEventProposal(ctx, *sub.EventProposalID); err != nil {
			return nil, storeError(err, "event proposal not found", "failed to lock event proposal")
		}
	}
	return sub, nil
}

func (s *SubmissionService) afterCommit(ctx context.Context, sub *models.Submission, t models.Transition) {
	event, err := TransitionEvent(t)
	if err != nil {
		s.logger.Error("unroutable transition", zap.String("submission_id", sub.ID), zap.Error(err))
		return
	}
	s.metrics.RecordTransition(string(event.Type))
	s.logger.Info("submission transition",
		zap.String("submission_id", sub.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("from", string(t.From)),
		zap.String("to", string(t.To)),
		zap.String("actor_id", t.Actor.ID))
	s.dispatch(ctx, event)
	if sub.EventProposalID != nil && s.cache != nil {
		_ = s.cache.Invalidate(ctx, eventSummaryPattern("*", *sub.EventProposalID))
	}
}

func (s *SubmissionService) dispatch(ctx context.Context, events ...models.NotificationEvent) {
	if s.events == nil {
		return
	}
	s.events.Dispatch(ctx, events...)
}

func (s *SubmissionService) refused(op string, err error) error {
	if appErr := appErrors.FromError(err); appErr != nil {
		s.metrics.RecordRejectedOperation(op, appErr.Code)
	}
	return err
}

// requireRole accepts the given role or an administrator.
func requireRole(actor models.Actor, role models.ActorRole) error {
	if actor.ID == "" || !actor.Role.Valid() {
		return appErrors.Clone(appErrors.ErrUnauthorized, "actor identity is required")
	}
	if actor.Role != role && actor.Role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "role "+string(actor.Role)+" may not perform this operation")
	}
	return nil
}

func viewOf(sub models.Submission) (models.SubmissionView, error) {
	stage, err := currentStage(&sub)
	if err != nil {
		return models.SubmissionView{}, err
	}
	return models.SubmissionView{Submission: sub, Stage: stage, StageLabel: stage.Label()}, nil
}

func viewPtr(sub models.Submission) (*models.SubmissionView, error) {
	view, err := viewOf(sub)
	if err != nil {
		return nil, err
	}
	return &view, nil
}
