package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/org-recognition-api/internal/dto"
	"github.com/noah-isme/org-recognition-api/internal/models"
	appErrors "github.com/noah-isme/org-recognition-api/pkg/errors"
)

type eventProposalStore interface {
	Create(ctx context.Context, proposal *models.EventProposal) error
	GetByID(ctx context.Context, id string) (*models.EventProposal, error)
	ListByOwner(ctx context.Context, ownerID, termID string) ([]models.EventProposal, error)
	Counts(ctx context.Context, id string) (models.EventDocumentCounts, error)
}

type proposalGate interface {
	CanSubmit(ctx context.Context, ownerID string, kind models.SubmissionKind) (*models.GateDecision, error)
}

type countsCache interface {
	Remember(ctx context.Context, key string, ttl time.Duration, dest interface{}, load func(ctx context.Context) error) error
}

// eventSummaryPattern builds the cache key of an event proposal's counts; either part may be "*".
func eventSummaryPattern(termID, proposalID string) string {
	return fmt.Sprintf("event_summary:%s:%s", termID, proposalID)
}

// EventProposalService manages event proposals and their derived aggregate status.
type EventProposalService struct {
	store     eventProposalStore
	gate      proposalGate
	cache     countsCache
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEventProposalService constructs the service. cache may be nil.
func NewEventProposalService(store eventProposalStore, gate proposalGate, cache countsCache, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *EventProposalService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventProposalService{store: store, gate: gate, cache: cache, cacheTTL: cacheTTL, validator: validate, logger: logger}
}

// Create opens an event proposal for the acting owner in the current term.
func (s *EventProposalService) Create(ctx context.Context, actor models.Actor, req dto.CreateEventProposalRequest) (*models.EventProposal, error) {
	if err := requireRole(actor, models.RoleOwner); err != nil {
		return nil, err
	}
	var v appErrors.Violations
	collectStructViolations(&v, s.validator.Struct(req))
	if err := v.Err("invalid event proposal payload"); err != nil {
		return nil, err
	}

	gate, err := s.gate.CanSubmit(ctx, actor.ID, models.SubmissionKindEventDocument)
	if err != nil {
		return nil, err
	}
	if !gate.Allowed {
		return nil, closed(gate.Reason, "submissions are closed")
	}

	termID := gate.TermID
	proposal := &models.EventProposal{
		OwnerID:        actor.ID,
		OwnerType:      req.OwnerType,
		AcademicTermID: &termID,
		Title:          req.Title,
		Venue:          req.Venue,
		StartsAt:       req.StartsAt,
	}
	if err := s.store.Create(ctx, proposal); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create event proposal")
	}
	s.logger.Info("event proposal created", zap.String("event_proposal_id", proposal.ID), zap.String("owner_id", proposal.OwnerID))
	return proposal, nil
}

// List returns an owner's event proposals, optionally within one term.
func (s *EventProposalService) List(ctx context.Context, ownerID, termID string) ([]models.EventProposal, error) {
	if ownerID == "" {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, "invalid event proposal query", "ownerId is required")
	}
	proposals, err := s.store.ListByOwner(ctx, ownerID, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list event proposals")
	}
	return proposals, nil
}

// Summary returns the proposal with counts of its documents by stage and the derived status.
func (s *EventProposalService) Summary(ctx context.Context, id string) (*models.EventProposalSummary, error) {
	proposal, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "event proposal not found", "failed to load event proposal")
	}

	var counts models.EventDocumentCounts
	load := func(ctx context.Context) error {
		var err error
		counts, err = s.store.Counts(ctx, id)
		return err
	}
	termID := "none"
	if proposal.AcademicTermID != nil {
		termID = *proposal.AcademicTermID
	}
	if s.cache != nil {
		err = s.cache.Remember(ctx, eventSummaryPattern(termID, id), s.cacheTTL, &counts, load)
	} else {
		err = load(ctx)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count event documents")
	}

	return &models.EventProposalSummary{EventProposal: *proposal, Counts: counts, Status: counts.Status()}, nil
}
