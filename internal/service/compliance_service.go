package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/org-recognition-api/internal/models"
	appErrors "github.com/noah-isme/org-recognition-api/pkg/errors"
)

type complianceTermRepository interface {
	FindByID(ctx context.Context, id string) (*models.AcademicTerm, error)
	FindCurrent(ctx context.Context, day time.Time) (*models.AcademicTerm, error)
}

type overdueRejectionCounter interface {
	CountOverdueRejections(ctx context.Context, ownerID string, now time.Time) (int, error)
}

// CompliancePolicy makes the owner block rules explicit.
type CompliancePolicy struct {
	BlockOnMissedDeadline bool
	Location              *time.Location
}

// ComplianceService is the submission gate. It only reads.
type ComplianceService struct {
	terms   complianceTermRepository
	overdue overdueRejectionCounter
	policy  CompliancePolicy
	logger  *zap.Logger
	now     Clock
}

// NewComplianceService constructs the gate.
func NewComplianceService(terms complianceTermRepository, overdue overdueRejectionCounter, policy CompliancePolicy, logger *zap.Logger, clock Clock) *ComplianceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = systemClock
	}
	if policy.Location == nil {
		policy.Location = time.UTC
	}
	return &ComplianceService{terms: terms, overdue: overdue, policy: policy, logger: logger, now: clock}
}

// CanSubmit reports whether the owner may open a new submission of the given kind today.
func (s *ComplianceService) CanSubmit(ctx context.Context, ownerID string, kind models.SubmissionKind) (*models.GateDecision, error) {
	if ownerID == "" || !kind.Valid() {
		var v appErrors.Violations
		v.Check(ownerID != "", "ownerId is required")
		v.Check(kind.Valid(), "kind %q is not a submission kind", kind)
		return nil, v.Err("invalid compliance query")
	}

	now := s.now()
	day := today(now, s.policy.Location)
	decision := &models.GateDecision{Kind: kind, OwnerID: ownerID}

	term, err := s.terms.FindCurrent(ctx, day)
	if err != nil {
		if isNoRows(err) {
			decision.Reason = models.GateReasonNoActiveTerm
			return decision, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current term")
	}
	decision.TermID = term.ID

	if term.EffectiveStatus(day) != models.CalendarStatusActive {
		decision.Reason = models.GateReasonNoActiveTerm
		return decision, nil
	}
	if !term.DocumentWindow().Contains(day) {
		decision.Reason = models.GateReasonOutsideWindow
		return decision, nil
	}
	if s.policy.BlockOnMissedDeadline && s.overdue != nil {
		count, err := s.overdue.CountOverdueRejections(ctx, ownerID, now)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check owner blocks")
		}
		if count > 0 {
			decision.Reason = models.GateReasonMissedResubmission
			return decision, nil
		}
	}

	decision.Allowed = true
	decision.Reason = models.GateReasonOpen
	return decision, nil
}

// EnsureTermOpen fails with SubmissionWindowClosed unless the term is active today.
// Submissions without a term are not bound by the calendar.
func (s *ComplianceService) EnsureTermOpen(ctx context.Context, termID string) error {
	_, err := s.openTerm(ctx, termID)
	return err
}

// EnsureResubmissionOpen checks that a rejected submission may be resubmitted now: its term is
// active, and either its resubmission deadline has not passed or, without a deadline, the
// document window is open. Late resubmissions are refused.
func (s *ComplianceService) EnsureResubmissionOpen(ctx context.Context, submission *models.Submission) error {
	term, err := s.openTerm(ctx, submission.TermID())
	if err != nil {
		return err
	}
	now := s.now()
	if submission.ResubmissionDeadline != nil {
		if now.After(*submission.ResubmissionDeadline) {
			return closed(models.GateReasonResubmissionExpired, "resubmission deadline has passed")
		}
		return nil
	}
	if term != nil && !term.DocumentWindow().Contains(today(now, s.policy.Location)) {
		return closed(models.GateReasonOutsideWindow, "document window is closed")
	}
	return nil
}

func (s *ComplianceService) openTerm(ctx context.Context, termID string) (*models.AcademicTerm, error) {
	if termID == "" {
		return nil, nil
	}
	term, err := s.terms.FindByID(ctx, termID)
	if err != nil {
		if isNoRows(err) {
			return nil, closed(models.GateReasonNoActiveTerm, "academic term no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	switch term.EffectiveStatus(today(s.now(), s.policy.Location)) {
	case models.CalendarStatusActive:
		return term, nil
	case models.CalendarStatusArchived:
		return nil, closed(models.GateReasonTermArchived, "academic term is archived")
	default:
		return nil, closed(models.GateReasonTermNotActive, "academic term is not active")
	}
}

func closed(reason models.GateReason, message string) error {
	return appErrors.WithDetails(appErrors.ErrSubmissionWindowClosed, message, string(reason))
}
