package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/org-recognition-api/internal/models"
	appErrors "github.com/noah-isme/org-recognition-api/pkg/errors"
)

type overdueStub struct {
	count int
	err   error
}

func (o overdueStub) CountOverdueRejections(ctx context.Context, ownerID string, now time.Time) (int, error) {
	return o.count, o.err
}

func TestComplianceServiceCanSubmit(t *testing.T) {
	manual := termA()
	manual.RecognitionValidity = models.RecognitionValidityManual

	tests := []struct {
		name    string
		terms   []models.AcademicTerm
		now     string
		overdue overdueStub
		policy  CompliancePolicy
		allowed bool
		reason  models.GateReason
	}{
		{name: "open inside window", terms: []models.AcademicTerm{termA()}, now: "2026-10-16T09:00:00Z", allowed: true, reason: models.GateReasonOpen},
		{name: "window boundary is inclusive", terms: []models.AcademicTerm{termA()}, now: "2026-12-31T23:00:00Z", allowed: true, reason: models.GateReasonOpen},
		{name: "after window", terms: []models.AcademicTerm{termA()}, now: "2027-01-01T00:00:00Z", reason: models.GateReasonOutsideWindow},
		{name: "no term", now: "2026-10-16T09:00:00Z", reason: models.GateReasonNoActiveTerm},
		{name: "before any term", terms: []models.AcademicTerm{termA()}, now: "2026-07-01T09:00:00Z", reason: models.GateReasonNoActiveTerm},
		{
			name: "missed deadline blocks", terms: []models.AcademicTerm{termA()}, now: "2026-10-16T09:00:00Z",
			overdue: overdueStub{count: 1}, policy: CompliancePolicy{BlockOnMissedDeadline: true},
			reason: models.GateReasonMissedResubmission,
		},
		{
			name: "missed deadline ignored when policy off", terms: []models.AcademicTerm{termA()}, now: "2026-10-16T09:00:00Z",
			overdue: overdueStub{count: 1}, allowed: true, reason: models.GateReasonOpen,
		},
		{name: "manual term after window", terms: []models.AcademicTerm{manual}, now: "2027-03-01T09:00:00Z", reason: models.GateReasonOutsideWindow},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clock := newFakeClock(at(tc.now))
			svc := NewComplianceService(newMemoryTerms(tc.terms...), tc.overdue, tc.policy, nil, clock.Now)

			decision, err := svc.CanSubmit(context.Background(), "org-1", models.SubmissionKindDocument)
			require.NoError(t, err)
			assert.Equal(t, tc.allowed, decision.Allowed)
			assert.Equal(t, tc.reason, decision.Reason)
			assert.Equal(t, "org-1", decision.OwnerID)
		})
	}
}

func TestComplianceServiceCanSubmitValidation(t *testing.T) {
	svc := NewComplianceService(newMemoryTerms(), nil, CompliancePolicy{}, nil, nil)

	_, err := svc.CanSubmit(context.Background(), "", "poster")
	appErr := requireCode(t, err, appErrors.ErrValidation)
	assert.Len(t, appErr.Details, 2)
}

func TestComplianceServiceCanSubmitStoreFailure(t *testing.T) {
	clock := newFakeClock(at("2026-10-16T09:00:00Z"))
	svc := NewComplianceService(newMemoryTerms(termA()), overdueStub{err: errors.New("db down")}, CompliancePolicy{BlockOnMissedDeadline: true}, nil, clock.Now)

	_, err := svc.CanSubmit(context.Background(), "org-1", models.SubmissionKindDocument)
	requireCode(t, err, appErrors.ErrInternal)
}

func TestComplianceServiceEnsureTermOpen(t *testing.T) {
	future := termA()
	future.ID = "term-future"
	future.StartDate = date("2027-06-01")
	future.EndDate = date("2028-04-30")
	archived := termA()
	archived.ID = "term-archived"
	archived.Status = models.CalendarStatusArchived

	clock := newFakeClock(at("2026-10-16T09:00:00Z"))
	svc := NewComplianceService(newMemoryTerms(termA(), future, archived), nil, CompliancePolicy{}, nil, clock.Now)
	ctx := context.Background()

	require.NoError(t, svc.EnsureTermOpen(ctx, "term-a"))
	require.NoError(t, svc.EnsureTermOpen(ctx, ""))

	appErr := requireCode(t, svc.EnsureTermOpen(ctx, "term-future"), appErrors.ErrSubmissionWindowClosed)
	assert.Contains(t, appErr.Details, string(models.GateReasonTermNotActive))
	appErr = requireCode(t, svc.EnsureTermOpen(ctx, "term-archived"), appErrors.ErrSubmissionWindowClosed)
	assert.Contains(t, appErr.Details, string(models.GateReasonTermArchived))
	appErr = requireCode(t, svc.EnsureTermOpen(ctx, "gone"), appErrors.ErrSubmissionWindowClosed)
	assert.Contains(t, appErr.Details, string(models.GateReasonNoActiveTerm))
}

func TestComplianceServiceEnsureResubmissionOpen(t *testing.T) {
	termID := "term-a"
	clock := newFakeClock(at("2027-02-01T09:00:00Z"))
	svc := NewComplianceService(newMemoryTerms(termA()), nil, CompliancePolicy{}, nil, clock.Now)
	ctx := context.Background()

	withoutDeadline := &models.Submission{ID: "s1", AcademicTermID: &termID}
	appErr := requireCode(t, svc.EnsureResubmissionOpen(ctx, withoutDeadline), appErrors.ErrSubmissionWindowClosed)
	assert.Contains(t, appErr.Details, string(models.GateReasonOutsideWindow))

	deadline := at("2027-02-05T00:00:00Z")
	withDeadline := &models.Submission{ID: "s2", AcademicTermID: &termID, ResubmissionDeadline: &deadline}
	require.NoError(t, svc.EnsureResubmissionOpen(ctx, withDeadline))

	clock.Set(deadline.Add(time.Minute))
	appErr = requireCode(t, svc.EnsureResubmissionOpen(ctx, withDeadline), appErrors.ErrSubmissionWindowClosed)
	assert.Contains(t, appErr.Details, string(models.GateReasonResubmissionExpired))
}
