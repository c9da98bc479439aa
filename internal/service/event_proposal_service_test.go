package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/org-recognition-api/internal/dto"
	"github.com/noah-isme/org-recognition-api/internal/models"
	appErrors "github.com/noah-isme/org-recognition-api/pkg/errors"
)

type proposalStoreStub struct {
	proposals map[string]models.EventProposal
	counts    map[string]models.EventDocumentCounts
	countCall int
}

func (s *proposalStoreStub) Create(ctx context.Context, proposal *models.EventProposal) error {
	proposal.ID = fmt.Sprintf("proposal-%d", len(s.proposals)+1)
	s.proposals[proposal.ID] = *proposal
	return nil
}

func (s *proposalStoreStub) GetByID(ctx context.Context, id string) (*models.EventProposal, error) {
	p, ok := s.proposals[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &p, nil
}

func (s *proposalStoreStub) ListByOwner(ctx context.Context, ownerID, termID string) ([]models.EventProposal, error) {
	var out []models.EventProposal
	for _, p := range s.proposals {
		if p.OwnerID == ownerID && (termID == "" || (p.AcademicTermID != nil && *p.AcademicTermID == termID)) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *proposalStoreStub) Counts(ctx context.Context, id string) (models.EventDocumentCounts, error) {
	s.countCall++
	return s.counts[id], nil
}

type gateStub struct {
	decision models.GateDecision
}

func (g gateStub) CanSubmit(ctx context.Context, ownerID string, kind models.SubmissionKind) (*models.GateDecision, error) {
	d := g.decision
	d.OwnerID = ownerID
	d.Kind = kind
	return &d, nil
}

func TestEventProposalServiceCreate(t *testing.T) {
	store := &proposalStoreStub{proposals: map[string]models.EventProposal{}}
	svc := NewEventProposalService(store, gateStub{decision: models.GateDecision{Allowed: true, Reason: models.GateReasonOpen, TermID: "term-a"}}, nil, 0, nil, nil)

	proposal, err := svc.Create(context.Background(), ownerActor, dto.CreateEventProposalRequest{
		OwnerType: models.OwnerTypeOrganization, Title: "Foundation Week", Venue: "Main Hall",
	})
	require.NoError(t, err)
	assert.Equal(t, ownerActor.ID, proposal.OwnerID)
	require.NotNil(t, proposal.AcademicTermID)
	assert.Equal(t, "term-a", *proposal.AcademicTermID)

	listed, err := svc.List(context.Background(), ownerActor.ID, "term-a")
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	_, err = svc.List(context.Background(), "", "")
	requireCode(t, err, appErrors.ErrValidation)
}

func TestEventProposalServiceCreateRefused(t *testing.T) {
	store := &proposalStoreStub{proposals: map[string]models.EventProposal{}}
	closedGate := gateStub{decision: models.GateDecision{Reason: models.GateReasonOutsideWindow, TermID: "term-a"}}
	svc := NewEventProposalService(store, closedGate, nil, 0, nil, nil)
	req := dto.CreateEventProposalRequest{OwnerType: models.OwnerTypeCouncil, Title: "Assembly", Venue: "Gym"}

	_, err := svc.Create(context.Background(), ownerActor, req)
	appErr := requireCode(t, err, appErrors.ErrSubmissionWindowClosed)
	assert.Contains(t, appErr.Details, string(models.GateReasonOutsideWindow))

	_, err = svc.Create(context.Background(), adviserActor, req)
	requireCode(t, err, appErrors.ErrForbidden)

	_, err = svc.Create(context.Background(), ownerActor, dto.CreateEventProposalRequest{OwnerType: "club"})
	appErr = requireCode(t, err, appErrors.ErrValidation)
	assert.Len(t, appErr.Details, 3)
	assert.Empty(t, store.proposals)
}

func TestEventProposalServiceSummaryUsesCache(t *testing.T) {
	termID := "term-a"
	store := &proposalStoreStub{
		proposals: map[string]models.EventProposal{"p1": {ID: "p1", OwnerID: "org-1", AcademicTermID: &termID}},
		counts:    map[string]models.EventDocumentCounts{"p1": {Total: 2, Sent: 1, Approved: 1}},
	}
	repo := newMapCacheRepo()
	cache := NewCacheService(repo, nil, time.Minute, nil, true)
	svc := NewEventProposalService(store, gateStub{}, cache, time.Minute, nil, nil)

	summary, err := svc.Summary(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, models.AggregateStatusSentToOffice, summary.Status)
	assert.Equal(t, 2, summary.Counts.Total)

	_, err = svc.Summary(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, store.countCall)
	assert.Contains(t, repo.entries, eventSummaryPattern("term-a", "p1"))

	store.counts["p1"] = models.EventDocumentCounts{Total: 2, Approved: 2}
	require.NoError(t, cache.Invalidate(context.Background(), eventSummaryPattern("*", "p1")))
	summary, err = svc.Summary(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, models.AggregateStatusApproved, summary.Status)

	_, err = svc.Summary(context.Background(), "missing")
	requireCode(t, err, appErrors.ErrNotFound)
}
