package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/org-recognition-api/internal/models"
	appErrors "github.com/noah-isme/org-recognition-api/pkg/errors"
)

type archivalFixture struct {
	svc     *ArchivalService
	terms   *memoryTerms
	store   *memoryStore
	purger  *memoryPurger
	clock   *fakeClock
	cache   *recordingInvalidator
	remover *recordingRemover
	metrics *MetricsService
}

func newArchivalFixture(terms ...models.AcademicTerm) *archivalFixture {
	f := &archivalFixture{
		terms:   newMemoryTerms(terms...),
		store:   newMemoryStore(),
		clock:   newFakeClock(at("2027-06-15T09:00:00Z")),
		cache:   &recordingInvalidator{},
		remover: &recordingRemover{},
		metrics: NewMetricsService(),
	}
	f.purger = &memoryPurger{store: f.store, terms: f.terms, err: map[string]error{}}
	f.svc = NewArchivalService(f.terms, f.purger, ArchivalConfig{}, nil,
		WithArchivalClock(f.clock.Now),
		WithArchivalCache(f.cache),
		WithArchivalArtifacts(f.remover),
		WithArchivalMetrics(f.metrics),
	)
	return f
}

func (f *archivalFixture) seed(id, termID string, proposalID *string) {
	tid := termID
	reason := "late"
	stamp := at("2026-10-01T00:00:00Z")
	f.store.subs[id] = models.Submission{
		ID: id, OwnerID: "org-1", Kind: models.SubmissionKindDocument, DocumentType: models.DocumentConstitution,
		AcademicTermID: &tid, EventProposalID: proposalID, ArtifactRef: "file://" + id + ".pdf",
		Status: models.SubmissionStatusRejected, AdviserRejectedAt: &stamp, RejectReason: &reason, Version: 1,
	}
}

func TestArchivalServiceSweepArchivesAndPurges(t *testing.T) {
	f := newArchivalFixture(termA())
	f.terms.semesters["term-a"] = []models.Semester{
		{ID: "sem-1", TermID: "term-a", Label: models.SemesterFirst, StartDate: date("2026-08-01"), EndDate: date("2026-12-31"), Status: models.CalendarStatusArchived},
		{ID: "sem-2", TermID: "term-a", Label: models.SemesterSecond, StartDate: date("2027-01-01"), EndDate: date("2027-05-31"), Status: models.CalendarStatusActive},
	}
	termID := "term-a"
	proposal := "proposal-1"
	f.store.proposals[proposal] = models.EventProposal{ID: proposal, OwnerID: "org-1", AcademicTermID: &termID}
	f.seed("sub-1", "term-a", nil)
	f.seed("sub-2", "term-a", &proposal)
	f.seed("sub-3", "term-other", nil)

	report, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Terms, 1)
	assert.Zero(t, report.Failed)

	result := report.Terms[0]
	assert.Equal(t, models.CalendarStatusActive, result.From)
	assert.Equal(t, models.CalendarStatusArchived, result.To)
	assert.True(t, result.Cascaded)
	require.NotNil(t, result.Purge)
	assert.Equal(t, 2, result.Purge.SubmissionsDeleted)
	assert.Equal(t, 1, result.Purge.EventProposalsDeleted)

	assert.Equal(t, models.CalendarStatusArchived, f.terms.terms["term-a"].Status)
	assert.NotNil(t, f.terms.terms["term-a"].CleanedAt)
	for _, sem := range f.terms.semesters["term-a"] {
		assert.Equal(t, models.CalendarStatusArchived, sem.Status)
	}
	assert.Len(t, f.store.subs, 1)
	assert.Contains(t, f.store.subs, "sub-3")
	assert.Empty(t, f.store.proposals)

	assert.ElementsMatch(t, []string{"file://sub-1.pdf", "file://sub-2.pdf"}, f.remover.refs)
	assert.Contains(t, f.cache.patterns, eventSummaryPattern("term-a", "*"))
	assert.Contains(t, f.cache.patterns, eventSummaryPattern("*", proposal))
	assert.Equal(t, float64(2), counterValue(t, f.metrics, "archival_purged_rows_total", map[string]string{"table": "submissions"}))

	again, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.False(t, again.Terms[0].Cascaded)
	assert.Equal(t, 1, f.purger.calls)
}

func TestArchivalServiceOnTermArchivedIsIdempotent(t *testing.T) {
	archived := termA()
	archived.Status = models.CalendarStatusArchived
	f := newArchivalFixture(archived)
	f.seed("sub-1", "term-a", nil)

	first, err := f.svc.OnTermArchived(context.Background(), "term-a")
	require.NoError(t, err)
	assert.Equal(t, 1, first.SubmissionsDeleted)

	second, err := f.svc.OnTermArchived(context.Background(), "term-a")
	require.NoError(t, err)
	assert.Zero(t, second.SubmissionsDeleted)
	assert.Equal(t, 1, f.purger.calls)
}

func TestArchivalServiceOnTermArchivedConcurrentCallsPurgeOnce(t *testing.T) {
	archived := termA()
	archived.Status = models.CalendarStatusArchived
	f := newArchivalFixture(archived)
	f.seed("sub-1", "term-a", nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.OnTermArchived(context.Background(), "term-a")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, f.purger.calls)
	assert.Empty(t, f.store.subs)
}

func TestArchivalServiceOnTermArchivedOutlivesCancelledCaller(t *testing.T) {
	archived := termA()
	archived.Status = models.CalendarStatusArchived
	f := newArchivalFixture(archived)
	f.seed("sub-1", "term-a", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := f.svc.OnTermArchived(ctx, "term-a")
	require.NoError(t, err)
	assert.Equal(t, 1, result.SubmissionsDeleted)
	assert.Empty(t, f.store.subs)
	assert.NotNil(t, f.terms.terms["term-a"].CleanedAt)
}

func TestArchivalServiceRefusesActiveTerm(t *testing.T) {
	f := newArchivalFixture(termA())
	f.clock.Set(at("2026-10-16T09:00:00Z"))

	_, err := f.svc.OnTermArchived(context.Background(), "term-a")
	requireCode(t, err, appErrors.ErrIllegalTransition)
	assert.Zero(t, f.purger.calls)

	_, err = f.svc.OnTermArchived(context.Background(), "missing")
	requireCode(t, err, appErrors.ErrNotFound)
}

func TestArchivalServiceSweepIsolatesFailures(t *testing.T) {
	other := termA()
	other.ID = "term-b"
	other.StartDate = date("2025-08-01")
	other.EndDate = date("2026-05-31")
	f := newArchivalFixture(termA(), other)
	f.seed("sub-a", "term-a", nil)
	f.seed("sub-b", "term-b", nil)
	f.purger.err["term-b"] = errors.New("lock timeout")

	report, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)

	byID := map[string]models.SweepTermResult{}
	for _, r := range report.Terms {
		byID[r.TermID] = r
	}
	assert.True(t, byID["term-a"].Cascaded)
	assert.False(t, byID["term-b"].Cascaded)
	assert.NotEmpty(t, byID["term-b"].Error)
	assert.Contains(t, f.store.subs, "sub-b")
	assert.NotContains(t, f.store.subs, "sub-a")
	assert.Nil(t, f.terms.terms["term-b"].CleanedAt)

	_, err = f.svc.OnTermArchived(context.Background(), "term-b")
	requireCode(t, err, appErrors.ErrCascadeFailure)

	delete(f.purger.err, "term-b")
	retry, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, retry.Failed)
	assert.Empty(t, f.store.subs)
}

func TestArchivalServiceSweepContinuesAfterStatusFailure(t *testing.T) {
	other := termA()
	other.ID = "term-b"
	other.StartDate = date("2025-08-01")
	other.EndDate = date("2026-05-31")
	f := newArchivalFixture(termA(), other)
	f.terms.statusErr["term-a"] = errors.New("connection reset")

	report, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, models.CalendarStatusArchived, f.terms.terms["term-b"].Status)
	assert.Equal(t, models.CalendarStatusActive, f.terms.terms["term-a"].Status)
}

func TestArchivalServiceManualTermStaysActive(t *testing.T) {
	manual := termA()
	manual.RecognitionValidity = models.RecognitionValidityManual
	f := newArchivalFixture(manual)
	f.seed("sub-1", "term-a", nil)

	report, err := f.svc.OnPresidentLogin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.CalendarStatusActive, report.Terms[0].To)
	assert.False(t, report.Terms[0].Cascaded)
	assert.Len(t, f.store.subs, 1)
}

func TestArchivalServiceSweepActivatesUpcomingTerm(t *testing.T) {
	upcoming := termA()
	upcoming.Status = models.CalendarStatusInactive
	f := newArchivalFixture(upcoming)
	f.clock.Set(at("2026-08-01T00:30:00Z"))

	report, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.CalendarStatusActive, report.Terms[0].To)
	assert.Equal(t, models.CalendarStatusActive, f.terms.terms["term-a"].Status)
}

func TestArchivalServiceStartRejectsBadSchedule(t *testing.T) {
	svc := NewArchivalService(newMemoryTerms(), &memoryPurger{}, ArchivalConfig{Schedule: "not a schedule"}, nil)
	require.Error(t, svc.Start(context.Background()))

	disabled := NewArchivalService(newMemoryTerms(), &memoryPurger{}, ArchivalConfig{}, nil)
	require.NoError(t, disabled.Start(context.Background()))
	disabled.Stop()

	scheduled := NewArchivalService(newMemoryTerms(), &memoryPurger{}, ArchivalConfig{Schedule: "@every 1h"}, nil)
	require.NoError(t, scheduled.Start(context.Background()))
	scheduled.Stop()
}
