package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/org-recognition-api/internal/models"
	"github.com/noah-isme/org-recognition-api/internal/repository"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func at(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(now time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// memoryTerms satisfies every term port used by the services.
type memoryTerms struct {
	mu        sync.Mutex
	terms     map[string]models.AcademicTerm
	semesters map[string][]models.Semester
	seq       int
	listErr   error
	statusErr map[string]error
}

func newMemoryTerms(terms ...models.AcademicTerm) *memoryTerms {
	m := &memoryTerms{terms: map[string]models.AcademicTerm{}, semesters: map[string][]models.Semester{}, statusErr: map[string]error{}}
	for _, t := range terms {
		m.terms[t.ID] = t
	}
	return m
}

func (m *memoryTerms) List(ctx context.Context) ([]models.AcademicTerm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]models.AcademicTerm, 0, len(m.terms))
	for _, t := range m.terms {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.After(out[j].StartDate) })
	return out, nil
}

func (m *memoryTerms) FindByID(ctx context.Context, id string) (*models.AcademicTerm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.terms[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &t, nil
}

func (m *memoryTerms) FindCurrent(ctx context.Context, day time.Time) (*models.AcademicTerm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.terms {
		if t.Status != models.CalendarStatusArchived && t.Range().Contains(day) {
			found := t
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memoryTerms) FindOverlapping(ctx context.Context, rng models.DateRange, excludeID string) ([]models.AcademicTerm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AcademicTerm
	for _, t := range m.terms {
		if t.ID != excludeID && t.Range().Overlaps(rng) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memoryTerms) ListSemesters(ctx context.Context, termID string) ([]models.Semester, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Semester(nil), m.semesters[termID]...), nil
}

func (m *memoryTerms) Create(ctx context.Context, term *models.AcademicTerm, semesters []models.Semester) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	term.ID = fmt.Sprintf("term-%d", m.seq)
	for i := range semesters {
		semesters[i].ID = fmt.Sprintf("%s-sem-%d", term.ID, i+1)
		semesters[i].TermID = term.ID
	}
	term.Semesters = semesters
	m.terms[term.ID] = *term
	m.semesters[term.ID] = semesters
	return nil
}

func (m *memoryTerms) Update(ctx context.Context, term *models.AcademicTerm, semesters []models.Semester) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.terms[term.ID]; !ok {
		return sql.ErrNoRows
	}
	if semesters != nil {
		for i := range semesters {
			semesters[i].TermID = term.ID
		}
		m.semesters[term.ID] = semesters
		term.Semesters = semesters
	}
	m.terms[term.ID] = *term
	return nil
}

func (m *memoryTerms) UpdateStatus(ctx context.Context, id string, status models.CalendarStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.statusErr[id]; err != nil {
		return err
	}
	t := m.terms[id]
	t.Status = status
	m.terms[id] = t
	return nil
}

func (m *memoryTerms) UpdateSemesterStatus(ctx context.Context, id string, status models.CalendarStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for termID, sems := range m.semesters {
		for i := range sems {
			if sems[i].ID == id {
				sems[i].Status = status
				m.semesters[termID] = sems
			}
		}
	}
	return nil
}

func (m *memoryTerms) markCleaned(id string, when time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.terms[id]
	t.CleanedAt = &when
	m.terms[id] = t
}

// memoryStore is an in-memory submission store whose transactions roll back on error.
type memoryStore struct {
	mu        sync.Mutex
	subs      map[string]models.Submission
	proposals map[string]models.EventProposal
	seq       int
	updateErr error
	insertErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{subs: map[string]models.Submission{}, proposals: map[string]models.EventProposal{}}
}

func (m *memoryStore) RunInTx(ctx context.Context, fn func(tx repository.SubmissionTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := make(map[string]models.Submission, len(m.subs))
	for k, v := range m.subs {
		snapshot[k] = v
	}
	if err := fn(&memoryTx{store: m}); err != nil {
		m.subs = snapshot
		return err
	}
	return nil
}

func (m *memoryStore) GetByID(ctx context.Context, id string) (*models.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &sub, nil
}

func (m *memoryStore) List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Submission
	for _, sub := range m.subs {
		if filter.OwnerID != "" && sub.OwnerID != filter.OwnerID {
			continue
		}
		if filter.TermID != "" && sub.TermID() != filter.TermID {
			continue
		}
		out = append(out, sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryStore) CountOverdueRejections(ctx context.Context, ownerID string, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, sub := range m.subs {
		if sub.OwnerID == ownerID && sub.Status == models.SubmissionStatusRejected &&
			sub.ResubmissionDeadline != nil && sub.ResubmissionDeadline.Before(now) {
			count++
		}
	}
	return count, nil
}

func (m *memoryStore) counts(proposalID string) models.EventDocumentCounts {
	var c models.EventDocumentCounts
	for _, sub := range m.subs {
		if sub.EventProposalID == nil || *sub.EventProposalID != proposalID {
			continue
		}
		c.Total++
		switch {
		case sub.Status == models.SubmissionStatusPending:
			c.Pending++
		case sub.Status == models.SubmissionStatusApproved && sub.OfficeApprovedAt == nil:
			c.Sent++
		case sub.Status == models.SubmissionStatusApproved:
			c.Approved++
		case sub.Status == models.SubmissionStatusRejected:
			c.Rejected++
		}
	}
	return c
}

// PurgeTerm implements termPurger against the in-memory data.
func (m *memoryStore) purge(termID string) models.PurgeResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := models.PurgeResult{TermID: termID}
	seen := map[string]bool{}
	for id, sub := range m.subs {
		if sub.TermID() != termID {
			continue
		}
		if sub.EventProposalID != nil && !seen[*sub.EventProposalID] {
			seen[*sub.EventProposalID] = true
			result.EventProposalIDs = append(result.EventProposalIDs, *sub.EventProposalID)
		}
		result.ArtifactRefs = append(result.ArtifactRefs, sub.ArtifactRef)
		delete(m.subs, id)
		result.SubmissionsDeleted++
	}
	for id, p := range m.proposals {
		if (p.AcademicTermID != nil && *p.AcademicTermID == termID) || seen[id] {
			if m.counts(id).Total == 0 {
				delete(m.proposals, id)
				result.EventProposalsDeleted++
			}
		}
	}
	return result
}

type memoryTx struct {
	store *memoryStore
}

func (t *memoryTx) LockByID(ctx context.Context, id string) (*models.Submission, error) {
	sub, ok := t.store.subs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &sub, nil
}

func (t *memoryTx) LockEventProposal(ctx context.Context, id string) (*models.EventProposal, error) {
	p, ok := t.store.proposals[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &p, nil
}

func (t *memoryTx) ExistsActive(ctx context.Context, params repository.ActiveSubmissionParams) (bool, error) {
	for _, sub := range t.store.subs {
		if sub.OwnerID != params.OwnerID || sub.DocumentType != params.DocumentType {
			continue
		}
		proposal := ""
		if sub.EventProposalID != nil {
			proposal = *sub.EventProposalID
		}
		if proposal != params.EventProposalID {
			continue
		}
		if params.TermID != "" && sub.TermID() != params.TermID {
			continue
		}
		stage, err := sub.Stage()
		if err != nil {
			return false, err
		}
		if stage == models.StagePending || stage == models.StageAdviserApproved {
			return true, nil
		}
	}
	return false, nil
}

func (t *memoryTx) Insert(ctx context.Context, sub *models.Submission) error {
	if t.store.insertErr != nil {
		return t.store.insertErr
	}
	t.store.seq++
	if sub.ID == "" {
		sub.ID = fmt.Sprintf("sub-%d", t.store.seq)
	}
	sub.Version = 1
	t.store.subs[sub.ID] = *sub
	return nil
}

func (t *memoryTx) Update(ctx context.Context, sub *models.Submission) error {
	if t.store.updateErr != nil {
		return t.store.updateErr
	}
	current, ok := t.store.subs[sub.ID]
	if !ok {
		return sql.ErrNoRows
	}
	if current.Version != sub.Version {
		return repository.ErrContention
	}
	sub.Version++
	t.store.subs[sub.ID] = *sub
	return nil
}

func (t *memoryTx) Delete(ctx context.Context, id string) error {
	if _, ok := t.store.subs[id]; !ok {
		return sql.ErrNoRows
	}
	delete(t.store.subs, id)
	return nil
}

func (t *memoryTx) CountEventDocuments(ctx context.Context, proposalID string) (models.EventDocumentCounts, error) {
	return t.store.counts(proposalID), nil
}

// memoryPurger links the in-memory store and terms the way the archival repository does.
type memoryPurger struct {
	store *memoryStore
	terms *memoryTerms
	calls int
	err   map[string]error
}

func (p *memoryPurger) PurgeTerm(ctx context.Context, termID string, when time.Time) (models.PurgeResult, error) {
	p.calls++
	if err := ctx.Err(); err != nil {
		return models.PurgeResult{}, err
	}
	if err := p.err[termID]; err != nil {
		return models.PurgeResult{}, err
	}
	result := p.store.purge(termID)
	p.terms.markCleaned(termID, when)
	return result, nil
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []models.NotificationEvent
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, events ...models.NotificationEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, events...)
}

func (d *recordingDispatcher) types() []models.NotificationType {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]models.NotificationType, len(d.events))
	for i, e := range d.events {
		out[i] = e.Type
	}
	return out
}

func (d *recordingDispatcher) count(eventType models.NotificationType) int {
	n := 0
	for _, t := range d.types() {
		if t == eventType {
			n++
		}
	}
	return n
}

type recordingInvalidator struct {
	patterns []string
}

func (r *recordingInvalidator) Invalidate(ctx context.Context, pattern string) error {
	r.patterns = append(r.patterns, pattern)
	return nil
}

type recordingRemover struct {
	refs []string
	err  error
}

func (r *recordingRemover) Delete(ref string) error {
	r.refs = append(r.refs, ref)
	return r.err
}
