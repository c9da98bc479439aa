package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/org-recognition-api/internal/dto"
	"github.com/noah-isme/org-recognition-api/internal/models"
	appErrors "github.com/noah-isme/org-recognition-api/pkg/errors"
)

type termRepository interface {
	List(ctx context.Context) ([]models.AcademicTerm, error)
	FindByID(ctx context.Context, id string) (*models.AcademicTerm, error)
	FindOverlapping(ctx context.Context, rng models.DateRange, excludeID string) ([]models.AcademicTerm, error)
	ListSemesters(ctx context.Context, termID string) ([]models.Semester, error)
	Create(ctx context.Context, term *models.AcademicTerm, semesters []models.Semester) error
	Update(ctx context.Context, term *models.AcademicTerm, semesters []models.Semester) error
}

type termArchiver interface {
	OnTermArchived(ctx context.Context, termID string) (*models.PurgeResult, error)
}

// TermPolicy bounds the length of an academic term.
type TermPolicy struct {
	MinDays  int
	MaxDays  int
	Location *time.Location
}

// TermService is the calendar registry: it stores terms and semesters and keeps their ranges consistent.
type TermService struct {
	repo      termRepository
	archiver  termArchiver
	validator *validator.Validate
	logger    *zap.Logger
	policy    TermPolicy
	now       Clock
}

// TermServiceOption configures the term service.
type TermServiceOption func(*TermService)

// WithTermArchiver wires the cascade invoked when a term is archived explicitly.
func WithTermArchiver(archiver termArchiver) TermServiceOption {
	return func(s *TermService) {
		s.archiver = archiver
	}
}

// WithTermClock overrides the clock.
func WithTermClock(clock Clock) TermServiceOption {
	return func(s *TermService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewTermService creates a new term service instance.
func NewTermService(repo termRepository, validate *validator.Validate, logger *zap.Logger, policy TermPolicy, opts ...TermServiceOption) *TermService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy.MinDays <= 0 {
		policy.MinDays = 180
	}
	if policy.MaxDays <= 0 {
		policy.MaxDays = 730
	}
	if policy.Location == nil {
		policy.Location = time.UTC
	}
	svc := &TermService{repo: repo, validator: validate, logger: logger, policy: policy, now: systemClock}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// List returns every term, most recent start first, with its semesters.
func (s *TermService) List(ctx context.Context) ([]models.AcademicTerm, error) {
	terms, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list terms")
	}
	sort.SliceStable(terms, func(i, j int) bool {
		return terms[i].StartDate.After(terms[j].StartDate)
	})
	for i := range terms {
		semesters, err := s.repo.ListSemesters(ctx, terms[i].ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list semesters")
		}
		terms[i].Semesters = semesters
	}
	return terms, nil
}

// Get returns a term with its semesters.
func (s *TermService) Get(ctx context.Context, id string) (*models.AcademicTerm, error) {
	term, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "term not found", "failed to load term")
	}
	semesters, err := s.repo.ListSemesters(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list semesters")
	}
	term.Semesters = semesters
	return term, nil
}

// ListSemesters returns the semesters of a term.
func (s *TermService) ListSemesters(ctx context.Context, termID string) ([]models.Semester, error) {
	if _, err := s.repo.FindByID(ctx, termID); err != nil {
		return nil, storeError(err, "term not found", "failed to load term")
	}
	semesters, err := s.repo.ListSemesters(ctx, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list semesters")
	}
	return semesters, nil
}

// Create validates and stores a new term. Every violated rule is reported at once.
func (s *TermService) Create(ctx context.Context, req dto.CreateTermRequest) (*models.AcademicTerm, error) {
	var v appErrors.Violations
	collectStructViolations(&v, s.validator.Struct(req))

	rng, window := parseRange(&v, "term", req.StartDate, req.EndDate), parseRange(&v, "document window", req.DocumentWindowStart, req.DocumentWindowEnd)
	semesters := parseSemesters(&v, req.Semesters)
	if !v.Empty() {
		return nil, v.Err("invalid term payload")
	}

	day := today(s.now(), s.policy.Location)
	v.Check(!rng.Start.Before(day), "startDate %s is in the past", rng.Start.Format(dto.DateLayout))
	v.Check(!rng.End.Before(day), "endDate %s is in the past", rng.End.Format(dto.DateLayout))
	if err := s.checkRanges(ctx, &v, rng, window, semesters, ""); err != nil {
		return nil, err
	}
	if err := v.Err("term rules violated"); err != nil {
		return nil, err
	}

	validity := req.RecognitionValidity
	if validity == "" {
		validity = models.RecognitionValidityAutomatic
	}
	term := &models.AcademicTerm{
		SchoolYear:          models.SchoolYearLabel(rng.Start, rng.End),
		StartDate:           rng.Start,
		EndDate:             rng.End,
		DocumentWindowStart: window.Start,
		DocumentWindowEnd:   window.End,
		RecognitionValidity: validity,
	}
	term.Status = term.EffectiveStatus(day)
	for i := range semesters {
		semesters[i].Status = models.DeriveStatus(semesters[i].Range(), day)
	}

	if err := s.repo.Create(ctx, term, semesters); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create term")
	}
	s.logger.Info("term created", zap.String("term_id", term.ID), zap.String("school_year", term.SchoolYear), zap.String("status", string(term.Status)))
	return term, nil
}

// Update replaces a term's ranges and optionally its semesters. Setting status to archived
// runs the archival cascade after the term is stored.
func (s *TermService) Update(ctx context.Context, id string, req dto.UpdateTermRequest) (*models.AcademicTerm, error) {
	var v appErrors.Violations
	collectStructViolations(&v, s.validator.Struct(req))

	rng, window := parseRange(&v, "term", req.StartDate, req.EndDate), parseRange(&v, "document window", req.DocumentWindowStart, req.DocumentWindowEnd)
	semesters := parseSemesters(&v, req.Semesters)
	if !v.Empty() {
		return nil, v.Err("invalid term payload")
	}

	term, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "term not found", "failed to load term")
	}
	if term.IsArchived() {
		return nil, appErrors.Clone(appErrors.ErrIllegalTransition, "archived terms cannot be modified")
	}

	archiving := req.Status != nil && *req.Status == models.CalendarStatusArchived
	day := today(s.now(), s.policy.Location)
	if !rng.Start.Equal(models.DateOf(term.StartDate)) {
		v.Check(!rng.Start.Before(day), "startDate %s is in the past", rng.Start.Format(dto.DateLayout))
	}
	if !archiving {
		v.Check(!rng.End.Before(day), "endDate %s is in the past", rng.End.Format(dto.DateLayout))
	}
	if err := s.checkRanges(ctx, &v, rng, window, semesters, id); err != nil {
		return nil, err
	}
	if err := v.Err("term rules violated"); err != nil {
		return nil, err
	}

	term.StartDate = rng.Start
	term.EndDate = rng.End
	term.DocumentWindowStart = window.Start
	term.DocumentWindowEnd = window.End
	term.SchoolYear = models.SchoolYearLabel(rng.Start, rng.End)
	if req.RecognitionValidity != "" {
		term.RecognitionValidity = req.RecognitionValidity
	}
	if archiving {
		term.Status = models.CalendarStatusArchived
	} else {
		term.Status = term.EffectiveStatus(day)
	}
	for i := range semesters {
		if archiving {
			semesters[i].Status = models.CalendarStatusArchived
		} else {
			semesters[i].Status = models.DeriveStatus(semesters[i].Range(), day)
		}
	}

	if err := s.repo.Update(ctx, term, semesters); err != nil {
		return nil, storeError(err, "term not found", "failed to update term")
	}
	if term.Semesters == nil {
		if term.Semesters, err = s.repo.ListSemesters(ctx, id); err != nil {
			s.logger.Warn("failed to reload semesters", zap.String("term_id", id), zap.Error(err))
		}
	}

	if term.IsArchived() {
		s.logger.Info("term archived explicitly", zap.String("term_id", id))
		if s.archiver == nil {
			return term, nil
		}
		if _, err := s.archiver.OnTermArchived(ctx, id); err != nil {
			return term, err
		}
	}
	return term, nil
}

// checkRanges records every range violation of a term and its semesters, including overlaps with stored terms.
func (s *TermService) checkRanges(ctx context.Context, v *appErrors.Violations, rng, window models.DateRange, semesters []models.Semester, excludeID string) error {
	if !rng.Start.Before(rng.End) {
		v.Add("startDate must be before endDate")
	} else {
		days := rng.Days()
		v.Check(days >= s.policy.MinDays, "term spans %d days, minimum is %d", days, s.policy.MinDays)
		v.Check(days <= s.policy.MaxDays, "term spans %d days, maximum is %d", days, s.policy.MaxDays)
	}
	v.Check(!window.Start.After(window.End), "documentWindowStart must not be after documentWindowEnd")
	v.Check(window.Within(rng), "document window must lie within the term")

	if len(semesters) > 0 {
		checkSemesters(v, rng, semesters)
	}

	overlapping, err := s.repo.FindOverlapping(ctx, rng, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check term overlap")
	}
	for _, other := range overlapping {
		if other.ID == excludeID || !rng.Overlaps(other.Range()) {
			continue
		}
		v.Add("term overlaps %s (%s to %s)", other.SchoolYear,
			other.StartDate.Format(dto.DateLayout), other.EndDate.Format(dto.DateLayout))
	}
	return nil
}

func checkSemesters(v *appErrors.Violations, term models.DateRange, semesters []models.Semester) {
	byLabel := make(map[models.SemesterLabel]models.Semester, len(semesters))
	for _, sem := range semesters {
		if _, dup := byLabel[sem.Label]; dup {
			v.Add("semester %s is defined twice", sem.Label)
			continue
		}
		byLabel[sem.Label] = sem
		rng := sem.Range()
		v.Check(rng.Start.Before(rng.End), "semester %s must span at least one day", sem.Label)
		v.Check(rng.Within(term), "semester %s must lie within the term", sem.Label)
	}
	first, okFirst := byLabel[models.SemesterFirst]
	second, okSecond := byLabel[models.SemesterSecond]
	if !okFirst || !okSecond {
		v.Add("both 1st and 2nd semesters are required")
		return
	}
	if first.Range().Overlaps(second.Range()) {
		v.Add("semesters must not overlap")
	} else {
		v.Check(first.EndDate.Before(second.StartDate), "1st semester must precede 2nd semester")
	}
}

func parseRange(v *appErrors.Violations, name, start, end string) models.DateRange {
	var rng models.DateRange
	var err error
	if start != "" {
		if rng.Start, err = time.Parse(dto.DateLayout, start); err != nil {
			v.Add("%s start %q is not a date", name, start)
		}
	}
	if end != "" {
		if rng.End, err = time.Parse(dto.DateLayout, end); err != nil {
			v.Add("%s end %q is not a date", name, end)
		}
	}
	return rng.Normalize()
}

func parseSemesters(v *appErrors.Violations, reqs []dto.SemesterRequest) []models.Semester {
	if reqs == nil {
		return nil
	}
	semesters := make([]models.Semester, 0, len(reqs))
	for _, req := range reqs {
		rng := parseRange(v, fmt.Sprintf("semester %s", req.Label), req.StartDate, req.EndDate)
		semesters = append(semesters, models.Semester{Label: req.Label, StartDate: rng.Start, EndDate: rng.End})
	}
	return semesters
}

// collectStructViolations flattens validator field errors into violations.
func collectStructViolations(v *appErrors.Violations, err error) {
	if err == nil {
		return
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			if fe.Param() != "" {
				v.Add("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param())
			} else {
				v.Add("%s failed %s", fe.Namespace(), fe.Tag())
			}
		}
		return
	}
	v.Add("%s", err.Error())
}

// isNoRows reports whether err is the store's not-found sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
