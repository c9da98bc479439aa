package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/org-recognition-api/internal/models"
	appErrors "github.com/noah-isme/org-recognition-api/pkg/errors"
)

type archivalTermRepository interface {
	List(ctx context.Context) ([]models.AcademicTerm, error)
	FindByID(ctx context.Context, id string) (*models.AcademicTerm, error)
	ListSemesters(ctx context.Context, termID string) ([]models.Semester, error)
	UpdateStatus(ctx context.Context, id string, status models.CalendarStatus) error
	UpdateSemesterStatus(ctx context.Context, id string, status models.CalendarStatus) error
}

type termPurger interface {
	PurgeTerm(ctx context.Context, termID string, at time.Time) (models.PurgeResult, error)
}

// ArchivalConfig schedules the status sweep.
type ArchivalConfig struct {
	Schedule string
	Timeout  time.Duration
	Location *time.Location
}

// ArchivalService is the single authority for the term archival cascade. It recomputes
// term and semester statuses and purges the data of archived terms.
type ArchivalService struct {
	terms     archivalTermRepository
	purger    termPurger
	cache     cacheInvalidator
	artifacts artifactRemover
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       ArchivalConfig
	now       Clock

	flights   singleflight.Group
	scheduler *cron.Cron
}

// ArchivalServiceOption configures the service.
type ArchivalServiceOption func(*ArchivalService)

// WithArchivalClock overrides the clock.
func WithArchivalClock(clock Clock) ArchivalServiceOption {
	return func(s *ArchivalService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithArchivalCache wires event summary invalidation.
func WithArchivalCache(cache cacheInvalidator) ArchivalServiceOption {
	return func(s *ArchivalService) {
		s.cache = cache
	}
}

// WithArchivalArtifacts wires best-effort removal of purged artifacts.
func WithArchivalArtifacts(artifacts artifactRemover) ArchivalServiceOption {
	return func(s *ArchivalService) {
		s.artifacts = artifacts
	}
}

// WithArchivalMetrics wires cascade counters.
func WithArchivalMetrics(metrics *MetricsService) ArchivalServiceOption {
	return func(s *ArchivalService) {
		s.metrics = metrics
	}
}

// NewArchivalService constructs the coordinator.
func NewArchivalService(terms archivalTermRepository, purger termPurger, cfg ArchivalConfig, logger *zap.Logger, opts ...ArchivalServiceOption) *ArchivalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 4 * time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	svc := &ArchivalService{terms: terms, purger: purger, logger: logger, cfg: cfg, now: systemClock}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// OnTermArchived purges every submission of an archived term in one transaction. Concurrent
// calls for the same term share one execution, and a term already cleaned is left untouched.
// The shared execution outlives the caller that started it, bounded by the configured timeout.
func (s *ArchivalService) OnTermArchived(ctx context.Context, termID string) (*models.PurgeResult, error) {
	value, err, _ := s.flights.Do(termID, func() (interface{}, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Timeout)
		defer cancel()
		return s.cascade(flightCtx, termID)
	})
	if err != nil {
		return nil, err
	}
	result := value.(models.PurgeResult)
	return &result, nil
}

func (s *ArchivalService) cascade(ctx context.Context, termID string) (models.PurgeResult, error) {
	term, err := s.terms.FindByID(ctx, termID)
	if err != nil {
		return models.PurgeResult{}, storeError(err, "term not found", "failed to load term")
	}
	if term.EffectiveStatus(today(s.now(), s.cfg.Location)) != models.CalendarStatusArchived {
		return models.PurgeResult{}, appErrors.Clone(appErrors.ErrIllegalTransition, "term is not archived")
	}
	if term.CleanedAt != nil {
		s.logger.Debug("term already cleaned", zap.String("term_id", termID))
		return models.PurgeResult{TermID: termID}, nil
	}

	result, err := s.purger.PurgeTerm(ctx, termID, s.now())
	if err != nil {
		s.metrics.RecordCascade("failed", 0, 0)
		s.logger.Error("archival cascade failed", zap.String("term_id", termID), zap.Error(err))
		return models.PurgeResult{}, appErrors.Wrap(err, appErrors.ErrCascadeFailure.Code, appErrors.ErrCascadeFailure.Status,
			fmt.Sprintf("archival cascade failed for term %s", termID))
	}
	s.metrics.RecordCascade("succeeded", result.SubmissionsDeleted, result.EventProposalsDeleted)

	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, eventSummaryPattern(termID, "*"))
		for _, proposalID := range result.EventProposalIDs {
			_ = s.cache.Invalidate(ctx, eventSummaryPattern("*", proposalID))
		}
	}
	if s.artifacts != nil {
		for _, ref := range result.ArtifactRefs {
			if ref == "" {
				continue
			}
			if err := s.artifacts.Delete(ref); err != nil {
				s.logger.Warn("artifact cleanup failed", zap.String("term_id", termID), zap.String("artifact_ref", ref), zap.Error(err))
			}
		}
	}

	s.logger.Info("archival cascade completed",
		zap.String("term_id", termID),
		zap.Int("submissions_deleted", result.SubmissionsDeleted),
		zap.Int("event_proposals_deleted", result.EventProposalsDeleted))
	return result, nil
}

// OnPresidentLogin runs a sweep; it is the login-triggered entry point.
func (s *ArchivalService) OnPresidentLogin(ctx context.Context) (*models.SweepReport, error) {
	return s.Sweep(ctx)
}

// Sweep recomputes every term and semester status from today. Any term that is archived
// and not yet cleaned is cascaded. A failure on one term is logged and the sweep continues.
func (s *ArchivalService) Sweep(ctx context.Context) (*models.SweepReport, error) {
	started := time.Now()
	defer func() { s.metrics.ObserveSweep(time.Since(started)) }()

	now := s.now()
	day := today(now, s.cfg.Location)
	terms, err := s.terms.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list terms")
	}

	report := &models.SweepReport{RanAt: now, Terms: make([]models.SweepTermResult, 0, len(terms))}
	for _, term := range terms {
		result := s.sweepTerm(ctx, term, day)
		if result.Error != "" {
			report.Failed++
		}
		report.Terms = append(report.Terms, result)
	}

	s.logger.Info("term status sweep finished", zap.Int("terms", len(terms)), zap.Int("failed", report.Failed))
	return report, nil
}

func (s *ArchivalService) sweepTerm(ctx context.Context, term models.AcademicTerm, day time.Time) models.SweepTermResult {
	target := term.EffectiveStatus(day)
	result := models.SweepTermResult{TermID: term.ID, From: term.Status, To: target}

	if target != term.Status {
		if err := s.terms.UpdateStatus(ctx, term.ID, target); err != nil {
			s.logger.Error("term status update failed", zap.String("term_id", term.ID), zap.Error(err))
			result.Error = err.Error()
			return result
		}
	}

	semesters, err := s.terms.ListSemesters(ctx, term.ID)
	if err != nil {
		s.logger.Error("semester load failed", zap.String("term_id", term.ID), zap.Error(err))
		result.Error = err.Error()
		return result
	}
	for _, sem := range semesters {
		semTarget := models.DeriveStatus(sem.Range(), day)
		if target == models.CalendarStatusArchived {
			semTarget = models.CalendarStatusArchived
		}
		if semTarget == sem.Status {
			continue
		}
		if err := s.terms.UpdateSemesterStatus(ctx, sem.ID, semTarget); err != nil {
			s.logger.Warn("semester status update failed", zap.String("term_id", term.ID), zap.String("semester_id", sem.ID), zap.Error(err))
		}
	}

	if target != models.CalendarStatusArchived || term.CleanedAt != nil {
		return result
	}
	purge, err := s.OnTermArchived(ctx, term.ID)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Cascaded = true
	result.Purge = purge
	return result
}

// Start schedules the periodic sweep. Overlapping runs are skipped.
func (s *ArchivalService) Start(ctx context.Context) error {
	if s.cfg.Schedule == "" {
		s.logger.Info("archival sweep schedule disabled")
		return nil
	}
	logger := cronLogger{s.logger.Sugar()}
	c := cron.New(cron.WithLocation(s.cfg.Location), cron.WithLogger(logger), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))
	if _, err := c.AddFunc(s.cfg.Schedule, func() {
		runCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
		if _, err := s.Sweep(runCtx); err != nil {
			s.logger.Error("scheduled sweep failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("schedule archival sweep %q: %w", s.cfg.Schedule, err)
	}
	c.Start()
	s.scheduler = c
	s.logger.Info("archival sweep scheduled", zap.String("schedule", s.cfg.Schedule))
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (s *ArchivalService) Stop() {
	if s.scheduler == nil {
		return
	}
	<-s.scheduler.Stop().Done()
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
