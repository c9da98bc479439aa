package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/org-recognition-api/internal/models"
	"github.com/noah-isme/org-recognition-api/pkg/jobs"
)

// Notifier delivers one event to an external sink.
type Notifier interface {
	Notify(ctx context.Context, event models.NotificationEvent) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, event models.NotificationEvent) error

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, event models.NotificationEvent) error {
	return f(ctx, event)
}

// LogNotifier writes events to the structured log.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier constructs a log notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(_ context.Context, event models.NotificationEvent) error {
	n.logger.Info("notification",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("submission_id", event.SubmissionID),
		zap.String("event_proposal_id", event.EventProposalID),
		zap.String("owner_id", event.OwnerID),
		zap.String("old_state", string(event.OldState)),
		zap.String("new_state", string(event.NewState)),
		zap.String("actor_id", event.ActorID),
	)
	return nil
}

type eventPublisher interface {
	Publish(ctx context.Context, payload []byte) error
}

// RedisNotifier publishes events as JSON on a Redis channel.
type RedisNotifier struct {
	publisher eventPublisher
}

// NewRedisNotifier constructs a Redis-backed notifier.
func NewRedisNotifier(publisher eventPublisher) *RedisNotifier {
	return &RedisNotifier{publisher: publisher}
}

// Notify implements Notifier.
func (n *RedisNotifier) Notify(ctx context.Context, event models.NotificationEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal notification %s: %w", event.ID, err)
	}
	return n.publisher.Publish(ctx, payload)
}

// NotificationConfig tunes the dispatch queue.
type NotificationConfig struct {
	Workers    int
	Retries    int
	RetryDelay time.Duration
	Timeout    time.Duration
}

// NotificationService routes committed transitions to the notifier through a worker queue.
// Dispatch never blocks a transition and never reports failure to the caller.
type NotificationService struct {
	notifier Notifier
	queue    *jobs.Queue
	metrics  *MetricsService
	logger   *zap.Logger
	timeout  time.Duration
}

// NewNotificationService constructs the router and its queue. Call Start before dispatching.
func NewNotificationService(notifier Notifier, cfg NotificationConfig, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	svc := &NotificationService{notifier: notifier, metrics: metrics, logger: logger, timeout: cfg.Timeout}
	svc.queue = jobs.NewQueue("notifications", svc.deliver, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.Retries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
		OnFailure:  svc.dropped,
	})
	return svc
}

// Start launches the delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains queued notifications and stops the workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Dispatch queues events for delivery. It never waits for room: an event that does not fit
// in the buffer is dropped and counted.
func (s *NotificationService) Dispatch(_ context.Context, events ...models.NotificationEvent) {
	for _, event := range events {
		if err := s.queue.TryEnqueue(jobs.Job{ID: event.ID, Type: string(event.Type), Payload: event}); err != nil {
			s.metrics.RecordNotification(string(event.Type), "dropped")
			s.logger.Warn("notification not queued",
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.Type)),
				zap.String("submission_id", event.SubmissionID),
				zap.Error(err))
		}
	}
}

func (s *NotificationService) deliver(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(models.NotificationEvent)
	if !ok {
		s.logger.Error("unexpected notification payload", zap.String("job_id", job.ID))
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.notifier.Notify(ctx, event); err != nil {
		s.metrics.RecordNotification(string(event.Type), "retry")
		return err
	}
	s.metrics.RecordNotification(string(event.Type), "delivered")
	return nil
}

func (s *NotificationService) dropped(job jobs.Job, err error) {
	s.metrics.RecordNotification(job.Type, "failed")
	s.logger.Error("notification delivery failed", zap.String("event_id", job.ID), zap.String("event_type", job.Type), zap.Error(err))
}

// TransitionEvent maps a committed transition to its notification event.
func TransitionEvent(t models.Transition) (models.NotificationEvent, error) {
	eventType, err := transitionType(t)
	if err != nil {
		return models.NotificationEvent{}, err
	}
	event := models.NotificationEvent{
		ID:           uuid.NewString(),
		Type:         eventType,
		SubmissionID: t.SubmissionID,
		OwnerID:      t.OwnerID,
		OldState:     t.From,
		NewState:     t.To,
		ActorID:      t.Actor.ID,
		ActorRole:    t.Actor.Role,
		Reason:       t.Reason,
		Deadline:     t.Deadline,
		OccurredAt:   t.At,
	}
	if t.EventProposalID != nil {
		event.EventProposalID = *t.EventProposalID
	}
	return event, nil
}

// AggregateEvent builds an event-proposal level notification.
func AggregateEvent(eventType models.NotificationType, proposalID, ownerID string, actor models.Actor, at time.Time) models.NotificationEvent {
	return models.NotificationEvent{
		ID:              uuid.NewString(),
		Type:            eventType,
		EventProposalID: proposalID,
		OwnerID:         ownerID,
		ActorID:         actor.ID,
		ActorRole:       actor.Role,
		OccurredAt:      at,
	}
}

func transitionType(t models.Transition) (models.NotificationType, error) {
	switch {
	case t.To == "":
		return models.NotificationDeleted, nil
	case t.From == "" && t.To == models.StagePending:
		return models.NotificationSubmissionCreated, nil
	case t.From.IsRejected() && t.To == models.StagePending:
		return models.NotificationResubmitted, nil
	case t.From == t.To && t.To.IsRejected() && t.Deadline != nil:
		return models.NotificationDeadlineSet, nil
	case t.From == models.StagePending && t.To == models.StageAdviserApproved:
		return models.NotificationAdviserApproved, nil
	case t.From == models.StagePending && t.To == models.StageAdviserRejected:
		return models.NotificationAdviserRejected, nil
	case t.From == models.StageAdviserApproved && t.To == models.StageOfficeApproved:
		return models.NotificationOfficeApproved, nil
	case t.From == models.StageAdviserApproved && t.To == models.StageOfficeRejected:
		return models.NotificationOfficeRejected, nil
	default:
		return "", fmt.Errorf("no notification for transition %q -> %q", t.From, t.To)
	}
}
