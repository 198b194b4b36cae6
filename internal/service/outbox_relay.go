package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aidar/team-requests-service/internal/repository"
)

// OutboxRelay periodically republishes outbox messages whose immediate publish failed
type OutboxRelay struct {
	outboxRepo  repository.OutboxRepository
	publisher   CommandPublisher
	schedule    string
	batchSize   int
	gracePeriod time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

// NewOutboxRelay creates a new OutboxRelay
func NewOutboxRelay(
	outboxRepo repository.OutboxRepository,
	publisher CommandPublisher,
	schedule string,
	batchSize int,
	gracePeriod time.Duration,
	logger *slog.Logger,
) *OutboxRelay {
	return &OutboxRelay{
		outboxRepo:  outboxRepo,
		publisher:   publisher,
		schedule:    schedule,
		batchSize:   batchSize,
		gracePeriod: gracePeriod,
		now:         time.Now,
		logger:      logger.With("component", "outbox_relay"),
	}
}

// RunOnce republishes one batch of pending messages older than the grace period.
// The grace period leaves room for the review path's own immediate publish.
func (r *OutboxRelay) RunOnce(ctx context.Context) (int, error) {
	olderThan := r.now().Add(-r.gracePeriod)
	return r.outboxRepo.ProcessPending(ctx, olderThan, r.batchSize, r.publisher.PublishCommand)
}

// Run schedules RunOnce and blocks until ctx is cancelled
func (r *OutboxRelay) Run(ctx context.Context) error {
	c := cron.New(cron.WithLocation(time.UTC))

	_, err := c.AddFunc(r.schedule, func() {
		sent, err := r.RunOnce(ctx)
		if err != nil {
			r.logger.Error("outbox relay run failed", "error", err)
			return
		}
		if sent > 0 {
			r.logger.Info("outbox messages republished", "count", sent)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid outbox relay schedule %q: %w", r.schedule, err)
	}

	c.Start()
	r.logger.Info("outbox relay started", "schedule", r.schedule)

	<-ctx.Done()
	<-c.Stop().Done()
	r.logger.Info("outbox relay stopped")
	return nil
}
