package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aidar/team-requests-service/internal/domain"
)

// ErrAuditQueueFull is returned by Enqueue when the buffer is saturated.
var ErrAuditQueueFull = errors.New("audit queue is full")

// AuditEvent records a state change of a request.
type AuditEvent struct {
	EventID    uuid.UUID       `json:"event_id"`
	EventType  string          `json:"event_type"`
	Entity     string          `json:"entity"`
	EntityID   uuid.UUID       `json:"entity_id"`
	Before     *domain.Request `json:"before"`
	After      *domain.Request `json:"after"`
	ActorID    string          `json:"actor_id"`
	CampusCode string          `json:"campus_code"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// NewReviewAuditEvent builds the audit event for a review transition.
func NewReviewAuditEvent(before, after *domain.Request, actorID string, at time.Time) AuditEvent {
	return AuditEvent{
		EventID:    uuid.New(),
		EventType:  "request." + string(after.Status),
		Entity:     "request",
		EntityID:   after.ID,
		Before:     before.Clone(),
		After:      after.Clone(),
		ActorID:    actorID,
		CampusCode: after.CampusCode,
		OccurredAt: at.UTC(),
	}
}

// AuditPublisher delivers encoded audit events.
type AuditPublisher interface {
	PublishAudit(ctx context.Context, key, messageID string, body []byte) error
}

// AuditSink is a bounded, non-blocking side channel for audit events.
// Events that do not fit the buffer are dropped; delivery errors are logged only.
type AuditSink struct {
	publisher AuditPublisher
	keyPrefix string
	events    chan AuditEvent
	workers   int
	logger    *slog.Logger
}

// NewAuditSink creates an AuditSink with the given buffer size and worker count.
func NewAuditSink(publisher AuditPublisher, keyPrefix string, queueSize, workers int, logger *slog.Logger) *AuditSink {
	if workers <= 0 {
		workers = 1
	}
	return &AuditSink{
		publisher: publisher,
		keyPrefix: keyPrefix,
		events:    make(chan AuditEvent, queueSize),
		workers:   workers,
		logger:    logger.With("component", "audit"),
	}
}

// Enqueue hands an event to the workers without blocking.
func (s *AuditSink) Enqueue(event AuditEvent) error {
	select {
	case s.events <- event:
		return nil
	default:
		s.logger.Warn("audit event dropped", "event_type", event.EventType, "entity_id", event.EntityID)
		return ErrAuditQueueFull
	}
}

// Run starts the workers and blocks until ctx is cancelled.
// Events still buffered at cancellation are discarded.
func (s *AuditSink) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			s.worker(ctx, id)
		}(i)
	}
	wg.Wait()
	return nil
}

func (s *AuditSink) worker(ctx context.Context, id int) {
	s.logger.Debug("audit worker started", "worker", id)
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("audit worker stopping", "worker", id)
			return
		case event := <-s.events:
			s.deliver(ctx, event)
		}
	}
}

func (s *AuditSink) deliver(ctx context.Context, event AuditEvent) {
	body, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("failed to encode audit event", "event_id", event.EventID, "error", err)
		return
	}

	key := s.keyPrefix + "." + event.EventType
	if err := s.publisher.PublishAudit(ctx, key, event.EventID.String(), body); err != nil {
		s.logger.Error("failed to publish audit event", "event_id", event.EventID, "routing_key", key, "error", err)
		return
	}
}
