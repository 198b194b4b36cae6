package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aidar/team-requests-service/internal/domain"
	"github.com/aidar/team-requests-service/internal/events"
	"github.com/aidar/team-requests-service/internal/repository"
)

// CommandPublisher delivers routed downstream commands
type CommandPublisher interface {
	PublishCommand(ctx context.Context, msg *domain.OutboxMessage) error
}

// AuditRecorder accepts audit events without blocking
type AuditRecorder interface {
	Enqueue(event events.AuditEvent) error
}

// ReviewInput is the reviewer's decision on a request
type ReviewInput struct {
	Status         domain.RequestStatus
	ReasonRejected *string
}

// ReviewService is the single mutation point of a request: pending -> approved | rejected
type ReviewService struct {
	requestRepo  repository.RequestRepository
	outboxRepo   repository.OutboxRepository
	router       *events.Router
	publisher    CommandPublisher
	audit        AuditRecorder
	reviewerRole string
	now          func() time.Time
	logger       *slog.Logger
}

// NewReviewService creates a new ReviewService
func NewReviewService(
	requestRepo repository.RequestRepository,
	outboxRepo repository.OutboxRepository,
	router *events.Router,
	publisher CommandPublisher,
	audit AuditRecorder,
	reviewerRole string,
	logger *slog.Logger,
) *ReviewService {
	return &ReviewService{
		requestRepo:  requestRepo,
		outboxRepo:   outboxRepo,
		router:       router,
		publisher:    publisher,
		audit:        audit,
		reviewerRole: reviewerRole,
		now:          time.Now,
		logger:       logger.With("component", "review"),
	}
}

// Review applies the reviewer's decision.
// Preconditions are checked in order: scope (NotFound), role (Forbidden),
// current status (Conflict), reason_rejected guard (Conflict), desired status (Validation).
// The desired status is parsed last so that scope and conflict errors take precedence.
// When the downstream publish fails the committed request is returned together with a
// domain.ErrPublish error; the outbox relay retries the delivery later.
func (s *ReviewService) Review(
	ctx context.Context,
	identity domain.Identity,
	campusCode string,
	requestID uuid.UUID,
	input ReviewInput,
) (*domain.Request, error) {
	if !identity.InScope(campusCode) {
		return nil, domain.ErrRequestNotFound
	}

	current, err := s.requestRepo.GetByID(ctx, requestID, campusCode)
	if err != nil {
		return nil, err
	}

	if !identity.HasRole(s.reviewerRole) {
		return nil, domain.ErrForbidden
	}

	if !current.IsPending() {
		return nil, domain.ErrRequestAlreadyReviewed
	}

	reason := input.ReasonRejected
	if reason != nil && strings.TrimSpace(*reason) == "" {
		reason = nil
	}
	if reason != nil && input.Status != domain.StatusRejected {
		return nil, domain.ErrReasonRequiresRejection
	}

	status, err := domain.ParseRequestStatus(string(input.Status))
	if err != nil {
		return nil, err
	}
	if !status.IsTerminal() {
		return nil, domain.ErrInvalidReviewStatus
	}

	updated, msg, err := s.requestRepo.Review(ctx, domain.ReviewDecision{
		RequestID:      requestID,
		CampusCode:     campusCode,
		Status:         status,
		ReasonRejected: reason,
		ReviewerID:     identity.UserID,
	}, s.router.OutboxBuilder(s.now))
	if err != nil {
		return nil, err
	}

	s.logger.Info("request reviewed",
		"request_id", updated.ID, "status", updated.Status, "reviewer", identity.UserID)

	if updated.Status != current.Status {
		if err := s.audit.Enqueue(events.NewReviewAuditEvent(current, updated, identity.UserID, s.now())); err != nil {
			s.logger.Warn("audit event not recorded", "request_id", updated.ID, "error", err)
		}
	}

	if msg == nil {
		return updated, nil
	}

	if err := s.publisher.PublishCommand(ctx, msg); err != nil {
		if ferr := s.outboxRepo.RecordFailure(ctx, msg.ID, err.Error()); ferr != nil {
			s.logger.Error("failed to record outbox failure", "outbox_id", msg.ID, "error", ferr)
		}
		s.logger.Error("downstream publish failed",
			"request_id", updated.ID, "routing_key", msg.RoutingKey, "error", err)
		return updated, fmt.Errorf("%w: %v", domain.ErrPublish, err)
	}

	if err := s.outboxRepo.MarkSent(ctx, msg.ID); err != nil {
		s.logger.Error("failed to mark outbox message sent", "outbox_id", msg.ID, "error", err)
	}

	return updated, nil
}
