package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/aidar/team-requests-service/internal/domain"
	"github.com/aidar/team-requests-service/internal/events"
	"github.com/aidar/team-requests-service/internal/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strPtr(s string) *string { return &s }

// MockRequestRepo
type MockRequestRepo struct {
	mock.Mock
}

func (m *MockRequestRepo) CreatePending(ctx context.Context, req *domain.Request) (*domain.Request, bool, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).(*domain.Request), args.Bool(1), args.Error(2)
}

func (m *MockRequestRepo) GetByID(ctx context.Context, id uuid.UUID, campusCode string) (*domain.Request, error) {
	args := m.Called(ctx, id, campusCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Request), args.Error(1)
}

func (m *MockRequestRepo) List(ctx context.Context, filter domain.RequestFilter) ([]*domain.Request, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Request), args.Error(1)
}

// Review runs the builder against the returned request, as the postgres implementation does
func (m *MockRequestRepo) Review(
	ctx context.Context,
	decision domain.ReviewDecision,
	build repository.OutboxBuilder,
) (*domain.Request, *domain.OutboxMessage, error) {
	args := m.Called(ctx, decision)
	if args.Get(0) == nil {
		return nil, nil, args.Error(1)
	}
	updated := args.Get(0).(*domain.Request)
	msg, err := build(updated)
	if err != nil {
		return nil, nil, err
	}
	return updated, msg, args.Error(1)
}

// MockCampusRepo
type MockCampusRepo struct {
	mock.Mock
}

func (m *MockCampusRepo) Create(ctx context.Context, code string) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}

func (m *MockCampusRepo) Exists(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

func (m *MockCampusRepo) List(ctx context.Context) ([]domain.Campus, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Campus), args.Error(1)
}

// MockOutboxRepo
type MockOutboxRepo struct {
	mock.Mock
}

func (m *MockOutboxRepo) MarkSent(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepo) RecordFailure(ctx context.Context, id uuid.UUID, lastError string) error {
	args := m.Called(ctx, id, lastError)
	return args.Error(0)
}

func (m *MockOutboxRepo) ProcessPending(
	ctx context.Context,
	olderThan time.Time,
	limit int,
	handler repository.OutboxHandler,
) (int, error) {
	args := m.Called(ctx, olderThan, limit)
	msgs, _ := args.Get(0).([]*domain.OutboxMessage)
	sent := 0
	for _, msg := range msgs {
		if err := handler(ctx, msg); err == nil {
			sent++
		}
	}
	return sent, args.Error(1)
}

// MockStatsRepo
type MockStatsRepo struct {
	mock.Mock
}

func (m *MockStatsRepo) CountByStatusAndType(ctx context.Context, campusCode string) ([]domain.RequestCount, error) {
	args := m.Called(ctx, campusCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RequestCount), args.Error(1)
}

// MockPublisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishCommand(ctx context.Context, msg *domain.OutboxMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// MockAudit
type MockAudit struct {
	mock.Mock
}

func (m *MockAudit) Enqueue(event events.AuditEvent) error {
	args := m.Called(event)
	return args.Error(0)
}

// memoryRequestRepo is an in-memory RequestRepository honoring the pending dedup key
type memoryRequestRepo struct {
	mu       sync.Mutex
	requests []*domain.Request
	inserts  int
}

func (r *memoryRequestRepo) CreatePending(_ context.Context, req *domain.Request) (*domain.Request, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := req.DedupKey()
	for _, existing := range r.requests {
		if existing.IsPending() && existing.DedupKey() == key {
			return existing.Clone(), false, nil
		}
	}

	stored := req.Clone()
	stored.Status = domain.StatusPending
	r.requests = append(r.requests, stored)
	r.inserts++
	return stored.Clone(), true, nil
}

func (r *memoryRequestRepo) GetByID(_ context.Context, id uuid.UUID, campusCode string) (*domain.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, req := range r.requests {
		if req.ID == id && req.CampusCode == campusCode {
			return req.Clone(), nil
		}
	}
	return nil, domain.ErrRequestNotFound
}

func (r *memoryRequestRepo) List(_ context.Context, filter domain.RequestFilter) ([]*domain.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := []*domain.Request{}
	for _, req := range r.requests {
		if req.CampusCode == filter.CampusCode {
			out = append(out, req.Clone())
		}
	}
	return out, nil
}

func (r *memoryRequestRepo) Review(
	_ context.Context,
	decision domain.ReviewDecision,
	build repository.OutboxBuilder,
) (*domain.Request, *domain.OutboxMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, req := range r.requests {
		if req.ID != decision.RequestID || req.CampusCode != decision.CampusCode {
			continue
		}
		if !req.IsPending() {
			return nil, nil, domain.ErrRequestAlreadyReviewed
		}
		req.Status = decision.Status
		req.ReasonRejected = decision.ReasonRejected
		msg, err := build(req.Clone())
		if err != nil {
			return nil, nil, err
		}
		return req.Clone(), msg, nil
	}
	return nil, nil, domain.ErrRequestNotFound
}

func (r *memoryRequestRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}
