package handler

import (
	"context"

	"github.com/google/uuid"

	"github.com/aidar/team-requests-service/internal/domain"
	"github.com/aidar/team-requests-service/internal/service"
)

// RequestService описывает запросы и создание заявок
type RequestService interface {
	Create(ctx context.Context, identity domain.Identity, campusCode string, input service.CreateRequestInput) (*domain.Request, bool, error)
	List(ctx context.Context, identity domain.Identity, filter domain.RequestFilter) ([]*domain.Request, error)
	Get(ctx context.Context, identity domain.Identity, campusCode string, id uuid.UUID) (*domain.Request, error)
}

// ReviewService описывает рассмотрение заявок
type ReviewService interface {
	Review(ctx context.Context, identity domain.Identity, campusCode string, requestID uuid.UUID, input service.ReviewInput) (*domain.Request, error)
}

// StatsService описывает статистику заявок
type StatsService interface {
	GetStats(ctx context.Context, identity domain.Identity, campusCode string) (*service.Stats, error)
}
