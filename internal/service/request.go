package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/aidar/team-requests-service/internal/domain"
	"github.com/aidar/team-requests-service/internal/repository"
)

// CreateRequestInput is the API body for creating a request in a campus
type CreateRequestInput struct {
	RequestType   string  `json:"request_type"`
	TeamID        string  `json:"team_id"`
	UserID        *string `json:"user_id,omitempty"`
	CompetitionID *string `json:"competition_id,omitempty"`
	Reason        *string `json:"reason,omitempty"`
}

// RequestService handles campus-scoped request queries and synchronous creation
type RequestService struct {
	requestRepo  repository.RequestRepository
	campusRepo   repository.CampusRepository
	materializer *Materializer
}

// NewRequestService creates a new RequestService
func NewRequestService(
	requestRepo repository.RequestRepository,
	campusRepo repository.CampusRepository,
	materializer *Materializer,
) *RequestService {
	return &RequestService{
		requestRepo:  requestRepo,
		campusRepo:   campusRepo,
		materializer: materializer,
	}
}

// Create creates a pending request through the same dedup path as the queue consumer.
// Returns true when a new request was inserted.
func (s *RequestService) Create(
	ctx context.Context,
	identity domain.Identity,
	campusCode string,
	input CreateRequestInput,
) (*domain.Request, bool, error) {
	if err := s.requireCampus(ctx, identity, campusCode); err != nil {
		return nil, false, err
	}

	return s.materializer.Materialize(ctx, RequestCommand{
		TeamID:        input.TeamID,
		CampusCode:    campusCode,
		RequestType:   input.RequestType,
		UserID:        input.UserID,
		CompetitionID: input.CompetitionID,
		Reason:        input.Reason,
	})
}

// List returns requests of the caller's campus
func (s *RequestService) List(ctx context.Context, identity domain.Identity, filter domain.RequestFilter) ([]*domain.Request, error) {
	if err := s.requireCampus(ctx, identity, filter.CampusCode); err != nil {
		return nil, err
	}

	return s.requestRepo.List(ctx, filter)
}

// Get returns a request of the caller's campus
func (s *RequestService) Get(ctx context.Context, identity domain.Identity, campusCode string, id uuid.UUID) (*domain.Request, error) {
	if !identity.InScope(campusCode) {
		return nil, domain.ErrRequestNotFound
	}

	return s.requestRepo.GetByID(ctx, id, campusCode)
}

// requireCampus checks the campus is the caller's one and exists.
// A foreign campus is reported as missing.
func (s *RequestService) requireCampus(ctx context.Context, identity domain.Identity, campusCode string) error {
	if !identity.InScope(campusCode) {
		return domain.ErrCampusNotFound
	}

	exists, err := s.campusRepo.Exists(ctx, campusCode)
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrCampusNotFound
	}
	return nil
}
