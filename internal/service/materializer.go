package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/aidar/team-requests-service/internal/domain"
	"github.com/aidar/team-requests-service/internal/repository"
)

// RequestCommand is the inbound command payload that materializes a request
type RequestCommand struct {
	TeamID        string     `json:"team_id" validate:"required,uuid"`
	CampusCode    string     `json:"campus_code" validate:"required"`
	RequestType   string     `json:"request_type" validate:"required"`
	UserID        *string    `json:"user_id,omitempty"`
	CompetitionID *string    `json:"competition_id,omitempty" validate:"omitempty,uuid"`
	Reason        *string    `json:"reason,omitempty"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
}

// Materializer turns request commands into pending requests, at most one per dedup key
type Materializer struct {
	requestRepo repository.RequestRepository
	validate    *validator.Validate
	now         func() time.Time
	logger      *slog.Logger
}

// NewMaterializer creates a new Materializer
func NewMaterializer(requestRepo repository.RequestRepository, logger *slog.Logger) *Materializer {
	return &Materializer{
		requestRepo: requestRepo,
		validate:    newValidator(),
		now:         time.Now,
		logger:      logger.With("component", "materializer"),
	}
}

// Materialize validates the command and creates a pending request unless an equivalent one exists.
// The bool result is true when a new row was inserted.
// Validation failures and unknown campuses are returned as domain.Permanent errors.
func (m *Materializer) Materialize(ctx context.Context, cmd RequestCommand) (*domain.Request, bool, error) {
	req, err := m.buildRequest(cmd)
	if err != nil {
		return nil, false, domain.Permanent(err)
	}

	stored, created, err := m.requestRepo.CreatePending(ctx, req)
	if err != nil {
		if errors.Is(err, domain.ErrCampusNotFound) {
			return nil, false, domain.Permanent(fmt.Errorf("campus %q: %w", req.CampusCode, err))
		}
		return nil, false, fmt.Errorf("persist request: %w", err)
	}

	if created {
		m.logger.Info("request created",
			"request_id", stored.ID, "request_type", stored.RequestType,
			"team_id", stored.TeamID, "campus_code", stored.CampusCode)
	} else {
		m.logger.Info("duplicate request ignored",
			"request_id", stored.ID, "request_type", stored.RequestType,
			"team_id", stored.TeamID, "campus_code", stored.CampusCode)
	}

	return stored, created, nil
}

func (m *Materializer) buildRequest(cmd RequestCommand) (*domain.Request, error) {
	cmd.CampusCode = strings.TrimSpace(cmd.CampusCode)

	if err := m.validate.Struct(cmd); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, describeValidation(err))
	}

	requestType, err := domain.ParseRequestType(cmd.RequestType)
	if err != nil {
		return nil, err
	}

	teamID, err := uuid.Parse(cmd.TeamID)
	if err != nil {
		return nil, fmt.Errorf("%w: team_id: %v", domain.ErrValidation, err)
	}

	var userID *string
	if cmd.UserID != nil && strings.TrimSpace(*cmd.UserID) != "" {
		v := strings.TrimSpace(*cmd.UserID)
		userID = &v
	}
	if requestType.RequiresUserID() && userID == nil {
		return nil, fmt.Errorf("%w: user_id is required for %s", domain.ErrValidation, requestType)
	}

	var competitionID *uuid.UUID
	if cmd.CompetitionID != nil {
		id, err := uuid.Parse(*cmd.CompetitionID)
		if err != nil {
			return nil, fmt.Errorf("%w: competition_id: %v", domain.ErrValidation, err)
		}
		competitionID = &id
	}

	createdAt := m.now().UTC()
	if cmd.CreatedAt != nil && !cmd.CreatedAt.IsZero() {
		createdAt = cmd.CreatedAt.UTC()
	}

	return &domain.Request{
		ID:            uuid.New(),
		RequestType:   requestType,
		TeamID:        teamID,
		CompetitionID: competitionID,
		UserID:        userID,
		CampusCode:    cmd.CampusCode,
		Reason:        cmd.Reason,
		Status:        domain.StatusPending,
		CreatedAt:     createdAt,
	}, nil
}

// newValidator returns a validator that reports fields by their json names
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// describeValidation renders validator errors as "field: tag" pairs
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}
