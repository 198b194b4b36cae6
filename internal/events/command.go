package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aidar/team-requests-service/internal/config"
	"github.com/aidar/team-requests-service/internal/domain"
	"github.com/aidar/team-requests-service/internal/repository"
)

// Command is the downstream command emitted after a request has been reviewed.
// RequestID lets consumers dedupe the at-least-once delivery of the outbox.
type Command struct {
	RequestID     uuid.UUID            `json:"request_id"`
	RequestType   domain.RequestType   `json:"request_type"`
	TeamID        uuid.UUID            `json:"team_id"`
	CampusCode    string               `json:"campus_code"`
	Status        domain.RequestStatus `json:"status"`
	CompetitionID *uuid.UUID           `json:"competition_id"`
	UserID        *string              `json:"user_id,omitempty"`
}

// Router maps request types to downstream routing keys.
type Router struct {
	exchange         string
	teamCreatedKey   string
	teamRemovedKey   string
	memberAddedKey   string
	memberRemovedKey string
}

// NewRouter creates a Router from the broker topology names.
func NewRouter(cfg config.TopologyConfig) *Router {
	return &Router{
		exchange:         cfg.EventsExchange,
		teamCreatedKey:   cfg.TeamCreatedKey,
		teamRemovedKey:   cfg.TeamRemovedKey,
		memberAddedKey:   cfg.MemberAddedKey,
		memberRemovedKey: cfg.MemberRemovedKey,
	}
}

// Exchange returns the exchange downstream commands are published to.
func (r *Router) Exchange() string {
	return r.exchange
}

// RouteFor returns the routing key for a request type.
// Must stay in sync with domain.ParseRequestType.
func (r *Router) RouteFor(t domain.RequestType) (string, error) {
	switch t {
	case domain.RequestTypeApproveTeam:
		return r.teamCreatedKey, nil
	case domain.RequestTypeDeleteTeam:
		return r.teamRemovedKey, nil
	case domain.RequestTypeAddTeamMember:
		return r.memberAddedKey, nil
	case domain.RequestTypeRemoveTeamMember:
		return r.memberRemovedKey, nil
	default:
		return "", fmt.Errorf("no downstream route for request type %q", t)
	}
}

// CommandFor builds the downstream command for a reviewed request.
// user_id is carried only by the member commands.
func CommandFor(req *domain.Request) Command {
	cmd := Command{
		RequestID:     req.ID,
		RequestType:   req.RequestType,
		TeamID:        req.TeamID,
		CampusCode:    req.CampusCode,
		Status:        req.Status,
		CompetitionID: req.CompetitionID,
	}
	if req.RequestType.RequiresUserID() {
		cmd.UserID = req.UserID
	}
	return cmd
}

// OutboxBuilder returns a repository.OutboxBuilder that routes and encodes the command
// inside the review transaction.
func (r *Router) OutboxBuilder(now func() time.Time) repository.OutboxBuilder {
	return func(updated *domain.Request) (*domain.OutboxMessage, error) {
		key, err := r.RouteFor(updated.RequestType)
		if err != nil {
			return nil, err
		}

		payload, err := json.Marshal(CommandFor(updated))
		if err != nil {
			return nil, fmt.Errorf("encode command: %w", err)
		}

		return &domain.OutboxMessage{
			ID:         uuid.New(),
			RequestID:  updated.ID,
			RoutingKey: key,
			Payload:    payload,
			Status:     domain.OutboxStatusPending,
			CreatedAt:  now().UTC(),
		}, nil
	}
}
