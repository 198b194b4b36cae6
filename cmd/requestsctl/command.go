package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/spf13/cobra"

	"github.com/aidar/team-requests-service/internal/config"
	"github.com/aidar/team-requests-service/internal/domain"
	"github.com/aidar/team-requests-service/internal/messaging"
	"github.com/aidar/team-requests-service/internal/service"
)

type commandFlags struct {
	requestType   string
	teamID        string
	campus        string
	userID        string
	competitionID string
	reason        string
}

func commandCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "command",
		Short: "Inject inbound commands",
	}

	var flags commandFlags
	publish := &cobra.Command{
		Use:   "publish",
		Short: "Publish a request command to the commands exchange",
		Long: `Publish a request command the way the teams service does.

Examples:
  requestsctl command publish --type approve_team --team 7b0c... --campus C1
  requestsctl command publish --type remove_team_member --team 7b0c... --campus C1 --user m123`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			topology := messaging.NewTopology(cfg.Topology, cfg.RabbitMQ.MaxDeliveries)
			key, body, err := buildCommand(topology, flags)
			if err != nil {
				return err
			}

			if err := publishCommand(cmd.Context(), cfg.RabbitMQ, topology, key, body); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "published to %s/%s: %s\n", topology.Exchange, key, body)
			return nil
		},
	}

	publish.Flags().StringVar(&flags.requestType, "type", "", "request type (approve_team, delete_team, add_team_member, remove_team_member)")
	publish.Flags().StringVar(&flags.teamID, "team", "", "team id (UUID)")
	publish.Flags().StringVar(&flags.campus, "campus", "", "campus code")
	publish.Flags().StringVar(&flags.userID, "user", "", "member matricula")
	publish.Flags().StringVar(&flags.competitionID, "competition", "", "competition id (UUID)")
	publish.Flags().StringVar(&flags.reason, "reason", "", "free text reason")
	_ = publish.MarkFlagRequired("type")
	_ = publish.MarkFlagRequired("team")
	_ = publish.MarkFlagRequired("campus")

	cmd.AddCommand(publish)
	return cmd
}

// buildCommand resolves the routing key for the request type and encodes the payload
func buildCommand(topology messaging.Topology, flags commandFlags) (string, []byte, error) {
	requestType, err := domain.ParseRequestType(flags.requestType)
	if err != nil {
		return "", nil, err
	}
	if _, err := uuid.Parse(flags.teamID); err != nil {
		return "", nil, fmt.Errorf("%w: team must be a UUID", domain.ErrValidation)
	}

	var key string
	for _, b := range topology.Bindings {
		if b.RequestType == requestType {
			key = b.RoutingKey
			break
		}
	}
	if key == "" {
		return "", nil, fmt.Errorf("no queue bound for %s", requestType)
	}

	now := time.Now().UTC()
	payload := service.RequestCommand{
		TeamID:      flags.teamID,
		CampusCode:  flags.campus,
		RequestType: string(requestType),
		CreatedAt:   &now,
	}
	if flags.userID != "" {
		payload.UserID = &flags.userID
	}
	if flags.competitionID != "" {
		payload.CompetitionID = &flags.competitionID
	}
	if flags.reason != "" {
		payload.Reason = &flags.reason
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", nil, err
	}
	return key, body, nil
}

func publishCommand(ctx context.Context, cfg config.RabbitMQConfig, topology messaging.Topology, key string, body []byte) error {
	conn, err := amqp.DialConfig(cfg.AMQPURL(), amqp.Config{Dial: amqp.DefaultDial(cfg.DialTimeout)})
	if err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := topology.Declare(ch); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.PublishTimeout)
	defer cancel()

	return ch.PublishWithContext(ctx, topology.Exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}
