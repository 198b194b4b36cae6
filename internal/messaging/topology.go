package messaging

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/aidar/team-requests-service/internal/config"
	"github.com/aidar/team-requests-service/internal/domain"
)

// Binding ties a command queue to its routing key and the request type it carries
type Binding struct {
	Queue       string
	RoutingKey  string
	RequestType domain.RequestType
}

// Topology describes the inbound command exchange, its queues and the dead-letter path
type Topology struct {
	Exchange           string
	DeadLetterExchange string
	DeadLetterQueue    string
	DeliveryLimit      int
	Bindings           []Binding
}

// NewTopology builds the consumer topology from configuration
func NewTopology(cfg config.TopologyConfig, deliveryLimit int) Topology {
	return Topology{
		Exchange:           cfg.CommandsExchange,
		DeadLetterExchange: cfg.DeadLetterExchange,
		DeadLetterQueue:    cfg.DeadLetterQueue,
		DeliveryLimit:      deliveryLimit,
		Bindings: []Binding{
			{Queue: cfg.TeamCreationQueue, RoutingKey: cfg.TeamCreationKey, RequestType: domain.RequestTypeApproveTeam},
			{Queue: cfg.TeamDeletionQueue, RoutingKey: cfg.TeamDeletionKey, RequestType: domain.RequestTypeDeleteTeam},
			{Queue: cfg.MemberAdditionQueue, RoutingKey: cfg.MemberAdditionKey, RequestType: domain.RequestTypeAddTeamMember},
			{Queue: cfg.MemberRemovalQueue, RoutingKey: cfg.MemberRemovalKey, RequestType: domain.RequestTypeRemoveTeamMember},
		},
	}
}

// QueueArgs returns the arguments every command queue is declared with
func (t Topology) QueueArgs() amqp.Table {
	return amqp.Table{
		"x-queue-type":           "quorum",
		"x-delivery-limit":       t.DeliveryLimit,
		"x-dead-letter-exchange": t.DeadLetterExchange,
	}
}

// Declare declares exchanges, queues and bindings. Safe to repeat after every reconnect
func (t Topology) Declare(ch Channel) error {
	if err := ch.ExchangeDeclare(t.Exchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", t.Exchange, err)
	}

	if err := ch.ExchangeDeclare(t.DeadLetterExchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", t.DeadLetterExchange, err)
	}
	if _, err := ch.QueueDeclare(t.DeadLetterQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", t.DeadLetterQueue, err)
	}
	if err := ch.QueueBind(t.DeadLetterQueue, "", t.DeadLetterExchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", t.DeadLetterQueue, err)
	}

	for _, b := range t.Bindings {
		if _, err := ch.QueueDeclare(b.Queue, true, false, false, false, t.QueueArgs()); err != nil {
			return fmt.Errorf("declare queue %s: %w", b.Queue, err)
		}
		if err := ch.QueueBind(b.Queue, b.RoutingKey, t.Exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.Queue, b.RoutingKey, err)
		}
	}

	return nil
}
