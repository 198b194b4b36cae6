package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/semaphore"

	"github.com/aidar/team-requests-service/internal/domain"
	"github.com/aidar/team-requests-service/internal/service"
)

// CommandHandler materializes a decoded command
type CommandHandler interface {
	Materialize(ctx context.Context, cmd service.RequestCommand) (*domain.Request, bool, error)
}

// Outcome is the acknowledgement decision for one delivery
type Outcome string

// Possible delivery outcomes
const (
	OutcomeCreated      Outcome = "created"
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomeDeadLettered Outcome = "dead-lettered"
	OutcomeRequeued     Outcome = "requeued"
)

// ErrDeliveriesClosed is returned by Consume when the broker closes the delivery stream
var ErrDeliveriesClosed = errors.New("delivery channel closed")

// Dispatcher decodes deliveries and hands them to the CommandHandler on a bounded worker pool
type Dispatcher struct {
	handler       CommandHandler
	workers       *semaphore.Weighted
	maxDeliveries int
	logger        *slog.Logger
}

// NewDispatcher creates a Dispatcher running at most concurrency handlers at once
func NewDispatcher(handler CommandHandler, concurrency, maxDeliveries int, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		handler:       handler,
		workers:       semaphore.NewWeighted(int64(concurrency)),
		maxDeliveries: maxDeliveries,
		logger:        logger.With("component", "dispatcher"),
	}
}

// Consume reads deliveries of one queue until ctx is cancelled or the stream closes.
// In-flight handlers are not awaited; their unacked deliveries are redelivered after a reconnect.
func (d *Dispatcher) Consume(ctx context.Context, b Binding, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("queue %s: %w", b.Queue, ErrDeliveriesClosed)
			}
			if err := d.workers.Acquire(ctx, 1); err != nil {
				return err
			}
			go func() {
				defer d.workers.Release(1)
				d.Handle(ctx, b, msg)
			}()
		}
	}
}

// Handle processes a single delivery and acknowledges it
func (d *Dispatcher) Handle(ctx context.Context, b Binding, msg amqp.Delivery) Outcome {
	log := d.logger.With(
		"queue", b.Queue,
		"routing_key", msg.RoutingKey,
		"delivery_tag", msg.DeliveryTag,
	)

	if count := deliveryCount(msg.Headers); d.maxDeliveries > 0 && count >= int64(d.maxDeliveries) {
		log.Error("delivery limit exceeded", "delivery_count", count)
		return d.deadLetter(log, msg)
	}

	var cmd service.RequestCommand
	if err := json.Unmarshal(msg.Body, &cmd); err != nil {
		log.Error("malformed payload", "error", err)
		return d.deadLetter(log, msg)
	}

	// The queue implies the request type; a contradicting payload is rejected
	switch cmd.RequestType {
	case "":
		cmd.RequestType = string(b.RequestType)
	case string(b.RequestType):
	default:
		log.Error("request_type does not match queue", "request_type", cmd.RequestType, "expected", b.RequestType)
		return d.deadLetter(log, msg)
	}

	req, created, err := d.handler.Materialize(ctx, cmd)
	if err != nil {
		if domain.IsPermanent(err) {
			log.Error("command rejected", "error", err)
			return d.deadLetter(log, msg)
		}
		log.Warn("command failed, requeueing", "error", err)
		if nerr := msg.Nack(false, true); nerr != nil {
			log.Error("failed to nack delivery", "error", nerr)
		}
		return OutcomeRequeued
	}

	if aerr := msg.Ack(false); aerr != nil {
		log.Error("failed to ack delivery", "error", aerr)
	}

	if created {
		log.Info("command processed", "outcome", OutcomeCreated, "request_id", req.ID)
		return OutcomeCreated
	}
	log.Info("command processed", "outcome", OutcomeDuplicate, "request_id", req.ID)
	return OutcomeDuplicate
}

func (d *Dispatcher) deadLetter(log *slog.Logger, msg amqp.Delivery) Outcome {
	if err := msg.Nack(false, false); err != nil {
		log.Error("failed to nack delivery", "error", err)
	}
	log.Warn("delivery dead-lettered")
	return OutcomeDeadLettered
}

// deliveryCount reads the x-delivery-count header set by quorum queues on redelivery
func deliveryCount(headers amqp.Table) int64 {
	switch v := headers["x-delivery-count"].(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int16:
		return int64(v)
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case uint8:
		return int64(v)
	default:
		return 0
	}
}
