package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/aidar/team-requests-service/internal/config"
	"github.com/aidar/team-requests-service/internal/domain"
)

// Confirmation is a pending broker confirmation of one published message.
type Confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

// ConfirmChannel is a publisher-confirm channel to the broker.
type ConfirmChannel interface {
	// Publish sends msg; the broker confirmation is awaited through the returned Confirmation.
	Publish(ctx context.Context, exchange, key string, msg amqp.Publishing) (Confirmation, error)
	IsClosed() bool
	Close() error
}

// DialFunc opens a ConfirmChannel with the outbound exchanges declared.
type DialFunc func(ctx context.Context) (ConfirmChannel, error)

// Publisher sends downstream commands and audit events.
// The channel is opened lazily and reopened after any publish failure.
type Publisher struct {
	dial           DialFunc
	eventsExchange string
	auditExchange  string
	timeout        time.Duration
	logger         *slog.Logger

	mu sync.Mutex
	ch ConfirmChannel
}

// NewPublisher creates a Publisher that dials the broker from cfg.
func NewPublisher(rmq config.RabbitMQConfig, topo config.TopologyConfig, logger *slog.Logger) *Publisher {
	return NewPublisherWithDialer(AMQPDialer(rmq, topo), topo, rmq.PublishTimeout, logger)
}

// NewPublisherWithDialer creates a Publisher over a custom dialer.
func NewPublisherWithDialer(dial DialFunc, topo config.TopologyConfig, timeout time.Duration, logger *slog.Logger) *Publisher {
	return &Publisher{
		dial:           dial,
		eventsExchange: topo.EventsExchange,
		auditExchange:  topo.AuditExchange,
		timeout:        timeout,
		logger:         logger.With("component", "publisher"),
	}
}

// PublishCommand publishes an outbox message to the downstream events exchange.
func (p *Publisher) PublishCommand(ctx context.Context, msg *domain.OutboxMessage) error {
	return p.publish(ctx, p.eventsExchange, msg.RoutingKey, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     msg.ID.String(),
		CorrelationId: msg.RequestID.String(),
		Timestamp:     msg.CreatedAt,
		Body:          msg.Payload,
	})
}

// PublishAudit publishes an encoded audit event to the audit exchange.
func (p *Publisher) PublishAudit(ctx context.Context, key, messageID string, body []byte) error {
	return p.publish(ctx, p.auditExchange, key, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    messageID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}

func (p *Publisher) publish(ctx context.Context, exchange, key string, msg amqp.Publishing) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	ch, confirm, err := p.send(ctx, exchange, key, msg)
	if err != nil {
		return err
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		p.reset(ch)
		return fmt.Errorf("confirm %s/%s: %w", exchange, key, err)
	}
	if !acked {
		return fmt.Errorf("publish %s/%s: broker nacked the message", exchange, key)
	}

	p.logger.Debug("message published", "exchange", exchange, "routing_key", key, "message_id", msg.MessageId)
	return nil
}

// send hands msg to the channel under the lock. Confirmations are awaited without it,
// so a slow confirm never holds up other publishes.
func (p *Publisher) send(ctx context.Context, exchange, key string, msg amqp.Publishing) (ConfirmChannel, Confirmation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil || p.ch.IsClosed() {
		ch, err := p.dial(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("open publish channel: %w", err)
		}
		p.ch = ch
	}

	confirm, err := p.ch.Publish(ctx, exchange, key, msg)
	if err != nil {
		p.resetLocked()
		return nil, nil, fmt.Errorf("publish %s/%s: %w", exchange, key, err)
	}
	return p.ch, confirm, nil
}

// reset drops ch unless it was already replaced
func (p *Publisher) reset(ch ConfirmChannel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == ch {
		p.resetLocked()
	}
}

func (p *Publisher) resetLocked() {
	if p.ch == nil {
		return
	}
	if err := p.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		p.logger.Warn("failed to close publish channel", "error", err)
	}
	p.ch = nil
}

// Close closes the underlying channel and connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
	return nil
}

// AMQPDialer returns a DialFunc that opens a dedicated connection in confirm mode
// and declares the events and audit exchanges.
func AMQPDialer(rmq config.RabbitMQConfig, topo config.TopologyConfig) DialFunc {
	return func(ctx context.Context) (ConfirmChannel, error) {
		conn, err := amqp.DialConfig(rmq.AMQPURL(), amqp.Config{
			Dial:       amqp.DefaultDial(rmq.DialTimeout),
			Properties: amqp.Table{"connection_name": "requests-service-publisher"},
		})
		if err != nil {
			return nil, err
		}

		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return nil, err
		}

		if err := ch.Confirm(false); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("enable publisher confirms: %w", err)
		}

		if err := ch.ExchangeDeclare(topo.EventsExchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("declare exchange %s: %w", topo.EventsExchange, err)
		}
		if err := ch.ExchangeDeclare(topo.AuditExchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("declare exchange %s: %w", topo.AuditExchange, err)
		}

		return &amqpConfirmChannel{conn: conn, ch: ch}, nil
	}
}

type amqpConfirmChannel struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func (c *amqpConfirmChannel) Publish(ctx context.Context, exchange, key string, msg amqp.Publishing) (Confirmation, error) {
	dc, err := c.ch.PublishWithDeferredConfirmWithContext(ctx, exchange, key, false, false, msg)
	if err != nil {
		return nil, err
	}
	return dc, nil
}

func (c *amqpConfirmChannel) IsClosed() bool {
	return c.ch.IsClosed() || c.conn.IsClosed()
}

func (c *amqpConfirmChannel) Close() error {
	_ = c.ch.Close()
	return c.conn.Close()
}
