package messaging

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/aidar/team-requests-service/internal/config"
)

// Channel is the subset of *amqp.Channel used by the consumer
type Channel interface {
	Qos(prefetchCount, prefetchSize int, global bool) error
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	ConsumeWithContext(
		ctx context.Context,
		queue, consumer string,
		autoAck, exclusive, noLocal, noWait bool,
		args amqp.Table,
	) (<-chan amqp.Delivery, error)
	NotifyClose(receiver chan *amqp.Error) chan *amqp.Error
	Close() error
}

// Connection is the subset of *amqp.Connection used by the consumer
type Connection interface {
	Channel() (Channel, error)
	NotifyClose(receiver chan *amqp.Error) chan *amqp.Error
	Close() error
}

// Dialer opens a broker connection
type Dialer func(ctx context.Context) (Connection, error)

// AMQPDialer returns a Dialer for the configured broker
func AMQPDialer(cfg config.RabbitMQConfig) Dialer {
	return func(_ context.Context) (Connection, error) {
		conn, err := amqp.DialConfig(cfg.AMQPURL(), amqp.Config{
			Dial:       amqp.DefaultDial(cfg.DialTimeout),
			Properties: amqp.Table{"connection_name": "requests-service-consumer"},
		})
		if err != nil {
			return nil, err
		}
		return &amqpConnection{conn: conn}, nil
	}
}

type amqpConnection struct {
	conn *amqp.Connection
}

func (c *amqpConnection) Channel() (Channel, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func (c *amqpConnection) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	return c.conn.NotifyClose(receiver)
}

func (c *amqpConnection) Close() error {
	if c.conn.IsClosed() {
		return nil
	}
	return c.conn.Close()
}
