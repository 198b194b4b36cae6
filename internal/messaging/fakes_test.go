package messaging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/mock"

	"github.com/aidar/team-requests-service/internal/config"
	"github.com/aidar/team-requests-service/internal/domain"
	"github.com/aidar/team-requests-service/internal/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testTopology() Topology {
	return NewTopology(config.TopologyConfig{
		CommandsExchange:    "teams_commands_exchange",
		DeadLetterExchange:  "requests_service.dlx",
		DeadLetterQueue:     "requests_service.queue.dead_letter",
		TeamCreationQueue:   "requests_service.queue.team_creation",
		TeamCreationKey:     "team.creation.requested",
		TeamDeletionQueue:   "requests_service.queue.team_deletion",
		TeamDeletionKey:     "team.deletion.requested",
		MemberAdditionQueue: "requests_service.queue.member_addition",
		MemberAdditionKey:   "team.member.addition.requested",
		MemberRemovalQueue:  "requests_service.queue.member_removal",
		MemberRemovalKey:    "team.member.removal.requested",
	}, 5)
}

// fakeAcknowledger records the acknowledgement of a delivery
type fakeAcknowledger struct {
	mu      sync.Mutex
	acked   bool
	nacked  bool
	requeue bool
}

func (a *fakeAcknowledger) Ack(uint64, bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = true
	return nil
}

func (a *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacked = true
	a.requeue = requeue
	return nil
}

func (a *fakeAcknowledger) Reject(_ uint64, requeue bool) error {
	return a.Nack(0, false, requeue)
}

func (a *fakeAcknowledger) settled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.acked || a.nacked
}

func delivery(body string, ack *fakeAcknowledger) amqp.Delivery {
	return amqp.Delivery{
		Acknowledger: ack,
		DeliveryTag:  1,
		RoutingKey:   "team.creation.requested",
		Body:         []byte(body),
	}
}

// MockHandler
type MockHandler struct {
	mock.Mock
}

func (m *MockHandler) Materialize(ctx context.Context, cmd service.RequestCommand) (*domain.Request, bool, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).(*domain.Request), args.Bool(1), args.Error(2)
}

type declared struct {
	kind string
	name string
	args amqp.Table
}

// fakeChannel is an in-memory Channel
type fakeChannel struct {
	mu           sync.Mutex
	declarations []declared
	bindings     map[string]string
	prefetch     int
	global       bool
	deliveries   map[string]chan amqp.Delivery
	closers      []chan *amqp.Error
	closed       bool
	consumeErr   error
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		bindings:   map[string]string{},
		deliveries: map[string]chan amqp.Delivery{},
	}
}

func (c *fakeChannel) Qos(prefetchCount, _ int, global bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prefetch = prefetchCount
	c.global = global
	return nil
}

func (c *fakeChannel) ExchangeDeclare(name, kind string, _, _, _, _ bool, _ amqp.Table) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.declarations = append(c.declarations, declared{kind: "exchange:" + kind, name: name})
	return nil
}

func (c *fakeChannel) QueueDeclare(name string, _, _, _, _ bool, args amqp.Table) (amqp.Queue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.declarations = append(c.declarations, declared{kind: "queue", name: name, args: args})
	return amqp.Queue{Name: name}, nil
}

func (c *fakeChannel) QueueBind(name, key, exchange string, _ bool, _ amqp.Table) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bindings[name] = exchange + "/" + key
	return nil
}

func (c *fakeChannel) ConsumeWithContext(
	ctx context.Context,
	queue, _ string,
	_, _, _, _ bool,
	_ amqp.Table,
) (<-chan amqp.Delivery, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.consumeErr != nil {
		return nil, c.consumeErr
	}
	// the broker refuses quorum consumers on a channel with global qos
	if c.global && c.isQuorumLocked(queue) {
		return nil, &amqp.Error{Code: amqp.NotImplemented, Reason: "queue " + queue + " does not support global qos"}
	}
	ch := make(chan amqp.Delivery, 16)
	c.deliveries[queue] = ch
	return ch, nil
}

func (c *fakeChannel) isQuorumLocked(queue string) bool {
	for _, d := range c.declarations {
		if d.kind == "queue" && d.name == queue && d.args["x-queue-type"] == "quorum" {
			return true
		}
	}
	return false
}

func (c *fakeChannel) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closers = append(c.closers, receiver)
	return receiver
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeChannel) deliver(queue string, d amqp.Delivery) bool {
	c.mu.Lock()
	ch, ok := c.deliveries[queue]
	c.mu.Unlock()
	if !ok {
		return false
	}
	ch <- d
	return true
}

func (c *fakeChannel) consuming(queue string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.deliveries[queue]
	return ok
}

func (c *fakeChannel) qos() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prefetch, c.global
}

func (c *fakeChannel) queueArgs(name string) amqp.Table {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range c.declarations {
		if d.kind == "queue" && d.name == name {
			return d.args
		}
	}
	return nil
}

// fakeConnection is an in-memory Connection
type fakeConnection struct {
	mu      sync.Mutex
	channel *fakeChannel
	closers []chan *amqp.Error
	closed  bool
}

func (c *fakeConnection) Channel() (Channel, error) {
	return c.channel, nil
}

func (c *fakeConnection) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closers = append(c.closers, receiver)
	return receiver
}

func (c *fakeConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConnection) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// drop simulates the broker closing the connection
func (c *fakeConnection) drop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.closers {
		r <- &amqp.Error{Code: amqp.ConnectionForced, Reason: "CONNECTION_FORCED - broker shutdown"}
	}
}

// scriptedDialer returns queued results in order; once exhausted it keeps failing
type scriptedDialer struct {
	mu      sync.Mutex
	results []dialResult
	calls   int
}

type dialResult struct {
	conn *fakeConnection
	err  error
}

func (d *scriptedDialer) dial(context.Context) (Connection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if len(d.results) == 0 {
		return nil, errors.New("no more connections")
	}
	r := d.results[0]
	d.results = d.results[1:]
	if r.err != nil {
		return nil, r.err
	}
	return r.conn, nil
}

func (d *scriptedDialer) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}
