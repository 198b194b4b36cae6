package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aidar/team-requests-service/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type ackedConfirmation struct{}

func (ackedConfirmation) WaitContext(context.Context) (bool, error) { return true, nil }

// heldConfirmation is acknowledged only after release is closed
type heldConfirmation struct {
	release <-chan struct{}
}

func (c heldConfirmation) WaitContext(ctx context.Context) (bool, error) {
	select {
	case <-c.release:
		return true, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

type fakeConfirmChannel struct {
	mu      sync.Mutex
	sent    []published
	failErr error
	closed  bool
	// confirmFor overrides the confirmation per exchange
	confirmFor map[string]Confirmation
}

func (c *fakeConfirmChannel) Publish(_ context.Context, exchange, key string, msg amqp.Publishing) (Confirmation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failErr != nil {
		return nil, c.failErr
	}
	c.sent = append(c.sent, published{exchange: exchange, key: key, msg: msg})
	if confirm, ok := c.confirmFor[exchange]; ok {
		return confirm, nil
	}
	return ackedConfirmation{}, nil
}

func (c *fakeConfirmChannel) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func (c *fakeConfirmChannel) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConfirmChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func TestPublisher_PublishCommand(t *testing.T) {
	ch := &fakeConfirmChannel{}
	dials := 0
	dial := func(context.Context) (ConfirmChannel, error) {
		dials++
		return ch, nil
	}
	p := NewPublisherWithDialer(dial, testTopology(), time.Second, discardLogger())

	msg := &domain.OutboxMessage{
		ID:         uuid.New(),
		RequestID:  uuid.New(),
		RoutingKey: "team.creation.reviewed",
		Payload:    []byte(`{"status":"approved"}`),
	}

	require.NoError(t, p.PublishCommand(context.Background(), msg))
	require.NoError(t, p.PublishCommand(context.Background(), msg))

	assert.Equal(t, 1, dials, "channel should be reused")
	require.Len(t, ch.sent, 2)
	assert.Equal(t, "teams_service_exchange", ch.sent[0].exchange)
	assert.Equal(t, "team.creation.reviewed", ch.sent[0].key)
	assert.Equal(t, msg.ID.String(), ch.sent[0].msg.MessageId)
	assert.Equal(t, msg.RequestID.String(), ch.sent[0].msg.CorrelationId)
	assert.Equal(t, amqp.Persistent, ch.sent[0].msg.DeliveryMode)
}

func TestPublisher_ReopensAfterFailure(t *testing.T) {
	broken := &fakeConfirmChannel{failErr: errors.New("channel closed")}
	healthy := &fakeConfirmChannel{}
	channels := []*fakeConfirmChannel{broken, healthy}
	dial := func(context.Context) (ConfirmChannel, error) {
		ch := channels[0]
		channels = channels[1:]
		return ch, nil
	}
	p := NewPublisherWithDialer(dial, testTopology(), time.Second, discardLogger())

	err := p.PublishAudit(context.Background(), "audit.requests.request.approved", "id-1", []byte(`{}`))
	require.Error(t, err)
	assert.True(t, broken.closed)

	require.NoError(t, p.PublishAudit(context.Background(), "audit.requests.request.approved", "id-2", []byte(`{}`)))
	require.Len(t, healthy.sent, 1)
	assert.Equal(t, "audit_events_exchange", healthy.sent[0].exchange)
}

func TestPublisher_DialError(t *testing.T) {
	dial := func(context.Context) (ConfirmChannel, error) {
		return nil, errors.New("connection refused")
	}
	p := NewPublisherWithDialer(dial, testTopology(), time.Second, discardLogger())

	err := p.PublishCommand(context.Background(), &domain.OutboxMessage{RoutingKey: "team.removal.reviewed"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestPublisher_PendingAuditConfirmDoesNotDelayCommands(t *testing.T) {
	release := make(chan struct{})
	ch := &fakeConfirmChannel{confirmFor: map[string]Confirmation{
		"audit_events_exchange": heldConfirmation{release: release},
	}}
	dial := func(context.Context) (ConfirmChannel, error) { return ch, nil }
	p := NewPublisherWithDialer(dial, testTopology(), 5*time.Second, discardLogger())

	auditDone := make(chan error, 1)
	go func() {
		auditDone <- p.PublishAudit(context.Background(), "audit.requests.request.approved", "id-1", []byte(`{}`))
	}()
	require.Eventually(t, func() bool { return ch.sentCount() == 1 }, time.Second, time.Millisecond)

	start := time.Now()
	err := p.PublishCommand(context.Background(), &domain.OutboxMessage{
		ID:         uuid.New(),
		RequestID:  uuid.New(),
		RoutingKey: "team.creation.reviewed",
		Payload:    []byte(`{}`),
	})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	select {
	case <-auditDone:
		t.Fatal("audit publish returned before its confirmation")
	default:
	}

	close(release)
	require.NoError(t, <-auditDone)
	assert.False(t, ch.IsClosed())
}

func TestPublisher_ConfirmTimeoutReopensChannel(t *testing.T) {
	never := make(chan struct{})
	stuck := &fakeConfirmChannel{confirmFor: map[string]Confirmation{
		"teams_service_exchange": heldConfirmation{release: never},
	}}
	healthy := &fakeConfirmChannel{}
	channels := []*fakeConfirmChannel{stuck, healthy}
	dial := func(context.Context) (ConfirmChannel, error) {
		ch := channels[0]
		channels = channels[1:]
		return ch, nil
	}
	p := NewPublisherWithDialer(dial, testTopology(), 20*time.Millisecond, discardLogger())

	msg := &domain.OutboxMessage{ID: uuid.New(), RoutingKey: "team.removal.reviewed"}
	err := p.PublishCommand(context.Background(), msg)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, stuck.IsClosed())

	require.NoError(t, p.PublishCommand(context.Background(), msg))
	assert.Equal(t, 1, healthy.sentCount())
}

func TestPublisher_Nack(t *testing.T) {
	ch := &fakeConfirmChannel{confirmFor: map[string]Confirmation{
		"teams_service_exchange": nackedConfirmation{},
	}}
	dial := func(context.Context) (ConfirmChannel, error) { return ch, nil }
	p := NewPublisherWithDialer(dial, testTopology(), time.Second, discardLogger())

	err := p.PublishCommand(context.Background(), &domain.OutboxMessage{ID: uuid.New(), RoutingKey: "team.removal.reviewed"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nacked")
}

type nackedConfirmation struct{}

func (nackedConfirmation) WaitContext(context.Context) (bool, error) { return false, nil }
