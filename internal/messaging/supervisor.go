package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"
)

// ErrConnectionLost is returned by a session when the broker closes the connection or channel
var ErrConnectionLost = errors.New("broker connection lost")

// Supervisor owns the broker connection: connect, declare topology, consume, and reconnect
// after a fixed delay for as long as the context lives.
type Supervisor struct {
	dial       Dialer
	topology   Topology
	dispatcher *Dispatcher
	prefetch   int
	retryDelay time.Duration
	logger     *slog.Logger
}

// NewSupervisor creates a new Supervisor
func NewSupervisor(
	dial Dialer,
	topology Topology,
	dispatcher *Dispatcher,
	prefetch int,
	retryDelay time.Duration,
	logger *slog.Logger,
) *Supervisor {
	return &Supervisor{
		dial:       dial,
		topology:   topology,
		dispatcher: dispatcher,
		prefetch:   prefetch,
		retryDelay: retryDelay,
		logger:     logger.With("component", "supervisor"),
	}
}

// Run blocks until ctx is cancelled. Connection errors are logged and retried, never returned.
func (s *Supervisor) Run(ctx context.Context) error {
	policy := backoff.WithContext(backoff.NewConstantBackOff(s.retryDelay), ctx)

	_ = backoff.RetryNotify(func() error {
		err := s.session(ctx)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if err == nil {
			err = ErrConnectionLost
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		s.logFailure(err, wait)
	})

	s.logger.Info("consumer stopped")
	return nil
}

// session runs one connection lifetime and returns why it ended
func (s *Supervisor) session(ctx context.Context) error {
	s.logger.Info("connecting to broker")

	conn, err := s.dial(ctx)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil && !errors.Is(cerr, amqp.ErrClosed) {
			s.logger.Warn("failed to close connection", "error", cerr)
		}
	}()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}

	connClosed := conn.NotifyClose(make(chan *amqp.Error, 1))
	chClosed := ch.NotifyClose(make(chan *amqp.Error, 1))

	// Quorum queues reject global QoS; the limit applies per consumer and the
	// dispatcher's shared worker pool bounds in-flight handlers across queues
	if err := ch.Qos(s.prefetch, 0, false); err != nil {
		return fmt.Errorf("set prefetch: %w", err)
	}

	if err := s.topology.Declare(ch); err != nil {
		return fmt.Errorf("declare topology: %w", err)
	}
	s.logger.Info("topology declared", "exchange", s.topology.Exchange, "queues", len(s.topology.Bindings))

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(sessionCtx)
	for _, b := range s.topology.Bindings {
		b := b
		deliveries, err := ch.ConsumeWithContext(gctx, b.Queue, "requests-service."+b.Queue, false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("consume %s: %w", b.Queue, err)
		}
		g.Go(func() error {
			return s.dispatcher.Consume(gctx, b, deliveries)
		})
	}
	s.logger.Info("consuming", "prefetch", s.prefetch)

	consumersDone := make(chan error, 1)
	go func() { consumersDone <- g.Wait() }()

	select {
	case <-ctx.Done():
		return nil
	case amqpErr, ok := <-connClosed:
		if ok && amqpErr != nil {
			return fmt.Errorf("%w: %w", ErrConnectionLost, amqpErr)
		}
		return ErrConnectionLost
	case amqpErr, ok := <-chClosed:
		if ok && amqpErr != nil {
			return fmt.Errorf("%w: channel: %w", ErrConnectionLost, amqpErr)
		}
		return ErrConnectionLost
	case err := <-consumersDone:
		if err == nil || errors.Is(err, context.Canceled) {
			return ErrConnectionLost
		}
		return err
	}
}

func (s *Supervisor) logFailure(err error, wait time.Duration) {
	switch classify(err) {
	case failureRefused:
		s.logger.Warn("broker refused connection, retrying", "retry_in", wait, "error", err)
	case failureUnavailable:
		s.logger.Warn("broker unavailable, retrying", "retry_in", wait, "error", err)
	default:
		s.logger.Error("consumer failed, retrying", "retry_in", wait, "error", err)
	}
}

type failureKind int

const (
	failureUnexpected failureKind = iota
	failureRefused
	failureUnavailable
)

func classify(err error) failureKind {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return failureRefused
	}

	var amqpErr *amqp.Error
	if errors.As(err, &amqpErr) || errors.Is(err, amqp.ErrClosed) || errors.Is(err, ErrConnectionLost) {
		return failureUnavailable
	}

	return failureUnexpected
}
