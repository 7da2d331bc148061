package consumer

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/bg-remover/internal/config"
)

// createdHandler defines the interface for handling order created messages.
type createdHandler interface {
	Handle(ctx context.Context, msg kafka.Message) error
}

// client is the subset of the wbf Kafka consumer used by Consumer.
type client interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msg kafka.Message) error
	Close() error
}

// defaultFailureDelay is the pause before a failed message is handled again.
const defaultFailureDelay = 2 * time.Second

// Consumer represents a Kafka consumer along with its configuration
// and the handler that fulfills created orders.
type Consumer struct {
	Client         client
	createdHandler createdHandler
	cfg            *config.Kafka
	strategy       retry.Strategy
	failureDelay   time.Duration
}

// New creates a new Consumer.
// - cfg: Kafka configuration struct
// - s: retry strategy
// - h: handler for order created messages
func New(
	cfg *config.Kafka,
	s retry.Strategy,
	h createdHandler,
) *Consumer {
	return newConsumer(wbfkafka.NewConsumer(cfg.Brokers, cfg.Topic, cfg.GroupID), cfg, s, h)
}

func newConsumer(cl client, cfg *config.Kafka, s retry.Strategy, h createdHandler) *Consumer {
	return &Consumer{
		Client:         cl,
		createdHandler: h,
		cfg:            cfg,
		strategy:       s,
		failureDelay:   defaultFailureDelay,
	}
}

// Consume continuously fetches messages from Kafka, processes them using the handler,
// and commits offsets after successful processing. A message whose handling
// failed is handled again after failureDelay; the consumer does not fetch
// past it, since committing a later offset would also commit it.
// It stops gracefully on context cancellation.
func (c *Consumer) Consume(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	zlog.Logger.Info().
		Str("topic", c.cfg.Topic).
		Msg("starting consumer")

	for {
		// Exit if context is canceled (graceful shutdown).
		if ctx.Err() != nil {
			zlog.Logger.Info().Msg("shutdown signal received, stopping consumer")
			return
		}

		// Fetch a message from Kafka with retries.
		var msg kafka.Message
		err := retry.Do(func() error {
			var fetchErr error
			msg, fetchErr = c.Client.Fetch(ctx)
			return fetchErr
		}, c.strategy)

		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			zlog.Logger.Err(err).Msg("failed to fetch message")
			time.Sleep(500 * time.Millisecond)
			continue
		}

		if !c.handle(ctx, msg) {
			continue
		}

		// Commit the message with retries.
		err = retry.Do(func() error {
			return c.Client.Commit(ctx, msg)
		}, c.strategy)
		if err != nil {
			zlog.Logger.Err(err).Msg("failed to commit message after retries")
			continue
		}

		zlog.Logger.Info().
			Int64("offset", msg.Offset).
			Str("key", string(msg.Key)).
			Msg("message handled successfully")
	}
}

// handle runs the handler on msg until it succeeds. It returns false if ctx
// was cancelled first, leaving msg uncommitted.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) bool {
	for {
		err := c.createdHandler.Handle(ctx, msg)
		if err == nil {
			return true
		}

		zlog.Logger.Err(err).
			Str("key", string(msg.Key)).
			Int64("offset", msg.Offset).
			Msg("failed to fulfill order, will retry")

		select {
		case <-ctx.Done():
			return false
		case <-time.After(c.failureDelay):
		}
	}
}
