package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/bg-remover/internal/model"
	orderrepo "github.com/aliskhannn/bg-remover/internal/repository/order"
)

// pipeline defines the fulfillment entry point.
type pipeline interface {
	Process(ctx context.Context, ev model.OrderEvent) (model.Outcome, error)
}

// orderReader looks up the current state of an order.
type orderReader interface {
	Get(ctx context.Context, ref model.OrderRef) (model.Order, error)
}

// CreatedHandler handles Kafka messages for newly created orders.
// Delivery is at-least-once, so orders that already reached a terminal state
// are acknowledged without running the pipeline again.
type CreatedHandler struct {
	pipeline pipeline
	orders   orderReader
}

// NewCreatedHandler creates a new handler.
func NewCreatedHandler(p pipeline, r orderReader) *CreatedHandler {
	return &CreatedHandler{pipeline: p, orders: r}
}

// Handle decodes the order event and fulfills it. A returned error means the
// message must not be committed.
func (h *CreatedHandler) Handle(ctx context.Context, msg kafka.Message) error {
	var ev model.OrderEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		// Malformed events never decode, so they are acknowledged.
		zlog.Logger.Err(err).Str("message", string(msg.Value)).Msg("dropping undecodable order event")
		return nil
	}

	current, err := h.orders.Get(ctx, ev.Ref())
	switch {
	case err == nil && current.State.IsTerminal():
		zlog.Logger.Info().
			Str("order_id", ev.OrderID).
			Str("state", string(current.State)).
			Msg("order already finished, skipping redelivery")
		return nil
	case errors.Is(err, orderrepo.ErrOrderNotFound):
		// No record can ever take the terminal write, so nothing is processed.
		zlog.Logger.Warn().
			Str("order_id", ev.OrderID).
			Str("owner", ev.Owner).
			Msg("order record not found, dropping event")
		return nil
	case err != nil:
		return fmt.Errorf("look up order %s: %w", ev.Ref().Path(), err)
	}

	outcome, err := h.pipeline.Process(ctx, ev)
	if err != nil {
		if errors.Is(err, orderrepo.ErrAlreadyTerminal) {
			zlog.Logger.Info().Str("order_id", ev.OrderID).Msg("order finished concurrently")
			return nil
		}
		return fmt.Errorf("process order: %w", err)
	}

	zlog.Logger.Info().
		Str("order_id", ev.OrderID).
		Str("state", string(outcome.State())).
		Msg("order processed")

	return nil
}
