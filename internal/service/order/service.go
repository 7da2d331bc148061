package order

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/aliskhannn/bg-remover/internal/errs"
	"github.com/aliskhannn/bg-remover/internal/model"
)

// repository defines the order persistence used by the submission flow.
type repository interface {
	Create(ctx context.Context, o model.Order) (uuid.UUID, error)
	Get(ctx context.Context, ref model.OrderRef) (model.Order, error)
}

// producer defines the interface for publishing order events into a message broker (e.g., Kafka).
type producer interface {
	Produce(ctx context.Context, ev model.OrderEvent) error
}

// Service provides the submission side of orders.
// It stores new orders as PENDING and publishes the created event that
// triggers fulfillment.
type Service struct {
	repo     repository
	producer producer
}

// NewService creates a new Service with the given repository and producer.
func NewService(r repository, p producer) *Service {
	return &Service{repo: r, producer: p}
}

// Submit creates a PENDING order under owner and publishes its created event.
func (s *Service) Submit(ctx context.Context, owner string, p model.OrderPayload) (uuid.UUID, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return uuid.Nil, errs.Wrap(errs.ErrMissingField, "submit", "owner is required", nil)
	}
	if err := p.Validate(); err != nil {
		return uuid.Nil, err
	}
	if u, err := url.Parse(p.OriginalURL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return uuid.Nil, errs.Wrap(errs.ErrInvalidInput, "submit", "originalURL must be an absolute http(s) url", nil)
	}

	id, err := s.repo.Create(ctx, model.Order{
		Owner:       owner,
		UserID:      p.UserID,
		OriginalURL: p.OriginalURL,
		FileName:    p.FileName,
		State:       model.StatePending,
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("submit: failed to create order: %w", err)
	}

	ev := model.OrderEvent{OrderID: id.String(), Owner: owner, Order: p}
	if err := s.producer.Produce(ctx, ev); err != nil {
		return uuid.Nil, fmt.Errorf("submit: failed to publish order event: %w", err)
	}

	return id, nil
}

// Get returns the current state of an order.
func (s *Service) Get(ctx context.Context, ref model.OrderRef) (model.Order, error) {
	o, err := s.repo.Get(ctx, ref)
	if err != nil {
		return model.Order{}, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}
