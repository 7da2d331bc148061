package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/bg-remover/internal/api/respond"
	"github.com/aliskhannn/bg-remover/internal/errs"
	"github.com/aliskhannn/bg-remover/internal/model"
	orderrepo "github.com/aliskhannn/bg-remover/internal/repository/order"
)

// maxBodyBytes bounds the JSON body of a submission.
const maxBodyBytes = 64 << 10

// service defines the interface for order-related operations.
type service interface {
	Submit(ctx context.Context, owner string, p model.OrderPayload) (uuid.UUID, error)
	Get(ctx context.Context, ref model.OrderRef) (model.Order, error)
}

// Handler provides HTTP handlers for order endpoints.
type Handler struct {
	service service
}

// NewHandler creates a new Handler with the given service.
func NewHandler(s service) *Handler {
	return &Handler{service: s}
}

// Submit creates a PENDING order under the owner in the path and triggers
// its fulfillment. The caller polls Get for the terminal state.
func (h *Handler) Submit(c *ginext.Context) {
	owner := c.Param("owner")

	var p model.OrderPayload
	body := io.LimitReader(c.Request.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&p); err != nil {
		zlog.Logger.Err(err).Msg("failed to decode order payload")
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid order payload"))
		return
	}

	id, err := h.service.Submit(c.Request.Context(), owner, p)
	if err != nil {
		if errors.Is(err, errs.ErrMissingField) || errors.Is(err, errs.ErrInvalidInput) {
			zlog.Logger.Warn().Err(err).Msg("rejected order")
			respond.Fail(c, http.StatusBadRequest, err)
			return
		}

		zlog.Logger.Err(err).Msg("failed to submit order")
		respond.Fail(c, http.StatusInternalServerError, fmt.Errorf("failed to submit order"))
		return
	}

	zlog.Logger.Info().Str("order_id", id.String()).Str("owner", owner).Msg("order submitted")

	respond.Accepted(c, map[string]interface{}{
		"id":    id,
		"state": model.StatePending,
	})
}

// Get returns the current state of an order.
func (h *Handler) Get(c *ginext.Context) {
	ref := model.OrderRef{OrderID: c.Param("id"), Owner: c.Param("owner")}
	if _, err := uuid.Parse(ref.OrderID); err != nil {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid id: %v", err))
		return
	}

	o, err := h.service.Get(c.Request.Context(), ref)
	if err != nil {
		if errors.Is(err, orderrepo.ErrOrderNotFound) {
			respond.Fail(c, http.StatusNotFound, fmt.Errorf("order not found"))
			return
		}

		zlog.Logger.Err(err).Msg("failed to get order")
		respond.Fail(c, http.StatusInternalServerError, fmt.Errorf("failed to get order"))
		return
	}

	respond.OK(c, o)
}
