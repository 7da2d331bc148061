package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/aliskhannn/bg-remover/internal/errs"
)

// State is the persisted lifecycle state of an order.
type State string

const (
	StatePending State = "PENDING"
	StateSuccess State = "SUCCESS"
	StateError   State = "ERROR"
)

// IsTerminal reports whether the state is final for the pipeline.
func (s State) IsTerminal() bool {
	return s == StateSuccess || s == StateError
}

// Order represents a background removal order as stored in the document store.
type Order struct {
	ID           string    `json:"id"`
	Owner        string    `json:"owner"` // namespace segment the record lives under
	UserID       string    `json:"userId"`
	OriginalURL  string    `json:"originalURL"`
	FileName     string    `json:"fileName"`
	State        State     `json:"state"`
	Error        string    `json:"error,omitempty"`
	DownloadURL  string    `json:"downloadURL,omitempty"`
	WatermarkURL string    `json:"watermarkURL,omitempty"`
	ThumbnailURL string    `json:"thumbnailURL,omitempty"`
	PreviewURL   string    `json:"previewURL,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// OrderPayload holds the fields a submitter writes when creating an order.
type OrderPayload struct {
	UserID      string `json:"userId"`
	OriginalURL string `json:"originalURL"`
	FileName    string `json:"fileName"`
}

// OrderEvent is delivered by the trigger once per created order record.
type OrderEvent struct {
	OrderID string       `json:"orderId"`
	Owner   string       `json:"owner"`
	Order   OrderPayload `json:"order"`
}

// Ref returns the reference of the order record the event was raised for.
func (e OrderEvent) Ref() OrderRef {
	return OrderRef{OrderID: e.OrderID, Owner: e.Owner}
}

// OrderRef addresses a single order record inside its owner namespace.
type OrderRef struct {
	OrderID string
	Owner   string
}

// Valid reports whether both parts of the reference are present.
func (r OrderRef) Valid() bool {
	return r.OrderID != "" && r.Owner != ""
}

// Path renders the document path of the order, e.g. users/u1/orders/42.
func (r OrderRef) Path() string {
	return fmt.Sprintf("users/%s/orders/%s", r.Owner, r.OrderID)
}

// PrivateImagePath renders the sidecar document path that links an order to
// its private full-resolution copy.
func PrivateImagePath(userID, orderID string) string {
	return fmt.Sprintf("users/%s/private_images/%s", userID, orderID)
}

// Validate checks that every field the pipeline needs is present.
func (p OrderPayload) Validate() error {
	missing := make([]string, 0, 3)
	if strings.TrimSpace(p.UserID) == "" {
		missing = append(missing, "userId")
	}
	if strings.TrimSpace(p.OriginalURL) == "" {
		missing = append(missing, "originalURL")
	}
	if strings.TrimSpace(p.FileName) == "" {
		missing = append(missing, "fileName")
	}
	if len(missing) > 0 {
		return errs.Wrap(errs.ErrMissingField, "validate", strings.Join(missing, ", ")+" required", nil)
	}
	return nil
}
