package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/aliskhannn/bg-remover/internal/model"
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrAlreadyTerminal = errors.New("order already in terminal state")
)

// querier is satisfied by *sql.DB, e.g. the dbpg master connection.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Repository stores order records scoped by owner namespace, plus the private
// image sidecar records.
type Repository struct {
	db querier
}

// NewRepository creates a new Repository with the given DB connection.
func NewRepository(db querier) *Repository {
	return &Repository{db: db}
}

// Create inserts a new PENDING order under its owner and returns its UUID.
func (r *Repository) Create(ctx context.Context, o model.Order) (uuid.UUID, error) {
	query := `
		INSERT INTO orders (id, owner, user_id, original_url, file_name, state)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	id := uuid.New()
	_, err := r.db.ExecContext(
		ctx, query, id, o.Owner, o.UserID, o.OriginalURL, o.FileName, model.StatePending,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create: failed to save order: %w", err)
	}

	return id, nil
}

// Get retrieves an order by reference.
func (r *Repository) Get(ctx context.Context, ref model.OrderRef) (model.Order, error) {
	id, err := uuid.Parse(ref.OrderID)
	if err != nil {
		return model.Order{}, ErrOrderNotFound
	}

	query := `
		SELECT owner, user_id, original_url, file_name, state, error,
		       download_url, watermark_url, thumbnail_url, preview_url,
		       created_at, updated_at
		FROM orders
		WHERE id = $1 AND owner = $2
	`

	var o model.Order
	err = r.db.QueryRowContext(ctx, query, id, ref.Owner).Scan(
		&o.Owner, &o.UserID, &o.OriginalURL, &o.FileName, &o.State, &o.Error,
		&o.DownloadURL, &o.WatermarkURL, &o.ThumbnailURL, &o.PreviewURL,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Order{}, ErrOrderNotFound
		}

		return model.Order{}, fmt.Errorf("get: failed to get order: %w", err)
	}

	o.ID = id.String()

	return o, nil
}

// MarkSuccess moves a PENDING order to SUCCESS with both derivative URLs in a
// single update.
func (r *Repository) MarkSuccess(ctx context.Context, ref model.OrderRef, watermarkURL, thumbnailURL string) error {
	query := `
		UPDATE orders
		SET state = $1, watermark_url = $2, thumbnail_url = $3, error = '', updated_at = now()
		WHERE id = $4 AND owner = $5 AND state = $6
	`

	return r.terminalUpdate(ctx, ref, query, model.StateSuccess, watermarkURL, thumbnailURL)
}

// MarkError moves a PENDING order to ERROR with a diagnostic in a single update.
func (r *Repository) MarkError(ctx context.Context, ref model.OrderRef, diagnostic string) error {
	query := `
		UPDATE orders
		SET state = $1, error = $2, updated_at = now()
		WHERE id = $3 AND owner = $4 AND state = $5
	`

	return r.terminalUpdate(ctx, ref, query, model.StateError, diagnostic)
}

// terminalUpdate runs query with args followed by id, owner and the PENDING
// guard. It tells a missing record apart from an already finished one.
func (r *Repository) terminalUpdate(ctx context.Context, ref model.OrderRef, query string, args ...interface{}) error {
	id, err := uuid.Parse(ref.OrderID)
	if err != nil {
		return ErrOrderNotFound
	}

	args = append(args, id, ref.Owner, model.StatePending)

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update: failed to update order: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update: failed to get number of rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var state model.State
	err = r.db.QueryRowContext(ctx, `SELECT state FROM orders WHERE id = $1 AND owner = $2`, id, ref.Owner).Scan(&state)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("update: failed to check order state: %w", err)
	}

	return fmt.Errorf("update: %w (%s)", ErrAlreadyTerminal, state)
}

// SavePrivateImage links an order to the signed URL of its private
// full-resolution copy. Saving again for the same order replaces the URL.
func (r *Repository) SavePrivateImage(ctx context.Context, userID, orderID, url string) error {
	query := `
		INSERT INTO private_images (user_id, order_id, url)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, order_id) DO UPDATE SET url = EXCLUDED.url
	`

	if _, err := r.db.ExecContext(ctx, query, userID, orderID, url); err != nil {
		return fmt.Errorf("save private image %s: %w", model.PrivateImagePath(userID, orderID), err)
	}

	return nil
}
