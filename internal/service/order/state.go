package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aliskhannn/bg-remover/internal/errs"
	"github.com/aliskhannn/bg-remover/internal/model"
	orderrepo "github.com/aliskhannn/bg-remover/internal/repository/order"
)

const defaultDiagnostic = "order processing failed"

// terminalStore persists terminal order writes.
type terminalStore interface {
	MarkSuccess(ctx context.Context, ref model.OrderRef, watermarkURL, thumbnailURL string) error
	MarkError(ctx context.Context, ref model.OrderRef, diagnostic string) error
}

// StateMachine owns the single terminal write of an order. Each write is one
// atomic update that moves a PENDING order to SUCCESS or ERROR.
//
// Failures to write are returned wrapped in errs.ErrMissingReference and are
// never retried here. A write against an order that is already terminal
// returns orderrepo.ErrAlreadyTerminal.
type StateMachine struct {
	store terminalStore
}

// NewStateMachine creates a StateMachine backed by store.
func NewStateMachine(store terminalStore) *StateMachine {
	return &StateMachine{store: store}
}

// Finish writes the terminal state matching outcome.
func (m *StateMachine) Finish(ctx context.Context, ref model.OrderRef, outcome model.Outcome) error {
	switch o := outcome.(type) {
	case model.Success:
		return m.MarkSuccess(ctx, ref, o)
	case model.Failure:
		return m.MarkError(ctx, ref, o.Diagnostic)
	default:
		return fmt.Errorf("finish %s: unknown outcome %T", ref.Path(), outcome)
	}
}

// MarkSuccess sets state SUCCESS together with both derivative URLs.
func (m *StateMachine) MarkSuccess(ctx context.Context, ref model.OrderRef, urls model.Success) error {
	if !ref.Valid() {
		return errs.Wrap(errs.ErrMissingReference, "mark success", "order reference is incomplete", nil)
	}
	if urls.WatermarkURL == "" || urls.ThumbnailURL == "" {
		return fmt.Errorf("mark success %s: watermark and thumbnail urls are both required", ref.Path())
	}

	return classify(ref, "mark success", m.store.MarkSuccess(ctx, ref, urls.WatermarkURL, urls.ThumbnailURL))
}

// MarkError sets state ERROR with a diagnostic. The diagnostic is reduced to
// valid UTF-8 without NUL bytes, since the store rejects anything else, and a
// blank one is replaced so the error field is never empty on an errored order.
func (m *StateMachine) MarkError(ctx context.Context, ref model.OrderRef, diagnostic string) error {
	if !ref.Valid() {
		return errs.Wrap(errs.ErrMissingReference, "mark error", "order reference is incomplete", nil)
	}
	diagnostic = strings.ReplaceAll(strings.ToValidUTF8(diagnostic, "\uFFFD"), "\x00", "")
	if strings.TrimSpace(diagnostic) == "" {
		diagnostic = defaultDiagnostic
	}

	return classify(ref, "mark error", m.store.MarkError(ctx, ref, diagnostic))
}

func classify(ref model.OrderRef, op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, orderrepo.ErrAlreadyTerminal):
		return err
	default:
		return errs.Wrap(errs.ErrMissingReference, op, ref.Path(), err)
	}
}
