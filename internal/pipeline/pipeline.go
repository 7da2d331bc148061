// Package pipeline fulfills background removal orders. One call to Process
// takes a created order from PENDING to exactly one terminal state.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/zlog"
	"golang.org/x/sync/errgroup"

	"github.com/aliskhannn/bg-remover/internal/errs"
	"github.com/aliskhannn/bg-remover/internal/model"
)

const (
	defaultThumbWidth  = 96
	defaultThumbHeight = 96
)

// Matting removes the background of a remote image.
type Matting interface {
	RemoveBackground(ctx context.Context, imageURL string) ([]byte, error)
}

// OverlaySource provides the watermark tile.
type OverlaySource interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// Transformer derives images from image buffers.
type Transformer interface {
	Resize(width, height int, buf []byte) ([]byte, error)
	Overlay(buf, overlayBuf []byte) ([]byte, error)
}

// ObjectStorage persists artifacts and mints download links for them.
type ObjectStorage interface {
	Upload(ctx context.Context, path string, buf []byte) error
	Sign(ctx context.Context, path string) (string, error)
}

// PathNamer derives the storage path of an artifact.
type PathNamer interface {
	Path(kind model.ArtifactKind, userID, fileName, orderID string) string
}

// PrivateIndex records where the private copy of an order lives.
type PrivateIndex interface {
	SavePrivateImage(ctx context.Context, userID, orderID, url string) error
}

// TerminalWriter performs the single terminal write of an order.
type TerminalWriter interface {
	Finish(ctx context.Context, ref model.OrderRef, outcome model.Outcome) error
}

// Deps groups the collaborators of a Pipeline.
type Deps struct {
	Matting   Matting
	Overlay   OverlaySource
	Transform Transformer
	Storage   ObjectStorage
	Namer     PathNamer
	Private   PrivateIndex
	Orders    TerminalWriter
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithThumbnailBox overrides the bounding box thumbnails are fitted into.
func WithThumbnailBox(width, height int) Option {
	return func(p *Pipeline) {
		if width > 0 && height > 0 {
			p.thumbWidth, p.thumbHeight = width, height
		}
	}
}

// Pipeline is the fulfillment orchestrator. It holds no per-order state, so
// one Pipeline serves any number of concurrent, independent orders.
type Pipeline struct {
	deps        Deps
	thumbWidth  int
	thumbHeight int
}

// New creates a Pipeline.
func New(deps Deps, opts ...Option) *Pipeline {
	p := &Pipeline{
		deps:        deps,
		thumbWidth:  defaultThumbWidth,
		thumbHeight: defaultThumbHeight,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// run carries the data of one order through the stages.
type run struct {
	ev      model.OrderEvent
	log     zerolog.Logger
	stage   model.Stage
	matted  []byte
	derived derivatives
}

type derivatives struct {
	watermark []byte
	thumbnail []byte
}

// Process drives one order to a terminal state. Any stage failure becomes an
// ERROR write carrying "<stage>: <error>". The returned error is non-nil only
// when the terminal write itself fails; the trigger should then redeliver.
func (p *Pipeline) Process(ctx context.Context, ev model.OrderEvent) (model.Outcome, error) {
	start := time.Now()
	r := &run{
		ev:    ev,
		log:   zlog.Logger.With().Str("order_id", ev.OrderID).Str("owner", ev.Owner).Logger(),
		stage: model.StageReceived,
	}

	r.log.Info().Str("stage", string(r.stage)).Msg("order received")

	var outcome model.Outcome
	urls, err := p.execute(ctx, r)
	if err != nil {
		outcome = model.Failure{Diagnostic: fmt.Sprintf("%s: %v", r.stage, err)}
		r.log.Error().Err(err).Str("stage", string(r.stage)).Msg("order failed")
		r.stage = model.StageFailed
	} else {
		outcome = urls
		r.stage = model.StageDone
	}

	if err := p.deps.Orders.Finish(ctx, ev.Ref(), outcome); err != nil {
		r.log.Error().Err(err).Str("stage", string(r.stage)).Msg("terminal write failed")
		return outcome, fmt.Errorf("process %s: %w", ev.Ref().Path(), err)
	}

	r.log.Info().
		Str("stage", string(r.stage)).
		Str("state", string(outcome.State())).
		Dur("elapsed", time.Since(start)).
		Msg("order finished")

	return outcome, nil
}

// execute runs the stages in order. r.stage names the stage being attempted,
// so on failure it identifies where the order stopped.
func (p *Pipeline) execute(ctx context.Context, r *run) (success model.Success, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()

	steps := []struct {
		stage model.Stage
		fn    func(context.Context, *run) error
	}{
		{model.StageReceived, p.validate},
		{model.StageAuthorized, p.authorize},
		{model.StageMatted, p.matte},
		{model.StagePrivateSaved, p.savePrivate},
		{model.StageDerived, p.derive},
	}

	for _, s := range steps {
		r.stage = s.stage
		if err := s.fn(ctx, r); err != nil {
			return model.Success{}, err
		}
		r.log.Debug().Str("stage", string(s.stage)).Msg("stage complete")
	}

	r.stage = model.StagePersisted
	success, err = p.persist(ctx, r)
	if err != nil {
		return model.Success{}, err
	}
	r.log.Debug().Str("stage", string(r.stage)).Msg("stage complete")

	return success, nil
}

func (p *Pipeline) validate(_ context.Context, r *run) error {
	return r.ev.Order.Validate()
}

// authorize rejects orders whose payload names a different user than the
// namespace the record was created under.
func (p *Pipeline) authorize(_ context.Context, r *run) error {
	if r.ev.Order.UserID != r.ev.Owner {
		return errs.Wrap(errs.ErrAuthorization, "authorize",
			fmt.Sprintf("userId %q does not own %s", r.ev.Order.UserID, r.ev.Ref().Path()), nil)
	}
	return nil
}

func (p *Pipeline) matte(ctx context.Context, r *run) error {
	buf, err := p.deps.Matting.RemoveBackground(ctx, r.ev.Order.OriginalURL)
	if err != nil {
		return err
	}
	if len(buf) == 0 {
		return errs.Wrap(errs.ErrUpstream, "matting", "empty image", nil)
	}
	r.matted = buf
	return nil
}

// savePrivate stores the unmodified matted image under the owner's private
// prefix and links it to the order.
func (p *Pipeline) savePrivate(ctx context.Context, r *run) error {
	o := r.ev.Order
	path := p.deps.Namer.Path(model.KindPrivate, o.UserID, o.FileName, r.ev.OrderID)

	url, err := p.uploadAndSign(ctx, path, r.matted)
	if err != nil {
		return err
	}

	if err := p.deps.Private.SavePrivateImage(ctx, o.UserID, r.ev.OrderID, url); err != nil {
		return fmt.Errorf("save private image: %w", err)
	}

	r.log.Debug().Str("path", path).Msg("private copy saved")
	return nil
}

// derive builds the watermark preview and the thumbnail in parallel.
// The first failure cancels the sibling branch; no partial result is kept.
func (p *Pipeline) derive(ctx context.Context, r *run) error {
	var d derivatives
	g, gctx := errgroup.WithContext(ctx)

	g.Go(guard(func() error {
		tile, err := p.deps.Overlay.Fetch(gctx)
		if err != nil {
			return errs.Wrap(errs.ErrDerivation, "derive", "watermark", err)
		}
		out, err := p.deps.Transform.Overlay(r.matted, tile)
		if err != nil {
			return errs.Wrap(errs.ErrDerivation, "derive", "watermark", err)
		}
		d.watermark = out
		return nil
	}))

	g.Go(guard(func() error {
		out, err := p.deps.Transform.Resize(p.thumbWidth, p.thumbHeight, r.matted)
		if err != nil {
			return errs.Wrap(errs.ErrDerivation, "derive", "thumbnail", err)
		}
		d.thumbnail = out
		return nil
	}))

	if err := g.Wait(); err != nil {
		if !errors.Is(err, errs.ErrDerivation) {
			err = errs.Wrap(errs.ErrDerivation, "derive", "", err)
		}
		return err
	}

	r.derived = d
	return nil
}

// persist uploads and signs both derivatives in parallel. Each artifact is
// signed only after its own upload completed.
func (p *Pipeline) persist(ctx context.Context, r *run) (model.Success, error) {
	o := r.ev.Order
	wmPath := p.deps.Namer.Path(model.KindWatermark, o.UserID, o.FileName, r.ev.OrderID)
	thPath := p.deps.Namer.Path(model.KindThumbnail, o.UserID, o.FileName, r.ev.OrderID)

	var urls model.Success
	g, gctx := errgroup.WithContext(ctx)

	g.Go(guard(func() error {
		u, err := p.uploadAndSign(gctx, wmPath, r.derived.watermark)
		urls.WatermarkURL = u
		return err
	}))

	g.Go(guard(func() error {
		u, err := p.uploadAndSign(gctx, thPath, r.derived.thumbnail)
		urls.ThumbnailURL = u
		return err
	}))

	if err := g.Wait(); err != nil {
		return model.Success{}, err
	}

	return urls, nil
}

func (p *Pipeline) uploadAndSign(ctx context.Context, path string, buf []byte) (string, error) {
	if err := p.deps.Storage.Upload(ctx, path, buf); err != nil {
		return "", err
	}
	return p.deps.Storage.Sign(ctx, path)
}

// guard turns a panic inside a parallel branch into an error.
func guard(fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("panic: %v", rec)
			}
		}()
		return fn()
	}
}
