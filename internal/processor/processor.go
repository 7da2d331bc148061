package processor

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"

	"github.com/aliskhannn/bg-remover/internal/errs"
)

// Processor turns image byte buffers into derivative buffers.
// It holds no state and is safe for concurrent use on distinct buffers.
// All output is PNG so transparency from the matting step survives.
type Processor struct{}

// New creates a new Processor.
func New() *Processor {
	return &Processor{}
}

// Resize fits the image into a width x height box, preserving aspect ratio.
// Images already inside the box keep their resolution.
func (p *Processor) Resize(width, height int, buf []byte) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, errs.Wrap(errs.ErrInvalidInput, "resize", "bounding box must be positive", nil)
	}

	src, err := decode(buf)
	if err != nil {
		return nil, errs.Wrap(errs.ErrDecode, "resize", "failed to decode image", err)
	}

	// imaging.Fit never upscales.
	fitted := imaging.Fit(src, width, height, imaging.Lanczos)

	out, err := encode(fitted)
	if err != nil {
		return nil, errs.Wrap(errs.ErrEncode, "resize", "failed to encode resized image", err)
	}

	return out, nil
}

// Overlay tiles overlayBuf across the full extent of buf, starting at the
// top-left corner.
func (p *Processor) Overlay(buf, overlayBuf []byte) ([]byte, error) {
	src, err := decode(buf)
	if err != nil {
		return nil, errs.Wrap(errs.ErrDecode, "overlay", "failed to decode image", err)
	}

	tile, err := decode(overlayBuf)
	if err != nil {
		return nil, errs.Wrap(errs.ErrDecode, "overlay", "failed to decode overlay", err)
	}

	tb := tile.Bounds()
	if tb.Dx() == 0 || tb.Dy() == 0 {
		return nil, errs.Wrap(errs.ErrDecode, "overlay", "overlay has no pixels", nil)
	}

	dc := gg.NewContextForImage(src)
	for y := 0; y < dc.Height(); y += tb.Dy() {
		for x := 0; x < dc.Width(); x += tb.Dx() {
			dc.DrawImage(tile, x, y)
		}
	}

	out, err := encode(dc.Image())
	if err != nil {
		return nil, errs.Wrap(errs.ErrEncode, "overlay", "failed to encode watermarked image", err)
	}

	return out, nil
}

func decode(buf []byte) (image.Image, error) {
	return imaging.Decode(bytes.NewReader(buf))
}

func encode(img image.Image) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, img, imaging.PNG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
