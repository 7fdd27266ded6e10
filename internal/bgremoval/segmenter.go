// Package bgremoval removes the background of a signature photo and keeps a
// working buffer the user touches up with paint and erase strokes before the
// result is trimmed and saved as a signature asset.
package bgremoval

import (
	"context"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
)

// DefaultContrast is the contrast boost applied before the luminance is
// turned into alpha
const DefaultContrast = 1.2

// Segmenter makes the background of an opaque image transparent. The result
// must have the same bounds as the input, with alpha holding foreground
// confidence.
type Segmenter interface {
	Segment(ctx context.Context, src image.Image) (*image.NRGBA, error)
}

// SegmenterFunc adapts a function to the Segmenter interface
type SegmenterFunc func(ctx context.Context, src image.Image) (*image.NRGBA, error)

// Segment calls f(ctx, src)
func (f SegmenterFunc) Segment(ctx context.Context, src image.Image) (*image.NRGBA, error) {
	return f(ctx, src)
}

// LumaSegmenter treats dark ink on light paper as foreground: the image is
// desaturated, contrast boosted, inverted, and the result becomes the alpha
// of the original colors.
type LumaSegmenter struct {
	Contrast float64
}

// Segment implements Segmenter
func (s LumaSegmenter) Segment(ctx context.Context, src image.Image) (*image.NRGBA, error) {
	contrast := s.Contrast
	if contrast <= 0 || math.IsNaN(contrast) || math.IsInf(contrast, 0) {
		contrast = DefaultContrast
	}

	in := toNRGBA(src)
	b := in.Bounds()
	out := image.NewNRGBA(b)

	for y := b.Min.Y; y < b.Max.Y; y++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for x := b.Min.X; x < b.Max.X; x++ {
			c := in.NRGBAAt(x, y)
			luma := (0.2126*float64(c.R) + 0.7152*float64(c.G) + 0.0722*float64(c.B)) / 255
			v := (luma-0.5)*contrast + 0.5
			v = math.Max(0, math.Min(1, v))
			alpha := 1 - v
			if c.A != 255 {
				alpha *= float64(c.A) / 255
			}
			out.SetNRGBA(x, y, color.NRGBA{R: c.R, G: c.G, B: c.B, A: uint8(math.Round(alpha * 255))})
		}
	}
	return out, nil
}

// toNRGBA returns a copy of img as *image.NRGBA with a zero origin
func toNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	if src, ok := img.(*image.NRGBA); ok {
		for y := 0; y < b.Dy(); y++ {
			i := src.PixOffset(b.Min.X, b.Min.Y+y)
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+4*b.Dx()], src.Pix[i:i+4*b.Dx()])
		}
		return dst
	}
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// opaque returns a copy of img with every pixel at full alpha
func opaque(img image.Image) *image.NRGBA {
	dst := toNRGBA(img)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 255
	}
	return dst
}

func clone(img *image.NRGBA) *image.NRGBA {
	if img == nil {
		return nil
	}
	dst := image.NewNRGBA(img.Rect)
	copy(dst.Pix, img.Pix)
	return dst
}
