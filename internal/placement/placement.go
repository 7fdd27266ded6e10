// Package placement holds the per-page signature overlay model: which
// signature sits where on which page, at what size and rotation, and which
// one is selected.
//
// Positions are stored normalized to the page's fit rectangle so the model is
// independent of the surface it is shown on or rendered to.
package placement

import (
	"image"

	"github.com/a3tai/mcp-pdf-signer/internal/geometry"
)

const (
	// DefaultMinFrac is the smallest width fraction reachable by gestures
	DefaultMinFrac = 0.12
	// DefaultMaxFrac is the largest width fraction reachable by gestures
	DefaultMaxFrac = 0.90

	// Default anchor for a freshly added signature
	DefaultCX        = 0.5
	DefaultCY        = 0.85
	DefaultWidthFrac = 0.32

	// MinHalfExtent is the smallest half width, in fit-space units, a placement may shrink to
	MinHalfExtent = 4.0
)

// Asset is a signature image owned by the signature store. Placements keep a
// shared pointer to it and never copy the pixels.
type Asset struct {
	ID    string      `json:"id"`
	Path  string      `json:"path,omitempty"`
	Image image.Image `json:"-"`
}

// Size returns the asset's pixel dimensions
func (a *Asset) Size() geometry.Size {
	if a == nil || a.Image == nil {
		return geometry.Size{}
	}
	b := a.Image.Bounds()
	return geometry.Size{W: float64(b.Dx()), H: float64(b.Dy())}
}

// Aspect returns height/width of the asset, 1 when unknown
func (a *Asset) Aspect() float64 {
	return a.Size().Aspect()
}

// Limits bounds the width fraction of a placement
type Limits struct {
	MinFrac float64 `json:"min_frac"`
	MaxFrac float64 `json:"max_frac"`
}

// DefaultLimits returns the width bounds used by the interactive editor
func DefaultLimits() Limits {
	return Limits{MinFrac: DefaultMinFrac, MaxFrac: DefaultMaxFrac}
}

// PlacedSignature is one signature overlay on one page
type PlacedSignature struct {
	ID        string  `json:"id"`
	Asset     *Asset  `json:"-"`
	CX        float64 `json:"cx"`
	CY        float64 `json:"cy"`
	WidthFrac float64 `json:"width_frac"`
	AngleDeg  float64 `json:"angle_deg"`
	Selected  bool    `json:"selected"`
}

// Aspect returns the height/width ratio of the placed asset
func (p PlacedSignature) Aspect() float64 {
	return p.Asset.Aspect()
}

// AbsoluteCenter returns the placement center inside fit
func (p PlacedSignature) AbsoluteCenter(fit geometry.Rect) geometry.Point {
	return geometry.NormalizedToAbsolute(geometry.Point{X: p.CX, Y: p.CY}, fit)
}

// AbsoluteSize returns the unrotated placement size inside fit
func (p PlacedSignature) AbsoluteSize(fit geometry.Rect) geometry.Size {
	w := p.WidthFrac * fit.W
	return geometry.Size{W: w, H: w * p.Aspect()}
}

// Bounds returns the unrotated bounding box inside fit
func (p PlacedSignature) Bounds(fit geometry.Rect) geometry.Rect {
	return geometry.CenteredRect(p.AbsoluteCenter(fit), p.AbsoluteSize(fit))
}

// WithTransform returns p with the transform fields of next
func (p PlacedSignature) WithTransform(next PlacedSignature) PlacedSignature {
	p.CX = next.CX
	p.CY = next.CY
	p.WidthFrac = next.WidthFrac
	p.AngleDeg = next.AngleDeg
	return p
}
