// Package gesture converts drag, pinch and corner-resize input into
// placement transforms.
//
// Every gesture has two phases. Preview returns the live visual state while
// the gesture is in flight and never touches the model. Commit returns the
// clamped placement to hand to placement.Overlay.Update when the gesture ends.
package gesture

import (
	"math"

	"github.com/a3tai/mcp-pdf-signer/internal/geometry"
	"github.com/a3tai/mcp-pdf-signer/internal/placement"
)

// Transient is the on-screen state of a placement during a gesture
type Transient struct {
	Center   geometry.Point `json:"center"`
	Size     geometry.Size  `json:"size"`
	AngleDeg float64        `json:"angle_deg"`
}

// Bounds returns the unrotated on-screen box
func (t Transient) Bounds() geometry.Rect {
	return geometry.CenteredRect(t.Center, t.Size)
}

// Mapper maps gestures over one page's fit rectangle
type Mapper struct {
	Fit    geometry.Rect
	Limits placement.Limits
}

// NewMapper returns a mapper over fit with the given width limits
func NewMapper(fit geometry.Rect, lim placement.Limits) Mapper {
	return Mapper{Fit: fit, Limits: lim}
}

func (m Mapper) base(p placement.PlacedSignature) Transient {
	return Transient{
		Center:   p.AbsoluteCenter(m.Fit),
		Size:     p.AbsoluteSize(m.Fit),
		AngleDeg: p.AngleDeg,
	}
}

// PreviewDrag offsets the live center by translation t
func (m Mapper) PreviewDrag(p placement.PlacedSignature, t geometry.Point) Transient {
	live := m.base(p)
	live.Center = live.Center.Add(t)
	return live
}

// CommitDrag moves p by translation t. The center is clamped so the current
// box stays inside the fit rectangle; the size does not change.
func (m Mapper) CommitDrag(p placement.PlacedSignature, t geometry.Point) placement.PlacedSignature {
	if m.Fit.IsEmpty() {
		return p
	}
	live := m.PreviewDrag(p, t)
	c := placement.ClampCenter(live.Center, live.Size, m.Fit)
	n := geometry.AbsoluteToNormalized(c, m.Fit)

	p.CX = geometry.Clamp(n.X, 0, 1)
	p.CY = geometry.Clamp(n.Y, 0, 1)
	return p
}

// PreviewPinch scales the live size by scale around the unchanged center
func (m Mapper) PreviewPinch(p placement.PlacedSignature, scale float64) Transient {
	live := m.base(p)
	s := finiteScale(scale)
	live.Size = geometry.Size{W: live.Size.W * s, H: live.Size.H * s}
	return live
}

// CommitPinch multiplies the width fraction by scale, bounds it by the
// overlay limits and then by what fits around the current center.
func (m Mapper) CommitPinch(p placement.PlacedSignature, scale float64) placement.PlacedSignature {
	w := geometry.Clamp(p.WidthFrac*finiteScale(scale), m.Limits.MinFrac, m.Limits.MaxFrac)
	p.WidthFrac = math.Min(w, placement.MaxWidthFracThatFits(p.CX, p.CY, p.Aspect(), m.Fit))
	return p
}

// ResizeScale returns the live scale factor for a bottom-right handle moved
// by t. The handle's new half extents are floored at MinHalfExtent and the
// larger ratio wins, then the factor is bounded by the width limits and by
// what fits around the center.
func (m Mapper) ResizeScale(p placement.PlacedSignature, t geometry.Point) float64 {
	size := p.AbsoluteSize(m.Fit)
	if size.W <= 0 || size.H <= 0 || m.Fit.IsEmpty() {
		return 1
	}
	c := p.AbsoluteCenter(m.Fit)
	startHalfW, startHalfH := size.W/2, size.H/2

	corner := geometry.Point{X: c.X + startHalfW + t.X, Y: c.Y + startHalfH + t.Y}
	newHalfW := math.Max(corner.X-c.X, placement.MinHalfExtent)
	newHalfH := math.Max(corner.Y-c.Y, placement.MinHalfExtent)
	s := math.Max(newHalfW/startHalfW, newHalfH/startHalfH)

	dxMax := math.Min(c.X-m.Fit.MinX(), m.Fit.MaxX()-c.X)
	dyMax := math.Min(c.Y-m.Fit.MinY(), m.Fit.MaxY()-c.Y)
	maxByBounds := math.Min(dxMax, dyMax/p.Aspect()) / startHalfW

	minByFrac := m.Fit.W * m.Limits.MinFrac / size.W
	maxByFrac := m.Fit.W * m.Limits.MaxFrac / size.W

	return geometry.Clamp(s, minByFrac, math.Min(maxByFrac, maxByBounds))
}

// PreviewResize returns the live state for a corner handle moved by t
func (m Mapper) PreviewResize(p placement.PlacedSignature, t geometry.Point) Transient {
	return m.PreviewPinch(p, m.ResizeScale(p, t))
}

// CommitResize applies the resize scale to the width fraction with the same
// bounds as a pinch.
func (m Mapper) CommitResize(p placement.PlacedSignature, t geometry.Point) placement.PlacedSignature {
	if m.Fit.IsEmpty() {
		return p
	}
	s := m.ResizeScale(p, t)
	w := geometry.Clamp(p.AbsoluteSize(m.Fit).W*s/m.Fit.W, m.Limits.MinFrac, m.Limits.MaxFrac)
	p.WidthFrac = math.Min(w, placement.MaxWidthFracThatFits(p.CX, p.CY, p.Aspect(), m.Fit))
	return p
}

// SetRotation sets the rotation of p, folded into [-180, 180]
func SetRotation(p placement.PlacedSignature, angleDeg float64) placement.PlacedSignature {
	p.AngleDeg = geometry.NormalizeDegrees(angleDeg)
	return p
}

// Compose returns the live state of simultaneous drag, pinch and resize
// gestures. The pinch and handle factors multiply; the drag offsets the
// center.
func (m Mapper) Compose(p placement.PlacedSignature, drag geometry.Point, pinch float64, resize geometry.Point) Transient {
	live := m.base(p)
	s := finiteScale(pinch) * m.ResizeScale(p, resize)
	live.Size = geometry.Size{W: live.Size.W * s, H: live.Size.H * s}
	live.Center = live.Center.Add(drag)
	return live
}

func finiteScale(s float64) float64 {
	switch {
	case math.IsNaN(s) || math.IsInf(s, 0):
		return 1
	case s < 0:
		return 0
	}
	return s
}
