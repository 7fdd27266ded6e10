package compose

import (
	"image"

	"github.com/a3tai/mcp-pdf-signer/internal/geometry"
	"github.com/a3tai/mcp-pdf-signer/internal/placement"
)

// Page is one input page: a raster and the placements drawn over it
type Page struct {
	Image      image.Image
	Placements []placement.PlacedSignature
}

// PageLayout is the resolved geometry of one output page
type PageLayout struct {
	Index    int           `json:"index"`
	PageSize geometry.Size `json:"page_size"`
	// Fit is the page image rectangle in top-left layout space
	Fit geometry.Rect `json:"fit"`
	// ImageMatrix draws the unit square onto the fit rectangle in PDF space
	ImageMatrix geometry.Matrix   `json:"image_matrix"`
	Placements  []PlacementLayout `json:"placements"`
}

// PlacementLayout is the resolved geometry of one signature in PDF space
type PlacementLayout struct {
	ID       string           `json:"id"`
	Asset    *placement.Asset `json:"-"`
	Center   geometry.Point   `json:"center"`
	Size     geometry.Size    `json:"size"`
	AngleDeg float64          `json:"angle_deg"`
	Matrix   geometry.Matrix  `json:"matrix"`
}

// LayoutPage resolves the page size, fit rectangle and placement transforms
// for an image of the given pixel size.
//
// Layout is computed in a top-left, y-down space like the editor's, and
// flipped into PDF's bottom-left space when the matrices are built.
func LayoutPage(index int, imgSize geometry.Size, placements []placement.PlacedSignature, opts Options) PageLayout {
	opts = opts.normalized()

	var pageSize geometry.Size
	var content geometry.Rect
	switch opts.Sizing {
	case SizingNative:
		pageSize = imgSize
		content = geometry.RectFromSize(imgSize)
	default:
		pageSize = opts.PageSize
		content = geometry.RectFromSize(pageSize).Inset(opts.Margin, opts.Margin)
	}

	fit := geometry.AspectFitIn(imgSize, content)
	layout := PageLayout{
		Index:       index,
		PageSize:    pageSize,
		Fit:         fit,
		ImageMatrix: geometry.Scale(fit.W, fit.H).Multiply(geometry.Translate(fit.X, pageSize.H-fit.MaxY())),
		Placements:  make([]PlacementLayout, 0, len(placements)),
	}

	for _, p := range placements {
		if p.Asset == nil || p.Asset.Image == nil {
			continue
		}
		size := p.AbsoluteSize(fit)
		if size.IsEmpty() {
			continue
		}
		c := p.AbsoluteCenter(fit)
		center := geometry.Point{X: c.X, Y: pageSize.H - c.Y}

		// clockwise on screen is negative in a y-up space
		m := geometry.Scale(size.W, size.H).
			Multiply(geometry.Translate(-size.W/2, -size.H/2)).
			Multiply(geometry.Rotate(-geometry.Radians(p.AngleDeg))).
			Multiply(geometry.Translate(center.X, center.Y))

		layout.Placements = append(layout.Placements, PlacementLayout{
			ID:       p.ID,
			Asset:    p.Asset,
			Center:   center,
			Size:     size,
			AngleDeg: p.AngleDeg,
			Matrix:   m,
		})
	}
	return layout
}

func imageSize(img image.Image) geometry.Size {
	b := img.Bounds()
	return geometry.Size{W: float64(b.Dx()), H: float64(b.Dy())}
}
