package compose

import (
	"bytes"
	"image"
	"io"

	"seehuhn.de/go/pdf"
	"seehuhn.de/go/pdf/graphics"
	"seehuhn.de/go/pdf/graphics/color"
	pdfimage "seehuhn.de/go/pdf/graphics/image"
	"seehuhn.de/go/geom/matrix"
	"seehuhn.de/go/pdf/pagetree"

	"github.com/a3tai/mcp-pdf-signer/internal/geometry"
	"github.com/a3tai/mcp-pdf-signer/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-signer/internal/placement"
)

// Result describes a synthesized document
type Result struct {
	Pages []PageLayout `json:"pages"`
	Bytes int64        `json:"bytes"`
}

// Composer renders pages and their placements into a PDF
type Composer struct {
	opts Options
}

// New creates a Composer with the given options
func New(opts Options) *Composer {
	return &Composer{opts: opts.normalized()}
}

// Options returns the effective options
func (c *Composer) Options() Options {
	return c.opts
}

// Compose writes one PDF page per input page to w.
//
// Each page image is aspect-fit into the page's content area, then each
// placement is drawn in slice order, rotated about its own center. A
// signature asset used on several pages is embedded once.
func (c *Composer) Compose(pages []Page, w io.Writer) (*Result, error) {
	if len(pages) == 0 {
		return nil, errors.New(errors.ErrorTypeEmptyInput, "no pages to compose")
	}
	for i, page := range pages {
		if page.Image == nil || page.Image.Bounds().Empty() {
			return nil, errors.New(errors.ErrorTypeDecodeFailure, "page image is missing or empty").WithPage(i + 1)
		}
	}

	cw := &countingWriter{w: w}
	result := &Result{Pages: make([]PageLayout, 0, len(pages))}

	out, err := pdf.NewWriter(cw, pdf.V1_4, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeWriteFailure, "start document", err)
	}
	rm := pdf.NewResourceManager(out)
	tree := pagetree.NewWriter(out)

	// the resource manager embeds each *Dict once, so assets map to one dict
	assets := make(map[*placement.Asset]*pdfimage.Dict)

	for i, page := range pages {
		layout := LayoutPage(i, imageSize(page.Image), page.Placements, c.opts)

		var content bytes.Buffer
		gw := graphics.NewWriter(&content, rm)
		drawImage(gw, imageXObject(page.Image), layout.ImageMatrix)
		if gw.Err != nil {
			return nil, errors.Wrap(errors.ErrorTypeWriteFailure, "encode page image", gw.Err).WithPage(i + 1)
		}

		for _, pl := range layout.Placements {
			xobj, ok := assets[pl.Asset]
			if !ok {
				xobj = imageXObject(pl.Asset.Image)
				assets[pl.Asset] = xobj
			}
			drawImage(gw, xobj, pl.Matrix)
			if gw.Err != nil {
				return nil, errors.Wrap(errors.ErrorTypeWriteFailure, "encode signature image", gw.Err).
					WithPage(i + 1).WithContext(pl.ID)
			}
		}

		if err := writePage(out, tree, layout.PageSize, gw.Resources, content.Bytes()); err != nil {
			return nil, errors.Wrap(errors.ErrorTypeWriteFailure, "write page", err).WithPage(i + 1)
		}
		result.Pages = append(result.Pages, layout)
	}

	pagesRef, err := tree.Close()
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeWriteFailure, "write page tree", err)
	}
	out.GetMeta().Catalog.Pages = pagesRef
	if c.opts.Producer != "" {
		out.GetMeta().Info = &pdf.Info{Producer: pdf.TextString(c.opts.Producer)}
	}

	if err := rm.Close(); err != nil {
		return nil, errors.Wrap(errors.ErrorTypeWriteFailure, "write resources", err)
	}
	err = out.Close()
	result.Bytes = cw.n
	if err != nil {
		return result, errors.Wrap(errors.ErrorTypeWriteFailure, "write document", err)
	}
	return result, nil
}

// writePage stores the compressed content stream and adds the page to tree
func writePage(out *pdf.Writer, tree *pagetree.Writer, size geometry.Size, res *pdf.Resources, content []byte) error {
	contentRef := out.Alloc()
	stm, err := out.OpenStream(contentRef, nil, pdf.FilterCompress{})
	if err != nil {
		return err
	}
	if _, err := stm.Write(content); err != nil {
		return err
	}
	if err := stm.Close(); err != nil {
		return err
	}

	return tree.AppendPageRef(out.Alloc(), pdf.Dict{
		"Type":      pdf.Name("Page"),
		"MediaBox":  pdf.Array{pdf.Integer(0), pdf.Integer(0), pdf.Number(size.W), pdf.Number(size.H)},
		"Resources": pdf.AsDict(res),
		"Contents":  contentRef,
	})
}

// drawImage paints the unit square of xobj through m
func drawImage(gw *graphics.Writer, xobj *pdfimage.Dict, m geometry.Matrix) {
	gw.PushGraphicsState()
	gw.Transform(matrix.Matrix(m))
	gw.DrawXObject(xobj)
	gw.PopGraphicsState()
}

// imageXObject describes img as an 8-bit image XObject. Gray rasters keep a
// single DeviceGray channel; anything with transparency gets a mask built
// from its alpha channel.
func imageXObject(img image.Image) *pdfimage.Dict {
	var cs color.Space = color.DeviceRGBSpace
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		cs = color.DeviceGraySpace
	}
	if isOpaque(img) {
		return pdfimage.FromImage(img, cs, 8)
	}
	return pdfimage.FromImageWithMask(img, img, cs, 8)
}

func isOpaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0xffff {
				return false
			}
		}
	}
	return true
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// Compose is a shorthand for New(opts).Compose(pages, w)
func Compose(pages []Page, w io.Writer, opts Options) (*Result, error) {
	return New(opts).Compose(pages, w)
}
