package importer

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"log"
	"math"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/image/draw"

	"github.com/a3tai/mcp-pdf-signer/internal/geometry"
	"github.com/a3tai/mcp-pdf-signer/internal/pdf/errors"
)

const (
	// DefaultImportScale is the raster scale applied to PDF page dimensions
	DefaultImportScale = 2.0
	MinImportScale     = 1.0
	MaxImportScale     = 4.0

	// maxPagePixels bounds a single rasterized page
	maxPagePixels = 64 << 20
)

// ClampScale returns scale bounded to [MinImportScale, MaxImportScale];
// non-finite or non-positive values select the default
func ClampScale(scale float64) float64 {
	if math.IsNaN(scale) || math.IsInf(scale, 0) || scale <= 0 {
		return DefaultImportScale
	}
	return geometry.Clamp(scale, MinImportScale, MaxImportScale)
}

// ScaleForMaxDimension returns the scale that makes the longest side of page
// close to maxDim, bounded like ClampScale
func ScaleForMaxDimension(page geometry.Size, maxDim float64) float64 {
	longest := math.Max(page.W, page.H)
	if longest <= 0 || maxDim <= 0 {
		return DefaultImportScale
	}
	return math.Max(MinImportScale, math.Min(maxDim/longest, MaxImportScale))
}

// ImportResult holds the rasterized pages of a document and the pages that
// were skipped
type ImportResult struct {
	Pages     []PageImage             `json:"pages"`
	PageCount int                     `json:"page_count"`
	Scale     float64                 `json:"scale"`
	Skipped   *errors.ErrorCollection `json:"skipped"`
}

// PDFImporter turns the pages of a PDF document into page images.
//
// Each page becomes a white canvas of the page's dimensions times the
// import scale; the largest raster image on the page is resampled onto it.
// Scanned documents carry their content in exactly that image. Pages whose
// image cannot be decoded are skipped.
type PDFImporter struct {
	conf *model.Configuration
}

// NewPDFImporter creates an importer using relaxed validation
func NewPDFImporter() *PDFImporter {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDFImporter{conf: conf}
}

// ImportFile imports the document at path
func (imp *PDFImporter) ImportFile(ctx context.Context, path string, scale float64) (*ImportResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	res, err := imp.Import(ctx, f, scale)
	if err != nil {
		return nil, err
	}
	for i := range res.Pages {
		res.Pages[i].Source = path
	}
	res.Skipped.FilePath = path
	return res, nil
}

// Import imports the document read from rs
func (imp *PDFImporter) Import(ctx context.Context, rs io.ReadSeeker, scale float64) (*ImportResult, error) {
	scale = ClampScale(scale)

	pctx, err := api.ReadContext(rs, imp.conf)
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeDecodeFailure, "read PDF", err)
	}
	if err := pctx.EnsurePageCount(); err != nil {
		return nil, errors.Wrap(errors.ErrorTypeDecodeFailure, "count pages", err)
	}
	dims, err := pctx.PageDims()
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeDecodeFailure, "read page dimensions", err)
	}

	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Wrap(errors.ErrorTypeDecodeFailure, "rewind PDF", err)
	}
	raw, err := api.ExtractImagesRaw(rs, nil, imp.conf)
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeDecodeFailure, "extract page images", err)
	}

	// largest image per page number
	largest := make(map[int]model.Image)
	for _, pageImages := range raw {
		for _, img := range pageImages {
			cur, ok := largest[img.PageNr]
			if !ok || img.Width*img.Height > cur.Width*cur.Height {
				largest[img.PageNr] = img
			}
		}
	}

	res := &ImportResult{
		Pages:     make([]PageImage, 0, pctx.PageCount),
		PageCount: pctx.PageCount,
		Scale:     scale,
		Skipped:   errors.NewErrorCollection(""),
	}

	for i := 0; i < pctx.PageCount && i < len(dims); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pageNr := i + 1
		size := geometry.Size{W: dims[i].Width, H: dims[i].Height}

		canvas, err := newCanvas(size, scale)
		if err != nil {
			res.Skipped.Add(errors.Wrap(errors.ErrorTypeDecodeFailure, "allocate page", err).WithPage(pageNr))
			continue
		}

		if src, ok := largest[pageNr]; ok {
			img, _, err := image.Decode(src)
			if err != nil {
				log.Printf("[IMPORT] skipping page %d: %v", pageNr, err)
				res.Skipped.Add(errors.Wrap(errors.ErrorTypeDecodeFailure, "decode page image", err).WithPage(pageNr))
				continue
			}
			draw.CatmullRom.Scale(canvas, canvas.Bounds(), img, img.Bounds(), draw.Over, nil)
		}

		res.Pages = append(res.Pages, PageImage{Image: canvas, Page: pageNr})
	}
	return res, nil
}

func newCanvas(page geometry.Size, scale float64) (*image.NRGBA, error) {
	w := int(math.Round(page.W * scale))
	h := int(math.Round(page.H * scale))
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid page size %s", page)
	}
	if w*h > maxPagePixels {
		return nil, fmt.Errorf("page %dx%d exceeds raster limit", w, h)
	}
	canvas := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return canvas, nil
}
