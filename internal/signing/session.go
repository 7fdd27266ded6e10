// Package signing ties a captured document to its signature overlay: it
// applies committed gestures to the placement model, enforces the
// entitlement gate and exports the signed PDF.
package signing

import (
	"context"
	"io"
	"log"
	"time"

	"github.com/mattetti/filebuffer"

	"github.com/a3tai/mcp-pdf-signer/internal/geometry"
	"github.com/a3tai/mcp-pdf-signer/internal/gesture"
	"github.com/a3tai/mcp-pdf-signer/internal/pdf/compose"
	"github.com/a3tai/mcp-pdf-signer/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-signer/internal/pdf/importer"
	"github.com/a3tai/mcp-pdf-signer/internal/pdf/output"
	"github.com/a3tai/mcp-pdf-signer/internal/placement"
)

// Document is a rendered PDF held in memory
type Document interface {
	io.ReaderAt
	io.ReadSeeker
}

// Verifier checks a rendered document before it is persisted
type Verifier interface {
	Verify(ctx context.Context, doc Document, size int64) error
}

// VerifierFunc adapts a function to the Verifier interface
type VerifierFunc func(ctx context.Context, doc Document, size int64) error

// Verify calls f(ctx, doc, size)
func (f VerifierFunc) Verify(ctx context.Context, doc Document, size int64) error {
	return f(ctx, doc, size)
}

// Config holds the settings of a session. Zero fields take the documented
// defaults.
type Config struct {
	// Limits bound the width of every placement; default 0.12 to 0.90
	Limits placement.Limits
	// Compose configures export; default A4 with a 24pt margin
	Compose compose.Options
	// Viewport is the surface pages are shown on; gesture translations are
	// in its units. Default: each page's own pixel size.
	Viewport geometry.Size
	// Entitlement gates placement; default always entitled
	Entitlement Entitlement
	// Verifier checks exports before they are written; default none
	Verifier Verifier
	// Prefix of exported file names; default "Signed"
	Prefix string
	// Now stamps exported file names; default time.Now
	Now func() time.Time
}

// Session is one document being signed. It is not safe for concurrent use;
// callers serialize access.
type Session struct {
	pages    []importer.PageImage
	overlay  *placement.Overlay
	composer *compose.Composer
	cfg      Config
}

// NewSession starts a session over pages
func NewSession(pages []importer.PageImage, cfg Config) (*Session, error) {
	if len(pages) == 0 {
		return nil, errors.New(errors.ErrorTypeEmptyInput, "no pages to sign")
	}
	for i, p := range pages {
		if p.Size().IsEmpty() {
			return nil, errors.New(errors.ErrorTypeDecodeFailure, "page image is missing or empty").WithPage(i + 1)
		}
	}
	if cfg.Limits == (placement.Limits{}) {
		cfg.Limits = placement.DefaultLimits()
	}
	if cfg.Compose == (compose.Options{}) {
		cfg.Compose = compose.DefaultOptions()
	}
	if cfg.Entitlement == nil {
		cfg.Entitlement = StaticEntitlement(true)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	overlay := placement.NewOverlay(cfg.Limits)
	cfg.Limits = overlay.Limits()
	return &Session{
		pages:    append([]importer.PageImage(nil), pages...),
		overlay:  overlay,
		composer: compose.New(cfg.Compose),
		cfg:      cfg,
	}, nil
}

// PageCount returns the number of pages
func (s *Session) PageCount() int { return len(s.pages) }

// Pages returns the pages in order
func (s *Session) Pages() []importer.PageImage {
	return append([]importer.PageImage(nil), s.pages...)
}

// Overlay exposes the placement model for subscriptions and reads
func (s *Session) Overlay() *placement.Overlay { return s.overlay }

// Viewport returns the configured viewport, zero when pages use their own size
func (s *Session) Viewport() geometry.Size { return s.cfg.Viewport }

// SetViewport changes the surface gestures are measured on. Stored
// placements are normalized and do not change.
func (s *Session) SetViewport(v geometry.Size) { s.cfg.Viewport = v }

// Entitled reports whether placement operations are allowed
func (s *Session) Entitled(ctx context.Context) bool {
	return s.cfg.Entitlement.IsEntitled(ctx)
}

func (s *Session) checkPage(page int) error {
	if page < 0 || page >= len(s.pages) {
		return errors.Newf(errors.ErrorTypeInvalidInput, "page %d out of range [0, %d)", page, len(s.pages))
	}
	return nil
}

func (s *Session) gate(ctx context.Context) error {
	if !s.cfg.Entitlement.IsEntitled(ctx) {
		return ErrNotEntitled
	}
	return nil
}

// FitRect returns the rectangle page occupies in the viewport
func (s *Session) FitRect(page int) (geometry.Rect, error) {
	if err := s.checkPage(page); err != nil {
		return geometry.Rect{}, err
	}
	size := s.pages[page].Size()
	viewport := s.cfg.Viewport
	if viewport.IsEmpty() {
		viewport = size
	}
	return geometry.AspectFit(size, viewport), nil
}

func (s *Session) mapper(page int) (gesture.Mapper, error) {
	fit, err := s.FitRect(page)
	if err != nil {
		return gesture.Mapper{}, err
	}
	return gesture.NewMapper(fit, s.cfg.Limits), nil
}

// AddSignature places asset on page at the default anchor and selects it
func (s *Session) AddSignature(ctx context.Context, page int, asset *placement.Asset) (string, error) {
	if err := s.gate(ctx); err != nil {
		return "", err
	}
	fit, err := s.FitRect(page)
	if err != nil {
		return "", err
	}
	return s.overlay.Add(page, asset, fit)
}

// Select toggles the selection of a placement
func (s *Session) Select(ctx context.Context, page int, id string) error {
	if err := s.gate(ctx); err != nil {
		return err
	}
	if err := s.checkPage(page); err != nil {
		return err
	}
	return s.overlay.Select(page, id)
}

// Deselect clears the selection on page
func (s *Session) Deselect(page int) error {
	if err := s.checkPage(page); err != nil {
		return err
	}
	s.overlay.Deselect(page)
	return nil
}

// Delete removes a placement
func (s *Session) Delete(page int, id string) error {
	if err := s.checkPage(page); err != nil {
		return err
	}
	return s.overlay.Delete(page, id)
}

// Drag commits a drag by translation t, in viewport units
func (s *Session) Drag(ctx context.Context, page int, id string, t geometry.Point) (placement.PlacedSignature, error) {
	return s.commit(ctx, page, id, func(m gesture.Mapper, p placement.PlacedSignature) placement.PlacedSignature {
		return m.CommitDrag(p, t)
	})
}

// Pinch commits a pinch with the given magnification
func (s *Session) Pinch(ctx context.Context, page int, id string, scale float64) (placement.PlacedSignature, error) {
	return s.commit(ctx, page, id, func(m gesture.Mapper, p placement.PlacedSignature) placement.PlacedSignature {
		return m.CommitPinch(p, scale)
	})
}

// Resize commits a corner-handle drag by translation t, in viewport units
func (s *Session) Resize(ctx context.Context, page int, id string, t geometry.Point) (placement.PlacedSignature, error) {
	return s.commit(ctx, page, id, func(m gesture.Mapper, p placement.PlacedSignature) placement.PlacedSignature {
		return m.CommitResize(p, t)
	})
}

// SetRotation sets a placement's rotation in degrees
func (s *Session) SetRotation(ctx context.Context, page int, id string, angleDeg float64) (placement.PlacedSignature, error) {
	return s.commit(ctx, page, id, func(_ gesture.Mapper, p placement.PlacedSignature) placement.PlacedSignature {
		return gesture.SetRotation(p, angleDeg)
	})
}

func (s *Session) commit(ctx context.Context, page int, id string, apply func(gesture.Mapper, placement.PlacedSignature) placement.PlacedSignature) (placement.PlacedSignature, error) {
	if err := s.gate(ctx); err != nil {
		return placement.PlacedSignature{}, err
	}
	m, err := s.mapper(page)
	if err != nil {
		return placement.PlacedSignature{}, err
	}
	cur, ok := s.overlay.Get(page, id)
	if !ok {
		return placement.PlacedSignature{}, placement.ErrNotFound
	}
	if err := s.overlay.Update(page, id, apply(m, cur), m.Fit); err != nil {
		return placement.PlacedSignature{}, err
	}
	next, _ := s.overlay.Get(page, id)
	return next, nil
}

// Preview returns the live state of a placement under in-flight gestures
// without changing it
func (s *Session) Preview(page int, id string, drag geometry.Point, pinch float64, resize geometry.Point) (gesture.Transient, error) {
	m, err := s.mapper(page)
	if err != nil {
		return gesture.Transient{}, err
	}
	cur, ok := s.overlay.Get(page, id)
	if !ok {
		return gesture.Transient{}, placement.ErrNotFound
	}
	return m.Compose(cur, drag, pinch, resize), nil
}

// Placements returns the placements on page in drawing order
func (s *Session) Placements(page int) ([]placement.PlacedSignature, error) {
	if err := s.checkPage(page); err != nil {
		return nil, err
	}
	return s.overlay.Placements(page), nil
}

// RemovePage drops a page and its placements. Later pages move up by one.
func (s *Session) RemovePage(page int) error {
	if err := s.checkPage(page); err != nil {
		return err
	}
	s.pages = append(s.pages[:page], s.pages[page+1:]...)
	s.overlay.RemovePage(page)
	return nil
}

// ExportResult describes a written PDF
type ExportResult struct {
	Path       string               `json:"path"`
	Bytes      int64                `json:"bytes"`
	PageCount  int                  `json:"page_count"`
	Placements int                  `json:"placements"`
	Verified   bool                 `json:"verified"`
	Pages      []compose.PageLayout `json:"pages"`
}

// Render composes the document into w. Placements are only drawn while the
// session is entitled; a document without placements always renders.
func (s *Session) Render(ctx context.Context, w io.Writer) (*compose.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.pages) == 0 {
		return nil, errors.New(errors.ErrorTypeEmptyInput, "nothing to export")
	}
	if s.overlay.Count() > 0 {
		if err := s.gate(ctx); err != nil {
			return nil, err
		}
	}

	pages := make([]compose.Page, len(s.pages))
	for i, p := range s.pages {
		pages[i] = compose.Page{Image: p.Image, Placements: s.overlay.Placements(i)}
	}
	return s.composer.Compose(pages, w)
}

// Export renders the document, verifies it and writes it atomically into
// dir as "<prefix>-<timestamp>.pdf"
func (s *Session) Export(ctx context.Context, dir string) (*ExportResult, error) {
	buf := filebuffer.New(nil)
	res, err := s.Render(ctx, buf)
	if err != nil {
		return nil, err
	}
	size := int64(buf.Buff.Len())

	verified := false
	if s.cfg.Verifier != nil {
		if _, err := buf.Seek(0, io.SeekStart); err != nil {
			return nil, errors.Wrap(errors.ErrorTypeWriteFailure, "rewind rendered document", err)
		}
		if err := s.cfg.Verifier.Verify(ctx, buf, size); err != nil {
			return nil, errors.Wrap(errors.ErrorTypeWriteFailure, "rendered document failed verification", err)
		}
		verified = true
	}

	name := output.Name(s.cfg.Prefix, s.cfg.Now())
	path, err := output.WriteAtomic(dir, name, buf.Buff.Bytes())
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeWriteFailure, "write signed document", err).WithFile(dir)
	}

	log.Printf("[EXPORT] wrote %s (%d pages, %d placements, %d bytes)", path, len(res.Pages), s.overlay.Count(), size)
	return &ExportResult{
		Path:       path,
		Bytes:      size,
		PageCount:  len(res.Pages),
		Placements: s.overlay.Count(),
		Verified:   verified,
		Pages:      res.Pages,
	}, nil
}
