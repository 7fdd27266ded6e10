package pdf

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/a3tai/mcp-pdf-signer/internal/bgremoval"
	"github.com/a3tai/mcp-pdf-signer/internal/pdf/compose"
	"github.com/a3tai/mcp-pdf-signer/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-signer/internal/pdf/importer"
	"github.com/a3tai/mcp-pdf-signer/internal/pdf/security"
	"github.com/a3tai/mcp-pdf-signer/internal/placement"
	"github.com/a3tai/mcp-pdf-signer/internal/signature"
	"github.com/a3tai/mcp-pdf-signer/internal/signing"
)

// Options configures a Service
type Options struct {
	MaxFileSize  int64
	WorkDir      string
	SignatureDir string
	OutputDir    string
	Compose      compose.Options
	ImportScale  float64
	Limits       placement.Limits
	Entitlement  signing.Entitlement
	// Verify reads every export back before it is written
	Verify bool
}

// Service handles file-facing operations: it imports documents into signing
// sessions, exports them, and verifies and lists the results. Every path is
// checked against the configured directories.
type Service struct {
	opts          Options
	importer      *importer.PDFImporter
	validator     *Validator
	search        *Search
	signatures    *signature.Store
	pathValidator *security.PathValidator
	info          *ServerInfo
}

// NewService creates a new PDF service with all components
func NewService(opts Options) (*Service, error) {
	if opts.WorkDir == "" {
		return nil, fmt.Errorf("work directory cannot be empty")
	}
	if opts.SignatureDir == "" {
		opts.SignatureDir = filepath.Join(opts.WorkDir, "Signatures")
	}
	if opts.OutputDir == "" {
		opts.OutputDir = filepath.Join(opts.WorkDir, "Signed")
	}
	if opts.ImportScale == 0 {
		opts.ImportScale = importer.DefaultImportScale
	}
	if opts.Compose == (compose.Options{}) {
		opts.Compose = compose.DefaultOptions()
	}

	pathValidator, err := security.NewPathValidator(opts.WorkDir, opts.SignatureDir, opts.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create path validator: %w", err)
	}

	store, err := signature.NewStore(opts.SignatureDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open signature store: %w", err)
	}

	s := &Service{
		opts:          opts,
		importer:      importer.NewPDFImporter(),
		validator:     NewValidator(opts.MaxFileSize),
		search:        NewSearch(opts.MaxFileSize),
		signatures:    store,
		pathValidator: pathValidator,
	}
	s.info = NewServerInfo(s)
	return s, nil
}

// Signatures returns the signature store
func (s *Service) Signatures() *signature.Store {
	return s.signatures
}

// OutputDir returns the default export directory
func (s *Service) OutputDir() string {
	return s.opts.OutputDir
}

// NewSession starts a signing session over pages with the service defaults
func (s *Service) NewSession(pages []importer.PageImage) (*signing.Session, error) {
	cfg := signing.Config{
		Limits:      s.opts.Limits,
		Compose:     s.opts.Compose,
		Entitlement: s.opts.Entitlement,
	}
	if s.opts.Verify {
		cfg.Verifier = s.validator
	}
	return signing.NewSession(pages, cfg)
}

// ImportPDF rasterizes a PDF into a new session
func (s *Service) ImportPDF(ctx context.Context, req ImportPDFRequest) (*signing.Session, *ImportPDFResult, error) {
	if err := s.pathValidator.ValidatePath(req.Path); err != nil {
		return nil, nil, fmt.Errorf("security validation failed: %w", err)
	}
	if _, err := s.validator.validatePDFFile(req.Path); err != nil {
		return nil, nil, errors.Wrap(errors.ErrorTypeInvalidInput, "cannot import", err).WithFile(req.Path)
	}

	scale := req.Scale
	if scale == 0 {
		scale = s.opts.ImportScale
	}
	imported, err := s.importer.ImportFile(ctx, req.Path, scale)
	if err != nil {
		return nil, nil, err
	}

	sess, err := s.NewSession(imported.Pages)
	if err != nil {
		return nil, nil, err
	}
	return sess, &ImportPDFResult{
		Path:      req.Path,
		PageCount: imported.PageCount,
		Imported:  len(imported.Pages),
		Scale:     imported.Scale,
		Skipped:   messages(imported.Skipped),
	}, nil
}

// LoadImages decodes captured page images into a new session
func (s *Service) LoadImages(ctx context.Context, req LoadImagesRequest) (*signing.Session, *LoadImagesResult, error) {
	if len(req.Paths) == 0 {
		return nil, nil, errors.New(errors.ErrorTypeEmptyInput, "no image paths given")
	}
	for _, p := range req.Paths {
		if err := s.pathValidator.ValidatePath(p); err != nil {
			return nil, nil, fmt.Errorf("security validation failed: %w", err)
		}
	}

	pages, skipped, err := importer.FileScanner{Paths: req.Paths}.ScanReport(ctx)
	if err != nil {
		return nil, nil, err
	}
	if len(pages) == 0 {
		return nil, nil, errors.New(errors.ErrorTypeEmptyInput, "no page images could be loaded")
	}

	sess, err := s.NewSession(pages)
	if err != nil {
		return nil, nil, err
	}
	sources := make([]string, len(pages))
	for i, p := range pages {
		sources[i] = p.Source
	}
	return sess, &LoadImagesResult{
		Loaded:  len(pages),
		Sources: sources,
		Skipped: messages(skipped),
	}, nil
}

// OpenEditor decodes a signature photo for background removal
func (s *Service) OpenEditor(path string) (*bgremoval.Editor, error) {
	if err := s.pathValidator.ValidatePath(path); err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}
	img, err := importer.DecodeImageFile(path)
	if err != nil {
		return nil, err
	}
	return bgremoval.NewEditor(img)
}

// Export writes the session into dir, or the configured output directory
func (s *Service) Export(ctx context.Context, sess *signing.Session, dir string) (*signing.ExportResult, error) {
	if sess == nil {
		return nil, errors.New(errors.ErrorTypeEmptyInput, "no open session")
	}
	if dir == "" {
		dir = s.opts.OutputDir
	}
	if err := s.pathValidator.ValidateDirectory(dir); err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}

	res, err := sess.Export(ctx, dir)
	if err != nil {
		return nil, err
	}
	s.info.Invalidate(dir)
	return res, nil
}

// VerifyOutput reads a produced PDF back
func (s *Service) VerifyOutput(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	if err := s.pathValidator.ValidatePath(req.Path); err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}
	return s.validator.VerifyFile(ctx, req)
}

// ListSigned lists produced PDFs, newest first
func (s *Service) ListSigned(ctx context.Context, req ListSignedRequest) (*ListSignedResult, error) {
	if req.Directory == "" {
		req.Directory = s.opts.OutputDir
	}
	if err := s.pathValidator.ValidateDirectory(req.Directory); err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}
	return s.search.ListSigned(ctx, req)
}

// ServerInfo returns server information and usage guidance
func (s *Service) ServerInfo(ctx context.Context, serverName, version string) (*ServerInfoResult, error) {
	return s.info.GetServerInfo(ctx, serverName, version)
}

// GetMaxFileSize returns the maximum file size limit
func (s *Service) GetMaxFileSize() int64 {
	return s.opts.MaxFileSize
}

// GetSupportedImageFormats returns the page image formats scan_load_images decodes
func (s *Service) GetSupportedImageFormats() []string {
	return []string{"png", "jpeg", "gif", "tiff", "bmp", "webp"}
}

// ValidateConfiguration validates the service configuration
func (s *Service) ValidateConfiguration() error {
	if s.opts.MaxFileSize <= 0 {
		return fmt.Errorf("maxFileSize must be greater than 0")
	}

	if s.opts.MaxFileSize > 1024*1024*1024 { // 1GB limit
		return fmt.Errorf("maxFileSize cannot exceed 1GB")
	}

	if s.opts.ImportScale < importer.MinImportScale || s.opts.ImportScale > importer.MaxImportScale {
		return fmt.Errorf("import scale must be within [%g, %g]", importer.MinImportScale, importer.MaxImportScale)
	}

	return nil
}

func messages(ec *errors.ErrorCollection) []string {
	if ec == nil {
		return nil
	}
	var out []string
	for _, e := range ec.Errors {
		out = append(out, e.Error())
	}
	for _, w := range ec.Warnings {
		out = append(out, w.Error())
	}
	return out
}
