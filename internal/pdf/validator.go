package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/a3tai/mcp-pdf-signer/internal/signing"
)

// Validator checks produced PDFs: it reads them back page by page and runs
// them through pdfcpu's relaxed validation
type Validator struct {
	maxFileSize int64
}

// NewValidator creates a new PDF validator with the specified constraints
func NewValidator(maxFileSize int64) *Validator {
	return &Validator{
		maxFileSize: maxFileSize,
	}
}

var _ signing.Verifier = (*Validator)(nil)

// Verify implements signing.Verifier
func (v *Validator) Verify(ctx context.Context, doc signing.Document, size int64) error {
	_, err := v.Inspect(ctx, doc, size)
	return err
}

// Inspect reads doc back and reports every page. It fails when the document
// has no pages, a page lacks a MediaBox, or pdfcpu rejects it.
func (v *Validator) Inspect(ctx context.Context, doc signing.Document, size int64) (pages []PageReport, err error) {
	if size <= 0 {
		return nil, fmt.Errorf("document is empty")
	}
	if v.maxFileSize > 0 && size > v.maxFileSize {
		return nil, fmt.Errorf("document too large: %d bytes (max: %d bytes)", size, v.maxFileSize)
	}

	header := make([]byte, 5)
	if _, err := doc.ReadAt(header, 0); err != nil {
		return nil, fmt.Errorf("cannot read header: %w", err)
	}
	if !bytes.Equal(header, []byte("%PDF-")) {
		return nil, fmt.Errorf("missing PDF header")
	}

	// the reader panics on some malformed object graphs
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	r, err := pdf.NewReader(doc, size)
	if err != nil {
		return nil, fmt.Errorf("invalid PDF file: %w", err)
	}
	n := r.NumPage()
	if n == 0 {
		return nil, fmt.Errorf("document has no pages")
	}

	pages = make([]PageReport, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			return nil, fmt.Errorf("page %d is missing", i)
		}
		report, err := inspectPage(p, i)
		if err != nil {
			return nil, err
		}
		pages = append(pages, report)
	}

	if _, err := doc.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind document: %w", err)
	}
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.Validate(doc, conf); err != nil {
		return nil, fmt.Errorf("pdfcpu validation failed: %w", err)
	}

	return pages, nil
}

func inspectPage(p pdf.Page, number int) (PageReport, error) {
	report := PageReport{Number: number}

	box := inherited(p.V, "MediaBox")
	if box.Len() != 4 {
		return report, fmt.Errorf("page %d has no valid MediaBox", number)
	}
	for i := 0; i < 4; i++ {
		report.MediaBox[i] = box.Index(i).Float64()
	}
	if report.MediaBox[2] <= report.MediaBox[0] || report.MediaBox[3] <= report.MediaBox[1] {
		return report, fmt.Errorf("page %d has an empty MediaBox", number)
	}

	pdf.Interpret(p.V.Key("Contents"), func(stk *pdf.Stack, op string) {
		if op == "Do" {
			stk.Pop()
			report.Images++
		}
	})
	return report, nil
}

// inherited looks key up on a page dictionary and then on its ancestors in
// the page tree
func inherited(page pdf.Value, key string) pdf.Value {
	for v := page; !v.IsNull(); v = v.Key("Parent") {
		if val := v.Key(key); !val.IsNull() {
			return val
		}
	}
	return pdf.Value{}
}

// VerifyFile checks a PDF on disk. Validation problems are reported in the
// result; only an unreadable request is an error.
func (v *Validator) VerifyFile(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	result := &VerifyResult{
		Path:  req.Path,
		Valid: false,
	}

	info, err := v.validatePDFFile(req.Path)
	if err != nil {
		result.Message = err.Error()
		return result, nil //nolint:nilerr // Return result with validation error, not a processing error
	}
	result.Size = info.Size()

	f, err := os.Open(req.Path)
	if err != nil {
		result.Message = fmt.Sprintf("cannot open file: %v", err)
		return result, nil
	}
	defer f.Close()

	pages, err := v.Inspect(ctx, f, info.Size())
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		result.Message = err.Error()
		return result, nil
	}

	result.Valid = true
	result.Pages = pages
	return result, nil
}

// validatePDFFile performs the checks that do not need to parse the file
func (v *Validator) validatePDFFile(filePath string) (os.FileInfo, error) {
	if filePath == "" {
		return nil, fmt.Errorf("path cannot be empty")
	}

	fileInfo, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("file does not exist: %s", filePath)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot access file: %w", err)
	}

	if err := v.ValidateFileInfo(filePath, fileInfo); err != nil {
		return nil, err
	}
	return fileInfo, nil
}

// IsValidPDF performs a full check of a file on disk
func (v *Validator) IsValidPDF(filePath string) bool {
	res, err := v.VerifyFile(context.Background(), VerifyRequest{Path: filePath})
	return err == nil && res.Valid
}

// ValidateFileInfo performs basic validation on file info without opening the PDF
func (v *Validator) ValidateFileInfo(filePath string, fileInfo os.FileInfo) error {
	if fileInfo.IsDir() {
		return fmt.Errorf("path is a directory, not a file: %s", filePath)
	}

	if !strings.HasSuffix(strings.ToLower(filePath), ".pdf") {
		return fmt.Errorf("file is not a PDF: %s", filePath)
	}

	if fileInfo.Size() == 0 {
		return fmt.Errorf("file is empty: %s", filePath)
	}

	if v.maxFileSize > 0 && fileInfo.Size() > v.maxFileSize {
		return fmt.Errorf("file too large: %d bytes (max: %d bytes)",
			fileInfo.Size(), v.maxFileSize)
	}

	return nil
}
