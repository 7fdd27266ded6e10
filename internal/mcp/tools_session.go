package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/a3tai/mcp-pdf-signer/internal/geometry"
	"github.com/a3tai/mcp-pdf-signer/internal/pdf"
	"github.com/a3tai/mcp-pdf-signer/internal/placement"
	"github.com/a3tai/mcp-pdf-signer/internal/signing"
)

var errNoSession = errors.New("no open document: use scan_load_images or pdf_import first")

// currentSession returns the open session; callers hold s.mu
func (s *Server) currentSession() (*signing.Session, error) {
	if s.session == nil {
		return nil, errNoSession
	}
	return s.session, nil
}

// placementTarget resolves the placement a tool call addresses: the explicit
// placement_id, or the selected placement on the page
func placementTarget(sess *signing.Session, request mcp.CallToolRequest, page int) (string, error) {
	if id := request.GetString("placement_id", ""); id != "" {
		return id, nil
	}
	if page >= sess.PageCount() {
		return "", fmt.Errorf("page %d out of range (document has %d pages)", page, sess.PageCount())
	}
	id, ok := sess.Overlay().Selected(page)
	if !ok {
		return "", fmt.Errorf("no placement selected on page %d: pass placement_id", page)
	}
	return id, nil
}

func (s *Server) handleServerInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.pdfService.ServerInfo(ctx, s.config.ServerName, s.config.Version)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	responseText := s.formatServerInfoResult(result)
	return mcp.NewToolResultText(responseText), nil
}

func (s *Server) handleLoadImages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	paths, err := stringList(request, "paths")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	sess, result, err := s.pdfService.LoadImages(ctx, pdf.LoadImagesRequest{Paths: paths})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()

	responseText := fmt.Sprintf("Loaded %d page(s) into a new document\n", result.Loaded)
	for i, p := range sess.Pages() {
		responseText += fmt.Sprintf("  Page %d: %s (%s)\n", i, p.Source, p.Size())
	}
	responseText += formatSkipped(result.Skipped)

	return mcp.NewToolResultText(responseText), nil
}

func (s *Server) handleImportPDF(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	req := pdf.ImportPDFRequest{Path: path, Scale: request.GetFloat("scale", 0)}
	sess, result, err := s.pdfService.ImportPDF(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()

	responseText := fmt.Sprintf("Imported %s: %d of %d page(s) at scale %g\n",
		result.Path, result.Imported, result.PageCount, result.Scale)
	for i, p := range sess.Pages() {
		responseText += fmt.Sprintf("  Page %d: %s\n", i, p.Size())
	}
	responseText += formatSkipped(result.Skipped)

	return mcp.NewToolResultText(responseText), nil
}

func (s *Server) handleSessionPages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.currentSession()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSession(ctx, sess)), nil
}

func (s *Server) handleSignatureList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	store := s.pdfService.Signatures()
	if err := store.Reload(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	entries := store.List()
	if len(entries) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No saved signatures in %s", store.Dir())), nil
	}

	responseText := fmt.Sprintf("Found %d saved signature(s) in %s\n", len(entries), store.Dir())
	for i, e := range entries {
		responseText += fmt.Sprintf("%d. %s\n", i+1, e.Asset.ID)
		responseText += fmt.Sprintf("   Size: %dx%d px, %d bytes\n", e.Width, e.Height, e.Bytes)
		responseText += fmt.Sprintf("   Modified: %s\n", e.ModTime.Format("2006-01-02 15:04:05"))
	}
	return mcp.NewToolResultText(responseText), nil
}

func (s *Server) handleSignatureDelete(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids, err := stringList(request, "ids")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	store := s.pdfService.Signatures()
	if store.Len() == 0 {
		if err := store.Reload(ctx); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	before := store.Len()
	err = store.Delete(ids...)
	deleted := before - store.Len()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Deleted %d signature(s); %v", deleted, err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Deleted %d signature(s)", deleted)), nil
}

// lookupSignature finds a saved signature, rereading the directory once when
// the id is unknown
func (s *Server) lookupSignature(ctx context.Context, id string) (*placement.Asset, error) {
	store := s.pdfService.Signatures()
	if asset, ok := store.Get(id); ok {
		return asset, nil
	}
	if err := store.Reload(ctx); err != nil {
		return nil, err
	}
	if asset, ok := store.Get(id); ok {
		return asset, nil
	}
	return nil, fmt.Errorf("signature %s not found in %s", id, store.Dir())
}

func (s *Server) handleSignatureAdd(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	page, err := requirePage(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sigID, err := request.RequireString("signature_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	asset, err := s.lookupSignature(ctx, sigID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.currentSession()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := sess.AddSignature(ctx, page, asset)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return s.placementResult(sess, page, id, "Added signature "+sigID)
}

func (s *Server) handleSignatureSelect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	page, err := requirePage(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := request.RequireString("placement_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.currentSession()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := sess.Select(ctx, page, id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.placementResult(sess, page, id, "Selection toggled")
}

func (s *Server) handleSignatureDeselect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	page, err := requirePage(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.currentSession()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := sess.Deselect(page); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Cleared the selection on page %d", page)), nil
}

func (s *Server) handleSignatureRemove(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	page, err := requirePage(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.currentSession()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := placementTarget(sess, request, page)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := sess.Delete(page, id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Removed placement %s from page %d", id, page)), nil
}

// gestureFunc commits one gesture on a placement
type gestureFunc func(ctx context.Context, sess *signing.Session, page int, id string) (placement.PlacedSignature, error)

func (s *Server) commitGesture(ctx context.Context, request mcp.CallToolRequest, label string, apply gestureFunc) (*mcp.CallToolResult, error) {
	page, err := requirePage(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.currentSession()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := placementTarget(sess, request, page)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := apply(ctx, sess, page, id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.placementResult(sess, page, id, label)
}

func (s *Server) handleGestureDrag(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t, err := requirePoint(request, "dx", "dy")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.commitGesture(ctx, request, "Moved", func(ctx context.Context, sess *signing.Session, page int, id string) (placement.PlacedSignature, error) {
		return sess.Drag(ctx, page, id, t)
	})
}

func (s *Server) handleGesturePinch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scale, err := request.RequireFloat("scale")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.commitGesture(ctx, request, "Scaled", func(ctx context.Context, sess *signing.Session, page int, id string) (placement.PlacedSignature, error) {
		return sess.Pinch(ctx, page, id, scale)
	})
}

func (s *Server) handleGestureResize(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t, err := requirePoint(request, "dx", "dy")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.commitGesture(ctx, request, "Resized", func(ctx context.Context, sess *signing.Session, page int, id string) (placement.PlacedSignature, error) {
		return sess.Resize(ctx, page, id, t)
	})
}

func (s *Server) handleSignatureRotate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	angle, err := request.RequireFloat("angle")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.commitGesture(ctx, request, "Rotated", func(ctx context.Context, sess *signing.Session, page int, id string) (placement.PlacedSignature, error) {
		return sess.SetRotation(ctx, page, id, angle)
	})
}

func (s *Server) handleGesturePreview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	page, err := requirePage(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	drag := geometry.Point{X: request.GetFloat("dx", 0), Y: request.GetFloat("dy", 0)}
	resize := geometry.Point{X: request.GetFloat("resize_dx", 0), Y: request.GetFloat("resize_dy", 0)}
	pinch := request.GetFloat("scale", 1)

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.currentSession()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := placementTarget(sess, request, page)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	live, err := sess.Preview(page, id, drag, pinch, resize)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	responseText := fmt.Sprintf("Preview of placement %s on page %d (not committed)\n", id, page)
	responseText += fmt.Sprintf("Center: (%.1f, %.1f)\n", live.Center.X, live.Center.Y)
	responseText += fmt.Sprintf("Size: %s\n", live.Size)
	responseText += fmt.Sprintf("Bounds: %s\n", live.Bounds())
	responseText += fmt.Sprintf("Angle: %.1f°\n", live.AngleDeg)
	return mcp.NewToolResultText(responseText), nil
}

func (s *Server) handlePageRemove(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	page, err := requirePage(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.currentSession()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := sess.RemovePage(page); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Removed page %d; %d page(s) left", page, sess.PageCount())), nil
}

func (s *Server) handleExport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	directory := request.GetString("directory", "")

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.currentSession()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result, err := s.pdfService.Export(ctx, sess, directory)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatExportResult(result)), nil
}

func (s *Server) handleListSigned(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req := pdf.ListSignedRequest{
		Query: request.GetString("query", ""),
		Limit: request.GetInt("limit", 0),
	}

	result, err := s.pdfService.ListSigned(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var responseText string
	if result.TotalCount == 0 {
		responseText = fmt.Sprintf("No signed PDF files found in directory: %s", result.Directory)
		if result.SearchQuery != "" {
			responseText += fmt.Sprintf(" (searched for: %s)", result.SearchQuery)
		}
	} else {
		responseText = formatListSignedResult(result)
	}

	return mcp.NewToolResultText(responseText), nil
}

func (s *Server) handleVerify(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.pdfService.VerifyOutput(ctx, pdf.VerifyRequest{Path: path})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if !result.Valid {
		return mcp.NewToolResultText(fmt.Sprintf("PDF validation failed for %s: %s", result.Path, result.Message)), nil
	}

	responseText := fmt.Sprintf("PDF file %s is valid and readable (%d bytes, %d page(s))\n",
		result.Path, result.Size, len(result.Pages))
	for _, p := range result.Pages {
		responseText += fmt.Sprintf("  Page %d: MediaBox %v, %d image(s)\n", p.Number, p.MediaBox, p.Images)
	}
	return mcp.NewToolResultText(responseText), nil
}

// placementResult reports the committed state of one placement
func (s *Server) placementResult(sess *signing.Session, page int, id, label string) (*mcp.CallToolResult, error) {
	p, ok := sess.Overlay().Get(page, id)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("placement %s not found on page %d", id, page)), nil
	}
	fit, err := sess.FitRect(page)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(label + "\n" + formatPlacement(page, p, fit)), nil
}
