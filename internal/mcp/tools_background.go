package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/a3tai/mcp-pdf-signer/internal/bgremoval"
	"github.com/a3tai/mcp-pdf-signer/internal/geometry"
)

var errNoEditor = errors.New("no signature photo open: use bg_start first")

// closeEditor cancels segmentation and drops the editor; callers hold s.mu
func (s *Server) closeEditor() {
	if s.editor != nil {
		s.editor.Close()
	}
	s.editor = nil
	s.job = nil
}

func (s *Server) currentEditor() (*bgremoval.Editor, error) {
	if s.editor == nil {
		return nil, errNoEditor
	}
	return s.editor, nil
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func (s *Server) handleBgStart(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	timeout := s.config.SegmentTimeout
	if v := request.GetFloat("timeout", 0); v > 0 {
		timeout = seconds(v)
	}

	editor, err := s.pdfService.OpenEditor(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.closeEditor()
	// segmentation outlives this call
	job, err := editor.Start(context.WithoutCancel(ctx), s.segmenter, timeout)
	if err != nil {
		editor.Close()
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.editor = editor
	s.job = job

	return mcp.NewToolResultText(fmt.Sprintf("Opened %s (%s); background removal started with a %s limit.\n"+
		"Strokes can be applied now; use bg_status to wait for the result.", path, editor.Size(), timeout)), nil
}

func (s *Server) handleBgStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	wait := request.GetFloat("wait", 0)

	s.mu.Lock()
	editor, err := s.currentEditor()
	job := s.job
	s.mu.Unlock()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if job != nil && wait > 0 {
		waitCtx, cancel := context.WithTimeout(ctx, seconds(wait))
		_ = job.Wait(waitCtx)
		cancel()
	}

	return mcp.NewToolResultText(formatEditorStatus(editor)), nil
}

func formatEditorStatus(editor *bgremoval.Editor) string {
	text := fmt.Sprintf("Image: %s\n", editor.Size())
	switch {
	case editor.Busy():
		text += "Status: segmentation running\n"
	case editor.SegmentationErr() != nil:
		text += fmt.Sprintf("Status: segmentation failed (%v); the original image is kept for manual touch-up\n",
			editor.SegmentationErr())
	default:
		text += "Status: background removed\n"
	}
	return text
}

func (s *Server) handleBgStroke(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	modeName, err := request.RequireString("mode")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	mode, err := bgremoval.ParseMode(modeName)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	points, err := pointList(request, "points")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	view := geometry.Size{W: request.GetFloat("view_width", 0), H: request.GetFloat("view_height", 0)}
	brush := bgremoval.BrushSizeFromSlider(request.GetFloat("brush", 0.5))

	s.mu.Lock()
	defer s.mu.Unlock()

	editor, err := s.currentEditor()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	dropped := 0
	if !view.IsEmpty() {
		size := editor.Size()
		fit := geometry.AspectFit(size, view)
		mapped := points[:0]
		for _, p := range points {
			if ip, ok := bgremoval.ViewToImage(p, fit, size); ok {
				mapped = append(mapped, ip)
			} else {
				dropped++
			}
		}
		points = mapped
		// the brush is sized on screen
		if fit.W > 0 {
			brush *= size.W / fit.W
		}
	}

	if err := editor.Apply(bgremoval.Stroke{Mode: mode, BrushSize: brush, Points: points}); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	responseText := fmt.Sprintf("Applied %s stroke through %d point(s) with a %.1f px brush", mode, len(points), brush)
	if dropped > 0 {
		responseText += fmt.Sprintf("; %d point(s) outside the image were ignored", dropped)
	}
	return mcp.NewToolResultText(responseText), nil
}

func (s *Server) handleBgRestore(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	editor, err := s.currentEditor()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	editor.Restore()
	return mcp.NewToolResultText("Touch-ups discarded\n" + formatEditorStatus(editor)), nil
}

func (s *Server) handleBgRotate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	editor, err := s.currentEditor()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	editor.Rotate90()
	return mcp.NewToolResultText(fmt.Sprintf("Rotated a quarter turn counter-clockwise; image is now %s", editor.Size())), nil
}

func (s *Server) handleBgSave(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	threshold := s.config.AlphaThresholdByte()
	if v := request.GetInt("threshold", -1); v >= 0 && v <= 255 {
		threshold = uint8(v)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	editor, err := s.currentEditor()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if editor.Busy() {
		return mcp.NewToolResultError("segmentation is still running: use bg_status with wait first"), nil
	}

	img, err := editor.Commit(threshold)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	asset, err := s.pdfService.Signatures().Save(img)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.closeEditor()

	return mcp.NewToolResultText(fmt.Sprintf("Saved signature %s (%s) to %s\nUse signature_add with this id to place it.",
		asset.ID, asset.Size(), asset.Path)), nil
}
