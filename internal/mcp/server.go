package mcp

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/a3tai/mcp-pdf-signer/internal/bgremoval"
	"github.com/a3tai/mcp-pdf-signer/internal/config"
	"github.com/a3tai/mcp-pdf-signer/internal/descriptions"
	"github.com/a3tai/mcp-pdf-signer/internal/pdf"
	"github.com/a3tai/mcp-pdf-signer/internal/signing"
)

const (
	// HTTPEndpoint is where the streamable HTTP transport is mounted
	HTTPEndpoint = "/mcp"

	shutdownTimeout = 5 * time.Second
)

// Server represents the MCP server instance. Tool calls that touch the
// signing session or the background editor are serialized.
type Server struct {
	config     *config.Config
	pdfService *pdf.Service
	mcpServer  *server.MCPServer
	segmenter  bgremoval.Segmenter

	mu      sync.Mutex
	session *signing.Session
	editor  *bgremoval.Editor
	job     *bgremoval.Job
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, pdfService *pdf.Service) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if pdfService == nil {
		return nil, fmt.Errorf("pdfService cannot be nil")
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions(descriptions.SignServerInfoDescription),
	)

	s := &Server{
		config:     cfg,
		pdfService: pdfService,
		mcpServer:  mcpServer,
		segmenter:  bgremoval.LumaSegmenter{},
	}

	if err := s.registerTools(); err != nil {
		return nil, err
	}

	return s, nil
}

// SetSegmenter replaces the background segmenter used by bg_start
func (s *Server) SetSegmenter(seg bgremoval.Segmenter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segmenter = seg
}

// registerTools registers every tool listed in descriptions.Tools
func (s *Server) registerTools() error {
	handlers := s.toolHandlers()
	for _, t := range descriptions.Tools {
		h, ok := handlers[t.Name]
		if !ok {
			return fmt.Errorf("no handler for tool %s", t.Name)
		}
		opts := append([]mcp.ToolOption{mcp.WithDescription(descriptions.GetToolDescription(t.Name))}, h.params...)
		s.mcpServer.AddTool(mcp.NewTool(t.Name, opts...), h.handle)
	}
	return nil
}

type toolHandler struct {
	params []mcp.ToolOption
	handle server.ToolHandlerFunc
}

func pageParam() mcp.ToolOption {
	return mcp.WithNumber("page", mcp.Required(), mcp.Min(0), mcp.Description("Zero-based page index"))
}

func placementParam() mcp.ToolOption {
	return mcp.WithString("placement_id",
		mcp.Description("Placement id; defaults to the selected placement on the page"))
}

func numberItems() mcp.PropertyOption {
	return mcp.Items(map[string]any{"type": "number"})
}

func (s *Server) toolHandlers() map[string]toolHandler {
	return map[string]toolHandler{
		"sign_server_info": {handle: s.handleServerInfo},
		"scan_load_images": {
			params: []mcp.ToolOption{
				mcp.WithArray("paths", mcp.Required(), mcp.Items(map[string]any{"type": "string"}),
					mcp.Description("Image files or directories of images, in page order")),
			},
			handle: s.handleLoadImages,
		},
		"pdf_import": {
			params: []mcp.ToolOption{
				mcp.WithString("path", mcp.Required(), mcp.Description("Full path to the PDF file")),
				mcp.WithNumber("scale", mcp.Min(1), mcp.Max(4), mcp.Description("Raster scale, default 2")),
			},
			handle: s.handleImportPDF,
		},
		"session_pages":  {handle: s.handleSessionPages},
		"signature_list": {handle: s.handleSignatureList},
		"signature_delete": {
			params: []mcp.ToolOption{
				mcp.WithArray("ids", mcp.Required(), mcp.Items(map[string]any{"type": "string"}),
					mcp.Description("Signature ids to delete")),
			},
			handle: s.handleSignatureDelete,
		},
		"signature_add": {
			params: []mcp.ToolOption{
				pageParam(),
				mcp.WithString("signature_id", mcp.Required(), mcp.Description("Saved signature id")),
			},
			handle: s.handleSignatureAdd,
		},
		"signature_select": {
			params: []mcp.ToolOption{pageParam(),
				mcp.WithString("placement_id", mcp.Required(), mcp.Description("Placement id"))},
			handle: s.handleSignatureSelect,
		},
		"signature_deselect": {
			params: []mcp.ToolOption{pageParam()},
			handle: s.handleSignatureDeselect,
		},
		"signature_remove": {
			params: []mcp.ToolOption{pageParam(), placementParam()},
			handle: s.handleSignatureRemove,
		},
		"gesture_drag": {
			params: []mcp.ToolOption{pageParam(), placementParam(),
				mcp.WithNumber("dx", mcp.Required(), mcp.Description("Horizontal translation in viewport units")),
				mcp.WithNumber("dy", mcp.Required(), mcp.Description("Vertical translation in viewport units")),
			},
			handle: s.handleGestureDrag,
		},
		"gesture_pinch": {
			params: []mcp.ToolOption{pageParam(), placementParam(),
				mcp.WithNumber("scale", mcp.Required(), mcp.Description("Magnification factor")),
			},
			handle: s.handleGesturePinch,
		},
		"gesture_resize": {
			params: []mcp.ToolOption{pageParam(), placementParam(),
				mcp.WithNumber("dx", mcp.Required(), mcp.Description("Corner translation, x")),
				mcp.WithNumber("dy", mcp.Required(), mcp.Description("Corner translation, y")),
			},
			handle: s.handleGestureResize,
		},
		"gesture_preview": {
			params: []mcp.ToolOption{pageParam(), placementParam(),
				mcp.WithNumber("dx", mcp.Description("In-flight drag, x")),
				mcp.WithNumber("dy", mcp.Description("In-flight drag, y")),
				mcp.WithNumber("scale", mcp.Description("In-flight pinch factor, default 1")),
				mcp.WithNumber("resize_dx", mcp.Description("In-flight corner drag, x")),
				mcp.WithNumber("resize_dy", mcp.Description("In-flight corner drag, y")),
			},
			handle: s.handleGesturePreview,
		},
		"signature_rotate": {
			params: []mcp.ToolOption{pageParam(), placementParam(),
				mcp.WithNumber("angle", mcp.Required(), mcp.Description("Rotation in degrees")),
			},
			handle: s.handleSignatureRotate,
		},
		"page_remove": {
			params: []mcp.ToolOption{pageParam()},
			handle: s.handlePageRemove,
		},
		"pdf_export": {
			params: []mcp.ToolOption{
				mcp.WithString("directory", mcp.Description("Output directory (uses the configured one if empty)")),
			},
			handle: s.handleExport,
		},
		"pdf_list_signed": {
			params: []mcp.ToolOption{
				mcp.WithString("query", mcp.Description("Optional search query for fuzzy matching")),
				mcp.WithNumber("limit", mcp.Min(0), mcp.Description("Maximum number of files")),
			},
			handle: s.handleListSigned,
		},
		"pdf_verify": {
			params: []mcp.ToolOption{
				mcp.WithString("path", mcp.Required(), mcp.Description("Full path to the PDF file")),
			},
			handle: s.handleVerify,
		},
		"bg_start": {
			params: []mcp.ToolOption{
				mcp.WithString("path", mcp.Required(), mcp.Description("Signature photo")),
				mcp.WithNumber("timeout", mcp.Min(0), mcp.Description("Segmentation time limit in seconds")),
			},
			handle: s.handleBgStart,
		},
		"bg_status": {
			params: []mcp.ToolOption{
				mcp.WithNumber("wait", mcp.Min(0), mcp.Description("Seconds to wait for segmentation")),
			},
			handle: s.handleBgStatus,
		},
		"bg_stroke": {
			params: []mcp.ToolOption{
				mcp.WithString("mode", mcp.Required(), mcp.Enum("paint", "erase")),
				mcp.WithArray("points", mcp.Required(), numberItems(),
					mcp.Description("Flat list of x,y pairs")),
				mcp.WithNumber("brush", mcp.Min(0), mcp.Max(1), mcp.Description("Brush slider, default 0.5")),
				mcp.WithNumber("view_width", mcp.Description("Width of the view the points were sampled in")),
				mcp.WithNumber("view_height", mcp.Description("Height of the view the points were sampled in")),
			},
			handle: s.handleBgStroke,
		},
		"bg_restore": {handle: s.handleBgRestore},
		"bg_rotate":  {handle: s.handleBgRotate},
		"bg_save": {
			params: []mcp.ToolOption{
				mcp.WithNumber("threshold", mcp.Min(0), mcp.Max(255), mcp.Description("Alpha trim threshold")),
			},
			handle: s.handleBgSave,
		},
	}
}

// Close releases the background editor
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeEditor()
}

// Run starts the MCP server in the configured mode
func (s *Server) Run(ctx context.Context) error {
	defer s.Close()

	switch {
	case s.config.IsServerMode():
		return s.runServerMode(ctx)
	case s.config.IsStdioMode():
		return s.runStdioMode(ctx)
	default:
		return fmt.Errorf("unsupported mode: %s", s.config.Mode)
	}
}

// runStdioMode runs the server in stdio mode
func (s *Server) runStdioMode(ctx context.Context) error {
	if s.config.IsDebug() {
		log.Printf("Starting PDF signer MCP server in stdio mode")
		log.Printf("Work directory: %s", s.config.WorkDirectory)
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("stdio server: %w", err)
	}

	stdio := server.NewStdioServer(s.mcpServer)
	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

// runServerMode serves the streamable HTTP transport until ctx is done
func (s *Server) runServerMode(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("http server: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle(HTTPEndpoint, server.NewStreamableHTTPServer(s.mcpServer, server.WithEndpointPath(HTTPEndpoint)))
	httpServer := &http.Server{
		Addr:              s.config.Address(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Printf("Starting PDF signer MCP server on http://%s%s", s.config.Address(), HTTPEndpoint)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve http: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP shutdown: %v", err)
		}
		return nil
	}
}
