package mcp

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/a3tai/mcp-pdf-signer/internal/config"
	"github.com/a3tai/mcp-pdf-signer/internal/descriptions"
	"github.com/a3tai/mcp-pdf-signer/internal/pdf"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Mode:           config.ModeStdio,
		Host:           "127.0.0.1",
		Port:           8080,
		WorkDirectory:  t.TempDir(),
		Sizing:         "a4",
		Margin:         24,
		ImportScale:    2,
		AlphaThreshold: 5,
		SegmentTimeout: 5 * time.Second,
		Entitled:       true,
		Verify:         true,
		Version:        "1.0.0",
		ServerName:     "test-server",
		LogLevel:       "info",
		MaxFileSize:    10 * 1024 * 1024,
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("invalid test config: %v", err)
	}
	opts, err := cfg.ServiceOptions()
	if err != nil {
		t.Fatalf("ServiceOptions() error = %v", err)
	}
	svc, err := pdf.NewService(opts)
	if err != nil {
		t.Fatalf("Failed to create PDF service: %v", err)
	}
	s, err := NewServer(cfg, svc)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func writeTestPNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func filled(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// signaturePhoto is dark ink on white paper
func signaturePhoto() *image.NRGBA {
	img := filled(60, 30, color.White)
	for y := 10; y < 20; y++ {
		for x := 10; x < 50; x++ {
			img.Set(x, y, color.Black)
		}
	}
	return img
}

func callTool(t *testing.T, s *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	h, ok := s.toolHandlers()[name]
	if !ok {
		t.Fatalf("no handler for %s", name)
	}
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	res, err := h.handle(context.Background(), req)
	if err != nil {
		t.Fatalf("%s returned a protocol error: %v", name, err)
	}
	return res
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("result has no content")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want text", res.Content[0])
	}
	return text.Text
}

func mustSucceed(t *testing.T, s *Server, name string, args map[string]any, want string) string {
	t.Helper()
	res := callTool(t, s, name, args)
	text := resultText(t, res)
	if res.IsError {
		t.Fatalf("%s failed: %s", name, text)
	}
	if want != "" && !strings.Contains(text, want) {
		t.Fatalf("%s = %q, want it to contain %q", name, text, want)
	}
	return text
}

func mustFail(t *testing.T, s *Server, name string, args map[string]any, want string) {
	t.Helper()
	res := callTool(t, s, name, args)
	text := resultText(t, res)
	if !res.IsError {
		t.Fatalf("%s succeeded with %q, want an error", name, text)
	}
	if !strings.Contains(text, want) {
		t.Errorf("%s error = %q, want it to contain %q", name, text, want)
	}
}

func TestNewServer(t *testing.T) {
	cfg := testConfig(t)
	s := newTestServer(t, cfg)

	if s.config != cfg {
		t.Error("server config not set correctly")
	}
	if s.mcpServer == nil {
		t.Error("mcpServer should be initialized")
	}
	if s.session != nil || s.editor != nil {
		t.Error("a new server has no open document or photo")
	}

	if _, err := NewServer(cfg, nil); err == nil {
		t.Error("NewServer() with nil service should fail")
	}
	if _, err := NewServer(nil, s.pdfService); err == nil {
		t.Error("NewServer() with nil config should fail")
	}
}

func TestToolHandlersMatchDescriptions(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	handlers := s.toolHandlers()

	if len(handlers) != len(descriptions.Tools) {
		t.Errorf("%d handlers for %d described tools", len(handlers), len(descriptions.Tools))
	}
	for _, tool := range descriptions.Tools {
		if _, ok := handlers[tool.Name]; !ok {
			t.Errorf("tool %s has no handler", tool.Name)
		}
	}
}

func handle(t *testing.T, s *Server, msg string) map[string]any {
	t.Helper()
	res := s.mcpServer.HandleMessage(context.Background(), json.RawMessage(msg))
	raw, err := json.Marshal(res)
	if err != nil {
		t.Fatal(err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatal(err)
	}
	return out
}

func TestServerProtocol(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	initResp := handle(t, s, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"test","version":"1"}}}`)
	if _, ok := initResp["result"]; !ok {
		t.Fatalf("initialize failed: %v", initResp)
	}

	list := handle(t, s, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	result, _ := list["result"].(map[string]any)
	tools, _ := result["tools"].([]any)
	if len(tools) != len(descriptions.Tools) {
		t.Fatalf("tools/list returned %d tools, want %d", len(tools), len(descriptions.Tools))
	}
	names := map[string]bool{}
	for _, raw := range tools {
		tool, _ := raw.(map[string]any)
		name, _ := tool["name"].(string)
		names[name] = true
		if desc, _ := tool["description"].(string); desc == "" {
			t.Errorf("tool %s has no description", name)
		}
	}
	for _, want := range descriptions.GetAllToolNames() {
		if !names[want] {
			t.Errorf("tool %s not listed", want)
		}
	}

	call := handle(t, s, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"session_pages","arguments":{}}}`)
	callResult, _ := call["result"].(map[string]any)
	if isErr, _ := callResult["isError"].(bool); !isErr {
		t.Errorf("session_pages without a document should report an error: %v", call)
	}
}
