package mcp

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestServer_Run_CancelledContext(t *testing.T) {
	for _, mode := range []string{"stdio", "server"} {
		t.Run(mode, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Mode = mode
			server := newTestServer(t, cfg)

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			err := server.Run(ctx)
			if err == nil {
				t.Fatal("Run() with a cancelled context should fail")
			}
			if !strings.Contains(err.Error(), "context") {
				t.Errorf("Run() error = %v, expected context-related error", err)
			}
		})
	}
}

func TestServer_Run_InvalidMode(t *testing.T) {
	cfg := testConfig(t)
	server := newTestServer(t, cfg)
	cfg.Mode = "invalid"

	err := server.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "unsupported mode") {
		t.Errorf("Run() error = %v, want unsupported mode", err)
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestServer_Run_HTTP(t *testing.T) {
	cfg := testConfig(t)
	cfg.Mode = "server"
	cfg.Port = freePort(t)
	server := newTestServer(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Run(ctx) }()

	url := fmt.Sprintf("http://%s%s", cfg.Address(), HTTPEndpoint)
	body := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"test","version":"1"}}}`

	var resp *http.Response
	deadline := time.Now().Add(5 * time.Second)
	for {
		req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json, text/event-stream")
		resp, err = http.DefaultClient.Do(req)
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not come up: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("initialize status = %d, want 200", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() after shutdown = %v, want nil", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}
