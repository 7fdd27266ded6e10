package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/a3tai/mcp-pdf-signer/internal/config"
	"github.com/a3tai/mcp-pdf-signer/internal/mcp"
	"github.com/a3tai/mcp-pdf-signer/internal/pdf"
	"github.com/a3tai/mcp-pdf-signer/internal/signature"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// setupLogging configures logging based on the server mode
func setupLogging(cfg *config.Config) {
	if cfg.IsStdioMode() {
		// stdout carries the MCP protocol, so logs only ever go to stderr,
		// and only when debugging
		if cfg.IsDebug() {
			log.SetOutput(os.Stderr)
		} else {
			log.SetOutput(io.Discard)
		}
		return
	}
	// In server mode, log with file and line
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

// newServer builds the PDF service and the MCP server for cfg, and starts
// loading the saved signatures in the background
func newServer(ctx context.Context, cfg *config.Config) (*mcp.Server, *pdf.Service, error) {
	opts, err := cfg.ServiceOptions()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid service options: %w", err)
	}

	pdfService, err := pdf.NewService(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create PDF service: %w", err)
	}

	// Tools that need the palette wait on the store, not on this load
	go reloadSignatures(ctx, pdfService.Signatures(), "initial load")

	server, err := mcp.NewServer(cfg, pdfService)
	if err != nil {
		return nil, nil, err
	}
	return server, pdfService, nil
}

// reloadSignatures rescans the signature directory and logs the outcome
func reloadSignatures(ctx context.Context, store *signature.Store, reason string) error {
	if err := <-store.ReloadAsync(ctx); err != nil {
		log.Printf("[SIGNATURES] %s failed: %v", reason, err)
		return err
	}
	log.Printf("[SIGNATURES] %s: %d signature(s) in %s", reason, store.Len(), store.Dir())
	return nil
}

// runServerMode runs the HTTP server until SIGINT or SIGTERM. SIGHUP rescans
// the signature directory, for files dropped in by hand.
func runServerMode(ctx context.Context, cancel context.CancelFunc, server *mcp.Server, store *signature.Store) {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(signalCh)

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.Run(ctx)
	}()

	for {
		select {
		case sig := <-signalCh:
			if sig == syscall.SIGHUP {
				go reloadSignatures(ctx, store, "reload on SIGHUP")
				continue
			}
			log.Printf("Received signal: %s", sig)
			log.Println("Initiating graceful shutdown...")
			cancel()

			// Wait for in-flight exports to finish writing
			if err := <-serverErrCh; err != nil {
				log.Printf("Server shutdown with error: %v", err)
				os.Exit(1)
			}

		case err := <-serverErrCh:
			if err != nil {
				log.Printf("Server error: %v", err)
				os.Exit(1)
			}
		}
		break
	}

	log.Println("Server stopped successfully")
}

// runStdioMode handles stdio mode execution
func runStdioMode(ctx context.Context, server *mcp.Server) {
	// The client owns our lifecycle; closing stdin ends the run
	if err := server.Run(ctx); err != nil {
		log.Printf("Server error: %v", err)
		os.Exit(1)
	}
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			printVersion()
			return
		}
	}

	cfg, err := config.LoadFromFlags()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	setupLogging(cfg)

	// Set version if it was provided during build
	if version != "dev" {
		cfg.Version = version
	}

	if cfg.IsDebug() && cfg.IsServerMode() {
		log.Printf("Starting with configuration: %s", cfg.String())
	}

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server, pdfService, err := newServer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create MCP server: %v", err)
	}

	if cfg.IsServerMode() {
		runServerMode(ctx, cancel, server, pdfService.Signatures())
	} else {
		runStdioMode(ctx, server)
	}
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("MCP PDF Signer\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Git Commit: %s\n", gitCommit)
	fmt.Printf("Built with: %s\n", runtime.Version())
}
