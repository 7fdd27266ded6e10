package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Helper function to reset pflag.CommandLine for testing
func resetFlags() {
	pflag.CommandLine = pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
	viper.Reset()
}

// Helper function to set os.Args for testing
func setArgs(args []string) {
	os.Args = args
}

// Helper function to clear environment variables
func clearEnvVars() {
	for _, key := range keys {
		os.Unsetenv("MCP_SIGN_" + strings.ToUpper(key))
	}
}

// loadWithArgs runs LoadFromFlags with a fresh flag set and restores the
// process state afterwards
func loadWithArgs(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	originalArgs := os.Args
	t.Cleanup(func() {
		os.Args = originalArgs
		resetFlags()
	})

	setArgs(append([]string{"mcp-pdf-signer"}, args...))
	resetFlags()
	return LoadFromFlags()
}

func TestLoadFromFlags_DefaultConfig(t *testing.T) {
	clearEnvVars()
	dir := t.TempDir()

	cfg, err := loadWithArgs(t, "--dir="+dir)
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}

	if cfg.Mode != "stdio" {
		t.Errorf("LoadFromFlags() Mode = %v, want %v", cfg.Mode, "stdio")
	}
	if cfg.Host != "127.0.0.1" {
		t.Errorf("LoadFromFlags() Host = %v, want %v", cfg.Host, "127.0.0.1")
	}
	if cfg.Port != 8080 {
		t.Errorf("LoadFromFlags() Port = %v, want %v", cfg.Port, 8080)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LoadFromFlags() LogLevel = %v, want %v", cfg.LogLevel, "info")
	}
	if cfg.MaxFileSize != 100*1024*1024 {
		t.Errorf("LoadFromFlags() MaxFileSize = %v, want %v", cfg.MaxFileSize, 100*1024*1024)
	}
	if cfg.Sizing != "a4" || cfg.ImportScale != 2 || cfg.AlphaThreshold != 5 {
		t.Errorf("LoadFromFlags() export defaults = %s/%g/%d", cfg.Sizing, cfg.ImportScale, cfg.AlphaThreshold)
	}
	if cfg.SegmentTimeout != 30*time.Second {
		t.Errorf("LoadFromFlags() SegmentTimeout = %v, want 30s", cfg.SegmentTimeout)
	}
	if !cfg.Entitled || !cfg.Verify {
		t.Errorf("LoadFromFlags() Entitled = %v, Verify = %v, want both true", cfg.Entitled, cfg.Verify)
	}
	if cfg.SignatureDirectory != filepath.Join(dir, "Signatures") {
		t.Errorf("LoadFromFlags() SignatureDirectory = %v", cfg.SignatureDirectory)
	}
	if cfg.OutputDirectory != filepath.Join(dir, "Signed") {
		t.Errorf("LoadFromFlags() OutputDirectory = %v", cfg.OutputDirectory)
	}
	for _, sub := range []string{cfg.SignatureDirectory, cfg.OutputDirectory} {
		if info, err := os.Stat(sub); err != nil || !info.IsDir() {
			t.Errorf("LoadFromFlags() did not create %s", sub)
		}
	}
}

func TestLoadFromFlags_ValidFlags(t *testing.T) {
	tests := []struct {
		name         string
		args         []string
		wantMode     string
		wantPort     int
		wantSizing   string
		wantMargin   float64
		wantScale    float64
		wantEntitled bool
		wantTimeout  time.Duration
	}{
		{
			name:         "server mode",
			args:         []string{"--mode=server", "--host=0.0.0.0", "--port=9090"},
			wantMode:     "server",
			wantPort:     9090,
			wantSizing:   "a4",
			wantMargin:   24,
			wantScale:    2,
			wantEntitled: true,
			wantTimeout:  30 * time.Second,
		},
		{
			name:         "native sizing",
			args:         []string{"--sizing=native", "--margin=0", "--importscale=3"},
			wantMode:     "stdio",
			wantPort:     8080,
			wantSizing:   "native",
			wantMargin:   0,
			wantScale:    3,
			wantEntitled: true,
			wantTimeout:  30 * time.Second,
		},
		{
			name:         "not entitled",
			args:         []string{"--entitled=false", "--segmenttimeout=5s"},
			wantMode:     "stdio",
			wantPort:     8080,
			wantSizing:   "a4",
			wantMargin:   24,
			wantScale:    2,
			wantEntitled: false,
			wantTimeout:  5 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnvVars()
			cfg, err := loadWithArgs(t, append(tt.args, "--dir="+t.TempDir())...)
			if err != nil {
				t.Fatalf("LoadFromFlags() unexpected error: %v", err)
			}
			if cfg.Mode != tt.wantMode {
				t.Errorf("Mode = %v, want %v", cfg.Mode, tt.wantMode)
			}
			if cfg.Port != tt.wantPort {
				t.Errorf("Port = %v, want %v", cfg.Port, tt.wantPort)
			}
			if cfg.Sizing != tt.wantSizing {
				t.Errorf("Sizing = %v, want %v", cfg.Sizing, tt.wantSizing)
			}
			if cfg.Margin != tt.wantMargin {
				t.Errorf("Margin = %v, want %v", cfg.Margin, tt.wantMargin)
			}
			if cfg.ImportScale != tt.wantScale {
				t.Errorf("ImportScale = %v, want %v", cfg.ImportScale, tt.wantScale)
			}
			if cfg.Entitled != tt.wantEntitled {
				t.Errorf("Entitled = %v, want %v", cfg.Entitled, tt.wantEntitled)
			}
			if cfg.SegmentTimeout != tt.wantTimeout {
				t.Errorf("SegmentTimeout = %v, want %v", cfg.SegmentTimeout, tt.wantTimeout)
			}
		})
	}
}

func TestLoadFromFlags_EnvironmentVariables(t *testing.T) {
	clearEnvVars()
	dir := t.TempDir()
	out := filepath.Join(t.TempDir(), "out")
	t.Setenv("MCP_SIGN_MODE", "server")
	t.Setenv("MCP_SIGN_PORT", "9191")
	t.Setenv("MCP_SIGN_DIR", dir)
	t.Setenv("MCP_SIGN_OUTPUT", out)
	t.Setenv("MCP_SIGN_ENTITLED", "false")
	t.Setenv("MCP_SIGN_LOGLEVEL", "debug")
	t.Setenv("MCP_SIGN_MAXFILESIZE", "2048")

	cfg, err := loadWithArgs(t)
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}

	if cfg.Mode != "server" {
		t.Errorf("Mode = %v, want server", cfg.Mode)
	}
	if cfg.Port != 9191 {
		t.Errorf("Port = %v, want 9191", cfg.Port)
	}
	if cfg.WorkDirectory != dir {
		t.Errorf("WorkDirectory = %v, want %v", cfg.WorkDirectory, dir)
	}
	if cfg.OutputDirectory != out {
		t.Errorf("OutputDirectory = %v, want %v", cfg.OutputDirectory, out)
	}
	if cfg.Entitled {
		t.Error("Entitled = true, want false")
	}
	if !cfg.IsDebug() {
		t.Errorf("LogLevel = %v, want debug", cfg.LogLevel)
	}
	if cfg.MaxFileSize != 2048 {
		t.Errorf("MaxFileSize = %v, want 2048", cfg.MaxFileSize)
	}
}

func TestLoadFromFlags_FlagOverridesEnvironment(t *testing.T) {
	clearEnvVars()
	t.Setenv("MCP_SIGN_SIZING", "native")
	t.Setenv("MCP_SIGN_PORT", "9191")

	cfg, err := loadWithArgs(t, "--sizing=a4", "--dir="+t.TempDir())
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}
	if cfg.Sizing != "a4" {
		t.Errorf("Sizing = %v, want a4 from the flag", cfg.Sizing)
	}
	if cfg.Port != 9191 {
		t.Errorf("Port = %v, want 9191 from the environment", cfg.Port)
	}
}

func TestLoadFromFlags_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "mode", args: []string{"--mode=invalid"}, wantErr: "mode must be"},
		{name: "port", args: []string{"--mode=server", "--port=70000"}, wantErr: "port must be"},
		{name: "log level", args: []string{"--loglevel=trace"}, wantErr: "invalid log level"},
		{name: "sizing", args: []string{"--sizing=letter"}, wantErr: "sizing"},
		{name: "import scale", args: []string{"--importscale=8"}, wantErr: "import scale"},
		{name: "alpha threshold", args: []string{"--alphathreshold=300"}, wantErr: "alpha threshold"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnvVars()
			_, err := loadWithArgs(t, append(tt.args, "--dir="+t.TempDir())...)
			if err == nil {
				t.Fatal("LoadFromFlags() expected error, got nil")
			}
			if !strings.Contains(err.Error(), "invalid configuration") || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("LoadFromFlags() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFlags_VersionFlag(t *testing.T) {
	clearEnvVars()

	_, err := loadWithArgs(t, "--version")
	if err == nil {
		t.Fatal("LoadFromFlags() expected error for version flag, got nil")
	}
	if err.Error() != "version requested" {
		t.Errorf("LoadFromFlags() error = %v, want 'version requested'", err)
	}
}
