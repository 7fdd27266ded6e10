package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/a3tai/mcp-pdf-signer/internal/pdf"
	"github.com/a3tai/mcp-pdf-signer/internal/pdf/compose"
	"github.com/a3tai/mcp-pdf-signer/internal/pdf/importer"
	"github.com/a3tai/mcp-pdf-signer/internal/signing"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Default values
	DefaultPort           = 8080
	DefaultHost           = "127.0.0.1"
	DefaultLogLevel       = "info"
	DefaultMaxFileSize    = 100 * 1024 * 1024 // 100MB
	DefaultSizing         = "a4"
	DefaultMargin         = compose.DefaultMargin
	DefaultImportScale    = importer.DefaultImportScale
	DefaultAlphaThreshold = 5
	DefaultSegmentTimeout = 30 * time.Second

	// Subdirectories of the work directory
	SignaturesDirName = "Signatures"
	OutputDirName     = "Signed"

	// Directory permissions
	DefaultDirPerm = 0o750

	maxMargin = 200
)

// Config holds all configuration for the PDF signer MCP server
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// Directories; signatures and output default to subdirectories of the
	// work directory
	WorkDirectory      string
	SignatureDirectory string
	OutputDirectory    string

	// Export and editing
	Sizing         string // "a4" or "native"
	Margin         float64
	ImportScale    float64
	AlphaThreshold int
	SegmentTimeout time.Duration
	Entitled       bool
	Verify         bool

	// Application configuration
	Version     string
	ServerName  string
	LogLevel    string
	MaxFileSize int64 // Maximum input file size in bytes
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		// Fallback to current directory if working directory cannot be determined
		currentDir = "."
	}

	return &Config{
		Mode:           ModeStdio, // Default to stdio mode for MCP compatibility
		Host:           DefaultHost,
		Port:           DefaultPort,
		WorkDirectory:  currentDir,
		Sizing:         DefaultSizing,
		Margin:         DefaultMargin,
		ImportScale:    DefaultImportScale,
		AlphaThreshold: DefaultAlphaThreshold,
		SegmentTimeout: DefaultSegmentTimeout,
		Entitled:       true,
		Verify:         true,
		Version:        "1.0.0",
		ServerName:     "mcp-pdf-signer",
		LogLevel:       DefaultLogLevel,
		MaxFileSize:    DefaultMaxFileSize,
	}
}

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	// Check for version flag before parsing
	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	populateConfigFromViper(cfg)
	cfg.resolveDirectories()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

var keys = []string{
	"mode", "host", "port", "dir", "signatures", "output", "sizing", "margin",
	"importscale", "alphathreshold", "segmenttimeout", "entitled", "verify",
	"loglevel", "maxfilesize",
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix("MCP_SIGN")
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("dir", cfg.WorkDirectory)
	viper.SetDefault("signatures", cfg.SignatureDirectory)
	viper.SetDefault("output", cfg.OutputDirectory)
	viper.SetDefault("sizing", cfg.Sizing)
	viper.SetDefault("margin", cfg.Margin)
	viper.SetDefault("importscale", cfg.ImportScale)
	viper.SetDefault("alphathreshold", cfg.AlphaThreshold)
	viper.SetDefault("segmenttimeout", cfg.SegmentTimeout)
	viper.SetDefault("entitled", cfg.Entitled)
	viper.SetDefault("verify", cfg.Verify)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for streamable HTTP")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.String("dir", cfg.WorkDirectory, "Work directory holding documents to sign")
	pflag.String("signatures", cfg.SignatureDirectory, "Signature directory (default <dir>/Signatures)")
	pflag.String("output", cfg.OutputDirectory, "Directory for signed PDFs (default <dir>/Signed)")
	pflag.String("sizing", cfg.Sizing, "Export page sizing: 'a4' or 'native'")
	pflag.Float64("margin", cfg.Margin, "A4 page margin in points")
	pflag.Float64("importscale", cfg.ImportScale, "Raster scale for imported PDF pages, 1 to 4")
	pflag.Int("alphathreshold", cfg.AlphaThreshold, "Alpha below which pixels are trimmed from saved signatures")
	pflag.Duration("segmenttimeout", cfg.SegmentTimeout, "Time limit for background segmentation")
	pflag.Bool("entitled", cfg.Entitled, "Enable signature placement")
	pflag.Bool("verify", cfg.Verify, "Read every export back before writing it")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum input file size in bytes")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, key := range keys {
		_ = viper.BindPFlag(key, pflag.Lookup(key))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nMCP PDF Signer - A Model Context Protocol server for placing signatures on documents\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                         "+
			"# stdio mode, current directory (default)\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --dir=/path/to/docs                     "+
			"# stdio mode with custom directory\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --sizing=native --entitled=false        "+
			"# native page size, plain scans only\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server --host=0.0.0.0 --port=8081 # server on all interfaces\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  MCP_SIGN_MODE            Server mode\n")
		fmt.Fprintf(os.Stderr, "  MCP_SIGN_HOST            Server host\n")
		fmt.Fprintf(os.Stderr, "  MCP_SIGN_PORT            Server port\n")
		fmt.Fprintf(os.Stderr, "  MCP_SIGN_DIR             Work directory\n")
		fmt.Fprintf(os.Stderr, "  MCP_SIGN_SIGNATURES      Signature directory\n")
		fmt.Fprintf(os.Stderr, "  MCP_SIGN_OUTPUT          Output directory\n")
		fmt.Fprintf(os.Stderr, "  MCP_SIGN_SIZING          Export page sizing\n")
		fmt.Fprintf(os.Stderr, "  MCP_SIGN_ENTITLED        Enable signature placement\n")
		fmt.Fprintf(os.Stderr, "  MCP_SIGN_LOGLEVEL        Log level\n")
		fmt.Fprintf(os.Stderr, "  MCP_SIGN_MAXFILESIZE     Maximum file size\n")
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return fmt.Errorf("version requested")
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.WorkDirectory = viper.GetString("dir")
	cfg.SignatureDirectory = viper.GetString("signatures")
	cfg.OutputDirectory = viper.GetString("output")
	cfg.Sizing = viper.GetString("sizing")
	cfg.Margin = viper.GetFloat64("margin")
	cfg.ImportScale = viper.GetFloat64("importscale")
	cfg.AlphaThreshold = viper.GetInt("alphathreshold")
	cfg.SegmentTimeout = viper.GetDuration("segmenttimeout")
	cfg.Entitled = viper.GetBool("entitled")
	cfg.Verify = viper.GetBool("verify")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")
}

// resolveDirectories makes the directories absolute and fills in the
// defaults derived from the work directory
func (c *Config) resolveDirectories() {
	if c.WorkDirectory == "" {
		return
	}
	if abs, err := filepath.Abs(c.WorkDirectory); err == nil {
		c.WorkDirectory = abs
	}
	if c.SignatureDirectory == "" {
		c.SignatureDirectory = filepath.Join(c.WorkDirectory, SignaturesDirName)
	}
	if c.OutputDirectory == "" {
		c.OutputDirectory = filepath.Join(c.WorkDirectory, OutputDirName)
	}
	if abs, err := filepath.Abs(c.SignatureDirectory); err == nil {
		c.SignatureDirectory = abs
	}
	if abs, err := filepath.Abs(c.OutputDirectory); err == nil {
		c.OutputDirectory = abs
	}
}

// Validate checks if the configuration is valid and creates the directories
func (c *Config) Validate() error {
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	// Validate port range (only for server mode)
	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	if c.WorkDirectory == "" {
		return errors.New("work directory cannot be empty")
	}
	c.resolveDirectories()
	for _, dir := range []string{c.WorkDirectory, c.SignatureDirectory, c.OutputDirectory} {
		if err := ensureDirectory(dir); err != nil {
			return err
		}
	}

	if _, err := compose.ParseSizing(c.Sizing); err != nil {
		return err
	}
	if c.Margin < 0 || c.Margin > maxMargin {
		return fmt.Errorf("margin must be between 0 and %d points", maxMargin)
	}
	if c.ImportScale < importer.MinImportScale || c.ImportScale > importer.MaxImportScale {
		return fmt.Errorf("import scale must be between %g and %g", importer.MinImportScale, importer.MaxImportScale)
	}
	if c.AlphaThreshold < 0 || c.AlphaThreshold > 255 {
		return errors.New("alpha threshold must be between 0 and 255")
	}
	if c.SegmentTimeout <= 0 {
		return errors.New("segmentation timeout must be positive")
	}

	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	return nil
}

func ensureDirectory(dir string) error {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(dir, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create directory %s: %w", dir, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("cannot access directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", dir)
	}
	return nil
}

// ServiceOptions converts the configuration into the options of the PDF service
func (c *Config) ServiceOptions() (pdf.Options, error) {
	sizing, err := compose.ParseSizing(c.Sizing)
	if err != nil {
		return pdf.Options{}, err
	}
	opts := compose.DefaultOptions()
	opts.Sizing = sizing
	opts.Margin = c.Margin
	opts.Producer = c.ServerName

	return pdf.Options{
		MaxFileSize:  c.MaxFileSize,
		WorkDir:      c.WorkDirectory,
		SignatureDir: c.SignatureDirectory,
		OutputDir:    c.OutputDirectory,
		Compose:      opts,
		ImportScale:  c.ImportScale,
		Entitlement:  signing.StaticEntitlement(c.Entitled),
		Verify:       c.Verify,
	}, nil
}

// AlphaThresholdByte returns the trim threshold as a byte
func (c *Config) AlphaThresholdByte() uint8 {
	if c.AlphaThreshold < 0 {
		return 0
	}
	if c.AlphaThreshold > 255 {
		return 255
	}
	return uint8(c.AlphaThreshold)
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, WorkDirectory: %s, SignatureDirectory: %s, "+
		"OutputDirectory: %s, Sizing: %s, Entitled: %t, LogLevel: %s, MaxFileSize: %d}",
		c.Mode, c.Host, c.Port, c.WorkDirectory, c.SignatureDirectory,
		c.OutputDirectory, c.Sizing, c.Entitled, c.LogLevel, c.MaxFileSize)
}

// IsServerMode returns true if the server is running in HTTP server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
