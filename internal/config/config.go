package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/a3tai/mcp-pdf-filler/internal/pdf/backend"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Default values
	DefaultPort             = 8080
	DefaultHost             = "127.0.0.1"
	DefaultLogLevel         = "info"
	DefaultMaxFileSize      = 50 * 1024 * 1024 // 50MB
	DefaultBackend          = backend.NameNative
	DefaultProcessTimeout   = 60 * time.Second
	DefaultCacheSize        = 64
	DefaultConcurrency      = 1
	DefaultDownloadTimeout  = 30 * time.Second
	DefaultDownloadAttempts = 3

	// Directory permissions
	DefaultDirPerm = 0o750
)

// Config holds all configuration for the PDF form filler
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// PDF configuration
	PDFDirectory string
	MaxFileSize  int64 // Maximum PDF file size in bytes
	VerifyPDF    bool  // Parse templates before filling them

	// Fill backend
	Backend        string // "native" or "process"
	ProcessCommand string
	ProcessTimeout time.Duration
	CacheSize      int // Field inventories kept in memory, negative disables the cache

	// Fill defaults
	SkipMissing bool
	Flatten     bool
	Concurrency int

	// URL sources
	DownloadTimeout  time.Duration
	DownloadAttempts uint

	// Application configuration
	Version    string
	ServerName string
	LogLevel   string
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		// Fallback to current directory if working directory cannot be determined
		currentDir = "."
	}

	return &Config{
		Mode:             ModeStdio, // Default to stdio mode for MCP compatibility
		Host:             DefaultHost,
		Port:             DefaultPort,
		PDFDirectory:     currentDir,
		MaxFileSize:      DefaultMaxFileSize,
		Backend:          DefaultBackend,
		ProcessCommand:   strings.Join(backend.DefaultProcessCommand, " "),
		ProcessTimeout:   DefaultProcessTimeout,
		CacheSize:        DefaultCacheSize,
		Concurrency:      DefaultConcurrency,
		DownloadTimeout:  DefaultDownloadTimeout,
		DownloadAttempts: DefaultDownloadAttempts,
		Version:          "1.0.0",
		ServerName:       "mcp-pdf-filler",
		LogLevel:         DefaultLogLevel,
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

	// Expand paths if needed
	if cfg.PDFDirectory != "" {
		if expandedPath, err := filepath.Abs(cfg.PDFDirectory); err == nil {
			cfg.PDFDirectory = expandedPath
		}
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// flagNames lists every key shared by flags, viper and the environment.
// Environment variables use the MCP_PDF_ prefix with dashes turned into
// underscores, e.g. MCP_PDF_LOG_LEVEL.
var flagNames = []string{
	"mode", "host", "port", "dir", "log-level", "max-file-size", "verify-pdf",
	"backend", "process-command", "process-timeout", "cache-size",
	"skip-missing", "flatten", "concurrency",
	"download-timeout", "download-attempts",
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix("MCP_PDF")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("dir", cfg.PDFDirectory)
	viper.SetDefault("log-level", cfg.LogLevel)
	viper.SetDefault("max-file-size", cfg.MaxFileSize)
	viper.SetDefault("verify-pdf", cfg.VerifyPDF)
	viper.SetDefault("backend", cfg.Backend)
	viper.SetDefault("process-command", cfg.ProcessCommand)
	viper.SetDefault("process-timeout", cfg.ProcessTimeout)
	viper.SetDefault("cache-size", cfg.CacheSize)
	viper.SetDefault("skip-missing", cfg.SkipMissing)
	viper.SetDefault("flatten", cfg.Flatten)
	viper.SetDefault("concurrency", cfg.Concurrency)
	viper.SetDefault("download-timeout", cfg.DownloadTimeout)
	viper.SetDefault("download-attempts", cfg.DownloadAttempts)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for HTTP server")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.String("dir", cfg.PDFDirectory, "Directory containing PDF templates and filled output")
	pflag.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("max-file-size", cfg.MaxFileSize, "Maximum PDF file size in bytes")
	pflag.Bool("verify-pdf", cfg.VerifyPDF, "Parse every template before filling it")
	pflag.String("backend", cfg.Backend, "Fill backend: 'native' (pdfcpu) or 'process' (external processor)")
	pflag.String("process-command", cfg.ProcessCommand, "Command line of the external processor (process backend only)")
	pflag.Duration("process-timeout", cfg.ProcessTimeout, "Timeout of one external processor run")
	pflag.Int("cache-size", cfg.CacheSize, "Number of field inventories to cache (negative disables the cache)")
	pflag.Bool("skip-missing", cfg.SkipMissing, "Skip mappings whose field is not in the PDF by default")
	pflag.Bool("flatten", cfg.Flatten, "Make filled fields read-only by default")
	pflag.Int("concurrency", cfg.Concurrency, "Number of items filled in parallel")
	pflag.Duration("download-timeout", cfg.DownloadTimeout, "Timeout of one PDF download attempt")
	pflag.Uint("download-attempts", cfg.DownloadAttempts, "Number of attempts for PDF downloads")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, name := range flagNames {
		_ = viper.BindPFlag(name, pflag.Lookup(name))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nMCP PDF Filler - A Model Context Protocol server for filling PDF forms\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                           "+
			"# stdio mode, current directory (default)\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --dir=/path/to/forms                      "+
			"# stdio mode with custom directory\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --backend=process --process-timeout=2m    "+
			"# fill through the external processor\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		for _, name := range flagNames {
			fmt.Fprintf(os.Stderr, "  %s\n", envName(name))
		}
	}
}

func envName(key string) string {
	return "MCP_PDF_" + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
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
	cfg.PDFDirectory = viper.GetString("dir")
	cfg.LogLevel = viper.GetString("log-level")
	cfg.MaxFileSize = viper.GetInt64("max-file-size")
	cfg.VerifyPDF = viper.GetBool("verify-pdf")
	cfg.Backend = viper.GetString("backend")
	cfg.ProcessCommand = viper.GetString("process-command")
	cfg.ProcessTimeout = viper.GetDuration("process-timeout")
	cfg.CacheSize = viper.GetInt("cache-size")
	cfg.SkipMissing = viper.GetBool("skip-missing")
	cfg.Flatten = viper.GetBool("flatten")
	cfg.Concurrency = viper.GetInt("concurrency")
	cfg.DownloadTimeout = viper.GetDuration("download-timeout")
	cfg.DownloadAttempts = viper.GetUint("download-attempts")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate mode
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	// Validate port range (only for server mode)
	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	// The directory may not exist yet; placeholders such as
	// ${workspaceRoot} are resolved by the client
	if c.PDFDirectory == "" {
		return errors.New("PDF directory cannot be empty")
	}

	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	switch c.Backend {
	case backend.NameNative:
	case backend.NameProcess:
		if strings.TrimSpace(c.ProcessCommand) == "" {
			return errors.New("process command cannot be empty for the process backend")
		}
		if c.ProcessTimeout <= 0 {
			return errors.New("process timeout must be positive")
		}
	default:
		return fmt.Errorf("invalid backend: %s (must be one of: native, process)", c.Backend)
	}

	if c.Concurrency < 1 {
		return errors.New("concurrency must be at least 1")
	}

	if c.DownloadTimeout <= 0 {
		return errors.New("download timeout must be positive")
	}
	if c.DownloadAttempts < 1 {
		return errors.New("download attempts must be at least 1")
	}

	if _, ok := logLevels[c.LogLevel]; !ok {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	return nil
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// Level returns the slog level for LogLevel, info when unknown
func (c *Config) Level() slog.Level {
	if level, ok := logLevels[c.LogLevel]; ok {
		return level
	}
	return slog.LevelInfo
}

// NewLogger builds the structured logger writing to w. Stdio mode must log to
// stderr since stdout carries the protocol.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: c.Level()})).
		With("service", c.ServerName)
}

// ProcessOptions returns the options of the process backend
func (c *Config) ProcessOptions() backend.ProcessOptions {
	return backend.ProcessOptions{
		Command: strings.Fields(c.ProcessCommand),
		Timeout: c.ProcessTimeout,
		MaxSize: c.MaxFileSize,
	}
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
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, PDFDirectory: %s, LogLevel: %s, MaxFileSize: %d, "+
		"Backend: %s, CacheSize: %d, Concurrency: %d}",
		c.Mode, c.Host, c.Port, c.PDFDirectory, c.LogLevel, c.MaxFileSize,
		c.Backend, c.CacheSize, c.Concurrency)
}

// IsServerMode returns true if the server is running in HTTP server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
