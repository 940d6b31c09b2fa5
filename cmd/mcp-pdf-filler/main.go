package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/a3tai/mcp-pdf-filler/internal/config"
	"github.com/a3tai/mcp-pdf-filler/internal/mcp"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// setupLogging builds the logger for the configured mode. Logs always go to
// w (stderr); in stdio mode only warnings and errors are written unless debug
// is enabled.
func setupLogging(cfg *config.Config, w io.Writer) *slog.Logger {
	if cfg.IsStdioMode() && !cfg.IsDebug() {
		quiet := *cfg
		quiet.LogLevel = "warn"
		return quiet.NewLogger(w)
	}
	return cfg.NewLogger(w)
}

// isVersionRequested reports whether args ask for the version
func isVersionRequested(args []string) bool {
	for _, arg := range args {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return true
		}
	}
	return false
}

// runServerMode handles server mode execution with signal handling
func runServerMode(ctx context.Context, cancel context.CancelFunc, server *mcp.Server, logger *slog.Logger) int {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(signalCh)

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.Run(ctx)
	}()

	select {
	case sig := <-signalCh:
		logger.Info("received signal, initiating graceful shutdown", "signal", sig.String())
		cancel()

		if err := <-serverErrCh; err != nil {
			logger.Error("server shutdown with error", "error", err)
			return 1
		}

	case err := <-serverErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			return 1
		}
	}

	logger.Info("server stopped successfully")
	return 0
}

// runStdioMode handles stdio mode execution; the parent process controls
// the lifecycle by closing stdin
func runStdioMode(ctx context.Context, server *mcp.Server, logger *slog.Logger) int {
	if err := server.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		return 1
	}
	return 0
}

func run() int {
	if isVersionRequested(os.Args[1:]) {
		printVersion(os.Stdout)
		return 0
	}

	cfg, err := config.LoadFromFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	if version != "dev" {
		cfg.Version = version
	}

	logger := setupLogging(cfg, os.Stderr)
	logger.Debug("starting with configuration", "config", cfg.String())

	pdfService, err := pdf.NewService(cfg, logger)
	if err != nil {
		logger.Error("failed to create PDF service", "error", err)
		return 1
	}

	server, err := mcp.NewServer(cfg, pdfService, logger)
	if err != nil {
		logger.Error("failed to create MCP server", "error", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.IsServerMode() {
		return runServerMode(ctx, cancel, server, logger)
	}
	return runStdioMode(ctx, server, logger)
}

func main() {
	os.Exit(run())
}

// printVersion prints version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "MCP PDF Filler\n")
	fmt.Fprintf(w, "Version: %s\n", version)
	fmt.Fprintf(w, "Build Time: %s\n", buildTime)
	fmt.Fprintf(w, "Git Commit: %s\n", gitCommit)
	fmt.Fprintf(w, "Built with: %s\n", runtime.Version())
}
