package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/a3tai/pdf-filler/internal/config"
	"github.com/a3tai/pdf-filler/internal/mcp"
	"github.com/a3tai/pdf-filler/internal/pdf"
	"github.com/a3tai/pdf-filler/internal/pdftk"
	"github.com/a3tai/pdf-filler/internal/storage"
	"github.com/a3tai/pdf-filler/internal/web"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// setupLogging builds the logger for the configured mode
func setupLogging(cfg *config.Config, stdout, stderr io.Writer) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.IsStdioMode() {
		// stdout carries the MCP protocol
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		logger.SetOutput(stderr)
		if !cfg.IsDebug() {
			logger.SetOutput(io.Discard)
		}
		return logger
	}

	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(stdout)
	return logger
}

// newStorage builds the configured storage backend. files is non-nil when
// stored documents should be served by the HTTP server.
func newStorage(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (storage.Storage, http.FileSystem, error) {
	switch cfg.StorageBackend {
	case config.StorageNone:
		return nil, nil, nil
	case config.StorageLocal:
		local, err := storage.NewLocalStorage(cfg.StorageRoot, cfg.PublicBaseURL(), logger)
		if err != nil {
			return nil, nil, err
		}
		return local, local.FileSystem(), nil
	case config.StorageS3, "":
		s3, err := storage.NewS3StorageFromEnv(ctx, storage.S3Options{
			Region:     cfg.S3Region,
			BaseURL:    cfg.StorageBaseURL,
			PublicRead: cfg.S3PublicRead,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return s3, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend: %s", cfg.StorageBackend)
	}
}

// run wires the components and serves until ctx is canceled
func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	tool := pdftk.New(cfg.PdftkPath, logger)
	if toolVersion, err := tool.Version(ctx); err != nil {
		logger.WithError(err).WithField("pdftk", cfg.PdftkPath).Warn("Form tool is not available")
	} else {
		logger.WithField("pdftk", toolVersion).Info("Found form tool")
	}

	store, files, err := newStorage(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to set up storage: %w", err)
	}

	pdfService, err := pdf.NewService(tool, store, pdf.Options{
		Directory:       cfg.PDFDirectory,
		MaxFileSize:     cfg.MaxFileSize,
		DownloadTimeout: cfg.DownloadTimeout,
		Fill:            pdftk.FillOptions{Flatten: cfg.Flatten},
		CompressOutput:  cfg.CompressOutput,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create PDF service: %w", err)
	}

	if cfg.IsStdioMode() {
		server, err := mcp.NewServer(cfg, pdfService, logger)
		if err != nil {
			return fmt.Errorf("failed to create MCP server: %w", err)
		}
		return server.Run(ctx)
	}

	opts := []web.Option{web.WithToolVersion(tool.Version)}
	if files != nil {
		opts = append(opts, web.WithFiles(files))
	}
	server, err := web.NewServer(cfg, pdfService, logger, opts...)
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}
	return server.Run(ctx)
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			printVersion(os.Stdout)
			return
		}
	}

	cfg, err := config.LoadFromFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Set version if it was provided during build
	if version != "dev" {
		cfg.Version = version
	}

	logger := setupLogging(cfg, os.Stdout, os.Stderr)
	logger.WithField("config", cfg.String()).Debug("Starting with configuration")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Error("Server error")
		stop()
		os.Exit(1)
	}

	logger.Info("Server stopped successfully")
}

// printVersion prints version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "PDF Filler\n")
	fmt.Fprintf(w, "Version: %s\n", version)
	fmt.Fprintf(w, "Build Time: %s\n", buildTime)
	fmt.Fprintf(w, "Git Commit: %s\n", gitCommit)
	fmt.Fprintf(w, "Built with: %s\n", runtime.Version())
}
