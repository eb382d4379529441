package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/sirupsen/logrus"

	"github.com/a3tai/pdf-filler/internal/config"
	"github.com/a3tai/pdf-filler/internal/pdf"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// VersionFunc reports the version of the form tool for the health endpoint
type VersionFunc func(ctx context.Context) (string, error)

// Server represents the HTTP server instance
type Server struct {
	config     *config.Config
	pdfService *pdf.Service
	logger     *logrus.Logger
	pages      *pages
	apiDoc     *openapi3.T
	files      http.FileSystem
	version    VersionFunc
	httpServer *http.Server
}

// Option customizes a Server
type Option func(*Server)

// WithFiles serves stored documents under /files/
func WithFiles(fs http.FileSystem) Option {
	return func(s *Server) {
		s.files = fs
	}
}

// WithToolVersion reports the form tool version on /healthz
func WithToolVersion(fn VersionFunc) Option {
	return func(s *Server) {
		s.version = fn
	}
}

// NewServer creates a new HTTP server instance
func NewServer(cfg *config.Config, pdfService *pdf.Service, logger *logrus.Logger, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if pdfService == nil {
		return nil, fmt.Errorf("pdfService cannot be nil")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	p, err := newPages()
	if err != nil {
		return nil, fmt.Errorf("failed to prepare pages: %w", err)
	}

	s := &Server{
		config:     cfg,
		pdfService: pdfService,
		logger:     logger,
		pages:      p,
		apiDoc:     NewAPIDocument(cfg.ServerName, cfg.Version),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Address(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return s, nil
}

// Handler returns the routed handler wrapped with request logging
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /fill", s.handleFill)
	mux.HandleFunc("GET /fill", s.handleFill)
	mux.HandleFunc("GET /fields", s.handleFields)
	mux.HandleFunc("GET /fields.json", s.handleFieldsJSON)
	mux.HandleFunc("GET /form", s.handleForm)
	mux.HandleFunc("GET /uncompress", s.handleUncompress)
	mux.HandleFunc("POST /store", s.handleStore)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /openapi.json", s.handleOpenAPIJSON)
	mux.HandleFunc("GET /openapi.yaml", s.handleOpenAPIYAML)

	if s.files != nil {
		mux.Handle("GET /files/", http.StripPrefix("/files", http.FileServer(s.files)))
	}

	return s.logRequests(mux)
}

// Run serves HTTP until ctx is canceled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("address", s.httpServer.Addr).Info("Starting HTTP server")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}

		next.ServeHTTP(rec, r)

		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		s.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"bytes":    rec.bytes,
			"duration": time.Since(start).String(),
		}).Info("Handled request")
	})
}
