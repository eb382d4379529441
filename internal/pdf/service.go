package pdf

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/mattetti/filebuffer"
	"github.com/sirupsen/logrus"

	"github.com/a3tai/pdf-filler/internal/pdftk"
	"github.com/a3tai/pdf-filler/internal/storage"
)

// FormTool fills and inspects PDF forms
type FormTool interface {
	Fill(ctx context.Context, input string, fields map[string]string, opts pdftk.FillOptions) ([]byte, error)
	Fields(ctx context.Context, input string) ([]pdftk.Field, error)
	Compress(ctx context.Context, input string) ([]byte, error)
	Uncompress(ctx context.Context, input string) ([]byte, error)
}

// Options configures a Service
type Options struct {
	Directory       string
	MaxFileSize     int64
	DownloadTimeout time.Duration
	Fill            pdftk.FillOptions
	CompressOutput  bool
}

// Service handles PDF form operations by orchestrating the form tool, storage and helpers
type Service struct {
	tool      FormTool
	storage   storage.Storage
	resolver  *Resolver
	validator *Validator
	stamper   *Stamper
	catalog   *Catalog
	opts      Options
	logger    *logrus.Logger
}

// NewService creates a new PDF service with all components. store may be nil when uploads are disabled.
func NewService(tool FormTool, store storage.Storage, opts Options, logger *logrus.Logger) (*Service, error) {
	if tool == nil {
		return nil, fmt.Errorf("form tool cannot be nil")
	}
	if opts.MaxFileSize <= 0 {
		return nil, fmt.Errorf("maximum file size must be positive")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	resolver, err := NewResolver(opts.Directory, opts.MaxFileSize, opts.DownloadTimeout, logger)
	if err != nil {
		return nil, err
	}

	return &Service{
		tool:      tool,
		storage:   store,
		resolver:  resolver,
		validator: NewValidator(opts.MaxFileSize),
		stamper:   NewStamper(logger),
		catalog:   NewCatalog(resolver.pathValidator.GetConfiguredDirectory()),
		opts:      opts,
		logger:    logger,
	}, nil
}

// GetMaxFileSize returns the maximum file size limit
func (s *Service) GetMaxFileSize() int64 {
	return s.opts.MaxFileSize
}

// Directory returns the directory local sources are resolved against
func (s *Service) Directory() string {
	return s.resolver.pathValidator.GetConfiguredDirectory()
}

// StorageEnabled reports whether Store can be used
func (s *Service) StorageEnabled() bool {
	return s.storage != nil
}

// Fill fills the form of the referenced PDF with the request values
func (s *Service) Fill(ctx context.Context, req FillRequest) (*FillResult, error) {
	src, err := s.open(ctx, req.Source)
	if err != nil {
		return nil, err
	}
	defer s.release(src)

	fields, placements := SplitValues(NormalizeValues(req.Values))

	data, err := s.tool.Fill(ctx, src.Path, fields, s.opts.Fill)
	if err != nil {
		return nil, fmt.Errorf("failed to fill form: %w", err)
	}
	if err := s.validator.ValidateOutput(data); err != nil {
		return nil, fmt.Errorf("form tool produced an unreadable document: %w", err)
	}

	if len(placements) > 0 {
		data, err = s.stamper.Stamp(data, placements)
		if err != nil {
			return nil, err
		}
	}

	if s.opts.CompressOutput {
		data, err = s.withTempFile(data, func(path string) ([]byte, error) {
			return s.tool.Compress(ctx, path)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to compress document: %w", err)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"pdf":        req.Source,
		"fields":     len(fields),
		"placements": len(placements),
		"bytes":      len(data),
	}).Info("Filled PDF form")

	return &FillResult{
		Source:     req.Source,
		Data:       data,
		Size:       len(data),
		FieldCount: len(fields),
		Placements: len(placements),
	}, nil
}

// Fields lists the form fields of the referenced PDF
func (s *Service) Fields(ctx context.Context, req FieldsRequest) (*FieldsResult, error) {
	src, err := s.open(ctx, req.Source)
	if err != nil {
		return nil, err
	}
	defer s.release(src)

	fields, err := s.tool.Fields(ctx, src.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to list fields: %w", err)
	}
	if fields == nil {
		fields = []Field{}
	}

	return &FieldsResult{Source: req.Source, Fields: fields}, nil
}

// Forms lists the PDF forms available in the configured directory
func (s *Service) Forms(ctx context.Context, req FormsRequest) (*FormsResult, error) {
	return s.catalog.Forms(ctx, req)
}

// Store fills the referenced PDF and uploads the result to bucket/path
func (s *Service) Store(ctx context.Context, req StoreRequest) (*StoreResult, error) {
	if s.storage == nil {
		return nil, ErrStorageDisabled
	}
	if _, err := storage.ValidateLocation(req.Bucket, req.Path); err != nil {
		return nil, err
	}

	filled, err := s.Fill(ctx, req.FillRequest)
	if err != nil {
		return nil, err
	}

	location, err := s.storage.Store(ctx, storage.StoreInput{
		Body:        filebuffer.New(filled.Data),
		Bucket:      req.Bucket,
		Path:        req.Path,
		ContentType: storage.ContentTypePDF,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	return &StoreResult{
		URL:    location,
		Bucket: req.Bucket,
		Path:   req.Path,
		Size:   filled.Size,
	}, nil
}

// Uncompress returns the referenced PDF with its streams uncompressed
func (s *Service) Uncompress(ctx context.Context, req FieldsRequest) ([]byte, error) {
	src, err := s.open(ctx, req.Source)
	if err != nil {
		return nil, err
	}
	defer s.release(src)

	data, err := s.tool.Uncompress(ctx, src.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to uncompress document: %w", err)
	}
	return data, nil
}

// RefreshForms drops the cached form catalog so the next Forms call rescans the directory
func (s *Service) RefreshForms() {
	s.catalog.Refresh()
}

func (s *Service) open(ctx context.Context, ref string) (*Source, error) {
	src, err := s.resolver.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	if err := s.validator.ValidateFile(src.Path); err != nil {
		s.release(src)
		return nil, err
	}
	return src, nil
}

func (s *Service) release(src *Source) {
	if err := src.Close(); err != nil {
		s.logger.WithError(err).WithField("path", src.Path).Warn("Failed to remove temporary file")
	}
}

// withTempFile writes data to a temporary PDF, runs fn on its path and removes the file
func (s *Service) withTempFile(data []byte, fn func(path string) ([]byte, error)) ([]byte, error) {
	tmp, err := os.CreateTemp("", "pdf-filler-output-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer func() {
		if err := os.Remove(tmp.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.WithError(err).WithField("path", tmp.Name()).Warn("Failed to remove temporary file")
		}
	}()

	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to write temporary file: %w", err)
	}

	return fn(tmp.Name())
}

// NormalizeFieldName percent-decodes field names that arrive encoded, such as "name%5B0%5D"
func NormalizeFieldName(name string) string {
	if !strings.Contains(name, "%") {
		return name
	}
	decoded, err := url.PathUnescape(name)
	if err != nil {
		return name
	}
	return decoded
}

// NormalizeValues applies NormalizeFieldName to every key
func NormalizeValues(values map[string]string) map[string]string {
	normalized := make(map[string]string, len(values))
	for name, value := range values {
		normalized[NormalizeFieldName(name)] = value
	}
	return normalized
}
