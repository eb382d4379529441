package pdf

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/a3tai/pdf-filler/internal/pdf/security"
)

// DefaultDownloadTimeout bounds how long fetching a remote document may take
const DefaultDownloadTimeout = 30 * time.Second

// Source is a PDF available on the local filesystem for the duration of a request
type Source struct {
	Path      string
	Remote    bool
	temporary bool
}

// Close removes the backing file if it was downloaded
func (s *Source) Close() error {
	if s == nil || !s.temporary {
		return nil
	}
	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Resolver turns a pdf reference (local path or http/https URL) into a local file
type Resolver struct {
	pathValidator *security.PathValidator
	client        *http.Client
	maxFileSize   int64
	logger        *logrus.Logger
}

// NewResolver creates a resolver for local paths under directory and remote URLs
func NewResolver(directory string, maxFileSize int64, timeout time.Duration, logger *logrus.Logger) (*Resolver, error) {
	pathValidator, err := security.NewPathValidator(directory)
	if err != nil {
		return nil, fmt.Errorf("failed to create path validator: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultDownloadTimeout
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Resolver{
		pathValidator: pathValidator,
		client:        &http.Client{Timeout: timeout},
		maxFileSize:   maxFileSize,
		logger:        logger,
	}, nil
}

// IsRemote reports whether ref is an http or https URL
func IsRemote(ref string) bool {
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Host != ""
}

// Resolve returns a local file for ref. The caller must Close the returned Source.
func (r *Resolver) Resolve(ctx context.Context, ref string) (*Source, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, ErrMissingSource
	}

	if IsRemote(ref) {
		return r.download(ctx, ref)
	}

	path, err := r.pathValidator.NormalizePath(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSource, err)
	}
	return &Source{Path: path}, nil
}

func (r *Resolver) download(ctx context.Context, ref string) (*Source, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSource, err)
	}

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDownload, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %s", ErrDownload, ref, resp.Status)
	}
	if resp.ContentLength > r.maxFileSize {
		return nil, fmt.Errorf("%w: remote file too large: %d bytes (max: %d bytes)",
			ErrInvalidSource, resp.ContentLength, r.maxFileSize)
	}

	tmp, err := os.CreateTemp("", "pdf-filler-source-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file: %w", err)
	}
	src := &Source{Path: tmp.Name(), Remote: true, temporary: true}

	n, err := io.Copy(tmp, io.LimitReader(resp.Body, r.maxFileSize+1))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("%w: %w", ErrDownload, err)
	}
	if n > r.maxFileSize {
		src.Close()
		return nil, fmt.Errorf("%w: remote file too large (max: %d bytes)", ErrInvalidSource, r.maxFileSize)
	}

	r.logger.WithFields(logrus.Fields{
		"url":      ref,
		"bytes":    n,
		"duration": time.Since(start).String(),
	}).Debug("Downloaded remote PDF")

	return src, nil
}
