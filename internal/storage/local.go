package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// DefaultDirPerm is used for bucket and path directories
const DefaultDirPerm = 0o750

// LocalStorage keeps documents on a filesystem, laid out as <bucket>/<path>
type LocalStorage struct {
	fs      afero.Fs
	baseURL string
	logger  *logrus.Logger
}

// NewLocalStorage stores documents below root on the OS filesystem
func NewLocalStorage(root, baseURL string, logger *logrus.Logger) (*LocalStorage, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root cannot be empty")
	}
	if err := os.MkdirAll(root, DefaultDirPerm); err != nil {
		return nil, fmt.Errorf("cannot create storage root %s: %w", root, err)
	}
	return NewLocalStorageFs(afero.NewBasePathFs(afero.NewOsFs(), root), baseURL, logger), nil
}

// NewLocalStorageFs stores documents on an arbitrary afero filesystem
func NewLocalStorageFs(fs afero.Fs, baseURL string, logger *logrus.Logger) *LocalStorage {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LocalStorage{fs: fs, baseURL: baseURL, logger: logger}
}

// Store writes the document and returns <baseURL>/files/<bucket>/<path>
func (s *LocalStorage) Store(ctx context.Context, in StoreInput) (string, error) {
	key, err := ValidateLocation(in.Bucket, in.Path)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := path.Join("/", in.Bucket, key)
	if err := s.fs.MkdirAll(path.Dir(name), DefaultDirPerm); err != nil {
		return "", fmt.Errorf("failed to create directory for %s: %w", name, err)
	}

	if _, err := in.Body.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to rewind document: %w", err)
	}

	f, err := s.fs.Create(name)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", name, err)
	}
	if _, err := io.Copy(f, in.Body); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}

	location, err := joinURL(s.baseURL, "files", in.Bucket, key)
	if err != nil {
		return "", err
	}

	s.logger.WithFields(logrus.Fields{
		"bucket": in.Bucket,
		"path":   key,
		"url":    location,
	}).Info("Stored document on local filesystem")

	return location, nil
}

// FileSystem exposes the stored documents for read-only serving
func (s *LocalStorage) FileSystem() http.FileSystem {
	return afero.NewHttpFs(afero.NewReadOnlyFs(s.fs)).Dir("/")
}
