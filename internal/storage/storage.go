// Package storage uploads filled documents and returns the URL they can be fetched from.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
)

// ContentTypePDF is the content type stored objects are tagged with by default
const ContentTypePDF = "application/pdf"

// ErrInvalidLocation is returned for an empty or unsafe bucket or path
var ErrInvalidLocation = errors.New("invalid storage location")

// StoreInput describes one object to upload
type StoreInput struct {
	Body        io.ReadSeeker
	Bucket      string
	Path        string
	ContentType string
}

// Storage uploads a document and returns its public URL
type Storage interface {
	Store(ctx context.Context, in StoreInput) (string, error)
}

// ValidateLocation checks the bucket and path of an upload and returns the cleaned object key
func ValidateLocation(bucket, objectPath string) (string, error) {
	if strings.TrimSpace(bucket) == "" {
		return "", fmt.Errorf("%w: bucket cannot be empty", ErrInvalidLocation)
	}
	if strings.ContainsAny(bucket, `/\`) || bucket == "." || bucket == ".." {
		return "", fmt.Errorf("%w: bucket %q", ErrInvalidLocation, bucket)
	}

	objectPath = strings.ReplaceAll(objectPath, "\x00", "")
	if strings.TrimSpace(objectPath) == "" {
		return "", fmt.Errorf("%w: path cannot be empty", ErrInvalidLocation)
	}
	if strings.HasPrefix(objectPath, "/") {
		return "", fmt.Errorf("%w: path must be relative: %s", ErrInvalidLocation, objectPath)
	}
	for _, segment := range strings.Split(objectPath, "/") {
		if segment == ".." {
			return "", fmt.Errorf("%w: path cannot contain '..': %s", ErrInvalidLocation, objectPath)
		}
	}

	return path.Clean(objectPath), nil
}

// joinURL appends escaped path segments to base
func joinURL(base string, segments ...string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", base, err)
	}
	return u.JoinPath(segments...).String(), nil
}

func contentType(in StoreInput) string {
	if in.ContentType == "" {
		return ContentTypePDF
	}
	return in.ContentType
}
