package pdf

import (
	"errors"

	"github.com/a3tai/pdf-filler/internal/pdf/security"
)

var (
	// ErrMissingSource is returned when a request carries no pdf reference
	ErrMissingSource = errors.New("missing pdf parameter")
	// ErrInvalidSource is returned when the referenced document is absent or not a usable PDF
	ErrInvalidSource = errors.New("invalid pdf source")
	// ErrSourceOutsideDirectory is returned for local paths outside the configured directory
	ErrSourceOutsideDirectory = security.ErrOutsideDirectory
	// ErrDownload is returned when a remote document cannot be fetched
	ErrDownload = errors.New("failed to download pdf")
)

var (
	// ErrStorageDisabled is returned by Store when no storage backend is configured
	ErrStorageDisabled = errors.New("storage is not configured")
	// ErrStorage wraps failures reported by the storage backend
	ErrStorage = errors.New("failed to store document")
)
