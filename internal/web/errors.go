package web

import (
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/a3tai/pdf-filler/internal/pdf"
	"github.com/a3tai/pdf-filler/internal/pdftk"
	"github.com/a3tai/pdf-filler/internal/storage"
)

// notAuthorized is the exact body returned for rejected store requests
const notAuthorized = "Not authorized"

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	var toolErr *pdftk.ToolError
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, pdf.ErrMissingSource),
		errors.Is(err, storage.ErrInvalidLocation):
		return http.StatusBadRequest
	case errors.Is(err, pdf.ErrSourceOutsideDirectory),
		errors.Is(err, pdf.ErrInvalidSource):
		return http.StatusUnprocessableEntity
	case errors.Is(err, pdf.ErrDownload),
		errors.Is(err, pdf.ErrStorage):
		return http.StatusBadGateway
	case errors.Is(err, pdf.ErrStorageDisabled):
		return http.StatusServiceUnavailable
	case errors.As(err, &toolErr):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs err and writes it as a plain-text response
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)

	entry := s.logger.WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"status": status,
	}).WithError(err)

	var toolErr *pdftk.ToolError
	if errors.As(err, &toolErr) {
		entry = entry.WithFields(logrus.Fields{
			"exit_code": toolErr.ExitCode,
			"stderr":    toolErr.Stderr,
		})
	}

	if status >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Warn("Request rejected")
	}

	message := err.Error()
	if status == http.StatusInternalServerError && toolErr != nil {
		// stderr can carry local paths
		message = "form tool failed"
	}
	http.Error(w, message, status)
}
