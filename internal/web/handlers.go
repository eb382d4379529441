package web

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/a3tai/pdf-filler/internal/pdf"
)

const (
	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeJSON = "application/json"
	contentTypeText = "text/plain; charset=utf-8"
	contentTypePDF  = "application/pdf"
	contentTypeYAML = "application/yaml"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", contentTypeHTML)
	if err := s.pages.renderIndex(w); err != nil {
		s.writeError(w, r, err)
	}
}

func (s *Server) handleFill(w http.ResponseWriter, r *http.Request) {
	params, err := requestParams(r, s.pdfService.GetMaxFileSize())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.pdfService.Fill(r.Context(), pdf.FillRequest{
		Source: params[paramPDF],
		Values: fieldValues(params, paramPDF),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentTypePDF)
	w.Header().Set("Content-Disposition", `inline; filename="filled.pdf"`)
	w.Header().Set("Content-Length", strconv.Itoa(result.Size))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (s *Server) handleFields(w http.ResponseWriter, r *http.Request) {
	result, err := s.fields(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentTypeHTML)
	if err := s.pages.renderFields(w, result); err != nil {
		s.writeError(w, r, err)
	}
}

func (s *Server) handleFieldsJSON(w http.ResponseWriter, r *http.Request) {
	result, err := s.fields(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result.Fields)
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	result, err := s.fields(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentTypeHTML)
	if err := s.pages.renderForm(w, result); err != nil {
		s.writeError(w, r, err)
	}
}

func (s *Server) handleUncompress(w http.ResponseWriter, r *http.Request) {
	data, err := s.pdfService.Uncompress(r.Context(), pdf.FieldsRequest{Source: r.URL.Query().Get(paramPDF)})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentTypePDF)
	w.Header().Set("Content-Disposition", `inline; filename="uncompressed.pdf"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleStore(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		s.logger.WithField("remote", r.RemoteAddr).Warn("Rejected unauthorized store request")
		w.Header().Set("Content-Type", contentTypeText)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(notAuthorized))
		return
	}

	params, err := requestParams(r, s.pdfService.GetMaxFileSize())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	for _, key := range []string{paramBucket, paramPath} {
		if strings.TrimSpace(params[key]) == "" {
			s.writeError(w, r, fmt.Errorf("%w: missing %s parameter", errBadRequest, key))
			return
		}
	}

	result, err := s.pdfService.Store(r.Context(), pdf.StoreRequest{
		FillRequest: pdf.FillRequest{
			Source: params[paramPDF],
			Values: fieldValues(params, paramPDF, paramBucket, paramPath),
		},
		Bucket: params[paramBucket],
		Path:   params[paramPath],
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentTypeText)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(result.URL))
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Pdftk   string `json:"pdftk,omitempty"`
	Storage bool   `json:"storage"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:  "ok",
		Version: s.config.Version,
		Storage: s.pdfService.StorageEnabled(),
	}
	status := http.StatusOK

	if s.version != nil {
		version, err := s.version(r.Context())
		if err != nil {
			resp.Status = "degraded"
			resp.Error = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			resp.Pdftk = version
		}
	}

	s.writeJSON(w, status, resp)
}

func (s *Server) handleOpenAPIJSON(w http.ResponseWriter, r *http.Request) {
	data, err := json.MarshalIndent(s.apiDoc, "", "  ")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentTypeJSON)
	_, _ = w.Write(data)
}

func (s *Server) handleOpenAPIYAML(w http.ResponseWriter, r *http.Request) {
	data, err := MarshalAPIDocumentYAML(s.apiDoc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentTypeYAML)
	_, _ = w.Write(data)
}

// fields lists the fields of the document named by the pdf query parameter
func (s *Server) fields(r *http.Request) (*pdf.FieldsResult, error) {
	return s.pdfService.Fields(r.Context(), pdf.FieldsRequest{Source: r.URL.Query().Get(paramPDF)})
}

// authorized compares the Authorization header with the configured token
func (s *Server) authorized(r *http.Request) bool {
	token := s.config.AuthorizationToken
	header := r.Header.Get("Authorization")
	if token == "" || header == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(header), []byte(token)) == 1
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
