package pdf

import (
	"github.com/a3tai/pdf-filler/internal/pdftk"
)

// Field describes one fillable element of a form
type Field = pdftk.Field

// Request Types

// FillRequest represents a request to fill the form fields of a PDF
type FillRequest struct {
	// Source is a local path (relative to the configured directory) or an http(s) URL
	Source string            `json:"pdf"`
	Values map[string]string `json:"values"`
}

// FieldsRequest represents a request to list the form fields of a PDF
type FieldsRequest struct {
	Source string `json:"pdf"`
}

// StoreRequest represents a request to fill a PDF and upload the result
type StoreRequest struct {
	FillRequest
	Bucket string `json:"bucket"`
	Path   string `json:"path"`
}

// Response Types

// FillResult holds a filled document
type FillResult struct {
	Source     string `json:"pdf"`
	Data       []byte `json:"-"`
	Size       int    `json:"size"`
	FieldCount int    `json:"field_count"`
	Placements int    `json:"placements"`
}

// FieldsResult holds the fields of a document in document order
type FieldsResult struct {
	Source string  `json:"pdf"`
	Fields []Field `json:"fields"`
}

// StoreResult holds the location of an uploaded document
type StoreResult struct {
	URL    string `json:"url"`
	Bucket string `json:"bucket"`
	Path   string `json:"path"`
	Size   int    `json:"size"`
}
