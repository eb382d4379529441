package pdf

import (
	"fmt"
	"os"

	"github.com/ledongthuc/pdf"
	"github.com/mattetti/filebuffer"
)

// Validator handles PDF file validation operations
type Validator struct {
	maxFileSize int64
}

// NewValidator creates a new PDF validator with the specified constraints
func NewValidator(maxFileSize int64) *Validator {
	return &Validator{
		maxFileSize: maxFileSize,
	}
}

// ValidateFile checks that filePath is a readable, non-empty PDF within the size limit
func (v *Validator) ValidateFile(filePath string) error {
	if filePath == "" {
		return fmt.Errorf("%w: path cannot be empty", ErrInvalidSource)
	}

	fileInfo, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: file does not exist: %s", ErrInvalidSource, filePath)
	}
	if err != nil {
		return fmt.Errorf("%w: cannot access file: %w", ErrInvalidSource, err)
	}

	if fileInfo.IsDir() {
		return fmt.Errorf("%w: path is a directory, not a file: %s", ErrInvalidSource, filePath)
	}

	if err := v.checkSize(fileInfo.Size()); err != nil {
		return err
	}

	f, _, err := pdf.Open(filePath)
	if err != nil {
		return fmt.Errorf("%w: invalid PDF file: %w", ErrInvalidSource, err)
	}
	defer f.Close()

	return nil
}

// ValidateBytes checks an in-memory document the same way ValidateFile checks a file
func (v *Validator) ValidateBytes(data []byte) error {
	if err := v.checkSize(int64(len(data))); err != nil {
		return err
	}
	return v.ValidateOutput(data)
}

// ValidateOutput checks that a generated document is readable. Generated documents may exceed the input size limit.
func (v *Validator) ValidateOutput(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: document is empty", ErrInvalidSource)
	}
	if _, err := pdf.NewReader(filebuffer.New(data), int64(len(data))); err != nil {
		return fmt.Errorf("%w: invalid PDF data: %w", ErrInvalidSource, err)
	}
	return nil
}

func (v *Validator) checkSize(size int64) error {
	if size == 0 {
		return fmt.Errorf("%w: file is empty", ErrInvalidSource)
	}
	if size > v.maxFileSize {
		return fmt.Errorf("%w: file too large: %d bytes (max: %d bytes)",
			ErrInvalidSource, size, v.maxFileSize)
	}
	return nil
}
