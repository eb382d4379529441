package pdftk

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
)

// DefaultBinary is used when no explicit path to pdftk is configured
const DefaultBinary = "pdftk"

// Tool wraps the pdftk command-line binary
type Tool struct {
	path   string
	logger *logrus.Logger
}

// FillOptions controls how pdftk writes the filled document
type FillOptions struct {
	// Flatten merges the field values into the page content
	Flatten bool
	// NeedAppearances asks viewers to regenerate field appearances
	NeedAppearances bool
}

// ToolError is returned when pdftk is missing or exits unsuccessfully
type ToolError struct {
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ToolError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("pdftk %s failed (exit %d): %s", strings.Join(e.Args, " "), e.ExitCode, msg)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// New creates a Tool for the binary at path. An empty path falls back to DefaultBinary.
func New(path string, logger *logrus.Logger) *Tool {
	if path == "" {
		path = DefaultBinary
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Tool{path: path, logger: logger}
}

// Path returns the configured binary path
func (t *Tool) Path() string {
	return t.path
}

// Fill fills the form fields of the PDF at input and returns the resulting document
func (t *Tool) Fill(ctx context.Context, input string, fields map[string]string, opts FillOptions) ([]byte, error) {
	xfdf, err := os.CreateTemp("", "pdftk-fields-*.xfdf")
	if err != nil {
		return nil, fmt.Errorf("failed to create field data file: %w", err)
	}
	defer os.Remove(xfdf.Name())

	if err := WriteXFDF(xfdf, fields); err != nil {
		xfdf.Close()
		return nil, fmt.Errorf("failed to write field data: %w", err)
	}
	if err := xfdf.Close(); err != nil {
		return nil, fmt.Errorf("failed to write field data: %w", err)
	}

	args := []string{input, "fill_form", xfdf.Name(), "output", "-"}
	if opts.NeedAppearances {
		args = append(args, "need_appearances")
	}
	if opts.Flatten {
		args = append(args, "flatten")
	}

	return t.run(ctx, args...)
}

// Fields lists the form fields of the PDF at input in document order
func (t *Tool) Fields(ctx context.Context, input string) ([]Field, error) {
	out, err := t.run(ctx, input, "dump_data_fields_utf8")
	if err != nil {
		return nil, err
	}
	return ParseFields(bytes.NewReader(out))
}

// Compress compresses the page streams of the PDF at input
func (t *Tool) Compress(ctx context.Context, input string) ([]byte, error) {
	return t.run(ctx, input, "output", "-", "compress")
}

// Uncompress removes stream compression so the document content is readable as text
func (t *Tool) Uncompress(ctx context.Context, input string) ([]byte, error) {
	return t.run(ctx, input, "output", "-", "uncompress")
}

// Version returns the first line reported by pdftk --version
func (t *Tool) Version(ctx context.Context) (string, error) {
	out, err := t.run(ctx, "--version")
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line, nil
		}
	}
	return "", nil
}

func (t *Tool) run(ctx context.Context, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, t.path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	t.logger.WithFields(logrus.Fields{
		"binary": t.path,
		"args":   args,
	}).Debug("Running pdftk")

	if err := cmd.Run(); err != nil {
		toolErr := &ToolError{Args: args, ExitCode: -1, Stderr: stderr.String(), Err: err}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			toolErr.ExitCode = exitErr.ExitCode()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			toolErr.Err = ctxErr
		}
		return nil, toolErr
	}

	return stdout.Bytes(), nil
}
