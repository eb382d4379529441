package pdftk

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fakeScript = `#!/bin/sh
if [ "$1" = "--version" ]; then
  echo ""
  echo "pdftk port to java 3.3.3 a Handy Tool for Manipulating PDF Documents"
  exit 0
fi
if [ "$1" = "missing.pdf" ]; then
  echo "Error: Unable to find file." >&2
  exit 3
fi
case "$2" in
  dump_data_fields_utf8)
    cat <<'EOF'
---
FieldType: Text
FieldName: Name_Last
FieldFlags: 0
FieldJustification: Left
---
FieldType: Button
FieldName: PHD
FieldFlags: 0
FieldStateOption: Off
FieldStateOption: Yes
EOF
    ;;
  fill_form)
    cat "$3"
    ;;
  output)
    printf '%s:' "$4"
    cat "$1"
    ;;
esac
`

func fakeTool(t *testing.T) *Tool {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake pdftk requires a POSIX shell")
	}

	dir := t.TempDir()
	bin := filepath.Join(dir, "pdftk")
	require.NoError(t, os.WriteFile(bin, []byte(fakeScript), 0o755))

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	return New(bin, logger)
}

func TestNew_DefaultBinary(t *testing.T) {
	tool := New("", nil)
	assert.Equal(t, DefaultBinary, tool.Path())

	tool = New("/opt/pdftk/bin/pdftk", nil)
	assert.Equal(t, "/opt/pdftk/bin/pdftk", tool.Path())
}

func TestTool_Fields(t *testing.T) {
	tool := fakeTool(t)

	fields, err := tool.Fields(context.Background(), "sample.pdf")
	require.NoError(t, err)
	require.Len(t, fields, 2)

	assert.Equal(t, "Name_Last", fields[0].Name)
	assert.Equal(t, FieldTypeText, fields[0].Type)
	assert.Empty(t, fields[0].Options)

	assert.Equal(t, "PHD", fields[1].Name)
	assert.Equal(t, FieldTypeButton, fields[1].Type)
	assert.Equal(t, []string{"Off", "Yes"}, fields[1].Options)
}

func TestTool_Fill(t *testing.T) {
	tool := fakeTool(t)

	out, err := tool.Fill(context.Background(), "sample.pdf", map[string]string{
		"Name_Last": "_MYGOV_FILLABLE_",
		"topmostSubform[0].Page5[0].firstname[0]": "Jane & Co",
	}, FillOptions{})
	require.NoError(t, err)

	body := string(out)
	assert.Contains(t, body, `<field name="Name_Last">`)
	assert.Contains(t, body, "_MYGOV_FILLABLE_")
	assert.Contains(t, body, `<field name="topmostSubform[0].Page5[0].firstname[0]">`)
	assert.Contains(t, body, "Jane &amp; Co")
}

func TestTool_CompressUncompress(t *testing.T) {
	tool := fakeTool(t)

	input := filepath.Join(t.TempDir(), "in.pdf")
	require.NoError(t, os.WriteFile(input, []byte("%PDF-1.4"), 0o600))

	out, err := tool.Compress(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, "compress:%PDF-1.4", string(out))

	out, err = tool.Uncompress(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, "uncompress:%PDF-1.4", string(out))
}

func TestTool_Version(t *testing.T) {
	tool := fakeTool(t)

	version, err := tool.Version(context.Background())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(version, "pdftk port to java"))
}

func TestTool_NonZeroExit(t *testing.T) {
	tool := fakeTool(t)

	_, err := tool.Fields(context.Background(), "missing.pdf")
	require.Error(t, err)

	var toolErr *ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, 3, toolErr.ExitCode)
	assert.Contains(t, toolErr.Error(), "Unable to find file")
	assert.Equal(t, []string{"missing.pdf", "dump_data_fields_utf8"}, toolErr.Args)
}

func TestTool_MissingBinary(t *testing.T) {
	tool := New(filepath.Join(t.TempDir(), "does-not-exist"), nil)

	_, err := tool.Uncompress(context.Background(), "sample.pdf")
	require.Error(t, err)

	var toolErr *ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, -1, toolErr.ExitCode)
}

func TestTool_CanceledContext(t *testing.T) {
	tool := fakeTool(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tool.Fields(ctx, "sample.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
