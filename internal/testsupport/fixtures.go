// Package testsupport builds PDF fixtures and a scripted form tool for tests.
package testsupport

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/a3tai/pdf-filler/internal/pdftk"
)

// MinimalPDF returns a well-formed PDF with the given number of pages, each showing text
func MinimalPDF(pages int, text string) []byte {
	if pages < 1 {
		pages = 1
	}

	var objects []string
	kids := make([]string, 0, pages)
	for i := 0; i < pages; i++ {
		kids = append(kids, fmt.Sprintf("%d 0 R", 4+i*2))
	}

	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), pages),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	)
	for i := 0; i < pages; i++ {
		content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s %d) Tj ET", escapeString(text), i+1)
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents %d 0 R "+
				"/Resources << /Font << /F1 3 0 R >> >> >>", 5+i*2),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		)
	}

	return serialize(objects)
}

// Form field names in FormPDF
const (
	FormFieldName   = "Name_Last"
	FormFieldNested = "topmostSubform[0].Page1[0].firstname[0]"
)

// FormPDF returns a one-page PDF with an AcroForm holding two text fields:
// FormFieldName at the top level and FormFieldNested inside a field hierarchy.
func FormPDF() []byte {
	content := "BT /F1 12 Tf 72 740 Td (Application) Tj ET"
	widget := "/Type /Annot /Subtype /Widget /FT /Tx /F 4 /P 4 0 R /DA (/Helv 12 Tf 0 g)"

	return serialize([]string{
		"<< /Type /Catalog /Pages 2 0 R /AcroForm << /Fields [6 0 R 7 0 R] /DA (/Helv 0 Tf 0 g) " +
			"/DR << /Font << /Helv 3 0 R >> >> >> >>",
		"<< /Type /Pages /Kids [4 0 R] /Count 1 >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 5 0 R " +
			"/Resources << /Font << /F1 3 0 R >> >> /Annots [6 0 R 9 0 R] >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< " + widget + " /T (" + FormFieldName + ") /Rect [72 690 300 710] >>",
		"<< /T (topmostSubform[0]) /Kids [8 0 R] >>",
		"<< /T (Page1[0]) /Parent 7 0 R /Kids [9 0 R] >>",
		"<< " + widget + " /T (firstname[0]) /Parent 8 0 R /Rect [72 650 300 670] >>",
	})
}

// WriteFormPDF writes a FormPDF into dir and returns its path
func WriteFormPDF(t *testing.T, dir, name string) string {
	t.Helper()
	return writeFixture(t, dir, name, FormPDF())
}

// serialize writes objects numbered from 1 with a cross-reference table; object 1 is the catalog
func serialize(objects []string) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")

	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	return buf.Bytes()
}

func escapeString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`)
	return r.Replace(s)
}

// WritePDF writes a MinimalPDF into dir and returns its path
func WritePDF(t *testing.T, dir, name string, pages int) string {
	t.Helper()
	return writeFixture(t, dir, name, MinimalPDF(pages, name))
}

func writeFixture(t *testing.T, dir, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("create fixture dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

// FillCall records one FakeTool.Fill invocation
type FillCall struct {
	Input  string
	Fields map[string]string
	Opts   pdftk.FillOptions
}

// FakeTool is a scripted form tool. Fill returns a MinimalPDF whose content lists the filled values.
type FakeTool struct {
	mu sync.Mutex

	FieldList []pdftk.Field
	FillErr   error
	FieldsErr error
	// FillOutput replaces the generated document when set
	FillOutput []byte

	FillCalls     []FillCall
	FieldsCalls   []string
	CompressCalls []string
}

// Fill records the call and returns a document mentioning every value
func (f *FakeTool) Fill(_ context.Context, input string, fields map[string]string, opts pdftk.FillOptions) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := os.Stat(input); err != nil {
		return nil, &pdftk.ToolError{Args: []string{input, "fill_form"}, ExitCode: 1, Err: err}
	}

	copied := make(map[string]string, len(fields))
	names := make([]string, 0, len(fields))
	for k, v := range fields {
		copied[k] = v
		names = append(names, k)
	}
	sort.Strings(names)
	f.FillCalls = append(f.FillCalls, FillCall{Input: input, Fields: copied, Opts: opts})

	if f.FillErr != nil {
		return nil, f.FillErr
	}
	if f.FillOutput != nil {
		return f.FillOutput, nil
	}

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+copied[name])
	}
	return MinimalPDF(1, strings.Join(parts, ";")), nil
}

// Fields records the call and returns FieldList
func (f *FakeTool) Fields(_ context.Context, input string) ([]pdftk.Field, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.FieldsCalls = append(f.FieldsCalls, input)
	if f.FieldsErr != nil {
		return nil, f.FieldsErr
	}
	return f.FieldList, nil
}

// Compress returns the input unchanged
func (f *FakeTool) Compress(_ context.Context, input string) ([]byte, error) {
	f.mu.Lock()
	f.CompressCalls = append(f.CompressCalls, input)
	f.mu.Unlock()
	return os.ReadFile(input)
}

// Uncompress returns the input unchanged
func (f *FakeTool) Uncompress(_ context.Context, input string) ([]byte, error) {
	return os.ReadFile(input)
}

// SampleFields mirrors the fields of a typical employment application form
func SampleFields() []pdftk.Field {
	return []pdftk.Field{
		{Name: "Name_Last", Type: pdftk.FieldTypeText, Options: []string{}},
		{Name: "Name_First", Type: pdftk.FieldTypeText, Options: []string{}},
		{Name: "PHD", Type: pdftk.FieldTypeButton, Options: []string{"Off", "Yes"}},
		{Name: "Emergency_Contact", Type: pdftk.FieldTypeText, Options: []string{}},
		{Name: "State", Type: pdftk.FieldTypeChoice, Options: []string{"CA", "NY", "TX"}},
	}
}
