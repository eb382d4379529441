package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"

	"github.com/a3tai/pdf-filler/internal/pdf"
	"github.com/a3tai/pdf-filler/internal/pdftk"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed docs/index.md
var indexMarkdown []byte

const (
	controlText     = "text"
	controlSelect   = "select"
	controlCheckbox = "checkbox"
)

type pages struct {
	index  *template.Template
	fields *template.Template
	form   *template.Template
	docs   template.HTML
}

type indexView struct {
	Title string
	Docs  template.HTML
}

type fieldsView struct {
	Title  string
	Source string
	Fields []pdf.Field
}

type formControl struct {
	ID           string
	Kind         string
	CheckedValue string
	Field        pdf.Field
}

type formView struct {
	Title    string
	Source   string
	Controls []formControl
}

func newPages() (*pages, error) {
	funcs := template.FuncMap{"join": strings.Join}

	parse := func(name string) (*template.Template, error) {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		return t, nil
	}

	p := &pages{docs: renderMarkdown(indexMarkdown)}
	var err error
	if p.index, err = parse("index.html"); err != nil {
		return nil, err
	}
	if p.fields, err = parse("fields.html"); err != nil {
		return nil, err
	}
	if p.form, err = parse("form.html"); err != nil {
		return nil, err
	}
	return p, nil
}

// renderMarkdown converts md to sanitized HTML
func renderMarkdown(md []byte) template.HTML {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse(md)

	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{Flags: mdhtml.CommonFlags})
	unsafe := markdown.Render(doc, renderer)

	// #nosec G203 -- sanitized by bluemonday
	return template.HTML(bluemonday.UGCPolicy().SanitizeBytes(unsafe))
}

func (p *pages) renderIndex(w io.Writer) error {
	return render(w, p.index, indexView{Title: "Documentation", Docs: p.docs})
}

func (p *pages) renderFields(w io.Writer, result *pdf.FieldsResult) error {
	return render(w, p.fields, fieldsView{Title: "Fields", Source: result.Source, Fields: result.Fields})
}

func (p *pages) renderForm(w io.Writer, result *pdf.FieldsResult) error {
	controls := make([]formControl, 0, len(result.Fields))
	for i, field := range result.Fields {
		controls = append(controls, controlFor(i, field))
	}
	return render(w, p.form, formView{Title: "Fill form", Source: result.Source, Controls: controls})
}

// controlFor picks the input element for a field
func controlFor(i int, field pdf.Field) formControl {
	c := formControl{ID: fmt.Sprintf("field-%d", i), Kind: controlText, Field: field}
	switch {
	case field.Type == pdftk.FieldTypeButton && field.HasOptions():
		c.Kind = controlCheckbox
		c.CheckedValue = checkedState(field.Options)
	case field.HasOptions():
		c.Kind = controlSelect
	}
	return c
}

// checkedState returns the first state other than Off
func checkedState(options []string) string {
	for _, option := range options {
		if option != "Off" {
			return option
		}
	}
	return options[0]
}

// render executes into a buffer so a template error never leaves a half-written page
func render(w io.Writer, t *template.Template, data any) error {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("failed to render page: %w", err)
	}
	_, err := buf.WriteTo(w)
	return err
}
