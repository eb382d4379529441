package pdftk

import (
	"encoding/xml"
	"io"
	"sort"
)

const xfdfNamespace = "http://ns.adobe.com/xfdf/"

type xfdfDocument struct {
	XMLName xml.Name    `xml:"xfdf"`
	Xmlns   string      `xml:"xmlns,attr"`
	Space   string      `xml:"xml:space,attr"`
	Fields  []xfdfField `xml:"fields>field"`
}

type xfdfField struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value"`
}

// WriteXFDF encodes field values as an XFDF document, sorted by field name.
// Field names are written verbatim so indexed names like "form[0].name[0]" reach pdftk unchanged.
func WriteXFDF(w io.Writer, fields map[string]string) error {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	doc := xfdfDocument{
		Xmlns:  xfdfNamespace,
		Space:  "preserve",
		Fields: make([]xfdfField, 0, len(names)),
	}
	for _, name := range names {
		doc.Fields = append(doc.Fields, xfdfField{Name: name, Value: fields[name]})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
