package pdftk

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFields(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Field
	}{
		{
			name:  "empty listing",
			input: "",
			want:  []Field{},
		},
		{
			name: "text and button fields",
			input: `---
FieldType: Text
FieldName: Name_Last
FieldNameAlt: Last name
FieldFlags: 0
FieldValue: Smith
FieldJustification: Left
FieldMaxLength: 40
---
FieldType: Button
FieldName: Emergency_Contact
FieldFlags: 49152
FieldValue: Off
FieldJustification: Left
FieldStateOption: Off
FieldStateOption: On
`,
			want: []Field{
				{
					Name:          "Name_Last",
					Type:          FieldTypeText,
					Options:       []string{},
					AltName:       "Last name",
					Value:         "Smith",
					Justification: "Left",
					MaxLength:     40,
				},
				{
					Name:          "Emergency_Contact",
					Type:          FieldTypeButton,
					Options:       []string{"Off", "On"},
					Value:         "Off",
					Flags:         49152,
					Justification: "Left",
				},
			},
		},
		{
			name:  "indexed names and colons in values",
			input: "---\r\nFieldType: Text\r\nFieldName: topmostSubform[0].Page5[0].firstname[0]\r\nFieldValue: a: b\r\n",
			want: []Field{
				{
					Name:    "topmostSubform[0].Page5[0].firstname[0]",
					Type:    FieldTypeText,
					Options: []string{},
					Value:   "a: b",
				},
			},
		},
		{
			name:  "record without a name is dropped",
			input: "---\nFieldType: Text\n---\nFieldType: Choice\nFieldName: State\nFieldStateOption: CA\nFieldStateOption: NY\n",
			want: []Field{
				{Name: "State", Type: FieldTypeChoice, Options: []string{"CA", "NY"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFields(strings.NewReader(tt.input))
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseFields() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseFields_InvalidFlags(t *testing.T) {
	_, err := ParseFields(strings.NewReader("---\nFieldName: x\nFieldFlags: abc\n"))
	assert.Error(t, err)
}

func TestField_JSON(t *testing.T) {
	data, err := json.Marshal([]Field{{Name: "PHD", Type: FieldTypeButton, Options: []string{}}})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"PHD","type":"Button","options":[]}]`, string(data))
}

func TestWriteXFDF(t *testing.T) {
	var buf bytes.Buffer
	err := WriteXFDF(&buf, map[string]string{
		"b":    "<second>",
		"a[0]": "first",
	})
	require.NoError(t, err)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, xml.Header))
	assert.Contains(t, out, `xmlns="http://ns.adobe.com/xfdf/"`)
	assert.Contains(t, out, "&lt;second&gt;")
	assert.Less(t, strings.Index(out, `name="a[0]"`), strings.Index(out, `name="b"`))

	var doc xfdfDocument
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &doc))
	want := []xfdfField{{Name: "a[0]", Value: "first"}, {Name: "b", Value: "<second>"}}
	if diff := cmp.Diff(want, doc.Fields); diff != "" {
		t.Errorf("decoded fields mismatch (-want +got):\n%s", diff)
	}
}
