package pdftk

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Field type names as reported by pdftk
const (
	FieldTypeText   = "Text"
	FieldTypeButton = "Button"
	FieldTypeChoice = "Choice"
	FieldTypeSig    = "Signature"
)

// Field describes one form field of a PDF document
type Field struct {
	Name          string   `json:"name"`
	Type          string   `json:"type"`
	Options       []string `json:"options"`
	AltName       string   `json:"alt_name,omitempty"`
	Value         string   `json:"value,omitempty"`
	Flags         int      `json:"flags,omitempty"`
	Justification string   `json:"justification,omitempty"`
	MaxLength     int      `json:"max_length,omitempty"`
}

// HasOptions reports whether the field restricts its value to a set of states or choices
func (f Field) HasOptions() bool {
	return len(f.Options) > 0
}

// ParseFields reads dump_data_fields output. Records are separated by "---" lines.
func ParseFields(r io.Reader) ([]Field, error) {
	fields := []Field{}
	var current *Field

	flush := func() {
		if current != nil && current.Name != "" {
			fields = append(fields, *current)
		}
		current = nil
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "---" {
			flush()
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimPrefix(value, " ")

		if current == nil {
			current = &Field{Options: []string{}}
		}

		switch key {
		case "FieldType":
			current.Type = value
		case "FieldName":
			current.Name = value
		case "FieldNameAlt":
			current.AltName = value
		case "FieldValue":
			current.Value = value
		case "FieldJustification":
			current.Justification = value
		case "FieldStateOption":
			current.Options = append(current.Options, value)
		case "FieldFlags":
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return nil, fmt.Errorf("invalid FieldFlags %q: %w", value, err)
			}
			current.Flags = n
		case "FieldMaxLength":
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return nil, fmt.Errorf("invalid FieldMaxLength %q: %w", value, err)
			}
			current.MaxLength = n
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read field listing: %w", err)
	}
	flush()

	return fields, nil
}
