package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"slices"
	"strconv"
)

const (
	paramPDF    = "pdf"
	paramPath   = "path"
	paramBucket = "bucket"
	// paramFields optionally nests field values inside a JSON body
	paramFields = "fields"

	maxMemory = 32 << 20
)

var errBadRequest = errors.New("bad request")

// requestParams collects query, form and JSON body parameters into one flat map.
// Body values take precedence over query values.
func requestParams(r *http.Request, maxBody int64) (map[string]string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "application/json" {
		params := make(map[string]string)
		for key, values := range r.URL.Query() {
			if len(values) > 0 {
				params[key] = values[0]
			}
		}
		if err := decodeJSONParams(http.MaxBytesReader(nil, r.Body, maxBody), params); err != nil {
			return nil, err
		}
		return params, nil
	}

	r.Body = http.MaxBytesReader(nil, r.Body, maxBody)
	var err error
	if mediaType == "multipart/form-data" {
		err = r.ParseMultipartForm(maxMemory)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: invalid form payload: %w", errBadRequest, err)
	}

	params := make(map[string]string, len(r.Form))
	for key, values := range r.Form {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	return params, nil
}

func decodeJSONParams(body io.Reader, params map[string]string) error {
	var payload map[string]any
	dec := json.NewDecoder(body)
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return fmt.Errorf("%w: invalid JSON payload: %w", errBadRequest, err)
	}

	for key, raw := range payload {
		if key == paramFields {
			nested, ok := raw.(map[string]any)
			if !ok {
				return fmt.Errorf("%w: %q must be an object", errBadRequest, paramFields)
			}
			for name, value := range nested {
				s, err := scalarString(value)
				if err != nil {
					return fmt.Errorf("%w: field %q: %w", errBadRequest, name, err)
				}
				params[name] = s
			}
			continue
		}

		s, err := scalarString(raw)
		if err != nil {
			return fmt.Errorf("%w: parameter %q: %w", errBadRequest, key, err)
		}
		params[key] = s
	}
	return nil
}

func scalarString(v any) (string, error) {
	switch value := v.(type) {
	case nil:
		return "", nil
	case string:
		return value, nil
	case json.Number:
		return value.String(), nil
	case bool:
		return strconv.FormatBool(value), nil
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}

// fieldValues returns params without the reserved keys
func fieldValues(params map[string]string, reserved ...string) map[string]string {
	values := make(map[string]string, len(params))
	for key, value := range params {
		if slices.Contains(reserved, key) {
			continue
		}
		values[key] = value
	}
	return values
}
