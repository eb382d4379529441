package web

import (
	"encoding/json"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
)

// NewAPIDocument describes the HTTP surface as an OpenAPI 3 document
func NewAPIDocument(title, version string) *openapi3.T {
	if title == "" {
		title = "pdf-filler"
	}
	if version == "" {
		version = "0.0.0"
	}

	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       title,
			Version:     version,
			Description: "Fill PDF forms and store the results.",
		},
		Paths: openapi3.NewPaths(),
	}

	fieldSchema := openapi3.NewObjectSchema().
		WithProperty("name", openapi3.NewStringSchema()).
		WithProperty("type", openapi3.NewStringSchema().WithEnum("Text", "Button", "Choice", "Signature")).
		WithProperty("options", openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema())).
		WithProperty("value", openapi3.NewStringSchema())
	fieldSchema.Required = []string{"name", "type", "options"}

	fillSchema := openapi3.NewObjectSchema().
		WithProperty(paramPDF, openapi3.NewStringSchema()).
		WithAdditionalProperties(openapi3.NewStringSchema())
	fillSchema.Required = []string{paramPDF}

	storeSchema := openapi3.NewObjectSchema().
		WithProperty(paramPDF, openapi3.NewStringSchema()).
		WithProperty(paramBucket, openapi3.NewStringSchema()).
		WithProperty(paramPath, openapi3.NewStringSchema()).
		WithAdditionalProperties(openapi3.NewStringSchema())
	storeSchema.Required = []string{paramPDF, paramBucket, paramPath}

	errorResponse := func(description string) *openapi3.Response {
		return openapi3.NewResponse().
			WithDescription(description).
			WithContent(openapi3.NewContentWithSchema(openapi3.NewStringSchema(), []string{"text/plain"}))
	}

	index := openapi3.NewOperation()
	index.OperationID = "index"
	index.Summary = "Documentation page"
	index.AddResponse(200, htmlResponse("Rendered documentation"))
	doc.Paths.Set("/", &openapi3.PathItem{Get: index})

	fill := openapi3.NewOperation()
	fill.OperationID = "fill"
	fill.Summary = "Fill the form fields of a PDF"
	fill.RequestBody = &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().
		WithRequired(true).
		WithFormDataSchema(fillSchema).
		WithJSONSchema(fillSchema)}
	fill.AddResponse(200, openapi3.NewResponse().
		WithDescription("The filled document").
		WithContent(openapi3.NewContentWithSchema(openapi3.NewStringSchema().WithFormat("binary"), []string{contentTypePDF})))
	fill.AddResponse(400, errorResponse("Missing pdf parameter"))
	fill.AddResponse(422, errorResponse("The source is not a readable PDF"))
	fill.AddResponse(502, errorResponse("The source could not be downloaded"))
	doc.Paths.Set("/fill", &openapi3.PathItem{Post: fill})

	fields := fieldsOperation("fields", "List form fields as HTML", htmlResponse("Field table"))
	doc.Paths.Set("/fields", &openapi3.PathItem{Get: fields})

	fieldsJSON := fieldsOperation("fieldsJSON", "List form fields as JSON", openapi3.NewResponse().
		WithDescription("Field descriptors in document order").
		WithJSONSchema(openapi3.NewArraySchema().WithItems(fieldSchema)))
	doc.Paths.Set("/fields.json", &openapi3.PathItem{Get: fieldsJSON})

	form := fieldsOperation("form", "HTML form posting to /fill", htmlResponse("Generated form"))
	doc.Paths.Set("/form", &openapi3.PathItem{Get: form})

	uncompress := fieldsOperation("uncompress", "The document with uncompressed streams", openapi3.NewResponse().
		WithDescription("The uncompressed document").
		WithContent(openapi3.NewContentWithSchema(openapi3.NewStringSchema().WithFormat("binary"), []string{contentTypePDF})))
	doc.Paths.Set("/uncompress", &openapi3.PathItem{Get: uncompress})

	store := openapi3.NewOperation()
	store.OperationID = "store"
	store.Summary = "Fill a PDF and upload it to bucket/path"
	store.AddParameter(openapi3.NewHeaderParameter("Authorization").
		WithRequired(true).
		WithSchema(openapi3.NewStringSchema()))
	store.RequestBody = &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().
		WithRequired(true).
		WithFormDataSchema(storeSchema).
		WithJSONSchema(storeSchema)}
	store.AddResponse(200, openapi3.NewResponse().
		WithDescription("URL of the stored document").
		WithContent(openapi3.NewContentWithSchema(openapi3.NewStringSchema(), []string{"text/plain"})))
	store.AddResponse(401, errorResponse(notAuthorized))
	store.AddResponse(502, errorResponse("Storage failure"))
	doc.Paths.Set("/store", &openapi3.PathItem{Post: store})

	health := openapi3.NewOperation()
	health.OperationID = "health"
	health.Summary = "Liveness and form tool version"
	health.AddResponse(200, openapi3.NewResponse().
		WithDescription("Healthy").
		WithJSONSchema(openapi3.NewObjectSchema().
			WithProperty("status", openapi3.NewStringSchema()).
			WithProperty("version", openapi3.NewStringSchema()).
			WithProperty("pdftk", openapi3.NewStringSchema()).
			WithProperty("storage", openapi3.NewBoolSchema())))
	health.AddResponse(503, openapi3.NewResponse().WithDescription("The form tool is unavailable"))
	doc.Paths.Set("/healthz", &openapi3.PathItem{Get: health})

	return doc
}

func fieldsOperation(id, summary string, ok *openapi3.Response) *openapi3.Operation {
	op := openapi3.NewOperation()
	op.OperationID = id
	op.Summary = summary
	op.AddParameter(openapi3.NewQueryParameter(paramPDF).
		WithRequired(true).
		WithSchema(openapi3.NewStringSchema()))
	op.AddResponse(200, ok)
	op.AddResponse(400, openapi3.NewResponse().WithDescription("Missing pdf parameter"))
	op.AddResponse(422, openapi3.NewResponse().WithDescription("The source is not a readable PDF"))
	return op
}

func htmlResponse(description string) *openapi3.Response {
	return openapi3.NewResponse().
		WithDescription(description).
		WithContent(openapi3.NewContentWithSchema(openapi3.NewStringSchema(), []string{"text/html"}))
}

// MarshalAPIDocumentYAML renders doc as block-style YAML
func MarshalAPIDocumentYAML(doc *openapi3.T) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode API document: %w", err)
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("failed to decode API document: %w", err)
	}
	blockStyle(&node)

	out, err := yaml.Marshal(&node)
	if err != nil {
		return nil, fmt.Errorf("failed to encode API document as YAML: %w", err)
	}
	return out, nil
}

// blockStyle clears the flow and quoting styles the JSON input carries
func blockStyle(node *yaml.Node) {
	node.Style = 0
	for _, child := range node.Content {
		blockStyle(child)
	}
}
