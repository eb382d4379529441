package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/a3tai/pdf-filler/internal/config"
	"github.com/a3tai/pdf-filler/internal/pdf"
	"github.com/a3tai/pdf-filler/internal/pdf/security"
)

const outputFilePerm = 0o600

// Server represents the MCP server instance
type Server struct {
	config     *config.Config
	pdfService *pdf.Service
	outputs    *security.PathValidator
	logger     *logrus.Logger
	mcpServer  *server.MCPServer
}

// toolInfo describes a registered tool for pdf_server_info
type toolInfo struct {
	Name        string
	Description string
	Parameters  string
}

var tools = []toolInfo{
	{
		Name:        "pdf_list_fields",
		Description: "List the form fields of a PDF with their type and allowed values",
		Parameters:  "pdf (required): path relative to the server directory or an http(s) URL",
	},
	{
		Name:        "pdf_fill_form",
		Description: "Fill the form fields of a PDF and write the result inside the server directory",
		Parameters: "pdf (required): path or URL; output (required): destination path; " +
			"fields (required): JSON object of field name to value",
	},
	{
		Name:        "pdf_list_forms",
		Description: "List the PDF forms available in the server directory",
		Parameters:  "query (optional): words to match against form file names; refresh (optional): rescan the directory",
	},
	{
		Name:        "pdf_server_info",
		Description: "Get server information, configuration and available tools",
		Parameters:  "none",
	},
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, pdfService *pdf.Service, logger *logrus.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if pdfService == nil {
		return nil, fmt.Errorf("pdfService cannot be nil")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	outputs, err := security.NewPathValidator(pdfService.Directory())
	if err != nil {
		return nil, err
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		config:     cfg,
		pdfService: pdfService,
		outputs:    outputs,
		logger:     logger,
		mcpServer:  mcpServer,
	}
	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	listFieldsTool := mcp.NewTool(
		tools[0].Name,
		mcp.WithDescription(tools[0].Description),
		mcp.WithString("pdf",
			mcp.Required(),
			mcp.Description("Path relative to the server directory, or an http(s) URL"),
		),
	)
	s.mcpServer.AddTool(listFieldsTool, s.handleListFields)

	fillFormTool := mcp.NewTool(
		tools[1].Name,
		mcp.WithDescription(tools[1].Description),
		mcp.WithString("pdf",
			mcp.Required(),
			mcp.Description("Path relative to the server directory, or an http(s) URL"),
		),
		mcp.WithString("output",
			mcp.Required(),
			mcp.Description("Destination path for the filled PDF, inside the server directory"),
		),
		mcp.WithString("fields",
			mcp.Required(),
			mcp.Description(`JSON object mapping field names to values, e.g. {"Name_Last":"Smith"}`),
		),
	)
	s.mcpServer.AddTool(fillFormTool, s.handleFillForm)

	listFormsTool := mcp.NewTool(
		tools[2].Name,
		mcp.WithDescription(tools[2].Description),
		mcp.WithString("query",
			mcp.Description("Optional words to match against form file names"),
		),
		mcp.WithBoolean("refresh",
			mcp.Description("Rescan the directory instead of using the cached listing"),
		),
	)
	s.mcpServer.AddTool(listFormsTool, s.handleListForms)

	serverInfoTool := mcp.NewTool(
		tools[3].Name,
		mcp.WithDescription(tools[3].Description),
	)
	s.mcpServer.AddTool(serverInfoTool, s.handleServerInfo)
}

func (s *Server) handleListFields(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source, err := request.RequireString("pdf")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.pdfService.Fields(ctx, pdf.FieldsRequest{Source: source})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(s.formatFieldsResult(result)), nil
}

func (s *Server) handleFillForm(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source, err := request.RequireString("pdf")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	output, err := request.RequireString("output")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rawFields, err := request.RequireString("fields")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	values, err := parseFieldValues(rawFields)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	outputPath, err := s.outputs.NormalizePath(output)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid output path: %v", err)), nil
	}

	result, err := s.pdfService.Fill(ctx, pdf.FillRequest{Source: source, Values: values})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), config.DefaultDirPerm); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cannot create output directory: %v", err)), nil
	}
	if err := os.WriteFile(outputPath, result.Data, outputFilePerm); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cannot write output: %v", err)), nil
	}

	s.pdfService.RefreshForms()
	s.logger.WithFields(logrus.Fields{"pdf": source, "output": outputPath}).Debug("Wrote filled PDF")

	return mcp.NewToolResultText(s.formatFillResult(result, outputPath)), nil
}

func (s *Server) handleListForms(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.pdfService.Forms(ctx, pdf.FormsRequest{
		Query:   request.GetString("query", ""),
		Refresh: request.GetBool("refresh", false),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(s.formatFormsResult(result, 0)), nil
}

func (s *Server) handleServerInfo(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	forms, err := s.pdfService.Forms(ctx, pdf.FormsRequest{})
	if err != nil {
		s.logger.WithError(err).Warn("Failed to list forms")
		forms = nil
	}
	return mcp.NewToolResultText(s.formatServerInfo(forms)), nil
}

// parseFieldValues decodes a JSON object of field values. Numbers and booleans are accepted.
func parseFieldValues(raw string) (map[string]string, error) {
	var decoded map[string]any
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		return nil, fmt.Errorf("fields must be a JSON object: %w", err)
	}

	values := make(map[string]string, len(decoded))
	for name, value := range decoded {
		switch v := value.(type) {
		case nil:
			values[name] = ""
		case string:
			values[name] = v
		case json.Number:
			values[name] = v.String()
		case bool:
			values[name] = fmt.Sprintf("%t", v)
		default:
			return nil, fmt.Errorf("field %q: unsupported value type %T", name, value)
		}
	}
	return values, nil
}

func (s *Server) formatFieldsResult(result *pdf.FieldsResult) string {
	if len(result.Fields) == 0 {
		return fmt.Sprintf("No form fields found in %s\n", result.Source)
	}

	text := fmt.Sprintf("Form fields in %s (%d):\n", result.Source, len(result.Fields))
	for i, field := range result.Fields {
		text += fmt.Sprintf("%d. %s [%s]", i+1, field.Name, field.Type)
		if field.HasOptions() {
			text += fmt.Sprintf(" options: %s", strings.Join(field.Options, ", "))
		}
		if field.Value != "" {
			text += fmt.Sprintf(" value: %q", field.Value)
		}
		text += "\n"
	}
	return text
}

func (s *Server) formatFillResult(result *pdf.FillResult, outputPath string) string {
	text := fmt.Sprintf("Filled PDF written to: %s\n", outputPath)
	text += fmt.Sprintf("Size: %d bytes\n", result.Size)
	text += fmt.Sprintf("Fields filled: %d\n", result.FieldCount)
	if result.Placements > 0 {
		text += fmt.Sprintf("Text placements: %d\n", result.Placements)
	}
	return text
}

// formatFormsResult lists forms, showing at most limit entries when limit > 0
func (s *Server) formatFormsResult(result *pdf.FormsResult, limit int) string {
	if len(result.Forms) == 0 {
		if result.Query != "" {
			return fmt.Sprintf("No PDF forms matching %q in %s\n", result.Query, result.Directory)
		}
		return fmt.Sprintf("No PDF forms found in %s\n", result.Directory)
	}

	text := fmt.Sprintf("PDF forms in %s (%d):\n", result.Directory, len(result.Forms))
	for i, form := range result.Forms {
		if limit > 0 && i >= limit {
			text += fmt.Sprintf("   ... and %d more\n", len(result.Forms)-limit)
			break
		}
		text += fmt.Sprintf("   %d. %s (%d bytes)\n", i+1, form.Path, form.Size)
	}
	if result.Truncated {
		text += "   (scan truncated, refine the query to narrow results)\n"
	}
	return text
}

func (s *Server) formatServerInfo(forms *pdf.FormsResult) string {
	text := fmt.Sprintf("%s v%s - Server Information\n", s.config.ServerName, s.config.Version)
	text += fmt.Sprintf("Directory: %s\n", s.pdfService.Directory())
	text += fmt.Sprintf("Form tool: %s\n", s.config.PdftkPath)
	text += fmt.Sprintf("Max File Size: %d MB\n", s.pdfService.GetMaxFileSize()/(1024*1024))
	text += fmt.Sprintf("Flatten: %t, Compress output: %t\n", s.config.Flatten, s.config.CompressOutput)

	if forms != nil {
		text += "\n" + s.formatFormsResult(forms, 10)
	}

	text += "\nAvailable Tools:\n"
	for _, tool := range tools {
		text += fmt.Sprintf("\n- %s\n", tool.Name)
		text += fmt.Sprintf("  Description: %s\n", tool.Description)
		text += fmt.Sprintf("  Parameters: %s\n", tool.Parameters)
	}

	text += "\nA field key of the form x,y,page writes its value as text at that position on the page.\n"
	return text
}

// Run serves MCP over stdin/stdout until ctx is canceled or stdin closes
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve serves MCP over the given streams
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.WithField("directory", s.pdfService.Directory()).Debug("Starting MCP server in stdio mode")

	errWriter := s.logger.WriterLevel(logrus.ErrorLevel)
	defer errWriter.Close()

	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(log.New(errWriter, "", 0))
	if err := stdio.Listen(ctx, in, out); err != nil && ctx.Err() == nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}
