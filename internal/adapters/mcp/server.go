// Package mcpadapter exposes the validator as MCP tools so assistants can
// check uploads without going through the REST API.
package mcpadapter

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/document-validator/internal/adapters/presenter"
	"github.com/kirillkom/document-validator/internal/core/domain"
	"github.com/kirillkom/document-validator/internal/core/ports"
)

const (
	ServerName    = "document-validator"
	ServerVersion = "1.0.0"

	toolValidate   = "validate_document"
	toolCategories = "list_categories"
)

type Tools struct {
	validator ports.DocumentValidator
	catalog   ports.CategoryCatalog
	logger    *slog.Logger
}

func NewTools(validator ports.DocumentValidator, catalog ports.CategoryCatalog, logger *slog.Logger) *Tools {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tools{validator: validator, catalog: catalog, logger: logger}
}

// NewServer registers the tools on a fresh MCP server.
func NewServer(tools *Tools) *server.MCPServer {
	s := server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool(toolValidate,
		mcp.WithDescription("Valida se um documento (imagem, PDF ou Word) corresponde ao tipo esperado."),
		mcp.WithString("file_base64",
			mcp.Required(),
			mcp.Description("Conteúdo do arquivo em base64 (aceita data URI)."),
		),
		mcp.WithString("expected_type",
			mcp.Required(),
			mcp.Description("Categoria esperada do documento."),
			mcp.Enum(tools.catalog.Categories()...),
		),
		mcp.WithString("file_name",
			mcp.Description("Nome original do arquivo; a extensão orienta a verificação de integridade."),
		),
	), tools.validateDocument)

	s.AddTool(mcp.NewTool(toolCategories,
		mcp.WithDescription("Lista as categorias de documento aceitas."),
	), tools.listCategories)

	return s
}

// NewHTTPHandler serves the MCP streamable HTTP transport.
func NewHTTPHandler(s *server.MCPServer) *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(s)
}

func (t *Tools) validateDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	encoded, err := req.RequireString("file_base64")
	if err != nil {
		return mcp.NewToolResultError(presenter.MessageMissingData), nil
	}
	expected, err := req.RequireString("expected_type")
	if err != nil {
		return mcp.NewToolResultError(presenter.MessageMissingData), nil
	}
	fileName := presenter.FileName(req.GetString("file_name", ""))

	content, err := presenter.DecodeBase64(encoded)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	verdict, err := t.validator.Validate(ctx, domain.ValidationRequest{
		Content:      content,
		Filename:     fileName,
		ExpectedType: expected,
	})
	if err != nil {
		if domain.IsKind(err, domain.ErrInvalidInput) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		t.logger.Error("mcp_validate_failed", "file_name", fileName, "error", err)
		return mcp.NewToolResultError(presenter.MessageInternal), nil
	}

	return jsonResult(presenter.FromVerdict(verdict, fileName, ""))
}

func (t *Tools) listCategories(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]any{
		"categories": t.catalog.Categories(),
		"catch_all":  t.catalog.CatchAll(),
	})
}

func jsonResult(payload any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(raw)), nil
}
