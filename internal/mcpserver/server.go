// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes the expression tree for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/inkmath/internal/jiix"
	"github.com/starford/inkmath/internal/models"
	"github.com/starford/inkmath/internal/storage"
)

// Editor is the session surface the tools drive.
type Editor interface {
	EraseIDs(ctx context.Context, ids []string) (*models.Tree, error)
	Load(ctx context.Context, data []byte, source string) (*models.Tree, error)
	Snapshot() *models.Tree
	Blocks() []models.BlockSummary
}

// Server wraps the MCP server with inkmath tools.
type Server struct {
	mcp   *server.MCPServer
	ed    Editor
	store storage.Provider
}

// New creates a new MCP server with all tools registered. store may be nil,
// which disables the document tools' drop-directory access.
func New(ed Editor, store storage.Provider) *Server {
	s := &Server{ed: ed, store: store}

	s.mcp = server.NewMCPServer(
		"Inkmath",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("get_expression_tree",
		mcp.WithDescription("Return the current recognised expression tree as JSON."),
	), s.getExpressionTree)

	s.mcp.AddTool(mcp.NewTool("list_blocks",
		mcp.WithDescription("List every block of the tree in pre-order with its id, kind, label and depth."),
	), s.listBlocks)

	s.mcp.AddTool(mcp.NewTool("erase_block",
		mcp.WithDescription("Delete blocks by id. Parents collapse or gain an unsolved placeholder as needed."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Block id, or several ids separated by commas")),
	), s.eraseBlock)

	s.mcp.AddTool(mcp.NewTool("load_jiix",
		mcp.WithDescription("Replace the tree with a JIIX document. "+
			"Pass the document inline or name a stored document. Read the grammar first via "+
			"the get_grammar tool or the "+grammarURI+" resource."),
		mcp.WithString("json", mcp.Description("Inline JIIX document")),
		mcp.WithString("path", mcp.Description("Stored document to load (e.g. session.json)")),
		mcp.WithString("save_as", mcp.Description("Optional name to store an inline document under")),
	), s.loadJIIX)

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List stored JIIX documents."),
	), s.listDocuments)

	s.mcp.AddTool(mcp.NewTool("get_grammar",
		mcp.WithDescription("Returns the accepted JIIX grammar."),
	), s.getGrammar)

	s.mcp.AddResource(
		mcp.NewResource(grammarURI, "JIIX Grammar",
			mcp.WithResourceDescription("Type tags and structure of accepted JIIX documents."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readGrammarResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

// optString returns an optional string argument, or "" when absent.
func optString(req mcp.CallToolRequest, key string) string {
	v, err := req.RequireString(key)
	if err != nil {
		return ""
	}
	return v
}

func errorResult(err error) *mcp.CallToolResult {
	var pe *jiix.ParseError
	if errors.As(err, &pe) {
		return mcp.NewToolResultError(fmt.Sprintf("%s\noffending json: %s", pe.Error(), pe.Fragment()))
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) getExpressionTree(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.ed.Snapshot()), nil
}

func (s *Server) listBlocks(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.ed.Blocks()), nil
}

func (s *Server) eraseBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var ids []string
	for id := range strings.SplitSeq(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return mcp.NewToolResultError("no block id given"), nil
	}
	tree, err := s.ed.EraseIDs(ctx, ids)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(tree), nil
}

func (s *Server) loadJIIX(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	inline := optString(req, "json")
	path := optString(req, "path")
	saveAs := optString(req, "save_as")

	var data []byte
	source := "mcp"
	switch {
	case inline != "" && path != "":
		return mcp.NewToolResultError("pass either json or path, not both"), nil
	case inline != "":
		data = []byte(inline)
	case path != "":
		if s.store == nil {
			return mcp.NewToolResultError("no document store configured"), nil
		}
		d, err := s.store.Read(path)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
		}
		data, source = d, path
	default:
		return mcp.NewToolResultError("json or path is required"), nil
	}

	if saveAs != "" {
		if s.store == nil {
			return mcp.NewToolResultError("no document store configured"), nil
		}
		if !storage.IsDocument(saveAs) {
			return mcp.NewToolResultError(fmt.Sprintf("invalid document name: %s (must end with %s)", saveAs, storage.Ext)), nil
		}
	}

	tree, err := s.ed.Load(ctx, data, source)
	if err != nil {
		return errorResult(err), nil
	}
	if saveAs != "" {
		if err := s.store.Write(saveAs, data); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to store document: %v", err)), nil
		}
	}
	return jsonResult(tree), nil
}

func (s *Server) listDocuments(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.store == nil {
		return mcp.NewToolResultText(""), nil
	}
	metas, err := s.store.List("")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	paths := make([]string, 0, len(metas))
	for _, m := range metas {
		paths = append(paths, m.Path)
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}

func (s *Server) getGrammar(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(GrammarContract), nil
}

func (s *Server) readGrammarResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      grammarURI,
			MIMEType: "text/markdown",
			Text:     GrammarContract,
		},
	}, nil
}
