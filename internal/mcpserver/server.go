// Package mcpserver exposes the note tree as MCP tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/agentic-research/florg/internal/service"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via ldflags.
var Version = "dev"

const instructions = `florg is a tree of notes. Paths are written as letters for the first 26
children of a node and decimal numbers after that, "/" separating two
numbers: "" is the root, "A" its first child, "A30/31C" a deep node. The
first line of a note is its title. Every change is recorded and can be undone.`

// New builds the MCP server with every tool registered.
func New(svc *service.Service, logger *slog.Logger) *server.MCPServer {
	if logger == nil {
		logger = slog.Default()
	}
	s := server.NewMCPServer(
		"florg",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)
	h := &handlers{svc: svc, logger: logger}
	for _, t := range h.tools() {
		s.AddTool(t.def, t.fn)
	}
	return s
}

// Serve runs the server on stdin/stdout until the input closes.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

type tool struct {
	def mcp.Tool
	fn  server.ToolHandlerFunc
}

type handlers struct {
	svc    *service.Service
	logger *slog.Logger
}

func pathArg(desc string) mcp.ToolOption {
	return mcp.WithString("path", mcp.Required(), mcp.Description(desc))
}

func (h *handlers) tools() []tool {
	return []tool{
		{mcp.NewTool("get_node",
			mcp.WithDescription("Read a note with its breadcrumbs and children"),
			pathArg("Note path, \"\" for the root")), h.getNode},
		{mcp.NewTool("set_node",
			mcp.WithDescription("Create or replace the text of a note"),
			pathArg("Note path"),
			mcp.WithString("text", mcp.Required(), mcp.Description("Full note text; the first line is the title"))), h.setNode},
		{mcp.NewTool("next_empty_child",
			mcp.WithDescription("Return the first free child path below a note"),
			pathArg("Parent path")), h.nextEmptyChild},
		{mcp.NewTool("delete_node",
			mcp.WithDescription("Delete a note and everything below it"),
			pathArg("Note path")), h.deleteNode},
		{mcp.NewTool("move_node",
			mcp.WithDescription("Move a note and its subtree to a free path"),
			mcp.WithString("from", mcp.Required()),
			mcp.WithString("to", mcp.Required())), h.moveNode},
		{mcp.NewTool("swap_node",
			mcp.WithDescription("Swap a note with its previous or next sibling"),
			pathArg("Note path"),
			mcp.WithString("direction", mcp.Required(), mcp.Enum("previous", "next"))), h.swapNode},
		{mcp.NewTool("sort_children",
			mcp.WithDescription("Order the children of a note by title"),
			pathArg("Parent path")), h.sortChildren},
		{mcp.NewTool("compact_children",
			mcp.WithDescription("Renumber the children of a note without gaps"),
			pathArg("Parent path")), h.compactChildren},
		{mcp.NewTool("search",
			mcp.WithDescription("Case-insensitive full text search at and below a note"),
			pathArg("Where to search, \"\" for everything"),
			mcp.WithString("term", mcp.Required())), h.search},
		{mcp.NewTool("history",
			mcp.WithDescription("List recorded changes, newest first"),
			mcp.WithNumber("limit", mcp.Description("Maximum entries, 0 for all"))), h.history},
		{mcp.NewTool("undo",
			mcp.WithDescription("Restore the tree to the state of a recorded change"),
			mcp.WithString("hash", mcp.Required())), h.undo},
		{mcp.NewTool("create_calendar",
			mcp.WithDescription("Fill an empty note with month and day notes for a year"),
			pathArg("Parent path"),
			mcp.WithNumber("year", mcp.Required())), h.createCalendar},
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}

// failed reports err to the client as a tool error rather than a protocol error.
func (h *handlers) failed(tool string, err error) (*mcp.CallToolResult, error) {
	h.logger.Debug("tool failed", "tool", tool, "err", err)
	return mcp.NewToolResultError(err.Error()), nil
}

func (h *handlers) getNode(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	view, err := h.svc.GetNode(req.GetString("path", ""))
	if err != nil {
		return h.failed("get_node", err)
	}
	return jsonResult(view)
}

func (h *handlers) setNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return h.failed("set_node", err)
	}
	n, err := h.svc.ChangeNodeText(ctx, req.GetString("path", ""), text)
	if err != nil {
		return h.failed("set_node", err)
	}
	return jsonResult(n)
}

func (h *handlers) nextEmptyChild(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	next, err := h.svc.FindNextEmptyChild(req.GetString("path", ""))
	if err != nil {
		return h.failed("next_empty_child", err)
	}
	return mcp.NewToolResultText(next), nil
}

func (h *handlers) deleteNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p := req.GetString("path", "")
	if err := h.svc.DeleteNode(ctx, p); err != nil {
		return h.failed("delete_node", err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted %s", p)), nil
}

func (h *handlers) moveNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	from, err := req.RequireString("from")
	if err != nil {
		return h.failed("move_node", err)
	}
	to, err := req.RequireString("to")
	if err != nil {
		return h.failed("move_node", err)
	}
	if err := h.svc.MoveNode(ctx, from, to); err != nil {
		return h.failed("move_node", err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("moved %s to %s", from, to)), nil
}

func (h *handlers) swapNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p := req.GetString("path", "")
	var err error
	switch dir := req.GetString("direction", ""); dir {
	case "previous":
		err = h.svc.SwapPrevious(ctx, p)
	case "next":
		err = h.svc.SwapNext(ctx, p)
	default:
		err = fmt.Errorf("direction must be previous or next, got %q", dir)
	}
	if err != nil {
		return h.failed("swap_node", err)
	}
	return mcp.NewToolResultText("swapped"), nil
}

func (h *handlers) sortChildren(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	moved, err := h.svc.SortChildren(ctx, req.GetString("path", ""))
	if err != nil {
		return h.failed("sort_children", err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("%d moved", moved)), nil
}

func (h *handlers) compactChildren(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	moved, err := h.svc.CompactChildren(ctx, req.GetString("path", ""))
	if err != nil {
		return h.failed("compact_children", err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("%d moved", moved)), nil
}

func (h *handlers) search(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	term, err := req.RequireString("term")
	if err != nil {
		return h.failed("search", err)
	}
	results, err := h.svc.Search(ctx, req.GetString("path", ""), term)
	if err != nil {
		return h.failed("search", err)
	}
	return jsonResult(results)
}

func (h *handlers) history(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries, err := h.svc.History(ctx, req.GetInt("limit", 20))
	if err != nil {
		return h.failed("history", err)
	}
	return jsonResult(entries)
}

func (h *handlers) undo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	hash, err := req.RequireString("hash")
	if err != nil {
		return h.failed("undo", err)
	}
	if err := h.svc.Undo(ctx, hash); err != nil {
		return h.failed("undo", err)
	}
	return mcp.NewToolResultText("restored " + hash), nil
}

func (h *handlers) createCalendar(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	year, err := req.RequireInt("year")
	if err != nil {
		return h.failed("create_calendar", err)
	}
	n, err := h.svc.CreateCalendar(ctx, req.GetString("path", ""), year)
	if err != nil {
		return h.failed("create_calendar", err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("%d notes written", n)), nil
}
