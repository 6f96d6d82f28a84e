package mcpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/agentic-research/florg/api"
	"github.com/agentic-research/florg/internal/service"
	"github.com/agentic-research/florg/internal/store"
	"github.com/agentic-research/florg/internal/versioning"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHandlers(t *testing.T) (*handlers, *versioning.Recorder) {
	t.Helper()
	rec := &versioning.Recorder{}
	st, err := store.Open(t.TempDir(), store.Options{Bridge: rec})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return &handlers{svc: service.New(st, nil), logger: slog.Default()}, rec
}

func call(t *testing.T, fn func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (string, bool) {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	res, err := fn(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	switch c := res.Content[0].(type) {
	case mcp.TextContent:
		return c.Text, res.IsError
	case *mcp.TextContent:
		return c.Text, res.IsError
	}
	t.Fatalf("unexpected content %T", res.Content[0])
	return "", false
}

func TestNewRegistersTools(t *testing.T) {
	h, _ := newHandlers(t)
	s := New(h.svc, nil)
	require.NotNil(t, s)

	names := map[string]bool{}
	for _, tl := range h.tools() {
		names[tl.def.Name] = true
	}
	for _, want := range []string{"get_node", "set_node", "move_node", "search", "undo", "create_calendar"} {
		assert.True(t, names[want], want)
	}
}

func TestSetAndGetNode(t *testing.T) {
	h, rec := newHandlers(t)

	text, isErr := call(t, h.setNode, map[string]any{"path": "A", "text": "Inbox\n\nstuff"})
	require.False(t, isErr, text)

	text, isErr = call(t, h.getNode, map[string]any{"path": "A"})
	require.False(t, isErr, text)
	var view api.NodeView
	require.NoError(t, json.Unmarshal([]byte(text), &view))
	require.NotNil(t, view.Node)
	assert.Equal(t, "Inbox", view.Node.Header.Title)

	text, _ = call(t, h.nextEmptyChild, map[string]any{"path": ""})
	assert.Equal(t, "B", text)

	assert.Equal(t, []string{"Added node A 'Inbox'"}, rec.Messages())
}

func TestErrorsAreToolResults(t *testing.T) {
	h, _ := newHandlers(t)

	text, isErr := call(t, h.getNode, map[string]any{"path": "lower"})
	assert.True(t, isErr)
	assert.Contains(t, text, "lower")

	_, isErr = call(t, h.deleteNode, map[string]any{"path": "Q"})
	assert.True(t, isErr)

	_, isErr = call(t, h.swapNode, map[string]any{"path": "A", "direction": "sideways"})
	assert.True(t, isErr)

	_, isErr = call(t, h.setNode, map[string]any{"path": "A"})
	assert.True(t, isErr, "text is required")
}

func TestReorderTools(t *testing.T) {
	h, rec := newHandlers(t)
	call(t, h.setNode, map[string]any{"path": "AA", "text": "b"})
	call(t, h.setNode, map[string]any{"path": "AC", "text": "a"})

	text, isErr := call(t, h.sortChildren, map[string]any{"path": "A"})
	require.False(t, isErr, text)
	assert.Equal(t, "2 moved", text)

	text, isErr = call(t, h.compactChildren, map[string]any{"path": "A"})
	require.False(t, isErr, text)
	assert.Equal(t, "0 moved", text, "sorting already packs the slots")

	_, isErr = call(t, h.swapNode, map[string]any{"path": "AA", "direction": "next"})
	require.False(t, isErr)
	_, isErr = call(t, h.moveNode, map[string]any{"from": "AA", "to": "B"})
	require.False(t, isErr)

	assert.Equal(t, []string{
		"Added node AA 'b'",
		"Added node AC 'a'",
		"Sorted children of A",
		"Swapped AA with AB",
		"Moved node AA to B",
	}, rec.Messages())
}
