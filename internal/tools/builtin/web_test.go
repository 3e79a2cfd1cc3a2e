package builtin

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quasar/internal/ports"
)

func TestReadURLWindowingAndCache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, "<html><body>")
		for i := 0; i < 600; i++ {
			fmt.Fprintf(w, "<p>paragraph number %d with some text</p>", i)
		}
		fmt.Fprint(w, "</body></html>")
	}))
	defer srv.Close()

	tool := NewReadURLTool()
	ctx := context.Background()

	first, err := tool.Execute(ctx, ports.ToolCall{ID: "c1", Name: "read_url", Arguments: map[string]any{
		"url": srv.URL,
	}})
	require.NoError(t, err)
	require.True(t, first.Success(), "%v", first.Error)
	assert.Contains(t, first.Content, "PAGINATION INFO")
	assert.Equal(t, true, first.Metadata["has_more"])
	assert.Equal(t, 0, first.Metadata["offset"])

	body, _, _ := strings.Cut(first.Content, "\n\n--- PAGINATION INFO ---")
	assert.LessOrEqual(t, len(body), 4000)

	second, err := tool.Execute(ctx, ports.ToolCall{ID: "c2", Name: "read_url", Arguments: map[string]any{
		"url": srv.URL, "offset": float64(4000),
	}})
	require.NoError(t, err)
	require.True(t, second.Success())
	assert.Equal(t, 4000, second.Metadata["offset"])

	assert.Equal(t, int32(1), hits.Load(), "pagination must hit the cache, not refetch")
}

func TestReadURLRejectsBadInput(t *testing.T) {
	tool := NewReadURLTool()
	ctx := context.Background()

	missing, _ := tool.Execute(ctx, ports.ToolCall{ID: "c1", Name: "read_url", Arguments: map[string]any{}})
	require.False(t, missing.Success())

	scheme, _ := tool.Execute(ctx, ports.ToolCall{ID: "c2", Name: "read_url", Arguments: map[string]any{
		"url": "ftp://example.com/file",
	}})
	require.False(t, scheme.Success())
	assert.Contains(t, scheme.Error.Error(), "scheme")
}

func TestReadURLOffsetBeyondPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body><p>short page</p></body></html>")
	}))
	defer srv.Close()

	tool := NewReadURLTool()
	result, _ := tool.Execute(context.Background(), ports.ToolCall{ID: "c1", Name: "read_url", Arguments: map[string]any{
		"url": srv.URL, "offset": float64(99999),
	}})
	require.False(t, result.Success())
	assert.Contains(t, result.Error.Error(), "beyond page length")
}

func TestWebSearchWithoutProviderConfigured(t *testing.T) {
	t.Setenv("TAVILY_API_KEY", "")
	t.Setenv("SEARXNG_URL", "")

	tool := NewWebSearchTool()
	result, _ := tool.Execute(context.Background(), ports.ToolCall{ID: "c1", Name: "web_search", Arguments: map[string]any{
		"query": "golang",
	}})
	require.False(t, result.Success())
	assert.Contains(t, result.Error.Error(), "no web search provider")
}

func TestCollapseWhitespace(t *testing.T) {
	in := "  title  \n\n\n\n  body line  \n\t\n  more  "
	assert.Equal(t, "title\n\nbody line\n\nmore", collapseWhitespace(in))
}
