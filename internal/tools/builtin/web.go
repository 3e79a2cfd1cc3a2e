package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	lru "github.com/hashicorp/golang-lru/v2"

	"quasar/internal/config"
	"quasar/internal/ports"
)

// WebSearchTool queries Tavily when a key is configured, otherwise a
// SearxNG instance named by SEARXNG_URL.
type WebSearchTool struct {
	client *http.Client
}

// NewWebSearchTool creates the web_search tool.
func NewWebSearchTool() *WebSearchTool {
	return &WebSearchTool{client: &http.Client{Timeout: 20 * time.Second}}
}

func (t *WebSearchTool) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{
		Name:        "web_search",
		Description: "Search the web and return result titles, URLs, and snippets.",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"query": {Type: "string", Description: "Search query"},
			},
			Required: []string{"query"},
		},
	}
}

func (t *WebSearchTool) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	start := time.Now()
	query := call.StringArg("query")
	if query == "" {
		return failure(call, fmt.Errorf("missing 'query'"), start), nil
	}

	var (
		content string
		err     error
	)
	if key := os.Getenv("TAVILY_API_KEY"); key != "" {
		content, err = t.searchTavily(ctx, key, query)
	} else if base := os.Getenv("SEARXNG_URL"); base != "" {
		content, err = t.searchSearx(ctx, base, query)
	} else {
		err = fmt.Errorf("no web search provider configured (set TAVILY_API_KEY or SEARXNG_URL)")
	}
	if err != nil {
		return failure(call, err, start), nil
	}

	return &ports.ToolResult{
		CallID:   call.ID,
		ToolName: call.Name,
		Content:  content,
		Duration: time.Since(start),
	}, nil
}

func (t *WebSearchTool) searchTavily(ctx context.Context, key, query string) (string, error) {
	body, _ := json.Marshal(map[string]any{
		"api_key":     key,
		"query":       query,
		"max_results": 5,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.tavily.com/search", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("tavily returned %d", resp.StatusCode)
	}

	var parsed struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	return renderSearchResults(query, func(yield func(title, link, snippet string)) {
		for _, r := range parsed.Results {
			yield(r.Title, r.URL, r.Content)
		}
	}), nil
}

func (t *WebSearchTool) searchSearx(ctx context.Context, base, query string) (string, error) {
	endpoint := strings.TrimRight(base, "/") + "/search?format=json&q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("searxng returned %d", resp.StatusCode)
	}

	var parsed struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if len(parsed.Results) > 5 {
		parsed.Results = parsed.Results[:5]
	}
	return renderSearchResults(query, func(yield func(title, link, snippet string)) {
		for _, r := range parsed.Results {
			yield(r.Title, r.URL, r.Content)
		}
	}), nil
}

func renderSearchResults(query string, each func(yield func(title, link, snippet string))) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Search results for %q:\n\n", query)
	i := 0
	each(func(title, link, snippet string) {
		i++
		fmt.Fprintf(&b, "%d. %s\n   %s\n   %s\n\n", i, title, link, clipText(snippet, 300))
	})
	if i == 0 {
		b.WriteString("No results.\n")
	}
	return b.String()
}

// ReadURLTool fetches a page, strips it to text, and returns one
// 4000-character window at a time. Fetched pages are cached so
// pagination does not refetch.
type ReadURLTool struct {
	client *http.Client
	cache  *lru.Cache[string, string]
}

// NewReadURLTool creates the read_url tool with a 32-page text cache.
func NewReadURLTool() *ReadURLTool {
	cache, _ := lru.New[string, string](32)
	return &ReadURLTool{
		client: &http.Client{Timeout: 30 * time.Second},
		cache:  cache,
	}
}

func (t *ReadURLTool) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{
		Name:        "read_url",
		Description: "Fetch a web page as plain text. Long pages are windowed; pass offset to continue reading where the previous call stopped.",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"url":    {Type: "string", Description: "Page URL (http or https)"},
				"offset": {Type: "integer", Description: "Character offset to start the window at, defaults to 0"},
			},
			Required: []string{"url"},
		},
	}
}

func (t *ReadURLTool) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	start := time.Now()
	pageURL := call.StringArg("url")
	if pageURL == "" {
		return failure(call, fmt.Errorf("missing 'url'"), start), nil
	}
	if !strings.HasPrefix(pageURL, "http://") && !strings.HasPrefix(pageURL, "https://") {
		return failure(call, fmt.Errorf("unsupported URL scheme: %s", pageURL), start), nil
	}
	offset, _ := call.IntArg("offset")
	if offset < 0 {
		offset = 0
	}

	text, ok := t.cache.Get(pageURL)
	if !ok {
		fetched, err := t.fetch(ctx, pageURL)
		if err != nil {
			return failure(call, err, start), nil
		}
		text = fetched
		t.cache.Add(pageURL, text)
	}

	total := len(text)
	if offset >= total {
		return failure(call, fmt.Errorf("offset %d beyond page length %d", offset, total), start), nil
	}
	end := offset + config.ReadURLWindow
	if end > total {
		end = total
	}

	content := text[offset:end]
	if end < total {
		content += fmt.Sprintf(
			"\n\n--- PAGINATION INFO ---\nShowing characters %d-%d of %d. Call read_url again with offset=%d for more.",
			offset, end, total, end)
	}
	return &ports.ToolResult{
		CallID:   call.ID,
		ToolName: call.Name,
		Content:  content,
		Duration: time.Since(start),
		Metadata: map[string]any{
			"url":      pageURL,
			"offset":   offset,
			"total":    total,
			"has_more": end < total,
		},
	}, nil
}

func (t *ReadURLTool) fetch(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "quasar-agent/1.0")
	resp, err := t.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch failed with status %d", resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, 5<<20)
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript, nav, footer, iframe").Remove()
	text := doc.Find("body").Text()
	return collapseWhitespace(text), nil
}

func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	blank := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, trimmed)
	}
	return strings.Join(out, "\n")
}

func clipText(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
