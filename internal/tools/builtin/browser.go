package builtin

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"quasar/internal/ports"
)

// BrowseInteractiveTool drives a headless browser for pages that plain
// read_url cannot render. The browser launches lazily on first use and
// one page is kept across calls so multi-step interactions work.
type BrowseInteractiveTool struct {
	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
}

// NewBrowseInteractiveTool creates the browse_interactive tool.
func NewBrowseInteractiveTool() *BrowseInteractiveTool {
	return &BrowseInteractiveTool{}
}

func (t *BrowseInteractiveTool) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{
		Name:        "browse_interactive",
		Description: "Interact with a page in a headless browser. Actions: navigate, click, type, capture, get_elements. State persists between calls.",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"action":   {Type: "string", Description: "What to do", Enum: []string{"navigate", "click", "type", "capture", "get_elements"}},
				"url":      {Type: "string", Description: "Target URL for navigate"},
				"selector": {Type: "string", Description: "CSS selector for click, type, and get_elements"},
				"text":     {Type: "string", Description: "Text to type"},
			},
			Required: []string{"action"},
		},
	}
}

func (t *BrowseInteractiveTool) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	start := time.Now()
	action := call.StringArg("action")
	if action == "" {
		return failure(call, fmt.Errorf("missing 'action'"), start), nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.ensurePage(); err != nil {
		return failure(call, fmt.Errorf("browser unavailable: %w", err), start), nil
	}

	var (
		content string
		err     error
	)
	switch action {
	case "navigate":
		content, err = t.navigate(call.StringArg("url"))
	case "click":
		content, err = t.click(call.StringArg("selector"))
	case "type":
		content, err = t.typeText(call.StringArg("selector"), call.StringArg("text"))
	case "capture":
		content, err = t.capture()
	case "get_elements":
		content, err = t.getElements(call.StringArg("selector"))
	default:
		err = fmt.Errorf("unknown action: %s", action)
	}
	if err != nil {
		return failure(call, err, start), nil
	}

	return &ports.ToolResult{
		CallID:   call.ID,
		ToolName: call.Name,
		Content:  content,
		Duration: time.Since(start),
		Metadata: map[string]any{"action": action},
	}, nil
}

func (t *BrowseInteractiveTool) ensurePage() error {
	if t.page != nil {
		return nil
	}
	pw, err := playwright.Run()
	if err != nil {
		return err
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if err != nil {
		_ = pw.Stop()
		return err
	}
	page, err := browser.NewPage()
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return err
	}
	t.pw, t.browser, t.page = pw, browser, page
	return nil
}

func (t *BrowseInteractiveTool) navigate(url string) (string, error) {
	if url == "" {
		return "", fmt.Errorf("missing 'url'")
	}
	if _, err := t.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return "", err
	}
	title, _ := t.page.Title()
	return fmt.Sprintf("Navigated to %s (title: %s)", url, title), nil
}

func (t *BrowseInteractiveTool) click(selector string) (string, error) {
	if selector == "" {
		return "", fmt.Errorf("missing 'selector'")
	}
	if err := t.page.Locator(selector).First().Click(); err != nil {
		return "", err
	}
	return fmt.Sprintf("Clicked %s", selector), nil
}

func (t *BrowseInteractiveTool) typeText(selector, text string) (string, error) {
	if selector == "" {
		return "", fmt.Errorf("missing 'selector'")
	}
	if err := t.page.Locator(selector).First().Fill(text); err != nil {
		return "", err
	}
	return fmt.Sprintf("Typed into %s", selector), nil
}

func (t *BrowseInteractiveTool) capture() (string, error) {
	text, err := t.page.Locator("body").InnerText()
	if err != nil {
		return "", err
	}
	return collapseWhitespace(text), nil
}

func (t *BrowseInteractiveTool) getElements(selector string) (string, error) {
	if selector == "" {
		return "", fmt.Errorf("missing 'selector'")
	}
	loc := t.page.Locator(selector)
	count, err := loc.Count()
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d element(s) match %s:\n", count, selector)
	for i := 0; i < count && i < 20; i++ {
		text, _ := loc.Nth(i).InnerText()
		fmt.Fprintf(&b, "  [%d] %s\n", i, clipText(strings.TrimSpace(text), 120))
	}
	return b.String(), nil
}

// Close shuts the browser down. Called on server shutdown.
func (t *BrowseInteractiveTool) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.browser != nil {
		_ = t.browser.Close()
	}
	if t.pw != nil {
		_ = t.pw.Stop()
	}
	t.pw, t.browser, t.page = nil, nil, nil
}
