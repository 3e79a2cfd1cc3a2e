package memory

import (
	"context"
	"fmt"
	"strings"

	"quasar/internal/config"
	"quasar/internal/ports"
	"quasar/internal/token"
)

// FallbackInvoker is the slice of the router used by the model
// summariser: a fallback-aware non-tool completion.
type FallbackInvoker interface {
	InvokeWithFallback(ctx context.Context, task config.TaskType, messages []ports.Message) (*ports.CompletionResponse, string, string, error)
}

const summaryPrompt = `Summarize this coding conversation in 2-3 sentences. Focus on what was built, fixed, or explained. Mention file names when relevant.`

// summaryTurnTokens caps each rendered turn so a few pasted files do
// not blow the summariser's own prompt.
const summaryTurnTokens = 80

// ModelSummarizer compacts history with a fast model through the
// router's chat chain.
type ModelSummarizer struct {
	Invoker FallbackInvoker
}

// Summarize renders the old turns and asks the fast model for a short
// summary.
func (s ModelSummarizer) Summarize(ctx context.Context, messages []ConversationMessage, session *SessionMemory) (string, error) {
	if s.Invoker == nil {
		return "", fmt.Errorf("no invoker configured")
	}
	var b strings.Builder
	for _, msg := range messages {
		fmt.Fprintf(&b, "%s: %s\n", msg.Role, token.Truncate(msg.Content, summaryTurnTokens))
	}
	resp, _, _, err := s.Invoker.InvokeWithFallback(ctx, config.TaskChat, []ports.Message{
		ports.SystemMessage(summaryPrompt),
		ports.UserMessage(b.String()),
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

// KeywordSummarizer is the zero-dependency fallback: it buckets each
// turn by keyword and emits one line of aggregated counts plus recent
// file activity.
type KeywordSummarizer struct{}

// Summarize classifies each message and aggregates the counts.
func (KeywordSummarizer) Summarize(_ context.Context, messages []ConversationMessage, session *SessionMemory) (string, error) {
	counts := map[string]int{}
	for _, msg := range messages {
		lower := strings.ToLower(msg.Content)
		switch {
		case containsAny(lower, "error", "bug", "fix", "debug", "traceback", "exception"):
			counts["debugging"]++
		case containsAny(lower, "create", "generate", "write", "implement", "build"):
			counts["generation"]++
		case containsAny(lower, "explain", "what does", "how does", "understand"):
			counts["explanation"]++
		case containsAny(lower, "test", "unittest", "pytest"):
			counts["testing"]++
		}
	}

	var parts []string
	for _, topic := range []string{"generation", "debugging", "explanation", "testing"} {
		if counts[topic] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s exchanges", counts[topic], topic))
		}
	}
	if len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%d earlier exchanges", len(messages)))
	}
	line := "Earlier: " + strings.Join(parts, ", ") + "."
	if session != nil && len(session.FilesCreated) > 0 {
		line += " Files created: " + strings.Join(lastN(session.FilesCreated, 3), ", ") + "."
	}
	if session != nil && len(session.FilesModified) > 0 {
		line += " Files modified: " + strings.Join(lastN(session.FilesModified, 3), ", ") + "."
	}
	return line, nil
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
