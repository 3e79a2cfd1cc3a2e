package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"quasar/internal/config"
	"quasar/internal/logging"
	"quasar/internal/ports"
)

// Classification is the parsed classifier verdict.
type Classification struct {
	TaskType            config.TaskType `json:"task_type"`
	Confidence          float64         `json:"confidence"`
	RequiresFileContext bool            `json:"requires_file_context"`
	RequiresTerminal    bool            `json:"requires_terminal"`
	EstimatedComplexity string          `json:"estimated_complexity"`
	Reasoning           string          `json:"reasoning"`
}

// ContextSnapshot is the minimal context the classifier sees.
type ContextSnapshot struct {
	CurrentFile  string
	HasSelection bool
	HasError     bool
}

// classifierModelSource yields the low-temperature classifier handle.
// Satisfied by the router.
type classifierModelSource interface {
	GetClassifierModel(ctx context.Context) (ports.ChatModel, error)
}

// Classifier derives a TaskType from the query, consulting a cloud
// model when one is reachable and keyword rules otherwise.
type Classifier struct {
	models classifierModelSource
	logger logging.Logger
}

// NewClassifier creates a classifier.
func NewClassifier(models classifierModelSource, logger logging.Logger) *Classifier {
	return &Classifier{models: models, logger: logging.OrNop(logger)}
}

const classificationPrompt = `You are a task classifier for an AI code editor.
Classify the user's query into one of these task types:

1. chat - Simple Q&A, general questions, greetings (e.g., "What is Python?", "Hello")
2. code_explain_simple - Explain a small piece of code (<100 lines)
3. code_explain_complex - Explain large code, architecture, design patterns
4. code_generation - Generate a single function, class, or small module
5. code_generation_multi - Generate multiple files/complete features
6. bug_fixing - Debug errors, fix bugs, resolve issues (KEYWORDS: error, bug, fix, debug, exception, NameError, TypeError, etc.)
7. refactor - Improve code quality, apply best practices
8. architecture - System design, architecture decisions
9. test_generation - Write tests for code
10. documentation - Write docstrings, README, docs
11. research - Look up libraries, documentation, or web resources

IMPORTANT RULES:
- PRIORITIZE keywords in the user's query over context
- If query contains "error", "bug", "fix", "debug", ANY exception name (NameError, TypeError, etc.) -> classify as bug_fixing
- If query contains "create", "generate", "write", "build" -> classify as code_generation
- If query contains "explain", "what does", "how does" -> classify as code_explain_*
- ONLY use provided context, do NOT invent or hallucinate file names or code
- Be concise in reasoning

User query: %s

Context (use only if relevant):
- Current file: %s
- Has selection: %t
- Has error in terminal: %t

Respond with JSON only:
{
    "task_type": "<task type>",
    "confidence": <0.0-1.0>,
    "requires_file_context": <true/false>,
    "requires_terminal": <true/false>,
    "estimated_complexity": "<low/medium/high>",
    "reasoning": "<brief explanation based ONLY on query keywords>"
}
`

// Classify returns the task classification for a query. Every failure
// path degrades to the keyword classifier; Classify never errors.
func (c *Classifier) Classify(ctx context.Context, query string, snap ContextSnapshot) *Classification {
	model, err := c.models.GetClassifierModel(ctx)
	if err != nil {
		c.logger.Warn("No classifier model reachable, using keyword rules: %v", err)
		return KeywordClassify(query)
	}

	currentFile := snap.CurrentFile
	if currentFile == "" {
		currentFile = "None"
	}
	prompt := fmt.Sprintf(classificationPrompt, query, currentFile, snap.HasSelection, snap.HasError)

	resp, err := model.Invoke(ctx, []ports.Message{ports.UserMessage(prompt)})
	if err != nil {
		c.logger.Warn("Classifier invocation failed, using keyword rules: %v", err)
		return KeywordClassify(query)
	}

	parsed, err := ParseClassification(resp.Content)
	if err != nil {
		c.logger.Warn("Classifier JSON unusable (%v), using keyword rules", err)
		return KeywordClassify(query)
	}
	return parsed
}

var thinkBlockRe = regexp.MustCompile(`(?s)<think>.*?</think>`)

// ParseClassification extracts the classification JSON from model
// output: chain-of-thought blocks are stripped, fenced blocks are
// unwrapped, and as a last resort the first balanced brace group is
// taken. Malformed JSON gets one repair attempt.
func ParseClassification(raw string) (*Classification, error) {
	text := strings.TrimSpace(thinkBlockRe.ReplaceAllString(raw, ""))

	if fenced := extractFenced(text); fenced != "" {
		text = fenced
	}
	candidate := extractBraced(text)
	if candidate == "" {
		return nil, fmt.Errorf("no JSON object found")
	}

	var parsed Classification
	if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
		repaired, repErr := jsonrepair.JSONRepair(candidate)
		if repErr != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(repaired), &parsed); err != nil {
			return nil, err
		}
	}

	if !config.ValidTaskType(string(parsed.TaskType)) {
		return nil, fmt.Errorf("invalid task_type %q", parsed.TaskType)
	}
	if parsed.Confidence < 0 || parsed.Confidence > 1 {
		parsed.Confidence = 0.5
	}
	if parsed.EstimatedComplexity == "" {
		parsed.EstimatedComplexity = "medium"
	}
	return &parsed, nil
}

func extractFenced(text string) string {
	start := strings.Index(text, "```")
	if start < 0 {
		return ""
	}
	rest := text[start+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 && !strings.ContainsAny(rest[:nl], "{}") {
		rest = rest[nl+1:]
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(rest[:end])
}

// extractBraced returns the first balanced top-level {...} group.
func extractBraced(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	// Unbalanced; hand the tail to the repairer.
	return text[start:]
}

var (
	bugKeywords      = []string{"error", "bug", "fix", "debug", "traceback", "exception"}
	generateKeywords = []string{"create", "generate", "write", "make", "build"}
	multiKeywords    = []string{"complete", "full", "entire", "system", "application"}
	explainKeywords  = []string{"explain", "what does", "how does", "understand"}
	refactorKeywords = []string{"refactor", "improve", "optimize", "clean"}
	testKeywords     = []string{"test", "unittest", "pytest"}
)

// KeywordClassify is the rule-based fallback. Precedence: bug fixing,
// multi-file generation, generation, explanation, refactor, testing,
// then chat.
func KeywordClassify(query string) *Classification {
	lower := strings.ToLower(query)

	pick := func(task config.TaskType, confidence float64, reason string) *Classification {
		return &Classification{
			TaskType:            task,
			Confidence:          confidence,
			EstimatedComplexity: "medium",
			Reasoning:           reason,
		}
	}

	switch {
	case matchesAny(lower, bugKeywords):
		c := pick(config.TaskBugFixing, 0.7, "query contains debugging keywords")
		c.RequiresTerminal = true
		return c
	case matchesAny(lower, generateKeywords) && matchesAny(lower, multiKeywords):
		return pick(config.TaskCodeGenerationMulti, 0.7, "query asks for a complete multi-file build")
	case matchesAny(lower, generateKeywords):
		return pick(config.TaskCodeGeneration, 0.7, "query contains generation keywords")
	case matchesAny(lower, explainKeywords):
		c := pick(config.TaskCodeExplainSimple, 0.7, "query asks for an explanation")
		c.RequiresFileContext = true
		return c
	case matchesAny(lower, refactorKeywords):
		c := pick(config.TaskRefactor, 0.7, "query asks for refactoring")
		c.RequiresFileContext = true
		return c
	case matchesAny(lower, testKeywords):
		return pick(config.TaskTestGeneration, 0.7, "query asks for tests")
	default:
		c := pick(config.TaskChat, 0.5, "no task keywords matched")
		c.EstimatedComplexity = "low"
		return c
	}
}

func matchesAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
