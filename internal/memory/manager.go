// Package memory maintains the hierarchical conversation state:
// permanent, task, summary, and session layers with per-task character
// budgets and automatic summarisation of old history.
package memory

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"quasar/internal/config"
	"quasar/internal/logging"
)

// PermanentContext lives for the whole session and is never truncated.
type PermanentContext struct {
	WorkspacePath string
	ProjectType   string
	Language      string
	Preferences   map[string]string
}

// TaskContext is replaced on every request.
type TaskContext struct {
	CurrentFile    string
	FileContent    string
	SelectedCode   string
	ErrorMessage   string
	TerminalOutput string
	FileLanguage   string
}

// SessionMemory is append-only for the session.
type SessionMemory struct {
	FilesCreated  []string
	FilesModified []string
	Errors        []string
	Commands      []string
}

// ConversationMessage is one turn of history.
type ConversationMessage struct {
	Role      string
	Content   string
	Timestamp time.Time
	TaskType  config.TaskType
}

// BuiltContext is the prompt-ready rendering of all layers.
type BuiltContext struct {
	Permanent string
	Task      string
	Summary   string
	Session   string
	Budget    int
}

// Summarizer compacts old conversation turns into prose. The model
// summariser and the keyword fallback both satisfy it.
type Summarizer interface {
	Summarize(ctx context.Context, messages []ConversationMessage, session *SessionMemory) (string, error)
}

// Manager owns the four context layers. Safe for concurrent use.
type Manager struct {
	mu         sync.Mutex
	permanent  PermanentContext
	task       TaskContext
	session    SessionMemory
	history    []ConversationMessage
	summary    string
	threshold  int
	summarizer Summarizer
	logger     logging.Logger
}

// NewManager creates a context manager. A nil summarizer means the
// keyword heuristic is always used.
func NewManager(summarizer Summarizer, logger logging.Logger) *Manager {
	if summarizer == nil {
		summarizer = KeywordSummarizer{}
	}
	return &Manager{
		threshold:  config.SummarizeThreshold,
		summarizer: summarizer,
		logger:     logging.OrNop(logger),
	}
}

// SetWorkspace records the workspace path and project type in the
// permanent layer.
func (m *Manager) SetWorkspace(path, projectType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.permanent.WorkspacePath = path
	m.permanent.ProjectType = projectType
	m.logger.Info("Workspace set: %s", path)
}

// SetLanguage records the dominant project language.
func (m *Manager) SetLanguage(lang string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.permanent.Language = lang
}

// Workspace returns the current workspace path.
func (m *Manager) Workspace() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.permanent.WorkspacePath
}

// SetTaskContext replaces the task layer for the next request. The file
// language is detected from the extension.
func (m *Manager) SetTaskContext(tc TaskContext) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tc.CurrentFile != "" && tc.FileLanguage == "" {
		tc.FileLanguage = DetectLanguage(tc.CurrentFile)
	}
	m.task = tc
}

// ClearTaskContext drops the task layer, keeping permanent and session.
func (m *Manager) ClearTaskContext() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.task = TaskContext{}
}

// AddMessage appends a turn to history and summarises when the history
// grows to twice the threshold. After summarisation at most threshold
// messages remain and the summary is non-empty.
func (m *Manager) AddMessage(ctx context.Context, role, content string, task config.TaskType) {
	m.mu.Lock()
	m.history = append(m.history, ConversationMessage{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
		TaskType:  task,
	})
	needSummary := len(m.history) >= 2*m.threshold
	m.mu.Unlock()

	if needSummary {
		m.summarizeOldest(ctx)
	}
}

func (m *Manager) summarizeOldest(ctx context.Context) {
	m.mu.Lock()
	if len(m.history) < 2*m.threshold {
		m.mu.Unlock()
		return
	}
	cut := len(m.history) - m.threshold
	old := make([]ConversationMessage, cut)
	copy(old, m.history[:cut])
	session := m.session
	m.mu.Unlock()

	text, err := m.summarizer.Summarize(ctx, old, &session)
	if err != nil || strings.TrimSpace(text) == "" {
		text, _ = KeywordSummarizer{}.Summarize(ctx, old, &session)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.history) < cut {
		return
	}
	if m.summary != "" {
		m.summary = m.summary + " " + text
	} else {
		m.summary = text
	}
	m.history = append([]ConversationMessage(nil), m.history[cut:]...)
	m.logger.Debug("Summarised %d old messages, %d remain", cut, len(m.history))
}

// HistoryLen returns the current history length.
func (m *Manager) HistoryLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.history)
}

// Summary returns the accumulated conversation summary.
func (m *Manager) Summary() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.summary
}

// RecentMessages returns the last n turns.
func (m *Manager) RecentMessages(n int) []ConversationMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > len(m.history) {
		n = len(m.history)
	}
	out := make([]ConversationMessage, n)
	copy(out, m.history[len(m.history)-n:])
	return out
}

// RecordFileCreated appends to session memory.
func (m *Manager) RecordFileCreated(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session.FilesCreated = append(m.session.FilesCreated, path)
}

// RecordFileModified appends to session memory.
func (m *Manager) RecordFileModified(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session.FilesModified = append(m.session.FilesModified, path)
}

// RecordError appends to session memory.
func (m *Manager) RecordError(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session.Errors = append(m.session.Errors, msg)
}

// RecordCommand appends to session memory.
func (m *Manager) RecordCommand(cmd string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session.Commands = append(m.session.Commands, cmd)
}

// Build assembles the prompt-ready context under the task's budget.
// Rendering is deterministic; layers over budget are truncated
// oldest-first (summary, then session, then task), never permanent.
func (m *Manager) Build(task config.TaskType) BuiltContext {
	m.mu.Lock()
	defer m.mu.Unlock()

	budget := config.BudgetFor(task)
	out := BuiltContext{
		Permanent: m.renderPermanent(),
		Task:      truncateTo(m.renderTask(), budget.Task),
		Summary:   truncateTo(m.renderSummary(), budget.Summary),
		Session:   m.renderSession(),
		Budget:    budget.Total,
	}

	// Enforce the total cap. Permanent is exempt; shed summary first,
	// then session, then task.
	total := len(out.Permanent) + len(out.Task) + len(out.Summary) + len(out.Session)
	over := total - budget.Total
	for _, layer := range []*string{&out.Summary, &out.Session, &out.Task} {
		if over <= 0 {
			break
		}
		if len(*layer) <= over {
			over -= len(*layer)
			*layer = ""
			continue
		}
		*layer = truncateTo(*layer, len(*layer)-over)
		over = 0
	}
	return out
}

func (m *Manager) renderPermanent() string {
	var b strings.Builder
	if m.permanent.WorkspacePath != "" {
		fmt.Fprintf(&b, "Workspace: %s\n", m.permanent.WorkspacePath)
	}
	if m.permanent.ProjectType != "" && m.permanent.ProjectType != "unknown" {
		fmt.Fprintf(&b, "Project type: %s\n", m.permanent.ProjectType)
	}
	if m.permanent.Language != "" {
		fmt.Fprintf(&b, "Language: %s\n", m.permanent.Language)
	}
	return b.String()
}

func (m *Manager) renderTask() string {
	var b strings.Builder
	if m.task.CurrentFile != "" {
		if m.task.FileLanguage != "" {
			fmt.Fprintf(&b, "Current file: %s (%s)\n", m.task.CurrentFile, m.task.FileLanguage)
		} else {
			fmt.Fprintf(&b, "Current file: %s\n", m.task.CurrentFile)
		}
	}
	if m.task.SelectedCode != "" {
		fmt.Fprintf(&b, "Selected code:\n```\n%s\n```\n", m.task.SelectedCode)
	}
	if m.task.ErrorMessage != "" {
		fmt.Fprintf(&b, "Error:\n%s\n", m.task.ErrorMessage)
	}
	if m.task.TerminalOutput != "" {
		fmt.Fprintf(&b, "Terminal:\n%s\n", m.task.TerminalOutput)
	}
	return b.String()
}

func (m *Manager) renderSummary() string {
	if m.summary == "" {
		return ""
	}
	return "Previous context: " + m.summary
}

func (m *Manager) renderSession() string {
	var b strings.Builder
	if n := len(m.session.FilesCreated); n > 0 {
		b.WriteString("Files created: " + strings.Join(lastN(m.session.FilesCreated, 5), ", ") + "\n")
	}
	if n := len(m.session.FilesModified); n > 0 {
		b.WriteString("Files modified: " + strings.Join(lastN(m.session.FilesModified, 5), ", ") + "\n")
	}
	return b.String()
}

func lastN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[len(items)-n:]
}

func truncateTo(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}

var extLanguages = map[string]string{
	".py":   "python",
	".go":   "go",
	".js":   "javascript",
	".ts":   "typescript",
	".tsx":  "typescript",
	".jsx":  "javascript",
	".rs":   "rust",
	".java": "java",
	".c":    "c",
	".cpp":  "cpp",
	".h":    "c",
	".rb":   "ruby",
	".sh":   "shell",
	".md":   "markdown",
	".html": "html",
	".css":  "css",
	".json": "json",
	".yaml": "yaml",
	".yml":  "yaml",
	".sql":  "sql",
}

// DetectLanguage maps a file extension to a language name, returning ""
// when unknown.
func DetectLanguage(path string) string {
	return extLanguages[strings.ToLower(filepath.Ext(path))]
}
