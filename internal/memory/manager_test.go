package memory

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quasar/internal/config"
	"quasar/internal/ports"
)

func TestAddMessageTriggersSummarization(t *testing.T) {
	m := NewManager(KeywordSummarizer{}, nil)
	ctx := context.Background()

	for i := 0; i < 2*config.SummarizeThreshold; i++ {
		role := ports.RoleUser
		if i%2 == 1 {
			role = ports.RoleAssistant
		}
		m.AddMessage(ctx, role, fmt.Sprintf("please fix the error in step %d", i), config.TaskBugFixing)
	}

	assert.LessOrEqual(t, m.HistoryLen(), config.SummarizeThreshold)
	assert.NotEmpty(t, m.Summary())
	assert.Contains(t, m.Summary(), "debugging")
}

func TestSummariesAccumulate(t *testing.T) {
	m := NewManager(KeywordSummarizer{}, nil)
	ctx := context.Background()

	for i := 0; i < 4*config.SummarizeThreshold; i++ {
		m.AddMessage(ctx, ports.RoleUser, "write a helper function", config.TaskCodeGeneration)
	}

	summary := m.Summary()
	assert.NotEmpty(t, summary)
	assert.LessOrEqual(t, m.HistoryLen(), config.SummarizeThreshold)
	assert.Contains(t, summary, "generation")
}

func TestBuildRendersLayers(t *testing.T) {
	m := NewManager(KeywordSummarizer{}, nil)
	m.SetWorkspace("/tmp/project", "python")
	m.SetTaskContext(TaskContext{
		CurrentFile:  "app.py",
		SelectedCode: "def main(): pass",
		ErrorMessage: "NameError: name 'x' is not defined",
	})
	m.RecordFileCreated("utils.py")

	built := m.Build(config.TaskBugFixing)

	assert.Contains(t, built.Permanent, "Workspace: /tmp/project")
	assert.Contains(t, built.Permanent, "Project type: python")
	assert.Contains(t, built.Task, "Current file: app.py (python)")
	assert.Contains(t, built.Task, "Selected code:")
	assert.Contains(t, built.Task, "NameError")
	assert.Contains(t, built.Session, "Files created: utils.py")
	assert.Equal(t, config.TokenBudgets[config.TaskBugFixing].Total, built.Budget)
}

func TestBuildPermanentNeverTruncated(t *testing.T) {
	m := NewManager(KeywordSummarizer{}, nil)
	longPath := "/workspace/" + strings.Repeat("deep/", 200)
	m.SetWorkspace(longPath, "unknown")
	m.SetTaskContext(TaskContext{ErrorMessage: strings.Repeat("stack frame\n", 500)})

	built := m.Build(config.TaskChat)

	assert.Contains(t, built.Permanent, longPath)
	budget := config.BudgetFor(config.TaskChat)
	assert.LessOrEqual(t, len(built.Task)+len(built.Summary)+len(built.Session),
		budget.Total, "non-permanent layers fit the total cap")
}

func TestBuildDeterministic(t *testing.T) {
	m := NewManager(KeywordSummarizer{}, nil)
	m.SetWorkspace("/tmp/p", "unknown")
	m.SetTaskContext(TaskContext{CurrentFile: "main.go"})

	first := m.Build(config.TaskChat)
	second := m.Build(config.TaskChat)
	assert.Equal(t, first, second)
}

func TestClearTaskContextKeepsOtherLayers(t *testing.T) {
	m := NewManager(KeywordSummarizer{}, nil)
	m.SetWorkspace("/tmp/p", "unknown")
	m.SetTaskContext(TaskContext{CurrentFile: "a.py"})
	m.RecordFileModified("a.py")

	m.ClearTaskContext()
	built := m.Build(config.TaskChat)

	assert.Empty(t, built.Task)
	assert.Contains(t, built.Permanent, "/tmp/p")
	assert.Contains(t, built.Session, "a.py")
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, "python", DetectLanguage("src/app.py"))
	assert.Equal(t, "go", DetectLanguage("main.go"))
	assert.Equal(t, "typescript", DetectLanguage("web/App.TSX"))
	assert.Equal(t, "", DetectLanguage("Makefile"))
}

func TestSetTaskContextDetectsFileLanguage(t *testing.T) {
	m := NewManager(KeywordSummarizer{}, nil)
	m.SetTaskContext(TaskContext{CurrentFile: "script.rb"})
	built := m.Build(config.TaskChat)
	assert.Contains(t, built.Task, "Current file: script.rb (ruby)")
}

func TestKeywordSummarizerBuckets(t *testing.T) {
	msgs := []ConversationMessage{
		{Role: ports.RoleUser, Content: "fix this bug"},
		{Role: ports.RoleUser, Content: "debug the traceback"},
		{Role: ports.RoleUser, Content: "write a parser"},
		{Role: ports.RoleUser, Content: "nice weather today"},
	}
	session := &SessionMemory{FilesCreated: []string{"parser.py"}}

	summary, err := KeywordSummarizer{}.Summarize(context.Background(), msgs, session)
	require.NoError(t, err)
	assert.Contains(t, summary, "2 debugging exchanges")
	assert.Contains(t, summary, "1 generation exchanges")
	assert.Contains(t, summary, "parser.py")
}

func TestBudgetForUnknownTaskDefaultsToChat(t *testing.T) {
	assert.Equal(t, config.TokenBudgets[config.TaskChat], config.BudgetFor(config.TaskType("mystery")))
}
