package toolregistry

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quasar/internal/config"
	"quasar/internal/ports"
)

func TestSetWorkspaceRedirectsBuiltins(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	reg := NewWithBuiltins(first, nil)
	assert.Equal(t, first, reg.WorkspaceRoot())

	create, err := reg.Get("create_file")
	require.NoError(t, err)

	result, err := create.Execute(context.Background(), ports.ToolCall{
		ID: "c1", Name: "create_file",
		Arguments: map[string]any{"path": "a.txt", "content": "one"},
	})
	require.NoError(t, err)
	require.True(t, result.Success(), "%v", result.Error)
	assert.FileExists(t, filepath.Join(first, "a.txt"))

	reg.SetWorkspace(second)
	assert.Equal(t, second, reg.WorkspaceRoot())

	result, err = create.Execute(context.Background(), ports.ToolCall{
		ID: "c2", Name: "create_file",
		Arguments: map[string]any{"path": "b.txt", "content": "two"},
	})
	require.NoError(t, err)
	require.True(t, result.Success(), "%v", result.Error)
	assert.FileExists(t, filepath.Join(second, "b.txt"))
	assert.NoFileExists(t, filepath.Join(first, "b.txt"), "stale workspace must not receive writes")
}

func TestTaskToolGroupsResolveInCatalogue(t *testing.T) {
	reg := NewWithBuiltins(t.TempDir(), nil)
	for _, task := range config.AllTaskTypes {
		for _, name := range config.ToolsForTask(task) {
			_, err := reg.Get(name)
			assert.NoError(t, err, "task %s names unregistered tool %s", task, name)
		}
	}
	assert.Len(t, config.AllTools, len(reg.Names()))
}
