package config

// TaskType is the classification category a request is routed under.
type TaskType string

const (
	TaskChat               TaskType = "chat"
	TaskCodeExplainSimple  TaskType = "code_explain_simple"
	TaskCodeExplainComplex TaskType = "code_explain_complex"
	TaskCodeGeneration     TaskType = "code_generation"
	TaskCodeGenerationMulti TaskType = "code_generation_multi"
	TaskBugFixing          TaskType = "bug_fixing"
	TaskRefactor           TaskType = "refactor"
	TaskArchitecture       TaskType = "architecture"
	TaskTestGeneration     TaskType = "test_generation"
	TaskDocumentation      TaskType = "documentation"
	TaskResearch           TaskType = "research"
)

// AllTaskTypes lists every valid task type.
var AllTaskTypes = []TaskType{
	TaskChat,
	TaskCodeExplainSimple,
	TaskCodeExplainComplex,
	TaskCodeGeneration,
	TaskCodeGenerationMulti,
	TaskBugFixing,
	TaskRefactor,
	TaskArchitecture,
	TaskTestGeneration,
	TaskDocumentation,
	TaskResearch,
}

// ValidTaskType reports whether s names a known task type.
func ValidTaskType(s string) bool {
	for _, t := range AllTaskTypes {
		if string(t) == s {
			return true
		}
	}
	return false
}

// ToolEnabledTasks is the set of task types that run the agentic tool
// loop. All current task types qualify; the set exists so a task can be
// demoted to the plain streaming path without touching the orchestrator.
var ToolEnabledTasks = map[TaskType]bool{
	TaskChat:                true,
	TaskCodeExplainSimple:   true,
	TaskCodeExplainComplex:  true,
	TaskCodeGeneration:      true,
	TaskCodeGenerationMulti: true,
	TaskBugFixing:           true,
	TaskRefactor:            true,
	TaskArchitecture:        true,
	TaskTestGeneration:      true,
	TaskDocumentation:       true,
	TaskResearch:            true,
}

// ToolsEnabled reports whether the task type drives the agentic loop.
func ToolsEnabled(t TaskType) bool { return ToolEnabledTasks[t] }

// Tool groups, by capability.
var (
	fileTools = []string{
		"read_file", "read_file_chunk", "create_file", "modify_file",
		"patch_file", "delete_file", "move_file", "list_files",
		"search_files", "grep_search", "list_tree",
	}
	terminalTools = []string{
		"run_terminal_command", "run_script_file", "run_package_command",
		"suggest_command", "get_terminal_output", "clear_terminal_buffer",
		"check_command_available",
	}
	webTools = []string{"web_search", "read_url", "browse_interactive"}

	readOnlyTools = []string{
		"read_file", "read_file_chunk", "list_files", "search_files",
		"grep_search", "list_tree", "get_terminal_output",
		"check_command_available", "web_search", "read_url",
	}
)

// AllTools is the complete tool catalogue.
var AllTools = concat(fileTools, terminalTools, webTools)

// ToolsForTask returns the tool names a task type may use. Explain
// tasks are read only, research gets the web plus a few read tools,
// generation tasks get files and the web but only a slice of the
// terminal; everything else gets the full catalogue.
func ToolsForTask(t TaskType) []string {
	switch t {
	case TaskCodeExplainSimple, TaskCodeExplainComplex:
		return readOnlyTools
	case TaskResearch:
		return concat(webTools, []string{"read_file", "list_files", "list_tree"})
	case TaskCodeGeneration, TaskCodeGenerationMulti, TaskTestGeneration, TaskDocumentation:
		return concat(fileTools, webTools, []string{"run_terminal_command", "check_command_available"})
	default:
		return AllTools
	}
}

func concat(groups ...[]string) []string {
	var out []string
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
