package builtin

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"quasar/internal/config"
	"quasar/internal/ports"
)

// dangerousPatterns are rejected before any shell execution.
var dangerousPatterns = []string{
	"rm -rf /",
	"rm -rf /*",
	"format ",
	"del /s /q",
	":(){:|:&};:",
	"shutdown",
	"reboot",
	"mkfs",
	"dd if=",
}

func isDangerousCommand(cmd string) bool {
	lower := strings.ToLower(strings.TrimSpace(cmd))
	for _, p := range dangerousPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

var errorIndicators = []string{
	"error", "exception", "traceback", "failed", "fatal", "panic:",
}

// TerminalSession keeps the last lines of shell output so the model can
// ask for them later. One session per server process.
type TerminalSession struct {
	mu    sync.Mutex
	lines []string
}

// NewTerminalSession creates an empty output buffer.
func NewTerminalSession() *TerminalSession {
	return &TerminalSession{}
}

// Append records command output, keeping at most the buffer cap.
func (s *TerminalSession) Append(output string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, line := range strings.Split(output, "\n") {
		s.lines = append(s.lines, line)
	}
	if over := len(s.lines) - config.TerminalBufferCap; over > 0 {
		s.lines = append([]string(nil), s.lines[over:]...)
	}
}

// Tail returns the last n buffered lines.
func (s *TerminalSession) Tail(n int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 || n > len(s.lines) {
		n = len(s.lines)
	}
	out := make([]string, n)
	copy(out, s.lines[len(s.lines)-n:])
	return out
}

// Clear empties the buffer.
func (s *TerminalSession) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = nil
}

// runShell executes a command with the workspace as CWD. A workspace
// virtualenv's bin directory, when present, is prepended to PATH so
// project tooling resolves first.
func runShell(ctx context.Context, workspace, command string) (string, int, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = workspace
	cmd.Env = shellEnv(workspace)

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()

	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
			err = nil
		}
	}
	return buf.String(), exitCode, err
}

func shellEnv(workspace string) []string {
	env := os.Environ()
	for _, venv := range []string{".venv", "venv"} {
		bin := filepath.Join(workspace, venv, "bin")
		if info, err := os.Stat(bin); err == nil && info.IsDir() {
			env = append(env, "PATH="+bin+string(os.PathListSeparator)+os.Getenv("PATH"))
			env = append(env, "VIRTUAL_ENV="+filepath.Join(workspace, venv))
			break
		}
	}
	return env
}

// RunTerminalCommandTool executes a shell command in the workspace.
type RunTerminalCommandTool struct {
	ws      *Workspace
	session *TerminalSession
}

// NewRunTerminalCommandTool creates the run_terminal_command tool.
func NewRunTerminalCommandTool(ws *Workspace, session *TerminalSession) *RunTerminalCommandTool {
	return &RunTerminalCommandTool{ws: ws, session: session}
}

func (t *RunTerminalCommandTool) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{
		Name:        "run_terminal_command",
		Description: "Run a shell command with the workspace as working directory. Destructive commands are blocked. Output is captured into the terminal buffer.",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"command": {Type: "string", Description: "Shell command to execute"},
			},
			Required: []string{"command"},
		},
	}
}

func (t *RunTerminalCommandTool) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	start := time.Now()
	command := call.StringArg("command")
	if command == "" {
		return failure(call, fmt.Errorf("missing 'command'"), start), nil
	}
	if isDangerousCommand(command) {
		return failure(call, fmt.Errorf("command blocked as dangerous: %s", command), start), nil
	}

	output, exitCode, err := runShell(ctx, t.ws.Root(), command)
	if t.session != nil && output != "" {
		t.session.Append(output)
	}
	if err != nil {
		return failure(call, fmt.Errorf("command failed to start: %w", err), start), nil
	}

	content := output
	if content == "" {
		content = "(no output)"
	}
	if exitCode != 0 {
		content = fmt.Sprintf("Exit code %d\n%s", exitCode, content)
	}
	return &ports.ToolResult{
		CallID:   call.ID,
		ToolName: call.Name,
		Content:  content,
		Duration: time.Since(start),
		Metadata: map[string]any{"exit_code": exitCode, "command": command},
	}, nil
}

// RunScriptFileTool runs a script from the workspace with the
// interpreter picked by extension.
type RunScriptFileTool struct {
	ws      *Workspace
	session *TerminalSession
}

// NewRunScriptFileTool creates the run_script_file tool.
func NewRunScriptFileTool(ws *Workspace, session *TerminalSession) *RunScriptFileTool {
	return &RunScriptFileTool{ws: ws, session: session}
}

func (t *RunScriptFileTool) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{
		Name:        "run_script_file",
		Description: "Execute a script file from the workspace. The interpreter is chosen by extension (.py, .sh, .js).",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"path": {Type: "string", Description: "Script path relative to the workspace root"},
				"args": {Type: "string", Description: "Optional arguments appended to the command"},
			},
			Required: []string{"path"},
		},
	}
}

func (t *RunScriptFileTool) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	start := time.Now()
	path, err := resolveWorkspacePath(t.ws.Root(), call.StringArg("path"))
	if err != nil {
		return failure(call, err, start), nil
	}
	if _, err := os.Stat(path); err != nil {
		return failure(call, fmt.Errorf("file not found: %s", call.StringArg("path")), start), nil
	}

	var interpreter string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".py":
		interpreter = "python3"
	case ".sh":
		interpreter = "sh"
	case ".js":
		interpreter = "node"
	default:
		return failure(call, fmt.Errorf("unsupported script type: %s", filepath.Ext(path)), start), nil
	}

	command := interpreter + " " + shellQuote(path)
	if args := call.StringArg("args"); args != "" {
		command += " " + args
	}
	output, exitCode, err := runShell(ctx, t.ws.Root(), command)
	if t.session != nil && output != "" {
		t.session.Append(output)
	}
	if err != nil {
		return failure(call, err, start), nil
	}

	content := output
	if content == "" {
		content = "(no output)"
	}
	if exitCode != 0 {
		content = fmt.Sprintf("Exit code %d\n%s", exitCode, content)
	}
	return &ports.ToolResult{
		CallID:   call.ID,
		ToolName: call.Name,
		Content:  content,
		Duration: time.Since(start),
		Metadata: map[string]any{"exit_code": exitCode, "interpreter": interpreter},
	}, nil
}

// RunPackageCommandTool runs a package-manager command. Installs get
// the extended executor timeout.
type RunPackageCommandTool struct {
	ws      *Workspace
	session *TerminalSession
}

// NewRunPackageCommandTool creates the run_package_command tool.
func NewRunPackageCommandTool(ws *Workspace, session *TerminalSession) *RunPackageCommandTool {
	return &RunPackageCommandTool{ws: ws, session: session}
}

// Timeout extends the per-call deadline; dependency installs routinely
// outlive the default.
func (t *RunPackageCommandTool) Timeout() time.Duration {
	return config.PackageInstallTimeout
}

func (t *RunPackageCommandTool) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{
		Name:        "run_package_command",
		Description: "Run a package manager command (pip, npm, go) in the workspace, e.g. 'pip install requests'.",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"command": {Type: "string", Description: "Package manager command line"},
			},
			Required: []string{"command"},
		},
	}
}

var packageManagers = []string{"pip", "pip3", "npm", "yarn", "pnpm", "go", "cargo", "uv"}

func (t *RunPackageCommandTool) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	start := time.Now()
	command := strings.TrimSpace(call.StringArg("command"))
	if command == "" {
		return failure(call, fmt.Errorf("missing 'command'"), start), nil
	}
	first := strings.Fields(command)[0]
	allowed := false
	for _, pm := range packageManagers {
		if first == pm {
			allowed = true
			break
		}
	}
	if !allowed {
		return failure(call, fmt.Errorf("not a package manager command: %s", first), start), nil
	}
	if isDangerousCommand(command) {
		return failure(call, fmt.Errorf("command blocked as dangerous: %s", command), start), nil
	}

	output, exitCode, err := runShell(ctx, t.ws.Root(), command)
	if t.session != nil && output != "" {
		t.session.Append(output)
	}
	if err != nil {
		return failure(call, err, start), nil
	}

	content := output
	if content == "" {
		content = "(no output)"
	}
	if exitCode != 0 {
		content = fmt.Sprintf("Exit code %d\n%s", exitCode, content)
	}
	return &ports.ToolResult{
		CallID:   call.ID,
		ToolName: call.Name,
		Content:  content,
		Duration: time.Since(start),
		Metadata: map[string]any{"exit_code": exitCode},
	}, nil
}

// SuggestCommandTool formats a command suggestion without executing it.
type SuggestCommandTool struct{}

// NewSuggestCommandTool creates the suggest_command tool.
func NewSuggestCommandTool() *SuggestCommandTool {
	return &SuggestCommandTool{}
}

func (t *SuggestCommandTool) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{
		Name:        "suggest_command",
		Description: "Suggest a shell command to the user without running it. Use when execution was not explicitly requested.",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"command":     {Type: "string", Description: "The command to suggest"},
				"explanation": {Type: "string", Description: "One line on what the command does"},
			},
			Required: []string{"command"},
		},
	}
}

func (t *SuggestCommandTool) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	start := time.Now()
	command := call.StringArg("command")
	if command == "" {
		return failure(call, fmt.Errorf("missing 'command'"), start), nil
	}
	content := fmt.Sprintf("Suggested command (not executed):\n\n    %s\n", command)
	if expl := call.StringArg("explanation"); expl != "" {
		content += "\n" + expl + "\n"
	}
	return &ports.ToolResult{
		CallID:   call.ID,
		ToolName: call.Name,
		Content:  content,
		Duration: time.Since(start),
		Metadata: map[string]any{"suggested": command},
	}, nil
}

// GetTerminalOutputTool returns the tail of the terminal buffer with a
// note when error-shaped lines are present.
type GetTerminalOutputTool struct {
	session *TerminalSession
}

// NewGetTerminalOutputTool creates the get_terminal_output tool.
func NewGetTerminalOutputTool(session *TerminalSession) *GetTerminalOutputTool {
	return &GetTerminalOutputTool{session: session}
}

func (t *GetTerminalOutputTool) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{
		Name:        "get_terminal_output",
		Description: "Return the most recent terminal output captured from earlier commands.",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"lines": {Type: "integer", Description: "Number of trailing lines to return, defaults to 50"},
			},
		},
	}
}

func (t *GetTerminalOutputTool) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	start := time.Now()
	n, ok := call.IntArg("lines")
	if !ok {
		n = 50
	}
	lines := t.session.Tail(n)
	if len(lines) == 0 {
		return &ports.ToolResult{
			CallID:   call.ID,
			ToolName: call.Name,
			Content:  "Terminal buffer is empty.",
			Duration: time.Since(start),
		}, nil
	}

	hasErrors := false
	for _, line := range lines {
		lower := strings.ToLower(line)
		for _, ind := range errorIndicators {
			if strings.Contains(lower, ind) {
				hasErrors = true
				break
			}
		}
	}

	content := strings.Join(lines, "\n")
	if hasErrors {
		content = "Note: output contains error-like lines.\n" + content
	}
	return &ports.ToolResult{
		CallID:   call.ID,
		ToolName: call.Name,
		Content:  content,
		Duration: time.Since(start),
		Metadata: map[string]any{"lines": len(lines), "has_errors": hasErrors},
	}, nil
}

// ClearTerminalBufferTool empties the terminal buffer.
type ClearTerminalBufferTool struct {
	session *TerminalSession
}

// NewClearTerminalBufferTool creates the clear_terminal_buffer tool.
func NewClearTerminalBufferTool(session *TerminalSession) *ClearTerminalBufferTool {
	return &ClearTerminalBufferTool{session: session}
}

func (t *ClearTerminalBufferTool) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{
		Name:        "clear_terminal_buffer",
		Description: "Discard the captured terminal output.",
		Parameters:  ports.ParameterSchema{Type: "object", Properties: map[string]ports.Property{}},
	}
}

func (t *ClearTerminalBufferTool) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	start := time.Now()
	t.session.Clear()
	return &ports.ToolResult{
		CallID:   call.ID,
		ToolName: call.Name,
		Content:  "Terminal buffer cleared.",
		Duration: time.Since(start),
	}, nil
}

// CheckCommandAvailableTool reports whether a binary is on PATH.
type CheckCommandAvailableTool struct{}

// NewCheckCommandAvailableTool creates the check_command_available tool.
func NewCheckCommandAvailableTool() *CheckCommandAvailableTool {
	return &CheckCommandAvailableTool{}
}

func (t *CheckCommandAvailableTool) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{
		Name:        "check_command_available",
		Description: "Check whether a command is available on PATH before suggesting or running it.",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"command": {Type: "string", Description: "Binary name, e.g. pytest"},
			},
			Required: []string{"command"},
		},
	}
}

func (t *CheckCommandAvailableTool) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	start := time.Now()
	command := call.StringArg("command")
	if command == "" {
		return failure(call, fmt.Errorf("missing 'command'"), start), nil
	}
	path, err := exec.LookPath(command)
	if err != nil {
		return &ports.ToolResult{
			CallID:   call.ID,
			ToolName: call.Name,
			Content:  fmt.Sprintf("%s is not available on PATH", command),
			Duration: time.Since(start),
			Metadata: map[string]any{"available": false},
		}, nil
	}
	return &ports.ToolResult{
		CallID:   call.ID,
		ToolName: call.Name,
		Content:  fmt.Sprintf("%s is available at %s", command, path),
		Duration: time.Since(start),
		Metadata: map[string]any{"available": true, "path": path},
	}, nil
}

func shellQuote(s string) string {
	if !strings.ContainsAny(s, " \t'\"\\$`") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
