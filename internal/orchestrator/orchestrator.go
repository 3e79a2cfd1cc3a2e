// Package orchestrator classifies requests, assembles prompts, and
// drives the bounded agentic tool loop, emitting streaming events.
package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"quasar/internal/config"
	"quasar/internal/logging"
	"quasar/internal/memory"
	"quasar/internal/ports"
	"quasar/internal/qerrors"
	"quasar/internal/router"
	"quasar/internal/tools"
)

// Request is one user turn with editor context.
type Request struct {
	Query          string `json:"query"`
	Workspace      string `json:"workspace,omitempty"`
	CurrentFile    string `json:"current_file,omitempty"`
	FileContent    string `json:"file_content,omitempty"`
	SelectedCode   string `json:"selected_code,omitempty"`
	TerminalOutput string `json:"terminal_output,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
	SelectedModel  string `json:"selected_model,omitempty"`
}

// AgentResponse is the final aggregate of one request.
type AgentResponse struct {
	Success        bool            `json:"success"`
	Response       string          `json:"response"`
	TaskType       config.TaskType `json:"task_type"`
	ModelUsed      string          `json:"model_used"`
	Provider       string          `json:"provider"`
	ToolsUsed      []string        `json:"tools_used"`
	ToolCallsCount int             `json:"tool_calls_count"`
	Iterations     int             `json:"iterations"`
	Error          string          `json:"error,omitempty"`
}

// EmitFunc receives every stream event in causal order. A nil emitter
// is allowed for non-streaming callers.
type EmitFunc func(Event)

// workspaceSetter is implemented by registries whose tools share a
// mutable sandbox root.
type workspaceSetter interface {
	SetWorkspace(path string)
}

// Orchestrator wires the classifier, router, context manager, and tool
// registry into the agentic loop.
type Orchestrator struct {
	router     *router.Router
	memory     *memory.Manager
	registry   ports.ToolRegistry
	classifier *Classifier
	logger     logging.Logger
}

// New creates an orchestrator.
func New(r *router.Router, mem *memory.Manager, registry ports.ToolRegistry, logger logging.Logger) *Orchestrator {
	logger = logging.OrNop(logger)
	return &Orchestrator{
		router:     r,
		memory:     mem,
		registry:   registry,
		classifier: NewClassifier(r, logger),
		logger:     logger,
	}
}

// TestModel invokes one explicit (provider, model_key) with a short
// prompt, bypassing classification and fallback. Used by /test-model.
func (o *Orchestrator) TestModel(ctx context.Context, provider, modelKey, prompt string) (string, error) {
	model, err := o.router.GetPinnedModel(ctx, provider, modelKey)
	if err != nil {
		return "", err
	}
	resp, err := model.Invoke(ctx, []ports.Message{ports.UserMessage(prompt)})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// SetWorkspace points both the context manager and the tool sandbox at
// path. Skipping either would leave file I/O and the rendered context
// disagreeing about where the project lives.
func (o *Orchestrator) SetWorkspace(path string) {
	o.memory.SetWorkspace(path, "unknown")
	if ws, ok := o.registry.(workspaceSetter); ok {
		ws.SetWorkspace(path)
	}
}

// Classify exposes classification alone, for the /classify endpoint.
func (o *Orchestrator) Classify(ctx context.Context, req Request) *Classification {
	return o.classifier.Classify(ctx, req.Query, ContextSnapshot{
		CurrentFile:  req.CurrentFile,
		HasSelection: req.SelectedCode != "",
		HasError:     req.ErrorMessage != "",
	})
}

// Process runs one request end to end, emitting events as it goes. The
// returned response mirrors the final done or error event. Context
// cancellation aborts without emitting a terminal event.
func (o *Orchestrator) Process(ctx context.Context, req Request, emit EmitFunc) (*AgentResponse, error) {
	if emit == nil {
		emit = func(Event) {}
	}
	if strings.TrimSpace(req.Query) == "" {
		emit(ErrorEvent{Message: "empty query"})
		return &AgentResponse{Error: "empty query"}, nil
	}

	if req.Workspace != "" && req.Workspace != o.memory.Workspace() {
		o.SetWorkspace(req.Workspace)
	}
	o.memory.SetTaskContext(memory.TaskContext{
		CurrentFile:    req.CurrentFile,
		FileContent:    req.FileContent,
		SelectedCode:   req.SelectedCode,
		ErrorMessage:   req.ErrorMessage,
		TerminalOutput: req.TerminalOutput,
	})

	classification := o.Classify(ctx, req)
	emit(ClassificationEvent{
		TaskType:   string(classification.TaskType),
		Confidence: classification.Confidence,
		Complexity: classification.EstimatedComplexity,
		Reasoning:  classification.Reasoning,
	})
	task := classification.TaskType

	o.memory.AddMessage(ctx, ports.RoleUser, req.Query, task)

	built := o.memory.Build(task)
	toolsEnabled := config.ToolsEnabled(task)
	system := BuildSystemPrompt(task, toolsEnabled)
	user := BuildUserMessage(built, req.Query)
	messages := []ports.Message{
		ports.SystemMessage(system),
		ports.UserMessage(user),
	}

	pin, err := parsePinnedModel(req.SelectedModel)
	if err != nil {
		emit(ErrorEvent{Message: err.Error()})
		return &AgentResponse{TaskType: task, Error: err.Error()}, nil
	}

	var resp *AgentResponse
	if toolsEnabled {
		resp, err = o.runToolLoop(ctx, task, messages, pin, emit)
	} else {
		resp, err = o.runDirect(ctx, task, messages, pin, emit)
	}
	if err != nil {
		return nil, err
	}
	if resp.Success && resp.Response != "" {
		o.memory.AddMessage(ctx, ports.RoleAssistant, resp.Response, task)
	}
	return resp, nil
}

type pinnedModel struct {
	provider string
	modelKey string
	set      bool
}

func parsePinnedModel(selected string) (pinnedModel, error) {
	if selected == "" {
		return pinnedModel{}, nil
	}
	provider, key, found := strings.Cut(selected, "/")
	if !found || provider == "" || key == "" {
		return pinnedModel{}, fmt.Errorf("invalid selected_model %q, expected provider/model_key", selected)
	}
	return pinnedModel{provider: provider, modelKey: key, set: true}, nil
}

// acquireModel returns a tool-bound handle, honoring pinning.
func (o *Orchestrator) acquireModel(ctx context.Context, task config.TaskType, pin pinnedModel, level int) (ports.ChatModel, int, error) {
	if pin.set {
		model, err := o.router.GetPinnedModel(ctx, pin.provider, pin.modelKey)
		return model, 0, err
	}
	return o.router.GetModelForTask(ctx, task, level)
}

func (o *Orchestrator) runToolLoop(ctx context.Context, task config.TaskType, messages []ports.Message, pin pinnedModel, emit EmitFunc) (*AgentResponse, error) {
	executor := tools.NewExecutor(o.registry, o.logger)
	detector := newLoopDetector()

	level := 0
	model, level, err := o.acquireModel(ctx, task, pin, level)
	if err != nil {
		emit(ErrorEvent{Message: err.Error()})
		return &AgentResponse{TaskType: task, Error: err.Error()}, nil
	}
	catalogue := o.catalogueFor(task)
	bound := model.BindTools(catalogue)

	warned := false
	lastContent := ""

	for i := 1; i <= config.MaxToolIterations; i++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if config.MaxToolIterations-i <= 1 && !warned {
			messages = append(messages, ports.SystemMessage(progressSummaryDemand))
			emit(IterationWarningEvent{Remaining: config.MaxToolIterations - i})
			warned = true
		}
		emit(IterationEvent{Iteration: i, Max: config.MaxToolIterations})

		resp, invokeErr := bound.Invoke(ctx, messages)
		if invokeErr != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			next, nextLevel, switched, handleErr := o.handleInvokeFailure(ctx, task, pin, level, bound, invokeErr, emit)
			if handleErr != nil {
				emit(ErrorEvent{Message: handleErr.Error()})
				return o.partialFailure(task, bound, executor, i, handleErr), nil
			}
			if switched {
				bound = next.BindTools(catalogue)
				level = nextLevel
			}
			i--
			continue
		}

		if resp.HasToolCalls() {
			lastContent = resp.Content
			messages = append(messages, ports.Message{
				Role:      ports.RoleAssistant,
				Content:   resp.Content,
				ToolCalls: resp.ToolCalls,
			})

			for _, call := range resp.ToolCalls {
				if call.ID == "" {
					call.ID = uuid.NewString()
				}
				detector.Add(call)
				if detector.Looping() {
					emit(MessageEvent{Content: "Detected repetitive actions, stopping to avoid a loop."})
					emit(DoneEvent{
						Provider:       bound.Provider(),
						Model:          bound.Model(),
						Iterations:     i,
						ToolCallsCount: executor.TotalCalls(),
						ToolsUsed:      executor.ToolsUsed(),
						LoopDetected:   true,
					})
					return &AgentResponse{
						Success:        true,
						Response:       lastContent,
						TaskType:       task,
						ModelUsed:      bound.Model(),
						Provider:       bound.Provider(),
						ToolsUsed:      executor.ToolsUsed(),
						ToolCallsCount: executor.TotalCalls(),
						Iterations:     i,
					}, nil
				}

				emit(MessageEvent{Content: progressLine(call)})
				emit(ToolStartEvent{CallID: call.ID, ToolName: call.Name, Arguments: call.Arguments})

				result, execErr := executor.Execute(ctx, call)
				if execErr != nil {
					return nil, execErr
				}

				messages = append(messages, ports.ToolResultMessage(call.ID, tools.FormatForModel(result)))

				complete := ToolCompleteEvent{
					CallID:     call.ID,
					ToolName:   call.Name,
					Success:    result.Success(),
					DurationMS: result.Duration.Milliseconds(),
				}
				if result.Error != nil {
					complete.Error = result.Error.Error()
				}
				emit(complete)
				emit(MessageEvent{Content: observationLine(call, result)})

				o.recordSideEffects(ctx, call, result)
				if result.Success() && mutatesFiles(o.registry, call.Name) {
					emit(FileTreeUpdatedEvent{Path: call.StringArg("path")})
				}
			}
			continue
		}

		// Final text turn.
		streamText(resp.Content, emit)
		emit(DoneEvent{
			Provider:       bound.Provider(),
			Model:          bound.Model(),
			Iterations:     i,
			ToolCallsCount: executor.TotalCalls(),
			ToolsUsed:      executor.ToolsUsed(),
		})
		return &AgentResponse{
			Success:        true,
			Response:       resp.Content,
			TaskType:       task,
			ModelUsed:      bound.Model(),
			Provider:       bound.Provider(),
			ToolsUsed:      executor.ToolsUsed(),
			ToolCallsCount: executor.TotalCalls(),
			Iterations:     i,
		}, nil
	}

	emit(DoneEvent{
		Provider:             bound.Provider(),
		Model:                bound.Model(),
		Iterations:           config.MaxToolIterations,
		ToolCallsCount:       executor.TotalCalls(),
		ToolsUsed:            executor.ToolsUsed(),
		MaxIterationsReached: true,
	})
	return &AgentResponse{
		Success:        true,
		Response:       lastContent,
		TaskType:       task,
		ModelUsed:      bound.Model(),
		Provider:       bound.Provider(),
		ToolsUsed:      executor.ToolsUsed(),
		ToolCallsCount: executor.TotalCalls(),
		Iterations:     config.MaxToolIterations,
	}, nil
}

// catalogueFor returns the registered tool definitions the task type is
// allowed to use. Explain tasks never see file-mutating tools.
func (o *Orchestrator) catalogueFor(task config.TaskType) []ports.ToolDefinition {
	allowed := make(map[string]bool)
	for _, name := range config.ToolsForTask(task) {
		allowed[name] = true
	}
	var out []ports.ToolDefinition
	for _, def := range o.registry.List() {
		if allowed[def.Name] {
			out = append(out, def)
		}
	}
	return out
}

// handleInvokeFailure applies the mid-loop recovery policy: rotate
// credentials on rate limit, then advance the fallback chain unless the
// model is pinned. Returns the replacement model when a switch
// happened; a nil error with switched=false means retry the same
// handle.
func (o *Orchestrator) handleInvokeFailure(ctx context.Context, task config.TaskType, pin pinnedModel, level int, current ports.ChatModel, invokeErr error, emit EmitFunc) (ports.ChatModel, int, bool, error) {
	if qerrors.IsRateLimit(invokeErr) {
		if o.router.RotateCredential(ctx, current.Provider()) {
			emit(MessageEvent{Content: fmt.Sprintf("Rate limited on %s, retrying with the next credential.", current.Provider())})
			return nil, level, false, nil
		}
		if pin.set {
			return nil, level, false, fmt.Errorf("pinned model %s/%s is rate limited and out of credentials", pin.provider, pin.modelKey)
		}
	} else if pin.set {
		return nil, level, false, fmt.Errorf("pinned model failed: %w", invokeErr)
	}

	next, nextLevel, err := o.router.GetModelForTask(ctx, task, level+1)
	if err != nil {
		return nil, level, false, fmt.Errorf("all fallback models exhausted: %w", invokeErr)
	}
	emit(MessageEvent{Content: fmt.Sprintf("Switching to %s (%s) after %s failed.", next.Provider(), next.Model(), current.Provider())})
	o.logger.Warn("Mid-loop fallback from %s to %s: %v", current.Provider(), next.Provider(), invokeErr)
	return next, nextLevel, true, nil
}

func (o *Orchestrator) partialFailure(task config.TaskType, model ports.ChatModel, executor *tools.Executor, iterations int, err error) *AgentResponse {
	text := fmt.Sprintf("The request could not be completed: %s.", err)
	if done := executor.SuccessfulCalls(); done > 0 {
		text += fmt.Sprintf(" Before the failure, %d tool call(s) completed: %s.", done, strings.Join(executor.ToolsUsed(), ", "))
	}
	return &AgentResponse{
		Response:       text,
		TaskType:       task,
		ModelUsed:      model.Model(),
		Provider:       model.Provider(),
		ToolsUsed:      executor.ToolsUsed(),
		ToolCallsCount: executor.TotalCalls(),
		Iterations:     iterations,
		Error:          err.Error(),
	}
}

// runDirect is the non-tool path: stream tokens straight from the
// fallback-aware router.
func (o *Orchestrator) runDirect(ctx context.Context, task config.TaskType, messages []ports.Message, pin pinnedModel, emit EmitFunc) (*AgentResponse, error) {
	level := 0
	for {
		model, used, err := o.acquireModel(ctx, task, pin, level)
		if err != nil {
			emit(ErrorEvent{Message: err.Error()})
			return &AgentResponse{TaskType: task, Error: err.Error()}, nil
		}

		stream, err := model.Stream(ctx, messages)
		partial := false
		if err == nil {
			var b strings.Builder
			var streamErr error
			for chunk := range stream {
				if chunk.Err != nil {
					streamErr = chunk.Err
					break
				}
				if chunk.Delta != "" {
					b.WriteString(chunk.Delta)
					emit(TokenEvent{Content: chunk.Delta})
				}
			}
			if streamErr == nil {
				emit(DoneEvent{Provider: model.Provider(), Model: model.Model(), Iterations: 1, ToolsUsed: []string{}})
				return &AgentResponse{
					Success:    true,
					Response:   b.String(),
					TaskType:   task,
					ModelUsed:  model.Model(),
					Provider:   model.Provider(),
					ToolsUsed:  []string{},
					Iterations: 1,
				}, nil
			}
			err = streamErr
			partial = b.Len() > 0
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if qerrors.IsRateLimit(err) && o.router.RotateCredential(ctx, model.Provider()) {
			// Tokens already reached the client; the retry starts the
			// response over, so the restart has to be announced.
			if partial {
				emit(MessageEvent{Content: "The response stream was interrupted, restarting it from the beginning."})
			}
			continue
		}
		if pin.set {
			emit(ErrorEvent{Message: err.Error()})
			return &AgentResponse{TaskType: task, ModelUsed: model.Model(), Provider: model.Provider(), Error: err.Error()}, nil
		}
		level = used + 1
		if level >= len(o.router.ChainFor(task)) {
			emit(ErrorEvent{Message: err.Error()})
			return &AgentResponse{TaskType: task, Error: err.Error()}, nil
		}
		emit(MessageEvent{Content: fmt.Sprintf("Switching provider after %s failed.", model.Provider())})
	}
}

// streamText re-emits a completed response as token-sized chunks so
// the client renders it progressively.
func streamText(content string, emit EmitFunc) {
	const chunkSize = 80
	for start := 0; start < len(content); start += chunkSize {
		end := start + chunkSize
		if end > len(content) {
			end = len(content)
		}
		emit(TokenEvent{Content: content[start:end]})
	}
}

var progressVerbs = map[string]string{
	"read_file":            "Reading",
	"read_file_chunk":      "Reading a chunk of",
	"create_file":          "Creating",
	"modify_file":          "Modifying",
	"patch_file":           "Patching",
	"delete_file":          "Deleting",
	"move_file":            "Moving",
	"list_files":           "Listing",
	"list_tree":            "Walking the tree at",
	"search_files":         "Searching for",
	"grep_search":          "Grepping for",
	"run_terminal_command": "Running",
	"run_script_file":      "Executing",
	"run_package_command":  "Installing with",
	"web_search":           "Searching the web for",
	"read_url":             "Fetching",
}

func progressLine(call ports.ToolCall) string {
	target := call.StringArg("path")
	if target == "" {
		target = call.StringArg("command")
	}
	if target == "" {
		target = call.StringArg("query")
	}
	if target == "" {
		target = call.StringArg("url")
	}
	verb, ok := progressVerbs[call.Name]
	if !ok {
		if target == "" {
			return fmt.Sprintf("Using %s...", call.Name)
		}
		return fmt.Sprintf("Using %s on %s...", call.Name, target)
	}
	if target == "" {
		return verb + "..."
	}
	return fmt.Sprintf("%s %s...", verb, target)
}

func observationLine(call ports.ToolCall, result *ports.ToolResult) string {
	if result.Success() {
		return fmt.Sprintf("✓ %s completed", call.Name)
	}
	return fmt.Sprintf("✗ %s failed: %s", call.Name, result.Error)
}

func mutatesFiles(registry ports.ToolRegistry, name string) bool {
	tool, err := registry.Get(name)
	if err != nil {
		return false
	}
	mutator, ok := tool.(ports.FileMutator)
	return ok && mutator.MutatesFiles()
}

func (o *Orchestrator) recordSideEffects(ctx context.Context, call ports.ToolCall, result *ports.ToolResult) {
	if !result.Success() {
		o.memory.RecordError(fmt.Sprintf("%s: %v", call.Name, result.Error))
		return
	}
	switch call.Name {
	case "create_file":
		o.memory.RecordFileCreated(call.StringArg("path"))
	case "modify_file", "patch_file":
		o.memory.RecordFileModified(call.StringArg("path"))
	case "move_file":
		o.memory.RecordFileModified(call.StringArg("destination"))
	case "run_terminal_command", "run_package_command":
		o.memory.RecordCommand(call.StringArg("command"))
	case "run_script_file":
		o.memory.RecordCommand(call.StringArg("path"))
	}
}
