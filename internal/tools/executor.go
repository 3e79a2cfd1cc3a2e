// Package tools dispatches model-requested tool calls with per-call
// timeouts and model-safe result formatting.
package tools

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"quasar/internal/config"
	"quasar/internal/logging"
	"quasar/internal/ports"
	"quasar/internal/qerrors"
)

// timeoutOverride lets a tool extend the default per-call deadline.
// Package installs implement it.
type timeoutOverride interface {
	Timeout() time.Duration
}

// ExecutionRecord is one entry of the per-request execution history.
type ExecutionRecord struct {
	ToolName string
	Success  bool
	Duration time.Duration
}

// Executor runs tool calls sequentially for one request. It holds no
// state across requests.
type Executor struct {
	registry ports.ToolRegistry
	timeout  time.Duration
	history  []ExecutionRecord
	logger   logging.Logger
}

// NewExecutor creates a per-request executor.
func NewExecutor(registry ports.ToolRegistry, logger logging.Logger) *Executor {
	return &Executor{
		registry: registry,
		timeout:  config.ToolTimeout,
		logger:   logging.OrNop(logger),
	}
}

// Execute dispatches one call: resolve, run under the deadline, format.
// Failures come back as failed ToolResults; the returned error is
// reserved for context cancellation.
func (e *Executor) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	start := time.Now()

	tool, err := e.registry.Get(call.Name)
	if err != nil {
		result := &ports.ToolResult{
			CallID:   call.ID,
			ToolName: call.Name,
			Error:    fmt.Errorf("unknown tool %q. Available tools: %s", call.Name, strings.Join(e.registry.Names(), ", ")),
			Duration: time.Since(start),
		}
		e.record(result)
		return result, nil
	}

	timeout := e.timeout
	if override, ok := tool.(timeoutOverride); ok {
		timeout = override.Timeout()
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		result *ports.ToolResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, execErr := tool.Execute(callCtx, call)
		done <- outcome{result, execErr}
	}()

	select {
	case out := <-done:
		result := out.result
		if out.err != nil {
			result = &ports.ToolResult{CallID: call.ID, ToolName: call.Name, Error: out.err}
		}
		if result == nil {
			result = &ports.ToolResult{CallID: call.ID, ToolName: call.Name, Error: fmt.Errorf("tool returned no result")}
		}
		result.Duration = time.Since(start)
		result.Content = e.formatContent(call.Name, result.Content)
		e.record(result)
		return result, nil

	case <-callCtx.Done():
		if ctx.Err() != nil {
			// The request itself was cancelled, not the tool deadline.
			return nil, ctx.Err()
		}
		result := &ports.ToolResult{
			CallID:   call.ID,
			ToolName: call.Name,
			Error:    fmt.Errorf("tool execution timed out after %ds", int(timeout.Seconds())),
			Duration: time.Since(start),
		}
		e.record(result)
		return result, nil
	}
}

// formatContent applies the truncation caps: file content at 30,000
// bytes, everything else at 10,000. The cut backs off to a rune
// boundary so multi-byte characters are never split.
func (e *Executor) formatContent(toolName, content string) string {
	cap := config.GenericResultCap
	if toolName == "read_file" || toolName == "read_file_chunk" {
		cap = config.FileContentCap
	}
	if len(content) <= cap {
		return content
	}
	cut := cap
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut] + "\n[TRUNCATED]"
}

// FormatForModel renders a result as the tool message the model sees.
func FormatForModel(result *ports.ToolResult) string {
	if result.Error != nil {
		return fmt.Sprintf("Tool %s failed: %s", result.ToolName, qerrors.FormatForLLM(result.Error))
	}
	if strings.TrimSpace(result.Content) == "" {
		return fmt.Sprintf("Tool %s completed successfully.", result.ToolName)
	}
	return result.Content
}

func (e *Executor) record(result *ports.ToolResult) {
	e.history = append(e.history, ExecutionRecord{
		ToolName: result.ToolName,
		Success:  result.Success(),
		Duration: result.Duration,
	})
	if result.Error != nil {
		e.logger.Debug("Tool %s failed in %s: %v", result.ToolName, result.Duration, result.Error)
	} else {
		e.logger.Debug("Tool %s completed in %s", result.ToolName, result.Duration)
	}
}

// History returns the execution records so far.
func (e *Executor) History() []ExecutionRecord {
	return e.history
}

// ToolsUsed returns the distinct tool names executed, in first-use
// order.
func (e *Executor) ToolsUsed() []string {
	seen := make(map[string]bool)
	var out []string
	for _, rec := range e.history {
		if !seen[rec.ToolName] {
			seen[rec.ToolName] = true
			out = append(out, rec.ToolName)
		}
	}
	return out
}

// TotalCalls returns the number of tool calls executed.
func (e *Executor) TotalCalls() int {
	return len(e.history)
}

// SuccessfulCalls returns how many calls completed without error.
func (e *Executor) SuccessfulCalls() int {
	n := 0
	for _, rec := range e.history {
		if rec.Success {
			n++
		}
	}
	return n
}
