package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"quasar/internal/credentials"
	"quasar/internal/llm"
	"quasar/internal/logging"
	"quasar/internal/memory"
	"quasar/internal/orchestrator"
	"quasar/internal/router"
	"quasar/internal/toolregistry"
)

var (
	flagWorkspace   string
	flagModel       string
	flagInteractive bool
	flagDebug       bool
)

func main() {
	root := &cobra.Command{
		Use:   "quasar [query]",
		Short: "Agentic code assistant",
		Long:  "Quasar answers coding questions and edits your workspace through an agentic tool loop.",
		Args:  cobra.ArbitraryArgs,
		RunE:  run,
	}
	root.Flags().StringVarP(&flagWorkspace, "workspace", "w", "", "workspace directory (defaults to the current directory)")
	root.Flags().StringVarP(&flagModel, "model", "m", "", "pin a model as provider/model_key")
	root.Flags().BoolVarP(&flagInteractive, "interactive", "i", false, "start an interactive session")
	root.Flags().BoolVar(&flagDebug, "debug", false, "enable debug logging")

	if err := root.Execute(); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	level := logging.LevelWarn
	if flagDebug {
		level = logging.LevelDebug
	}
	logger := logging.New(level)

	workspace := flagWorkspace
	if workspace == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		workspace = wd
	}

	creds := credentials.NewStoreFromEnv(logger)
	if !creds.HasAnyCredentials() {
		color.Red("No API credentials configured.")
		color.Yellow("Set CEREBRAS_API_KEY_1 or GROQ_API_KEY_1 in the environment or a .env file.")
		os.Exit(1)
	}

	registry := llm.NewRegistry(creds, logger)
	rt := router.New(registry, creds, logger)
	mem := memory.NewManager(memory.ModelSummarizer{Invoker: rt}, logger)
	mem.SetWorkspace(workspace, "unknown")
	toolReg := toolregistry.NewWithBuiltins(workspace, logger)
	orch := orchestrator.New(rt, mem, toolReg, logger)

	if flagInteractive {
		return repl(cmd.Context(), orch)
	}

	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return fmt.Errorf("provide a query or use --interactive")
	}
	return ask(cmd.Context(), orch, query)
}

func ask(ctx context.Context, orch *orchestrator.Orchestrator, query string) error {
	dim := color.New(color.FgHiBlack)
	cyan := color.New(color.FgCyan)

	req := orchestrator.Request{Query: query, SelectedModel: flagModel}
	resp, err := orch.Process(ctx, req, func(e orchestrator.Event) {
		switch ev := e.(type) {
		case orchestrator.ClassificationEvent:
			dim.Printf("[%s, confidence %.2f]\n", ev.TaskType, ev.Confidence)
		case orchestrator.MessageEvent:
			cyan.Println(ev.Content)
		case orchestrator.TokenEvent:
			fmt.Print(ev.Content)
		case orchestrator.ToolCompleteEvent:
			if !ev.Success {
				color.Yellow("  %s failed: %s", ev.ToolName, ev.Error)
			}
		case orchestrator.DoneEvent:
			fmt.Println()
			dim.Printf("[%s/%s, %d iteration(s), %d tool call(s)]\n",
				ev.Provider, ev.Model, ev.Iterations, ev.ToolCallsCount)
		case orchestrator.ErrorEvent:
			color.Red("\nError: %s", ev.Message)
		}
	})
	if err != nil {
		return err
	}
	if resp.Error != "" {
		return fmt.Errorf("%s", resp.Error)
	}
	return nil
}

func repl(ctx context.Context, orch *orchestrator.Orchestrator) error {
	color.Cyan("Quasar interactive session. Type 'exit' or 'quit' to leave.")
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	prompt := color.New(color.FgGreen, color.Bold)

	for {
		prompt.Print("quasar> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}
		if err := ask(ctx, orch, line); err != nil {
			color.Red("Error: %v", err)
		}
	}
}
