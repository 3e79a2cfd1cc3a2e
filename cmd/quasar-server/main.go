package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"quasar/internal/config"
	"quasar/internal/credentials"
	"quasar/internal/llm"
	"quasar/internal/logging"
	"quasar/internal/memory"
	"quasar/internal/orchestrator"
	"quasar/internal/router"
	httpserver "quasar/internal/server/http"
	"quasar/internal/toolregistry"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadServerConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	level := logging.LevelInfo
	if cfg.LogLevel == "debug" {
		level = logging.LevelDebug
	}
	logger := logging.New(level)

	creds := credentials.NewStoreFromEnv(logger)
	registry := llm.NewRegistry(creds, logger)
	rt := router.New(registry, creds, logger)
	mem := memory.NewManager(memory.ModelSummarizer{Invoker: rt}, logger)
	mem.SetWorkspace(cfg.Workspace, "unknown")
	toolReg := toolregistry.NewWithBuiltins(cfg.Workspace, logger)
	orch := orchestrator.New(rt, mem, toolReg, logger)
	server := httpserver.NewServer(orch, creds, mem, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx, fmt.Sprintf("%s:%d", cfg.Host, cfg.Port))
	})
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		logger.Error("Server exited: %v", err)
		os.Exit(1)
	}
}
