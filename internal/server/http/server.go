// Package http exposes the orchestrator over REST, SSE, and WebSocket.
package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"quasar/internal/config"
	"quasar/internal/credentials"
	"quasar/internal/logging"
	"quasar/internal/memory"
	"quasar/internal/orchestrator"
)

// Server hosts the agent HTTP surface.
type Server struct {
	engine *gin.Engine
	orch   *orchestrator.Orchestrator
	creds  *credentials.Store
	memory *memory.Manager
	logger logging.Logger
}

// NewServer builds the gin engine with all routes registered.
func NewServer(orch *orchestrator.Orchestrator, creds *credentials.Store, mem *memory.Manager, logger logging.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		MaxAge:           12 * time.Hour,
		AllowCredentials: false,
	}))

	s := &Server{
		engine: engine,
		orch:   orch,
		creds:  creds,
		memory: mem,
		logger: logging.OrNop(logger),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/models/list", s.handleModelsList)
	s.engine.POST("/test-model", s.handleTestModel)
	s.engine.POST("/classify", s.handleClassify)
	s.engine.POST("/chat", s.handleChat)
	s.engine.POST("/chat/stream", s.handleChatStream)
	s.engine.GET("/ws", s.handleWebSocket)
}

// Run serves until the context is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("Listening on %s", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Handler exposes the engine for tests.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"providers": s.creds.Status(),
	})
}

// modelEntry is one row of /models/list.
type modelEntry struct {
	Provider    string `json:"provider"`
	ModelKey    string `json:"model_key"`
	ModelName   string `json:"model_name"`
	DisplayName string `json:"display_name"`
}

func (s *Server) handleModelsList(c *gin.Context) {
	var out []modelEntry
	for name, provider := range config.Providers {
		if !provider.Enabled {
			continue
		}
		for key, model := range provider.Models {
			out = append(out, modelEntry{
				Provider:    name,
				ModelKey:    key,
				ModelName:   model.Name,
				DisplayName: fmt.Sprintf("%s / %s", titleCase(name), model.Name),
			})
		}
	}
	c.JSON(http.StatusOK, gin.H{"models": out})
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (s *Server) handleClassify(c *gin.Context) {
	var req orchestrator.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.orch.Classify(c.Request.Context(), req))
}

func (s *Server) handleChat(c *gin.Context) {
	var req orchestrator.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	resp, err := s.orch.Process(c.Request.Context(), req, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// testModelRequest drives a single explicit model invocation.
type testModelRequest struct {
	Provider string `json:"provider"`
	ModelKey string `json:"model_key"`
	Prompt   string `json:"prompt"`
}

func (s *Server) handleTestModel(c *gin.Context) {
	var req testModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Prompt == "" {
		req.Prompt = "Reply with the single word: ok"
	}
	start := time.Now()
	resp, err := s.orch.TestModel(c.Request.Context(), req.Provider, req.ModelKey, req.Prompt)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"response":   resp,
		"latency_ms": time.Since(start).Milliseconds(),
	})
}
