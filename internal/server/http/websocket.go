package http

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"quasar/internal/memory"
	"quasar/internal/orchestrator"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// wsInbound is a client frame. Type is one of set_workspace,
// set_context, chat.
type wsInbound struct {
	Type           string `json:"type"`
	Workspace      string `json:"workspace,omitempty"`
	Query          string `json:"query,omitempty"`
	CurrentFile    string `json:"current_file,omitempty"`
	FileContent    string `json:"file_content,omitempty"`
	SelectedCode   string `json:"selected_code,omitempty"`
	TerminalOutput string `json:"terminal_output,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
	SelectedModel  string `json:"selected_model,omitempty"`
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Error("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	send := func(payload map[string]any) bool {
		data, err := json.Marshal(payload)
		if err != nil {
			return false
		}
		return conn.WriteMessage(websocket.TextMessage, data) == nil
	}

	send(map[string]any{"type": "system", "message": "connected"})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg wsInbound
		if err := json.Unmarshal(raw, &msg); err != nil {
			send(map[string]any{"type": "error", "message": "invalid JSON frame"})
			continue
		}

		switch msg.Type {
		case "set_workspace":
			if msg.Workspace == "" {
				send(map[string]any{"type": "error", "message": "workspace required"})
				continue
			}
			s.orch.SetWorkspace(msg.Workspace)
			send(map[string]any{"type": "system", "message": "workspace set"})

		case "set_context":
			s.memory.SetTaskContext(memory.TaskContext{
				CurrentFile:    msg.CurrentFile,
				FileContent:    msg.FileContent,
				SelectedCode:   msg.SelectedCode,
				ErrorMessage:   msg.ErrorMessage,
				TerminalOutput: msg.TerminalOutput,
			})
			send(map[string]any{"type": "system", "message": "context updated"})

		case "chat":
			if msg.Query == "" {
				send(map[string]any{"type": "error", "message": "query required"})
				continue
			}
			req := orchestrator.Request{
				Query:          msg.Query,
				Workspace:      msg.Workspace,
				CurrentFile:    msg.CurrentFile,
				FileContent:    msg.FileContent,
				SelectedCode:   msg.SelectedCode,
				TerminalOutput: msg.TerminalOutput,
				ErrorMessage:   msg.ErrorMessage,
				SelectedModel:  msg.SelectedModel,
			}
			resp, err := s.orch.Process(c.Request.Context(), req, func(e orchestrator.Event) {
				send(map[string]any{"type": "status", "event": e.Payload()})
			})
			if err != nil {
				send(map[string]any{"type": "error", "message": err.Error()})
				continue
			}
			send(map[string]any{"type": "response", "response": resp})

		default:
			send(map[string]any{"type": "error", "message": "unknown message type: " + msg.Type})
		}
	}
}
