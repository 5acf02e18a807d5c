package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/vehicle-ai-core/internal/command"
	"github.com/nerrad567/vehicle-ai-core/internal/connection"
	"github.com/nerrad567/vehicle-ai-core/internal/infrastructure/config"
	"github.com/nerrad567/vehicle-ai-core/internal/vehicle"
)

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// inbound is a decoded client frame. Unused fields stay zero.
type inbound struct {
	Type       string         `json:"type"`
	Text       string         `json:"text"`
	System     string         `json:"system"`
	Action     string         `json:"action"`
	Parameters map[string]any `json:"parameters"`
}

// handleWebSocket upgrades the connection, registers it and serves its
// frames until the peer goes away. The connection is always removed from
// the registry on exit.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	conn := connection.NewWSConn(ws, s.wsOptions())

	// The request context ends with the handler; frames processed for this
	// client must not be cut short by it.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	c, err := s.registry.Connect(ctx, conn)
	if err != nil {
		s.logger.Warn("websocket registration failed", "remote", ws.RemoteAddr().String(), "error", err)
		return
	}
	defer s.registry.Disconnect(c.ID())

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			if connection.IsUnexpectedClose(err) {
				s.logger.Warn("websocket read error", "connection_id", c.ID(), "error", err)
			} else {
				s.logger.Debug("websocket closed", "connection_id", c.ID(), "error", err)
			}
			return
		}
		s.handleFrame(ctx, c.ID(), data)
	}
}

func (s *Server) wsOptions() connection.WSOptions {
	opts := connection.WSOptions{
		WriteTimeout: config.Seconds(s.wsCfg.WriteTimeout),
		ReadLimit:    int64(s.wsCfg.MaxMessageSize),
	}
	// Two missed heartbeats end the connection.
	if hb := config.Seconds(s.wsCfg.HeartbeatInterval); hb > 0 {
		opts.PongWait = 2 * hb
	}
	return opts
}

// handleFrame dispatches one client frame. A panic while handling it is
// reported to the client as internal_error and the connection stays open.
func (s *Server) handleFrame(ctx context.Context, id string, data []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("panic recovered in websocket handler", "connection_id", id, "error", rec)
			s.reply(ctx, id, connection.Error(connection.CodeInternal, "internal server error", s.now()))
		}
	}()

	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		s.reply(ctx, id, connection.Error(connection.CodeInvalidJSON, "invalid JSON message", s.now()))
		return
	}

	switch msg.Type {
	case connection.TypeVoiceCommand:
		s.handleVoiceFrame(ctx, id, msg)
	case connection.TypeGetState:
		s.reply(ctx, id, connection.StateUpdate(vehicle.FrontendView(s.store.Snapshot()), s.now()))
	case connection.TypeManualControl:
		s.handleManualControl(ctx, id, msg)
	case connection.TypePing:
		s.reply(ctx, id, connection.Pong(s.now()))
	default:
		s.reply(ctx, id, connection.Error(connection.CodeUnknownType, "unknown message type: "+msg.Type, s.now()))
	}
}

// handleVoiceFrame runs a voice_command through the WebSocket gate. A
// successful execution has already been broadcast as state_update by the
// time the command_response is queued.
func (s *Server) handleVoiceFrame(ctx context.Context, id string, msg inbound) {
	out := s.processor.HandleText(ctx, command.SourceWebSocket, msg.Text, s.nlpCfg.WebSocketThreshold)

	var execution any
	if report := executionReport(out); report != nil {
		execution = report
	}
	s.reply(ctx, id, connection.NewMessage(connection.TypeCommandResponse, s.now(), map[string]any{
		"original_text":    msg.Text,
		"action":           out.Parse.Action,
		"confidence":       out.Parse.Confidence,
		"parameters":       out.Parse.Parameters,
		"success":          out.Success(),
		"execution_result": execution,
		"response_text":    out.ResponseText,
	}))
}

// handleManualControl executes a dashboard action directly, without the
// NLP gate.
func (s *Server) handleManualControl(ctx context.Context, id string, msg inbound) {
	if strings.TrimSpace(msg.Action) == "" {
		s.reply(ctx, id, connection.Error(connection.CodeInvalidRequest, "manual_control requires an action", s.now()))
		return
	}

	res := s.processor.Execute(ctx, command.SourceWebSocket, msg.Action, msg.Parameters)
	s.reply(ctx, id, connection.NewMessage(connection.TypeManualControlResponse, s.now(), map[string]any{
		"system":           msg.System,
		"action":           msg.Action,
		"success":          res.Success,
		"execution_result": res,
	}))
}

// replyTimeout bounds a direct reply to one client.
const replyTimeout = 10 * time.Second

func (s *Server) reply(ctx context.Context, id string, msg connection.Message) {
	ctx, cancel := context.WithTimeout(ctx, replyTimeout)
	defer cancel()
	if !s.registry.Send(ctx, id, msg) {
		s.logger.Debug("websocket reply dropped", "connection_id", id, "type", msg.Type())
	}
}
