package connection

import "time"

// Server → client message types.
const (
	TypeConnectionEstablished = "connection_established"
	TypeStateUpdate           = "state_update"
	TypeCommandResponse       = "command_response"
	TypeManualControlResponse = "manual_control_response"
	TypePong                  = "pong"
	TypeError                 = "error"
	TypeServerShutdown        = "server_shutdown"
)

// Client → server message types.
const (
	TypeVoiceCommand  = "voice_command"
	TypeGetState      = "get_state"
	TypeManualControl = "manual_control"
	TypePing          = "ping"
)

// Error codes carried on error frames.
const (
	CodeInvalidJSON    = "invalid_json"
	CodeUnknownType    = "unknown_message_type"
	CodeInvalidRequest = "invalid_request"
	CodeInternal       = "internal_error"
)

// Message is a JSON text frame. Every frame has "type" and "timestamp".
type Message map[string]any

// NewMessage builds a frame of the given type stamped with now.
// Keys in fields are copied onto the frame.
func NewMessage(typ string, now time.Time, fields map[string]any) Message {
	m := make(Message, len(fields)+2)
	for k, v := range fields {
		m[k] = v
	}
	m["type"] = typ
	m["timestamp"] = unixSeconds(now)
	return m
}

// Type returns the frame type.
func (m Message) Type() string {
	t, _ := m["type"].(string)
	return t
}

// Established is the welcome frame queued on connect.
func Established(id string, now time.Time) Message {
	return NewMessage(TypeConnectionEstablished, now, map[string]any{
		"message":       "Connected to vehicle AI backend",
		"connection_id": id,
	})
}

// StateUpdate carries a full state snapshot.
func StateUpdate(data any, now time.Time) Message {
	return NewMessage(TypeStateUpdate, now, map[string]any{"data": data})
}

// Pong answers a client ping.
func Pong(now time.Time) Message {
	return NewMessage(TypePong, now, nil)
}

// Error reports a rejected client frame. The connection stays open.
func Error(code, message string, now time.Time) Message {
	return NewMessage(TypeError, now, map[string]any{
		"code":    code,
		"message": message,
	})
}

// ShutdownNotice is sent to every client before the registry is cleared.
func ShutdownNotice(now time.Time) Message {
	return NewMessage(TypeServerShutdown, now, map[string]any{
		"message": "Server is shutting down",
	})
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
