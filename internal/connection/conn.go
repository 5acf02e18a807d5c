package connection

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the transport under a registered connection.
//
// WriteMessage is only ever called from the connection's writer goroutine.
// Ping and Close may be called concurrently with it.
type Conn interface {
	WriteMessage(ctx context.Context, data []byte) error
	Ping(ctx context.Context) error
	Close() error
}

// WSOptions configures a WSConn.
type WSOptions struct {
	// WriteTimeout bounds every frame write.
	WriteTimeout time.Duration

	// ReadLimit is the maximum inbound message size in bytes.
	ReadLimit int64

	// PongWait is how long the peer may stay silent before reads fail.
	// Any inbound message or pong extends it.
	PongWait time.Duration
}

// WSConn adapts a gorilla websocket connection to Conn.
type WSConn struct {
	conn *websocket.Conn
	opts WSOptions
}

// NewWSConn wraps c and applies the read limit and pong handling.
func NewWSConn(c *websocket.Conn, opts WSOptions) *WSConn {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	w := &WSConn{conn: c, opts: opts}

	if opts.ReadLimit > 0 {
		c.SetReadLimit(opts.ReadLimit)
	}
	if opts.PongWait > 0 {
		//nolint:errcheck // Best-effort deadline on connection setup
		c.SetReadDeadline(time.Now().Add(opts.PongWait))
		c.SetPongHandler(func(string) error {
			return c.SetReadDeadline(time.Now().Add(opts.PongWait))
		})
	}
	return w
}

// WriteMessage writes one text frame.
func (w *WSConn) WriteMessage(ctx context.Context, data []byte) error {
	if err := w.conn.SetWriteDeadline(w.deadline(ctx)); err != nil {
		return err
	}
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

// Ping sends a protocol-level ping.
func (w *WSConn) Ping(ctx context.Context) error {
	return w.conn.WriteControl(websocket.PingMessage, nil, w.deadline(ctx))
}

// ReadMessage blocks for the next inbound data frame. Every message
// extends the read deadline, so chatty clients that never answer pings
// stay connected.
func (w *WSConn) ReadMessage() ([]byte, error) {
	_, data, err := w.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	if w.opts.PongWait > 0 {
		//nolint:errcheck // Best-effort deadline reset
		w.conn.SetReadDeadline(time.Now().Add(w.opts.PongWait))
	}
	return data, nil
}

// Close sends a normal close frame, best effort, and closes the socket.
func (w *WSConn) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	//nolint:errcheck // Peer may already be gone
	w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return w.conn.Close()
}

// RemoteAddr returns the peer address.
func (w *WSConn) RemoteAddr() string {
	return w.conn.RemoteAddr().String()
}

// IsUnexpectedClose reports whether a read error is anything other than a
// normal or going-away close.
func IsUnexpectedClose(err error) bool {
	return websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure)
}

func (w *WSConn) deadline(ctx context.Context) time.Time {
	d := time.Now().Add(w.opts.WriteTimeout)
	if cd, ok := ctx.Deadline(); ok && cd.Before(d) {
		return cd
	}
	return d
}
