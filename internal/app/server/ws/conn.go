package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Options tune one websocket transport.
type Options struct {
	ReadLimit    int64
	WriteTimeout time.Duration
	// IdleTimeout closes a silent connection. Any inbound frame or pong
	// extends it. Zero disables the deadline.
	IdleTimeout time.Duration
	SendBuffer  int
}

func (o Options) withDefaults() Options {
	if o.ReadLimit <= 0 {
		o.ReadLimit = 512 * 1024
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	return o
}

// WebSocket serialises writes on a gorilla connection and applies the
// configured deadlines. gorilla allows one concurrent reader and one
// concurrent writer.
type WebSocket struct {
	conn    *websocket.Conn
	opts    Options
	writeMu sync.Mutex
}

func NewWebSocket(conn *websocket.Conn, opts Options) *WebSocket {
	opts = opts.withDefaults()
	w := &WebSocket{conn: conn, opts: opts}
	conn.SetReadLimit(opts.ReadLimit)
	if opts.IdleTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(opts.IdleTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(opts.IdleTimeout))
		})
	}
	return w
}

func (w *WebSocket) WriteMessage(data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(w.opts.WriteTimeout))
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

// ReadMessage blocks for the next data frame.
func (w *WebSocket) ReadMessage() ([]byte, error) {
	_, data, err := w.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	if w.opts.IdleTimeout > 0 {
		_ = w.conn.SetReadDeadline(time.Now().Add(w.opts.IdleTimeout))
	}
	return data, nil
}

// CloseWithCode sends a close frame before tearing the transport down.
func (w *WebSocket) CloseWithCode(code int, reason string) error {
	w.writeMu.Lock()
	msg := websocket.FormatCloseMessage(code, reason)
	err := w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(w.opts.WriteTimeout))
	w.writeMu.Unlock()
	_ = w.conn.Close()
	return err
}

func (w *WebSocket) Close() error {
	return w.conn.Close()
}
