package ws

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrClientClosed = errors.New("client closed")
	ErrSendBacklog  = errors.New("send buffer full")
)

// Client is one admitted websocket. Outbound frames go through a bounded
// queue drained by a single writer goroutine.
type Client struct {
	id   string
	ws   *WebSocket
	out  chan []byte
	done chan struct{}
	once sync.Once
	log  *slog.Logger
}

func NewClient(log *slog.Logger, ws *WebSocket) *Client {
	if log == nil {
		log = slog.Default()
	}
	c := &Client{
		id:   uuid.NewString(),
		ws:   ws,
		out:  make(chan []byte, ws.opts.SendBuffer),
		done: make(chan struct{}),
		log:  log,
	}
	go c.writeLoop()
	return c
}

func (c *Client) ID() string { return c.id }

// Send queues data without blocking. A full queue means the peer is not
// keeping up and the connection is treated as dead.
func (c *Client) Send(_ context.Context, data []byte) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}
	select {
	case c.out <- data:
		return nil
	case <-c.done:
		return ErrClientClosed
	default:
		return ErrSendBacklog
	}
}

func (c *Client) ReadMessage() ([]byte, error) {
	return c.ws.ReadMessage()
}

func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

func (c *Client) writeLoop() {
	defer c.Close()
	for {
		select {
		case <-c.done:
			return
		case data := <-c.out:
			if err := c.ws.WriteMessage(data); err != nil {
				c.log.Debug("ws client - write loop - write failed", "conn_id", c.id, "err", err)
				return
			}
		}
	}
}
