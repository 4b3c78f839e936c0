package websocket

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4 * 1024
)

// ErrConnClosed is returned by Send after Close.
var ErrConnClosed = errors.New("websocket connection closed")

// Conn 包装一个 gorilla 连接，作为推送订阅者
// gorilla allows one concurrent writer, so every write goes through mu.
type Conn struct {
	ws     *websocket.Conn
	remote string

	mu     sync.Mutex
	closed bool

	done      chan struct{}
	closeOnce sync.Once
}

func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{
		ws:     ws,
		remote: ws.RemoteAddr().String(),
		done:   make(chan struct{}),
	}
}

// Remote returns the peer address.
func (c *Conn) Remote() string { return c.remote }

// Done is closed once the connection is closed from either side.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Send writes one text frame, bounded by the ctx deadline (or writeWait when ctx has none).
func (c *Conn) Send(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(writeWait)
	}
	_ = c.ws.SetWriteDeadline(deadline)
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

// Close sends a close frame best effort and releases the socket. Safe to call repeatedly.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		_ = c.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		err = c.ws.Close()
		c.mu.Unlock()
		close(c.done)
	})
	return err
}

// ReadPump reads and discards client frames until the peer goes away or ctx
// ends. It also keeps the connection alive with pings. Blocks; returns when
// the connection is unusable.
func (c *Conn) ReadPump(ctx context.Context) {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.pingLoop(ctx)

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.Debug().Err(err).Str("remote", c.remote).Msg("websocket read error")
			}
			return
		}
	}
}

func (c *Conn) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.closed {
				c.mu.Unlock()
				return
			}
			err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
