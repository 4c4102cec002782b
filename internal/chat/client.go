package chat

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/Purplemerit/notion-realtime/internal/middleware"
	"github.com/Purplemerit/notion-realtime/internal/types"

	"github.com/gorilla/websocket"
)

var (
	ErrConnClosed = errors.New("connection closed")
	ErrBufferFull = errors.New("send buffer full")
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 10 * time.Second
	readLimit  = 1 << 20 // base64 media frames are large
)

// Client is one live authenticated connection. The hub pushes frames through
// Enqueue; the pumps shuttle bytes between the send buffer and the socket.
type Client struct {
	Hub      *Hub
	Conn     *websocket.Conn
	Identity string
	Limiter  *middleware.RateLimiter

	send        chan []byte
	lastWarning time.Time

	mu     sync.Mutex
	closed bool
	once   sync.Once
}

func NewClient(h *Hub, conn *websocket.Conn, identity string) *Client {
	return &Client{
		Hub:      h,
		Conn:     conn,
		Identity: identity,
		Limiter:  middleware.NewRateLimiter(5, 500*time.Millisecond),
		send:     make(chan []byte, 256),
	}
}

// Enqueue hands a frame to the write pump. It never blocks: a closed client
// or a full buffer is a failed push, which callers treat as a dead
// connection.
func (c *Client) Enqueue(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return ErrBufferFull
	}
}

// Emit marshals and enqueues an outbound event, logging a failed push.
func (c *Client) Emit(event string, v any) error {
	payload, err := types.Marshal(event, v)
	if err != nil {
		log.Printf("[CLIENT] Failed to marshal %s event for %s: %v", event, c.Identity, err)
		return err
	}
	if err := c.Enqueue(payload); err != nil {
		log.Printf("[CLIENT] Failed to push %s event to %s: %v", event, c.Identity, err)
		return err
	}
	return nil
}

// EmitError reports a failure back to this connection only. Every error
// path emits exactly one of these.
func (c *Client) EmitError(code, message string) {
	_ = c.Emit(types.EventError, types.ErrorPayload{Message: message, Code: code})
}

// shutdown closes the send buffer exactly once. The transport itself is
// closed by the pump that observed the disconnect.
func (c *Client) shutdown() {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()
	})
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Hub.Detach(c)
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Detach(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(readLimit)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[CLIENT] Unexpected close from %s: %v", c.Identity, err)
			}
			break
		}

		if !c.Limiter.Allow() {
			if time.Since(c.lastWarning) > 3*time.Second {
				if err := c.Emit(types.EventSystem, map[string]string{"message": "Rate limit exceeded."}); err == nil {
					c.lastWarning = time.Now()
				}
			}
			continue
		}

		c.Hub.Route(c, message)
	}
}
