package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/config"
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/domain"
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/pkg/log"
)

// Client is one live websocket connection bound to a verified identity.
type Client struct {
	ID       string
	Identity domain.Identity
	Hub      *Hub
	Conn     *websocket.Conn
	Send     chan []byte

	cfg config.WebSocketConfig

	// typing holds session ids this connection has an open typing indicator
	// in, so a disconnect can emit the implicit stop.
	mu     sync.Mutex
	typing map[string]struct{}
}

// NewClient creates a client for an upgraded connection.
func NewClient(id string, ident domain.Identity, h *Hub, conn *websocket.Conn, cfg config.WebSocketConfig) *Client {
	return &Client{
		ID:       id,
		Identity: ident,
		Hub:      h,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		cfg:      cfg,
		typing:   make(map[string]struct{}),
	}
}

// ReadPump reads inbound events until the connection dies, then invokes the
// disconnect callback. Run as a goroutine; one per connection.
func (c *Client) ReadPump(handler func(*Client, []byte), disconnect func(*Client)) {
	defer func() {
		disconnect(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.cfg.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				l := log.L()
				l.Warn().Err(err).Str(log.FieldClientID, c.ID).Msg("websocket read error")
			}
			break
		}

		handler(c, message)
	}
}

// WritePump drains the send queue and keeps the connection alive with pings.
// Run as a goroutine; one per connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendEvent queues a payload for this connection only. A full queue drops the
// payload; the hub tears down connections that stop draining.
func (c *Client) SendEvent(message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	select {
	case c.Send <- data:
	default:
	}
	return nil
}

// SetTyping records or clears an open typing indicator for a session.
func (c *Client) SetTyping(sessionID string, typing bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.typing == nil {
		c.typing = make(map[string]struct{})
	}
	if typing {
		c.typing[sessionID] = struct{}{}
	} else {
		delete(c.typing, sessionID)
	}
}

// DrainTyping returns and clears the sessions with an open typing indicator.
func (c *Client) DrainTyping() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	sessions := make([]string, 0, len(c.typing))
	for id := range c.typing {
		sessions = append(sessions, id)
	}
	c.typing = make(map[string]struct{})
	return sessions
}
