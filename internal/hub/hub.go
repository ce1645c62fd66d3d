package hub

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/config"
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/pkg/log"
)

// Hub tracks live connections, the identities behind them, and channel
// memberships. Channels are named: a personal channel per identity, a
// counselor channel per counselor profile, and one channel per chat session.
//
// Membership mutations go through the mutex; payload fan-out goes through the
// single Run goroutine, so everything a caller enqueues while holding a
// session lock reaches each member's send queue in enqueue order.
type Hub struct {
	clients    map[string]*Client            // client id -> client
	identities map[string]map[string]*Client // user id -> client id -> client
	channels   map[string]map[string]*Client // channel -> client id -> client
	broadcast  chan *channelMessage
	mu         sync.RWMutex
	cfg        config.WebSocketConfig
}

type channelMessage struct {
	Channel       string
	All           bool
	Payload       []byte
	ExcludeClient string
	ExcludeUser   string
}

// NewHub creates a hub.
func NewHub(cfg config.WebSocketConfig) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		identities: make(map[string]map[string]*Client),
		channels:   make(map[string]map[string]*Client),
		broadcast:  make(chan *channelMessage, 256),
		cfg:        cfg,
	}
}

// UserChannel is the personal notification channel of an identity.
func UserChannel(userID string) string {
	return fmt.Sprintf("user:%s", userID)
}

// CounselorChannel is the channel scoped to a counselor profile.
func CounselorChannel(counselorID string) string {
	return fmt.Sprintf("counselor:%s", counselorID)
}

// SessionChannel is the channel of one chat session.
func SessionChannel(sessionID string) string {
	return fmt.Sprintf("chat:%s", sessionID)
}

// Run drains the broadcast queue. Start exactly once.
func (h *Hub) Run() {
	for msg := range h.broadcast {
		h.mu.RLock()
		if msg.All {
			for _, client := range h.clients {
				h.deliver(client, msg)
			}
		} else if members, ok := h.channels[msg.Channel]; ok {
			for _, client := range members {
				h.deliver(client, msg)
			}
		}
		h.mu.RUnlock()
	}
}

func (h *Hub) deliver(client *Client, msg *channelMessage) {
	if client.ID == msg.ExcludeClient {
		return
	}
	if msg.ExcludeUser != "" && client.Identity.UserID == msg.ExcludeUser {
		return
	}
	select {
	case client.Send <- msg.Payload:
	default:
		// Send queue full: the peer stopped draining. Drop the connection
		// rather than block delivery to everyone else.
		go h.Unregister(client)
	}
}

// Register adds a connection. In single-session mode any previous connections
// of the same identity are removed and returned so the caller can close them.
func (h *Hub) Register(client *Client) []*Client {
	h.mu.Lock()

	var replaced []*Client
	if h.cfg.SingleSession {
		for _, prev := range h.identities[client.Identity.UserID] {
			replaced = append(replaced, prev)
		}
	}
	for _, prev := range replaced {
		h.removeLocked(prev)
	}

	h.clients[client.ID] = client
	conns, ok := h.identities[client.Identity.UserID]
	if !ok {
		conns = make(map[string]*Client)
		h.identities[client.Identity.UserID] = conns
	}
	conns[client.ID] = client
	h.mu.Unlock()

	l := log.L()
	l.Debug().
		Str(log.FieldClientID, client.ID).
		Str(log.FieldUserID, client.Identity.UserID).
		Str(log.FieldRole, client.Identity.Role).
		Msg("client registered")

	return replaced
}

// Unregister removes a connection and all its channel memberships. It reports
// whether this was the identity's last connection.
func (h *Hub) Unregister(client *Client) (last bool) {
	h.mu.Lock()
	if _, ok := h.clients[client.ID]; ok {
		h.removeLocked(client)
	}
	last = len(h.identities[client.Identity.UserID]) == 0
	h.mu.Unlock()

	l := log.L()
	l.Debug().
		Str(log.FieldClientID, client.ID).
		Str(log.FieldUserID, client.Identity.UserID).
		Bool("last_connection", last).
		Msg("client unregistered")
	return last
}

// removeLocked removes the client from every map and closes its send queue.
// Callers hold h.mu.
func (h *Hub) removeLocked(client *Client) {
	for name, members := range h.channels {
		delete(members, client.ID)
		if len(members) == 0 {
			delete(h.channels, name)
		}
	}

	if conns, ok := h.identities[client.Identity.UserID]; ok {
		delete(conns, client.ID)
		if len(conns) == 0 {
			delete(h.identities, client.Identity.UserID)
		}
	}

	if _, ok := h.clients[client.ID]; ok {
		delete(h.clients, client.ID)
		close(client.Send)
	}
}

// JoinChannel adds the client to a channel.
func (h *Hub) JoinChannel(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	members, ok := h.channels[channel]
	if !ok {
		members = make(map[string]*Client)
		h.channels[channel] = members
	}
	members[client.ID] = client
}

// LeaveChannel removes the client from a channel.
func (h *Hub) LeaveChannel(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.channels[channel]; ok {
		delete(members, client.ID)
		if len(members) == 0 {
			delete(h.channels, channel)
		}
	}
}

// InChannel reports whether the client is a member of the channel.
func (h *Hub) InChannel(client *Client, channel string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members, ok := h.channels[channel]
	if !ok {
		return false
	}
	_, ok = members[client.ID]
	return ok
}

// Broadcast sends a message to every member of a channel, optionally
// excluding one client id (typically the sender's connection).
func (h *Hub) Broadcast(channel string, message interface{}, excludeClientID string) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.broadcast <- &channelMessage{
		Channel:       channel,
		Payload:       data,
		ExcludeClient: excludeClientID,
	}
	return nil
}

// BroadcastToAll sends a message to every connection, optionally excluding
// all connections of one identity.
func (h *Hub) BroadcastToAll(message interface{}, excludeUserID string) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.broadcast <- &channelMessage{
		All:         true,
		Payload:     data,
		ExcludeUser: excludeUserID,
	}
	return nil
}

// IsOnline reports whether the identity has at least one live connection on
// this instance.
func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.identities[userID]) > 0
}

// OnlineUsers returns the identities with a live connection.
func (h *Hub) OnlineUsers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	users := make([]string, 0, len(h.identities))
	for userID := range h.identities {
		users = append(users, userID)
	}
	return users
}
