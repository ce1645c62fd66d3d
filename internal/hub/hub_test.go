package hub

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/config"
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/domain"
)

func testConfig(singleSession bool) config.WebSocketConfig {
	return config.WebSocketConfig{
		PingInterval:   30 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 4096,
		SingleSession:  singleSession,
	}
}

func testClient(id, userID, role string) *Client {
	return &Client{
		ID:       id,
		Identity: domain.Identity{UserID: userID, Role: role},
		Send:     make(chan []byte, 16),
	}
}

func recvPayload(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case data := <-c.Send:
		return data
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for payload")
		return nil
	}
}

func assertNoPayload(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.Send:
		t.Fatalf("unexpected payload: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcastToChannel(t *testing.T) {
	h := NewHub(testConfig(false))
	go h.Run()

	member := testClient("c1", "user-1", domain.RoleUser)
	other := testClient("c2", "user-2", domain.RoleUser)
	outsider := testClient("c3", "user-3", domain.RoleUser)
	for _, c := range []*Client{member, other, outsider} {
		h.Register(c)
	}
	h.JoinChannel(member, SessionChannel("sess-1"))
	h.JoinChannel(other, SessionChannel("sess-1"))

	if err := h.Broadcast(SessionChannel("sess-1"), map[string]string{"type": "ping"}, ""); err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	var got map[string]string
	if err := json.Unmarshal(recvPayload(t, member), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["type"] != "ping" {
		t.Fatalf("unexpected payload: %v", got)
	}
	recvPayload(t, other)
	assertNoPayload(t, outsider)
}

func TestBroadcastExcludesClient(t *testing.T) {
	h := NewHub(testConfig(false))
	go h.Run()

	sender := testClient("c1", "user-1", domain.RoleUser)
	receiver := testClient("c2", "user-2", domain.RoleUser)
	h.Register(sender)
	h.Register(receiver)
	h.JoinChannel(sender, SessionChannel("sess-1"))
	h.JoinChannel(receiver, SessionChannel("sess-1"))

	if err := h.Broadcast(SessionChannel("sess-1"), map[string]string{"type": "typing"}, sender.ID); err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	recvPayload(t, receiver)
	assertNoPayload(t, sender)
}

func TestBroadcastToAllExcludesUser(t *testing.T) {
	h := NewHub(testConfig(false))
	go h.Run()

	self := testClient("c1", "user-1", domain.RoleUser)
	selfOtherTab := testClient("c2", "user-1", domain.RoleUser)
	peer := testClient("c3", "user-2", domain.RoleUser)
	for _, c := range []*Client{self, selfOtherTab, peer} {
		h.Register(c)
	}

	if err := h.BroadcastToAll(map[string]string{"type": "user_online"}, "user-1"); err != nil {
		t.Fatalf("broadcast to all: %v", err)
	}

	recvPayload(t, peer)
	assertNoPayload(t, self)
	assertNoPayload(t, selfOtherTab)
}

func TestSingleSessionReplacesConnection(t *testing.T) {
	h := NewHub(testConfig(true))

	first := testClient("c1", "user-1", domain.RoleUser)
	if replaced := h.Register(first); len(replaced) != 0 {
		t.Fatalf("expected no replaced connections, got %d", len(replaced))
	}

	second := testClient("c2", "user-1", domain.RoleUser)
	replaced := h.Register(second)
	if len(replaced) != 1 || replaced[0].ID != "c1" {
		t.Fatalf("expected c1 replaced, got %+v", replaced)
	}

	// The replaced client's send queue is closed.
	if _, ok := <-first.Send; ok {
		t.Fatal("expected closed send queue for replaced client")
	}
	if !h.IsOnline("user-1") {
		t.Fatal("expected user-1 online via the new connection")
	}
}

func TestConnectionSetMode(t *testing.T) {
	h := NewHub(testConfig(false))

	first := testClient("c1", "user-1", domain.RoleUser)
	second := testClient("c2", "user-1", domain.RoleUser)
	h.Register(first)
	if replaced := h.Register(second); len(replaced) != 0 {
		t.Fatalf("expected both connections kept, got %d replaced", len(replaced))
	}

	if last := h.Unregister(first); last {
		t.Fatal("expected identity still online after first disconnect")
	}
	if last := h.Unregister(second); !last {
		t.Fatal("expected last disconnect to be reported")
	}
	if h.IsOnline("user-1") {
		t.Fatal("expected user-1 offline")
	}
}

func TestUnregisterLeavesChannels(t *testing.T) {
	h := NewHub(testConfig(false))

	client := testClient("c1", "user-1", domain.RoleUser)
	h.Register(client)
	h.JoinChannel(client, SessionChannel("sess-1"))

	if !h.InChannel(client, SessionChannel("sess-1")) {
		t.Fatal("expected membership before unregister")
	}

	h.Unregister(client)

	if h.InChannel(client, SessionChannel("sess-1")) {
		t.Fatal("expected membership removed on unregister")
	}
}

func TestUnregisterIdempotent(t *testing.T) {
	h := NewHub(testConfig(false))

	client := testClient("c1", "user-1", domain.RoleUser)
	h.Register(client)
	h.Unregister(client)
	// A second unregister of the same client must not panic on the closed
	// send queue.
	h.Unregister(client)
}

func TestLeaveChannelStopsDelivery(t *testing.T) {
	h := NewHub(testConfig(false))
	go h.Run()

	client := testClient("c1", "user-1", domain.RoleUser)
	h.Register(client)
	h.JoinChannel(client, SessionChannel("sess-1"))
	h.LeaveChannel(client, SessionChannel("sess-1"))

	if err := h.Broadcast(SessionChannel("sess-1"), map[string]string{"type": "ping"}, ""); err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	assertNoPayload(t, client)
}

func TestOnlineUsers(t *testing.T) {
	h := NewHub(testConfig(false))

	h.Register(testClient("c1", "user-1", domain.RoleUser))
	h.Register(testClient("c2", "user-2", domain.RoleCounselor))

	users := h.OnlineUsers()
	if len(users) != 2 {
		t.Fatalf("expected 2 online users, got %d", len(users))
	}
	seen := map[string]bool{}
	for _, u := range users {
		seen[u] = true
	}
	if !seen["user-1"] || !seen["user-2"] {
		t.Fatalf("unexpected online set: %v", users)
	}
}
