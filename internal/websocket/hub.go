package websocket

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tariel-x/referral/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 70 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 32
)

type Client struct {
	conn      *websocket.Conn
	send      chan []byte
	userID    string
	closeOnce sync.Once
}

func (c *Client) trySend(payload []byte) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// Hub tracks the open click-feed sessions of every user. A user may hold
// several sessions at once, one per open dashboard tab.
type Hub struct {
	mu       sync.Mutex
	sessions map[string]map[*Client]struct{}
	logger   *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		sessions: make(map[string]map[*Client]struct{}),
		logger:   logger,
	}
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.sessions[client.userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.sessions[client.userID] = set
	}
	set[client] = struct{}{}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.sessions[client.userID]
	if !ok {
		return
	}
	if _, exists := set[client]; exists {
		client.closeSend()
		delete(set, client)
	}
	if len(set) == 0 {
		delete(h.sessions, client.userID)
	}
}

// Sessions reports how many sessions userID currently holds.
func (h *Hub) Sessions(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions[userID])
}

func (h *Hub) SendTo(userID string, payload []byte) int {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.sessions[userID]))
	for client := range h.sessions[userID] {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	delivered := 0
	for _, client := range clients {
		if !client.trySend(payload) {
			_ = client.conn.Close()
			continue
		}
		delivered++
	}
	return delivered
}

// NotifyClick pushes a click event to every session of the link owner.
func (h *Hub) NotifyClick(ownerID string, link models.ReferralLink, click models.ReferralClick) {
	payload, err := EncodeClick(link, click)
	if err != nil {
		h.logger.Warn("encode click event", "link_code", link.LinkCode, "error", err)
		return
	}
	if n := h.SendTo(ownerID, payload); n > 0 {
		h.logger.Debug("click event delivered", "user_id", ownerID, "link_code", link.LinkCode, "sessions", n)
	}
}

// Serve registers conn as a session of userID and blocks until it closes.
func (h *Hub) Serve(conn *websocket.Conn, userID string) {
	client := &Client{
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		userID: userID,
	}
	h.add(client)
	h.logger.Debug("ws connected", "user_id", userID)

	go h.writePump(client)
	h.readPump(client)
}

func (h *Hub) readPump(client *Client) {
	defer func() {
		h.logger.Debug("ws disconnect", "user_id", client.userID)
		_ = client.conn.Close()
		h.remove(client)
	}()

	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// The feed is one-way; inbound frames only keep the read deadline alive.
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			h.logger.Debug("ws read error", "user_id", client.userID, "error", err)
			return
		}
		_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}

func (h *Hub) writePump(client *Client) {
	defer func() {
		_ = client.conn.Close()
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-client.send:
			if !ok {
				return
			}
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
