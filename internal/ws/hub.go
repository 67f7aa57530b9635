package ws

import (
	"context"
	"log"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	sendBuffer   = 64
	writeTimeout = 10 * time.Second
	pingPeriod   = 25 * time.Second
	pingTimeout  = 5 * time.Second
)

type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type Client struct {
	UserID uint
	Conn   *websocket.Conn
	Send   chan Event

	ctx    context.Context
	cancel context.CancelFunc
}

// Hub fans events out to every socket a user has open.
type Hub struct {
	mu      sync.RWMutex
	clients map[uint]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: map[uint]map[*Client]struct{}{},
	}
}

func (h *Hub) AddClient(userID uint, conn *websocket.Conn) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		UserID: userID,
		Conn:   conn,
		Send:   make(chan Event, sendBuffer),
		ctx:    ctx,
		cancel: cancel,
	}

	h.mu.Lock()
	if h.clients[userID] == nil {
		h.clients[userID] = map[*Client]struct{}{}
	}
	h.clients[userID][c] = struct{}{}
	h.mu.Unlock()

	go c.writeLoop()
	go c.keepAliveLoop()

	return c
}

// RemoveClient unsubscribes the client and closes its socket.
func (h *Hub) RemoveClient(c *Client) {
	c.cancel()

	h.mu.Lock()
	if set, ok := h.clients[c.UserID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.UserID)
		}
	}
	h.mu.Unlock()

	_ = c.Conn.Close(websocket.StatusNormalClosure, "bye")
}

func (h *Hub) ClientCount(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func (h *Hub) BroadcastToUser(userID uint, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients[userID] {
		select {
		case c.Send <- ev:
		default:
			// slow reader; it will catch up on the next full list
			log.Printf("ws: dropping %s for user %d", ev.Type, userID)
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	var all []*Client
	for _, set := range h.clients {
		for c := range set {
			all = append(all, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range all {
		h.RemoveClient(c)
	}
}

func (c *Client) writeLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case ev := <-c.Send:
			writeCtx, cancel := context.WithTimeout(c.ctx, writeTimeout)
			err := wsjson.Write(writeCtx, c.Conn, ev)
			cancel()
			if err != nil {
				log.Printf("ws: write to user %d failed: %v", c.UserID, err)
			}
		}
	}
}

func (c *Client) keepAliveLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(c.ctx, pingTimeout)
			_ = c.Conn.Ping(pingCtx)
			cancel()
		}
	}
}
