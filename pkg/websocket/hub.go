package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"quiz-classroom/internal/apperr"
)

// Message represents the standard message format pushed over WebSocket.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// inbound is a client message; Data is decoded by the message handler.
type inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 256
)

// Authenticator maps the token of a connecting client to the room it may
// join.
type Authenticator func(token string) (room string, err error)

// MessageHandler handles a message a client sent to its room.
type MessageHandler interface {
	HandleClientMessage(room, messageType string, data json.RawMessage) error
}

// Hub fans messages out to the clients of a room. A room is one teacher
// session; a session may have several connections open.
type Hub struct {
	authenticate Authenticator
	upgrader     websocket.Upgrader

	mu      sync.RWMutex
	clients map[*Client]bool
	rooms   map[string]map[*Client]bool
	handler MessageHandler

	unregister chan *Client
	stopped    chan struct{}
}

// NewHub returns a hub. An empty allowedOrigins accepts every origin.
func NewHub(authenticate Authenticator, allowedOrigins []string) *Hub {
	h := &Hub{
		authenticate: authenticate,
		clients:      make(map[*Client]bool),
		rooms:        make(map[string]map[*Client]bool),
		unregister:   make(chan *Client),
		stopped:      make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin(allowedOrigins),
	}
	return h
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if len(allowed) == 0 || origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

func (h *Hub) SetMessageHandler(handler MessageHandler) {
	h.mu.Lock()
	h.handler = handler
	h.mu.Unlock()
}

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	room string
	done chan struct{}
}

// BroadcastMessage marshals the message and queues it for every client in
// room. It never blocks; a client whose buffer is full is dropped.
func (h *Hub) BroadcastMessage(room string, messageType string, data interface{}) {
	messageBytes, err := json.Marshal(Message{Type: messageType, Data: data})
	if err != nil {
		log.Printf("Error marshaling %s message: %v", messageType, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.rooms[room] {
		h.queue(client, messageBytes)
	}
}

// queue must be called with h.mu held.
func (h *Hub) queue(c *Client, message []byte) {
	select {
	case c.send <- message:
	default:
		log.Printf("Send channel full for client %p in room %s; unregistering client", c, c.room)
		go h.drop(c)
	}
}

func (h *Hub) sendTo(c *Client, messageType string, data interface{}) {
	messageBytes, err := json.Marshal(Message{Type: messageType, Data: data})
	if err != nil {
		log.Printf("Error marshaling %s message: %v", messageType, err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.clients[c] {
		h.queue(c, messageBytes)
	}
}

// drop asks Run to unregister c.
func (h *Hub) drop(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.stopped:
	}
}

// RoomSize returns the number of clients connected to room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) RegisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[client.room]; !ok {
		h.rooms[client.room] = make(map[*Client]bool)
	}
	h.rooms[client.room][client] = true
	h.clients[client] = true
	log.Printf("Client %p joined room %s (%d connected)", client, client.room, len(h.rooms[client.room]))
}

func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.clients[client] {
		return
	}
	delete(h.clients, client)
	if room, ok := h.rooms[client.room]; ok {
		delete(room, client)
		if len(room) == 0 {
			delete(h.rooms, client.room)
		}
	}
	close(client.send)
	close(client.done)
	log.Printf("Client %p left room %s", client, client.room)
}

// Run unregisters dropped clients until ctx is done, then disconnects
// everyone.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.unregister:
			h.UnregisterClient(client)
		case <-ctx.Done():
			close(h.stopped)
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for c := range h.clients {
				clients = append(clients, c)
			}
			h.mu.RUnlock()
			for _, c := range clients {
				h.UnregisterClient(c)
			}
			return
		}
	}
}

// NewClient creates a new Client instance.
func NewClient(hub *Hub, conn *websocket.Conn, room string) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		room: room,
		done: make(chan struct{}),
	}
}

// HandleWebSocket authenticates the ?token= query parameter, upgrades the
// connection and joins the client to its session's room.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Missing token", http.StatusUnauthorized)
		return
	}
	room, err := h.authenticate(token)
	if err != nil {
		msg, _ := apperr.Public(err)
		http.Error(w, msg, apperr.Status(err))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := NewClient(h, conn, room)
	h.RegisterClient(client)

	go client.writePump()
	go client.readPump()
}

// readPump continuously reads messages from the WebSocket connection.
func (c *Client) readPump() {
	defer func() {
		c.hub.drop(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("Unexpected close: %v", err)
			}
			break
		}
		c.handleMessage(message)
	}
}

func (c *Client) handleMessage(message []byte) {
	var msg inbound
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Printf("Error unmarshaling message: %v", err)
		c.hub.sendTo(c, "error", map[string]string{"error": "Invalid message"})
		return
	}

	c.hub.mu.RLock()
	handler := c.hub.handler
	c.hub.mu.RUnlock()
	if handler == nil {
		log.Printf("No message handler; dropping %s from room %s", msg.Type, c.room)
		return
	}

	if err := handler.HandleClientMessage(c.room, msg.Type, msg.Data); err != nil {
		if apperr.Status(err) >= http.StatusInternalServerError {
			log.Printf("Error handling %s in room %s: %+v", msg.Type, c.room, err)
		}
		text, _ := apperr.Public(err)
		c.hub.sendTo(c, "error", map[string]string{"type": msg.Type, "error": text})
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				log.Printf("Error getting writer for client %p: %v", c, err)
				return
			}
			if _, err := w.Write(message); err != nil {
				log.Printf("Error writing message to client %p: %v", c, err)
				return
			}
			if err := w.Close(); err != nil {
				log.Printf("Error closing writer for client %p: %v", c, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
