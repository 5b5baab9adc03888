package notify

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

// Constants for hub configuration
const (
	MaxClients          = 512
	WriteTimeout        = 10 * time.Second
	PongTimeout         = 60 * time.Second
	PingInterval        = 30 * time.Second
	ClientSendBufferLen = 256
)

// Message is the envelope for everything sent over the socket
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
	Time string      `json:"time"`
}

// AlertPayload is the body of an alert-triggered notification
type AlertPayload struct {
	AlertID       uint            `json:"alertId"`
	Symbol        string          `json:"symbol"`
	Direction     string          `json:"direction"`
	TargetPrice   decimal.Decimal `json:"targetPrice"`
	ObservedPrice decimal.Decimal `json:"observedPrice"`
	TriggeredAt   time.Time       `json:"triggeredAt"`
}

// Client represents a connected WebSocket client
type Client struct {
	userID     uint
	conn       *websocket.Conn
	send       chan []byte
	subscribed map[string]bool
	mu         sync.RWMutex
}

func (c *Client) isSubscribed(coinID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subscribed[coinID]
}

// Hub tracks connected clients keyed by user and fans out price updates and
// alert notifications. Delivery is fire-and-forget: a full client buffer
// drops the client, an absent recipient drops the message.
type Hub struct {
	clients    map[*Client]bool
	byUser     map[uint]map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	shutdown   chan struct{}
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
}

// NewHub creates a hub. Run must be started in its own goroutine.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		byUser:     make(map[uint]map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		shutdown:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Run processes register/unregister/broadcast events until Shutdown
func (h *Hub) Run() {
	for {
		select {
		case <-h.shutdown:
			return

		case client := <-h.register:
			h.mu.Lock()
			if len(h.clients) >= MaxClients {
				h.mu.Unlock()
				client.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "Server at capacity"))
				client.conn.Close()
				log.Printf("WebSocket client rejected: max clients reached (%d)", MaxClients)
				continue
			}
			h.clients[client] = true
			if h.byUser[client.userID] == nil {
				h.byUser[client.userID] = make(map[*Client]bool)
			}
			h.byUser[client.userID][client] = true
			clientCount := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client connected for user %d. Total clients: %d", client.userID, clientCount)

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeClientLocked(client)
			clientCount := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client disconnected. Total clients: %d", clientCount)

		case message := <-h.broadcast:
			data, err := json.Marshal(message)
			if err != nil {
				log.Printf("Error marshaling broadcast message: %v", err)
				continue
			}

			h.mu.Lock()
			var deadClients []*Client
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					// Client buffer full, mark for removal
					deadClients = append(deadClients, client)
				}
			}
			for _, client := range deadClients {
				h.removeClientLocked(client)
			}
			h.mu.Unlock()
		}
	}
}

// removeClientLocked deletes a client from both registries. Callers hold mu.
func (h *Hub) removeClientLocked(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	if userClients, ok := h.byUser[client.userID]; ok {
		delete(userClients, client)
		if len(userClients) == 0 {
			delete(h.byUser, client.userID)
		}
	}
	close(client.send)
}

// Shutdown stops the hub and closes all client connections
func (h *Hub) Shutdown() {
	close(h.shutdown)

	h.mu.Lock()
	for client := range h.clients {
		close(client.send)
		if client.conn != nil {
			client.conn.Close()
		}
	}
	h.clients = make(map[*Client]bool)
	h.byUser = make(map[uint]map[*Client]bool)
	h.mu.Unlock()

	log.Println("Notification hub shutdown complete")
}

// ServeWS upgrades the connection and registers a client for the given user
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID uint) {
	h.mu.RLock()
	atCapacity := len(h.clients) >= MaxClients
	h.mu.RUnlock()

	if atCapacity {
		http.Error(w, "Server at capacity", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := &Client{
		userID:     userID,
		conn:       conn,
		send:       make(chan []byte, ClientSendBufferLen),
		subscribed: make(map[string]bool),
	}

	h.register <- client

	go client.writePump()
	go client.readPump(h)
}

// writePump writes messages to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads subscription commands from the WebSocket connection
func (c *Client) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(PongTimeout))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			break
		}

		var cmd struct {
			Action string   `json:"action"`
			Coins  []string `json:"coins"`
		}
		if err := json.Unmarshal(message, &cmd); err != nil {
			continue
		}

		switch cmd.Action {
		case "subscribe":
			c.mu.Lock()
			for _, coinID := range cmd.Coins {
				c.subscribed[coinID] = true
			}
			c.mu.Unlock()
		case "unsubscribe":
			c.mu.Lock()
			for _, coinID := range cmd.Coins {
				delete(c.subscribed, coinID)
			}
			c.mu.Unlock()
		}
	}
}

// Broadcast queues a message for every connected client
func (h *Hub) Broadcast(msgType string, data interface{}) {
	h.broadcast <- Message{
		Type: msgType,
		Data: data,
		Time: time.Now().Format(time.RFC3339),
	}
}

// NotifyUser delivers a message to every connection of one user. Having no
// connected recipient is not an error.
func (h *Hub) NotifyUser(userID uint, msgType string, data interface{}) {
	msg := Message{
		Type: msgType,
		Data: data,
		Time: time.Now().Format(time.RFC3339),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Error marshaling user message: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.byUser[userID] {
		select {
		case client.send <- payload:
		default:
			// Client buffer full, skip
		}
	}
}

// NotifyAlert sends an alert-triggered notification to the owning user
func (h *Hub) NotifyAlert(userID uint, payload AlertPayload) {
	h.NotifyUser(userID, "alert-triggered", payload)
}

// SendCoinUpdate delivers a coin update to clients subscribed to that coin
func (h *Hub) SendCoinUpdate(coinID string, data interface{}) {
	msg := Message{
		Type: "coin-price-update",
		Data: data,
		Time: time.Now().Format(time.RFC3339),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if !client.isSubscribed(coinID) {
			continue
		}
		select {
		case client.send <- payload:
		default:
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
