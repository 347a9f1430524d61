package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/apex/log"

	"infrasee/models"
)

// Message is the envelope pushed to every connected dashboard client.
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// Hub manages WebSocket connections and broadcasting
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Outbound messages to fan out
	broadcast chan []byte

	// Register requests from clients
	Register chan *Client

	// Unregister requests from clients
	Unregister chan *Client

	// Mutex for thread-safe operations
	mutex sync.RWMutex

	// Statistics
	connectedClients int
	lastEventAt      time.Time
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mutex.Lock()
			h.clients[client] = true
			h.connectedClients = len(h.clients)
			h.mutex.Unlock()
			log.Infof("Client connected. Total clients: %d", h.connectedClients)

		case client := <-h.Unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.connectedClients = len(h.clients)
			}
			h.mutex.Unlock()
			log.Infof("Client disconnected. Total clients: %d", h.connectedClients)

		case message := <-h.broadcast:
			h.mutex.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.connectedClients = len(h.clients)
			h.mutex.RUnlock()
		}
	}
}

func (h *Hub) push(msgType string, data interface{}) {
	message := Message{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now(),
	}

	payload, err := json.Marshal(message)
	if err != nil {
		log.Errorf("Failed to marshal %s broadcast: %v", msgType, err)
		return
	}

	h.mutex.Lock()
	h.lastEventAt = message.Timestamp
	h.mutex.Unlock()

	h.broadcast <- payload
}

// BroadcastReport pushes a report's current state to all connected clients.
// Dashboards use it to refresh queues without polling.
func (h *Hub) BroadcastReport(report models.Report) {
	h.push("report", report)
}

// BroadcastNotification pushes a freshly persisted notification record.
func (h *Hub) BroadcastNotification(n models.Notification) {
	h.push("notification", n)
}

// DispatchSMS pushes an SMS payload over the socket channel. The gateway
// process on the other end owns actual delivery; this never blocks workflow
// transitions and never reports delivery failures back.
func (h *Hub) DispatchSMS(p models.SMSPayload) error {
	h.push("sms", p)
	return nil
}

// GetStats returns current hub statistics
func (h *Hub) GetStats() (int, time.Time) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.connectedClients, h.lastEventAt
}
