package websocket

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now (should be restricted in production)
	},
}

// ProgressMessage is pushed to clients while a solve is running.
type ProgressMessage struct {
	Type       string `json:"type"`
	RequestID  string `json:"requestId"`
	Percentage int    `json:"percentage"`
	Message    string `json:"message"`
}

// Client represents a WebSocket client subscribed to one solve request
type Client struct {
	RequestID string
	Conn      *websocket.Conn
	Send      chan []byte
	Hub       *Hub
}

// Hub maintains active WebSocket connections and routes solve progress
// messages to the clients watching each request
type Hub struct {
	clients        map[*Client]bool
	requestClients map[string][]*Client
	broadcast      chan []byte
	register       chan *Client
	unregister     chan *Client
	logger         *logrus.Logger
	mutex          sync.RWMutex
}

// NewHub creates a new WebSocket hub
func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		clients:        make(map[*Client]bool),
		requestClients: make(map[string][]*Client),
		broadcast:      make(chan []byte, 256),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		logger:         logger,
	}
}

// Run starts the hub and handles client registration/unregistration
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.requestClients[client.RequestID] = append(h.requestClients[client.RequestID], client)
			total := len(h.clients)
			h.mutex.Unlock()

			h.logger.WithFields(logrus.Fields{
				"request_id":    client.RequestID,
				"total_clients": total,
			}).Info("WebSocket client connected")

		case client := <-h.unregister:
			h.mutex.Lock()
			h.dropClient(client)
			total := len(h.clients)
			h.mutex.Unlock()

			h.logger.WithFields(logrus.Fields{
				"request_id":    client.RequestID,
				"total_clients": total,
			}).Info("WebSocket client disconnected")

		case message := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					h.dropClient(client)
				}
			}
			h.mutex.Unlock()
		}
	}
}

// dropClient removes a client from both maps and closes its send channel.
// Callers must hold h.mutex. Idempotent: a client dropped during a broadcast
// still unregisters from its readPump afterwards.
func (h *Hub) dropClient(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.Send)

	requestClients := h.requestClients[client.RequestID]
	for i, c := range requestClients {
		if c == client {
			h.requestClients[client.RequestID] = append(requestClients[:i], requestClients[i+1:]...)
			break
		}
	}
	if len(h.requestClients[client.RequestID]) == 0 {
		delete(h.requestClients, client.RequestID)
	}
}

// HandleWebSocket handles WebSocket connections for a solve request
func (h *Hub) HandleWebSocket(c *gin.Context) {
	requestID := c.Param("request_id")
	if requestID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request ID"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithError(err).Error("Failed to upgrade WebSocket connection")
		return
	}

	client := &Client{
		RequestID: requestID,
		Conn:      conn,
		Send:      make(chan []byte, 256),
		Hub:       h,
	}

	client.Hub.register <- client

	// Start goroutines for reading and writing
	go client.writePump()
	go client.readPump()
}

// BroadcastProgress sends a progress update to all connections watching a request
func (h *Hub) BroadcastProgress(requestID string, percentage int, message string) {
	h.BroadcastToRequest(requestID, ProgressMessage{
		Type:       "progress",
		RequestID:  requestID,
		Percentage: percentage,
		Message:    message,
	})
}

// BroadcastToRequest sends a message to all connections for a specific
// request. The client list is read and written under the same lock that
// closes send channels, so a racing disconnect cannot leave a closed
// channel in the send set.
func (h *Hub) BroadcastToRequest(requestID string, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.WithError(err).Error("Failed to marshal WebSocket message")
		return
	}

	h.mutex.Lock()
	clients := append([]*Client(nil), h.requestClients[requestID]...)
	for _, client := range clients {
		select {
		case client.Send <- data:
		default:
			h.dropClient(client)
		}
	}
	h.mutex.Unlock()
}

// BroadcastToAll sends a message to all connected clients
func (h *Hub) BroadcastToAll(message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.WithError(err).Error("Failed to marshal WebSocket message")
		return
	}

	h.broadcast <- data
}

// GetConnectionCount returns the total number of active connections
func (h *Hub) GetConnectionCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// readPump pumps messages from the WebSocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	for {
		_, _, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.WithError(err).Error("WebSocket error")
			}
			break
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	defer c.Conn.Close()

	for message := range c.Send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			c.Hub.logger.WithError(err).Error("Failed to write WebSocket message")
			return
		}
	}
	c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}
