// Package ws fans committed session views out to WebSocket subscribers.
// Each client watches exactly one item; slow clients are dropped rather
// than allowed to stall the broadcast loop.
package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 256
)

// Client is one WebSocket subscriber for one item.
type Client struct {
	ID     string
	ItemID string
	Conn   *websocket.Conn
	Send   chan []byte
}

// broadcastMessage targets every client watching an item.
type broadcastMessage struct {
	itemID  string
	payload []byte
}

// Manager owns the WebSocket connection lifecycle.
type Manager struct {
	subscribers sync.Map // map[string]*sync.Map of *Client

	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMessage

	log logrus.FieldLogger
}

// NewManager creates a manager.
func NewManager(log logrus.FieldLogger) *Manager {
	return &Manager{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMessage, sendBuffer),
		log:        log,
	}
}

// Run processes connection lifecycle events. Run it in a goroutine.
func (m *Manager) Run() {
	for {
		select {
		case client := <-m.register:
			m.registerClient(client)
		case client := <-m.unregister:
			m.unregisterClient(client)
		case message := <-m.broadcast:
			m.broadcastToItem(message.itemID, message.payload)
		}
	}
}

// RegisterClient adds a client to the manager.
func (m *Manager) RegisterClient(client *Client) {
	m.register <- client
}

// UnregisterClient removes a client from the manager.
func (m *Manager) UnregisterClient(client *Client) {
	m.unregister <- client
}

// Broadcast sends a payload to every client watching the item.
func (m *Manager) Broadcast(itemID string, payload []byte) {
	m.broadcast <- &broadcastMessage{itemID: itemID, payload: payload}
}

func (m *Manager) registerClient(client *Client) {
	subscribers, _ := m.subscribers.LoadOrStore(client.ItemID, &sync.Map{})
	subscribers.(*sync.Map).Store(client, true)

	m.log.WithFields(logrus.Fields{
		"client_id": client.ID,
		"item_id":   client.ItemID,
	}).Info("client subscribed")

	go client.writePump()
}

func (m *Manager) unregisterClient(client *Client) {
	if subscribers, ok := m.subscribers.Load(client.ItemID); ok {
		subscriberMap := subscribers.(*sync.Map)
		if _, present := subscriberMap.Load(client); !present {
			return
		}
		subscriberMap.Delete(client)
	}

	close(client.Send)
	client.Conn.Close()

	m.log.WithFields(logrus.Fields{
		"client_id": client.ID,
		"item_id":   client.ItemID,
	}).Info("client unsubscribed")
}

func (m *Manager) broadcastToItem(itemID string, payload []byte) {
	subscribers, ok := m.subscribers.Load(itemID)
	if !ok {
		return
	}

	subscribers.(*sync.Map).Range(func(key, _ any) bool {
		client := key.(*Client)
		select {
		case client.Send <- payload:
		default:
			// Full send buffer: drop the client so one slow
			// reader cannot block the rest.
			go m.UnregisterClient(client)
		}
		return true
	})
}

// SubscriberCount returns how many clients watch an item.
func (m *Manager) SubscriberCount(itemID string) int {
	count := 0
	if subscribers, ok := m.subscribers.Load(itemID); ok {
		subscribers.(*sync.Map).Range(func(_, _ any) bool {
			count++
			return true
		})
	}
	return count
}

// writePump pumps messages from the Send channel to the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
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

// startReadPump consumes (and discards) client frames so pings are
// answered and disconnects are noticed.
func (c *Client) startReadPump(unregister chan<- *Client) {
	go func() {
		defer func() { unregister <- c }()
		for {
			if _, _, err := c.Conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
