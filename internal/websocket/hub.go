package websocket

import (
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const publishTimeout = 1 * time.Second

// MessageToSend is a payload addressed to every client of one session.
type MessageToSend struct {
	SessionID uuid.UUID
	Payload   []byte
}

// Hub maintains the set of connected clients, grouped by session.
type Hub struct {
	// Registered clients. Maps session ID to the set of its connections.
	Clients map[uuid.UUID]map[*Client]bool

	// Payloads fanned out to all clients of a session.
	SendDirect chan *MessageToSend

	// Register requests from the clients.
	Register chan *Client

	// Unregister requests from clients.
	Unregister chan *Client

	// Session teardown requests; every client of the session is dropped.
	Close chan uuid.UUID

	quit     chan struct{}
	stopOnce sync.Once

	// Protects Clients for readers outside the Run loop.
	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		SendDirect: make(chan *MessageToSend),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Close:      make(chan uuid.UUID),
		Clients:    make(map[uuid.UUID]map[*Client]bool),
		quit:       make(chan struct{}),
	}
}

// Run starts the hub's processing loop. It returns after Stop.
func (h *Hub) Run() {
	log.Info("[hub] websocket hub started")
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			if _, ok := h.Clients[client.SessionID]; !ok {
				h.Clients[client.SessionID] = make(map[*Client]bool)
			}
			h.Clients[client.SessionID][client] = true
			log.Debugf("[hub] client registered for session %s (%d connections)", client.SessionID, len(h.Clients[client.SessionID]))
			h.mu.Unlock()

		case client := <-h.Unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

		case sessionID := <-h.Close:
			h.mu.Lock()
			for client := range h.Clients[sessionID] {
				h.remove(client)
			}
			h.mu.Unlock()
			log.Debugf("[hub] session %s closed", sessionID)

		case message := <-h.SendDirect:
			h.mu.RLock()
			for client := range h.Clients[message.SessionID] {
				select {
				case client.Send <- message.Payload:
				default:
					log.Warnf("[hub] send buffer full for a client of session %s, update dropped", message.SessionID)
				}
			}
			h.mu.RUnlock()

		case <-h.quit:
			h.mu.Lock()
			for _, sessionClients := range h.Clients {
				for client := range sessionClients {
					h.remove(client)
				}
			}
			h.mu.Unlock()
			log.Info("[hub] websocket hub stopped")
			return
		}
	}
}

// remove drops client and closes its Send channel, which makes WritePump
// send a close frame. Callers hold h.mu.
func (h *Hub) remove(client *Client) {
	sessionClients, ok := h.Clients[client.SessionID]
	if !ok || !sessionClients[client] {
		return
	}
	delete(sessionClients, client)
	close(client.Send)
	if len(sessionClients) == 0 {
		delete(h.Clients, client.SessionID)
	}
	log.Debugf("[hub] client unregistered for session %s", client.SessionID)
}

// Publish queues payload for every client of the session.
func (h *Hub) Publish(sessionID uuid.UUID, payload []byte) {
	message := &MessageToSend{SessionID: sessionID, Payload: payload}
	select {
	case h.SendDirect <- message:
	case <-h.quit:
	case <-time.After(publishTimeout):
		log.Warnf("[hub] timeout queuing update for session %s", sessionID)
	}
}

// CloseSession disconnects every client of the session.
func (h *Hub) CloseSession(sessionID uuid.UUID) {
	select {
	case h.Close <- sessionID:
	case <-h.quit:
	case <-time.After(publishTimeout):
		log.Warnf("[hub] timeout closing session %s", sessionID)
	}
}

// ConnectionCount returns the number of clients connected to the session.
func (h *Hub) ConnectionCount(sessionID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.Clients[sessionID])
}

// Stop ends Run and disconnects all clients.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
}
