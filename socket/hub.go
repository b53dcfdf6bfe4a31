package socket

import (
	"context"
	"encoding/json"
	"sync"

	"pocketmemory/pkg/logger"
)

const (
	CapturedType = "CAPTURED" // Document created by an applied action
	ChangedType  = "CHANGED"  // Document content or metadata changed
	DeletedType  = "DELETED"  // Document removed
	OpenedType   = "OPENED"   // A document should be shown
	FailedType   = "FAILED"   // An applied action failed
	PresenceType = "PRESENCE" // A device of the user connected or left
)

type WSMessage struct {
	Type    string          `json:"type"`
	DocID   string          `json:"document_id,omitempty"`
	UserID  string          `json:"user_id"`
	Payload json.RawMessage `json:"payload,omitempty"`

	origin *Client
}

type presence struct {
	Clients int `json:"clients"`
}

// Hub fans out document events to every open connection of the same user.
// Rooms are keyed by user id.
type Hub struct {
	Rooms      map[string]map[*Client]bool
	Broadcast  chan WSMessage
	Register   chan *Client
	Unregister chan *Client
	mu         sync.Mutex
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		Rooms:      make(map[string]map[*Client]bool),
		Broadcast:  make(chan WSMessage),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run serves the hub until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for userID, clients := range h.Rooms {
				for client := range clients {
					close(client.Send)
				}
				delete(h.Rooms, userID)
			}
			h.mu.Unlock()
			logger.Sugar.Info("Socket hub stopped")
			return nil

		case client := <-h.Register:
			h.mu.Lock()
			if h.Rooms[client.UserID] == nil {
				h.Rooms[client.UserID] = make(map[*Client]bool)
			}
			h.Rooms[client.UserID][client] = true
			h.mu.Unlock()
			h.broadcastPresence(client.UserID)

		case client := <-h.Unregister:
			if h.remove(client) {
				h.broadcastPresence(client.UserID)
			}

		case msg := <-h.Broadcast:
			payload, err := json.Marshal(msg)
			if err != nil {
				logger.Sugar.Errorf("Error marshalling broadcast message: %v", err)
				continue
			}

			h.mu.Lock()
			clientsToSend := make([]*Client, 0, len(h.Rooms[msg.UserID]))
			for client := range h.Rooms[msg.UserID] {
				if client != msg.origin {
					clientsToSend = append(clientsToSend, client)
				}
			}
			h.mu.Unlock()

			for _, client := range clientsToSend {
				select {
				case client.Send <- payload:
				default:
					logger.Sugar.Warnf("Client of user %s has a full send buffer. Disconnecting.", client.UserID)
					h.remove(client)
				}
			}
		}
	}
}

// Publish sends an event to all of the user's connections. It is a no-op
// once the hub has stopped.
func (h *Hub) Publish(userID, msgType, docID string, payload any) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			logger.Sugar.Errorf("Error marshalling %s payload for %s: %v", msgType, docID, err)
			return
		}
		raw = b
	}
	h.send(WSMessage{Type: msgType, DocID: docID, UserID: userID, Payload: raw})
}

func (h *Hub) send(msg WSMessage) {
	select {
	case h.Broadcast <- msg:
	case <-h.done:
	}
}

// remove drops client from its room and closes its send channel. It reports
// whether the client was still registered.
func (h *Hub) remove(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.Rooms[client.UserID]
	if _, ok := room[client]; !ok {
		return false
	}
	delete(room, client)
	close(client.Send)
	if len(room) == 0 {
		delete(h.Rooms, client.UserID)
		logger.Sugar.Infof("Closed empty room for user %s", client.UserID)
	}
	return true
}

func (h *Hub) broadcastPresence(userID string) {
	h.mu.Lock()
	clientsToSend := make([]*Client, 0, len(h.Rooms[userID]))
	for client := range h.Rooms[userID] {
		clientsToSend = append(clientsToSend, client)
	}
	h.mu.Unlock()

	if len(clientsToSend) == 0 {
		return
	}

	payload, _ := json.Marshal(presence{Clients: len(clientsToSend)})
	msg, _ := json.Marshal(WSMessage{Type: PresenceType, UserID: userID, Payload: payload})
	for _, client := range clientsToSend {
		select {
		case client.Send <- msg:
		default:
			logger.Sugar.Warnf("Client of user %s had a full send buffer during presence update.", userID)
		}
	}
}
