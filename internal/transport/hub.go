package transport

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
)

// subscriber is one registered connection's inbox plus its metadata.
type subscriber struct {
	connID string
	meta   ConnMeta
	ch     chan Message
}

// Hub is the in-process EventBus implementation: a map of room code to
// subscriber list, guarded by a mutex, delivering by best-effort
// non-blocking send. This is the teacher's EventBus, generalized from a
// single fan-out channel per subscriber to addressable reply/emit plus
// role-aware broadcast.
type Hub struct {
	mu   sync.RWMutex
	subs map[string][]*subscriber // roomCode -> subscribers
	byID map[string]*subscriber   // connID -> subscriber (for Reply/Emit)
}

// bufferSize is the per-connection inbox depth; matches the teacher's
// EventBus channel buffer of 10.
const bufferSize = 10

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		subs: make(map[string][]*subscriber),
		byID: make(map[string]*subscriber),
	}
}

// Subscribe registers connID under roomCode. If connID is already
// subscribed elsewhere (a bare connection moving into the room it just
// created or joined), its existing inbox channel is reused and it is
// moved rather than given a second channel — otherwise a goroutine
// already draining the old channel would be orphaned and every
// subsequent Reply/Broadcast would go to a channel nobody reads.
func (h *Hub) Subscribe(roomCode, connID string, meta ConnMeta) <-chan Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.byID[connID]; ok {
		h.removeFromRoomLocked(existing.meta.RoomCode, connID)
		existing.meta = meta
		h.subs[roomCode] = append(h.subs[roomCode], existing)
		return existing.ch
	}

	sub := &subscriber{connID: connID, meta: meta, ch: make(chan Message, bufferSize)}
	h.subs[roomCode] = append(h.subs[roomCode], sub)
	h.byID[connID] = sub
	return sub.ch
}

// Meta returns the current ConnMeta for connID, or false if it is not
// subscribed anywhere. Used by the dispatcher to resolve which room and
// role an inbound frame belongs to without the client repeating the
// room code on every message.
func (h *Hub) Meta(connID string) (ConnMeta, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sub, ok := h.byID[connID]
	if !ok {
		return ConnMeta{}, false
	}
	return sub.meta, true
}

func (h *Hub) removeFromRoomLocked(roomCode, connID string) {
	subs := h.subs[roomCode]
	for i, s := range subs {
		if s.connID == connID {
			h.subs[roomCode] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

func (h *Hub) Unsubscribe(roomCode, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subs[roomCode]
	for i, s := range subs {
		if s.connID == connID {
			h.subs[roomCode] = append(subs[:i], subs[i+1:]...)
			close(s.ch)
			break
		}
	}
	delete(h.byID, connID)
}

func (h *Hub) Reply(connID, eventType string, payload interface{}) error {
	return h.send(connID, eventType, payload)
}

func (h *Hub) Emit(connID, eventType string, payload interface{}) error {
	return h.send(connID, eventType, payload)
}

func (h *Hub) send(connID, eventType string, payload interface{}) error {
	h.mu.RLock()
	sub, ok := h.byID[connID]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("transport: connection %s is not subscribed", connID)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("transport: marshal %s payload: %w", eventType, err)
	}
	h.deliver(sub, Message{Type: eventType, Payload: raw})
	return nil
}

func (h *Hub) Broadcast(roomCode, eventType string, payloadFor PayloadFunc) {
	h.mu.RLock()
	subs := make([]*subscriber, len(h.subs[roomCode]))
	copy(subs, h.subs[roomCode])
	h.mu.RUnlock()

	for _, sub := range subs {
		raw, err := json.Marshal(payloadFor(sub.meta.Role))
		if err != nil {
			log.Printf("📨 transport: broadcast %s to %s: marshal error: %v", eventType, sub.connID, err)
			continue
		}
		h.deliver(sub, Message{Type: eventType, Payload: raw})
	}
}

// deliver is best-effort and non-blocking: a full inbox means a slow or
// stalled consumer, and the event is dropped rather than stalling the
// room, matching the teacher's Publish.
func (h *Hub) deliver(sub *subscriber, msg Message) {
	select {
	case sub.ch <- msg:
	default:
		log.Printf("📨 transport: inbox full for %s, dropping %s", sub.connID, msg.Type)
	}
}
