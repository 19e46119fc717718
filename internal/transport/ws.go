package transport

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// Upgrader is shared across connections; CheckOrigin is permissive like
// the teacher's SSE endpoints (no CORS restriction on game connections).
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// InboundMessage is one client-to-server frame.
type InboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Dispatcher handles one decoded inbound message for a connection. The
// reply/broadcast/emit calls it makes through the EventBus are expected
// to reference connID as the "socket that initiated the request"
// (spec §4.7 Reply).
type Dispatcher func(connID string, meta ConnMeta, msg InboundMessage)

// defaultRateLimit/defaultBurst are used when ServeConn is called with a
// zero RateLimit, grounded on the teacher's middleware.RateLimiter (one
// rate.Limiter per key, here keyed by connection instead of client IP —
// matches the concern, not the keying).
const (
	defaultRateLimit = 20
	defaultBurst     = 40
)

// DisconnectFunc is invoked with a connection's last-known ConnMeta once
// its socket closes, before it is unsubscribed — the hook RoomManager.
// OnDisconnect is wired through (spec §4.8).
type DisconnectFunc func(connID string, meta ConnMeta)

// ServeConn upgrades an HTTP request to a WebSocket, registers the
// connection with hub under meta, and pumps inbound/outbound frames
// until a read from the socket fails (normally because it closed).
// rateLimit/burst bound the connection's inbound message rate (messages
// per second, with burst); a zero rateLimit falls back to the default.
// onDisconnect may be nil.
func ServeConn(w http.ResponseWriter, r *http.Request, hub *Hub, connID string, meta ConnMeta, rateLimit float64, burst int, dispatch Dispatcher, onDisconnect DisconnectFunc) error {
	conn, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	events := hub.Subscribe(meta.RoomCode, connID, meta)

	if rateLimit <= 0 {
		rateLimit = defaultRateLimit
		burst = defaultBurst
	}
	limiter := rate.NewLimiter(rate.Limit(rateLimit), burst)

	var writeMu sync.Mutex
	writeJSON := func(v interface{}) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteJSON(v)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range events {
			if err := writeJSON(msg); err != nil {
				log.Printf("📨 transport: write failed for %s: %v", connID, err)
				return
			}
		}
	}()

	for {
		var in InboundMessage
		if err := conn.ReadJSON(&in); err != nil {
			break
		}
		if !limiter.Allow() {
			log.Printf("📨 transport: rate limit exceeded for %s, dropping %s", connID, in.Type)
			continue
		}
		current := meta
		if live, ok := hub.Meta(connID); ok {
			current = live
		}
		dispatch(connID, current, in)
	}

	final := meta
	if current, ok := hub.Meta(connID); ok {
		final = current
	}
	if onDisconnect != nil {
		onDisconnect(connID, final)
	}
	hub.Unsubscribe(final.RoomCode, connID)
	<-done
	return nil
}
