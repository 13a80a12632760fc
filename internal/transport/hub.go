// Package transport carries engine messages to participants over
// websockets and to spectators over Server-Sent Events. The engine
// only sees the session.Transport interface; everything here is
// replaceable wire plumbing.
package transport

import (
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aaronzipp/survival-island/internal/session"
)

var debug = os.Getenv("DEBUG") != ""

// Envelope is the JSON frame for every engine message.
type Envelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

const (
	writeWait      = 10 * time.Second
	clientBufSize  = 32
	spectatorBufSz = 16
	// sendTimeout bounds fan-out to a slow spectator channel.
	sendTimeout = time.Second
)

// Hub tracks connected participants and spectators per room.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]*roomClients
}

type roomClients struct {
	mu         sync.RWMutex
	conns      map[string]*Client
	spectators map[chan []byte]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]*roomClients)}
}

// Room returns a room-scoped Transport for the session engine.
func (h *Hub) Room(code string) session.Transport {
	return &roomTransport{hub: h, code: code}
}

func (h *Hub) room(code string, create bool) *roomClients {
	h.mu.RLock()
	rc := h.rooms[code]
	h.mu.RUnlock()
	if rc != nil || !create {
		return rc
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if rc = h.rooms[code]; rc == nil {
		rc = &roomClients{
			conns:      make(map[string]*Client),
			spectators: make(map[chan []byte]struct{}),
		}
		h.rooms[code] = rc
	}
	return rc
}

// Register attaches a participant connection to a room.
func (h *Hub) Register(code, participantID string, conn *websocket.Conn) *Client {
	c := &Client{
		ID:   participantID,
		conn: conn,
		send: make(chan []byte, clientBufSize),
		done: make(chan struct{}),
	}
	rc := h.room(code, true)
	rc.mu.Lock()
	rc.conns[participantID] = c
	rc.mu.Unlock()
	go c.writePump()
	return c
}

// Unregister detaches a participant connection.
func (h *Hub) Unregister(code, participantID string) {
	rc := h.room(code, false)
	if rc == nil {
		return
	}
	rc.mu.Lock()
	c, ok := rc.conns[participantID]
	delete(rc.conns, participantID)
	rc.mu.Unlock()
	if ok {
		c.close()
	}
}

// AddSpectator subscribes an SSE client to a room's broadcast stream.
func (h *Hub) AddSpectator(code string) chan []byte {
	ch := make(chan []byte, spectatorBufSz)
	rc := h.room(code, true)
	rc.mu.Lock()
	rc.spectators[ch] = struct{}{}
	rc.mu.Unlock()
	return ch
}

// RemoveSpectator unsubscribes an SSE client.
func (h *Hub) RemoveSpectator(code string, ch chan []byte) {
	rc := h.room(code, false)
	if rc == nil {
		return
	}
	rc.mu.Lock()
	_, ok := rc.spectators[ch]
	delete(rc.spectators, ch)
	rc.mu.Unlock()
	if ok {
		close(ch)
	}
}

// DropRoom removes all connections for an evicted room.
func (h *Hub) DropRoom(code string) {
	h.mu.Lock()
	rc := h.rooms[code]
	delete(h.rooms, code)
	h.mu.Unlock()
	if rc == nil {
		return
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	for _, c := range rc.conns {
		c.close()
	}
	rc.conns = make(map[string]*Client)
	for ch := range rc.spectators {
		close(ch)
	}
	rc.spectators = make(map[chan []byte]struct{})
}

// roomTransport implements session.Transport. Payloads are marshaled
// synchronously in the caller's goroutine, as the interface requires.
type roomTransport struct {
	hub  *Hub
	code string
}

func (t *roomTransport) Send(participantID, event string, payload any) {
	data, err := json.Marshal(Envelope{Event: event, Payload: payload})
	if err != nil {
		log.Printf("room %s: encoding %s: %v", t.code, event, err)
		return
	}
	rc := t.hub.room(t.code, false)
	if rc == nil {
		return
	}
	rc.mu.RLock()
	c := rc.conns[participantID]
	rc.mu.RUnlock()
	if c != nil {
		c.enqueue(data)
	}
}

func (t *roomTransport) Broadcast(event string, payload any) {
	data, err := json.Marshal(Envelope{Event: event, Payload: payload})
	if err != nil {
		log.Printf("room %s: encoding %s: %v", t.code, event, err)
		return
	}
	rc := t.hub.room(t.code, false)
	if rc == nil {
		return
	}

	// Collect receivers under the lock, send without it.
	rc.mu.RLock()
	conns := make([]*Client, 0, len(rc.conns))
	for _, c := range rc.conns {
		conns = append(conns, c)
	}
	spectators := make([]chan []byte, 0, len(rc.spectators))
	for ch := range rc.spectators {
		spectators = append(spectators, ch)
	}
	rc.mu.RUnlock()

	if debug {
		log.Printf("room %s: broadcast %s to %d clients, %d spectators",
			t.code, event, len(conns), len(spectators))
	}
	for _, c := range conns {
		c.enqueue(data)
	}
	for _, ch := range spectators {
		select {
		case ch <- data:
		case <-time.After(sendTimeout):
			// Slow spectator; skip rather than stall the room.
		}
	}
}

// Client is one participant's websocket connection with a buffered
// outbound queue.
type Client struct {
	ID   string
	conn *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func (c *Client) enqueue(data []byte) {
	select {
	case c.send <- data:
	case <-c.done:
	default:
		// Outbound buffer full: the client is too slow, drop it.
		c.close()
	}
}

func (c *Client) writePump() {
	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// ReadEnvelope blocks for the next inbound frame.
func (c *Client) ReadEnvelope() (Envelope, error) {
	var env Envelope
	err := c.conn.ReadJSON(&env)
	return env, err
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}
