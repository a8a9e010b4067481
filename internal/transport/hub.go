package transport

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 16
)

// upgrader matches smilemakc-mbflow's websocket.Upgrader configuration;
// CheckOrigin is permissive here since this is an admin/observation surface
// rather than a browser-facing production endpoint.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans WorldUpdate frames out to every connected client and funnels
// inbound command frames back to the engine. Grounded on
// smilemakc-mbflow's internal/infrastructure/websocket.Hub, generalized
// from per-user-subscription chat broadcast to a single broadcast-to-all
// WorldUpdate stream (there is exactly one "workflow" to subscribe to: the
// simulation itself).
type Hub struct {
	log *slog.Logger

	mu      sync.Mutex
	clients map[*client]bool

	register   chan *client
	unregister chan *client
	broadcast  chan []byte

	commands CommandHandler
}

// NewHub returns a Hub wired to handle inbound commands via h. Call Run in
// its own goroutine before the Server's /ws handler accepts connections.
func NewHub(handler CommandHandler, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:        log,
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 64),
		commands:   handler,
	}
}

// Run processes registrations and broadcasts until stop is closed.
func (h *Hub) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
			}
			h.clients = make(map[*client]bool)
			h.mu.Unlock()
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
		case frame := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- frame:
				default:
					h.log.Warn("websocket client send buffer full, dropping connection")
					delete(h.clients, c)
					close(c.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast encodes v with codec and fans it out to every connected
// client. It never blocks (a full channel drops the frame); cmd/worldsim
// calls it from its broadcast ticker loop.
func (h *Hub) Broadcast(codec Codec, v any) {
	data, err := Encode(codec, v)
	if err != nil {
		h.log.Error("worldupdate encode failed", slog.Any("error", err))
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.log.Warn("worldupdate broadcast channel full, dropping frame")
	}
}

// ClientCount returns the number of currently connected WebSocket clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
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
				c.hub.log.Warn("websocket unexpected close", slog.Any("error", err))
			}
			break
		}
		var cmd Command
		if err := Decode(message, &cmd); err != nil {
			continue
		}
		result := dispatchCommand(c.hub.commands, cmd)
		if reply, err := Encode(CodecJSON, result); err == nil {
			select {
			case c.send <- reply:
			default:
			}
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
