package livechat

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wolfman30/whatsapp-clinic-bot/internal/chatlog"
	"github.com/wolfman30/whatsapp-clinic-bot/pkg/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientSendSize = 32
)

// Event is pushed to dashboard sockets.
type Event struct {
	Type    string          `json:"type"`
	Message chatlog.Message `json:"message"`
}

// Hub fans logged messages out to the doctor's open dashboard sockets. It
// implements chatlog.Listener.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *logging.Logger

	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
}

type client struct {
	conn     *websocket.Conn
	send     chan Event
	doctorID string
	once     sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// NewHub builds a hub. checkOrigin may be nil to accept same-origin only.
func NewHub(checkOrigin func(r *http.Request) bool, logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		logger:  logger,
		clients: make(map[string]map[*client]struct{}),
	}
}

// MessageLogged broadcasts msg to its doctor's sockets. Slow sockets are
// disconnected instead of blocking the caller.
func (h *Hub) MessageLogged(msg chatlog.Message) {
	evt := Event{Type: "message", Message: msg}
	h.mu.RLock()
	var slow []*client
	for c := range h.clients[msg.DoctorID] {
		select {
		case c.send <- evt:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range slow {
		h.logger.Warn("livechat: dropping slow socket", "doctor_id", c.doctorID)
		h.unregister(c)
	}
}

// Connections reports open sockets for doctorID.
func (h *Hub) Connections(doctorID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[doctorID])
}

// Serve upgrades the request and streams events until the socket closes.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, doctorID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("livechat: websocket upgrade failed", "error", err, "doctor_id", doctorID)
		return
	}
	c := &client{conn: conn, send: make(chan Event, clientSendSize), doctorID: doctorID}
	h.register(c)
	h.logger.Info("livechat: socket opened", "doctor_id", doctorID)

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.doctorID]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[c.doctorID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if set, ok := h.clients[c.doctorID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.doctorID)
		}
	}
	h.mu.Unlock()
	c.close()
}

// readPump only services control frames; the dashboard sends over HTTP.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
		h.logger.Debug("livechat: socket closed", "doctor_id", c.doctorID)
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case evt, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
