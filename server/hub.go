package server

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/teranos/punchclock/logger"
	psync "github.com/teranos/punchclock/sync"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Clients never send payloads; anything beyond a control frame is noise
	maxMessageSize = 512

	sendBuffer = 16
)

// Hub fans change notifications out to the websocket connections of one
// user's devices
type Hub struct {
	ctx    context.Context
	wg     *sync.WaitGroup
	logger *zap.SugaredLogger

	mu      sync.Mutex
	clients map[string]map[*feedClient]struct{} // user id -> connections

	upgrader websocket.Upgrader
	drops    atomic.Int64
}

// feedClient is one device connection on /ws/changes
type feedClient struct {
	hub       *Hub
	conn      *websocket.Conn
	userID    string
	sessionID string
	send      chan psync.Change
	closeOnce sync.Once
}

func newHub(ctx context.Context, wg *sync.WaitGroup, allowedOrigins []string, log *zap.SugaredLogger) *Hub {
	h := &Hub{
		ctx:     ctx,
		wg:      wg,
		logger:  log,
		clients: make(map[string]map[*feedClient]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

// originChecker allows non-browser clients (no Origin header) and browser
// origins matching a configured prefix, so any port on an allowed host works
func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, prefix := range allowed {
			if strings.HasPrefix(origin, prefix) {
				return true
			}
		}
		return false
	}
}

// ServeWS upgrades an authenticated request and registers the connection
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID, sessionID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		h.logger.Debugw("Websocket upgrade failed", logger.FieldError, err)
		return
	}

	c := &feedClient{
		hub:       h,
		conn:      conn,
		userID:    userID,
		sessionID: sessionID,
		send:      make(chan psync.Change, sendBuffer),
	}
	h.register(c)

	h.wg.Add(2)
	go c.writePump()
	go c.readPump()
}

func (h *Hub) register(c *feedClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.userID]
	if !ok {
		set = make(map[*feedClient]struct{})
		h.clients[c.userID] = set
	}
	set[c] = struct{}{}
	h.logger.Debugw("Change feed client registered",
		logger.FieldUserID, c.userID,
		logger.FieldSessionID, c.sessionID,
		logger.FieldCount, len(set))
}

func (h *Hub) unregister(c *feedClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.clients[c.userID]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
	c.closeOnce.Do(func() { close(c.send) })
}

// Notify sends change to every connection of userID except the one
// belonging to exceptSession (the device that caused it). Slow clients drop
// the message rather than block the pushing request.
func (h *Hub) Notify(userID, exceptSession string, change psync.Change) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	sent := 0
	for c := range h.clients[userID] {
		if exceptSession != "" && c.sessionID == exceptSession {
			continue
		}
		select {
		case c.send <- change:
			sent++
		default:
			h.drops.Add(1)
			h.logger.Warnw("Change feed client buffer full, dropping notification",
				logger.FieldUserID, userID,
				logger.FieldSessionID, c.sessionID)
		}
	}
	return sent
}

// ClientCount returns the number of open connections for userID
func (h *Hub) ClientCount(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[userID])
}

// Drops returns how many notifications were discarded for slow clients
func (h *Hub) Drops() int64 {
	return h.drops.Load()
}

// closeAll closes every connection, unblocking the read pumps
func (h *Hub) closeAll() int {
	h.mu.Lock()
	var conns []*websocket.Conn
	for _, set := range h.clients {
		for c := range set {
			conns = append(conns, c.conn)
		}
	}
	h.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
	return len(conns)
}

// readPump only services control frames; it exits when the peer goes away
func (c *feedClient) readPump() {
	defer c.hub.wg.Done()
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNoStatusReceived,
			) {
				c.hub.logger.Warnw("Change feed read error",
					logger.FieldSessionID, c.sessionID,
					logger.FieldError, err)
			}
			return
		}
	}
}

func (c *feedClient) writePump() {
	defer c.hub.wg.Done()
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.hub.ctx.Done():
			return
		case change, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(change); err != nil {
				c.hub.logger.Debugw("Change feed write failed",
					logger.FieldSessionID, c.sessionID,
					logger.FieldError, err)
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
