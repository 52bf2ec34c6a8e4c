package livefeed

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/NotCoffee418/weather_telemetry/pkg/types"
	"github.com/gorilla/websocket"
)

const writeTimeout = 5 * time.Second

func NewHub(latest LatestFunc, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		latest: latest,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins
			},
		},
		log:     logger,
		clients: make(map[string]map[*client]struct{}),
	}
}

// ServeWS upgrades the request and keeps the connection until the client goes away.
// The device's latest reading, if any, is sent right after the upgrade.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, deviceID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "device", deviceID, "error", err)
		return
	}

	c := &client{conn: conn}
	h.add(deviceID, c)
	h.log.Debug("live feed client connected", "device", deviceID, "remote", r.RemoteAddr)

	if h.latest != nil {
		if reading := h.latest(deviceID); reading != nil {
			if err := c.send(reading.ToJsonBytes()); err != nil {
				h.remove(deviceID, c)
				return
			}
		}
	}

	// Keep connection alive
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.remove(deviceID, c)
			return
		}
	}
}

// Broadcast sends a reading to every client of the device and returns how many got it.
func (h *Hub) Broadcast(deviceID string, reading *types.Reading) int {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients[deviceID]))
	for c := range h.clients[deviceID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	data := reading.ToJsonBytes()
	sent := 0
	for _, c := range clients {
		if err := c.send(data); err != nil {
			h.log.Debug("dropping live feed client", "device", deviceID, "error", err)
			h.remove(deviceID, c)
			continue
		}
		sent++
	}
	return sent
}

func (h *Hub) clientCount(deviceID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[deviceID])
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	all := h.clients
	h.clients = make(map[string]map[*client]struct{})
	h.mu.Unlock()

	for _, set := range all {
		for c := range set {
			c.writeMu.Lock()
			c.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(time.Second),
			)
			c.writeMu.Unlock()
			c.conn.Close()
		}
	}
}

func (h *Hub) add(deviceID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[deviceID]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[deviceID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) remove(deviceID string, c *client) {
	h.mu.Lock()
	if set, ok := h.clients[deviceID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, deviceID)
		}
	}
	h.mu.Unlock()
	c.conn.Close()
}

func (c *client) send(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}
