package order

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"pos-terminal/internal/events"
	"pos-terminal/internal/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Hub streams sync events to operator displays over websockets
type Hub struct {
	bus      *events.Bus
	upgrader websocket.Upgrader
	logger   *logger.Logger
}

// NewHub accepts upgrades from the given origins. Requests without an Origin
// header (same-host tools) are always accepted.
func NewHub(bus *events.Bus, allowOrigins []string, log *logger.Logger) *Hub {
	allowed := make(map[string]bool, len(allowOrigins))
	for _, o := range allowOrigins {
		allowed[o] = true
	}
	return &Hub{
		bus:    bus,
		logger: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
	}
}

// ServeWS handles GET /ws
func (h *Hub) ServeWS(c *gin.Context) {
	// Subscribe first so nothing published right after the handshake is lost.
	stream, cancel := h.bus.Subscribe()
	defer cancel()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("ws_upgrade_failed", "Websocket upgrade failed", requestID(c), map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	defer conn.Close()

	h.logger.Debug("ws_connected", "Display connected", requestID(c), map[string]interface{}{
		"remote_addr": c.ClientIP(),
	})

	// Drain client frames so pongs and close frames are handled.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case ev, ok := <-stream:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
