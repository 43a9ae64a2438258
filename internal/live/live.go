// Package live streams the per-session read model over WebSocket. Each
// connection gets its own projector; closing the connection releases the
// underlying change-stream subscriptions.
package live

import (
	"context"
	"net/http"
	"time"

	"labreserve/internal/projector"
	"labreserve/pkg/logger"
	"labreserve/pkg/middleware"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	readLimit  = 4096
)

type Handler struct {
	equipment projector.EquipmentSource
	bookings  projector.BookingSource
	upgrader  websocket.Upgrader
	log       *logger.Logger
}

func NewHandler(equipment projector.EquipmentSource, bookings projector.BookingSource, log *logger.Logger) *Handler {
	return &Handler{
		equipment: equipment,
		bookings:  bookings,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		log: log,
	}
}

func (h *Handler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/live", h.Serve)
}

// Serve upgrades the request and streams full snapshots until the client
// disconnects. The first snapshot arrives as soon as the subscriptions
// deliver their initial state.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed",
			"request_id", middleware.RequestID(r.Context()),
			"error", err,
		)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := projector.NewProjector(h.equipment, h.bookings, h.log)

	defer func() {
		cancel()
		p.Close()
		conn.Close()
	}()

	if err := p.Start(ctx); err != nil {
		h.log.Error("Failed to start projector", "user_id", identity.UserID, "error", err)
		return
	}
	if err := p.SetIdentity(&identity); err != nil {
		h.log.Error("Failed to attach identity to projector", "user_id", identity.UserID, "error", err)
		return
	}

	h.log.Info("Live session opened", "user_id", identity.UserID)

	go h.writePump(conn, p)
	h.readPump(conn)

	h.log.Info("Live session closed", "user_id", identity.UserID)
}

func (h *Handler) writePump(conn *websocket.Conn, p *projector.Projector) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case snap, ok := <-p.Updates():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(snap); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client frames; its job is connection liveness. It
// returns when the peer goes away, which tears the session down.
func (h *Handler) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(readLimit)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("WebSocket read error", "error", err)
			}
			return
		}
	}
}
