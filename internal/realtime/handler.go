package realtime

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/jwalitptl/clinic-api/pkg/logger"
)

type HandlerConfig struct {
	SendBuffer     int
	PingInterval   time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
	// AllowedOrigins limits the Origin header on upgrade; empty or "*" allows any.
	AllowedOrigins []string
}

func DefaultHandlerConfig() HandlerConfig {
	return HandlerConfig{
		SendBuffer:     64,
		PingInterval:   30 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 4096,
	}
}

// Handler upgrades HTTP requests to websocket sessions on a Hub.
type Handler struct {
	hub      *Hub
	cfg      HandlerConfig
	upgrader websocket.Upgrader
	log      *logger.Logger
}

func NewHandler(hub *Hub, cfg HandlerConfig, log *logger.Logger) *Handler {
	def := DefaultHandlerConfig()
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = def.SendBuffer
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = def.WriteWait
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	if log == nil {
		log = logger.Nop()
	}

	h := &Handler{hub: hub, cfg: cfg, log: log}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/ws", h.Connect)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// Connect upgrades the request, registers the session and starts its pumps.
// Room membership is not authorized; any client may join any room.
func (h *Handler) Connect(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.log.Debug("websocket upgrade failed", "error", err.Error())
		return
	}

	s := NewSession(h.cfg.SendBuffer)
	h.hub.Register(s)
	h.log.Debug("websocket session opened", "session_id", s.ID)

	go h.writePump(s, conn)
	go h.readPump(s, conn)
}

func (h *Handler) readPump(s *Session, conn *websocket.Conn) {
	defer func() {
		h.hub.Unregister(s)
		conn.Close()
		h.log.Debug("websocket session closed", "session_id", s.ID)
	}()

	pongWait := h.cfg.PingInterval + h.cfg.WriteWait
	conn.SetReadLimit(h.cfg.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("websocket read failed", "session_id", s.ID, "error", err.Error())
			}
			return
		}
		h.handleFrame(s, raw)
	}
}

func (h *Handler) handleFrame(s *Session, raw []byte) {
	var frame ClientFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return
	}
	var req RoomRequest
	if err := json.Unmarshal(frame.Data, &req); err != nil || req.AppointmentID == "" {
		return
	}

	switch frame.Event {
	case EventJoinRoom:
		h.hub.Join(s, req.AppointmentID)
	case EventLeaveRoom:
		h.hub.Leave(s, req.AppointmentID)
	}
}

func (h *Handler) writePump(s *Session, conn *websocket.Conn) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.Send:
			_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
