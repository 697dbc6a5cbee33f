package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"walletcore.backend/internal/infrastructure/ws"
	"walletcore.backend/pkg/logger"
)

// RealtimeHandler upgrades authenticated requests to the notification socket.
type RealtimeHandler struct {
	hub      *ws.Hub
	commands ws.Commands
	upgrader websocket.Upgrader
}

// NewRealtimeHandler accepts connections from allowedOrigins; an empty list
// only admits same-host and non-browser clients.
func NewRealtimeHandler(hub *ws.Hub, commands ws.Commands, allowedOrigins []string) *RealtimeHandler {
	h := &RealtimeHandler{hub: hub, commands: commands}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

// Connect
// GET /api/v1/ws/notifications?token=<access token>
func (h *RealtimeHandler) Connect(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		logger.Warn(c.Request.Context(), "Websocket upgrade failed", zap.Error(err))
		return
	}
	ws.NewClient(conn, h.hub, userID, h.commands).Run(c.Request.Context())
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return strings.HasSuffix(strings.ToLower(origin), "://"+strings.ToLower(r.Host))
	}
}
