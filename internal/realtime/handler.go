package realtime

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"battery-swap-backend/internal/broadcast"
	"battery-swap-backend/internal/mw"
)

// Handler upgrades HTTP requests into hub sessions.
type Handler struct {
	hub      *Hub
	buffer   int
	upgrader websocket.Upgrader
}

// NewHandler creates socket endpoints bound to hub. An empty origin list
// accepts any origin.
func NewHandler(hub *Hub, buffer int, allowedOrigins []string) *Handler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	return &Handler{
		hub:    hub,
		buffer: buffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				_, ok := allowed[r.Header.Get("Origin")]
				return ok
			},
		},
	}
}

// Stations serves /ws/stations/ (aggregate feed) and
// /ws/stations/:station_id/ (one station). No snapshot is sent on connect;
// the first data frame is the next published event.
func (h *Handler) Stations(c *gin.Context) {
	group := broadcast.AllStationsGroup
	var stationID *int64
	if raw := c.Param("station_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid station ID"})
			return
		}
		stationID = &id
		group = broadcast.StationGroup(id)
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Debug().Err(err).Msg("socket upgrade failed")
		return
	}
	s := newSession(h.hub, conn, h.buffer, group)
	s.run(stationConnected{
		Type:      "connection_established",
		Message:   fmt.Sprintf("Connected to %s", group),
		StationID: stationID,
	})
}

// Notifications serves /ws/notifications/ for an identified user.
func (h *Handler) Notifications(c *gin.Context) {
	user, ok := mw.CurrentUser(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Debug().Err(err).Msg("socket upgrade failed")
		return
	}
	s := newSession(h.hub, conn, h.buffer, broadcast.UserGroup(user.ID))
	s.run(userConnected{
		Type:    "connection_established",
		Message: "Connected to personal notifications",
		UserID:  user.ID,
	})
}
