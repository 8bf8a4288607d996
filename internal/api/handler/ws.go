package handler

import (
	"net/http"

	"cleancity/backend/internal/eventhub"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeEvents upgrades to a websocket streaming lifecycle events for the actor.
func (h *Handler) ServeEvents(c *gin.Context) {
	actor := actorFrom(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Logger.Warn("Websocket upgrade failed", zap.String("user_id", actor.ID), zap.Error(err))
		return
	}

	client := eventhub.NewWebSocketClient(h.Hub, conn, actor, h.Logger)
	if !h.Hub.Register(client) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}
	client.Run()
}
