package eventhub

import (
	"encoding/json"
	"time"

	"cleancity/backend/internal/models"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// WebSocketClient implements Client over a gorilla websocket.
type WebSocketClient struct {
	UserID string
	Role   models.Role
	Conn   *websocket.Conn
	Hub    *Hub
	Send   chan models.ComplaintEvent
	Logger *zap.Logger
}

func NewWebSocketClient(hub *Hub, conn *websocket.Conn, actor models.Actor, logger *zap.Logger) *WebSocketClient {
	return &WebSocketClient{
		UserID: actor.ID,
		Role:   actor.Role,
		Conn:   conn,
		Hub:    hub,
		Send:   make(chan models.ComplaintEvent, 256),
		Logger: logger,
	}
}

func (c *WebSocketClient) GetUserID() string                            { return c.UserID }
func (c *WebSocketClient) GetRole() models.Role                         { return c.Role }
func (c *WebSocketClient) GetSendChannel() chan<- models.ComplaintEvent { return c.Send }

// Run starts the pumps.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// readPump only keeps the connection alive; subscribers never send events.
func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Logger.Warn("Unexpected websocket close", zap.String("user_id", c.UserID), zap.Error(err))
			}
			return
		}
	}
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				c.Logger.Error("Failed to encode event", zap.String("user_id", c.UserID), zap.Error(err))
				continue
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
