package ws

import (
	"context"
	"encoding/json"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"walletcore.backend/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

// Client commands.
const (
	CommandUnreadCount = "get_unread_count"
	CommandMarkRead    = "mark_read"
	CommandPing        = "ping"
)

// Commands answers the requests a connected client may send.
type Commands interface {
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
}

type inbound struct {
	Type           string `json:"type"`
	NotificationID string `json:"notification_id"`
}

// Client is one websocket connection.
type Client struct {
	conn     *websocket.Conn
	hub      *Hub
	userID   uuid.UUID
	commands Commands
	send     chan []byte

	sendOnce  sync.Once
	closeOnce sync.Once
}

func NewClient(conn *websocket.Conn, hub *Hub, userID uuid.UUID, commands Commands) *Client {
	return &Client{
		conn:     conn,
		hub:      hub,
		userID:   userID,
		commands: commands,
		send:     make(chan []byte, 16),
	}
}

// Run registers the client and serves it until the connection drops.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	go c.writePumpSafe()
	c.readPump(ctx)
}

func (c *Client) writePumpSafe() {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(context.Background(), "websocket writePump panic recovered",
				zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			c.Close()
		}
	}()
	c.writePump()
}

// Close detaches the client from the hub and closes the connection.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	})
}

func (c *Client) closeSend() {
	c.sendOnce.Do(func() { close(c.send) })
}

// reply queues a frame unless the client is already gone.
func (c *Client) reply(event string, data interface{}) {
	raw, err := json.Marshal(Envelope{Type: event, Data: data})
	if err != nil {
		return
	}
	defer func() { _ = recover() }() // send on closed channel
	select {
	case c.send <- raw:
	default:
	}
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "websocket readPump panic recovered",
				zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
		}
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for ctx.Err() == nil {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug(ctx, "websocket closed", zap.Error(err))
			}
			return
		}
		c.handle(ctx, raw)
	}
}

func (c *Client) handle(ctx context.Context, raw []byte) {
	var cmd inbound
	if err := json.Unmarshal(raw, &cmd); err != nil {
		c.reply("error", map[string]string{"message": "malformed command"})
		return
	}
	switch cmd.Type {
	case CommandPing:
		c.reply("pong", nil)
	case CommandUnreadCount:
		n, err := c.commands.CountUnread(ctx, c.userID)
		if err != nil {
			c.reply("error", map[string]string{"message": "unread count unavailable"})
			return
		}
		c.reply("unread_count", map[string]int64{"count": n})
	case CommandMarkRead:
		id, err := uuid.Parse(cmd.NotificationID)
		if err != nil {
			c.reply("error", map[string]string{"message": "invalid notification_id"})
			return
		}
		if err := c.commands.MarkRead(ctx, c.userID, id); err != nil {
			c.reply("error", map[string]string{"message": "notification not found"})
			return
		}
		c.reply("marked_read", map[string]string{"notification_id": id.String()})
	default:
		c.reply("error", map[string]string{"message": "unknown command"})
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
