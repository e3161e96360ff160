package realtime

import (
	"encoding/json"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/merev/ds-match-api/internal/events"
)

// WSConn is the subset of *websocket.Conn used by a Connection.
type WSConn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	ReadMessage() (int, []byte, error)
	Close() error
	RemoteAddr() net.Addr
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Connection is one subscribed client.
type Connection struct {
	conn    WSConn
	feed    <-chan events.Event
	cancel  func()
	logger  *slog.Logger
	onClose func()

	closeOnce sync.Once
	done      chan struct{}
}

func newConnection(conn WSConn, feed <-chan events.Event, cancel func(), logger *slog.Logger) *Connection {
	return &Connection{
		conn:   conn,
		feed:   feed,
		cancel: cancel,
		logger: logger,
		done:   make(chan struct{}),
	}
}

func (c *Connection) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.cancel()
		_ = c.conn.Close()
		if c.onClose != nil {
			c.onClose()
		}
	})
}

// readPump keeps the read deadline fresh from pongs and notices when the
// client goes away.
func (c *Connection) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read failed", "err", err)
			}
			return
		}
	}
}

// writePump forwards events as JSON text frames and pings on an interval.
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return

		case evt, ok := <-c.feed:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			msg, err := json.Marshal(evt)
			if err != nil {
				c.logger.Error("failed to encode event", "type", evt.Type, "err", err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logger.Warn("websocket write failed", "type", evt.Type, "err", err)
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Warn("websocket ping failed", "err", err)
				return
			}
		}
	}
}
