package transport

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/qwb00/ChatApp/internal/domain"
)

// WSConn carries one message frame per WebSocket text message.
type WSConn struct {
	conn      *websocket.Conn
	writeWait time.Duration
	writeMu   sync.Mutex
	once      sync.Once
	closed    error
}

// NewWSConn wraps an upgraded WebSocket. A zero writeWait disables write deadlines.
func NewWSConn(conn *websocket.Conn, writeWait time.Duration, maxMessageSize int64) *WSConn {
	if maxMessageSize > 0 {
		conn.SetReadLimit(maxMessageSize)
	}
	return &WSConn{conn: conn, writeWait: writeWait}
}

func (c *WSConn) Send(msg domain.Message) error {
	data, err := Encode(msg)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeWait > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return nil
}

func (c *WSConn) Receive() (domain.Message, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return domain.Message{}, io.EOF
		}
		return domain.Message{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return Decode(data)
}

func (c *WSConn) Close() error {
	c.once.Do(func() {
		c.writeMu.Lock()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		c.closed = c.conn.Close()
	})
	return c.closed
}

func (c *WSConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
