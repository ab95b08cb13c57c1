package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// conn adapts a gorilla websocket connection to the Channel contract, adding
// a write deadline per frame and a close-once guard.
type conn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration
	closeOnce    sync.Once
}

// NewChannel wraps c so every write carries writeTimeout as its deadline.
func NewChannel(c *websocket.Conn, writeTimeout time.Duration) Channel {
	return &conn{ws: c, writeTimeout: writeTimeout}
}

func (c *conn) WriteText(data []byte) error {
	if c.writeTimeout > 0 {
		_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.ws.Close()
	})
	return err
}

// Serve registers c as userID's live channel and blocks draining inbound
// frames until the peer goes away. Inbound frames carry no meaning (the
// protocol is push-only) but must be read so close and ping control frames
// are processed. On return the registration is released, unless a reconnect
// already replaced it.
func Serve(r *Registry, userID string, c *websocket.Conn, writeTimeout time.Duration, maxMessageBytes int64) {
	if maxMessageBytes > 0 {
		c.SetReadLimit(maxMessageBytes)
	}

	ch := NewChannel(c, writeTimeout)
	r.Connect(userID, ch)
	defer r.DisconnectChannel(userID, ch)

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}
