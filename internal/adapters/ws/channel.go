// Package ws dials the dashboard's live position channel.
package ws

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nearyou/nearsync/internal/core/ports"
)

const closeWriteWait = time.Second

// Dialer implements ports.ChannelDialer with gorilla/websocket.
type Dialer struct {
	url string
	wsd *websocket.Dialer
}

// NewDialer creates a dialer for the given ws:// or wss:// URL.
func NewDialer(url string) *Dialer {
	return &Dialer{
		url: url,
		wsd: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// Dial establishes one live channel. Handshake cancellation comes from ctx.
func (d *Dialer) Dial(ctx context.Context) (ports.LiveChannel, error) {
	conn, resp, err := d.wsd.DialContext(ctx, d.url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", d.url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", d.url, err)
	}
	return &channel{conn: conn}, nil
}

// channel wraps one gorilla connection. Writes are serialized; gorilla
// supports one concurrent reader and one concurrent writer only.
type channel struct {
	conn *websocket.Conn
	wmu  sync.Mutex
}

func (c *channel) WriteJSON(v any) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *channel) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

// Close sends a close frame with the given code and tears the connection
// down. Unblocks any pending ReadMessage.
func (c *channel) Close(code int) error {
	c.wmu.Lock()
	msg := websocket.FormatCloseMessage(code, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteWait))
	c.wmu.Unlock()
	return c.conn.Close()
}
