package session

import (
	"context"
	"net/url"

	"github.com/gorilla/websocket"
	"github.com/salesdeskhq/salesdesk/internal/hub"
)

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) ReadEvent() (hub.Event, error) {
	var ev hub.Event
	err := c.conn.ReadJSON(&ev)
	return ev, err
}

func (c *wsConn) WriteEvent(ev hub.Event) error {
	return c.conn.WriteJSON(ev)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

// DialWebSocket builds a Dialer for the server's /ws endpoint. The bearer
// token registers the connection under the session's user id.
func DialWebSocket(rawURL, token string) Dialer {
	return func(ctx context.Context) (Conn, error) {
		u, err := url.Parse(rawURL)
		if err != nil {
			return nil, err
		}
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()

		c, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
		if err != nil {
			return nil, err
		}
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return &wsConn{conn: c}, nil
	}
}
