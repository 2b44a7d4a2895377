package hub

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	sendBuffer   = 256
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second

	// control frames plus a text message; attachments travel by URL
	maxFrameSize = 8192
)

// Client is one registered delivery-channel connection.
type Client struct {
	ID     string
	UserID uint64

	conn *websocket.Conn
	hub  *Hub
	send chan []byte

	closeOnce sync.Once
}

func NewClient(h *Hub, conn *websocket.Conn, userID uint64) *Client {
	return &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		conn:   conn,
		hub:    h,
		send:   make(chan []byte, sendBuffer),
	}
}

// Run registers the client and services both pumps until the connection
// drops. It returns when the read pump exits. Register queues the connected
// ack itself.
func (c *Client) Run() {
	c.hub.Register(c)

	go c.writePump()
	c.readPump()
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("hub read error conn=%s user=%d err=%v", c.ID, c.UserID, err)
			}
			return
		}

		var ev Event
		if err := json.Unmarshal(frame, &ev); err != nil {
			log.Printf("hub bad frame conn=%s err=%v", c.ID, err)
			continue
		}

		switch ev.Type {
		case TypeJoinChat, TypeLeaveChat:
			var ref ChatRef
			if err := json.Unmarshal(ev.Payload, &ref); err != nil || ref.ChatID == 0 {
				continue
			}
			if ev.Type == TypeJoinChat {
				c.hub.Join(c.ID, ref.ChatID)
			} else {
				c.hub.Leave(c.ID, ref.ChatID)
			}
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
