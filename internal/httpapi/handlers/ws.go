package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/salesdeskhq/salesdesk/internal/hub"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// same-origin enforcement lives on the CRM's reverse proxy
		return true
	},
}

// ServeWS registers the delivery channel for the authenticated user. The
// token was already verified by AuthRequired (query parameter form).
func (h *Handler) ServeWS(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		c.Status(http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws upgrade failed user=%d err=%v", uid, err)
		return
	}

	client := hub.NewClient(h.Hub, conn, uid)
	client.Run()
}
