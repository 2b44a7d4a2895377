package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/salesdeskhq/salesdesk/internal/common"
	"github.com/salesdeskhq/salesdesk/internal/config"
	"github.com/salesdeskhq/salesdesk/internal/httpapi/middleware"
	"github.com/salesdeskhq/salesdesk/internal/hub"
	"github.com/salesdeskhq/salesdesk/internal/store"
	"github.com/salesdeskhq/salesdesk/internal/store/rabbitmq"
	"github.com/salesdeskhq/salesdesk/internal/store/redisstore"
	"gorm.io/gorm"
)

type Handler struct {
	DB    *gorm.DB
	Cfg   config.Config
	Store *store.Store
	Hub   *hub.Hub

	// Previews and Events are optional; the chat path degrades to
	// database-only previews and no offline notifications without them.
	Previews *redisstore.Store
	Events   *rabbitmq.Publisher
}

func NewHandler(db *gorm.DB, cfg config.Config, h *hub.Hub, previews *redisstore.Store, events *rabbitmq.Publisher) *Handler {
	return &Handler{
		DB:       db,
		Cfg:      cfg,
		Store:    store.New(db),
		Hub:      h,
		Previews: previews,
		Events:   events,
	}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}

func userIDFromContext(c *gin.Context) (uint64, bool) {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok
}

func userNameFromContext(c *gin.Context) string {
	v, ok := c.Get(middleware.UserNameKey)
	if !ok {
		return ""
	}
	name, _ := v.(string)
	return name
}
