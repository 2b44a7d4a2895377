package httpapi

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/salesdeskhq/salesdesk/internal/common"
	"github.com/salesdeskhq/salesdesk/internal/config"
	"github.com/salesdeskhq/salesdesk/internal/httpapi/handlers"
	"github.com/salesdeskhq/salesdesk/internal/httpapi/middleware"
	"github.com/salesdeskhq/salesdesk/internal/hub"
	"github.com/salesdeskhq/salesdesk/internal/store/rabbitmq"
	"github.com/salesdeskhq/salesdesk/internal/store/redisstore"
	"gorm.io/gorm"
)

func NewRouter(db *gorm.DB, cfg config.Config, h *hub.Hub, previews *redisstore.Store, events *rabbitmq.Publisher) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())
	r.Use(cors.Default())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())

	hd := handlers.NewHandler(db, cfg, h, previews, events)

	r.GET("/ping", hd.Ping)
	r.Static("/uploads", cfg.UploadDir)

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))
	authGroup.GET("/chats", hd.ListChats)
	authGroup.POST("/chats/direct", hd.CreateDirectChat)
	authGroup.GET("/chats/:chat_id/preview", hd.GetChatPreview)
	authGroup.GET("/chats/:chat_id/messages", hd.ListMessages)
	authGroup.POST("/chats/:chat_id/messages", hd.SendMessage)
	authGroup.GET("/notifications", hd.ListNotifications)
	authGroup.POST("/uploads", hd.Upload)
	authGroup.GET("/ws", hd.ServeWS)

	return r
}
