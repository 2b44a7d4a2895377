package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/salesdeskhq/salesdesk/internal/common"
	"gorm.io/gorm"
)

func chatIDParam(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("chat_id"), 10, 64)
	return id, err == nil && id > 0
}

func (h *Handler) ListChats(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	chats, err := h.Store.ListChats(c.Request.Context(), uid)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to list chats")
		return
	}

	out := make([]gin.H, 0, len(chats))
	for _, ch := range chats {
		out = append(out, gin.H{
			"id":          ch.ID,
			"partnerId":   ch.PartnerID,
			"displayName": ch.DisplayName,
			"avatarUrl":   ch.AvatarURL,
			"preview":     ch.LastMessagePreview,
		})
	}
	common.OK(c, gin.H{"chats": out})
}

type createDirectChatReq struct {
	ToUserID    uint64 `json:"toUserId" binding:"required"`
	DisplayName string `json:"displayName" binding:"required"`
	AvatarURL   string `json:"avatarUrl"`
}

func (h *Handler) CreateDirectChat(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req createDirectChatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if req.ToUserID == uid {
		common.Fail(c, http.StatusBadRequest, 10005, "cannot open a chat with yourself")
		return
	}

	ch, err := h.Store.CreateDirectChat(c.Request.Context(), uid, req.ToUserID, req.DisplayName, req.AvatarURL)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to create chat")
		return
	}

	common.OK(c, gin.H{
		"id":          ch.ID,
		"partnerId":   ch.PartnerID,
		"displayName": ch.DisplayName,
		"avatarUrl":   ch.AvatarURL,
	})
}

// GetChatPreview is the cheap endpoint reconciliation pollers hit. It serves
// from the redis cache when warm and falls back to the store.
func (h *Handler) GetChatPreview(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	chatID, okk := chatIDParam(c)
	if !okk {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid chat id")
		return
	}

	in, err := h.Store.IsParticipant(c.Request.Context(), chatID, uid)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to verify chat access")
		return
	}
	if !in {
		common.Fail(c, http.StatusForbidden, 40301, "access denied to chat")
		return
	}

	if h.Previews != nil {
		preview, err := h.Previews.GetPreview(c.Request.Context(), chatID)
		if err == nil {
			common.OK(c, gin.H{"chatId": chatID, "preview": preview})
			return
		}
		if !errors.Is(err, redis.Nil) {
			// cache trouble is not a request failure; fall through to the store
			log.Printf("preview cache read failed chat=%d err=%v", chatID, err)
		}
	}

	preview, err := h.Store.GetPreview(c.Request.Context(), chatID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40401, "chat not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to read preview")
		return
	}
	if h.Previews != nil {
		_ = h.Previews.SetPreview(c.Request.Context(), chatID, preview)
	}
	common.OK(c, gin.H{"chatId": chatID, "preview": preview})
}

func (h *Handler) ListNotifications(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	notes, err := h.Store.ListNotifications(c.Request.Context(), uid)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to list notifications")
		return
	}

	out := make([]gin.H, 0, len(notes))
	for _, n := range notes {
		out = append(out, gin.H{
			"id":        n.ID,
			"chatId":    n.ChatID,
			"preview":   n.Preview,
			"createdAt": n.CreatedAt,
		})
	}
	common.OK(c, gin.H{"notifications": out})
}
