package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/salesdeskhq/salesdesk/internal/chat"
	"github.com/salesdeskhq/salesdesk/internal/common"
	"github.com/salesdeskhq/salesdesk/internal/hub"
	"github.com/salesdeskhq/salesdesk/internal/store/rabbitmq"
)

func (h *Handler) ListMessages(c *gin.Context) {
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

	msgs, err := h.Store.ListMessages(c.Request.Context(), chatID)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to list messages")
		return
	}

	out := make([]hub.WireMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, hub.ToWire(m))
	}
	common.OK(c, gin.H{"messages": out})
}

type sendMessageReq struct {
	Variant     string `json:"variant" binding:"required"`
	Text        string `json:"text"`
	URL         string `json:"url"`
	Label       string `json:"label"`
	ClientMsgID string `json:"clientMsgId"`
}

// SendMessage confirms a message: store write, preview cache refresh, room
// broadcast, and a best-effort message-created event for the notifier.
func (h *Handler) SendMessage(c *gin.Context) {
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

	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if len(req.ClientMsgID) > 26 {
		common.Fail(c, http.StatusBadRequest, 10003, "client message id too long")
		return
	}

	var (
		draft chat.Draft
		err   error
	)
	switch chat.Variant(req.Variant) {
	case chat.VariantText:
		draft, err = chat.EncodeText(req.Text)
	case chat.VariantImage, chat.VariantFile:
		draft, err = chat.EncodeAttachment(chat.Variant(req.Variant), req.URL, req.Label)
	default:
		err = chat.ErrBadVariant
	}
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10002, err.Error())
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

	msg, err := h.Store.CreateMessage(c.Request.Context(), chatID, uid, userNameFromContext(c), draft, req.ClientMsgID)
	if err != nil {
		if errors.Is(err, chat.ErrEmptyDraft) || errors.Is(err, chat.ErrMissingResource) {
			common.Fail(c, http.StatusBadRequest, 10002, err.Error())
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50003, "failed to store message")
		return
	}

	preview := chat.PreviewText(msg)
	if h.Previews != nil {
		if err := h.Previews.SetPreview(c.Request.Context(), chatID, preview); err != nil {
			log.Printf("preview cache write failed chat=%d err=%v", chatID, err)
		}
	}

	if frame, err := hub.EncodeNewMessage(msg); err == nil {
		h.Hub.Broadcast(chatID, frame)
	}

	if h.Events != nil {
		mid, _ := msg.ID.Permanent()
		ev := rabbitmq.MessageCreated{
			MessageID: mid,
			ChatID:    chatID,
			SenderID:  uid,
			Preview:   preview,
		}
		if err := h.Events.PublishMessageCreated(c.Request.Context(), ev); err != nil {
			// the poller is the backstop; losing the event is not fatal
			log.Printf("message event publish failed chat=%d msg=%d err=%v", chatID, mid, err)
		}
	}

	common.OK(c, hub.ToWire(msg))
}
