package hub

import (
	"encoding/json"
	"time"

	"github.com/salesdeskhq/salesdesk/internal/chat"
)

// Event types carried over the delivery channel. joinChat/leaveChat are
// inbound control events scoped per chat id; newMessage is the outbound data
// event; connected acknowledges registration.
const (
	TypeConnected  = "connected"
	TypeJoinChat   = "joinChat"
	TypeLeaveChat  = "leaveChat"
	TypeNewMessage = "newMessage"
)

type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type ChatRef struct {
	ChatID uint64 `json:"chatId"`
}

// WireMessage is the JSON form of a confirmed message as broadcast to rooms.
type WireMessage struct {
	ID          uint64    `json:"id"`
	ChatID      uint64    `json:"chatId"`
	SenderID    uint64    `json:"senderId"`
	SenderName  string    `json:"senderName"`
	Variant     string    `json:"variant"`
	Text        string    `json:"text,omitempty"`
	URL         string    `json:"url,omitempty"`
	Label       string    `json:"label,omitempty"`
	ClientMsgID string    `json:"clientMsgId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func ToWire(m chat.Message) WireMessage {
	id, _ := m.ID.Permanent()
	return WireMessage{
		ID:          id,
		ChatID:      m.ChatID,
		SenderID:    m.SenderID,
		SenderName:  m.SenderName,
		Variant:     string(m.Variant),
		Text:        m.Text,
		URL:         m.URL,
		Label:       m.Label,
		ClientMsgID: m.ClientMsgID,
		CreatedAt:   m.CreatedAt,
	}
}

func (w WireMessage) Message() chat.Message {
	return chat.Message{
		ID:          chat.PermanentID(w.ID),
		ChatID:      w.ChatID,
		SenderID:    w.SenderID,
		SenderName:  w.SenderName,
		Variant:     chat.Variant(w.Variant),
		Text:        w.Text,
		URL:         w.URL,
		Label:       w.Label,
		ClientMsgID: w.ClientMsgID,
		CreatedAt:   w.CreatedAt,
	}
}

// EncodeNewMessage frames a confirmed message as a newMessage event.
func EncodeNewMessage(m chat.Message) ([]byte, error) {
	payload, err := json.Marshal(ToWire(m))
	if err != nil {
		return nil, err
	}
	return json.Marshal(Event{Type: TypeNewMessage, Payload: payload})
}

// NewChatControl builds a joinChat/leaveChat control event.
func NewChatControl(typ string, chatID uint64) (Event, error) {
	payload, err := json.Marshal(ChatRef{ChatID: chatID})
	if err != nil {
		return Event{}, err
	}
	return Event{Type: typ, Payload: payload}, nil
}
