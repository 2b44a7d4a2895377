package store

import "time"

// ChatRecord is one direct conversation row. Display fields are denormalized
// onto the chat by the surrounding CRM screens; this subsystem only reads
// them.
type ChatRecord struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	CreatorID   uint64 `gorm:"not null;index:uniq_direct_pair,unique,priority:1"`
	PartnerID   uint64 `gorm:"not null;index:uniq_direct_pair,unique,priority:2"`
	DisplayName string `gorm:"type:varchar(64);not null"`
	AvatarURL   string `gorm:"type:varchar(512)"`

	LastMessage   string `gorm:"type:varchar(128)"`
	LastMessageAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ChatRecord) TableName() string { return "chats" }

// MessageRecord is the durable, append-only form of a message. ClientMsgID is
// the sender's provisional id; the unique (chat_id, client_msg_id) index makes
// retried writes idempotent.
type MessageRecord struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	ChatID     uint64 `gorm:"not null;index:idx_msg_chat_created,priority:1;index:uniq_msg_client,unique,priority:1"`
	SenderID   uint64 `gorm:"not null;index"`
	SenderName string `gorm:"type:varchar(64);not null"`

	Variant     string `gorm:"type:varchar(8);not null"`
	Body        string `gorm:"type:text"`
	ResourceURL string `gorm:"type:varchar(512)"`
	Label       string `gorm:"type:varchar(128)"`

	ClientMsgID *string `gorm:"type:varchar(26);index:uniq_msg_client,unique,priority:2"`

	CreatedAt time.Time `gorm:"index:idx_msg_chat_created,priority:2"`
}

func (MessageRecord) TableName() string { return "chat_messages" }

// NotificationRecord is written by the notifier worker for participants who
// were not connected when a message landed.
type NotificationRecord struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement"`
	UserID  uint64 `gorm:"not null;index"`
	ChatID  uint64 `gorm:"not null;index"`
	Preview string `gorm:"type:varchar(128)"`

	CreatedAt time.Time
}

func (NotificationRecord) TableName() string { return "chat_notifications" }
