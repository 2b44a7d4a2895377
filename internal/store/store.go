package store

import (
	"context"
	"errors"
	"time"

	"github.com/salesdeskhq/salesdesk/internal/chat"
	"gorm.io/gorm"
)

// Store is the durable message store gateway. It is the single point of
// serialization for concurrent writers to the same chat; callers above it do
// no locking of their own.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&ChatRecord{}, &MessageRecord{}, &NotificationRecord{})
}

func (s *Store) ListChats(ctx context.Context, userID uint64) ([]chat.Chat, error) {
	var recs []ChatRecord
	if err := s.db.WithContext(ctx).
		Where("creator_id = ? OR partner_id = ?", userID, userID).
		Order("last_message_at DESC").
		Find(&recs).Error; err != nil {
		return nil, err
	}

	out := make([]chat.Chat, 0, len(recs))
	for _, r := range recs {
		out = append(out, toChat(r, userID))
	}
	return out, nil
}

func (s *Store) GetChat(ctx context.Context, chatID uint64) (*ChatRecord, error) {
	var rec ChatRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", chatID).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateDirectChat returns the existing chat for the pair when one exists,
// regardless of which side created it.
func (s *Store) CreateDirectChat(ctx context.Context, fromID, toID uint64, displayName, avatarURL string) (chat.Chat, error) {
	var existing ChatRecord
	err := s.db.WithContext(ctx).
		Where("(creator_id = ? AND partner_id = ?) OR (creator_id = ? AND partner_id = ?)",
			fromID, toID, toID, fromID).
		First(&existing).Error
	if err == nil {
		return toChat(existing, fromID), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return chat.Chat{}, err
	}

	rec := ChatRecord{
		CreatorID:   fromID,
		PartnerID:   toID,
		DisplayName: displayName,
		AvatarURL:   avatarURL,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return chat.Chat{}, err
	}
	return toChat(rec, fromID), nil
}

// IsParticipant reports whether the user belongs to the chat. Every message
// operation checks this before touching message rows.
func (s *Store) IsParticipant(ctx context.Context, chatID, userID uint64) (bool, error) {
	var cnt int64
	err := s.db.WithContext(ctx).Model(&ChatRecord{}).
		Where("id = ? AND (creator_id = ? OR partner_id = ?)", chatID, userID, userID).
		Count(&cnt).Error
	if err != nil {
		return false, err
	}
	return cnt > 0, nil
}

func (s *Store) Participants(ctx context.Context, chatID uint64) ([]uint64, error) {
	var rec ChatRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", chatID).Error; err != nil {
		return nil, err
	}
	return []uint64{rec.CreatorID, rec.PartnerID}, nil
}

// ListMessages returns the chat history in createdAt ASC order.
func (s *Store) ListMessages(ctx context.Context, chatID uint64) ([]chat.Message, error) {
	var recs []MessageRecord
	if err := s.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at ASC, id ASC").
		Find(&recs).Error; err != nil {
		return nil, err
	}

	out := make([]chat.Message, 0, len(recs))
	for _, r := range recs {
		out = append(out, toMessage(r))
	}
	return out, nil
}

// CreateMessage appends a confirmed message and refreshes the chat preview.
// A retried write with the same (chat, clientMsgID) returns the original row
// instead of inserting twice.
func (s *Store) CreateMessage(ctx context.Context, chatID, senderID uint64, senderName string, d chat.Draft, clientMsgID string) (chat.Message, error) {
	if err := d.Validate(); err != nil {
		return chat.Message{}, err
	}

	rec := MessageRecord{
		ChatID:      chatID,
		SenderID:    senderID,
		SenderName:  senderName,
		Variant:     string(d.Variant),
		Body:        d.Text,
		ResourceURL: d.URL,
		Label:       d.Label,
		CreatedAt:   time.Now(),
	}
	if clientMsgID != "" {
		rec.ClientMsgID = &clientMsgID
	}

	err := s.db.WithContext(ctx).Create(&rec).Error
	if err != nil && clientMsgID != "" {
		var existing MessageRecord
		getErr := s.db.WithContext(ctx).
			Where("chat_id = ? AND client_msg_id = ?", chatID, clientMsgID).
			First(&existing).Error
		if getErr == nil {
			return toMessage(existing), nil
		}
		if errors.Is(getErr, gorm.ErrRecordNotFound) {
			return chat.Message{}, err
		}
		return chat.Message{}, getErr
	}
	if err != nil {
		return chat.Message{}, err
	}

	msg := toMessage(rec)

	preview := chat.PreviewText(msg)
	if uerr := s.db.WithContext(ctx).Model(&ChatRecord{}).
		Where("id = ?", chatID).
		Updates(map[string]any{
			"last_message":    preview,
			"last_message_at": rec.CreatedAt,
		}).Error; uerr != nil {
		// message is durable; a stale preview heals on the next write
		return msg, nil
	}
	return msg, nil
}

// GetPreview reads only the chat's preview snapshot; the cheap form the
// reconciliation pollers hit.
func (s *Store) GetPreview(ctx context.Context, chatID uint64) (string, error) {
	var rec ChatRecord
	if err := s.db.WithContext(ctx).
		Select("last_message").
		First(&rec, "id = ?", chatID).Error; err != nil {
		return "", err
	}
	return rec.LastMessage, nil
}

func (s *Store) CreateNotification(ctx context.Context, userID, chatID uint64, preview string) error {
	return s.db.WithContext(ctx).Create(&NotificationRecord{
		UserID:  userID,
		ChatID:  chatID,
		Preview: preview,
	}).Error
}

func (s *Store) ListNotifications(ctx context.Context, userID uint64) ([]NotificationRecord, error) {
	var recs []NotificationRecord
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

func toChat(r ChatRecord, viewerID uint64) chat.Chat {
	partner := r.PartnerID
	if partner == viewerID {
		partner = r.CreatorID
	}
	return chat.Chat{
		ID:                 r.ID,
		PartnerID:          partner,
		DisplayName:        r.DisplayName,
		AvatarURL:          r.AvatarURL,
		LastMessagePreview: r.LastMessage,
	}
}

func toMessage(r MessageRecord) chat.Message {
	m := chat.Message{
		ID:         chat.PermanentID(r.ID),
		ChatID:     r.ChatID,
		SenderID:   r.SenderID,
		SenderName: r.SenderName,
		Variant:    chat.Variant(r.Variant),
		Text:       r.Body,
		URL:        r.ResourceURL,
		Label:      r.Label,
		CreatedAt:  r.CreatedAt,
	}
	if r.ClientMsgID != nil {
		m.ClientMsgID = *r.ClientMsgID
	}
	return m
}
