package chat

import (
	"strconv"
	"time"
	"unicode/utf8"
)

// Variant is the message payload kind.
type Variant string

const (
	VariantText  Variant = "text"
	VariantImage Variant = "image"
	VariantFile  Variant = "file"
)

func (v Variant) Valid() bool {
	switch v {
	case VariantText, VariantImage, VariantFile:
		return true
	}
	return false
}

type idKind uint8

const (
	idNone idKind = iota
	idProvisional
	idPermanent
)

// MessageID is the identity of a message: either a client-stamped provisional
// id (ULID, not yet confirmed by the store) or a store-assigned permanent id.
// A message carries exactly one of the two; the transition is one-way,
// provisional -> permanent.
type MessageID struct {
	kind        idKind
	provisional string
	permanent   uint64
}

func ProvisionalID(id string) MessageID {
	return MessageID{kind: idProvisional, provisional: id}
}

func PermanentID(id uint64) MessageID {
	return MessageID{kind: idPermanent, permanent: id}
}

func (id MessageID) IsZero() bool        { return id.kind == idNone }
func (id MessageID) IsProvisional() bool { return id.kind == idProvisional }
func (id MessageID) IsPermanent() bool   { return id.kind == idPermanent }

func (id MessageID) Provisional() (string, bool) {
	return id.provisional, id.kind == idProvisional
}

func (id MessageID) Permanent() (uint64, bool) {
	return id.permanent, id.kind == idPermanent
}

// Key is the rendering key: the permanent id when confirmed, otherwise the
// provisional id. List renderers key rows by this value.
func (id MessageID) Key() string {
	if id.kind == idPermanent {
		return strconv.FormatUint(id.permanent, 10)
	}
	return id.provisional
}

// Message is one chat message. Append-only: nothing but the identity (on
// confirmation) and the failed flag ever changes after creation.
type Message struct {
	ID         MessageID
	ChatID     uint64
	SenderID   uint64
	SenderName string

	Variant Variant
	Text    string // text variant
	URL     string // image/file variant: stored resource
	Label   string // image/file variant: display name

	// ClientMsgID echoes the sender's provisional id on confirmed records so
	// the sender's session can reconcile the confirmed row over its
	// optimistic one.
	ClientMsgID string

	CreatedAt time.Time

	// Failed marks a provisional message whose store write was rejected.
	// It stays in the timeline so the sender can retry.
	Failed bool
}

// Chat is one conversation as seen in the chat list.
type Chat struct {
	ID                 uint64
	PartnerID          uint64
	DisplayName        string
	AvatarURL          string
	LastMessagePreview string

	// HasUnread is session-local; it is only ever cleared by opening the chat.
	HasUnread bool
}

// Notification is what the reconciliation poller synthesizes when a chat's
// preview changed while the chat was not open.
type Notification struct {
	ChatID      uint64
	DisplayName string
	AvatarURL   string
	Preview     string
}

const previewMax = 80

// PreviewText derives the chat-list preview snapshot for a message.
func PreviewText(m Message) string {
	switch m.Variant {
	case VariantImage:
		return "[image] " + m.Label
	case VariantFile:
		return "[file] " + m.Label
	}
	s := m.Text
	if len(s) > previewMax {
		// never cut inside a multi-byte rune
		cut := previewMax
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	return s
}
