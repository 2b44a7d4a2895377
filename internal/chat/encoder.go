package chat

import (
	"errors"
	"path"
	"strings"
	"time"

	"github.com/salesdeskhq/salesdesk/internal/common"
)

// MaxTextLen bounds the text variant. The upload handler enforces the
// attachment byte limit; this layer only sees the stored resource URL.
const MaxTextLen = 4000

var (
	ErrEmptyDraft      = errors.New("chat: draft has no content")
	ErrAmbiguousDraft  = errors.New("chat: draft has more than one variant populated")
	ErrTextTooLong     = errors.New("chat: text exceeds maximum length")
	ErrMissingResource = errors.New("chat: attachment draft has no uploaded resource")
	ErrBadVariant      = errors.New("chat: unknown message variant")
)

// Draft is a validated, not-yet-identified message payload. Exactly one
// variant is populated; Validate enforces that before a draft may enter a
// timeline or the store.
type Draft struct {
	Variant Variant
	Text    string
	URL     string
	Label   string
}

// EncodeText normalizes a plain text input into a draft.
func EncodeText(s string) (Draft, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Draft{}, ErrEmptyDraft
	}
	if len(s) > MaxTextLen {
		return Draft{}, ErrTextTooLong
	}
	return Draft{Variant: VariantText, Text: s}, nil
}

// EncodeAttachment normalizes an uploaded image or file into a draft. The
// resource must already be stored; label falls back to a generic name derived
// from the URL's file extension when no original filename is available.
func EncodeAttachment(v Variant, url, name string) (Draft, error) {
	if v != VariantImage && v != VariantFile {
		return Draft{}, ErrBadVariant
	}
	url = strings.TrimSpace(url)
	if url == "" {
		return Draft{}, ErrMissingResource
	}
	label := strings.TrimSpace(name)
	if label == "" {
		label = defaultLabel(url)
	}
	return Draft{Variant: v, URL: url, Label: label}, nil
}

// Validate checks the exactly-one-variant invariant.
func (d Draft) Validate() error {
	if !d.Variant.Valid() {
		return ErrBadVariant
	}
	switch d.Variant {
	case VariantText:
		if d.Text == "" {
			return ErrEmptyDraft
		}
		if d.URL != "" || d.Label != "" {
			return ErrAmbiguousDraft
		}
	default:
		if d.URL == "" {
			return ErrMissingResource
		}
		if d.Text != "" {
			return ErrAmbiguousDraft
		}
	}
	return nil
}

// NewProvisional stamps a fresh provisional identity on a draft and returns a
// message renderable immediately, before the store has confirmed anything.
func NewProvisional(chatID, senderID uint64, senderName string, d Draft) (Message, error) {
	if err := d.Validate(); err != nil {
		return Message{}, err
	}
	id, err := common.NewULID()
	if err != nil {
		return Message{}, err
	}
	return Message{
		ID:         ProvisionalID(id),
		ChatID:     chatID,
		SenderID:   senderID,
		SenderName: senderName,
		Variant:    d.Variant,
		Text:       d.Text,
		URL:        d.URL,
		Label:      d.Label,
		CreatedAt:  time.Now(),
	}, nil
}

var extLabels = map[string]string{
	".png":  "Image",
	".jpg":  "Image",
	".jpeg": "Image",
	".gif":  "Image",
	".webp": "Image",
	".pdf":  "PDF document",
	".doc":  "Word document",
	".docx": "Word document",
	".xls":  "Spreadsheet",
	".xlsx": "Spreadsheet",
	".csv":  "Spreadsheet",
	".zip":  "Archive",
}

func defaultLabel(url string) string {
	ext := strings.ToLower(path.Ext(url))
	if l, ok := extLabels[ext]; ok {
		return l
	}
	return "File"
}
