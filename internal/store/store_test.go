package store

import (
	"context"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/salesdeskhq/salesdesk/internal/chat"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func mustText(t *testing.T, s string) chat.Draft {
	t.Helper()
	d, err := chat.EncodeText(s)
	if err != nil {
		t.Fatalf("encode text: %v", err)
	}
	return d
}

func TestCreateDirectChat_ReusesExistingPair(t *testing.T) {
	s := New(openTestDB(t))
	ctx := context.Background()

	c1, err := s.CreateDirectChat(ctx, 1, 2, "Maria Lopez", "")
	if err != nil {
		t.Fatalf("create chat: %v", err)
	}

	// same pair from the other side must come back as the same chat
	c2, err := s.CreateDirectChat(ctx, 2, 1, "Jon Fields", "")
	if err != nil {
		t.Fatalf("create chat again: %v", err)
	}
	if c1.ID != c2.ID {
		t.Fatalf("expected one chat for the pair, got %d and %d", c1.ID, c2.ID)
	}
	if c2.PartnerID != 1 {
		t.Fatalf("expected partner 1 from user 2's view, got %d", c2.PartnerID)
	}
}

func TestCreateMessage_AssignsPermanentIDAndUpdatesPreview(t *testing.T) {
	s := New(openTestDB(t))
	ctx := context.Background()

	c, err := s.CreateDirectChat(ctx, 1, 2, "Maria Lopez", "")
	if err != nil {
		t.Fatalf("create chat: %v", err)
	}

	m, err := s.CreateMessage(ctx, c.ID, 1, "Ana", mustText(t, "hola"), "01PROV0000000000000000000000")
	if err != nil {
		t.Fatalf("create message: %v", err)
	}
	if _, ok := m.ID.Permanent(); !ok {
		t.Fatalf("expected permanent id on confirmed message")
	}
	if m.ClientMsgID != "01PROV0000000000000000000000" {
		t.Fatalf("expected provisional echo, got %q", m.ClientMsgID)
	}

	preview, err := s.GetPreview(ctx, c.ID)
	if err != nil {
		t.Fatalf("get preview: %v", err)
	}
	if preview != "hola" {
		t.Fatalf("expected preview %q, got %q", "hola", preview)
	}
}

func TestCreateMessage_RetryWithSameClientIDIsIdempotent(t *testing.T) {
	s := New(openTestDB(t))
	ctx := context.Background()

	c, err := s.CreateDirectChat(ctx, 1, 2, "Maria Lopez", "")
	if err != nil {
		t.Fatalf("create chat: %v", err)
	}

	first, err := s.CreateMessage(ctx, c.ID, 1, "Ana", mustText(t, "once"), "01RETRY000000000000000000000")
	if err != nil {
		t.Fatalf("create message: %v", err)
	}
	second, err := s.CreateMessage(ctx, c.ID, 1, "Ana", mustText(t, "once"), "01RETRY000000000000000000000")
	if err != nil {
		t.Fatalf("retry message: %v", err)
	}
	if first.ID.Key() != second.ID.Key() {
		t.Fatalf("retry produced a second row: %s vs %s", first.ID.Key(), second.ID.Key())
	}

	msgs, err := s.ListMessages(ctx, c.ID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
}

func TestCreateMessage_RejectsInvalidDraft(t *testing.T) {
	s := New(openTestDB(t))
	ctx := context.Background()

	c, err := s.CreateDirectChat(ctx, 1, 2, "Maria Lopez", "")
	if err != nil {
		t.Fatalf("create chat: %v", err)
	}
	if _, err := s.CreateMessage(ctx, c.ID, 1, "Ana", chat.Draft{Variant: chat.VariantImage}, ""); err == nil {
		t.Fatalf("expected invalid draft to be rejected")
	}
}

func TestListMessages_OrderedByCreatedAt(t *testing.T) {
	s := New(openTestDB(t))
	ctx := context.Background()

	c, err := s.CreateDirectChat(ctx, 1, 2, "Maria Lopez", "")
	if err != nil {
		t.Fatalf("create chat: %v", err)
	}
	for _, txt := range []string{"one", "two", "three"} {
		if _, err := s.CreateMessage(ctx, c.ID, 1, "Ana", mustText(t, txt), ""); err != nil {
			t.Fatalf("create %q: %v", txt, err)
		}
	}

	msgs, err := s.ListMessages(ctx, c.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"one", "two", "three"}
	for i, w := range want {
		if msgs[i].Text != w {
			t.Fatalf("position %d: got %q want %q", i, msgs[i].Text, w)
		}
	}
}

func TestIsParticipant(t *testing.T) {
	s := New(openTestDB(t))
	ctx := context.Background()

	c, err := s.CreateDirectChat(ctx, 1, 2, "Maria Lopez", "")
	if err != nil {
		t.Fatalf("create chat: %v", err)
	}

	in, err := s.IsParticipant(ctx, c.ID, 2)
	if err != nil || !in {
		t.Fatalf("expected participant, got in=%v err=%v", in, err)
	}
	out, err := s.IsParticipant(ctx, c.ID, 3)
	if err != nil || out {
		t.Fatalf("expected non-participant, got in=%v err=%v", out, err)
	}
}

func TestNotifications_RoundTrip(t *testing.T) {
	s := New(openTestDB(t))
	ctx := context.Background()

	if err := s.CreateNotification(ctx, 2, 9, "hola"); err != nil {
		t.Fatalf("create notification: %v", err)
	}
	notes, err := s.ListNotifications(ctx, 2)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	if len(notes) != 1 || notes[0].ChatID != 9 || notes[0].Preview != "hola" {
		t.Fatalf("unexpected notifications: %+v", notes)
	}
}
