package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/salesdeskhq/salesdesk/internal/chat"
	"github.com/salesdeskhq/salesdesk/internal/hub"
)

type fakeGateway struct {
	mu         sync.Mutex
	chats      []chat.Chat
	history    map[uint64][]chat.Message
	nextID     uint64
	failCreate bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{history: make(map[uint64][]chat.Message), nextID: 899}
}

func (g *fakeGateway) ListChats(ctx context.Context, userID uint64) ([]chat.Chat, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]chat.Chat, len(g.chats))
	copy(out, g.chats)
	return out, nil
}

func (g *fakeGateway) ListMessages(ctx context.Context, chatID uint64) ([]chat.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]chat.Message(nil), g.history[chatID]...), nil
}

func (g *fakeGateway) CreateMessage(ctx context.Context, chatID, senderID uint64, senderName string, d chat.Draft, clientMsgID string) (chat.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failCreate {
		return chat.Message{}, errors.New("store rejected write")
	}
	g.nextID++
	m := chat.Message{
		ID:          chat.PermanentID(g.nextID),
		ChatID:      chatID,
		SenderID:    senderID,
		SenderName:  senderName,
		Variant:     d.Variant,
		Text:        d.Text,
		URL:         d.URL,
		Label:       d.Label,
		ClientMsgID: clientMsgID,
		CreatedAt:   time.Now(),
	}
	g.history[chatID] = append(g.history[chatID], m)
	return m, nil
}

type fakeConn struct {
	in   chan hub.Event
	out  chan hub.Event
	done chan struct{}
	once sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:   make(chan hub.Event, 16),
		out:  make(chan hub.Event, 16),
		done: make(chan struct{}),
	}
}

func (c *fakeConn) ReadEvent() (hub.Event, error) {
	select {
	case ev := <-c.in:
		return ev, nil
	case <-c.done:
		return hub.Event{}, io.EOF
	}
}

func (c *fakeConn) WriteEvent(ev hub.Event) error {
	select {
	case c.out <- ev:
		return nil
	case <-c.done:
		return io.EOF
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func connDialer(conns ...*fakeConn) Dialer {
	ch := make(chan *fakeConn, len(conns))
	for _, c := range conns {
		ch <- c
	}
	return func(ctx context.Context) (Conn, error) {
		select {
		case c := <-ch:
			return c, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

func startEngine(t *testing.T, cfg Config, gw Gateway, dial Dialer) (*Engine, context.CancelFunc) {
	t.Helper()
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Hour // quiet unless the test drives the poller
	}
	e := New(cfg, gw, dial)
	ctx, cancel := context.WithCancel(context.Background())
	go e.Run(ctx)
	return e, cancel
}

func TestSend_ProvisionalThenConfirmedSingleRow(t *testing.T) {
	gw := newFakeGateway()
	e, cancel := startEngine(t, Config{UserID: 7, UserName: "Ana"}, gw, connDialer(newFakeConn()))
	defer cancel()

	d, err := chat.EncodeText("hola")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	prov, err := e.Send(context.Background(), 42, d)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !prov.ID.IsProvisional() {
		t.Fatalf("expected provisional identity on immediate result")
	}
	if prov.SenderName != "Ana" {
		t.Fatalf("expected sender name on provisional, got %q", prov.SenderName)
	}

	waitFor(t, func() bool {
		msgs := e.Messages(42)
		return len(msgs) == 1 && msgs[0].ID.Key() == "900"
	}, "exactly one message keyed by the permanent id")
}

func TestSend_StoreFailureMarksMessageFailed(t *testing.T) {
	gw := newFakeGateway()
	gw.failCreate = true
	e, cancel := startEngine(t, Config{UserID: 7, UserName: "Ana"}, gw, connDialer(newFakeConn()))
	defer cancel()

	d, _ := chat.EncodeText("will fail")
	if _, err := e.Send(context.Background(), 42, d); err == nil {
		t.Fatalf("expected send error")
	}

	waitFor(t, func() bool {
		msgs := e.Messages(42)
		return len(msgs) == 1 && msgs[0].Failed
	}, "failed message kept visible")
}

func TestSend_MalformedDraftNeverReachesGateway(t *testing.T) {
	gw := newFakeGateway()
	e, cancel := startEngine(t, Config{UserID: 7}, gw, connDialer(newFakeConn()))
	defer cancel()

	_, err := e.Send(context.Background(), 42, chat.Draft{Variant: chat.VariantImage})
	if !errors.Is(err, chat.ErrMissingResource) {
		t.Fatalf("expected ErrMissingResource, got %v", err)
	}
	if len(gw.history[42]) != 0 {
		t.Fatalf("gateway was called for a malformed draft")
	}
}

func TestChannelDelivery_DuplicateConfirmedAbsorbed(t *testing.T) {
	gw := newFakeGateway()
	conn := newFakeConn()

	var mu sync.Mutex
	var delivered int
	cfg := Config{UserID: 7, OnNewMessage: func(chatID uint64, m chat.Message) {
		mu.Lock()
		delivered++
		mu.Unlock()
	}}
	_, cancel := startEngine(t, cfg, gw, connDialer(conn))
	defer cancel()

	wire, _ := json.Marshal(hub.ToWire(chat.Message{
		ID:        chat.PermanentID(12),
		ChatID:    7,
		SenderID:  2,
		Variant:   chat.VariantText,
		Text:      "hi",
		CreatedAt: time.Now(),
	}))
	ev := hub.Event{Type: hub.TypeNewMessage, Payload: wire}
	conn.in <- ev
	conn.in <- ev // duplicate delivery

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return delivered == 1
	}, "single callback for duplicate delivery")

	// give the duplicate a chance to surface if it was going to
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if delivered != 1 {
		t.Fatalf("duplicate delivery reached the presentation layer: %d", delivered)
	}
}

func TestReconnect_RejoinsOpenRooms(t *testing.T) {
	gw := newFakeGateway()
	first := newFakeConn()
	second := newFakeConn()
	e, cancel := startEngine(t, Config{UserID: 7}, gw, connDialer(first, second))
	defer cancel()

	if err := e.Join(context.Background(), 7); err != nil {
		t.Fatalf("join: %v", err)
	}

	expectJoin := func(c *fakeConn, name string) {
		t.Helper()
		select {
		case ev := <-c.out:
			if ev.Type != hub.TypeJoinChat {
				t.Fatalf("%s: expected joinChat, got %s", name, ev.Type)
			}
			var ref hub.ChatRef
			if err := json.Unmarshal(ev.Payload, &ref); err != nil || ref.ChatID != 7 {
				t.Fatalf("%s: bad joinChat payload: %v %+v", name, err, ref)
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("%s: no joinChat frame", name)
		}
	}

	expectJoin(first, "first connection")

	// drop the channel; membership must be rebuilt on the next connection
	first.Close()
	expectJoin(second, "reconnected connection")
}

func TestUnread_SetForClosedChatClearedByJoin(t *testing.T) {
	gw := newFakeGateway()
	e, cancel := startEngine(t, Config{UserID: 7}, gw, connDialer(newFakeConn()))
	defer cancel()

	e.apply(event{kind: evMessage, msg: chat.Message{
		ID: chat.PermanentID(1), ChatID: 3, SenderID: 2,
		Variant: chat.VariantText, Text: "A", CreatedAt: time.Now(),
	}})
	if !e.HasUnread(3) {
		t.Fatalf("expected unread flag for closed chat")
	}

	if err := e.Join(context.Background(), 3); err != nil {
		t.Fatalf("join: %v", err)
	}
	if e.HasUnread(3) {
		t.Fatalf("opening the chat must clear unread")
	}
}

func TestHistoryAndChannel_OrderedByCreatedAt(t *testing.T) {
	gw := newFakeGateway()
	base := time.Now()
	gw.history[5] = []chat.Message{
		{ID: chat.PermanentID(2), ChatID: 5, SenderID: 2, Variant: chat.VariantText, Text: "second", CreatedAt: base.Add(2 * time.Second)},
	}
	conn := newFakeConn()
	e, cancel := startEngine(t, Config{UserID: 7}, gw, connDialer(conn))
	defer cancel()

	if err := e.Join(context.Background(), 5); err != nil {
		t.Fatalf("join: %v", err)
	}

	// an older message arrives later over the live channel
	wire, _ := json.Marshal(hub.ToWire(chat.Message{
		ID: chat.PermanentID(1), ChatID: 5, SenderID: 2,
		Variant: chat.VariantText, Text: "first", CreatedAt: base.Add(1 * time.Second),
	}))
	conn.in <- hub.Event{Type: hub.TypeNewMessage, Payload: wire}

	waitFor(t, func() bool { return len(e.Messages(5)) == 2 }, "both messages merged")

	msgs := e.Messages(5)
	if msgs[0].Text != "first" || msgs[1].Text != "second" {
		t.Fatalf("render order follows arrival, not createdAt: %q, %q", msgs[0].Text, msgs[1].Text)
	}
}
