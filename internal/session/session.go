package session

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/salesdeskhq/salesdesk/internal/chat"
	"github.com/salesdeskhq/salesdesk/internal/hub"
)

// Gateway is the session's view of the durable message store.
type Gateway interface {
	ListChats(ctx context.Context, userID uint64) ([]chat.Chat, error)
	ListMessages(ctx context.Context, chatID uint64) ([]chat.Message, error)
	CreateMessage(ctx context.Context, chatID, senderID uint64, senderName string, d chat.Draft, clientMsgID string) (chat.Message, error)
}

// Conn is one live delivery-channel connection.
type Conn interface {
	ReadEvent() (hub.Event, error)
	WriteEvent(hub.Event) error
	Close() error
}

// Dialer opens a fresh delivery-channel connection. The engine owns the
// resulting Conn for its whole lifetime and redials on loss.
type Dialer func(ctx context.Context) (Conn, error)

// Config carries the session identity and presentation callbacks.
type Config struct {
	UserID   uint64
	UserName string

	// PollInterval drives the notification reconciliation poller.
	// Defaults to 15s.
	PollInterval time.Duration

	// OnNewMessage fires after a message has been merged into its timeline.
	// Duplicate deliveries are absorbed before this point.
	OnNewMessage func(chatID uint64, m chat.Message)

	// OnNotification fires when the poller detects an unseen update for a
	// chat that is not open. At most one outstanding notification per chat.
	OnNotification func(n chat.Notification)
}

type evKind int

const (
	evMessage evKind = iota
	evFailed
	evNotify
)

type event struct {
	kind   evKind
	msg    chat.Message
	chatID uint64
	provID string
	note   chat.Notification
}

// Engine is one user session of the chat subsystem. The live channel and the
// poller both feed the same reconcile queue; a single loop applies every
// event, so merges are ordered no matter which source produced them.
type Engine struct {
	cfg  Config
	gw   Gateway
	dial Dialer

	events chan event

	mu          sync.Mutex
	timelines   map[uint64]*chat.Timeline
	joined      map[uint64]bool // rooms this session has open; rebuilt on every (re)connect
	openChat    uint64          // 0 = none
	unread      map[uint64]bool
	outstanding map[uint64]bool // chats with an undismissed notification
	conn        Conn
}

func New(cfg Config, gw Gateway, dial Dialer) *Engine {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 15 * time.Second
	}
	return &Engine{
		cfg:         cfg,
		gw:          gw,
		dial:        dial,
		events:      make(chan event, 128),
		timelines:   make(map[uint64]*chat.Timeline),
		joined:      make(map[uint64]bool),
		unread:      make(map[uint64]bool),
		outstanding: make(map[uint64]bool),
	}
}

// Run services the session until ctx is done. It owns the delivery channel,
// the poller and the merge loop.
func (e *Engine) Run(ctx context.Context) {
	go e.connectLoop(ctx)
	go e.pollLoop(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-e.events:
			e.apply(ev)
		}
	}
}

// Join opens a chat view: membership, unread state and history load.
func (e *Engine) Join(ctx context.Context, chatID uint64) error {
	e.mu.Lock()
	e.joined[chatID] = true
	e.openChat = chatID
	delete(e.unread, chatID)
	delete(e.outstanding, chatID)
	conn := e.conn
	e.mu.Unlock()

	if conn != nil {
		e.writeChatControl(conn, hub.TypeJoinChat, chatID)
	}

	history, err := e.gw.ListMessages(ctx, chatID)
	if err != nil {
		return err
	}
	for _, m := range history {
		e.events <- event{kind: evMessage, msg: m}
	}
	return nil
}

// Leave closes a chat view. Best-effort: the server never acknowledges it,
// and a skipped leave is recovered by the reconnect-time membership reset.
func (e *Engine) Leave(chatID uint64) {
	e.mu.Lock()
	delete(e.joined, chatID)
	if e.openChat == chatID {
		e.openChat = 0
	}
	conn := e.conn
	e.mu.Unlock()

	if conn != nil {
		e.writeChatControl(conn, hub.TypeLeaveChat, chatID)
	}
}

// Dismiss clears an outstanding notification without opening the chat.
func (e *Engine) Dismiss(chatID uint64) {
	e.mu.Lock()
	delete(e.outstanding, chatID)
	e.mu.Unlock()
}

// Send encodes nothing: the draft must already have passed the attachment
// encoder. The message appears in the local timeline immediately under a
// provisional id; the store write confirms it or marks it failed in place.
func (e *Engine) Send(ctx context.Context, chatID uint64, d chat.Draft) (chat.Message, error) {
	prov, err := chat.NewProvisional(chatID, e.cfg.UserID, e.cfg.UserName, d)
	if err != nil {
		// malformed draft: rejected locally, no store call
		return chat.Message{}, err
	}
	e.events <- event{kind: evMessage, msg: prov}

	provID, _ := prov.ID.Provisional()
	confirmed, err := e.gw.CreateMessage(ctx, chatID, e.cfg.UserID, e.cfg.UserName, d, provID)
	if err != nil {
		e.events <- event{kind: evFailed, chatID: chatID, provID: provID}
		return prov, err
	}

	// the live channel may deliver the same record; the merge is idempotent
	e.events <- event{kind: evMessage, msg: confirmed}
	return prov, nil
}

// Messages returns the reconciled, createdAt-ordered timeline of a chat.
func (e *Engine) Messages(chatID uint64) []chat.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	tl, ok := e.timelines[chatID]
	if !ok {
		return nil
	}
	return tl.Messages()
}

// HasUnread reports the session-local unread flag for a chat.
func (e *Engine) HasUnread(chatID uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.unread[chatID]
}

func (e *Engine) apply(ev event) {
	switch ev.kind {
	case evMessage:
		e.mu.Lock()
		tl := e.timelines[ev.msg.ChatID]
		if tl == nil {
			tl = chat.NewTimeline()
			e.timelines[ev.msg.ChatID] = tl
		}
		out := tl.Merge(ev.msg)
		if out != chat.MergeDuplicate &&
			ev.msg.SenderID != e.cfg.UserID &&
			e.openChat != ev.msg.ChatID {
			e.unread[ev.msg.ChatID] = true
		}
		cb := e.cfg.OnNewMessage
		e.mu.Unlock()

		if out != chat.MergeDuplicate && cb != nil {
			cb(ev.msg.ChatID, ev.msg)
		}

	case evFailed:
		e.mu.Lock()
		if tl := e.timelines[ev.chatID]; tl != nil {
			tl.MarkFailed(ev.provID)
		}
		e.mu.Unlock()

	case evNotify:
		e.mu.Lock()
		open := e.openChat == ev.note.ChatID
		if !open {
			// a poll discrepancy marks the chat unread just like a live message
			e.unread[ev.note.ChatID] = true
		}
		skip := open || e.outstanding[ev.note.ChatID]
		if !skip {
			e.outstanding[ev.note.ChatID] = true
		}
		cb := e.cfg.OnNotification
		e.mu.Unlock()

		if !skip && cb != nil {
			cb(ev.note)
		}
	}
}

func (e *Engine) connectLoop(ctx context.Context) {
	backoff := time.Second
	for {
		conn, err := e.dial(ctx)
		if err != nil {
			log.Printf("session dial failed user=%d err=%v", e.cfg.UserID, err)
			if !sleep(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}
		backoff = time.Second

		// membership never survives a disconnect: re-join every open room
		e.mu.Lock()
		e.conn = conn
		rooms := make([]uint64, 0, len(e.joined))
		for id := range e.joined {
			rooms = append(rooms, id)
		}
		e.mu.Unlock()
		for _, id := range rooms {
			e.writeChatControl(conn, hub.TypeJoinChat, id)
		}

		e.readEvents(ctx, conn)

		e.mu.Lock()
		if e.conn == conn {
			e.conn = nil
		}
		e.mu.Unlock()
		conn.Close()

		if !sleep(ctx, backoff) {
			return
		}
	}
}

func (e *Engine) readEvents(ctx context.Context, conn Conn) {
	for {
		ev, err := conn.ReadEvent()
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("session channel lost user=%d err=%v", e.cfg.UserID, err)
			}
			return
		}
		if ev.Type != hub.TypeNewMessage {
			continue
		}
		wire, err := decodeWireMessage(ev)
		if err != nil {
			log.Printf("session bad newMessage user=%d err=%v", e.cfg.UserID, err)
			continue
		}
		select {
		case e.events <- event{kind: evMessage, msg: wire}:
		case <-ctx.Done():
			return
		}
	}
}

func (e *Engine) writeChatControl(conn Conn, typ string, chatID uint64) {
	ev, err := hub.NewChatControl(typ, chatID)
	if err != nil {
		return
	}
	if err := conn.WriteEvent(ev); err != nil {
		log.Printf("session %s write failed user=%d chat=%d err=%v", typ, e.cfg.UserID, chatID, err)
	}
}

func decodeWireMessage(ev hub.Event) (chat.Message, error) {
	var w hub.WireMessage
	if err := json.Unmarshal(ev.Payload, &w); err != nil {
		return chat.Message{}, err
	}
	return w.Message(), nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	return d
}
