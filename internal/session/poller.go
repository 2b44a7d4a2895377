package session

import (
	"context"
	"log"
	"time"

	"github.com/salesdeskhq/salesdesk/internal/chat"
)

// poller re-derives "has this chat changed" from preview snapshots. It keeps
// only the last successfully observed preview per chat, so a failed tick is
// skipped without corrupting the comparison baseline.
type poller struct {
	gw     Gateway
	userID uint64
	last   map[uint64]string
}

func newPoller(gw Gateway, userID uint64) *poller {
	return &poller{gw: gw, userID: userID, last: make(map[uint64]string)}
}

// tick fetches current previews and returns a notification candidate for each
// chat whose preview differs from the last observed value. The first
// observation of a chat is recorded but never reported, so initial load does
// not flood the user.
func (p *poller) tick(ctx context.Context) ([]chat.Notification, error) {
	chats, err := p.gw.ListChats(ctx, p.userID)
	if err != nil {
		return nil, err
	}

	var notes []chat.Notification
	for _, c := range chats {
		prev, seen := p.last[c.ID]
		p.last[c.ID] = c.LastMessagePreview
		if !seen || prev == c.LastMessagePreview {
			continue
		}
		notes = append(notes, chat.Notification{
			ChatID:      c.ID,
			DisplayName: c.DisplayName,
			AvatarURL:   c.AvatarURL,
			Preview:     c.LastMessagePreview,
		})
	}
	return notes, nil
}

// pollLoop is the fallback producer: it runs on its own timer, independent of
// the delivery channel, and feeds candidates into the same reconcile queue.
// The merge loop applies the open-chat and dedupe rules.
func (e *Engine) pollLoop(ctx context.Context) {
	p := newPoller(e.gw, e.cfg.UserID)

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			notes, err := p.tick(ctx)
			if err != nil {
				if ctx.Err() == nil {
					log.Printf("session poll skipped user=%d err=%v", e.cfg.UserID, err)
				}
				continue
			}
			for _, n := range notes {
				select {
				case e.events <- event{kind: evNotify, note: n}:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}
