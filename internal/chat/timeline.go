package chat

import "sort"

// MergeOutcome reports what a Timeline.Merge call did.
type MergeOutcome int

const (
	// MergeDuplicate means the permanent id was already present; re-delivery
	// is absorbed silently.
	MergeDuplicate MergeOutcome = iota
	// MergeConfirmed means a confirmed record replaced its optimistic
	// counterpart in place.
	MergeConfirmed
	// MergeAppended means the message was new to this timeline.
	MergeAppended
)

// Timeline is the reconciled message list for one chat. It guarantees each
// logical message appears exactly once no matter how many paths deliver it
// (optimistic local create, live channel, poll, history load), and that
// rendering order is a function of CreatedAt only.
//
// Not safe for concurrent use: the session engine applies every mutation from
// its single merge loop.
type Timeline struct {
	msgs []Message
}

func NewTimeline() *Timeline {
	return &Timeline{}
}

// Merge applies an incoming message.
//
//   - A permanent id already present replaces that entry in place; duplicate
//     delivery, absorbed.
//   - A confirmed message carrying the provisional echo of a local optimistic
//     entry confirms that entry in place, so the row count never moves across
//     the provisional -> permanent transition.
//   - Anything else is appended.
func (t *Timeline) Merge(in Message) MergeOutcome {
	if in.ID.IsZero() {
		return MergeDuplicate
	}
	if perm, ok := in.ID.Permanent(); ok {
		for i := range t.msgs {
			if p, ok := t.msgs[i].ID.Permanent(); ok && p == perm {
				t.msgs[i] = in
				return MergeDuplicate
			}
		}
		if in.ClientMsgID != "" {
			for i := range t.msgs {
				if prov, ok := t.msgs[i].ID.Provisional(); ok && prov == in.ClientMsgID {
					t.msgs[i] = in
					return MergeConfirmed
				}
			}
		}
		t.msgs = append(t.msgs, in)
		return MergeAppended
	}

	for i := range t.msgs {
		if p, ok := t.msgs[i].ID.Provisional(); ok {
			if prov, _ := in.ID.Provisional(); p == prov {
				t.msgs[i] = in
				return MergeDuplicate
			}
		}
	}
	t.msgs = append(t.msgs, in)
	return MergeAppended
}

// MarkFailed flags the provisional entry whose store write was rejected.
// The entry stays in the timeline so the sender can see it and retry.
func (t *Timeline) MarkFailed(provisionalID string) bool {
	for i := range t.msgs {
		if p, ok := t.msgs[i].ID.Provisional(); ok && p == provisionalID {
			t.msgs[i].Failed = true
			return true
		}
	}
	return false
}

// Messages returns the timeline sorted by CreatedAt. Entries with equal
// stamps keep their merge order.
func (t *Timeline) Messages() []Message {
	out := make([]Message, len(t.msgs))
	copy(out, t.msgs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (t *Timeline) Len() int { return len(t.msgs) }
