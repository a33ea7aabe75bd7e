package chat

import (
	"sync"

	"github.com/vraj-wappnet/freelance-chat/internal/types"
)

// ReconcileResult describes what ReconcileIncoming did with a
// server-confirmed message.
type ReconcileResult int

const (
	ReconcileReplacedTemp ReconcileResult = iota
	ReconcileDuplicate
	ReconcileAppended
)

// Timeline is the ordered message list for the selected conversation.
// Order is insertion/arrival order; mutations never re-sort by timestamp.
type Timeline struct {
	mu   sync.RWMutex
	msgs []types.Message
}

func NewTimeline() *Timeline {
	return &Timeline{}
}

// ReplaceAll swaps in the result of a history fetch. A nil slice becomes an
// empty timeline.
func (t *Timeline) ReplaceAll(msgs []types.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.msgs = append([]types.Message(nil), msgs...)
}

// AppendOptimistic inserts a locally created message awaiting server
// confirmation.
func (t *Timeline) AppendOptimistic(msg types.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.msgs = append(t.msgs, msg)
}

// ReconcileIncoming merges a server-confirmed message into the timeline. A
// temporary entry with the same content and sender is replaced in place;
// failing that, a message whose id is already present is dropped; otherwise
// the message is appended.
func (t *Timeline) ReconcileIncoming(msg types.Message) ReconcileResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, m := range t.msgs {
		if IsTempId(m.Id) && m.Content == msg.Content && m.SenderId == msg.SenderId {
			t.msgs[i] = msg
			return ReconcileReplacedTemp
		}
	}

	for _, m := range t.msgs {
		if m.Id == msg.Id {
			return ReconcileDuplicate
		}
	}

	t.msgs = append(t.msgs, msg)
	return ReconcileAppended
}

// ApplyUpdate patches the mutable fields of the entry matching msg.Id in
// place, preserving its identity and position. Unknown ids are a no-op.
func (t *Timeline) ApplyUpdate(msg types.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.msgs {
		if t.msgs[i].Id == msg.Id {
			t.msgs[i].Content = msg.Content
			t.msgs[i].IsRead = msg.IsRead
			return true
		}
	}

	return false
}

// RemoveById filters the entry out. Removing an absent id is a no-op.
func (t *Timeline) RemoveById(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, m := range t.msgs {
		if m.Id == id {
			t.msgs = append(t.msgs[:i], t.msgs[i+1:]...)
			return true
		}
	}

	return false
}

func (t *Timeline) Contains(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, m := range t.msgs {
		if m.Id == id {
			return true
		}
	}
	return false
}

func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.msgs)
}

// Messages returns a snapshot of the timeline in order.
func (t *Timeline) Messages() []types.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]types.Message(nil), t.msgs...)
}

// Visible returns the messages exchanged between the two users in either
// direction, in timeline order. The filter runs at read time so the store
// itself may hold entries across conversations.
func (t *Timeline) Visible(userId, otherId string) []types.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var visible []types.Message
	for _, m := range t.msgs {
		if (m.SenderId == userId && m.RecipientId == otherId) ||
			(m.SenderId == otherId && m.RecipientId == userId) {
			visible = append(visible, m)
		}
	}
	return visible
}
