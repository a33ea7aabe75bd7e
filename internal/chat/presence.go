package chat

import (
	"sync"
	"time"

	"github.com/vraj-wappnet/freelance-chat/internal/types"
)

// TypingWindow is how long a typing flag stays set without a refreshing
// event.
const TypingWindow = 3 * time.Second

// Tracker holds advisory presence and typing state per user. None of it
// gates message delivery; typing flags clear on their own after the window
// elapses.
type Tracker struct {
	mu       sync.Mutex
	window   time.Duration
	gen      uint64
	status   map[string]types.PresenceStatus
	lastSeen map[string]string
	typing   map[string]typingEntry
}

// typingEntry tags each armed timer with a generation so an expiry that was
// already in flight when the flag got refreshed cannot clear the new flag.
type typingEntry struct {
	gen   uint64
	timer *time.Timer
}

func NewTracker() *Tracker {
	return newTrackerWithWindow(TypingWindow)
}

func newTrackerWithWindow(window time.Duration) *Tracker {
	return &Tracker{
		window:   window,
		status:   make(map[string]types.PresenceStatus),
		lastSeen: make(map[string]string),
		typing:   make(map[string]typingEntry),
	}
}

func (tr *Tracker) SetStatus(userId string, status types.PresenceStatus) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.status[userId] = status
}

// Status returns the last reported presence for the user, defaulting to
// offline when nothing has been reported.
func (tr *Tracker) Status(userId string) types.PresenceStatus {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	if s, ok := tr.status[userId]; ok {
		return s
	}
	return types.StatusOffline
}

func (tr *Tracker) SetLastSeen(userId, label string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.lastSeen[userId] = label
}

func (tr *Tracker) LastSeen(userId string) string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.lastSeen[userId]
}

// MarkTyping sets the typing flag for the user and restarts its expiry
// timer.
func (tr *Tracker) MarkTyping(userId string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	if entry, ok := tr.typing[userId]; ok {
		entry.timer.Stop()
	}

	tr.gen++
	gen := tr.gen
	tr.typing[userId] = typingEntry{
		gen: gen,
		timer: time.AfterFunc(tr.window, func() {
			tr.clearTyping(userId, gen)
		}),
	}
}

func (tr *Tracker) clearTyping(userId string, gen uint64) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	if entry, ok := tr.typing[userId]; ok && entry.gen == gen {
		delete(tr.typing, userId)
	}
}

func (tr *Tracker) IsTyping(userId string) bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	_, ok := tr.typing[userId]
	return ok
}

// Stop cancels every pending typing expiry. Used on session teardown.
func (tr *Tracker) Stop() {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	for id, entry := range tr.typing {
		entry.timer.Stop()
		delete(tr.typing, id)
	}
}
