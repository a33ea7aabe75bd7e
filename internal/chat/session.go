package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/vraj-wappnet/freelance-chat/internal/stats"
	"github.com/vraj-wappnet/freelance-chat/internal/transport"
	"github.com/vraj-wappnet/freelance-chat/internal/types"
)

// deleteFallbackWait is how long a delete waits for its confirming socket
// event before forcing a history refetch.
const deleteFallbackWait = 2 * time.Second

const (
	MetricMessagesSent      = "NumMessagesSent"
	MetricMessagesReceived  = "NumMessagesReceived"
	MetricDuplicatesDropped = "NumDuplicatesDropped"
	MetricMessagesDropped   = "NumMessagesDropped"
	MetricFallbackRefetches = "NumFallbackRefetches"
	MetricTypingEvents      = "NumTypingEvents"
)

// Transport is the outbound half of the socket connection the session
// drives.
type Transport interface {
	JoinConversationRoom(room string) error
	StartConversation(userId, recipientId string) error
	SendMessage(userId string, dto types.CreateMessage) error
	UpdateMessage(userId, messageId string, dto types.MessageUpdate) error
	DeleteMessage(userId, messageId string) error
	Typing(userId, recipientId string) error
}

// MessagingAPI is the subset of the REST client the session needs.
type MessagingAPI interface {
	UsersByRole(ctx context.Context, role types.UserRole) ([]types.User, error)
	Conversation(ctx context.Context, userId, recipientId string) ([]types.Message, error)
	UpdateMessage(ctx context.Context, messageId string, update types.MessageUpdate) (types.Message, error)
	DeleteMessage(ctx context.Context, messageId string) error
}

// Session reconciles the local message timeline against the socket stream
// and the REST API for one authenticated user. Socket events and user
// actions may interleave arbitrarily, which is why every inbound message is
// deduplicated both by id and by temp-entry matching.
type Session struct {
	log   *log.Logger
	self  types.User
	api   MessagingAPI
	tr    Transport
	stats stats.StatsProvider

	Timeline  *Timeline
	Directory *Directory
	Presence  *Tracker

	deleteFallback time.Duration

	mu       sync.Mutex
	selected *types.User
	// pending tracks deletes awaiting their confirming socket event.
	pending map[string]struct{}
	// epoch is bumped on every selection change; a history fetch that
	// finishes under an older epoch is discarded as stale.
	epoch   int
	lastErr string
	notify  func()
}

func NewSession(logger *log.Logger, self types.User, apiClient MessagingAPI, tr Transport, sp stats.StatsProvider) *Session {
	s := &Session{
		log:            logger,
		self:           self,
		api:            apiClient,
		tr:             tr,
		stats:          sp,
		Timeline:       NewTimeline(),
		Directory:      NewDirectory(),
		Presence:       NewTracker(),
		deleteFallback: deleteFallbackWait,
		pending:        make(map[string]struct{}),
	}

	for _, name := range []string{
		MetricMessagesSent,
		MetricMessagesReceived,
		MetricDuplicatesDropped,
		MetricMessagesDropped,
		MetricFallbackRefetches,
		MetricTypingEvents,
	} {
		sp.RegisterMetric(name)
	}

	return s
}

// Self returns the local user summary.
func (s *Session) Self() types.User {
	return s.self
}

// OnChange registers a hook invoked after the session mutates visible
// state. Used by the UI to redraw; may be nil.
func (s *Session) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notify = fn
}

func (s *Session) changed() {
	s.mu.Lock()
	fn := s.notify
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Err returns the current user-visible error message, empty when healthy.
func (s *Session) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Session) setError(msg string) {
	s.log.Print(msg)
	s.mu.Lock()
	s.lastErr = msg
	s.mu.Unlock()
	s.changed()
}

func (s *Session) clearError() {
	s.mu.Lock()
	s.lastErr = ""
	s.mu.Unlock()
}

// Selected returns the counterpart of the open conversation, if any.
func (s *Session) Selected() (types.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return types.User{}, false
	}
	return *s.selected, true
}

// LoadCounterparts fetches the role-complementary user listing into the
// directory. A fetch failure surfaces an error and leaves the directory as
// it was.
func (s *Session) LoadCounterparts(ctx context.Context) ([]types.User, error) {
	users, err := s.api.UsersByRole(ctx, s.self.Role.Counterpart())
	if err != nil {
		s.setError(fmt.Sprintf("failed to fetch users: %v", err))
		return nil, err
	}

	s.Directory.SetUsers(users)
	s.clearError()
	s.changed()
	return users, nil
}

// SelectConversation opens the conversation with the given counterpart: the
// previous timeline is cleared, the shared room is joined, the counterpart
// is told a conversation started, and history is fetched over HTTP.
func (s *Session) SelectConversation(ctx context.Context, counterpartId string) error {
	counterpart, ok := s.Directory.Get(counterpartId)
	if !ok {
		return fmt.Errorf("unknown user %q", counterpartId)
	}

	s.mu.Lock()
	s.selected = &counterpart
	s.epoch++
	epoch := s.epoch
	s.mu.Unlock()

	s.Timeline.ReplaceAll(nil)
	s.Directory.MarkActive(counterpart.Id)

	room := ConversationRoom(s.self.Id, counterpart.Id)
	if err := s.tr.JoinConversationRoom(room); err != nil {
		s.log.Printf("join room %s: %v", room, err)
	}
	if err := s.tr.StartConversation(s.self.Id, counterpart.Id); err != nil {
		s.log.Printf("start conversation with %s: %v", counterpart.Id, err)
	}

	s.fetchHistory(ctx, counterpart.Id, epoch)
	return nil
}

// RefetchHistory reloads the open conversation's history from the API.
// Safe to call at any time; it is the recovery path for every suspect
// local state.
func (s *Session) RefetchHistory(ctx context.Context) {
	s.mu.Lock()
	if s.selected == nil {
		s.mu.Unlock()
		return
	}
	recipientId := s.selected.Id
	epoch := s.epoch
	s.mu.Unlock()

	s.fetchHistory(ctx, recipientId, epoch)
}

func (s *Session) fetchHistory(ctx context.Context, recipientId string, epoch int) {
	msgs, err := s.api.Conversation(ctx, s.self.Id, recipientId)
	if err != nil {
		// The previous timeline stays on screen.
		s.setError(fmt.Sprintf("failed to fetch messages: %v", err))
		return
	}

	s.mu.Lock()
	stale := epoch != s.epoch
	s.mu.Unlock()
	if stale {
		s.log.Printf("discarding stale history fetch for %s", recipientId)
		return
	}

	s.Timeline.ReplaceAll(msgs)
	s.clearError()
	s.changed()
}

// Send appends an optimistic message and emits it over the socket. There is
// no HTTP call here: the confirmed copy arrives later as a receiveMessage
// event and replaces the temporary entry.
func (s *Session) Send(content string) (types.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return types.Message{}, errors.New("message content is empty")
	}

	recipient, ok := s.Selected()
	if !ok {
		return types.Message{}, errors.New("no conversation selected")
	}

	temp := types.Message{
		Id:          NewTempId(),
		Content:     content,
		SenderId:    s.self.Id,
		RecipientId: recipient.Id,
		CreatedAt:   time.Now().UTC(),
		Sender:      s.self,
		Recipient:   recipient,
	}

	// Append before emitting: the confirming receiveMessage is dispatched
	// from the read loop and may land while the emit is still in flight, and
	// it must find the temp entry to replace.
	s.Timeline.AppendOptimistic(temp)

	if err := s.tr.SendMessage(s.self.Id, types.CreateMessage{Content: content, RecipientId: recipient.Id}); err != nil {
		s.Timeline.RemoveById(temp.Id)
		return types.Message{}, fmt.Errorf("send message: %w", err)
	}

	s.stats.Incr(MetricMessagesSent)
	s.changed()
	return temp, nil
}

// Edit applies an edit through the API first and only then notifies the
// peer over the socket, so the authoritative store and the live peer stay
// together. An API failure abandons the edit and refetches history instead
// of trusting the local copy.
func (s *Session) Edit(ctx context.Context, messageId, content string) error {
	update := types.MessageUpdate{Content: strings.TrimSpace(content)}

	if _, err := s.api.UpdateMessage(ctx, messageId, update); err != nil {
		s.log.Printf("update message %s: %v", messageId, err)
		s.RefetchHistory(ctx)
		return err
	}

	if err := s.tr.UpdateMessage(s.self.Id, messageId, update); err != nil {
		s.log.Printf("emit updateMessage for %s: %v", messageId, err)
	}
	return nil
}

// Delete removes the message optimistically, deletes it through the API,
// notifies the peer, and arms a fallback that refetches history if the
// confirming socket event never lands. An API failure also refetches: the
// server is authoritative, so the optimistic removal is not blindly undone.
func (s *Session) Delete(ctx context.Context, messageId string) error {
	s.Timeline.RemoveById(messageId)
	s.changed()

	if err := s.api.DeleteMessage(ctx, messageId); err != nil {
		s.log.Printf("delete message %s: %v", messageId, err)
		s.RefetchHistory(ctx)
		return err
	}

	// Register before emitting so a confirmation dispatched while the emit
	// is in flight finds the record to clear.
	s.mu.Lock()
	s.pending[messageId] = struct{}{}
	s.mu.Unlock()

	if err := s.tr.DeleteMessage(s.self.Id, messageId); err != nil {
		s.log.Printf("emit deleteMessage for %s: %v", messageId, err)
	}

	s.armDeleteFallback(messageId)
	return nil
}

// armDeleteFallback schedules the missed-event check for a delete. When the
// timer fires and the confirming socket event has not arrived, or the
// message somehow reappeared, history is refetched to restore ground truth.
// The refetch is idempotent and epoch-checked, so firing after a selection
// change is harmless.
func (s *Session) armDeleteFallback(messageId string) {
	time.AfterFunc(s.deleteFallback, func() {
		s.mu.Lock()
		_, unconfirmed := s.pending[messageId]
		delete(s.pending, messageId)
		s.mu.Unlock()

		if !unconfirmed && !s.Timeline.Contains(messageId) {
			return
		}

		s.log.Printf("delete confirmation for %s never arrived, refetching", messageId)
		s.stats.Incr(MetricFallbackRefetches)
		s.RefetchHistory(context.Background())
	})
}

// Typing broadcasts a typing signal for the open conversation. Called per
// keystroke by the composer; the receiver owns expiry.
func (s *Session) Typing() {
	recipient, ok := s.Selected()
	if !ok {
		return
	}
	if err := s.tr.Typing(s.self.Id, recipient.Id); err != nil {
		s.log.Printf("emit typing: %v", err)
	}
}

// Close releases session-owned timers.
func (s *Session) Close() {
	s.Presence.Stop()
}

// HandleConnect implements transport.EventHandler. Presence announcement is
// the transport's job; the session just clears any stale connectivity
// error.
func (s *Session) HandleConnect() {
	s.clearError()
	s.changed()
}

// HandleConnectionError surfaces connectivity failures without tearing down
// any conversation state.
func (s *Session) HandleConnectionError(err error) {
	s.setError(fmt.Sprintf("failed to connect to messaging service: %v", err))
}

// HandleConversationStarted joins the initiator's room and marks the
// conversation active. When nothing is open yet, the conversation with the
// initiator is opened automatically. An initiator missing from the
// directory is ignored: counterpart data is a prerequisite for display.
func (s *Session) HandleConversationStarted(ev transport.ConversationStarted) {
	initiator, ok := s.Directory.Get(ev.InitiatorId)
	if !ok {
		s.log.Printf("conversationStarted from unknown user %q, ignoring", ev.InitiatorId)
		return
	}

	room := ConversationRoom(s.self.Id, initiator.Id)
	if err := s.tr.JoinConversationRoom(room); err != nil {
		s.log.Printf("join room %s: %v", room, err)
	}
	s.Directory.MarkActive(initiator.Id)

	s.mu.Lock()
	autoOpen := s.selected == nil
	var epoch int
	if autoOpen {
		s.selected = &initiator
		s.epoch++
		epoch = s.epoch
	}
	s.mu.Unlock()

	if autoOpen {
		s.fetchHistory(context.Background(), initiator.Id, epoch)
	}
	s.changed()
}

// HandleReceiveMessage reconciles an inbound message into the timeline when
// it belongs to the open conversation. Messages for other counterparts are
// dropped from the live view.
// TODO: track unread counts for conversations that are not selected instead
// of dropping their messages.
func (s *Session) HandleReceiveMessage(msg types.Message) {
	otherId := msg.SenderId
	if otherId == s.self.Id {
		otherId = msg.RecipientId
	}

	selected, open := s.Selected()
	if !s.Directory.IsActive(otherId) || !open || selected.Id != otherId {
		s.stats.Incr(MetricMessagesDropped)
		return
	}

	switch s.Timeline.ReconcileIncoming(msg) {
	case ReconcileDuplicate:
		s.stats.Incr(MetricDuplicatesDropped)
	default:
		s.stats.Incr(MetricMessagesReceived)
		s.changed()
	}
}

// HandleMessageUpdated applies an edit when the message belongs to the open
// conversation in either direction.
func (s *Session) HandleMessageUpdated(msg types.Message) {
	selected, open := s.Selected()
	if !open {
		return
	}

	sameConversation := (msg.SenderId == s.self.Id && msg.RecipientId == selected.Id) ||
		(msg.SenderId == selected.Id && msg.RecipientId == s.self.Id)
	if !sameConversation {
		return
	}

	if s.Timeline.ApplyUpdate(msg) {
		s.changed()
	}
}

// HandleMessageDeleted removes the message unconditionally; removing an id
// that is already gone is a no-op. The event also confirms a locally issued
// delete, disarming its fallback.
func (s *Session) HandleMessageDeleted(ev transport.MessageDeleted) {
	s.mu.Lock()
	delete(s.pending, ev.MessageId)
	s.mu.Unlock()

	if s.Timeline.RemoveById(ev.MessageId) {
		s.changed()
	}
}

// HandleTyping sets the sender's typing flag; the tracker clears it after
// the window unless another event refreshes it.
func (s *Session) HandleTyping(ev transport.Typing) {
	s.Presence.MarkTyping(ev.UserId)
	s.stats.Incr(MetricTypingEvents)
	s.changed()
}

// HandleUserStatus records advisory presence for the counterpart. Going
// offline stamps a last-seen time for the directory listing.
func (s *Session) HandleUserStatus(ev transport.UserStatus) {
	s.Presence.SetStatus(ev.UserId, ev.Status)
	if ev.Status == types.StatusOffline {
		s.Presence.SetLastSeen(ev.UserId, time.Now().Format(time.Kitchen))
	}
	s.changed()
}
