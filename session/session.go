// Package session owns the lifecycle of one open conversation view:
// initial load, live updates, outgoing sends with optimistic entries, and
// delivery-status reconciliation.
//
// A Session runs a single reducer goroutine that consumes user actions and
// transport events from ordered channels. Each handler runs to completion
// before the next is processed, so no locks guard the conversation state.
package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"task-chat/contract"
	"task-chat/domain"
	"task-chat/domain/event"
	"task-chat/errors"
)

const (
	defaultSendTimeout      = 30 * time.Second
	defaultStatusBufferSize = 64
	failureBufferSize       = 16
)

// SendFailure reports a rolled-back optimistic send. The entry is already
// removed from the sequence when the failure is published; the view layer
// decides how to present it.
type SendFailure struct {
	TempID string
	Text   string
	Err    error
}

type Option func(*Session)

// WithSendTimeout bounds how long an optimistic message may stay pending
// without a server acknowledgement before it is rolled back.
func WithSendTimeout(d time.Duration) Option {
	return func(s *Session) { s.sendTimeout = d }
}

// WithClock overrides the timestamp source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithStatusBufferSize bounds how many unmatched status updates are kept
// while waiting for reconciliation.
func WithStatusBufferSize(n int) Option {
	return func(s *Session) { s.statusBufferCap = n }
}

// WithInactiveView starts the session in background mode: incoming messages
// stay delivered instead of being read-receipted immediately.
func WithInactiveView() Option {
	return func(s *Session) { s.active = false }
}

type Session struct {
	log     *slog.Logger
	store   contract.ConversationStore
	channel contract.RealtimeChannel
	self    domain.Identity

	sendTimeout     time.Duration
	statusBufferCap int
	now             func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	alive  bool
	opened bool

	ops      chan func()
	done     chan struct{}
	loopDone chan struct{}

	// State below is owned by the reducer goroutine once the session is open.
	conv         *domain.Conversation
	active       bool
	inflight     map[string]*time.Timer
	statusBuffer map[string]domain.Status
	statusOrder  []string

	failures chan SendFailure
}

func New(log *slog.Logger, store contract.ConversationStore,
	channel contract.RealtimeChannel, self domain.Identity, opts ...Option) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		log:             log,
		store:           store,
		channel:         channel,
		self:            self,
		sendTimeout:     defaultSendTimeout,
		statusBufferCap: defaultStatusBufferSize,
		now:             func() time.Time { return time.Now().UTC() },
		ctx:             ctx,
		cancel:          cancel,
		alive:           true,
		active:          true,
		ops:             make(chan func()),
		done:            make(chan struct{}),
		loopDone:        make(chan struct{}),
		inflight:        make(map[string]*time.Timer),
		statusBuffer:    make(map[string]domain.Status),
		failures:        make(chan SendFailure, failureBufferSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Failures delivers rolled-back sends. The channel is buffered; the session
// drops (and logs) failures nobody reads rather than stalling the reducer.
func (s *Session) Failures() <-chan SendFailure {
	return s.failures
}

// Open fetches the conversation snapshot, subscribes to the realtime channel
// and starts the reducer. Messages of the fetched history that were not
// authored by the caller and not already read are marked read, and one
// read-receipt batch is emitted for them.
//
// Open is safe to retry after a failure; an already-open session returns its
// current snapshot.
func (s *Session) Open(ctx context.Context, id domain.ConversationID) (*domain.Conversation, error) {
	s.mu.Lock()
	if !s.alive {
		s.mu.Unlock()
		return nil, errors.ErrSessionClosed
	}
	if s.opened {
		s.mu.Unlock()
		return s.snapshot()
	}
	s.mu.Unlock()

	conv, err := s.store.FetchConversation(ctx, id, s.self.ID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(s.self.ID) {
		return nil, errors.ErrNotParticipant
	}

	events, err := s.channel.Subscribe(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if !s.alive {
		// Closed while the fetch was in flight: discard everything, the
		// torn-down view must not observe any state.
		s.mu.Unlock()
		_ = s.channel.Close()
		return nil, errors.ErrSessionClosed
	}
	s.conv = conv
	s.opened = true
	s.mu.Unlock()

	if s.active {
		s.markLocalRead(conv.Unread(s.self.ID))
	}

	go s.loop(events)
	return conv.Clone(), nil
}

// Send synchronously appends an optimistic pending entry and returns its
// temporary id, then persists asynchronously. On persistence failure or
// timeout the entry is rolled back and the failure published on Failures.
// The text must be non-empty after trimming; it is transmitted verbatim.
func (s *Session) Send(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", errors.ErrEmptyMessage
	}

	s.mu.Lock()
	if !s.alive || !s.opened {
		s.mu.Unlock()
		return "", errors.ErrSessionClosed
	}
	convID := s.conv.ID
	s.mu.Unlock()

	tempID := domain.NewTempID()
	msg := domain.Message{
		ID:        tempID,
		TempID:    tempID,
		SenderID:  s.self.ID,
		Text:      text,
		Status:    domain.StatusPending,
		CreatedAt: s.now(),
	}
	cmd := domain.SendMessageCommand{
		ConversationID: convID,
		TempID:         tempID,
		SenderID:       s.self.ID,
		Text:           text,
		CreatedAt:      msg.CreatedAt,
	}

	appended := s.dispatchWait(func() {
		s.conv.Append(msg)
		s.inflight[tempID] = time.AfterFunc(s.sendTimeout, func() {
			s.dispatch(func() { s.rollback(tempID, text, errors.ErrSendTimeout) })
		})
	})
	if !appended {
		return "", errors.ErrSessionClosed
	}

	go s.persist(ctx, cmd)
	return tempID, nil
}

func (s *Session) persist(ctx context.Context, cmd domain.SendMessageCommand) {
	stored, err := s.store.AppendMessage(ctx, cmd)
	if err != nil {
		s.dispatch(func() { s.rollback(cmd.TempID, cmd.Text, err) })
		return
	}

	s.dispatch(func() {
		// Acknowledged: disarm the rollback timer. Reconciliation itself
		// happens when the authoritative push arrives.
		if timer, ok := s.inflight[cmd.TempID]; ok {
			timer.Stop()
			delete(s.inflight, cmd.TempID)
		}
		if err := s.channel.EmitSend(s.ctx, stored); err != nil {
			s.log.Debug("send advisory not emitted", "temp_id", cmd.TempID, "error", err)
		}
	})
}

// MarkRead marks the given server ids read locally and emits one
// read-receipt batch. Fire-and-forget: the status of the sender's copy comes
// back asynchronously as a status update.
func (s *Session) MarkRead(messageIDs []string) {
	if len(messageIDs) == 0 || !s.isOpen() {
		return
	}
	s.dispatch(func() { s.markLocalRead(messageIDs) })
}

// SetActive flips the foreground flag. On a transition to foreground, every
// message that stayed delivered while the view was backgrounded is
// read-receipted in one batch.
func (s *Session) SetActive(active bool) {
	if !s.isOpen() {
		return
	}
	s.dispatch(func() {
		wasActive := s.active
		s.active = active
		if active && !wasActive {
			s.markLocalRead(s.conv.Unread(s.self.ID))
		}
	})
}

// Snapshot returns a copy of the conversation for rendering, or nil when the
// session was never opened.
func (s *Session) Snapshot() *domain.Conversation {
	conv, err := s.snapshot()
	if err != nil {
		return nil
	}
	return conv
}

func (s *Session) snapshot() (*domain.Conversation, error) {
	s.mu.Lock()
	opened := s.opened
	s.mu.Unlock()
	if !opened {
		return nil, errors.ErrSessionClosed
	}

	var clone *domain.Conversation
	if s.dispatchWait(func() { clone = s.conv.Clone() }) {
		return clone, nil
	}
	// Reducer already stopped: its goroutine exit orders all state writes
	// before loopDone, so reading directly is safe here.
	<-s.loopDone
	return s.conv.Clone(), nil
}

func (s *Session) isOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alive && s.opened
}

// Close unsubscribes from the realtime channel and stops the reducer.
// Idempotent; in-flight operations completing afterwards are no-ops.
func (s *Session) Close() {
	s.mu.Lock()
	if !s.alive {
		s.mu.Unlock()
		return
	}
	s.alive = false
	opened := s.opened
	s.mu.Unlock()

	close(s.done)
	s.cancel()
	if opened {
		<-s.loopDone
		for _, timer := range s.inflight {
			timer.Stop()
		}
	}
	if err := s.channel.Close(); err != nil {
		s.log.Debug("realtime channel close", "error", err)
	}
}

func (s *Session) loop(events <-chan event.DomainEvent) {
	defer close(s.loopDone)
	for {
		select {
		case <-s.done:
			return
		case op := <-s.ops:
			op()
		case evt, ok := <-events:
			if !ok {
				// Transport gone. Local data stays; the caller may Close
				// and reopen to resubscribe.
				s.log.Warn("realtime channel disconnected", "conversation", s.conv.ID)
				events = nil
				continue
			}
			s.handleEvent(evt)
		}
	}
}

func (s *Session) dispatch(op func()) bool {
	select {
	case s.ops <- op:
		return true
	case <-s.done:
		return false
	}
}

func (s *Session) dispatchWait(op func()) bool {
	ran := make(chan struct{})
	if !s.dispatch(func() {
		op()
		close(ran)
	}) {
		return false
	}
	select {
	case <-ran:
		return true
	case <-s.done:
		return false
	}
}

func (s *Session) handleEvent(evt event.DomainEvent) {
	switch e := evt.(type) {
	case event.MessageStored:
		s.onMessageStored(e.Message)
	case event.StatusUpdated:
		s.onStatusUpdated(e.MessageID, e.Status)
	default:
		s.log.Debug("unhandled realtime event", "conversation", evt.ConversationID())
	}
}

// onMessageStored merges an authoritative push into the local sequence.
// Own echoes reconcile the matching optimistic entry in place; everything
// else appends in arrival order. Duplicate pushes only merge status.
func (s *Session) onMessageStored(msg domain.Message) {
	if s.conv.ApplyStatus(msg.ID, msg.Status) {
		// Already present by server id: duplicate push.
		return
	}

	if msg.SenderID == s.self.ID {
		if timer, ok := s.inflight[msg.TempID]; ok {
			timer.Stop()
			delete(s.inflight, msg.TempID)
		}
		reconciled := msg.TempID != "" && s.conv.Reconcile(msg.TempID, msg)
		if !reconciled {
			reconciled = s.conv.ReconcileByText(s.self.ID, msg.Text, msg)
		}
		if !reconciled {
			// No pending match, e.g. sent from another device or tab.
			s.conv.Append(msg)
		}
		s.flushBufferedStatus(msg.ID)
		return
	}

	s.conv.Append(msg)
	s.flushBufferedStatus(msg.ID)
	if s.active {
		s.markLocalRead([]string{msg.ID})
	} else {
		s.conv.ApplyStatus(msg.ID, domain.StatusDelivered)
	}
}

// onStatusUpdated applies highest-wins by server id. Updates for ids not
// known yet (reconciliation has not happened) are buffered and re-applied
// once the id appears; the buffer is bounded, overflow drops the oldest
// entry, which is acceptable since authoritative state lives server-side.
func (s *Session) onStatusUpdated(messageID string, status domain.Status) {
	if !status.Valid() {
		s.log.Debug("ignoring malformed status update", "message_id", messageID)
		return
	}
	if s.conv.ApplyStatus(messageID, status) {
		return
	}
	if current, ok := s.statusBuffer[messageID]; ok {
		s.statusBuffer[messageID] = current.Merge(status)
		return
	}
	if len(s.statusOrder) >= s.statusBufferCap {
		oldest := s.statusOrder[0]
		s.statusOrder = s.statusOrder[1:]
		delete(s.statusBuffer, oldest)
	}
	s.statusBuffer[messageID] = status
	s.statusOrder = append(s.statusOrder, messageID)
}

func (s *Session) flushBufferedStatus(messageID string) {
	status, ok := s.statusBuffer[messageID]
	if !ok {
		return
	}
	delete(s.statusBuffer, messageID)
	for i, id := range s.statusOrder {
		if id == messageID {
			s.statusOrder = append(s.statusOrder[:i], s.statusOrder[i+1:]...)
			break
		}
	}
	s.conv.ApplyStatus(messageID, status)
}

// markLocalRead sets the local copies read and emits one receipt batch.
func (s *Session) markLocalRead(messageIDs []string) {
	if len(messageIDs) == 0 {
		return
	}
	for _, id := range messageIDs {
		s.conv.ApplyStatus(id, domain.StatusRead)
	}
	cmd := domain.MarkReadCommand{
		ConversationID: s.conv.ID,
		ReaderID:       s.self.ID,
		MessageIDs:     messageIDs,
	}
	if err := s.channel.EmitMarkRead(s.ctx, cmd); err != nil {
		s.log.Debug("read receipt not emitted", "conversation", s.conv.ID, "error", err)
	}
}

// rollback removes the optimistic entry and publishes the failure. A
// rollback that lost the race against reconciliation or acknowledgement is
// a no-op.
func (s *Session) rollback(tempID, text string, cause error) {
	if timer, ok := s.inflight[tempID]; ok {
		timer.Stop()
		delete(s.inflight, tempID)
	} else if cause == errors.ErrSendTimeout {
		// Timer fired after the acknowledgement disarmed it.
		return
	}
	if !s.conv.Rollback(tempID) {
		return
	}
	failure := SendFailure{TempID: tempID, Text: text, Err: cause}
	select {
	case s.failures <- failure:
	default:
		s.log.Warn("send failure dropped, nobody is reading", "temp_id", tempID, "error", cause)
	}
}
