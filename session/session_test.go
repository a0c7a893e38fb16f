package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"task-chat/domain"
	"task-chat/domain/event"
	"task-chat/errors"
)

var (
	alice = domain.Identity{ID: "userA", DisplayName: "Alice"}
	bob   = domain.Identity{ID: "userB", DisplayName: "Bob"}
)

// fakeChannel is a scriptable RealtimeChannel. Its event channel is
// unbuffered so a push returns only once the reducer has taken the event,
// which makes the follow-up Snapshot a deterministic barrier.
type fakeChannel struct {
	mu         sync.Mutex
	events     chan event.DomainEvent
	subscribed int
	closed     int
	markRead   []domain.MarkReadCommand
	sends      []domain.Message
}

func newFakeChannel(buffer int) *fakeChannel {
	return &fakeChannel{events: make(chan event.DomainEvent, buffer)}
}

func (f *fakeChannel) Subscribe(_ context.Context, _ domain.ConversationID) (<-chan event.DomainEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed++
	return f.events, nil
}

func (f *fakeChannel) EmitSend(_ context.Context, message domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, message)
	return nil
}

func (f *fakeChannel) EmitMarkRead(_ context.Context, cmd domain.MarkReadCommand) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markRead = append(f.markRead, cmd)
	return nil
}

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeChannel) push(e event.DomainEvent) {
	f.events <- e
}

func (f *fakeChannel) receipts() []domain.MarkReadCommand {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.MarkReadCommand, len(f.markRead))
	copy(out, f.markRead)
	return out
}

// fakeStore is a scriptable ConversationStore.
type fakeStore struct {
	mu         sync.Mutex
	history    []domain.Message
	fetchErr   error
	fetchGate  chan struct{} // when set, FetchConversation blocks until closed
	appendErr  error
	appendGate chan struct{} // when set, AppendMessage blocks until closed
	appended   []domain.SendMessageCommand
}

func (f *fakeStore) FetchConversation(_ context.Context, id domain.ConversationID, _ string) (*domain.Conversation, error) {
	if f.fetchGate != nil {
		<-f.fetchGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	conv := domain.NewConversation(id, [2]domain.Identity{alice, bob}, nil)
	for _, m := range f.history {
		conv.Append(m)
	}
	return conv, nil
}

func (f *fakeStore) AppendMessage(_ context.Context, cmd domain.SendMessageCommand) (domain.Message, error) {
	if f.appendGate != nil {
		<-f.appendGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return domain.Message{}, f.appendErr
	}
	f.appended = append(f.appended, cmd)
	return domain.Message{
		ID:        fmt.Sprintf("srv-%d", len(f.appended)),
		TempID:    cmd.TempID,
		SenderID:  cmd.SenderID,
		Text:      cmd.Text,
		Status:    domain.StatusSent,
		CreatedAt: cmd.CreatedAt,
	}, nil
}

func waitFailure(t *testing.T, s *Session) SendFailure {
	t.Helper()
	select {
	case failure := <-s.Failures():
		return failure
	case <-time.After(time.Second):
		require.Fail(t, "no send failure surfaced in time")
		return SendFailure{}
	}
}

func TestSession_Open_MarksFetchedHistoryRead(t *testing.T) {
	req := require.New(t)
	store := &fakeStore{history: []domain.Message{
		{ID: "m1", SenderID: "userB", Text: "hi", Status: domain.StatusSent},
		{ID: "m2", SenderID: "userA", Text: "hey", Status: domain.StatusRead},
	}}
	channel := newFakeChannel(0)
	s := New(slog.Default(), store, channel, alice)
	defer s.Close()

	// When userA opens the conversation
	conv, err := s.Open(context.Background(), "conv1")
	req.NoError(err)

	// Then the peer's unread message becomes read locally
	messages := conv.Messages()
	req.Len(messages, 2)
	req.Equal(domain.StatusRead, messages[0].Status)
	req.Equal(domain.StatusRead, messages[1].Status)

	// And exactly one read-receipt batch was emitted for it
	receipts := channel.receipts()
	req.Len(receipts, 1)
	req.Equal(domain.ConversationID("conv1"), receipts[0].ConversationID)
	req.Equal("userA", receipts[0].ReaderID)
	req.Equal([]string{"m1"}, receipts[0].MessageIDs)
}

func TestSession_Open_FetchFailureIsRetriable(t *testing.T) {
	req := require.New(t)
	store := &fakeStore{fetchErr: fmt.Errorf("backend down")}
	channel := newFakeChannel(0)
	s := New(slog.Default(), store, channel, alice)
	defer s.Close()

	_, err := s.Open(context.Background(), "conv1")
	req.Error(err)

	// No partial state is observable after a failed open
	req.Nil(s.Snapshot())

	// Retrying once the backend recovers succeeds
	store.mu.Lock()
	store.fetchErr = nil
	store.mu.Unlock()
	conv, err := s.Open(context.Background(), "conv1")
	req.NoError(err)
	req.Equal(domain.ConversationID("conv1"), conv.ID)
}

func TestSession_Open_RejectsNonParticipant(t *testing.T) {
	req := require.New(t)
	store := &fakeStore{}
	s := New(slog.Default(), store, newFakeChannel(0), domain.Identity{ID: "intruder"})
	defer s.Close()

	_, err := s.Open(context.Background(), "conv1")
	req.ErrorIs(err, errors.ErrNotParticipant)
}

func TestSession_Send_OptimisticThenReconciled(t *testing.T) {
	req := require.New(t)
	store := &fakeStore{}
	channel := newFakeChannel(0)
	s := New(slog.Default(), store, channel, alice)
	defer s.Close()
	_, err := s.Open(context.Background(), "conv1")
	req.NoError(err)

	// When userA sends a message
	tempID, err := s.Send(context.Background(), "hello")
	req.NoError(err)

	// Then the pending entry is immediately visible
	messages := s.Snapshot().Messages()
	req.Len(messages, 1)
	req.Equal(tempID, messages[0].ID)
	req.Equal("hello", messages[0].Text)
	req.Equal(domain.StatusPending, messages[0].Status)

	// When the authoritative echo arrives
	channel.push(event.MessageStored{Conversation: "conv1", Message: domain.Message{
		ID: "srv42", TempID: tempID, SenderID: "userA", Text: "hello", Status: domain.StatusSent,
	}})

	// Then the entry is replaced in place, no net growth
	messages = s.Snapshot().Messages()
	req.Len(messages, 1)
	req.Equal("srv42", messages[0].ID)
	req.Equal(domain.StatusSent, messages[0].Status)

	// And a duplicate echo must not create a second entry
	channel.push(event.MessageStored{Conversation: "conv1", Message: domain.Message{
		ID: "srv42", TempID: tempID, SenderID: "userA", Text: "hello", Status: domain.StatusSent,
	}})
	req.Equal(1, s.Snapshot().Len())
}

func TestSession_Send_RejectsBlankText(t *testing.T) {
	req := require.New(t)
	store := &fakeStore{}
	s := New(slog.Default(), store, newFakeChannel(0), alice)
	defer s.Close()
	_, err := s.Open(context.Background(), "conv1")
	req.NoError(err)

	_, err = s.Send(context.Background(), "  \n\t ")
	req.ErrorIs(err, errors.ErrEmptyMessage)
	req.Equal(0, s.Snapshot().Len())
}

func TestSession_Send_PersistFailureRollsBack(t *testing.T) {
	req := require.New(t)
	store := &fakeStore{appendErr: fmt.Errorf("storage rejected the write")}
	channel := newFakeChannel(0)
	s := New(slog.Default(), store, channel, alice)
	defer s.Close()
	_, err := s.Open(context.Background(), "conv1")
	req.NoError(err)

	tempID, err := s.Send(context.Background(), "hello")
	req.NoError(err)

	// The failed send must visibly disappear, not linger as pending
	failure := waitFailure(t, s)
	req.Equal(tempID, failure.TempID)
	req.Equal("hello", failure.Text)

	for _, m := range s.Snapshot().Messages() {
		req.NotEqual("hello", m.Text)
	}
}

func TestSession_Send_TimesOutWithoutAck(t *testing.T) {
	req := require.New(t)
	store := &fakeStore{appendGate: make(chan struct{})} // never acknowledged
	channel := newFakeChannel(0)
	s := New(slog.Default(), store, channel, alice, WithSendTimeout(20*time.Millisecond))
	defer s.Close()
	_, err := s.Open(context.Background(), "conv1")
	req.NoError(err)

	_, err = s.Send(context.Background(), "hello")
	req.NoError(err)

	failure := waitFailure(t, s)
	req.ErrorIs(failure.Err, errors.ErrSendTimeout)
	req.Equal(0, s.Snapshot().Len())
}

func TestSession_StatusUpdate_HighestWins(t *testing.T) {
	req := require.New(t)
	store := &fakeStore{history: []domain.Message{
		{ID: "srv42", SenderID: "userA", Text: "hello", Status: domain.StatusSent},
	}}
	channel := newFakeChannel(0)
	s := New(slog.Default(), store, channel, alice)
	defer s.Close()
	_, err := s.Open(context.Background(), "conv1")
	req.NoError(err)

	// Given the message was read by the peer
	channel.push(event.StatusUpdated{Conversation: "conv1", MessageID: "srv42", Status: domain.StatusRead})
	// When a stale delivered update arrives afterwards
	channel.push(event.StatusUpdated{Conversation: "conv1", MessageID: "srv42", Status: domain.StatusDelivered})

	// Then the status stays read
	req.Equal(domain.StatusRead, s.Snapshot().Messages()[0].Status)
}

func TestSession_StatusUpdate_BufferedUntilReconciliation(t *testing.T) {
	req := require.New(t)
	store := &fakeStore{}
	channel := newFakeChannel(0)
	s := New(slog.Default(), store, channel, alice)
	defer s.Close()
	_, err := s.Open(context.Background(), "conv1")
	req.NoError(err)

	tempID, err := s.Send(context.Background(), "hello")
	req.NoError(err)

	// Given the read status overtakes the echo on the transport
	channel.push(event.StatusUpdated{Conversation: "conv1", MessageID: "srv42", Status: domain.StatusRead})
	req.Equal(domain.StatusPending, s.Snapshot().Messages()[0].Status)

	// When the echo finally arrives
	channel.push(event.MessageStored{Conversation: "conv1", Message: domain.Message{
		ID: "srv42", TempID: tempID, SenderID: "userA", Text: "hello", Status: domain.StatusSent,
	}})

	// Then the buffered update is re-applied on top of the reconciled entry
	messages := s.Snapshot().Messages()
	req.Equal("srv42", messages[0].ID)
	req.Equal(domain.StatusRead, messages[0].Status)
}

func TestSession_RemoteMessage_ReadReceiptDependsOnForeground(t *testing.T) {
	req := require.New(t)
	store := &fakeStore{}
	channel := newFakeChannel(0)
	s := New(slog.Default(), store, channel, alice, WithInactiveView())
	defer s.Close()
	_, err := s.Open(context.Background(), "conv1")
	req.NoError(err)

	// Given a message arrives while the view is backgrounded
	channel.push(event.MessageStored{Conversation: "conv1", Message: domain.Message{
		ID: "m9", SenderID: "userB", Text: "you there?", Status: domain.StatusSent,
	}})

	// Then it stays delivered and no receipt is emitted
	req.Equal(domain.StatusDelivered, s.Snapshot().Messages()[0].Status)
	req.Empty(channel.receipts())

	// When the view comes to the foreground
	s.SetActive(true)

	// Then the backlog is read-receipted in one batch
	req.Equal(domain.StatusRead, s.Snapshot().Messages()[0].Status)
	receipts := channel.receipts()
	req.Len(receipts, 1)
	req.Equal([]string{"m9"}, receipts[0].MessageIDs)
}

func TestSession_RemoteMessage_ForegroundReadsImmediately(t *testing.T) {
	req := require.New(t)
	store := &fakeStore{}
	channel := newFakeChannel(0)
	s := New(slog.Default(), store, channel, alice)
	defer s.Close()
	_, err := s.Open(context.Background(), "conv1")
	req.NoError(err)

	channel.push(event.MessageStored{Conversation: "conv1", Message: domain.Message{
		ID: "m9", SenderID: "userB", Text: "ping", Status: domain.StatusSent,
	}})

	req.Equal(domain.StatusRead, s.Snapshot().Messages()[0].Status)
	receipts := channel.receipts()
	req.Len(receipts, 1)
	req.Equal([]string{"m9"}, receipts[0].MessageIDs)
}

func TestSession_Close_IsIdempotentAndSilencesLateEvents(t *testing.T) {
	req := require.New(t)
	store := &fakeStore{history: []domain.Message{
		{ID: "m1", SenderID: "userA", Text: "hey", Status: domain.StatusSent},
	}}
	channel := newFakeChannel(1)
	s := New(slog.Default(), store, channel, alice)
	_, err := s.Open(context.Background(), "conv1")
	req.NoError(err)

	s.Close()
	s.Close()

	// A late status update is never consumed nor applied
	channel.push(event.StatusUpdated{Conversation: "conv1", MessageID: "m1", Status: domain.StatusRead})
	req.Equal(domain.StatusSent, s.Snapshot().Messages()[0].Status)

	channel.mu.Lock()
	closed := channel.closed
	channel.mu.Unlock()
	req.GreaterOrEqual(closed, 1)
}

func TestSession_Close_DuringInflightOpen(t *testing.T) {
	req := require.New(t)
	gate := make(chan struct{})
	store := &fakeStore{fetchGate: gate}
	channel := newFakeChannel(0)
	s := New(slog.Default(), store, channel, alice)

	openErr := make(chan error, 1)
	go func() {
		_, err := s.Open(context.Background(), "conv1")
		openErr <- err
	}()

	// Close while the fetch is still in flight, then let it complete
	time.Sleep(10 * time.Millisecond)
	s.Close()
	close(gate)

	select {
	case err := <-openErr:
		req.ErrorIs(err, errors.ErrSessionClosed)
	case <-time.After(time.Second):
		req.Fail("open did not return")
	}
	req.Nil(s.Snapshot())
}

func TestSession_AppendOnly_LengthNeverDecreasesWithoutRollback(t *testing.T) {
	req := require.New(t)
	store := &fakeStore{}
	channel := newFakeChannel(0)
	s := New(slog.Default(), store, channel, alice)
	defer s.Close()
	_, err := s.Open(context.Background(), "conv1")
	req.NoError(err)

	previous := 0
	for i := 0; i < 5; i++ {
		channel.push(event.MessageStored{Conversation: "conv1", Message: domain.Message{
			ID: fmt.Sprintf("m%d", i), SenderID: "userB", Text: "msg", Status: domain.StatusSent,
		}})
		length := s.Snapshot().Len()
		req.GreaterOrEqual(length, previous)
		previous = length
	}
	req.Equal(5, previous)
}
