package test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"task-chat/contract"
	"task-chat/domain"
	"task-chat/domain/event"
	"task-chat/observability"
	"task-chat/projection"
	"task-chat/repositories"
	"task-chat/runtime"
	"task-chat/runtime/workers"
	"task-chat/services"
	"task-chat/session"
)

// inProcessStore adapts the chat service to the session's store contract,
// bypassing the REST surface.
type inProcessStore struct {
	chat services.IChatService
}

func (s inProcessStore) FetchConversation(_ context.Context, id domain.ConversationID, callerID string) (*domain.Conversation, error) {
	return s.chat.GetConversation(id, callerID)
}

func (s inProcessStore) AppendMessage(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error) {
	return s.chat.Append(ctx, cmd)
}

// inProcessChannel adapts the chat service to the session's realtime
// contract: Subscribe registers a sink on the registry, emissions go straight
// to the command pipeline.
type inProcessChannel struct {
	chat services.IChatService
	self domain.Identity

	mu     sync.Mutex
	id     domain.ConversationID
	events chan event.DomainEvent
	closed bool
}

type chanSink struct {
	events chan<- event.DomainEvent
}

func (c chanSink) Consume(_ context.Context, e event.DomainEvent) error {
	c.events <- e
	return nil
}

func (c *inProcessChannel) Subscribe(_ context.Context, id domain.ConversationID) (<-chan event.DomainEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.id = id
	c.events = make(chan event.DomainEvent, 64)
	if err := c.chat.Attach(c.self.ID, id, chanSink{events: c.events}); err != nil {
		return nil, err
	}
	return c.events, nil
}

func (c *inProcessChannel) EmitSend(_ context.Context, _ domain.Message) error {
	// Propagation already happened through the fanout when the append
	// persisted; there is no faster path in-process.
	return nil
}

func (c *inProcessChannel) EmitMarkRead(_ context.Context, cmd domain.MarkReadCommand) error {
	return c.chat.MarkRead(cmd)
}

func (c *inProcessChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.chat.Detach(c.self.ID, c.id)
	return nil
}

var _ contract.ConversationStore = inProcessStore{}
var _ contract.RealtimeChannel = (*inProcessChannel)(nil)

type world struct {
	chat     services.IChatService
	timeline *projection.Timeline
	log      *slog.Logger
	config   Config
}

func newWorld(t *testing.T) *world {
	t.Helper()
	req := require.New(t)

	config, err := LoadConfig()
	req.NoError(err)

	// Reduced to 16 Mo for testing (avoid 20 Go of storage)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	req.NoError(err)

	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	supervisor := workers.NewSupervisor(log)
	registry := runtime.NewRegistry()
	monitor := observability.NewMonitor(log)
	messageRepository := repositories.NewMessageRepository(db, log, lo.ToPtr(100))
	conversationRepository := repositories.NewConversationRepository(db)

	hub := runtime.NewHub(log, supervisor, registry,
		messageRepository, conversationRepository, monitor,
		4, 256, 500*time.Millisecond, '*')

	timeline := projection.NewTimeline()
	hub.Add(timeline)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_ = hub.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		hub.Stop()
		_ = db.Close()
	})

	return &world{
		chat:     services.NewChatService(hub, nil),
		timeline: timeline,
		log:      log,
		config:   config,
	}
}

func (w *world) openSession(t *testing.T, self domain.Identity,
	id domain.ConversationID, opts ...session.Option) *session.Session {
	t.Helper()
	s := session.New(w.log,
		inProcessStore{chat: w.chat},
		&inProcessChannel{chat: w.chat, self: self},
		self, opts...)
	_, err := s.Open(context.Background(), id)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func Test_Scenario_SendIsDeliveredAndRead(t *testing.T) {
	req := require.New(t)
	w := newWorld(t)

	alice := domain.Identity{ID: "alice-id", DisplayName: "Alice"}
	bob := domain.Identity{ID: "bob-id", DisplayName: "Bob"}

	// Given a conversation with both sessions open in the foreground
	disk, err := w.chat.EnsureConversation(alice, bob,
		&domain.TaskRef{ID: "task-1", Title: "Fix my sink"})
	req.NoError(err)

	aliceSession := w.openSession(t, alice, disk.ID)
	bobSession := w.openSession(t, bob, disk.ID)

	// When alice sends a message
	tempID, err := aliceSession.Send(context.Background(), "Can you start Monday?")
	req.NoError(err)
	req.NotEmpty(tempID)

	// Then bob receives it and, being foregrounded, reads it immediately
	req.Eventually(func() bool {
		snapshot := bobSession.Snapshot()
		if snapshot == nil || snapshot.Len() != 1 {
			return false
		}
		last, _ := snapshot.Last()
		return last.Text == "Can you start Monday?" && last.Status == domain.StatusRead
	}, w.config.EventuallyTimeout, w.config.PollInterval, "bob never read the message")

	// And alice's optimistic entry reconciles to the read authoritative record
	req.Eventually(func() bool {
		snapshot := aliceSession.Snapshot()
		if snapshot == nil || snapshot.Len() != 1 {
			return false
		}
		last, _ := snapshot.Last()
		return last.Acknowledged() && last.Status == domain.StatusRead
	}, w.config.EventuallyTimeout, w.config.PollInterval, "alice never saw the read receipt")

	// And the timeline preview follows the stream
	req.Eventually(func() bool {
		preview, ok := w.timeline.GetPreview(disk.ID)
		return ok && preview.LastMessage.Text == "Can you start Monday?"
	}, w.config.EventuallyTimeout, w.config.PollInterval, "timeline never caught up")
}

func Test_Scenario_ModerationMasksBlockedTerms(t *testing.T) {
	req := require.New(t)
	w := newWorld(t)

	alice := domain.Identity{ID: "alice-id", DisplayName: "Alice"}
	bob := domain.Identity{ID: "bob-id", DisplayName: "Bob"}

	disk, err := w.chat.EnsureConversation(alice, bob, nil)
	req.NoError(err)

	aliceSession := w.openSession(t, alice, disk.ID)
	bobSession := w.openSession(t, bob, disk.ID)

	// When alice tries to take the deal off the platform
	_, err = aliceSession.Send(context.Background(), "pay me via paypal instead")
	req.NoError(err)

	// Then bob receives the masked text, never the raw one
	req.Eventually(func() bool {
		snapshot := bobSession.Snapshot()
		if snapshot == nil || snapshot.Len() != 1 {
			return false
		}
		last, _ := snapshot.Last()
		return last.Text == "pay me via ****** instead"
	}, w.config.EventuallyTimeout, w.config.PollInterval, "blocked term was never masked")
}

func Test_Scenario_BackgroundSessionStaysDelivered(t *testing.T) {
	req := require.New(t)
	w := newWorld(t)

	alice := domain.Identity{ID: "alice-id", DisplayName: "Alice"}
	bob := domain.Identity{ID: "bob-id", DisplayName: "Bob"}

	disk, err := w.chat.EnsureConversation(alice, bob, nil)
	req.NoError(err)

	aliceSession := w.openSession(t, alice, disk.ID)
	bobSession := w.openSession(t, bob, disk.ID, session.WithInactiveView())

	// When alice sends while bob's view is backgrounded
	_, err = aliceSession.Send(context.Background(), "Are you there?")
	req.NoError(err)

	// Then bob holds the message at delivered, no read receipt is emitted
	req.Eventually(func() bool {
		snapshot := bobSession.Snapshot()
		if snapshot == nil || snapshot.Len() != 1 {
			return false
		}
		last, _ := snapshot.Last()
		return last.Status == domain.StatusDelivered
	}, w.config.EventuallyTimeout, w.config.PollInterval, "bob never held the message at delivered")

	// When bob foregrounds the view
	bobSession.SetActive(true)

	// Then the receipt batch goes out and alice sees read
	req.Eventually(func() bool {
		snapshot := aliceSession.Snapshot()
		if snapshot == nil || snapshot.Len() != 1 {
			return false
		}
		last, _ := snapshot.Last()
		return last.Status == domain.StatusRead
	}, w.config.EventuallyTimeout, w.config.PollInterval, "alice never saw the read receipt")
}
