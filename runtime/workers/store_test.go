package workers

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"task-chat/domain"
	"task-chat/domain/event"
	"task-chat/repositories"
)

func newStoreFixture(t *testing.T) (*StoreWorker, chan event.DomainEvent, chan event.DomainEvent) {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	sanitized := make(chan event.DomainEvent, 8)
	domainEvents := make(chan event.DomainEvent, 8)
	repo := repositories.NewMessageRepository(db, slog.Default(), nil)
	return NewStoreWorker(repo, sanitized, domainEvents, slog.Default()), sanitized, domainEvents
}

func TestStoreWorker_Assigns_Id_And_Echoes_TempId(t *testing.T) {
	req := require.New(t)
	worker, sanitized, domainEvents := newStoreFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	// When a posted message reaches the store stage
	sanitized <- event.MessagePosted{
		Conversation: "conv-1",
		Message: domain.Message{
			TempID:    "tmp-1",
			SenderID:  "alice",
			Text:      "hello",
			Status:    domain.StatusPending,
			CreatedAt: time.Now().UTC(),
		},
	}

	// Then the authoritative record carries a server id, sent status,
	// and the client's TempID for reconciliation
	select {
	case e := <-domainEvents:
		stored, ok := e.(event.MessageStored)
		req.True(ok)
		req.NotEmpty(stored.Message.ID)
		req.Equal("tmp-1", stored.Message.TempID)
		req.Equal(domain.StatusSent, stored.Message.Status)
	case <-time.After(1 * time.Second):
		req.Fail("No stored event received")
	}
}

func TestStoreWorker_Merges_Status_Highest_Wins(t *testing.T) {
	req := require.New(t)
	worker, sanitized, domainEvents := newStoreFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	sanitized <- event.MessagePosted{
		Conversation: "conv-1",
		Message:      domain.Message{TempID: "tmp-1", SenderID: "alice", Text: "hello", CreatedAt: time.Now().UTC()},
	}
	stored := (<-domainEvents).(event.MessageStored)

	// When read arrives before a late delivered
	sanitized <- event.StatusRequested{
		Conversation: "conv-1", MessageIDs: []string{stored.Message.ID}, Status: domain.StatusRead,
	}
	sanitized <- event.StatusRequested{
		Conversation: "conv-1", MessageIDs: []string{stored.Message.ID}, Status: domain.StatusDelivered,
	}

	first := (<-domainEvents).(event.StatusUpdated)
	second := (<-domainEvents).(event.StatusUpdated)

	// Then the merged status never downgrades
	req.Equal(domain.StatusRead, first.Status)
	req.Equal(domain.StatusRead, second.Status)
}

func TestStoreWorker_Drops_Status_For_Unknown_Message(t *testing.T) {
	req := require.New(t)
	worker, sanitized, domainEvents := newStoreFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	sanitized <- event.StatusRequested{
		Conversation: "conv-1", MessageIDs: []string{"ghost"}, Status: domain.StatusRead,
	}
	// A valid message afterwards proves the worker survived the unknown id
	sanitized <- event.MessagePosted{
		Conversation: "conv-1",
		Message:      domain.Message{TempID: "tmp-2", SenderID: "bob", Text: "still alive", CreatedAt: time.Now().UTC()},
	}

	select {
	case e := <-domainEvents:
		stored, ok := e.(event.MessageStored)
		req.True(ok, "unknown status should be dropped, not forwarded")
		req.Equal("tmp-2", stored.Message.TempID)
	case <-time.After(1 * time.Second):
		req.Fail("No event received")
	}
}
