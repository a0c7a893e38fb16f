//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"task-chat/domain"
	"task-chat/domain/event"
)

// ConversationStore is the persistence boundary a chat session depends on.
// The server-side implementation lives in repositories; the client-side one
// talks to the REST surface.
type ConversationStore interface {
	// FetchConversation returns the conversation snapshot (participants,
	// optional task reference, full message history in display order) for a
	// caller that participates in it.
	FetchConversation(ctx context.Context, id domain.ConversationID, callerID string) (*domain.Conversation, error)
	// AppendMessage persists a message and returns the authoritative record:
	// server id, server timestamp, initial status, and the echoed TempID.
	AppendMessage(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error)
}

// RealtimeChannel is the bidirectional push transport scoped to one
// conversation. Inbound events arrive on the channel returned by Subscribe;
// outbound emissions are fire-and-forget from the session's perspective.
type RealtimeChannel interface {
	Subscribe(ctx context.Context, id domain.ConversationID) (<-chan event.DomainEvent, error)
	// EmitSend advertises a locally persisted message to prompt faster
	// propagation. Delivery still flows through the authoritative push.
	EmitSend(ctx context.Context, message domain.Message) error
	// EmitMarkRead emits a read-receipt batch for the given server ids.
	EmitMarkRead(ctx context.Context, cmd domain.MarkReadCommand) error
	// Close tears the subscription down. Idempotent.
	Close() error
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

type IRegistry interface {
	GetSinksForConversation(id domain.ConversationID) []EventSink
	GetSinkForParticipant(participantID string) (EventSink, bool)
	Subscribe(participantID string, id domain.ConversationID, sink EventSink)
	Unsubscribe(participantID string, id domain.ConversationID)
}
