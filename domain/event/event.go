package event

import (
	"task-chat/domain"
)

type DomainEvent interface {
	ConversationID() domain.ConversationID
}

// AppendResult carries the outcome of persisting one posted message back to
// a synchronous caller.
type AppendResult struct {
	Message domain.Message
	Err     error
}

// MessagePosted is the raw sending intent accepted by the hub,
// before moderation and persistence.
type MessagePosted struct {
	Conversation domain.ConversationID
	Message      domain.Message
	// Reply, when non-nil, receives the authoritative record once the store
	// stage has persisted (or rejected) the message. In-process only.
	Reply chan<- AppendResult
}

func (e MessagePosted) ConversationID() domain.ConversationID {
	return e.Conversation
}

// MessageStored is the authoritative record after masking and persistence.
// This is what participants receive over the realtime channel; the sender
// recognizes its own echo through Message.TempID.
type MessageStored struct {
	Conversation domain.ConversationID
	Message      domain.Message
}

func (e MessageStored) ConversationID() domain.ConversationID {
	return e.Conversation
}

// StatusRequested asks the store to merge a delivery-state change for a
// batch of messages. Produced from read receipts and delivered acks before
// the repository has merged anything.
type StatusRequested struct {
	Conversation domain.ConversationID
	MessageIDs   []string
	Status       domain.Status
}

func (e StatusRequested) ConversationID() domain.ConversationID {
	return e.Conversation
}

// StatusUpdated signals a delivery-state change of a single message,
// keyed by its server id.
type StatusUpdated struct {
	Conversation domain.ConversationID
	MessageID    string
	Status       domain.Status
}

func (e StatusUpdated) ConversationID() domain.ConversationID {
	return e.Conversation
}
