package domain

import (
	"time"
)

type Command interface {
	Conversation() ConversationID
}

// SendMessageCommand carries a message sending intent to the hub.
// TempID is the client-generated identifier; the server echoes it back with
// the authoritative record so the sender can reconcile exactly.
type SendMessageCommand struct {
	ConversationID ConversationID
	TempID         string
	SenderID       string
	Text           string
	CreatedAt      time.Time
}

func (c SendMessageCommand) Conversation() ConversationID {
	return c.ConversationID
}

// MarkReadCommand carries a read-receipt batch emitted by a viewer.
type MarkReadCommand struct {
	ConversationID ConversationID
	ReaderID       string
	MessageIDs     []string
}

func (c MarkReadCommand) Conversation() ConversationID {
	return c.ConversationID
}

// UpdateStatusCommand carries a delivery-state change request, typically a
// delivered ack emitted by a recipient connection. Merging is highest-wins
// downstream, so replays and out-of-order arrivals are harmless.
type UpdateStatusCommand struct {
	ConversationID ConversationID
	MessageIDs     []string
	Status         Status
}

func (c UpdateStatusCommand) Conversation() ConversationID {
	return c.ConversationID
}
