package domain

type ConversationID string

// Conversation is a two-party message thread, optionally anchored to a task.
//
// The message sequence is append-only: entries are never deleted or reordered
// once appended, only status-mutated in place. Display order is insertion
// order, not server timestamp order. Conversation itself is not safe for
// concurrent use; a single owner is expected to drive all mutations.
type Conversation struct {
	ID           ConversationID
	Participants [2]Identity
	Task         *TaskRef
	messages     []Message
}

func NewConversation(id ConversationID, participants [2]Identity, task *TaskRef) *Conversation {
	return &Conversation{
		ID:           id,
		Participants: participants,
		Task:         task,
		messages:     nil,
	}
}

// HasParticipant reports whether the identity takes part in this conversation.
func (c *Conversation) HasParticipant(id string) bool {
	return c.Participants[0].ID == id || c.Participants[1].ID == id
}

// Peer returns the other party of the conversation.
func (c *Conversation) Peer(selfID string) Identity {
	if c.Participants[0].ID == selfID {
		return c.Participants[1]
	}
	return c.Participants[0]
}

// Clone returns a deep copy for rendering outside the owning goroutine.
func (c *Conversation) Clone() *Conversation {
	clone := *c
	clone.messages = c.Messages()
	return &clone
}

// Append adds a message at the end of the sequence.
func (c *Conversation) Append(message Message) {
	c.messages = append(c.messages, message)
}

// Len returns the current length of the message sequence.
func (c *Conversation) Len() int {
	return len(c.messages)
}

// Messages returns a copy of the message sequence in display order.
func (c *Conversation) Messages() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Last returns the most recent message, used for conversation previews.
func (c *Conversation) Last() (Message, bool) {
	if len(c.messages) == 0 {
		return Message{}, false
	}
	return c.messages[len(c.messages)-1], true
}

// ApplyStatus merges a status update into the message with the given id.
// The merge is highest-wins, so duplicate and out-of-order updates are
// harmless. It reports whether a message with that id was found.
func (c *Conversation) ApplyStatus(messageID string, status Status) bool {
	for i := range c.messages {
		if c.messages[i].ID == messageID {
			c.messages[i].Status = c.messages[i].Status.Merge(status)
			return true
		}
	}
	return false
}

// Reconcile replaces the optimistic entry carrying tempID with the
// authoritative message in place, keeping its position in the sequence.
// It reports whether an entry was replaced.
func (c *Conversation) Reconcile(tempID string, authoritative Message) bool {
	for i := range c.messages {
		if c.messages[i].TempID == tempID && c.messages[i].IsTemp() {
			status := c.messages[i].Status.Merge(authoritative.Status)
			c.messages[i] = authoritative
			c.messages[i].Status = status
			return true
		}
	}
	return false
}

// ReconcileByText finds the most recent pending message from senderID with
// the given text that has not been reconciled yet, and replaces it with the
// authoritative message. This is the fallback for pushes that carry no temp
// id, e.g. a send issued from another device of the same user.
func (c *Conversation) ReconcileByText(senderID, text string, authoritative Message) bool {
	for i := len(c.messages) - 1; i >= 0; i-- {
		m := c.messages[i]
		if m.IsTemp() && m.SenderID == senderID && m.Text == text && m.Status == StatusPending {
			status := m.Status.Merge(authoritative.Status)
			c.messages[i] = authoritative
			c.messages[i].Status = status
			return true
		}
	}
	return false
}

// Rollback removes the optimistic entry carrying tempID after a failed send.
// This is the only operation that shrinks the sequence.
func (c *Conversation) Rollback(tempID string) bool {
	for i := range c.messages {
		if c.messages[i].TempID == tempID && c.messages[i].IsTemp() {
			c.messages = append(c.messages[:i], c.messages[i+1:]...)
			return true
		}
	}
	return false
}

// Unread returns ids of messages not authored by selfID whose status is
// below read, in display order. Open and foreground transitions use it to
// build read-receipt batches.
func (c *Conversation) Unread(selfID string) []string {
	var ids []string
	for _, m := range c.messages {
		if m.SenderID != selfID && !m.Status.AtLeast(StatusRead) {
			ids = append(ids, m.ID)
		}
	}
	return ids
}
