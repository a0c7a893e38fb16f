// Package ws is the realtime surface: one websocket per participant per
// conversation, carrying JSON frames in both directions.
package ws

import (
	"time"

	"task-chat/domain"
	"task-chat/domain/event"
)

// Frame types. The server pushes "message" and "status"; clients emit
// "send" advisories, "mark_read" receipts and "ack" delivered acks.
const (
	frameMessage  = "message"
	frameStatus   = "status"
	frameSend     = "send"
	frameMarkRead = "mark_read"
	frameAck      = "ack"
)

type wireMessage struct {
	ID     string        `json:"id"`
	TempID string        `json:"temp_id,omitempty"`
	Sender string        `json:"sender"`
	Text   string        `json:"text"`
	Status domain.Status `json:"status"`
	At     time.Time     `json:"at"`
}

// Frame is the single envelope exchanged over the socket. Which fields are
// set depends on Type.
type Frame struct {
	Type         string                `json:"type"`
	Conversation domain.ConversationID `json:"conversation"`
	Message      *wireMessage          `json:"message,omitempty"`
	MessageIDs   []string              `json:"message_ids,omitempty"`
	Status       domain.Status         `json:"status,omitempty"`
}

func toWireMessage(m domain.Message) *wireMessage {
	return &wireMessage{
		ID:     m.ID,
		TempID: m.TempID,
		Sender: m.SenderID,
		Text:   m.Text,
		Status: m.Status,
		At:     m.CreatedAt,
	}
}

func (w *wireMessage) toDomain() domain.Message {
	return domain.Message{
		ID:        w.ID,
		TempID:    w.TempID,
		SenderID:  w.Sender,
		Text:      w.Text,
		Status:    w.Status,
		CreatedAt: w.At,
	}
}

// encodeEvent maps a pipeline event to its outbound frame. Events without a
// wire representation report false and are not pushed.
func encodeEvent(e event.DomainEvent) (Frame, bool) {
	switch evt := e.(type) {
	case event.MessageStored:
		return Frame{
			Type:         frameMessage,
			Conversation: evt.Conversation,
			Message:      toWireMessage(evt.Message),
		}, true
	case event.StatusUpdated:
		return Frame{
			Type:         frameStatus,
			Conversation: evt.Conversation,
			MessageIDs:   []string{evt.MessageID},
			Status:       evt.Status,
		}, true
	default:
		return Frame{}, false
	}
}

// decodeFrame maps an inbound push back to a pipeline event on the client
// side. Unknown or client-only frame types report false.
func decodeFrame(f Frame) ([]event.DomainEvent, bool) {
	switch f.Type {
	case frameMessage:
		if f.Message == nil {
			return nil, false
		}
		return []event.DomainEvent{event.MessageStored{
			Conversation: f.Conversation,
			Message:      f.Message.toDomain(),
		}}, true
	case frameStatus:
		var out []event.DomainEvent
		for _, id := range f.MessageIDs {
			out = append(out, event.StatusUpdated{
				Conversation: f.Conversation,
				MessageID:    id,
				Status:       f.Status,
			})
		}
		return out, len(out) > 0
	default:
		return nil, false
	}
}
