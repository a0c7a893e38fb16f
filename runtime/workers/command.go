package workers

import (
	"context"
	"fmt"
	"log/slog"

	"task-chat/contract"
	"task-chat/domain"
	"task-chat/domain/event"
)

// Ensure *CommandWorker implements the contract.Worker interface at compile time.
// This prevents "type mismatch" errors from appearing late in other packages
// and acts as a static assertion of our architectural rules.
var _ contract.Worker = (*CommandWorker)(nil)

// CommandWorker is a pool unit translating intake commands into raw pipeline
// events. Several instances share the same commands channel.
type CommandWorker struct {
	commands  chan domain.Command
	rawEvents chan event.DomainEvent
	log       *slog.Logger
}

func NewCommandWorker(
	commands chan domain.Command,
	rawEvents chan event.DomainEvent,
	log *slog.Logger) *CommandWorker {
	return &CommandWorker{
		commands:  commands,
		rawEvents: rawEvents,
		log:       log,
	}
}

func (w *CommandWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case cmd, ok := <-w.commands:
			if !ok {
				w.log.Debug("Channel is closed")
				return nil
			}
			evt, ok := toRawEvent(cmd)
			if !ok {
				w.log.Debug(fmt.Sprintf("Unhandled command type : %T", cmd))
				continue
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case w.rawEvents <- evt:
			}
		}
	}
}

func toRawEvent(cmd domain.Command) (event.DomainEvent, bool) {
	switch c := cmd.(type) {
	case domain.SendMessageCommand:
		return event.MessagePosted{
			Conversation: c.ConversationID,
			Message: domain.Message{
				TempID:    c.TempID,
				SenderID:  c.SenderID,
				Text:      c.Text,
				Status:    domain.StatusPending,
				CreatedAt: c.CreatedAt,
			},
		}, true
	case domain.MarkReadCommand:
		return event.StatusRequested{
			Conversation: c.ConversationID,
			MessageIDs:   c.MessageIDs,
			Status:       domain.StatusRead,
		}, true
	case domain.UpdateStatusCommand:
		return event.StatusRequested{
			Conversation: c.ConversationID,
			MessageIDs:   c.MessageIDs,
			Status:       c.Status,
		}, true
	default:
		return nil, false
	}
}
