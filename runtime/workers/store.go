package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"task-chat/contract"
	"task-chat/domain"
	"task-chat/domain/event"
	"task-chat/errors"
	"task-chat/repositories"
)

var _ contract.Worker = (*StoreWorker)(nil)

// StoreWorker is the single writer of the pipeline. It assigns server ids
// and timestamps to posted messages, persists them, and merges delivery
// status requests highest-wins. Only events that survived persistence leave
// this stage, so everything fanned out downstream is authoritative.
type StoreWorker struct {
	messages     repositories.IMessageRepository
	sanitized    chan event.DomainEvent
	domainEvents chan event.DomainEvent
	log          *slog.Logger
	now          func() time.Time
}

func NewStoreWorker(messages repositories.IMessageRepository,
	sanitized, domainEvents chan event.DomainEvent, log *slog.Logger) *StoreWorker {
	return &StoreWorker{
		messages:     messages,
		sanitized:    sanitized,
		domainEvents: domainEvents,
		log:          log,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (w *StoreWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case e, ok := <-w.sanitized:
			if !ok {
				w.log.Debug("Channel is closed")
				return nil
			}
			for _, out := range w.process(e) {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case w.domainEvents <- out:
				}
			}
		}
	}
}

func (w *StoreWorker) process(e event.DomainEvent) []event.DomainEvent {
	switch evt := e.(type) {
	case event.MessagePosted:
		return w.store(evt)
	case event.StatusRequested:
		return w.merge(evt)
	default:
		// Already authoritative, pass through
		return []event.DomainEvent{e}
	}
}

func (w *StoreWorker) store(evt event.MessagePosted) []event.DomainEvent {
	stored := evt.Message
	stored.ID = uuid.NewString()
	stored.Status = domain.StatusSent
	stored.CreatedAt = w.now()

	err := w.messages.StoreMessage(repositories.DiskMessage{
		ID:           stored.ID,
		TempID:       stored.TempID,
		Conversation: evt.Conversation,
		Sender:       stored.SenderID,
		Text:         stored.Text,
		Status:       stored.Status,
		At:           stored.CreatedAt,
	})
	if err != nil {
		w.log.Error("Failed to persist message",
			"conversation", evt.Conversation, "error", err)
		w.reply(evt, event.AppendResult{Err: err})
		return nil
	}

	w.reply(evt, event.AppendResult{Message: stored})
	return []event.DomainEvent{event.MessageStored{
		Conversation: evt.Conversation,
		Message:      stored,
	}}
}

// reply answers a synchronous append without ever blocking the pipeline;
// the reply channel is buffered by the caller.
func (w *StoreWorker) reply(evt event.MessagePosted, result event.AppendResult) {
	if evt.Reply == nil {
		return
	}
	select {
	case evt.Reply <- result:
	default:
		w.log.Warn("Append reply dropped, caller went away",
			"conversation", evt.Conversation)
	}
}

func (w *StoreWorker) merge(evt event.StatusRequested) []event.DomainEvent {
	var out []event.DomainEvent
	for _, id := range evt.MessageIDs {
		merged, err := w.messages.UpdateStatus(evt.Conversation, id, evt.Status)
		if err != nil {
			if err == errors.ErrMessageUnknown {
				w.log.Debug("Status for unknown message dropped",
					"conversation", evt.Conversation, "message", id)
				continue
			}
			w.log.Error("Failed to merge status",
				"conversation", evt.Conversation, "message", id, "error", err)
			continue
		}
		out = append(out, event.StatusUpdated{
			Conversation: evt.Conversation,
			MessageID:    id,
			Status:       merged,
		})
	}
	return out
}
