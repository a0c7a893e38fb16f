package workers

import (
	"context"
	"log/slog"

	"task-chat/domain/event"
	"task-chat/moderation"
)

// ModerationWorker masks blocked terms in posted messages before they reach
// the store. Events that carry no free text pass through untouched.
type ModerationWorker struct {
	moderator moderation.Moderator
	rawEvents chan event.DomainEvent
	sanitized chan event.DomainEvent
	log       *slog.Logger
}

func NewModerationWorker(moderator moderation.Moderator,
	rawEvents, sanitized chan event.DomainEvent, log *slog.Logger) *ModerationWorker {
	return &ModerationWorker{
		moderator: moderator,
		rawEvents: rawEvents,
		sanitized: sanitized,
		log:       log,
	}
}

func (w ModerationWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case e, ok := <-w.rawEvents:
			if !ok {
				w.log.Debug("Channel is closed")
				return nil
			}
			if posted, isPosted := e.(event.MessagePosted); isPosted {
				e = w.toSanitizedEvent(posted)
			}
			select {
			case <-ctx.Done():
				w.log.Debug("Stopping worker")
				return ctx.Err()
			case w.sanitized <- e:
			}
		}
	}
}

func (w ModerationWorker) toSanitizedEvent(evt event.MessagePosted) event.MessagePosted {
	sanitized, foundTerms := w.moderator.Censor(evt.Message.Text)
	if len(foundTerms) > 0 {
		w.log.Warn("Blocked terms masked",
			"conversation", evt.Conversation,
			"sender", evt.Message.SenderID,
			"terms", len(foundTerms))
	}
	evt.Message.Text = sanitized
	return evt
}
