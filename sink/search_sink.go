package sink

import (
	"context"
	"log/slog"

	"task-chat/domain/event"
	"task-chat/search"
)

// SearchSink feeds stored messages into the full-text index. It runs as a
// permanent sink on the fanout, after persistence, so only authoritative
// records are ever indexed.
type SearchSink struct {
	index *search.MessageIndex
	log   *slog.Logger
}

func NewSearchSink(index *search.MessageIndex, log *slog.Logger) SearchSink {
	return SearchSink{index: index, log: log}
}

func (s SearchSink) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.MessageStored:
		return s.index.Index(evt.Conversation, evt.Message)
	default:
		return nil
	}
}
