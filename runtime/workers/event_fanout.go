package workers

import (
	"context"
	"log/slog"
	"time"

	"task-chat/contract"
	"task-chat/domain/event"
)

// EventFanout broadcasts domain events to multiple in-process consumers.
//
// It provides best-effort fan-out with no guarantees regarding delivery,
// ordering, durability, or retries. EventFanout is not a message broker.
//
// Permanent sinks (projections, search indexing) receive every event;
// conversation sinks are resolved through the registry so only connected
// participants get pushed.
//
// EventFanout is safe for concurrent use by multiple goroutines.
type EventFanout struct {
	log             *slog.Logger
	permanentSinks  []contract.EventSink
	registry        contract.IRegistry
	domainEvents    chan event.DomainEvent
	telemetryEvents chan event.DomainEvent
	sinkTimeout     time.Duration
}

func NewEventFanout(log *slog.Logger,
	permanentSinks []contract.EventSink,
	registry contract.IRegistry,
	domainEvents, telemetryEvents chan event.DomainEvent,
	sinkTimeout time.Duration) *EventFanout {
	return &EventFanout{
		log:             log,
		permanentSinks:  permanentSinks,
		registry:        registry,
		domainEvents:    domainEvents,
		telemetryEvents: telemetryEvents,
		sinkTimeout:     sinkTimeout,
	}
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case evt := <-w.domainEvents:
			w.Fanout(evt)
			select {
			case w.telemetryEvents <- evt:
			default:
				w.log.Debug("Observability telemetry event lost")
			}
		case <-ctx.Done():
			w.log.Debug("Context done, stopping domainEvent send")
			return nil
		}
	}
}

// Fanout pushes one event to every permanent sink and to every participant
// attached to the event's conversation. Each sink gets its own goroutine and
// deadline so one slow consumer cannot stall the others.
func (w *EventFanout) Fanout(evt event.DomainEvent) {
	sinks := append([]contract.EventSink{}, w.permanentSinks...)
	sinks = append(sinks, w.registry.GetSinksForConversation(evt.ConversationID())...)

	for _, sink := range sinks {
		go func(s contract.EventSink) {
			ctx, cancel := context.WithTimeout(context.Background(), w.sinkTimeout)
			defer cancel()
			if err := s.Consume(ctx, evt); err != nil {
				w.log.Warn("Sink consume failed",
					"conversation", evt.ConversationID(), "error", err)
			}
		}(sink)
	}
}
