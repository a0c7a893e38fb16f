package workers

import (
	"context"
	"log/slog"

	"task-chat/domain/event"
	"task-chat/observability"
)

// TelemetryWorker drains the telemetry copy of the event stream and turns it
// into counters. Losing events here is acceptable; the fanout drops them
// non-blocking when this worker lags.
type TelemetryWorker struct {
	log             *slog.Logger
	telemetryEvents chan event.DomainEvent
	monitor         *observability.Monitor
}

func NewTelemetryWorker(log *slog.Logger,
	telemetryEvents chan event.DomainEvent,
	monitor *observability.Monitor) *TelemetryWorker {
	return &TelemetryWorker{
		log:             log,
		telemetryEvents: telemetryEvents,
		monitor:         monitor,
	}
}

func (w TelemetryWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case e, ok := <-w.telemetryEvents:
			if !ok {
				w.log.Debug("Channel is closed")
				return nil
			}
			w.monitor.IncrEventsFanned()
			switch e.(type) {
			case event.MessageStored:
				w.monitor.IncrMessagesStored()
			case event.StatusUpdated:
				w.monitor.IncrStatusMerges()
			}
		}
	}
}
