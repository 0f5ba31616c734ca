package audit

import (
	"context"
	"log/slog"
)

// Worker consumes audit events from a publisher inbox, persists them, and
// mirrors them to an optional sink. A store or sink failure is logged and
// the event dropped for that destination; audit capture never wedges the
// pipeline.
type Worker struct {
	store  Store
	inbox  <-chan Event
	logger *slog.Logger
	sink   Sink
}

type WorkerOption func(*Worker)

// WithSink mirrors each event to a secondary destination, typically the
// Kafka compliance topic.
func WithSink(sink Sink) WorkerOption {
	return func(w *Worker) {
		w.sink = sink
	}
}

func NewWorker(store Store, inbox <-chan Event, logger *slog.Logger, opts ...WorkerOption) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Worker{store: store, inbox: inbox, logger: logger}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.store.Append(ctx, event); err != nil {
				w.logger.ErrorContext(ctx, "audit append failed",
					"action", event.Action, "error", err)
			}
			if w.sink != nil {
				if err := w.sink.Publish(ctx, event); err != nil {
					w.logger.ErrorContext(ctx, "audit sink publish failed",
						"action", event.Action, "error", err)
				}
			}
		}
	}
}
