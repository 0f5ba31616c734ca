// Package audit captures structured governance events. Domain services emit
// through a Publisher; a Worker drains the channel into a Store so emission
// never blocks a request or retention pass.
package audit

import (
	"context"
	"log/slog"
	"time"
)

const defaultBuffer = 256

// Publisher accepts events on a bounded channel. When the buffer is full the
// event is dropped and logged; audit capture must never stall the caller.
type Publisher struct {
	inbox  chan Event
	logger *slog.Logger
}

func NewPublisher(logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		inbox:  make(chan Event, defaultBuffer),
		logger: logger,
	}
}

// Emit enqueues an event, stamping the time when unset.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case p.inbox <- event:
	default:
		p.logger.WarnContext(ctx, "audit buffer full, event dropped", "action", event.Action)
	}
	return nil
}

// Inbox exposes the channel for the consuming worker.
func (p *Publisher) Inbox() <-chan Event {
	return p.inbox
}
