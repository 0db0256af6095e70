package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/taskherd/taskherd/internal/domain"
	"github.com/taskherd/taskherd/internal/platform/logger"
	"github.com/taskherd/taskherd/internal/schedule"
	"github.com/taskherd/taskherd/internal/store"
)

// Dispatcher routes a notification either straight through the Sender or,
// outside the business window, into the outbox for the next business
// morning. Every reminder and digest send goes through it; only approval's
// initial notification bypasses it, because approval needs a confirmed
// delivery.
type Dispatcher struct {
	sender *Sender
	outbox store.OutboxStore
	window *schedule.Window
	logger *slog.Logger

	// now is swappable in tests.
	now func() time.Time
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(sender *Sender, outbox store.OutboxStore, window *schedule.Window, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		sender: sender,
		outbox: outbox,
		window: window,
		logger: log,
		now:    time.Now,
	}
}

// SendOrEnqueue sends immediately when the business window is open and
// otherwise enqueues for the next business morning.
func (d *Dispatcher) SendOrEnqueue(ctx context.Context, recipient, text string, payload json.RawMessage) error {
	return d.SendOrEnqueueAt(ctx, d.now(), recipient, text, payload)
}

// SendOrEnqueueAt is SendOrEnqueue with the window evaluated at the given
// instant. The scheduler passes its tick time so a rule firing on an
// out-of-window tick defers consistently with the tick it belongs to.
func (d *Dispatcher) SendOrEnqueueAt(ctx context.Context, now time.Time, recipient, text string, payload json.RawMessage) error {
	log := logger.FromContext(ctx)

	if d.window.InWindow(now) {
		return d.sender.Send(ctx, recipient, text, payload)
	}

	notBefore := d.window.NextBusinessMorning(now)
	entry, err := domain.NewOutboxEntry(recipient, text, payload, notBefore)
	if err != nil {
		return err
	}

	id, err := d.outbox.Enqueue(ctx, entry)
	if err != nil {
		return fmt.Errorf("failed to enqueue deferred notification: %w", err)
	}

	log.Debug("notification deferred to business window",
		"outbox_id", id,
		"recipient", recipient,
		"not_before", notBefore)
	return nil
}

// Sender returns the underlying sender, for callers that need direct sends
// (approval, manual report forcing) with the same retry discipline.
func (d *Dispatcher) Sender() *Sender {
	return d.sender
}
