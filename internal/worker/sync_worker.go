// Package worker consumes transaction events and mirrors them into the
// spreadsheet.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"financas/internal/amqp"
	applog "financas/internal/log"
	"financas/internal/sheets"
)

// EventSource delivers transaction events until ctx is done.
type EventSource interface {
	ConsumeTransactionEvents(ctx context.Context, handler amqp.EventHandler) error
}

// SyncWorker applies created/updated events as upserts and deleted events as
// row removals.
type SyncWorker struct {
	source EventSource
	mirror sheets.Mirror
	logger *applog.Logger

	processed atomic.Int64
	failed    atomic.Int64

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	doneCh  chan struct{}
	runErr  error
}

func NewSyncWorker(source EventSource, mirror sheets.Mirror, logger *applog.Logger) *SyncWorker {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentWorker)
	}
	return &SyncWorker{source: source, mirror: mirror, logger: logger}
}

// HandleEvent processes one event. A returned error asks the broker to
// redeliver it.
func (w *SyncWorker) HandleEvent(ctx context.Context, ev *amqp.TransactionEvent) error {
	t, err := ev.Transaction.ToCore()
	if err != nil {
		w.failed.Add(1)
		return fmt.Errorf("decode event %s: %w", ev.Transaction.ID, err)
	}

	switch ev.Op {
	case amqp.OpCreated, amqp.OpUpdated:
		err = w.mirror.Upsert(ctx, ev.UserID, t)
	case amqp.OpDeleted:
		err = w.mirror.Remove(ctx, ev.UserID, t)
	default:
		err = fmt.Errorf("unknown event op %q", ev.Op)
	}
	if err != nil {
		w.failed.Add(1)
		w.logger.ErrorContext(ctx, "Failed to mirror transaction",
			applog.FieldOperation, applog.OpSync,
			applog.FieldEntityID, t.ID,
			applog.FieldUserID, ev.UserID,
			"event_op", string(ev.Op),
			applog.FieldError, err)
		return fmt.Errorf("mirror %s %s: %w", ev.Op, t.ID, err)
	}

	w.processed.Add(1)
	w.logger.InfoContext(ctx, "Mirrored transaction",
		applog.FieldOperation, applog.OpSync,
		applog.FieldEntityID, t.ID,
		applog.FieldUserID, ev.UserID,
		"event_op", string(ev.Op),
		applog.FieldAmountCents, t.Amount.Cents)
	return nil
}

// Start consumes in the background until Stop or ctx cancellation.
func (w *SyncWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("sync worker is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.running = true
	w.cancel = cancel
	w.doneCh = make(chan struct{})
	w.runErr = nil

	go func(done chan struct{}) {
		defer close(done)
		err := w.source.ConsumeTransactionEvents(runCtx, w.HandleEvent)
		if err != nil && !errors.Is(err, context.Canceled) {
			w.logger.ErrorContext(runCtx, "Event consumer stopped", applog.FieldError, err)
		}
		w.mu.Lock()
		w.runErr = err
		w.running = false
		w.mu.Unlock()
	}(w.doneCh)

	w.logger.InfoContext(ctx, "Sync worker started")
	return nil
}

// Stop cancels consumption and waits for the consumer to return.
func (w *SyncWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	cancel, done := w.cancel, w.doneCh
	w.mu.Unlock()
	if cancel == nil {
		return nil
	}

	cancel()
	select {
	case <-done:
		w.logger.InfoContext(ctx, "Sync worker stopped gracefully",
			"processed", w.processed.Load(), "failed", w.failed.Load())
		return nil
	case <-ctx.Done():
		w.logger.WarnContext(ctx, "Sync worker stop timed out")
		return ctx.Err()
	}
}

func (w *SyncWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Done is closed when the consumer returns.
func (w *SyncWorker) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.doneCh
}

// Err returns why the consumer stopped, once Done is closed.
func (w *SyncWorker) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.runErr
}

func (w *SyncWorker) Stats() (processed, failed int64) {
	return w.processed.Load(), w.failed.Load()
}
