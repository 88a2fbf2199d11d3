package upload

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/maauso/wanzami-api/internal/content"
)

const (
	defaultReconcileInterval = 30 * time.Second
	notifyBuffer             = 64
)

// Finalizer makes a content item available. content.Service satisfies it.
// Finalize must tolerate being called again for an item already finalized,
// and report content.ErrNotFound for an item that no longer exists.
type Finalizer interface {
	Finalize(ctx context.Context, contentID string) error
}

// Reconciler finalizes a content item once every task of its current batch
// is complete. All finalize calls are made from the single Run goroutine.
type Reconciler struct {
	queue     *Queue
	finalizer Finalizer
	logger    *slog.Logger
	interval  time.Duration
	notify    chan string
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithInterval sets the period of the background sweep.
func WithInterval(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		if d > 0 {
			r.interval = d
		}
	}
}

// NewReconciler creates a Reconciler and subscribes it to queue changes.
func NewReconciler(queue *Queue, finalizer Finalizer, logger *slog.Logger, opts ...ReconcilerOption) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Reconciler{
		queue:     queue,
		finalizer: finalizer,
		logger:    logger,
		interval:  defaultReconcileInterval,
		notify:    make(chan string, notifyBuffer),
	}
	for _, opt := range opts {
		opt(r)
	}
	queue.Subscribe(r.observe)
	return r
}

// observe forwards completions to Run. A full buffer drops the hint;
// the periodic sweep picks the batch up instead.
func (r *Reconciler) observe(ev Event) {
	if ev.State != StateComplete {
		return
	}
	select {
	case r.notify <- ev.ContentID:
	default:
	}
}

// Run reacts to task completions and sweeps periodically until ctx is done.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("upload reconciler started", slog.Duration("interval", r.interval))
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("upload reconciler stopped")
			return
		case contentID := <-r.notify:
			r.Reconcile(ctx, contentID)
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep reconciles every content item with a complete, unfinalized task.
// It returns the number of items finalized.
func (r *Reconciler) Sweep(ctx context.Context) int {
	seen := make(map[string]bool)
	for _, t := range r.queue.Snapshot() {
		if t.State == StateComplete {
			seen[t.ContentID] = true
		}
	}

	n := 0
	for contentID := range seen {
		if r.Reconcile(ctx, contentID) {
			n++
		}
	}
	return n
}

// Reconcile finalizes contentID if every unfinalized task of it is complete.
// A failed finalize leaves the tasks unmarked so a later call retries it.
// It reports whether the item was finalized.
func (r *Reconciler) Reconcile(ctx context.Context, contentID string) bool {
	var pending []string
	for _, t := range r.queue.Batch(contentID) {
		if t.Finalized {
			continue
		}
		if t.State != StateComplete {
			return false
		}
		pending = append(pending, t.ID)
	}
	if len(pending) == 0 {
		return false
	}

	err := r.finalizer.Finalize(ctx, contentID)
	if errors.Is(err, content.ErrNotFound) {
		// The item was deleted while its batch was in flight.
		finalizeTotal.WithLabelValues("gone").Inc()
		dropped := r.queue.Drop(contentID)
		r.logger.Info("upload batch dropped, content no longer exists",
			slog.String("content_id", contentID),
			slog.Int("tasks", len(dropped)),
		)
		return false
	}
	if err != nil {
		finalizeTotal.WithLabelValues("error").Inc()
		r.logger.Warn("finalize failed, will retry",
			slog.String("content_id", contentID),
			slog.String("error", err.Error()),
		)
		return false
	}

	finalizeTotal.WithLabelValues("success").Inc()
	r.queue.MarkFinalized(contentID, pending...)
	r.logger.Info("upload batch finalized",
		slog.String("content_id", contentID),
		slog.Int("tasks", len(pending)),
	)
	return true
}
