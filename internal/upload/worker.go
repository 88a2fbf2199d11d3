package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/maauso/wanzami-api/internal/asset"
	"github.com/maauso/wanzami-api/internal/storage"
)

const (
	defaultWorkerConcurrency = 1
	defaultTransferTimeout   = 30 * time.Minute
)

// Worker drains the Queue and transfers staged files to the object store.
type Worker struct {
	queue       *Queue
	staging     storage.Staging
	transferer  Transferer
	logger      *slog.Logger
	concurrency int
	timeout     time.Duration
	now         func() time.Time
	granter     asset.Granter
	grantTTL    time.Duration
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithConcurrency sets how many transfers may run at once.
// The default of 1 drains the queue sequentially.
func WithConcurrency(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.concurrency = n
		}
	}
}

// WithTransferTimeout bounds a single transfer.
func WithTransferTimeout(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// WithWorkerClock sets the clock used for grant expiry checks.
func WithWorkerClock(now func() time.Time) WorkerOption {
	return func(w *Worker) {
		w.now = now
	}
}

// WithGranter lets the worker re-issue grants that expired while their task
// waited in the queue. Without one such tasks fail with ErrGrantExpired.
func WithGranter(g asset.Granter, ttl time.Duration) WorkerOption {
	if ttl <= 0 {
		ttl = asset.DefaultGrantTTL
	}
	return func(w *Worker) {
		w.granter = g
		w.grantTTL = ttl
	}
}

// NewWorker creates a new Worker.
func NewWorker(queue *Queue, staging storage.Staging, transferer Transferer, logger *slog.Logger, opts ...WorkerOption) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Worker{
		queue:       queue,
		staging:     staging,
		transferer:  transferer,
		logger:      logger,
		concurrency: defaultWorkerConcurrency,
		timeout:     defaultTransferTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run drains the queue until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("upload worker started", slog.Int("concurrency", w.concurrency))

	var wg sync.WaitGroup
	for range w.concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(ctx)
		}()
	}
	wg.Wait()

	w.logger.Info("upload worker stopped")
}

func (w *Worker) loop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if task, ok := w.queue.Claim(); ok {
			w.process(ctx, task)
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-w.queue.Ready():
		}
	}
}

// process transfers one claimed task and records the outcome on the queue.
// Failures only affect this task.
func (w *Worker) process(ctx context.Context, task *Task) {
	log := w.logger.With(
		slog.String("task_id", task.ID),
		slog.String("content_id", task.ContentID),
		slog.String("role", task.Role.String()),
	)

	activeTransfers.Inc()
	defer activeTransfers.Dec()
	start := time.Now()

	err := w.transfer(ctx, task)
	transferDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		transfersTotal.WithLabelValues("error").Inc()
		log.Warn("transfer failed", slog.String("error", err.Error()))
		if ferr := w.queue.Fail(task.ID, err); ferr != nil {
			log.Debug("could not record failure", slog.String("error", ferr.Error()))
		}
		return
	}

	transfersTotal.WithLabelValues("success").Inc()
	transferBytesTotal.Add(float64(task.Size))
	if cerr := w.queue.Complete(task.ID); cerr != nil {
		log.Debug("could not record completion", slog.String("error", cerr.Error()))
	}

	if task.StagedPath != "" {
		if cerr := w.staging.Discard(ctx, task.StagedPath); cerr != nil {
			log.Warn("failed to clean staged file", slog.String("error", cerr.Error()))
		}
	}

	log.Info("transfer complete",
		slog.Int64("bytes", task.Size),
		slog.Duration("elapsed", time.Since(start)),
	)
}

func (w *Worker) transfer(ctx context.Context, task *Task) error {
	if task.Grant.Expired(w.now()) {
		if err := w.renewGrant(ctx, task); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	body, err := w.staging.Open(ctx, task.StagedPath)
	if err != nil {
		return fmt.Errorf("open staged file: %w", err)
	}
	defer func() { _ = body.Close() }()

	onProgress := func(sent int64) {
		if task.Size <= 0 {
			return
		}
		pct := float64(sent) / float64(task.Size) * 100
		if err := w.queue.UpdateProgress(task.ID, pct); err != nil && !errors.Is(err, ErrInvalidTransition) {
			w.logger.Debug("progress update dropped",
				slog.String("task_id", task.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := w.transferer.Put(ctx, task.Grant, body, task.Size, onProgress); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("transfer timed out after %s: %w", w.timeout, err)
		}
		return err
	}
	return nil
}

// renewGrant presigns a fresh grant for the task's key and stores it on the
// queue so a later retry starts from the new one.
func (w *Worker) renewGrant(ctx context.Context, task *Task) error {
	if w.granter == nil {
		return ErrGrantExpired
	}
	contentType := task.ContentType
	if contentType == "" {
		contentType = task.Grant.ContentType
	}
	grant, err := w.granter.PresignPut(ctx, task.Grant.Key, contentType, w.grantTTL)
	if err != nil {
		return fmt.Errorf("%w: renew: %w", ErrGrantExpired, err)
	}
	if err := w.queue.SetGrant(task.ID, grant); err != nil {
		return err
	}
	task.Grant = grant

	w.logger.Info("upload grant renewed",
		slog.String("task_id", task.ID),
		slog.String("key", grant.Key),
		slog.Time("expires_at", grant.ExpiresAt),
	)
	return nil
}
