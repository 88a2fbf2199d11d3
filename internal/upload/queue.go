package upload

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/maauso/wanzami-api/internal/storage"
)

// Event describes a task state change.
type Event struct {
	TaskID    string
	ContentID string
	State     State
}

// Observer is notified after every task state change.
// Observers run synchronously on the goroutine that made the change and
// must not block or call back into the Queue.
type Observer func(Event)

// Queue is the in-memory set of transfer tasks shared by the HTTP layer,
// the Worker and the Reconciler. Its contents are lost on restart.
type Queue struct {
	mu        sync.Mutex
	tasks     map[string]*Task
	order     []string
	observers []Observer
	wake      chan struct{}
	now       func() time.Time
}

// NewQueue creates an empty Queue.
func NewQueue() *Queue {
	return &Queue{
		tasks: make(map[string]*Task),
		wake:  make(chan struct{}, 1),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Subscribe registers an observer for task state changes.
func (q *Queue) Subscribe(fn Observer) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.observers = append(q.observers, fn)
}

// Ready returns a channel that receives when queued work may be available.
func (q *Queue) Ready() <-chan struct{} {
	return q.wake
}

// Enqueue adds tasks in the queued state. Missing IDs are generated.
// The given tasks are copied; the stored copies are returned.
func (q *Queue) Enqueue(tasks ...*Task) []*Task {
	if len(tasks) == 0 {
		return nil
	}

	now := q.now()
	out := make([]*Task, 0, len(tasks))
	events := make([]Event, 0, len(tasks))

	q.mu.Lock()
	for _, t := range tasks {
		stored := t.Clone()
		if stored.ID == "" {
			stored.ID = uuid.NewString()
		}
		stored.State = StateQueued
		stored.Progress = 0
		stored.Error = ""
		stored.Finalized = false
		stored.CreatedAt = now
		stored.UpdatedAt = now

		q.tasks[stored.ID] = stored
		q.order = append(q.order, stored.ID)
		out = append(out, stored.Clone())
		events = append(events, Event{TaskID: stored.ID, ContentID: stored.ContentID, State: StateQueued})
	}
	observers := q.observers
	q.mu.Unlock()

	q.signal()
	notify(observers, events...)
	return out
}

// Claim moves the oldest queued task to uploading and returns a copy of it.
// It returns false when nothing is queued.
func (q *Queue) Claim() (*Task, bool) {
	q.mu.Lock()
	var (
		claimed *Task
		more    bool
	)
	for _, id := range q.order {
		t := q.tasks[id]
		if t.State != StateQueued {
			continue
		}
		if claimed == nil {
			t.State = StateUploading
			t.UpdatedAt = q.now()
			claimed = t.Clone()
			continue
		}
		more = true
		break
	}
	observers := q.observers
	q.mu.Unlock()

	if claimed == nil {
		return nil, false
	}
	if more {
		q.signal()
	}
	notify(observers, Event{TaskID: claimed.ID, ContentID: claimed.ContentID, State: StateUploading})
	return claimed, true
}

// UpdateProgress records transfer progress of an uploading task.
// Values are clamped to [0, 100] and never move backwards.
func (q *Queue) UpdateProgress(taskID string, percent float64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.tasks[taskID]
	if !ok {
		return ErrTaskNotFound
	}
	if t.State != StateUploading {
		return fmt.Errorf("%w: progress on %s task", ErrInvalidTransition, t.State)
	}
	percent = min(max(percent, 0), 100)
	if percent > t.Progress {
		t.Progress = percent
		t.UpdatedAt = q.now()
	}
	return nil
}

// Complete marks an uploading task complete with progress 100.
func (q *Queue) Complete(taskID string) error {
	return q.transition(taskID, StateComplete, func(t *Task) {
		t.Progress = 100
		t.Error = ""
	})
}

// Fail marks an uploading task as failed. Progress keeps its last value.
func (q *Queue) Fail(taskID string, cause error) error {
	return q.transition(taskID, StateError, func(t *Task) {
		if cause != nil {
			t.Error = cause.Error()
		}
	})
}

// Retry puts a failed task back in the queue with progress reset.
func (q *Queue) Retry(taskID string) (*Task, error) {
	var out *Task
	err := q.transition(taskID, StateQueued, func(t *Task) {
		t.Progress = 0
		t.Error = ""
		out = t.Clone()
	})
	if err != nil {
		return nil, err
	}
	q.signal()
	return out, nil
}

// SetGrant replaces the write grant of a task.
func (q *Queue) SetGrant(taskID string, grant storage.Grant) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.tasks[taskID]
	if !ok {
		return ErrTaskNotFound
	}
	t.Grant = grant
	t.UpdatedAt = q.now()
	return nil
}

func (q *Queue) transition(taskID string, to State, apply func(*Task)) error {
	q.mu.Lock()
	t, ok := q.tasks[taskID]
	if !ok {
		q.mu.Unlock()
		return ErrTaskNotFound
	}
	if !canTransition(t.State, to) {
		from := t.State
		q.mu.Unlock()
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, to)
	}
	t.State = to
	t.UpdatedAt = q.now()
	apply(t)
	ev := Event{TaskID: t.ID, ContentID: t.ContentID, State: to}
	observers := q.observers
	q.mu.Unlock()

	notify(observers, ev)
	return nil
}

// Get returns a copy of one task.
func (q *Queue) Get(taskID string) (*Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return t.Clone(), nil
}

// Snapshot returns copies of every task not yet finalized, oldest first.
func (q *Queue) Snapshot() []*Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*Task, 0, len(q.order))
	for _, id := range q.order {
		if t := q.tasks[id]; !t.Finalized {
			out = append(out, t.Clone())
		}
	}
	return out
}

// Batch returns copies of every task of a content item, finalized or not.
func (q *Queue) Batch(contentID string) []*Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []*Task
	for _, id := range q.order {
		if t := q.tasks[id]; t.ContentID == contentID {
			out = append(out, t.Clone())
		}
	}
	return out
}

// MarkFinalized sets the finalized flag on tasks of a content item.
// When taskIDs are given only those tasks are marked, so tasks enqueued after
// the completeness check are left alone. It returns the number marked.
func (q *Queue) MarkFinalized(contentID string, taskIDs ...string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	only := make(map[string]bool, len(taskIDs))
	for _, id := range taskIDs {
		only[id] = true
	}

	n := 0
	for _, t := range q.tasks {
		if t.ContentID != contentID || t.Finalized {
			continue
		}
		if len(only) > 0 && !only[t.ID] {
			continue
		}
		t.Finalized = true
		t.UpdatedAt = q.now()
		n++
	}
	return n
}

// Drop removes every task of a content item and returns the removed tasks.
// A worker still transferring one of them will find it gone when reporting.
func (q *Queue) Drop(contentID string) []*Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	var removed []*Task
	kept := q.order[:0]
	for _, id := range q.order {
		t := q.tasks[id]
		if t.ContentID == contentID {
			removed = append(removed, t)
			delete(q.tasks, id)
			continue
		}
		kept = append(kept, id)
	}
	q.order = kept
	return removed
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func notify(observers []Observer, events ...Event) {
	for _, ev := range events {
		for _, fn := range observers {
			fn(ev)
		}
	}
}
