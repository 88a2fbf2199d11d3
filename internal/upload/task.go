// Package upload holds the in-process transfer pipeline: the Queue of file
// transfer tasks, the Worker that drains it to the object store, and the
// Reconciler that finalizes a content item once its batch is complete.
package upload

import (
	"errors"
	"slices"
	"time"

	"github.com/maauso/wanzami-api/internal/asset"
	"github.com/maauso/wanzami-api/internal/storage"
)

// State represents the transfer state of a Task.
type State string

const (
	// StateQueued indicates the task waits for a worker.
	StateQueued State = "queued"
	// StateUploading indicates a worker is transferring the bytes.
	StateUploading State = "uploading"
	// StateComplete indicates the object store accepted the bytes.
	StateComplete State = "complete"
	// StateError indicates the transfer failed; the task can be retried.
	StateError State = "error"
)

var (
	// ErrTaskNotFound is returned when a task ID is not in the queue.
	ErrTaskNotFound = errors.New("upload task not found")
	// ErrInvalidTransition is returned when a task state change is not allowed.
	ErrInvalidTransition = errors.New("invalid upload task transition")
)

// validTransitions defines which task state changes are allowed.
// Only a manual retry moves a task backwards.
var validTransitions = map[State][]State{
	StateQueued:    {StateUploading},
	StateUploading: {StateComplete, StateError},
	StateError:     {StateQueued},
}

func canTransition(from, to State) bool {
	return slices.Contains(validTransitions[from], to)
}

// Task is the transfer of one declared file.
type Task struct {
	ID          string        `json:"id"`
	ContentID   string        `json:"content_id"`
	Role        asset.Role    `json:"role"`
	FileName    string        `json:"file_name"`
	ContentType string        `json:"content_type"`
	Size        int64         `json:"size"`
	StagedPath  string        `json:"-"`
	Grant       storage.Grant `json:"-"`
	State       State         `json:"state"`
	// Progress is the percentage of bytes sent, in [0, 100].
	Progress float64 `json:"progress"`
	Error    string  `json:"error,omitempty"`
	// Finalized is set once the owning content item was finalized for the
	// batch this task belongs to. It is independent of State.
	Finalized bool      `json:"finalized"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a copy of the task safe to hand to callers.
func (t *Task) Clone() *Task {
	c := *t
	return &c
}
