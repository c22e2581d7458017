package tasks

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type TaskType string

const (
	TaskTypeReconcileList TaskType = "reconcile_list"
)

// TaskState follows idle -> resolving -> reconciled | skipped. Both end states
// are terminal for the run; nothing is retried until the next trigger.
type TaskState string

const (
	TaskStateIdle       TaskState = "idle"
	TaskStateResolving  TaskState = "resolving"
	TaskStateReconciled TaskState = "reconciled"
	TaskStateSkipped    TaskState = "skipped"
)

type TaskInterface interface {
	Execute(ctx context.Context) error
	GetID() string
	GetType() TaskType
	GetListID() string
	GetState() TaskState
	Start()
	GetDuration() time.Duration
}

type Task struct {
	ID        string
	Type      TaskType
	ListID    string
	State     TaskState
	StartedAt *time.Time
}

func (t *Task) GetID() string {
	return t.ID
}

func (t *Task) GetType() TaskType {
	return t.Type
}

func (t *Task) GetListID() string {
	return t.ListID
}

func (t *Task) GetState() TaskState {
	return t.State
}

func (t *Task) Start() {
	now := time.Now()
	t.StartedAt = &now
}

func (t *Task) GetDuration() time.Duration {
	if t.StartedAt == nil {
		return 0
	}
	return time.Since(*t.StartedAt)
}

func NewTask(taskType TaskType, listID string) Task {
	return Task{
		ID:     uuid.NewString(),
		Type:   taskType,
		ListID: listID,
		State:  TaskStateIdle,
	}
}
