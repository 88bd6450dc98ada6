package tasks

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type TaskType string

// ScoreRetries is how often a scoring task is rerun after its own timeout cut
// the computation short.
const ScoreRetries = 1

const (
	TaskTypeScoreItem      TaskType = "score_item"
	TaskTypeValidateSource TaskType = "validate_source"
	TaskTypeScoreSource    TaskType = "score_source"
)

type TaskInterface interface {
	Execute(ctx context.Context) error
	GetID() string
	GetType() TaskType
	GetTarget() string
	GetRetryCount() int
	GetMaxRetries() int
	IncrementRetryCount()
	CanRetry() bool
	Start()
	GetDuration() time.Duration
}

// Task carries the bookkeeping shared by every task; concrete tasks embed it
// and add Execute.
type Task struct {
	ID         string
	Type       TaskType
	Target     string
	RetryCount int
	MaxRetries int
	StartedAt  *time.Time
}

func (t *Task) GetID() string {
	return t.ID
}

func (t *Task) GetType() TaskType {
	return t.Type
}

func (t *Task) GetTarget() string {
	return t.Target
}

func (t *Task) GetRetryCount() int {
	return t.RetryCount
}

func (t *Task) GetMaxRetries() int {
	return t.MaxRetries
}

func (t *Task) IncrementRetryCount() {
	t.RetryCount++
}

func (t *Task) CanRetry() bool {
	return t.RetryCount < t.MaxRetries
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

// NewTask returns task bookkeeping for target. Outbound requests already
// retry through the shared policy, so tasks do not retry by default.
func NewTask(taskType TaskType, target string) Task {
	return Task{
		ID:     uuid.NewString(),
		Type:   taskType,
		Target: target,
	}
}

// FuncTask runs a closure as a task.
type FuncTask struct {
	Task
	fn func(ctx context.Context) error
}

func NewFuncTask(taskType TaskType, target string, fn func(ctx context.Context) error) *FuncTask {
	return &FuncTask{Task: NewTask(taskType, target), fn: fn}
}

// WithRetries lets the pool run the task up to n more times after a failure.
func (t *FuncTask) WithRetries(n int) *FuncTask {
	t.MaxRetries = n
	return t
}

func (t *FuncTask) Execute(ctx context.Context) error {
	return t.fn(ctx)
}
