// Package tasks runs batches of independent tasks on a bounded worker pool.
package tasks

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultTaskTimeout = 2 * time.Minute
	maxRetryDelay      = 30 * time.Second
)

// Pool executes submitted tasks on a fixed number of workers. Submit blocks
// while the queue is full; Wait closes the queue and returns once every
// accepted task has finished.
type Pool struct {
	workerCount int
	taskTimeout time.Duration

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	taskQueue chan TaskInterface
	closeOnce sync.Once

	mu        sync.Mutex
	completed int
	failed    int
}

func NewPool(ctx context.Context, workerCount int, taskTimeout time.Duration) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	if taskTimeout <= 0 {
		taskTimeout = DefaultTaskTimeout
	}
	ctx, cancel := context.WithCancel(ctx)

	return &Pool{
		workerCount: workerCount,
		taskTimeout: taskTimeout,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, workerCount*2),
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Submit queues task, blocking until a slot frees or the pool is cancelled.
func (p *Pool) Submit(task TaskInterface) error {
	select {
	case p.taskQueue <- task:
		return nil
	case <-p.ctx.Done():
		return p.ctx.Err()
	}
}

// Wait stops accepting tasks and blocks until the workers drain the queue.
func (p *Pool) Wait() {
	p.closeOnce.Do(func() { close(p.taskQueue) })
	p.wg.Wait()
	p.cancel()
}

// Stop cancels running tasks and waits for the workers to exit.
func (p *Pool) Stop() {
	p.cancel()
	p.closeOnce.Do(func() { close(p.taskQueue) })
	p.wg.Wait()
}

// Stats returns the number of completed and failed tasks.
func (p *Pool) Stats() (completed, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.completed, p.failed
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case task, ok := <-p.taskQueue:
			if !ok {
				return
			}
			p.executeTask(id, task)

		case <-p.ctx.Done():
			return
		}
	}
}

func (p *Pool) executeTask(workerID int, task TaskInterface) {
	task.Start()

	for {
		err := p.runOnce(task)
		if err == nil {
			slog.Debug("Task completed", "worker_id", workerID, "type", string(task.GetType()), "target", task.GetTarget(), "duration", task.GetDuration())
			p.record(true)
			return
		}

		slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

		if !task.CanRetry() {
			if task.GetMaxRetries() > 0 {
				slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
			}
			p.record(false)
			return
		}

		task.IncrementRetryCount()
		retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
		if retryDelay > maxRetryDelay {
			retryDelay = maxRetryDelay
		}

		slog.Warn("Task retry scheduled", "type", string(task.GetType()), "target", task.GetTarget(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

		select {
		case <-time.After(retryDelay):
		case <-p.ctx.Done():
			slog.Debug("Pool stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
			p.record(false)
			return
		}
	}
}

func (p *Pool) runOnce(task TaskInterface) error {
	taskCtx, cancel := context.WithTimeout(p.ctx, p.taskTimeout)
	defer cancel()
	return task.Execute(taskCtx)
}

func (p *Pool) record(ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ok {
		p.completed++
	} else {
		p.failed++
	}
}
