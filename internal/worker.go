package internal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Task 提交到 Pool 的工作，可等待完成
type Task struct {
	done chan struct{}
	err  error
}

func newTask() *Task {
	return &Task{done: make(chan struct{})}
}

func finishedTask(err error) *Task {
	t := newTask()
	t.finish(err)
	return t
}

func (t *Task) finish(err error) {
	t.err = err
	close(t.done)
}

// Done 完成時關閉
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait 等待完成並返回結果
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type job struct {
	name string
	fn   func(ctx context.Context) error
	task *Task
}

// Pool 固定數量的背景 worker
//
// 持久化工作一律經由 Pool 執行，不在呼叫端建立 goroutine。
// 佇列滿時 Submit 會阻塞（背壓），直到有 worker 取走工作。
type Pool struct {
	jobs   chan job
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
	logger *slog.Logger
}

// NewPool 建立並啟動 worker
func NewPool(workers, queueSize int, logger *slog.Logger) *Pool {
	p := &Pool{
		jobs:   make(chan job, queueSize),
		logger: logger,
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	return p
}

// Submit 提交工作
//
// Pool 已關閉時（關機階段）改為同步執行，工作不會被丟棄。
func (p *Pool) Submit(name string, fn func(ctx context.Context) error) *Task {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		p.logger.Warn("pool closed, running task synchronously", "task", name)
		j := job{name: name, fn: fn}
		return finishedTask(p.run(j))
	}

	t := newTask()
	p.jobs <- job{name: name, fn: fn, task: t}
	p.mu.RUnlock()
	return t
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for j := range p.jobs {
		j.task.finish(p.run(j))
	}
}

func (p *Pool) run(j job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked", "task", j.name, "panic", r)
			err = fmt.Errorf("task %s panicked: %v", j.name, r)
		}
	}()
	return j.fn(context.Background())
}

// Shutdown 停止接收新工作並等待佇列清空
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
}
