package runtime

import (
	"context"
	"sync"
)

// Tasks tracks work a worker started on its own behalf, such as sync replays
// kicked off by the control API, so that shutdown can wait for it.
type Tasks struct {
	mu      sync.Mutex
	pending int64
	idle    chan struct{}
}

func NewTasks() *Tasks {
	idle := make(chan struct{})
	close(idle)
	return &Tasks{idle: idle}
}

// Begin marks one task as started. The returned func ends it and is safe to
// call more than once.
func (t *Tasks) Begin() func() {
	if t == nil {
		return func() {}
	}
	t.mu.Lock()
	t.pending++
	if t.pending == 1 {
		t.idle = make(chan struct{})
	}
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(t.end)
	}
}

func (t *Tasks) end() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending--
	if t.pending == 0 {
		close(t.idle)
	}
}

// Go runs fn with ctx in a tracked goroutine. The channel receives fn's
// result and is never closed.
func (t *Tasks) Go(ctx context.Context, fn func(context.Context) error) <-chan error {
	result := make(chan error, 1)
	done := t.Begin()
	go func() {
		defer done()
		result <- fn(ctx)
	}()
	return result
}

func (t *Tasks) Pending() int64 {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

// Wait blocks until no task is pending or ctx ends.
func (t *Tasks) Wait(ctx context.Context) error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	idle := t.idle
	t.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
