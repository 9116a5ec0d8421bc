package renderer

import (
	"runtime"
	"sync"
)

// Executor runs render jobs. Submit must not block the caller.
type Executor interface {
	Submit(job func())
}

// boundedExecutor runs at most cap(slots) jobs at a time.
type boundedExecutor struct {
	slots chan struct{}
}

// NewExecutor returns an executor running at most n jobs at once.
// Jobs beyond that wait in their own goroutine for a free slot.
func NewExecutor(n int) Executor {
	return &boundedExecutor{slots: make(chan struct{}, max(1, n))}
}

func (b *boundedExecutor) Submit(job func()) {
	go func() {
		b.slots <- struct{}{}
		defer func() { <-b.slots }()
		job()
	}()
}

var (
	sharedOnce sync.Once
	shared     Executor
)

// SharedExecutor returns the process-wide executor with one slot per
// available CPU.
func SharedExecutor() Executor {
	sharedOnce.Do(func() {
		shared = NewExecutor(runtime.GOMAXPROCS(0))
	})
	return shared
}
