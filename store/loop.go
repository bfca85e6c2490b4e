package store

import (
	"context"
	"sync"
	"time"
)

// Loop is a FIFO task queue drained by a single goroutine. Work that
// finishes elsewhere (network calls, timers) posts its continuation here
// so every Store mutation happens on the loop goroutine, one task at a
// time, each running to completion.
type Loop struct {
	mu    sync.Mutex
	tasks []func()
	wake  chan struct{}

	inflight sync.WaitGroup
}

func NewLoop() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Post enqueues fn. Safe for concurrent use.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.tasks = append(l.tasks, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Go runs work on a new goroutine and posts the continuation it returns.
// A nil continuation posts nothing.
func (l *Loop) Go(work func() func()) {
	l.inflight.Add(1)
	go func() {
		defer l.inflight.Done()
		if next := work(); next != nil {
			l.Post(next)
		}
	}()
}

// AfterFunc posts fn once d has elapsed. The returned stop function
// cancels it if it has not fired yet.
func (l *Loop) AfterFunc(d time.Duration, fn func()) (stop func() bool) {
	if d <= 0 {
		l.Post(fn)
		return func() bool { return false }
	}
	l.inflight.Add(1)
	var once sync.Once
	done := func() { once.Do(l.inflight.Done) }
	t := time.AfterFunc(d, func() {
		l.Post(fn)
		done()
	})
	return func() bool {
		if t.Stop() {
			done()
			return true
		}
		return false
	}
}

// Drain runs queued tasks, including ones they post, until the queue is
// empty. It returns the number of tasks run.
func (l *Loop) Drain() int {
	n := 0
	for {
		l.mu.Lock()
		if len(l.tasks) == 0 {
			l.mu.Unlock()
			return n
		}
		fn := l.tasks[0]
		l.tasks[0] = nil
		l.tasks = l.tasks[1:]
		l.mu.Unlock()
		fn()
		n++
	}
}

// Flush waits for outstanding Go work and timers and drains the queue
// until nothing is left. Intended for tests and batch hosts that do not
// call Run.
func (l *Loop) Flush() {
	for {
		l.inflight.Wait()
		if l.Drain() == 0 {
			return
		}
	}
}

// Run drains the queue whenever work is posted until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	l.Drain()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
			l.Drain()
		}
	}
}
