package scope

import (
	"context"
	"errors"
	"sync"
)

var ErrClosed = errors.New("scope: closed")

// Scope is a group of goroutines bound to one lifetime. Close cancels every
// task context and waits for the tasks to return.
type Scope struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
}

func New(parent context.Context) *Scope {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Scope{ctx: ctx, cancel: cancel}
}

// Go runs fn with a child context. The returned cancel aborts only this task.
func (s *Scope) Go(fn func(ctx context.Context)) (context.CancelFunc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	ctx, cancel := context.WithCancel(s.ctx)
	s.wg.Add(1)
	go func() {
		defer func() {
			cancel()
			s.wg.Done()
		}()
		fn(ctx)
	}()
	return cancel, nil
}

func (s *Scope) Done() <-chan struct{} { return s.ctx.Done() }

// Close is idempotent.
func (s *Scope) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
}
