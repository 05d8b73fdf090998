// Package taskpool bridges blocking storage calls onto a bounded set of
// goroutines, so a slow disk write cannot starve the connection drivers
// sharing the process. It is adapted from the teacher's pool/pool.go: the
// same semaphore.Weighted-gated admission pattern, but instead of
// checking out/in long-lived net.Conn objects, it runs one-shot blocking
// closures and returns their result asynchronously.
package taskpool

import (
	"context"
	"errors"

	"golang.org/x/sync/semaphore"
)

const token int64 = 1

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("taskpool: closed")

// Pool runs func() (any, error) tasks with at most maxConcurrent in
// flight; callers beyond that bound queue on the semaphore acquire.
type Pool struct {
	sema   *semaphore.Weighted
	ctx    context.Context
	cancel context.CancelFunc
}

// New builds a Pool capped at maxConcurrent simultaneous tasks.
func New(maxConcurrent int) *Pool {
	if maxConcurrent <= 0 {
		panic("taskpool: invalid maxConcurrent")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		sema:   semaphore.NewWeighted(int64(maxConcurrent)),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Result is the outcome of a submitted task, delivered on the channel
// Submit returns.
type Result struct {
	Value any
	Err   error
}

// Submit runs fn on a pool goroutine once a slot is available (or ctx is
// done), delivering its result on the returned channel exactly once.
func (p *Pool) Submit(ctx context.Context, fn func() (any, error)) <-chan Result {
	out := make(chan Result, 1)

	if p.isClosed() {
		out <- Result{Err: ErrClosed}
		close(out)
		return out
	}

	if err := p.sema.Acquire(ctx, token); err != nil {
		out <- Result{Err: err}
		close(out)
		return out
	}

	go func() {
		defer p.sema.Release(token)
		v, err := fn()
		out <- Result{Value: v, Err: err}
		close(out)
	}()

	return out
}

// Close stops accepting new tasks; in-flight tasks are left to finish.
func (p *Pool) Close() {
	p.cancel()
}

func (p *Pool) isClosed() bool {
	select {
	case <-p.ctx.Done():
		return true
	default:
		return false
	}
}
