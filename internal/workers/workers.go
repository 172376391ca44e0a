// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package workers runs indexed tasks, like decoding the images of a batch, with bounded parallelism.
package workers

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Pool limits the number of tasks running in parallel. It can be shared by many callers: the limit
// applies to the tasks of all concurrent Map calls together.
type Pool struct {
	// maxParallelism is the limit of tasks running at the same time. If 0 tasks run inline,
	// if negative there is no limit.
	maxParallelism int

	mu         sync.Mutex
	cond       sync.Cond // Signaled whenever numRunning is decreased.
	numRunning int
}

// New returns a Pool with the given parallelism. If maxParallelism is 0 tasks run inline in the caller,
// if it is negative parallelism is unlimited.
func New(maxParallelism int) *Pool {
	p := &Pool{maxParallelism: maxParallelism}
	p.cond = sync.Cond{L: &p.mu}
	return p
}

// Default is shared by the image loading code, with parallelism runtime.NumCPU().
var Default = New(runtime.NumCPU())

// MaxParallelism returns the limit of tasks running at the same time.
func (p *Pool) MaxParallelism() int { return p.maxParallelism }

// acquire blocks until a task can be started.
func (p *Pool) acquire() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.maxParallelism > 0 && p.numRunning >= p.maxParallelism {
		p.cond.Wait()
	}
	p.numRunning++
}

func (p *Pool) release() {
	p.mu.Lock()
	p.numRunning--
	p.cond.Signal()
	p.mu.Unlock()
}

// Map calls fn(i) for every i in [0, n) and waits for all calls to finish.
//
// Calls are started in index order. After the first error no new calls are started and that error is
// returned. If the pool runs tasks inline, this is the error of the lowest failing index.
func (p *Pool) Map(n int, fn func(i int) error) error {
	if p.maxParallelism == 0 {
		for i := range n {
			if err := fn(i); err != nil {
				return err
			}
		}
		return nil
	}

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(p.maxParallelism) // Negative means no limit.
	for i := range n {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			p.acquire()
			defer p.release()
			if ctx.Err() != nil {
				return nil
			}
			return fn(i)
		})
	}
	return g.Wait()
}
