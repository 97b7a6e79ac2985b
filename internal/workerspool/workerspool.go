// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package workerspool runs independent tasks in parallel, with a limit on the number of
// goroutines. It's used to evaluate independent trials of a staged network.
package workerspool

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Pool of workers. Create it with New or NewWithParallelism.
type Pool struct {
	maxParallelism int
}

// New returns a new Pool with the default parallelism (runtime.NumCPU()).
func New() *Pool {
	return &Pool{maxParallelism: runtime.NumCPU()}
}

// NewWithParallelism returns a new Pool running at most maxParallelism tasks at a time.
// If maxParallelism is 0 parallelism is disabled and tasks run inline.
// If it is negative, parallelism is unlimited.
func NewWithParallelism(maxParallelism int) *Pool {
	return &Pool{maxParallelism: maxParallelism}
}

// MaxParallelism returns the limit of tasks run at a time: 0 if disabled, negative if unlimited.
func (w *Pool) MaxParallelism() int {
	return w.maxParallelism
}

// Run executes task(ii) for every ii in [0, n) and waits for all of them to finish.
//
// If parallelism is disabled, tasks run inline, in order. Run must not be called from within a
// task of a pool with limited parallelism, it may deadlock.
func (w *Pool) Run(n int, task func(ii int)) {
	if w.maxParallelism == 0 {
		for ii := range n {
			task(ii)
		}
		return
	}
	var g errgroup.Group
	g.SetLimit(w.maxParallelism)
	for ii := range n {
		g.Go(func() error {
			task(ii)
			return nil
		})
	}
	_ = g.Wait()
}
