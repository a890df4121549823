// Package parallel runs CPU-bound work over disjoint contiguous ranges.
//
// Every call blocks until all of its blocks have finished, so results are
// visible to the caller on return. Within a block, offsets are visited in
// increasing order.
package parallel

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// For calls fn over [0,n) split into blocks of at most grain elements.
// Inputs of n <= threshold run inline as a single block.
func For(n, threshold, grain int, fn func(lo, hi int)) {
	if n <= 0 {
		return
	}
	if n <= threshold || grain <= 0 || n <= grain {
		fn(0, n)
		return
	}
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for lo := 0; lo < n; lo += grain {
		hi := min(lo+grain, n)
		g.Go(func() error {
			fn(lo, hi)
			return nil
		})
	}
	_ = g.Wait()
}

// TaskList collects independent tasks and runs them with one join.
type TaskList struct {
	tasks []func()
}

func (t *TaskList) Len() int { return len(t.tasks) }

func (t *TaskList) Add(fn func()) {
	t.tasks = append(t.tasks, fn)
}

// AddRange adds one task per block of [0,n).
func (t *TaskList) AddRange(n, grain int, fn func(lo, hi int)) {
	if grain <= 0 {
		grain = n
	}
	for lo := 0; lo < n; lo += grain {
		hi := min(lo+grain, n)
		t.tasks = append(t.tasks, func() { fn(lo, hi) })
	}
}

// Run executes every task and clears the list. With concurrent false the
// tasks run in insertion order on the calling goroutine.
func (t *TaskList) Run(concurrent bool) {
	tasks := t.tasks
	t.tasks = nil
	if !concurrent || len(tasks) < 2 {
		for _, fn := range tasks {
			fn()
		}
		return
	}
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, fn := range tasks {
		g.Go(func() error {
			fn()
			return nil
		})
	}
	_ = g.Wait()
}
