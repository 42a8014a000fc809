// Package workpool schedules per-slide tasks either strictly in index order or
// fanned out over a bounded number of goroutines.
package workpool

import (
	"context"
	"sync"
)

// Mode selects the scheduling strategy.
type Mode int

const (
	// Ordered runs tasks one at a time in index order.
	Ordered Mode = iota
	// Unordered runs up to Size tasks concurrently; completion order is arbitrary.
	Unordered
)

func (m Mode) String() string {
	if m == Ordered {
		return "ordered"
	}
	return "unordered"
}

// Task processes the item at index i.
type Task func(ctx context.Context, i int) error

// Pool runs tasks for indices [0, n).
type Pool struct {
	mode Mode
	size int
}

// New returns a pool. Sizes below one are treated as one; Ordered ignores size.
func New(mode Mode, size int) *Pool {
	if size < 1 || mode == Ordered {
		size = 1
	}
	return &Pool{mode: mode, size: size}
}

// Size reports the concurrency bound.
func (p *Pool) Size() int { return p.size }

// Run executes task for every index. The first task error cancels the context
// handed to the remaining tasks and is returned once in-flight tasks finish.
// Tasks that have not started when the context ends are skipped; in that case
// the context error is returned.
func (p *Pool) Run(ctx context.Context, n int, task Task) error {
	if n <= 0 {
		return ctx.Err()
	}
	if p.mode == Ordered {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := task(ctx, i); err != nil {
				return err
			}
		}
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	sem := make(chan struct{}, p.size)

dispatch:
	for i := 0; i < n; i++ {
		select {
		case sem <- struct{}{}:
		case <-runCtx.Done():
			break dispatch
		}
		if runCtx.Err() != nil {
			<-sem
			break
		}
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := task(runCtx, idx); err != nil {
				once.Do(func() {
					firstErr = err
					cancel()
				})
			}
		}(i)
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}
