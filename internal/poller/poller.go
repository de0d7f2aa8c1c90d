// Package poller runs the periodic and one-shot background fetches owned by a view.
// Every task belongs to a Group; closing the Group cancels in-flight work and
// guarantees no task starts afterwards.
package poller

import (
	"context"
	"sync"
	"time"
)

// Task is one unit of background work. ctx is cancelled when the owning Group closes.
type Task func(ctx context.Context)

// Group owns the background tasks of a single view.
type Group struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewGroup returns a Group whose tasks stop when parent is cancelled or Close is called.
func NewGroup(parent context.Context) *Group {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Group{ctx: ctx, cancel: cancel}
}

// Context is cancelled once the group closes.
func (g *Group) Context() context.Context {
	return g.ctx
}

// Closed reports whether Close has been called.
func (g *Group) Closed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

// Go runs task in a tracked goroutine. It reports false and does nothing once the group is closed.
func (g *Group) Go(task Task) bool {
	g.mu.Lock()
	if g.closed || g.ctx.Err() != nil {
		g.mu.Unlock()
		return false
	}
	g.wg.Add(1)
	g.mu.Unlock()

	go func() {
		defer g.wg.Done()
		task(g.ctx)
	}()
	return true
}

// Every runs task immediately and then once per period until the group closes.
// Each run gets its own goroutine, so a slow run does not delay the next tick.
func (g *Group) Every(period time.Duration, task Task) bool {
	if period <= 0 {
		return g.Go(task)
	}
	return g.Go(func(ctx context.Context) {
		g.Go(task)
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				g.Go(task)
			}
		}
	})
}

// After runs task once after delay unless the group closes first.
func (g *Group) After(delay time.Duration, task Task) bool {
	return g.Go(func(ctx context.Context) {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
			if ctx.Err() == nil {
				task(ctx)
			}
		}
	})
}

// Close cancels every task and waits for running ones to return.
// It is safe to call more than once.
func (g *Group) Close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
	g.cancel()
	g.wg.Wait()
}
