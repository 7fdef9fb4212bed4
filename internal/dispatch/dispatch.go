// Package dispatch hands processing work to background workers. The
// dispatcher guarantees at-least-once delivery, so handlers must be
// idempotent.
package dispatch

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"stash/internal/logger"
)

// WorkKind names the type of a work unit.
type WorkKind string

const (
	// KindProcessItem summarizes one item and runs its group join check.
	KindProcessItem WorkKind = "process_item"
)

// WorkUnit is one deliverable unit of background work.
type WorkUnit struct {
	Kind    WorkKind
	OwnerID string
	ItemID  string
	GroupID string // empty for singletons
}

// Handler executes one work unit.
type Handler func(ctx context.Context, unit WorkUnit) error

// Dispatcher delivers work units to a handler.
type Dispatcher interface {
	Dispatch(ctx context.Context, unit WorkUnit) error
}

// Local runs work units on background goroutines with bounded
// concurrency. It is the single-process stand-in for a durable queue.
type Local struct {
	handler Handler
	sem     *semaphore.Weighted
	wg      sync.WaitGroup
}

// NewLocal creates a local dispatcher running at most maxConcurrent units
// at once.
func NewLocal(handler Handler, maxConcurrent int) *Local {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Local{
		handler: handler,
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

// Dispatch enqueues a unit. It blocks only while the worker pool is
// saturated; the unit itself runs asynchronously.
func (d *Local) Dispatch(ctx context.Context, unit WorkUnit) error {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.sem.Release(1)
		if err := d.handler(context.WithoutCancel(ctx), unit); err != nil {
			logger.Error("work unit failed", err,
				"kind", string(unit.Kind), "owner", unit.OwnerID, "item", unit.ItemID)
		}
	}()
	return nil
}

// Wait blocks until all dispatched units have finished. Used by the CLI
// and tests to drain before exiting.
func (d *Local) Wait() {
	d.wg.Wait()
}
