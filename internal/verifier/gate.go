package verifier

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// Gate bounds the number of concurrent model calls. Waiters are served in
// FIFO order. With a positive maxWait a waiter gives up with TooBusyError;
// otherwise it waits until a slot frees up or its context ends.
type Gate struct {
	sem      *semaphore.Weighted
	capacity int64
	maxWait  time.Duration

	inflight atomic.Int64
	waiting  atomic.Int64
	peak     atomic.Int64
}

// NewGate returns a gate with the given capacity (minimum 1).
func NewGate(capacity int, maxWait time.Duration) *Gate {
	if capacity < 1 {
		capacity = 1
	}
	gateCapacity.Set(float64(capacity))
	return &Gate{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: int64(capacity),
		maxWait:  maxWait,
	}
}

// Acquire blocks until a slot is held and returns its release func. Release
// is idempotent. On error nothing is held and the returned func is a no-op.
func (g *Gate) Acquire(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return func() {}, err
	}
	waitCtx := ctx
	if g.maxWait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, g.maxWait)
		defer cancel()
	}

	g.waiting.Add(1)
	gateWaiting.Inc()
	err := g.sem.Acquire(waitCtx, 1)
	g.waiting.Add(-1)
	gateWaiting.Dec()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return func() {}, ctxErr
		}
		return func() {}, &TooBusyError{Wait: g.maxWait}
	}

	n := g.inflight.Add(1)
	gateInflight.Inc()
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.inflight.Add(-1)
			gateInflight.Dec()
			g.sem.Release(1)
		})
	}, nil
}

// Capacity returns the number of slots.
func (g *Gate) Capacity() int { return int(g.capacity) }

// InFlight returns the number of currently held slots.
func (g *Gate) InFlight() int { return int(g.inflight.Load()) }

// Waiting returns the number of callers blocked in Acquire.
func (g *Gate) Waiting() int { return int(g.waiting.Load()) }

// Peak returns the highest InFlight value observed.
func (g *Gate) Peak() int { return int(g.peak.Load()) }
