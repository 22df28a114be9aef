package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrBusy is returned when every pipeline slot is taken.
var ErrBusy = errors.New("server is busy, please retry")

// Gate bounds the number of pipelines in flight.
type Gate struct {
	sem      *semaphore.Weighted
	capacity int64
	wait     time.Duration
	inFlight atomic.Int64
}

// NewGate admits up to capacity concurrent holders. A positive wait lets
// Acquire queue briefly before giving up.
func NewGate(capacity int, wait time.Duration) *Gate {
	if capacity <= 0 {
		capacity = 1
	}
	return &Gate{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: int64(capacity),
		wait:     wait,
	}
}

// Acquire takes a slot. The returned release func must be called exactly
// once; extra calls are ignored.
func (g *Gate) Acquire(ctx context.Context) (func(), error) {
	if !g.sem.TryAcquire(1) {
		if g.wait <= 0 {
			return nil, ErrBusy
		}
		wctx, cancel := context.WithTimeout(ctx, g.wait)
		defer cancel()
		if err := g.sem.Acquire(wctx, 1); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, ErrBusy
		}
	}
	g.inFlight.Add(1)

	var released atomic.Bool
	return func() {
		if released.CompareAndSwap(false, true) {
			g.inFlight.Add(-1)
			g.sem.Release(1)
		}
	}, nil
}

func (g *Gate) InFlight() int64 { return g.inFlight.Load() }
func (g *Gate) Capacity() int64 { return g.capacity }
