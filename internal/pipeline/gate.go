package pipeline

import "sync/atomic"

// Gate is a single-slot admission gate. Only one end-to-end generation
// runs at a time; a request that finds the gate held is dropped by the
// caller rather than queued, so a stale bedtime request never starts
// playing minutes after the button press.
type Gate struct {
	held atomic.Bool
}

// TryAcquire claims the gate. It returns false without blocking when a
// generation is already in flight.
func (g *Gate) TryAcquire() bool {
	return g.held.CompareAndSwap(false, true)
}

// Release frees the gate for the next request.
func (g *Gate) Release() {
	g.held.Store(false)
}

// Busy reports whether a generation currently holds the gate.
func (g *Gate) Busy() bool {
	return g.held.Load()
}
