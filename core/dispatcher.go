package session

import (
	"sync/atomic"
)

// dispatcher drains the chunk queue toward the rendering endpoint. At most
// one drain runs at a time (busy flag); producers call Kick after every
// enqueue and whenever forwarding becomes allowed again, so a drain never
// needs to poll or block for new work.
type dispatcher struct {
	queue *chunkQueue

	busy atomic.Bool

	// forward pushes one chunk to the rendering endpoint.
	forward func(Chunk) error
	// gate reports whether forwarding is currently allowed. While it is
	// false pending chunks stay queued; the health monitor re-kicks after a
	// reconnect.
	gate func() bool

	forwardedTotal atomic.Int64
}

func newDispatcher(queue *chunkQueue, forward func(Chunk) error, gate func() bool) *dispatcher {
	if forward == nil {
		forward = func(Chunk) error { return nil }
	}
	if gate == nil {
		gate = func() bool { return true }
	}
	return &dispatcher{queue: queue, forward: forward, gate: gate}
}

// Kick starts a drain unless one is already running. Safe to call from any
// goroutine; extra kicks while busy are absorbed by the re-arm check below.
func (d *dispatcher) Kick() {
	if !d.busy.CompareAndSwap(false, true) {
		return
	}
	d.drain()
}

// drain is a bounded loop, not a self-recursing chain: it dequeues until the
// queue reports empty or the gate closes, then releases the busy flag. A
// chunk enqueued after the loop decided to stop would otherwise be stranded
// until the next delta, so after releasing the flag it re-checks and re-arms.
func (d *dispatcher) drain() {
	for {
		for d.gate() {
			chunk, ok := d.queue.Dequeue()
			if !ok {
				break
			}

			if err := d.forward(chunk); err != nil {
				logger.Warn("failed to forward audio chunk", "error", err)
				continue
			}
			d.forwardedTotal.Add(1)
		}

		d.busy.Store(false)

		if d.queue.Len() == 0 || !d.gate() {
			return
		}
		if !d.busy.CompareAndSwap(false, true) {
			// Another kick took over; its drain owns the remaining work.
			return
		}
	}
}

func (d *dispatcher) ForwardedTotal() int64 {
	return d.forwardedTotal.Load()
}
