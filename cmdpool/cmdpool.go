// Package cmdpool implements the command-pool ring: a small bounded FIFO
// of command-buffer allocators, reused round-robin so that a pool is only
// reset once every buffer it handed out has been returned. Grounded in
// the same triple-buffering rationale as package epoch, and in the
// allocate/reset/free-list pattern of the pack's own low-level GPU driver
// (other_examples' gviegas-neo3 driver-vk-cmd.go, which pairs a driver
// command-pool handle with a free-list of recorded-but-unsubmitted
// buffers).
package cmdpool

import (
	"fmt"

	"github.com/oxy-arcana/rendergraph/driver"
)

// DefaultBound matches the epoch ring's triple-buffering bound so the two
// rings can recycle in parallel.
const DefaultBound = 3

// Pool wraps one driver command pool plus the free-list of buffers
// returned to it and the count of buffers currently outstanding
// (allocated but not yet deallocated).
type Pool struct {
	device    driver.Device
	free      []driver.CommandBuffer
	allocated int
}

// Outstanding reports how many buffers this pool has allocated that have
// not yet been returned via Deallocate.
func (p *Pool) Outstanding() int { return p.allocated }

// Allocate calls newEncoder (typically the caller's
// Queue.NewCommandEncoder) for a new recording command buffer and counts
// it as outstanding. It does not draw from the free list that Deallocate
// fills: every call asks newEncoder for a new encoder. The pool itself
// only tracks ownership bookkeeping, since the driver contract (§6) puts
// buffer allocation on Queue.NewCommandEncoder rather than on a bare pool
// handle.
func (p *Pool) Allocate(newEncoder func() (driver.CommandEncoder, error)) (driver.CommandEncoder, error) {
	p.allocated++
	enc, err := newEncoder()
	if err != nil {
		p.allocated--
		return nil, fmt.Errorf("cmdpool: allocating command buffer: %w", err)
	}
	return enc, nil
}

// Deallocate pushes buf onto the pool's free list and decrements the
// outstanding counter.
func (p *Pool) Deallocate(buf driver.CommandBuffer) {
	p.free = append(p.free, buf)
	if p.allocated > 0 {
		p.allocated--
	}
}

// Ring is the bounded FIFO of command pools. The front pool is the one
// eligible for reset-and-rotate; the back pool is the one new allocations
// prefer, so a pool only becomes the front (and thus reset-eligible) once
// every other pool ahead of it has cycled through.
type Ring struct {
	device driver.Device
	bound  int
	pools  []*Pool
}

// NewRing creates a command-pool ring bounded to at most `bound` pools. A
// non-positive bound falls back to DefaultBound.
func NewRing(device driver.Device, bound int) *Ring {
	if bound <= 0 {
		bound = DefaultBound
	}
	return &Ring{device: device, bound: bound}
}

// Bound reports the ring's configured maximum pool count.
func (r *Ring) Bound() int { return r.bound }

// Len reports how many pools currently exist in the ring.
func (r *Ring) Len() int { return len(r.pools) }

// Refresh rotates the front pool to the back if it has zero outstanding
// allocations. It is a no-op otherwise, leaving the front pool in place
// until its buffers are returned.
func (r *Ring) Refresh() {
	if len(r.pools) == 0 {
		return
	}
	front := r.pools[0]
	if front.Outstanding() != 0 {
		return
	}
	r.pools = append(r.pools[1:], front)
}

// Acquire returns the back pool to allocate from, creating a new empty
// pool and appending it if the ring is below its bound and the current
// back pool has outstanding allocations (so as not to interleave buffers
// from two frames into the same pool unnecessarily). If the ring is at
// its bound, the existing back pool is reused regardless of its
// occupancy.
func (r *Ring) Acquire() *Pool {
	if len(r.pools) == 0 {
		p := &Pool{device: r.device}
		r.pools = append(r.pools, p)
		return p
	}
	back := r.pools[len(r.pools)-1]
	if back.Outstanding() == 0 || len(r.pools) >= r.bound {
		return back
	}
	p := &Pool{device: r.device}
	r.pools = append(r.pools, p)
	return p
}
