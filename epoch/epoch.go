// Package epoch implements the epoch ring: a bounded FIFO of in-flight GPU
// submissions, each carrying a completion fence, the reference bags that
// must outlive it, and the command buffers it used together with their
// owning pools. Grounded in the bound-3 triple-buffering model the spec
// calls for and in the mev crate's submission/fence lifecycle
// (crates/mev/src/vulkan/queue.rs).
package epoch

import (
	"fmt"

	"github.com/oxy-arcana/rendergraph/cmdpool"
	"github.com/oxy-arcana/rendergraph/driver"
	"github.com/oxy-arcana/rendergraph/internal/refbag"
)

// DefaultBound is the spec's triple-buffering default: three in-flight
// epochs trade CPU/GPU latency for memory in the way real-time rendering
// usually wants. More would inflate memory; fewer would serialize the CPU
// against the GPU.
const DefaultBound = 3

// cbufRef pairs a submitted command buffer with the command pool it must
// be returned to once its epoch retires.
type cbufRef struct {
	buf  driver.CommandBuffer
	pool *cmdpool.Pool
}

// Epoch is one in-flight submission's CPU-side bookkeeping: its
// completion fence, the reference bags it holds alive, and the command
// buffers (with owning pools) it must return once retired.
type Epoch struct {
	fence   driver.Fence
	bags    []*refbag.Bag
	bufs    []cbufRef
	images  []driver.Image
	buffers []driver.Buffer
}

// AddBag records bag as one of the reference bags this epoch must keep
// alive until it retires.
func (e *Epoch) AddBag(bag *refbag.Bag) {
	e.bags = append(e.bags, bag)
}

// AddCommandBuffer records buf, owned by pool, as part of this epoch's
// submission.
func (e *Epoch) AddCommandBuffer(buf driver.CommandBuffer, pool *cmdpool.Pool) {
	e.bufs = append(e.bufs, cbufRef{buf: buf, pool: pool})
}

// Fence returns the epoch's completion fence, valid once the epoch has
// been populated by a submission.
func (e *Epoch) Fence() driver.Fence { return e.fence }

// AddOwnedImage records img as a transient image this epoch's submission
// allocated fresh (as opposed to a presentation image owned by a surface
// synchronizer). It is destroyed, not just dereferenced, once this epoch
// retires — transient resources are not cross-frame-aliased (§1).
func (e *Epoch) AddOwnedImage(img driver.Image) {
	e.images = append(e.images, img)
}

// AddOwnedBuffer is AddOwnedImage for transient buffers.
func (e *Epoch) AddOwnedBuffer(buf driver.Buffer) {
	e.buffers = append(e.buffers, buf)
}

// Ring is the bounded FIFO of in-flight epochs. It is not safe for
// concurrent use; the frame executor holds exclusive access to it for the
// duration of a frame, per the single-threaded cooperative model in §5.
type Ring struct {
	device driver.Device
	bound  int

	epochs  []*Epoch
	bagPool *refbag.Pool
}

// NewRing creates an epoch ring bounded to at most `bound` in-flight
// epochs. A non-positive bound falls back to DefaultBound.
func NewRing(device driver.Device, bound int) *Ring {
	if bound <= 0 {
		bound = DefaultBound
	}
	return &Ring{device: device, bound: bound, bagPool: &refbag.Pool{}}
}

// Bound reports the ring's configured maximum in-flight epoch count.
func (r *Ring) Bound() int { return r.bound }

// InFlight reports how many epochs currently carry a fence the ring has
// not yet recycled.
func (r *Ring) InFlight() int { return len(r.epochs) }

// BagPool exposes the ring's reference-bag free list so the frame executor
// can borrow and return bags without allocating one per frame.
func (r *Ring) BagPool() *refbag.Pool { return r.bagPool }

// GetOrRecycle returns the epoch that the submission about to be made
// should populate. If the ring has room, a fresh epoch is returned (no
// fence yet — one is attached by Push once the submission completes). If
// the ring is saturated, the oldest epoch's fence is waited on
// synchronously, its resources released back to their pools and free
// lists, and the epoch itself is reused. This synchronous wait is the
// intended mechanism by which the CPU throttles ahead of the GPU; it has
// no timeout.
func (r *Ring) GetOrRecycle() (*Epoch, error) {
	if len(r.epochs) < r.bound {
		return &Epoch{}, nil
	}

	oldest := r.epochs[0]
	if oldest.fence != nil {
		if err := r.device.WaitFence(oldest.fence); err != nil {
			return nil, fmt.Errorf("epoch: waiting on oldest fence: %w", err)
		}
		if err := r.device.ResetFence(oldest.fence); err != nil {
			return nil, fmt.Errorf("epoch: resetting oldest fence: %w", err)
		}
	}
	r.release(oldest)
	oldest.fence = nil
	r.epochs = r.epochs[1:]
	return oldest, nil
}

// Push attaches fence (nil if the submission was not checkpointed) to
// epoch and commits it to the back of the ring.
func (r *Ring) Push(e *Epoch, fence driver.Fence) {
	e.fence = fence
	r.epochs = append(r.epochs, e)
}

// release drops an epoch's reference bags back to the pool and returns its
// command buffers to their owning command pools. It does not wait on the
// epoch's fence; callers must ensure that has already happened (or is
// known to be unnecessary) before calling release.
func (r *Ring) release(e *Epoch) {
	for _, bag := range e.bags {
		r.bagPool.Put(bag)
	}
	e.bags = nil
	for _, ref := range e.bufs {
		ref.pool.Deallocate(ref.buf)
	}
	e.bufs = nil
	for _, img := range e.images {
		img.Destroy()
	}
	e.images = nil
	for _, buf := range e.buffers {
		buf.Destroy()
	}
	e.buffers = nil
}

// DeviceIdleDrop releases every epoch's resources without waiting on any
// fence: reference bags go back to the pool, command buffers go back to
// their pools, and owned transient images and buffers are destroyed. It is
// for use after the caller has already performed an explicit device-idle
// wait of its own. The epochs themselves stay in the ring.
func (r *Ring) DeviceIdleDrop() {
	for _, e := range r.epochs {
		r.release(e)
	}
}

// DestroyAll is terminal cleanup: it relies on the caller having already
// ensured the device is idle, releases every epoch's resources, and empties
// the ring.
func (r *Ring) DestroyAll() {
	r.DeviceIdleDrop()
	r.epochs = nil
}
