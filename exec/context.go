package exec

import (
	"fmt"

	"github.com/oxy-arcana/rendergraph/cmdpool"
	"github.com/oxy-arcana/rendergraph/driver"
	"github.com/oxy-arcana/rendergraph/graph"
	"github.com/oxy-arcana/rendergraph/internal/refbag"
)

// barrierRange is a pending (after, before) stage pair waiting to be
// discharged into the next encoder that touches its target-version.
type barrierRange struct {
	after, before driver.Stage
}

// cbufPoolPair remembers which command pool produced a committed command
// buffer, so the epoch that eventually owns the buffer can return it to
// the right pool once its epoch retires.
type cbufPoolPair struct {
	buf  driver.CommandBuffer
	pool *cmdpool.Pool
}

// frameState holds every per-frame data structure Phase B/C/D build and
// consume: the image/buffer maps, the init-image set, the four barrier
// maps, and the assembled command-buffer list. One frameState exists per
// call to Executor.Render and is discarded at its end; nothing here
// survives past Phase E.
type frameState struct {
	images  map[uint64]driver.Image
	buffers map[uint64]driver.Buffer

	initImages map[uint64]bool

	writeImageBarriers  map[graph.TargetID]barrierRange
	readImageBarriers   map[graph.TargetID]barrierRange
	writeBufferBarriers map[graph.TargetID]barrierRange
	readBufferBarriers  map[graph.TargetID]barrierRange

	cbufs     []driver.CommandBuffer
	cbufPools []cbufPoolPair

	// transientImages/transientBuffers collect the resources resolveImage/
	// resolveBuffer allocated fresh this frame (as opposed to a
	// presentation image seeded by Executor.Render's Phase A). They are not
	// cross-frame-aliased (§1's Non-goals exclude that), so once the epoch
	// that submitted this frame's command buffers retires, they are no
	// longer needed by the GPU and the epoch ring destroys them.
	transientImages  []driver.Image
	transientBuffers []driver.Buffer
}

// destroyTransient releases every transient image/buffer this frame
// allocated. Only called on a frame that never reaches a completed
// submission (and so never hands its resources to an epoch to own): once
// Executor.Render records them with AddOwnedImage/AddOwnedBuffer, the
// epoch ring owns their destruction instead.
func (fs *frameState) destroyTransient() {
	for _, img := range fs.transientImages {
		img.Destroy()
	}
	for _, buf := range fs.transientBuffers {
		buf.Destroy()
	}
}

func newFrameState() *frameState {
	return &frameState{
		images:              make(map[uint64]driver.Image),
		buffers:             make(map[uint64]driver.Buffer),
		initImages:          make(map[uint64]bool),
		writeImageBarriers:  make(map[graph.TargetID]barrierRange),
		readImageBarriers:   make(map[graph.TargetID]barrierRange),
		writeBufferBarriers: make(map[graph.TargetID]barrierRange),
		readBufferBarriers:  make(map[graph.TargetID]barrierRange),
	}
}

// Context is the concrete RenderContext facade handed to a node's
// callback for the duration of its invocation. It implements
// graph.RenderContext; see that interface's doc comments for the
// per-method contract.
type Context struct {
	ex    *Executor
	store *graph.Store
	fs    *frameState
	queue driver.Queue
	world any

	// pool backs whichever encoder was most recently returned by
	// NewCommandEncoder; Commit pairs it with the finished buffer. The
	// render-context contract forbids holding two encoders open at once,
	// so a single field is sufficient.
	pool *cmdpool.Pool

	bag *refbag.Bag
}

var _ graph.RenderContext = (*Context)(nil)

func (c *Context) NewCommandEncoder(label string) (driver.CommandEncoder, error) {
	pool := c.ex.cmdpool.Acquire()
	enc, err := pool.Allocate(c.queue.NewCommandEncoder)
	if err != nil {
		return nil, fmt.Errorf("exec: new command encoder: %w", err)
	}
	if label != "" {
		enc.Label(label)
	}
	c.pool = pool
	return enc, nil
}

// resolveImage returns the image resource bound to id's target, allocating
// a transient image from the target's descriptor on first touch if it is
// not already bound to a presentation image or a previous touch this
// frame.
func (c *Context) resolveImage(id graph.TargetID) (driver.Image, error) {
	base := id.Base()
	if img, ok := c.fs.images[base.Raw()]; ok {
		return img, nil
	}
	rec, ok := c.store.Target(id)
	if !ok {
		return nil, fmt.Errorf("exec: target %s has no record", id)
	}
	img, err := c.ex.device.NewImage(rec.ImageDesc)
	if err != nil {
		return nil, fmt.Errorf("exec: allocating transient image for %s: %w", id, err)
	}
	c.fs.images[base.Raw()] = img
	c.fs.transientImages = append(c.fs.transientImages, img)
	return img, nil
}

// resolveBuffer is resolveImage for buffer targets.
func (c *Context) resolveBuffer(id graph.TargetID) (driver.Buffer, error) {
	base := id.Base()
	if buf, ok := c.fs.buffers[base.Raw()]; ok {
		return buf, nil
	}
	rec, ok := c.store.Target(id)
	if !ok {
		return nil, fmt.Errorf("exec: target %s has no record", id)
	}
	buf, err := c.ex.device.NewBuffer(rec.BufferDesc)
	if err != nil {
		return nil, fmt.Errorf("exec: allocating transient buffer for %s: %w", id, err)
	}
	c.fs.buffers[base.Raw()] = buf
	c.fs.transientBuffers = append(c.fs.transientBuffers, buf)
	return buf, nil
}

func (c *Context) WriteImage(id graph.TargetID, enc driver.CommandEncoder) (driver.Image, error) {
	img, err := c.resolveImage(id)
	if err != nil {
		return nil, err
	}
	if barrier, ok := c.fs.writeImageBarriers[id]; ok {
		if c.fs.initImages[id.Base().Raw()] {
			enc.InitImage(barrier.after, barrier.before, img)
		} else {
			enc.Barrier(barrier.after, barrier.before)
		}
		delete(c.fs.writeImageBarriers, id)
	}
	c.bag.AddImage(img)
	return img, nil
}

func (c *Context) ReadImage(id graph.TargetID, enc driver.CommandEncoder) (driver.Image, error) {
	img, err := c.resolveImage(id)
	if err != nil {
		return nil, err
	}
	if barrier, ok := c.fs.readImageBarriers[id]; ok {
		enc.Barrier(barrier.after, barrier.before)
		delete(c.fs.readImageBarriers, id)
	}
	c.bag.AddImage(img)
	return img, nil
}

func (c *Context) WriteBuffer(id graph.TargetID, enc driver.CommandEncoder) (driver.Buffer, error) {
	buf, err := c.resolveBuffer(id)
	if err != nil {
		return nil, err
	}
	if barrier, ok := c.fs.writeBufferBarriers[id]; ok {
		enc.Barrier(barrier.after, barrier.before)
		delete(c.fs.writeBufferBarriers, id)
	}
	c.bag.AddBuffer(buf)
	return buf, nil
}

func (c *Context) ReadBuffer(id graph.TargetID, enc driver.CommandEncoder) (driver.Buffer, error) {
	buf, err := c.resolveBuffer(id)
	if err != nil {
		return nil, err
	}
	if barrier, ok := c.fs.readBufferBarriers[id]; ok {
		enc.Barrier(barrier.after, barrier.before)
		delete(c.fs.readBufferBarriers, id)
	}
	c.bag.AddBuffer(buf)
	return buf, nil
}

func (c *Context) Commit(cb driver.CommandBuffer) {
	c.fs.cbufs = append(c.fs.cbufs, cb)
	c.fs.cbufPools = append(c.fs.cbufPools, cbufPoolPair{buf: cb, pool: c.pool})
}

func (c *Context) World() any { return c.world }
