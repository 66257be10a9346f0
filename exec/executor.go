// Package exec implements the frame executor: the five-phase algorithm
// that turns a graph.Store plus a set of presentation windows into one
// submitted batch of command buffers per frame. Grounded in
// crates/arcana/src/render/mod.rs's render() function, which runs the
// same acquire / reverse-reachability / topological-schedule /
// reverse-invocation / submit pipeline against the same store shape.
package exec

import (
	"errors"
	"fmt"
	stdlog "log"

	"github.com/oxy-arcana/rendergraph/cmdpool"
	"github.com/oxy-arcana/rendergraph/driver"
	"github.com/oxy-arcana/rendergraph/epoch"
	"github.com/oxy-arcana/rendergraph/graph"
	"github.com/oxy-arcana/rendergraph/internal/arena"
	"github.com/oxy-arcana/rendergraph/surface"
)

// NodeError wraps a node callback's failure with the node that produced
// it, per §7's ErrKind set.
type NodeError struct {
	NodeID graph.NodeID
	Name   string
	Cause  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("exec: node %d (%s): %v", e.NodeID, e.Name, e.Cause)
}

func (e *NodeError) Unwrap() error { return e.Cause }

// Executor owns everything that must survive across frames: the epoch and
// command-pool rings, the per-window surface synchronizers, and the
// reusable arenas Phase B/C build their visited sets and ready queues in.
// It does not own the graph.Store or the driver.Device handed to Render;
// the device is kept for transient resource allocation, while the store
// is supplied fresh each call since it may be rebuilt between frames.
type Executor struct {
	device  driver.Device
	epochs  *epoch.Ring
	cmdpool *cmdpool.Ring

	windows map[graph.Window]*surface.Synchronizer

	bfsQueue        *arena.Queue[graph.TargetID]
	bfsSeen         *arena.Set[graph.TargetID]
	activeNodes     *arena.Set[graph.NodeID]
	discoveryOrder  []graph.NodeID
	readyQueue      *arena.Queue[graph.NodeID]
	scheduledWrites *arena.Set[graph.TargetID]

	lastScheduledNodes int
}

// NewExecutor creates an Executor bound to device, with epoch and
// command-pool rings sized by epochBound and cmdpoolBound (non-positive
// values fall back to their package defaults).
func NewExecutor(device driver.Device, epochBound, cmdpoolBound int) *Executor {
	return &Executor{
		device:          device,
		epochs:          epoch.NewRing(device, epochBound),
		cmdpool:         cmdpool.NewRing(device, cmdpoolBound),
		windows:         make(map[graph.Window]*surface.Synchronizer),
		bfsQueue:        arena.NewQueue[graph.TargetID](64),
		bfsSeen:         arena.NewSet[graph.TargetID](64),
		activeNodes:     arena.NewSet[graph.NodeID](64),
		readyQueue:      arena.NewQueue[graph.NodeID](64),
		scheduledWrites: arena.NewSet[graph.TargetID](64),
	}
}

// RegisterWindow creates a surface synchronizer for window backed by the
// native handle, at the given initial size and preferred present mode.
// Calling it again for an already-registered window replaces the
// synchronizer, dropping the old one's in-flight state; callers should not
// do this while the old synchronizer has acquired frames outstanding.
func (e *Executor) RegisterWindow(window graph.Window, handle uintptr, width, height int, mode driver.PresentMode) {
	e.windows[window] = surface.New(e.device, handle, width, height, mode)
}

// UnregisterWindow drops window's surface synchronizer entirely. Used when
// the embedding application closes a window for good.
func (e *Executor) UnregisterWindow(window graph.Window) {
	delete(e.windows, window)
}

// ResizeWindow records a new target size for window's swapchain, picked up
// on its next out-of-date rebuild.
func (e *Executor) ResizeWindow(window graph.Window, width, height int) {
	if s, ok := e.windows[window]; ok {
		s.Resize(width, height)
	}
}

// InFlight reports how many epochs are currently outstanding in the epoch
// ring, for the profiler's per-tick stats.
func (e *Executor) InFlight() int { return e.epochs.InFlight() }

// LastScheduledNodes reports how many nodes the most recently completed
// frame scheduled, for the profiler's per-tick stats.
func (e *Executor) LastScheduledNodes() int { return e.lastScheduledNodes }

// acquiredWindow is Phase A's per-window bookkeeping: the acquired frame
// and the version-0 presentation target it satisfies.
type acquiredWindow struct {
	window graph.Window
	frame  driver.Frame
	target graph.TargetID
}

// Render runs one full frame: acquire, reverse reachability, topological
// schedule, reverse node invocation, submit. windows lists every window to
// attempt to present this host frame (callers decide per-frame inclusion,
// e.g. to skip a minimized window); world is the opaque ECS context handed
// to every node callback via RenderContext.World.
//
// A nil error does not guarantee every requested window presented: a
// window whose surface was lost is silently dropped from the frame and its
// presentation binding is unbound, matching §4.2's failure semantics.
func (e *Executor) Render(store *graph.Store, queue driver.Queue, windows []graph.Window, world any) error {
	acquired := e.acquire(store, windows)
	if len(acquired) == 0 {
		e.lastScheduledNodes = 0
		e.cmdpool.Refresh()
		return nil
	}

	fs := newFrameState()
	e.bfsQueue.Clear()
	e.bfsSeen.Clear()
	for _, aw := range acquired {
		fs.images[aw.target.Raw()] = aw.frame.Image()
		fs.initImages[aw.target.Raw()] = true
		queue.SyncFrame(aw.frame, driver.StageTopOfPipe)
		// A window always presents whatever is currently the target's last
		// written version, so the seed resolves to that version once here;
		// planFrame then walks exact versions throughout, never re-deriving
		// "latest" for a read it discovers (see plan.go).
		latest := store.LatestVersion(aw.target)
		if e.bfsSeen.Add(latest) {
			e.bfsQueue.PushBack(latest)
		}
	}

	schedule, err := e.planFrame(store, fs)
	if err != nil {
		return err
	}
	e.lastScheduledNodes = len(schedule)

	bag := e.epochs.BagPool().Get()
	epochHandle, err := e.epochs.GetOrRecycle()
	if err != nil {
		e.epochs.BagPool().Put(bag)
		return fmt.Errorf("exec: recycling epoch: %w", err)
	}

	// Phase D: invoke the schedule in reverse (consumer-first), so each
	// node pulls its barriers out of the maps exactly once before its
	// producer is visited.
	var combined []driver.CommandBuffer
	for i := len(schedule) - 1; i >= 0; i-- {
		node := schedule[i]
		ctx := &Context{ex: e, store: store, fs: fs, queue: queue, world: world, bag: bag}
		pre := len(fs.cbufs)
		if err := node.Callback(ctx); err != nil {
			stdlog.Printf("exec: node %q failed: %v", node.Name, err)
			dropped := fs.cbufs[pre:]
			if len(dropped) > 0 {
				queue.DropCommandBuffers(dropped)
			}
			for _, p := range fs.cbufPools[pre:] {
				p.pool.Deallocate(p.buf)
			}
			fs.cbufs = fs.cbufs[:pre]
			fs.cbufPools = fs.cbufPools[:pre]
			continue
		}
		run := fs.cbufs[pre:]
		reverseCmdBufs(run)
		combined = append(combined, run...)
	}

	// Phase E: reverse the whole batch back to producer-first order, append
	// the present encoder, submit once.
	reverseCmdBufs(combined)

	presentEnc, err := queue.NewCommandEncoder()
	if err != nil {
		e.epochs.BagPool().Put(bag)
		fs.destroyTransient()
		return fmt.Errorf("exec: creating present encoder: %w", err)
	}
	presentEnc.Label("present")
	for _, aw := range acquired {
		latest := store.LatestVersion(aw.target)
		stages := store.WriterStages(latest) | store.ReaderStages(latest)
		if stages.Empty() {
			stages = driver.StageAll
		}
		presentEnc.Present(aw.frame, stages)
	}
	presentBuf, err := presentEnc.Finish()
	if err != nil {
		e.epochs.BagPool().Put(bag)
		fs.destroyTransient()
		return fmt.Errorf("exec: finishing present encoder: %w", err)
	}
	combined = append(combined, presentBuf)

	fence, err := queue.Submit(combined, true)
	if err != nil {
		e.epochs.BagPool().Put(bag)
		fs.destroyTransient()
		if errors.Is(err, driver.ErrOutOfMemory) || errors.Is(err, driver.ErrDeviceLost) {
			return err
		}
		return fmt.Errorf("exec: submitting frame: %w", err)
	}

	epochHandle.AddBag(bag)
	for i, cb := range fs.cbufs {
		epochHandle.AddCommandBuffer(cb, fs.cbufPools[i].pool)
	}
	for _, img := range fs.transientImages {
		epochHandle.AddOwnedImage(img)
	}
	for _, buf := range fs.transientBuffers {
		epochHandle.AddOwnedBuffer(buf)
	}
	e.epochs.Push(epochHandle, fence)
	e.cmdpool.Refresh()

	return nil
}

// acquire runs Phase A for every requested window, re-queuing a window up
// to once on a "rebuild" outcome and dropping it (and unbinding its
// presentation) on a "lost" outcome.
func (e *Executor) acquire(store *graph.Store, windows []graph.Window) []acquiredWindow {
	var acquired []acquiredWindow
	for _, w := range windows {
		target, ok := store.PresentationBinding(w)
		if !ok {
			continue
		}
		sync, ok := e.windows[w]
		if !ok {
			continue
		}

		for attempt := 0; attempt < 2; attempt++ {
			frame, outcome, err := sync.NextFrame()
			if outcome == surface.OutcomeAcquired {
				acquired = append(acquired, acquiredWindow{window: w, frame: frame, target: target.Base()})
				break
			}
			if outcome == surface.OutcomeLost {
				stdlog.Printf("exec: window %d surface lost: %v", w, err)
				store.UnbindPresentation(w)
				break
			}
			// OutcomeRetry: loop once more within this frame, per §4.2.
			if err != nil {
				stdlog.Printf("exec: window %d surface rebuild: %v", w, err)
			}
		}
	}
	return acquired
}
