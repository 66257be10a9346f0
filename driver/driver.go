// Package driver defines the narrow contract the render-graph executor
// requires of a GPU backend: devices, images and buffers, command
// encoders, and the per-acquire frame token handed back by a swapchain.
// The executor never implements these types itself; package
// github.com/oxy-arcana/rendergraph/driver/wgpu is the concrete adapter
// shipped against the teacher's own GPU dependency.
//
// The shape of this contract is grounded in the mev crate's trait surface
// (crates/mev/src/traits.rs, crates/mev/src/vulkan/queue.rs) and in the
// pack's own pure-Go low-level driver abstraction, which exposes the same
// device/command-buffer/barrier/fence shape for a swapchain.
package driver

import "errors"

// Stage is a bitmask of GPU pipeline stages. Barriers are expressed purely
// as stage-set algebra: a write barrier ranges from a wait mask to the
// writer's stages, a read barrier from the writer's stages to the readers'
// stages. Stage does not distinguish graphics from compute work, so a
// node's write/read sets may freely mix ColorOutput and Compute: the
// executor treats them identically.
type Stage uint32

const StageNone Stage = 0

const (
	StageTopOfPipe Stage = 1 << iota
	StageIndirect
	StageVertexInput
	StageVertex
	StageFragment
	StageEarlyFragmentTests
	StageLateFragmentTests
	StageColorOutput
	StageCompute
	StageTransfer
	StageBottomOfPipe
)

// StageAll matches every stage; used by the presentation encoder which
// waits on whatever stage last wrote the presented image.
const StageAll Stage = StageTopOfPipe | StageIndirect | StageVertexInput | StageVertex |
	StageFragment | StageEarlyFragmentTests | StageLateFragmentTests | StageColorOutput |
	StageCompute | StageTransfer | StageBottomOfPipe

// Union returns the bitwise union of stage sets.
func (s Stage) Union(other Stage) Stage { return s | other }

// Empty reports whether the stage set has no bits set.
func (s Stage) Empty() bool { return s == StageNone }

// Contains reports whether every bit of other is also set in s.
func (s Stage) Contains(other Stage) bool { return s&other == other }

// Format is a pixel format for an Image.
type Format int

const (
	FormatUnknown Format = iota
	FormatBGRA8Unorm
	FormatRGBA8Unorm
	FormatRGBA16Float
	FormatDepth32Float
)

// Usage is a bitmask describing how an Image or Buffer will be used.
type Usage uint32

const UsageNone Usage = 0

const (
	UsageColorAttachment Usage = 1 << iota
	UsageDepthStencilAttachment
	UsageSampled
	UsageStorage
	UsageCopySrc
	UsageCopyDst
	UsageVertex
	UsageIndex
	UsageUniform
	UsageIndirect
	UsagePresent
)

// Extent is the 3D size of an Image.
type Extent struct {
	Width, Height, Depth uint32
}

// ImageDescriptor describes an Image to be allocated by a Device.
type ImageDescriptor struct {
	Format    Format
	Extent    Extent
	MipLevels uint32
	Layers    uint32
	Usage     Usage
	Label     string
}

// BufferDescriptor describes a Buffer to be allocated by a Device.
type BufferDescriptor struct {
	Size  uint64
	Usage Usage
	Label string
}

// Image is a GPU image resource. Detached reports whether no other handle
// in the system shares ownership of it; the surface synchronizer uses this
// to decide when a retired swapchain's images may finally be destroyed.
type Image interface {
	Format() Format
	Extent() Extent
	MipLevels() uint32
	Layers() uint32
	Usage() Usage
	Detached() bool

	// Destroy releases the backing GPU resource. Callers must only call
	// this once Detached() reports true. Transient images are destroyed
	// by the epoch ring after the epoch that owns them has retired, or by
	// the executor directly when a frame fails before its submission is
	// made.
	Destroy()
}

// Buffer is a GPU buffer resource.
type Buffer interface {
	Size() uint64
	Usage() Usage
	Detached() bool

	// Destroy releases the backing GPU resource; see Image.Destroy.
	Destroy()
}

// Pipeline is an opaque compiled render or compute pipeline. The executor
// never creates pipelines; nodes obtain them from whatever pipeline cache
// the embedding application maintains and pass them into RenderPass calls.
type Pipeline interface {
	Label() string
}

// Fence is a GPU-side completion signal associated with one submission.
type Fence interface {
	// Signaled reports whether the GPU has retired the submission this
	// fence was created for, without blocking.
	Signaled() bool
}

// Semaphore is an opaque GPU-side synchronization primitive exchanged
// between a swapchain acquire and the queue submission that must wait on
// it, or between a submission and the present that must wait on it.
type Semaphore interface{}

// Frame is the opaque per-acquire token returned by a Surface: the
// swapchain it was acquired from, the image index within that swapchain,
// and the acquire/present semaphore pair for this particular image.
type Frame interface {
	Image() Image
	ImageIndex() uint32
	AcquireSemaphore() Semaphore
	PresentSemaphore() Semaphore
}

// SurfaceCapabilities describes what a Surface's swapchain can be built
// with; used by the surface synchronizer to pick a format and present mode
// the first time a window is acquired from.
type SurfaceCapabilities struct {
	Formats      []Format
	PresentModes []PresentMode
}

// PresentMode selects how the presentation engine paces delivered frames.
type PresentMode int

const (
	PresentModeFIFO PresentMode = iota
	PresentModeMailbox
	PresentModeImmediate
)

// Surface is a per-window swapchain. NextFrame acquires the next image;
// its error is one of ErrOutOfDate, ErrSuboptimal (both handled internally
// by the surface synchronizer), or ErrSurfaceLost/ErrDeviceLost (fatal for
// the window).
type Surface interface {
	Capabilities() SurfaceCapabilities
	Rebuild(width, height int, mode PresentMode) error
	NextFrame() (Frame, error)
	Destroy()
}

// CommandBuffer is a finished, submittable recording produced by a
// CommandEncoder's Finish.
type CommandBuffer interface{}

// CommandEncoder records GPU commands. Barrier and InitImage are how the
// executor discharges the write/read barrier maps computed during Phase B;
// InitImage is used instead of Barrier exactly once per freshly-acquired
// swapchain image, because that image's previous contents are undefined.
type CommandEncoder interface {
	// Label tags the command buffer this encoder will produce with a debug
	// name, forwarded to the backend's GPU marker mechanism if it has one.
	Label(name string)

	Barrier(after, before Stage)
	InitImage(after, before Stage, img Image)

	CopyBufferToBuffer(src Buffer, srcOffset uint64, dst Buffer, dstOffset, size uint64)
	CopyBufferToImage(src Buffer, srcOffset uint64, dst Image)

	// RenderPass invokes fn with the encoder itself available for
	// SetPipeline/Draw-style calls on whatever concrete encoder type the
	// backend provides; the descriptor only carries target + clear info
	// since pipeline binding is backend-specific and out of this contract.
	RenderPass(desc RenderPassDescriptor, fn func())

	// Present records a present operation for frame, waiting on stages
	// (the stage set of the frame's last writer) before signaling the
	// frame's present semaphore.
	Present(frame Frame, stages Stage)

	Finish() (CommandBuffer, error)
}

// RenderPassDescriptor describes the color/depth targets of a render pass.
type RenderPassDescriptor struct {
	ColorTargets []Image
	DepthTarget  Image
	ClearColor   *[4]float64
	ClearDepth   *float64
}

// Queue submits recorded command buffers and presents acquired frames.
type Queue interface {
	// NewCommandEncoder borrows a recording command buffer from the
	// backend's own pool management and returns an encoder for it.
	NewCommandEncoder() (CommandEncoder, error)

	// SyncFrame records that the next Submit must wait on frame's acquire
	// semaphore at the given stages before any of its work may begin.
	SyncFrame(frame Frame, stages Stage)

	// Submit batches cbufs into a single driver submission. If checkpoint
	// is true the submission is associated with a Fence the caller can
	// later wait on; otherwise nil is returned for the fence.
	Submit(cbufs []CommandBuffer, checkpoint bool) (Fence, error)

	// DropCommandBuffers returns buffers to their owning pools without
	// submitting them, used when a node's callback errors mid-frame.
	DropCommandBuffers(cbufs []CommandBuffer)
}

// Device is the root driver object: it allocates resources and owns the
// queue, surfaces, fences and semaphores built against it.
type Device interface {
	NewImage(desc ImageDescriptor) (Image, error)
	NewBuffer(desc BufferDescriptor) (Buffer, error)
	NewSurface(window uintptr, width, height int) (Surface, error)
	NewSemaphore() (Semaphore, error)

	WaitFence(f Fence) error
	ResetFence(f Fence) error

	Destroy()
}

// Sentinel error kinds. Concrete adapters wrap these with fmt.Errorf's
// "%w" verb so callers can recognize them with errors.Is while still
// getting a backend-specific message.
var (
	ErrOutOfMemory    = errors.New("driver: out of memory")
	ErrDeviceLost     = errors.New("driver: device lost")
	ErrSurfaceLost    = errors.New("driver: surface lost")
	ErrOutOfDate      = errors.New("driver: swapchain out of date")
	ErrSuboptimal     = errors.New("driver: swapchain suboptimal")
	ErrInitFailed     = errors.New("driver: initialization failed")
)
