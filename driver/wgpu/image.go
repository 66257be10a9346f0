package wgpu

import (
	"sync/atomic"

	cwgpu "github.com/cogentcore/webgpu/wgpu"

	"github.com/oxy-arcana/rendergraph/driver"
)

// image wraps a wgpu texture view as a driver.Image. It tracks external
// holds with an atomic counter rather than relying on Go's GC: the surface
// synchronizer's retirement queue (package surface) needs to know when a
// swapchain image has no outstanding reference-bag holds, which is a
// liveness question GC cannot answer for us since the Go object itself
// stays reachable from the synchronizer's own bookkeeping list. The count
// starts at zero: a swapchain's own retirement bookkeeping is not a "holder"
// in the sense Detached cares about, only refbag.Bag entries are — see
// internal/refbag's Retain/Release hook.
type image struct {
	texture *cwgpu.Texture
	view    *cwgpu.TextureView
	desc    driver.ImageDescriptor
	holds   int32
}

func newImage(texture *cwgpu.Texture, view *cwgpu.TextureView, desc driver.ImageDescriptor) *image {
	return &image{texture: texture, view: view, desc: desc}
}

func (i *image) Format() driver.Format   { return i.desc.Format }
func (i *image) Extent() driver.Extent   { return i.desc.Extent }
func (i *image) MipLevels() uint32       { return i.desc.MipLevels }
func (i *image) Layers() uint32          { return i.desc.Layers }
func (i *image) Usage() driver.Usage     { return i.desc.Usage }

// Retain records one more external hold on the image, called by
// internal/refbag when a node's render context resolves this image into a
// bag.
func (i *image) Retain() { atomic.AddInt32(&i.holds, 1) }

// Release drops one external hold, called when the epoch owning the bag
// that held this image is recycled.
func (i *image) Release() { atomic.AddInt32(&i.holds, -1) }

// Detached reports whether no refbag entry currently holds this image,
// which is the surface synchronizer's signal that a retired swapchain
// carrying it may finally be destroyed.
func (i *image) Detached() bool { return atomic.LoadInt32(&i.holds) == 0 }

// Destroy releases the underlying wgpu view and texture. Only called for
// images this adapter owns outright (transient allocations and retired
// swapchain images); it must not be called while Detached() is false.
func (i *image) Destroy() {
	if i.view != nil {
		i.view.Release()
	}
	if i.texture != nil {
		i.texture.Release()
	}
}

var _ driver.Image = (*image)(nil)
