package wgpu

import (
	"fmt"

	cwgpu "github.com/cogentcore/webgpu/wgpu"

	"github.com/oxy-arcana/rendergraph/driver"
)

// Device adapts *cwgpu.Device (plus the instance/adapter it was requested
// from) to the driver.Device contract. Acquisition mirrors
// engine/renderer/wgpu_renderer_backend.go's newWGPURendererBackend:
// CreateInstance, RequestAdapter against a compatible surface, then
// RequestDevice.
type Device struct {
	instance *cwgpu.Instance
	adapter  *cwgpu.Adapter
	device   *cwgpu.Device
	queue    *cwgpu.Queue

	// surfaceDescs bridges the driver.Device.NewSurface(window uintptr, ...)
	// contract (which only carries an opaque window handle) to wgpu's own
	// surface creation, which needs a platform SurfaceDescriptor built from
	// the real windowing library (wgpuglfw.GetSurfaceDescriptor, as
	// engine/window does). Callers register a window's descriptor once, at
	// RegisterWindow time, keyed by the same handle the executor's
	// graph.Window is derived from.
	surfaceDescs map[uintptr]*cwgpu.SurfaceDescriptor
}

// New requests an adapter and device from a freshly created wgpu instance.
// compatibleSurface, if non-nil, is used to pick an adapter capable of
// presenting to it — required on some backends before the first surface is
// ever configured.
func New(compatibleSurface *cwgpu.Surface, forceFallbackAdapter bool) (*Device, error) {
	instance := cwgpu.CreateInstance(nil)

	adapter, err := instance.RequestAdapter(&cwgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		CompatibleSurface:    compatibleSurface,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: requesting adapter: %v", driver.ErrInitFailed, err)
	}

	limits := cwgpu.DefaultLimits()
	dev, err := adapter.RequestDevice(&cwgpu.DeviceDescriptor{
		Label:          "rendergraph device",
		RequiredLimits: &cwgpu.RequiredLimits{Limits: limits},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: requesting device: %v", driver.ErrInitFailed, err)
	}

	return &Device{
		instance:     instance,
		adapter:      adapter,
		device:       dev,
		queue:        dev.GetQueue(),
		surfaceDescs: make(map[uintptr]*cwgpu.SurfaceDescriptor),
	}, nil
}

// RegisterWindowSurface associates handle (the same uintptr the embedding
// application uses as its graph.Window's native handle) with the wgpu
// surface descriptor built from that window, so a later NewSurface(handle,
// ...) call can create the real wgpu.Surface.
func (d *Device) RegisterWindowSurface(handle uintptr, desc *cwgpu.SurfaceDescriptor) {
	d.surfaceDescs[handle] = desc
}

// Queue returns the device's single graphics queue wrapped as a
// driver.Queue, for handing to Executor.Render.
func (d *Device) Queue() driver.Queue {
	return &queue{device: d.device, queue: d.queue}
}

func (d *Device) NewImage(desc driver.ImageDescriptor) (driver.Image, error) {
	tex, err := d.device.CreateTexture(&cwgpu.TextureDescriptor{
		Label: desc.Label,
		Size: cwgpu.Extent3D{
			Width:              desc.Extent.Width,
			Height:             desc.Extent.Height,
			DepthOrArrayLayers: max32(desc.Extent.Depth, 1) * max32(desc.Layers, 1),
		},
		MipLevelCount: max32(desc.MipLevels, 1),
		SampleCount:   1,
		Dimension:     cwgpu.TextureDimension2D,
		Format:        toTextureFormat(desc.Format),
		Usage:         toTextureUsage(desc.Usage),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: creating image %q: %v", driver.ErrOutOfMemory, desc.Label, err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("%w: creating image view %q: %v", driver.ErrOutOfMemory, desc.Label, err)
	}
	return newImage(tex, view, desc), nil
}

func (d *Device) NewBuffer(desc driver.BufferDescriptor) (driver.Buffer, error) {
	buf, err := d.device.CreateBuffer(&cwgpu.BufferDescriptor{
		Label: desc.Label,
		Size:  desc.Size,
		Usage: toBufferUsage(desc.Usage),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: creating buffer %q: %v", driver.ErrOutOfMemory, desc.Label, err)
	}
	return newBuffer(buf, desc), nil
}

func (d *Device) NewSurface(window uintptr, width, height int) (driver.Surface, error) {
	desc, ok := d.surfaceDescs[window]
	if !ok {
		return nil, fmt.Errorf("%w: no wgpu surface descriptor registered for window %v; call Device.RegisterWindowSurface first", driver.ErrInitFailed, window)
	}
	raw := d.instance.CreateSurface(desc)
	return newSurface(d, raw, width, height), nil
}

// NewSemaphore is a stub: wgpu's submission model synchronizes acquire and
// present internally (GetCurrentTexture / Surface.Present), so there is no
// raw semaphore object for this backend to hand out. The returned value
// satisfies driver.Semaphore's empty interface and carries no state; the
// executor never inspects it, only threads it through Frame.
func (d *Device) NewSemaphore() (driver.Semaphore, error) {
	return struct{}{}, nil
}

func (d *Device) WaitFence(f driver.Fence) error {
	wf, ok := f.(*fence)
	if !ok || wf == nil {
		return nil
	}
	wf.device.Poll(true, &cwgpu.WrappedSubmissionIndex{SubmissionIndex: wf.index})
	return nil
}

// ResetFence is a no-op: wgpu submission indices are one-shot, see fence.go.
func (d *Device) ResetFence(f driver.Fence) error { return nil }

func (d *Device) Destroy() {
	if d.device != nil {
		d.device.Release()
	}
	if d.adapter != nil {
		d.adapter.Release()
	}
	if d.instance != nil {
		d.instance.Release()
	}
}

func max32(v, floor uint32) uint32 {
	if v < floor {
		return floor
	}
	return v
}
