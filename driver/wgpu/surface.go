package wgpu

import (
	"fmt"

	cwgpu "github.com/cogentcore/webgpu/wgpu"

	"github.com/oxy-arcana/rendergraph/driver"
)

// surface adapts *cwgpu.Surface to driver.Surface. Capability query and
// configuration mirror wgpu_renderer_backend.go's ConfigureSurface:
// GetCapabilities picks the format/alpha-mode, Configure applies it.
type surface struct {
	dev    *Device
	raw    *cwgpu.Surface
	width  int
	height int
	format cwgpu.TextureFormat
	alpha  cwgpu.CompositeAlphaMode
	index  uint32
}

func newSurface(dev *Device, raw *cwgpu.Surface, width, height int) *surface {
	return &surface{dev: dev, raw: raw, width: width, height: height}
}

func (s *surface) Capabilities() driver.SurfaceCapabilities {
	caps := s.raw.GetCapabilities(s.dev.adapter)
	out := driver.SurfaceCapabilities{
		Formats:      make([]driver.Format, 0, len(caps.Formats)),
		PresentModes: make([]driver.PresentMode, 0, len(caps.PresentModes)),
	}
	for _, f := range caps.Formats {
		out.Formats = append(out.Formats, fromTextureFormat(f))
	}
	for _, m := range caps.PresentModes {
		out.PresentModes = append(out.PresentModes, fromPresentMode(m))
	}
	return out
}

func (s *surface) Rebuild(width, height int, mode driver.PresentMode) error {
	caps := s.raw.GetCapabilities(s.dev.adapter)
	if len(caps.Formats) == 0 {
		return fmt.Errorf("%w: surface reports no supported formats", driver.ErrInitFailed)
	}
	s.format = caps.Formats[0]
	s.alpha = caps.AlphaModes[0]
	s.width, s.height = width, height

	s.raw.Configure(s.dev.adapter, s.dev.device, &cwgpu.SurfaceConfiguration{
		Usage:       cwgpu.TextureUsageRenderAttachment,
		Format:      s.format,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: toPresentMode(mode),
		AlphaMode:   s.alpha,
	})
	return nil
}

// NextFrame acquires the next swapchain texture. cogentcore/webgpu's
// SurfaceTexture carries a Status field modeled on wgpu-native's
// WGPUSurfaceGetCurrentTextureStatus enum plus a Suboptimal flag; both are
// mapped onto the driver package's sentinel errors rather than threaded
// through as a distinct type, so the surface synchronizer (package surface)
// can drive its state machine with the same errors.Is checks it uses for
// every other backend.
func (s *surface) NextFrame() (driver.Frame, error) {
	st, err := s.raw.GetCurrentTexture()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", driver.ErrOutOfDate, err)
	}

	switch st.Status {
	case cwgpu.SurfaceGetCurrentTextureStatusTimeout, cwgpu.SurfaceGetCurrentTextureStatusOutdated:
		return nil, fmt.Errorf("%w: surface texture status %v", driver.ErrOutOfDate, st.Status)
	case cwgpu.SurfaceGetCurrentTextureStatusLost:
		return nil, fmt.Errorf("%w: surface texture lost", driver.ErrSurfaceLost)
	case cwgpu.SurfaceGetCurrentTextureStatusOutOfMemory:
		return nil, fmt.Errorf("%w: acquiring surface texture", driver.ErrOutOfMemory)
	case cwgpu.SurfaceGetCurrentTextureStatusDeviceLost:
		return nil, fmt.Errorf("%w: acquiring surface texture", driver.ErrDeviceLost)
	}

	view, err := st.Texture.CreateView(nil)
	if err != nil {
		st.Texture.Release()
		return nil, fmt.Errorf("%w: creating swapchain image view: %v", driver.ErrOutOfMemory, err)
	}

	desc := driver.ImageDescriptor{
		Format: fromTextureFormat(s.format),
		Extent: driver.Extent{Width: uint32(s.width), Height: uint32(s.height), Depth: 1},
		MipLevels: 1,
		Layers:    1,
		Usage:     driver.UsagePresent | driver.UsageColorAttachment,
		Label:     "swapchain",
	}
	img := newImage(st.Texture, view, desc)
	idx := s.index
	s.index++

	f := &frame{surface: s, image: img, index: idx, suboptimal: st.Suboptimal}
	if st.Suboptimal {
		return f, fmt.Errorf("%w", driver.ErrSuboptimal)
	}
	return f, nil
}

func (s *surface) Destroy() {
	s.raw.Release()
}

// frame is the opaque per-acquire token handed to the frame executor.
// wgpu's GetCurrentTexture/Present pair synchronizes acquire and present
// internally, so AcquireSemaphore/PresentSemaphore return the same no-op
// stub NewSemaphore does; nothing in this backend ever waits on them
// directly, they exist only to satisfy the driver.Frame contract the
// backend-agnostic executor relies on.
type frame struct {
	surface    *surface
	image      *image
	index      uint32
	suboptimal bool
}

func (f *frame) Image() driver.Image            { return f.image }
func (f *frame) ImageIndex() uint32              { return f.index }
func (f *frame) AcquireSemaphore() driver.Semaphore { return struct{}{} }
func (f *frame) PresentSemaphore() driver.Semaphore { return struct{}{} }

// present calls through to the underlying surface's present, used by
// queue's CommandEncoder.Present via a pending list flushed at Submit time
// (see queue.go and encoder.go).
func (f *frame) present() {
	f.surface.raw.Present()
}

var _ driver.Surface = (*surface)(nil)
var _ driver.Frame = (*frame)(nil)
