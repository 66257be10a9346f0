package wgpu

import (
	"fmt"

	cwgpu "github.com/cogentcore/webgpu/wgpu"

	"github.com/oxy-arcana/rendergraph/driver"
)

// commandBuffer wraps a finished *cwgpu.CommandBuffer together with the
// frames its encoder queued Present calls for. wgpu has no notion of a
// present operation living inside a command buffer — Surface.Present is a
// separate host-side call, made once the batch has been handed to the
// queue — so the executor's single "present" encoder (§4.2 Phase E) records its
// intent here and queue.Submit walks it after the driver submit call
// returns, in submission order.
type commandBuffer struct {
	raw      *cwgpu.CommandBuffer
	presents []*frame
}

// encoder wraps a *cwgpu.CommandEncoder as a driver.CommandEncoder.
// Barrier/InitImage are intentionally no-ops: wgpu derives resource-usage
// transitions from the bind groups and render-pass attachments it sees at
// encode time, validated by wgpu-native's own usage tracker, rather than
// from explicit pipeline barriers. The executor still calls them at the
// same points a Vulkan-style backend would (removing the corresponding
// barrier-map entry exactly once), so swapping this adapter for one
// fronting a lower-level API requires no change above the driver package.
type encoder struct {
	raw      *cwgpu.CommandEncoder
	pass     *cwgpu.RenderPassEncoder
	presents []*frame
}

func newEncoder(raw *cwgpu.CommandEncoder) *encoder {
	return &encoder{raw: raw}
}

func (e *encoder) Label(name string) {
	if name != "" {
		e.raw.SetLabel(name)
	}
}

func (e *encoder) Barrier(after, before driver.Stage)                  {}
func (e *encoder) InitImage(after, before driver.Stage, img driver.Image) {}

func (e *encoder) CopyBufferToBuffer(src driver.Buffer, srcOffset uint64, dst driver.Buffer, dstOffset, size uint64) {
	s, sOK := src.(*buffer)
	d, dOK := dst.(*buffer)
	if !sOK || !dOK {
		return
	}
	e.raw.CopyBufferToBuffer(s.handle, srcOffset, d.handle, dstOffset, size)
}

func (e *encoder) CopyBufferToImage(src driver.Buffer, srcOffset uint64, dst driver.Image) {
	s, sOK := src.(*buffer)
	d, dOK := dst.(*image)
	if !sOK || !dOK {
		return
	}
	extent := d.Extent()
	e.raw.CopyBufferToTexture(
		&cwgpu.ImageCopyBuffer{
			Layout: cwgpu.TextureDataLayout{Offset: srcOffset, BytesPerRow: 4 * extent.Width, RowsPerImage: extent.Height},
			Buffer: s.handle,
		},
		&cwgpu.ImageCopyTexture{Texture: d.texture},
		&cwgpu.Extent3D{Width: extent.Width, Height: extent.Height, DepthOrArrayLayers: extent.Depth},
	)
}

// RenderPass opens a render pass over desc's targets and invokes fn with
// it bound as the encoder's current pass; nodes obtain the concrete
// *cwgpu.RenderPassEncoder for SetPipeline/Draw-style calls through their
// own pipeline cache, not through this contract, matching §4.3's note that
// pipeline binding is backend-specific.
func (e *encoder) RenderPass(desc driver.RenderPassDescriptor, fn func()) {
	colorAttachments := make([]cwgpu.RenderPassColorAttachment, 0, len(desc.ColorTargets))
	for _, img := range desc.ColorTargets {
		wimg, ok := img.(*image)
		if !ok {
			continue
		}
		loadOp := cwgpu.LoadOpLoad
		var clear cwgpu.Color
		if desc.ClearColor != nil {
			loadOp = cwgpu.LoadOpClear
			clear = cwgpu.Color{R: desc.ClearColor[0], G: desc.ClearColor[1], B: desc.ClearColor[2], A: desc.ClearColor[3]}
		}
		colorAttachments = append(colorAttachments, cwgpu.RenderPassColorAttachment{
			View:       wimg.view,
			LoadOp:     loadOp,
			StoreOp:    cwgpu.StoreOpStore,
			ClearValue: clear,
		})
	}

	passDesc := &cwgpu.RenderPassDescriptor{ColorAttachments: colorAttachments}
	if desc.DepthTarget != nil {
		if wimg, ok := desc.DepthTarget.(*image); ok {
			depthLoadOp := cwgpu.LoadOpLoad
			var depthClear float32
			if desc.ClearDepth != nil {
				depthLoadOp = cwgpu.LoadOpClear
				depthClear = float32(*desc.ClearDepth)
			}
			passDesc.DepthStencilAttachment = &cwgpu.RenderPassDepthStencilAttachment{
				View:            wimg.view,
				DepthLoadOp:     depthLoadOp,
				DepthStoreOp:    cwgpu.StoreOpStore,
				DepthClearValue: depthClear,
			}
		}
	}

	pass := e.raw.BeginRenderPass(passDesc)
	prev := e.pass
	e.pass = pass
	fn()
	e.pass = prev
	pass.End()
}

// Present records present as an encoder-level intent; the actual
// wgpu.Surface.Present() call happens in queue.Submit once the GPU
// submission that produced this command buffer has been handed to the
// driver, per commandBuffer's doc comment.
func (e *encoder) Present(fr driver.Frame, stages driver.Stage) {
	if wf, ok := fr.(*frame); ok {
		e.presents = append(e.presents, wf)
	}
}

func (e *encoder) Finish() (driver.CommandBuffer, error) {
	cb, err := e.raw.Finish(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: finishing command buffer: %v", driver.ErrOutOfMemory, err)
	}
	return &commandBuffer{raw: cb, presents: e.presents}, nil
}

var _ driver.CommandEncoder = (*encoder)(nil)
