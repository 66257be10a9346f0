// Package wgpu implements the driver contract (package
// github.com/oxy-arcana/rendergraph/driver) against the teacher's own GPU
// dependency, github.com/cogentcore/webgpu/wgpu. Instance/adapter/device
// acquisition and surface configuration are grounded directly in
// engine/renderer/wgpu_renderer_backend.go's newWGPURendererBackend and
// ConfigureSurface.
package wgpu

import (
	cwgpu "github.com/cogentcore/webgpu/wgpu"

	"github.com/oxy-arcana/rendergraph/driver"
)

func toTextureFormat(f driver.Format) cwgpu.TextureFormat {
	switch f {
	case driver.FormatBGRA8Unorm:
		return cwgpu.TextureFormatBGRA8Unorm
	case driver.FormatRGBA8Unorm:
		return cwgpu.TextureFormatRGBA8Unorm
	case driver.FormatRGBA16Float:
		return cwgpu.TextureFormatRGBA16Float
	case driver.FormatDepth32Float:
		return cwgpu.TextureFormatDepth32Float
	default:
		return cwgpu.TextureFormatUndefined
	}
}

func fromTextureFormat(f cwgpu.TextureFormat) driver.Format {
	switch f {
	case cwgpu.TextureFormatBGRA8Unorm:
		return driver.FormatBGRA8Unorm
	case cwgpu.TextureFormatRGBA8Unorm:
		return driver.FormatRGBA8Unorm
	case cwgpu.TextureFormatRGBA16Float:
		return driver.FormatRGBA16Float
	case cwgpu.TextureFormatDepth32Float:
		return driver.FormatDepth32Float
	default:
		return driver.FormatUnknown
	}
}

// toTextureUsage maps the executor's backend-agnostic usage mask onto
// wgpu's TextureUsage bitmask. Usage bits with no texture meaning
// (UsageVertex, UsageIndex, UsageUniform, UsageIndirect) are dropped; they
// only apply to buffers, see toBufferUsage.
func toTextureUsage(u driver.Usage) cwgpu.TextureUsage {
	var out cwgpu.TextureUsage
	if u&driver.UsageColorAttachment != 0 || u&driver.UsageDepthStencilAttachment != 0 || u&driver.UsagePresent != 0 {
		out |= cwgpu.TextureUsageRenderAttachment
	}
	if u&driver.UsageSampled != 0 {
		out |= cwgpu.TextureUsageTextureBinding
	}
	if u&driver.UsageStorage != 0 {
		out |= cwgpu.TextureUsageStorageBinding
	}
	if u&driver.UsageCopySrc != 0 {
		out |= cwgpu.TextureUsageCopySrc
	}
	if u&driver.UsageCopyDst != 0 {
		out |= cwgpu.TextureUsageCopyDst
	}
	return out
}

func toBufferUsage(u driver.Usage) cwgpu.BufferUsage {
	var out cwgpu.BufferUsage
	if u&driver.UsageVertex != 0 {
		out |= cwgpu.BufferUsageVertex
	}
	if u&driver.UsageIndex != 0 {
		out |= cwgpu.BufferUsageIndex
	}
	if u&driver.UsageUniform != 0 {
		out |= cwgpu.BufferUsageUniform
	}
	if u&driver.UsageStorage != 0 {
		out |= cwgpu.BufferUsageStorage
	}
	if u&driver.UsageIndirect != 0 {
		out |= cwgpu.BufferUsageIndirect
	}
	if u&driver.UsageCopySrc != 0 {
		out |= cwgpu.BufferUsageCopySrc
	}
	if u&driver.UsageCopyDst != 0 {
		out |= cwgpu.BufferUsageCopyDst
	}
	return out
}

func toPresentMode(m driver.PresentMode) cwgpu.PresentMode {
	switch m {
	case driver.PresentModeMailbox:
		return cwgpu.PresentModeMailbox
	case driver.PresentModeImmediate:
		return cwgpu.PresentModeImmediate
	default:
		return cwgpu.PresentModeFifo
	}
}

func fromPresentMode(m cwgpu.PresentMode) driver.PresentMode {
	switch m {
	case cwgpu.PresentModeMailbox:
		return driver.PresentModeMailbox
	case cwgpu.PresentModeImmediate:
		return driver.PresentModeImmediate
	default:
		return driver.PresentModeFIFO
	}
}
