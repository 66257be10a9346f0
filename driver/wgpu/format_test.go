package wgpu

import (
	"testing"

	cwgpu "github.com/cogentcore/webgpu/wgpu"

	"github.com/oxy-arcana/rendergraph/driver"
)

func TestFormatRoundTrip(t *testing.T) {
	cases := []driver.Format{
		driver.FormatBGRA8Unorm,
		driver.FormatRGBA8Unorm,
		driver.FormatRGBA16Float,
		driver.FormatDepth32Float,
	}
	for _, f := range cases {
		if got := fromTextureFormat(toTextureFormat(f)); got != f {
			t.Errorf("round trip of %v = %v", f, got)
		}
	}
}

func TestFormatUnknownMapsToUndefined(t *testing.T) {
	if got := toTextureFormat(driver.FormatUnknown); got != cwgpu.TextureFormatUndefined {
		t.Errorf("toTextureFormat(FormatUnknown) = %v, want TextureFormatUndefined", got)
	}
	if got := fromTextureFormat(cwgpu.TextureFormatUndefined); got != driver.FormatUnknown {
		t.Errorf("fromTextureFormat(Undefined) = %v, want FormatUnknown", got)
	}
}

func TestToTextureUsageCombinesBits(t *testing.T) {
	got := toTextureUsage(driver.UsageColorAttachment | driver.UsageSampled)
	want := cwgpu.TextureUsageRenderAttachment | cwgpu.TextureUsageTextureBinding
	if got != want {
		t.Errorf("toTextureUsage() = %v, want %v", got, want)
	}
}

func TestToTextureUsagePresentImpliesRenderAttachment(t *testing.T) {
	got := toTextureUsage(driver.UsagePresent)
	if got&cwgpu.TextureUsageRenderAttachment == 0 {
		t.Error("UsagePresent should map to TextureUsageRenderAttachment, a swapchain image is always a render target")
	}
}

func TestToTextureUsageDropsBufferOnlyBits(t *testing.T) {
	got := toTextureUsage(driver.UsageVertex | driver.UsageIndex | driver.UsageUniform | driver.UsageIndirect)
	if got != 0 {
		t.Errorf("toTextureUsage() with only buffer-only bits = %v, want 0", got)
	}
}

func TestToBufferUsageCombinesBits(t *testing.T) {
	got := toBufferUsage(driver.UsageVertex | driver.UsageCopyDst)
	want := cwgpu.BufferUsageVertex | cwgpu.BufferUsageCopyDst
	if got != want {
		t.Errorf("toBufferUsage() = %v, want %v", got, want)
	}
}

func TestPresentModeRoundTrip(t *testing.T) {
	cases := []driver.PresentMode{
		driver.PresentModeFIFO,
		driver.PresentModeMailbox,
		driver.PresentModeImmediate,
	}
	for _, m := range cases {
		if got := fromPresentMode(toPresentMode(m)); got != m {
			t.Errorf("round trip of %v = %v", m, got)
		}
	}
}

func TestPresentModeDefaultsToFIFO(t *testing.T) {
	if got := toPresentMode(driver.PresentMode(99)); got != cwgpu.PresentModeFifo {
		t.Errorf("toPresentMode(unknown) = %v, want PresentModeFifo", got)
	}
	if got := fromPresentMode(cwgpu.PresentMode(99)); got != driver.PresentModeFIFO {
		t.Errorf("fromPresentMode(unknown) = %v, want PresentModeFIFO", got)
	}
}
