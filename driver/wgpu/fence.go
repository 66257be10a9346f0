package wgpu

import cwgpu "github.com/cogentcore/webgpu/wgpu"

// fence wraps a wgpu submission index. wgpu-native does not expose raw
// VkFence/VkSemaphore handles; its own completion primitive is
// Queue.Submit's returned SubmissionIndex paired with Device.Poll, so that
// pair is what driver.Fence is grounded in here. Submission indices are
// naturally one-shot — nothing needs resetting — so device.ResetFence is a
// no-op for this backend.
type fence struct {
	device *cwgpu.Device
	index  cwgpu.SubmissionIndex
}

// Signaled polls the device without blocking and reports whether the
// submission this fence was created for has retired.
func (f *fence) Signaled() bool {
	return f.device.Poll(false, &cwgpu.WrappedSubmissionIndex{SubmissionIndex: f.index})
}
