package wgpu

import (
	"fmt"

	cwgpu "github.com/cogentcore/webgpu/wgpu"

	"github.com/oxy-arcana/rendergraph/driver"
)

// queue adapts *cwgpu.Queue to driver.Queue. Submission mirrors
// wgpu_renderer_backend.go's EndFrame: CreateCommandEncoder, Finish,
// queue.Submit.
type queue struct {
	device *cwgpu.Device
	queue  *cwgpu.Queue
}

func (q *queue) NewCommandEncoder() (driver.CommandEncoder, error) {
	enc, err := q.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: creating command encoder: %v", driver.ErrOutOfMemory, err)
	}
	return newEncoder(enc), nil
}

// SyncFrame is a no-op for this backend: wgpu's acquire/submit/present
// ordering is enforced by GetCurrentTexture and Surface.Present themselves,
// not by an explicit semaphore wait list on the submission (see
// the frame type's AcquireSemaphore/PresentSemaphore doc comment in
// surface.go).
func (q *queue) SyncFrame(fr driver.Frame, stages driver.Stage) {}

// Submit batches cbufs into a single wgpu queue submission, then — in
// submission order — calls Surface.Present for every frame any encoder in
// the batch queued a Present for. If checkpoint is true the submission
// index is wrapped as a driver.Fence the epoch ring can later wait on.
func (q *queue) Submit(cbufs []driver.CommandBuffer, checkpoint bool) (driver.Fence, error) {
	raw := make([]*cwgpu.CommandBuffer, 0, len(cbufs))
	var presents []*frame
	for _, cb := range cbufs {
		wcb, ok := cb.(*commandBuffer)
		if !ok || wcb == nil {
			continue
		}
		raw = append(raw, wcb.raw)
		presents = append(presents, wcb.presents...)
	}

	idx := q.queue.Submit(raw...)

	for _, cb := range raw {
		cb.Release()
	}
	for _, fr := range presents {
		fr.present()
	}

	if !checkpoint {
		return nil, nil
	}
	return &fence{device: q.device, index: idx}, nil
}

// DropCommandBuffers releases buffers back to the driver without
// submitting them, used when a node's callback errors mid-frame (§4.2
// failure semantics).
func (q *queue) DropCommandBuffers(cbufs []driver.CommandBuffer) {
	for _, cb := range cbufs {
		if wcb, ok := cb.(*commandBuffer); ok && wcb != nil && wcb.raw != nil {
			wcb.raw.Release()
		}
	}
}

var _ driver.Queue = (*queue)(nil)
