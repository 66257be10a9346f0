package wgpu

import (
	"sync/atomic"

	cwgpu "github.com/cogentcore/webgpu/wgpu"

	"github.com/oxy-arcana/rendergraph/driver"
)

// buffer wraps a wgpu buffer as a driver.Buffer, using the same hold-count
// scheme as image; see image.go's doc comment.
type buffer struct {
	handle *cwgpu.Buffer
	desc   driver.BufferDescriptor
	holds  int32
}

func newBuffer(handle *cwgpu.Buffer, desc driver.BufferDescriptor) *buffer {
	return &buffer{handle: handle, desc: desc}
}

func (b *buffer) Size() uint64      { return b.desc.Size }
func (b *buffer) Usage() driver.Usage { return b.desc.Usage }

func (b *buffer) Retain()  { atomic.AddInt32(&b.holds, 1) }
func (b *buffer) Release() { atomic.AddInt32(&b.holds, -1) }
func (b *buffer) Detached() bool { return atomic.LoadInt32(&b.holds) == 0 }

// Destroy releases the underlying wgpu buffer handle. Only called once
// Detached() reports true.
func (b *buffer) Destroy() {
	if b.handle != nil {
		b.handle.Release()
	}
}

var _ driver.Buffer = (*buffer)(nil)
