package epoch

import (
	"testing"

	"github.com/oxy-arcana/rendergraph/cmdpool"
	"github.com/oxy-arcana/rendergraph/driver"
)

type fakeFence struct{ id int }

func (fakeFence) Signaled() bool { return true }

type fakeDevice struct {
	waited  []driver.Fence
	reset   []driver.Fence
}

func (d *fakeDevice) NewImage(driver.ImageDescriptor) (driver.Image, error)   { return nil, nil }
func (d *fakeDevice) NewBuffer(driver.BufferDescriptor) (driver.Buffer, error) { return nil, nil }
func (d *fakeDevice) NewSurface(uintptr, int, int) (driver.Surface, error)    { return nil, nil }
func (d *fakeDevice) NewSemaphore() (driver.Semaphore, error)                 { return struct{}{}, nil }
func (d *fakeDevice) WaitFence(f driver.Fence) error {
	d.waited = append(d.waited, f)
	return nil
}
func (d *fakeDevice) ResetFence(f driver.Fence) error {
	d.reset = append(d.reset, f)
	return nil
}
func (d *fakeDevice) Destroy() {}

func TestRingGetOrRecycleGrowsBeforeBound(t *testing.T) {
	dev := &fakeDevice{}
	r := NewRing(dev, 3)

	for i := 0; i < 3; i++ {
		e, err := r.GetOrRecycle()
		if err != nil {
			t.Fatalf("GetOrRecycle() error = %v", err)
		}
		r.Push(e, fakeFence{id: i})
	}
	if r.InFlight() != 3 {
		t.Fatalf("InFlight() = %d, want 3", r.InFlight())
	}
	if len(dev.waited) != 0 {
		t.Fatalf("WaitFence called %d times before saturation, want 0", len(dev.waited))
	}
}

func TestRingGetOrRecycleWaitsOldestWhenSaturated(t *testing.T) {
	dev := &fakeDevice{}
	r := NewRing(dev, 2)

	bag1 := r.BagPool().Get()
	img := &recordingImage{}
	bag1.AddImage(img)

	e0, _ := r.GetOrRecycle()
	e0.AddBag(bag1)
	r.Push(e0, fakeFence{id: 0})

	e1, _ := r.GetOrRecycle()
	r.Push(e1, fakeFence{id: 1})

	// Ring is now at bound (2); the next GetOrRecycle must wait + reset the
	// oldest epoch's fence and release its bags before reuse.
	e2, err := r.GetOrRecycle()
	if err != nil {
		t.Fatalf("GetOrRecycle() error = %v", err)
	}
	r.Push(e2, fakeFence{id: 2})
	if len(dev.waited) != 1 {
		t.Fatalf("WaitFence called %d times, want 1", len(dev.waited))
	}
	if len(dev.reset) != 1 {
		t.Fatalf("ResetFence called %d times, want 1", len(dev.reset))
	}
	if img.holds != 0 {
		t.Fatalf("recycled epoch's bag should have released its image hold, holds = %d", img.holds)
	}
	if r.InFlight() != 2 {
		t.Fatalf("InFlight() = %d, want 2 (bound preserved)", r.InFlight())
	}
}

func TestRingDeviceIdleDropReleasesWithoutWaiting(t *testing.T) {
	dev := &fakeDevice{}
	r := NewRing(dev, 3)

	bag := r.BagPool().Get()
	img := &recordingImage{}
	bag.AddImage(img)
	e, _ := r.GetOrRecycle()
	e.AddBag(bag)
	r.Push(e, fakeFence{id: 0})

	r.DeviceIdleDrop()
	if len(dev.waited) != 0 {
		t.Fatalf("DeviceIdleDrop should not wait on fences, got %d waits", len(dev.waited))
	}
	if img.holds != 0 {
		t.Fatalf("DeviceIdleDrop should release bag holds, holds = %d", img.holds)
	}
}

func TestRingDestroyAllEmptiesRing(t *testing.T) {
	dev := &fakeDevice{}
	r := NewRing(dev, 3)
	e, _ := r.GetOrRecycle()
	r.Push(e, fakeFence{id: 0})

	r.DestroyAll()
	if r.InFlight() != 0 {
		t.Fatalf("InFlight() after DestroyAll = %d, want 0", r.InFlight())
	}
}

func TestEpochAddCommandBufferTracksPool(t *testing.T) {
	e := &Epoch{}
	pool := &cmdpool.Pool{}
	e.AddCommandBuffer("cb", pool)
	if len(e.bufs) != 1 {
		t.Fatalf("len(bufs) = %d, want 1", len(e.bufs))
	}
}

// recordingImage is a minimal driver.Image double implementing the
// Retain/Release hook refbag.Bag drives.
type recordingImage struct{ holds int }

func (r *recordingImage) Format() driver.Format { return driver.FormatRGBA8Unorm }
func (r *recordingImage) Extent() driver.Extent { return driver.Extent{} }
func (r *recordingImage) MipLevels() uint32     { return 1 }
func (r *recordingImage) Layers() uint32        { return 1 }
func (r *recordingImage) Usage() driver.Usage   { return driver.UsageSampled }
func (r *recordingImage) Detached() bool        { return r.holds == 0 }
func (r *recordingImage) Destroy()              {}
func (r *recordingImage) Retain()               { r.holds++ }
func (r *recordingImage) Release()              { r.holds-- }
