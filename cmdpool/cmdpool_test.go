package cmdpool

import (
	"errors"
	"testing"

	"github.com/oxy-arcana/rendergraph/driver"
)

type fakeEncoder struct{ id int }

func (f *fakeEncoder) Label(string)                                             {}
func (f *fakeEncoder) Barrier(after, before driver.Stage)                        {}
func (f *fakeEncoder) InitImage(after, before driver.Stage, img driver.Image)    {}
func (f *fakeEncoder) CopyBufferToBuffer(driver.Buffer, uint64, driver.Buffer, uint64, uint64) {}
func (f *fakeEncoder) CopyBufferToImage(driver.Buffer, uint64, driver.Image)     {}
func (f *fakeEncoder) RenderPass(driver.RenderPassDescriptor, func())           {}
func (f *fakeEncoder) Present(driver.Frame, driver.Stage)                        {}
func (f *fakeEncoder) Finish() (driver.CommandBuffer, error)                    { return f, nil }

func newEncoderFactory() (int, func() (driver.CommandEncoder, error)) {
	n := 0
	return n, func() (driver.CommandEncoder, error) {
		n++
		return &fakeEncoder{id: n}, nil
	}
}

func TestPoolAllocateDeallocateTracksOutstanding(t *testing.T) {
	p := &Pool{}
	_, newEncoder := newEncoderFactory()

	enc1, err := p.Allocate(newEncoder)
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if p.Outstanding() != 1 {
		t.Fatalf("Outstanding() = %d, want 1", p.Outstanding())
	}

	enc2, err := p.Allocate(newEncoder)
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if p.Outstanding() != 2 {
		t.Fatalf("Outstanding() = %d, want 2", p.Outstanding())
	}

	cb1, _ := enc1.Finish()
	p.Deallocate(cb1)
	if p.Outstanding() != 1 {
		t.Fatalf("Outstanding() after one Deallocate = %d, want 1", p.Outstanding())
	}

	cb2, _ := enc2.Finish()
	p.Deallocate(cb2)
	if p.Outstanding() != 0 {
		t.Fatalf("Outstanding() after both Deallocate = %d, want 0", p.Outstanding())
	}
}

func TestPoolAllocateErrorDoesNotCountOutstanding(t *testing.T) {
	p := &Pool{}
	wantErr := errors.New("boom")
	_, err := p.Allocate(func() (driver.CommandEncoder, error) { return nil, wantErr })
	if err == nil {
		t.Fatal("Allocate() error = nil, want non-nil")
	}
	if p.Outstanding() != 0 {
		t.Fatalf("Outstanding() after failed Allocate = %d, want 0", p.Outstanding())
	}
}

func TestRingAcquireGrowsUpToBound(t *testing.T) {
	r := NewRing(nil, 3)
	_, newEncoder := newEncoderFactory()

	p1 := r.Acquire()
	if r.Len() != 1 {
		t.Fatalf("Len() after first Acquire = %d, want 1", r.Len())
	}

	enc, _ := p1.Allocate(newEncoder)
	_ = enc
	p2 := r.Acquire()
	if p2 == p1 {
		t.Fatal("Acquire() should return a new pool when the back pool has outstanding allocations and the ring is below bound")
	}
	if r.Len() != 2 {
		t.Fatalf("Len() after second Acquire = %d, want 2", r.Len())
	}
}

func TestRingAcquireReusesBackPoolAtBound(t *testing.T) {
	r := NewRing(nil, 1)
	_, newEncoder := newEncoderFactory()

	p1 := r.Acquire()
	p1.Allocate(newEncoder)
	p2 := r.Acquire()
	if p2 != p1 {
		t.Fatal("Acquire() at bound should reuse the existing back pool instead of growing past it")
	}
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (ring must not exceed its bound)", r.Len())
	}
}

func TestRingRefreshRotatesOnlyWhenIdle(t *testing.T) {
	r := NewRing(nil, 3)
	_, newEncoder := newEncoderFactory()

	p1 := r.Acquire()
	enc, _ := p1.Allocate(newEncoder)
	r.Refresh()
	if r.pools[0] != p1 {
		t.Fatal("Refresh() rotated a pool with outstanding allocations; it must wait for them to be returned")
	}

	cb, _ := enc.Finish()
	p1.Deallocate(cb)
	r.Refresh()
	if len(r.pools) != 1 {
		t.Fatalf("Len() after Refresh = %d, want 1 (single-pool ring)", len(r.pools))
	}
}

func TestNewRingNonPositiveBoundFallsBackToDefault(t *testing.T) {
	r := NewRing(nil, 0)
	if r.Bound() != DefaultBound {
		t.Fatalf("Bound() = %d, want %d", r.Bound(), DefaultBound)
	}
	r = NewRing(nil, -5)
	if r.Bound() != DefaultBound {
		t.Fatalf("Bound() = %d, want %d", r.Bound(), DefaultBound)
	}
}
