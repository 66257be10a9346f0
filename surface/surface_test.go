package surface

import (
	"errors"
	"testing"

	"github.com/oxy-arcana/rendergraph/driver"
)

type fakeImage struct {
	holds     int
	destroyed bool
}

func (i *fakeImage) Format() driver.Format { return driver.FormatBGRA8Unorm }
func (i *fakeImage) Extent() driver.Extent { return driver.Extent{Width: 64, Height: 64, Depth: 1} }
func (i *fakeImage) MipLevels() uint32     { return 1 }
func (i *fakeImage) Layers() uint32        { return 1 }
func (i *fakeImage) Usage() driver.Usage   { return driver.UsagePresent }
func (i *fakeImage) Detached() bool        { return i.holds == 0 }
func (i *fakeImage) Destroy()              { i.destroyed = true }

type fakeFrame struct {
	img *fakeImage
}

func (f fakeFrame) Image() driver.Image               { return f.img }
func (f fakeFrame) ImageIndex() uint32                 { return 0 }
func (f fakeFrame) AcquireSemaphore() driver.Semaphore { return struct{}{} }
func (f fakeFrame) PresentSemaphore() driver.Semaphore { return struct{}{} }

// fakeSurface is a scripted driver.Surface: each call to NextFrame pops the
// next (frame, error) pair from next, repeating the last entry once
// exhausted. destroyed records whether Destroy was called.
type fakeSurface struct {
	next      []scriptedResult
	pos       int
	destroyed bool
}

type scriptedResult struct {
	frame driver.Frame
	err   error
}

func (s *fakeSurface) Capabilities() driver.SurfaceCapabilities {
	return driver.SurfaceCapabilities{
		Formats:      []driver.Format{driver.FormatBGRA8Unorm},
		PresentModes: []driver.PresentMode{driver.PresentModeFIFO},
	}
}

func (s *fakeSurface) Rebuild(width, height int, mode driver.PresentMode) error { return nil }

func (s *fakeSurface) NextFrame() (driver.Frame, error) {
	if len(s.next) == 0 {
		return fakeFrame{img: &fakeImage{}}, nil
	}
	i := s.pos
	if i >= len(s.next) {
		i = len(s.next) - 1
	} else {
		s.pos++
	}
	r := s.next[i]
	return r.frame, r.err
}

func (s *fakeSurface) Destroy() { s.destroyed = true }

// fakeDevice hands out a fresh *fakeSurface (scripted by script) for every
// NewSurface call, in order; once exhausted it repeats the last script.
type fakeDevice struct {
	scripts []*fakeSurface
	pos     int
	built   []*fakeSurface
}

func (d *fakeDevice) NewImage(driver.ImageDescriptor) (driver.Image, error)   { return nil, nil }
func (d *fakeDevice) NewBuffer(driver.BufferDescriptor) (driver.Buffer, error) { return nil, nil }
func (d *fakeDevice) NewSurface(window uintptr, width, height int) (driver.Surface, error) {
	var s *fakeSurface
	if len(d.scripts) == 0 {
		s = &fakeSurface{}
	} else if d.pos < len(d.scripts) {
		s = d.scripts[d.pos]
		d.pos++
	} else {
		s = d.scripts[len(d.scripts)-1]
	}
	d.built = append(d.built, s)
	return s, nil
}
func (d *fakeDevice) NewSemaphore() (driver.Semaphore, error) { return struct{}{}, nil }
func (d *fakeDevice) WaitFence(driver.Fence) error            { return nil }
func (d *fakeDevice) ResetFence(driver.Fence) error           { return nil }
func (d *fakeDevice) Destroy()                                {}

func TestNextFrameRebuildsFromUninitialized(t *testing.T) {
	dev := &fakeDevice{}
	s := New(dev, 1, 640, 480, driver.PresentModeFIFO)

	frame, outcome, err := s.NextFrame()
	if err != nil {
		t.Fatalf("NextFrame() error = %v", err)
	}
	if outcome != OutcomeAcquired {
		t.Fatalf("outcome = %v, want OutcomeAcquired", outcome)
	}
	if frame == nil {
		t.Fatal("frame is nil")
	}
	if len(dev.built) != 1 {
		t.Fatalf("NewSurface called %d times, want 1", len(dev.built))
	}
}

func TestNextFrameOutOfDateRequestsRetry(t *testing.T) {
	dev := &fakeDevice{}
	sc := &fakeSurface{next: []scriptedResult{
		{err: driver.ErrOutOfDate},
	}}
	dev.scripts = []*fakeSurface{sc}
	s := New(dev, 1, 640, 480, driver.PresentModeFIFO)
	s.NextFrame() // rebuild to Ready

	_, outcome, err := s.NextFrame()
	if outcome != OutcomeRetry {
		t.Fatalf("outcome = %v, want OutcomeRetry", outcome)
	}
	if err != nil {
		t.Fatalf("NextFrame() on out-of-date should not itself error, got %v", err)
	}
	if s.st != stateUninitialized {
		t.Fatalf("state = %v, want stateUninitialized", s.st)
	}
}

func TestNextFrameSurfaceLostIsTerminal(t *testing.T) {
	dev := &fakeDevice{}
	sc := &fakeSurface{next: []scriptedResult{
		{err: driver.ErrSurfaceLost},
	}}
	dev.scripts = []*fakeSurface{sc}
	s := New(dev, 1, 640, 480, driver.PresentModeFIFO)
	s.NextFrame()

	_, outcome, err := s.NextFrame()
	if outcome != OutcomeLost {
		t.Fatalf("outcome = %v, want OutcomeLost", outcome)
	}
	if !errors.Is(err, driver.ErrSurfaceLost) {
		t.Fatalf("err = %v, want wrapping ErrSurfaceLost", err)
	}
	if !s.Lost() {
		t.Fatal("Lost() should report true once the surface is lost")
	}

	_, outcome, err = s.NextFrame()
	if outcome != OutcomeLost || !errors.Is(err, driver.ErrSurfaceLost) {
		t.Fatal("a lost synchronizer must keep reporting OutcomeLost on every subsequent call")
	}
}

func TestSuboptimalCooldownTriggersRebuildAfterExpiry(t *testing.T) {
	dev := &fakeDevice{}
	s := New(dev, 1, 640, 480, driver.PresentModeFIFO)
	if err := s.SetSuboptimalCooldown(2); err != nil {
		t.Fatalf("SetSuboptimalCooldown() error = %v", err)
	}

	sc := &fakeSurface{next: []scriptedResult{
		{frame: fakeFrame{img: &fakeImage{}}, err: driver.ErrSuboptimal},
		{frame: fakeFrame{img: &fakeImage{}}, err: driver.ErrSuboptimal},
	}}
	dev.scripts = []*fakeSurface{sc}

	s.NextFrame() // initial rebuild also consumes the first scripted result
	for i := 0; i < 2; i++ {
		_, outcome, err := s.NextFrame()
		if outcome != OutcomeAcquired {
			t.Fatalf("iteration %d: outcome = %v, want OutcomeAcquired (suboptimal still yields a usable frame)", i, outcome)
		}
		if err != nil {
			t.Fatalf("iteration %d: err = %v, want nil", i, err)
		}
	}
	if s.st != stateRebuilding {
		t.Fatalf("state after cooldown expiry = %v, want stateRebuilding", s.st)
	}
}

func TestSetSuboptimalCooldownRejectsNonPositive(t *testing.T) {
	dev := &fakeDevice{}
	s := New(dev, 1, 640, 480, driver.PresentModeFIFO)
	if err := s.SetSuboptimalCooldown(0); err == nil {
		t.Fatal("SetSuboptimalCooldown(0) should error")
	}
}

func TestRetirementHoldsUntilImagesDetached(t *testing.T) {
	dev := &fakeDevice{}
	s := New(dev, 1, 640, 480, driver.PresentModeFIFO)

	img1 := &fakeImage{holds: 1}
	sc1 := &fakeSurface{next: []scriptedResult{
		{frame: fakeFrame{img: img1}},
		{err: driver.ErrOutOfDate},
	}}
	dev.scripts = []*fakeSurface{sc1}
	s.NextFrame() // builds swapchain #1, acquires img1

	sc2 := &fakeSurface{next: []scriptedResult{
		{frame: fakeFrame{img: &fakeImage{}}},
	}}
	dev.scripts = append(dev.scripts, sc2)

	s.NextFrame() // OutOfDate -> Uninitialized
	s.NextFrame() // rebuild retires sc1, builds sc2

	if sc1.destroyed {
		t.Fatal("retired swapchain destroyed while its image still has outstanding holds")
	}
	if s.RetiredCount() != 1 {
		t.Fatalf("RetiredCount() = %d, want 1", s.RetiredCount())
	}

	img1.holds = 0
	s.NextFrame() // any call to NextFrame sweeps the retirement queue first

	if !sc1.destroyed {
		t.Fatal("retired swapchain should be destroyed once its image is detached")
	}
	if !img1.destroyed {
		t.Fatal("retired swapchain's image should be destroyed alongside its swapchain")
	}
	if s.RetiredCount() != 0 {
		t.Fatalf("RetiredCount() after sweep = %d, want 0", s.RetiredCount())
	}
}

func TestHighWaterExceeded(t *testing.T) {
	dev := &fakeDevice{}
	s := New(dev, 1, 640, 480, driver.PresentModeFIFO)
	s.SetRetirementHighWaterMark(1)
	s.retired = []retiredSwapchain{{}, {}}
	if !s.HighWaterExceeded() {
		t.Fatal("HighWaterExceeded() should be true once the retirement queue exceeds its mark")
	}
}
