// Package surface implements the per-window surface synchronizer: the
// acquire/rebuild/lost state machine and retirement queue described in
// the spec's §4.7, grounded directly in crates/mev/src/vulkan/surface.rs's
// Surface::next_frame, its SuboptimalRetire cooldown counter, and its
// clear_retired retirement sweep.
package surface

import (
	"errors"
	"fmt"

	"github.com/oxy-arcana/rendergraph/driver"
)

// DefaultSuboptimalCooldown is the number of frames the synchronizer
// tolerates a "suboptimal" result before rebuilding. Many drivers report
// suboptimal spuriously on the first frame after a resize, so this must
// never be zero.
const DefaultSuboptimalCooldown = 10

// DefaultRetirementHighWaterMark is the queued-retired-swapchain count
// above which HighWaterExceeded reports true, a sign the caller may be
// leaking image references. The synchronizer only reports the condition;
// it does not itself wait for the device to go idle.
const DefaultRetirementHighWaterMark = 8

// state is the synchronizer's state machine position for one window.
type state int

const (
	stateUninitialized state = iota
	stateReady
	stateRebuilding
	stateLost
)

// Outcome is Phase A's three-way acquire result for one window.
type Outcome int

const (
	// OutcomeAcquired reports a usable frame; the window should be added
	// to the to-present list for this host frame.
	OutcomeAcquired Outcome = iota
	// OutcomeRetry reports the swapchain needed a rebuild; the caller
	// should invoke NextFrame again for this window within the same host
	// frame.
	OutcomeRetry
	// OutcomeLost reports the window is permanently unusable and should be
	// dropped from the frame (and, typically, from future presentation).
	OutcomeLost
)

var errRetiredImagesLive = errors.New("surface: retired swapchain still has live images")

// retiredSwapchain is a swapchain that has been superseded but cannot yet
// be destroyed because at least one of the images it owned may still be
// referenced by an in-flight GPU submission.
type retiredSwapchain struct {
	handle driver.Surface
	images []driver.Image
}

// Synchronizer owns one window's swapchain state and its retirement
// queue.
type Synchronizer struct {
	device driver.Device
	window uintptr
	width  int
	height int
	mode   driver.PresentMode

	st         state
	current    driver.Surface
	curImages  []driver.Image
	retired    []retiredSwapchain

	suboptimalCooldown    int
	cooldownRemaining     int
	retirementHighWater   int
}

// New creates a synchronizer for window at the given initial size. The
// swapchain itself is built lazily on the first call to NextFrame.
func New(device driver.Device, window uintptr, width, height int, mode driver.PresentMode) *Synchronizer {
	return &Synchronizer{
		device:              device,
		window:              window,
		width:               width,
		height:              height,
		mode:                mode,
		st:                  stateUninitialized,
		suboptimalCooldown:  DefaultSuboptimalCooldown,
		retirementHighWater: DefaultRetirementHighWaterMark,
	}
}

// SetSuboptimalCooldown overrides the default cooldown frame count.
// Passing 0 is rejected, since a zero cooldown would rebuild on every
// driver's spurious post-resize suboptimal report.
func (s *Synchronizer) SetSuboptimalCooldown(n int) error {
	if n <= 0 {
		return fmt.Errorf("surface: suboptimal cooldown must be positive, got %d", n)
	}
	s.suboptimalCooldown = n
	return nil
}

// SetRetirementHighWaterMark overrides the queued-retired-swapchain count
// that triggers an explicit device-idle.
func (s *Synchronizer) SetRetirementHighWaterMark(n int) {
	if n > 0 {
		s.retirementHighWater = n
	}
}

// Resize records a new target size for the next rebuild. It does not
// rebuild the swapchain immediately; the next NextFrame call that detects
// out-of-date (or the caller explicitly forcing a rebuild) picks it up.
func (s *Synchronizer) Resize(width, height int) {
	s.width, s.height = width, height
}

// Lost reports whether the window's surface has been marked permanently
// unusable.
func (s *Synchronizer) Lost() bool { return s.st == stateLost }

// RetiredCount reports how many swapchains are still queued for
// retirement.
func (s *Synchronizer) RetiredCount() int { return len(s.retired) }

// clearRetired destroys every retired swapchain whose images are all
// detached, i.e. no longer referenced by any in-flight submission. This
// is the correctness-critical step: destruction is contingent on
// image-handle detachment, never on a timer, so it cannot race a
// submission that is still reading the old image.
func (s *Synchronizer) clearRetired() {
	kept := s.retired[:0]
	for _, r := range s.retired {
		allDetached := true
		for _, img := range r.images {
			if !img.Detached() {
				allDetached = false
				break
			}
		}
		if allDetached {
			for _, img := range r.images {
				img.Destroy()
			}
			r.handle.Destroy()
			continue
		}
		kept = append(kept, r)
	}
	s.retired = kept
}

// HighWaterExceeded reports whether the retirement queue has grown past
// its configured high-water mark, signaling the caller should perform an
// explicit device-idle wait before this synchronizer makes further
// progress.
func (s *Synchronizer) HighWaterExceeded() bool {
	return len(s.retired) > s.retirementHighWater
}

// rebuild retires the current swapchain (if any) and builds a fresh one.
func (s *Synchronizer) rebuild() error {
	if s.current != nil {
		s.retired = append(s.retired, retiredSwapchain{handle: s.current, images: s.curImages})
		s.current = nil
		s.curImages = nil
	}

	if s.st == stateLost {
		return fmt.Errorf("%w: window surface previously lost", driver.ErrSurfaceLost)
	}

	surf, err := s.device.NewSurface(s.window, s.width, s.height)
	if err != nil {
		return fmt.Errorf("surface: creating surface: %w", err)
	}
	caps := surf.Capabilities()
	mode := s.mode
	if !supportsMode(caps.PresentModes, mode) {
		mode = pickMode(caps.PresentModes)
	}
	if err := surf.Rebuild(s.width, s.height, mode); err != nil {
		return fmt.Errorf("surface: rebuilding swapchain: %w", err)
	}
	s.current = surf
	s.cooldownRemaining = s.suboptimalCooldown
	s.st = stateReady
	return nil
}

// NextFrame advances the state machine and returns the acquired frame for
// this host frame, or an Outcome telling the Frame executor's Phase A how
// to proceed.
func (s *Synchronizer) NextFrame() (driver.Frame, Outcome, error) {
	s.clearRetired()

	if s.st == stateLost {
		return nil, OutcomeLost, fmt.Errorf("%w: window surface is lost", driver.ErrSurfaceLost)
	}

	if s.st == stateUninitialized || s.st == stateRebuilding {
		if err := s.rebuild(); err != nil {
			if errors.Is(err, driver.ErrSurfaceLost) {
				s.st = stateLost
				return nil, OutcomeLost, err
			}
			return nil, OutcomeRetry, err
		}
	} else if s.cooldownRemaining > 0 {
		s.cooldownRemaining--
	}

	frame, err := s.current.NextFrame()
	switch {
	case err == nil:
		s.trackImage(frame)
		return frame, OutcomeAcquired, nil
	case errors.Is(err, driver.ErrSuboptimal):
		if s.cooldownRemaining == 0 {
			s.st = stateRebuilding
		}
		s.trackImage(frame)
		return frame, OutcomeAcquired, nil
	case errors.Is(err, driver.ErrOutOfDate):
		s.st = stateUninitialized
		return nil, OutcomeRetry, nil
	case errors.Is(err, driver.ErrSurfaceLost), errors.Is(err, driver.ErrDeviceLost):
		s.st = stateLost
		return nil, OutcomeLost, err
	default:
		return nil, OutcomeRetry, err
	}
}

// trackImage records frame's image as live-owned by the current swapchain,
// deduplicating by image identity (interface equality), not by image index.
// A backend that returns the same image objects on every acquire keeps this
// slice at the swapchain's image count; one that returns a new object per
// acquire grows it by one per frame until the swapchain is retired.
func (s *Synchronizer) trackImage(frame driver.Frame) {
	if frame == nil {
		return
	}
	img := frame.Image()
	for _, existing := range s.curImages {
		if existing == img {
			return
		}
	}
	s.curImages = append(s.curImages, img)
}

func supportsMode(modes []driver.PresentMode, want driver.PresentMode) bool {
	for _, m := range modes {
		if m == want {
			return true
		}
	}
	return false
}

// pickMode prefers Mailbox, then FIFO, then Immediate, mirroring
// Surface::pick_mode in the original Vulkan backend.
func pickMode(modes []driver.PresentMode) driver.PresentMode {
	for _, want := range []driver.PresentMode{driver.PresentModeMailbox, driver.PresentModeFIFO, driver.PresentModeImmediate} {
		if supportsMode(modes, want) {
			return want
		}
	}
	return driver.PresentModeFIFO
}
