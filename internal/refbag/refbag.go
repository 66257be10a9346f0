// Package refbag implements the per-command-buffer reference bag: a bag of
// strongly-typed GPU handles that must outlive the GPU's use of the
// command buffers they were produced for. Bags are owned by the epoch
// ring; clearing one pushes it onto a per-queue free list for reuse rather
// than discarding it, grounded in the design note that the finite set of
// handle kinds (image, buffer, pipeline, surface-frame) makes a type-erased
// "any" container unnecessary here.
package refbag

import "github.com/oxy-arcana/rendergraph/driver"

// Kind distinguishes the handle stored in one Entry.
type Kind int

const (
	KindImage Kind = iota
	KindBuffer
	KindPipeline
	KindFrame
)

// Entry is one strongly-typed handle held alive by a Bag. Only the field
// matching Kind is populated.
type Entry struct {
	Kind    Kind
	Image   driver.Image
	Buffer  driver.Buffer
	Pipeline driver.Pipeline
	Frame   driver.Frame
}

// retainable is implemented by backends (e.g. driver/wgpu's image and
// buffer types) that track external holds explicitly, since Go's GC cannot
// tell the surface synchronizer's retirement queue when a retired
// swapchain image has no more GPU-submission-lifetime references. Backends
// that don't need this (e.g. a test fake) simply don't implement it, and
// the bag falls back to holding a plain strong reference.
type retainable interface {
	Retain()
	Release()
}

// Bag is an unordered collection of strong references. A node's render
// context accumulates one as it resolves image and buffer targets for the
// command buffers it commits.
type Bag struct {
	entries []Entry
}

// AddImage records a strong reference to img, retaining it if img tracks
// external holds.
func (b *Bag) AddImage(img driver.Image) {
	if r, ok := img.(retainable); ok {
		r.Retain()
	}
	b.entries = append(b.entries, Entry{Kind: KindImage, Image: img})
}

// AddBuffer records a strong reference to buf, retaining it if buf tracks
// external holds.
func (b *Bag) AddBuffer(buf driver.Buffer) {
	if r, ok := buf.(retainable); ok {
		r.Retain()
	}
	b.entries = append(b.entries, Entry{Kind: KindBuffer, Buffer: buf})
}

// AddPipeline records a strong reference to p.
func (b *Bag) AddPipeline(p driver.Pipeline) {
	b.entries = append(b.entries, Entry{Kind: KindPipeline, Pipeline: p})
}

// AddFrame records a strong reference to a surface-frame token, retaining
// its image if that image tracks external holds.
func (b *Bag) AddFrame(f driver.Frame) {
	if f != nil {
		if r, ok := f.Image().(retainable); ok {
			r.Retain()
		}
	}
	b.entries = append(b.entries, Entry{Kind: KindFrame, Frame: f})
}

// Len reports how many handles the bag currently holds.
func (b *Bag) Len() int { return len(b.entries) }

// Entries returns the bag's entries. The returned slice is only valid
// until the next call to Clear.
func (b *Bag) Entries() []Entry { return b.entries }

// clear releases every retainable entry's hold, then empties the bag's
// entries while keeping its backing array, so the bag can be reused
// without reallocating.
func (b *Bag) clear() {
	for i := range b.entries {
		e := &b.entries[i]
		switch e.Kind {
		case KindImage:
			if r, ok := e.Image.(retainable); ok {
				r.Release()
			}
		case KindBuffer:
			if r, ok := e.Buffer.(retainable); ok {
				r.Release()
			}
		case KindFrame:
			if e.Frame != nil {
				if r, ok := e.Frame.Image().(retainable); ok {
					r.Release()
				}
			}
		}
		b.entries[i] = Entry{}
	}
	b.entries = b.entries[:0]
}

// Pool is a per-queue free list of emptied bags.
type Pool struct {
	free []*Bag
}

// Get returns a bag from the free list, or a freshly allocated one if the
// free list is empty.
func (p *Pool) Get() *Bag {
	if n := len(p.free); n > 0 {
		b := p.free[n-1]
		p.free[n-1] = nil
		p.free = p.free[:n-1]
		return b
	}
	return &Bag{}
}

// Put clears bag and pushes it onto the free list for the next Get.
func (p *Pool) Put(b *Bag) {
	if b == nil {
		return
	}
	b.clear()
	p.free = append(p.free, b)
}
