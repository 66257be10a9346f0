// Package graph implements the render-graph store: the persistent
// declarative structure of target records, node records, and presentation
// bindings that the frame executor walks every frame. It is grounded in
// crates/arcana/src/render/mod.rs's RenderGraph/RenderTarget/RenderNode
// triad — TargetID here plays the role of the original's TargetId(id,
// version) pair, NodeID the role of RenderId, and Store the role of
// RenderGraph itself.
package graph

import (
	"fmt"

	"github.com/oxy-arcana/rendergraph/driver"
)

// TargetKind distinguishes image targets from buffer targets. The
// original keeps separate image_targets/buffer_targets maps and a
// RenderTargetType trait to dispatch between them; Go's lack of
// specialization makes a plain tag plus two maps the simplest mirror.
type TargetKind int

const (
	ImageTarget TargetKind = iota
	BufferTarget
)

func (k TargetKind) String() string {
	if k == BufferTarget {
		return "buffer"
	}
	return "image"
}

// Version is a monotonically increasing, append-only counter distinguishing
// successive writes to the same target. Version 0 is always the target's
// first write.
type Version uint32

// TargetID names one specific version of one logical target. A write that
// supersedes a target produces a new TargetID with the same raw identity
// and an incremented Version; a TargetID is therefore a complete
// description of "this exact value," not just "this slot."
type TargetID struct {
	id      uint64
	version Version
	kind    TargetKind
}

// Base returns the TargetID's version-0 identity, suitable as a map key
// when indexing per-target (rather than per-version) state.
func (t TargetID) Base() TargetID { return TargetID{id: t.id, kind: t.kind} }

// Raw returns the target's bare numeric identity, stripped of version and
// kind. The frame executor uses it as a map key for per-target (rather
// than per-version) resource bindings, where TargetID itself would be
// ambiguous across versions of the same target.
func (t TargetID) Raw() uint64 { return t.id }

// Version reports which version of the target this id names.
func (t TargetID) Version() Version { return t.version }

// Kind reports whether this is an image or buffer target.
func (t TargetID) Kind() TargetKind { return t.kind }

func (t TargetID) String() string {
	return fmt.Sprintf("%s#%d.v%d", t.kind, t.id, t.version)
}

// NodeID identifies one render node record.
type NodeID uint64

// Window identifies a presentation surface. It is opaque to the graph
// store; the embedding application's window handle is cast to a Window.
type Window uintptr

// accessRecord holds the per-version access bookkeeping a TargetRecord
// keeps: the writer's stages, the wait mask it must be flushed against
// (the "write barrier" source), and the union of every later reader's
// stages (the "read barrier" destination).
type accessRecord struct {
	producer     NodeID
	writerStages driver.Stage
	waitMask     driver.Stage
	readerStages driver.Stage
}

// TargetRecord is the persistent record for one logical target: its
// display name, the node that produced version 0, and one accessRecord per
// version.
type TargetRecord struct {
	Name     string
	Kind     TargetKind
	Producer NodeID
	ImageDesc  driver.ImageDescriptor
	BufferDesc driver.BufferDescriptor
	versions []accessRecord
}

// Versions reports how many versions this target currently has.
func (r *TargetRecord) Versions() int { return len(r.versions) }

// NodeRecord is the persistent record for one render node.
type NodeRecord struct {
	ID       NodeID
	Name     string
	Callback Callback
	Writes   []TargetID
	Reads    []TargetID
}

// Callback is the closure a render node registers. It is invoked once per
// frame the node is scheduled in, with a RenderContext facade bound to
// that frame's resources and barriers. Folding the ambient ECS world into
// the context (via RenderContext.World) rather than passing it as a
// second positional argument keeps node signatures to a single parameter,
// which is the idiomatic Go shape for a callback type.
type Callback func(ctx RenderContext) error

// RenderContext is the facade a node's callback sees. The concrete
// implementation lives in package exec; it is declared here so Store can
// type the Callback signature without exec importing graph's internals
// back.
type RenderContext interface {
	// NewCommandEncoder borrows a command-buffer slot from the queue's
	// command-pool ring and returns an encoder for it, tagged with label
	// for GPU debug markers if the backend supports them.
	NewCommandEncoder(label string) (driver.CommandEncoder, error)

	// WriteImage returns the image resource bound to id, inserting id's
	// pending write barrier (or init-image barrier, for a freshly acquired
	// swapchain image) into enc and removing it from the frame's barrier
	// map so it cannot fire twice.
	WriteImage(id TargetID, enc driver.CommandEncoder) (driver.Image, error)

	// ReadImage is WriteImage's read-barrier counterpart.
	ReadImage(id TargetID, enc driver.CommandEncoder) (driver.Image, error)

	// WriteBuffer is WriteImage for buffer targets.
	WriteBuffer(id TargetID, enc driver.CommandEncoder) (driver.Buffer, error)

	// ReadBuffer is ReadImage for buffer targets.
	ReadBuffer(id TargetID, enc driver.CommandEncoder) (driver.Buffer, error)

	// Commit hands a finished command buffer back to the executor. Between
	// a NewCommandEncoder call and the matching Commit, the node must not
	// invoke another node and must not retain the resource references
	// returned by WriteImage/ReadImage/WriteBuffer/ReadBuffer past Commit.
	Commit(cb driver.CommandBuffer)

	// World returns the opaque ECS world context passed to Executor.Render.
	World() any
}

// Store is the render-graph store: the exclusive owner of every target
// and node record. Callers interact with it only by id; it is safe to
// read concurrently once graph construction has finished, but is treated
// as read-only during frame execution (§5) — all mutation happens between
// frames.
type Store struct {
	nextNode   uint64
	nextTarget uint64

	nodes   map[NodeID]*NodeRecord
	targets map[uint64]*TargetRecord
	binds   map[Window]TargetID
}

// NewStore creates an empty render-graph store.
func NewStore() *Store {
	return &Store{
		nodes:   make(map[NodeID]*NodeRecord),
		targets: make(map[uint64]*TargetRecord),
		binds:   make(map[Window]TargetID),
	}
}

// ReserveNode allocates a NodeID for a node under construction. The
// caller uses it as the producer argument to NewTarget/NewVersion while
// building the node's write set, then finalizes the node with AddNode.
func (s *Store) ReserveNode() NodeID {
	s.nextNode++
	return NodeID(s.nextNode)
}

// NewImageTarget creates a new image target, version 0, produced by
// producer with the given writer stages and backing descriptor. desc is
// used by the frame executor to allocate the transient GPU image the
// first time a node touches this target in a frame where it is not bound
// to a freshly acquired presentation image. This is the Go-idiomatic
// concretization of the distilled new_target(name, producer, write_stages)
// operation: Rust dispatches image-vs-buffer through the RenderTargetType
// trait, which Go replaces with two explicit constructors (see
// NewBufferTarget) rather than a generic with an ad hoc kind constraint.
func (s *Store) NewImageTarget(name string, producer NodeID, desc driver.ImageDescriptor, writeStages driver.Stage) TargetID {
	s.nextTarget++
	id := s.nextTarget
	s.targets[id] = &TargetRecord{
		Name:      name,
		Kind:      ImageTarget,
		Producer:  producer,
		ImageDesc: desc,
		versions:  []accessRecord{{producer: producer, writerStages: writeStages}},
	}
	return TargetID{id: id, kind: ImageTarget}
}

// NewBufferTarget is NewImageTarget for buffer targets.
func (s *Store) NewBufferTarget(name string, producer NodeID, desc driver.BufferDescriptor, writeStages driver.Stage) TargetID {
	s.nextTarget++
	id := s.nextTarget
	s.targets[id] = &TargetRecord{
		Name:       name,
		Kind:       BufferTarget,
		Producer:   producer,
		BufferDesc: desc,
		versions:   []accessRecord{{producer: producer, writerStages: writeStages}},
	}
	return TargetID{id: id, kind: BufferTarget}
}

// NewVersion adds version n+1 to an existing target, recording producer as
// the node responsible for it. The caller must have read version n (via
// RecordRead) in the same node or an earlier one; forgetting to do so
// before bumping a target would let two nodes race on the same version,
// so the invariant is enforced here rather than left to convention.
func (s *Store) NewVersion(id TargetID, producer NodeID, writeStages driver.Stage) (TargetID, error) {
	rec, ok := s.targets[id.id]
	if !ok {
		return TargetID{}, fmt.Errorf("graph: unknown target %s", id)
	}
	last := Version(len(rec.versions) - 1)
	if id.version != last {
		return TargetID{}, fmt.Errorf("graph: new version of %s must follow its current version %d, got %d", id, last, id.version)
	}
	if rec.versions[last].readerStages.Empty() {
		return TargetID{}, fmt.Errorf("graph: target %s version %d has no recorded reader; a new version may only follow a read", id, last)
	}
	waitMask := rec.versions[last].readerStages
	rec.versions = append(rec.versions, accessRecord{producer: producer, writerStages: writeStages, waitMask: waitMask})
	return TargetID{id: id.id, version: last + 1, kind: id.kind}, nil
}

// RecordRead merges readStages into id's reader-stage set. The graph
// builder calls this to declare an explicit reader edge; the frame
// executor does not call it, and only reads the result via ReaderStages
// during Phase B.
func (s *Store) RecordRead(id TargetID, readStages driver.Stage) error {
	rec, ok := s.targets[id.id]
	if !ok {
		return fmt.Errorf("graph: unknown target %s", id)
	}
	if int(id.version) >= len(rec.versions) {
		return fmt.Errorf("graph: unknown version %d of target %s", id.version, id)
	}
	rec.versions[id.version].readerStages = rec.versions[id.version].readerStages.Union(readStages)
	return nil
}

// AddNode finalizes a node reserved with ReserveNode: name, the set of
// target versions it writes (each must have been created with this node
// as producer), the set it reads (each must name a version produced by an
// already-added node), and its callback. The write and read sets must be
// disjoint.
func (s *Store) AddNode(id NodeID, name string, writes, reads []TargetID, callback Callback) error {
	if _, exists := s.nodes[id]; exists {
		return fmt.Errorf("graph: node %d already added", id)
	}
	if callback == nil {
		return fmt.Errorf("graph: node %q has no callback", name)
	}

	seen := make(map[TargetID]bool, len(writes)+len(reads))
	for _, w := range writes {
		rec, ok := s.targets[w.id]
		if !ok {
			return fmt.Errorf("graph: node %q writes unknown target %s", name, w)
		}
		if int(w.version) >= len(rec.versions) || rec.versions[w.version].producer != id {
			return fmt.Errorf("graph: node %q is not the producer of %s", name, w)
		}
		if seen[w] {
			return fmt.Errorf("graph: node %q declares %s in its write set twice", name, w)
		}
		seen[w] = true
	}
	for _, r := range reads {
		rec, ok := s.targets[r.id]
		if !ok {
			return fmt.Errorf("graph: node %q reads unknown target %s", name, r)
		}
		if int(r.version) >= len(rec.versions) {
			return fmt.Errorf("graph: node %q reads unknown version %d of %s", name, r.version, r)
		}
		producer := rec.versions[r.version].producer
		if _, ok := s.nodes[producer]; !ok {
			return fmt.Errorf("graph: node %q reads %s before its producer node %d was added", name, r, producer)
		}
		if seen[r] {
			return fmt.Errorf("graph: node %q declares %s in both its write and read sets", name, r)
		}
		seen[r] = true
	}

	s.nodes[id] = &NodeRecord{ID: id, Name: name, Callback: callback, Writes: append([]TargetID(nil), writes...), Reads: append([]TargetID(nil), reads...)}
	return nil
}

// BindPresentation sets or replaces the durable binding from window to
// imageTarget. There is at most one presentation binding per window;
// calling this again for the same window replaces the prior binding.
func (s *Store) BindPresentation(window Window, imageTarget TargetID) error {
	if imageTarget.kind != ImageTarget {
		return fmt.Errorf("graph: presentation target %s is not an image target", imageTarget)
	}
	if _, ok := s.targets[imageTarget.id]; !ok {
		return fmt.Errorf("graph: unknown target %s", imageTarget)
	}
	s.binds[window] = imageTarget
	return nil
}

// Present is sugar for BindPresentation used from per-frame call sites: it
// does nothing if window is already bound to exactly imageTarget, and
// otherwise binds window to imageTarget as given, replacing any existing
// binding. It does not resolve imageTarget to its latest version. Grounded
// in the original's render/mod.rs RenderGraph::present, which records a
// presentation request that need not be re-declared once a window is
// already bound to it.
func (s *Store) Present(window Window, imageTarget TargetID) error {
	if cur, ok := s.binds[window]; ok && cur == imageTarget {
		return nil
	}
	return s.BindPresentation(window, imageTarget)
}

// UnbindPresentation removes window's presentation binding, if any. The
// frame executor calls this when a window's surface is permanently lost
// (§7): the binding is dropped so later frames simply skip the window
// rather than repeatedly failing to acquire from it.
func (s *Store) UnbindPresentation(window Window) {
	delete(s.binds, window)
}

// PresentationBinding reports the image target bound to window, if any.
func (s *Store) PresentationBinding(window Window) (TargetID, bool) {
	t, ok := s.binds[window]
	return t, ok
}

// Node returns the node record for id.
func (s *Store) Node(id NodeID) (*NodeRecord, bool) {
	n, ok := s.nodes[id]
	return n, ok
}

// Target returns the target record for the base identity of id.
func (s *Store) Target(id TargetID) (*TargetRecord, bool) {
	t, ok := s.targets[id.id]
	return t, ok
}

// WriterStages returns the writer-stage set recorded for the given
// version of id's target.
func (s *Store) WriterStages(id TargetID) driver.Stage {
	rec := s.targets[id.id]
	if rec == nil || int(id.version) >= len(rec.versions) {
		return driver.StageNone
	}
	return rec.versions[id.version].writerStages
}

// WaitMask returns the wait-mask stage set recorded for the given version
// of id's target.
func (s *Store) WaitMask(id TargetID) driver.Stage {
	rec := s.targets[id.id]
	if rec == nil || int(id.version) >= len(rec.versions) {
		return driver.StageNone
	}
	return rec.versions[id.version].waitMask
}

// ReaderStages returns the reader-stage set recorded for the given version
// of id's target.
func (s *Store) ReaderStages(id TargetID) driver.Stage {
	rec := s.targets[id.id]
	if rec == nil || int(id.version) >= len(rec.versions) {
		return driver.StageNone
	}
	return rec.versions[id.version].readerStages
}

// Producer returns the node that produced the given version of id's
// target.
func (s *Store) Producer(id TargetID) (NodeID, bool) {
	rec := s.targets[id.id]
	if rec == nil || int(id.version) >= len(rec.versions) {
		return 0, false
	}
	return rec.versions[id.version].producer, true
}

// LatestVersion returns the TargetID of the most recently written version
// of id's target.
func (s *Store) LatestVersion(id TargetID) TargetID {
	rec := s.targets[id.id]
	if rec == nil {
		return id
	}
	return TargetID{id: id.id, version: Version(len(rec.versions) - 1), kind: id.kind}
}
