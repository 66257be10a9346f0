package exec

import (
	"fmt"

	"github.com/oxy-arcana/rendergraph/graph"
)

// planFrame runs Phase B (reverse reachability) and Phase C (topological
// scheduling) against the targets already seeded into e.bfsQueue by
// Executor.Render, populating fs's four barrier maps and returning the
// node schedule in producer-before-consumer order.
func (e *Executor) planFrame(store *graph.Store, fs *frameState) ([]*graph.NodeRecord, error) {
	e.activeNodes.Clear()
	discoveryOrder := e.discoveryOrder[:0]

	// Phase B: reverse reachability over the producer relation, seeded by
	// Executor.Render with the exact (already latest-resolved) version of
	// every acquired window's presentation target. Every further step walks
	// exact target-versions, never re-deriving "latest" for a read: a node
	// may legitimately read an older version than the target's current
	// latest (the NewVersion chain in package graph), and collapsing to
	// base identity here would both merge distinct versions' barriers
	// together and silently drop an earlier version's producer whenever its
	// base was already seen via a later version.
	for {
		tid, ok := e.bfsQueue.PopFront()
		if !ok {
			break
		}
		producer, ok := store.Producer(tid)
		if !ok {
			continue
		}

		waitMask := store.WaitMask(tid)
		writerStages := store.WriterStages(tid)
		readerStages := store.ReaderStages(tid)
		writeBarrier := barrierRange{after: waitMask, before: writerStages}

		switch tid.Kind() {
		case graph.ImageTarget:
			fs.writeImageBarriers[tid] = writeBarrier
			if !readerStages.Empty() {
				fs.readImageBarriers[tid] = barrierRange{after: writerStages, before: readerStages}
			}
		case graph.BufferTarget:
			fs.writeBufferBarriers[tid] = writeBarrier
			if !readerStages.Empty() {
				fs.readBufferBarriers[tid] = barrierRange{after: writerStages, before: readerStages}
			}
		}

		if e.activeNodes.Add(producer) {
			discoveryOrder = append(discoveryOrder, producer)
			node, ok := store.Node(producer)
			if !ok {
				continue
			}
			for _, r := range node.Reads {
				if e.bfsSeen.Add(r) {
					e.bfsQueue.PushBack(r)
				}
			}
		}
	}
	e.discoveryOrder = discoveryOrder

	// Phase C: topological schedule via a FIFO ready queue, pushing active
	// nodes in discovery order and requeuing any node whose reads are not
	// all scheduled yet.
	e.readyQueue.Clear()
	e.scheduledWrites.Clear()
	for _, id := range discoveryOrder {
		e.readyQueue.PushBack(id)
	}

	schedule := make([]*graph.NodeRecord, 0, len(discoveryOrder))
	remaining := len(discoveryOrder)
	spins := 0
	maxSpins := remaining*remaining + remaining + 1
	for remaining > 0 {
		id, ok := e.readyQueue.PopFront()
		if !ok {
			return nil, fmt.Errorf("exec: ready queue starved with %d node(s) unscheduled", remaining)
		}
		node, ok := store.Node(id)
		if !ok {
			return nil, fmt.Errorf("exec: active node %d has no record", id)
		}

		ready := true
		for _, r := range node.Reads {
			if !e.scheduledWrites.Has(r) {
				ready = false
				break
			}
		}
		if !ready {
			e.readyQueue.PushBack(id)
			spins++
			if spins > maxSpins {
				return nil, fmt.Errorf("exec: topological schedule did not terminate; graph is not a DAG")
			}
			continue
		}

		schedule = append(schedule, node)
		for _, w := range node.Writes {
			e.scheduledWrites.Add(w)
		}
		remaining--
		spins = 0
	}

	return schedule, nil
}

// reverseCmdBufs reverses s in place.
func reverseCmdBufs[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
