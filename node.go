package ezflow

import (
	"github.com/go-ezflow/ezflow/karta"
)

// ParMode selects how a stage's shuffle bridge routes rows to the
// stage's process set.
type ParMode int

const (
	// ModeNone keeps the stage in-process; no bridge is inserted
	ModeNone ParMode = 0x00
	// ModeTask allocates a disjoint worker set for the stage
	ModeTask ParMode = 0x01
	// ModeDupe broadcasts every row to every worker of the stage
	ModeDupe ParMode = 0x02
	// ModeShard key-partitions rows across the stage's workers
	ModeShard ParMode = 0x04
)

// Has reports whether mode includes the given bit.
func (m ParMode) Has(bit ParMode) bool { return m&bit != 0 }

// Source is the emitting end of a pipeline node. A source can be a root
// producer, a link or a bridge.
type Source interface {
	ID() int64
	// LinkNext wires d downstream of this source and reciprocates the
	// upstream link on d.
	LinkNext(d Dest)
	// UnlinkNext severs the downstream link to d, or all downstream
	// links when d is nil.
	UnlinkNext(d Dest)
	// Next returns the downstream set.
	Next() []Dest
	// Roots walks upstream to the set of root tasks, with cycle guards.
	Roots() []karta.Task
}

// Dest is the receiving end of a pipeline node. Nodes that are only
// Dests are dead ends (sinks); nodes that are both are links.
type Dest interface {
	ID() int64
	// Data delivers a single row.
	Data(r Row)
	// DataBatch delivers a batch; the default behavior iterates Data.
	DataBatch(rs []Row)
	// Signal carries stream bookkeeping: k=0 begin-of-stream increments
	// the pending-closer count, k=1 end-of-stream decrements it and
	// fires the node's end handling when it reaches zero.
	Signal(k int)
	// ForwardPar pushes a task's placement toward downstream nodes
	// before data flows.
	ForwardPar(p *karta.Par)
	// ForwardTasks walks downstream collecting every task (bridges).
	ForwardTasks() []karta.Task
	// LinkPrev records an upstream source; called by Source.LinkNext.
	LinkPrev(s Source)
	// UnlinkPrev severs the upstream link to s, or all upstream links
	// when s is nil.
	UnlinkPrev(s Source)
	// Prev returns the upstream set.
	Prev() []Source
}

// Link is a node that both accepts and emits rows.
type Link interface {
	Source
	Dest
}
