package graph

import (
	ezflow "github.com/go-ezflow/ezflow"
	"github.com/go-ezflow/ezflow/karta"
)

// LinkBase combines a source and a dest into an in-between pipeline
// node and supplies the default traversal and signal behavior. Units
// embed it and override Data; units with end-of-stream work set OnEnd.
type LinkBase struct {
	SourceBase
	DestBase

	// OnEnd fires when the last pending closer signals end-of-stream.
	OnEnd func(k int)

	visited         bool
	traversingRoots bool
	traversingTasks bool
}

// InitLink wires both halves of the node under one identity.
func (l *LinkBase) InitLink(self ezflow.Link) {
	id := NextID()
	l.SourceBase.InitSource(id, self)
	l.DestBase.InitDest(id, self)
}

// ID returns the node identity.
func (l *LinkBase) ID() int64 { return l.SourceBase.ID() }

// ForwardPar passes placement information downstream unchanged.
func (l *LinkBase) ForwardPar(p *karta.Par) {
	if l.visited {
		return
	}
	l.visited = true
	if p != nil {
		for _, n := range l.Next() {
			n.ForwardPar(p)
		}
	}
	l.visited = false
}

// Signal implements begin/end-of-stream bookkeeping: the begin signal
// increments the pending-closer count, the end signal decrements it and
// fires OnEnd when every upstream closer has finished.
func (l *LinkBase) Signal(k int) {
	if l.visited {
		return
	}
	l.visited = true
	if k == 0 {
		l.IncSig()
	} else if l.DecSig() == 0 && l.OnEnd != nil {
		l.OnEnd(k)
	}
	for _, n := range l.Next() {
		n.Signal(k)
	}
	l.visited = false
}

// Roots walks upstream to the root tasks.
func (l *LinkBase) Roots() []karta.Task {
	if l.traversingRoots {
		return nil
	}
	l.traversingRoots = true
	var roots []karta.Task
	for _, p := range l.Prev() {
		roots = append(roots, p.Roots()...)
	}
	l.traversingRoots = false
	return roots
}

// ForwardTasks walks downstream collecting every task.
func (l *LinkBase) ForwardTasks() []karta.Task {
	if l.traversingTasks {
		return nil
	}
	l.traversingTasks = true
	var tasks []karta.Task
	for _, n := range l.Next() {
		tasks = append(tasks, n.ForwardTasks()...)
	}
	l.traversingTasks = false
	return tasks
}

// Unlink severs the node from both directions.
func (l *LinkBase) Unlink() {
	l.UnlinkPrev(nil)
	l.UnlinkNext(nil)
}
