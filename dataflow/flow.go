// Package dataflow is the fluent composition surface of the engine. A
// Builder chains stages (rise, map, filter, reduce, reduceAll, zip)
// while tracking the column arity flowing between them, so an invalid
// selection is rejected at composition time; Build returns the wired
// Flow or the accumulated planning errors.
package dataflow

import (
	ezflow "github.com/go-ezflow/ezflow"
	"github.com/go-ezflow/ezflow/errors"
	"github.com/go-ezflow/ezflow/internal/graph"
	"github.com/go-ezflow/ezflow/karta"
)

// Flow is a built, reusable DAG fragment: its first nodes accept input,
// its last nodes emit output. Flows compose through Builder's Pipe, Tee
// and Merge and run via Run or the scheduler directly.
type Flow struct {
	impl     *graph.Flow
	outArity int
}

// First returns the flow's input nodes.
func (f *Flow) First() []ezflow.Dest { return f.impl.First() }

// Last returns the flow's output nodes.
func (f *Flow) Last() []ezflow.Source { return f.impl.Last() }

// OutArity returns the column arity of rows the flow emits.
func (f *Flow) OutArity() int { return f.outArity }

// Roots returns the flow's root tasks.
func (f *Flow) Roots() []karta.Task { return f.impl.Roots() }

// Run schedules and drives the flow on the given scheduler.
func (f *Flow) Run(k *karta.Karta, req karta.ProcReq) error {
	roots := f.impl.Roots()
	if len(roots) == 0 {
		return errors.EmptyFlowError{}
	}
	k.Run(roots, req)
	return nil
}

// MergeFlows unions flows with the same input and output row types.
func MergeFlows(a, b *Flow) *Flow {
	return &Flow{impl: a.impl.Merge(b.impl), outArity: a.outArity}
}
