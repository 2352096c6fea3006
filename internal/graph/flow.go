package graph

import (
	ezflow "github.com/go-ezflow/ezflow"
	"github.com/go-ezflow/ezflow/karta"
)

// Flow bundles a DAG fragment behind its first (input) and last
// (output) nodes. A flow does not itself join the pipeline; linking
// delegates to the boundary nodes. Flows compose by append, prepend and
// merge, and may be empty.
type Flow struct {
	first []ezflow.Dest
	last  []ezflow.Source
}

// NewFlow creates a flow with the given boundary nodes.
func NewFlow(first []ezflow.Dest, last []ezflow.Source) *Flow {
	f := &Flow{}
	for _, d := range first {
		f.AddFirst(d)
	}
	for _, s := range last {
		f.AddLast(s)
	}
	return f
}

// AddFirst adds an input node.
func (f *Flow) AddFirst(d ezflow.Dest) {
	if d == nil {
		return
	}
	for _, x := range f.first {
		if x.ID() == d.ID() {
			return
		}
	}
	f.first = append(f.first, d)
}

// AddLast adds an output node.
func (f *Flow) AddLast(s ezflow.Source) {
	if s == nil {
		return
	}
	for _, x := range f.last {
		if x.ID() == s.ID() {
			return
		}
	}
	f.last = append(f.last, s)
}

// First returns the input nodes.
func (f *Flow) First() []ezflow.Dest { return f.first }

// Last returns the output nodes.
func (f *Flow) Last() []ezflow.Source { return f.last }

// IsEmpty reports whether the flow has no boundary nodes.
func (f *Flow) IsEmpty() bool { return len(f.first) == 0 && len(f.last) == 0 }

// LinkNext wires a downstream node after every last node.
func (f *Flow) LinkNext(d ezflow.Dest) {
	for _, s := range f.last {
		s.LinkNext(d)
	}
}

// LinkPrev wires an upstream source before every first node.
func (f *Flow) LinkPrev(s ezflow.Source) {
	for _, d := range f.first {
		s.LinkNext(d)
	}
}

// Append wires other after this flow and returns the composite
// (this flow's firsts, other's lasts).
func (f *Flow) Append(other *Flow) *Flow {
	if other == nil || other.IsEmpty() {
		return NewFlow(f.first, f.last)
	}
	for _, s := range f.last {
		for _, d := range other.first {
			s.LinkNext(d)
		}
	}
	return NewFlow(f.first, other.last)
}

// Prepend wires other before this flow and returns the composite.
func (f *Flow) Prepend(other *Flow) *Flow {
	if other == nil || other.IsEmpty() {
		return NewFlow(f.first, f.last)
	}
	return other.Append(f)
}

// Merge unions two flows with the same input and output row types.
func (f *Flow) Merge(other *Flow) *Flow {
	out := NewFlow(f.first, f.last)
	if other != nil {
		for _, d := range other.first {
			out.AddFirst(d)
		}
		for _, s := range other.last {
			out.AddLast(s)
		}
	}
	return out
}

// Roots walks up from the output nodes to the set of root tasks,
// deduplicated in first-appearance order.
func (f *Flow) Roots() []karta.Task {
	var roots []karta.Task
	seen := make(map[karta.Task]bool)
	for _, s := range f.last {
		for _, t := range s.Roots() {
			if !seen[t] {
				seen[t] = true
				roots = append(roots, t)
			}
		}
	}
	return roots
}
