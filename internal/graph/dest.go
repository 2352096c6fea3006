package graph

import (
	ezflow "github.com/go-ezflow/ezflow"
)

// DestBase provides the receiving-end behavior shared by links, sinks
// and bridges: the upstream set and the pending-closer signal counter.
type DestBase struct {
	id   int64
	self ezflow.Dest
	prev []ezflow.Source
	sig  int
}

// InitDest wires the base to its outer node.
func (d *DestBase) InitDest(id int64, self ezflow.Dest) {
	d.id = id
	d.self = self
}

// ID returns the node identity.
func (d *DestBase) ID() int64 { return d.id }

// LinkPrev records an upstream source; the reciprocal direction is
// owned by Source.LinkNext.
func (d *DestBase) LinkPrev(s ezflow.Source) {
	if s == nil {
		return
	}
	for _, p := range d.prev {
		if p.ID() == s.ID() {
			return
		}
	}
	d.prev = append(d.prev, s)
}

// UnlinkPrev forgets the upstream link to s, or every upstream link
// when s is nil.
func (d *DestBase) UnlinkPrev(s ezflow.Source) {
	if s == nil {
		prev := d.prev
		d.prev = nil
		for _, p := range prev {
			p.UnlinkNext(d.self)
		}
		return
	}
	for i, p := range d.prev {
		if p.ID() == s.ID() {
			d.prev = append(d.prev[:i], d.prev[i+1:]...)
			return
		}
	}
}

// Prev returns the upstream set.
func (d *DestBase) Prev() []ezflow.Source { return d.prev }

// DataBatch iterates Data by default; units that handle batches as a
// whole override it.
func (d *DestBase) DataBatch(rs []ezflow.Row) {
	for _, r := range rs {
		d.self.Data(r)
	}
}

// IncSig counts a begin-of-stream signal.
func (d *DestBase) IncSig() int {
	d.sig++
	return d.sig
}

// DecSig counts an end-of-stream signal, never going below zero.
func (d *DestBase) DecSig() int {
	if d.sig > 0 {
		d.sig--
	}
	return d.sig
}

// Sig returns the pending-closer count.
func (d *DestBase) Sig() int { return d.sig }
