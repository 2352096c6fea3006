package graph

import (
	ezflow "github.com/go-ezflow/ezflow"
	"github.com/go-ezflow/ezflow/karta"
)

// SourceBase provides the emitting-end behavior shared by links, roots
// and bridges: an ordered downstream set with reciprocal linking.
type SourceBase struct {
	id   int64
	self ezflow.Source
	next []ezflow.Dest
}

// InitSource wires the base to its outer node. The outer node's pointer
// is needed so reciprocal links record the node, not the base.
func (s *SourceBase) InitSource(id int64, self ezflow.Source) {
	s.id = id
	s.self = self
}

// ID returns the node identity.
func (s *SourceBase) ID() int64 { return s.id }

// LinkNext wires d downstream and records the reciprocal upstream link.
func (s *SourceBase) LinkNext(d ezflow.Dest) {
	if d == nil {
		return
	}
	for _, n := range s.next {
		if n.ID() == d.ID() {
			return
		}
	}
	s.next = append(s.next, d)
	d.LinkPrev(s.self)
}

// UnlinkNext severs the link to d, or every downstream link when d is
// nil.
func (s *SourceBase) UnlinkNext(d ezflow.Dest) {
	if d == nil {
		for _, n := range s.next {
			n.UnlinkPrev(s.self)
		}
		s.next = nil
		return
	}
	for i, n := range s.next {
		if n.ID() == d.ID() {
			s.next = append(s.next[:i], s.next[i+1:]...)
			d.UnlinkPrev(s.self)
			return
		}
	}
}

// Next returns the downstream set.
func (s *SourceBase) Next() []ezflow.Dest { return s.next }

// Roots is overridden by roots (returning themselves) and links
// (walking upstream); a bare source has none.
func (s *SourceBase) Roots() []karta.Task { return nil }
