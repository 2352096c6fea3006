package dataflow

import (
	ezflow "github.com/go-ezflow/ezflow"
	"github.com/go-ezflow/ezflow/errors"
	"github.com/go-ezflow/ezflow/internal/graph"
	"github.com/go-ezflow/ezflow/internal/shuffle"
	"github.com/go-ezflow/ezflow/internal/units"
	"github.com/go-ezflow/ezflow/karta"
)

// fslctOf resolves a stage's function selection, identity by default.
func fslctOf(s *stageSpec) ezflow.Selection {
	if len(s.fslct) > 0 {
		return s.fslct
	}
	return ezflow.Identity(s.inArity)
}

// oslctOf resolves a stage's output selection against the implicit
// concat its output draws from.
func (b *Builder) oslctOf(s *stageSpec) ezflow.Selection {
	concat := b.concatArity(s)
	switch s.oMode {
	case outCols:
		return s.oslct
	case outDrop:
		return s.oslct.Complement(concat)
	case outResult:
		head := concat - s.resultArity()
		out := make(ezflow.Selection, 0, s.resultArity())
		for i := head + 1; i <= concat; i++ {
			out = append(out, i)
		}
		return out
	case outTransform:
		f := fslctOf(s)
		res := s.resultArity()
		out := make(ezflow.Selection, 0, s.inArity)
		used := 0
		for i := 1; i <= s.inArity; i++ {
			if pos := indexIn(f, i); pos >= 0 {
				// pairwise in-place replacement; surplus function
				// columns are dropped
				if pos < res {
					out = append(out, s.inArity+pos+1)
					used++
				}
				continue
			}
			out = append(out, i)
		}
		for i := used; i < res; i++ {
			out = append(out, s.inArity+i+1)
		}
		return out
	default:
		return ezflow.Identity(concat)
	}
}

func (s *stageSpec) resultArity() int {
	if s.kind == kindReduce {
		return len(s.red.Seed)
	}
	return s.yields
}

func indexIn(s ezflow.Selection, v int) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}

func (s *stageSpec) bridgeKey() ezflow.Selection {
	if len(s.partBy) > 0 {
		return s.partBy
	}
	return s.kslct
}

func (s *stageSpec) bridgeReq() karta.ProcReq {
	req := s.req
	if s.mode.Has(ezflow.ModeTask) {
		req = req.WithTask()
	}
	return req
}

// Build wires the composed stages into a Flow, splicing a shuffle
// bridge before every parallel stage, and returns it together with any
// accumulated composition errors.
func (b *Builder) Build() (*Flow, error) {
	if err := b.err.ErrorOrNil(); err != nil {
		return nil, err
	}
	for _, s := range b.stages {
		var parentOuts []ezflow.Source
		if s.parent != nil {
			parentOuts = s.parent.outs
		}
		switch s.kind {
		case kindRise:
			rise := units.NewRise(s.src, s.req)
			s.outs = []ezflow.Source{rise}
		case kindFrom:
			n := units.NewNoOp()
			b.first = append(b.first, n)
			s.outs = []ezflow.Source{n}
		case kindFlowRef:
			for _, d := range s.flow.First() {
				b.first = append(b.first, d)
			}
			s.outs = s.flow.Last()
		case kindMap:
			var u *units.Map
			if s.flatFn != nil {
				u = units.NewFlatMap(s.flatFn, fslctOf(s), b.oslctOf(s))
			} else {
				u = units.NewMap(s.mapFn, fslctOf(s), b.oslctOf(s))
			}
			b.wire(parentOuts, s, u)
			s.outs = []ezflow.Source{u}
		case kindFilter:
			u := units.NewFilter(s.pred, fslctOf(s), b.oslctOf(s))
			b.wire(parentOuts, s, u)
			s.outs = []ezflow.Source{u}
		case kindReduce:
			u := units.NewReduce(s.kslct, s.vslct, b.oslctOf(s), s.red, s.scan, s.ordered)
			b.wire(parentOuts, s, u)
			s.outs = []ezflow.Source{u}
		case kindReduceAll:
			u := units.NewReduceAll(s.kslct, s.vslct, b.oslctOf(s), s.redAll,
				s.ordered, s.adjacent, s.bunch, s.fixed)
			b.wire(parentOuts, s, u)
			s.outs = []ezflow.Source{u}
		case kindZip:
			z := units.NewZip(s.kslct, s.k2, b.oslctOf(s))
			if s.bridged {
				left := shuffle.NewBridge(s.bridgeReq(), s.mode.Has(ezflow.ModeDupe), s.ordered, s.kslct, s.partitioner)
				right := shuffle.NewBridge(s.bridgeReq(), s.mode.Has(ezflow.ModeDupe), s.ordered, s.k2, s.partitioner)
				left.SetBro(right)
				right.SetBro(left)
				for _, p := range parentOuts {
					p.LinkNext(left)
				}
				left.LinkNext(z.Left())
				for _, p := range s.flow.Last() {
					p.LinkNext(right)
				}
				right.LinkNext(z.Right())
			} else {
				for _, p := range parentOuts {
					p.LinkNext(z.Left())
				}
				for _, p := range s.flow.Last() {
					p.LinkNext(z.Right())
				}
			}
			s.outs = []ezflow.Source{z}
		case kindTee:
			for _, p := range parentOuts {
				for _, d := range s.flow.First() {
					p.LinkNext(d)
				}
			}
			s.outs = parentOuts
		case kindPipe:
			for _, p := range parentOuts {
				for _, d := range s.flow.First() {
					p.LinkNext(d)
				}
			}
			s.outs = s.flow.Last()
		case kindMerge:
			if s.flow == nil {
				return nil, errors.SemanticError{Msg: "Merge requires a flow"}
			}
			s.outs = append(append([]ezflow.Source(nil), parentOuts...), s.flow.Last()...)
		}
		for _, dh := range s.dumps {
			d := units.NewDump(dh[0], dh[1])
			for _, out := range s.outs {
				out.LinkNext(d)
			}
		}
	}
	fl := graph.NewFlow(b.first, b.cur.outs)
	return &Flow{impl: fl, outArity: b.cur.outArity}, nil
}

// wire links a stage's unit below its parents, inserting the stage's
// shuffle bridge when it is parallel.
func (b *Builder) wire(parentOuts []ezflow.Source, s *stageSpec, unit ezflow.Link) {
	if s.bridged {
		br := shuffle.NewBridge(s.bridgeReq(), s.mode.Has(ezflow.ModeDupe), s.ordered, s.bridgeKey(), s.partitioner)
		for _, p := range parentOuts {
			p.LinkNext(br)
		}
		br.LinkNext(unit)
		return
	}
	for _, p := range parentOuts {
		p.LinkNext(unit)
	}
}

// Run builds the flow and schedules it.
func (b *Builder) Run(k *karta.Karta, req karta.ProcReq) (*Flow, error) {
	fl, err := b.Build()
	if err != nil {
		return nil, err
	}
	if err := fl.Run(k, req); err != nil {
		return nil, err
	}
	return fl, nil
}

// Get builds the flow, schedules it and returns the rows emitted by the
// last stage on this process.
func (b *Builder) Get(k *karta.Karta, req karta.ProcReq) ([]ezflow.Row, error) {
	fl, err := b.Build()
	if err != nil {
		return nil, err
	}
	sink := units.NewMemSink()
	for _, s := range fl.Last() {
		s.LinkNext(sink)
	}
	if err := fl.Run(k, req); err != nil {
		return nil, err
	}
	return sink.Rows(), nil
}
