package dataflow

import (
	multierror "github.com/hashicorp/go-multierror"

	ezflow "github.com/go-ezflow/ezflow"
	"github.com/go-ezflow/ezflow/errors"
	"github.com/go-ezflow/ezflow/karta"
)

type stageKind int

const (
	kindRise stageKind = iota
	kindFrom
	kindFlowRef
	kindMap
	kindFilter
	kindReduce
	kindReduceAll
	kindZip
	kindTee
	kindPipe
	kindMerge
)

type outMode int

const (
	outDefault outMode = iota
	outCols
	outDrop
	outTransform
	outResult
)

type stageSpec struct {
	kind   stageKind
	parent *stageSpec

	inArity  int
	outArity int

	// user functions
	src    ezflow.RiseSource
	mapFn  ezflow.MapFunc
	flatFn ezflow.FlatMapFunc
	pred   ezflow.FilterFunc
	red    ezflow.Reducer
	redAll ezflow.ReduceAllFunc
	yields int

	// selections
	fslct ezflow.Selection
	kslct ezflow.Selection
	vslct ezflow.Selection
	k2    ezflow.Selection
	oMode outMode
	oslct ezflow.Selection

	// modifiers
	scan     bool
	ordered  bool
	adjacent bool
	bunch    int
	fixed    bool

	// parallelism
	bridged     bool
	req         karta.ProcReq
	mode        ezflow.ParMode
	partBy      ezflow.Selection
	partitioner ezflow.Partitioner

	// attachments
	dumps [][2]string
	flow  *Flow

	// resolved at build
	outs []ezflow.Source
}

// Builder composes a pipeline stage by stage while tracking the column
// arity between stages. Every method returns the builder; composition
// errors accumulate and surface from Build.
type Builder struct {
	stages []*stageSpec
	cur    *stageSpec
	first  []ezflow.Dest
	err    *multierror.Error
}

// Rise starts a pipeline at a root source producing rows of the given
// arity.
func Rise(src ezflow.RiseSource, arity int) *Builder {
	b := &Builder{}
	s := &stageSpec{kind: kindRise, src: src, outArity: arity, req: karta.All()}
	b.stages = append(b.stages, s)
	b.cur = s
	return b
}

// RiseFn starts a pipeline at a plain batch-producing function.
func RiseFn(fn func() ([]ezflow.Row, error), arity int) *Builder {
	return Rise(ezflow.RiseFunc(fn), arity)
}

// From starts a rootless flow fragment accepting rows of the given
// arity; its head is a splice point for Pipe.
func From(arity int) *Builder {
	b := &Builder{}
	s := &stageSpec{kind: kindFrom, outArity: arity}
	b.stages = append(b.stages, s)
	b.cur = s
	return b
}

// FromFlow continues composition after an existing built flow.
func FromFlow(fl *Flow) *Builder {
	b := &Builder{}
	s := &stageSpec{kind: kindFlowRef, flow: fl, outArity: fl.OutArity()}
	b.stages = append(b.stages, s)
	b.cur = s
	return b
}

func (b *Builder) fail(err error) *Builder {
	b.err = multierror.Append(b.err, err)
	return b
}

func (b *Builder) push(s *stageSpec) *Builder {
	s.parent = b.cur
	s.inArity = b.cur.outArity
	b.stages = append(b.stages, s)
	b.cur = s
	return b
}

func (b *Builder) checkSlct(s ezflow.Selection, arity int) ezflow.Selection {
	if err := s.Sane(arity); err != nil {
		b.fail(err)
	}
	return s
}

// Map appends a stage applying fn to whole rows; the output row is the
// output selection over concat(input, result). The result arity
// defaults to one column; declare more with Yields.
func (b *Builder) Map(fn ezflow.MapFunc) *Builder {
	return b.push(&stageSpec{kind: kindMap, mapFn: fn, yields: 1,
		outArity: b.cur.outArity + 1})
}

// MapOf is Map with the function seeing only the selected columns.
func (b *Builder) MapOf(cols ezflow.Selection, fn ezflow.MapFunc) *Builder {
	b.checkSlct(cols, b.cur.outArity)
	s := &stageSpec{kind: kindMap, mapFn: fn, fslct: cols, yields: 1,
		outArity: b.cur.outArity + 1}
	return b.push(s)
}

// FlatMap appends a stage mapping each row to zero or many rows.
func (b *Builder) FlatMap(fn ezflow.FlatMapFunc) *Builder {
	return b.push(&stageSpec{kind: kindMap, flatFn: fn, yields: 1,
		outArity: b.cur.outArity + 1})
}

// FlatMapOf is FlatMap over selected columns.
func (b *Builder) FlatMapOf(cols ezflow.Selection, fn ezflow.FlatMapFunc) *Builder {
	b.checkSlct(cols, b.cur.outArity)
	return b.push(&stageSpec{kind: kindMap, flatFn: fn, fslct: cols, yields: 1,
		outArity: b.cur.outArity + 1})
}

// Filter appends a predicate stage; surviving rows pass unchanged.
func (b *Builder) Filter(fn ezflow.FilterFunc) *Builder {
	return b.push(&stageSpec{kind: kindFilter, pred: fn, outArity: b.cur.outArity})
}

// FilterOf is Filter with the predicate seeing only selected columns.
func (b *Builder) FilterOf(cols ezflow.Selection, fn ezflow.FilterFunc) *Builder {
	b.checkSlct(cols, b.cur.outArity)
	return b.push(&stageSpec{kind: kindFilter, pred: fn, fslct: cols,
		outArity: b.cur.outArity})
}

// Reduce appends a streaming reduce grouping on key columns k with
// value columns v. Reducing stages are parallel by default, preceded by
// a key-sharded bridge; Inprocess suppresses it.
func (b *Builder) Reduce(k, v ezflow.Selection, red ezflow.Reducer) *Builder {
	b.checkSlct(k, b.cur.outArity)
	b.checkSlct(v, b.cur.outArity)
	return b.push(&stageSpec{kind: kindReduce, kslct: k, vslct: v, red: red,
		bridged: true, req: karta.All(), mode: ezflow.ModeShard,
		outArity: len(k) + len(red.Seed)})
}

// ReduceKey is Reduce with value columns derived as the complement of
// the key columns.
func (b *Builder) ReduceKey(k ezflow.Selection, red ezflow.Reducer) *Builder {
	return b.Reduce(k, k.Complement(b.cur.outArity), red)
}

// ReduceAll appends a buffered reduce handing whole groups to fn. The
// result arity defaults to one column; declare more with Yields.
func (b *Builder) ReduceAll(k, v ezflow.Selection, fn ezflow.ReduceAllFunc) *Builder {
	b.checkSlct(k, b.cur.outArity)
	b.checkSlct(v, b.cur.outArity)
	return b.push(&stageSpec{kind: kindReduceAll, kslct: k, vslct: v, redAll: fn,
		bridged: true, req: karta.All(), mode: ezflow.ModeShard, yields: 1,
		outArity: len(k) + 1})
}

// Bunch makes the current reduceAll emit whenever a group reaches n
// rows, clearing the buffer after. With fixed set, partial buffers at
// end-of-stream are dropped.
func (b *Builder) Bunch(n int, fixed bool) *Builder {
	if b.cur.kind != kindReduceAll {
		return b.fail(errors.SemanticError{Msg: "Bunch applies to a reduceAll stage"})
	}
	b.cur.bunch = n
	b.cur.adjacent = false
	b.cur.fixed = fixed
	return b
}

// Adjacent makes the current reduceAll a sliding window of n rows,
// emitting on every slide. With fixed set, partial windows at
// end-of-stream are dropped.
func (b *Builder) Adjacent(n int, fixed bool) *Builder {
	if b.cur.kind != kindReduceAll {
		return b.fail(errors.SemanticError{Msg: "Adjacent applies to a reduceAll stage"})
	}
	b.cur.bunch = n
	b.cur.adjacent = true
	b.cur.fixed = fixed
	return b
}

// Scan makes the current reduce emit its bucket after every update.
func (b *Builder) Scan() *Builder {
	if b.cur.kind != kindReduce {
		return b.fail(errors.SemanticError{Msg: "Scan applies to a reduce stage"})
	}
	b.cur.scan = true
	return b
}

// Ordered asserts incoming rows are grouped by key: the current
// reducing stage keeps one group in memory, and its bridge holds each
// key's rows until the next key so they arrive contiguously.
func (b *Builder) Ordered(flag bool) *Builder {
	b.cur.ordered = flag
	return b
}

// Zip appends a keyed join with another flow; k1 selects this side's
// key columns, k2 the other side's.
func (b *Builder) Zip(other *Flow, k1, k2 ezflow.Selection) *Builder {
	if other == nil {
		return b.fail(errors.SemanticError{Msg: "Zip requires a flow to join with"})
	}
	b.checkSlct(k1, b.cur.outArity)
	b.checkSlct(k2, other.OutArity())
	if len(k1) != len(k2) {
		b.fail(errors.SemanticError{Msg: "Zip key selections must have equal width"})
	}
	return b.push(&stageSpec{kind: kindZip, kslct: k1, k2: k2, flow: other,
		bridged: true, req: karta.All(), mode: ezflow.ModeShard,
		outArity: b.cur.outArity + other.OutArity()})
}

// ZipSame is Zip keying both sides on the same columns.
func (b *Builder) ZipSame(other *Flow, k ezflow.Selection) *Builder {
	return b.Zip(other, k, k)
}

// Yields declares the result arity of the current map or reduceAll
// stage's function, for column tracking.
func (b *Builder) Yields(n int) *Builder {
	switch b.cur.kind {
	case kindMap:
		b.cur.yields = n
		b.cur.outArity = b.arityFor(b.cur)
	case kindReduceAll:
		b.cur.yields = n
		b.cur.outArity = b.arityFor(b.cur)
	default:
		return b.fail(errors.SemanticError{Msg: "Yields applies to a map or reduceAll stage"})
	}
	return b
}

// concatArity is the arity of the implicit concat the output selection
// of the current stage draws from.
func (b *Builder) concatArity(s *stageSpec) int {
	switch s.kind {
	case kindMap:
		return s.inArity + s.yields
	case kindReduce:
		return len(s.kslct) + len(s.red.Seed)
	case kindReduceAll:
		return len(s.kslct) + s.yields
	case kindZip:
		return s.inArity + s.flow.OutArity()
	default:
		return s.inArity
	}
}

func (b *Builder) arityFor(s *stageSpec) int {
	switch s.oMode {
	case outCols:
		return len(s.oslct)
	case outDrop:
		return b.concatArity(s) - len(s.oslct)
	case outResult:
		switch s.kind {
		case kindReduce:
			return len(s.red.Seed)
		default:
			return s.yields
		}
	case outTransform:
		if s.kind == kindMap {
			fn := len(s.fslct)
			if fn == 0 {
				fn = s.inArity
			}
			return s.inArity - fn + s.yields
		}
		return b.concatArity(s)
	default:
		return b.concatArity(s)
	}
}

// Cols shapes the current stage's output to the selected columns of the
// implicit concat.
func (b *Builder) Cols(slct ezflow.Selection) *Builder {
	b.checkSlct(slct, b.concatArity(b.cur))
	b.cur.oMode = outCols
	b.cur.oslct = slct
	b.cur.outArity = b.arityFor(b.cur)
	return b
}

// ColsDrop shapes the current stage's output to every column except the
// selected ones.
func (b *Builder) ColsDrop(slct ezflow.Selection) *Builder {
	b.checkSlct(slct, b.concatArity(b.cur))
	b.cur.oMode = outDrop
	b.cur.oslct = slct
	b.cur.outArity = b.arityFor(b.cur)
	return b
}

// ColsTransform replaces the current map stage's function columns in
// place with the function's result columns.
func (b *Builder) ColsTransform() *Builder {
	if b.cur.kind != kindMap {
		return b.fail(errors.SemanticError{Msg: "ColsTransform applies to a map stage"})
	}
	b.cur.oMode = outTransform
	b.cur.outArity = b.arityFor(b.cur)
	return b
}

// ColsResult keeps only the function result columns of the current
// stage.
func (b *Builder) ColsResult() *Builder {
	b.cur.oMode = outResult
	b.cur.outArity = b.arityFor(b.cur)
	return b
}

// Dump attaches a sink branch writing the current stage's rows to the
// named file, or stdout when fname is empty.
func (b *Builder) Dump(fname, header string) *Builder {
	b.cur.dumps = append(b.cur.dumps, [2]string{fname, header})
	return b
}

// Prll makes the current stage parallel with the given process request
// and routing mode.
func (b *Builder) Prll(req karta.ProcReq, mode ezflow.ParMode) *Builder {
	if b.cur.kind == kindRise {
		b.cur.req = req
		return b
	}
	b.cur.bridged = true
	b.cur.req = req
	if mode != ezflow.ModeNone {
		b.cur.mode = mode
	} else if b.cur.mode == ezflow.ModeNone {
		b.cur.mode = ezflow.ModeShard
	}
	return b
}

// Inprocess keeps the current stage in-process, removing its bridge.
func (b *Builder) Inprocess() *Builder {
	b.cur.bridged = false
	return b
}

// Mode replaces the current stage's routing mode.
func (b *Builder) Mode(mode ezflow.ParMode) *Builder {
	b.cur.mode = mode
	if mode != ezflow.ModeNone && b.cur.kind != kindRise {
		b.cur.bridged = true
	}
	return b
}

// PartitionBy overrides the columns (and optionally the hasher) the
// current stage's bridge shards on.
func (b *Builder) PartitionBy(slct ezflow.Selection, part ezflow.Partitioner) *Builder {
	b.checkSlct(slct, b.cur.inArity)
	b.cur.partBy = slct
	b.cur.partitioner = part
	if b.cur.kind != kindRise {
		b.cur.bridged = true
	}
	return b
}

// OneUp moves the insertion point to the stage before the current one;
// the next appended stage branches off it.
func (b *Builder) OneUp() *Builder {
	if b.cur.parent == nil {
		return b.fail(errors.SemanticError{Msg: "OneUp has no earlier stage to branch from"})
	}
	b.cur = b.cur.parent
	return b
}

// Tee attaches fl as a side branch of the current stage; composition
// continues along the current stage.
func (b *Builder) Tee(fl *Flow) *Builder {
	s := &stageSpec{kind: kindTee, flow: fl, outArity: b.cur.outArity}
	s.parent = b.cur
	s.inArity = b.cur.outArity
	b.stages = append(b.stages, s)
	return b
}

// Pipe continues composition along fl, feeding it the current stage's
// rows.
func (b *Builder) Pipe(fl *Flow) *Builder {
	return b.push(&stageSpec{kind: kindPipe, flow: fl, outArity: fl.OutArity()})
}

// Merge unions the current stream with fl's output stream; both must
// carry the same row type.
func (b *Builder) Merge(fl *Flow) *Builder {
	if fl != nil && fl.OutArity() != b.cur.outArity {
		b.fail(errors.SemanticError{Msg: "Merge requires streams of equal arity"})
	}
	return b.push(&stageSpec{kind: kindMerge, flow: fl, outArity: b.cur.outArity})
}
