package units

import (
	ezflow "github.com/go-ezflow/ezflow"
	"github.com/go-ezflow/ezflow/internal/graph"
	"github.com/go-ezflow/ezflow/logging"
)

type group struct {
	key ezflow.Row
	buf []ezflow.Row
}

// ReduceAll buffers value subrows per key and hands whole groups to the
// user function. Emission triggers:
//
//   - end-of-stream (default): every group is flushed.
//   - bunch(n, fixed): when a group reaches n rows the function runs on
//     the buffer, which is then cleared. With fixed set, partial
//     buffers at end-of-stream are not emitted.
//   - adjacent(n, fixed): sliding window; at n rows the function runs,
//     then only the oldest row is popped. With fixed unset the window
//     keeps shrinking and emitting at end-of-stream.
//   - ordered: a key change flushes and deletes the previous group.
type ReduceAll struct {
	graph.LinkBase

	kslct    ezflow.Selection
	vslct    ezflow.Selection
	oslct    ezflow.Selection
	fn       ezflow.ReduceAllFunc
	ordered  bool
	adjacent bool
	bunch    int
	fixed    bool

	index map[string]*group
	order []string
	first bool
	preKb string
}

// NewReduceAll creates a buffered reduce unit.
func NewReduceAll(kslct, vslct, oslct ezflow.Selection, fn ezflow.ReduceAllFunc, ordered, adjacent bool, bunch int, fixed bool) *ReduceAll {
	u := &ReduceAll{
		kslct: kslct, vslct: vslct, oslct: oslct, fn: fn,
		ordered: ordered, adjacent: adjacent, bunch: bunch, fixed: fixed,
		index: make(map[string]*group),
		first: true,
	}
	u.InitLink(u)
	u.OnEnd = u.dataEnd
	return u
}

// Data buffers one row into its key's group.
func (u *ReduceAll) Data(r ezflow.Row) {
	key := u.kslct.Project(r)
	val := u.vslct.Project(r)
	kb := keyBytes(key)
	g, ok := u.index[kb]
	if !ok {
		g = &group{key: key.Clone()}
		u.index[kb] = g
		u.order = append(u.order, kb)
	}
	g.buf = append(g.buf, val)
	if u.bunch > 0 && len(g.buf) >= u.bunch {
		u.apply(g)
		if u.adjacent {
			g.buf = g.buf[1:]
		} else {
			g.buf = nil
		}
	}
	if u.ordered {
		if u.first {
			u.first = false
			u.preKb = kb
		} else if u.preKb != kb {
			pre := u.index[u.preKb]
			u.apply(pre)
			u.dropGroup(u.preKb)
			u.preKb = kb
		}
	}
}

func (u *ReduceAll) apply(g *group) {
	if len(g.buf) == 0 {
		return
	}
	results, err := u.fn(g.key, g.buf)
	if err != nil {
		logging.Default().Log(logging.ModeWarning, "reduceAll function failed, dropping group: %v", err)
		return
	}
	if len(results) == 0 || len(u.Next()) == 0 {
		return
	}
	out := make([]ezflow.Row, len(results))
	for i, res := range results {
		out[i] = u.oslct.Project(ezflow.Concat(g.key, res))
	}
	for _, d := range u.Next() {
		d.DataBatch(out)
	}
}

func (u *ReduceAll) dropGroup(kb string) {
	delete(u.index, kb)
	for i, k := range u.order {
		if k == kb {
			u.order = append(u.order[:i], u.order[i+1:]...)
			return
		}
	}
}

// GroupCount returns the number of live groups.
func (u *ReduceAll) GroupCount() int { return len(u.index) }

func (u *ReduceAll) dataEnd(int) {
	switch {
	case u.bunch > 0 && u.adjacent:
		if !u.fixed {
			// the window keeps sliding out: emit, pop the oldest,
			// repeat until the group is empty
			for _, kb := range u.order {
				g := u.index[kb]
				for len(g.buf) > 0 {
					u.apply(g)
					g.buf = g.buf[1:]
				}
			}
		}
	case u.bunch > 0:
		if !u.fixed {
			for _, kb := range u.order {
				u.apply(u.index[kb])
			}
		}
	default:
		for _, kb := range u.order {
			u.apply(u.index[kb])
		}
	}
	u.index = make(map[string]*group)
	u.order = nil
	u.first = true
}
