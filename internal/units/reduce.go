package units

import (
	ezflow "github.com/go-ezflow/ezflow"
	"github.com/go-ezflow/ezflow/internal/graph"
	"github.com/go-ezflow/ezflow/logging"
)

type bucket struct {
	key ezflow.Row
	acc ezflow.Row
}

// Reduce groups rows by key columns and folds each group piecemeal as
// rows stream in. At end-of-stream one output row per surviving key is
// emitted: the output selection over concat(key, accumulator).
//
// Scan mode emits the updated bucket after every update instead.
// Ordered mode assumes incoming rows are already grouped by key; when
// the key changes the previous bucket is emitted and deleted, so peak
// bucket count stays at one.
type Reduce struct {
	graph.LinkBase

	kslct   ezflow.Selection
	vslct   ezflow.Selection
	oslct   ezflow.Selection
	red     ezflow.Reducer
	scan    bool
	ordered bool

	index map[string]*bucket
	order []string
	first bool
	preKb string
}

// NewReduce creates a streaming reduce unit.
func NewReduce(kslct, vslct, oslct ezflow.Selection, red ezflow.Reducer, scan, ordered bool) *Reduce {
	u := &Reduce{
		kslct: kslct, vslct: vslct, oslct: oslct,
		red: red, scan: scan, ordered: ordered,
		index: make(map[string]*bucket),
		first: true,
	}
	u.InitLink(u)
	u.OnEnd = u.dataEnd
	return u
}

// Data folds one row into its key's bucket.
func (u *Reduce) Data(r ezflow.Row) {
	key := u.kslct.Project(r)
	val := u.vslct.Project(r)
	kb := keyBytes(key)
	b, ok := u.index[kb]
	if !ok {
		b = &bucket{key: key.Clone(), acc: u.red.SeedCopy()}
		u.index[kb] = b
		u.order = append(u.order, kb)
	}
	acc, err := u.red.Step(b.acc, b.key, val)
	if err != nil {
		logging.Default().Log(logging.ModeWarning, "reducer failed, dropping row: %v", err)
		return
	}
	b.acc = acc
	if u.scan {
		u.emit(b)
		return
	}
	if u.ordered {
		if u.first {
			u.first = false
			u.preKb = kb
		} else if u.preKb != kb {
			u.emit(u.index[u.preKb])
			u.drop(u.preKb)
			u.preKb = kb
		}
	}
}

func (u *Reduce) emit(b *bucket) {
	out := u.oslct.Project(ezflow.Concat(b.key, b.acc))
	for _, d := range u.Next() {
		d.Data(out)
	}
}

func (u *Reduce) drop(kb string) {
	delete(u.index, kb)
	for i, k := range u.order {
		if k == kb {
			u.order = append(u.order[:i], u.order[i+1:]...)
			return
		}
	}
}

// BucketCount returns the number of live buckets; ordered-mode memory
// stays bounded by one.
func (u *Reduce) BucketCount() int { return len(u.index) }

func (u *Reduce) dataEnd(int) {
	if !u.scan && len(u.index) > 0 {
		out := make([]ezflow.Row, 0, len(u.index))
		for _, kb := range u.order {
			b := u.index[kb]
			out = append(out, u.oslct.Project(ezflow.Concat(b.key, b.acc)))
		}
		for _, d := range u.Next() {
			d.DataBatch(out)
		}
	}
	u.index = make(map[string]*bucket)
	u.order = nil
	u.first = true
}
