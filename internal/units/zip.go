package units

import (
	ezflow "github.com/go-ezflow/ezflow"
	"github.com/go-ezflow/ezflow/internal/graph"
	"github.com/go-ezflow/ezflow/karta"
)

type zqueue struct {
	key ezflow.Row
	q   []ezflow.Row
}

// Zip joins rows from two upstream sources by per-side key selections.
// Rows queue per key and side; whenever both queues for a key are
// non-empty, min(|q1|,|q2|) pairs are emitted FIFO, projected through
// the output selection over concat(left, right). End-of-stream flushes
// remaining matched pairs and drops unpaired remainders. Ordering is
// preserved within a key, not across keys.
type Zip struct {
	graph.SourceBase

	left  *zipSide
	right *zipSide
	k1    ezflow.Selection
	k2    ezflow.Selection
	oslct ezflow.Selection

	index1 map[string]*zqueue
	index2 map[string]*zqueue
	order1 []string

	sig             int
	visited         bool
	traversingRoots bool
	traversingTasks bool
}

// NewZip creates a zip unit with per-side key selections.
func NewZip(k1, k2, oslct ezflow.Selection) *Zip {
	z := &Zip{
		k1: k1, k2: k2, oslct: oslct,
		index1: make(map[string]*zqueue),
		index2: make(map[string]*zqueue),
	}
	z.InitSource(graph.NextID(), z)
	z.left = &zipSide{z: z, leftSide: true}
	z.left.InitDest(graph.NextID(), z.left)
	z.right = &zipSide{z: z, leftSide: false}
	z.right.InitDest(graph.NextID(), z.right)
	return z
}

// Left returns the dest accepting the first upstream's rows.
func (z *Zip) Left() ezflow.Dest { return z.left }

// Right returns the dest accepting the second upstream's rows.
func (z *Zip) Right() ezflow.Dest { return z.right }

// Roots walks both upstream sides.
func (z *Zip) Roots() []karta.Task {
	if z.traversingRoots {
		return nil
	}
	z.traversingRoots = true
	var roots []karta.Task
	for _, p := range z.left.Prev() {
		roots = append(roots, p.Roots()...)
	}
	for _, p := range z.right.Prev() {
		roots = append(roots, p.Roots()...)
	}
	z.traversingRoots = false
	return roots
}

func (z *Zip) sideData(left bool, r ezflow.Row) {
	var key ezflow.Row
	if left {
		key = z.k1.Project(r)
	} else {
		key = z.k2.Project(r)
	}
	kb := keyBytes(key)
	mine, other := z.index1, z.index2
	if !left {
		mine, other = z.index2, z.index1
	}
	q, ok := mine[kb]
	if !ok {
		q = &zqueue{key: key.Clone()}
		mine[kb] = q
		if left {
			z.order1 = append(z.order1, kb)
		}
	}
	q.q = append(q.q, r)
	if _, ok := other[kb]; ok {
		z.flush(kb)
	}
}

func (z *Zip) flush(kb string) {
	q1, q2 := z.index1[kb], z.index2[kb]
	n := len(q1.q)
	if len(q2.q) < n {
		n = len(q2.q)
	}
	for i := 0; i < n; i++ {
		out := z.oslct.Project(ezflow.Concat(q1.q[0], q2.q[0]))
		q1.q = q1.q[1:]
		q2.q = q2.q[1:]
		for _, d := range z.Next() {
			d.Data(out)
		}
	}
	if len(q1.q) == 0 {
		delete(z.index1, kb)
		for i, k := range z.order1 {
			if k == kb {
				z.order1 = append(z.order1[:i], z.order1[i+1:]...)
				break
			}
		}
	}
	if len(q2.q) == 0 {
		delete(z.index2, kb)
	}
}

func (z *Zip) signal(k int) {
	if z.visited {
		return
	}
	z.visited = true
	if k == 0 {
		z.sig++
	} else {
		if z.sig > 0 {
			z.sig--
		}
		if z.sig == 0 {
			z.dataEnd()
		}
	}
	for _, d := range z.Next() {
		d.Signal(k)
	}
	z.visited = false
}

func (z *Zip) dataEnd() {
	order := append([]string(nil), z.order1...)
	for _, kb := range order {
		if _, ok := z.index1[kb]; !ok {
			continue
		}
		if _, ok := z.index2[kb]; ok {
			z.flush(kb)
		}
	}
	z.index1 = make(map[string]*zqueue)
	z.index2 = make(map[string]*zqueue)
	z.order1 = nil
}

func (z *Zip) forwardPar(p *karta.Par) {
	if z.visited {
		return
	}
	z.visited = true
	if p != nil {
		for _, d := range z.Next() {
			d.ForwardPar(p)
		}
	}
	z.visited = false
}

func (z *Zip) forwardTasks() []karta.Task {
	if z.traversingTasks {
		return nil
	}
	z.traversingTasks = true
	var tasks []karta.Task
	for _, d := range z.Next() {
		tasks = append(tasks, d.ForwardTasks()...)
	}
	z.traversingTasks = false
	return tasks
}

// zipSide adapts one upstream of a Zip to the Dest interface; data,
// signal and traversal events all delegate to the shared zip state.
type zipSide struct {
	graph.DestBase
	z        *Zip
	leftSide bool
}

func (s *zipSide) Data(r ezflow.Row) { s.z.sideData(s.leftSide, r) }

func (s *zipSide) DataBatch(rs []ezflow.Row) {
	for _, r := range rs {
		s.z.sideData(s.leftSide, r)
	}
}

func (s *zipSide) Signal(k int)               { s.z.signal(k) }
func (s *zipSide) ForwardPar(p *karta.Par)    { s.z.forwardPar(p) }
func (s *zipSide) ForwardTasks() []karta.Task { return s.z.forwardTasks() }
