package karta

import (
	"testing"

	"github.com/go-ezflow/ezflow/logging"
	"github.com/stretchr/testify/require"
)

type stubComm struct {
	rank int
	size int
}

func (c *stubComm) Rank() int   { return c.rank }
func (c *stubComm) Size() int   { return c.size }
func (c *stubComm) MaxTag() int { return 32767 }

func (c *stubComm) Isend(to, tag int, payload []byte) SendHandle { return stubSend{} }
func (c *stubComm) Irecv(from, tag int) RecvHandle               { return &stubRecv{} }

type stubSend struct{}

func (stubSend) Test() bool { return true }
func (stubSend) Wait()      {}

type stubRecv struct{}

func (*stubRecv) Test() ([]byte, bool) { return nil, false }
func (*stubRecv) Cancel()              {}

type stubTask struct {
	req      ProcReq
	par      *Par
	branches []Task
	bro      Task
	pulled   int
	prePulls int
	onPull   func()
}

func (t *stubTask) Pull() {
	t.pulled++
	if t.onPull != nil {
		t.onPull()
	}
}
func (t *stubTask) PrePull()            { t.prePulls++ }
func (t *stubTask) BranchTasks() []Task { return t.branches }
func (t *stubTask) Req() ProcReq        { return t.req }
func (t *stubTask) SetPar(p *Par)       { t.par = p }
func (t *stubTask) Bro() Task           { return t.bro }

func newKarta(size int) *Karta {
	return New(&stubComm{rank: 0, size: size}, logging.New(0))
}

func TestRootGetsFullPool(t *testing.T) {
	k := newKarta(4)
	root := &stubTask{req: All()}
	k.Run([]Task{root}, All())
	require.Equal(t, 1, root.prePulls)
	require.Equal(t, 1, root.pulled)
	require.Equal(t, []int{0, 1, 2, 3}, root.par.Ranks())
}

func TestCountRequestPicksLeastLoaded(t *testing.T) {
	k := newKarta(4)
	root := &stubTask{req: Count(2)}
	k.Run([]Task{root}, All())
	require.Equal(t, 2, root.par.NProc())
}

func TestDependentTaskGetsHalfOfPriority(t *testing.T) {
	k := newKarta(4)
	bridge := &stubTask{req: All()}
	root := &stubTask{req: All(), branches: []Task{bridge}}
	k.Run([]Task{root}, All())
	// unspecified dependent request co-locates on half the upstream's
	// ranks
	require.Equal(t, 2, bridge.par.NProc())
	for _, r := range bridge.par.Ranks() {
		require.True(t, root.par.Contains(r))
	}
}

func TestTaskModeForcesDisjointSet(t *testing.T) {
	k := newKarta(4)
	bridge := &stubTask{req: Count(2).WithTask()}
	root := &stubTask{req: Count(2), branches: []Task{bridge}}
	k.Run([]Task{root}, All())
	require.Equal(t, 2, bridge.par.NProc())
	for _, r := range bridge.par.Ranks() {
		require.False(t, root.par.Contains(r))
	}
}

func TestExplicitRanksFallBackWhenAbsent(t *testing.T) {
	k := newKarta(2)
	root := &stubTask{req: Ranks(7, 9)}
	k.Run([]Task{root}, All())
	// outside the pool: one auto-picked rank with a warning
	require.Equal(t, 1, root.par.NProc())
}

func TestTagTriplesAreDistinct(t *testing.T) {
	k := newKarta(4)
	b1 := &stubTask{req: All()}
	b2 := &stubTask{req: All()}
	root := &stubTask{req: All(), branches: []Task{b1, b2}}
	k.Run([]Task{root}, All())
	seen := map[int]bool{}
	for _, task := range []*stubTask{root, b1, b2} {
		for i := 0; i < 3; i++ {
			tag := task.par.Tag(i)
			require.False(t, seen[tag])
			seen[tag] = true
		}
	}
}

func TestBroTasksShareRanks(t *testing.T) {
	k := newKarta(4)
	b1 := &stubTask{req: All()}
	b2 := &stubTask{req: All()}
	b1.bro = b2
	b2.bro = b1
	root := &stubTask{req: All(), branches: []Task{b1, b2}}
	k.Run([]Task{root}, All())
	require.Equal(t, b1.par.Ranks(), b2.par.Ranks())
	require.NotEqual(t, b1.par.Tag(0), b2.par.Tag(0))
}

func TestLoadBalanceAcrossIdenticalTasks(t *testing.T) {
	k := newKarta(4)
	var roots []Task
	for i := 0; i < 8; i++ {
		roots = append(roots, &stubTask{req: Count(1)})
	}
	k.Run(roots, All())
	// greedy least-loaded: 8 single-rank tasks over 4 ranks, two each
	for rank, counts := range k.Allocations() {
		require.Equal(t, 2, counts[1], "rank %d", rank)
	}
}

func TestNestedRunDegradesToLocal(t *testing.T) {
	k := newKarta(4)
	inner := &stubTask{req: All()}
	outer := &stubTask{req: All()}
	outer.onPull = func() {
		k.Run([]Task{inner}, All())
	}
	k.Run([]Task{outer}, All())
	require.Equal(t, 1, inner.pulled)
	require.True(t, inner.par.Local())
	require.Equal(t, 1, inner.par.NProc())
}

func TestRunLocalPlacesEverythingHere(t *testing.T) {
	k := newKarta(4)
	bridge := &stubTask{req: All()}
	root := &stubTask{req: All(), branches: []Task{bridge}}
	k.Run([]Task{root}, Local())
	require.True(t, root.par.Local())
	require.True(t, bridge.par.Local())
}

func TestProcReqResize(t *testing.T) {
	r := Ranks(0, 1, 2, 3).Resize(2)
	require.Equal(t, []int{0, 1}, r.RanksVal())
	c := Count(8).Resize(3)
	require.Equal(t, 3, c.CountVal())
}
