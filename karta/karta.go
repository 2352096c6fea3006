// Package karta implements the ezflow scheduler. A Karta owns the
// process pool view of one worker process: the total rank count, the
// local rank, a load table used to place tasks on the least-occupied
// ranks, and the tag counter that hands out channel triples to shuffle
// bridges. Unlike a process-global singleton, a Karta is an explicit
// handle passed into Run so the caller chooses the pool.
package karta

import (
	"sort"

	"github.com/go-ezflow/ezflow/logging"
)

// PrllRatio is the default share of the upstream's ranks a dependent
// task is co-located on when it makes no process request.
const PrllRatio = 0.50

// A Task is a schedulable producer: a root (rise) or a bridge. Karta
// assigns each task a Par before driving roots.
type Task interface {
	// Pull drives the task; on roots it produces data, on bridges it is
	// a no-op (bridges are driven by data and signal events).
	Pull()
	// PrePull propagates the begin-of-stream signal.
	PrePull()
	// BranchTasks returns every task reachable downstream.
	BranchTasks() []Task
	// Req returns the task's process request.
	Req() ProcReq
	// SetPar installs the task's placement for the coming run.
	SetPar(p *Par)
	// Bro returns the partner task that must share this task's rank
	// set (the two upstream bridges of a zip), or nil.
	Bro() Task
}

// CommUser is implemented by tasks that talk to the transport; Karta
// injects its Comm into them during assignment.
type CommUser interface {
	SetComm(c Comm)
}

type procLoad struct {
	cur   int
	total int
	rank  int
}

// Karta schedules tasks onto the process pool and orchestrates runs.
type Karta struct {
	comm    Comm
	log     *logging.Logger
	procs   []*procLoad
	curTag  int
	running int
}

// New creates a scheduler over the given transport.
func New(comm Comm, log *logging.Logger) *Karta {
	if log == nil {
		log = logging.New(comm.Rank())
	}
	k := &Karta{comm: comm, log: log, curTag: 1}
	k.Refresh()
	return k
}

// NProc returns the pool size.
func (k *Karta) NProc() int { return k.comm.Size() }

// Rank returns the local process rank.
func (k *Karta) Rank() int { return k.comm.Rank() }

// Comm returns the pool transport.
func (k *Karta) Comm() Comm { return k.comm }

// Logger returns the scheduler's logger.
func (k *Karta) Logger() *logging.Logger { return k.log }

// Refresh resets the load table, forgetting cumulative allocations.
func (k *Karta) Refresh() {
	k.procs = make([]*procLoad, k.comm.Size())
	for i := range k.procs {
		k.procs[i] = &procLoad{rank: i}
	}
}

// Run allocates processes for every task reachable from roots, then
// drives the roots to exhaustion. A run started while another run is in
// progress with an unspecified request degrades to a local run, so a
// pipeline executing inside another pipeline's stage does not trigger
// nested global allocation.
func (k *Karta) Run(roots []Task, req ProcReq) {
	roots = stableUnique(roots)
	if len(roots) == 0 {
		return
	}
	if req.Type() == ReqLocal || (k.running > 0 && req.Type() == ReqNone) {
		k.RunLocal(roots)
		return
	}
	k.running++
	defer func() { k.running-- }()

	// Tags are only live within a run; wrap before the transport limit.
	if k.curTag+3*(len(roots)+8) > k.comm.MaxTag() {
		k.curTag = 1
	}

	all := k.ranksByLoad()
	var curRun []int
	switch req.Type() {
	case ReqCount:
		curRun = k.giveCount(req.CountVal(), all)
	case ReqRatio:
		curRun = k.giveCount(int(float64(len(all))*req.RatioVal()), all)
	case ReqRanks:
		curRun = k.giveRanks(req.RanksVal(), all)
	default:
		curRun = all
	}

	// Group the downstream bridges per root, deduplicated across roots
	// and ordered by first appearance.
	bridges := make([][]Task, len(roots))
	seen := make(map[Task]bool)
	for i, r := range roots {
		for _, t := range r.BranchTasks() {
			if !seen[t] {
				bridges[i] = append(bridges[i], t)
				seen[t] = true
			}
		}
	}

	assigned := k.assign([][]Task{roots}, curRun, [][]int{nil})
	k.assign(bridges, curRun, assigned)

	for _, r := range roots {
		r.PrePull()
	}
	for _, r := range roots {
		r.Pull()
	}

	for _, p := range k.procs {
		p.total += p.cur
		p.cur = 0
	}
	k.sortProcs()
}

// RunLocal drives the roots on the calling process alone.
func (k *Karta) RunLocal(roots []Task) {
	roots = stableUnique(roots)
	par := LocalPar(k.comm.Rank())
	for _, r := range roots {
		k.place(r, par)
		for _, t := range r.BranchTasks() {
			k.place(t, par)
		}
	}
	for _, r := range roots {
		r.PrePull()
	}
	for _, r := range roots {
		r.Pull()
	}
}

func (k *Karta) place(t Task, par *Par) {
	t.SetPar(par)
	if cu, ok := t.(CommUser); ok {
		cu.SetComm(k.comm)
	}
}

// assign resolves a process set for every task. Task parallelism only
// pays off for heavy stages; by default a dependent task is placed on
// the ranks already carrying its data (the priority set), so trivial
// reductions avoid shipping rows to fresh processes.
func (k *Karta) assign(groups [][]Task, curRun []int, priority [][]int) [][]int {
	var assigned [][]int
	deferred := make(map[Task]bool)
	for i, group := range groups {
		var prio []int
		if i < len(priority) {
			prio = priority[i]
		}
		for _, t := range group {
			if bro := t.Bro(); bro != nil {
				if !deferred[bro] {
					// hold until the partner shows up, then place both
					deferred[t] = true
					continue
				}
				delete(deferred, bro)
			}
			pool := k.candidatePool(t, prio, curRun)
			var cur []int
			switch t.Req().Type() {
			case ReqCount:
				cur = k.giveCount(t.Req().CountVal(), pool)
			case ReqRatio:
				base := len(prio)
				if len(prio) == 0 || t.Req().Task() {
					base = len(pool)
				}
				want := float64(base) * t.Req().RatioVal()
				n := int(want)
				if float64(n) < want {
					n++
				}
				cur = k.giveCount(n, pool)
			case ReqRanks:
				cur = k.giveRanks(t.Req().RanksVal(), pool)
			default:
				if len(prio) == 0 {
					cur = pool
				} else if t.Req().Task() {
					cur = k.giveCount(len(prio), pool)
				} else {
					cur = k.giveCount(int(float64(len(prio))*PrllRatio), pool)
				}
			}
			k.log.Log0(logging.ModeInfo, "assigned process count: %d viz. %v", len(cur), cur)
			k.place(t, NewPar(cur, k.takeTags(), k.comm.Rank()))
			if bro := t.Bro(); bro != nil {
				k.place(bro, NewPar(cur, k.takeTags(), k.comm.Rank()))
				k.markAlloc(cur)
			}
			assigned = append(assigned, cur)
			k.markAlloc(cur)
		}
	}
	return assigned
}

// candidatePool orders candidate ranks: the priority set first (unless
// the task forces disjoint allocation), then the rest of the run's pool
// most-free first.
func (k *Karta) candidatePool(t Task, prio []int, curRun []int) []int {
	var pool []int
	if !t.Req().Task() {
		pool = append(pool, prio...)
	}
	for _, p := range k.procs {
		if containsInt(curRun, p.rank) && !containsInt(pool, p.rank) {
			pool = append(pool, p.rank)
		}
	}
	return pool
}

func (k *Karta) takeTags() [3]int {
	if k.curTag+3 > k.comm.MaxTag() {
		k.curTag = 1
	}
	t := [3]int{k.curTag, k.curTag + 1, k.curTag + 2}
	k.curTag += 3
	return t
}

func (k *Karta) giveCount(count int, pool []int) []int {
	if count < 0 {
		count = len(pool) - count
	}
	if count <= 0 {
		count = 1
	}
	var cur []int
	for _, r := range pool {
		if len(cur) >= count {
			break
		}
		if !containsInt(cur, r) {
			cur = append(cur, r)
		}
	}
	return cur
}

func (k *Karta) giveRanks(ranks []int, pool []int) []int {
	var cur []int
	for _, r := range ranks {
		if containsInt(pool, r) {
			cur = append(cur, r)
		}
	}
	if len(cur) == 0 {
		k.log.Log0(logging.ModeWarning,
			"Process allocation to some units is not possible with the requested "+
				"ranks. Please check the process ranks requested or leave it for "+
				"auto-allocation")
		return k.giveCount(1, pool)
	}
	return cur
}

// markAlloc bumps allocation counts and re-sorts so the next task sees
// the least-occupied ranks first.
func (k *Karta) markAlloc(ranks []int) {
	updated := false
	for _, r := range ranks {
		for _, p := range k.procs {
			if p.rank == r {
				p.cur++
				updated = true
				break
			}
		}
	}
	if updated {
		k.sortProcs()
	}
}

func (k *Karta) sortProcs() {
	sort.SliceStable(k.procs, func(i, j int) bool {
		a, b := k.procs[i], k.procs[j]
		if a.cur != b.cur {
			return a.cur < b.cur
		}
		if a.total != b.total {
			return a.total < b.total
		}
		return a.rank < b.rank
	})
}

func (k *Karta) ranksByLoad() []int {
	out := make([]int, len(k.procs))
	for i, p := range k.procs {
		out[i] = p.rank
	}
	return out
}

// Allocations returns the per-rank (current, cumulative) allocation
// counts, indexed by rank.
func (k *Karta) Allocations() map[int][2]int {
	out := make(map[int][2]int, len(k.procs))
	for _, p := range k.procs {
		out[p.rank] = [2]int{p.cur, p.total}
	}
	return out
}

func stableUnique(tasks []Task) []Task {
	seen := make(map[Task]bool, len(tasks))
	var out []Task
	for _, t := range tasks {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func containsInt(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
