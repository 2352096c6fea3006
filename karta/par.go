package karta

// Par carries the parallel placement of a task: the ranks it runs on,
// the three channel tags reserved for it, and the position of the
// calling process within the rank list. Karta builds a Par for every
// task when a run is scheduled.
type Par struct {
	rank    int
	ranks   []int
	tags    [3]int
	pos     int
	inRange bool
	local   bool
}

// NewPar places a task on ranks with the given tag triple, seen from the
// calling process rank.
func NewPar(ranks []int, tags [3]int, rank int) *Par {
	p := &Par{rank: rank, ranks: ranks, tags: tags, pos: -1}
	for i, r := range ranks {
		if r == rank {
			p.pos = i
			p.inRange = true
			break
		}
	}
	return p
}

// LocalPar places a task on the calling process only.
func LocalPar(rank int) *Par {
	return &Par{rank: rank, ranks: []int{rank}, pos: 0, inRange: true, local: true}
}

// InRange reports whether the calling process is one of the task's ranks.
func (p *Par) InRange() bool { return p.inRange }

// NProc returns the number of ranks the task runs on.
func (p *Par) NProc() int { return len(p.ranks) }

// Ranks returns the task's rank list.
func (p *Par) Ranks() []int { return p.ranks }

// RankAt returns the i-th rank of the task.
func (p *Par) RankAt(i int) int { return p.ranks[i] }

// Tag returns the i-th channel tag (0 signal, 1 single row, 2 batch).
func (p *Par) Tag(i int) int { return p.tags[i] }

// Rank returns the calling process rank.
func (p *Par) Rank() int { return p.rank }

// Pos returns the index of the calling process within the rank list, or
// -1 when out of range.
func (p *Par) Pos() int { return p.pos }

// Local reports whether the Par describes an in-place local run.
func (p *Par) Local() bool { return p.local }

// Add appends a rank to the task's list if not already present. Bridges
// union their upstream placements through this.
func (p *Par) Add(rank int) {
	for _, r := range p.ranks {
		if r == rank {
			return
		}
	}
	p.ranks = append(p.ranks, rank)
	if !p.inRange && rank == p.rank {
		p.pos = len(p.ranks) - 1
		p.inRange = true
	}
}

// Contains reports whether rank is in the task's list.
func (p *Par) Contains(rank int) bool {
	for _, r := range p.ranks {
		if r == rank {
			return true
		}
	}
	return false
}
