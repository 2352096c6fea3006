package cluster

import (
	"runtime"

	"github.com/go-ezflow/ezflow/karta"
	"github.com/go-ezflow/ezflow/logging"
	"golang.org/x/sync/errgroup"
)

// memMaxTag mirrors the smallest tag ceiling common transports
// guarantee, so tag-wrap behavior matches multi-process runs.
const memMaxTag = 32767

// Pool is an in-memory process pool: every rank runs as a goroutine in
// the calling process, exchanging payloads through mailboxes. It backs
// tests and single-process local runs.
type Pool struct {
	size  int
	boxes []*mailbox
}

// NewPool creates an in-memory pool of the given size.
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{size: size, boxes: make([]*mailbox, size)}
	for i := range p.boxes {
		p.boxes[i] = newMailbox()
	}
	return p
}

// Size returns the pool's rank count.
func (p *Pool) Size() int { return p.size }

// Comm returns the transport seen by one rank of the pool.
func (p *Pool) Comm(rank int) karta.Comm {
	return &memComm{pool: p, rank: rank}
}

// Run executes fn once per rank, each on its own goroutine with its own
// scheduler, emulating the SPMD execution model. It blocks until every
// rank returns and yields the first error.
func (p *Pool) Run(fn func(rank int, k *karta.Karta) error) error {
	var g errgroup.Group
	for rank := 0; rank < p.size; rank++ {
		rank := rank
		g.Go(func() error {
			k := karta.New(p.Comm(rank), logging.New(rank))
			return fn(rank, k)
		})
	}
	return g.Wait()
}

// Local returns a scheduler over a fresh single-rank pool, for purely
// in-process pipelines.
func Local() *karta.Karta {
	p := NewPool(1)
	return karta.New(p.Comm(0), logging.New(0))
}

type memComm struct {
	pool *Pool
	rank int
}

func (c *memComm) Rank() int   { return c.rank }
func (c *memComm) Size() int   { return c.pool.size }
func (c *memComm) MaxTag() int { return memMaxTag }

func (c *memComm) Isend(to int, tag int, payload []byte) karta.SendHandle {
	cp := make([]byte, len(payload))
	copy(cp, payload)
	c.pool.boxes[to].push(c.rank, tag, cp)
	return memSend{}
}

func (c *memComm) Irecv(from int, tag int) karta.RecvHandle {
	return &recvReq{mb: c.pool.boxes[c.rank], from: from, tag: tag}
}

// memSend completes immediately; in-memory delivery is synchronous.
type memSend struct{}

// Test reports completion.
func (memSend) Test() bool { return true }

// Wait returns immediately.
func (memSend) Wait() { runtime.Gosched() }
