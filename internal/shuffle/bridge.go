// Package shuffle implements the inter-process bridge: the pipeline
// unit that converts a stream in the upstream process set into a stream
// in the downstream process set with a routing function.
//
// Rows are buffered per receiver and sent asynchronously with at most
// one in-flight send per peer; while a send is stuck the bridge keeps
// receiving. All polling is throttled by multiplicative-increase /
// divisive-decrease counters so peers partially synchronize without a
// clock. A small eager-message quota lets the first rows of a run skip
// buffering to cut first-batch latency.
package shuffle

import (
	"sort"

	humanize "github.com/dustin/go-humanize"
	ezflow "github.com/go-ezflow/ezflow"
	"github.com/go-ezflow/ezflow/internal/codec"
	"github.com/go-ezflow/ezflow/internal/graph"
	"github.com/go-ezflow/ezflow/karta"
	"github.com/go-ezflow/ezflow/logging"
)

const (
	maxCounter   = 1 << 16 // back-off cap for send and receive counters
	decSend      = 4       // divide send counter by on success
	incSend      = 2       // multiply send counter by on failure
	decRecv      = 4       // divide recv counter by on success
	maxItersRecv = 1 << 10 // drain bound so one peer cannot starve others
	maxEagerMsg  = 1 << 8  // eager messages sent before buffering starts
	maxSendBuf   = 1 << 30 // outbound rows ceiling; crossing it blocks
	minSendBuf   = 1 << 10 // rows below which a peer past its eager quota holds its sends
)

// outPeer tracks one downstream receiver: the outbound buffer, the
// in-flight send and its held rows, the back-off counter and the
// eager-message quota.
type outPeer struct {
	buffer  []ezflow.Row
	sent    []ezflow.Row
	req     karta.SendHandle
	sigged  bool
	counter uint64
	tick    uint64
	nEager  int
	isFirst bool
	preKey  string
	curKey  string
}

// inPeer tracks one upstream sender: the three posted receives (single
// row, batch, signal) and the poll counter.
type inPeer struct {
	reqs    []karta.RecvHandle
	counter uint64
	tick    uint64
	done    bool
}

// Bridge is a Source+Dest+Task at a parallelism boundary. Process sets
// may differ on either side; the bridge routes rows from the upstream
// set's processes to the downstream set's per its mode:
//
//	dupe              every downstream process
//	shard, empty K    round-robin
//	shard, keyed      ranks[hash(key) mod n]
//	local             pass-through
type Bridge struct {
	graph.SourceBase
	graph.DestBase

	req         karta.ProcReq
	bro         karta.Task
	toAll       bool
	ordered     bool
	kslct       ezflow.Selection
	partitioner ezflow.Partitioner

	comm      karta.Comm
	log       *logging.Logger
	par       *karta.Par
	parHandle *karta.Par
	parred    int
	began     bool

	sig            int
	curRoll        int
	recvrs         map[int]*outPeer
	sendrs         map[int]*inPeer
	minRecvCounter uint64
	minRecvIndex   int

	visited         bool
	traversingRoots bool
	traversingTasks bool
}

// NewBridge creates a shuffle bridge. An empty key selection with
// toAll unset round-robins; a non-nil partitioner overrides the
// default key hash.
func NewBridge(req karta.ProcReq, toAll, ordered bool, kslct ezflow.Selection, part ezflow.Partitioner) *Bridge {
	b := &Bridge{
		req: req, toAll: toAll, ordered: ordered, kslct: kslct,
		partitioner:    part,
		log:            logging.Default(),
		recvrs:         make(map[int]*outPeer),
		sendrs:         make(map[int]*inPeer),
		minRecvCounter: 1,
	}
	if b.partitioner == nil {
		b.partitioner = ezflow.HashRow
	}
	id := graph.NextID()
	b.InitSource(id, b)
	b.InitDest(id, b)
	b.par = karta.LocalPar(0)
	return b
}

// ID returns the node identity.
func (b *Bridge) ID() int64 { return b.SourceBase.ID() }

// SetBro pairs this bridge with its partner; Karta places both on the
// same rank set.
func (b *Bridge) SetBro(t karta.Task) { b.bro = t }

// Bro returns the paired task, if any.
func (b *Bridge) Bro() karta.Task { return b.bro }

// Req returns the bridge's process request.
func (b *Bridge) Req() karta.ProcReq { return b.req }

// SetPar installs the downstream placement.
func (b *Bridge) SetPar(p *karta.Par) { b.par = p }

// Par returns the downstream placement.
func (b *Bridge) Par() *karta.Par { return b.par }

// SetComm injects the pool transport.
func (b *Bridge) SetComm(c karta.Comm) {
	b.comm = c
	b.log = logging.New(c.Rank())
}

// Pull is a no-op; bridges are driven by data and signal events.
func (b *Bridge) Pull() {}

// PrePull is a no-op for bridges.
func (b *Bridge) PrePull() {}

// BranchTasks returns the bridge and every task downstream of it.
func (b *Bridge) BranchTasks() []karta.Task { return b.ForwardTasks() }

// Roots walks upstream.
func (b *Bridge) Roots() []karta.Task {
	if b.traversingRoots {
		return nil
	}
	b.traversingRoots = true
	var roots []karta.Task
	for _, p := range b.Prev() {
		roots = append(roots, p.Roots()...)
	}
	b.traversingRoots = false
	return roots
}

// ForwardTasks returns the bridge itself followed by downstream tasks.
func (b *Bridge) ForwardTasks() []karta.Task {
	if b.traversingTasks {
		return nil
	}
	b.traversingTasks = true
	tasks := []karta.Task{b}
	for _, n := range b.Next() {
		tasks = append(tasks, n.ForwardTasks()...)
	}
	b.traversingTasks = false
	return tasks
}

// ForwardPar captures the upstream placement and pushes the bridge's
// own placement downstream. With several upstream tasks the upstream
// rank sets union into one handle.
func (b *Bridge) ForwardPar(p *karta.Par) {
	if b.visited {
		return
	}
	b.visited = true
	b.parred++
	if b.parred == 1 {
		cp := karta.NewPar(append([]int(nil), p.Ranks()...), [3]int{}, p.Rank())
		b.parHandle = cp
	} else {
		for _, r := range p.Ranks() {
			b.parHandle.Add(r)
		}
	}
	if b.parred >= b.Sig() && !b.began {
		b.began = true
		b.dataBegin()
	}
	for _, n := range b.Next() {
		n.ForwardPar(b.par)
	}
	b.visited = false
}

// Signal counts begin/end-of-stream; when the last local closer ends,
// the bridge drains, signals every downstream peer and retires state.
func (b *Bridge) Signal(k int) {
	if b.visited {
		return
	}
	b.visited = true
	if k == 0 {
		b.IncSig()
	} else if b.DecSig() == 0 {
		b.dataEnd(k)
		b.parred = 0
		b.began = false
	}
	for _, n := range b.Next() {
		n.Signal(k)
	}
	b.visited = false
}

// Data routes one row toward its target process.
func (b *Bridge) Data(r ezflow.Row) {
	if b.parHandle == nil || !b.parHandle.InRange() {
		return
	}
	if b.toAll {
		for _, target := range b.par.Ranks() {
			p := b.peerOut(target)
			p.buffer = append(p.buffer, r)
			b.sendSafe(target)
		}
		b.recvAll(true)
		return
	}
	target := b.route(r)
	if target < 0 {
		for _, n := range b.Next() {
			n.Data(r)
		}
		return
	}
	p := b.peerOut(target)
	p.buffer = append(p.buffer, r)
	if b.ordered && !b.orderedPass(target) {
		return
	}
	b.sendSafe(target)
}

// DataBatch routes a batch, coalescing sends per dirty target.
func (b *Bridge) DataBatch(rs []ezflow.Row) {
	if len(rs) == 0 || b.parHandle == nil || !b.parHandle.InRange() {
		return
	}
	if b.toAll {
		for _, target := range b.par.Ranks() {
			p := b.peerOut(target)
			p.buffer = append(p.buffer, rs...)
			b.sendSafe(target)
		}
		b.recvAll(true)
		return
	}
	dirty := make(map[int]bool)
	for _, r := range rs {
		target := b.route(r)
		if target < 0 {
			for _, n := range b.Next() {
				n.Data(r)
			}
			continue
		}
		p := b.peerOut(target)
		p.buffer = append(p.buffer, r)
		if b.ordered {
			if b.orderedPass(target) {
				b.sendSafe(target)
			}
		} else {
			dirty[target] = true
		}
	}
	if b.ordered {
		return
	}
	for _, target := range sortedKeys(dirty) {
		b.sendSafe(target)
	}
}

// route picks the target rank for a row; -1 means deliver locally.
func (b *Bridge) route(r ezflow.Row) int {
	if b.par.NProc() == 1 {
		if b.parHandle.NProc() == 1 && b.par.InRange() {
			return -1
		}
		return b.par.RankAt(0)
	}
	if len(b.kslct) == 0 {
		t := b.par.RankAt(b.curRoll)
		b.curRoll = (b.curRoll + 1) % b.par.NProc()
		return t
	}
	key := b.kslct.Project(r)
	t := b.par.RankAt(int(b.partitioner(key) % uint64(b.par.NProc())))
	if b.ordered {
		b.peerOut(t).curKey = string(keyEncode(key))
	}
	return t
}

func (b *Bridge) peerOut(target int) *outPeer {
	p, ok := b.recvrs[target]
	if !ok {
		p = &outPeer{counter: 1, isFirst: true}
		b.recvrs[target] = p
	}
	return p
}

// orderedPass holds rows of the current key in the buffer until the
// next differing key is seen, so every key's rows leave in one
// contiguous run from a single sender.
func (b *Bridge) orderedPass(target int) bool {
	if b.parHandle.NProc() == 1 {
		return true
	}
	p := b.peerOut(target)
	if p.isFirst {
		p.isFirst = false
		p.preKey = p.curKey
		return false
	}
	if p.preKey == p.curKey {
		return false
	}
	p.preKey = p.curKey
	return true
}

func (b *Bridge) dataBegin() {
	if b.parHandle.InRange() {
		for _, r := range b.par.Ranks() {
			b.peerOut(r)
		}
	}
	if !b.par.InRange() {
		return
	}
	for _, from := range b.parHandle.Ranks() {
		if from == b.comm.Rank() {
			continue
		}
		if _, ok := b.sendrs[from]; !ok {
			b.sendrs[from] = &inPeer{
				counter: 1,
				reqs: []karta.RecvHandle{
					b.comm.Irecv(from, b.par.Tag(1)),
					b.comm.Irecv(from, b.par.Tag(2)),
					b.comm.Irecv(from, b.par.Tag(0)),
				},
			}
		}
	}
}

func (b *Bridge) dataEnd(k int) {
	b.sig = k
	if b.par.InRange() || b.parHandle != nil && b.parHandle.InRange() {
		// rows targeted at this very process may still sit in their
		// buffer when ordered mode held them back
		if p, ok := b.recvrs[b.comm.Rank()]; ok && len(p.buffer) > 0 {
			for _, n := range b.Next() {
				n.DataBatch(p.buffer)
			}
			p.buffer = nil
		}
		toSend := true
		for toSend || len(b.sendrs) > 0 {
			if toSend {
				toSend = b.sendAll()
			}
			if len(b.sendrs) > 0 {
				b.recvAll(true)
			}
		}
	}
	b.curRoll = 0
	b.recvrs = make(map[int]*outPeer)
	b.sendrs = make(map[int]*inPeer)
	b.minRecvCounter = 1
	b.minRecvIndex = 0
}

// sendSafe attempts to push target's buffer out, keeping receives
// flowing; when the buffer crosses the hard cap the bridge stops
// accepting and waits on the transport.
func (b *Bridge) sendSafe(target int) {
	p := b.peerOut(target)
	if !b.send(target, !(b.ordered && len(p.buffer) > minSendBuf)) {
		b.recvAll(true)
		return
	}
	if len(p.buffer) < maxSendBuf {
		b.recvAll(true)
		return
	}
	b.log.Log(logging.ModeWarning,
		"Receive process(es) are overflowing with data (%s rows buffered). For "+
			"better performance allocate more processes for the receiving end "+
			"compared to the sending end. Note that reduce operations receive "+
			"data by default.", humanize.Comma(int64(len(p.buffer))))
	if len(b.sendrs) == 0 {
		if p.req != nil {
			p.req.Wait()
		}
		p.sent = p.buffer
		p.buffer = nil
		p.req = b.comm.Isend(target, b.par.Tag(2), codec.EncodeBatch(p.sent))
		return
	}
	checkCount := true
	for b.send(target, checkCount) {
		checkCount = b.recvAll(true)
	}
}

// send pushes target's buffer if the prior send has completed. It
// returns false when there is nothing left to do until new rows arrive.
func (b *Bridge) send(target int, counterCheck bool) bool {
	p := b.peerOut(target)
	n := len(p.buffer)
	if n == 0 && len(p.sent) == 0 {
		return false
	}
	if target == b.comm.Rank() {
		if len(b.Next()) > 0 {
			if n == 1 {
				for _, nx := range b.Next() {
					nx.Data(p.buffer[0])
				}
			} else {
				for _, nx := range b.Next() {
					nx.DataBatch(p.buffer)
				}
			}
		}
		p.buffer = nil
		return false
	}
	if counterCheck && p.nEager == maxEagerMsg && n < minSendBuf {
		return false
	}
	if counterCheck {
		p.tick++
		if p.tick < p.counter {
			return true
		}
		p.tick = 0
	}
	if p.req == nil || p.req.Test() {
		if n == 0 {
			p.sent = nil
			p.counter = 1
			return false
		}
		p.sent = p.buffer
		p.buffer = nil
		if n == 1 {
			p.req = b.comm.Isend(target, b.par.Tag(1), codec.EncodeRow(p.sent[0]))
		} else {
			p.req = b.comm.Isend(target, b.par.Tag(2), codec.EncodeBatch(p.sent))
		}
		if counterCheck {
			p.counter /= decSend
			if p.counter == 0 {
				p.counter = 1
			}
		}
		if p.nEager < maxEagerMsg {
			p.nEager++
		} else {
			p.nEager = 0
		}
		return true
	}
	if counterCheck {
		p.counter *= incSend
		if p.counter > maxCounter {
			p.counter = maxCounter
		}
	}
	return true
}

// sendAll flushes every peer and follows empty buffers with the
// end-of-stream signal; returns false once nothing remains in flight.
func (b *Bridge) sendAll() bool {
	if b.parHandle == nil || !b.parHandle.InRange() {
		return false
	}
	res := false
	for _, target := range sortedPeerKeys(b.recvrs) {
		if target == b.comm.Rank() {
			continue
		}
		p := b.recvrs[target]
		if b.send(target, false) {
			res = true
		} else if !p.sigged {
			p.req = b.comm.Isend(target, b.par.Tag(0), codec.EncodeSignal(b.sig))
			p.sigged = true
			res = true
		}
	}
	return res
}

// recv drains completed receives from one upstream peer, bounded so a
// chatty peer cannot starve the rest. maxIters <= 0 removes the bound.
func (b *Bridge) recv(from int, p *inPeer, maxIters int) bool {
	idx := -1
	var payload []byte
	for i, h := range p.reqs {
		if pl, ok := h.Test(); ok {
			idx = i
			payload = pl
			break
		}
	}
	if idx < 0 {
		return false
	}
	iters := 0
	switch idx {
	case 0:
		for {
			row, err := codec.DecodeRow(payload)
			p.reqs[0] = b.comm.Irecv(from, b.par.Tag(1))
			if err != nil {
				b.log.Log(logging.ModeError, "dropping undecodable row from %d: %v", from, err)
			} else {
				for _, n := range b.Next() {
					n.Data(row)
				}
			}
			iters++
			if maxIters > 0 && iters >= maxIters {
				break
			}
			pl, ok := p.reqs[0].Test()
			if !ok {
				break
			}
			payload = pl
		}
	case 1:
		for {
			rows, err := codec.DecodeBatch(payload)
			p.reqs[1] = b.comm.Irecv(from, b.par.Tag(2))
			if err != nil {
				b.log.Log(logging.ModeError, "dropping undecodable batch from %d: %v", from, err)
			} else {
				for _, n := range b.Next() {
					n.DataBatch(rows)
				}
			}
			iters++
			if maxIters > 0 && iters >= maxIters {
				break
			}
			pl, ok := p.reqs[1].Test()
			if !ok {
				break
			}
			payload = pl
		}
	default:
		// peer is done; drain any eager messages still in flight, then
		// retire its handles
		p.reqs = p.reqs[:2]
		for b.recv(from, p, 0) {
		}
		p.reqs[0].Cancel()
		p.reqs[1].Cancel()
		p.done = true
	}
	return true
}

// recvAll polls every upstream peer, throttled by normalized counters
// so a starved peer's relative priority rises.
func (b *Bridge) recvAll(counterCheck bool) bool {
	if len(b.sendrs) == 0 {
		return true
	}
	res := false
	for _, from := range sortedInKeys(b.sendrs) {
		p, ok := b.sendrs[from]
		if !ok {
			continue
		}
		if counterCheck {
			p.tick++
			if p.tick < p.counter/b.minRecvCounter {
				continue
			}
			p.tick = 0
		}
		ret := b.recv(from, p, maxItersRecv)
		if !ret && counterCheck {
			p.counter = p.counter * 3 / 2
			if p.counter > maxCounter {
				p.counter = maxCounter
			}
			if b.minRecvIndex == from {
				for other, op := range b.sendrs {
					if op.counter < b.minRecvCounter {
						b.minRecvCounter = op.counter
						b.minRecvIndex = other
					}
				}
			}
		} else if counterCheck {
			p.counter /= decRecv
			if p.counter == 0 {
				p.counter = 1
			}
			if p.counter < b.minRecvCounter {
				b.minRecvCounter = p.counter
				b.minRecvIndex = from
			}
		}
		if ret && p.done {
			delete(b.sendrs, from)
		}
		if ret {
			res = true
		}
	}
	return res
}

func keyEncode(key ezflow.Row) []byte {
	buf := make([]byte, 0, 32)
	for _, v := range key {
		buf = ezflow.AppendValueBytes(buf, v)
	}
	return buf
}

func sortedKeys(m map[int]bool) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

func sortedPeerKeys(m map[int]*outPeer) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

func sortedInKeys(m map[int]*inPeer) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
