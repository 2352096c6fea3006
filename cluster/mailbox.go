// Package cluster provides the process pools the engine runs on: an
// in-memory pool that executes every rank as a goroutine inside one
// process (tests, local mode), and a gRPC peer mesh connecting real
// worker processes. Both expose the karta.Comm tagged point-to-point
// contract with FIFO delivery per (peer, tag) pair.
package cluster

import (
	"runtime"
	"sync"
)

type mkey struct {
	from int
	tag  int
}

// mailbox buffers incoming payloads per (sender, tag) channel until a
// posted receive consumes them.
type mailbox struct {
	mu     sync.Mutex
	queues map[mkey][][]byte
}

func newMailbox() *mailbox {
	return &mailbox{queues: make(map[mkey][][]byte)}
}

func (m *mailbox) push(from, tag int, payload []byte) {
	m.mu.Lock()
	k := mkey{from, tag}
	m.queues[k] = append(m.queues[k], payload)
	m.mu.Unlock()
}

func (m *mailbox) pop(from, tag int) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := mkey{from, tag}
	q := m.queues[k]
	if len(q) == 0 {
		return nil, false
	}
	m.queues[k] = q[1:]
	return q[0], true
}

// recvReq is a posted receive over a mailbox channel. A handle delivers
// at most one message.
type recvReq struct {
	mb   *mailbox
	from int
	tag  int
	done bool
}

// Test pops a matching message if one has arrived.
func (r *recvReq) Test() ([]byte, bool) {
	if r.done {
		return nil, false
	}
	if p, ok := r.mb.pop(r.from, r.tag); ok {
		r.done = true
		return p, true
	}
	// polled from the engine's spin loops; give peers a chance to run
	runtime.Gosched()
	return nil, false
}

// Cancel retires the handle.
func (r *recvReq) Cancel() { r.done = true }
