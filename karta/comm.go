package karta

// Comm is the tagged point-to-point transport a process pool exposes to
// the engine. Semantics mirror asynchronous message passing: sends and
// receives return handles that are polled with Test. For a fixed
// (peer, tag) pair delivery is FIFO; the shuffle bridge layers its
// at-most-one-in-flight discipline on top.
//
// Implementations live in the cluster package: an in-memory pool for
// single-process runs and tests, and a gRPC peer mesh for multi-process
// runs.
type Comm interface {
	// Rank returns the rank of the calling process in [0, Size).
	Rank() int
	// Size returns the total process count of the pool.
	Size() int
	// Isend starts an asynchronous send of payload to rank `to` on the
	// given tag and returns a completion handle.
	Isend(to int, tag int, payload []byte) SendHandle
	// Irecv posts an asynchronous receive for a message from rank
	// `from` on the given tag.
	Irecv(from int, tag int) RecvHandle
	// MaxTag returns the largest usable tag; Karta wraps its counter
	// modulo this at run boundaries.
	MaxTag() int
}

// SendHandle tracks an in-flight send.
type SendHandle interface {
	// Test reports whether the send has completed, without blocking.
	Test() bool
	// Wait blocks until the send has completed.
	Wait()
}

// RecvHandle tracks a posted receive.
type RecvHandle interface {
	// Test returns the received payload if a matching message has
	// arrived. A handle delivers at most one message; repost to keep
	// receiving.
	Test() ([]byte, bool)
	// Cancel retires the handle without receiving.
	Cancel()
}
