package units

import (
	ezflow "github.com/go-ezflow/ezflow"
	"github.com/go-ezflow/ezflow/internal/graph"
	"github.com/go-ezflow/ezflow/karta"
)

// MemSink buffers every received row in memory; it backs Get-style
// terminators and the query planner's saveVal terminal. Rows are local
// to the process that produced them.
type MemSink struct {
	graph.DestBase
	rows []ezflow.Row
}

// NewMemSink creates an in-memory sink.
func NewMemSink() *MemSink {
	s := &MemSink{}
	s.InitDest(graph.NextID(), s)
	return s
}

// Data records one row.
func (s *MemSink) Data(r ezflow.Row) {
	s.rows = append(s.rows, r)
}

// Rows returns the rows received so far.
func (s *MemSink) Rows() []ezflow.Row { return s.rows }

// Reset forgets buffered rows between runs.
func (s *MemSink) Reset() { s.rows = nil }

// Signal tracks stream bookkeeping; the sink has no end-of-stream work.
func (s *MemSink) Signal(k int) {
	if k == 0 {
		s.IncSig()
	} else {
		s.DecSig()
	}
}

// ForwardPar is a no-op; the sink writes wherever it runs.
func (s *MemSink) ForwardPar(par *karta.Par) {}

// ForwardTasks returns nothing; a sink has no downstream tasks.
func (s *MemSink) ForwardTasks() []karta.Task { return nil }
