package units

import (
	ezflow "github.com/go-ezflow/ezflow"
	"github.com/go-ezflow/ezflow/internal/graph"
)

// NoOp passes rows through unchanged; a splice point when composing
// flows.
type NoOp struct {
	graph.LinkBase
}

// NewNoOp creates a NoOp unit.
func NewNoOp() *NoOp {
	n := &NoOp{}
	n.InitLink(n)
	return n
}

// Data forwards a row.
func (n *NoOp) Data(r ezflow.Row) {
	for _, d := range n.Next() {
		d.Data(r)
	}
}

// DataBatch forwards a batch without iterating it.
func (n *NoOp) DataBatch(rs []ezflow.Row) {
	for _, d := range n.Next() {
		d.DataBatch(rs)
	}
}
