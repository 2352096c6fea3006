package units

import (
	ezflow "github.com/go-ezflow/ezflow"
	"github.com/go-ezflow/ezflow/internal/graph"
	"github.com/go-ezflow/ezflow/karta"
	"github.com/go-ezflow/ezflow/logging"
)

// Rise is a root unit producing rows from a user source. Before data
// flows, a rank-aware source is told the assigned position and rank
// list so it can partition its input internally; every row a rise
// instance emits belongs to its assigned process set.
type Rise struct {
	graph.RootBase
	src ezflow.RiseSource
}

// NewRise creates a rise with the given source and process request.
func NewRise(src ezflow.RiseSource, req karta.ProcReq) *Rise {
	r := &Rise{src: src}
	r.InitRoot(r, r, req)
	r.PullData = r.pullData
	return r
}

func (r *Rise) pullData() {
	if ra, ok := r.src.(ezflow.RankAware); ok {
		ra.Init(r.Par().Pos(), r.Par().Ranks())
	}
	for {
		rows, err := r.src.Next()
		if err != nil {
			logging.Default().Log(logging.ModeWarning, "rise source failed: %v", err)
			return
		}
		if len(rows) == 0 {
			return
		}
		for _, n := range r.Next() {
			n.DataBatch(rows)
		}
	}
}
