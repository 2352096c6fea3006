package units

import (
	ezflow "github.com/go-ezflow/ezflow"
	"github.com/go-ezflow/ezflow/internal/graph"
	"github.com/go-ezflow/ezflow/logging"
)

// Filter drops rows whose predicate over the function selection is
// false; surviving rows pass through the output selection, identity by
// default.
type Filter struct {
	graph.LinkBase

	fn    ezflow.FilterFunc
	fslct ezflow.Selection
	oslct ezflow.Selection
}

// NewFilter creates a filter unit.
func NewFilter(fn ezflow.FilterFunc, fslct, oslct ezflow.Selection) *Filter {
	f := &Filter{fn: fn, fslct: fslct, oslct: oslct}
	f.InitLink(f)
	return f
}

// Data applies the predicate to one row.
func (f *Filter) Data(r ezflow.Row) {
	ok, err := f.fn(f.fslct.Project(r))
	if err != nil {
		logging.Default().Log(logging.ModeWarning, "filter predicate failed, dropping row: %v", err)
		return
	}
	if !ok || len(f.Next()) == 0 {
		return
	}
	out := f.oslct.Project(r)
	for _, d := range f.Next() {
		d.Data(out)
	}
}
