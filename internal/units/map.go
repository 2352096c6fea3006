package units

import (
	ezflow "github.com/go-ezflow/ezflow"
	"github.com/go-ezflow/ezflow/internal/graph"
	"github.com/go-ezflow/ezflow/logging"
)

// Map transforms each row into zero, one or many new rows. The user
// function sees the projection through the function selection; each
// result row passes through the output selection applied to
// concat(input, result). Rows are never reordered in-process.
type Map struct {
	graph.LinkBase

	fn    ezflow.MapFunc
	flat  ezflow.FlatMapFunc
	fslct ezflow.Selection
	oslct ezflow.Selection
}

// NewMap creates a single-result map unit.
func NewMap(fn ezflow.MapFunc, fslct, oslct ezflow.Selection) *Map {
	m := &Map{fn: fn, fslct: fslct, oslct: oslct}
	m.InitLink(m)
	return m
}

// NewFlatMap creates a vector-result map unit; each result row becomes
// one output row, so a stage may emit zero or many rows per input.
func NewFlatMap(fn ezflow.FlatMapFunc, fslct, oslct ezflow.Selection) *Map {
	m := &Map{flat: fn, fslct: fslct, oslct: oslct}
	m.InitLink(m)
	return m
}

// Data applies the user function to one row.
func (m *Map) Data(r ezflow.Row) {
	in := m.fslct.Project(r)
	if m.flat != nil {
		results, err := m.flat(in)
		if err != nil {
			logging.Default().Log(logging.ModeWarning, "map function failed, dropping row: %v", err)
			return
		}
		if len(results) == 0 || len(m.Next()) == 0 {
			return
		}
		out := make([]ezflow.Row, len(results))
		for i, res := range results {
			out[i] = m.oslct.Project(ezflow.Concat(r, res))
		}
		for _, d := range m.Next() {
			d.DataBatch(out)
		}
		return
	}
	res, err := m.fn(in)
	if err != nil {
		logging.Default().Log(logging.ModeWarning, "map function failed, dropping row: %v", err)
		return
	}
	if len(m.Next()) == 0 {
		return
	}
	out := m.oslct.Project(ezflow.Concat(r, res))
	for _, d := range m.Next() {
		d.Data(out)
	}
}
