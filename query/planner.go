package query

import (
	"math"
	"strconv"

	ezflow "github.com/go-ezflow/ezflow"
	"github.com/go-ezflow/ezflow/dataflow"
	"github.com/go-ezflow/ezflow/datasource/file"
	"github.com/go-ezflow/ezflow/errors"
	"github.com/go-ezflow/ezflow/karta"
)

// headerFor reads the first line of a query's input file; a missing or
// unreadable file yields no header and is reported later by the loader.
func headerFor(path string) ([]string, error) {
	return file.ReadHeader(path)
}

// hasHeader reports whether the first line is a header: some referenced
// numeric column fails to parse as a number.
func hasHeader(fields []string, numCols []int) bool {
	for _, c := range numCols {
		if c >= 1 && c <= len(fields) {
			if _, err := strconv.ParseFloat(fields[c-1], 64); err != nil {
				return true
			}
		}
	}
	return false
}

// aggCells returns the accumulator cell count of one aggregate.
func aggCells(fn string) int {
	if fn == "avg" {
		return 2
	}
	return 1
}

func aggSeed(aggs []Agg) []float64 {
	total := 0
	for _, a := range aggs {
		total += aggCells(a.Fn)
	}
	seed := make([]float64, total)
	off := 0
	for _, a := range aggs {
		switch a.Fn {
		case "min":
			seed[off] = math.Inf(1)
		case "max":
			seed[off] = math.Inf(-1)
		}
		off += aggCells(a.Fn)
	}
	return seed
}

// partialReducer folds raw rows into per-key accumulator cells.
func partialReducer(aggs []Agg, fns []func([]float64) float64) ezflow.Reducer {
	seed := aggSeed(aggs)
	return ezflow.ReduceInPlace(ezflow.R(seed), func(acc, key, val ezflow.Row) error {
		a := acc[0].([]float64)
		v := val[0].([]float64)
		off := 0
		for i, ag := range aggs {
			x := fns[i](v)
			switch ag.Fn {
			case "sum":
				a[off] += x
			case "count":
				a[off]++
			case "min":
				if x < a[off] {
					a[off] = x
				}
			case "max":
				if x > a[off] {
					a[off] = x
				}
			case "avg":
				a[off] += x
				a[off+1]++
			}
			off += aggCells(ag.Fn)
		}
		return nil
	})
}

// combineReducer merges partial accumulator cells across workers.
func combineReducer(aggs []Agg) ezflow.Reducer {
	seed := aggSeed(aggs)
	return ezflow.ReduceInPlace(ezflow.R(seed), func(acc, key, val ezflow.Row) error {
		a := acc[0].([]float64)
		v := val[0].([]float64)
		off := 0
		for _, ag := range aggs {
			switch ag.Fn {
			case "min":
				if v[off] < a[off] {
					a[off] = v[off]
				}
			case "max":
				if v[off] > a[off] {
					a[off] = v[off]
				}
			case "avg":
				a[off] += v[off]
				a[off+1] += v[off+1]
			default: // sum, count
				a[off] += v[off]
			}
			off += aggCells(ag.Fn)
		}
		return nil
	})
}

// finalizeAggs collapses accumulator cells to one value per aggregate.
func finalizeAggs(aggs []Agg) ezflow.MapFunc {
	return func(in ezflow.Row) (ezflow.Row, error) {
		a := in[0].([]float64)
		out := make([]float64, len(aggs))
		off := 0
		for i, ag := range aggs {
			if ag.Fn == "avg" {
				if a[off+1] != 0 {
					out[i] = a[off] / a[off+1]
				}
			} else {
				out[i] = a[off]
			}
			off += aggCells(ag.Fn)
		}
		return ezflow.R(out), nil
	}
}

// buildFlow lowers a resolved query onto the dataflow builder. Rows
// flow as two slots: the string key vector and the numeric vector.
func buildFlow(q *Query, sess *Session, keys []int) (*dataflow.Builder, *resolver, ColIndices, error) {
	header, _ := headerFor(q.File)
	cols, err := resolveSeeded(q, header, keys)
	if err != nil {
		return nil, nil, ColIndices{}, err
	}
	loader := file.New(q.File, cols.Str, cols.Num).
		WithHeader(len(cols.Hdr) > 0 || hasHeader(header, cols.Num)).
		Strict(sess.Strict)

	rs := &resolver{numPos: make(map[int]int), varPos: make(map[string]int), hdr: cols.Hdr}
	for i, c := range cols.Num {
		rs.numPos[c] = i
	}
	numLen := len(cols.Num)

	b := dataflow.Rise(loader, 2)
	for _, u := range q.Units {
		switch t := u.(type) {
		case MapUnit:
			fn, err := compileMath(t.Expr, rs)
			if err != nil {
				return nil, nil, ColIndices{}, err
			}
			b = b.MapOf(ezflow.Cols(2), func(in ezflow.Row) (ezflow.Row, error) {
				v := in[0].([]float64)
				nv := make([]float64, len(v), len(v)+1)
				copy(nv, v)
				return ezflow.R(append(nv, fn(v))), nil
			}).ColsTransform()
			rs.varPos[t.Name] = numLen
			numLen++
		case WhereUnit:
			if t.LoadPath != "" {
				if !sess.AllowLoadCmd {
					return nil, nil, ColIndices{}, errors.LoadCmdError{Path: t.LoadPath}
				}
				return nil, nil, ColIndices{}, errors.SemanticError{
					Msg: "load-cmd predicate " + t.LoadSym + " could not be loaded from " + t.LoadPath}
			}
			pred, err := compilePred(t.Pred, rs)
			if err != nil {
				return nil, nil, ColIndices{}, err
			}
			b = b.FilterOf(ezflow.Cols(2), func(in ezflow.Row) (bool, error) {
				return pred(in[0].([]float64)), nil
			})
		case ReduceUnit:
			fns := make([]func([]float64) float64, len(t.Aggs))
			for i, a := range t.Aggs {
				fn, err := compileMath(a.Col, rs)
				if err != nil {
					return nil, nil, ColIndices{}, err
				}
				fns[i] = fn
			}
			// in-process partial aggregation, then task-parallel global
			// aggregation keyed by the same columns
			b = b.Reduce(ezflow.Cols(1), ezflow.Cols(2), partialReducer(t.Aggs, fns)).Inprocess()
			b = b.Reduce(ezflow.Cols(1), ezflow.Cols(2), combineReducer(t.Aggs)).
				Prll(karta.Ranks(0), ezflow.ModeTask|ezflow.ModeShard)
			b = b.MapOf(ezflow.Cols(2), finalizeAggs(t.Aggs)).ColsTransform()
			rs.numPos = make(map[int]int)
			rs.varPos = make(map[string]int)
			rs.hdr = nil
			for i, a := range t.Aggs {
				rs.varPos[a.Name] = i
			}
			numLen = len(t.Aggs)
		case ZipUnit:
			innerB, _, _, err := buildFlow(t.Inner, sess, t.Keys)
			if err != nil {
				return nil, nil, ColIndices{}, err
			}
			innerFl, err := innerB.Build()
			if err != nil {
				return nil, nil, ColIndices{}, err
			}
			b = b.Zip(innerFl, ezflow.Cols(1), ezflow.Cols(1))
			// concatenate the two numeric vectors behind the shared key
			b = b.MapOf(ezflow.Cols(2, 4), func(in ezflow.Row) (ezflow.Row, error) {
				a := in[0].([]float64)
				c := in[1].([]float64)
				out := make([]float64, 0, len(a)+len(c))
				out = append(out, a...)
				out = append(out, c...)
				return ezflow.R(out), nil
			}).Yields(1).Cols(ezflow.Cols(1, 5))
		}
	}
	return b, rs, cols, nil
}
