package query

import (
	"fmt"

	"github.com/go-ezflow/ezflow/errors"
)

// resolver maps column references of an expression to positions in the
// numeric vector flowing through the planned pipeline.
type resolver struct {
	numPos map[int]int    // file numeric column index -> vector position
	varPos map[string]int // variable / aggregate name -> vector position
	hdr    map[string]int // header name -> file numeric column index
}

func (rs *resolver) posOf(e Expr) (int, error) {
	switch t := e.(type) {
	case NumCol:
		if p, ok := rs.numPos[t.Idx]; ok {
			return p, nil
		}
		return 0, errors.ColumnBoundsError{Index: t.Idx, Arity: len(rs.numPos)}
	case VarRef:
		if p, ok := rs.varPos[t.Name]; ok {
			return p, nil
		}
		if idx, ok := rs.hdr[t.Name]; ok {
			if p, ok := rs.numPos[idx]; ok {
				return p, nil
			}
		}
		return 0, errors.UndeclaredVariableError{Name: t.Name}
	}
	return 0, errors.SemanticError{Msg: fmt.Sprintf("not a column reference: %T", e)}
}

// compileMath lowers a math expression to a closure over the numeric
// vector.
func compileMath(e Expr, rs *resolver) (func(nums []float64) float64, error) {
	switch t := e.(type) {
	case Num:
		v := t.V
		return func([]float64) float64 { return v }, nil
	case NumCol, VarRef:
		p, err := rs.posOf(e)
		if err != nil {
			return nil, err
		}
		return func(nums []float64) float64 {
			if p >= len(nums) {
				return 0
			}
			return nums[p]
		}, nil
	case Neg:
		inner, err := compileMath(t.E, rs)
		if err != nil {
			return nil, err
		}
		return func(nums []float64) float64 { return -inner(nums) }, nil
	case Bin:
		l, err := compileMath(t.L, rs)
		if err != nil {
			return nil, err
		}
		r, err := compileMath(t.R, rs)
		if err != nil {
			return nil, err
		}
		switch t.Op {
		case '+':
			return func(n []float64) float64 { return l(n) + r(n) }, nil
		case '-':
			return func(n []float64) float64 { return l(n) - r(n) }, nil
		case '*':
			return func(n []float64) float64 { return l(n) * r(n) }, nil
		case '/':
			return func(n []float64) float64 { return l(n) / r(n) }, nil
		}
	}
	return nil, errors.SemanticError{Msg: fmt.Sprintf("cannot evaluate %T as math", e)}
}

// compilePred lowers a logical expression to a predicate closure.
func compilePred(e Expr, rs *resolver) (func(nums []float64) bool, error) {
	switch t := e.(type) {
	case Cmp:
		l, err := compileMath(t.L, rs)
		if err != nil {
			return nil, err
		}
		r, err := compileMath(t.R, rs)
		if err != nil {
			return nil, err
		}
		switch t.Op {
		case "==":
			return func(n []float64) bool { return l(n) == r(n) }, nil
		case "!=":
			return func(n []float64) bool { return l(n) != r(n) }, nil
		case "<":
			return func(n []float64) bool { return l(n) < r(n) }, nil
		case "<=":
			return func(n []float64) bool { return l(n) <= r(n) }, nil
		case ">":
			return func(n []float64) bool { return l(n) > r(n) }, nil
		case ">=":
			return func(n []float64) bool { return l(n) >= r(n) }, nil
		}
	case Logic:
		l, err := compilePred(t.L, rs)
		if err != nil {
			return nil, err
		}
		r, err := compilePred(t.R, rs)
		if err != nil {
			return nil, err
		}
		if t.Op == "and" {
			return func(n []float64) bool { return l(n) && r(n) }, nil
		}
		return func(n []float64) bool { return l(n) || r(n) }, nil
	case Not:
		inner, err := compilePred(t.E, rs)
		if err != nil {
			return nil, err
		}
		return func(n []float64) bool { return !inner(n) }, nil
	}
	return nil, errors.SemanticError{Msg: fmt.Sprintf("cannot evaluate %T as predicate", e)}
}
