package query

import (
	"fmt"
	"sort"

	"github.com/go-ezflow/ezflow/errors"
)

// ColIndices is the outcome of column resolution: the 1-based string
// and numeric file columns a query touches, the declared variables in
// order, and the header-name bindings used.
type ColIndices struct {
	Str  []int
	Num  []int
	Vars []string
	Hdr  map[string]int
}

type sema struct {
	header  []string
	hdrNum  map[string]int
	vars    map[string]bool
	varList []string
	numRefs map[int]bool
	strRefs map[int]bool
	reduced bool
	keySet  []int
	binds   map[string]int
}

// Resolve walks a query's AST maintaining the sets of referenced
// columns and declared variables, rejecting undeclared references,
// redeclarations, numeric indices used after a reduce has committed to
// a key set, shrinking reduce key sets, and header collisions. No graph
// is built when resolution fails.
func Resolve(q *Query, header []string) (ColIndices, error) {
	return resolveSeeded(q, header, nil)
}

// resolveSeeded resolves a query with string key columns imposed from
// the outside; a zip's inner query must load the shared key even when
// it never references it.
func resolveSeeded(q *Query, header []string, keys []int) (ColIndices, error) {
	s := &sema{
		header:  header,
		hdrNum:  make(map[string]int),
		vars:    make(map[string]bool),
		numRefs: make(map[int]bool),
		strRefs: make(map[int]bool),
		binds:   make(map[string]int),
	}
	for i, name := range header {
		s.hdrNum[name] = i + 1
	}
	for _, k := range keys {
		s.strRefs[k] = true
	}
	for _, u := range q.Units {
		if err := s.unit(u); err != nil {
			return ColIndices{}, err
		}
	}
	if err := s.terminal(q.Term); err != nil {
		return ColIndices{}, err
	}
	if len(s.numRefs) == 0 && len(s.strRefs) == 0 {
		return ColIndices{}, errors.SemanticError{
			Msg: "There should be at least one column index loaded from the file"}
	}
	return ColIndices{
		Str:  sortedInts(s.strRefs),
		Num:  sortedInts(s.numRefs),
		Vars: s.varList,
		Hdr:  s.binds,
	}, nil
}

func (s *sema) unit(u Unit) error {
	switch t := u.(type) {
	case MapUnit:
		if err := s.expr(t.Expr); err != nil {
			return err
		}
		return s.declare(t.Name)
	case WhereUnit:
		if t.Pred != nil {
			return s.expr(t.Pred)
		}
		return nil
	case ReduceUnit:
		if s.reduced && !superset(t.Keys, s.keySet) {
			return errors.KeySetError{}
		}
		for _, k := range t.Keys {
			s.strRefs[k] = true
		}
		for _, a := range t.Aggs {
			if err := s.expr(a.Col); err != nil {
				return err
			}
		}
		// aggregates open a fresh numeric namespace; prior columns and
		// variables are spent
		s.reduced = true
		s.keySet = t.Keys
		s.vars = make(map[string]bool)
		for _, a := range t.Aggs {
			if s.vars[a.Name] {
				return errors.RedeclaredVariableError{Name: a.Name}
			}
			s.vars[a.Name] = true
			s.varList = append(s.varList, a.Name)
		}
		return nil
	case ZipUnit:
		for _, k := range t.Keys {
			s.strRefs[k] = true
		}
		// the inner query resolves against its own file, with the
		// shared key columns imposed
		innerHdr, _ := headerFor(t.Inner.File)
		_, err := resolveSeeded(t.Inner, innerHdr, t.Keys)
		return err
	}
	return errors.SemanticError{Msg: fmt.Sprintf("unknown unit %T", u)}
}

func (s *sema) terminal(t Terminal) error {
	sv, ok := t.(SaveValTerm)
	if !ok {
		return nil
	}
	for _, item := range sv.Items {
		switch {
		case item.NumCol > 0:
			if err := s.expr(NumCol{Idx: item.NumCol}); err != nil {
				return err
			}
		case item.Var != "":
			if err := s.expr(VarRef{Name: item.Var}); err != nil {
				return err
			}
		case item.StrCol > 0:
			s.strRefs[item.StrCol] = true
		}
	}
	return nil
}

func (s *sema) declare(name string) error {
	if s.vars[name] {
		return errors.RedeclaredVariableError{Name: name}
	}
	if _, ok := s.hdrNum[name]; ok {
		return errors.SemanticError{
			Msg: fmt.Sprintf("Variable $%s collides with a header column name", name)}
	}
	s.vars[name] = true
	s.varList = append(s.varList, name)
	return nil
}

func (s *sema) expr(e Expr) error {
	switch t := e.(type) {
	case Num:
		return nil
	case NumCol:
		if s.reduced {
			return errors.SemanticError{
				Msg: fmt.Sprintf("Numeric column $%d referenced after a reduce has committed to a key set", t.Idx)}
		}
		s.numRefs[t.Idx] = true
		return nil
	case VarRef:
		if s.vars[t.Name] {
			return nil
		}
		if idx, ok := s.hdrNum[t.Name]; ok && !s.reduced {
			s.numRefs[idx] = true
			s.binds[t.Name] = idx
			return nil
		}
		return errors.UndeclaredVariableError{Name: t.Name}
	case Bin:
		if err := s.expr(t.L); err != nil {
			return err
		}
		return s.expr(t.R)
	case Neg:
		return s.expr(t.E)
	case Cmp:
		if err := s.expr(t.L); err != nil {
			return err
		}
		return s.expr(t.R)
	case Logic:
		if err := s.expr(t.L); err != nil {
			return err
		}
		return s.expr(t.R)
	case Not:
		return s.expr(t.E)
	}
	return errors.SemanticError{Msg: fmt.Sprintf("unknown expression %T", e)}
}

func superset(a, b []int) bool {
	in := make(map[int]bool, len(a))
	for _, x := range a {
		in[x] = true
	}
	for _, x := range b {
		if !in[x] {
			return false
		}
	}
	return true
}

func sortedInts(m map[int]bool) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
