package query

import (
	"strings"

	lru "github.com/hashicorp/golang-lru"

	ezflow "github.com/go-ezflow/ezflow"
	"github.com/go-ezflow/ezflow/errors"
	"github.com/go-ezflow/ezflow/karta"
)

// Session holds the per-REPL state: the scheduler to run on, named
// saved queries, saved values, and a cache of parsed queries. Nothing
// persists across runs of the program.
type Session struct {
	K *karta.Karta
	// Queries maps saved names to query text (saveQueryAs).
	Queries map[string]string
	// Values maps saved names to extracted cells (saveVal).
	Values map[string]interface{}
	// AllowLoadCmd opts in to where-clause load-cmd parsing; the
	// sandboxed loader itself is not shipped, so planning still fails,
	// but with a descriptive error instead of a policy one.
	AllowLoadCmd bool
	// Strict drops unparsable rows instead of null-padding them.
	Strict bool
	// RunReq is the process request queries run with; the zero value
	// asks for the full pool. A REPL driving queries from inside its
	// own pipeline sets explicit ranks so the nested run does not
	// degrade to local.
	RunReq karta.ProcReq

	cache *lru.Cache
}

// NewSession creates a session over the given scheduler.
func NewSession(k *karta.Karta) *Session {
	cache, _ := lru.New(64)
	return &Session{
		K:       k,
		Queries: make(map[string]string),
		Values:  make(map[string]interface{}),
		cache:   cache,
	}
}

// parse returns the AST for a query line, consulting the plan cache and
// substituting a saved query named by the line.
func (s *Session) parse(line string) (*Query, error) {
	line = strings.TrimSpace(line)
	if text, ok := s.Queries[line]; ok {
		line = text
	}
	if q, ok := s.cache.Get(line); ok {
		return q.(*Query), nil
	}
	q, err := Parse(line)
	if err != nil {
		return nil, err
	}
	s.cache.Add(line, q)
	return q, nil
}

// Check parses and resolves a line without building a graph; it backs
// the REPL's pre-broadcast validation on rank 0.
func (s *Session) Check(line string) error {
	q, err := s.parse(line)
	if err != nil {
		return err
	}
	header, _ := headerFor(q.File)
	_, err = Resolve(q, header)
	return err
}

// Exec plans and runs one query line on the session's scheduler.
// Composition-time errors return before any graph is built; the
// saveQueryAs terminal records the text and skips execution.
func (s *Session) Exec(line string) error {
	q, err := s.parse(line)
	if err != nil {
		return err
	}
	if t, ok := q.Term.(SaveQueryAsTerm); ok {
		s.Queries[t.Name] = q.Text
		return nil
	}
	b, rs, cols, err := buildFlow(q, s, nil)
	if err != nil {
		return err
	}
	switch t := q.Term.(type) {
	case SaveValTerm:
		rows, err := b.Get(s.K, s.RunReq)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return errors.SemanticError{Msg: "saveVal matched no rows"}
		}
		return s.saveCells(t, rows[0], rs, cols)
	case ShowTerm:
		b = b.Dump(t.File, "")
		fl, err := b.Build()
		if err != nil {
			return err
		}
		return fl.Run(s.K, s.RunReq)
	default:
		// a query without a terminal still runs, for its side effects
		fl, err := b.Build()
		if err != nil {
			return err
		}
		return fl.Run(s.K, s.RunReq)
	}
}

func (s *Session) saveCells(t SaveValTerm, row ezflow.Row, rs *resolver, cols ColIndices) error {
	strs, _ := row[0].([]string)
	nums, _ := row[1].([]float64)
	for _, item := range t.Items {
		switch {
		case item.StrCol > 0:
			pos := -1
			for i, c := range cols.Str {
				if c == item.StrCol {
					pos = i
				}
			}
			if pos < 0 || pos >= len(strs) {
				return errors.ColumnBoundsError{Index: item.StrCol, Arity: len(strs)}
			}
			s.Values[item.Name] = strs[pos]
		case item.Var != "":
			p, err := rs.posOf(VarRef{Name: item.Var})
			if err != nil {
				return err
			}
			if p >= len(nums) {
				return errors.ColumnBoundsError{Index: p + 1, Arity: len(nums)}
			}
			s.Values[item.Name] = nums[p]
		default:
			p, err := rs.posOf(NumCol{Idx: item.NumCol})
			if err != nil {
				return err
			}
			if p >= len(nums) {
				return errors.ColumnBoundsError{Index: item.NumCol, Arity: len(nums)}
			}
			s.Values[item.Name] = nums[p]
		}
	}
	return nil
}
