package query

import (
	"fmt"

	"github.com/go-ezflow/ezflow/errors"
)

type parser struct {
	lex  *lexer
	tok  token
	text string
}

// Parse turns a query line into its AST, or a ParseError.
func Parse(input string) (*Query, error) {
	p := &parser{lex: newLexer(input), text: input}
	p.advance()
	q, err := p.parseQuery()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tkEOF {
		return nil, p.errHere("trailing input after query")
	}
	return q, nil
}

func (p *parser) advance() {
	p.tok = p.lex.next()
}

func (p *parser) errHere(msg string) error {
	near := ""
	if p.tok.pos < len(p.text) {
		end := p.tok.pos + 12
		if end > len(p.text) {
			end = len(p.text)
		}
		near = p.text[p.tok.pos:end]
	}
	return errors.ParseError{Pos: p.tok.pos, Near: near, Msg: msg}
}

func (p *parser) expect(kind int, what string) (token, error) {
	if p.tok.kind != kind {
		return token{}, p.errHere("expected " + what)
	}
	t := p.tok
	p.advance()
	return t, nil
}

func (p *parser) parseQuery() (*Query, error) {
	if _, err := p.expect(tkFile, `"file"`); err != nil {
		return nil, err
	}
	f, err := p.expect(tkString, "quoted file name")
	if err != nil {
		return nil, err
	}
	q := &Query{File: f.str, Text: p.text}
	for p.tok.kind == tkPipe {
		p.advance()
		switch p.tok.kind {
		case tkVar:
			u, err := p.parseMapUnit()
			if err != nil {
				return nil, err
			}
			q.Units = append(q.Units, u)
		case tkWhere:
			u, err := p.parseWhereUnit()
			if err != nil {
				return nil, err
			}
			q.Units = append(q.Units, u)
		case tkReduce:
			u, err := p.parseReduceUnit()
			if err != nil {
				return nil, err
			}
			q.Units = append(q.Units, u)
		case tkZip:
			u, err := p.parseZipUnit()
			if err != nil {
				return nil, err
			}
			q.Units = append(q.Units, u)
		case tkShow, tkSaveVal, tkSaveQueryAs:
			t, err := p.parseTerminal()
			if err != nil {
				return nil, err
			}
			q.Term = t
			return q, nil
		default:
			return nil, p.errHere("expected a pipeline unit or terminal")
		}
	}
	return q, nil
}

func (p *parser) parseMapUnit() (Unit, error) {
	name := p.tok.str
	p.advance()
	if _, err := p.expect(tkAssign, "'='"); err != nil {
		return nil, err
	}
	e, err := p.parseMath()
	if err != nil {
		return nil, err
	}
	return MapUnit{Name: name, Expr: e}, nil
}

func (p *parser) parseWhereUnit() (Unit, error) {
	p.advance()
	if p.tok.kind == tkLoadCmd {
		p.advance()
		path, err := p.expect(tkString, "library path")
		if err != nil {
			return nil, err
		}
		sym, err := p.expect(tkString, "symbol name")
		if err != nil {
			return nil, err
		}
		return WhereUnit{LoadPath: path.str, LoadSym: sym.str}, nil
	}
	e, err := p.parseLogical()
	if err != nil {
		return nil, err
	}
	return WhereUnit{Pred: e}, nil
}

func (p *parser) parseReduceUnit() (Unit, error) {
	p.advance()
	var u ReduceUnit
	for p.tok.kind == tkStrCol {
		u.Keys = append(u.Keys, p.tok.idx)
		p.advance()
	}
	for p.tok.kind == tkVar {
		name := p.tok.str
		p.advance()
		if _, err := p.expect(tkAssign, "'='"); err != nil {
			return nil, err
		}
		fn, err := p.expect(tkIdent, "aggregate function name")
		if err != nil {
			return nil, err
		}
		switch fn.str {
		case "sum", "count", "min", "max", "avg":
		default:
			return nil, p.errHere(fmt.Sprintf("unknown aggregate %q", fn.str))
		}
		if _, err := p.expect(tkLPar, "'('"); err != nil {
			return nil, err
		}
		col, err := p.parseMath()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tkRPar, "')'"); err != nil {
			return nil, err
		}
		u.Aggs = append(u.Aggs, Agg{Name: name, Fn: fn.str, Col: col})
	}
	if len(u.Aggs) == 0 {
		return nil, p.errHere("reduce needs at least one aggregate")
	}
	return u, nil
}

func (p *parser) parseZipUnit() (Unit, error) {
	p.advance()
	var u ZipUnit
	for p.tok.kind == tkStrCol {
		u.Keys = append(u.Keys, p.tok.idx)
		p.advance()
	}
	if _, err := p.expect(tkLPar, "'('"); err != nil {
		return nil, err
	}
	inner, err := p.parseQuery()
	if err != nil {
		return nil, err
	}
	u.Inner = inner
	if _, err := p.expect(tkRPar, "')'"); err != nil {
		return nil, err
	}
	return u, nil
}

func (p *parser) parseTerminal() (Terminal, error) {
	switch p.tok.kind {
	case tkShow:
		p.advance()
		if p.tok.kind == tkString {
			f := p.tok.str
			p.advance()
			return ShowTerm{File: f}, nil
		}
		return ShowTerm{}, nil
	case tkSaveQueryAs:
		p.advance()
		name, err := p.expect(tkIdent, "query name")
		if err != nil {
			return nil, err
		}
		return SaveQueryAsTerm{Name: name.str}, nil
	default: // tkSaveVal
		p.advance()
		var t SaveValTerm
		for p.tok.kind == tkIdent {
			name := p.tok.str
			p.advance()
			if _, err := p.expect(tkAssign, "'='"); err != nil {
				return nil, err
			}
			var item SaveItem
			item.Name = name
			switch p.tok.kind {
			case tkNumCol:
				item.NumCol = p.tok.idx
			case tkVar:
				item.Var = p.tok.str
			case tkStrCol:
				item.StrCol = p.tok.idx
			default:
				return nil, p.errHere("expected a column reference")
			}
			p.advance()
			t.Items = append(t.Items, item)
		}
		if len(t.Items) == 0 {
			return nil, p.errHere("saveVal needs at least one item")
		}
		return t, nil
	}
}

// parseMath parses + and - over terms.
func (p *parser) parseMath() (Expr, error) {
	l, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tkAdd || p.tok.kind == tkSub {
		op := byte('+')
		if p.tok.kind == tkSub {
			op = '-'
		}
		p.advance()
		r, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		l = Bin{Op: op, L: l, R: r}
	}
	return l, nil
}

func (p *parser) parseTerm() (Expr, error) {
	l, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tkMul || p.tok.kind == tkDiv {
		op := byte('*')
		if p.tok.kind == tkDiv {
			op = '/'
		}
		p.advance()
		r, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		l = Bin{Op: op, L: l, R: r}
	}
	return l, nil
}

func (p *parser) parseFactor() (Expr, error) {
	switch p.tok.kind {
	case tkNumber:
		v := p.tok.num
		p.advance()
		return Num{V: v}, nil
	case tkNumCol:
		i := p.tok.idx
		p.advance()
		return NumCol{Idx: i}, nil
	case tkVar:
		n := p.tok.str
		p.advance()
		return VarRef{Name: n}, nil
	case tkSub:
		p.advance()
		e, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return Neg{E: e}, nil
	case tkLPar:
		p.advance()
		e, err := p.parseMath()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tkRPar, "')'"); err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, p.errHere("expected a number, column or '('")
	}
}

// parseLogical parses or over and over comparisons.
func (p *parser) parseLogical() (Expr, error) {
	l, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tkOr {
		p.advance()
		r, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		l = Logic{Op: "or", L: l, R: r}
	}
	return l, nil
}

func (p *parser) parseAnd() (Expr, error) {
	l, err := p.parsePred()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tkAnd {
		p.advance()
		r, err := p.parsePred()
		if err != nil {
			return nil, err
		}
		l = Logic{Op: "and", L: l, R: r}
	}
	return l, nil
}

func (p *parser) parsePred() (Expr, error) {
	switch p.tok.kind {
	case tkNot:
		p.advance()
		e, err := p.parsePred()
		if err != nil {
			return nil, err
		}
		return Not{E: e}, nil
	case tkLPar:
		// could be a grouped predicate or a parenthesized math lhs;
		// try predicate grouping first
		save := *p.lex
		saveTok := p.tok
		p.advance()
		e, err := p.parseLogical()
		if err == nil && p.tok.kind == tkRPar {
			if _, isCmp := e.(Cmp); isCmp || isLogical(e) {
				p.advance()
				return e, nil
			}
		}
		*p.lex = save
		p.tok = saveTok
	}
	l, err := p.parseMath()
	if err != nil {
		return nil, err
	}
	var op string
	switch p.tok.kind {
	case tkEq:
		op = "=="
	case tkNe:
		op = "!="
	case tkLt:
		op = "<"
	case tkLe:
		op = "<="
	case tkGt:
		op = ">"
	case tkGe:
		op = ">="
	default:
		return nil, p.errHere("expected a comparison operator")
	}
	p.advance()
	r, err := p.parseMath()
	if err != nil {
		return nil, err
	}
	return Cmp{Op: op, L: l, R: r}, nil
}

func isLogical(e Expr) bool {
	switch e.(type) {
	case Logic, Not:
		return true
	}
	return false
}
