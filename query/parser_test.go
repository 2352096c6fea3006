package query

import (
	"testing"

	"github.com/go-ezflow/ezflow/errors"
	"github.com/stretchr/testify/require"
)

func TestParseMapWhereShow(t *testing.T) {
	q, err := Parse(`file "data.txt" | $y = $1 + ($2 * 3) | where $y > 4 | show`)
	require.Nil(t, err)
	require.Equal(t, "data.txt", q.File)
	require.Equal(t, 2, len(q.Units))
	m, ok := q.Units[0].(MapUnit)
	require.True(t, ok)
	require.Equal(t, "y", m.Name)
	_, ok = q.Units[1].(WhereUnit)
	require.True(t, ok)
	_, ok = q.Term.(ShowTerm)
	require.True(t, ok)
}

func TestParseReduce(t *testing.T) {
	q, err := Parse(`file "f" | reduce %1 $s = sum($2) $c = count($2) | show "out.txt"`)
	require.Nil(t, err)
	r, ok := q.Units[0].(ReduceUnit)
	require.True(t, ok)
	require.Equal(t, []int{1}, r.Keys)
	require.Equal(t, 2, len(r.Aggs))
	require.Equal(t, "sum", r.Aggs[0].Fn)
	require.Equal(t, "c", r.Aggs[1].Name)
	show := q.Term.(ShowTerm)
	require.Equal(t, "out.txt", show.File)
}

func TestParseZip(t *testing.T) {
	q, err := Parse(`file "l" | zip %1 (file "r" | where $1 > 0) | show`)
	require.Nil(t, err)
	z, ok := q.Units[0].(ZipUnit)
	require.True(t, ok)
	require.Equal(t, []int{1}, z.Keys)
	require.Equal(t, "r", z.Inner.File)
	require.Equal(t, 1, len(z.Inner.Units))
}

func TestParseTerminals(t *testing.T) {
	q, err := Parse(`file "f" | $y = $1 | saveVal best = $y k = %1`)
	require.Nil(t, err)
	sv := q.Term.(SaveValTerm)
	require.Equal(t, 2, len(sv.Items))
	require.Equal(t, "best", sv.Items[0].Name)
	require.Equal(t, "y", sv.Items[0].Var)
	require.Equal(t, 1, sv.Items[1].StrCol)

	q, err = Parse(`file "f" | $y = $1 | saveQueryAs mine`)
	require.Nil(t, err)
	require.Equal(t, "mine", q.Term.(SaveQueryAsTerm).Name)
}

func TestParsePredicatePrecedence(t *testing.T) {
	q, err := Parse(`file "f" | where ($1 == 5.0 and $2 > 1) or not $3 < 2 | show`)
	require.Nil(t, err)
	w := q.Units[0].(WhereUnit)
	l, ok := w.Pred.(Logic)
	require.True(t, ok)
	require.Equal(t, "or", l.Op)
}

func TestParseLoadCmd(t *testing.T) {
	q, err := Parse(`file "f" | where loadcmd "lib.so" "pred" | show`)
	require.Nil(t, err)
	w := q.Units[0].(WhereUnit)
	require.Equal(t, "lib.so", w.LoadPath)
	require.Equal(t, "pred", w.LoadSym)
}

func TestParseErrors(t *testing.T) {
	cases := []string{
		``,
		`file`,
		`file "f" | bogus`,
		`file "f" | $y = `,
		`file "f" | where $1 >`,
		`file "f" | reduce %1`,
		`file "f" | reduce %1 $s = frob($2) | show`,
		`file "f" | zip %1 file "r" | show`,
		`file "f" | show trailing"`,
	}
	for _, c := range cases {
		_, err := Parse(c)
		require.NotNil(t, err, "query %q", c)
		_, ok := err.(errors.ParseError)
		require.True(t, ok, "query %q returned %T", c, err)
	}
}
