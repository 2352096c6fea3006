package algorithms

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	ezflow "github.com/go-ezflow/ezflow"
	"github.com/stretchr/testify/require"
)

func TestFromMemSharesAcrossRanks(t *testing.T) {
	rows := []ezflow.Row{ezflow.R(0.0), ezflow.R(1.0), ezflow.R(2.0), ezflow.R(3.0), ezflow.R(4.0)}
	seen := map[float64]int{}
	for pos := 0; pos < 2; pos++ {
		src := NewFromMem(rows)
		src.Init(pos, []int{0, 1})
		batch, err := src.Next()
		require.Nil(t, err)
		for _, r := range batch {
			seen[r[0].(float64)]++
		}
		batch, err = src.Next()
		require.Nil(t, err)
		require.Equal(t, 0, len(batch))
	}
	require.Equal(t, 5, len(seen))
	for _, n := range seen {
		require.Equal(t, 1, n)
	}
}

func TestFromMemNoShare(t *testing.T) {
	src := NewFromMem([]ezflow.Row{ezflow.R(1.0)}).NoShare()
	src.Init(1, []int{0, 1})
	batch, err := src.Next()
	require.Nil(t, err)
	require.Equal(t, 1, len(batch))
}

func TestIota(t *testing.T) {
	src := Iota(4)
	src.Init(0, []int{0})
	batch, err := src.Next()
	require.Nil(t, err)
	require.Equal(t, 4, len(batch))
	require.Equal(t, int64(3), batch[3][0])
}

func TestReducers(t *testing.T) {
	red := Sum(2)
	acc := red.SeedCopy()
	acc, err := red.Step(acc, nil, ezflow.R(1.0, 10.0))
	require.Nil(t, err)
	acc, err = red.Step(acc, nil, ezflow.R(2.0, 20.0))
	require.Nil(t, err)
	require.True(t, ezflow.RowEq(ezflow.R(3.0, 30.0), acc))

	cnt := Count()
	acc = cnt.SeedCopy()
	acc, _ = cnt.Step(acc, nil, ezflow.R("x"))
	acc, _ = cnt.Step(acc, nil, ezflow.R("y"))
	require.Equal(t, int64(2), acc[0])

	mx := Max(1)
	acc = mx.SeedCopy()
	acc, _ = mx.Step(acc, nil, ezflow.R(4.0))
	acc, _ = mx.Step(acc, nil, ezflow.R(2.0))
	require.Equal(t, 4.0, acc[0])

	mn := Min(1)
	acc = mn.SeedCopy()
	acc, _ = mn.Step(acc, nil, ezflow.R(4.0))
	acc, _ = mn.Step(acc, nil, ezflow.R(2.0))
	require.Equal(t, 2.0, acc[0])
}

func TestMean(t *testing.T) {
	out, err := Mean(nil, []ezflow.Row{ezflow.R(1.0), ezflow.R(2.0), ezflow.R(3.0)})
	require.Nil(t, err)
	require.Equal(t, 2.0, out[0][0])
}

func TestPredicates(t *testing.T) {
	ok, _ := Gt(4)(ezflow.R(5.0))
	require.True(t, ok)
	ok, _ = Lt(4)(ezflow.R(5.0))
	require.False(t, ok)
	ok, _ = EqVal("a")(ezflow.R("a"))
	require.True(t, ok)
	ok, _ = Tautology()(ezflow.R())
	require.True(t, ok)
}

func TestFromJSONL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "d.jsonl")
	content := `{"name":"a","v":1}` + "\n" + `{"name":"b","v":2}` + "\n"
	require.Nil(t, ioutil.WriteFile(path, []byte(content), 0644))
	src := NewFromJSONL(path, []string{"name"}, []string{"v"})
	src.Init(0, []int{0})
	batch, err := src.Next()
	require.Nil(t, err)
	require.Equal(t, 2, len(batch))
	require.True(t, ezflow.RowEq(ezflow.R("a", 1.0), batch[0]))
	batch, err = src.Next()
	require.Nil(t, err)
	require.Equal(t, 0, len(batch))
}
