package units

import (
	"testing"

	ezflow "github.com/go-ezflow/ezflow"
	"github.com/stretchr/testify/require"
)

func TestZipPairsByKey(t *testing.T) {
	z := NewZip(ezflow.Cols(1), ezflow.Cols(1), ezflow.Identity(4))
	sink := NewMemSink()
	z.LinkNext(sink)

	z.Left().Signal(0)
	z.Right().Signal(0)
	left := []ezflow.Row{
		ezflow.R("k1", 10.0), ezflow.R("k2", 20.0), ezflow.R("k1", 11.0),
	}
	right := []ezflow.Row{
		ezflow.R("k1", 100.0), ezflow.R("k1", 200.0), ezflow.R("k3", 300.0),
	}
	for _, r := range left {
		z.Left().Data(r)
	}
	for _, r := range right {
		z.Right().Data(r)
	}
	z.Left().Signal(1)
	z.Right().Signal(1)

	rows := sink.Rows()
	require.Equal(t, 2, len(rows))
	require.True(t, ezflow.RowEq(ezflow.R("k1", 10.0, "k1", 100.0), rows[0]))
	require.True(t, ezflow.RowEq(ezflow.R("k1", 11.0, "k1", 200.0), rows[1]))
}

func TestZipFairness(t *testing.T) {
	// key k appears a times left and b times right: exactly min(a, b)
	// pairs, i-th left with i-th right
	z := NewZip(ezflow.Cols(1), ezflow.Cols(1), ezflow.Identity(4))
	sink := NewMemSink()
	z.LinkNext(sink)
	z.Left().Signal(0)
	z.Right().Signal(0)
	for i := 0; i < 5; i++ {
		z.Left().Data(ezflow.R("k", float64(i)))
	}
	for i := 0; i < 3; i++ {
		z.Right().Data(ezflow.R("k", float64(100+i)))
	}
	z.Left().Signal(1)
	z.Right().Signal(1)
	rows := sink.Rows()
	require.Equal(t, 3, len(rows))
	for i, r := range rows {
		require.Equal(t, float64(i), r[1].(float64))
		require.Equal(t, float64(100+i), r[3].(float64))
	}
}

func TestZipInterleavedDelivery(t *testing.T) {
	z := NewZip(ezflow.Cols(1), ezflow.Cols(1), ezflow.Identity(4))
	sink := NewMemSink()
	z.LinkNext(sink)
	z.Left().Signal(0)
	z.Right().Signal(0)
	z.Right().Data(ezflow.R("k", 100.0))
	z.Left().Data(ezflow.R("k", 1.0))
	z.Left().Data(ezflow.R("j", 2.0))
	z.Right().Data(ezflow.R("j", 200.0))
	z.Left().Signal(1)
	z.Right().Signal(1)
	rows := sink.Rows()
	require.Equal(t, 2, len(rows))
	got := map[string]bool{}
	for _, r := range rows {
		got[r[0].(string)] = true
	}
	require.True(t, got["k"] && got["j"])
}

func TestZipDropsUnpairedAtEnd(t *testing.T) {
	z := NewZip(ezflow.Cols(1), ezflow.Cols(1), ezflow.Identity(4))
	sink := NewMemSink()
	z.LinkNext(sink)
	z.Left().Signal(0)
	z.Right().Signal(0)
	z.Left().Data(ezflow.R("only-left", 1.0))
	z.Right().Data(ezflow.R("only-right", 2.0))
	z.Left().Signal(1)
	z.Right().Signal(1)
	require.Equal(t, 0, len(sink.Rows()))
}
