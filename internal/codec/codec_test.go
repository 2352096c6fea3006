package codec

import (
	"fmt"
	"testing"

	ezflow "github.com/go-ezflow/ezflow"
	"github.com/stretchr/testify/require"
)

func TestRowRoundtrip(t *testing.T) {
	r := ezflow.R("key", 3.5, int64(-7), true, []string{"a", "b"}, []float64{1, 2, 3})
	got, err := DecodeRow(EncodeRow(r))
	require.Nil(t, err)
	require.True(t, ezflow.RowEq(r, got))
}

func TestBatchRoundtripSmall(t *testing.T) {
	rows := []ezflow.Row{ezflow.R("a", 1.0), ezflow.R("b", 2.0)}
	got, err := DecodeBatch(EncodeBatch(rows))
	require.Nil(t, err)
	require.Equal(t, len(rows), len(got))
	for i := range rows {
		require.True(t, ezflow.RowEq(rows[i], got[i]))
	}
}

func TestBatchRoundtripCompressed(t *testing.T) {
	// large enough to cross the compression threshold
	var rows []ezflow.Row
	for i := 0; i < 2000; i++ {
		rows = append(rows, ezflow.R(fmt.Sprintf("key-%d", i%7), float64(i)))
	}
	payload := EncodeBatch(rows)
	require.Equal(t, byte(lz4Batch), payload[0])
	got, err := DecodeBatch(payload)
	require.Nil(t, err)
	require.Equal(t, len(rows), len(got))
	for i := range rows {
		require.True(t, ezflow.RowEq(rows[i], got[i]))
	}
}

func TestSignalRoundtrip(t *testing.T) {
	k, err := DecodeSignal(EncodeSignal(1))
	require.Nil(t, err)
	require.Equal(t, 1, k)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := DecodeRow([]byte{0xff, 0x01, 0x02})
	require.NotNil(t, err)
	_, err = DecodeBatch(nil)
	require.NotNil(t, err)
}
