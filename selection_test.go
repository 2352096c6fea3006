package ezflow

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSelectionProjectLength(t *testing.T) {
	r := R("a", 2.0, int64(3), true)
	s := Cols(1, 3)
	require.Nil(t, s.Sane(r.Arity()))
	sub := s.Project(r)
	require.Equal(t, len(s), sub.Arity())
	require.Equal(t, "a", sub[0])
	require.Equal(t, int64(3), sub[1])
}

func TestIdentityOverConcat(t *testing.T) {
	r1 := R("x", 1.0)
	r2 := R(2.0, "y")
	cat := Concat(r1, r2)
	require.True(t, RowEq(Identity(cat.Arity()).Project(cat), cat))
}

func TestMaskDetection(t *testing.T) {
	// all values 0/1 and one value per slot means a mask
	s := NewSelection(4, 1, 0, 1, 0)
	require.Equal(t, Cols(1, 3), s)
	// otherwise the values are indices
	s = NewSelection(2, 2, 1)
	require.Equal(t, Cols(2, 1), s)
	// 0/1 values that do not cover every slot stay indices
	s = NewSelection(4, 1, 1)
	require.Equal(t, Cols(1, 1), s)
}

func TestSelectionSanity(t *testing.T) {
	require.Nil(t, Cols().Sane(3))
	require.Nil(t, Cols(3, 1).Sane(3))
	require.NotNil(t, Cols(4).Sane(3))
	require.NotNil(t, Cols(0).Sane(3))
	require.NotNil(t, Cols(2, 2).Sane(3))
}

func TestEmptySelection(t *testing.T) {
	r := R("a", 1.0)
	empty := Cols()
	sub := empty.Project(r)
	require.Equal(t, 0, sub.Arity())
	require.True(t, RowEq(sub, empty.Project(R(9.0))))
	require.Equal(t, HashRow(sub), HashRow(Row{}))
}

func TestComplement(t *testing.T) {
	require.Equal(t, Cols(2, 4), Cols(1, 3).Complement(4))
	require.Equal(t, Cols(1, 2), Cols().Complement(2))
}

func TestSupersetof(t *testing.T) {
	require.True(t, Cols(1, 2, 3).Supersetof(Cols(2)))
	require.False(t, Cols(1).Supersetof(Cols(2)))
}
