package query

import (
	"testing"

	"github.com/go-ezflow/ezflow/errors"
	"github.com/stretchr/testify/require"
)

func resolve(t *testing.T, text string, header []string) (ColIndices, error) {
	t.Helper()
	q, err := Parse(text)
	require.Nil(t, err)
	return Resolve(q, header)
}

func TestResolveCollectsColumns(t *testing.T) {
	cols, err := resolve(t, `file "f" | $y = $1 + $3 | where $y > 4 | show`, nil)
	require.Nil(t, err)
	require.Equal(t, []int{1, 3}, cols.Num)
	require.Equal(t, []string{"y"}, cols.Vars)
}

func TestResolveReduceKeys(t *testing.T) {
	cols, err := resolve(t, `file "f" | reduce %2 %1 $s = sum($4) | show`, nil)
	require.Nil(t, err)
	require.Equal(t, []int{1, 2}, cols.Str)
	require.Equal(t, []int{4}, cols.Num)
}

func TestUndeclaredVariableRejected(t *testing.T) {
	_, err := resolve(t, `file "f" | where $y > 1 | show`, nil)
	require.NotNil(t, err)
	_, ok := err.(errors.UndeclaredVariableError)
	require.True(t, ok)
}

func TestRedeclarationRejected(t *testing.T) {
	_, err := resolve(t, `file "f" | $y = $1 | $y = $2 | show`, nil)
	require.NotNil(t, err)
	_, ok := err.(errors.RedeclaredVariableError)
	require.True(t, ok)
}

func TestNumericIndexAfterReduceRejected(t *testing.T) {
	_, err := resolve(t, `file "f" | reduce %1 $s = sum($2) | where $3 > 0 | show`, nil)
	require.NotNil(t, err)
	_, ok := err.(errors.SemanticError)
	require.True(t, ok)
}

func TestAggregateNameUsableAfterReduce(t *testing.T) {
	_, err := resolve(t, `file "f" | reduce %1 $s = sum($2) | where $s > 0 | show`, nil)
	require.Nil(t, err)
}

func TestShrinkingReduceKeySetRejected(t *testing.T) {
	_, err := resolve(t,
		`file "f" | reduce %1 %2 $s = sum($3) | reduce %1 $t = sum($s) | show`, nil)
	require.NotNil(t, err)
	_, ok := err.(errors.KeySetError)
	require.True(t, ok)
}

func TestGrowingReduceKeySetAccepted(t *testing.T) {
	_, err := resolve(t,
		`file "f" | reduce %1 $s = sum($3) | reduce %1 %2 $t = sum($s) | show`, nil)
	require.Nil(t, err)
}

func TestHeaderNameBinds(t *testing.T) {
	cols, err := resolve(t, `file "f" | $y = $price * 2 | show`, []string{"name", "price"})
	require.Nil(t, err)
	require.Equal(t, []int{2}, cols.Num)
	require.Equal(t, 2, cols.Hdr["price"])
}

func TestHeaderCollisionRejected(t *testing.T) {
	_, err := resolve(t, `file "f" | $price = $1 | show`, []string{"name", "price"})
	require.NotNil(t, err)
	_, ok := err.(errors.SemanticError)
	require.True(t, ok)
}

func TestNoColumnsRejected(t *testing.T) {
	_, err := resolve(t, `file "f" | show`, nil)
	require.NotNil(t, err)
}
