package ezflow

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	xxhash "github.com/cespare/xxhash/v2"
)

// Row is a heterogeneous tuple of fixed arity. Slot values are one of:
// string, float64, int64, bool, []string or []float64. Slots are
// addressed by 1-based column indices through a Selection.
type Row []interface{}

// R builds a Row from its slot values.
func R(vals ...interface{}) Row {
	return Row(vals)
}

// Arity returns the number of slots in the row.
func (r Row) Arity() int { return len(r) }

// Concat returns a new row holding the slots of a followed by the slots
// of b. Value semantics are preserved by reference; callers that mutate
// slices afterwards must clone first.
func Concat(a Row, b Row) Row {
	out := make(Row, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}

// Clone returns a deep copy of the row. Slice-valued slots are copied.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for i, v := range r {
		switch t := v.(type) {
		case []string:
			c := make([]string, len(t))
			copy(c, t)
			out[i] = c
		case []float64:
			c := make([]float64, len(t))
			copy(c, t)
			out[i] = c
		default:
			out[i] = v
		}
	}
	return out
}

// String renders the row with whitespace-separated columns, the layout
// used by the Dump sink. Vector slots are flattened in order.
func (r Row) String() string {
	var sb strings.Builder
	first := true
	emit := func(s string) {
		if !first {
			sb.WriteByte(' ')
		}
		first = false
		sb.WriteString(s)
	}
	for _, v := range r {
		switch t := v.(type) {
		case string:
			emit(t)
		case float64:
			emit(formatFloat(t))
		case int64:
			emit(strconv.FormatInt(t, 10))
		case bool:
			emit(strconv.FormatBool(t))
		case []string:
			for _, s := range t {
				emit(s)
			}
		case []float64:
			for _, f := range t {
				emit(formatFloat(f))
			}
		default:
			emit(fmt.Sprintf("%v", t))
		}
	}
	return sb.String()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// RowEq reports whether two rows hold the same slot values.
func RowEq(a Row, b Row) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !valueEq(a[i], b[i]) {
			return false
		}
	}
	return true
}

func valueEq(a, b interface{}) bool {
	switch x := a.(type) {
	case []string:
		y, ok := b.([]string)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if x[i] != y[i] {
				return false
			}
		}
		return true
	case []float64:
		y, ok := b.([]float64)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if x[i] != y[i] {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

// HashRow computes a 64-bit hash of the row over a canonical byte
// encoding of its slots. The empty row hashes to a fixed value so that
// empty subrows compare and hash equal to themselves.
func HashRow(r Row) uint64 {
	h := xxhash.New()
	buf := make([]byte, 0, 64)
	for _, v := range r {
		buf = AppendValueBytes(buf[:0], v)
		h.Write(buf)
	}
	return h.Sum64()
}

// AppendValueBytes appends the canonical byte encoding of a slot value
// to buf. The encoding is prefix-free per slot: a kind byte, a length
// where needed, then the payload.
func AppendValueBytes(buf []byte, v interface{}) []byte {
	switch t := v.(type) {
	case string:
		buf = append(buf, 's')
		buf = appendUvarint(buf, uint64(len(t)))
		buf = append(buf, t...)
	case float64:
		buf = append(buf, 'f')
		buf = appendUint64(buf, math.Float64bits(t))
	case int64:
		buf = append(buf, 'i')
		buf = appendUint64(buf, uint64(t))
	case bool:
		if t {
			buf = append(buf, 'b', 1)
		} else {
			buf = append(buf, 'b', 0)
		}
	case []string:
		buf = append(buf, 'S')
		buf = appendUvarint(buf, uint64(len(t)))
		for _, s := range t {
			buf = appendUvarint(buf, uint64(len(s)))
			buf = append(buf, s...)
		}
	case []float64:
		buf = append(buf, 'F')
		buf = appendUvarint(buf, uint64(len(t)))
		for _, f := range t {
			buf = appendUint64(buf, math.Float64bits(f))
		}
	default:
		buf = append(buf, 'x')
		buf = append(buf, fmt.Sprintf("%v", t)...)
	}
	return buf
}

func appendUint64(buf []byte, u uint64) []byte {
	return append(buf,
		byte(u), byte(u>>8), byte(u>>16), byte(u>>24),
		byte(u>>32), byte(u>>40), byte(u>>48), byte(u>>56))
}

func appendUvarint(buf []byte, u uint64) []byte {
	for u >= 0x80 {
		buf = append(buf, byte(u)|0x80)
		u >>= 7
	}
	return append(buf, byte(u))
}
