// Package codec serializes rows for the shuffle bridge's wire
// messages. Single rows use a compact kind-tagged binary layout; row
// batches are length-prefixed and lz4-compressed once they cross a size
// threshold, trading cpu for bandwidth on large shuffles.
package codec

import (
	"bytes"
	"encoding/binary"
	"math"

	ezflow "github.com/go-ezflow/ezflow"
	"github.com/go-ezflow/ezflow/errors"
	"github.com/pierrec/lz4"
)

// compressAt is the raw batch size in bytes beyond which lz4 kicks in.
const compressAt = 1 << 12

const (
	rawBatch = 0
	lz4Batch = 1
)

// EncodeRow serializes one row.
func EncodeRow(r ezflow.Row) []byte {
	buf := make([]byte, 0, 64)
	return appendRow(buf, r)
}

func appendRow(buf []byte, r ezflow.Row) []byte {
	buf = appendUvarint(buf, uint64(len(r)))
	for _, v := range r {
		buf = ezflow.AppendValueBytes(buf, v)
	}
	return buf
}

// DecodeRow deserializes one row.
func DecodeRow(payload []byte) (ezflow.Row, error) {
	r, rest, err := readRow(payload)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, errors.RowDecodeError{Msg: "trailing bytes after row"}
	}
	return r, nil
}

// EncodeBatch serializes a batch of rows, compressing when large.
func EncodeBatch(rows []ezflow.Row) []byte {
	raw := make([]byte, 0, 256)
	raw = appendUvarint(raw, uint64(len(rows)))
	for _, r := range rows {
		raw = appendRow(raw, r)
	}
	if len(raw) < compressAt {
		return append([]byte{rawBatch}, raw...)
	}
	var out bytes.Buffer
	out.WriteByte(lz4Batch)
	var lenb [8]byte
	binary.LittleEndian.PutUint64(lenb[:], uint64(len(raw)))
	out.Write(lenb[:])
	zw := lz4.NewWriter(&out)
	if _, err := zw.Write(raw); err != nil {
		return append([]byte{rawBatch}, raw...)
	}
	if err := zw.Close(); err != nil {
		return append([]byte{rawBatch}, raw...)
	}
	return out.Bytes()
}

// DecodeBatch deserializes a batch of rows.
func DecodeBatch(payload []byte) ([]ezflow.Row, error) {
	if len(payload) == 0 {
		return nil, errors.RowDecodeError{Msg: "empty batch payload"}
	}
	kind, body := payload[0], payload[1:]
	if kind == lz4Batch {
		if len(body) < 8 {
			return nil, errors.RowDecodeError{Msg: "short lz4 header"}
		}
		rawLen := binary.LittleEndian.Uint64(body[:8])
		zr := lz4.NewReader(bytes.NewReader(body[8:]))
		raw := make([]byte, rawLen)
		n := 0
		for n < len(raw) {
			m, err := zr.Read(raw[n:])
			n += m
			if err != nil {
				break
			}
		}
		if n != len(raw) {
			return nil, errors.RowDecodeError{Msg: "truncated lz4 batch"}
		}
		body = raw
	}
	count, body, err := readUvarint(body)
	if err != nil {
		return nil, err
	}
	rows := make([]ezflow.Row, 0, count)
	for i := uint64(0); i < count; i++ {
		var r ezflow.Row
		r, body, err = readRow(body)
		if err != nil {
			return nil, err
		}
		rows = append(rows, r)
	}
	if len(body) != 0 {
		return nil, errors.RowDecodeError{Msg: "trailing bytes after batch"}
	}
	return rows, nil
}

// EncodeSignal serializes a stream signal value.
func EncodeSignal(k int) []byte {
	return []byte{byte(k)}
}

// DecodeSignal deserializes a stream signal value.
func DecodeSignal(payload []byte) (int, error) {
	if len(payload) != 1 {
		return 0, errors.RowDecodeError{Msg: "bad signal payload"}
	}
	return int(payload[0]), nil
}

func readRow(b []byte) (ezflow.Row, []byte, error) {
	arity, b, err := readUvarint(b)
	if err != nil {
		return nil, nil, err
	}
	r := make(ezflow.Row, 0, arity)
	for i := uint64(0); i < arity; i++ {
		var v interface{}
		v, b, err = readValue(b)
		if err != nil {
			return nil, nil, err
		}
		r = append(r, v)
	}
	return r, b, nil
}

func readValue(b []byte) (interface{}, []byte, error) {
	if len(b) == 0 {
		return nil, nil, errors.RowDecodeError{Msg: "missing value kind"}
	}
	kind := b[0]
	b = b[1:]
	switch kind {
	case 's':
		n, rest, err := readUvarint(b)
		if err != nil || uint64(len(rest)) < n {
			return nil, nil, errors.RowDecodeError{Msg: "short string"}
		}
		return string(rest[:n]), rest[n:], nil
	case 'f':
		if len(b) < 8 {
			return nil, nil, errors.RowDecodeError{Msg: "short float"}
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(b)), b[8:], nil
	case 'i':
		if len(b) < 8 {
			return nil, nil, errors.RowDecodeError{Msg: "short int"}
		}
		return int64(binary.LittleEndian.Uint64(b)), b[8:], nil
	case 'b':
		if len(b) < 1 {
			return nil, nil, errors.RowDecodeError{Msg: "short bool"}
		}
		return b[0] == 1, b[1:], nil
	case 'S':
		n, rest, err := readUvarint(b)
		if err != nil {
			return nil, nil, err
		}
		out := make([]string, 0, n)
		for i := uint64(0); i < n; i++ {
			var m uint64
			m, rest, err = readUvarint(rest)
			if err != nil || uint64(len(rest)) < m {
				return nil, nil, errors.RowDecodeError{Msg: "short string vector"}
			}
			out = append(out, string(rest[:m]))
			rest = rest[m:]
		}
		return out, rest, nil
	case 'F':
		n, rest, err := readUvarint(b)
		if err != nil || uint64(len(rest)) < n*8 {
			return nil, nil, errors.RowDecodeError{Msg: "short float vector"}
		}
		out := make([]float64, 0, n)
		for i := uint64(0); i < n; i++ {
			out = append(out, math.Float64frombits(binary.LittleEndian.Uint64(rest)))
			rest = rest[8:]
		}
		return out, rest, nil
	default:
		return nil, nil, errors.RowDecodeError{Msg: "unknown value kind"}
	}
}

func appendUvarint(buf []byte, u uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], u)
	return append(buf, tmp[:n]...)
}

func readUvarint(b []byte) (uint64, []byte, error) {
	u, n := binary.Uvarint(b)
	if n <= 0 {
		return 0, nil, errors.RowDecodeError{Msg: "bad varint"}
	}
	return u, b[n:], nil
}
