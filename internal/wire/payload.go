package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrShortPayloadField = errors.New("wire: short payload field")
	ErrUnterminatedPath  = errors.New("wire: unterminated path string")
)

// AppendUint64 appends v big-endian.
func AppendUint64(b []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(b, tmp[:]...)
}

// AppendCString appends s followed by a NUL terminator.
func AppendCString(b []byte, s string) []byte {
	b = append(b, s...)
	return append(b, 0)
}

// Reader walks a payload front to back with bounds checks.
type Reader struct {
	b []byte
	i int
}

func NewReader(b []byte) *Reader {
	return &Reader{b: b}
}

func (r *Reader) Uint64() (uint64, error) {
	if len(r.b)-r.i < 8 {
		return 0, ErrShortPayloadField
	}
	v := binary.BigEndian.Uint64(r.b[r.i : r.i+8])
	r.i += 8
	return v, nil
}

// CString reads bytes up to the next NUL terminator.
func (r *Reader) CString() (string, error) {
	for j := r.i; j < len(r.b); j++ {
		if r.b[j] == 0 {
			s := string(r.b[r.i:j])
			r.i = j + 1
			return s, nil
		}
	}
	return "", ErrUnterminatedPath
}

// Rest returns every remaining byte and exhausts the reader.
func (r *Reader) Rest() []byte {
	out := r.b[r.i:]
	r.i = len(r.b)
	return out
}

func (r *Reader) Len() int {
	return len(r.b) - r.i
}

// Done fails if any payload bytes remain unconsumed.
func (r *Reader) Done() error {
	if n := r.Len(); n != 0 {
		return fmt.Errorf("wire: %d trailing payload bytes", n)
	}
	return nil
}
