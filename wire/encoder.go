package wire

import (
	"encoding/binary"
	"math"

	"github.com/ventosil/reliudp/reliudperr"
)

// Encoder accumulates a message body written field-by-field in
// declaration order, mirroring Cursor's read-side API on the write
// side.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an empty Encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Bytes returns the accumulated output.
func (e *Encoder) Bytes() []byte { return e.buf }

func (e *Encoder) WriteUint8(v uint8) {
	e.buf = append(e.buf, v)
}

func (e *Encoder) WriteUint16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *Encoder) WriteInt32(v int32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	e.buf = append(e.buf, b[:]...)
}

func (e *Encoder) WriteFloat64(v float64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], math.Float64bits(v))
	e.buf = append(e.buf, b[:]...)
}

func (e *Encoder) WriteBool(v bool) {
	if v {
		e.buf = append(e.buf, 1)
	} else {
		e.buf = append(e.buf, 0)
	}
}

// WriteFixedString writes exactly n bytes, null-padding the suffix. It
// fails if value is longer than n bytes.
func (e *Encoder) WriteFixedString(value string, n int) error {
	if len(value) > n {
		return reliudperr.NewMessageError(
			"fixed string value %q exceeds max length %d", value, n)
	}
	padded := make([]byte, n)
	copy(padded, value)
	e.buf = append(e.buf, padded...)
	return nil
}

// WriteVarString writes a u16 length prefix followed by the string
// bytes. It fails if the value does not fit in a u16 length.
func (e *Encoder) WriteVarString(value string) error {
	if len(value) > math.MaxUint16 {
		return reliudperr.NewMessageError(
			"variable string value of length %d exceeds u16 bound", len(value))
	}
	e.WriteUint16(uint16(len(value)))
	e.buf = append(e.buf, value...)
	return nil
}
