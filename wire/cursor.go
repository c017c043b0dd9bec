package wire

import (
	"encoding/binary"
	"math"

	"github.com/ventosil/reliudp/reliudperr"
)

// Cursor is a forward-only read cursor over an immutable byte
// sequence. All multi-byte integers on the wire are big-endian.
// Attempts to read past the end of the buffer fail with a
// *reliudperr.BufferError carrying the attempted and remaining sizes.
type Cursor struct {
	data   []byte
	offset int
}

// NewCursor wraps data for reading starting at offset 0.
func NewCursor(data []byte) *Cursor {
	return &Cursor{data: data}
}

// ReadExact returns the next n bytes and advances the cursor.
func (c *Cursor) ReadExact(n int) ([]byte, error) {
	if n < 0 || c.offset+n > len(c.data) {
		return nil, reliudperr.NewBufferError(
			"buffer underflow: attempted to read %d bytes, %d remaining",
			n, c.Remaining())
	}
	b := c.data[c.offset : c.offset+n]
	c.offset += n
	return b, nil
}

// Peek returns the next n bytes without advancing the cursor.
func (c *Cursor) Peek(n int) ([]byte, error) {
	if n < 0 || c.offset+n > len(c.data) {
		return nil, reliudperr.NewBufferError(
			"buffer underflow: attempted to peek %d bytes, %d remaining",
			n, c.Remaining())
	}
	return c.data[c.offset : c.offset+n], nil
}

// PushBytes appends b to the tail of the cursor's backing buffer,
// making the bytes readable after whatever is still unread. Nothing in
// this module calls it; ParseDatagram reads one datagram at a time.
func (c *Cursor) PushBytes(b []byte) {
	c.data = append(c.data, b...)
}

// IsEmpty reports whether every byte has been consumed.
func (c *Cursor) IsEmpty() bool {
	return c.offset >= len(c.data)
}

// Length returns the total number of bytes backing the cursor,
// including already-consumed ones.
func (c *Cursor) Length() int {
	return len(c.data)
}

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int {
	return len(c.data) - c.offset
}

func (c *Cursor) ReadUint8() (uint8, error) {
	b, err := c.ReadExact(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *Cursor) ReadUint16() (uint16, error) {
	b, err := c.ReadExact(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (c *Cursor) ReadInt32() (int32, error) {
	b, err := c.ReadExact(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

func (c *Cursor) ReadFloat64() (float64, error) {
	b, err := c.ReadExact(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
}

func (c *Cursor) ReadBool() (bool, error) {
	b, err := c.ReadExact(1)
	if err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

// ReadFixedString reads exactly n bytes and strips trailing NUL
// padding.
func (c *Cursor) ReadFixedString(n int) (string, error) {
	b, err := c.ReadExact(n)
	if err != nil {
		return "", err
	}
	end := len(b)
	for end > 0 && b[end-1] == 0 {
		end--
	}
	return string(b[:end]), nil
}

// ReadVarString reads a u16-length-prefixed string.
func (c *Cursor) ReadVarString() (string, error) {
	n, err := c.ReadUint16()
	if err != nil {
		return "", err
	}
	b, err := c.ReadExact(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
