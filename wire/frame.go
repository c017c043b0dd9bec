package wire

import (
	"github.com/ventosil/reliudp/reliudperr"
)

// Flags bits for the transport header's 1-byte flag field.
const (
	FlagOrdered  byte = 1 << 0
	FlagReliable byte = 1 << 1
)

// FrameHeaderSize is the fixed 5-byte transport header preceding every
// framed message: message_id (u16), ordered_sequence (u16), flags (u8).
const FrameHeaderSize = 5

// MTU is the maximum number of bytes permitted in a single outbound
// datagram.
const MTU = 1400

// FrameHeader is the per-message transport header.
type FrameHeader struct {
	MessageID       uint16
	OrderedSequence uint16
	Flags           byte
}

func (h FrameHeader) IsOrdered() bool  { return h.Flags&FlagOrdered != 0 }
func (h FrameHeader) IsReliable() bool { return h.Flags&FlagReliable != 0 }

// EncodeFrame prepends the 5-byte transport header to an already
// encoded message body.
func EncodeFrame(header FrameHeader, messageBytes []byte) []byte {
	out := make([]byte, 0, FrameHeaderSize+len(messageBytes))
	enc := NewEncoder()
	enc.WriteUint16(header.MessageID)
	enc.WriteUint16(header.OrderedSequence)
	enc.WriteUint8(header.Flags)
	out = append(out, enc.Bytes()...)
	out = append(out, messageBytes...)
	return out
}

// ParseDatagram repeatedly reads a 5-byte transport header followed by
// a type-id-prefixed message body until the cursor is exhausted.
// Every message in the datagram is parsed before any is returned; a
// single malformed trailing message fails the whole datagram, per
// spec.
func ParseDatagram(data []byte, registry *Registry) ([]*Message, error) {
	cur := NewCursor(data)
	var out []*Message
	for !cur.IsEmpty() {
		messageID, err := cur.ReadUint16()
		if err != nil {
			return nil, err
		}
		orderedSeq, err := cur.ReadUint16()
		if err != nil {
			return nil, err
		}
		flags, err := cur.ReadUint8()
		if err != nil {
			return nil, err
		}
		typeID, err := cur.ReadUint8()
		if err != nil {
			return nil, err
		}
		def, err := registry.GetByID(typeID)
		if err != nil {
			return nil, reliudperr.WrapBufferError(err, "malformed datagram")
		}
		msg, err := def.decodeBody(cur)
		if err != nil {
			return nil, reliudperr.WrapBufferError(err, "malformed datagram")
		}
		msg.MessageID = messageID
		msg.OrderedSequence = orderedSeq
		msg.IsOrdered = flags&FlagOrdered != 0
		msg.IsReliable = flags&FlagReliable != 0
		out = append(out, msg)
	}
	return out, nil
}
