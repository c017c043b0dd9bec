// Package wire implements the typed message framing and codec that
// sit between the connection engine and raw UDP datagrams: a
// registry-backed message definition system, big-endian field
// encoding, and the 5-byte transport header that precedes every
// framed message on the wire.
package wire

import (
	"github.com/ventosil/reliudp/reliudperr"
)

// FieldType enumerates the wire-level field types a message
// definition may declare.
type FieldType int

const (
	FieldInt32 FieldType = iota
	FieldUint16
	FieldUint8
	FieldFloat64
	FieldFixedString
	FieldVarString
	FieldBool
)

// FieldSpec declares one field of a message definition. Len is only
// meaningful for FieldFixedString, giving the fixed on-wire width.
type FieldSpec struct {
	Name string
	Type FieldType
	Len  int
}

// Definition describes one message type: its wire type id, its
// symbolic name, and its ordered field schema. Field declaration order
// is encode/decode order.
type Definition struct {
	TypeID byte
	Name   string
	Fields []FieldSpec
}

// New returns a Message of this definition with every field set to
// its type's default value (ints/float -> zero, bool -> false,
// strings -> empty).
func (d *Definition) New() *Message {
	m := &Message{
		Def:    d,
		values: make(map[string]interface{}, len(d.Fields)),
	}
	for _, f := range d.Fields {
		m.values[f.Name] = defaultValue(f.Type)
	}
	return m
}

func defaultValue(t FieldType) interface{} {
	switch t {
	case FieldInt32:
		return int32(0)
	case FieldUint16:
		return uint16(0)
	case FieldUint8:
		return uint8(0)
	case FieldFloat64:
		return float64(0)
	case FieldBool:
		return false
	case FieldFixedString, FieldVarString:
		return ""
	default:
		return nil
	}
}

// Message is an instance of a Definition: an ordered set of named,
// typed field values plus, once parsed off the wire, the transport
// metadata attached to it (message id, ordered sequence, flags).
type Message struct {
	Def    *Definition
	values map[string]interface{}

	// Populated by ParseDatagram; zero-valued for messages that were
	// constructed locally and not yet sent.
	MessageID       uint16
	OrderedSequence uint16
	IsOrdered       bool
	IsReliable      bool
}

func (m *Message) field(name string) (FieldSpec, bool) {
	for _, f := range m.Def.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

func (m *Message) mustType(name string, want FieldType) error {
	f, ok := m.field(name)
	if !ok {
		return reliudperr.NewMessageError("%s has no field %q", m.Def.Name, name)
	}
	if f.Type != want {
		return reliudperr.NewMessageError("field %q of %s is not of the requested type", name, m.Def.Name)
	}
	return nil
}

func (m *Message) Int32(name string) int32 {
	v, _ := m.values[name].(int32)
	return v
}

func (m *Message) SetInt32(name string, v int32) error {
	if err := m.mustType(name, FieldInt32); err != nil {
		return err
	}
	m.values[name] = v
	return nil
}

func (m *Message) Uint16(name string) uint16 {
	v, _ := m.values[name].(uint16)
	return v
}

func (m *Message) SetUint16(name string, v uint16) error {
	if err := m.mustType(name, FieldUint16); err != nil {
		return err
	}
	m.values[name] = v
	return nil
}

func (m *Message) Uint8(name string) uint8 {
	v, _ := m.values[name].(uint8)
	return v
}

func (m *Message) SetUint8(name string, v uint8) error {
	if err := m.mustType(name, FieldUint8); err != nil {
		return err
	}
	m.values[name] = v
	return nil
}

func (m *Message) Float64(name string) float64 {
	v, _ := m.values[name].(float64)
	return v
}

func (m *Message) SetFloat64(name string, v float64) error {
	if err := m.mustType(name, FieldFloat64); err != nil {
		return err
	}
	m.values[name] = v
	return nil
}

func (m *Message) Bool(name string) bool {
	v, _ := m.values[name].(bool)
	return v
}

func (m *Message) SetBool(name string, v bool) error {
	if err := m.mustType(name, FieldBool); err != nil {
		return err
	}
	m.values[name] = v
	return nil
}

func (m *Message) String(name string) string {
	v, _ := m.values[name].(string)
	return v
}

// SetFixedString validates the value fits the field's declared width
// before storing it; encoding re-validates in case the value was
// mutated through another path.
func (m *Message) SetFixedString(name, v string) error {
	f, ok := m.field(name)
	if !ok {
		return reliudperr.NewMessageError("%s has no field %q", m.Def.Name, name)
	}
	if f.Type != FieldFixedString {
		return reliudperr.NewMessageError("field %q of %s is not a fixed string", name, m.Def.Name)
	}
	if len(v) > f.Len {
		return reliudperr.NewMessageError("fixed string %q.%s value too long: %d > %d", m.Def.Name, name, len(v), f.Len)
	}
	m.values[name] = v
	return nil
}

func (m *Message) SetVarString(name, v string) error {
	if err := m.mustType(name, FieldVarString); err != nil {
		return err
	}
	m.values[name] = v
	return nil
}

// Encode writes the 1-byte type id followed by each field in
// declaration order.
func (m *Message) Encode() ([]byte, error) {
	enc := NewEncoder()
	enc.WriteUint8(m.Def.TypeID)
	for _, f := range m.Def.Fields {
		switch f.Type {
		case FieldInt32:
			enc.WriteInt32(m.Int32(f.Name))
		case FieldUint16:
			enc.WriteUint16(m.Uint16(f.Name))
		case FieldUint8:
			enc.WriteUint8(m.Uint8(f.Name))
		case FieldFloat64:
			enc.WriteFloat64(m.Float64(f.Name))
		case FieldBool:
			enc.WriteBool(m.Bool(f.Name))
		case FieldFixedString:
			if err := enc.WriteFixedString(m.String(f.Name), f.Len); err != nil {
				return nil, err
			}
		case FieldVarString:
			if err := enc.WriteVarString(m.String(f.Name)); err != nil {
				return nil, err
			}
		default:
			return nil, reliudperr.NewMessageError("unsupported field type for %s.%s", m.Def.Name, f.Name)
		}
	}
	return enc.Bytes(), nil
}

// decodeBody reads this definition's fields (but not the type id,
// already consumed by the caller) from the cursor into a fresh
// Message.
func (d *Definition) decodeBody(cur *Cursor) (*Message, error) {
	m := d.New()
	for _, f := range d.Fields {
		switch f.Type {
		case FieldInt32:
			v, err := cur.ReadInt32()
			if err != nil {
				return nil, err
			}
			m.values[f.Name] = v
		case FieldUint16:
			v, err := cur.ReadUint16()
			if err != nil {
				return nil, err
			}
			m.values[f.Name] = v
		case FieldUint8:
			v, err := cur.ReadUint8()
			if err != nil {
				return nil, err
			}
			m.values[f.Name] = v
		case FieldFloat64:
			v, err := cur.ReadFloat64()
			if err != nil {
				return nil, err
			}
			m.values[f.Name] = v
		case FieldBool:
			v, err := cur.ReadBool()
			if err != nil {
				return nil, err
			}
			m.values[f.Name] = v
		case FieldFixedString:
			v, err := cur.ReadFixedString(f.Len)
			if err != nil {
				return nil, err
			}
			m.values[f.Name] = v
		case FieldVarString:
			v, err := cur.ReadVarString()
			if err != nil {
				return nil, err
			}
			m.values[f.Name] = v
		default:
			return nil, reliudperr.NewMessageError("unsupported field type for %s.%s", d.Name, f.Name)
		}
	}
	return m, nil
}
