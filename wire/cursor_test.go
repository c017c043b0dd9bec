package wire

import "testing"

func TestCursorReadWriteRoundTrip(t *testing.T) {
	enc := NewEncoder()
	enc.WriteUint8(0x42)
	enc.WriteUint16(1234)
	enc.WriteInt32(-567890)
	enc.WriteFloat64(3.25)
	enc.WriteBool(true)
	if err := enc.WriteFixedString("hi", 8); err != nil {
		t.Fatalf("WriteFixedString: %v", err)
	}
	if err := enc.WriteVarString("hello world"); err != nil {
		t.Fatalf("WriteVarString: %v", err)
	}

	cur := NewCursor(enc.Bytes())

	u8, err := cur.ReadUint8()
	if err != nil || u8 != 0x42 {
		t.Errorf("ReadUint8: got (%v, %v), want (0x42, nil)", u8, err)
	}
	u16, err := cur.ReadUint16()
	if err != nil || u16 != 1234 {
		t.Errorf("ReadUint16: got (%v, %v), want (1234, nil)", u16, err)
	}
	i32, err := cur.ReadInt32()
	if err != nil || i32 != -567890 {
		t.Errorf("ReadInt32: got (%v, %v), want (-567890, nil)", i32, err)
	}
	f64, err := cur.ReadFloat64()
	if err != nil || f64 != 3.25 {
		t.Errorf("ReadFloat64: got (%v, %v), want (3.25, nil)", f64, err)
	}
	bl, err := cur.ReadBool()
	if err != nil || !bl {
		t.Errorf("ReadBool: got (%v, %v), want (true, nil)", bl, err)
	}
	fs, err := cur.ReadFixedString(8)
	if err != nil || fs != "hi" {
		t.Errorf("ReadFixedString: got (%q, %v), want (\"hi\", nil)", fs, err)
	}
	vs, err := cur.ReadVarString()
	if err != nil || vs != "hello world" {
		t.Errorf("ReadVarString: got (%q, %v), want (\"hello world\", nil)", vs, err)
	}
	if !cur.IsEmpty() {
		t.Errorf("expected cursor to be fully consumed, %d bytes remain", cur.Remaining())
	}
}

func TestCursorUnderflowReturnsBufferError(t *testing.T) {
	cur := NewCursor([]byte{0x01})
	if _, err := cur.ReadUint16(); err == nil {
		t.Error("expected buffer underflow error reading 2 bytes from a 1-byte buffer")
	}
}

func TestFixedStringTooLongRejected(t *testing.T) {
	enc := NewEncoder()
	if err := enc.WriteFixedString("too long for four", 4); err == nil {
		t.Error("expected error writing an oversize fixed string")
	}
}

func BenchmarkCursorReadUint16(b *testing.B) {
	data := []byte{0x01, 0x02}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cur := NewCursor(data)
		_, _ = cur.ReadUint16()
	}
}
