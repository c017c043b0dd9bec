package wire

import "testing"

func TestEncodeFrameThenParseDatagram(t *testing.T) {
	reg := NewRegistry()
	body, err := NewPing(42).Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	frame := EncodeFrame(FrameHeader{MessageID: 5, OrderedSequence: 0, Flags: FlagReliable}, body)

	messages, err := ParseDatagram(frame, reg)
	if err != nil {
		t.Fatalf("ParseDatagram: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	m := messages[0]
	if m.MessageID != 5 {
		t.Errorf("MessageID: got %d, want 5", m.MessageID)
	}
	if !m.IsReliable || m.IsOrdered {
		t.Errorf("flags: got reliable=%v ordered=%v, want reliable=true ordered=false", m.IsReliable, m.IsOrdered)
	}
	if m.Uint16("id") != 42 {
		t.Errorf("id field: got %d, want 42", m.Uint16("id"))
	}
}

func TestParseDatagramPacksMultipleMessages(t *testing.T) {
	reg := NewRegistry()
	pingBody, _ := NewPing(1).Encode()
	pongBody, _ := NewPong(2).Encode()

	var packed []byte
	packed = append(packed, EncodeFrame(FrameHeader{MessageID: 1}, pingBody)...)
	packed = append(packed, EncodeFrame(FrameHeader{MessageID: 2}, pongBody)...)

	messages, err := ParseDatagram(packed, reg)
	if err != nil {
		t.Fatalf("ParseDatagram: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages packed in one datagram, got %d", len(messages))
	}
	if messages[0].Def.Name != "Ping" || messages[1].Def.Name != "Pong" {
		t.Errorf("unexpected message order: %s, %s", messages[0].Def.Name, messages[1].Def.Name)
	}
}

func TestParseDatagramFailsWholeBatchOnTrailingGarbage(t *testing.T) {
	reg := NewRegistry()
	pingBody, _ := NewPing(1).Encode()
	packed := EncodeFrame(FrameHeader{MessageID: 1}, pingBody)
	packed = append(packed, 0xAA, 0xBB) // malformed trailing header fragment

	if _, err := ParseDatagram(packed, reg); err == nil {
		t.Error("expected a malformed trailing message to fail the whole datagram")
	}
}

func TestParseDatagramUnknownTypeIDFails(t *testing.T) {
	reg := NewRegistry()
	frame := EncodeFrame(FrameHeader{MessageID: 1}, []byte{250})
	if _, err := ParseDatagram(frame, reg); err == nil {
		t.Error("expected an unregistered type id to fail parsing")
	}
}

func BenchmarkEncodeFrame(b *testing.B) {
	body, _ := NewPing(1).Encode()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = EncodeFrame(FrameHeader{MessageID: uint16(i)}, body)
	}
}

func BenchmarkParseDatagram(b *testing.B) {
	reg := NewRegistry()
	body, _ := NewPing(1).Encode()
	frame := EncodeFrame(FrameHeader{MessageID: 1}, body)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = ParseDatagram(frame, reg)
	}
}
