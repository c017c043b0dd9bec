package wire

import "testing"

func TestRegistryRejectsDuplicateID(t *testing.T) {
	r := NewRegistry()
	dup := &Definition{TypeID: BaseSystemTypeID, Name: "something_else"}
	if err := r.Add(dup); err == nil {
		t.Error("expected duplicate type id registration to fail")
	}
}

func TestRegistryRejectsDuplicateName(t *testing.T) {
	r := NewRegistry()
	dup := &Definition{TypeID: 77, Name: "ConnectRequest"}
	if err := r.Add(dup); err == nil {
		t.Error("expected duplicate name registration to fail")
	}
}

func TestRegistryResolvesBuiltins(t *testing.T) {
	r := NewRegistry()
	def, err := r.GetByID(BaseSystemTypeID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if def.Name != "ConnectRequest" {
		t.Errorf("expected ConnectRequest at id %d, got %s", BaseSystemTypeID, def.Name)
	}
	byName, err := r.GetByName("Pong")
	if err != nil {
		t.Fatalf("GetByName: %v", err)
	}
	if byName.TypeID != BaseSystemTypeID+8 {
		t.Errorf("expected Pong at id %d, got %d", BaseSystemTypeID+8, byName.TypeID)
	}
}

func TestIsA(t *testing.T) {
	r := NewRegistry()
	m := NewPing(1)
	if !r.IsA(m, "Ping") {
		t.Error("expected constructed Ping message to satisfy IsA(\"Ping\")")
	}
	if r.IsA(m, "Pong") {
		t.Error("did not expect a Ping message to satisfy IsA(\"Pong\")")
	}
}
