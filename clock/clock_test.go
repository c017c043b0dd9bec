package clock

import (
	"testing"
	"time"
)

func TestManualAdvanceAndSet(t *testing.T) {
	start := time.Unix(1000, 0)
	m := NewManual(start)
	if !m.Now().Equal(start) {
		t.Fatalf("Now: got %v, want %v", m.Now(), start)
	}

	m.Advance(5 * time.Second)
	want := start.Add(5 * time.Second)
	if !m.Now().Equal(want) {
		t.Errorf("after Advance: got %v, want %v", m.Now(), want)
	}

	pinned := time.Unix(2000, 0)
	m.Set(pinned)
	if !m.Now().Equal(pinned) {
		t.Errorf("after Set: got %v, want %v", m.Now(), pinned)
	}
}
