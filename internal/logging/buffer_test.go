package logging

import "testing"

func TestRingBuffer_Wraps(t *testing.T) {
	rb := NewRingBuffer(3)
	for _, msg := range []string{"a", "b", "c", "d", "e"} {
		rb.Write(LogEntry{Message: msg})
	}

	entries := rb.ReadAll()
	if len(entries) != 3 {
		t.Fatalf("ReadAll() returned %d entries, want 3", len(entries))
	}
	for i, want := range []string{"c", "d", "e"} {
		if entries[i].Message != want {
			t.Errorf("entries[%d] = %q, want %q", i, entries[i].Message, want)
		}
		if entries[i].Seq != uint64(i+3) {
			t.Errorf("entries[%d].Seq = %d, want %d", i, entries[i].Seq, i+3)
		}
	}
}

func TestRingBuffer_ReadSince(t *testing.T) {
	rb := NewRingBuffer(10)
	for range 5 {
		rb.Write(LogEntry{})
	}

	if got := len(rb.ReadSince(3)); got != 2 {
		t.Errorf("ReadSince(3) returned %d entries, want 2", got)
	}
	if got := rb.ReadSince(5); got != nil {
		t.Errorf("ReadSince(5) = %v, want nil", got)
	}
	if rb.Count() != 5 {
		t.Errorf("Count() = %d, want 5", rb.Count())
	}
}

func TestRingBuffer_Empty(t *testing.T) {
	if got := NewRingBuffer(4).ReadAll(); got != nil {
		t.Errorf("ReadAll() on empty buffer = %v", got)
	}
}
