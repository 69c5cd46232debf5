package audio

import "testing"

func TestChunkBuffer_AppendAndDrain(t *testing.T) {
	b := NewChunkBuffer(100)

	if dropped := b.Append([]int16{1, 2, 3}); dropped != 0 {
		t.Errorf("expected no drops under capacity, got %d", dropped)
	}
	b.Append([]int16{4, 5})
	if b.Len() != 5 {
		t.Errorf("expected 5 buffered samples, got %d", b.Len())
	}

	out := b.Drain()
	want := []int16{1, 2, 3, 4, 5}
	if len(out) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(out))
	}
	for i, s := range want {
		if out[i] != s {
			t.Errorf("sample %d: expected %d, got %d", i, s, out[i])
		}
	}
	if b.Len() != 0 {
		t.Errorf("expected empty buffer after drain, got %d samples", b.Len())
	}
}

func TestChunkBuffer_OverflowKeepsTail(t *testing.T) {
	b := NewChunkBuffer(4)
	b.Append([]int16{1, 2, 3})

	if dropped := b.Append([]int16{4, 5}); dropped != 1 {
		t.Errorf("expected 1 dropped sample, got %d", dropped)
	}

	out := b.Drain()
	want := []int16{2, 3, 4, 5}
	for i, s := range want {
		if out[i] != s {
			t.Errorf("sample %d: expected %d, got %d", i, s, out[i])
		}
	}
	if b.Dropped() != 1 {
		t.Errorf("expected dropped counter 1, got %d", b.Dropped())
	}
}

func TestChunkBuffer_OversizedAppendKeepsItsOwnTail(t *testing.T) {
	b := NewChunkBuffer(3)
	b.Append([]int16{9})

	if dropped := b.Append([]int16{1, 2, 3, 4, 5}); dropped != 3 {
		t.Errorf("expected 3 dropped samples, got %d", dropped)
	}

	out := b.Drain()
	want := []int16{3, 4, 5}
	for i, s := range want {
		if out[i] != s {
			t.Errorf("sample %d: expected %d, got %d", i, s, out[i])
		}
	}
}

func TestChunkBuffer_Reset(t *testing.T) {
	b := NewChunkBuffer(10)
	b.Append([]int16{1, 2, 3})
	b.Reset()
	if b.Len() != 0 {
		t.Errorf("expected empty buffer after reset, got %d samples", b.Len())
	}
}
