package ofdm

import "testing"

func TestRingBuffer_WrapsOldest(t *testing.T) {
	b := newRingBuffer(make([]complex128, 4))
	b.push([]complex128{1, 2})
	if b.len() != 2 || b.at(0) != 1 || b.at(1) != 2 {
		t.Fatalf("unexpected contents after partial fill")
	}
	b.push([]complex128{3, 4, 5, 6})
	if b.len() != 4 {
		t.Fatalf("length %d, want 4", b.len())
	}
	for i, want := range []complex128{3, 4, 5, 6} {
		if got := b.at(i); got != want {
			t.Errorf("at(%d) = %v, want %v", i, got, want)
		}
	}
	b.reset()
	if b.len() != 0 {
		t.Errorf("length after reset %d", b.len())
	}
}

func TestSegmentBuffer_ConsumesPrefix(t *testing.T) {
	b := newSegmentBuffer(make([]complex128, 3))
	if n := b.consume([]complex128{1, 2}); n != 2 {
		t.Fatalf("consumed %d, want 2", n)
	}
	if b.full() {
		t.Fatal("full too early")
	}
	if n := b.consume([]complex128{3, 4, 5}); n != 1 {
		t.Fatalf("consumed %d, want 1", n)
	}
	if !b.full() {
		t.Fatal("not full")
	}
	if b.data[0] != 1 || b.data[1] != 2 || b.data[2] != 3 {
		t.Fatalf("unexpected contents %v", b.data)
	}
	b.setLength(0)
	if b.full() {
		t.Fatal("full after reset")
	}
}

func TestFrameBuffer_SymbolViews(t *testing.T) {
	p, _ := ModeParams(ModeIII)
	data := make([]complex128, p.NumSymbols*p.SymbolLen+p.NullLen)
	b := newFrameBuffer(p, data)

	for i := range data {
		data[i] = complex(float64(i), 0)
	}
	b.length = len(data)

	if !b.full() {
		t.Fatal("not full")
	}
	sym := b.symbol(1)
	if len(sym) != p.SymbolLen || real(sym[0]) != float64(p.SymbolLen) {
		t.Fatalf("symbol 1 misplaced")
	}
	null := b.symbol(p.NumSymbols)
	if len(null) != p.NullLen {
		t.Fatalf("null length %d, want %d", len(null), p.NullLen)
	}
	if &null[0] != &b.nullSymbol()[0] {
		t.Fatal("null views disagree")
	}
}
