package mem

import "testing"

func TestAllocPageZeroesAndTracksFreeCount(t *testing.T) {
	p := NewPhysmem(4 * PGSIZE)
	if got := p.Free(); got != 4 {
		t.Fatalf("expected 4 free pages, got %d", got)
	}

	pa, ok := p.AllocPage()
	if !ok {
		t.Fatal("expected allocation to succeed")
	}
	if p.Free() != 3 {
		t.Fatalf("expected 3 free pages after one alloc, got %d", p.Free())
	}
	for _, b := range p.Bytes(pa) {
		if b != 0 {
			t.Fatal("expected freshly allocated page to be zeroed")
		}
	}
}

func TestFreePageReturnsFrameToFreeList(t *testing.T) {
	p := NewPhysmem(2 * PGSIZE)
	pa, _ := p.AllocPage()
	p.FreePage(pa)
	if got := p.Free(); got != 2 {
		t.Fatalf("expected both pages free after FreePage, got %d", got)
	}

	pa2, ok := p.AllocPage()
	if !ok || pa2 != pa {
		t.Fatalf("expected the freed frame to be reused first, got pa=%#x ok=%v", pa2, ok)
	}
}

func TestAllocPageFailsOnExhaustion(t *testing.T) {
	p := NewPhysmem(2 * PGSIZE)
	p.AllocPage()
	p.AllocPage()
	if _, ok := p.AllocPage(); ok {
		t.Fatal("expected allocation to fail once physical memory is exhausted")
	}
}

func TestFreePageOutOfRangePanics(t *testing.T) {
	p := NewPhysmem(PGSIZE)
	defer func() {
		if recover() == nil {
			t.Fatal("expected FreePage of an out-of-range address to panic")
		}
	}()
	p.FreePage(Pa_t(100 * PGSIZE))
}

func TestBytesOutOfRangePanics(t *testing.T) {
	p := NewPhysmem(PGSIZE)
	defer func() {
		if recover() == nil {
			t.Fatal("expected Bytes on an out-of-range address to panic")
		}
	}()
	p.Bytes(Pa_t(100 * PGSIZE))
}
