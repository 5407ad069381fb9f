package mem

import (
	"sync"

	"github.com/nucleus-os/nucleus/klog"
)

// Physpg_t tracks one physical page frame's free-list linkage.
type Physpg_t struct {
	nexti uint32 /// index of next free page, or sentinel
}

const nilidx = ^uint32(0)

// Physmem_t is the system's physical page-frame allocator: a single
// free list over a RAM region this process owns on the host. A real
// kernel would own actual DRAM; here Ram stands in for it, and a
// Pa_t is simply a byte offset into Ram -- the "physical address"
// the rest of the core reasons about.
type Physmem_t struct {
	sync.Mutex
	Ram     []byte /// simulated physical RAM
	pgs     []Physpg_t
	freei   uint32
	freelen int
}

// NewPhysmem allocates a simulated RAM region of the given size
// (bytes, rounded down to a page multiple) and initializes every page
// as free.
func NewPhysmem(size int) *Physmem_t {
	npages := size / PGSIZE
	if npages == 0 {
		panic("physmem too small")
	}
	p := &Physmem_t{
		Ram: make([]byte, npages*PGSIZE),
		pgs: make([]Physpg_t, npages),
	}
	for i := 0; i < npages-1; i++ {
		p.pgs[i].nexti = uint32(i + 1)
	}
	p.pgs[npages-1].nexti = nilidx
	p.freei = 0
	p.freelen = npages
	return p
}

// NPages returns the total number of page frames managed.
func (p *Physmem_t) NPages() int {
	return len(p.pgs)
}

// Free reports how many page frames remain unallocated.
func (p *Physmem_t) Free() int {
	p.Lock()
	defer p.Unlock()
	return p.freelen
}

func (p *Physmem_t) pgn(pa Pa_t) int {
	return int(pa) / PGSIZE
}

// AllocPage removes one page frame from the free list, zeroes it, and
// returns its physical address. ok is false when physical memory is
// exhausted; callers decide whether that is recoverable or fatal.
func (p *Physmem_t) AllocPage() (Pa_t, bool) {
	p.Lock()
	defer p.Unlock()
	if p.freei == nilidx {
		return 0, false
	}
	idx := p.freei
	p.freei = p.pgs[idx].nexti
	p.freelen--
	pa := Pa_t(int(idx) * PGSIZE)
	b := p.Bytes(pa)
	for i := range b {
		b[i] = 0
	}
	return pa, true
}

// FreePage returns a page frame to the free list.
func (p *Physmem_t) FreePage(pa Pa_t) {
	p.Lock()
	defer p.Unlock()
	idx := uint32(p.pgn(pa))
	if int(idx) >= len(p.pgs) {
		panic("free of out-of-range physical address")
	}
	p.pgs[idx].nexti = p.freei
	p.freei = idx
	p.freelen++
}

// Bytes returns a page-sized slice of simulated RAM at the given
// physical address -- the stand-in for the direct map (teacher's
// mem.Dmap) that lets the kernel dereference a physical address
// without walking page tables.
func (p *Physmem_t) Bytes(pa Pa_t) []byte {
	off := int(pa)
	if off < 0 || off+PGSIZE > len(p.Ram) {
		klog.Printf("mem", "out-of-range physical address %#x", pa)
		panic("physical address out of range")
	}
	return p.Ram[off : off+PGSIZE]
}
