// Package mem implements the kernel's physical page allocator and
// kernel heap, adapted from the teacher's mem/mem.go and mem/dmap.go.
// The teacher's version is SMP-aware (per-CPU free lists, atomic
// refcounts, TLB-shootdown bookkeeping) because Biscuit runs on real
// multi-core hardware; this core is explicitly single-CPU, so the
// per-CPU free lists and refcounting collapse to one free list guarded
// by a plain mutex standing in for the interrupt-disable discipline,
// since nothing in this repository runs real interrupts concurrently
// with kernel code.
package mem

// PGSHIFT is the base-2 exponent of the page size.
const PGSHIFT uint = 12

// PGSIZE is the size of a single physical page in bytes.
const PGSIZE int = 1 << PGSHIFT

// PGOFFSET masks the in-page offset of an address.
const PGOFFSET Pa_t = Pa_t(PGSIZE - 1)

// PGMASK masks the page-frame number of an address.
const PGMASK Pa_t = ^PGOFFSET

// Page table entry flag bits.
const (
	PTE_P Pa_t = 1 << 0 /// present
	PTE_W Pa_t = 1 << 1 /// writable
	PTE_U Pa_t = 1 << 2 /// user-accessible
)

// PTE_ADDR extracts the frame-address bits of a PTE.
const PTE_ADDR Pa_t = PGMASK

// Pa_t is a physical address.
type Pa_t uintptr

// Pg_t is one physical page's worth of bytes.
type Pg_t [PGSIZE]uint8

// KernelWindowMB is the size, in megabytes, of the identity-mapped
// low range of every address space.
const KernelWindowMB = 8

// KernelWindowBytes is KernelWindowMB expressed in bytes.
const KernelWindowBytes = KernelWindowMB << 20
