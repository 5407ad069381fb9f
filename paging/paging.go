// Package paging builds, clones, switches, and edits per-process page
// directories over an identity-mapped kernel window. The teacher's own
// paging code (biscuit's vm/as.go, mem/dmap.go) targets x86-64's
// 4-level recursive-mapped page tables; this package adapts the same
// pmap_walk/page_insert shape the teacher uses down to a 32-bit,
// 2-level, single-CPU model: a directory of 1024 4-byte PDEs, each
// either absent or pointing at a 1024-entry page table of 4-byte PTEs
// -- the real x86 non-PAE layout.
package paging

import (
	"unsafe"

	"github.com/nucleus-os/nucleus/defs"
	"github.com/nucleus-os/nucleus/klog"
	"github.com/nucleus-os/nucleus/mem"
)

// Table is one page directory or page table: 1024 entries of 4 bytes
// each, matching the 4096-byte page size exactly.
type Table [1024]uint32

const entriesPerTable = 1024
const bytesPerPDE = entriesPerTable * mem.PGSIZE // 4MB mapped per PDE

// Entry flag bits (mirrors mem.PTE_P/W/U but as the on-disk uint32
// width real PDEs/PTEs use).
const (
	fP uint32 = 1 << 0
	fW uint32 = 1 << 1
	fU uint32 = 1 << 2
)

// Flags is the caller-facing permission set for Map.
type Flags uint32

const (
	Present Flags = Flags(fP)
	Write   Flags = Flags(fW)
	User    Flags = Flags(fU)
)

// Directory_t is one process's (or the kernel's) page directory.
type Directory_t struct {
	pd       mem.Pa_t
	isKernel bool
}

// Paging_t is the system's paging controller: the kernel directory,
// the currently-loaded directory, and the physical allocator backing
// every page table frame.
type Paging_t struct {
	phys        *mem.Physmem_t
	windowBytes int
	Kernel      *Directory_t
	current     *Directory_t
}

// Init builds the kernel directory and identity-maps the kernel
// window.
func Init(phys *mem.Physmem_t, windowBytes int) *Paging_t {
	if windowBytes < 8<<20 {
		panic("kernel window must be at least 8MB")
	}
	pg := &Paging_t{phys: phys, windowBytes: windowBytes}
	pa, ok := phys.AllocPage()
	if !ok {
		panic("out of memory building kernel directory")
	}
	pg.Kernel = &Directory_t{pd: pa, isKernel: true}
	pg.current = pg.Kernel
	for va := 0; va < windowBytes; va += mem.PGSIZE {
		pg.mapLeaf(pg.Kernel, va, mem.Pa_t(va), fP|fW, true)
	}
	return pg
}

// Enable loads the current directory and marks paging active. In this
// hosted simulation there is no CR0 paging bit to flip; Enable exists
// so callers mirror the teacher's init sequence (build, then enable).
func (pg *Paging_t) Enable() {
	klog.Printf("paging", "paging enabled, kernel window = %d bytes", pg.windowBytes)
}

func (pg *Paging_t) table(pa mem.Pa_t) *Table {
	b := pg.phys.Bytes(pa)
	return (*Table)(unsafe.Pointer(&b[0]))
}

func split(virt int) (pdeIdx, pteIdx int) {
	return (virt >> 22) & 0x3ff, (virt >> 12) & 0x3ff
}

// CreateDirectory allocates a new directory and shallow-copies every
// present kernel-window entry from the kernel directory into it, so
// the two directories share the underlying page-table frames for the
// kernel window, which must be mapped identically in every live page
// directory.
func (pg *Paging_t) CreateDirectory() *Directory_t {
	pa, ok := pg.phys.AllocPage()
	if !ok {
		return nil
	}
	d := &Directory_t{pd: pa}
	kt := pg.table(pg.Kernel.pd)
	dt := pg.table(pa)
	nkpde := pg.windowBytes / bytesPerPDE
	for i := 0; i < nkpde; i++ {
		dt[i] = kt[i]
	}
	return d
}

// DestroyDirectory frees every non-kernel-window page table and then
// the directory page itself. It refuses to destroy the kernel
// directory -- a programming-contract violation, not a recoverable
// error.
func (pg *Paging_t) DestroyDirectory(d *Directory_t) {
	if d.isKernel {
		panic("refusing to destroy the kernel directory")
	}
	dt := pg.table(d.pd)
	nkpde := pg.windowBytes / bytesPerPDE
	for i := nkpde; i < entriesPerTable; i++ {
		if dt[i]&fP != 0 {
			pg.phys.FreePage(mem.Pa_t(dt[i] &^ 0xfff))
		}
	}
	pg.phys.FreePage(d.pd)
}

func (pg *Paging_t) isKernelWindow(virt int) bool {
	return virt >= 0 && virt < pg.windowBytes
}

// mapLeaf installs the leaf PTE for virt, allocating a page table on
// demand if the covering PDE is absent. fatal controls whether
// allocation failure panics (kernel window) or is reported to the
// caller (process-owned regions).
func (pg *Paging_t) mapLeaf(d *Directory_t, virt int, phys mem.Pa_t, flags uint32, fatal bool) defs.Err_t {
	pdeIdx, pteIdx := split(virt)
	dt := pg.table(d.pd)
	if dt[pdeIdx]&fP == 0 {
		ptpa, ok := pg.phys.AllocPage()
		if !ok {
			if fatal {
				panic("out of memory allocating page table in kernel window")
			}
			return -defs.ENOMEM
		}
		dt[pdeIdx] = uint32(ptpa) | fP | fW | (flags & fU)
	} else if flags&fU != 0 {
		dt[pdeIdx] |= fU
	}
	pt := pg.table(mem.Pa_t(dt[pdeIdx] &^ 0xfff))
	pt[pteIdx] = uint32(phys) | flags | fP
	if d == pg.current {
		pg.invalidate(virt)
	}
	return 0
}

// Map installs a mapping from virt to phys in directory d with the
// given flags.
func (pg *Paging_t) Map(d *Directory_t, virt int, phys mem.Pa_t, flags Flags) defs.Err_t {
	fatal := pg.isKernelWindow(virt)
	return pg.mapLeaf(d, virt, phys, uint32(flags), fatal)
}

// Unmap clears the leaf entry for virt. Unmapping an already-absent
// address is a no-op.
func (pg *Paging_t) Unmap(d *Directory_t, virt int) {
	pdeIdx, pteIdx := split(virt)
	dt := pg.table(d.pd)
	if dt[pdeIdx]&fP == 0 {
		return
	}
	pt := pg.table(mem.Pa_t(dt[pdeIdx] &^ 0xfff))
	if pt[pteIdx]&fP == 0 {
		return
	}
	pt[pteIdx] = 0
	if d == pg.current {
		pg.invalidate(virt)
	}
}

// Translate walks the two page-table levels and returns the physical
// address for virt, or (0, false) if any level is absent.
func (pg *Paging_t) Translate(d *Directory_t, virt int) (mem.Pa_t, bool) {
	pdeIdx, pteIdx := split(virt)
	dt := pg.table(d.pd)
	if dt[pdeIdx]&fP == 0 {
		return 0, false
	}
	pt := pg.table(mem.Pa_t(dt[pdeIdx] &^ 0xfff))
	if pt[pteIdx]&fP == 0 {
		return 0, false
	}
	phys := mem.Pa_t(pt[pteIdx]&^0xfff) | mem.Pa_t(virt&int(mem.PGOFFSET))
	return phys, true
}

// SwitchTo loads d as the active directory. The kernel window
// guarantees the kernel remains addressable across the switch.
func (pg *Paging_t) SwitchTo(d *Directory_t) {
	pg.current = d
}

// Current returns the currently-loaded directory.
func (pg *Paging_t) Current() *Directory_t {
	return pg.current
}

// EachUserPage calls fn for every present leaf mapping in d outside
// the kernel window, in address order. Callers (proc.Exit) use this
// to reclaim a process's data-page physical frames before tearing
// down its page tables with DestroyDirectory, since DestroyDirectory
// itself only reclaims page-table frames, never the leaf data pages
// they point at.
func (pg *Paging_t) EachUserPage(d *Directory_t, fn func(virt int, phys mem.Pa_t)) {
	dt := pg.table(d.pd)
	nkpde := pg.windowBytes / bytesPerPDE
	for pdeIdx := nkpde; pdeIdx < entriesPerTable; pdeIdx++ {
		if dt[pdeIdx]&fP == 0 {
			continue
		}
		pt := pg.table(mem.Pa_t(dt[pdeIdx] &^ 0xfff))
		for pteIdx := 0; pteIdx < entriesPerTable; pteIdx++ {
			if pt[pteIdx]&fP == 0 {
				continue
			}
			virt := pdeIdx<<22 | pteIdx<<12
			fn(virt, mem.Pa_t(pt[pteIdx]&^0xfff))
		}
	}
}

func (pg *Paging_t) invalidate(virt int) {
	// A real core would execute invlpg here. This hosted simulation has
	// no MMU to invalidate; logging at debug volume would be noise on
	// every single-page map, so this is intentionally silent.
}
