package mem

import (
	"unsafe"

	"github.com/nucleus-os/nucleus/klog"
	"github.com/nucleus-os/nucleus/util"
)

// heapMagic marks a live block header; any other value on Free means
// the header is corrupted -- a kernel-fatal condition.
const heapMagic uint32 = 0xc0ffee15

// blkhdr_t is the header prefixing every heap block:
// { size_including_header, free_flag, magic }. Blocks are laid out
// contiguously in the heap's backing buffer, so "next" in the sense of
// the single address-sorted free list is implicit: walking by size
// from offset 0 visits every block, free or not, in address order.
type blkhdr_t struct {
	size  int64
	free  int64
	magic uint32
	_pad  uint32
}

const hdrsize = int(unsafe.Sizeof(blkhdr_t{}))

// minSplitPayload is the smallest trailing payload worth splitting off
// into its own free block; a smaller remainder isn't worth the header
// overhead of a standalone block.
const minSplitPayload = 16

// Heap_t is a first-fit, coalescing block allocator over a fixed
// contiguous byte range within the kernel window.
type Heap_t struct {
	buf  []byte
	base uintptr /// virtual address corresponding to buf[0], for Ptr arithmetic
}

// NewHeap carves a heap of the given size out of buf, starting at the
// given base virtual address. The whole range starts as one free
// block.
func NewHeap(buf []byte, base uintptr) *Heap_t {
	if len(buf) < hdrsize {
		panic("heap too small")
	}
	h := &Heap_t{buf: buf, base: base}
	h.hdrAt(0).size = int64(len(buf))
	h.hdrAt(0).free = 1
	h.hdrAt(0).magic = heapMagic
	return h
}

func (h *Heap_t) hdrAt(off int) *blkhdr_t {
	return (*blkhdr_t)(unsafe.Pointer(&h.buf[off]))
}

func (h *Heap_t) ptrToOff(p uintptr) int {
	return int(p - h.base)
}

func (h *Heap_t) offToPtr(off int) uintptr {
	return h.base + uintptr(off)
}

// Alloc returns a pointer to a payload of at least size bytes, or 0
// if the heap has no block large enough. size is rounded up to a
// machine word so every payload starts word-aligned.
func (h *Heap_t) Alloc(size int) uintptr {
	if size <= 0 {
		panic("bad alloc size")
	}
	size = util.Roundup(size, int(unsafe.Sizeof(uintptr(0))))
	need := size + hdrsize

	off := 0
	for off < len(h.buf) {
		hdr := h.hdrAt(off)
		if hdr.magic != heapMagic {
			panic("corrupted heap header")
		}
		blksz := int(hdr.size)
		if hdr.free != 0 && blksz >= need {
			h.allocateBlock(off, blksz, need)
			return h.offToPtr(off + hdrsize)
		}
		off += blksz
	}
	return 0
}

func (h *Heap_t) allocateBlock(off, blksz, need int) {
	rem := blksz - need
	if rem >= hdrsize+minSplitPayload {
		h.hdrAt(off).size = int64(need)
		nh := h.hdrAt(off + need)
		nh.size = int64(rem)
		nh.free = 1
		nh.magic = heapMagic
	}
	h.hdrAt(off).free = 0
}

// Free releases a pointer previously returned by Alloc. A corrupted
// header (bad magic) is kernel-fatal; a double-free is logged and
// ignored, never crashing.
func (h *Heap_t) Free(p uintptr) {
	off := h.ptrToOff(p) - hdrsize
	if off < 0 || off >= len(h.buf) {
		panic("free of out-of-range pointer")
	}
	hdr := h.hdrAt(off)
	if hdr.magic != heapMagic {
		panic("corrupted heap header")
	}
	if hdr.free != 0 {
		klog.Printf("heap", "double free at offset %d", off)
		return
	}
	hdr.free = 1
	h.coalesce()
}

// SizeOf returns the usable payload size of a live allocation.
func (h *Heap_t) SizeOf(p uintptr) int {
	off := h.ptrToOff(p) - hdrsize
	hdr := h.hdrAt(off)
	if hdr.magic != heapMagic {
		panic("corrupted heap header")
	}
	return int(hdr.size) - hdrsize
}

// coalesce performs a single left-to-right pass merging adjacent free
// blocks, keeping fragmentation from accumulating across repeated
// alloc/free cycles.
func (h *Heap_t) coalesce() {
	off := 0
	for off < len(h.buf) {
		hdr := h.hdrAt(off)
		if hdr.free == 0 {
			off += int(hdr.size)
			continue
		}
		for off+int(hdr.size) < len(h.buf) {
			nh := h.hdrAt(off + int(hdr.size))
			if nh.magic != heapMagic {
				panic("corrupted heap header")
			}
			if nh.free == 0 {
				break
			}
			hdr.size += nh.size
		}
		off += int(hdr.size)
	}
}

// alignedHdr_t precedes the payload returned by AlignedAlloc, storing
// the offset back to the real allocation. The teacher's own aligned
// allocator instead leaks the unaligned prefix as unreclaimable slack;
// this hidden-offset-word approach is used here instead since it keeps
// SizeOf/Free trivially composable with the rest of the allocator.
type alignedHdr_t struct {
	realOff int64
}

// AlignedAlloc returns a pointer aligned to align bytes (a power of
// two) within a block of at least size bytes.
func (h *Heap_t) AlignedAlloc(size, align int) uintptr {
	if align&(align-1) != 0 || align <= 0 {
		panic("alignment must be a power of two")
	}
	extra := int(unsafe.Sizeof(alignedHdr_t{}))
	raw := h.Alloc(size + align - 1 + extra)
	if raw == 0 {
		return 0
	}
	payload := raw + uintptr(extra)
	aligned := (payload + uintptr(align-1)) &^ uintptr(align-1)
	hdr := (*alignedHdr_t)(unsafe.Pointer(&h.buf[h.ptrToOff(aligned)-extra]))
	hdr.realOff = int64(raw - h.base)
	return aligned
}

// FreeAligned releases a pointer returned by AlignedAlloc.
func (h *Heap_t) FreeAligned(p uintptr) {
	extra := int(unsafe.Sizeof(alignedHdr_t{}))
	hdr := (*alignedHdr_t)(unsafe.Pointer(&h.buf[h.ptrToOff(p)-extra]))
	h.Free(h.offToPtr(int(hdr.realOff)))
}
