// Package fd implements the per-process descriptor table, adapted
// from the teacher's fd.go. The filesystem-specific Cwd_t the teacher
// carried alongside Fd_t is dropped: this core has no VFS, so a
// descriptor is nothing but a set of operations and
// permission bits.
package fd

import "github.com/nucleus-os/nucleus/defs"
import "github.com/nucleus-os/nucleus/fdops"

// Permission bits for an open descriptor.
const (
	FD_READ  = 0x1
	FD_WRITE = 0x2
)

// Fd_t represents one open file descriptor.
type Fd_t struct {
	Fops  fdops.Fdops_i /// descriptor operations; a reference, not a value
	Perms int           /// permission bits
}

// Copyfd duplicates an open file descriptor, reopening its underlying
// operations so both descriptors share the same resource correctly.
func Copyfd(f *Fd_t) (*Fd_t, defs.Err_t) {
	nfd := &Fd_t{}
	*nfd = *f
	if err := nfd.Fops.Reopen(); err != 0 {
		return nil, err
	}
	return nfd, 0
}

// ClosePanic closes f and panics if the close fails -- used where the
// caller has already established close cannot fail (e.g. releasing a
// descriptor this process exclusively owns during exit()).
func ClosePanic(f *Fd_t) {
	if f.Fops.Close() != 0 {
		panic("fd close must succeed")
	}
}

// Table_t is a process's fixed-size descriptor table. Slot 0 always
// means "unused"; valid descriptor numbers start at 1 so that a zero
// return value from an allocator unambiguously means failure.
type Table_t struct {
	slots []*Fd_t
}

// MkTable allocates an empty descriptor table of the given size.
func MkTable(size int) *Table_t {
	return &Table_t{slots: make([]*Fd_t, size)}
}

// Add installs f in the first free slot, returning its descriptor
// number or -1 if the table is full.
func (t *Table_t) Add(f *Fd_t) int {
	for i, s := range t.slots {
		if s == nil {
			t.slots[i] = f
			return i + 1
		}
	}
	return -1
}

// Get returns the descriptor installed at fdnum, or nil.
func (t *Table_t) Get(fdnum int) *Fd_t {
	if fdnum < 1 || fdnum > len(t.slots) {
		return nil
	}
	return t.slots[fdnum-1]
}

// Remove clears the slot at fdnum, returning the descriptor that was
// there (or nil).
func (t *Table_t) Remove(fdnum int) *Fd_t {
	if fdnum < 1 || fdnum > len(t.slots) {
		return nil
	}
	f := t.slots[fdnum-1]
	t.slots[fdnum-1] = nil
	return f
}

// Each calls f on every live descriptor and its number.
func (t *Table_t) Each(f func(num int, fd *Fd_t)) {
	for i, s := range t.slots {
		if s != nil {
			f(i+1, s)
		}
	}
}
