// Package proc implements the process table and the PCB lifecycle
// operations: create, fork, exit, wait, kill. It is
// grounded on the teacher's Vm_t/Physmem_t singleton pattern
// (biscuit/src/vm/as.go, mem/mem.go): one Table_t instance owns every
// PCB. Table_t holds no lock of its own.
package proc

import (
	"github.com/nucleus-os/nucleus/accnt"
	"github.com/nucleus-os/nucleus/defs"
	"github.com/nucleus-os/nucleus/fd"
	"github.com/nucleus-os/nucleus/limits"
	"github.com/nucleus-os/nucleus/mem"
	"github.com/nucleus-os/nucleus/paging"
	"github.com/nucleus-os/nucleus/signal"
	"github.com/nucleus-os/nucleus/ustr"
	"github.com/nucleus-os/nucleus/util"
	"github.com/nucleus-os/nucleus/vmarena"
)

// State_t is a PCB's lifecycle state.
type State_t int

const (
	Unused State_t = iota
	Ready
	Running
	Blocked
	Zombie
)

func (s State_t) String() string {
	switch s {
	case Unused:
		return "Unused"
	case Ready:
		return "Ready"
	case Running:
		return "Running"
	case Blocked:
		return "Blocked"
	case Zombie:
		return "Zombie"
	default:
		return "State_t(?)"
	}
}

// Per-process virtual address layout constants.
const (
	CodeBase  = 0x08048000
	RodataBase = 0x08050000
	DataBase  = 0x08060000
	BssBase   = 0x08070000
	HeapBase  = 0x08080000

	UserStackTop  = 0x10000000
	UserStackMax  = 64 * 1024

	MmapArenaBase = 0x20000000
	MmapArenaSize = 64 << 20

	// InitPid is the process children are reparented to on exit when
	// they have no living parent to return to.
	InitPid = defs.Pid_t(1)
)

// Context_t is a process's saved register set, written by the
// scheduler on every context switch and by fork()/the trap handler
// when transcribing a trap frame.
type Context_t struct {
	Eax, Ebx, Ecx, Edx int
	Esi, Edi, Ebp, Esp int
	Eip                int
	Eflags             int
}

// Pcb_t is one process's control block.
type Pcb_t struct {
	Pid   defs.Pid_t
	Ppid  defs.Pid_t
	Uid   defs.Uid_t
	Name  ustr.Ustr
	State State_t

	ExitCode int
	Reaped   bool // exit_code has been read exactly once

	Dir *paging.Directory_t

	KStack    int
	UStackTop int
	BrkStart  int
	BrkCur    int

	Mmap *vmarena.Arena_t

	Children []defs.Pid_t

	Pending     signal.Pending_t
	Dispositions signal.Table_t

	Ctx Context_t

	Acc accnt.Accnt_t
	Fds *fd.Table_t
}

// Table_t is the fixed-size process table, indexed by pid. Slot 0 is
// never allocated: PID 0 is reserved for the idle/kernel
// pseudo-process.
type Table_t struct {
	slots   []Pcb_t
	phys    *mem.Physmem_t
	pg      *paging.Paging_t
	heap    *mem.Heap_t
	limits  *limits.Syslimit_t

	// OnReady is invoked whenever a PCB transitions to Ready: at
	// creation, when exit() wakes a Blocked parent, and when kill()
	// wakes a Blocked target. Package sched wires this to push the
	// PCB onto the ready queue, keeping proc free of a dependency on
	// sched.
	OnReady func(*Pcb_t)
}

// NewTable allocates a process table of the configured size.
func NewTable(phys *mem.Physmem_t, pg *paging.Paging_t, heap *mem.Heap_t, lim *limits.Syslimit_t) *Table_t {
	return &Table_t{
		slots:  make([]Pcb_t, lim.MaxProcs),
		phys:   phys,
		pg:     pg,
		heap:   heap,
		limits: lim,
	}
}

func (t *Table_t) notifyReady(p *Pcb_t) {
	if t.OnReady != nil {
		t.OnReady(p)
	}
}

// Requeue wakes a Blocked p with no event left to resume it (e.g. a
// wait() poll that found no zombie child), the same way Exit and Kill
// wake a Blocked parent or signal target.
func (t *Table_t) Requeue(p *Pcb_t) {
	p.State = Ready
	t.notifyReady(p)
}

// allocSlot scans for the lowest Unused slot starting at pid 1,
// returning the slot and its pid, or nil if the table is full.
func (t *Table_t) allocSlot() (*Pcb_t, defs.Pid_t) {
	for i := 1; i < len(t.slots); i++ {
		if t.slots[i].State == Unused {
			return &t.slots[i], defs.Pid_t(i)
		}
	}
	return nil, 0
}

// Find returns the PCB for pid, or nil if it is not live.
func (t *Table_t) Find(pid defs.Pid_t) *Pcb_t {
	if pid <= 0 || int(pid) >= len(t.slots) {
		return nil
	}
	p := &t.slots[pid]
	if p.State == Unused {
		return nil
	}
	return p
}

// Snapshot returns every live PCB, in pid order, for tooling that needs
// to walk the whole table (spec's pstree-style dump; no teacher
// equivalent exists verbatim, since biscuit has no userspace ps/pstree
// tool of its own -- this mirrors how proc.Find already exposes a
// single slot, generalized to "every occupied slot").
func (t *Table_t) Snapshot() []*Pcb_t {
	out := make([]*Pcb_t, 0, len(t.slots))
	for i := range t.slots {
		if t.slots[i].State != Unused {
			out = append(out, &t.slots[i])
		}
	}
	return out
}

func (t *Table_t) buildAddressSpace(p *Pcb_t) defs.Err_t {
	p.Dir = t.pg.CreateDirectory()
	if p.Dir == nil {
		return -defs.ENOMEM
	}
	p.Mmap = vmarena.NewArena(MmapArenaBase, MmapArenaSize, t.heap, t.pg)

	kstackHeapPage := t.heap.AlignedAlloc(mem.PGSIZE, mem.PGSIZE)
	if kstackHeapPage == 0 {
		t.pg.DestroyDirectory(p.Dir)
		p.Dir = nil
		return -defs.ENOMEM
	}
	// The kernel stack lives in the kernel window already (it is
	// backed by a heap page, which is itself identity-mapped), so no
	// extra mapping step is required: its virtual address doubles as
	// its own physical address inside the window.
	p.KStack = int(kstackHeapPage) + mem.PGSIZE

	for _, region := range []struct {
		base  int
		flags paging.Flags
	}{
		{CodeBase, paging.Present | paging.User},
		{RodataBase, paging.Present | paging.User},
		{DataBase, paging.Present | paging.Write | paging.User},
		{BssBase, paging.Present | paging.Write | paging.User},
	} {
		pa, ok := t.phys.AllocPage()
		if !ok {
			t.teardownPartial(p)
			return -defs.ENOMEM
		}
		t.pg.Map(p.Dir, region.base, pa, region.flags)
	}
	p.BrkStart = HeapBase
	p.BrkCur = HeapBase

	p.UStackTop = UserStackTop
	spa, ok := t.phys.AllocPage()
	if !ok {
		t.teardownPartial(p)
		return -defs.ENOMEM
	}
	t.pg.Map(p.Dir, UserStackTop-mem.PGSIZE, spa, paging.Present|paging.Write|paging.User)
	return 0
}

// teardownPartial reclaims every resource buildAddressSpace had
// already allocated for p before hitting an exhaustion error midway,
// so a failed create()/fork() never leaks physical frames or the
// process directory, leaving the child slot Unused with no partial
// resources surviving the failure.
func (t *Table_t) teardownPartial(p *Pcb_t) {
	t.pg.EachUserPage(p.Dir, func(_ int, phys mem.Pa_t) { t.phys.FreePage(phys) })
	t.pg.DestroyDirectory(p.Dir)
	p.Dir = nil
	if p.KStack != 0 {
		t.heap.FreeAligned(uintptr(p.KStack - mem.PGSIZE))
	}
}

// Create builds a brand-new process.
func (t *Table_t) Create(entry int, uid defs.Uid_t) (*Pcb_t, defs.Err_t) {
	p, pid := t.allocSlot()
	if p == nil {
		return nil, -defs.EAGAIN
	}
	*p = Pcb_t{Pid: pid, Uid: uid, Fds: fd.MkTable(32)}
	if err := t.buildAddressSpace(p); err != 0 {
		*p = Pcb_t{}
		return nil, err
	}
	p.Ctx.Eip = entry
	p.Ctx.Esp = UserStackTop - 4
	p.Ctx.Eflags = 1 << 9 // interrupt-enable flag set
	p.State = Ready
	t.notifyReady(p)
	return p, 0
}

// Fork clones parent into a freshly allocated child. The order pinned
// here -- allocate slot, clone address space, copy scalar fields,
// reset child-specific collections, link into parent, then fix up
// contexts -- follows original_source/src/process_fork.c's sequence.
func (t *Table_t) Fork(parent *Pcb_t) (*Pcb_t, defs.Err_t) {
	child, childPid := t.allocSlot()
	if child == nil {
		return nil, -defs.EAGAIN
	}

	childDir := t.pg.CreateDirectory()
	if childDir == nil {
		*child = Pcb_t{}
		return nil, -defs.ENOMEM
	}
	if err := t.cloneUserPages(parent.Dir, childDir); err != 0 {
		t.pg.EachUserPage(childDir, func(_ int, phys mem.Pa_t) { t.phys.FreePage(phys) })
		t.pg.DestroyDirectory(childDir)
		*child = Pcb_t{}
		return nil, err
	}

	*child = Pcb_t{
		Pid:          childPid,
		Ppid:         parent.Pid,
		Uid:          parent.Uid,
		Name:         parent.Name,
		Dir:          childDir,
		Mmap:         vmarena.NewArena(MmapArenaBase, MmapArenaSize, t.heap, t.pg),
		BrkStart:     parent.BrkStart,
		BrkCur:       parent.BrkCur,
		UStackTop:    parent.UStackTop,
		Dispositions: parent.Dispositions,
		Fds:          fd.MkTable(32),
	}

	kstackHeapPage := t.heap.AlignedAlloc(mem.PGSIZE, mem.PGSIZE)
	if kstackHeapPage == 0 {
		t.pg.EachUserPage(childDir, func(_ int, phys mem.Pa_t) { t.phys.FreePage(phys) })
		t.pg.DestroyDirectory(childDir)
		*child = Pcb_t{}
		return nil, -defs.ENOMEM
	}
	child.KStack = int(kstackHeapPage) + mem.PGSIZE

	parent.Children = append(parent.Children, childPid)

	child.Ctx = parent.Ctx
	child.Ctx.Eax = 0 // child sees fork() return 0

	child.State = Ready
	t.notifyReady(child)
	return child, 0
}

// cloneUserPages copies every process-owned (non-kernel-window)
// mapped page from src into dst, allocating a fresh physical frame
// per page -- this clone is not copy-on-write.
func (t *Table_t) cloneUserPages(src, dst *paging.Directory_t) defs.Err_t {
	var failed defs.Err_t
	t.pg.EachUserPage(src, func(virt int, phys mem.Pa_t) {
		if failed != 0 {
			return
		}
		npa, ok := t.phys.AllocPage()
		if !ok {
			failed = -defs.ENOMEM
			return
		}
		copy(t.phys.Bytes(npa), t.phys.Bytes(phys))
		// R+W+U is a simplification: the reference layout's exact
		// per-region flags aren't recoverable by walking only PTE
		// present bits, and no invariant in this core depends on
		// cloned pages losing their original permissions.
		t.pg.Map(dst, virt, npa, paging.Present|paging.Write|paging.User)
	})
	return failed
}

// Exit tears down p's resources and marks it Zombie for the parent to
// reap. The scheduler must follow this call with a reschedule; Exit
// itself only performs the bookkeeping.
func (t *Table_t) Exit(p *Pcb_t, code int) {
	p.ExitCode = code
	p.State = Zombie

	for _, cpid := range p.Children {
		c := t.Find(cpid)
		if c == nil {
			continue
		}
		if t.Find(InitPid) != nil && InitPid != p.Pid {
			c.Ppid = InitPid
		} else {
			c.Ppid = 0
		}
	}

	if parent := t.Find(p.Ppid); parent != nil && parent.State == Blocked {
		parent.State = Ready
		t.notifyReady(parent)
	}

	t.pg.EachUserPage(p.Dir, func(_ int, phys mem.Pa_t) { t.phys.FreePage(phys) })
	t.pg.DestroyDirectory(p.Dir)
	t.heap.FreeAligned(uintptr(p.KStack - mem.PGSIZE))
	p.Dir = nil
}

// Wait scans parent's children for a Zombie, reaps the first one
// found, and returns its pid and exit code. found is false when
// parent has no zombie child yet -- the caller (the syscall/scheduler
// layer) is responsible for blocking parent and retrying on the next
// wake.
func (t *Table_t) Wait(parent *Pcb_t) (pid defs.Pid_t, code int, found bool) {
	for i, cpid := range parent.Children {
		c := t.Find(cpid)
		if c == nil || c.State != Zombie {
			continue
		}
		pid, code = c.Pid, c.ExitCode
		c.Reaped = true
		parent.Children = append(parent.Children[:i:i], parent.Children[i+1:]...)
		*c = Pcb_t{}
		return pid, code, true
	}
	return 0, 0, false
}

// Kill enqueues sig into pid's pending queue and, if pid is currently
// Blocked, wakes it.
func (t *Table_t) Kill(pid defs.Pid_t, sig int) defs.Err_t {
	target := t.Find(pid)
	if target == nil {
		return -defs.ESRCH
	}
	target.Pending.Enqueue(sig)
	if target.State == Blocked {
		target.State = Ready
		t.notifyReady(target)
	}
	return 0
}

// Brk grows or shrinks p's heap region to newbrk, mapping or
// unmapping whole pages as needed, and returns the new break.
func (t *Table_t) Brk(p *Pcb_t, newbrk int) int {
	if newbrk < HeapBase {
		return p.BrkCur
	}
	curTop := util.Roundup(p.BrkCur, mem.PGSIZE)
	newTop := util.Roundup(newbrk, mem.PGSIZE)
	for va := curTop; va < newTop; va += mem.PGSIZE {
		pa, ok := t.phys.AllocPage()
		if !ok {
			// Unwind whatever this call already mapped so BrkCur stays
			// truthful about what's actually backed -- a bare early
			// return here would orphan those frames: never reachable
			// through p.BrkCur again, but still marked taken in Physmem_t.
			for uva := curTop; uva < va; uva += mem.PGSIZE {
				if upa, ok := t.pg.Translate(p.Dir, uva); ok {
					t.phys.FreePage(upa)
				}
				t.pg.Unmap(p.Dir, uva)
			}
			return p.BrkCur
		}
		t.pg.Map(p.Dir, va, pa, paging.Present|paging.Write|paging.User)
	}
	for va := newTop; va < curTop; va += mem.PGSIZE {
		if pa, ok := t.pg.Translate(p.Dir, va); ok {
			t.phys.FreePage(pa)
		}
		t.pg.Unmap(p.Dir, va)
	}
	p.BrkCur = newbrk
	p.Acc.NoteBrk(newbrk)
	return newbrk
}
