// Package kernel assembles every subsystem into a single `Kernel`
// value constructed once at boot; the platform hands this handle to
// every interrupt callback. It implements the trap entry point
// (on_trap) that either dispatches a system call or converts a CPU
// exception into a signal. It is grounded on the
// teacher's circbuf.go Copyin/Copyout pattern for moving bytes between
// kernel and user buffers, adapted here to walk page tables directly
// (vm/as.go's pmap_walk) since this core has no Userio_i/VFS layer.
package kernel

import (
	"bytes"
	"time"

	"github.com/nucleus-os/nucleus/defs"
	"github.com/nucleus-os/nucleus/fd"
	"github.com/nucleus-os/nucleus/fdops"
	"github.com/nucleus-os/nucleus/limits"
	"github.com/nucleus-os/nucleus/mem"
	"github.com/nucleus-os/nucleus/paging"
	"github.com/nucleus-os/nucleus/proc"
	"github.com/nucleus-os/nucleus/profile"
	"github.com/nucleus-os/nucleus/sched"
	"github.com/nucleus-os/nucleus/signal"
	"github.com/nucleus-os/nucleus/sock"
	"github.com/nucleus-os/nucleus/stat"
	"github.com/nucleus-os/nucleus/syscall"
	"github.com/nucleus-os/nucleus/trap"
	"github.com/nucleus-os/nucleus/util"
)

// Kernel owns every singleton subsystem: process table, socket table,
// ready queue, PID bitmap, and allocators all live on one Kernel
// value.
type Kernel struct {
	Phys  *mem.Physmem_t
	Pg    *paging.Paging_t
	Heap  *mem.Heap_t
	Procs *proc.Table_t
	Sched *sched.Sched_t
	Socks *sock.Table_t
	Calls *syscall.Table_t
	Lim   *limits.Syslimit_t
	Prof  *profile.Sampler_t

	// SwitchCtx is invoked by the scheduler on every context switch.
	// Tests leave it nil; a platform layer supplies the real
	// register/address-space swap.
	SwitchCtx func(from, to *proc.Pcb_t)
}

// New builds a fully wired Kernel over ramBytes of simulated physical
// memory and heapBytes of kernel heap carved out of it, and registers
// every numbered system call.
func New(ramBytes, heapBytes int) *Kernel {
	phys := mem.NewPhysmem(ramBytes)
	pg := paging.Init(phys, mem.KernelWindowBytes)
	pg.Enable()

	// Take the heap's frames off the page allocator so they are never
	// handed out as page tables or process pages. A fresh allocator
	// hands pages out in ascending order, so these are contiguous.
	npages := util.Roundup(heapBytes, mem.PGSIZE) / mem.PGSIZE
	var heapStart mem.Pa_t
	for i := 0; i < npages; i++ {
		pa, ok := phys.AllocPage()
		if !ok || (i > 0 && pa != heapStart+mem.Pa_t(i*mem.PGSIZE)) {
			panic("cannot reserve a contiguous kernel heap")
		}
		if i == 0 {
			heapStart = pa
		}
	}
	heapBuf := phys.Ram[int(heapStart) : int(heapStart)+heapBytes]
	heap := mem.NewHeap(heapBuf, uintptr(heapStart))

	lim := limits.MkSysLimit()
	procs := proc.NewTable(phys, pg, heap, lim)
	s := sched.New(procs, lim)
	socks := sock.NewTable(lim)
	calls := syscall.NewTable()
	prof := profile.NewSampler()

	k := &Kernel{
		Phys: phys, Pg: pg, Heap: heap,
		Procs: procs, Sched: s, Socks: socks,
		Calls: calls, Lim: lim, Prof: prof,
	}
	s.Account = func(p *proc.Pcb_t, d time.Duration) {
		prof.Tick(p.Pid, p.Name.String(), d)
	}
	k.registerSyscalls()
	return k
}

// copyIn reads n bytes starting at the user virtual address addr in
// p's address space, walking p's page directory one page at a time.
// It fails with EFAULT on the first unmapped page, mirroring a real
// page-fault-during-copyin.
func (k *Kernel) copyIn(p *proc.Pcb_t, addr, n int) ([]byte, defs.Err_t) {
	buf := make([]byte, 0, n)
	for n > 0 {
		pa, ok := k.Pg.Translate(p.Dir, addr)
		if !ok {
			return nil, -defs.EFAULT
		}
		off := addr % mem.PGSIZE
		frameBase := pa - mem.Pa_t(off)
		chunk := util.Min(n, mem.PGSIZE-off)
		page := k.Phys.Bytes(frameBase)
		buf = append(buf, page[off:off+chunk]...)
		addr += chunk
		n -= chunk
	}
	return buf, 0
}

// copyOut writes data into p's address space starting at the user
// virtual address addr, page by page, failing with EFAULT on the
// first unmapped page.
func (k *Kernel) copyOut(p *proc.Pcb_t, addr int, data []byte) defs.Err_t {
	for len(data) > 0 {
		pa, ok := k.Pg.Translate(p.Dir, addr)
		if !ok {
			return -defs.EFAULT
		}
		off := addr % mem.PGSIZE
		frameBase := pa - mem.Pa_t(off)
		chunk := util.Min(len(data), mem.PGSIZE-off)
		page := k.Phys.Bytes(frameBase)
		copy(page[off:off+chunk], data[:chunk])
		addr += chunk
		data = data[chunk:]
	}
	return 0
}

// CopyIn and CopyOut are copyIn/copyOut's exported counterparts, for
// callers outside this package (cmd/nucleusctl's selftest driver) that
// need to stage or inspect a process's user-space memory without a
// live trap to route through.
func (k *Kernel) CopyIn(p *proc.Pcb_t, addr, n int) ([]byte, defs.Err_t) {
	return k.copyIn(p, addr, n)
}

func (k *Kernel) CopyOut(p *proc.Pcb_t, addr int, data []byte) defs.Err_t {
	return k.copyOut(p, addr, data)
}

// mirrorContext copies a trap frame's register state into p's saved
// context -- this matters for fork, which clones the saved context
// wholesale. Esp is reconstructed via the frame's own
// pretrap-stack-pointer rule, treating the process's kernel stack top
// as the frame's address -- the hosted stand-in for "the frame lives
// on the kernel stack just pushed by this trap."
func (k *Kernel) mirrorContext(p *proc.Pcb_t, fr *trap.Frame_t) {
	p.Ctx.Eax = fr.Eax
	p.Ctx.Ebx = fr.Ebx
	p.Ctx.Ecx = fr.Ecx
	p.Ctx.Edx = fr.Edx
	p.Ctx.Esi = fr.Esi
	p.Ctx.Edi = fr.Edi
	p.Ctx.Ebp = fr.Ebp
	p.Ctx.Eip = fr.Eip
	p.Ctx.Eflags = fr.Eflags
	p.Ctx.Esp = fr.PretrapStackPointer(p.KStack)
}

// OnTrap is the platform's single entry point into the core: it
// mirrors the trap's register state into the current process, then
// either dispatches a system call (trap number trap.SyscallVector) or
// converts a CPU exception into a signal delivered to the current
// process. A trap with no current process at all is kernel-fatal: an
// unrecoverable fault with nothing to blame it on.
func (k *Kernel) OnTrap(fr *trap.Frame_t) {
	cur := k.Sched.Current()
	if cur != nil {
		k.mirrorContext(cur, fr)
	}

	if fr.TrapNo == trap.SyscallVector {
		if cur == nil {
			trap.Panic("syscall trap with no current process", fr, nil)
			return
		}
		start := time.Now()
		ret, ok := k.Calls.Dispatch(fr.Eax, fr.Ebx, fr.Ecx, fr.Edx, fr.Esi, fr.Edi)
		cur.Acc.Systadd(time.Since(start).Nanoseconds())
		if !ok {
			ret = int(-defs.EINVAL)
		}
		fr.Eax = ret
		cur.Ctx.Eax = ret
		return
	}

	sig, ok := trap.ExceptionSignal(fr.TrapNo)
	if !ok || cur == nil {
		trap.Panic("unrecoverable fault with no current process", fr, nil)
		return
	}
	k.Sched.DeliverException(cur, sig)
}

// registerSyscalls installs every handler of the numbered syscall
// table. Handlers close over k rather than being free functions,
// since each needs Procs/Sched/Socks/copyIn/copyOut.
func (k *Kernel) registerSyscalls() {
	k.Calls.Register(syscall.SysExit, k.sysExit)
	k.Calls.Register(syscall.SysWrite, k.sysWrite)
	k.Calls.Register(syscall.SysRead, k.sysRead)
	k.Calls.Register(syscall.SysGetpid, k.sysGetpid)
	k.Calls.Register(syscall.SysSignal, k.sysSignal)
	k.Calls.Register(syscall.SysKill, k.sysKill)
	k.Calls.Register(syscall.SysFork, k.sysFork)
	k.Calls.Register(syscall.SysWait, k.sysWait)
	k.Calls.Register(syscall.SysGetuid, k.sysGetuid)
	k.Calls.Register(syscall.SysMmap, k.sysMmap)
	k.Calls.Register(syscall.SysBrk, k.sysBrk)
	k.Calls.Register(syscall.SysSocket, k.sysSocket)
	k.Calls.Register(syscall.SysBind, k.sysBind)
	k.Calls.Register(syscall.SysListen, k.sysListen)
	k.Calls.Register(syscall.SysConnect, k.sysConnect)
	k.Calls.Register(syscall.SysAccept, k.sysAccept)
	k.Calls.Register(syscall.SysSend, k.sysSend)
	k.Calls.Register(syscall.SysRecv, k.sysRecv)
	k.Calls.Register(syscall.SysDevOpen, k.sysDevOpen)
}

func (k *Kernel) sysExit(status, _, _, _, _ int) int {
	cur := k.Sched.Current()
	if cur == nil {
		return 0
	}
	k.Procs.Exit(cur, status)
	k.Sched.Run(k.SwitchCtx)
	return 0
}

func (k *Kernel) sysWrite(fdnum, addr, length, _, _ int) int {
	cur := k.Sched.Current()
	f := cur.Fds.Get(fdnum)
	if f == nil {
		return int(-defs.EINVAL)
	}
	data, err := k.copyIn(cur, addr, length)
	if err != 0 {
		return int(err)
	}
	n, werr := f.Fops.Write(data)
	if werr != 0 {
		return int(werr)
	}
	return n
}

func (k *Kernel) sysRead(fdnum, addr, length, _, _ int) int {
	cur := k.Sched.Current()
	f := cur.Fds.Get(fdnum)
	if f == nil {
		return int(-defs.EINVAL)
	}
	buf := make([]byte, length)
	n, rerr := f.Fops.Read(buf)
	if rerr != 0 {
		return int(rerr)
	}
	if err := k.copyOut(cur, addr, buf[:n]); err != 0 {
		return int(err)
	}
	return n
}

func (k *Kernel) sysGetpid(_, _, _, _, _ int) int {
	cur := k.Sched.Current()
	if cur == nil {
		return 0
	}
	return int(cur.Pid)
}

func (k *Kernel) sysGetuid(_, _, _, _, _ int) int {
	cur := k.Sched.Current()
	if cur == nil {
		return 0
	}
	return int(cur.Uid)
}

// sysSignal registers a disposition for the current process. handler
// is Default (0), Ignore (1), or any other nonzero value to mean "a
// handler is registered" -- this hosted core has no user-mode function
// pointer to invoke, so a registered handler fires as a recorded
// no-op unless the caller supplies one directly via package signal
// (the test-facing API). Keeping the three-way disposition a typed
// value avoids synthesizing a callable from a bare int and the
// sentinel/valid-pointer ambiguity that would invite.
func (k *Kernel) sysSignal(sig, handler, _, _, _ int) int {
	cur := k.Sched.Current()
	kind := signal.Default
	switch handler {
	case 0:
		kind = signal.Default
	case 1:
		kind = signal.Ignore
	default:
		kind = signal.Handler
	}
	if err := signal.Register(&cur.Dispositions, sig, signal.Disposition_t{Kind: kind}); err != 0 {
		return int(err)
	}
	return 0
}

func (k *Kernel) sysKill(pid, sig, _, _, _ int) int {
	if err := k.Sched.Kill(defs.Pid_t(pid), sig); err != 0 {
		return int(err)
	}
	return 0
}

func (k *Kernel) sysFork(_, _, _, _, _ int) int {
	cur := k.Sched.Current()
	child, err := k.Procs.Fork(cur)
	if err != 0 {
		return int(err)
	}
	return int(child.Pid)
}

func (k *Kernel) sysWait(statusAddr, _, _, _, _ int) int {
	cur := k.Sched.Current()
	pid, code, found := k.Procs.Wait(cur)
	if !found {
		// This core has no per-process continuation to suspend across:
		// OnTrap services one trap and returns synchronously, so a
		// child exiting between WaitBlock and the retry below is
		// already captured by Exit's own wake (which re-Readies cur
		// if it's still Blocked at that point). If no zombie shows up
		// by the retry, cur must rejoin the ready queue rather than
		// stay Blocked forever with no event left to wake it.
		k.Sched.WaitBlock(cur)
		k.Sched.Run(k.SwitchCtx)
		pid, code, found = k.Procs.Wait(cur)
		if !found {
			if cur.State == proc.Blocked {
				k.Procs.Requeue(cur)
			}
			return int(-defs.ESRCH)
		}
	}
	if statusAddr != 0 {
		if err := k.copyOut(cur, statusAddr, []byte{
			byte(code), byte(code >> 8), byte(code >> 16), byte(code >> 24),
		}); err != 0 {
			return int(err)
		}
	}
	return int(pid)
}

func (k *Kernel) sysBrk(newbrk, _, _, _, _ int) int {
	cur := k.Sched.Current()
	return k.Procs.Brk(cur, newbrk)
}

// sysMmap allocates length bytes from the current process's mmap
// arena. addr is ignored: this core never honors a caller-supplied
// hint, always returning a fresh arena-chosen address, and
// original_source/ has no fixed-address mmap path either.
func (k *Kernel) sysMmap(_, length, prot, _, _ int) int {
	cur := k.Sched.Current()
	flags := paging.Present | paging.User
	if prot&1 != 0 {
		flags |= paging.Write
	}
	return cur.Mmap.Alloc(cur.Dir, length, flags)
}

func (k *Kernel) sysSocket(fam, typ, _, _, _ int) int {
	cur := k.Sched.Current()
	sk, err := k.Socks.Create(sock.Family_t(fam), sock.Type_t(typ))
	if err != 0 {
		return int(err)
	}
	fdnum := cur.Fds.Add(&fd.Fd_t{Fops: &sock.SockFd_t{Tbl: k.Socks, Sk: sk}, Perms: fd.FD_READ | fd.FD_WRITE})
	if fdnum < 0 {
		k.Socks.Close(sk)
		return int(-defs.EMFILE)
	}
	return fdnum
}

func (k *Kernel) socketOf(cur *proc.Pcb_t, fdnum int) (*sock.Socket_t, defs.Err_t) {
	f := cur.Fds.Get(fdnum)
	if f == nil {
		return nil, -defs.EINVAL
	}
	sfd, ok := f.Fops.(*sock.SockFd_t)
	if !ok {
		return nil, -defs.EINVAL
	}
	return sfd.Sk, 0
}

func (k *Kernel) sysBind(fdnum, pid, port, _, _ int) int {
	cur := k.Sched.Current()
	sk, err := k.socketOf(cur, fdnum)
	if err != 0 {
		return int(err)
	}
	return int(k.Socks.Bind(sk, sock.Addr_t{Pid: defs.Pid_t(pid), Port: port}))
}

func (k *Kernel) sysListen(fdnum, backlog, _, _, _ int) int {
	cur := k.Sched.Current()
	sk, err := k.socketOf(cur, fdnum)
	if err != 0 {
		return int(err)
	}
	return int(k.Socks.Listen(sk, backlog))
}

func (k *Kernel) sysConnect(fdnum, pid, port, _, _ int) int {
	cur := k.Sched.Current()
	sk, err := k.socketOf(cur, fdnum)
	if err != 0 {
		return int(err)
	}
	return int(k.Socks.Connect(sk, sock.Addr_t{Pid: defs.Pid_t(pid), Port: port}))
}

func (k *Kernel) sysAccept(fdnum, _, _, _, _ int) int {
	cur := k.Sched.Current()
	sk, err := k.socketOf(cur, fdnum)
	if err != 0 {
		return int(err)
	}
	peer, aerr := k.Socks.Accept(sk)
	if aerr != 0 {
		return int(aerr)
	}
	nfdnum := cur.Fds.Add(&fd.Fd_t{Fops: &sock.SockFd_t{Tbl: k.Socks, Sk: peer}, Perms: fd.FD_READ | fd.FD_WRITE})
	if nfdnum < 0 {
		k.Socks.Close(peer)
		return int(-defs.EMFILE)
	}
	return nfdnum
}

func (k *Kernel) sysSend(fdnum, addr, length, _, _ int) int {
	cur := k.Sched.Current()
	sk, err := k.socketOf(cur, fdnum)
	if err != 0 {
		return int(err)
	}
	data, cerr := k.copyIn(cur, addr, length)
	if cerr != 0 {
		return int(cerr)
	}
	n, serr := k.Socks.Send(sk, data)
	if serr != 0 {
		return int(serr)
	}
	return n
}

func (k *Kernel) sysRecv(fdnum, addr, length, _, _ int) int {
	cur := k.Sched.Current()
	sk, err := k.socketOf(cur, fdnum)
	if err != 0 {
		return int(err)
	}
	buf := make([]byte, length)
	n, rerr := k.Socks.Recv(sk, buf)
	if rerr != 0 {
		return int(rerr)
	}
	if n > 0 {
		if err := k.copyOut(cur, addr, buf[:n]); err != 0 {
			return int(err)
		}
	}
	return n
}

// sysDevOpen installs a descriptor backed by one of the fixed device
// ids in the current process's table. Only D_STAT and D_PROF are
// wired to real device backends; any other id fails with EINVAL since
// this core has no VFS to fall back on.
func (k *Kernel) sysDevOpen(dev, _, _, _, _ int) int {
	cur := k.Sched.Current()
	var fops fdops.Fdops_i
	switch dev {
	case defs.D_STAT:
		fops = &statFd_t{procs: k.Procs, pid: cur.Pid}
	case defs.D_PROF:
		fops = &profFd_t{sampler: k.Prof}
	default:
		return int(-defs.EINVAL)
	}
	fdnum := cur.Fds.Add(&fd.Fd_t{Fops: fops, Perms: fd.FD_READ})
	if fdnum < 0 {
		return int(-defs.EMFILE)
	}
	return fdnum
}

// statFd_t serves one process's accounting snapshot through the
// D_STAT device, packed into stat.Stat_t's fixed wire layout.
type statFd_t struct {
	procs *proc.Table_t
	pid   defs.Pid_t
}

func (s *statFd_t) Read(buf []uint8) (int, defs.Err_t) {
	p := s.procs.Find(s.pid)
	if p == nil {
		return 0, -defs.ESRCH
	}
	userns, sysns, maxbrk := p.Acc.Snapshot()
	var st stat.Stat_t
	st.Wpid(uint(p.Pid))
	st.Wppid(uint(p.Ppid))
	st.Wuid(uint(p.Uid))
	st.Wstate(uint(p.State))
	st.Wexit(uint(p.ExitCode))
	st.Wuserns(uint(userns))
	st.Wsysns(uint(sysns))
	st.Wmaxbrk(uint(maxbrk))
	return copy(buf, st.Bytes()), 0
}

func (s *statFd_t) Write(buf []uint8) (int, defs.Err_t) { return 0, -defs.EINVAL }
func (s *statFd_t) Close() defs.Err_t                   { return 0 }
func (s *statFd_t) Reopen() defs.Err_t                  { return 0 }

// profFd_t serializes the kernel's rolling per-pid CPU-time sampler as
// a pprof profile through the D_PROF device, using profile.Profile's
// own protobuf+gzip Write encoding rather than inventing a bespoke
// wire format. Each read consumes the current sampling window.
type profFd_t struct {
	sampler *profile.Sampler_t
}

func (p *profFd_t) Read(buf []uint8) (int, defs.Err_t) {
	var out bytes.Buffer
	if err := p.sampler.Profile().Write(&out); err != nil {
		return 0, -defs.EINVAL
	}
	p.sampler.Reset()
	return copy(buf, out.Bytes()), 0
}

func (p *profFd_t) Write(buf []uint8) (int, defs.Err_t) { return 0, -defs.EINVAL }
func (p *profFd_t) Close() defs.Err_t                   { return 0 }
func (p *profFd_t) Reopen() defs.Err_t                  { return 0 }
