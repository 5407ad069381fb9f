// Package trap defines the platform-facing trap record, the CPU
// exception-to-signal mapping table, and the kernel-fatal panic path.
// It never imports proc/sched/kernel: package kernel depends on it
// rather than the reverse, matching the teacher's layering where
// trap/fault reporting sits below process management.
package trap

import (
	"os"

	"github.com/nucleus-os/nucleus/caller"
	"github.com/nucleus-os/nucleus/defs"
	"github.com/nucleus-os/nucleus/disasm"
	"github.com/nucleus-os/nucleus/klog"
)

// Exception vectors, x86 protected-mode numbering.
const (
	DivZero        = 0
	DebugExc       = 1
	NMI            = 2
	Breakpoint     = 3
	Overflow       = 4
	BoundRange     = 5
	InvalidOpcode  = 6
	DeviceNotAvail = 7
	DoubleFault    = 8
	InvalidTSS     = 10
	SegNotPresent  = 11
	StackFault     = 12
	GPFault        = 13
	PageFault      = 14
	FPUError       = 16
	AlignCheck     = 17
	MachineCheck   = 18
	SIMDError      = 19

	// SyscallVector is the software interrupt number user code traps
	// through to reach the system-call dispatch table.
	SyscallVector = 0x80
)

// Frame_t is the trap record the platform layer hands the core on
// every transfer of control: the full general-purpose register set,
// segment selectors, faulting instruction pointer, flags, trap
// number, and error code, plus the pre-trap stack pointer/selector
// when the trap crossed privilege levels.
type Frame_t struct {
	Eax, Ebx, Ecx, Edx int
	Esi, Edi, Ebp      int
	Eip                int
	Eflags             int
	TrapNo             int
	ErrNo              int
	Cs, Ss             int

	// CrossPrivilege is true when the CPU pushed a fresh stack pointer
	// and selector for this trap (user -> kernel transition); false
	// for a same-privilege trap, where the pre-trap stack pointer must
	// be reconstructed from the known push size instead.
	CrossPrivilege bool
	PretrapEsp     int
	PretrapSs      int
}

// SamePrivilegePushBytes is the fixed size, in bytes, of the
// hardware-pushed trap frame for a same-privilege trap in the
// reference model: the pre-trap stack pointer is the current frame
// address plus this fixed push size (~68 bytes).
const SamePrivilegePushBytes = 68

// PretrapStackPointer reconstructs the stack pointer at the instant
// before this trap was taken.
func (f *Frame_t) PretrapStackPointer(frameAddr int) int {
	if f.CrossPrivilege {
		return f.PretrapEsp
	}
	return frameAddr + SamePrivilegePushBytes
}

// exceptionSignal maps a CPU exception vector to the signal it raises
// in the current process. ok is false for vectors this core does not
// convert to a signal (NMI, device-not-available); kernel.OnTrap sends
// such a vector to Panic.
var exceptionSignal = map[int]int{
	DivZero:       defs.SIGFPE,
	Overflow:      defs.SIGFPE,
	FPUError:      defs.SIGFPE,
	SIMDError:     defs.SIGFPE,
	DebugExc:      defs.SIGTRAP,
	Breakpoint:    defs.SIGTRAP,
	InvalidOpcode: defs.SIGILL,
	BoundRange:    defs.SIGSEGV,
	InvalidTSS:    defs.SIGSEGV,
	SegNotPresent: defs.SIGSEGV,
	StackFault:    defs.SIGSEGV,
	GPFault:       defs.SIGSEGV,
	PageFault:     defs.SIGSEGV,
	DoubleFault:   defs.SIGABRT,
	MachineCheck:  defs.SIGABRT,
	AlignCheck:    defs.SIGBUS,
}

// ExceptionSignal returns the signal number a CPU exception converts
// to, and whether the vector is in the convertible set at all.
func ExceptionSignal(vector int) (sig int, ok bool) {
	sig, ok = exceptionSignal[vector]
	return
}

// Panic enters the kernel-fatal path. This core has no real interrupt
// controller to mask, so no interrupt-disable step happens here; Panic
// snapshots the register set and a bounded stack window, writes both
// to the console, and halts. code, when non-nil, is the faulting
// instruction's raw bytes for disasm to decode into the report.
func Panic(reason string, fr *Frame_t, code []byte) {
	klog.Printf("panic", "KERNEL PANIC: %s", reason)
	if fr != nil {
		klog.Printf("panic", "eip=%#x eflags=%#x trapno=%d errno=%d", fr.Eip, fr.Eflags, fr.TrapNo, fr.ErrNo)
		klog.Printf("panic", "eax=%#x ebx=%#x ecx=%#x edx=%#x esi=%#x edi=%#x ebp=%#x",
			fr.Eax, fr.Ebx, fr.Ecx, fr.Edx, fr.Esi, fr.Edi, fr.Ebp)
	}
	if len(code) > 0 {
		if text, err := disasm.Decode(code); err == nil {
			klog.Printf("panic", "faulting instruction: %s", text)
		}
	}
	klog.Printf("panic", "stack:\n%s", caller.Dump(1))
	klog.Out.Write([]byte("halting\n"))
	// The reference core halts forever and never unwinds or frees
	// resources. A hosted Go process cannot spin the CPU off
	// forever without wedging the test binary, so os.Exit stands in
	// for "halt": it terminates immediately, runs no deferred
	// cleanup, exactly mirroring "never attempts to unwind".
	if panicExit {
		os.Exit(2)
	}
	panic(reason)
}

// panicExit is false in tests (set via SetTestMode) so Panic raises a
// recoverable Go panic instead of exiting the test binary.
var panicExit = true

// SetTestMode disables the os.Exit halt so tests can recover() from
// Panic and assert it was reached.
func SetTestMode(enabled bool) {
	panicExit = !enabled
}
