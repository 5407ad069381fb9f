package trap

import (
	"bytes"
	"testing"

	"github.com/nucleus-os/nucleus/defs"
	"github.com/nucleus-os/nucleus/klog"
)

func TestExceptionSignalMapping(t *testing.T) {
	cases := []struct {
		vector int
		sig    int
	}{
		{DivZero, defs.SIGFPE},
		{Overflow, defs.SIGFPE},
		{FPUError, defs.SIGFPE},
		{SIMDError, defs.SIGFPE},
		{DebugExc, defs.SIGTRAP},
		{Breakpoint, defs.SIGTRAP},
		{InvalidOpcode, defs.SIGILL},
		{BoundRange, defs.SIGSEGV},
		{InvalidTSS, defs.SIGSEGV},
		{SegNotPresent, defs.SIGSEGV},
		{StackFault, defs.SIGSEGV},
		{GPFault, defs.SIGSEGV},
		{PageFault, defs.SIGSEGV},
		{DoubleFault, defs.SIGABRT},
		{MachineCheck, defs.SIGABRT},
		{AlignCheck, defs.SIGBUS},
	}
	for _, c := range cases {
		sig, ok := ExceptionSignal(c.vector)
		if !ok || sig != c.sig {
			t.Errorf("vector %d: expected (%d, true), got (%d, %v)", c.vector, c.sig, sig, ok)
		}
	}
}

func TestNonConvertibleVectorsAreNotMapped(t *testing.T) {
	for _, v := range []int{NMI, DeviceNotAvail} {
		if _, ok := ExceptionSignal(v); ok {
			t.Errorf("vector %d must not convert to a signal", v)
		}
	}
}

func TestPretrapStackPointerCrossPrivilege(t *testing.T) {
	fr := &Frame_t{CrossPrivilege: true, PretrapEsp: 0xdeadbeef}
	if got := fr.PretrapStackPointer(0x1000); got != 0xdeadbeef {
		t.Fatalf("expected cross-privilege esp to come from PretrapEsp, got %#x", got)
	}
}

func TestPretrapStackPointerSamePrivilege(t *testing.T) {
	fr := &Frame_t{CrossPrivilege: false}
	frameAddr := 0x1000
	got := fr.PretrapStackPointer(frameAddr)
	want := frameAddr + SamePrivilegePushBytes
	if got != want {
		t.Fatalf("expected same-privilege esp to be frame address + push size, got %#x want %#x", got, want)
	}
}

func TestPanicWritesReportAndRecoversInTestMode(t *testing.T) {
	SetTestMode(true)
	defer SetTestMode(false)

	var buf bytes.Buffer
	old := klog.Out
	klog.Out = &buf
	defer func() { klog.Out = old }()

	defer func() {
		if recover() == nil {
			t.Fatal("expected Panic to raise a recoverable panic in test mode")
		}
		if !bytes.Contains(buf.Bytes(), []byte("KERNEL PANIC: corrupted heap header")) {
			t.Fatalf("expected panic reason in the log, got: %s", buf.String())
		}
	}()

	Panic("corrupted heap header", &Frame_t{Eip: 0x1234, TrapNo: PageFault}, nil)
}
