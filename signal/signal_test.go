package signal

import (
	"testing"

	"github.com/nucleus-os/nucleus/defs"
)

func TestRegisterRefusesKillAndStop(t *testing.T) {
	var tbl Table_t
	if err := Register(&tbl, defs.SIGKILL, Disposition_t{Kind: Handler}); err == 0 {
		t.Fatal("expected registering a handler for SIGKILL to fail")
	}
	if err := Register(&tbl, defs.SIGSTOP, Disposition_t{Kind: Ignore}); err == 0 {
		t.Fatal("expected registering a non-default disposition for SIGSTOP to fail")
	}
}

func TestRegisterAllowsOtherSignals(t *testing.T) {
	var tbl Table_t
	fired := false
	h := Disposition_t{Kind: Handler, Fn: func(sig int) { fired = true }}
	if err := Register(&tbl, defs.SIGUSR1, h); err != 0 {
		t.Fatalf("unexpected error registering SIGUSR1 handler: %v", err)
	}
	tbl[defs.SIGUSR1].Fn(defs.SIGUSR1)
	if !fired {
		t.Fatal("handler was not invoked")
	}
}

func TestPendingQueueFIFO(t *testing.T) {
	var p Pending_t
	p.Enqueue(defs.SIGUSR1)
	p.Enqueue(defs.SIGUSR2)
	s1, ok := p.Dequeue()
	if !ok || s1 != defs.SIGUSR1 {
		t.Fatalf("expected SIGUSR1 first, got %d ok=%v", s1, ok)
	}
	s2, ok := p.Dequeue()
	if !ok || s2 != defs.SIGUSR2 {
		t.Fatalf("expected SIGUSR2 second, got %d ok=%v", s2, ok)
	}
	if !p.Empty() {
		t.Fatal("expected pending queue empty after draining")
	}
	if _, ok := p.Dequeue(); ok {
		t.Fatal("expected dequeue on empty queue to fail")
	}
}

func TestDefaultActionsMatchOriginalTable(t *testing.T) {
	terminal := []int{defs.SIGHUP, defs.SIGINT, defs.SIGQUIT, defs.SIGILL, defs.SIGTRAP,
		defs.SIGABRT, defs.SIGBUS, defs.SIGFPE, defs.SIGKILL, defs.SIGUSR1, defs.SIGSEGV,
		defs.SIGUSR2, defs.SIGPIPE, defs.SIGALRM, defs.SIGTERM}
	for _, sig := range terminal {
		if !DefaultTerminates(sig) {
			t.Errorf("expected signal %d (%s) to default-terminate", sig, defs.SigName(sig))
		}
	}
	ignored := []int{defs.SIGCHLD, defs.SIGCONT, defs.SIGURG, defs.SIGWINCH}
	for _, sig := range ignored {
		if DefaultTerminates(sig) || DefaultStops(sig) {
			t.Errorf("expected signal %d (%s) to default-ignore", sig, defs.SigName(sig))
		}
	}
	stopped := []int{defs.SIGSTOP, defs.SIGTSTP, defs.SIGTTIN, defs.SIGTTOU}
	for _, sig := range stopped {
		if !DefaultStops(sig) {
			t.Errorf("expected signal %d (%s) to default-stop", sig, defs.SigName(sig))
		}
	}
}
