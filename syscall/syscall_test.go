package syscall

import "testing"

func TestDispatchInvokesRegisteredHandler(t *testing.T) {
	tbl := NewTable()
	tbl.Register(SysGetpid, func(a0, a1, a2, a3, a4 int) int { return 42 })

	got, ok := tbl.Dispatch(SysGetpid, 0, 0, 0, 0, 0)
	if !ok || got != 42 {
		t.Fatalf("expected (42, true), got (%d, %v)", got, ok)
	}
}

func TestDispatchPassesArguments(t *testing.T) {
	tbl := NewTable()
	tbl.Register(SysBrk, func(a0, a1, a2, a3, a4 int) int { return a0 + 1 })

	got, ok := tbl.Dispatch(SysBrk, 99, 0, 0, 0, 0)
	if !ok || got != 100 {
		t.Fatalf("expected (100, true), got (%d, %v)", got, ok)
	}
}

func TestDispatchUnknownNumberFails(t *testing.T) {
	tbl := NewTable()
	if _, ok := tbl.Dispatch(999, 0, 0, 0, 0, 0); ok {
		t.Fatal("expected dispatch of an unregistered number to fail")
	}
}

func TestReRegisterReplacesHandler(t *testing.T) {
	tbl := NewTable()
	tbl.Register(SysGetuid, func(a0, a1, a2, a3, a4 int) int { return 1 })
	tbl.Register(SysGetuid, func(a0, a1, a2, a3, a4 int) int { return 2 })

	got, _ := tbl.Dispatch(SysGetuid, 0, 0, 0, 0, 0)
	if got != 2 {
		t.Fatalf("expected latest registration to win, got %d", got)
	}
}
