package fd

import (
	"testing"

	"github.com/nucleus-os/nucleus/defs"
)

type fakeOps struct {
	closed   bool
	reopened int
	closeErr defs.Err_t
}

func (f *fakeOps) Read(buf []uint8) (int, defs.Err_t)  { return 0, 0 }
func (f *fakeOps) Write(buf []uint8) (int, defs.Err_t) { return len(buf), 0 }
func (f *fakeOps) Close() defs.Err_t                    { f.closed = true; return f.closeErr }
func (f *fakeOps) Reopen() defs.Err_t                   { f.reopened++; return 0 }

func TestAddGetRoundTrip(t *testing.T) {
	tbl := MkTable(4)
	f := &Fd_t{Fops: &fakeOps{}, Perms: FD_READ}
	num := tbl.Add(f)
	if num != 1 {
		t.Fatalf("expected first descriptor number 1, got %d", num)
	}
	if tbl.Get(num) != f {
		t.Fatal("expected Get to return the installed descriptor")
	}
}

func TestAddFailsWhenTableFull(t *testing.T) {
	tbl := MkTable(2)
	tbl.Add(&Fd_t{Fops: &fakeOps{}})
	tbl.Add(&Fd_t{Fops: &fakeOps{}})
	if tbl.Add(&Fd_t{Fops: &fakeOps{}}) != -1 {
		t.Fatal("expected Add on a full table to return -1")
	}
}

func TestRemoveClearsSlot(t *testing.T) {
	tbl := MkTable(2)
	f := &Fd_t{Fops: &fakeOps{}}
	num := tbl.Add(f)
	got := tbl.Remove(num)
	if got != f {
		t.Fatal("expected Remove to return the descriptor that was there")
	}
	if tbl.Get(num) != nil {
		t.Fatal("expected slot to be empty after Remove")
	}
}

func TestGetOutOfRangeReturnsNil(t *testing.T) {
	tbl := MkTable(2)
	if tbl.Get(0) != nil || tbl.Get(99) != nil {
		t.Fatal("expected out-of-range fd numbers to return nil")
	}
}

func TestCopyfdReopens(t *testing.T) {
	ops := &fakeOps{}
	f := &Fd_t{Fops: ops, Perms: FD_WRITE}
	nfd, err := Copyfd(f)
	if err != 0 {
		t.Fatalf("expected copy to succeed, got %v", err)
	}
	if ops.reopened != 1 {
		t.Fatalf("expected Reopen to be called once, got %d", ops.reopened)
	}
	if nfd.Perms != FD_WRITE {
		t.Fatal("expected copied descriptor to preserve permissions")
	}
}

func TestClosePanicPanicsOnFailure(t *testing.T) {
	f := &Fd_t{Fops: &fakeOps{closeErr: -defs.EINVAL}}
	defer func() {
		if recover() == nil {
			t.Fatal("expected ClosePanic to panic when Close fails")
		}
	}()
	ClosePanic(f)
}

func TestEachVisitsLiveDescriptorsOnly(t *testing.T) {
	tbl := MkTable(3)
	a := tbl.Add(&Fd_t{Fops: &fakeOps{}})
	tbl.Add(&Fd_t{Fops: &fakeOps{}})
	tbl.Remove(a)

	count := 0
	tbl.Each(func(num int, f *Fd_t) { count++ })
	if count != 1 {
		t.Fatalf("expected 1 live descriptor after removing one of two, got %d", count)
	}
}
