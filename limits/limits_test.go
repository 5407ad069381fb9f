package limits

import "testing"

func TestTakenDecrementsAndGivenRestores(t *testing.T) {
	var s Sysatomic_t = 2
	if !s.Taken(1) {
		t.Fatal("expected Taken(1) to succeed with 2 available")
	}
	if int64(s) != 1 {
		t.Fatalf("expected 1 remaining, got %d", s)
	}
	s.Given(1)
	if int64(s) != 2 {
		t.Fatalf("expected 2 restored, got %d", s)
	}
}

func TestTakenFailsWithoutUnderflowingCounter(t *testing.T) {
	var s Sysatomic_t = 1
	if s.Taken(2) {
		t.Fatal("expected Taken(2) to fail with only 1 available")
	}
	if int64(s) != 1 {
		t.Fatalf("expected counter unchanged after failed Taken, got %d", s)
	}
}

func TestMkSysLimitSeedsSocketsFromTableSize(t *testing.T) {
	l := MkSysLimit()
	if int64(l.Sockets) != int64(l.SockTableSize) {
		t.Fatalf("expected Sockets counter to start at SockTableSize %d, got %d", l.SockTableSize, l.Sockets)
	}
}
