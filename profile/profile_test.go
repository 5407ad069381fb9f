package profile

import (
	"testing"
	"time"

	"github.com/nucleus-os/nucleus/defs"
)

func TestTickAccumulates(t *testing.T) {
	s := NewSampler()
	s.Tick(2, "child", 5*time.Millisecond)
	s.Tick(2, "child", 5*time.Millisecond)
	p := s.Profile()
	if len(p.Sample) != 1 {
		t.Fatalf("expected one sample for one pid, got %d", len(p.Sample))
	}
	if got := p.Sample[0].Value[0]; got != (10 * time.Millisecond).Nanoseconds() {
		t.Fatalf("expected accumulated 10ms, got %dns", got)
	}
}

func TestResetClearsSamples(t *testing.T) {
	s := NewSampler()
	s.Tick(1, "init", time.Millisecond)
	s.Reset()
	p := s.Profile()
	if len(p.Sample) != 0 {
		t.Fatalf("expected no samples after reset, got %d", len(p.Sample))
	}
}

func TestProfileSeparatesPids(t *testing.T) {
	s := NewSampler()
	s.Tick(defs.Pid_t(1), "a", time.Millisecond)
	s.Tick(defs.Pid_t(2), "b", 2*time.Millisecond)
	p := s.Profile()
	if len(p.Sample) != 2 {
		t.Fatalf("expected two samples for two pids, got %d", len(p.Sample))
	}
}
