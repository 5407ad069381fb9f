// Package limits tracks system-wide resource limits, adapted from the
// teacher's limits.go. The numbers are the spec's concrete constants
// rather than Biscuit's filesystem/TCP-oriented defaults: max PCBs,
// ready-queue capacity, accept-ring backlog, and the per-message
// socket clamp.
package limits

import "sync/atomic"

// Sysatomic_t is a numeric limit that can be atomically taken/given,
// kept verbatim from the teacher -- it is the one piece of true
// concurrency in this otherwise single-CPU core: a signal or socket
// send can be raised by an exception handler running on behalf of a
// different logical path than the one currently scheduled.
type Sysatomic_t int64

func (s *Sysatomic_t) Taken(n int64) bool {
	g := atomic.AddInt64((*int64)(s), -n)
	if g >= 0 {
		return true
	}
	atomic.AddInt64((*int64)(s), n)
	return false
}

func (s *Sysatomic_t) Given(n int64) {
	atomic.AddInt64((*int64)(s), n)
}

// Syslimit_t holds the configured system-wide limits.
type Syslimit_t struct {
	MaxProcs      int /// process table size (spec: pid <= 256)
	ReadyQlen     int /// ready-queue ring capacity (spec: 256)
	AcceptBacklog int /// accept ring size per listening socket (spec: 16)
	MaxMsgSize    int /// per-message clamp for send() (spec: 4096)
	SockTableSize int /// socket table size
	TimerSliceTicks int /// K: scheduler ticks per time slice (spec: ~=10)

	// Sockets is a live-resource counter, not a static cap: each
	// create() takes one and each close() gives it back.
	Sockets Sysatomic_t
}

// MkSysLimit returns the default set of limits pinned by the spec.
func MkSysLimit() *Syslimit_t {
	l := &Syslimit_t{
		MaxProcs:        256,
		ReadyQlen:       256,
		AcceptBacklog:   16,
		MaxMsgSize:      4096,
		SockTableSize:   256,
		TimerSliceTicks: 10,
	}
	l.Sockets = Sysatomic_t(l.SockTableSize)
	return l
}
