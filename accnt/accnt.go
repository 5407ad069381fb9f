// Package accnt accumulates per-process CPU accounting, adapted
// nearly verbatim from the teacher's accnt.go. The scheduler calls
// Utadd on every context switch to credit the outgoing process with
// its scheduled time; the kernel's trap dispatch calls Systadd around
// every syscall handler invocation. The D_STAT device reads the
// totals back out.
package accnt

import (
	"sync"
	"sync/atomic"
)

// Accnt_t accumulates per-process accounting information. Both Userns
// and Sysns are nanoseconds. The embedded mutex lets MaxBrk be updated
// alongside the atomic counters without torn reads when a caller wants
// a consistent snapshot.
type Accnt_t struct {
	Userns int64 /// nanoseconds of time spent running this process
	Sysns  int64 /// nanoseconds of time spent servicing traps for this process

	mu     sync.Mutex
	MaxBrk int /// high-water mark of the heap break, for D_STAT
}

// Utadd adds delta nanoseconds to the user-time counter.
func (a *Accnt_t) Utadd(delta int64) {
	atomic.AddInt64(&a.Userns, delta)
}

// Systadd adds delta nanoseconds to the system-time counter.
func (a *Accnt_t) Systadd(delta int64) {
	atomic.AddInt64(&a.Sysns, delta)
}

// NoteBrk records a new heap break, updating the high-water mark.
func (a *Accnt_t) NoteBrk(brk int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if brk > a.MaxBrk {
		a.MaxBrk = brk
	}
}

// Snapshot returns a consistent copy of the counters.
func (a *Accnt_t) Snapshot() (userns, sysns int64, maxbrk int) {
	a.mu.Lock()
	maxbrk = a.MaxBrk
	a.mu.Unlock()
	return atomic.LoadInt64(&a.Userns), atomic.LoadInt64(&a.Sysns), maxbrk
}
