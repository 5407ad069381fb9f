// Package sched implements the preemptive round-robin scheduler: a
// fixed-capacity ready queue, next()/run()/timer_tick(), and signal
// delivery at every scheduler entry into a process. It is grounded on
// circbuf's ring design -- the ready queue is
// exactly circbuf.Ring_t[*proc.Pcb_t], matching the teacher's own use
// of circbuf for bounded FIFOs elsewhere in the core.
package sched

import (
	"time"

	"github.com/nucleus-os/nucleus/circbuf"
	"github.com/nucleus-os/nucleus/defs"
	"github.com/nucleus-os/nucleus/limits"
	"github.com/nucleus-os/nucleus/proc"
	"github.com/nucleus-os/nucleus/signal"
)

// Sched_t is the system's single scheduler instance.
type Sched_t struct {
	ready   *circbuf.Ring_t[*proc.Pcb_t]
	current *proc.Pcb_t
	ticks   int
	sliceK  int

	procs *proc.Table_t

	switchedAt time.Time

	// Idle is called from run() when the ready queue is empty and
	// there is no current process left to keep running -- idle with a
	// halting instruction until the next interrupt. Tests leave it nil;
	// a platform layer would wire it to hlt.
	Idle func()

	// Account, when set, is invoked with the outgoing process and how
	// long it was scheduled, in addition to the unconditional
	// p.Acc.Utadd bookkeeping Run always performs. Kernel wires this to
	// the profile sampler so D_PROF's data accumulates on the same
	// schedule as each process's own user-time counter.
	Account func(p *proc.Pcb_t, d time.Duration)
}

// New builds a scheduler wired to procs, whose OnReady callback is set
// to push newly-Ready PCBs onto the ready queue.
func New(procs *proc.Table_t, lim *limits.Syslimit_t) *Sched_t {
	s := &Sched_t{
		ready:  circbuf.Mk[*proc.Pcb_t](lim.ReadyQlen),
		sliceK: lim.TimerSliceTicks,
		procs:  procs,
	}
	procs.OnReady = s.Add
	return s
}

// Add pushes p onto the tail of the ready queue. A full ready queue
// silently drops the addition rather than refusing process creation.
func (s *Sched_t) Add(p *proc.Pcb_t) {
	if p.State != proc.Zombie {
		p.State = proc.Ready
	}
	s.ready.PushBack(p)
}

// Remove deletes p from the ready queue if present.
func (s *Sched_t) Remove(p *proc.Pcb_t) bool {
	return s.ready.Remove(func(q *proc.Pcb_t) bool { return q == p })
}

// Next pops the head of the ready queue, or nil if empty.
func (s *Sched_t) Next() *proc.Pcb_t {
	p, ok := s.ready.PopFront()
	if !ok {
		return nil
	}
	return p
}

// Current returns the process presently loaded, or nil if the CPU is
// idle.
func (s *Sched_t) Current() *proc.Pcb_t {
	return s.current
}

// Run is called from a trap return or a voluntary yield. If the
// outgoing process is still Running, it is demoted to
// Ready and re-queued; the next process is picked, promoted to
// Running, and has its pending signals drained; switchCtx receives
// the outgoing and incoming contexts so the platform layer can
// perform the actual register/address-space switch.
func (s *Sched_t) Run(switchCtx func(from, to *proc.Pcb_t)) {
	prev := s.current
	now := time.Now()
	if prev != nil {
		ran := now.Sub(s.switchedAt)
		prev.Acc.Utadd(ran.Nanoseconds())
		if s.Account != nil {
			s.Account(prev, ran)
		}
		if prev.State == proc.Running {
			prev.State = proc.Ready
			s.ready.PushBack(prev)
		}
	}

	next := s.Next()
	if next == nil {
		s.current = nil
		if s.Idle != nil {
			s.Idle()
		}
		return
	}

	next.State = proc.Running
	s.current = next
	s.switchedAt = now
	s.DeliverPending(next)
	if switchCtx != nil {
		switchCtx(prev, next)
	}
}

// TimerTick advances the tick counter and invokes Run every K ticks.
// eoi is called unconditionally: end-of-interrupt must always be
// signaled to the platform.
func (s *Sched_t) TimerTick(switchCtx func(from, to *proc.Pcb_t), eoi func()) {
	s.ticks++
	if s.ticks%s.sliceK == 0 {
		s.Run(switchCtx)
	}
	if eoi != nil {
		eoi()
	}
}

// DeliverPending drains p's pending signal queue in FIFO order,
// applying each signal's disposition. A Default
// disposition on a terminating signal calls Exit on p and stops
// draining further signals, since p is no longer schedulable.
func (s *Sched_t) DeliverPending(p *proc.Pcb_t) {
	for {
		if p.State == proc.Zombie {
			return
		}
		sig, ok := p.Pending.Dequeue()
		if !ok {
			return
		}
		disp := p.Dispositions[sig]
		switch disp.Kind {
		case signal.Handler:
			if disp.Fn != nil {
				disp.Fn(sig)
			}
		case signal.Ignore:
			// discard
		default: // signal.Default
			if signal.DefaultTerminates(sig) {
				s.procs.Exit(p, 128+sig)
				return
			}
			// default-ignore and default-stop (no Stopped state in
			// this core, see signal.DefaultStops) both fall through
			// to discarding the signal.
		}
	}
}

// DeliverException converts a CPU exception directly into a terminal
// signal delivered to p right now, synchronously within the trap that
// raised it, rather than waiting for p's next scheduler entry -- p is
// already current when an exception
// fires, so deferring would mean never delivering it at all until
// some other event reschedules p.
func (s *Sched_t) DeliverException(p *proc.Pcb_t, sig int) {
	p.Pending.Enqueue(sig)
	s.DeliverPending(p)
}

// WaitBlock transitions p to Blocked because it called wait() and
// found no zombie child yet. The caller must then invoke Run to pick
// a new current process.
func (s *Sched_t) WaitBlock(p *proc.Pcb_t) {
	p.State = proc.Blocked
}

// Kill is a thin wrapper over proc.Table_t.Kill; it does not touch the
// ready queue. Kill-ing the current process never changes its
// schedulability directly; pending delivery happens at its next
// scheduler entry (or immediately via DeliverException if it is current
// and the signal came from a trap).
func (s *Sched_t) Kill(pid defs.Pid_t, sig int) defs.Err_t {
	return s.procs.Kill(pid, sig)
}
