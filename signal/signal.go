// Package signal implements the per-process pending-signal queue and
// disposition table, plus the full 31-signal default-action table
// supplementing the exception-triggered subset from
// original_source/src/signal.c. It is a leaf package with respect to
// proc/sched: a Pcb_t embeds a Pending_t and a Table_t, and the
// scheduler drains them, but this package never references proc or
// sched, avoiding the import cycle a "deliver to a process" method
// here would otherwise create.
package signal

import "github.com/nucleus-os/nucleus/defs"

// Disp_t is one of the three dispositions a process can register for
// a signal: a three-variant discriminated union rather than a pointer
// with sentinel values.
type Disp_t int

const (
	Default Disp_t = iota
	Ignore
	Handler
)

// Handler_t is a registered signal handler, invoked with the
// delivered signal number.
type Handler_t func(sig int)

// Disposition_t is one entry of a process's disposition table.
type Disposition_t struct {
	Kind Disp_t
	Fn   Handler_t
}

// Table_t is a process's full disposition array, indexed by signal
// number. The zero value is every signal Default, matching a freshly
// created process.
type Table_t [defs.NSIG + 1]Disposition_t

// Register installs disp for sig. Registering a handler (not Default
// or Ignore) for Kill or Stop always fails -- those two signals
// always perform their default action.
func Register(tbl *Table_t, sig int, disp Disposition_t) defs.Err_t {
	if sig < 1 || sig > defs.NSIG {
		return -defs.EINVAL
	}
	if (sig == defs.SIGKILL || sig == defs.SIGSTOP) && disp.Kind != Default {
		return -defs.EPERM
	}
	tbl[sig] = disp
	return 0
}

// Pending_t is a process's FIFO queue of raised-but-undelivered
// signals. Unlike the ready queue or accept ring, spec.md gives no
// fixed capacity for this queue, so it grows as raised.
type Pending_t struct {
	q []int
}

// Enqueue appends sig to the pending queue.
func (p *Pending_t) Enqueue(sig int) {
	p.q = append(p.q, sig)
}

// Dequeue removes and returns the oldest pending signal.
func (p *Pending_t) Dequeue() (int, bool) {
	if len(p.q) == 0 {
		return 0, false
	}
	sig := p.q[0]
	p.q = p.q[1:]
	return sig, true
}

// Empty reports whether the pending queue holds no signals.
func (p *Pending_t) Empty() bool {
	return len(p.q) == 0
}

// action_t is a signal's default behavior when Disposition is Default.
type action_t int

const (
	actTerminate action_t = iota
	actIgnore
	actStop
)

// defaultActions is the full 31-signal default-action table, pinned
// from original_source/src/signal.c -- the exception-triggered subset
// isn't the whole picture, so this fills in the rest (SIGCHLD's
// default-ignore, the stop/continue job-control signals, etc).
var defaultActions = map[int]action_t{
	defs.SIGHUP:  actTerminate,
	defs.SIGINT:  actTerminate,
	defs.SIGQUIT: actTerminate,
	defs.SIGILL:  actTerminate,
	defs.SIGTRAP: actTerminate,
	defs.SIGABRT: actTerminate,
	defs.SIGBUS:  actTerminate,
	defs.SIGFPE:  actTerminate,
	defs.SIGKILL: actTerminate,
	defs.SIGUSR1: actTerminate,
	defs.SIGSEGV: actTerminate,
	defs.SIGUSR2: actTerminate,
	defs.SIGPIPE: actTerminate,
	defs.SIGALRM: actTerminate,
	defs.SIGTERM: actTerminate,
	defs.SIGCHLD: actIgnore,
	defs.SIGCONT: actIgnore,
	defs.SIGURG:  actIgnore,
	defs.SIGWINCH: actIgnore,
	defs.SIGSTOP: actStop,
	defs.SIGTSTP: actStop,
	defs.SIGTTIN: actStop,
	defs.SIGTTOU: actStop,
}

// DefaultTerminates reports whether sig's default action terminates
// the process.
func DefaultTerminates(sig int) bool {
	return defaultActions[sig] == actTerminate
}

// DefaultStops reports whether sig's default action is the POSIX
// "stop" action. This core has no Stopped process state (PCB states
// are Unused/Ready/Running/Blocked/Zombie only), so a stop-by-default
// signal is handled the same as ignore-by-default:
// there is nowhere to put a stopped process. See DESIGN.md.
func DefaultStops(sig int) bool {
	return defaultActions[sig] == actStop
}
