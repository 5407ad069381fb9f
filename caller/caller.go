// Package caller captures bounded stack traces for the panic path
// (spec ERROR HANDLING DESIGN: the panic path snapshots "a bounded
// stack window"). Adapted from the teacher's caller.go, trimmed to the
// one thing the kernel-fatal path needs: a formatted, depth-limited
// trace, not the distinct-caller-path tracking the teacher used for
// bug-hunting during development.
package caller

import (
	"fmt"
	"runtime"
)

// MaxDepth bounds how many frames Dump collects, mirroring the spec's
// "bounded stack window" requirement for the panic report.
const MaxDepth = 32

// Dump returns a formatted stack trace starting `skip` frames above
// its own caller.
func Dump(skip int) string {
	pcs := make([]uintptr, MaxDepth)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return "(no stack available)"
	}
	frames := runtime.CallersFrames(pcs[:n])
	s := ""
	for {
		fr, more := frames.Next()
		s += fmt.Sprintf("%s:%d %s\n", fr.File, fr.Line, fr.Function)
		if !more {
			break
		}
	}
	return s
}
