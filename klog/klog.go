// Package klog is the core's console logger. The teacher never reaches
// for a structured-logging library -- every subsystem logs with a bare
// fmt.Printf straight to the console, prefixed by subsystem name. This
// package keeps exactly that convention but makes the destination
// writer swappable, so tests can assert on log output instead of
// scraping the real console.
package klog

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Out is the console writer. Tests may replace it with a bytes.Buffer.
var Out io.Writer = os.Stderr

var mu sync.Mutex

// Printf writes a subsystem-prefixed line to Out, matching the
// teacher's unadorned fmt.Printf("...: ...\n") style.
func Printf(subsys, format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(Out, "[%s] ", subsys)
	fmt.Fprintf(Out, format, args...)
	if format == "" || format[len(format)-1] != '\n' {
		fmt.Fprintf(Out, "\n")
	}
}
