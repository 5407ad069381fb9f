// Package fdops defines the descriptor-operations interface every
// open file descriptor implements. Its shape is inferred from the
// teacher's fd.go, which holds an Fdops_i but never defines it in
// this retrieval pack (the filesystem/network packages that would
// have defined the real interface -- fs, unet, inet -- came back
// empty). Sockets (package sock) and the kernel's D_STAT/D_PROF device
// descriptors implement it; the write/read system calls in package
// kernel dispatch straight through to it.
package fdops

import "github.com/nucleus-os/nucleus/defs"

// Fdops_i is implemented by anything reachable through a process's
// descriptor table.
type Fdops_i interface {
	// Read copies up to len(buf) bytes into buf, returning the count
	// read. A connected-but-empty source returns (0, 0), never
	// blocking: sockets in this core are always non-blocking.
	Read(buf []uint8) (int, defs.Err_t)
	// Write copies buf out, returning the count accepted.
	Write(buf []uint8) (int, defs.Err_t)
	// Close releases the descriptor's resources.
	Close() defs.Err_t
	// Reopen increments the descriptor's reference count for a dup.
	Reopen() defs.Err_t
}
