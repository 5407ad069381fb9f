// Package ustr provides a small immutable byte-string type, used for a
// PCB's diagnostic name label, plus a helper that renders a
// local-socket address as text.
//
// Adapted from the teacher's path-string package of the same name;
// here it has no notion of path separators or canonicalization since
// this core never walks a VFS hierarchy.
package ustr

import "strconv"

// Ustr is an immutable byte string.
type Ustr []uint8

// Eq compares two Ustr values for equality.
func (us Ustr) Eq(s Ustr) bool {
	if len(us) != len(s) {
		return false
	}
	for i, v := range us {
		if v != s[i] {
			return false
		}
	}
	return true
}

// String implements fmt.Stringer.
func (us Ustr) String() string {
	return string(us)
}

// MkUstr creates an empty Ustr value.
func MkUstr() Ustr {
	return Ustr{}
}

// FromString copies a Go string into an Ustr.
func FromString(s string) Ustr {
	return Ustr(s)
}

// SockAddr renders a local-socket address (pid, port) as "pid:port".
func SockAddr(pid int, port int) Ustr {
	s := strconv.Itoa(pid) + ":" + strconv.Itoa(port)
	return Ustr(s)
}
