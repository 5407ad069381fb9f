// Package stat defines the process-status snapshot returned by the
// D_STAT device, adapted from the teacher's stat.go (a bitpacked
// struct with write/read accessor methods instead of public fields,
// so its Bytes() layout stays stable regardless of field reordering).
package stat

import "unsafe"

// Stat_t mirrors one process's status for the D_STAT device.
type Stat_t struct {
	_pid    uint
	_ppid   uint
	_uid    uint
	_state  uint
	_exit   uint
	_userns uint
	_sysns  uint
	_maxbrk uint
}

func (st *Stat_t) Wpid(v uint)    { st._pid = v }
func (st *Stat_t) Wppid(v uint)   { st._ppid = v }
func (st *Stat_t) Wuid(v uint)    { st._uid = v }
func (st *Stat_t) Wstate(v uint)  { st._state = v }
func (st *Stat_t) Wexit(v uint)   { st._exit = v }
func (st *Stat_t) Wuserns(v uint) { st._userns = v }
func (st *Stat_t) Wsysns(v uint)  { st._sysns = v }
func (st *Stat_t) Wmaxbrk(v uint) { st._maxbrk = v }

func (st *Stat_t) Pid() uint    { return st._pid }
func (st *Stat_t) Ppid() uint   { return st._ppid }
func (st *Stat_t) Uid() uint    { return st._uid }
func (st *Stat_t) State() uint  { return st._state }
func (st *Stat_t) Exit() uint   { return st._exit }
func (st *Stat_t) Userns() uint { return st._userns }
func (st *Stat_t) Sysns() uint  { return st._sysns }
func (st *Stat_t) Maxbrk() uint { return st._maxbrk }

// Bytes exposes the raw bytes of the structure, the wire format the
// D_STAT device writes out on read().
func (st *Stat_t) Bytes() []uint8 {
	const sz = unsafe.Sizeof(*st)
	sl := (*[sz]uint8)(unsafe.Pointer(&st._pid))
	return sl[:]
}
