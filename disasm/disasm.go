// Package disasm decodes faulting-instruction bytes for the panic
// report that trap.Panic writes. It
// wraps golang.org/x/arch/x86/x86asm, one of the
// teacher's own direct go.mod dependencies -- Biscuit uses the same
// package to symbolize faulting addresses during its own trap
// handling.
package disasm

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"
)

// Mode is the instruction-set width to decode in. This core targets
// 32-bit protected mode.
const Mode = 32

// Decode disassembles the single instruction at the start of code and
// renders it in Intel syntax, the form the panic report uses.
func Decode(code []byte) (string, error) {
	inst, err := x86asm.Decode(code, Mode)
	if err != nil {
		return "", err
	}
	return x86asm.IntelSyntax(inst, 0, nil), nil
}

// DecodeAt decodes the instruction at code and prefixes the report
// with the virtual address it was fetched from, the form used when
// the caller already knows the faulting eip.
func DecodeAt(addr int, code []byte) string {
	text, err := Decode(code)
	if err != nil {
		return fmt.Sprintf("%#x: <undecodable: %v>", addr, err)
	}
	return fmt.Sprintf("%#x: %s", addr, text)
}
