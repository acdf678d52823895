// Package machine implements the CHIP-8 interpreter engine.
//
// # Memory Layout
//
// The machine has 4KB of byte addressed memory (0x000-0xFFF):
//   - 0x000-0x04F: built-in hexadecimal font sprites, 5 bytes per digit
//   - 0x050-0x1FF: reserved interpreter area
//   - ProgramStart-0xFFF: program and data loaded by Load
//
// # Execution Model
//
// Every call to Step executes exactly one 2 byte instruction. The opcode is
// looked up in a table keyed by its top nibble; each table entry carries the
// mask/value pattern, the instruction identity used for disassembly and the
// handler that mutates the machine state. Disassembly uses the same table and
// never executes anything.
//
// Timers are not decremented by Step. The host decrements them at 60 Hz by
// calling TickTimers, independent of the instruction rate.
//
// # Waiting For Input
//
// The "ld Vx, K" instruction suspends execution. While suspended Step returns
// Suspended without touching any state. The host resolves the suspension by
// reporting a key press through SetKey, which stores the key code into the
// waiting register.
//
// # Errors
//
// Execution errors are returned as *ExecError and halt the machine: every
// following Step call returns the same error. Stack overflow and underflow,
// unknown opcodes and memory accesses outside of the 4KB address space are
// reported instead of wrapping silently.
package machine
