// Package bus phase encoding.
//
//	Value  Name   BDIR BC2 BC1  Meaning
//	0      NACT   0 0 0         no action; bus floats
//	1      ADAR   0 0 1         addressed device drives data as next address
//	2      IAB    0 1 0         external source asserts reset/interrupt vector
//	3      DTB    0 1 1         addressed device drives data; CPU reads
//	4      BAR    1 0 0         CPU asserts address
//	5      DW     1 0 1         CPU asserts data to write (first half)
//	6      DWS    1 1 0         CPU continues asserting data (second half)
//	7      INTAK  1 1 1         interrupt acknowledge; CPU asserts stack pointer
//
// A micro-cycle is four host ticks (0..3) during which exactly one phase is
// active. The CPU writes Phase at tick 0 of a micro-cycle; devices observe
// (Phase, Tick) to know when to drive or sample Data within it.
package bus
