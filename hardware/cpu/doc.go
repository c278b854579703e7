// Package cpu implements the General Instrument CP-1610, the microprocessor
// at the heart of the Mattel Intellivision, as a bus-phase-driven state
// machine. A CPU is clocked one host tick at a time alongside every memory
// device sharing its bus.Bus; each instruction decomposes into an ordered
// sequence of bus phases (a "step"), four ticks (one micro-cycle) per
// phase, with register and flag side effects committed when the step
// completes.
package cpu
