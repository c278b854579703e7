// Package metrics tracks a handful of running counters for the emulator
// core (host ticks and retired instructions) and, when built with the
// metrics tag, exposes a runtime statistics dashboard.
package metrics

import "sync/atomic"

// Counters holds a snapshot of the running totals.
type Counters struct {
	Ticks        uint64
	Instructions uint64
}

var (
	ticks        uint64
	instructions uint64
)

// RecordTick increments the host-tick counter. Called once per Clock call
// on the outer run loop.
func RecordTick() {
	atomic.AddUint64(&ticks, 1)
}

// RecordInstruction increments the retired-instruction counter.
func RecordInstruction() {
	atomic.AddUint64(&instructions, 1)
}

// Snapshot returns the current counters.
func Snapshot() Counters {
	return Counters{
		Ticks:        atomic.LoadUint64(&ticks),
		Instructions: atomic.LoadUint64(&instructions),
	}
}

// Reset zeroes every counter.
func Reset() {
	atomic.StoreUint64(&ticks, 0)
	atomic.StoreUint64(&instructions, 0)
}
