package bus

// Device is the capability every attachable peripheral satisfies: advance
// one host tick, observing the shared Bus to decide whether to latch an
// address, drive data, or accept a write. The CPU itself also implements
// Device; the emulator's outer loop clocks it alongside every other
// attached device in a fixed registration order.
type Device interface {
	// Clock advances the device by one host tick. The device observes b's
	// current Phase and Tick to decide what, if anything, to do.
	Clock(b *Bus)
}

// DebugDevice is implemented by devices that can answer a side-effect-free
// peek at an address, for use by tests and the monitor. A device that is
// not responsible for addr returns ok=false.
type DebugDevice interface {
	// DebugRead returns the value stored at addr without touching the bus
	// or any device-internal state (selection, queued writes, and so on).
	DebugRead(addr uint16) (value uint16, ok bool)
}

// DebugWriter is the write-side counterpart of DebugDevice, used by the
// monitor's poke command. A device that is not responsible for addr, or
// that is read-only, returns ok=false.
type DebugWriter interface {
	DebugWrite(addr uint16, value uint16) (ok bool)
}
