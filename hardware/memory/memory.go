// Package memory implements the CP-1610 bus's memory device contract: a
// fixed window of storage reacting to the shared bus's phase and tick, as
// described in the core specification §4.3. A Memory holds one base address
// and a flat array of 16-bit words; a read-only variant (ROM) ignores
// writes.
package memory

import (
	"fmt"

	"github.com/voxcard/cp1610/errors"
	"github.com/voxcard/cp1610/hardware/bus"
	"github.com/voxcard/cp1610/logger"
)

// Memory is a BusDevice implementing word storage over [base, base+len).
// Construct with NewRAM or NewROM.
type Memory struct {
	base     uint16
	store    []uint16
	writable bool

	selected    int  // offset into store; meaningful only when hasSelected
	hasSelected bool // false if this device isn't addressed
}

// NewRAM returns a writable Memory device covering size words starting at
// base.
func NewRAM(base uint16, size int) *Memory {
	return &Memory{base: base, store: make([]uint16, size), writable: true}
}

// NewROM returns a read-only Memory device covering the given image,
// starting at base. Writes directed at it are silently ignored, matching
// the core specification's read-only variant.
func NewROM(base uint16, image []uint16) *Memory {
	store := make([]uint16, len(image))
	copy(store, image)
	return &Memory{base: base, store: store, writable: false}
}

func (m *Memory) inRange(addr uint16) (offset int, ok bool) {
	if addr < m.base {
		return 0, false
	}
	off := int(addr) - int(m.base)
	if off >= len(m.store) {
		return 0, false
	}
	return off, true
}

// Clock implements bus.Device. It reacts to the bus phase exactly as
// specified in the core design: BAR latches (or clears) this device's
// address selection on tick 3; ADAR drives on tick 1 and re-latches on tick
// 3 (chained addressing); DTB and IAB drive on tick 1 when selected; DWS
// stores on tick 3 when selected and writable.
func (m *Memory) Clock(b *bus.Bus) {
	switch b.Phase {
	case bus.BAR:
		if b.Tick == 3 {
			off, ok := m.inRange(b.Data())
			m.selected, m.hasSelected = off, ok
			if !ok {
				logger.Logf(logger.Allow, "memory", "%s", errors.New(errors.BusAddressOutOfRange, fmt.Sprintf("%#04x", b.Data())))
			}
		}

	case bus.ADAR:
		if b.Tick == 1 {
			if m.hasSelected {
				b.SetData(m.store[m.selected])
			}
		} else if b.Tick == 3 {
			off, ok := m.inRange(b.Data())
			m.selected, m.hasSelected = off, ok
		}

	case bus.DTB:
		if b.Tick == 1 && m.hasSelected {
			b.SetData(m.store[m.selected])
		}

	case bus.IAB:
		if b.Tick == 1 && m.hasSelected {
			b.SetData(m.store[m.selected])
		}

	case bus.DWS:
		if b.Tick == 3 && m.hasSelected && m.writable {
			m.store[m.selected] = b.Data()
		}

	case bus.DW, bus.INTAK, bus.NACT:
		// no-op: DW drives nothing on memory's part, INTAK/NACT carry no
		// memory-device responsibility in the core spec.
	}
}

// DebugRead implements bus.DebugDevice: a side-effect-free peek, used by
// tests and the monitor. It never mutates device selection state.
func (m *Memory) DebugRead(addr uint16) (uint16, bool) {
	off, ok := m.inRange(addr)
	if !ok {
		return 0, false
	}
	return m.store[off], true
}

// DebugWrite implements bus.DebugWriter. Writable only for RAM; a ROM
// device reports ok=false so the monitor can say so.
func (m *Memory) DebugWrite(addr uint16, value uint16) bool {
	off, ok := m.inRange(addr)
	if !ok || !m.writable {
		return false
	}
	m.store[off] = value
	return true
}

