package memory

import (
	"testing"

	"github.com/voxcard/cp1610/hardware/bus"
)

// clockPhase drives b through one full micro-cycle (four host ticks) in
// the given phase, clocking m alongside it exactly as the emulator's outer
// loop would.
func clockPhase(b *bus.Bus, m *Memory, phase bus.Phase) {
	b.Phase = phase
	for i := 0; i < 4; i++ {
		m.Clock(b)
		b.Clock()
	}
}

func TestRAMReadWriteRoundTrip(t *testing.T) {
	b := bus.New()
	m := NewRAM(0x0100, 16)

	b.SetData(0x0104)
	clockPhase(b, m, bus.BAR)

	b.SetData(0xBEEF)
	clockPhase(b, m, bus.DW)
	clockPhase(b, m, bus.DWS)

	b.SetData(0x0104)
	clockPhase(b, m, bus.BAR)
	clockPhase(b, m, bus.DTB)

	if got := b.Data(); got != 0xBEEF {
		t.Fatalf("read back %#04x, want 0xBEEF", got)
	}
}

func TestROMIgnoresWrites(t *testing.T) {
	b := bus.New()
	m := NewROM(0x1000, []uint16{0xAAAA, 0xBBBB})

	b.SetData(0x1000)
	clockPhase(b, m, bus.BAR)

	b.SetData(0x1234)
	clockPhase(b, m, bus.DW)
	clockPhase(b, m, bus.DWS)

	b.SetData(0x1000)
	clockPhase(b, m, bus.BAR)
	clockPhase(b, m, bus.DTB)

	if got := b.Data(); got != 0xAAAA {
		t.Fatalf("ROM word after attempted write = %#04x, want unchanged 0xAAAA", got)
	}
}

func TestOutOfRangeAddressDeselects(t *testing.T) {
	b := bus.New()
	m := NewRAM(0x0200, 4)

	b.SetData(0x0500)
	clockPhase(b, m, bus.BAR)

	if _, ok := m.DebugRead(0x0500); ok {
		t.Fatalf("0x0500 reported in range for a device based at 0x0200 size 4")
	}
}

func TestADARChainsAddressing(t *testing.T) {
	b := bus.New()
	m := NewRAM(0x0000, 0x10)

	// Seed location 0x0003 with the address of the real target, 0x0009.
	b.SetData(0x0003)
	clockPhase(b, m, bus.BAR)
	b.SetData(0x0009)
	clockPhase(b, m, bus.DW)
	clockPhase(b, m, bus.DWS)

	// Seed the target with a recognisable value.
	b.SetData(0x0009)
	clockPhase(b, m, bus.BAR)
	b.SetData(0x7777)
	clockPhase(b, m, bus.DW)
	clockPhase(b, m, bus.DWS)

	// Now exercise the direct-addressing chain: BAR at the pointer, ADAR
	// re-addresses using the fetched word, DTB yields the final value.
	b.SetData(0x0003)
	clockPhase(b, m, bus.BAR)
	clockPhase(b, m, bus.ADAR)
	if got := b.Data(); got != 0x0009 {
		t.Fatalf("ADAR drove %#04x, want the stored pointer 0x0009", got)
	}
	clockPhase(b, m, bus.DTB)
	if got := b.Data(); got != 0x7777 {
		t.Fatalf("DTB after ADAR chaining yielded %#04x, want 0x7777", got)
	}
}

func TestDebugReadWrite(t *testing.T) {
	m := NewRAM(0x4000, 8)
	if !m.DebugWrite(0x4003, 0x9999) {
		t.Fatalf("DebugWrite reported failure for an in-range address")
	}
	v, ok := m.DebugRead(0x4003)
	if !ok || v != 0x9999 {
		t.Fatalf("DebugRead = %#04x, %v; want 0x9999, true", v, ok)
	}
	if m.DebugWrite(0x9000, 1) {
		t.Fatalf("DebugWrite succeeded for an out-of-range address")
	}
}
