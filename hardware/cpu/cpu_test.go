package cpu

import (
	"testing"

	"github.com/voxcard/cp1610/hardware/bus"
	"github.com/voxcard/cp1610/hardware/instance"
	"github.com/voxcard/cp1610/hardware/memory"
)

// vectorSource is a minimal bus.Device standing in for whatever asserts the
// reset/interrupt vector during an IAB phase; real wiring (cmd/cp1610monitor)
// uses the same shape.
type vectorSource struct {
	value uint16
}

func (v *vectorSource) Clock(b *bus.Bus) {
	if b.Phase == bus.IAB && b.Tick == 1 {
		b.SetData(v.value)
	}
}

const resetVector = 0x1000

// newSystem wires a CPU, a flat 64K RAM and a reset-vector source together,
// loading program into RAM starting at resetVector.
func newSystem(program ...uint16) (*CPU, *bus.Bus, []bus.Device) {
	b := bus.New()
	mem := memory.NewRAM(0, 0x10000)
	for i, word := range program {
		mem.DebugWrite(resetVector+uint16(i), word)
	}
	vec := &vectorSource{value: resetVector}
	c := New(nil)
	return c, b, []bus.Device{c, mem, vec}
}

func run(b *bus.Bus, devices []bus.Device, ticks int) {
	for i := 0; i < ticks; i++ {
		for _, d := range devices {
			d.Clock(b)
		}
		b.Clock()
	}
}

func TestResetLoadsProgramCounterFromVector(t *testing.T) {
	c, b, devices := newSystem()
	run(b, devices, 20) // INITIALIZATION is exactly 5 micro-cycles
	if c.R[PC] != resetVector {
		t.Fatalf("PC = %#04x, want %#04x", c.R[PC], resetVector)
	}
}

// opMVI builds an external MVI opcode: F1 selects the addressing register
// (7 = immediate, via R7/PC), F2 the destination register.
func opMVI(f1, f2 uint8) uint16 {
	return 0x0200 | uint16(2)<<6 | uint16(f1)<<3 | uint16(f2)
}

func opHLT() uint16 { return 0x0000 }

func TestMVIImmediateLoadsRegisterThenHalts(t *testing.T) {
	c, b, devices := newSystem(
		opMVI(7, 0), // MVI @R7, R0  (immediate)
		0x1234,      // the immediate word
		opHLT(),
	)
	run(b, devices, 200)

	if c.R[R0] != 0x1234 {
		t.Fatalf("R0 = %#04x, want 0x1234", c.R[R0])
	}
	if !c.Halted() {
		t.Fatalf("CPU did not reach HLT")
	}
	if c.R[PC] != resetVector+3 {
		t.Fatalf("PC = %#04x, want %#04x (past the 3-word program)", c.R[PC], resetVector+3)
	}
}

// opADDR builds a register-register ADDR F1,F2 opcode (ClassADDR is
// regRegClass[3]).
func opADDR(f1, f2 uint8) uint16 {
	return uint16(3)<<6 | uint16(f1)<<3 | uint16(f2)
}

// opMVIImm loads an immediate value via R7 into dest, returning the two
// words (opcode, operand) that must be placed consecutively.
func opMVIImm(dest uint8, value uint16) [2]uint16 {
	return [2]uint16{opMVI(7, dest), value}
}

func TestADDRSetsCarryAndZero(t *testing.T) {
	w1 := opMVIImm(R0, 0xFFFF)
	w2 := opMVIImm(R1, 0x0001)
	c, b, devices := newSystem(
		w1[0], w1[1],
		w2[0], w2[1],
		opADDR(R1, R0), // R0 += R1
		opHLT(),
	)
	run(b, devices, 400)

	if !c.Halted() {
		t.Fatalf("CPU did not reach HLT")
	}
	if c.R[R0] != 0 {
		t.Fatalf("R0 = %#04x, want 0 (0xFFFF + 1 wraps)", c.R[R0])
	}
	if !c.F.Carry {
		t.Fatalf("Carry flag not set after an addition that overflowed 16 bits")
	}
	if !c.F.Zero {
		t.Fatalf("Zero flag not set for a zero result")
	}
}

// opBranch builds an unconditional forward branch (cond=0, not inverted,
// not downward) whose displacement is the following word.
func opBranch() uint16 {
	return 0x0200 // ext=1, op=0, all condition/direction bits zero
}

// opBranchBack builds an unconditional backward branch (cond=0, not
// inverted, direction bit set) whose displacement is the following word.
func opBranchBack() uint16 {
	return 0x0220 // ext=1, op=0, direction bit (0x20) set
}

func TestUnconditionalBranchSkipsOverInstruction(t *testing.T) {
	c, b, devices := newSystem(
		opBranch(), 0x0002, // branch forward by 2 words, over the MVI below
		opMVI(7, R0), 0xDEAD, // must never execute
		opHLT(),
	)
	run(b, devices, 200)

	if !c.Halted() {
		t.Fatalf("CPU did not reach HLT")
	}
	if c.R[R0] != 0 {
		t.Fatalf("R0 = %#04x, want 0: the branch should have skipped the MVI", c.R[R0])
	}
}

// TestBackwardBranchAppliesTheOffByOneAdjustment pins down the "+1 on the
// downward path" term in R7 <- R7 + direction*offset + (direction>0?0:1):
// a naive R7 -= offset (no adjustment) would land one word earlier than the
// spec's formula.
func TestBackwardBranchAppliesTheOffByOneAdjustment(t *testing.T) {
	c, _, _ := newSystem()
	c.R[PC] = resetVector + 0x10
	c.branchOffset = 5
	c.def = &Definition{BranchDown: true}
	c.onBranchTakenDone()

	want := uint16(resetVector + 0x10 - 5 + 1)
	if c.R[PC] != want {
		t.Fatalf("R7 = %#04x, want %#04x (R7 + direction*offset + 1 for a downward branch)", c.R[PC], want)
	}
}

func TestGSWDRSWDRoundTrip(t *testing.T) {
	c, _, _ := newSystem()
	c.F.Sign = true
	c.F.Zero = false
	c.F.Overflow = true
	c.F.Carry = true
	c.F.InterruptEnable = true

	c.def = &Definition{F2: R2, Class: ClassGSWD}
	c.execRegisterOp()

	saved := c.F
	c.F = Flags{InterruptEnable: true} // clear everything GSWD/RSWD should restore
	c.def = &Definition{F2: R2, Class: ClassRSWD}
	c.execRegisterOp()

	if c.F.Sign != saved.Sign || c.F.Zero != saved.Zero || c.F.Overflow != saved.Overflow || c.F.Carry != saved.Carry {
		t.Fatalf("RSWD did not restore the flags GSWD packed: got %+v, want %+v", c.F, saved)
	}
	if !c.F.InterruptEnable {
		t.Fatalf("RSWD touched the interrupt-enable flag; it should leave it alone")
	}
}

func TestSWAPTwiceIsIdentity(t *testing.T) {
	c, _, _ := newSystem()
	c.R[R0&0x3] = 0x1234
	c.def = &Definition{F2: 0, ShiftOp: ShiftSWAP}
	c.execShift()
	if c.R[0] != 0x3412 {
		t.Fatalf("single SWAP = %#04x, want 0x3412", c.R[0])
	}
	c.execShift()
	if c.R[0] != 0x1234 {
		t.Fatalf("second SWAP = %#04x, want identity 0x1234", c.R[0])
	}
}

func TestCMPMatchesSUBFlagsWithoutWritingBack(t *testing.T) {
	c, _, _ := newSystem()
	c.R[R0] = 5
	before := c.R[R0]
	c.def = &Definition{Class: ClassCMPR, F1: R1, F2: R0}
	c.R[R1] = 10
	c.execRegReg()

	if c.R[R0] != before {
		t.Fatalf("CMPR modified its destination register: got %#04x, want unchanged %#04x", c.R[R0], before)
	}
	if !c.F.Sign {
		t.Fatalf("5-10 should be negative, Sign flag not set")
	}

	sub, _, _ := newSystem()
	sub.R[R0], sub.R[R1] = 5, 10
	sub.def = &Definition{Class: ClassSUBR, F1: R1, F2: R0}
	sub.execRegReg()
	if c.F != sub.F {
		t.Fatalf("CMPR flags %+v differ from SUBR flags %+v on the same operands", c.F, sub.F)
	}
}

func TestDecodeUnknownBranchConditionIsNil(t *testing.T) {
	if Decode(0x020F) != nil {
		t.Fatalf("opcode 0x020F (reserved branch condition) should not decode")
	}
}

func TestPowerOnNoiseIsSkippedWithoutAnInstance(t *testing.T) {
	c := New(nil)
	for i, r := range c.R {
		if r != 0 {
			t.Fatalf("R%d = %#04x with no instance attached, want 0", i, r)
		}
	}
}

// opSDBD builds the SDBD prefix opcode (internal, F1=0, F2=1).
func opSDBD() uint16 { return 0x0001 }

func TestJumpAndLinkMatchesWorkedExample(t *testing.T) {
	// The literal end-to-end scenario: J-family opcode 0x0004 followed by
	// hi=0x0112, lo=0x0026 is JSRD R5 to 0x1026 (rr=1 selects R5, ff=2
	// clears the interrupt-enable flag).
	// 72 ticks = INITIALIZATION (5) + INSTRUCTION_FETCH (4) + JUMP (9)
	// micro-cycles: the state right as the jump completes, before the next
	// fetch from 0x1026 advances R7 again.
	c, b, devices := newSystem(0x0004, 0x0112, 0x0026)
	c.F.InterruptEnable = true
	run(b, devices, 72)

	if c.R[PC] != 0x1026 {
		t.Fatalf("R7 = %#04x, want 0x1026", c.R[PC])
	}
	if c.R[R5] != resetVector+3 {
		t.Fatalf("R5 = %#04x, want %#04x (return address)", c.R[R5], resetVector+3)
	}
	if c.F.InterruptEnable {
		t.Fatalf("interrupt-enable flag should have been cleared (ff=2)")
	}
}

func TestJumpWithNoLinkLeavesLinkRegistersUntouched(t *testing.T) {
	// rr=3 means "no link": none of R4-R6 should receive a return address.
	// hi = rr(3)<<8 | ff(0) = 0x0300, target = 0. Runs exactly to the end of
	// the jump (72 ticks, as above), before the next fetch advances R7.
	before := [8]uint16{}
	c, b, devices := newSystem(0x0004, 0x0300, 0x0000)
	copy(before[:], c.R[:])
	run(b, devices, 72)

	for i := R4; i <= R6; i++ {
		if c.R[i] != before[i] {
			t.Fatalf("R%d = %#04x, want unchanged %#04x: rr==3 must not link", i, c.R[i], before[i])
		}
	}
	if c.R[PC] != 0 {
		t.Fatalf("R7 = %#04x, want 0", c.R[PC])
	}
}

func TestSDBDTwoByteImmediateRead(t *testing.T) {
	// With D set by a preceding SDBD, MVI@ R7,R0 reads the low byte of two
	// successive words and assembles them low-byte-first.
	c, b, devices := newSystem(
		opSDBD(),
		opMVI(7, R0), // MVI@ R7, R0 (indirect through R7)
		0x00CD,
		0x00AB,
		opHLT(),
	)
	run(b, devices, 400)

	if !c.Halted() {
		t.Fatalf("CPU did not reach HLT")
	}
	if c.R[R0] != 0xABCD {
		t.Fatalf("R0 = %#04x, want 0xABCD", c.R[R0])
	}
	if c.F.DoubleByteData {
		t.Fatalf("D flag should be cleared after the SDBD-affected instruction completed")
	}
}

func TestSwapDoubleDuplicatesLowByte(t *testing.T) {
	c, _, _ := newSystem()
	c.R[0] = 0x1234
	c.def = &Definition{F2: 0x4, ShiftOp: ShiftSWAP} // SWAP R0,2
	c.execShift()
	if c.R[0] != 0x3434 {
		t.Fatalf("SWAP R0,2 = %#04x, want 0x3434 (low byte duplicated into both bytes)", c.R[0])
	}
}

func TestRLCDoubleRoutesBit15ToCarryAndBit14ToOverflow(t *testing.T) {
	c, _, _ := newSystem()
	c.R[0] = 0xC000 // bit15=1, bit14=1
	c.F.Carry = false
	c.F.Overflow = false
	c.def = &Definition{F2: 0x4, ShiftOp: ShiftRLC} // RLC R0,2
	c.execShift()

	if !c.F.Carry {
		t.Fatalf("Carry should carry bit 15 of the original value")
	}
	if !c.F.Overflow {
		t.Fatalf("Overflow should carry bit 14 of the original value")
	}
	if c.R[0] != 0x0000 {
		t.Fatalf("R0 = %#04x, want 0x0000 (0xC000 rotated left 2 with a zero link)", c.R[0])
	}
}

func TestSARCDoubleCapturesSecondShiftedBitIntoOverflow(t *testing.T) {
	c, _, _ := newSystem()
	c.R[0] = 0x0003 // bit0=1, bit1=1
	c.F.Carry = false
	c.F.Overflow = false
	c.def = &Definition{F2: 0x4, ShiftOp: ShiftSARC} // SARC R0,2
	c.execShift()

	if !c.F.Carry {
		t.Fatalf("Carry should capture bit 0 of the original value")
	}
	if !c.F.Overflow {
		t.Fatalf("Overflow should capture bit 1 of the original value on a double shift")
	}
}

func TestRRCDoubleCapturesSecondShiftedBitIntoOverflow(t *testing.T) {
	c, _, _ := newSystem()
	c.R[0] = 0x0003 // bit0=1, bit1=1
	c.F.Carry = false
	c.F.Overflow = false
	c.def = &Definition{F2: 0x4, ShiftOp: ShiftRRC} // RRC R0,2
	c.execShift()

	if !c.F.Carry {
		t.Fatalf("Carry should capture bit 0 of the original value")
	}
	if !c.F.Overflow {
		t.Fatalf("Overflow should capture bit 1 of the original value on a double shift")
	}
}

func TestGSWDPacksNibbleIntoBothBytes(t *testing.T) {
	c, _, _ := newSystem()
	c.F.Sign = true
	c.F.Zero = false
	c.F.Overflow = true
	c.F.Carry = true

	c.def = &Definition{F2: R3, Class: ClassGSWD}
	c.execRegisterOp()

	if hi := uint8(c.R[R3] >> 12); hi != 0xB {
		t.Fatalf("high nibble of high byte = %#x, want 0xb (S,_,O,C)", hi)
	}
	if lo := uint8(c.R[R3]>>4) & 0xF; lo != 0xB {
		t.Fatalf("high nibble of low byte = %#x, want 0xb (mirrored)", lo)
	}
}

func TestRSWDReadsLowByteHighNibble(t *testing.T) {
	c, _, _ := newSystem()
	// high byte deliberately holds a different nibble than the low byte,
	// so a test that reads the wrong half fails loudly.
	c.R[R3] = 0xF0B0
	c.def = &Definition{F2: R3, Class: ClassRSWD}
	c.execRegisterOp()

	if !c.F.Sign || c.F.Zero || !c.F.Overflow || !c.F.Carry {
		t.Fatalf("RSWD did not unpack the low byte's high nibble (0xb): got %+v", c.F)
	}
}

func TestPowerOnNoiseIsDeterministicWithZeroSeed(t *testing.T) {
	newZeroSeeded := func() *instance.Instance {
		inst := instance.New(instance.Functional, 7)
		inst.Random.ZeroSeed = true
		return inst
	}

	a := New(newZeroSeeded())
	c := New(newZeroSeeded())
	if a.R != c.R {
		t.Fatalf("two CPUs, each given a fresh zero-seeded instance with the same salt, powered on with different noise: %v vs %v", a.R, c.R)
	}

	run(bus.New(), []bus.Device{a}, 20)
	if a.R[PC] != 0xFFFF {
		t.Fatalf("PC = %#04x after INITIALIZATION with no vector source driving IAB, want the floating bus value 0xffff", a.R[PC])
	}
}
