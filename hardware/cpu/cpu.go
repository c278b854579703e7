package cpu

import (
	"fmt"

	"github.com/voxcard/cp1610/errors"
	"github.com/voxcard/cp1610/hardware/bus"
	"github.com/voxcard/cp1610/hardware/instance"
	"github.com/voxcard/cp1610/logger"
	"github.com/voxcard/cp1610/metrics"
)

// phaseStep is one bus phase within a scheduled step's template, together
// with the drive/sample behaviour this particular occurrence needs. drive
// runs at the start of the phase's micro-cycle (tick 0) and, if non-nil,
// asserts a value onto the bus; sample runs midway through (tick 2), after
// any device sharing the bus has had tick 1 to react to the phase, and
// captures whatever the bus is carrying.
type phaseStep struct {
	phase  bus.Phase
	drive  func() uint16
	sample func(v uint16)
}

// CPU is a General Instrument CP-1610, modelled as a bus.Device whose
// Clock method advances one host tick at a time. Everything about "what
// instruction is running" lives in the scheduled plan and the small set of
// latches below; the register file and flags are the only state that
// persists across instructions.
type CPU struct {
	R [8]uint16
	F Flags

	halted        bool
	sdbdActive    bool
	interruptLine bool

	def     *Definition
	irWord  uint16
	ea      uint16
	operand uint16

	writeValue uint16
	sdbdLow    uint16

	jumpWord1, jumpWord2 uint16
	branchOffset         uint16

	plan     []phaseStep
	planIdx  int
	planDone func()

	inst *instance.Instance
}

// New returns a CPU about to run its reset sequence: the first Clock call
// drives the INITIALIZATION step, which loads the program counter from
// whatever asserts the IAB phase (the reset vector source). inst may be nil,
// in which case the register file powers on zeroed rather than randomised;
// tests that need bit-exact starting state pass nil.
func New(inst *instance.Instance) *CPU {
	c := &CPU{inst: inst}
	c.powerOnNoise()
	c.schedule(stepInitialization, c.onInitDone)
	return c
}

// Reset clears every register, flag and in-flight execution latch and
// re-enters the INITIALIZATION step, exactly as New does for a freshly
// constructed CPU. Used by the monitor's "reset" command to restart a
// running system without rebuilding the rest of the bus.
func (c *CPU) Reset() {
	inst := c.inst
	*c = CPU{inst: inst}
	c.powerOnNoise()
	c.schedule(stepInitialization, c.onInitDone)
}

// powerOnNoise loads implausible-looking but otherwise meaningless values
// into the register file, the way real CMOS logic powers on into whatever
// state its latches happen to settle in. The INITIALIZATION step that
// follows immediately overwrites R7 from the reset vector, so this never
// affects where execution starts; it only affects what a program sees if it
// reads a register before writing it.
func (c *CPU) powerOnNoise() {
	if c.inst == nil {
		return
	}
	for i := range c.R {
		c.R[i] = c.inst.Random.Uint16()
	}
}

// Halted reports whether the CPU has executed an HLT and is idling.
func (c *CPU) Halted() bool {
	return c.halted
}

// RequestInterrupt raises the external interrupt line. It stays asserted
// until the CPU acknowledges it by running the INTERRUPT step.
func (c *CPU) RequestInterrupt() {
	c.interruptLine = true
}

// Clock implements bus.Device. The CPU is the bus's sole Phase writer: it
// asserts the current step's phase at the start of every micro-cycle, and
// everything else reacting to that phase (memory devices) does so within
// the same micro-cycle, before the CPU samples the result two ticks later.
func (c *CPU) Clock(b *bus.Bus) {
	ps := c.plan[c.planIdx]
	switch b.Tick {
	case 0:
		b.Phase = ps.phase
		if ps.drive != nil {
			b.SetData(ps.drive())
		}
	case 2:
		if ps.sample != nil {
			ps.sample(b.Data())
		}
	case 3:
		c.planIdx++
		if c.planIdx >= len(c.plan) {
			done := c.planDone
			c.plan, c.planIdx, c.planDone = nil, 0, nil
			done()
		}
	}
}

func (c *CPU) schedule(kind stepKind, done func()) {
	c.plan = c.buildPlan(kind)
	c.planIdx = 0
	c.planDone = done
}

// buildPlan expands a step kind's phase template (steps.go) into a plan,
// attaching the drive/sample closures that give each phase occurrence its
// meaning for the step currently in flight. The phase sequence always
// matches templates[kind] exactly; only the behaviour layered on top
// varies by what the CPU is doing.
func (c *CPU) buildPlan(kind stepKind) []phaseStep {
	phases := templates[kind]
	plan := make([]phaseStep, len(phases))
	for i, p := range phases {
		plan[i].phase = p
	}

	switch kind {
	case stepInitialization:
		plan[1].sample = func(v uint16) { c.R[PC] = v }

	case stepInstructionFetch:
		plan[0].drive = c.fetchPC
		plan[2].sample = func(v uint16) { c.irWord = v }

	case stepAddrIndirectRead:
		plan[0].drive = func() uint16 { return c.ea }
		plan[2].sample = func(v uint16) { c.operand = v }

	case stepAddrIndirectReadSDBD:
		plan[0].drive = func() uint16 { return c.ea }
		plan[2].sample = func(v uint16) { c.sdbdLow = v & 0xFF; c.ea++ }
		plan[3].drive = func() uint16 { return c.ea }
		plan[5].sample = func(v uint16) { c.operand = (v&0xFF)<<8 | c.sdbdLow }

	case stepAddrIndirectWrite:
		plan[0].drive = func() uint16 { return c.ea }
		plan[2].drive = func() uint16 { return c.writeValue }

	case stepAddrDirectRead:
		plan[0].drive = c.fetchPC
		plan[2].sample = func(v uint16) { c.ea = v }
		plan[4].sample = func(v uint16) { c.operand = v }

	case stepAddrDirectWrite:
		plan[0].drive = c.fetchPC
		plan[2].sample = func(v uint16) { c.ea = v }
		plan[4].drive = func() uint16 { return c.writeValue }

	case stepJump:
		plan[0].drive = c.fetchPC
		plan[2].sample = func(v uint16) { c.jumpWord1 = v }
		plan[4].drive = c.fetchPC
		plan[6].sample = func(v uint16) { c.jumpWord2 = v }

	case stepBranchTaken:
		plan[0].drive = c.fetchPC
		plan[2].sample = func(v uint16) { c.branchOffset = v }

	case stepBranchNotTaken, stepExecPad2, stepExecPad4:
		// pure timing pads; no bus traffic to drive or sample.

	case stepInterrupt:
		plan[2].drive = func() uint16 { return c.R[PC] }
		plan[5].sample = func(v uint16) { c.R[PC] = v }

	default:
		panic(Fault{Reason: fmt.Sprintf("unbuilt step kind %s", kind)})
	}
	return plan
}

// fetchPC drives the program counter's current value and post-increments
// it, the addressing behaviour every PC-relative word fetch shares
// (instruction words, direct-mode pointers, jump words, branch
// displacements).
func (c *CPU) fetchPC() uint16 {
	v := c.R[PC]
	c.R[PC]++
	return v
}

func (c *CPU) onInitDone() {
	c.schedule(stepInstructionFetch, c.onFetchDone)
}

func (c *CPU) onFetchDone() {
	metrics.RecordInstruction()

	def := Decode(c.irWord)
	if def == nil {
		logger.Logf(logger.Allow, "cpu", "%s", errors.New(errors.DecodeUnknownOpcode, fmt.Sprintf("%#04x", c.irWord)))
		c.def = nil
		c.schedule(stepExecPad2, c.onInstructionDone)
		return
	}
	c.def = def
	c.dispatch()
}

// dispatch routes a freshly decoded instruction to the addressing and
// execution path its class needs. Every branch either schedules the next
// step itself or hands off to onInstructionDone once execution is
// complete.
func (c *CPU) dispatch() {
	d := c.def
	switch d.Class {
	case ClassBranch:
		c.startBranch()
	case ClassJ:
		c.schedule(stepJump, c.onJumpDone)
	case ClassMVO:
		c.startExternalWrite()
	case ClassMVI, ClassADD, ClassSUB, ClassCMP, ClassAND, ClassXOR:
		c.startExternalRead()
	case ClassHLT:
		c.halted = true
		c.schedule(stepExecPad2, c.onInstructionDone)
	case ClassSDBD:
		c.F.DoubleByteData = true
		c.schedule(stepInstructionFetch, c.onFetchDone)
	case ClassEIS:
		c.F.InterruptEnable = true
		c.schedule(stepExecPad2, c.onInstructionDone)
	case ClassDIS:
		c.F.InterruptEnable = false
		c.schedule(stepExecPad2, c.onInstructionDone)
	case ClassTCI:
		c.schedule(stepExecPad2, c.onInstructionDone)
	case ClassCLRC:
		c.F.Carry = false
		c.schedule(stepExecPad2, c.onInstructionDone)
	case ClassSETC:
		c.F.Carry = true
		c.schedule(stepExecPad2, c.onInstructionDone)
	case ClassINCR, ClassDECR, ClassCOMR, ClassNEGR, ClassADCR, ClassGSWD, ClassRSWD:
		c.execRegisterOp()
		c.schedule(stepExecPad2, c.onInstructionDone)
	case ClassShift:
		c.execShift()
		if d.F2&0x4 != 0 {
			c.schedule(stepExecPad4, c.onInstructionDone)
		} else {
			c.schedule(stepExecPad2, c.onInstructionDone)
		}
	case ClassMOVR, ClassADDR, ClassSUBR, ClassCMPR, ClassANDR, ClassXORR:
		c.execRegReg()
		if d.Class == ClassMOVR && (d.F2 == R6 || d.F2 == R7) {
			c.schedule(stepExecPad4, c.onInstructionDone)
		} else {
			c.schedule(stepExecPad2, c.onInstructionDone)
		}
	default:
		panic(Fault{Reason: fmt.Sprintf("unhandled instruction class for opcode %#04x", d.Opcode)})
	}
}

// onInstructionDone is the common tail for every interruptible
// instruction: idle forever once halted, service a pending interrupt if
// one is both pending and enabled, otherwise resume fetching. J and SDBD
// bypass this (see dispatch) since neither is interruptible.
func (c *CPU) onInstructionDone() {
	if c.halted {
		c.schedule(stepExecPad2, c.onInstructionDone)
		return
	}
	if c.def != nil && c.def.Interruptible && c.F.InterruptEnable && c.interruptLine {
		c.schedule(stepInterrupt, c.onInterruptDone)
		return
	}
	c.schedule(stepInstructionFetch, c.onFetchDone)
}

func (c *CPU) onInterruptDone() {
	c.interruptLine = false
	c.schedule(stepInstructionFetch, c.onFetchDone)
}

// startBranch decides, before any bus traffic, whether this branch is
// taken; the two outcomes have different step templates (core
// specification §4.5), not just different register effects.
func (c *CPU) startBranch() {
	if c.evalBranchCondition() {
		c.schedule(stepBranchTaken, c.onBranchTakenDone)
	} else {
		c.schedule(stepBranchNotTaken, c.onBranchNotTakenDone)
	}
}

func (c *CPU) evalBranchCondition() bool {
	d := c.def
	var base bool
	switch d.BranchCond {
	case 0:
		base = true
	case 1:
		base = c.F.Carry
	case 2:
		base = c.F.Overflow
	case 3:
		base = c.F.Sign
	case 4:
		base = c.F.Zero
	case 5:
		base = c.F.Carry || c.F.Zero
	case 6:
		base = c.F.Sign != c.F.Overflow
	case 7:
		base = (c.F.Sign != c.F.Overflow) || c.F.Zero
	}
	if d.BranchInvert {
		return !base
	}
	return base
}

func (c *CPU) onBranchTakenDone() {
	if c.def.BranchDown {
		c.R[PC] -= c.branchOffset - 1
	} else {
		c.R[PC] += c.branchOffset
	}
	c.onInstructionDone()
}

func (c *CPU) onBranchNotTakenDone() {
	c.R[PC]++
	c.onInstructionDone()
}

// onJumpDone decodes the two operand words the JUMP step fetched (hi then
// lo) and carries out the jump-and-link: rr names the register that
// receives the return address (R4/R5/R6, or no link at all when rr==3),
// ff optionally changes the interrupt-enable flag, and the target address
// is assembled from the high six bits of hi and the low ten bits of lo.
func (c *CPU) onJumpDone() {
	hi, lo := c.jumpWord1, c.jumpWord2
	rr := uint8(hi>>8) & 0x3
	ff := uint8(hi) & 0x3
	target := (hi&0x00FC)<<8 | (lo & 0x03FF)

	if rr != 3 {
		c.R[R4+rr] = c.R[PC]
	}

	switch ff {
	case 1:
		c.F.InterruptEnable = true
	case 2:
		c.F.InterruptEnable = false
	case 3:
		logger.Log(logger.Allow, "cpu", errors.New(errors.DecodeUnknownJumpFlags, "").Error())
	}

	c.R[PC] = target
	c.schedule(stepInstructionFetch, c.onFetchDone)
}

func (c *CPU) startExternalRead() {
	d := c.def
	if d.F1 == 0 {
		c.schedule(stepAddrDirectRead, c.onExternalReadDone)
		return
	}
	c.resolveIndirectEA(d.F1, false)
	if c.F.DoubleByteData {
		c.F.DoubleByteData = false
		c.sdbdActive = true
		c.schedule(stepAddrIndirectReadSDBD, c.onExternalReadDone)
	} else {
		c.sdbdActive = false
		c.schedule(stepAddrIndirectRead, c.onExternalReadDone)
	}
}

func (c *CPU) onExternalReadDone() {
	d := c.def
	if d.F1 != 0 {
		step := uint16(1)
		if c.sdbdActive {
			step = 2
		}
		c.postStepIndirect(d.F1, false, step)
	}
	switch d.Class {
	case ClassMVI:
		c.R[d.F2] = c.operand
	case ClassADD:
		res, carry, overflow := addWithCarry(c.R[d.F2], c.operand, false)
		c.R[d.F2] = res
		c.F.Carry, c.F.Overflow = carry, overflow
		c.setSZ(res)
	case ClassSUB:
		res, carry, overflow := subtract(c.R[d.F2], c.operand)
		c.R[d.F2] = res
		c.F.Carry, c.F.Overflow = carry, overflow
		c.setSZ(res)
	case ClassCMP:
		res, carry, overflow := subtract(c.R[d.F2], c.operand)
		c.F.Carry, c.F.Overflow = carry, overflow
		c.setSZ(res)
	case ClassAND:
		res := c.R[d.F2] & c.operand
		c.R[d.F2] = res
		c.setSZ(res)
	case ClassXOR:
		res := c.R[d.F2] ^ c.operand
		c.R[d.F2] = res
		c.setSZ(res)
	}
	c.onInstructionDone()
}

func (c *CPU) startExternalWrite() {
	d := c.def
	c.writeValue = c.R[d.F2]
	if d.F1 == 0 {
		c.schedule(stepAddrDirectWrite, c.onExternalWriteDone)
		return
	}
	c.resolveIndirectEA(d.F1, true)
	c.schedule(stepAddrIndirectWrite, c.onExternalWriteDone)
}

func (c *CPU) onExternalWriteDone() {
	d := c.def
	if d.F1 != 0 {
		c.postStepIndirect(d.F1, true, 1)
	}
	c.onInstructionDone()
}

// resolveIndirectEA computes the effective address for register-indirect
// addressing through reg. R6, the stack pointer, pre-decrements on a
// write (a push); every other register is left untouched here and instead
// adjusted after the access completes (see postStepIndirect).
func (c *CPU) resolveIndirectEA(reg uint8, write bool) {
	addr := c.R[reg]
	if reg == R6 && write {
		addr--
		c.R[reg] = addr
	}
	c.ea = addr
}

// postStepIndirect applies the auto-increment half of the CP-1610's
// indirect-addressing quirks: R4, R5 and R7 always post-increment after
// use, by step (2 instead of 1 when the access just consumed an SDBD
// double-byte operand); R6 post-increments only after a read (a pop),
// since a write already pre-decremented it above.
func (c *CPU) postStepIndirect(reg uint8, write bool, step uint16) {
	switch reg {
	case 4, 5, PC:
		c.R[reg] += step
	case R6:
		if !write {
			c.R[reg]++
		}
	}
}

func (c *CPU) execRegisterOp() {
	d := c.def
	r := d.F2
	switch d.Class {
	case ClassINCR:
		c.R[r]++
		c.setSZ(c.R[r])
	case ClassDECR:
		c.R[r]--
		c.setSZ(c.R[r])
	case ClassCOMR:
		c.R[r] = ^c.R[r]
		c.setSZ(c.R[r])
	case ClassNEGR:
		res, carry, overflow := subtract(0, c.R[r])
		c.R[r] = res
		c.F.Carry, c.F.Overflow = carry, overflow
		c.setSZ(res)
	case ClassADCR:
		res, carry, overflow := addWithCarry(c.R[r], 0, c.F.Carry)
		c.R[r] = res
		c.F.Carry, c.F.Overflow = carry, overflow
		c.setSZ(res)
	case ClassGSWD:
		n := uint16(c.F.gswdNibble())
		c.R[r] = n<<12 | n<<4
	case ClassRSWD:
		c.F.setFromGSWDNibble(uint8(c.R[r]>>4) & 0xF)
	}
}

// execShift implements the single- and double-shift forms of the shift/
// rotate family. A double shift (",2", selected by bit 2 of F2) is not a
// naive repetition of the single-shift step: the link-carrying variants
// (RLC, SARC, RRC) consume both C and O as a two-bit link and split the
// two bits shifted out of the original value across C and O, and SWAP's
// double form duplicates the low byte into both bytes rather than
// restoring the original word.
func (c *CPU) execShift() {
	d := c.def
	r := d.F2 & 0x3
	double := d.F2&0x4 != 0
	v := c.R[r]

	switch d.ShiftOp {
	case ShiftSWAP:
		res := v<<8 | v>>8
		if double {
			low := v & 0xFF
			res = low<<8 | low
		}
		c.R[r] = res
		c.setSZByte(res)

	case ShiftSLL:
		shift := uint16(1)
		if double {
			shift = 2
		}
		res := v << shift
		c.R[r] = res
		c.setSZ(res)

	case ShiftSLLC:
		res := v << 1
		carry := v&0x8000 != 0
		overflow := c.F.Overflow
		if double {
			res = v << 2
			overflow = v&0x4000 != 0
		}
		c.R[r] = res
		c.F.Carry = carry
		c.F.Overflow = overflow
		c.setSZ(res)

	case ShiftSLR:
		shift := uint16(1)
		if double {
			shift = 2
		}
		res := v >> shift
		c.R[r] = res
		c.setSZByte(res)

	case ShiftSAR:
		shift := uint16(1)
		var sign uint16
		if double {
			shift = 2
			if v&0x8000 != 0 {
				sign = 0xC000
			}
		} else if v&0x8000 != 0 {
			sign = 0x8000
		}
		res := v>>shift | sign
		c.R[r] = res
		c.setSZByte(res)

	case ShiftRLC:
		var cin uint16
		if c.F.Carry {
			cin = 1
		}
		carry := v&0x8000 != 0
		overflow := c.F.Overflow
		res := v<<1 | cin
		if double {
			var oin uint16
			if c.F.Overflow {
				oin = 1
			}
			res = v<<2 | cin<<1 | oin
			overflow = v&0x4000 != 0
		}
		c.R[r] = res
		c.F.Carry = carry
		c.F.Overflow = overflow
		c.setSZ(res)

	case ShiftSARC:
		carry := v&0x0001 != 0
		overflow := c.F.Overflow
		var sign uint16
		shift := uint16(1)
		if double {
			shift = 2
			if v&0x8000 != 0 {
				sign = 0xC000
			}
			overflow = v&0x0002 != 0
		} else if v&0x8000 != 0 {
			sign = 0x8000
		}
		res := v>>shift | sign
		c.R[r] = res
		c.F.Carry = carry
		c.F.Overflow = overflow
		c.setSZ(res)

	case ShiftRRC:
		var cin uint16
		if c.F.Carry {
			cin = 0x8000
		}
		carry := v&0x0001 != 0
		overflow := c.F.Overflow
		res := v>>1 | cin
		if double {
			var oin uint16
			if c.F.Overflow {
				oin = 0x8000
			}
			res = v>>2 | cin>>1 | oin
			overflow = v&0x0002 != 0
		}
		c.R[r] = res
		c.F.Carry = carry
		c.F.Overflow = overflow
		c.setSZ(res)
	}
}

func (c *CPU) execRegReg() {
	d := c.def
	src, dst := c.R[d.F1], c.R[d.F2]
	switch d.Class {
	case ClassMOVR:
		c.R[d.F2] = src
		c.setSZ(src)
	case ClassADDR:
		res, carry, overflow := addWithCarry(dst, src, false)
		c.R[d.F2] = res
		c.F.Carry, c.F.Overflow = carry, overflow
		c.setSZ(res)
	case ClassSUBR:
		res, carry, overflow := subtract(dst, src)
		c.R[d.F2] = res
		c.F.Carry, c.F.Overflow = carry, overflow
		c.setSZ(res)
	case ClassCMPR:
		res, carry, overflow := subtract(dst, src)
		c.F.Carry, c.F.Overflow = carry, overflow
		c.setSZ(res)
	case ClassANDR:
		res := dst & src
		c.R[d.F2] = res
		c.setSZ(res)
	case ClassXORR:
		res := dst ^ src
		c.R[d.F2] = res
		c.setSZ(res)
	}
}

func (c *CPU) setSZ(v uint16) {
	c.F.Sign = v&0x8000 != 0
	c.F.Zero = v == 0
}

// setSZByte is setSZ for the shift-family operations that take Sign from
// bit 7 of the destination (the high bit of the low byte) rather than
// bit 15 of the full word: SWAP, SLR and SAR.
func (c *CPU) setSZByte(v uint16) {
	c.F.Sign = v&0x80 != 0
	c.F.Zero = v == 0
}

// addWithCarry adds a, b and an optional carry-in as 16-bit values,
// reporting the carry-out and signed overflow of the addition.
func addWithCarry(a, b uint16, carryIn bool) (result uint16, carry, overflow bool) {
	var cin uint32
	if carryIn {
		cin = 1
	}
	sum := uint32(a) + uint32(b) + cin
	result = uint16(sum)
	carry = sum > 0xFFFF
	overflow = (^(a^b))&(a^result)&0x8000 != 0
	return
}

// subtract computes a-b as 16-bit values, reporting carry (set when the
// subtraction did not borrow, the usual convention) and signed overflow.
func subtract(a, b uint16) (result uint16, carry, overflow bool) {
	sum := uint32(a) + uint32(^b&0xFFFF) + 1
	result = uint16(sum)
	carry = sum > 0xFFFF
	overflow = (a^b)&(a^result)&0x8000 != 0
	return
}
