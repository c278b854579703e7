package cpu

import "github.com/voxcard/cp1610/hardware/bus"

// stepKind names one of the logical steps in the CPU's bus-phase catalog
// (core specification §4.5). Using a named type, rather than a bare index
// into the phase table, keeps step kinds distinct from other integers; the
// compiler does not check switch exhaustiveness, so buildPlan panics with a
// Fault on a kind it does not handle.
type stepKind int

const (
	stepInitialization stepKind = iota
	stepInstructionFetch
	stepAddrIndirectRead
	stepAddrIndirectReadSDBD
	stepAddrIndirectWrite
	stepAddrDirectRead
	stepAddrDirectWrite
	stepJump
	stepBranchTaken
	stepBranchNotTaken
	stepExecPad2
	stepExecPad4
	stepInterrupt
)

func (k stepKind) String() string {
	switch k {
	case stepInitialization:
		return "INITIALIZATION"
	case stepInstructionFetch:
		return "INSTRUCTION_FETCH"
	case stepAddrIndirectRead:
		return "ADDR_INDIRECT_READ"
	case stepAddrIndirectReadSDBD:
		return "ADDR_INDIRECT_READ_SDBD"
	case stepAddrIndirectWrite:
		return "ADDR_INDIRECT_WRITE"
	case stepAddrDirectRead:
		return "ADDR_DIRECT_READ"
	case stepAddrDirectWrite:
		return "ADDR_DIRECT_WRITE"
	case stepJump:
		return "JUMP"
	case stepBranchTaken:
		return "BRANCH_TAKEN"
	case stepBranchNotTaken:
		return "BRANCH_NOT_TAKEN"
	case stepExecPad2:
		return "EXEC_PAD_2"
	case stepExecPad4:
		return "EXEC_PAD_4"
	case stepInterrupt:
		return "INTERRUPT"
	}
	return "???"
}

// templates is the bus-phase template for each logical step, straight out
// of the core specification's step catalog (§4.5). Each entry occupies one
// full micro-cycle (four host ticks).
var templates = map[stepKind][]bus.Phase{
	stepInitialization:       {bus.NACT, bus.IAB, bus.NACT, bus.NACT, bus.NACT},
	stepInstructionFetch:     {bus.BAR, bus.NACT, bus.DTB, bus.NACT},
	stepAddrIndirectRead:     {bus.BAR, bus.NACT, bus.DTB, bus.NACT},
	stepAddrIndirectReadSDBD: {bus.BAR, bus.NACT, bus.DTB, bus.BAR, bus.NACT, bus.DTB},
	stepAddrIndirectWrite:    {bus.BAR, bus.NACT, bus.DW, bus.DWS, bus.NACT},
	stepAddrDirectRead:       {bus.BAR, bus.NACT, bus.ADAR, bus.NACT, bus.DTB, bus.NACT},
	stepAddrDirectWrite:      {bus.BAR, bus.NACT, bus.ADAR, bus.NACT, bus.DW, bus.DWS, bus.NACT},
	stepJump:                 {bus.BAR, bus.NACT, bus.DTB, bus.NACT, bus.BAR, bus.NACT, bus.DTB, bus.NACT, bus.NACT},
	stepBranchTaken:          {bus.BAR, bus.NACT, bus.DTB, bus.NACT, bus.NACT},
	stepBranchNotTaken:       {bus.NACT, bus.NACT, bus.NACT},
	stepExecPad2:             {bus.NACT, bus.NACT},
	stepExecPad4:             {bus.NACT, bus.NACT, bus.NACT, bus.NACT},
	stepInterrupt:            {bus.INTAK, bus.NACT, bus.DW, bus.DWS, bus.NACT, bus.IAB, bus.NACT},
}
