package monitor

import (
	"os"
	"strconv"

	"github.com/voxcard/cp1610/errors"
	"github.com/voxcard/cp1610/hardware/bus"
	"github.com/voxcard/cp1610/hardware/cpu"
	"github.com/voxcard/cp1610/logger"
	"github.com/voxcard/cp1610/metrics"
)

// maxRunTicks bounds an unqualified "run" so a program that never reaches
// HLT can't wedge the monitor forever.
const maxRunTicks = 1_000_000

func (m *Monitor) onHelp(sel Selection) error {
	tree := commands()
	if sel.Command != nil && sel.Command.Parent() != nil {
		tree = sel.Command.Parent()
	}
	m.printf("%s commands:\n", tree.Name)
	for _, c := range tree.Commands() {
		if c.Description != "" {
			m.printf("    %-10s  %s\n", c.Name, c.Description)
		}
	}
	return nil
}

func (m *Monitor) onReset(sel Selection) error {
	m.cpu.Reset()
	m.println("reset")
	return nil
}

func (m *Monitor) onStep(sel Selection) error {
	count := 1
	if len(sel.Args) > 0 {
		n, err := strconv.ParseInt(sel.Args[0], 10, 32)
		if err == nil && n > 0 {
			count = int(n)
		}
	}
	for i := 0; i < count && !m.cpu.Halted(); i++ {
		m.tick()
	}
	m.printRegisters()
	return nil
}

func (m *Monitor) onRun(sel Selection) error {
	limit := maxRunTicks
	if len(sel.Args) > 0 {
		n, err := strconv.ParseInt(sel.Args[0], 10, 32)
		if err == nil && n > 0 {
			limit = int(n)
		}
	}
	for i := 0; i < limit && !m.cpu.Halted(); i++ {
		m.tick()
	}
	if m.cpu.Halted() {
		m.println("halted")
	} else {
		m.printf("stopped after %d ticks, still running\n", limit)
	}
	return nil
}

func (m *Monitor) onPeek(sel Selection) error {
	if len(sel.Args) < 1 {
		m.println(errors.New(errors.MonitorNoTarget, "peek needs an address"))
		return nil
	}
	addr, ok := parseAddr(sel.Args[0])
	if !ok {
		m.printf("can't parse address %q\n", sel.Args[0])
		return nil
	}
	for _, d := range m.devices {
		if dd, ok := d.(bus.DebugDevice); ok {
			if v, ok := dd.DebugRead(addr); ok {
				m.printf("%#04x: %#04x\n", addr, v)
				return nil
			}
		}
	}
	m.printf("%#04x: unmapped\n", addr)
	return nil
}

func (m *Monitor) onPoke(sel Selection) error {
	if len(sel.Args) < 2 {
		m.println(errors.New(errors.MonitorNoTarget, "poke needs an address and a value"))
		return nil
	}
	addr, ok := parseAddr(sel.Args[0])
	if !ok {
		m.printf("can't parse address %q\n", sel.Args[0])
		return nil
	}
	value, ok := parseAddr(sel.Args[1])
	if !ok {
		m.printf("can't parse value %q\n", sel.Args[1])
		return nil
	}
	for _, d := range m.devices {
		if dw, ok := d.(bus.DebugWriter); ok {
			if dw.DebugWrite(addr, value) {
				m.printf("%#04x <- %#04x\n", addr, value)
				return nil
			}
		}
	}
	m.printf("%#04x: unmapped or read-only\n", addr)
	return nil
}

func (m *Monitor) onRegisters(sel Selection) error {
	m.printRegisters()
	return nil
}

func (m *Monitor) printRegisters() {
	r := &m.cpu.R
	m.printf("R0=%04x R1=%04x R2=%04x R3=%04x R4=%04x R5=%04x SP=%04x PC=%04x\n",
		r[0], r[1], r[2], r[3], r[4], r[5], r[cpu.SP], r[cpu.PC])
	m.printf("flags: %s\n", flagString(m.cpu.F))
	if m.cpu.Halted() {
		m.println("halted")
	}
}

func flagString(f cpu.Flags) string {
	bit := func(set bool, ch byte) byte {
		if set {
			return ch
		}
		return '-'
	}
	buf := [6]byte{
		bit(f.Sign, 'S'),
		bit(f.Carry, 'C'),
		bit(f.Zero, 'Z'),
		bit(f.Overflow, 'O'),
		bit(f.InterruptEnable, 'I'),
		bit(f.DoubleByteData, 'D'),
	}
	return string(buf[:])
}

func (m *Monitor) onTrace(sel Selection) error {
	m.tracing = !m.tracing
	if m.tracing {
		logger.SetEcho(m.output)
		m.println("trace on")
	} else {
		logger.SetEcho(nil)
		m.println("trace off")
	}
	return nil
}

func (m *Monitor) onGraph(sel Selection) error {
	filename := "cp1610.dot"
	if len(sel.Args) > 0 {
		filename = sel.Args[0]
	}
	file, err := os.Create(filename)
	if err != nil {
		m.printf("can't create %q: %v\n", filename, err)
		return nil
	}
	defer file.Close()

	if err := m.dumpGraph(file); err != nil {
		m.printf("graph dump failed: %v\n", err)
		return nil
	}
	m.printf("wrote %s\n", filename)
	return nil
}

func (m *Monitor) onStats(sel Selection) error {
	s := metrics.Snapshot()
	m.printf("ticks=%d instructions=%d\n", s.Ticks, s.Instructions)
	if metrics.Available() {
		m.println("dashboard available, see cmd/cp1610monitor -tags metrics")
	}
	return nil
}

func (m *Monitor) onQuit(sel Selection) error {
	m.quit = true
	return nil
}
