// Package monitor is an interactive command console for driving a wired
// CP-1610 system by hand: stepping it one or more host ticks at a time,
// inspecting and poking memory and registers, and dumping a snapshot of the
// running core. Its command dispatch follows the same cmd.Tree/Selection
// shape as the rest of the retrieved debugger pack.
package monitor

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/beevik/cmd"

	"github.com/voxcard/cp1610/errors"
	"github.com/voxcard/cp1610/graph"
	"github.com/voxcard/cp1610/hardware/bus"
	"github.com/voxcard/cp1610/hardware/cpu"
	"github.com/voxcard/cp1610/metrics"
)

// Selection is the result of a command lookup: the matched command and any
// trailing arguments on the line.
type Selection struct {
	Command *cmd.Command
	Args    []string
}

// commandSpec mirrors the fields used to build the monitor's command tree.
type commandSpec struct {
	Name        string
	Shortcut    string
	Description string
	Handler     func(*Monitor, Selection) error
}

// commandSpecs returns the specs for the monitor's command tree. It is a
// function rather than a package-level slice because its entries reference
// handlers (like onHelp) that call commands(), which itself builds the tree
// from these specs; a package-level var on both ends would form an
// initialization cycle.
func commandSpecs() []commandSpec {
	return []commandSpec{
		{Name: "help", Shortcut: "?", Handler: (*Monitor).onHelp},
		{Name: "reset", Description: "Reset the CPU and resume from the vector", Handler: (*Monitor).onReset},
		{Name: "step", Shortcut: "t", Description: "Clock the system n host ticks (default 1)", Handler: (*Monitor).onStep},
		{Name: "run", Shortcut: "g", Description: "Run until halted or n host ticks elapse", Handler: (*Monitor).onRun},
		{Name: "peek", Shortcut: "p", Description: "Display the word at an address", Handler: (*Monitor).onPeek},
		{Name: "poke", Description: "Write a word to an address", Handler: (*Monitor).onPoke},
		{Name: "registers", Shortcut: "r", Description: "Display registers and flags", Handler: (*Monitor).onRegisters},
		{Name: "trace", Description: "Toggle echoing the core's diagnostic log", Handler: (*Monitor).onTrace},
		{Name: "graph", Description: "Write a Graphviz dump of the CPU's state to a file", Handler: (*Monitor).onGraph},
		{Name: "stats", Description: "Display running tick and instruction counters", Handler: (*Monitor).onStats},
		{Name: "quit", Shortcut: "q", Description: "Leave the monitor", Handler: (*Monitor).onQuit},
	}
}

var (
	commandsOnce sync.Once
	commandsTree *cmd.Tree
)

// commands returns the monitor's command tree, building it on first use.
// It is built lazily (rather than via a package-level initializer) because
// the handlers it references close over this same tree, which would
// otherwise create an initialization cycle.
func commands() *cmd.Tree {
	commandsOnce.Do(func() {
		commandsTree = buildCommandTree()
	})
	return commandsTree
}

func buildCommandTree() *cmd.Tree {
	tree := cmd.NewTree(cmd.TreeDescriptor{Name: "Monitor"})
	for _, spec := range commandSpecs() {
		tree.AddCommand(cmd.CommandDescriptor{
			Name:        spec.Name,
			Description: spec.Description,
			Data:        spec.Handler,
		})
		if spec.Shortcut != "" {
			if err := tree.AddShortcut(spec.Shortcut, spec.Name); err != nil {
				panic(err)
			}
		}
	}
	return tree
}

// Monitor drives a wired CP-1610 system (a CPU plus whatever devices were
// attached alongside it) from line-oriented commands.
type Monitor struct {
	bus     *bus.Bus
	cpu     *cpu.CPU
	devices []bus.Device

	input  *bufio.Scanner
	output *bufio.Writer

	interactive bool
	quit        bool
	tracing     bool
}

// New builds a Monitor over an already-wired system. devices must include
// c itself; it is the exact list the outer loop clocks each tick, in
// registration order.
func New(b *bus.Bus, c *cpu.CPU, devices []bus.Device) *Monitor {
	return &Monitor{bus: b, cpu: c, devices: devices}
}

// Run reads commands from r and writes responses to w until the input is
// exhausted, quit is issued, or a handler returns an error. interactive
// controls whether a prompt and the startup register dump are printed,
// distinguishing an interactive terminal session from a scripted run over a
// plain file or pipe.
func (m *Monitor) Run(r io.Reader, w io.Writer, interactive bool) error {
	m.input = bufio.NewScanner(r)
	m.output = bufio.NewWriter(w)
	m.interactive = interactive
	defer m.output.Flush()

	if interactive {
		if f, ok := r.(*os.File); ok {
			state := captureTerminalState(f)
			defer state.restore(f)
		}
		m.printRegisters()
	}

	var sel Selection
	for !m.quit {
		m.prompt()

		line, err := m.getLine()
		if err != nil {
			return nil
		}

		if line != "" {
			node, args, lookupErr := commands().Lookup(line)
			switch {
			case lookupErr == cmd.ErrNotFound:
				m.printf("%s\n", errors.New(errors.MonitorBadCommand, line))
				continue
			case lookupErr == cmd.ErrAmbiguous:
				m.printf("%s: ambiguous\n", errors.New(errors.MonitorBadCommand, line))
				continue
			case lookupErr != nil:
				m.printf("error: %v\n", lookupErr)
				continue
			}
			c, ok := node.(*cmd.Command)
			if !ok {
				m.printf("%s\n", errors.New(errors.MonitorBadCommand, line))
				continue
			}
			sel = Selection{Command: c, Args: args}
		}
		if sel.Command == nil {
			continue
		}

		handler := sel.Command.Data.(func(*Monitor, Selection) error)
		if err := handler(m, sel); err != nil {
			return err
		}
	}
	return nil
}

func (m *Monitor) getLine() (string, error) {
	if m.input.Scan() {
		return m.input.Text(), nil
	}
	if err := m.input.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (m *Monitor) prompt() {
	if m.interactive {
		m.print("cp1610> ")
		m.flush()
	}
}

func (m *Monitor) print(args ...interface{}) {
	fmt.Fprint(m.output, args...)
}

func (m *Monitor) printf(format string, args ...interface{}) {
	fmt.Fprintf(m.output, format, args...)
	m.flush()
}

func (m *Monitor) println(args ...interface{}) {
	fmt.Fprintln(m.output, args...)
	m.flush()
}

func (m *Monitor) flush() {
	m.output.Flush()
}

// tick clocks every attached device once and records the tick in metrics.
func (m *Monitor) tick() {
	for _, d := range m.devices {
		d.Clock(m.bus)
	}
	m.bus.Clock()
	metrics.RecordTick()
}

// dumpGraph writes a Graphviz rendering of the CPU's current state.
func (m *Monitor) dumpGraph(w io.Writer) error {
	return graph.DumpCPU(w, m.cpu)
}
