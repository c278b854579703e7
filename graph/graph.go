// Package graph renders a snapshot of the emulator's live state as a
// Graphviz document, for the monitor's "graph" command.
package graph

import (
	"io"

	"github.com/bradleyjkemp/memviz"

	"github.com/voxcard/cp1610/hardware/cpu"
)

// DumpCPU writes a Graphviz dot representation of c's register file and
// in-flight execution state to w.
func DumpCPU(w io.Writer, c *cpu.CPU) error {
	memviz.Map(w, c)
	return nil
}
