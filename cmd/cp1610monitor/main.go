// Command cp1610monitor wires one CP-1610, one flat RAM image and a reset
// vector source onto a shared bus, then hands control to the interactive
// monitor. It is a convenience harness for exercising the core by hand, not
// a games console: it knows nothing about cartridge formats, it just loads
// whatever flat binary it's given at a fixed address.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/voxcard/cp1610/hardware/bus"
	"github.com/voxcard/cp1610/hardware/cpu"
	"github.com/voxcard/cp1610/hardware/instance"
	"github.com/voxcard/cp1610/hardware/memory"
	"github.com/voxcard/cp1610/logger"
	"github.com/voxcard/cp1610/monitor"
)

// resetVector is where the reset vector source points the CPU on power-on,
// and where -image loads a flat binary unless -base overrides it.
const resetVector = 0x1000

// ramWords is the size of the single flat RAM device backing the whole
// 16-bit address space. Real Intellivision hardware splits this into RAM,
// ROM, the PSG and the STIC's own registers; this harness models only the
// one concern the core specification covers, the CPU and its bus.
const ramWords = 0x10000

func main() {
	imagePath := flag.String("image", "", "flat binary image to load before starting (optional)")
	base := flag.Uint64("base", resetVector, "address the image is loaded at")
	trace := flag.Bool("trace", false, "echo the core's diagnostic log to stderr from the start")
	flag.Parse()

	if *trace {
		logger.SetEcho(os.Stderr)
	}

	b := bus.New()
	ram := memory.NewRAM(0, ramWords)
	vec := &vectorSource{value: resetVector}
	inst := instance.New(instance.Main, 0)
	c := cpu.New(inst)
	devices := []bus.Device{c, ram, vec}

	if *imagePath != "" {
		if err := loadImage(ram, *imagePath, uint16(*base)); err != nil {
			fmt.Fprintf(os.Stderr, "cp1610monitor: %v\n", err)
			os.Exit(1)
		}
	}

	m := monitor.New(b, c, devices)
	if err := m.Run(os.Stdin, os.Stdout, true); err != nil {
		fmt.Fprintf(os.Stderr, "cp1610monitor: %v\n", err)
		os.Exit(1)
	}
}

// vectorSource asserts resetVector during the CPU's INITIALIZATION step and
// otherwise stays off the bus. A real console instead wires this to
// whatever ROM bank sits at the vector address; this harness short-circuits
// that by hard-coding the address the -image flag already loads at.
type vectorSource struct {
	value uint16
}

func (v *vectorSource) Clock(bb *bus.Bus) {
	if bb.Phase == bus.IAB && bb.Tick == 1 {
		bb.SetData(v.value)
	}
}

// loadImage reads raw bytes two at a time as big-endian 16-bit words and
// writes them into mem starting at base.
func loadImage(mem *memory.Memory, path string, base uint16) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	addr := base
	for i := 0; i+1 < len(data); i += 2 {
		word := uint16(data[i])<<8 | uint16(data[i+1])
		if !mem.DebugWrite(addr, word) {
			return fmt.Errorf("image word at offset %d falls outside the RAM window", i)
		}
		addr++
	}
	return nil
}
