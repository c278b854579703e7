// Package instance defines the parts of the emulator that may change from
// one running copy of the core to another in the same process (a label for
// log messages, a seeded random source) without being part of the CP-1610
// or the bus themselves. Useful when running more than one emulation
// side-by-side, e.g. in a comparison harness.
package instance

import "github.com/voxcard/cp1610/random"

// Label identifies why a particular instance exists.
type Label string

// Known instance labels.
const (
	Main       Label = ""
	Functional Label = "functional-test"
	Comparison Label = "comparison"
)

// Instance carries the per-run context a CPU is constructed with.
type Instance struct {
	Label  Label
	Random *random.Random
}

// New creates an Instance with the given label. salt seeds the instance's
// random source so that multiple instances constructed in the same process
// don't share a power-on noise pattern.
func New(label Label, salt int64) *Instance {
	return &Instance{
		Label:  label,
		Random: random.New(salt),
	}
}
