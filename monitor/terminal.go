package monitor

import (
	"os"

	"github.com/pkg/term/termios"
	"golang.org/x/sys/unix"
)

// terminalState is stdin's termios attributes as they stood before an
// interactive Run call, captured so the monitor can guarantee it hands the
// terminal back in the same mode it found it, even if it exits abnormally
// mid-command. The monitor reads whole lines via bufio.Scanner, so it never
// switches the terminal into raw or cbreak mode itself; this only needs the
// save/restore half of a full termios wrapper.
type terminalState struct {
	saved unix.Termios
	valid bool
}

func captureTerminalState(f *os.File) terminalState {
	var attr unix.Termios
	if err := termios.Tcgetattr(f.Fd(), &attr); err != nil {
		return terminalState{}
	}
	return terminalState{saved: attr, valid: true}
}

func (t terminalState) restore(f *os.File) {
	if !t.valid {
		return
	}
	termios.Tcsetattr(f.Fd(), termios.TCIFLUSH, &t.saved)
}
