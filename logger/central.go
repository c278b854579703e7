// Package logger provides a single, process-wide trace log. Every
// diagnostic path in the emulator core (an unknown opcode, a bus address that
// falls outside a memory device's window) routes through here instead
// of writing to stdout directly, so that tests can capture it and callers
// can silence it.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Permission implementations indicate whether the environment making a log
// request is allowed to create new log entries.
type Permission interface {
	AllowLogging() bool
}

type allow struct{}

func (allow) AllowLogging() bool { return true }

// Allow is a Permission that always allows logging.
var Allow Permission = allow{}

// Entry is a single line in the log.
type Entry struct {
	Timestamp time.Time
	Tag       string
	Detail    string
	repeated  int
}

func (e Entry) String() string {
	s := strings.Builder{}
	fmt.Fprintf(&s, "%s: %s", e.Tag, e.Detail)
	if e.repeated > 0 {
		fmt.Fprintf(&s, " (repeat x%d)", e.repeated+1)
	}
	return s.String()
}

const maxEntries = 256

type central struct {
	mu      sync.Mutex
	entries []Entry
	echo    io.Writer
}

var log = &central{}

// Log adds an entry to the central log.
func Log(perm Permission, tag, detail string) {
	if perm == Allow || perm.AllowLogging() {
		log.add(tag, detail)
	}
}

// Logf adds a formatted entry to the central log.
func Logf(perm Permission, tag, format string, args ...interface{}) {
	Log(perm, tag, fmt.Sprintf(format, args...))
}

func (c *central) add(tag, detail string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tag = strings.ReplaceAll(tag, "\n", " ")
	detail = strings.ReplaceAll(detail, "\n", " ")

	if n := len(c.entries); n > 0 {
		last := &c.entries[n-1]
		if last.Tag == tag && last.Detail == detail {
			last.repeated++
			last.Timestamp = time.Now()
			if c.echo != nil {
				io.WriteString(c.echo, last.String()+"\n")
			}
			return
		}
	}

	e := Entry{Timestamp: time.Now(), Tag: tag, Detail: detail}
	c.entries = append(c.entries, e)
	if len(c.entries) > maxEntries {
		c.entries = c.entries[len(c.entries)-maxEntries:]
	}
	if c.echo != nil {
		io.WriteString(c.echo, e.String()+"\n")
	}
}

// Clear removes every entry from the central log.
func Clear() {
	log.mu.Lock()
	defer log.mu.Unlock()
	log.entries = log.entries[:0]
}

// SetEcho causes every future log entry to also be written to output. A nil
// output disables echoing. The monitor's trace command and -trace flag use
// this to show what the core would otherwise log silently.
func SetEcho(output io.Writer) {
	log.mu.Lock()
	defer log.mu.Unlock()
	log.echo = output
}

// Tail writes the last n entries to output.
func Tail(output io.Writer, n int) {
	log.mu.Lock()
	defer log.mu.Unlock()
	if n > len(log.entries) {
		n = len(log.entries)
	}
	for _, e := range log.entries[len(log.entries)-n:] {
		io.WriteString(output, e.String()+"\n")
	}
}

// Write writes every entry to output.
func Write(output io.Writer) {
	Tail(output, maxEntries)
}

func init() {
	if os.Getenv("CP1610_LOG_ECHO") != "" {
		SetEcho(os.Stderr)
	}
}
