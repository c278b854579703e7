// Package errors is a small helper around the standard error type. It gives
// every category of problem the core can run into (the bad-decode, bad-bus
// and monitor-input paths described in the core specification) a distinct,
// comparable identity, so that callers can test "what kind of thing went
// wrong" with the standard library's errors.Is instead of string matching.
package errors

import "fmt"

// Category identifies the kind of problem a CoreError describes.
type Category int

// The categories the core and its ambient tooling can report.
const (
	// DecodeUnknownOpcode is reported (never returned - only logged) when
	// the instruction table has no entry for a fetched opcode.
	DecodeUnknownOpcode Category = iota

	// DecodeUnknownJumpFlags is the J-family ff==11 case, left undefined;
	// I is left unchanged and the attempt is logged.
	DecodeUnknownJumpFlags

	// BusAddressOutOfRange is logged when a memory device sees a BAR
	// address outside its window. DebugRead/DebugWrite misses only return
	// ok=false.
	BusAddressOutOfRange

	// MonitorBadCommand is printed by the monitor when a typed command
	// does not match any entry in its command tree.
	MonitorBadCommand

	// MonitorNoTarget is printed by the monitor when a command that needs
	// an address (peek, poke) is not given one.
	MonitorNoTarget
)

// Error lets a bare Category be used as an errors.Is target:
// errors.Is(err, errors.BusAddressOutOfRange).
func (c Category) Error() string {
	return c.String()
}

func (c Category) String() string {
	switch c {
	case DecodeUnknownOpcode:
		return "unknown opcode"
	case DecodeUnknownJumpFlags:
		return "unknown jump interrupt-flag field"
	case BusAddressOutOfRange:
		return "address out of range"
	case MonitorBadCommand:
		return "bad command"
	case MonitorNoTarget:
		return "no target given"
	}
	return "unknown category"
}

// CoreError is the error type used throughout this module. It wraps an
// optional underlying error so that the category survives across layers:
// errors.Is(err, errors.BusAddressOutOfRange) works no matter how many times
// the error has been re-wrapped with Wrap.
type CoreError struct {
	Category Category
	Detail   string
	wrapped  error
}

// New creates a CoreError of the given category. If detail is non-empty it
// is appended to the category's description.
func New(category Category, detail string) CoreError {
	return CoreError{Category: category, Detail: detail}
}

// Wrap creates a CoreError that chains to an earlier error, preserving it
// for errors.Unwrap/errors.Is while presenting category as the outer cause.
func Wrap(category Category, err error) CoreError {
	return CoreError{Category: category, wrapped: err}
}

func (e CoreError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Category, e.Detail)
	}
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %s", e.Category, e.wrapped)
	}
	return e.Category.String()
}

func (e CoreError) Unwrap() error {
	return e.wrapped
}

// Is allows errors.Is(err, someCategory) by treating a bare Category value
// on the right-hand side as "any CoreError of this category".
func (e CoreError) Is(target error) bool {
	if c, ok := target.(Category); ok {
		return e.Category == c
	}
	other, ok := target.(CoreError)
	return ok && other.Category == e.Category
}
