// Package message provides the explicit logging context threaded through the
// privilege daemon: a value passed into every constructor that needs it,
// rather than a global logger singleton.
package message

import (
	"errors"
	"log"
	"os"
	"sync/atomic"
)

// MessageError is an error carrying a separate user-facing message, so internal
// detail (query text, syscall errno, file paths) need not leak into replies sent
// back to unprivileged callers.
type MessageError interface {
	// Message returns a user-facing message safe to relay to a client.
	Message() string

	error
}

// GetMessage returns the user-facing message of err if it implements
// [MessageError], and whether one was found.
func GetMessage(err error) (string, bool) {
	var e MessageError
	if err == nil || !errors.As(err, &e) || e == nil {
		return "", false
	}
	return e.Message(), true
}

// Msg is the logging surface passed to service.New; privilegedb and smack do
// not log.
type Msg interface {
	IsVerbose() bool
	Verbose(v ...any)
	Verbosef(format string, v ...any)

	// Suspend withholds output until Resume is called, for sections where log
	// interleaving would be confusing. Resume reports whether output was
	// suspended.
	Suspend()
	Resume() bool
}

// New returns a [Msg] writing to stderr, verbose iff v.
func New(v bool) Msg {
	return &defaultMsg{verbose: v, l: log.New(os.Stderr, "", log.LstdFlags)}
}

type defaultMsg struct {
	verbose  bool
	inactive atomic.Bool
	l        *log.Logger
}

func (m *defaultMsg) IsVerbose() bool { return m.verbose }

func (m *defaultMsg) Verbose(v ...any) {
	if m.verbose && !m.inactive.Load() {
		m.l.Println(v...)
	}
}

func (m *defaultMsg) Verbosef(format string, v ...any) {
	if m.verbose && !m.inactive.Load() {
		m.l.Printf(format, v...)
	}
}

func (m *defaultMsg) Suspend()     { m.inactive.Store(true) }
func (m *defaultMsg) Resume() bool { return m.inactive.CompareAndSwap(true, false) }

// Discard is a [Msg] that logs nothing; used by tests.
var Discard Msg = discard{}

type discard struct{}

func (discard) IsVerbose() bool            { return false }
func (discard) Verbose(...any)             {}
func (discard) Verbosef(string, ...any)    {}
func (discard) Suspend()                   {}
func (discard) Resume() bool               { return false }
