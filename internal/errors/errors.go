// Package errors provides domain-specific error types for minechat.
//
// These types carry structured context (operation, address, offending
// protocol line) and a classification step that turns any error coming
// out of a connection group into a [Failure]: recoverable right away,
// recoverable after a backoff, or fatal.  The supervisor decides whether
// to retry by matching on the class, never on concrete error types.
package errors

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	// ErrInvalidToken means the server answered a sign-in with null and
	// no sign-up fallback applied.
	ErrInvalidToken = errors.New("invalid token")
	// ErrConnectionLost means the server closed a socket under us.
	ErrConnectionLost = errors.New("connection lost")
	// ErrEndOfStream is returned by line reads once the peer sent EOF.
	ErrEndOfStream = errors.New("end of stream")
	// ErrStaleRead is returned by line reads whose deadline elapsed
	// without a complete line.
	ErrStaleRead = errors.New("no data within read timeout")
	// ErrWatchdogTimeout is raised by the watchdog when the connection
	// group has shown no sign of life.
	ErrWatchdogTimeout = errors.New("watchdog: connection is silent")
	ErrNotConnected    = errors.New("not connected")
	ErrAuthFailed      = errors.New("authentication failed")
)

// ── Structured error types ───────────────────────────────────────────

// NetworkError represents a failure in a network operation.
type NetworkError struct {
	Op   string // operation: "dial", "read", "write"
	Addr string // network address involved
	Err  error  // underlying error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ProtocolError means the server sent something the wire protocol does
// not allow, such as a credentials line that is not valid JSON.
type ProtocolError struct {
	Op   string // "sign-in", "sign-up", ...
	Line string // offending line, as received
	Err  error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol violation during %s: %v (line %q)", e.Op, e.Err, e.Line)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// SSHError represents an SSH-specific failure with host context.
type SSHError struct {
	Op   string // "handshake", "auth", "hostkey"
	Host string
	Port int
	Err  error
}

func (e *SSHError) Error() string {
	return fmt.Sprintf("ssh %s %s:%d: %v", e.Op, e.Host, e.Port, e.Err)
}

func (e *SSHError) Unwrap() error { return e.Err }

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // config field name
	Value   interface{} // the invalid value (nil if missing)
	Message string      // human-readable explanation
	Hint    string      // suggestion for the user (optional)
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Constructors ─────────────────────────────────────────────────────

// Wrap creates a NetworkError.
func Wrap(op, addr string, err error) *NetworkError {
	return &NetworkError{Op: op, Addr: addr, Err: err}
}

// WrapSSH creates an SSHError.
func WrapSSH(op, host string, port int, err error) *SSHError {
	return &SSHError{Op: op, Host: host, Port: port, Err: err}
}

// Protocol creates a ProtocolError for the given handshake step.
func Protocol(op, line string, err error) *ProtocolError {
	return &ProtocolError{Op: op, Line: line, Err: err}
}

// ── Failure classification ───────────────────────────────────────────

// Class says how the supervisor should react to a failed connection
// group.
type Class int

const (
	// ClassImmediate failures are retried with no delay.
	ClassImmediate Class = iota
	// ClassDelayed failures are retried after the big reconnect timeout.
	ClassDelayed
	// ClassFatal failures stop the supervisor.
	ClassFatal
)

func (c Class) String() string {
	switch c {
	case ClassImmediate:
		return "recoverable"
	case ClassDelayed:
		return "recoverable-delayed"
	case ClassFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Failure is a classified error.
type Failure struct {
	Class  Class
	Reason string
	Err    error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s (%s): %v", f.Reason, f.Class, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Recoverable reports whether the supervisor should retry.
func (f *Failure) Recoverable() bool { return f.Class != ClassFatal }

// Recoverable marks err as worth an immediate retry.
func Recoverable(reason string, err error) *Failure {
	return &Failure{Class: ClassImmediate, Reason: reason, Err: err}
}

// Delayed marks err as worth a retry after backing off.
func Delayed(reason string, err error) *Failure {
	return &Failure{Class: ClassDelayed, Reason: reason, Err: err}
}

// Fatal marks err as final.
func Fatal(reason string, err error) *Failure {
	return &Failure{Class: ClassFatal, Reason: reason, Err: err}
}

// Classify maps an error returned by a connection group onto a Failure.
// An error that already carries a Failure keeps it.  Classify(nil) is nil.
func Classify(err error) *Failure {
	if err == nil {
		return nil
	}

	var f *Failure
	if errors.As(err, &f) {
		return f
	}

	var pe *ProtocolError
	var se *SSHError
	switch {
	case errors.Is(err, ErrInvalidToken):
		return Fatal("invalid token", err)
	case errors.As(err, &pe):
		return Fatal("protocol violation", err)
	case errors.Is(err, ErrWatchdogTimeout):
		return Recoverable("watchdog", err)
	case IsDNS(err):
		return Delayed("name resolution", err)
	case errors.As(err, &se):
		return Delayed("ssh gateway", err)
	case isConnectionLevel(err):
		return Recoverable("connection", err)
	default:
		return Delayed("unexpected", err)
	}
}

// IsDNS reports whether err stems from a failed name lookup.
func IsDNS(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

// isConnectionLevel matches plain socket failures: refused, reset,
// broken pipe, EOF, stale reads and closed connections.
func isConnectionLevel(err error) bool {
	for _, target := range []error{
		ErrConnectionLost, ErrEndOfStream, ErrStaleRead, ErrNotConnected,
		io.EOF, io.ErrUnexpectedEOF, net.ErrClosed,
		syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ECONNABORTED, syscall.EPIPE,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// ── Re-exports for convenience ───────────────────────────────────────
//
// These allow callers to use minechat/internal/errors as a drop-in
// replacement for the standard library in common operations.

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Unwrap is [errors.Unwrap].
func Unwrap(err error) error { return errors.Unwrap(err) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
