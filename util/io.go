package util

import (
	"errors"
	"io"
	"net"
)

// IsClosed reports whether err is one of the errors expected while a
// connection is being torn down: EOF, a closed pipe, or use of a
// closed network connection.
func IsClosed(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	// net.OpError wrapping "use of closed network connection"
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, net.ErrClosed)
	}
	return false
}

// GracefulClose half-closes the write side of a TCP connection so the
// peer sees our pending writes followed by EOF, then closes it fully.
// Errors expected during teardown are swallowed.
func GracefulClose(conn net.Conn) error {
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.CloseWrite() //nolint:errcheck
	}
	if err := conn.Close(); !IsClosed(err) {
		return err
	}
	return nil
}
