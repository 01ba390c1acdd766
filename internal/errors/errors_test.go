package errors

import (
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"testing"
)

func TestNetworkError_Format(t *testing.T) {
	err := Wrap("dial", "minechat.dvmn.org:5000", io.EOF)
	want := "dial minechat.dvmn.org:5000: EOF"
	if got := err.Error(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestNetworkError_Unwrap(t *testing.T) {
	err := &NetworkError{Op: "dial", Addr: "x", Err: io.EOF}
	if !Is(err, io.EOF) {
		t.Error("should unwrap to io.EOF")
	}
}

func TestProtocolError_Format(t *testing.T) {
	err := Protocol("sign-in", "{oops", fmt.Errorf("unexpected end of JSON input"))
	want := `protocol violation during sign-in: unexpected end of JSON input (line "{oops")`
	if got := err.Error(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSSHError_Format(t *testing.T) {
	err := WrapSSH("handshake", "bastion.example.com", 22, fmt.Errorf("connection refused"))
	want := "ssh handshake bastion.example.com:22: connection refused"
	if got := err.Error(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestConfigError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  ConfigError
		want string
	}{
		{
			name: "with value and hint",
			err: ConfigError{
				Field:   "reading-port",
				Value:   99999,
				Message: "out of range 1-65535",
				Hint:    "use a port between 1 and 65535",
			},
			want: "config: --reading-port=99999: out of range 1-65535\n  hint: use a port between 1 and 65535",
		},
		{
			name: "missing value no hint",
			err: ConfigError{
				Field:   "nickname",
				Message: "required with --register",
			},
			want: "config: --nickname: required with --register",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	dnsErr := &net.OpError{Op: "dial", Net: "tcp", Err: &net.DNSError{Err: "no such host", Name: "nowhere.invalid", IsNotFound: true}}
	refused := &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}

	tests := []struct {
		name string
		err  error
		want Class
	}{
		{"invalid token", ErrInvalidToken, ClassFatal},
		{"wrapped invalid token", fmt.Errorf("sender: %w", ErrInvalidToken), ClassFatal},
		{"protocol violation", Protocol("sign-up", "x", io.ErrUnexpectedEOF), ClassFatal},
		{"watchdog", fmt.Errorf("group: %w", ErrWatchdogTimeout), ClassImmediate},
		{"refused", Wrap("dial", "127.0.0.1:1", refused), ClassImmediate},
		{"reset", fmt.Errorf("write: %w", syscall.ECONNRESET), ClassImmediate},
		{"connection lost", ErrConnectionLost, ClassImmediate},
		{"dns", Wrap("dial", "nowhere.invalid:5000", dnsErr), ClassDelayed},
		{"ssh", WrapSSH("handshake", "gw", 22, io.EOF), ClassDelayed},
		{"unknown", fmt.Errorf("something odd"), ClassDelayed},
		{"aggregate", Join(fmt.Errorf("a"), fmt.Errorf("b")), ClassDelayed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Classify(tt.err)
			if f == nil {
				t.Fatal("Classify returned nil")
			}
			if f.Class != tt.want {
				t.Errorf("class = %v, want %v", f.Class, tt.want)
			}
			if !Is(f, tt.err) && f.Err != tt.err {
				t.Error("failure should wrap the original error")
			}
		})
	}
}

func TestClassify_Nil(t *testing.T) {
	if Classify(nil) != nil {
		t.Error("Classify(nil) should be nil")
	}
}

func TestClassify_KeepsExistingFailure(t *testing.T) {
	orig := Delayed("tunnel down", io.EOF)
	got := Classify(fmt.Errorf("group: %w", orig))
	if got != orig {
		t.Errorf("expected the wrapped failure to be returned, got %v", got)
	}
}

func TestFailure_Recoverable(t *testing.T) {
	if !Recoverable("x", io.EOF).Recoverable() {
		t.Error("immediate failure should be recoverable")
	}
	if !Delayed("x", io.EOF).Recoverable() {
		t.Error("delayed failure should be recoverable")
	}
	if Fatal("x", io.EOF).Recoverable() {
		t.Error("fatal failure should not be recoverable")
	}
}

func TestClass_String(t *testing.T) {
	tests := []struct {
		c    Class
		want string
	}{
		{ClassImmediate, "recoverable"},
		{ClassDelayed, "recoverable-delayed"},
		{ClassFatal, "fatal"},
		{Class(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.c.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.c, got, tt.want)
		}
	}
}

func TestIsDNS(t *testing.T) {
	if !IsDNS(fmt.Errorf("x: %w", &net.DNSError{Err: "no such host"})) {
		t.Error("wrapped DNSError should be detected")
	}
	if IsDNS(io.EOF) {
		t.Error("EOF is not a DNS error")
	}
}
