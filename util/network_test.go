package util

import (
	"net"
	"testing"
	"time"
)

func TestFormatAddr(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"1.2.3.4", 22, "1.2.3.4:22"},
		{"::1", 5050, "[::1]:5050"},
		{"minechat.dvmn.org", 5000, "minechat.dvmn.org:5000"},
	}
	for _, tt := range tests {
		if got := FormatAddr(tt.host, tt.port); got != tt.want {
			t.Errorf("FormatAddr(%q, %d) = %q, want %q", tt.host, tt.port, got, tt.want)
		}
	}
}

func TestValidPort(t *testing.T) {
	for _, p := range []int{1, 5000, 65535} {
		if !ValidPort(p) {
			t.Errorf("ValidPort(%d) = false", p)
		}
	}
	for _, p := range []int{-1, 0, 65536} {
		if ValidPort(p) {
			t.Errorf("ValidPort(%d) = true", p)
		}
	}
}

func TestFindFreePort(t *testing.T) {
	port, err := FindFreePort()
	if err != nil {
		t.Fatal(err)
	}
	if !ValidPort(port) {
		t.Fatalf("port %d out of range", port)
	}

	// Nothing listens there any more.
	_, err = net.DialTimeout("tcp", FormatAddr("127.0.0.1", port), time.Second)
	if err == nil {
		t.Error("expected dial to a freed port to fail")
	}
}
