package core

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"minechat/internal/chat"
	"minechat/internal/console"
	"minechat/internal/credentials"
	chaterr "minechat/internal/errors"
	"minechat/internal/history"
	"minechat/internal/metrics"
	"minechat/internal/transport"
	"minechat/util"
)

// listen starts a local listener that hands every connection to
// handler.
func listen(t *testing.T, handler func(net.Conn)) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				handler(conn)
			}()
		}
	}()
	return ln.Addr().(*net.TCPAddr).Port
}

// recorder collects what clients sent after authenticating.
type recorder struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	r.buf.WriteString(s)
	r.mu.Unlock()
}

func (r *recorder) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.String()
}

// writingServer answers the handshake: known tokens sign in, anything
// else gets a sign-up prompt (after null for a non-empty token).  Lines
// after the handshake are recorded and echoed.
func writingServer(known map[string]string, rec *recorder) func(net.Conn) {
	return func(conn net.Conn) {
		r := bufio.NewReader(conn)
		conn.Write([]byte("Hello %username%! Enter your personal hash or leave it empty to create new account.\n"))

		token, err := r.ReadString('\n')
		if err != nil {
			return
		}
		token = strings.TrimSpace(token)
		if nick, ok := known[token]; ok {
			conn.Write([]byte(`{"nickname":"` + nick + `","account_hash":"` + token + `"}` + "\n"))
		} else {
			if token != "" {
				conn.Write([]byte("null\n"))
			}
			conn.Write([]byte("Enter preferred nickname below:\n"))
			nick, err := r.ReadString('\n')
			if err != nil {
				return
			}
			nick = strings.TrimSpace(nick)
			conn.Write([]byte(`{"nickname":"` + nick + `","account_hash":"new-` + nick + `"}` + "\n"))
		}

		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			rec.add(line)
			conn.Write([]byte("Message send.\n"))
		}
	}
}

func quietLogger() *util.Logger { return util.NewLogger(0) }

// ── RegisterMode ─────────────────────────────────────────────────────

// TestRegisterMode_SavesToken verifies a one-shot sign-up writes the
// token file and reports it.
func TestRegisterMode_SavesToken(t *testing.T) {
	port := listen(t, writingServer(nil, &recorder{}))
	tokens := &credentials.FileStore{Dir: t.TempDir()}
	out := &bytes.Buffer{}

	mode := &RegisterMode{
		Dialer:   &transport.TCPDialer{Timeout: 2 * time.Second},
		Host:     "127.0.0.1",
		Port:     port,
		Nickname: "alice",
		Timeout:  time.Second,
		Tokens:   tokens,
		Logger:   quietLogger(),
		Stdout:   out,
	}
	if err := mode.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(tokens.Dir, "alice.token"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "new-alice" {
		t.Errorf("token file = %q, want new-alice", data)
	}
	if !strings.Contains(out.String(), "Registered as alice") {
		t.Errorf("output = %q", out.String())
	}
}

// ── SendMode ─────────────────────────────────────────────────────────

func newSendMode(port int, token, msg string) *SendMode {
	return &SendMode{
		Dialer: &transport.TCPDialer{Timeout: 2 * time.Second},
		Host:   "127.0.0.1",
		Port:   port,
		Auth: &chat.Authenticator{
			Token:   token,
			Timeout: time.Second,
			Logger:  quietLogger(),
		},
		Message: msg,
		Logger:  quietLogger(),
		Metrics: metrics.New(),
	}
}

// TestSendMode_Delivers verifies the message reaches the server framed
// as a chat message.
func TestSendMode_Delivers(t *testing.T) {
	rec := &recorder{}
	port := listen(t, writingServer(map[string]string{"h1": "bob"}, rec))

	mode := newSendMode(port, "h1", "hello\nworld")
	if err := mode.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for rec.String() != "hello world\n\n" {
		if time.Now().After(deadline) {
			t.Fatalf("server got %q", rec.String())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if mode.Metrics.MessagesSent() != 1 {
		t.Errorf("messages sent = %d", mode.Metrics.MessagesSent())
	}
}

// TestSendMode_InvalidToken verifies a rejected token is reported.
func TestSendMode_InvalidToken(t *testing.T) {
	port := listen(t, writingServer(nil, &recorder{}))

	err := newSendMode(port, "bogus", "hi").Run(context.Background())
	if !errors.Is(err, chaterr.ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

// TestSendMode_Refused verifies a dead server fails fast.
func TestSendMode_Refused(t *testing.T) {
	port, err := util.FindFreePort()
	if err != nil {
		t.Fatal(err)
	}
	err = newSendMode(port, "h1", "hi").Run(context.Background())
	var ne *chaterr.NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("err = %v, want NetworkError", err)
	}
}

// ── ChatMode ─────────────────────────────────────────────────────────

// TestChatMode_EndToEnd verifies history restore, live messages,
// history append, and sending typed input, then a clean interrupt.
func TestChatMode_EndToEnd(t *testing.T) {
	readingPort := listen(t, func(conn net.Conn) {
		conn.Write([]byte("live message\n"))
		buf := make([]byte, 64)
		for {
			if _, err := conn.Read(buf); err != nil {
				return
			}
		}
	})
	rec := &recorder{}
	writingPort := listen(t, writingServer(map[string]string{"h1": "bob"}, rec))

	historyPath := filepath.Join(t.TempDir(), "minechat.history")
	if err := os.WriteFile(historyPath, []byte("earlier\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	streams := chat.NewStreams()
	stdout := &recorder{}
	mode := &ChatMode{
		Supervisor: &chat.Supervisor{
			Config: chat.SessionConfig{
				Host:             "127.0.0.1",
				ReadingPort:      readingPort,
				WritingPort:      writingPort,
				Token:            "h1",
				SmallTimeout:     100 * time.Millisecond,
				BigTimeout:       time.Second,
				PingInterval:     20 * time.Millisecond,
				WatchdogWindow:   500 * time.Millisecond,
				HandshakeTimeout: time.Second,
			},
			Dialer:  &transport.TCPDialer{Timeout: 2 * time.Second},
			Streams: streams,
			Logger:  quietLogger(),
		},
		History: history.NewStore(historyPath, false, quietLogger()),
		Console: &console.Console{
			Streams: streams,
			Logger:  quietLogger(),
			Stdin:   strings.NewReader("typed text\n"),
			Stdout:  writerFunc(stdout.add),
		},
		Logger: quietLogger(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mode.Run(ctx) }()

	historyHas := func(s string) bool {
		data, _ := os.ReadFile(historyPath)
		return strings.Contains(string(data), s)
	}
	deadline := time.Now().Add(3 * time.Second)
	for !strings.Contains(rec.String(), "typed text\n\n") ||
		!strings.Contains(stdout.String(), "live message\n") ||
		!historyHas("live message\n") {
		if time.Now().After(deadline) {
			t.Fatalf("stdout = %q, server got %q", stdout.String(), rec.String())
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run after interrupt: %v", err)
	}

	if !strings.HasPrefix(stdout.String(), "earlier\n") {
		t.Errorf("history should be printed first, stdout = %q", stdout.String())
	}
	data, err := os.ReadFile(historyPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "earlier\nlive message\n" {
		t.Errorf("history file = %q", data)
	}
}

// TestChatMode_InvalidToken verifies a rejected token ends the mode.
func TestChatMode_InvalidToken(t *testing.T) {
	readingPort := listen(t, func(conn net.Conn) { time.Sleep(time.Second) })
	writingPort := listen(t, writingServer(nil, &recorder{}))

	streams := chat.NewStreams()
	mode := &ChatMode{
		Supervisor: &chat.Supervisor{
			Config: chat.SessionConfig{
				Host:             "127.0.0.1",
				ReadingPort:      readingPort,
				WritingPort:      writingPort,
				Token:            "bogus",
				SmallTimeout:     100 * time.Millisecond,
				BigTimeout:       time.Second,
				PingInterval:     20 * time.Millisecond,
				WatchdogWindow:   500 * time.Millisecond,
				HandshakeTimeout: time.Second,
			},
			Dialer:  &transport.TCPDialer{Timeout: 2 * time.Second},
			Streams: streams,
			Logger:  quietLogger(),
		},
		History: history.NewStore(filepath.Join(t.TempDir(), "h"), false, quietLogger()),
		Console: &console.Console{
			Streams: streams,
			Logger:  quietLogger(),
			Stdin:   strings.NewReader(""),
			Stdout:  &bytes.Buffer{},
		},
		Logger: quietLogger(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := mode.Run(ctx)
	if !errors.Is(err, chaterr.ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

// writerFunc adapts a string sink to io.Writer.
type writerFunc func(string)

func (f writerFunc) Write(p []byte) (int, error) {
	f(string(p))
	return len(p), nil
}
