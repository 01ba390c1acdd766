package chat

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	chaterr "minechat/internal/errors"
	"minechat/internal/transport"
	"minechat/util"
)

// fakeServer mimics a minechat server on two local ports.
//
// Every reading client gets the lines in broadcast and is then held
// open.  Writing clients get a greeting, then sign in or sign up
// against accounts, then every line they send is recorded and, when
// echo is on, answered.
type fakeServer struct {
	t        *testing.T
	reading  net.Listener
	writing  net.Listener
	accounts map[string]Credentials // token → account
	echo     bool
	chatter  time.Duration // when set, readers get "chatter" this often

	mu          sync.Mutex
	broadcast   []string
	readingHits int
	writingHits int
	raw         []string // lines received after authentication, with terminators
	signUps     []string
	conns       []net.Conn
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	s := &fakeServer{
		t:        t,
		accounts: map[string]Credentials{},
		echo:     true,
	}
	var err error
	if s.reading, err = net.Listen("tcp", "127.0.0.1:0"); err != nil {
		t.Fatal(err)
	}
	if s.writing, err = net.Listen("tcp", "127.0.0.1:0"); err != nil {
		t.Fatal(err)
	}
	go s.accept(s.reading, s.serveReading)
	go s.accept(s.writing, s.serveWriting)
	t.Cleanup(s.close)
	return s
}

func (s *fakeServer) readingPort() int { return s.reading.Addr().(*net.TCPAddr).Port }
func (s *fakeServer) writingPort() int { return s.writing.Addr().(*net.TCPAddr).Port }

func (s *fakeServer) close() {
	s.reading.Close()
	s.writing.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		c.Close()
	}
}

func (s *fakeServer) accept(ln net.Listener, serve func(net.Conn)) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()
		go serve(conn)
	}
}

func (s *fakeServer) serveReading(conn net.Conn) {
	s.mu.Lock()
	s.readingHits++
	lines := append([]string(nil), s.broadcast...)
	chatter := s.chatter
	s.mu.Unlock()

	for _, line := range lines {
		if _, err := conn.Write([]byte(line + "\n")); err != nil {
			return
		}
	}
	if chatter > 0 {
		for {
			time.Sleep(chatter)
			if _, err := conn.Write([]byte("chatter\n")); err != nil {
				return
			}
		}
	}
	// Hold the socket open until the client goes away.
	buf := make([]byte, 64)
	for {
		if _, err := conn.Read(buf); err != nil {
			return
		}
	}
}

func (s *fakeServer) serveWriting(conn net.Conn) {
	s.mu.Lock()
	s.writingHits++
	echo := s.echo
	s.mu.Unlock()

	r := bufio.NewReader(conn)
	write := func(line string) bool {
		_, err := conn.Write([]byte(line + "\n"))
		return err == nil
	}
	readLine := func() (string, bool) {
		raw, err := r.ReadString('\n')
		return strings.TrimRight(raw, "\n"), err == nil
	}

	if !write("Hello %username%! Enter your personal hash or leave it empty to create new account.") {
		return
	}
	if !s.authenticate(readLine, write) {
		return
	}

	for {
		raw, err := r.ReadString('\n')
		if err != nil {
			return
		}
		s.mu.Lock()
		s.raw = append(s.raw, raw)
		s.mu.Unlock()
		if echo && !write("Message send. Write more, end message with an empty line.") {
			return
		}
	}
}

// authenticate runs the sign-in or sign-up dialogue.
func (s *fakeServer) authenticate(readLine func() (string, bool), write func(string) bool) bool {
	token, ok := readLine()
	if !ok {
		return false
	}
	if token != "" {
		s.mu.Lock()
		creds, known := s.accounts[token]
		s.mu.Unlock()
		if known {
			data, _ := json.Marshal(creds)
			return write(string(data))
		}
		if !write("null") {
			return false
		}
	}
	if !write("Enter preferred nickname below:") {
		return false
	}

	nickname, ok := readLine()
	if !ok {
		return false
	}
	creds := Credentials{Nickname: nickname, AccountHash: "hash-" + nickname}
	s.mu.Lock()
	s.signUps = append(s.signUps, nickname)
	s.accounts[creds.AccountHash] = creds
	s.mu.Unlock()
	data, _ := json.Marshal(creds)
	return write(string(data))
}

func (s *fakeServer) addAccount(token, nickname string) {
	s.mu.Lock()
	s.accounts[token] = Credentials{Nickname: nickname, AccountHash: token}
	s.mu.Unlock()
}

func (s *fakeServer) setBroadcast(lines ...string) {
	s.mu.Lock()
	s.broadcast = lines
	s.mu.Unlock()
}

func (s *fakeServer) setChatter(every time.Duration) {
	s.mu.Lock()
	s.chatter = every
	s.mu.Unlock()
}

func (s *fakeServer) setEcho(on bool) {
	s.mu.Lock()
	s.echo = on
	s.mu.Unlock()
}

func (s *fakeServer) received() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.Join(s.raw, "")
}

func (s *fakeServer) writingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writingHits
}

func (s *fakeServer) readingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readingHits
}

func (s *fakeServer) registered() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.signUps...)
}

// ── shared helpers ───────────────────────────────────────────────────

func quietLogger() *util.Logger {
	return util.NewLogger(0)
}

func tcpDialer() transport.Dialer {
	return &transport.TCPDialer{Timeout: 2 * time.Second}
}

// dialFunc adapts a function to transport.Dialer.
type dialFunc func(ctx context.Context, network, address string) (net.Conn, error)

func (f dialFunc) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	return f(ctx, network, address)
}

func (f dialFunc) Close() error { return nil }

func failingDialer(err error) transport.Dialer {
	return dialFunc(func(_ context.Context, _, address string) (net.Conn, error) {
		return nil, chaterr.Wrap("dial", address, err)
	})
}

// waitStatus pulls status events until one of kind has been seen n
// times, or fails the test after timeout.  It returns every event seen.
func waitStatus(t *testing.T, q *Queue[StatusEvent], kind StatusKind, n int, timeout time.Duration) []StatusEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var seen []StatusEvent
	count := 0
	for count < n {
		ev, err := q.Get(ctx)
		if err != nil {
			t.Fatalf("saw %d %v events before timeout, want %d (events: %v)", count, kind, n, seen)
		}
		seen = append(seen, ev)
		if ev.Kind == kind {
			count++
		}
	}
	return seen
}
