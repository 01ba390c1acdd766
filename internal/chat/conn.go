package chat

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	chaterr "minechat/internal/errors"
	"minechat/internal/metrics"
	"minechat/internal/transport"
	"minechat/util"
)

// Conn is one line-oriented socket to the chat server.  It is owned by
// exactly one task, which must Close it on every exit path.
//
// Lines are read by a background goroutine so ReadLine can honour a
// timeout on any net.Conn, including SSH-forwarded channels that do not
// support deadlines.  Cancelling the context given to Open closes the
// socket, which unblocks pending reads and writes.
type Conn struct {
	conn    net.Conn
	addr    string
	ctx     context.Context
	metrics *metrics.Collector

	lines    chan string
	readErr  error        // set before lines is closed
	lastByte atomic.Int64 // unix nanos of the last byte received
	done    chan struct{}

	stop      func() bool
	closeOnce sync.Once
	closeErr  error
}

// Open dials host:port through d.
func Open(ctx context.Context, d transport.Dialer, host string, port int, m *metrics.Collector) (*Conn, error) {
	addr := util.FormatAddr(host, port)
	nc, err := d.Dial(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return newConn(ctx, nc, addr, m), nil
}

func newConn(ctx context.Context, nc net.Conn, addr string, m *metrics.Collector) *Conn {
	c := &Conn{
		conn:    nc,
		addr:    addr,
		ctx:     ctx,
		metrics: m,
		lines:   make(chan string),
		done:    make(chan struct{}),
	}
	c.stop = context.AfterFunc(ctx, func() { nc.Close() })
	m.ConnectionOpened()
	go c.readLoop()
	return c
}

// Addr returns the "host:port" this connection was opened to.
func (c *Conn) Addr() string { return c.addr }

func (c *Conn) readLoop() {
	r := bufio.NewReader(activityReader{r: c.conn, last: &c.lastByte})
	for {
		raw, err := r.ReadString('\n')
		if err != nil {
			// A trailing partial line without its newline is dropped.
			if errors.Is(err, io.EOF) {
				c.readErr = chaterr.ErrEndOfStream
			} else {
				c.readErr = chaterr.Wrap("read", c.addr, err)
			}
			close(c.lines)
			return
		}
		select {
		case c.lines <- DecodeLine(raw):
		case <-c.done:
			return
		}
	}
}

// ReadLine returns the next line without its terminator.  With a
// positive timeout it fails with errors.ErrStaleRead once no byte at all
// has arrived for that long; a line trickling in slowly is waited for.
// The connection stays usable after a stale read.  A peer EOF yields
// errors.ErrEndOfStream, and reading after Close yields
// errors.ErrNotConnected.
func (c *Conn) ReadLine(timeout time.Duration) (string, error) {
	var (
		timer   *time.Timer
		expired <-chan time.Time
	)
	if timeout > 0 {
		timer = time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		select {
		case line, ok := <-c.lines:
			if !ok {
				return "", c.failure(c.readErr)
			}
			return line, nil
		case <-expired:
			idle := time.Since(time.Unix(0, c.lastByte.Load()))
			if idle < timeout {
				timer.Reset(timeout - idle)
				continue
			}
			return "", chaterr.ErrStaleRead
		case <-c.ctx.Done():
			return "", c.ctx.Err()
		case <-c.done:
			return "", chaterr.ErrNotConnected
		}
	}
}

// WriteLine sends text followed by a single newline.
func (c *Conn) WriteLine(text string) error {
	return c.write(EncodeLine(text))
}

// WriteMessage sends text as a chat message (terminated by a blank
// line).  Embedded newlines become spaces.
func (c *Conn) WriteMessage(text string) error {
	return c.write(EncodeMessage(text))
}

func (c *Conn) write(p []byte) error {
	select {
	case <-c.done:
		return chaterr.ErrNotConnected
	default:
	}
	if _, err := c.conn.Write(p); err != nil {
		return c.failure(chaterr.Wrap("write", c.addr, err))
	}
	return nil
}

// failure prefers the context error when the socket was closed because
// the owner's context ended.
func (c *Conn) failure(err error) error {
	if ctxErr := c.ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

// Close half-closes the socket so pending writes reach the peer, then
// releases it.  It is safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.stop()
		close(c.done)
		c.closeErr = util.GracefulClose(c.conn)
		c.metrics.ConnectionClosed()
	})
	return c.closeErr
}

// activityReader stamps last whenever bytes arrive.
type activityReader struct {
	r    io.Reader
	last *atomic.Int64
}

func (a activityReader) Read(p []byte) (int, error) {
	n, err := a.r.Read(p)
	if n > 0 {
		a.last.Store(time.Now().UnixNano())
	}
	return n, err
}
