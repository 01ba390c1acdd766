// Package console is a line-oriented terminal front end for a chat
// session.  It prints received messages to stdout, reports status
// changes through the logger, and queues every line typed on stdin for
// sending.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"minechat/internal/chat"
	"minechat/util"
)

// Console binds a session's streams to local I/O.
type Console struct {
	Streams *chat.Streams
	Logger  *util.Logger

	// Stdin/Stdout default to os.Stdin/os.Stdout when nil.
	Stdin  io.Reader
	Stdout io.Writer

	// Interactive enables the input hint shown once the nickname is
	// known.
	Interactive bool
}

// IsInteractive reports whether f is a terminal.
func IsInteractive(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func (c *Console) stdin() io.Reader {
	if c.Stdin != nil {
		return c.Stdin
	}
	return os.Stdin
}

func (c *Console) stdout() io.Writer {
	if c.Stdout != nil {
		return c.Stdout
	}
	return os.Stdout
}

// Run pumps the streams until ctx is done or stdout fails.  Reaching
// the end of stdin stops input but not output.
func (c *Console) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.printMessages(gctx) })
	g.Go(func() error { return c.reportStatus(gctx) })

	// A blocked read on stdin cannot be interrupted, so the input pump
	// lives outside the group and is abandoned on shutdown.
	go c.readInput(gctx)

	return g.Wait()
}

func (c *Console) printMessages(ctx context.Context) error {
	out := c.stdout()
	for {
		msg, err := c.Streams.Messages.Get(ctx)
		if err != nil {
			return err
		}
		// A restored history blob already ends with a newline.
		if !strings.HasSuffix(msg, "\n") {
			msg += "\n"
		}
		if _, err := io.WriteString(out, msg); err != nil {
			return fmt.Errorf("write stdout: %w", err)
		}
	}
}

func (c *Console) reportStatus(ctx context.Context) error {
	for {
		ev, err := c.Streams.Status.Get(ctx)
		if err != nil {
			return err
		}
		switch ev.Kind {
		case chat.NicknameReceived:
			c.Logger.Info("logged in as %s", ev.Nickname)
			if c.Interactive {
				c.Logger.Info("type a message and press Enter to send it")
			}
		case chat.ReadingEstablished, chat.SendingEstablished:
			c.Logger.Verbose("%s", ev)
		default:
			c.Logger.Debug("%s", ev)
		}
	}
}

func (c *Console) readInput(ctx context.Context) {
	sc := bufio.NewScanner(c.stdin())
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		c.Streams.Outbox.Put(line)
	}
	if err := sc.Err(); err != nil {
		c.Logger.Warn("reading input: %v", err)
		return
	}
	c.Logger.Verbose("input closed")
}
