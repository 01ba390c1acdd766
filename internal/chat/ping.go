package chat

import (
	"context"
	"fmt"
	"time"

	chaterr "minechat/internal/errors"
	"minechat/internal/metrics"
	"minechat/internal/retry"
	"minechat/internal/transport"
	"minechat/util"
)

// PingMonitor probes the writing side on a socket of its own.  Each
// probe is a blank line and is answered by exactly one line.
//
// The monitor only ever probes from a signed-in session: it waits for
// the Sender of its group to publish the account hash on Token, then
// signs in with it.  An unauthenticated blank line would be read by the
// server as a request to register a new account.
type PingMonitor struct {
	Dialer           transport.Dialer
	Host             string
	Port             int
	Token            *TokenLatch
	HandshakeTimeout time.Duration
	Timeout          time.Duration // how long to wait for an echo
	Interval         time.Duration // pause between echoed probes
	Streams          *Streams
	Liveness         *Queue[LivenessEvent]
	Logger           *util.Logger
	Metrics          *metrics.Collector
}

// Run probes until the socket fails or ctx is done.
func (p *PingMonitor) Run(ctx context.Context) error {
	token, err := p.Token.Wait(ctx)
	if err != nil {
		return err
	}

	conn, err := Open(ctx, p.Dialer, p.Host, p.Port, p.Metrics)
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	defer conn.Close()

	if err := p.handshake(conn, token); err != nil {
		return fmt.Errorf("ping: %w", err)
	}

	// owed counts echoes still due for probes that already timed out.
	// They are skipped so a late answer is never taken for the echo of
	// the probe in flight.
	owed := 0
	established := false
	for {
		if err := conn.WriteLine(""); err != nil {
			return fmt.Errorf("ping: %w", err)
		}

		late, err := p.awaitEcho(conn, owed)
		owed -= late
		switch {
		case chaterr.Is(err, chaterr.ErrStaleRead):
			owed++
			p.Logger.Debug("no echo within %s (%d unanswered)", p.Timeout, owed)
			p.Liveness.Put(TimedOut(SourcePing, time.Now()))
			p.Metrics.LivenessTimeout()
			continue
		case chaterr.Is(err, chaterr.ErrEndOfStream):
			return fmt.Errorf("ping: %w", chaterr.ErrConnectionLost)
		case err != nil:
			return fmt.Errorf("ping: %w", err)
		}

		if !established {
			established = true
			p.Streams.status(SendingEstablished)
		}
		p.Liveness.Put(Alive(SourcePing, time.Now()))

		if err := retry.Sleep(ctx, p.Interval); err != nil {
			return err
		}
	}
}

// awaitEcho reads until the echo of the current probe arrives within
// Timeout, first discarding up to owed late echoes.  It returns how
// many late echoes were discarded.
func (p *PingMonitor) awaitEcho(conn *Conn, owed int) (int, error) {
	deadline := time.Now().Add(p.Timeout)
	late := 0
	for {
		left := time.Until(deadline)
		if left <= 0 {
			return late, chaterr.ErrStaleRead
		}
		if _, err := conn.ReadLine(left); err != nil {
			return late, err
		}
		if late == owed {
			return late, nil
		}
		late++
		p.Logger.Debug("discarded a late echo")
	}
}

func (p *PingMonitor) handshake(conn *Conn, token string) error {
	greeting, err := conn.ReadLine(p.HandshakeTimeout)
	if err != nil {
		return fmt.Errorf("greeting: %w", err)
	}
	p.Logger.Debug("server: %s", greeting)

	creds, err := SignIn(conn, token, p.HandshakeTimeout, p.Logger)
	if err != nil {
		return err
	}
	if creds == nil {
		return chaterr.ErrInvalidToken
	}
	return nil
}
