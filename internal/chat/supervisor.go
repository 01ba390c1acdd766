// Package chat implements the minechat client core: the line protocol,
// the handshake, and the supervised group of tasks that keeps a
// reading and a writing socket alive.
//
// A connection group is four tasks sharing one context:
//
//	Reader       reading socket  → Messages, History
//	Sender       Outbox          → writing socket
//	PingMonitor  probes the writing side on its own socket once the
//	             Sender has signed in
//	Watchdog     fails the group when it goes silent
//
// The first task to fail cancels the rest.  The Supervisor classifies
// the failure and restarts the whole group, immediately or after the
// big reconnect timeout, until the failure is fatal or its context ends.
package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	chaterr "minechat/internal/errors"
	"minechat/internal/metrics"
	"minechat/internal/retry"
	"minechat/internal/transport"
	"minechat/util"
)

// SessionConfig carries the endpoints, identity, and timing of a chat
// session.
type SessionConfig struct {
	Host        string
	ReadingPort int
	WritingPort int

	Token          string
	Nickname       string
	SignUpFallback bool

	// SmallTimeout bounds a single read or ping echo.
	SmallTimeout time.Duration
	// BigTimeout is slept before retrying a delayed-class failure.
	BigTimeout time.Duration
	// PingInterval separates echoed probes.
	PingInterval time.Duration
	// WatchdogWindow is the longest silence tolerated.
	WatchdogWindow time.Duration
	// HandshakeTimeout bounds each handshake read.
	HandshakeTimeout time.Duration
}

// Supervisor runs connection groups until a fatal failure.
type Supervisor struct {
	Config  SessionConfig
	Dialer  transport.Dialer
	Streams *Streams
	Tokens  TokenSaver // optional
	Logger  *util.Logger
	Metrics *metrics.Collector

	auth *Authenticator
}

// Run blocks until ctx is done or a group fails fatally.  A rejected
// token is reported as an error wrapping errors.ErrInvalidToken.
func (s *Supervisor) Run(ctx context.Context) error {
	s.auth = &Authenticator{
		Token:          s.Config.Token,
		Nickname:       s.Config.Nickname,
		SignUpFallback: s.Config.SignUpFallback,
		Timeout:        s.Config.HandshakeTimeout,
		Logger:         s.Logger.Named("auth"),
	}
	policy := retry.Policy{DelayedWait: s.Config.BigTimeout}

	err := policy.Loop(ctx, s.runGroup, func(attempt int, d retry.Decision) {
		s.Metrics.RecordError(d.Failure.Error())
		s.Metrics.Reconnect(d.Wait > 0)
		if d.Wait > 0 {
			s.Logger.Warn("attempt %d failed: %v; reconnecting in %s", attempt, d.Failure, d.Wait)
		} else {
			s.Logger.Warn("attempt %d failed: %v; reconnecting", attempt, d.Failure)
		}
	})
	if err != nil && ctx.Err() == nil {
		s.Metrics.RecordError(err.Error())
	}
	return err
}

// runGroup runs one connection group to completion.  It never returns
// nil: a group whose tasks all stop cleanly counts as a lost
// connection.
func (s *Supervisor) runGroup(ctx context.Context, attempt int) error {
	id := uuid.NewString()[:8]
	log := s.Logger.Named(id)
	log.Verbose("starting connection group (attempt %d)", attempt)

	liveness := NewQueue[LivenessEvent]()
	signed := NewTokenLatch()
	g, gctx := errgroup.WithContext(ctx)

	reader := &Reader{
		Dialer:   s.Dialer,
		Host:     s.Config.Host,
		Port:     s.Config.ReadingPort,
		Timeout:  s.Config.SmallTimeout,
		Streams:  s.Streams,
		Liveness: liveness,
		Logger:   log.Named("reader"),
		Metrics:  s.Metrics,
	}
	sender := &Sender{
		Dialer:   s.Dialer,
		Host:     s.Config.Host,
		Port:     s.Config.WritingPort,
		Auth:     s.auth,
		Tokens:   s.Tokens,
		Signed:   signed,
		Streams:  s.Streams,
		Liveness: liveness,
		Logger:   log.Named("sender"),
		Metrics:  s.Metrics,
	}
	ping := &PingMonitor{
		Dialer:           s.Dialer,
		Host:             s.Config.Host,
		Port:             s.Config.WritingPort,
		Token:            signed,
		HandshakeTimeout: s.Config.HandshakeTimeout,
		Timeout:          s.Config.SmallTimeout,
		Interval:         s.Config.PingInterval,
		Streams:          s.Streams,
		Liveness:         liveness,
		Logger:           log.Named("ping"),
		Metrics:          s.Metrics,
	}
	watchdog := &Watchdog{
		Window:   s.Config.WatchdogWindow,
		Liveness: liveness,
		Logger:   log.Named("watchdog"),
		Metrics:  s.Metrics,
	}

	g.Go(func() error { return reader.Run(gctx) })
	g.Go(func() error { return sender.Run(gctx) })
	g.Go(func() error { return ping.Run(gctx) })
	g.Go(func() error { return watchdog.Run(gctx) })

	err := g.Wait()
	if err == nil {
		err = chaterr.ErrConnectionLost
	}
	log.Debug("connection group stopped: %v", err)
	return err
}
