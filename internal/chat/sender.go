package chat

import (
	"context"
	"fmt"
	"time"

	chaterr "minechat/internal/errors"
	"minechat/internal/metrics"
	"minechat/internal/transport"
	"minechat/util"
)

// TokenSaver persists an account token issued by a sign-up.
type TokenSaver interface {
	SaveToken(nickname, accountHash string) error
}

// Sender owns the writing socket.  It authenticates, then drains the
// Outbox one message at a time.
type Sender struct {
	Dialer   transport.Dialer
	Host     string
	Port     int
	Auth     *Authenticator
	Tokens   TokenSaver  // optional
	Signed   *TokenLatch // optional; receives the account hash once authorized
	Streams  *Streams
	Liveness *Queue[LivenessEvent]
	Logger   *util.Logger
	Metrics  *metrics.Collector
}

// Run authenticates and sends until the socket fails or ctx is done.
// A rejected token surfaces as errors.ErrInvalidToken.
func (s *Sender) Run(ctx context.Context) error {
	s.Streams.status(SendingInitiated)

	conn, err := Open(ctx, s.Dialer, s.Host, s.Port, s.Metrics)
	if err != nil {
		return fmt.Errorf("sender: %w", err)
	}
	defer conn.Close()
	s.Logger.Verbose("connected to %s", conn.Addr())

	creds, err := s.Auth.Authorize(conn)
	if err != nil {
		return fmt.Errorf("sender: %w", err)
	}
	if creds == nil {
		return fmt.Errorf("sender: %w", chaterr.ErrInvalidToken)
	}
	s.remember(creds)
	if s.Signed != nil {
		s.Signed.Set(creds.AccountHash)
	}

	s.Streams.Status.Put(StatusEvent{Kind: NicknameReceived, Nickname: creds.Nickname})
	s.Streams.status(SendingEstablished)
	s.Liveness.Put(Alive(SourceSender, time.Now()))

	for {
		msg, err := s.Streams.Outbox.Get(ctx)
		if err != nil {
			return err
		}
		if err := conn.WriteMessage(msg); err != nil {
			// Keep the message for the next session.
			s.Streams.Outbox.PutFront(msg)
			s.Logger.Verbose("%d message(s) kept for the next session", s.Streams.Outbox.Len())
			return fmt.Errorf("sender: %w", err)
		}
		s.Logger.Debug("sent %q", msg)
		s.Liveness.Put(Alive(SourceSender, time.Now()))
		s.Metrics.MessageSent()
	}
}

// remember saves a freshly issued token and makes later sessions sign
// in with it.
func (s *Sender) remember(creds *Credentials) {
	if creds.AccountHash == s.Auth.Token {
		return
	}
	s.Auth.Token = creds.AccountHash
	if s.Tokens == nil {
		return
	}
	if err := s.Tokens.SaveToken(creds.Nickname, creds.AccountHash); err != nil {
		s.Logger.Warn("could not save token for %s: %v", creds.Nickname, err)
	}
}
