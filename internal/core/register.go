package core

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"minechat/internal/chat"
	"minechat/internal/credentials"
	"minechat/internal/metrics"
	"minechat/internal/transport"
	"minechat/util"
)

// RegisterMode signs up a new account once and saves its token.
type RegisterMode struct {
	Dialer   transport.Dialer
	Host     string
	Port     int
	Nickname string
	Timeout  time.Duration
	Tokens   *credentials.FileStore
	Logger   *util.Logger
	Metrics  *metrics.Collector

	// Stdout defaults to os.Stdout when nil.
	Stdout io.Writer
}

func (m *RegisterMode) stdout() io.Writer {
	if m.Stdout != nil {
		return m.Stdout
	}
	return os.Stdout
}

// Run registers Nickname on the writing socket.
func (m *RegisterMode) Run(ctx context.Context) error {
	defer m.Dialer.Close()

	conn, err := chat.Open(ctx, m.Dialer, m.Host, m.Port, m.Metrics)
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	defer conn.Close()

	auth := &chat.Authenticator{Nickname: m.Nickname, Timeout: m.Timeout, Logger: m.Logger}
	creds, err := auth.Authorize(conn)
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}

	if err := m.Tokens.SaveToken(creds.Nickname, creds.AccountHash); err != nil {
		return err
	}
	fmt.Fprintf(m.stdout(), "Registered as %s. Token %s saved to %s\n",
		creds.Nickname, creds.AccountHash, m.Tokens.Path(creds.Nickname))
	return nil
}
