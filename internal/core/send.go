package core

import (
	"context"
	"fmt"

	"minechat/internal/chat"
	"minechat/internal/metrics"
	"minechat/internal/transport"
	"minechat/util"
)

// SendMode authenticates, sends a single message and exits.
type SendMode struct {
	Dialer  transport.Dialer
	Host    string
	Port    int
	Auth    *chat.Authenticator
	Tokens  chat.TokenSaver // optional
	Message string
	Logger  *util.Logger
	Metrics *metrics.Collector
}

// Run delivers Message.  There is no retry: a failure is reported to
// the caller as is.
func (m *SendMode) Run(ctx context.Context) error {
	defer m.Dialer.Close()

	conn, err := chat.Open(ctx, m.Dialer, m.Host, m.Port, m.Metrics)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	defer conn.Close()

	creds, err := m.Auth.Authorize(conn)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	if creds.AccountHash != m.Auth.Token && m.Tokens != nil {
		if err := m.Tokens.SaveToken(creds.Nickname, creds.AccountHash); err != nil {
			m.Logger.Warn("could not save token for %s: %v", creds.Nickname, err)
		}
	}

	if err := conn.WriteMessage(m.Message); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	m.Metrics.MessageSent()
	m.Logger.Info("message sent as %s", creds.Nickname)
	return conn.Close()
}
