package core

import (
	"fmt"
	"os"

	"minechat/config"
	"minechat/internal/chat"
	"minechat/internal/console"
	"minechat/internal/credentials"
	"minechat/internal/history"
	"minechat/internal/metrics"
	"minechat/internal/transport"
	"minechat/util"
)

// Build constructs the appropriate Mode from a validated
// configuration.  m may be nil.
func Build(cfg *config.Config, logger *util.Logger, m *metrics.Collector) (Mode, error) {
	tokens := &credentials.FileStore{Dir: cfg.TokenDir}

	switch {
	case cfg.Register:
		return buildRegister(cfg, tokens, logger, m), nil
	case cfg.Send != "":
		return buildSend(cfg, tokens, logger, m)
	default:
		return buildChat(cfg, tokens, logger, m)
	}
}

// ── mode builders ────────────────────────────────────────────────────

func buildChat(cfg *config.Config, tokens *credentials.FileStore, logger *util.Logger, m *metrics.Collector) (Mode, error) {
	token, err := resolveToken(cfg, tokens, logger)
	if err != nil {
		return nil, err
	}

	streams := chat.NewStreams()
	return &ChatMode{
		Supervisor: &chat.Supervisor{
			Config:  sessionConfig(cfg, token),
			Dialer:  buildDialer(cfg, logger),
			Streams: streams,
			Tokens:  tokens,
			Logger:  logger.Named("chat"),
			Metrics: m,
		},
		History: history.NewStore(cfg.HistoryFile, cfg.HistoryTimestamps, logger.Named("history")),
		Console: &console.Console{
			Streams:     streams,
			Logger:      logger,
			Interactive: console.IsInteractive(os.Stdin),
		},
		Logger: logger,
	}, nil
}

func buildRegister(cfg *config.Config, tokens *credentials.FileStore, logger *util.Logger, m *metrics.Collector) Mode {
	return &RegisterMode{
		Dialer:   buildDialer(cfg, logger),
		Host:     cfg.Host,
		Port:     cfg.WritingPort,
		Nickname: cfg.Nickname,
		Timeout:  cfg.HandshakeTimeout,
		Tokens:   tokens,
		Logger:   logger.Named("register"),
		Metrics:  m,
	}
}

func buildSend(cfg *config.Config, tokens *credentials.FileStore, logger *util.Logger, m *metrics.Collector) (Mode, error) {
	token, err := resolveToken(cfg, tokens, logger)
	if err != nil {
		return nil, err
	}

	return &SendMode{
		Dialer: buildDialer(cfg, logger),
		Host:   cfg.Host,
		Port:   cfg.WritingPort,
		Auth: &chat.Authenticator{
			Token:          token,
			Nickname:       cfg.Nickname,
			SignUpFallback: cfg.SignUpFallback,
			Timeout:        cfg.HandshakeTimeout,
			Logger:         logger.Named("auth"),
		},
		Tokens:  tokens,
		Message: cfg.Send,
		Logger:  logger.Named("send"),
		Metrics: m,
	}, nil
}

// ── shared helpers ───────────────────────────────────────────────────

// resolveToken returns the configured token, falling back to the
// nickname's saved token file.
func resolveToken(cfg *config.Config, tokens *credentials.FileStore, logger *util.Logger) (string, error) {
	if cfg.Token != "" || cfg.Nickname == "" {
		return cfg.Token, nil
	}
	token, err := tokens.LoadToken(cfg.Nickname)
	if err != nil {
		return "", fmt.Errorf("token for %s: %w", cfg.Nickname, err)
	}
	if token != "" {
		logger.Verbose("using saved token from %s", tokens.Path(cfg.Nickname))
	}
	return token, nil
}

func sessionConfig(cfg *config.Config, token string) chat.SessionConfig {
	return chat.SessionConfig{
		Host:             cfg.Host,
		ReadingPort:      cfg.ReadingPort,
		WritingPort:      cfg.WritingPort,
		Token:            token,
		Nickname:         cfg.Nickname,
		SignUpFallback:   cfg.SignUpFallback,
		SmallTimeout:     cfg.SmallTimeout,
		BigTimeout:       cfg.BigTimeout,
		PingInterval:     cfg.PingInterval,
		WatchdogWindow:   cfg.WatchdogWindow,
		HandshakeTimeout: cfg.HandshakeTimeout,
	}
}

// buildDialer creates the right transport.Dialer for the given config.
func buildDialer(cfg *config.Config, logger *util.Logger) transport.Dialer {
	if cfg.TunnelEnabled {
		return transport.NewSSHDialer(&transport.SSHConfig{
			User:          cfg.TunnelUser,
			Host:          cfg.TunnelHost,
			Port:          cfg.TunnelPort,
			KeyPath:       cfg.SSHKeyPath,
			PromptPass:    cfg.SSHPassword,
			UseAgent:      cfg.UseSSHAgent,
			StrictHostKey: cfg.StrictHostKey,
			KnownHosts:    cfg.KnownHostsPath,
			ConnTimeout:   cfg.DialTimeout,
		}, logger)
	}
	return &transport.TCPDialer{Timeout: cfg.DialTimeout}
}
