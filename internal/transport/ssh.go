package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	chaterr "minechat/internal/errors"
	"minechat/util"
)

// SSHConfig holds everything needed to dial an SSH gateway.
type SSHConfig struct {
	User          string
	Host          string
	Port          int
	KeyPath       string
	PromptPass    bool
	UseAgent      bool
	StrictHostKey bool
	KnownHosts    string
	ConnTimeout   time.Duration
	Prompt        SecretPrompt // nil: ask on the terminal
}

// SSHDialer routes chat sockets through an SSH gateway.  The SSH
// session is established lazily on the first Dial and re-established
// on a later Dial once the previous session has died, so a supervisor
// restart after a gateway hiccup gets a fresh session.
type SSHDialer struct {
	config *SSHConfig
	auth   *gatewayAuth
	logger *util.Logger

	mu     sync.Mutex
	client *ssh.Client
	alive  bool
}

// NewSSHDialer creates a dialer that forwards connections through an
// SSH gateway.  Nothing is dialed until the first Dial.
func NewSSHDialer(cfg *SSHConfig, logger *util.Logger) *SSHDialer {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.ConnTimeout == 0 {
		cfg.ConnTimeout = 30 * time.Second
	}
	logger = logger.Named("ssh")
	return &SSHDialer{config: cfg, auth: newGatewayAuth(cfg, logger), logger: logger}
}

// Dial connects to address through the gateway.
func (d *SSHDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	client, err := d.session(ctx)
	if err != nil {
		return nil, err
	}

	d.logger.Debug("dialing %s %s through %s", network, address, d.gateway())
	conn, err := client.Dial(network, address)
	if err != nil {
		return nil, chaterr.Wrap("tunnel dial", address, err)
	}
	return conn, nil
}

// Close shuts down the SSH session, if any.
func (d *SSHDialer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.alive = false
	if d.client != nil {
		err := d.client.Close()
		d.client = nil
		return err
	}
	return nil
}

// IsAlive reports whether the SSH session is currently up.
func (d *SSHDialer) IsAlive() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.alive
}

func (d *SSHDialer) gateway() string {
	return util.FormatAddr(d.config.Host, d.config.Port)
}

// session returns a live client, connecting a new one if needed.
func (d *SSHDialer) session(ctx context.Context) (*ssh.Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.alive && d.client != nil {
		return d.client, nil
	}
	if d.client != nil {
		d.client.Close()
		d.client = nil
	}

	client, err := d.connect(ctx)
	if err != nil {
		return nil, err
	}
	d.client = client
	d.alive = true
	go d.monitor(client)
	return client, nil
}

// connect dials the gateway and completes the SSH handshake.
func (d *SSHDialer) connect(ctx context.Context) (*ssh.Client, error) {
	sshCfg, err := d.auth.clientConfig()
	if err != nil {
		return nil, err
	}

	addr := d.gateway()
	d.logger.Verbose("establishing SSH session to %s@%s", d.config.User, addr)

	// Use a context-aware TCP dial so callers can cancel.
	dialer := net.Dialer{Timeout: d.config.ConnTimeout}
	tcpConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, chaterr.WrapSSH("dial", d.config.Host, d.config.Port, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(tcpConn, addr, sshCfg)
	if err != nil {
		tcpConn.Close()
		return nil, chaterr.WrapSSH("handshake", d.config.Host, d.config.Port, err)
	}

	d.logger.Verbose("SSH session established")
	return ssh.NewClient(sshConn, chans, reqs), nil
}

// monitor blocks until client's connection closes and marks the dialer
// dead so the next Dial reconnects.
func (d *SSHDialer) monitor(client *ssh.Client) {
	err := client.Wait()

	d.mu.Lock()
	if d.client == client {
		d.alive = false
	}
	d.mu.Unlock()

	if err != nil {
		d.logger.Debug("SSH session closed: %v", err)
	} else {
		d.logger.Debug("SSH session closed")
	}
}

// String describes the gateway for logs.
func (d *SSHDialer) String() string {
	return fmt.Sprintf("ssh://%s@%s", d.config.User, d.gateway())
}
