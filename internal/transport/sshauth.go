package transport

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
	"golang.org/x/term"

	chaterr "minechat/internal/errors"
	"minechat/util"
)

// SecretPrompt asks the user for a password or key passphrase.
type SecretPrompt func(prompt string) ([]byte, error)

// TerminalPrompt reads secrets from the controlling terminal without
// echo.  The prompt itself is printed through logger.
func TerminalPrompt(logger *util.Logger) SecretPrompt {
	return func(prompt string) ([]byte, error) {
		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			return nil, fmt.Errorf("cannot ask for %q: stdin is not a terminal", prompt)
		}
		logger.Info("%s", prompt)
		return term.ReadPassword(fd)
	}
}

// gatewayAuth resolves the client settings for the SSH gateway once.
// The supervisor reconnects many times over a session's life; every
// later SSH session reuses the answers given the first time, so the
// user is never asked for a secret twice.
type gatewayAuth struct {
	cfg    *SSHConfig
	prompt SecretPrompt
	logger *util.Logger

	once    sync.Once
	methods []ssh.AuthMethod
	hostKey ssh.HostKeyCallback
	err     error
}

func newGatewayAuth(cfg *SSHConfig, logger *util.Logger) *gatewayAuth {
	prompt := cfg.Prompt
	if prompt == nil {
		prompt = TerminalPrompt(logger)
	}
	return &gatewayAuth{cfg: cfg, prompt: prompt, logger: logger}
}

// clientConfig returns the settings for a new SSH session.  Failures
// are *errors.SSHError, which the supervisor backs off from.
func (a *gatewayAuth) clientConfig() (*ssh.ClientConfig, error) {
	a.once.Do(a.resolve)
	if a.err != nil {
		return nil, a.err
	}
	return &ssh.ClientConfig{
		User:            a.cfg.User,
		Auth:            a.methods,
		HostKeyCallback: a.hostKey,
		Timeout:         a.cfg.ConnTimeout,
	}, nil
}

func (a *gatewayAuth) resolve() {
	methods, err := a.authMethods()
	if err != nil {
		a.err = chaterr.WrapSSH("auth", a.cfg.Host, a.cfg.Port, err)
		return
	}
	hostKey, err := a.hostKeyCallback()
	if err != nil {
		a.err = chaterr.WrapSSH("hostkey", a.cfg.Host, a.cfg.Port, err)
		return
	}
	a.methods, a.hostKey = methods, hostKey
}

// authMethods honours --ssh-key, --ssh-agent and --ssh-password in that
// order and falls back to discovery when none was given.
func (a *gatewayAuth) authMethods() ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if a.cfg.KeyPath != "" {
		signer, err := a.loadKey(a.cfg.KeyPath, true)
		if err != nil {
			return nil, fmt.Errorf("key %s: %w", a.cfg.KeyPath, err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if a.cfg.UseAgent {
		m, err := agentAuth()
		if err != nil {
			return nil, fmt.Errorf("ssh-agent: %w", err)
		}
		methods = append(methods, m)
	}
	if a.cfg.PromptPass {
		pass, err := a.prompt(fmt.Sprintf("Password for %s@%s:", a.cfg.User, a.cfg.Host))
		if err != nil {
			return nil, fmt.Errorf("reading password: %w", err)
		}
		methods = append(methods, ssh.Password(string(pass)))
	}

	if len(methods) == 0 {
		methods = a.discover()
	}
	if len(methods) == 0 {
		return nil, fmt.Errorf("%w: no usable key, agent or password "+
			"(use --ssh-key, --ssh-agent or --ssh-password)", chaterr.ErrAuthFailed)
	}
	return methods, nil
}

// loadKey parses a private key file.  Encrypted keys are only unlocked
// when ask is set; discovered keys are never prompted for.
func (a *gatewayAuth) loadKey(path string, ask bool) (ssh.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	signer, err := ssh.ParsePrivateKey(data)
	var missing *ssh.PassphraseMissingError
	if err == nil || !errors.As(err, &missing) || !ask {
		return signer, err
	}

	pass, err := a.prompt(fmt.Sprintf("Passphrase for %s:", path))
	if err != nil {
		return nil, fmt.Errorf("reading passphrase: %w", err)
	}
	return ssh.ParsePrivateKeyWithPassphrase(data, pass)
}

// discover tries the agent and the usual key files under ~/.ssh.
func (a *gatewayAuth) discover() []ssh.AuthMethod {
	var out []ssh.AuthMethod

	if m, err := agentAuth(); err == nil {
		a.logger.Debug("using ssh-agent")
		out = append(out, m)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return out
	}
	for _, name := range []string{"id_ed25519", "id_rsa", "id_ecdsa"} {
		p := filepath.Join(home, ".ssh", name)
		if _, err := os.Stat(p); err != nil {
			continue
		}
		signer, err := a.loadKey(p, false)
		if err != nil {
			a.logger.Debug("skipping %s: %v", p, err)
			continue
		}
		a.logger.Debug("using key %s", p)
		out = append(out, ssh.PublicKeys(signer))
	}
	return out
}

func agentAuth() (ssh.AuthMethod, error) {
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil, fmt.Errorf("SSH_AUTH_SOCK is not set")
	}
	conn, err := net.Dial("unix", sock)
	if err != nil {
		return nil, fmt.Errorf("connecting to agent at %s: %w", sock, err)
	}
	return ssh.PublicKeysCallback(agent.NewClient(conn).Signers), nil
}

func (a *gatewayAuth) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if !a.cfg.StrictHostKey {
		a.logger.Warn("host key of %s is not verified (use --strict-hostkey)", a.cfg.Host)
		//nolint:gosec // user opted out of host key checking
		return ssh.InsecureIgnoreHostKey(), nil
	}

	khFile := a.cfg.KnownHosts
	if khFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("locating home directory: %w", err)
		}
		khFile = filepath.Join(home, ".ssh", "known_hosts")
	}
	return knownhosts.New(khFile)
}
