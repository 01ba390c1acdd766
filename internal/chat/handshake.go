package chat

import (
	"fmt"
	"time"

	chaterr "minechat/internal/errors"
	"minechat/util"
)

// Authenticator performs the writing-socket handshake.
//
// With a Token it signs in.  When the server rejects the token the
// result is errors.ErrInvalidToken, unless SignUpFallback is set and a
// Nickname is known, in which case a new account is registered on the
// same socket.  Without a Token it registers Nickname straight away.
type Authenticator struct {
	Token          string
	Nickname       string
	SignUpFallback bool
	// Timeout bounds each handshake read; zero waits forever.
	Timeout time.Duration
	Logger  *util.Logger
}

// Authorize reads the server greeting and authenticates c.  It never
// returns (nil, nil).
func (a *Authenticator) Authorize(c *Conn) (*Credentials, error) {
	greeting, err := c.ReadLine(a.Timeout)
	if err != nil {
		return nil, fmt.Errorf("greeting: %w", err)
	}
	a.Logger.Debug("server: %s", greeting)

	if a.Token == "" {
		if a.Nickname == "" {
			return nil, fmt.Errorf("%w: no token and no nickname to register", chaterr.ErrInvalidToken)
		}
		return SignUp(c, a.Nickname, true, a.Timeout, a.Logger)
	}

	creds, err := SignIn(c, a.Token, a.Timeout, a.Logger)
	if err != nil {
		return nil, err
	}
	if creds != nil {
		return creds, nil
	}

	if !a.SignUpFallback || a.Nickname == "" {
		return nil, chaterr.ErrInvalidToken
	}
	a.Logger.Warn("token rejected, registering %q instead", a.Nickname)
	// After a rejected token the server is already waiting for a
	// nickname, so no blank line is sent.
	return SignUp(c, a.Nickname, false, a.Timeout, a.Logger)
}

// SignIn sends token and parses the reply.  A null reply means the
// server does not know the token and yields (nil, nil).
func SignIn(c *Conn, token string, timeout time.Duration, logger *util.Logger) (*Credentials, error) {
	if err := c.WriteLine(token); err != nil {
		return nil, err
	}
	reply, err := c.ReadLine(timeout)
	if err != nil {
		return nil, fmt.Errorf("sign-in reply: %w", err)
	}

	creds, err := DecodeCredentials("sign-in", reply)
	if err != nil {
		return nil, err
	}
	if creds == nil {
		logger.Debug("sign-in rejected")
		return nil, nil
	}
	logger.Verbose("signed in as %s", creds.Nickname)
	return creds, nil
}

// SignUp registers nickname.  With sendBlank a blank line is written
// first to ask for the registration prompt.  The prompt line itself is
// read and discarded.
func SignUp(c *Conn, nickname string, sendBlank bool, timeout time.Duration, logger *util.Logger) (*Credentials, error) {
	if sendBlank {
		if err := c.WriteLine(""); err != nil {
			return nil, err
		}
	}

	prompt, err := c.ReadLine(timeout)
	if err != nil {
		return nil, fmt.Errorf("sign-up prompt: %w", err)
	}
	logger.Debug("server: %s", prompt)

	if err := c.WriteLine(nickname); err != nil {
		return nil, err
	}
	reply, err := c.ReadLine(timeout)
	if err != nil {
		return nil, fmt.Errorf("sign-up reply: %w", err)
	}

	creds, err := DecodeCredentials("sign-up", reply)
	if err != nil {
		return nil, err
	}
	if creds == nil {
		return nil, chaterr.Protocol("sign-up", reply, chaterr.New("server refused registration"))
	}
	logger.Info("registered as %s", creds.Nickname)
	return creds, nil
}
