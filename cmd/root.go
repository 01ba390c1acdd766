// Package cmd wires up the CLI flags and dispatches to the chat core.
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"minechat/config"
	"minechat/internal/core"
	"minechat/internal/metrics"
	"minechat/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X minechat/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// Execute parses args and runs the selected minechat mode.
func Execute(ctx context.Context, args []string) error {
	cfg := config.Default()
	config.LoadFromEnv(cfg)

	fs := flag.NewFlagSet("minechat", flag.ContinueOnError)

	// ── server ───────────────────────────────────────────────────
	fs.StringVarP(&cfg.Host, "host", "s", cfg.Host, "Chat server host")
	fs.IntVar(&cfg.ReadingPort, "reading-port", cfg.ReadingPort, "Port to read messages from")
	fs.IntVar(&cfg.WritingPort, "writing-port", cfg.WritingPort, "Port to send messages to")

	// ── identity ─────────────────────────────────────────────────
	fs.StringVarP(&cfg.Token, "token", "t", cfg.Token, "Account token (account_hash)")
	fs.StringVarP(&cfg.Nickname, "nickname", "n", cfg.Nickname, "Nickname to register or to look up a saved token")
	fs.StringVar(&cfg.TokenDir, "token-dir", cfg.TokenDir, "Directory holding <nickname>.token files")
	fs.BoolVar(&cfg.SignUpFallback, "signup-fallback", cfg.SignUpFallback, "Register --nickname when the token is rejected")

	// ── storage ──────────────────────────────────────────────────
	fs.StringVarP(&cfg.HistoryFile, "history-file", "f", cfg.HistoryFile, "Chat history file")
	fs.BoolVar(&cfg.HistoryTimestamps, "history-timestamps", cfg.HistoryTimestamps, "Prefix history lines with [dd.mm.yy HH:MM]")

	// ── timing ───────────────────────────────────────────────────
	fs.Var(durationFlag{&cfg.SmallTimeout}, "small-timeout", "Read and ping echo timeout")
	fs.Var(durationFlag{&cfg.BigTimeout}, "big-timeout", "Wait before reconnecting after a delayed-class failure")
	fs.Var(durationFlag{&cfg.PingInterval}, "ping-interval", "Pause between answered pings")
	fs.Var(durationFlag{&cfg.WatchdogWindow}, "watchdog-window", "Longest tolerated silence")
	fs.Var(durationFlag{&cfg.HandshakeTimeout}, "handshake-timeout", "Handshake read timeout")
	fs.Var(durationFlag{&cfg.DialTimeout}, "dial-timeout", "Connect timeout")

	// ── mode ─────────────────────────────────────────────────────
	fs.BoolVar(&cfg.Register, "register", false, "Register --nickname, save the token and exit")
	fs.StringVar(&cfg.Send, "send", "", "Send one message and exit")

	// ── SSH tunnel ───────────────────────────────────────────────
	fs.StringVarP(&cfg.TunnelSpec, "tunnel", "T", cfg.TunnelSpec, "SSH tunnel via [user@]host[:port]")
	fs.StringVar(&cfg.SSHKeyPath, "ssh-key", cfg.SSHKeyPath, "SSH private key file")
	fs.BoolVar(&cfg.SSHPassword, "ssh-password", false, "Prompt for SSH password")
	fs.BoolVar(&cfg.UseSSHAgent, "ssh-agent", cfg.UseSSHAgent, "Use SSH agent")
	fs.BoolVar(&cfg.StrictHostKey, "strict-hostkey", cfg.StrictHostKey, "Verify SSH host keys")
	fs.StringVar(&cfg.KnownHostsPath, "known-hosts", cfg.KnownHostsPath, "Custom known_hosts path")

	// ── output ───────────────────────────────────────────────────
	var verbose int
	var quiet bool
	fs.CountVarP(&verbose, "verbose", "v", "Increase verbosity (repeatable)")
	fs.BoolVarP(&quiet, "quiet", "q", false, "Only print errors")

	var showVersion, showHelp, dryRun bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")
	fs.BoolVar(&dryRun, "dry-run", false, "Validate the configuration and exit")

	fs.Usage = func() { printUsage(fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showHelp {
		printUsage(fs)
		return nil
	}
	if showVersion {
		fmt.Printf("minechat %s\n", version)
		return nil
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected argument %q (use --help for usage)", fs.Arg(0))
	}

	if fs.Changed("verbose") {
		cfg.Verbose = 1 + verbose
	}
	if quiet {
		cfg.Verbose = 0
	}

	// ── tunnel spec ──────────────────────────────────────────────
	if err := cfg.ApplyTunnelSpec(); err != nil {
		return err
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := util.NewLogger(cfg.Verbose)
	logger.Debug("server %s, reading port %d, writing port %d",
		cfg.Host, cfg.ReadingPort, cfg.WritingPort)

	if dryRun {
		logger.Verbose("configuration is valid")
		return nil
	}

	// ── build & run ──────────────────────────────────────────────
	m := metrics.New()
	mode, err := core.Build(cfg, logger, m)
	if err != nil {
		return err
	}

	err = mode.Run(ctx)
	logger.Debug("metrics:\n%s", m.JSON())
	return err
}

// ── helpers ──────────────────────────────────────────────────────────

// durationFlag accepts Go durations ("1.5s") or bare seconds ("3").
type durationFlag struct{ d *time.Duration }

func (f durationFlag) String() string {
	if f.d == nil {
		return ""
	}
	return f.d.String()
}

func (f durationFlag) Set(s string) error {
	d, err := config.ParseDuration(s)
	if err != nil {
		return err
	}
	*f.d = d
	return nil
}

func (f durationFlag) Type() string { return "duration" }

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `minechat – resilient client for the minechat server v%s

Keeps a reading and a writing connection alive, reconnecting on its
own, and appends everything it reads to a history file.

Usage:
  minechat [options]                          Chat (stdin → server → stdout)
  minechat --register -n <nickname>           Create an account
  minechat --send <text> [options]            Send one message

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Environment:
  MINECHAT_HOST, MINECHAT_READING_PORT, MINECHAT_WRITING_PORT,
  MINECHAT_TOKEN, MINECHAT_NICKNAME, MINECHAT_HISTORY_FILE, ...

Examples:
  minechat -t 3f9c...                         Chat with a token
  minechat -n bob --signup-fallback           Chat as bob, registering if needed
  minechat --register -n bob                  Save bob.token
  minechat -n bob --send "hello all"          One-shot message
  minechat -T admin@bastion -t 3f9c...        Chat through an SSH gateway
`)
}
