package core

import (
	"context"

	"golang.org/x/sync/errgroup"

	"minechat/internal/chat"
	"minechat/internal/console"
	chaterr "minechat/internal/errors"
	"minechat/internal/history"
	"minechat/util"
)

// ChatMode runs an interactive session: the supervised connection
// group, the history file and the console, until interrupted or the
// token is rejected.
type ChatMode struct {
	Supervisor *chat.Supervisor
	History    *history.Store
	Console    *console.Console
	Logger     *util.Logger
}

// Run restores the history, then runs everything until ctx is done.
// An interrupt is a clean exit.
func (m *ChatMode) Run(ctx context.Context) error {
	defer m.Supervisor.Dialer.Close()

	streams := m.Supervisor.Streams
	if err := m.History.Restore(streams.Messages); err != nil {
		m.Logger.Warn("%v", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return m.Console.Run(gctx) })
	g.Go(func() error { return m.History.Run(gctx, streams.History) })
	g.Go(func() error { return m.Supervisor.Run(gctx) })

	err := g.Wait()
	switch {
	case chaterr.Is(err, chaterr.ErrInvalidToken):
		m.Logger.Error("Unknown token. Check it or register again.")
		return err
	case ctx.Err() != nil:
		m.Logger.Verbose("interrupted")
		return nil
	}
	return err
}
