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

// Reader owns the reading socket.  Every received line goes to both
// the Messages and History streams, and every read outcome is reported
// to the watchdog.
type Reader struct {
	Dialer   transport.Dialer
	Host     string
	Port     int
	Timeout  time.Duration // per-line idle timeout
	Streams  *Streams
	Liveness *Queue[LivenessEvent]
	Logger   *util.Logger
	Metrics  *metrics.Collector
}

// Run reads until the socket fails or ctx is done.  It only returns
// with an error.
func (r *Reader) Run(ctx context.Context) error {
	r.Streams.status(ReadingInitiated)

	conn, err := Open(ctx, r.Dialer, r.Host, r.Port, r.Metrics)
	if err != nil {
		return fmt.Errorf("reader: %w", err)
	}
	defer conn.Close()
	r.Logger.Verbose("connected to %s", conn.Addr())

	established := false
	for {
		line, err := conn.ReadLine(r.Timeout)
		switch {
		case chaterr.Is(err, chaterr.ErrStaleRead):
			r.Logger.Debug("no data for %s", r.Timeout)
			r.Liveness.Put(TimedOut(SourceReader, time.Now()))
			r.Metrics.LivenessTimeout()
			continue
		case chaterr.Is(err, chaterr.ErrEndOfStream):
			return fmt.Errorf("reader: %w", chaterr.ErrConnectionLost)
		case err != nil:
			return fmt.Errorf("reader: %w", err)
		}

		r.Streams.Messages.Put(line)
		r.Streams.History.Put(line)
		r.Liveness.Put(Alive(SourceReader, time.Now()))
		r.Metrics.MessageReceived()

		if !established {
			established = true
			r.Streams.status(ReadingEstablished)
		}
	}
}
