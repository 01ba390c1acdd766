package chat

import (
	"context"
	"fmt"
	"time"

	chaterr "minechat/internal/errors"
	"minechat/internal/metrics"
	"minechat/util"
)

// Watchdog consumes liveness events for one connection group and fails
// the group once it has been silent for longer than Window.
//
// Silence is measured from the last evidence of life; the start of Run
// counts as life.  A ping timeout is measured against the writing
// socket alone (ping echoes and sent messages), so a busy reading
// socket cannot hide a dead writer.  A reader timeout is an idle poll
// and is tolerated while any task has shown life within Window.  No
// events at all for a whole Window is treated as silence too.
type Watchdog struct {
	Window   time.Duration
	Liveness *Queue[LivenessEvent]
	Logger   *util.Logger
	Metrics  *metrics.Collector
}

// Run returns errors.ErrWatchdogTimeout when the group went silent, or
// the context error once ctx is done.
func (w *Watchdog) Run(ctx context.Context) error {
	lastLife := time.Now()
	lastWrite := lastLife

	for {
		waitCtx, cancel := context.WithTimeout(ctx, w.Window)
		ev, err := w.Liveness.Get(waitCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.Logger.Warn("no liveness report for %s", w.Window)
			return fmt.Errorf("%w: no report for %s", chaterr.ErrWatchdogTimeout, w.Window)
		}

		if ev.Source != SourceTimeout {
			if ev.At.After(lastLife) {
				lastLife = ev.At
			}
			if ev.Source.writing() && ev.At.After(lastWrite) {
				lastWrite = ev.At
			}
			w.Metrics.RecordLiveness()
			w.Logger.Debug("[%d] Connection is alive. Source: %s", ev.At.Unix(), ev.Source)
			continue
		}

		since := lastLife
		if ev.Origin.writing() {
			since = lastWrite
		}
		silent := ev.At.Sub(since)
		if silent < w.Window {
			w.Logger.Debug("%s timed out, last life %s ago", ev.Origin, silent.Round(time.Millisecond))
			continue
		}
		w.Logger.Warn("%s elapsed without sign of life (%s timed out)", silent.Round(time.Millisecond), ev.Origin)
		return fmt.Errorf("%w: silent for %s", chaterr.ErrWatchdogTimeout, silent.Round(time.Millisecond))
	}
}
