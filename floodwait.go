package telerelay

import (
	"context"
	"log/slog"

	"github.com/gotd/td/bin"
	"github.com/gotd/td/clock"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
)

// floodWaitMiddleware sleeps through FLOOD_WAIT errors and retries the call,
// counting every wait against the session.
type floodWaitMiddleware struct {
	session string
	logger  *slog.Logger
	metrics *Metrics

	// clock defaults to the system clock.
	clock clock.Clock
}

func (f floodWaitMiddleware) Handle(next tg.Invoker) telegram.InvokeFunc {
	var opts []tgerr.FloodWaitOption
	if f.clock != nil {
		opts = append(opts, tgerr.FloodWaitWithClock(f.clock))
	}

	return func(ctx context.Context, input bin.Encoder, output bin.Decoder) error {
		for {
			err := next.Invoke(ctx, input, output)
			if err == nil {
				return nil
			}

			d, ok := tgerr.AsFloodWait(err)
			if !ok {
				return err
			}
			f.metrics.floodWait(f.session)
			if f.logger != nil {
				f.logger.Warn("flood wait, retrying", "wait", d)
			}

			if waited, waitErr := tgerr.FloodWait(ctx, err, opts...); !waited {
				return waitErr
			}
		}
	}
}
