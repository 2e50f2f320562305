package consumer

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

const drainInterval = 15 * time.Second

// Run starts a background loop that drains the outbox on a fixed interval.
// RejectReceipt also drains synchronously after commit; the loop picks up
// anything that slipped through.
func Run(lc fx.Lifecycle, c *Consumer, log *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				ticker := time.NewTicker(drainInterval)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						if err := c.ProcessPending(ctx); err != nil {
							log.Error("drain compliance outbox", zap.Error(err))
						}
					}
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}
