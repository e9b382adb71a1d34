package engine

import (
	"context"
	"time"
)

// WatchPosition calls fn with the play position every interval while the
// transport runs. Ticks while stopped are skipped. The loop lives until ctx
// is done or the engine is closed; applies do not interrupt it.
func (e *Engine) WatchPosition(ctx context.Context, interval time.Duration, fn func(seconds float64)) {
	e.watches.Add(1)
	go func() {
		defer e.watches.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-e.watchCtx.Done():
				return
			case <-ticker.C:
				if !e.transport.Started() {
					continue
				}
				fn(e.transport.Seconds())
			}
		}
	}()
}
