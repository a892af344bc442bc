package main

import (
	"context"
	"time"
)

// sweeper cancels and purges abandoned orders every CleanupInterval until ctx
// is done. A zero interval disables it.
func (app *application) sweeper(ctx context.Context) {
	interval := app.config.CleanupInterval
	if interval <= 0 {
		return
	}
	log := app.logger.WithComponent("sweeper")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-app.config.AbandonAfter)
			if _, err := app.checkout.SweepAbandoned(ctx, cutoff); err != nil {
				log.Error("failed to sweep abandoned orders", "error", err)
			}
		}
	}
}
