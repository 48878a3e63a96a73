package gateway

import (
	"context"
	"log"
	"time"

	"integrate-dash/internal/holdings"
	"integrate-dash/internal/markethours"
	"integrate-dash/internal/metrics"
)

// Refresher periodically rebuilds the valuation table and pushes the
// resulting snapshot to the hub and (optionally) Redis. The rebuild cadence
// follows the exchange session: faster while the market is open.
type Refresher struct {
	Valuer    *holdings.Valuer
	Hub       *Hub
	Publisher *Publisher // nil disables Redis mirroring
	Metrics   *metrics.Metrics
	Health    *metrics.HealthStatus

	ActID        string
	TotalCapital float64

	OpenInterval   time.Duration
	ClosedInterval time.Duration
}

func (r *Refresher) openInterval() time.Duration {
	if r.OpenInterval > 0 {
		return r.OpenInterval
	}
	return 30 * time.Second
}

func (r *Refresher) closedInterval() time.Duration {
	if r.ClosedInterval > 0 {
		return r.ClosedInterval
	}
	return 5 * time.Minute
}

// Run builds once immediately, then loops until ctx is cancelled.
func (r *Refresher) Run(ctx context.Context) {
	r.buildOnce(ctx)
	for {
		interval := r.closedInterval()
		if markethours.IsMarketOpen(time.Now()) {
			interval = r.openInterval()
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
			r.buildOnce(ctx)
		}
	}
}

func (r *Refresher) buildOnce(ctx context.Context) {
	start := time.Now()
	rows, totals, err := r.Valuer.BuildTable(ctx)
	elapsed := time.Since(start)

	if r.Metrics != nil {
		r.Metrics.BuildsTotal.Inc()
		r.Metrics.BuildDuration.Observe(elapsed.Seconds())
		if markethours.IsMarketOpen(time.Now()) {
			r.Metrics.MarketState.Set(1)
		} else {
			r.Metrics.MarketState.Set(0)
		}
	}
	if err != nil {
		if r.Metrics != nil {
			r.Metrics.BuildErrorsTotal.Inc()
		}
		log.Printf("[refresher] build failed after %s: %v", elapsed.Round(time.Millisecond), err)
		return
	}

	if r.Metrics != nil {
		r.Metrics.RowsTotal.Add(float64(len(rows)))
		for _, row := range rows {
			if row.LTP == nil {
				r.Metrics.QuoteMisses.Inc()
			}
			if row.PrevClose == nil {
				r.Metrics.PrevCloseMisses.Inc()
			}
		}
	}
	if r.Health != nil {
		r.Health.SetLastBuild(time.Now(), len(rows))
	}

	snap := BuildSnapshot(rows, totals, r.ActID, r.TotalCapital, time.Now())
	payload := snap.JSON()
	r.Hub.Broadcast(payload)

	if r.Publisher != nil {
		pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		pubErr := r.Publisher.Publish(pubCtx, r.ActID, payload)
		cancel()
		if r.Metrics != nil {
			if pubErr != nil {
				r.Metrics.PublishErrors.Inc()
			} else {
				r.Metrics.SnapshotPublishes.Inc()
			}
		}
		if pubErr != nil {
			log.Printf("[refresher] redis publish failed: %v", pubErr)
		}
	}

	log.Printf("[refresher] built %d rows in %s (pnl today %.2f)",
		len(rows), elapsed.Round(time.Millisecond), totals.TodayPnL)
}
