package holdings

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"integrate-dash/internal/model"
)

// HoldingsSource fetches the raw holdings payload (shape varies by API version).
type HoldingsSource interface {
	Holdings(ctx context.Context) (any, error)
}

// QuoteResolver resolves a last traded price, nil when unavailable.
type QuoteResolver interface {
	LTP(ctx context.Context, exchange, token string) *float64
}

// CloseResolver resolves a previous trading-day close, nil when unavailable.
type CloseResolver interface {
	PreviousClose(ctx context.Context, segment, token, timeframe string, refDate time.Time) *float64
}

// Valuer orchestrates normalization and market-data resolution over all
// holdings and computes per-row metrics and portfolio totals.
type Valuer struct {
	Source  HoldingsSource
	Quotes  QuoteResolver
	History CloseResolver

	// Exchange is the preferred exchange tag when a holding lists several
	// (default "NSE"). Timeframe is the historical bar size (default "day").
	Exchange  string
	Timeframe string

	// Workers bounds the per-holding concurrency. <= 1 runs sequentially.
	// Row order always matches the input holdings order, and per-row failure
	// isolation is identical in both modes.
	Workers int

	// Now is the reference clock for previous-close resolution, replaceable
	// in tests.
	Now func() time.Time

	Log *slog.Logger
}

func (v *Valuer) defaults() {
	if v.Exchange == "" {
		v.Exchange = "NSE"
	}
	if v.Timeframe == "" {
		v.Timeframe = "day"
	}
	if v.Now == nil {
		v.Now = time.Now
	}
	if v.Log == nil {
		v.Log = slog.Default()
	}
}

// BuildTable fetches holdings and produces one valuation row per holding plus
// folded totals. A failure resolving one holding's quote or historical data
// never aborts the build: that row's fields degrade to nil/0 and the build
// continues. The only returned errors are a holdings fetch failure or a
// cancelled context.
func (v *Valuer) BuildTable(ctx context.Context) ([]model.ValuationRow, model.PortfolioTotals, error) {
	v.defaults()

	resp, err := v.Source.Holdings(ctx)
	if err != nil {
		return nil, model.PortfolioTotals{}, err
	}
	records := extractRecords(resp)

	rows := make([]model.ValuationRow, len(records))
	refDate := v.Now()

	if v.Workers > 1 {
		if err := v.resolveParallel(ctx, records, rows, refDate); err != nil {
			return nil, model.PortfolioTotals{}, err
		}
	} else {
		for i, raw := range records {
			// Cooperative cancellation between holdings.
			if err := ctx.Err(); err != nil {
				return nil, model.PortfolioTotals{}, err
			}
			rows[i] = v.resolveRow(ctx, raw, refDate)
		}
	}

	var totals model.PortfolioTotals
	for _, r := range rows {
		totals.Add(r)
	}
	return rows, totals, nil
}

// resolveParallel runs resolveRow over a bounded worker pool. rows[i] keeps
// the input order regardless of completion order, and the totals fold stays
// outside the pool (it is commutative, but single-threaded is simpler).
func (v *Valuer) resolveParallel(ctx context.Context, records []map[string]any, rows []model.ValuationRow, refDate time.Time) error {
	sem := make(chan struct{}, v.Workers)
	var wg sync.WaitGroup
	for i := range records {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return err
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			rows[i] = v.resolveRow(ctx, records[i], refDate)
		}(i)
	}
	wg.Wait()
	return ctx.Err()
}

// resolveRow normalizes one holding and enriches it with market data. One
// quote call and one historical call, both degrading to nil on failure.
func (v *Valuer) resolveRow(ctx context.Context, raw map[string]any, refDate time.Time) model.ValuationRow {
	pos := normalizePosition(raw, v.Exchange)
	row := model.ValuationRow{Position: pos}

	if pos.Token != "" {
		row.LTP = v.Quotes.LTP(ctx, pos.Exchange, pos.Token)
		row.PrevClose = v.History.PreviousClose(ctx, pos.Exchange, pos.Token, v.Timeframe, refDate)
	}
	row.Derive()

	if row.LTP == nil && pos.Token != "" {
		v.Log.Warn("ltp unresolved", slog.String("symbol", pos.Symbol), slog.String("token", pos.Token))
	}
	return row
}
