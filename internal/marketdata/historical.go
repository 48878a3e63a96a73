package marketdata

import (
	"context"
	"encoding/csv"
	"log/slog"
	"sort"
	"strings"
	"time"
)

const (
	// compactTime is the broker's ddmmyyyyHHMM convention for the history
	// endpoint's from/to path segments.
	compactTime = "020120061504"

	// DefaultLookbackDays is wide enough to straddle any exchange holiday
	// cluster and still contain at least one prior trading day.
	DefaultLookbackDays = 20
)

// closeKeys is the ordered fallback chain for the close-price column.
var closeKeys = []string{"close", "Close", "c"}

// canonicalColumns names the positional schema of a headerless history row:
// 6 fields, or 7 with open interest appended.
var canonicalColumns = []string{"datetime", "open", "high", "low", "close", "volume", "oi"}

// dtLayouts are the observed date-time renderings of the history feed.
var dtLayouts = []string{
	"02-01-2006 15:04:05",
	"02-01-2006 15:04",
	"02-01-2006",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"020120061504",
}

// HistoryAPI is the slice of the transport client the historical service needs.
type HistoryAPI interface {
	HistoricalCSV(ctx context.Context, segment, token, timeframe, from, to string) (string, error)
}

// HistoricalService resolves previous-trading-day closes from the daily
// OHLCV feed.
type HistoricalService struct {
	api          HistoryAPI
	lookbackDays int
	log          *slog.Logger
}

// NewHistoricalService creates a HistoricalService. lookbackDays <= 0 uses
// DefaultLookbackDays.
func NewHistoricalService(api HistoryAPI, lookbackDays int, log *slog.Logger) *HistoricalService {
	if lookbackDays <= 0 {
		lookbackDays = DefaultLookbackDays
	}
	if log == nil {
		log = slog.Default()
	}
	return &HistoricalService{api: api, lookbackDays: lookbackDays, log: log}
}

// PreviousClose returns the close of the most recent bar strictly before the
// start of refDate's day, or nil when the feed is empty, the fetch fails, or
// no bar qualifies. Because the feed only contains trading days, taking the
// last qualifying bar skips weekends and holidays correctly.
func (s *HistoricalService) PreviousClose(ctx context.Context, segment, token, timeframe string, refDate time.Time) *float64 {
	from := refDate.AddDate(0, 0, -s.lookbackDays).Format(compactTime)
	to := refDate.Format(compactTime)

	text, err := s.api.HistoricalCSV(ctx, segment, token, timeframe, from, to)
	if err != nil {
		s.log.Error("historical fetch failed",
			slog.String("segment", segment),
			slog.String("token", token),
			slog.String("err", err.Error()))
		return nil
	}

	rows := parseSeries(text)
	if len(rows) == 0 {
		return nil
	}

	cutoff := time.Date(refDate.Year(), refDate.Month(), refDate.Day(), 0, 0, 0, 0, refDate.Location())
	var last *seriesRow
	for i := range rows {
		if rows[i].ts.Before(cutoff) {
			last = &rows[i]
		}
	}
	if last == nil {
		return nil
	}
	return last.closePrice()
}

// seriesRow is one parsed bar: its timestamp, the raw fields, and the
// column-name -> value mapping used for the named close probe.
type seriesRow struct {
	ts     time.Time
	fields []string
	named  map[string]string
}

// closePrice extracts the close by probing named columns first, then
// scanning the raw fields in reverse for the first numeric value. The
// two-stage extraction covers feeds delivered without a header row.
func (r *seriesRow) closePrice() *float64 {
	for _, k := range closeKeys {
		if v, ok := r.named[k]; ok {
			if f, ok := AsFloat(v); ok {
				return &f
			}
		}
	}
	for i := len(r.fields) - 1; i >= 0; i-- {
		if f, ok := AsFloat(r.fields[i]); ok {
			return &f
		}
	}
	return nil
}

// parseSeries turns the delimited feed into timestamp-sorted rows. Rows whose
// date-time column fails to parse are dropped. The date-time column is
// detected by header name (case-insensitive substring "date" or "time"); a
// headerless feed uses the first column and the canonical positional schema.
func parseSeries(text string) []seriesRow {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil || len(records) == 0 {
		return nil
	}

	header, dtCol := detectHeader(records[0])
	data := records
	if header != nil {
		data = records[1:]
	}

	rows := make([]seriesRow, 0, len(data))
	for _, rec := range data {
		if len(rec) == 0 || dtCol >= len(rec) {
			continue
		}
		ts, ok := parseDateTime(rec[dtCol])
		if !ok {
			continue
		}
		rows = append(rows, seriesRow{ts: ts, fields: rec, named: nameFields(header, rec)})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].ts.Before(rows[j].ts) })
	return rows
}

// detectHeader decides whether the first record is a header and which column
// holds the date-time. A record is a header when any cell name contains
// "date" or "time"; that cell becomes the date-time column. Otherwise the
// feed is treated as headerless with the date-time in column 0.
func detectHeader(first []string) (header []string, dtCol int) {
	for i, cell := range first {
		lower := strings.ToLower(cell)
		if strings.Contains(lower, "date") || strings.Contains(lower, "time") {
			return first, i
		}
	}
	return nil, 0
}

// nameFields maps column names to values for one record. Headerless records
// get the canonical positional names so the named close probe still works.
func nameFields(header, rec []string) map[string]string {
	named := make(map[string]string, len(rec))
	if header != nil {
		for i, name := range header {
			if i < len(rec) {
				named[name] = rec[i]
			}
		}
		return named
	}
	for i, name := range canonicalColumns {
		if i < len(rec) {
			named[name] = rec[i]
		}
	}
	return named
}

func parseDateTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dtLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
