// Package master downloads and stores the broker's instrument master files.
// The store backs symbol/token lookups for the dashboard's out-of-core
// collaborators (order forms, chart pickers).
package master

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const upsertBatchSize = 500

// Instrument is one row of a master file.
type Instrument struct {
	Segment       string `json:"segment"`
	Token         string `json:"token"`
	Symbol        string `json:"symbol"`
	TradingSymbol string `json:"tradingsymbol"`
	InstrumentType string `json:"instrument_type,omitempty"`
	TickSize      string `json:"ticksize,omitempty"`
	LotSize       string `json:"lotsize,omitempty"`
}

// Store is a single-writer SQLite store for instrument rows.
type Store struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Open creates the store, enabling WAL mode and initializing the schema.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	log.Printf("[master] opened database at %s", dbPath)
	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS instruments (
			segment        TEXT NOT NULL,
			token          TEXT NOT NULL,
			symbol         TEXT NOT NULL,
			tradingsymbol  TEXT NOT NULL,
			instrument_type TEXT,
			ticksize       TEXT,
			lotsize        TEXT,
			updated_at     INTEGER NOT NULL,
			PRIMARY KEY (segment, token)
		);

		CREATE INDEX IF NOT EXISTS idx_instruments_tradingsymbol
			ON instruments (tradingsymbol);
	`)
	return err
}

// Upsert writes instruments in batched transactions.
func (s *Store) Upsert(ctx context.Context, instruments []Instrument) error {
	now := time.Now().Unix()
	for start := 0; start < len(instruments); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(instruments) {
			end = len(instruments)
		}
		if err := s.upsertBatch(ctx, instruments[start:end], now); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) upsertBatch(ctx context.Context, batch []Instrument, now int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO instruments (segment, token, symbol, tradingsymbol, instrument_type, ticksize, lotsize, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (segment, token) DO UPDATE SET
			symbol = excluded.symbol,
			tradingsymbol = excluded.tradingsymbol,
			instrument_type = excluded.instrument_type,
			ticksize = excluded.ticksize,
			lotsize = excluded.lotsize,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, ins := range batch {
		if _, err := stmt.ExecContext(ctx, ins.Segment, ins.Token, ins.Symbol,
			ins.TradingSymbol, ins.InstrumentType, ins.TickSize, ins.LotSize, now); err != nil {
			tx.Rollback()
			return fmt.Errorf("upsert %s:%s: %w", ins.Segment, ins.Token, err)
		}
	}
	return tx.Commit()
}

// LookupByToken returns one instrument by segment and token.
func (s *Store) LookupByToken(ctx context.Context, segment, token string) (*Instrument, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT segment, token, symbol, tradingsymbol, instrument_type, ticksize, lotsize
		FROM instruments WHERE segment = ? AND token = ?`, segment, token)
	return scanInstrument(row)
}

// SearchBySymbol returns instruments whose trading symbol starts with the
// given prefix, capped at limit rows.
func (s *Store) SearchBySymbol(ctx context.Context, prefix string, limit int) ([]Instrument, error) {
	if limit <= 0 {
		limit = 25
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT segment, token, symbol, tradingsymbol, instrument_type, ticksize, lotsize
		FROM instruments WHERE tradingsymbol LIKE ? ORDER BY tradingsymbol LIMIT ?`,
		prefix+"%", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Instrument
	for rows.Next() {
		var ins Instrument
		if err := rows.Scan(&ins.Segment, &ins.Token, &ins.Symbol, &ins.TradingSymbol,
			&ins.InstrumentType, &ins.TickSize, &ins.LotSize); err != nil {
			return nil, err
		}
		out = append(out, ins)
	}
	return out, rows.Err()
}

// Count returns the number of stored instruments.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM instruments`).Scan(&n)
	return n, err
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInstrument(row rowScanner) (*Instrument, error) {
	var ins Instrument
	err := row.Scan(&ins.Segment, &ins.Token, &ins.Symbol, &ins.TradingSymbol,
		&ins.InstrumentType, &ins.TickSize, &ins.LotSize)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ins, nil
}
