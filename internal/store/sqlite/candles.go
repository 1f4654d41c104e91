package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"soltrend/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Store caches fetched candles so restarts and upstream outages still have
// a full window to compute from.
type Store struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// New opens the database at path with WAL mode and creates the schema.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Info().Str("component", "sqlite").Str("path", path).Msg("opened database")
	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS candles (
			symbol   TEXT    NOT NULL,
			interval TEXT    NOT NULL,
			ts       INTEGER NOT NULL,
			open     REAL    NOT NULL,
			high     REAL    NOT NULL,
			low      REAL    NOT NULL,
			close    REAL    NOT NULL,
			volume   REAL    NOT NULL,
			PRIMARY KEY (symbol, interval, ts)
		);
	`)
	return err
}

// Upsert writes every candle of s in one transaction. Existing bars are
// overwritten, so the still-forming last bar is refreshed on every call.
func (s *Store) Upsert(ctx context.Context, series model.Series) error {
	if series.Len() == 0 {
		return nil
	}
	start := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO candles (symbol, interval, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (symbol, interval, ts) DO UPDATE SET
			open = excluded.open, high = excluded.high, low = excluded.low,
			close = excluded.close, volume = excluded.volume
	`)
	if err != nil {
		return fmt.Errorf("sqlite prepare: %w", err)
	}
	defer stmt.Close()

	for _, c := range series.Candles {
		if _, err := stmt.ExecContext(ctx, series.Symbol, series.Interval, c.TS, c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			return fmt.Errorf("sqlite insert ts=%d: %w", c.TS, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite commit: %w", err)
	}

	log.Debug().Str("component", "sqlite").Str("key", series.Key()).
		Int("count", series.Len()).Dur("took", time.Since(start)).Msg("committed candles")
	return nil
}

// Candles returns the most recent limit candles for symbol and interval in
// ascending time order.
func (s *Store) Candles(ctx context.Context, symbol, interval string, limit int) (model.Series, error) {
	out := model.Series{Symbol: symbol, Interval: interval}
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, open, high, low, close, volume FROM (
			SELECT ts, open, high, low, close, volume
			FROM candles
			WHERE symbol = ? AND interval = ?
			ORDER BY ts DESC
			LIMIT ?
		) ORDER BY ts ASC
	`, symbol, interval, limit)
	if err != nil {
		return out, fmt.Errorf("sqlite query candles: %w", err)
	}
	defer rows.Close()

	out.Candles = make([]model.Candle, 0, limit)
	for rows.Next() {
		var c model.Candle
		if err := rows.Scan(&c.TS, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return out, fmt.Errorf("sqlite scan candles: %w", err)
		}
		out.Candles = append(out.Candles, c)
	}
	return out, rows.Err()
}

// Prune keeps only the newest keep candles for symbol and interval and
// returns the number of rows removed.
func (s *Store) Prune(ctx context.Context, symbol, interval string, keep int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM candles
		WHERE symbol = ? AND interval = ? AND ts < (
			SELECT COALESCE(MIN(ts), 0) FROM (
				SELECT ts FROM candles
				WHERE symbol = ? AND interval = ?
				ORDER BY ts DESC
				LIMIT ?
			)
		)
	`, symbol, interval, symbol, interval, keep)
	if err != nil {
		return 0, fmt.Errorf("sqlite prune: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
