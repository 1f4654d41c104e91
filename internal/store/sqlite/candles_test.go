package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"soltrend/internal/model"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "candles.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func series(from, n int) model.Series {
	s := model.Series{Symbol: "SOLUSDT", Interval: "1h"}
	for i := from; i < from+n; i++ {
		p := 100 + float64(i)
		s.Candles = append(s.Candles, model.Candle{
			TS: int64(i) * 3_600_000, Open: p, High: p + 1, Low: p - 1, Close: p, Volume: 10,
		})
	}
	return s
}

func TestStore_UpsertAndRead(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	if err := s.Upsert(ctx, series(0, 10)); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	// Overlapping write updates the last bar and appends new ones.
	next := series(9, 3)
	next.Candles[0].Close = 555
	next.Candles[0].High = 556
	if err := s.Upsert(ctx, next); err != nil {
		t.Fatalf("Upsert overlap: %v", err)
	}

	got, err := s.Candles(ctx, "SOLUSDT", "1h", 5)
	if err != nil {
		t.Fatalf("Candles: %v", err)
	}
	if got.Len() != 5 {
		t.Fatalf("len = %d, want 5", got.Len())
	}
	if got.Candles[0].TS != 7*3_600_000 || got.Candles[4].TS != 11*3_600_000 {
		t.Errorf("window = %d..%d", got.Candles[0].TS, got.Candles[4].TS)
	}
	if got.Candles[2].Close != 555 {
		t.Errorf("overwritten close = %v, want 555", got.Candles[2].Close)
	}
	if err := got.Validate(); err != nil {
		t.Errorf("read series invalid: %v", err)
	}
}

func TestStore_Prune(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
	s.Upsert(ctx, series(0, 20))

	removed, err := s.Prune(ctx, "SOLUSDT", "1h", 8)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 12 {
		t.Errorf("removed = %d, want 12", removed)
	}
	got, _ := s.Candles(ctx, "SOLUSDT", "1h", 100)
	if got.Len() != 8 || got.Candles[0].TS != 12*3_600_000 {
		t.Errorf("after prune len=%d first=%d", got.Len(), got.Candles[0].TS)
	}
}
