package trendengine

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"soltrend/internal/indicator"
	"soltrend/internal/marketdata"
	"soltrend/internal/metrics"
	"soltrend/internal/model"
	"soltrend/internal/notification"
	redisstore "soltrend/internal/store/redis"
	"soltrend/internal/trend"
)

// linearSeries builds n hourly candles moving one unit per bar.
func linearSeries(n int, rising bool) model.Series {
	s := model.Series{Symbol: "SOLUSDT", Interval: "1h", Candles: make([]model.Candle, n)}
	for i := range s.Candles {
		wick := 1.0 + 0.001*float64(i)
		c := model.Candle{TS: int64(i) * 3_600_000, Volume: 1000}
		if rising {
			c.Close = 1000 + float64(i)
			c.Open, c.High, c.Low = c.Close-1, c.Close+0.5, c.Close-wick
		} else {
			c.Close = 1000 - float64(i)
			c.Open, c.High, c.Low = c.Close+1, c.Close+wick, c.Close-0.5
		}
		s.Candles[i] = c
	}
	return s
}

// switchSource serves a rising or falling series, or an error.
type switchSource struct {
	mu     sync.Mutex
	rising bool
	n      int
	err    error
	calls  int
}

func (s *switchSource) Candles(ctx context.Context, symbol, interval string, limit int) (model.Series, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return model.Series{}, s.err
	}
	return linearSeries(s.n, s.rising), nil
}

func (s *switchSource) set(rising bool, err error) {
	s.mu.Lock()
	s.rising, s.err = rising, err
	s.mu.Unlock()
}

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []notification.Alert
	err    error
}

func (r *recordingNotifier) Send(ctx context.Context, a notification.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return r.err
}

func (r *recordingNotifier) sent() []notification.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notification.Alert(nil), r.alerts...)
}

type fixture struct {
	svc      *Service
	src      *switchSource
	store    *redisstore.MemoryStore
	notifier *recordingNotifier
	m        *metrics.Metrics
	payloads [][]byte
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		src:      &switchSource{rising: true, n: 300},
		store:    redisstore.NewMemoryStore(),
		notifier: &recordingNotifier{},
		m:        metrics.NewMetrics(prometheus.NewRegistry()),
	}
	svc, err := New(Config{Symbol: "SOLUSDT", Interval: "1h", Limit: 300}, Deps{
		Source:   f.src,
		Verdicts: f.store,
		Notifier: f.notifier,
		Publisher: PublisherFunc(func(ctx context.Context, symbol string, payload []byte) error {
			f.payloads = append(f.payloads, payload)
			return nil
		}),
		Metrics: f.m,
		Health:  metrics.NewHealthStatus(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.svc = svc
	return f
}

func (f *fixture) refresh(t *testing.T) *Snapshot {
	t.Helper()
	snap, err := f.svc.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	f.svc.Wait()
	return snap
}

func TestNew_Validation(t *testing.T) {
	src := marketdata.SourceFunc(func(context.Context, string, string, int) (model.Series, error) {
		return model.Series{}, nil
	})
	store := redisstore.NewMemoryStore()

	tests := []struct {
		name string
		cfg  Config
		deps Deps
	}{
		{"no source", Config{Symbol: "SOLUSDT", Interval: "1h"}, Deps{Verdicts: store}},
		{"no store", Config{Symbol: "SOLUSDT", Interval: "1h"}, Deps{Source: src}},
		{"no symbol", Config{Interval: "1h"}, Deps{Source: src, Verdicts: store}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg, tt.deps); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	svc, err := New(Config{Symbol: "SOLUSDT", Interval: "1h", Limit: 10}, Deps{Source: src, Verdicts: store})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if svc.cfg.Limit != indicator.MinCandles || svc.cfg.SignalCount != 3 || svc.cfg.RefreshInterval != 5*time.Minute {
		t.Errorf("defaults not applied: %+v", svc.cfg)
	}
	if svc.Latest() != nil {
		t.Error("latest should be nil before first refresh")
	}
}

func TestRefresh_FirstObservationDoesNotNotify(t *testing.T) {
	f := newFixture(t)
	snap := f.refresh(t)

	if snap.Summary.Overall.Trend != trend.Bullish {
		t.Fatalf("trend = %s, want BULLISH", snap.Summary.Overall.Trend)
	}
	if snap.Close != 1299 {
		t.Errorf("close = %v, want 1299", snap.Close)
	}
	if snap.Text != snap.Summary.Text() {
		t.Error("text does not match summary")
	}
	if f.svc.Latest() != snap {
		t.Error("latest not stored")
	}
	if v, ok, _ := f.store.Previous(context.Background(), "SOLUSDT"); !ok || v != "BULLISH" {
		t.Errorf("stored verdict = %q, %v", v, ok)
	}
	if n := len(f.notifier.sent()); n != 0 {
		t.Errorf("expected no notification, got %d", n)
	}
	if got := testutil.ToFloat64(f.m.Verdict); got != 1 {
		t.Errorf("verdict gauge = %v", got)
	}
	if got := testutil.ToFloat64(f.m.RefreshTotal.WithLabelValues("ok")); got != 1 {
		t.Errorf("refresh ok = %v", got)
	}
}

func TestRefresh_NotifiesOnChange(t *testing.T) {
	f := newFixture(t)
	f.refresh(t)

	f.src.set(false, nil)
	f.refresh(t)

	alerts := f.notifier.sent()
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	a := alerts[0]
	if a.Previous != "BULLISH" || a.Current != "BEARISH" {
		t.Errorf("alert transition %s -> %s", a.Previous, a.Current)
	}
	if len(a.Bearish) != 3 || len(a.Bullish) != 0 {
		t.Errorf("signals bullish=%v bearish=%v", a.Bullish, a.Bearish)
	}
	if got := testutil.ToFloat64(f.m.VerdictChanges); got != 1 {
		t.Errorf("verdict changes = %v", got)
	}
	if got := testutil.ToFloat64(f.m.NotificationsTotal.WithLabelValues("sent")); got != 1 {
		t.Errorf("notifications sent = %v", got)
	}

	// unchanged verdict stays quiet
	f.refresh(t)
	if n := len(f.notifier.sent()); n != 1 {
		t.Errorf("expected still 1 alert, got %d", n)
	}
}

// flakyStore fails the next failReads calls to Previous.
type flakyStore struct {
	*redisstore.MemoryStore
	failReads int
	saves     int
}

func (s *flakyStore) Previous(ctx context.Context, symbol string) (string, bool, error) {
	if s.failReads > 0 {
		s.failReads--
		return "", false, errors.New("redis: circuit breaker is open")
	}
	return s.MemoryStore.Previous(ctx, symbol)
}

func (s *flakyStore) Save(ctx context.Context, symbol, verdict string) error {
	s.saves++
	return s.MemoryStore.Save(ctx, symbol, verdict)
}

func TestRefresh_UnreadableVerdictKeepsStoredState(t *testing.T) {
	f := newFixture(t)
	store := &flakyStore{MemoryStore: f.store}
	f.svc.deps.Verdicts = store

	f.src.set(false, nil)
	f.refresh(t)
	if v, _, _ := f.store.Previous(context.Background(), "SOLUSDT"); v != "BEARISH" {
		t.Fatalf("stored verdict = %q, want BEARISH", v)
	}

	// the flip happens while the store cannot be read
	store.failReads = 1
	f.src.set(true, nil)
	f.refresh(t)
	if v, _, _ := f.store.Previous(context.Background(), "SOLUSDT"); v != "BEARISH" {
		t.Errorf("stored verdict overwritten with %q during read failure", v)
	}
	if store.saves != 1 {
		t.Errorf("saves = %d, want 1", store.saves)
	}
	if n := len(f.notifier.sent()); n != 0 {
		t.Fatalf("expected no alert during read failure, got %d", n)
	}

	// once reads recover the change is reported
	f.refresh(t)
	alerts := f.notifier.sent()
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert after recovery, got %d", len(alerts))
	}
	if alerts[0].Previous != "BEARISH" || alerts[0].Current != "BULLISH" {
		t.Errorf("alert transition %s -> %s", alerts[0].Previous, alerts[0].Current)
	}
	if v, _, _ := f.store.Previous(context.Background(), "SOLUSDT"); v != "BULLISH" {
		t.Errorf("stored verdict = %q, want BULLISH", v)
	}
}

func TestRefresh_NotificationFailureCounted(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("telegram down")
	f.refresh(t)
	f.src.set(false, nil)
	f.refresh(t)

	if got := testutil.ToFloat64(f.m.NotificationsTotal.WithLabelValues("failed")); got != 1 {
		t.Errorf("notifications failed = %v", got)
	}
}

func TestRefresh_FetchErrorKeepsLastSnapshot(t *testing.T) {
	f := newFixture(t)
	good := f.refresh(t)

	f.src.set(true, errors.New("binance unavailable"))
	if _, err := f.svc.Refresh(context.Background()); err == nil {
		t.Fatal("expected fetch error")
	}
	if f.svc.Latest() != good {
		t.Error("last good snapshot should still be served")
	}
	if got := testutil.ToFloat64(f.m.RefreshTotal.WithLabelValues("fetch_error")); got != 1 {
		t.Errorf("fetch errors = %v", got)
	}
}

func TestRefresh_InsufficientHistory(t *testing.T) {
	f := newFixture(t)
	f.src.n = 150

	_, err := f.svc.Refresh(context.Background())
	if !errors.Is(err, indicator.ErrInsufficientHistory) {
		t.Fatalf("err = %v, want ErrInsufficientHistory", err)
	}
	if f.svc.Latest() != nil {
		t.Error("no snapshot expected")
	}
	if got := testutil.ToFloat64(f.m.RefreshTotal.WithLabelValues("compute_error")); got != 1 {
		t.Errorf("compute errors = %v", got)
	}
}

func TestRefresh_PublishesSnapshot(t *testing.T) {
	f := newFixture(t)
	f.refresh(t)

	if len(f.payloads) != 1 {
		t.Fatalf("expected 1 payload, got %d", len(f.payloads))
	}
	var got struct {
		Symbol  string        `json:"symbol"`
		Summary trend.Summary `json:"summary"`
		Text    string        `json:"text"`
	}
	if err := json.Unmarshal(f.payloads[0], &got); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if got.Symbol != "SOLUSDT" || got.Summary.Overall.Trend != trend.Bullish || got.Text == "" {
		t.Errorf("unexpected payload %+v", got)
	}
}

func TestRefresh_PublishFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.svc.deps.Publisher = PublisherFunc(func(context.Context, string, []byte) error {
		return errors.New("redis: circuit breaker is open")
	})

	snap, err := f.svc.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if f.svc.Latest() != snap {
		t.Error("snapshot should be stored even when publishing fails")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	f := newFixture(t)
	f.svc.cfg.RefreshInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.svc.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		f.src.mu.Lock()
		calls := f.src.calls
		f.src.mu.Unlock()
		if calls >= 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("refresh loop did not tick")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	select {
	case <-f.svc.Done():
	default:
		t.Error("Done not closed after Run returned")
	}
	if f.svc.Latest() == nil {
		t.Error("expected a snapshot")
	}
}
