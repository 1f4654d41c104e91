// Package trendengine periodically fetches candles, classifies the trend and
// reports verdict changes.
package trendengine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"soltrend/internal/indicator"
	"soltrend/internal/logger"
	"soltrend/internal/marketdata"
	"soltrend/internal/metrics"
	"soltrend/internal/notification"
	"soltrend/internal/trend"
)

// VerdictStore remembers the last verdict per symbol.
type VerdictStore interface {
	Previous(ctx context.Context, symbol string) (verdict string, ok bool, err error)
	Save(ctx context.Context, symbol, verdict string) error
}

// Publisher distributes serialized snapshots.
type Publisher interface {
	PublishSummary(ctx context.Context, symbol string, payload []byte) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, symbol string, payload []byte) error

func (f PublisherFunc) PublishSummary(ctx context.Context, symbol string, payload []byte) error {
	return f(ctx, symbol, payload)
}

// Config controls what is fetched and how often.
type Config struct {
	Symbol          string
	Interval        string
	Limit           int
	RefreshInterval time.Duration
	NotifyTimeout   time.Duration
	SignalCount     int
}

// Deps are the collaborators of a Service. Source and Verdicts are required.
type Deps struct {
	Source    marketdata.Source
	Verdicts  VerdictStore
	Notifier  notification.Notifier
	Publisher Publisher
	Metrics   *metrics.Metrics
	Health    *metrics.HealthStatus
}

// Snapshot is the outcome of one successful refresh.
type Snapshot struct {
	Symbol   string           `json:"symbol"`
	Interval string           `json:"interval"`
	At       time.Time        `json:"at"`
	Close    float64          `json:"close"`
	Summary  *trend.Summary   `json:"summary"`
	Text     string           `json:"text"`
	Frame    *indicator.Frame `json:"-"`
}

// Service runs the refresh loop and serves the latest snapshot.
type Service struct {
	cfg  Config
	deps Deps
	now  func() time.Time

	mu     sync.RWMutex
	latest *Snapshot

	notifyWG sync.WaitGroup
	done     chan struct{}
	doneOnce sync.Once
}

// New validates cfg, fills defaults and returns a Service.
func New(cfg Config, deps Deps) (*Service, error) {
	if deps.Source == nil {
		return nil, errors.New("trendengine: source is required")
	}
	if deps.Verdicts == nil {
		return nil, errors.New("trendengine: verdict store is required")
	}
	if cfg.Symbol == "" || cfg.Interval == "" {
		return nil, errors.New("trendengine: symbol and interval are required")
	}
	if cfg.Limit < indicator.MinCandles {
		cfg.Limit = indicator.MinCandles
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 5 * time.Minute
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 10 * time.Second
	}
	if cfg.SignalCount <= 0 {
		cfg.SignalCount = 3
	}
	if deps.Notifier == nil {
		deps.Notifier = notification.NewLogNotifier()
	}
	return &Service{cfg: cfg, deps: deps, now: time.Now, done: make(chan struct{})}, nil
}

// Latest returns the last good snapshot, or nil before the first success.
func (s *Service) Latest() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Run refreshes immediately and then every RefreshInterval until ctx is
// cancelled. Failed refreshes are logged; the previous snapshot stays served.
// Done is closed when Run returns.
func (s *Service) Run(ctx context.Context) error {
	defer s.doneOnce.Do(func() { close(s.done) })

	lg := logger.Component("trendengine")
	lg.Info().
		Str("symbol", s.cfg.Symbol).
		Str("interval", s.cfg.Interval).
		Dur("every", s.cfg.RefreshInterval).
		Msg("refresh loop started")

	ticker := time.NewTicker(s.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		if _, err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
			lg.Error().Err(err).Msg("refresh failed")
		}
		select {
		case <-ctx.Done():
			s.Wait()
			lg.Info().Msg("refresh loop stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Done is closed once Run has returned.
func (s *Service) Done() <-chan struct{} { return s.done }

// Wait blocks until in-flight notifications are done. Call it after Run has
// returned, or after the last direct Refresh.
func (s *Service) Wait() { s.notifyWG.Wait() }

// Refresh fetches candles, computes indicators, classifies them and stores
// the result as the latest snapshot.
func (s *Service) Refresh(ctx context.Context) (*Snapshot, error) {
	now := s.now().UTC()
	ctx = logger.WithTraceID(ctx, logger.GenerateTraceID(s.cfg.Symbol, now))
	lg := logger.FromContext(ctx).With().Str("component", "trendengine").Logger()

	start := time.Now()
	series, err := s.deps.Source.Candles(ctx, s.cfg.Symbol, s.cfg.Interval, s.cfg.Limit)
	s.observe(func(m *metrics.Metrics) { m.FetchDur.Observe(time.Since(start).Seconds()) })
	if err != nil {
		return nil, s.fail(now, "fetch_error", fmt.Errorf("fetch %s: %w", s.cfg.Symbol, err))
	}

	start = time.Now()
	frame, err := indicator.Compute(series)
	if err != nil {
		return nil, s.fail(now, "compute_error", err)
	}
	summary, err := trend.Classify(frame)
	if err != nil {
		return nil, s.fail(now, "compute_error", err)
	}
	s.observe(func(m *metrics.Metrics) { m.ComputeDur.Observe(time.Since(start).Seconds()) })

	snap := &Snapshot{
		Symbol:   s.cfg.Symbol,
		Interval: s.cfg.Interval,
		At:       now,
		Close:    frame.Latest().Close,
		Summary:  summary,
		Text:     summary.Text(),
		Frame:    frame,
	}

	s.mu.Lock()
	s.latest = snap
	s.mu.Unlock()

	s.record(summary)
	s.checkVerdict(ctx, snap)
	s.publish(ctx, snap)

	s.observe(func(m *metrics.Metrics) { m.RefreshTotal.WithLabelValues("ok").Inc() })
	if s.deps.Health != nil {
		s.deps.Health.RecordRefresh(now, nil)
	}

	lg.Info().
		Str("trend", string(summary.Overall.Trend)).
		Int("bullish", summary.Overall.BullishScore).
		Int("bearish", summary.Overall.BearishScore).
		Int("rows", frame.Len()).
		Msg("refreshed")
	return snap, nil
}

func (s *Service) fail(at time.Time, result string, err error) error {
	s.observe(func(m *metrics.Metrics) { m.RefreshTotal.WithLabelValues(result).Inc() })
	if s.deps.Health != nil {
		s.deps.Health.RecordRefresh(at, err)
	}
	return err
}

// checkVerdict compares the new verdict with the stored one. The first
// observation for a symbol is saved without a notification. When the stored
// verdict cannot be read nothing is written.
func (s *Service) checkVerdict(ctx context.Context, snap *Snapshot) {
	lg := logger.FromContext(ctx)
	current := string(snap.Summary.Overall.Trend)

	prev, ok, err := s.deps.Verdicts.Previous(ctx, snap.Symbol)
	if err != nil {
		// Keep the stored verdict; the next refresh diffs against it.
		lg.Warn().Err(err).Msg("previous verdict unavailable")
		return
	}
	if ok && prev == current {
		return
	}

	if err := s.deps.Verdicts.Save(ctx, snap.Symbol, current); err != nil {
		lg.Warn().Err(err).Msg("save verdict failed")
	}
	if !ok {
		return
	}

	s.observe(func(m *metrics.Metrics) { m.VerdictChanges.Inc() })
	bullish, bearish := snap.Summary.Signals(s.cfg.SignalCount)
	alert := notification.TrendChangeAlert(snap.Symbol, prev, current, bullish, bearish)
	lg.Info().Str("from", prev).Str("to", current).Str("alert", alert.ID).Msg("trend changed")

	s.notifyWG.Add(1)
	go func() {
		defer s.notifyWG.Done()
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.NotifyTimeout)
		defer cancel()

		if err := s.deps.Notifier.Send(nctx, alert); err != nil {
			lg.Error().Err(err).Str("alert", alert.ID).Msg("notification failed")
			s.observe(func(m *metrics.Metrics) { m.NotificationsTotal.WithLabelValues("failed").Inc() })
			return
		}
		s.observe(func(m *metrics.Metrics) { m.NotificationsTotal.WithLabelValues("sent").Inc() })
	}()
}

func (s *Service) publish(ctx context.Context, snap *Snapshot) {
	if s.deps.Publisher == nil {
		return
	}
	lg := logger.FromContext(ctx)
	payload, err := json.Marshal(snap)
	if err != nil {
		lg.Error().Err(err).Msg("marshal snapshot")
		return
	}
	if err := s.deps.Publisher.PublishSummary(ctx, snap.Symbol, payload); err != nil {
		lg.Warn().Err(err).Msg("publish snapshot failed")
	}
}

func (s *Service) record(sum *trend.Summary) {
	s.observe(func(m *metrics.Metrics) {
		v := 0.0
		if sum.Overall.Trend == trend.Bullish {
			v = 1
		}
		m.Verdict.Set(v)
		m.BullishScore.Set(float64(sum.Overall.BullishScore))
		m.BearishScore.Set(float64(sum.Overall.BearishScore))
		for _, c := range trend.Categories() {
			m.CategoryBullish.WithLabelValues(strings.ToLower(c.String())).Set(float64(sum.Category(c).Bullish))
		}
	})
}

func (s *Service) observe(fn func(m *metrics.Metrics)) {
	if s.deps.Metrics != nil {
		fn(s.deps.Metrics)
	}
}
