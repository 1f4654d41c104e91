package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"soltrend/internal/logger"
	"soltrend/internal/metrics"
)

// Monitor feeds a Log until its context is cancelled.
type Monitor interface {
	Run(ctx context.Context) error
}

// PollerConfig configures a Poller.
type PollerConfig struct {
	APIBase      string // e.g. https://api.helius.xyz
	Address      string
	APIKey       string
	Interval     time.Duration
	ErrorBackoff time.Duration
}

// Poller fetches the address' recent transactions on a fixed interval.
type Poller struct {
	cfg     PollerConfig
	log     *Log
	client  *http.Client
	metrics *metrics.Metrics
	lg      zerolog.Logger
}

// NewPoller creates a Poller writing into l. m may be nil.
func NewPoller(cfg PollerConfig, l *Log, m *metrics.Metrics) (*Poller, error) {
	if cfg.Address == "" || cfg.APIKey == "" {
		return nil, errors.New("wallet: address and api key are required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = 15 * time.Second
	}
	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")
	return &Poller{
		cfg:     cfg,
		log:     l,
		client:  &http.Client{Timeout: 15 * time.Second},
		metrics: m,
		lg:      logger.Component("wallet").With().Str("mode", "poll").Logger(),
	}, nil
}

// Run polls until ctx is cancelled, waiting Interval after a success and
// ErrorBackoff after a failure.
func (p *Poller) Run(ctx context.Context) error {
	p.lg.Info().Str("address", p.cfg.Address).Dur("every", p.cfg.Interval).Msg("polling started")
	for {
		wait := p.cfg.Interval
		if _, err := p.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.lg.Error().Err(err).Msg("poll failed")
			if p.metrics != nil {
				p.metrics.WalletPollErrors.Inc()
			}
			wait = p.cfg.ErrorBackoff
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

// Poll performs one request and returns the number of new transactions.
func (p *Poller) Poll(ctx context.Context) (int, error) {
	u := fmt.Sprintf("%s/v0/addresses/%s/transactions?api-key=%s",
		p.cfg.APIBase, url.PathEscape(p.cfg.Address), url.QueryEscape(p.cfg.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("get transactions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest {
		p.lg.Error().Msg("bad request (400), likely invalid wallet or API key")
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("get transactions: unexpected status %d", resp.StatusCode)
	}

	var raws []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raws); err != nil {
		return 0, fmt.Errorf("decode transactions: %w", err)
	}

	added := 0
	for _, raw := range raws {
		tx, err := parseTransaction(raw)
		if err != nil {
			p.lg.Warn().Err(err).Msg("skipping transaction")
			continue
		}
		if p.log.Append(tx) {
			added++
			p.lg.Info().Str("signature", tx.Signature).Str("type", tx.Type).Msg("new transaction")
		}
	}
	p.record(added)
	p.lg.Debug().Int("retrieved", len(raws)).Int("new", added).Msg("polled")
	return added, nil
}

func (p *Poller) record(added int) {
	if p.metrics == nil {
		return
	}
	p.metrics.WalletTransactions.Add(float64(added))
	p.metrics.WalletLogSize.Set(float64(p.log.Len()))
}
